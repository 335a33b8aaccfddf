package box

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Well-known UUID box identifiers.
var (
	// UUIDGeoJP2 marks a box holding a degenerate GeoTIFF file.
	UUIDGeoJP2 = uuid.MustParse("b14bf8bd-083d-4b43-a5ae-8cd7d5a6ce03")
	// UUIDMSIG marks a MapInfo/Intergraph world file box.
	UUIDMSIG = uuid.MustParse("96a9f1f1-dc98-402d-a7ae-d68e34451809")
	// UUIDXMP marks an XMP packet.
	UUIDXMP = uuid.MustParse("be7acfcb-97a9-42e8-9c71-999491e3afac")
)

// Field is one decoded payload field, for display.
type Field struct {
	Name  string
	Value string
}

// ImageHeaderBox represents the image header box.
type ImageHeaderBox struct {
	Height            uint32
	Width             uint32
	NumComponents     uint16
	BitsPerComponent  uint8 // 7-bit value or 0xFF for BPC box
	CompressionType   uint8 // Always 7 for JP2
	UnknownColorspace uint8
	IPR               uint8
}

// Parse parses the image header box contents.
func (b *ImageHeaderBox) Parse(data []byte) error {
	if len(data) < 14 {
		return errors.New("image header box too short")
	}
	b.Height = binary.BigEndian.Uint32(data[0:4])
	b.Width = binary.BigEndian.Uint32(data[4:8])
	b.NumComponents = binary.BigEndian.Uint16(data[8:10])
	b.BitsPerComponent = data[10]
	b.CompressionType = data[11]
	b.UnknownColorspace = data[12]
	b.IPR = data[13]
	return nil
}

// Bytes returns the box contents.
func (b *ImageHeaderBox) Bytes() []byte {
	data := make([]byte, 14)
	binary.BigEndian.PutUint32(data[0:4], b.Height)
	binary.BigEndian.PutUint32(data[4:8], b.Width)
	binary.BigEndian.PutUint16(data[8:10], b.NumComponents)
	data[10] = b.BitsPerComponent
	data[11] = b.CompressionType
	data[12] = b.UnknownColorspace
	data[13] = b.IPR
	return data
}

// Fields lists the decoded fields.
func (b *ImageHeaderBox) Fields() []Field {
	return []Field{
		{"HEIGHT", fmt.Sprint(b.Height)},
		{"WIDTH", fmt.Sprint(b.Width)},
		{"NC", fmt.Sprint(b.NumComponents)},
		{"BPC", bitsPerComponent(b.BitsPerComponent)},
		{"C", fmt.Sprint(b.CompressionType)},
		{"UnkC", fmt.Sprint(b.UnknownColorspace)},
		{"IPR", fmt.Sprint(b.IPR)},
	}
}

func bitsPerComponent(v uint8) string {
	if v == 0xFF {
		return "255 (variable)"
	}
	sign := "unsigned"
	if v&0x80 != 0 {
		sign = "signed"
	}
	return fmt.Sprintf("%d (%d bits, %s)", v, int(v&0x7F)+1, sign)
}

// BitsPerCompBox represents per-component bit depth.
type BitsPerCompBox struct {
	BitsPerComponent []uint8
}

// Parse parses the bits per component box.
func (b *BitsPerCompBox) Parse(data []byte) error {
	b.BitsPerComponent = make([]uint8, len(data))
	copy(b.BitsPerComponent, data)
	return nil
}

// Fields lists the decoded fields.
func (b *BitsPerCompBox) Fields() []Field {
	fields := make([]Field, len(b.BitsPerComponent))
	for i, v := range b.BitsPerComponent {
		fields[i] = Field{fmt.Sprintf("BPC%d", i), bitsPerComponent(v)}
	}
	return fields
}

// ColorSpecBox represents color specification.
type ColorSpecBox struct {
	Method               uint8
	Precedence           uint8
	Approximation        uint8
	EnumeratedColorspace uint32
	ICCProfile           []byte
}

// Enumerated colorspace values per ISO/IEC 15444-1 Annex M
const (
	CSBilevel1  = 0  // Bi-level (black and white)
	CSYCbCr1    = 1  // YCbCr(1) - ITU-R BT.709-5 based (sRGB primaries)
	CSYCbCr2    = 3  // YCbCr(2) - ITU-R BT.601-5 for 625-line systems
	CSYCbCr3    = 4  // YCbCr(3) - ITU-R BT.601-5 for 525-line systems
	CSPhotoYCC  = 9  // PhotoYCC (Kodak Photo CD)
	CSCMY       = 11 // CMY (Cyan, Magenta, Yellow)
	CSCMYK      = 12 // CMYK (Cyan, Magenta, Yellow, Key/Black)
	CSYCCK      = 13 // YCCK (PhotoYCC with Key/Black)
	CSCIELab    = 14 // CIELab (D50 illuminant)
	CSBilevel2  = 15 // Bi-level(2) - alternative bi-level encoding
	CSSRGB      = 16 // sRGB (IEC 61966-2-1)
	CSGray      = 17 // Grayscale
	CSsYCC      = 18 // sYCC (IEC 61966-2-1 Annex G)
	CSCIEJab    = 19 // CIEJab (CIECAM02-based)
	CSeSRGB     = 20 // e-sRGB (extended sRGB, IEC 61966-2-1 Amendment 1)
	CSROMMRGB   = 21 // ROMM-RGB (Reference Output Medium Metric, ISO 22028-2)
	CSYPbPr1125 = 22 // YPbPr for 1125/60 systems (SMPTE 274M)
	CSYPbPr1250 = 23 // YPbPr for 1250/50 systems (ITU-R BT.1361)
	CSeSYCC     = 24 // e-sYCC (extended sYCC gamut)
)

// ColorspaceName returns the display name of an enumerated colorspace.
func ColorspaceName(cs uint32) string {
	switch cs {
	case CSBilevel1:
		return "Bi-level"
	case CSYCbCr1:
		return "YCbCr(1)"
	case CSYCbCr2:
		return "YCbCr(2)"
	case CSYCbCr3:
		return "YCbCr(3)"
	case CSPhotoYCC:
		return "PhotoYCC"
	case CSCMY:
		return "CMY"
	case CSCMYK:
		return "CMYK"
	case CSYCCK:
		return "YCCK"
	case CSCIELab:
		return "CIELab"
	case CSBilevel2:
		return "Bi-level(2)"
	case CSSRGB:
		return "sRGB"
	case CSGray:
		return "greyscale"
	case CSsYCC:
		return "sYCC"
	case CSCIEJab:
		return "CIEJab"
	case CSeSRGB:
		return "e-sRGB"
	case CSROMMRGB:
		return "ROMM-RGB"
	case CSYPbPr1125:
		return "YPbPr(1125/60)"
	case CSYPbPr1250:
		return "YPbPr(1250/50)"
	case CSeSYCC:
		return "e-sYCC"
	default:
		return "unknown"
	}
}

// Parse parses the color specification box.
func (b *ColorSpecBox) Parse(data []byte) error {
	if len(data) < 3 {
		return errors.New("color specification box too short")
	}
	b.Method = data[0]
	b.Precedence = data[1]
	b.Approximation = data[2]

	switch b.Method {
	case 1: // Enumerated colorspace
		if len(data) < 7 {
			return errors.New("color specification box too short for enumerated CS")
		}
		b.EnumeratedColorspace = binary.BigEndian.Uint32(data[3:7])
	case 2, 3: // Restricted or any ICC profile
		b.ICCProfile = data[3:]
	}
	return nil
}

// Bytes returns the box contents.
func (b *ColorSpecBox) Bytes() []byte {
	if b.Method == 1 {
		data := make([]byte, 7)
		data[0] = b.Method
		data[1] = b.Precedence
		data[2] = b.Approximation
		binary.BigEndian.PutUint32(data[3:7], b.EnumeratedColorspace)
		return data
	}
	data := make([]byte, 3+len(b.ICCProfile))
	data[0] = b.Method
	data[1] = b.Precedence
	data[2] = b.Approximation
	copy(data[3:], b.ICCProfile)
	return data
}

// Fields lists the decoded fields.
func (b *ColorSpecBox) Fields() []Field {
	method := "unknown"
	switch b.Method {
	case 1:
		method = "Enumerated Colourspace"
	case 2:
		method = "Restricted ICC profile"
	case 3:
		method = "Any ICC profile"
	}
	fields := []Field{
		{"METH", fmt.Sprintf("%d (%s)", b.Method, method)},
		{"PREC", fmt.Sprint(b.Precedence)},
		{"APPROX", fmt.Sprint(b.Approximation)},
	}
	if b.Method == 1 {
		fields = append(fields, Field{"EnumCS", fmt.Sprintf("%d (%s)", b.EnumeratedColorspace, ColorspaceName(b.EnumeratedColorspace))})
	} else {
		fields = append(fields, Field{"ICC", fmt.Sprintf("%d bytes", len(b.ICCProfile))})
	}
	return fields
}

// PaletteBox represents a color palette.
type PaletteBox struct {
	NumEntries   uint16
	NumColumns   uint8
	BitsPerEntry []uint8
	Entries      [][]uint32
}

// Parse parses the palette box.
func (b *PaletteBox) Parse(data []byte) error {
	if len(data) < 3 {
		return errors.New("palette box too short")
	}
	b.NumEntries = binary.BigEndian.Uint16(data[0:2])
	b.NumColumns = data[2]
	pos := 3
	if len(data) < pos+int(b.NumColumns) {
		return errors.New("palette box too short for bit depths")
	}
	b.BitsPerEntry = append([]uint8(nil), data[pos:pos+int(b.NumColumns)]...)
	pos += int(b.NumColumns)

	b.Entries = make([][]uint32, b.NumEntries)
	for i := range b.Entries {
		row := make([]uint32, b.NumColumns)
		for j, bits := range b.BitsPerEntry {
			n := (int(bits&0x7F) + 8) / 8
			if len(data) < pos+n {
				return fmt.Errorf("palette box truncated at entry %d", i)
			}
			var v uint32
			for k := 0; k < n; k++ {
				v = v<<8 | uint32(data[pos+k])
			}
			row[j] = v
			pos += n
		}
		b.Entries[i] = row
	}
	return nil
}

// Fields lists the decoded fields.
func (b *PaletteBox) Fields() []Field {
	fields := []Field{
		{"NE", fmt.Sprint(b.NumEntries)},
		{"NPC", fmt.Sprint(b.NumColumns)},
	}
	for i, v := range b.BitsPerEntry {
		fields = append(fields, Field{fmt.Sprintf("B%d", i), bitsPerComponent(v)})
	}
	for i, row := range b.Entries {
		for j, v := range row {
			fields = append(fields, Field{fmt.Sprintf("C_%d_%d", j, i), fmt.Sprint(v)})
		}
	}
	return fields
}

// ComponentMapBox represents component mapping.
type ComponentMapBox struct {
	Mappings []ComponentMapping
}

// ComponentMapping maps a channel to a component.
type ComponentMapping struct {
	Component     uint16
	MappingType   uint8
	PaletteColumn uint8
}

// Parse parses the component mapping box.
func (b *ComponentMapBox) Parse(data []byte) error {
	if len(data)%4 != 0 {
		return fmt.Errorf("component mapping box length %d not a multiple of 4", len(data))
	}
	b.Mappings = make([]ComponentMapping, len(data)/4)
	for i := range b.Mappings {
		b.Mappings[i] = ComponentMapping{
			Component:     binary.BigEndian.Uint16(data[i*4:]),
			MappingType:   data[i*4+2],
			PaletteColumn: data[i*4+3],
		}
	}
	return nil
}

// Fields lists the decoded fields.
func (b *ComponentMapBox) Fields() []Field {
	var fields []Field
	for i, m := range b.Mappings {
		fields = append(fields,
			Field{fmt.Sprintf("CMP%d", i), fmt.Sprint(m.Component)},
			Field{fmt.Sprintf("MTYP%d", i), fmt.Sprint(m.MappingType)},
			Field{fmt.Sprintf("PCOL%d", i), fmt.Sprint(m.PaletteColumn)})
	}
	return fields
}

// ChannelDefBox defines channel meanings.
type ChannelDefBox struct {
	Definitions []ChannelDefinition
}

// ChannelDefinition describes a channel.
type ChannelDefinition struct {
	Channel     uint16
	Type        uint16 // 0=color, 1=opacity, 2=premultiplied opacity
	Association uint16 // Component association
}

// Parse parses the channel definition box.
func (b *ChannelDefBox) Parse(data []byte) error {
	if len(data) < 2 {
		return errors.New("channel definition box too short")
	}
	n := int(binary.BigEndian.Uint16(data[0:2]))
	if len(data) < 2+6*n {
		return fmt.Errorf("channel definition box too short for %d channels", n)
	}
	b.Definitions = make([]ChannelDefinition, n)
	for i := range b.Definitions {
		p := data[2+6*i:]
		b.Definitions[i] = ChannelDefinition{
			Channel:     binary.BigEndian.Uint16(p[0:2]),
			Type:        binary.BigEndian.Uint16(p[2:4]),
			Association: binary.BigEndian.Uint16(p[4:6]),
		}
	}
	return nil
}

// Fields lists the decoded fields.
func (b *ChannelDefBox) Fields() []Field {
	fields := []Field{{"N", fmt.Sprint(len(b.Definitions))}}
	for i, d := range b.Definitions {
		typ := fmt.Sprint(d.Type)
		switch d.Type {
		case 0:
			typ += " (colour)"
		case 1:
			typ += " (opacity)"
		case 2:
			typ += " (premultiplied opacity)"
		}
		fields = append(fields,
			Field{fmt.Sprintf("Cn%d", i), fmt.Sprint(d.Channel)},
			Field{fmt.Sprintf("Typ%d", i), typ},
			Field{fmt.Sprintf("Asoc%d", i), fmt.Sprint(d.Association)})
	}
	return fields
}

// ResolutionBox contains one capture or display resolution (resc/resd).
type ResolutionBox struct {
	VertNum  uint16
	VertDen  uint16
	HorizNum uint16
	HorizDen uint16
	VertExp  int8
	HorizExp int8
}

// Parse parses a resc or resd box.
func (b *ResolutionBox) Parse(data []byte) error {
	if len(data) < 10 {
		return errors.New("resolution box too short")
	}
	b.VertNum = binary.BigEndian.Uint16(data[0:2])
	b.VertDen = binary.BigEndian.Uint16(data[2:4])
	b.HorizNum = binary.BigEndian.Uint16(data[4:6])
	b.HorizDen = binary.BigEndian.Uint16(data[6:8])
	b.VertExp = int8(data[8])
	b.HorizExp = int8(data[9])
	return nil
}

// Fields lists the decoded fields.
func (b *ResolutionBox) Fields() []Field {
	return []Field{
		{"VR", resolution(b.VertNum, b.VertDen, b.VertExp)},
		{"HR", resolution(b.HorizNum, b.HorizDen, b.HorizExp)},
	}
}

func resolution(num, den uint16, exp int8) string {
	if den == 0 {
		return fmt.Sprintf("%d/0 * 10^%d", num, exp)
	}
	v := float64(num) / float64(den)
	for i := int8(0); i < exp; i++ {
		v *= 10
	}
	for i := exp; i < 0; i++ {
		v /= 10
	}
	return fmt.Sprintf("%d/%d * 10^%d = %g grid points per metre", num, den, exp, v)
}

// FileTypeBox represents the ftyp box.
type FileTypeBox struct {
	Brand         Type
	MinorVersion  uint32
	Compatibility []Type
}

// Parse parses the file type box.
func (b *FileTypeBox) Parse(data []byte) error {
	if len(data) < 8 {
		return errors.New("file type box too short")
	}
	b.Brand = Type(binary.BigEndian.Uint32(data[0:4]))
	b.MinorVersion = binary.BigEndian.Uint32(data[4:8])

	numCompat := (len(data) - 8) / 4
	b.Compatibility = make([]Type, numCompat)
	for i := 0; i < numCompat; i++ {
		b.Compatibility[i] = Type(binary.BigEndian.Uint32(data[8+i*4:]))
	}
	return nil
}

// Bytes returns the box contents.
func (b *FileTypeBox) Bytes() []byte {
	data := make([]byte, 8+4*len(b.Compatibility))
	binary.BigEndian.PutUint32(data[0:4], uint32(b.Brand))
	binary.BigEndian.PutUint32(data[4:8], b.MinorVersion)
	for i, c := range b.Compatibility {
		binary.BigEndian.PutUint32(data[8+i*4:], uint32(c))
	}
	return data
}

// Fields lists the decoded fields.
func (b *FileTypeBox) Fields() []Field {
	fields := []Field{
		{"BR", b.Brand.String()},
		{"MinV", fmt.Sprint(b.MinorVersion)},
	}
	for i, c := range b.Compatibility {
		fields = append(fields, Field{fmt.Sprintf("CL%d", i), c.String()})
	}
	return fields
}

// LabelBox is the text label of an association box.
type LabelBox struct {
	Label string
}

// Parse parses the label box.
func (b *LabelBox) Parse(data []byte) error {
	b.Label = strings.TrimRight(string(data), "\x00")
	return nil
}

// Fields lists the decoded fields.
func (b *LabelBox) Fields() []Field {
	return []Field{{"Label", b.Label}}
}

// UUIDBox is a vendor box identified by a UUID.
type UUIDBox struct {
	ID   uuid.UUID
	Data []byte
}

// Parse parses the uuid box.
func (b *UUIDBox) Parse(data []byte) error {
	if len(data) < 16 {
		return errors.New("uuid box too short")
	}
	id, err := uuid.FromBytes(data[:16])
	if err != nil {
		return err
	}
	b.ID = id
	b.Data = data[16:]
	return nil
}

// Fields lists the decoded fields.
func (b *UUIDBox) Fields() []Field {
	return []Field{
		{"UUID", fmt.Sprintf("%s (%s)", strings.ToUpper(b.ID.String()), UUIDName(b.ID))},
		{"DATA", fmt.Sprintf("%d bytes", len(b.Data))},
	}
}

// UUIDName returns a short name for a well-known UUID.
func UUIDName(id uuid.UUID) string {
	switch id {
	case UUIDGeoJP2:
		return "GeoTIFF"
	case UUIDMSIG:
		return "MSIG"
	case UUIDXMP:
		return "XMP"
	default:
		return "unknown"
	}
}

// UUIDListBox lists UUIDs covered by a uinf box.
type UUIDListBox struct {
	IDs []uuid.UUID
}

// Parse parses the ulst box.
func (b *UUIDListBox) Parse(data []byte) error {
	if len(data) < 2 {
		return errors.New("uuid list box too short")
	}
	n := int(binary.BigEndian.Uint16(data[0:2]))
	if len(data) < 2+16*n {
		return fmt.Errorf("uuid list box too short for %d entries", n)
	}
	b.IDs = make([]uuid.UUID, n)
	for i := range b.IDs {
		copy(b.IDs[i][:], data[2+16*i:])
	}
	return nil
}

// Fields lists the decoded fields.
func (b *UUIDListBox) Fields() []Field {
	fields := []Field{{"NU", fmt.Sprint(len(b.IDs))}}
	for i, id := range b.IDs {
		fields = append(fields, Field{fmt.Sprintf("ID%d", i), strings.ToUpper(id.String())})
	}
	return fields
}

// URLBox is a data entry URL.
type URLBox struct {
	Version  uint8
	Flags    uint32
	Location string
}

// Parse parses the url box.
func (b *URLBox) Parse(data []byte) error {
	if len(data) < 4 {
		return errors.New("url box too short")
	}
	b.Version = data[0]
	b.Flags = uint32(data[1])<<16 | uint32(data[2])<<8 | uint32(data[3])
	b.Location = string(bytes.TrimRight(data[4:], "\x00"))
	return nil
}

// Fields lists the decoded fields.
func (b *URLBox) Fields() []Field {
	return []Field{
		{"VERS", fmt.Sprint(b.Version)},
		{"FLAG", fmt.Sprint(b.Flags)},
		{"LOC", b.Location},
	}
}

// Decoder is implemented by every typed payload.
type Decoder interface {
	Parse(data []byte) error
	Fields() []Field
}

// DecoderFor returns an empty typed payload for boxes of type t, or nil when
// the type has no decoder.
func DecoderFor(t Type) Decoder {
	switch t {
	case TypeImageHeader:
		return &ImageHeaderBox{}
	case TypeBitsPerComp:
		return &BitsPerCompBox{}
	case TypeColorSpec:
		return &ColorSpecBox{}
	case TypePalette:
		return &PaletteBox{}
	case TypeComponentMap:
		return &ComponentMapBox{}
	case TypeChannelDef:
		return &ChannelDefBox{}
	case TypeCaptureRes, TypeDisplayRes:
		return &ResolutionBox{}
	case TypeFileType:
		return &FileTypeBox{}
	case TypeLabel:
		return &LabelBox{}
	case TypeUUID:
		return &UUIDBox{}
	case TypeUUIDList:
		return &UUIDListBox{}
	case TypeURL:
		return &URLBox{}
	default:
		return nil
	}
}

// Label returns the text of the lbl box that opens an association box, or ""
// when b is not a labelled asoc.
func Label(b *Box) string {
	if b.Type != TypeAssoc || len(b.Children) == 0 || b.Children[0].Type != TypeLabel {
		return ""
	}
	var lbl LabelBox
	_ = lbl.Parse(b.Children[0].Contents)
	return lbl.Label
}

// UUIDOf returns the identifier of a uuid box.
func UUIDOf(b *Box) (uuid.UUID, []byte, bool) {
	if b.Type != TypeUUID {
		return uuid.Nil, nil, false
	}
	var u UUIDBox
	if err := u.Parse(b.Contents); err != nil {
		return uuid.Nil, nil, false
	}
	return u.ID, u.Data, true
}

// JP2Header represents the JP2 header box contents.
type JP2Header struct {
	ImageHeader  *ImageHeaderBox
	BitsPerComp  *BitsPerCompBox
	ColorSpec    *ColorSpecBox
	Palette      *PaletteBox
	ComponentMap *ComponentMapBox
	ChannelDef   *ChannelDefBox
}

// ParseJP2Header decodes the children of a parsed jp2h super-box.
func ParseJP2Header(jp2h *Box) (*JP2Header, error) {
	h := &JP2Header{}
	for _, child := range jp2h.Children {
		var err error
		switch child.Type {
		case TypeImageHeader:
			h.ImageHeader = &ImageHeaderBox{}
			err = h.ImageHeader.Parse(child.Contents)
		case TypeBitsPerComp:
			h.BitsPerComp = &BitsPerCompBox{}
			err = h.BitsPerComp.Parse(child.Contents)
		case TypeColorSpec:
			// The first colr box takes precedence.
			if h.ColorSpec == nil {
				h.ColorSpec = &ColorSpecBox{}
				err = h.ColorSpec.Parse(child.Contents)
			}
		case TypePalette:
			h.Palette = &PaletteBox{}
			err = h.Palette.Parse(child.Contents)
		case TypeComponentMap:
			h.ComponentMap = &ComponentMapBox{}
			err = h.ComponentMap.Parse(child.Contents)
		case TypeChannelDef:
			h.ChannelDef = &ChannelDefBox{}
			err = h.ChannelDef.Parse(child.Contents)
		}
		if err != nil {
			return nil, fmt.Errorf("%s box: %w", child.Type, err)
		}
	}
	return h, nil
}
