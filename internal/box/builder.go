package box

import (
	"encoding/binary"

	"github.com/google/uuid"
)

// TypeBrandJP2 is the "jp2 " brand carried by ftyp.
const TypeBrandJP2 Type = 0x6A703220

// New creates a leaf box holding contents.
func New(t Type, contents []byte) *Box {
	if contents == nil {
		contents = []byte{}
	}
	return &Box{
		Type:         t,
		HeaderLength: 8,
		Length:       uint64(8 + len(contents)),
		Contents:     contents,
	}
}

// NewSuper creates a super-box holding children.
func NewSuper(t Type, children ...*Box) *Box {
	var contents []byte
	for _, c := range children {
		contents = append(contents, c.Bytes()...)
	}
	b := New(t, contents)
	b.Children = children
	return b
}

// Signature creates the JP2 signature box.
func Signature() *Box {
	return New(TypeJP2Signature, []byte{0x0D, 0x0A, 0x87, 0x0A})
}

// FileType creates a file type box for JP2.
func FileType() *Box {
	ftyp := &FileTypeBox{
		Brand:         TypeBrandJP2,
		Compatibility: []Type{TypeBrandJP2},
	}
	return New(TypeFileType, ftyp.Bytes())
}

// NewJP2Header creates a JP2 header box with an image header and an
// enumerated colour specification.
func NewJP2Header(width, height uint32, numComponents uint16, bitsPerComponent uint8, colorspace uint32) *Box {
	ihdr := &ImageHeaderBox{
		Width:            width,
		Height:           height,
		NumComponents:    numComponents,
		BitsPerComponent: bitsPerComponent,
		CompressionType:  7,
	}
	colr := &ColorSpecBox{
		Method:               1,
		EnumeratedColorspace: colorspace,
	}
	return NewSuper(TypeJP2Header,
		New(TypeImageHeader, ihdr.Bytes()),
		New(TypeColorSpec, colr.Bytes()))
}

// Codestream creates a contiguous codestream box.
func Codestream(codestream []byte) *Box {
	return New(TypeContCodestream, codestream)
}

// NewUUID creates a uuid box.
func NewUUID(id uuid.UUID, data []byte) *Box {
	contents := make([]byte, 16+len(data))
	copy(contents, id[:])
	copy(contents[16:], data)
	return New(TypeUUID, contents)
}

// NewXML creates an xml box.
func NewXML(text string) *Box {
	return New(TypeXML, []byte(text))
}

// NewAssoc creates an association box opened by a label box.
func NewAssoc(label string, children ...*Box) *Box {
	return NewSuper(TypeAssoc, append([]*Box{New(TypeLabel, []byte(label))}, children...)...)
}

// NewResolution creates a resolution super-box with a capture resolution.
func NewResolution(res *ResolutionBox) *Box {
	data := make([]byte, 10)
	binary.BigEndian.PutUint16(data[0:2], res.VertNum)
	binary.BigEndian.PutUint16(data[2:4], res.VertDen)
	binary.BigEndian.PutUint16(data[4:6], res.HorizNum)
	binary.BigEndian.PutUint16(data[6:8], res.HorizDen)
	data[8] = byte(res.VertExp)
	data[9] = byte(res.HorizExp)
	return NewSuper(TypeResolution, New(TypeCaptureRes, data))
}

// Assemble concatenates boxes into file bytes.
func Assemble(boxes ...*Box) []byte {
	var out []byte
	for _, b := range boxes {
		out = append(out, b.Bytes()...)
	}
	return out
}
