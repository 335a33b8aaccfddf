package codestream

import (
	"encoding/binary"
	"errors"
	"fmt"

	"golang.org/x/text/encoding/charmap"
)

// ErrMalformedCodestream is the sentinel for marker-level corruption.
var ErrMalformedCodestream = errors.New("malformed JPEG 2000 codestream")

// SegmentError describes a marker segment that could not be decoded.
type SegmentError struct {
	Marker Marker
	Offset int
	Reason string
}

func (e *SegmentError) Error() string {
	if e.Marker != 0 {
		return fmt.Sprintf("%s segment at offset %d: %s", e.Marker, e.Offset, e.Reason)
	}
	return fmt.Sprintf("codestream offset %d: %s", e.Offset, e.Reason)
}

func (e *SegmentError) Unwrap() error {
	return ErrMalformedCodestream
}

// cursor reads big-endian fields from a segment's parameters. The first
// short read sticks, so decoders check err once at the end.
type cursor struct {
	data []byte
	pos  int
	err  error
}

func (c *cursor) need(n int) bool {
	if c.err != nil {
		return false
	}
	if c.pos+n > len(c.data) {
		c.err = fmt.Errorf("need %d bytes at parameter offset %d, have %d", n, c.pos, len(c.data)-c.pos)
		return false
	}
	return true
}

func (c *cursor) u8() uint8 {
	if !c.need(1) {
		return 0
	}
	v := c.data[c.pos]
	c.pos++
	return v
}

func (c *cursor) u16() uint16 {
	if !c.need(2) {
		return 0
	}
	v := binary.BigEndian.Uint16(c.data[c.pos:])
	c.pos += 2
	return v
}

func (c *cursor) u32() uint32 {
	if !c.need(4) {
		return 0
	}
	v := binary.BigEndian.Uint32(c.data[c.pos:])
	c.pos += 4
	return v
}

// component reads a component index, one byte when there are fewer than
// 257 components and two otherwise.
func (c *cursor) component(numComponents uint16) uint16 {
	if numComponents < 257 {
		return uint16(c.u8())
	}
	return c.u16()
}

func (c *cursor) rest() []byte {
	if c.err != nil || c.pos >= len(c.data) {
		return nil
	}
	v := c.data[c.pos:]
	c.pos = len(c.data)
	return v
}

func (c *cursor) remaining() int {
	return len(c.data) - c.pos
}

// DecodeSIZ decodes SIZ parameters into h.
func DecodeSIZ(params []byte, h *Header) error {
	c := &cursor{data: params}
	h.Profile = c.u16()
	h.ImageWidth = c.u32()
	h.ImageHeight = c.u32()
	h.ImageXOffset = c.u32()
	h.ImageYOffset = c.u32()
	h.TileWidth = c.u32()
	h.TileHeight = c.u32()
	h.TileXOffset = c.u32()
	h.TileYOffset = c.u32()
	h.NumComponents = c.u16()
	if c.err != nil {
		return c.err
	}
	if want := 36 + 3*int(h.NumComponents); len(params) != want {
		return fmt.Errorf("SIZ length mismatch: expected %d parameter bytes for %d components, got %d",
			want, h.NumComponents, len(params))
	}
	h.ComponentInfo = make([]ComponentInfo, h.NumComponents)
	for i := range h.ComponentInfo {
		h.ComponentInfo[i] = ComponentInfo{
			BitDepth:     c.u8(),
			SubsamplingX: c.u8(),
			SubsamplingY: c.u8(),
		}
	}
	return c.err
}

func readPrecincts(c *cursor) []PrecinctSize {
	n := c.remaining()
	if n <= 0 {
		return nil
	}
	sizes := make([]PrecinctSize, n)
	for i := range sizes {
		pp := c.u8()
		sizes[i] = PrecinctSize{
			WidthExp:  pp & 0x0F,
			HeightExp: (pp >> 4) & 0x0F,
		}
	}
	return sizes
}

// DecodeCOD decodes COD parameters.
func DecodeCOD(params []byte) (CodingStyleDefault, error) {
	c := &cursor{data: params}
	cod := CodingStyleDefault{
		CodingStyle:         c.u8(),
		ProgressionOrder:    ProgressionOrder(c.u8()),
		NumLayers:           c.u16(),
		MultipleComponentXf: c.u8(),
		NumDecompositions:   c.u8(),
		CodeBlockWidthExp:   c.u8(),
		CodeBlockHeightExp:  c.u8(),
		CodeBlockStyle:      c.u8(),
		WaveletTransform:    c.u8(),
	}
	if cod.CodingStyle&CodingStylePrecincts != 0 {
		cod.PrecinctSizes = readPrecincts(c)
	}
	return cod, c.err
}

// DecodeCOC decodes COC parameters.
func DecodeCOC(params []byte, numComponents uint16) (CodingStyleComponent, error) {
	c := &cursor{data: params}
	coc := CodingStyleComponent{
		ComponentIndex:     c.component(numComponents),
		CodingStyle:        c.u8(),
		NumDecompositions:  c.u8(),
		CodeBlockWidthExp:  c.u8(),
		CodeBlockHeightExp: c.u8(),
		CodeBlockStyle:     c.u8(),
		WaveletTransform:   c.u8(),
	}
	if coc.CodingStyle&CodingStylePrecincts != 0 {
		coc.PrecinctSizes = readPrecincts(c)
	}
	return coc, c.err
}

func readQuantization(c *cursor) QuantizationDefault {
	sq := c.u8()
	q := QuantizationDefault{
		QuantizationStyle: sq & 0x1F,
		NumGuardBits:      sq >> 5,
	}
	switch q.QuantizationStyle {
	case QuantizationNone:
		// One exponent byte per subband.
		for c.remaining() > 0 {
			q.StepSizes = append(q.StepSizes, StepSize{Exponent: c.u8() >> 3})
		}
	case QuantizationScalarDerived, QuantizationScalarExpounded:
		for c.remaining() >= 2 {
			v := c.u16()
			q.StepSizes = append(q.StepSizes, StepSize{
				Mantissa: v & 0x07FF,
				Exponent: uint8(v >> 11),
			})
		}
	default:
		if c.err == nil {
			c.err = fmt.Errorf("unknown quantization style %d", q.QuantizationStyle)
		}
	}
	return q
}

// DecodeQCD decodes QCD parameters.
func DecodeQCD(params []byte) (QuantizationDefault, error) {
	c := &cursor{data: params}
	q := readQuantization(c)
	return q, c.err
}

// DecodeQCC decodes QCC parameters.
func DecodeQCC(params []byte, numComponents uint16) (QuantizationComponent, error) {
	c := &cursor{data: params}
	qcc := QuantizationComponent{ComponentIndex: c.component(numComponents)}
	qcc.QuantizationDefault = readQuantization(c)
	return qcc, c.err
}

// DecodePOC decodes the entries of a POC segment.
func DecodePOC(params []byte, numComponents uint16) ([]ProgressionOrderChange, error) {
	entrySize := 7
	if numComponents >= 257 {
		entrySize = 9
	}
	if len(params) == 0 || len(params)%entrySize != 0 {
		return nil, fmt.Errorf("POC length %d is not a multiple of %d", len(params), entrySize)
	}
	c := &cursor{data: params}
	pocs := make([]ProgressionOrderChange, 0, len(params)/entrySize)
	for c.remaining() > 0 && c.err == nil {
		pocs = append(pocs, ProgressionOrderChange{
			ResolutionStart:  c.u8(),
			ComponentStart:   c.component(numComponents),
			LayerEnd:         c.u16(),
			ResolutionEnd:    c.u8(),
			ComponentEnd:     c.component(numComponents),
			ProgressionOrder: ProgressionOrder(c.u8()),
		})
	}
	return pocs, c.err
}

// TLMSegment is a decoded TLM marker.
type TLMSegment struct {
	Index   uint8
	Entries []TileLength
}

// DecodeTLM decodes a TLM segment. first is the number of TLM entries seen
// before this segment and numbers implicit tile indices.
func DecodeTLM(params []byte, first int) (TLMSegment, error) {
	c := &cursor{data: params}
	seg := TLMSegment{Index: c.u8()}
	stlm := c.u8()
	if c.err != nil {
		return seg, c.err
	}

	st := (stlm >> 4) & 0x03
	sp := (stlm >> 6) & 0x01
	if st == 3 {
		return seg, fmt.Errorf("invalid ST value in TLM: %d", st)
	}
	lengthSize := 2
	if sp == 1 {
		lengthSize = 4
	}
	entrySize := int(st) + lengthSize
	if c.remaining()%entrySize != 0 {
		return seg, fmt.Errorf("TLM entries (%d bytes) not a multiple of %d", c.remaining(), entrySize)
	}

	for i := 0; c.remaining() > 0; i++ {
		var tl TileLength
		switch st {
		case 0:
			tl.TileIndex = uint16(first + i)
			tl.Implicit = true
		case 1:
			tl.TileIndex = uint16(c.u8())
		case 2:
			tl.TileIndex = c.u16()
		}
		if lengthSize == 2 {
			tl.Length = uint32(c.u16())
		} else {
			tl.Length = c.u32()
		}
		seg.Entries = append(seg.Entries, tl)
	}
	return seg, c.err
}

// readPacketLengths decodes 7-bit continuation-coded lengths.
func readPacketLengths(c *cursor) ([]uint32, error) {
	var lengths []uint32
	var v uint32
	open := false
	for c.remaining() > 0 {
		b := c.u8()
		v = v<<7 | uint32(b&0x7F)
		open = b&0x80 != 0
		if !open {
			lengths = append(lengths, v)
			v = 0
		}
	}
	if open {
		return lengths, errors.New("packet length continues past end of segment")
	}
	return lengths, c.err
}

// DecodePLT decodes a PLT segment.
func DecodePLT(params []byte) (index uint8, lengths []uint32, err error) {
	c := &cursor{data: params}
	index = c.u8()
	if c.err != nil {
		return 0, nil, c.err
	}
	lengths, err = readPacketLengths(c)
	return index, lengths, err
}

// DecodePLM decodes a PLM segment. Each tile-part's lengths are prefixed by
// a one-byte Nplm byte count; the lengths are returned in order.
func DecodePLM(params []byte) (index uint8, lengths []uint32, err error) {
	c := &cursor{data: params}
	index = c.u8()
	for c.remaining() > 0 && c.err == nil {
		n := int(c.u8())
		if !c.need(n) {
			break
		}
		sub := &cursor{data: c.data[c.pos : c.pos+n]}
		c.pos += n
		l, err := readPacketLengths(sub)
		lengths = append(lengths, l...)
		if err != nil {
			return index, lengths, err
		}
	}
	return index, lengths, c.err
}

// DecodeCOM decodes a COM segment. Latin-1 comments are converted to UTF-8.
func DecodeCOM(params []byte) (Comment, error) {
	c := &cursor{data: params}
	com := Comment{Registration: c.u16()}
	com.Data = c.rest()
	if c.err != nil {
		return com, c.err
	}
	if com.Registration == CommentLatin1 {
		text, err := charmap.ISO8859_1.NewDecoder().Bytes(com.Data)
		if err != nil {
			return com, fmt.Errorf("decoding Latin-1 comment: %w", err)
		}
		com.Text = string(text)
	}
	return com, nil
}

// DecodeCAP decodes a CAP segment.
func DecodeCAP(params []byte) (*CapabilitiesMarker, error) {
	c := &cursor{data: params}
	capm := &CapabilitiesMarker{Pcap: c.u32()}
	for c.remaining() >= 2 {
		capm.CCAPi = append(capm.CCAPi, c.u16())
	}
	if c.err == nil && c.remaining() != 0 {
		return capm, errors.New("odd number of Ccap bytes")
	}
	return capm, c.err
}

// SOTSegment is a decoded SOT marker.
type SOTSegment struct {
	Tile     uint16
	Length   uint32 // Psot, 0 when the tile-part runs to EOC
	Part     uint8
	NumParts uint8 // 0 when unknown
}

// DecodeSOT decodes a SOT segment.
func DecodeSOT(params []byte) (SOTSegment, error) {
	if len(params) != 8 {
		return SOTSegment{}, fmt.Errorf("SOT parameters must be 8 bytes, got %d", len(params))
	}
	c := &cursor{data: params}
	return SOTSegment{
		Tile:     c.u16(),
		Length:   c.u32(),
		Part:     c.u8(),
		NumParts: c.u8(),
	}, c.err
}

// DecodeRGN decodes an RGN segment.
func DecodeRGN(params []byte, numComponents uint16) (RegionOfInterest, error) {
	c := &cursor{data: params}
	rgn := RegionOfInterest{
		Component: c.component(numComponents),
		Style:     c.u8(),
		Shift:     c.u8(),
	}
	return rgn, c.err
}

// DecodeCRG decodes a CRG segment.
func DecodeCRG(params []byte, numComponents uint16) ([]ComponentRegistration, error) {
	if len(params) != 4*int(numComponents) {
		return nil, fmt.Errorf("CRG holds %d bytes, want %d for %d components", len(params), 4*int(numComponents), numComponents)
	}
	c := &cursor{data: params}
	regs := make([]ComponentRegistration, numComponents)
	for i := range regs {
		regs[i] = ComponentRegistration{X: c.u16(), Y: c.u16()}
	}
	return regs, c.err
}
