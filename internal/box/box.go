// Package box implements JP2 file format box parsing and generation.
//
// JP2 files consist of a sequence of boxes, where each box has:
// - 4-byte length (0 for "to end of file", 1 for extended length)
// - 4-byte type code
// - Optional 8-byte extended length
// - Box contents
//
// Some boxes (super-boxes) contain nothing but other boxes.
package box

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Box type codes
const (
	// Signature and file type
	TypeJP2Signature Type = 0x6A502020 // "jP  " - JP2 signature box
	TypeFileType     Type = 0x66747970 // "ftyp" - File type box
	TypeReaderReq    Type = 0x72726571 // "rreq" - Reader requirements box

	// JP2 header
	TypeJP2Header    Type = 0x6A703268 // "jp2h" - JP2 header super-box
	TypeImageHeader  Type = 0x69686472 // "ihdr" - Image header box
	TypeBitsPerComp  Type = 0x62706363 // "bpcc" - Bits per component box
	TypeColorSpec    Type = 0x636F6C72 // "colr" - Color specification box
	TypePalette      Type = 0x70636C72 // "pclr" - Palette box
	TypeComponentMap Type = 0x636D6170 // "cmap" - Component mapping box
	TypeChannelDef   Type = 0x63646566 // "cdef" - Channel definition box
	TypeResolution   Type = 0x72657320 // "res " - Resolution super-box
	TypeCaptureRes   Type = 0x72657363 // "resc" - Capture resolution box
	TypeDisplayRes   Type = 0x72657364 // "resd" - Default display resolution box

	// Codestream
	TypeContCodestream Type = 0x6A703263 // "jp2c" - Contiguous codestream box
	TypeCodestreamH    Type = 0x6A706368 // "jpch" - Codestream header box
	TypeCompositingLH  Type = 0x6A706C68 // "jplh" - Compositing layer header box
	TypeColorGroup     Type = 0x63677270 // "cgrp" - Colour group box
	TypeFragmentTable  Type = 0x6674626C // "ftbl" - Fragment table box
	TypeComposition    Type = 0x636F6D70 // "comp" - Composition box
	TypeDesiredRepr    Type = 0x64726570 // "drep" - Desired reproductions box

	// Metadata
	TypeXML      Type = 0x786D6C20 // "xml " - XML box
	TypeUUID     Type = 0x75756964 // "uuid" - UUID box
	TypeUUIDInfo Type = 0x75696E66 // "uinf" - UUID info super-box
	TypeUUIDList Type = 0x756C7374 // "ulst" - UUID list box
	TypeURL      Type = 0x75726C20 // "url " - URL box
	TypeAssoc    Type = 0x61736F63 // "asoc" - Association super-box
	TypeLabel    Type = 0x6C626C20 // "lbl " - Label box

	// IPR
	TypeIPR Type = 0x6A703269 // "jp2i" - IPR box
)

// Type represents a 4-byte box type code.
type Type uint32

// String returns the 4-character type code.
func (t Type) String() string {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, uint32(t))
	return string(b)
}

// TypeOf returns the type for a 4-character code such as "jp2h".
func TypeOf(code string) Type {
	var b [4]byte
	copy(b[:], code)
	for i := len(code); i < 4; i++ {
		b[i] = ' '
	}
	return Type(binary.BigEndian.Uint32(b[:]))
}

// IsSuperBox reports whether boxes of type t contain only other boxes.
func (t Type) IsSuperBox() bool {
	switch t {
	case TypeJP2Header, TypeResolution, TypeUUIDInfo, TypeAssoc,
		TypeCodestreamH, TypeCompositingLH, TypeColorGroup,
		TypeFragmentTable, TypeComposition, TypeDesiredRepr:
		return true
	default:
		return false
	}
}

// Box represents a JP2 box.
type Box struct {
	Type Type

	// Offset is the position of the box header in its source.
	Offset int64

	// HeaderLength is 8, or 16 when the extended length field was used.
	HeaderLength int

	// Length is the total box length including header. For boxes whose
	// length field was 0 it is the length resolved against the enclosing extent.
	Length uint64

	// ToEOF is set when the length field was 0.
	ToEOF bool

	// Contents holds the payload (excluding header). It is nil for payloads
	// that were left on disk; use Section to read them.
	Contents []byte

	// Children holds the boxes of a super-box, in order.
	Children []*Box
}

// DataOffset returns the source offset of the payload.
func (b *Box) DataOffset() int64 {
	return b.Offset + int64(b.headerLength())
}

// DataLength returns the payload length.
func (b *Box) DataLength() int64 {
	return int64(b.Length) - int64(b.headerLength())
}

func (b *Box) headerLength() int {
	if b.HeaderLength == 0 {
		if b.Length > 0xFFFFFFFF {
			return 16
		}
		return 8
	}
	return b.HeaderLength
}

// Header returns the box header bytes, laid out exactly as they were read.
func (b *Box) Header() []byte {
	if b.headerLength() == 16 {
		header := make([]byte, 16)
		binary.BigEndian.PutUint32(header[0:4], 1)
		binary.BigEndian.PutUint32(header[4:8], uint32(b.Type))
		binary.BigEndian.PutUint64(header[8:16], b.Length)
		return header
	}
	header := make([]byte, 8)
	if !b.ToEOF {
		binary.BigEndian.PutUint32(header[0:4], uint32(b.Length))
	}
	binary.BigEndian.PutUint32(header[4:8], uint32(b.Type))
	return header
}

// Bytes returns the complete box as bytes. The payload must be loaded.
func (b *Box) Bytes() []byte {
	header := b.Header()
	result := make([]byte, len(header)+len(b.Contents))
	copy(result, header)
	copy(result[len(header):], b.Contents)
	return result
}

// Section returns a reader over the payload in src.
func (b *Box) Section(src io.ReaderAt) *io.SectionReader {
	return io.NewSectionReader(src, b.DataOffset(), b.DataLength())
}

// Payload returns the payload, reading it from src when it was not loaded.
func (b *Box) Payload(src io.ReaderAt) ([]byte, error) {
	if b.Contents != nil || b.DataLength() == 0 {
		return b.Contents, nil
	}
	if src == nil {
		return nil, fmt.Errorf("box %s at %d: payload not loaded", b.Type, b.Offset)
	}
	data := make([]byte, b.DataLength())
	if _, err := b.Section(src).ReadAt(data, 0); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("reading %s payload: %w", b.Type, err)
	}
	return data, nil
}

// Child returns the first direct child of type t.
func (b *Box) Child(t Type) *Box {
	for _, c := range b.Children {
		if c.Type == t {
			return c
		}
	}
	return nil
}

// Walk calls fn for every box in boxes in depth-first order. Returning false
// from fn skips the children of that box.
func Walk(boxes []*Box, fn func(b *Box, depth int) bool) {
	walk(boxes, 0, fn)
}

func walk(boxes []*Box, depth int, fn func(b *Box, depth int) bool) {
	for _, b := range boxes {
		if fn(b, depth) {
			walk(b.Children, depth+1, fn)
		}
	}
}

// Find returns the first box of type t anywhere in boxes.
func Find(boxes []*Box, t Type) *Box {
	var found *Box
	Walk(boxes, func(b *Box, _ int) bool {
		if found != nil {
			return false
		}
		if b.Type == t {
			found = b
			return false
		}
		return true
	})
	return found
}

// FindAll returns every box of type t anywhere in boxes.
func FindAll(boxes []*Box, t Type) []*Box {
	var out []*Box
	Walk(boxes, func(b *Box, _ int) bool {
		if b.Type == t {
			out = append(out, b)
		}
		return true
	})
	return out
}

// Writer writes JP2 boxes to a stream.
type Writer struct {
	w   io.Writer
	src io.ReaderAt
}

// NewWriter creates a new box writer. src supplies payloads that were not
// loaded into memory and may be nil.
func NewWriter(w io.Writer, src io.ReaderAt) *Writer {
	return &Writer{w: w, src: src}
}

// WriteBox writes a box to the stream using its original header layout.
func (w *Writer) WriteBox(b *Box) error {
	if _, err := w.w.Write(b.Header()); err != nil {
		return err
	}
	switch {
	case b.Contents != nil || b.DataLength() == 0:
		_, err := w.w.Write(b.Contents)
		return err
	case w.src != nil:
		_, err := io.Copy(w.w, b.Section(w.src))
		return err
	case len(b.Children) > 0:
		for _, c := range b.Children {
			if err := w.WriteBox(c); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("box %s at %d: payload not available", b.Type, b.Offset)
	}
}

// Write serialises boxes to w. For well-formed input parsed by Parse the
// output is identical to the source bytes.
func Write(w io.Writer, boxes []*Box, src io.ReaderAt) error {
	bw := NewWriter(w, src)
	for _, b := range boxes {
		if err := bw.WriteBox(b); err != nil {
			return err
		}
	}
	return nil
}

// WriteSignature writes the JP2 signature.
func (w *Writer) WriteSignature() error {
	_, err := w.w.Write(Signature().Bytes())
	return err
}
