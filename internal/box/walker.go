package box

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// ErrMalformedContainer is returned when box framing violates the length or
// nesting rules so badly that byte offsets can no longer be tracked.
var ErrMalformedContainer = errors.New("malformed JP2 container")

// FramingError describes a box framing violation.
type FramingError struct {
	Offset int64
	Type   Type
	Reason string
}

func (e *FramingError) Error() string {
	if e.Type != 0 {
		return fmt.Sprintf("box %q at offset %d: %s", e.Type.String(), e.Offset, e.Reason)
	}
	return fmt.Sprintf("box at offset %d: %s", e.Offset, e.Reason)
}

func (e *FramingError) Unwrap() error {
	return ErrMalformedContainer
}

const (
	// DefaultMaxPayload is the largest leaf payload loaded into memory.
	DefaultMaxPayload = 16 << 20

	maxDepth = 32
)

// Option configures Parse.
type Option func(c *walkConfig)

type walkConfig struct {
	maxPayload int64
	lazy       map[Type]bool
}

// WithMaxPayload sets the largest payload loaded into Box.Contents.
// Larger payloads stay in the source and are read through Box.Section.
func WithMaxPayload(n int64) Option {
	return func(c *walkConfig) {
		c.maxPayload = n
	}
}

// WithLoadedCodestream loads contiguous codestream payloads into memory
// (subject to the payload limit). By default they are left in the source.
func WithLoadedCodestream() Option {
	return func(c *walkConfig) {
		delete(c.lazy, TypeContCodestream)
	}
}

// Parse reads the box hierarchy of the size bytes in src.
func Parse(src io.ReaderAt, size int64, opts ...Option) ([]*Box, error) {
	cfg := &walkConfig{
		maxPayload: DefaultMaxPayload,
		lazy:       map[Type]bool{TypeContCodestream: true},
	}
	for _, opt := range opts {
		opt(cfg)
	}
	p := &walker{src: src, cfg: cfg}
	return p.parseRange(0, size, 0)
}

// ParseBytes reads the box hierarchy of data, loading every payload.
func ParseBytes(data []byte) ([]*Box, error) {
	return Parse(bytes.NewReader(data), int64(len(data)),
		WithLoadedCodestream(), WithMaxPayload(int64(len(data))))
}

type walker struct {
	src io.ReaderAt
	cfg *walkConfig
}

// parseRange reads consecutive boxes filling [start, end).
func (p *walker) parseRange(start, end int64, depth int) ([]*Box, error) {
	if depth > maxDepth {
		return nil, &FramingError{Offset: start, Reason: "super-box nesting too deep"}
	}
	var boxes []*Box
	pos := start
	for pos < end {
		b, err := p.readHeader(pos, end)
		if err != nil {
			return nil, err
		}
		if b.Type.IsSuperBox() {
			children, err := p.parseRange(b.DataOffset(), b.Offset+int64(b.Length), depth+1)
			if err != nil {
				return nil, err
			}
			b.Children = children
		}
		if b.DataLength() > 0 && b.DataLength() <= p.cfg.maxPayload && !p.cfg.lazy[b.Type] {
			data := make([]byte, b.DataLength())
			if _, err := p.src.ReadAt(data, b.DataOffset()); err != nil && !errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("reading %s payload: %w", b.Type, err)
			}
			b.Contents = data
		} else if b.DataLength() == 0 {
			b.Contents = []byte{}
		}
		boxes = append(boxes, b)
		pos = b.Offset + int64(b.Length)
	}
	return boxes, nil
}

// readHeader reads the box header at pos, which must lie before end.
func (p *walker) readHeader(pos, end int64) (*Box, error) {
	if end-pos < 8 {
		return nil, &FramingError{Offset: pos, Reason: fmt.Sprintf("%d trailing bytes cannot hold a box header", end-pos)}
	}
	var header [16]byte
	if _, err := p.src.ReadAt(header[:8], pos); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("reading box header at %d: %w", pos, err)
	}

	b := &Box{
		Offset:       pos,
		HeaderLength: 8,
		Type:         Type(binary.BigEndian.Uint32(header[4:8])),
	}
	length := uint64(binary.BigEndian.Uint32(header[0:4]))

	switch length {
	case 1:
		if end-pos < 16 {
			return nil, &FramingError{Offset: pos, Type: b.Type, Reason: "extended length header truncated"}
		}
		if _, err := p.src.ReadAt(header[8:16], pos+8); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("reading extended length at %d: %w", pos+8, err)
		}
		length = binary.BigEndian.Uint64(header[8:16])
		b.HeaderLength = 16
	case 0:
		// Box extends to the end of the enclosing extent, so it is
		// necessarily the last sibling.
		b.ToEOF = true
		length = uint64(end - pos)
	}

	if length < uint64(b.HeaderLength) {
		return nil, &FramingError{Offset: pos, Type: b.Type, Reason: fmt.Sprintf("length %d smaller than header", length)}
	}
	if length > uint64(end-pos) {
		return nil, &FramingError{Offset: pos, Type: b.Type,
			Reason: fmt.Sprintf("length %d exceeds the %d bytes available", length, end-pos)}
	}
	b.Length = length
	return b, nil
}
