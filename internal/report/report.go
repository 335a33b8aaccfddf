// Package report renders a human-readable dump of the box and codestream
// structure of a JPEG 2000 file.
package report

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
	"github.com/zeebo/blake3"

	"github.com/mrjoshuak/go-jp2meta/internal/box"
	"github.com/mrjoshuak/go-jp2meta/internal/codestream"
	"github.com/mrjoshuak/go-jp2meta/internal/diag"
)

// TruncatedMessage is the message of the diagnostic raised when the dump
// exceeds Options.MaxLines.
const TruncatedMessage = "structure dump truncated, increase maxLines"

const indentUnit = "  "

// Result is a rendered structure dump.
type Result struct {
	Text string

	// Lines is the number of lines in Text.
	Lines int

	// Truncated is set when output stopped at Options.MaxLines.
	Truncated bool

	Diagnostics []diag.Event
}

type reporter struct {
	src   io.ReaderAt
	opts  Options
	dc    *diag.Collector
	lines []string
	full  bool
}

// Report renders boxes. src supplies payloads the box walker left on disk.
func Report(boxes []*box.Box, src io.ReaderAt, opts Options) Result {
	r := newReporter(src, opts)
	r.boxes(boxes, 0)
	return r.finish()
}

// ReportCodestream renders a raw codestream with no box wrapper. The marker
// listing is always produced.
func ReportCodestream(data []byte, opts Options) Result {
	r := newReporter(nil, opts)
	r.codestream(data, 0)
	return r.finish()
}

func newReporter(src io.ReaderAt, opts Options) *reporter {
	return &reporter{src: src, opts: opts, dc: diag.NewCollector("report", opts.Logger)}
}

// printf adds a line at depth. It reports false once MaxLines is reached.
func (r *reporter) printf(depth int, format string, args ...any) bool {
	if r.full {
		return false
	}
	if r.opts.MaxLines > 0 && len(r.lines) >= r.opts.MaxLines {
		r.full = true
		return false
	}
	r.lines = append(r.lines, strings.Repeat(indentUnit, depth)+fmt.Sprintf(format, args...))
	return true
}

func (r *reporter) finish() Result {
	if r.full {
		r.dc.Warnf(diag.KindStructureTruncated, TruncatedMessage)
	}
	var b strings.Builder
	for _, l := range r.lines {
		b.WriteString(l)
		b.WriteByte('\n')
	}
	return Result{
		Text:        b.String(),
		Lines:       len(r.lines),
		Truncated:   r.full,
		Diagnostics: r.dc.Events(),
	}
}

func (r *reporter) boxes(boxes []*box.Box, depth int) {
	for _, b := range boxes {
		if r.full {
			return
		}
		r.box(b, depth)
	}
}

func (r *reporter) box(b *box.Box, depth int) {
	extra := ""
	if b.ToEOF {
		extra = " to_eof"
	}
	if !r.printf(depth, "Box %q offset=%d length=%d (%s) data_offset=%d data_length=%d%s",
		b.Type.String(), b.Offset, b.Length, humanize.IBytes(b.Length), b.DataOffset(), b.DataLength(), extra) {
		return
	}

	if b.Type.IsSuperBox() {
		r.boxes(b.Children, depth+1)
		return
	}

	if r.opts.Digest {
		r.digest(b, depth+1)
	}

	if b.Type == box.TypeContCodestream {
		if r.opts.Codestream {
			if data := r.payload(b, depth+1); data != nil {
				r.codestream(data, depth+1)
			}
		}
		return
	}

	data := r.payload(b, depth+1)
	if data == nil && b.DataLength() > 0 {
		return
	}

	if dec := box.DecoderFor(b.Type); dec != nil {
		if err := dec.Parse(data); err != nil {
			r.dc.Error(diag.KindMalformedContainer, diag.SeverityWarning, fmt.Errorf("box %s at %d: %w", b.Type, b.Offset, err))
			r.printf(depth+1, "Error: %v", err)
		} else {
			for _, f := range dec.Fields() {
				if !r.printf(depth+1, "%s: %s", f.Name, f.Value) {
					return
				}
			}
		}
	}

	switch b.Type {
	case box.TypeXML, box.TypeIPR:
		if r.opts.TextContent {
			r.text(data, depth+1)
		} else if r.opts.BinaryContent && !isText(data) {
			r.hexDump(data, depth+1)
		}
	case box.TypeUUID:
		id, payload, ok := box.UUIDOf(b)
		if !ok {
			return
		}
		switch {
		case id == box.UUIDXMP && r.opts.TextContent:
			r.text(payload, depth+1)
		case r.opts.BinaryContent:
			r.hexDump(payload, depth+1)
		}
	default:
		if box.DecoderFor(b.Type) == nil && r.opts.BinaryContent {
			r.hexDump(data, depth+1)
		}
	}
}

// payload returns the box payload, reading it from the source when needed.
// A read failure is reported and yields nil.
func (r *reporter) payload(b *box.Box, depth int) []byte {
	data, err := b.Payload(r.src)
	if err != nil {
		r.dc.Error(diag.KindMalformedContainer, diag.SeverityWarning, err)
		r.printf(depth, "Error: %v", err)
		return nil
	}
	return data
}

func (r *reporter) digest(b *box.Box, depth int) {
	h := blake3.New()
	switch {
	case b.Contents != nil || b.DataLength() == 0:
		h.Write(b.Contents)
	case r.src != nil:
		if _, err := io.Copy(h, b.Section(r.src)); err != nil {
			r.dc.Error(diag.KindMalformedContainer, diag.SeverityWarning, fmt.Errorf("digest of %s at %d: %w", b.Type, b.Offset, err))
			return
		}
	default:
		return
	}
	r.printf(depth, "BLAKE3: %s", hex.EncodeToString(h.Sum(nil)))
}

func (r *reporter) text(data []byte, depth int) {
	data = bytes.TrimRight(data, "\x00")
	for _, line := range strings.Split(strings.TrimRight(string(data), "\r\n"), "\n") {
		if !r.printf(depth, "%s", strings.TrimRight(line, "\r")) {
			return
		}
	}
}

// hexDump prints data 16 bytes per line with an ASCII column.
func (r *reporter) hexDump(data []byte, depth int) {
	for off := 0; off < len(data); off += 16 {
		row := data[off:min(off+16, len(data))]
		ascii := make([]byte, len(row))
		for i, c := range row {
			if c >= 0x20 && c < 0x7F {
				ascii[i] = c
			} else {
				ascii[i] = '.'
			}
		}
		if !r.printf(depth, "%08x  %-47s  |%s|", off, fmt.Sprintf("% x", row), ascii) {
			return
		}
	}
}

func isText(data []byte) bool {
	data = bytes.TrimRight(data, "\x00")
	return utf8.Valid(data) && bytes.IndexByte(data, 0) < 0
}

func (r *reporter) codestream(data []byte, depth int) {
	if !codestream.IsCodestream(data) {
		r.dc.Warnf(diag.KindMalformedCodestream, "codestream does not start with SOC and SIZ")
		r.printf(depth, "Error: not a JPEG 2000 codestream")
		return
	}
	cs := codestream.Scan(data, codestream.ScanOptions{StopAtSOD: r.opts.StopAtSOD, Logger: r.opts.Logger})
	r.dc.Merge(cs.Diagnostics)

	tiles := make(map[int]codestream.TilePart, len(cs.TileParts))
	for _, tp := range cs.TileParts {
		tiles[tp.DataOffset-2] = tp
	}

	var nc uint16
	for _, seg := range cs.Segments {
		var ok bool
		if seg.Marker.HasLength() {
			ok = r.printf(depth, "Marker %s offset=%d length=%d", seg.Marker, seg.Offset, seg.Length)
		} else {
			ok = r.printf(depth, "Marker %s offset=%d", seg.Marker, seg.Offset)
		}
		if !ok {
			return
		}
		if seg.Marker == codestream.SOD {
			if tp, found := tiles[seg.Offset]; found {
				r.printf(depth+1, "Tile data: %d bytes", tp.DataLength)
			}
			continue
		}
		fields, err := segmentFields(seg, &nc)
		if err != nil {
			r.printf(depth+1, "Error: %v", err)
			continue
		}
		for _, f := range fields {
			if !r.printf(depth+1, "%s: %s", f.Name, f.Value) {
				return
			}
		}
	}
	if !cs.Complete && r.opts.StopAtSOD {
		r.printf(depth, "Stopped at SOD")
	}
}
