package codestream

import (
	"bytes"
	"encoding/binary"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/mrjoshuak/go-jp2meta/internal/diag"
)

// Segment is one marker, or marker segment, in codestream order.
type Segment struct {
	Marker Marker

	// Offset of the marker in the codestream.
	Offset int

	// Length is the Lxxx field, 0 for markers without one.
	Length int

	// Params holds the segment bytes after the length field.
	Params []byte
}

// End returns the offset just past the segment.
func (s Segment) End() int {
	if s.Length == 0 {
		return s.Offset + 2
	}
	return s.Offset + 2 + s.Length
}

// TilePart indexes one SOT..SOD..data run.
type TilePart struct {
	Tile     uint16
	Part     uint8
	NumParts uint8

	// Offset of the SOT marker.
	Offset int

	// Length is Psot. 0 means the tile-part runs to EOC.
	Length uint32

	// DataOffset and DataLength locate the tile data after SOD.
	DataOffset int
	DataLength int

	// TLMLength is the length announced by TLM, valid when HasTLM is set.
	TLMLength uint32
	HasTLM    bool

	// PacketLengths are the PLT lengths of this tile-part.
	PacketLengths []uint32

	// Truncated is set when a partial scan ended inside the tile data.
	Truncated bool
}

// ActualLength returns the tile-part length measured in the codestream.
func (tp TilePart) ActualLength() int {
	if tp.DataOffset == 0 {
		return 0
	}
	return tp.DataOffset + tp.DataLength - tp.Offset
}

// Codestream is the result of scanning a codestream.
type Codestream struct {
	Segments    []Segment
	TileParts   []TilePart
	TileLengths []TileLength
	Header      *Header

	// Complete is set when EOC was reached.
	Complete bool

	Diagnostics []diag.Event
}

// SegmentsOf returns the segments with marker m.
func (cs *Codestream) SegmentsOf(m Marker) []Segment {
	var out []Segment
	for _, s := range cs.Segments {
		if s.Marker == m {
			out = append(out, s)
		}
	}
	return out
}

// ScanOptions configures Scan.
type ScanOptions struct {
	// StopAtSOD ends the scan at the first SOD, after the main header and
	// the first tile-part header.
	StopAtSOD bool

	// Partial marks data as a prefix of the codestream. A tile-part that
	// runs past the end of the prefix is then not a defect.
	Partial bool

	// Logger receives the diagnostics. Nil selects the standard logger.
	Logger log.FieldLogger
}

// IsCodestream reports whether data starts with SOC followed by SIZ.
func IsCodestream(data []byte) bool {
	return len(data) >= 4 && bytes.Equal(data[:4], []byte{0xFF, 0x4F, 0xFF, 0x51})
}

type scanner struct {
	data []byte
	opts ScanOptions
	cs   *Codestream
	diag *diag.Collector

	// current is the index into cs.TileParts of the tile-part whose header
	// is being read, or -1 in the main header.
	current int
}

// Scan walks the marker segments of a codestream. It never fails: damaged
// segments are reported as MalformedCodestream warnings and the scan
// resumes at the next plausible marker.
func Scan(data []byte, opts ScanOptions) *Codestream {
	s := &scanner{
		data:    data,
		opts:    opts,
		cs:      &Codestream{Header: newHeader()},
		diag:    diag.NewCollector("codestream", opts.Logger),
		current: -1,
	}
	s.run()
	s.crossReference()
	s.cs.Diagnostics = s.diag.Events()
	return s.cs
}

func (s *scanner) warnf(m Marker, offset int, format string, args ...any) {
	err := &SegmentError{Marker: m, Offset: offset, Reason: fmt.Sprintf(format, args...)}
	s.diag.Error(diag.KindMalformedCodestream, diag.SeverityWarning, err)
}

// resync returns the offset of the next plausible marker at or after from,
// or -1.
func (s *scanner) resync(from int) int {
	for i := from; i+1 < len(s.data); i++ {
		if s.data[i] != 0xFF {
			continue
		}
		m := Marker(binary.BigEndian.Uint16(s.data[i:]))
		if m.resyncTarget() {
			return i
		}
	}
	return -1
}

func (s *scanner) skipTo(from int) (int, bool) {
	next := s.resync(from)
	if next < 0 {
		return len(s.data), false
	}
	return next, true
}

func (s *scanner) run() {
	data := s.data
	if len(data) < 2 {
		s.warnf(0, 0, "codestream too short for SOC")
		return
	}

	pos := 0
	for pos+2 <= len(data) {
		m := Marker(binary.BigEndian.Uint16(data[pos:]))
		if data[pos] != 0xFF || !m.Known() {
			s.warnf(0, pos, "expected a marker, found 0x%04X", uint16(m))
			var ok bool
			if pos, ok = s.skipTo(pos + 1); !ok {
				return
			}
			continue
		}
		if pos == 0 && m != SOC {
			s.warnf(m, pos, "codestream does not start with SOC")
		}

		switch m {
		case SOC:
			s.cs.Segments = append(s.cs.Segments, Segment{Marker: m, Offset: pos})
			pos += 2
			continue
		case EOC:
			s.cs.Segments = append(s.cs.Segments, Segment{Marker: m, Offset: pos})
			s.cs.Complete = true
			if pos+2 < len(data) {
				s.warnf(m, pos, "%d bytes follow EOC", len(data)-pos-2)
			}
			return
		case SOD:
			s.cs.Segments = append(s.cs.Segments, Segment{Marker: m, Offset: pos})
			next, stop := s.startData(pos)
			if stop {
				return
			}
			pos = next
			continue
		case SOP, EPH:
			s.warnf(m, pos, "in-packet marker outside tile data")
			var ok bool
			if pos, ok = s.skipTo(pos + 2); !ok {
				return
			}
			continue
		}

		if pos+4 > len(data) {
			s.warnf(m, pos, "segment length truncated")
			return
		}
		length := int(binary.BigEndian.Uint16(data[pos+2:]))
		if length < 2 || pos+2+length > len(data) {
			s.warnf(m, pos, "segment length %d does not fit the codestream", length)
			var ok bool
			if pos, ok = s.skipTo(pos + 2); !ok {
				return
			}
			continue
		}
		seg := Segment{Marker: m, Offset: pos, Length: length, Params: data[pos+4 : pos+2+length]}
		s.cs.Segments = append(s.cs.Segments, seg)
		s.decode(seg)
		pos = seg.End()
	}
	if !s.cs.Complete && !s.opts.StopAtSOD && !s.opts.Partial {
		s.warnf(0, len(data), "codestream ends without EOC")
	}
}

// startData handles SOD at pos and returns where scanning continues.
func (s *scanner) startData(pos int) (next int, stop bool) {
	dataStart := pos + 2
	if s.current < 0 {
		s.warnf(SOD, pos, "SOD outside a tile-part")
		next, ok := s.skipTo(dataStart)
		return next, !ok
	}
	tp := &s.cs.TileParts[s.current]
	s.current = -1

	end := len(s.data)
	toEOC := tp.Length == 0
	if !toEOC {
		end = tp.Offset + int(tp.Length)
		if s.opts.Partial && end > len(s.data) {
			tp.DataOffset = dataStart
			tp.DataLength = len(s.data) - dataStart
			tp.Truncated = true
			return len(s.data), s.opts.StopAtSOD
		}
		if end > len(s.data) || end < dataStart {
			s.warnf(SOT, tp.Offset, "Psot %d does not fit the codestream", tp.Length)
			end = len(s.data)
			toEOC = true
		}
	}
	if toEOC && end-2 >= dataStart && s.data[end-2] == 0xFF && s.data[end-1] == 0xD9 {
		end -= 2
	}
	tp.DataOffset = dataStart
	tp.DataLength = end - dataStart
	tp.Truncated = toEOC && s.opts.Partial
	return end, s.opts.StopAtSOD
}

func (s *scanner) decode(seg Segment) {
	h := s.cs.Header
	var err error
	inTile := s.current >= 0

	if inTile && !seg.Marker.InTileHeader() && seg.Marker != SOT {
		s.warnf(seg.Marker, seg.Offset, "marker not allowed in a tile-part header")
	}

	switch seg.Marker {
	case SIZ:
		if err = DecodeSIZ(seg.Params, h); err == nil {
			err = h.Validate()
		}
	case SOT:
		s.startTilePart(seg)
		return
	case COD:
		var cod CodingStyleDefault
		if cod, err = DecodeCOD(seg.Params); err == nil && !inTile {
			h.CodingStyle = &cod
		}
	case COC:
		var coc CodingStyleComponent
		if coc, err = DecodeCOC(seg.Params, h.NumComponents); err == nil && !inTile {
			h.ComponentCodingStyles[coc.ComponentIndex] = coc
		}
	case QCD:
		var q QuantizationDefault
		if q, err = DecodeQCD(seg.Params); err == nil && !inTile {
			h.Quantization = &q
		}
	case QCC:
		var q QuantizationComponent
		if q, err = DecodeQCC(seg.Params, h.NumComponents); err == nil && !inTile {
			h.ComponentQuantization[q.ComponentIndex] = q
		}
	case RGN:
		var rgn RegionOfInterest
		if rgn, err = DecodeRGN(seg.Params, h.NumComponents); err == nil && !inTile {
			h.Regions = append(h.Regions, rgn)
		}
	case POC:
		var pocs []ProgressionOrderChange
		if pocs, err = DecodePOC(seg.Params, h.NumComponents); err == nil && !inTile {
			h.ProgressionOrderChanges = append(h.ProgressionOrderChanges, pocs...)
		}
	case TLM:
		var tlm TLMSegment
		tlm, err = DecodeTLM(seg.Params, len(s.cs.TileLengths))
		s.cs.TileLengths = append(s.cs.TileLengths, tlm.Entries...)
	case PLM:
		var lengths []uint32
		_, lengths, err = DecodePLM(seg.Params)
		h.PacketLengths = append(h.PacketLengths, lengths...)
	case PLT:
		var lengths []uint32
		_, lengths, err = DecodePLT(seg.Params)
		if inTile {
			tp := &s.cs.TileParts[s.current]
			tp.PacketLengths = append(tp.PacketLengths, lengths...)
		}
	case PPM:
		if len(seg.Params) > 0 {
			h.PackedPacketHeaders = append(h.PackedPacketHeaders, seg.Params[1:]...)
		}
	case CRG:
		var regs []ComponentRegistration
		if regs, err = DecodeCRG(seg.Params, h.NumComponents); err == nil {
			h.Registration = regs
		}
	case COM:
		var com Comment
		if com, err = DecodeCOM(seg.Params); err == nil {
			h.Comments = append(h.Comments, com)
		}
	case CAP:
		h.Capabilities, err = DecodeCAP(seg.Params)
	}
	if err != nil {
		s.warnf(seg.Marker, seg.Offset, "%v", err)
	}
}

func (s *scanner) startTilePart(seg Segment) {
	if s.current >= 0 {
		s.warnf(SOT, seg.Offset, "SOT before the SOD of the previous tile-part")
	}
	sot, err := DecodeSOT(seg.Params)
	if err != nil {
		s.warnf(SOT, seg.Offset, "%v", err)
		s.current = -1
		return
	}
	if sot.Length != 0 && sot.Length < 14 {
		s.warnf(SOT, seg.Offset, "Psot %d smaller than the SOT and SOD markers", sot.Length)
		sot.Length = 0
	}
	s.cs.TileParts = append(s.cs.TileParts, TilePart{
		Tile:     sot.Tile,
		Part:     sot.Part,
		NumParts: sot.NumParts,
		Offset:   seg.Offset,
		Length:   sot.Length,
	})
	s.current = len(s.cs.TileParts) - 1
}

// crossReference matches TLM entries to tile-parts in encounter order and
// checks PLT totals against the tile data.
func (s *scanner) crossReference() {
	tlm := s.cs.TileLengths
	for i := range s.cs.TileParts {
		tp := &s.cs.TileParts[i]
		if len(tp.PacketLengths) > 0 && tp.DataOffset > 0 && !tp.Truncated {
			var sum uint64
			for _, l := range tp.PacketLengths {
				sum += uint64(l)
			}
			if sum > uint64(tp.DataLength) {
				s.warnf(PLT, tp.Offset, "packet lengths total %d bytes, more than the %d bytes of tile data",
					sum, tp.DataLength)
			}
		}

		if len(tlm) == 0 {
			continue
		}
		if i >= len(tlm) {
			s.warnf(TLM, tp.Offset, "no TLM entry for tile-part %d", i)
			continue
		}
		e := tlm[i]
		tp.TLMLength = e.Length
		tp.HasTLM = true
		if !e.Implicit && e.TileIndex != tp.Tile {
			s.warnf(TLM, tp.Offset, "TLM entry %d names tile %d, tile-part belongs to tile %d",
				i, e.TileIndex, tp.Tile)
		}
		want := int(tp.Length)
		if want == 0 {
			want = tp.ActualLength()
		}
		if tp.DataOffset > 0 && !tp.Truncated && int(e.Length) != want {
			s.warnf(TLM, tp.Offset, "TLM length %d disagrees with tile-part length %d", e.Length, want)
		}
	}
	if len(tlm) > len(s.cs.TileParts) && s.cs.Complete {
		s.warnf(TLM, 0, "%d TLM entries for %d tile-parts", len(tlm), len(s.cs.TileParts))
	}
}
