package report

import (
	"fmt"
	"strings"

	"github.com/mrjoshuak/go-jp2meta/internal/box"
	"github.com/mrjoshuak/go-jp2meta/internal/codestream"
)

func field(name, format string, args ...any) box.Field {
	return box.Field{Name: name, Value: fmt.Sprintf(format, args...)}
}

// segmentFields decodes the parameters of seg for display. nc tracks the
// component count announced by SIZ, which COC, QCC and friends depend on.
func segmentFields(seg codestream.Segment, nc *uint16) ([]box.Field, error) {
	switch seg.Marker {
	case codestream.SIZ:
		var h codestream.Header
		if err := codestream.DecodeSIZ(seg.Params, &h); err != nil {
			return nil, err
		}
		*nc = h.NumComponents
		fs := []box.Field{
			field("Rsiz", "%d", h.Profile),
			field("Xsiz", "%d", h.ImageWidth),
			field("Ysiz", "%d", h.ImageHeight),
			field("XOsiz", "%d", h.ImageXOffset),
			field("YOsiz", "%d", h.ImageYOffset),
			field("XTsiz", "%d", h.TileWidth),
			field("YTsiz", "%d", h.TileHeight),
			field("XTOsiz", "%d", h.TileXOffset),
			field("YTOsiz", "%d", h.TileYOffset),
			field("Csiz", "%d", h.NumComponents),
		}
		for i, c := range h.ComponentInfo {
			sign := "unsigned"
			if c.IsSigned() {
				sign = "signed"
			}
			fs = append(fs,
				field(fmt.Sprintf("Ssiz%d", i), "%d bits, %s", c.Precision(), sign),
				field(fmt.Sprintf("XRsiz%d", i), "%d", c.SubsamplingX),
				field(fmt.Sprintf("YRsiz%d", i), "%d", c.SubsamplingY))
		}
		return fs, nil

	case codestream.COD:
		cod, err := codestream.DecodeCOD(seg.Params)
		if err != nil {
			return nil, err
		}
		fs := []box.Field{
			field("Scod", "0x%02X", cod.CodingStyle),
			field("SGcod_Progress", "%s", cod.ProgressionOrder),
			field("SGcod_NumLayers", "%d", cod.NumLayers),
			field("SGcod_MCT", "%d", cod.MultipleComponentXf),
		}
		fs = append(fs, spcodFields(cod.NumDecompositions, cod.CodeBlockWidthExp, cod.CodeBlockHeightExp,
			cod.CodeBlockStyle, cod.WaveletTransform, cod.PrecinctSizes)...)
		return fs, nil

	case codestream.COC:
		coc, err := codestream.DecodeCOC(seg.Params, *nc)
		if err != nil {
			return nil, err
		}
		fs := []box.Field{
			field("Ccoc", "%d", coc.ComponentIndex),
			field("Scoc", "0x%02X", coc.CodingStyle),
		}
		fs = append(fs, spcodFields(coc.NumDecompositions, coc.CodeBlockWidthExp, coc.CodeBlockHeightExp,
			coc.CodeBlockStyle, coc.WaveletTransform, coc.PrecinctSizes)...)
		return fs, nil

	case codestream.QCD:
		q, err := codestream.DecodeQCD(seg.Params)
		if err != nil {
			return nil, err
		}
		return quantizationFields(q), nil

	case codestream.QCC:
		q, err := codestream.DecodeQCC(seg.Params, *nc)
		if err != nil {
			return nil, err
		}
		return append([]box.Field{field("Cqcc", "%d", q.ComponentIndex)}, quantizationFields(q.QuantizationDefault)...), nil

	case codestream.POC:
		pocs, err := codestream.DecodePOC(seg.Params, *nc)
		if err != nil {
			return nil, err
		}
		var fs []box.Field
		for i, p := range pocs {
			fs = append(fs, field(fmt.Sprintf("Change%d", i),
				"RSpoc=%d CSpoc=%d LYEpoc=%d REpoc=%d CEpoc=%d Ppoc=%s",
				p.ResolutionStart, p.ComponentStart, p.LayerEnd, p.ResolutionEnd, p.ComponentEnd, p.ProgressionOrder))
		}
		return fs, nil

	case codestream.TLM:
		tlm, err := codestream.DecodeTLM(seg.Params, 0)
		if err != nil {
			return nil, err
		}
		fs := []box.Field{field("Ztlm", "%d", tlm.Index)}
		for i, e := range tlm.Entries {
			name := fmt.Sprintf("Ptlm%d", i)
			if e.Implicit {
				fs = append(fs, field(name, "%d", e.Length))
			} else {
				fs = append(fs, field(name, "Ttlm=%d %d", e.TileIndex, e.Length))
			}
		}
		return fs, nil

	case codestream.PLT, codestream.PLM:
		decode := codestream.DecodePLT
		if seg.Marker == codestream.PLM {
			decode = codestream.DecodePLM
		}
		index, lengths, err := decode(seg.Params)
		if err != nil {
			return nil, err
		}
		var total uint64
		for _, l := range lengths {
			total += uint64(l)
		}
		return []box.Field{
			field("Z"+strings.ToLower(seg.Marker.String()), "%d", index),
			field("Packets", "%d", len(lengths)),
			field("Total", "%d", total),
		}, nil

	case codestream.SOT:
		sot, err := codestream.DecodeSOT(seg.Params)
		if err != nil {
			return nil, err
		}
		return []box.Field{
			field("Isot", "%d", sot.Tile),
			field("Psot", "%d", sot.Length),
			field("TPsot", "%d", sot.Part),
			field("TNsot", "%d", sot.NumParts),
		}, nil

	case codestream.COM:
		com, err := codestream.DecodeCOM(seg.Params)
		if err != nil {
			return nil, err
		}
		if com.Registration == codestream.CommentLatin1 {
			return []box.Field{field("Rcom", "1 (Latin-1)"), field("COM", "%s", com.Text)}, nil
		}
		return []box.Field{field("Rcom", "%d (binary)", com.Registration), field("COM", "%d bytes", len(com.Data))}, nil

	case codestream.CAP:
		capm, err := codestream.DecodeCAP(seg.Params)
		if err != nil {
			return nil, err
		}
		fs := []box.Field{field("Pcap", "0x%08X", capm.Pcap)}
		if capm.IsHTJ2K() {
			fs = append(fs, field("HTJ2K", "yes"))
		}
		for i, c := range capm.CCAPi {
			fs = append(fs, field(fmt.Sprintf("Ccap%d", i+1), "0x%04X", c))
		}
		return fs, nil

	case codestream.RGN:
		rgn, err := codestream.DecodeRGN(seg.Params, *nc)
		if err != nil {
			return nil, err
		}
		return []box.Field{
			field("Crgn", "%d", rgn.Component),
			field("Srgn", "%d", rgn.Style),
			field("SPrgn", "%d", rgn.Shift),
		}, nil

	case codestream.CRG:
		regs, err := codestream.DecodeCRG(seg.Params, *nc)
		if err != nil {
			return nil, err
		}
		var fs []box.Field
		for i, r := range regs {
			fs = append(fs, field(fmt.Sprintf("CRG%d", i), "Xcrg=%d Ycrg=%d", r.X, r.Y))
		}
		return fs, nil
	}
	return nil, nil
}

func spcodFields(decomp, xcb, ycb, style, transform uint8, precincts []codestream.PrecinctSize) []box.Field {
	wavelet := "9-7 irreversible"
	if transform == 1 {
		wavelet = "5-3 reversible"
	}
	fs := []box.Field{
		field("SPcod_NumDecompositions", "%d", decomp),
		field("SPcod_xcb_minus_2", "%d (%d)", xcb, 1<<(xcb+2)),
		field("SPcod_ycb_minus_2", "%d (%d)", ycb, 1<<(ycb+2)),
		field("SPcod_cbstyle", "0x%02X%s", style, codeBlockStyle(style)),
		field("SPcod_transformation", "%d (%s)", transform, wavelet),
	}
	for i, p := range precincts {
		fs = append(fs, field(fmt.Sprintf("SPcod_Precinct%d", i), "%dx%d", p.Width(), p.Height()))
	}
	return fs
}

func codeBlockStyle(style uint8) string {
	names := []struct {
		bit  uint8
		name string
	}{
		{codestream.CodeBlockBypass, "BYPASS"},
		{codestream.CodeBlockReset, "RESET"},
		{codestream.CodeBlockTermination, "TERMALL"},
		{codestream.CodeBlockVerticalCausal, "VSC"},
		{codestream.CodeBlockPredictableTermination, "PREDICTABLE"},
		{codestream.CodeBlockSegmentationSymbols, "SEGSYM"},
		{codestream.CodeBlockHT, "HT"},
	}
	var set []string
	for _, n := range names {
		if style&n.bit != 0 {
			set = append(set, n.name)
		}
	}
	if len(set) == 0 {
		return ""
	}
	return " (" + strings.Join(set, " ") + ")"
}

func quantizationFields(q codestream.QuantizationDefault) []box.Field {
	style := "unknown"
	switch q.QuantizationStyle {
	case codestream.QuantizationNone:
		style = "none"
	case codestream.QuantizationScalarDerived:
		style = "scalar derived"
	case codestream.QuantizationScalarExpounded:
		style = "scalar expounded"
	}
	return []box.Field{
		field("Style", "%d (%s)", q.QuantizationStyle, style),
		field("GuardBits", "%d", q.NumGuardBits),
		field("StepSizes", "%d", len(q.StepSizes)),
	}
}
