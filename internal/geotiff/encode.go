package geotiff

import (
	"encoding/binary"
	"math"
	"sort"
)

// Encode writes in as a little-endian degenerate GeoTIFF: one IFD, no
// image data.
func Encode(in *Info) []byte {
	order := binary.LittleEndian
	type entry struct {
		tag   uint16
		typ   uint16
		count uint32
		data  []byte
	}
	var entries []entry
	addDoubles := func(tag uint16, v []float64) {
		if len(v) == 0 {
			return
		}
		var b []byte
		typ := uint16(typeDouble)
		if tag != TagGeoDoubleParams && in.SinglePrecision {
			typ = typeFloat
			for _, f := range v {
				b = order.AppendUint32(b, math.Float32bits(float32(f)))
			}
		} else {
			for _, f := range v {
				b = order.AppendUint64(b, math.Float64bits(f))
			}
		}
		entries = append(entries, entry{tag, typ, uint32(len(v)), b})
	}
	addLong := func(tag uint16, v uint32) {
		entries = append(entries, entry{tag, typeLong, 1, order.AppendUint32(nil, v)})
	}

	if in.Width > 0 {
		addLong(TagImageWidth, in.Width)
	}
	if in.Height > 0 {
		addLong(TagImageLength, in.Height)
	}
	addDoubles(TagModelPixelScale, in.PixelScale)
	var tp []float64
	for _, t := range in.Tiepoints {
		tp = append(tp, t.I, t.J, t.K, t.X, t.Y, t.Z)
	}
	addDoubles(TagModelTiepoint, tp)
	addDoubles(TagModelTransformation, in.Transformation)

	if len(in.Keys) > 0 {
		version := in.KeyVersion
		if version == [3]uint16{} {
			version = [3]uint16{1, 1, 0}
		}
		dir := []uint16{version[0], version[1], version[2], uint16(len(in.Keys))}
		var extra []uint16
		var dbl []float64
		var ascii []byte
		extraBase := 4 + 4*len(in.Keys)
		for _, k := range in.Keys {
			switch {
			case k.ASCII != "":
				dir = append(dir, k.ID, TagGeoASCIIParams, uint16(len(k.ASCII)+1), uint16(len(ascii)))
				ascii = append(append(ascii, k.ASCII...), '|')
			case len(k.Doubles) > 0:
				dir = append(dir, k.ID, TagGeoDoubleParams, uint16(len(k.Doubles)), uint16(len(dbl)))
				dbl = append(dbl, k.Doubles...)
			case len(k.Short) == 1:
				dir = append(dir, k.ID, 0, 1, k.Short[0])
			default:
				dir = append(dir, k.ID, TagGeoKeyDirectory, uint16(len(k.Short)), uint16(extraBase+len(extra)))
				extra = append(extra, k.Short...)
			}
		}
		dir = append(dir, extra...)
		b := make([]byte, 0, len(dir)*2)
		for _, v := range dir {
			b = order.AppendUint16(b, v)
		}
		entries = append(entries, entry{TagGeoKeyDirectory, typeShort, uint32(len(dir)), b})
		addDoubles(TagGeoDoubleParams, dbl)
		if len(ascii) > 0 {
			ascii = append(ascii, 0)
			entries = append(entries, entry{TagGeoASCIIParams, typeASCII, uint32(len(ascii)), ascii})
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].tag < entries[j].tag })

	out := []byte{'I', 'I', 42, 0}
	out = order.AppendUint32(out, 8)
	out = order.AppendUint16(out, uint16(len(entries)))
	valueOff := 8 + 2 + 12*len(entries) + 4
	var values []byte
	for _, e := range entries {
		out = order.AppendUint16(out, e.tag)
		out = order.AppendUint16(out, e.typ)
		out = order.AppendUint32(out, e.count)
		if len(e.data) <= 4 {
			var inline [4]byte
			copy(inline[:], e.data)
			out = append(out, inline[:]...)
			continue
		}
		out = order.AppendUint32(out, uint32(valueOff+len(values)))
		values = append(values, e.data...)
	}
	out = order.AppendUint32(out, 0)
	return append(out, values...)
}
