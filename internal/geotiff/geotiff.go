// Package geotiff reads the georeferencing tags of the degenerate GeoTIFF
// carried in a GeoJP2 uuid box.
//
// Only the first IFD is read. Image data is never touched.
package geotiff

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrFormat is returned for data that is not a readable TIFF.
var ErrFormat = errors.New("malformed GeoTIFF")

// TIFF tags used by GeoTIFF.
const (
	TagImageWidth          = 256
	TagImageLength         = 257
	TagModelPixelScale     = 33550
	TagModelTiepoint       = 33922
	TagModelTransformation = 34264
	TagGeoKeyDirectory     = 34735
	TagGeoDoubleParams     = 34736
	TagGeoASCIIParams      = 34737
)

// GeoKey identifiers.
const (
	KeyModelType        = 1024
	KeyRasterType       = 1025
	KeyCitation         = 1026
	KeyGeographicType   = 2048
	KeyGeogCitation     = 2049
	KeyGeogAngularUnits = 2054
	KeyProjectedCSType  = 3072
	KeyPCSCitation      = 3073
	KeyProjLinearUnits  = 3076
	KeyVerticalCSType   = 4096
)

// Model types (KeyModelType).
const (
	ModelTypeProjected  = 1
	ModelTypeGeographic = 2
	ModelTypeGeocentric = 3
)

// Raster types (KeyRasterType).
const (
	RasterPixelIsArea  = 1
	RasterPixelIsPoint = 2
)

// UserDefined is the GeoKey value for a user-defined code.
const UserDefined = 32767

// TIFF field types.
const (
	typeByte     = 1
	typeASCII    = 2
	typeShort    = 3
	typeLong     = 4
	typeRational = 5
	typeFloat    = 11
	typeDouble   = 12
)

var typeSizes = map[uint16]int{
	typeByte: 1, typeASCII: 1, typeShort: 2, typeLong: 4, typeRational: 8, typeFloat: 4, typeDouble: 8,
}

// KeyEntry is one GeoKey. Values stored in the directory itself or in the
// SHORT params are in Short; those in GeoDoubleParams in Doubles; those in
// GeoAsciiParams in ASCII.
type KeyEntry struct {
	ID      uint16
	Short   []uint16
	Doubles []float64
	ASCII   string
}

// Tiepoint maps raster (I, J, K) to model (X, Y, Z).
type Tiepoint struct {
	I, J, K float64
	X, Y, Z float64
}

// GCP is a ground control point.
type GCP struct {
	ID    string
	Pixel float64
	Line  float64
	X     float64
	Y     float64
	Z     float64
}

// Info is the georeferencing content of a GeoTIFF.
type Info struct {
	Width, Height  uint32
	Tiepoints      []Tiepoint
	PixelScale     []float64
	Transformation []float64
	Keys           []KeyEntry
	KeyVersion     [3]uint16

	// SinglePrecision is set when the model tags are FLOAT rather than
	// DOUBLE.
	SinglePrecision bool
}

// Key returns the entry for id.
func (in *Info) Key(id uint16) (KeyEntry, bool) {
	for _, k := range in.Keys {
		if k.ID == id {
			return k, true
		}
	}
	return KeyEntry{}, false
}

// ShortKey returns the first SHORT value of key id, or 0.
func (in *Info) ShortKey(id uint16) uint16 {
	k, ok := in.Key(id)
	if !ok || len(k.Short) == 0 {
		return 0
	}
	return k.Short[0]
}

// Citation returns the most specific citation key present.
func (in *Info) Citation() string {
	for _, id := range []uint16{KeyPCSCitation, KeyCitation, KeyGeogCitation} {
		if k, ok := in.Key(id); ok && k.ASCII != "" {
			return k.ASCII
		}
	}
	return ""
}

// PixelIsPoint reports whether the raster space is PixelIsPoint.
func (in *Info) PixelIsPoint() bool {
	return in.ShortKey(KeyRasterType) == RasterPixelIsPoint
}

// EPSG returns the EPSG code declared for the model CRS, 0 when none is
// declared and UserDefined for user-defined systems.
func (in *Info) EPSG() int {
	switch in.ShortKey(KeyModelType) {
	case ModelTypeProjected:
		return int(in.ShortKey(KeyProjectedCSType))
	case ModelTypeGeographic:
		return int(in.ShortKey(KeyGeographicType))
	}
	if c := in.ShortKey(KeyProjectedCSType); c != 0 {
		return int(c)
	}
	return int(in.ShortKey(KeyGeographicType))
}

// GeoTransform returns the affine transform from pixel/line to model
// coordinates, in the top-left corner convention. It reports false when the
// tags describe GCPs or nothing at all.
func (in *Info) GeoTransform() ([6]float64, bool) {
	var gt [6]float64
	switch {
	case len(in.Transformation) == 16:
		m := in.Transformation
		gt = [6]float64{m[3], m[0], m[1], m[7], m[4], m[5]}
	case len(in.Tiepoints) == 1 && len(in.PixelScale) >= 2:
		tp, sx, sy := in.Tiepoints[0], in.PixelScale[0], in.PixelScale[1]
		gt = [6]float64{tp.X - tp.I*sx, sx, 0, tp.Y + tp.J*sy, 0, -sy}
	default:
		return gt, false
	}
	if in.PixelIsPoint() {
		gt[0] -= gt[1]*0.5 + gt[2]*0.5
		gt[3] -= gt[4]*0.5 + gt[5]*0.5
	}
	return gt, true
}

// GCPs returns ground control points when several tiepoints are given
// without a pixel scale or transformation.
func (in *Info) GCPs() []GCP {
	if len(in.Tiepoints) < 2 || len(in.PixelScale) > 0 || len(in.Transformation) > 0 {
		return nil
	}
	out := make([]GCP, len(in.Tiepoints))
	for i, tp := range in.Tiepoints {
		out[i] = GCP{ID: fmt.Sprint(i + 1), Pixel: tp.I, Line: tp.J, X: tp.X, Y: tp.Y, Z: tp.Z}
	}
	return out
}

type field struct {
	tag   uint16
	typ   uint16
	count uint32
	data  []byte
}

// Decode reads the GeoTIFF tags from data.
func Decode(data []byte) (*Info, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("%w: %d bytes", ErrFormat, len(data))
	}
	var order binary.ByteOrder
	switch string(data[:2]) {
	case "II":
		order = binary.LittleEndian
	case "MM":
		order = binary.BigEndian
	default:
		return nil, fmt.Errorf("%w: bad byte order mark %q", ErrFormat, data[:2])
	}
	if magic := order.Uint16(data[2:4]); magic != 42 {
		return nil, fmt.Errorf("%w: magic %d", ErrFormat, magic)
	}
	ifd := int(order.Uint32(data[4:8]))
	if ifd < 8 || ifd+2 > len(data) {
		return nil, fmt.Errorf("%w: IFD offset %d out of range", ErrFormat, ifd)
	}
	n := int(order.Uint16(data[ifd:]))
	if ifd+2+n*12 > len(data) {
		return nil, fmt.Errorf("%w: IFD with %d entries truncated", ErrFormat, n)
	}

	fields := make(map[uint16]field, n)
	for i := 0; i < n; i++ {
		e := data[ifd+2+i*12:]
		f := field{tag: order.Uint16(e), typ: order.Uint16(e[2:]), count: order.Uint32(e[4:])}
		size, ok := typeSizes[f.typ]
		if !ok {
			continue
		}
		total := int64(size) * int64(f.count)
		if total <= 4 {
			f.data = e[8 : 8+total]
		} else {
			off := int64(order.Uint32(e[8:]))
			if off+total > int64(len(data)) {
				return nil, fmt.Errorf("%w: tag %d value overruns data", ErrFormat, f.tag)
			}
			f.data = data[off : off+total]
		}
		fields[f.tag] = f
	}

	in := &Info{}
	if f, ok := fields[TagImageWidth]; ok {
		in.Width = uintValue(f, order)
	}
	if f, ok := fields[TagImageLength]; ok {
		in.Height = uintValue(f, order)
	}
	for _, tag := range []uint16{TagModelPixelScale, TagModelTiepoint, TagModelTransformation} {
		if f, ok := fields[tag]; ok && f.typ == typeFloat {
			in.SinglePrecision = true
		}
	}
	if f, ok := fields[TagModelPixelScale]; ok {
		in.PixelScale = doubles(f, order)
	}
	if f, ok := fields[TagModelTiepoint]; ok {
		v := doubles(f, order)
		for i := 0; i+6 <= len(v); i += 6 {
			in.Tiepoints = append(in.Tiepoints, Tiepoint{v[i], v[i+1], v[i+2], v[i+3], v[i+4], v[i+5]})
		}
	}
	if f, ok := fields[TagModelTransformation]; ok {
		if v := doubles(f, order); len(v) == 16 {
			in.Transformation = v
		}
	}
	if f, ok := fields[TagGeoKeyDirectory]; ok {
		var dbl []float64
		var ascii string
		if d, ok := fields[TagGeoDoubleParams]; ok {
			dbl = doubles(d, order)
		}
		if a, ok := fields[TagGeoASCIIParams]; ok {
			ascii = string(a.data)
		}
		if err := in.decodeKeys(shorts(f, order), dbl, ascii); err != nil {
			return nil, err
		}
	}
	return in, nil
}

func (in *Info) decodeKeys(dir []uint16, dbl []float64, ascii string) error {
	if len(dir) < 4 {
		return fmt.Errorf("%w: GeoKeyDirectory header truncated", ErrFormat)
	}
	in.KeyVersion = [3]uint16{dir[0], dir[1], dir[2]}
	n := int(dir[3])
	if 4+n*4 > len(dir) {
		return fmt.Errorf("%w: GeoKeyDirectory declares %d keys in %d values", ErrFormat, n, len(dir))
	}
	for i := 0; i < n; i++ {
		e := dir[4+i*4:]
		id, loc, count, off := e[0], e[1], int(e[2]), int(e[3])
		k := KeyEntry{ID: id}
		switch loc {
		case 0:
			k.Short = []uint16{e[3]}
		case TagGeoKeyDirectory:
			if off+count <= len(dir) {
				k.Short = append([]uint16(nil), dir[off:off+count]...)
			}
		case TagGeoDoubleParams:
			if off+count <= len(dbl) {
				k.Doubles = append([]float64(nil), dbl[off:off+count]...)
			}
		case TagGeoASCIIParams:
			if off+count <= len(ascii) {
				k.ASCII = strings.TrimRight(ascii[off:off+count], "|\x00")
			}
		}
		in.Keys = append(in.Keys, k)
	}
	return nil
}

func uintValue(f field, order binary.ByteOrder) uint32 {
	switch {
	case f.typ == typeShort && len(f.data) >= 2:
		return uint32(order.Uint16(f.data))
	case f.typ == typeLong && len(f.data) >= 4:
		return order.Uint32(f.data)
	}
	return 0
}

func shorts(f field, order binary.ByteOrder) []uint16 {
	if f.typ != typeShort {
		return nil
	}
	out := make([]uint16, len(f.data)/2)
	for i := range out {
		out[i] = order.Uint16(f.data[i*2:])
	}
	return out
}

func doubles(f field, order binary.ByteOrder) []float64 {
	if f.typ == typeFloat {
		out := make([]float64, len(f.data)/4)
		for i := range out {
			out[i] = float64(math.Float32frombits(order.Uint32(f.data[i*4:])))
		}
		return out
	}
	if f.typ != typeDouble {
		return nil
	}
	out := make([]float64, len(f.data)/8)
	for i := range out {
		out[i] = math.Float64frombits(order.Uint64(f.data[i*8:]))
	}
	return out
}
