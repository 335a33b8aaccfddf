package georef

import (
	"encoding/binary"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrjoshuak/go-jp2meta/internal/box"
	"github.com/mrjoshuak/go-jp2meta/internal/crs"
	"github.com/mrjoshuak/go-jp2meta/internal/diag"
	"github.com/mrjoshuak/go-jp2meta/internal/geotiff"
	"github.com/mrjoshuak/go-jp2meta/internal/gml"
)

const wkt4326 = `GEOGCS["WGS 84",DATUM["WGS_1984",SPHEROID["WGS 84",6378137,298.257223563,AUTHORITY["EPSG","7030"]],AUTHORITY["EPSG","6326"]],PRIMEM["Greenwich",0,AUTHORITY["EPSG","8901"]],UNIT["degree",0.0174532925199433,AUTHORITY["EPSG","9122"]],AXIS["Latitude",NORTH],AXIS["Longitude",EAST],AUTHORITY["EPSG","4326"]]`

// gridFor returns a grid whose corner geotransform, in document order, is
// the north-up transform (x0, px, 0, y0, 0, -py) with the first axis along
// the first coordinate.
func gridFor(srsName string, x0, px, y0, py float64, axes ...string) *gml.Grid {
	return &gml.Grid{
		SRSName:       srsName,
		Origin:        [2]float64{x0 + px/2, y0 - py/2},
		OffsetVectors: [2][2]float64{{px, 0}, {0, -py}},
		AxisNames:     axes,
	}
}

// latLongGrid is gridFor with coordinates written latitude first.
func latLongGrid(srsName string, lon0, px, lat0, py float64) *gml.Grid {
	return &gml.Grid{
		SRSName:       srsName,
		Origin:        [2]float64{lat0 - py/2, lon0 + px/2},
		OffsetVectors: [2][2]float64{{0, px}, {-py, 0}},
	}
}

func gmlBoxes(g *gml.Grid) *box.Box {
	return box.NewAssoc("gml.data",
		box.NewAssoc("gml.root-instance", box.NewXML(string(g.Document()))))
}

func geoJP2Box(in *geotiff.Info) *box.Box {
	return box.NewUUID(box.UUIDGeoJP2, geotiff.Encode(in))
}

func geoJP2Info(epsg uint16, x0, px, y0, py float64) *geotiff.Info {
	modelType := uint16(geotiff.ModelTypeProjected)
	key := uint16(geotiff.KeyProjectedCSType)
	if epsg > 4000 && epsg < 5000 {
		modelType, key = geotiff.ModelTypeGeographic, geotiff.KeyGeographicType
	}
	return &geotiff.Info{
		Tiepoints:  []geotiff.Tiepoint{{X: x0, Y: y0}},
		PixelScale: []float64{px, py, 0},
		Keys: []geotiff.KeyEntry{
			{ID: geotiff.KeyModelType, Short: []uint16{modelType}},
			{ID: geotiff.KeyRasterType, Short: []uint16{geotiff.RasterPixelIsArea}},
			{ID: key, Short: []uint16{epsg}},
		},
	}
}

func assertGeoTransform(t *testing.T, want, got [6]float64, delta float64) {
	t.Helper()
	for i := range want {
		assert.InDelta(t, want[i], got[i], delta, "gt[%d]", i)
	}
}

func TestResolve_GeoJP2Only(t *testing.T) {
	res := Resolve([]*box.Box{
		box.Signature(),
		geoJP2Box(geoJP2Info(32631, 440720, 60, 3751320, 60)),
	}, Options{})

	ref := res.GeoReference
	assert.Equal(t, SourceGeoJP2, ref.Source)
	assert.True(t, ref.HasGeoTransform)
	assert.Equal(t, [6]float64{440720, 60, 0, 3751320, 0, -60}, ref.GeoTransform)
	require.NotNil(t, ref.SRS)
	assert.Equal(t, 32631, ref.SRS.EPSG())
	assert.False(t, ref.AxisOrderApplied)
	assert.Empty(t, res.Diagnostics)
}

func TestResolve_EnvelopeSRSIgnoringAxisOrientation(t *testing.T) {
	const px = 0.000761397164
	grid := gridFor("", 8, px, 50, px)
	doc := strings.Replace(string(grid.Document()), "<gml:featureMember>",
		`<gml:boundedBy><gml:Envelope srsName="urn:ogc:def:crs:EPSG::4326"><gml:lowerCorner>49 8</gml:lowerCorner><gml:upperCorner>50 9</gml:upperCorner></gml:Envelope></gml:boundedBy><gml:featureMember>`, 1)
	boxes := []*box.Box{box.NewAssoc("gml.data", box.NewAssoc("gml.root-instance", box.NewXML(doc)))}

	res := Resolve(boxes, Options{IgnoreAxisOrientation: true})
	ref := res.GeoReference
	assert.Equal(t, SourceGMLJP2, ref.Source)
	assert.False(t, ref.AxisOrderApplied)
	require.NotNil(t, ref.SRS)
	assert.Equal(t, wkt4326, ref.SRS.WKT())
	assert.InDelta(t, 8, ref.GeoTransform[0], 1e-9)
	assert.InDelta(t, 50, ref.GeoTransform[3], 1e-9)
	assert.InDelta(t, px, ref.GeoTransform[1], 5e-12)
	assert.InDelta(t, -px, ref.GeoTransform[5], 5e-12)

	res = Resolve(boxes, Options{})
	assert.True(t, res.GeoReference.AxisOrderApplied)
	assert.InDelta(t, 50, res.GeoReference.GeoTransform[0], 1e-9)
}

func TestResolve_LatLongAxisSwap(t *testing.T) {
	want := [6]float64{42.999583333333369, 0.008271349862259, 0, 34.000416666666631, 0, -0.008271349862259}
	grid := latLongGrid("urn:ogc:def:crs:EPSG::4326", want[0], want[1], want[3], -want[5])

	res := Resolve([]*box.Box{gmlBoxes(grid)}, Options{})
	ref := res.GeoReference
	assert.True(t, ref.AxisOrderApplied)
	assertGeoTransform(t, want, ref.GeoTransform, 1e-12)
	assert.Equal(t, "4326", ref.SRS.Code)
}

func TestResolve_ExplicitAxisNamesWin(t *testing.T) {
	grid := gridFor("EPSG:3035", 4895766.000000001, 2, 2296946.0, 2, "easting", "northing")

	res := Resolve([]*box.Box{gmlBoxes(grid)}, Options{})
	ref := res.GeoReference
	assert.False(t, ref.AxisOrderApplied)
	assertGeoTransform(t, [6]float64{4895766.000000001, 2, 0, 2296946.0, 0, -2}, ref.GeoTransform, 1e-6)
	code, ok := ref.SRS.AuthorityCode("")
	assert.True(t, ok)
	assert.Equal(t, "3035", code)
	assert.Equal(t, 1, diag.Count(res.Diagnostics, diag.KindGeoreferencing))

	grid.AxisNames = nil
	ref = Resolve([]*box.Box{gmlBoxes(grid)}, Options{}).GeoReference
	assert.True(t, ref.AxisOrderApplied, "northing/easting CRS without axis names is swapped")
	assert.InDelta(t, 2296946.0, ref.GeoTransform[0], 1e-6)
}

func TestResolve_NorthEastAxisNamesOnEastNorthCRS(t *testing.T) {
	grid := latLongGrid("EPSG:32631", 440720, 60, 3751320, 60)
	grid.AxisNames = []string{"northing", "easting"}

	res := Resolve([]*box.Box{gmlBoxes(grid)}, Options{})
	ref := res.GeoReference
	assert.True(t, ref.AxisOrderApplied)
	assertGeoTransform(t, [6]float64{440720, 60, 0, 3751320, 0, -60}, ref.GeoTransform, 1e-6)
	assert.Equal(t, 1, diag.Count(res.Diagnostics, diag.KindGeoreferencing))

	ref = Resolve([]*box.Box{gmlBoxes(grid)}, Options{IgnoreAxisOrientation: true}).GeoReference
	assert.False(t, ref.AxisOrderApplied)
	assert.InDelta(t, 3751320, ref.GeoTransform[0], 1e-6)
}

func TestResolve_UserDefinedGeoJP2LosesToGML(t *testing.T) {
	bogus := geoJP2Info(geotiff.UserDefined, 0, 1, 0, 1)
	grid := gridFor("EPSG:25833", 356000, 0.5, 7596000, 0.5)

	res := Resolve([]*box.Box{geoJP2Box(bogus), gmlBoxes(grid)}, Options{PreferGeoJP2: true})
	ref := res.GeoReference
	assert.Equal(t, SourceGMLJP2, ref.Source)
	assert.Equal(t, [6]float64{356000, 0.5, 0, 7596000, 0, -0.5}, ref.GeoTransform)
	assert.True(t, strings.HasPrefix(ref.SRS.WKT(), `PROJCS["ETRS89`))
}

func TestResolve_Precedence(t *testing.T) {
	geo := geoJP2Box(geoJP2Info(32631, 440720, 60, 3751320, 60))
	same := gmlBoxes(gridFor("EPSG:32631", 440720.0004, 60, 3751320, 60))
	different := gmlBoxes(gridFor("EPSG:32631", 440000, 60, 3751320, 60))

	tests := []struct {
		name     string
		gml      *box.Box
		opts     Options
		source   Source
		x0       float64
		warnings int
	}{
		{"agree", same, Options{}, SourceGMLJP2, 440720.0004, 0},
		{"agree prefer GeoJP2", same, Options{PreferGeoJP2: true}, SourceGeoJP2, 440720, 0},
		{"disagree", different, Options{}, SourceGMLJP2, 440000, 1},
		{"disagree prefer GeoJP2", different, Options{PreferGeoJP2: true}, SourceGeoJP2, 440720, 1},
		{"tight tolerance", same, Options{ProjectedTolerance: 1e-6}, SourceGMLJP2, 440720.0004, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Resolve([]*box.Box{geo, tt.gml}, tt.opts)
			assert.Equal(t, tt.source, res.GeoReference.Source)
			assert.InDelta(t, tt.x0, res.GeoReference.GeoTransform[0], 1e-9)
			assert.Len(t, diag.Filter(res.Diagnostics, diag.KindGeoreferencing), tt.warnings)
		})
	}
}

func TestResolve_SRSMergedFromOtherSource(t *testing.T) {
	info := geoJP2Info(32631, 440720, 60, 3751320, 60)
	info.Keys = info.Keys[:2]
	grid := gridFor("EPSG:32631", 440720, 60, 3751320, 60)

	ref := Resolve([]*box.Box{geoJP2Box(info), gmlBoxes(grid)}, Options{PreferGeoJP2: true}).GeoReference
	assert.Equal(t, SourceGeoJP2, ref.Source)
	require.NotNil(t, ref.SRS)
	assert.Equal(t, 32631, ref.SRS.EPSG())
}

func TestResolve_GCPs(t *testing.T) {
	info := &geotiff.Info{
		Tiepoints: []geotiff.Tiepoint{{X: 2, Y: 49}, {I: 100, X: 3, Y: 49}, {J: 100, X: 2, Y: 48}},
		Keys: []geotiff.KeyEntry{
			{ID: geotiff.KeyModelType, Short: []uint16{geotiff.ModelTypeGeographic}},
			{ID: geotiff.KeyGeographicType, Short: []uint16{4326}},
		},
	}
	ref := Resolve([]*box.Box{geoJP2Box(info)}, Options{}).GeoReference
	assert.Equal(t, SourceGeoJP2, ref.Source)
	assert.False(t, ref.HasGeoTransform)
	assert.Equal(t, IdentityGeoTransform, ref.GeoTransform)
	assert.Len(t, ref.GCPs, 3)
	assert.Equal(t, 4326, ref.SRS.EPSG())
}

func msigPayload(w [6]float64) []byte {
	out := []byte("MSIG/1.0")
	out = append(out, make([]byte, msigParamOffset-len(out))...)
	for _, v := range w {
		out = binary.LittleEndian.AppendUint64(out, math.Float64bits(v))
	}
	return out
}

func TestResolve_MSIGFallback(t *testing.T) {
	msig := box.NewUUID(box.UUIDMSIG, msigPayload([6]float64{10, 0, 0, -10, 105, 195}))
	res := Resolve([]*box.Box{msig}, Options{})
	assert.Equal(t, SourceMSIG, res.GeoReference.Source)
	assert.Equal(t, [6]float64{100, 10, 0, 200, 0, -10}, res.GeoReference.GeoTransform)

	// MSIG only applies when the GeoJP2/GMLJP2 boxes produced nothing.
	geo := geoJP2Box(geoJP2Info(32631, 440720, 60, 3751320, 60))
	res = Resolve([]*box.Box{geo, msig}, Options{})
	assert.Equal(t, SourceGeoJP2, res.GeoReference.Source)
}

func TestResolve_WorldFileFallback(t *testing.T) {
	var asked []string
	read := func(name string) ([]byte, error) {
		asked = append(asked, name)
		if name == "/data/scene.wld" {
			return []byte("10\n0\n0\n-10\n105\n195\n"), nil
		}
		return nil, errors.New("not found")
	}

	res := Resolve(nil, Options{Path: "/data/scene.jp2", ReadFile: read})
	assert.Equal(t, SourceWorldFile, res.GeoReference.Source)
	assert.Equal(t, [6]float64{100, 10, 0, 200, 0, -10}, res.GeoReference.GeoTransform)
	assert.Equal(t, []string{"/data/scene.wld"}, res.Files)
	assert.Equal(t, []string{"/data/scene.j2w", "/data/scene.J2W", "/data/scene.wld"}, asked)

	// The world file keeps a CRS declared by a GeoJP2 box without transform.
	info := &geotiff.Info{Keys: []geotiff.KeyEntry{
		{ID: geotiff.KeyModelType, Short: []uint16{geotiff.ModelTypeProjected}},
		{ID: geotiff.KeyProjectedCSType, Short: []uint16{32631}},
	}}
	res = Resolve([]*box.Box{geoJP2Box(info)}, Options{Path: "/data/scene.jp2", ReadFile: read})
	assert.Equal(t, SourceWorldFile, res.GeoReference.Source)
	assert.Equal(t, 32631, res.GeoReference.SRS.EPSG())
}

func TestResolve_Nothing(t *testing.T) {
	res := Resolve([]*box.Box{box.Signature(), box.FileType()}, Options{})
	assert.Equal(t, SourceNone, res.GeoReference.Source)
	assert.Equal(t, IdentityGeoTransform, res.GeoReference.GeoTransform)
	assert.False(t, res.GeoReference.HasGeoTransform)
	assert.Nil(t, res.GeoReference.SRS)
	assert.Empty(t, res.Diagnostics)
}

func TestResolve_BadSources(t *testing.T) {
	badGML := box.NewAssoc("gml.data", box.NewAssoc("gml.root-instance", box.NewXML("<FeatureCollection/>")))
	badGeo := box.NewUUID(box.UUIDGeoJP2, []byte("not a tiff"))
	unknownSRS := gmlBoxes(gridFor("EPSG:999999", 0, 1, 0, 1))

	res := Resolve([]*box.Box{badGML, badGeo}, Options{})
	assert.Equal(t, SourceNone, res.GeoReference.Source)
	assert.Equal(t, 2, diag.Count(res.Diagnostics, diag.KindGeoreferencing))

	res = Resolve([]*box.Box{unknownSRS}, Options{})
	assert.Equal(t, SourceGMLJP2, res.GeoReference.Source)
	assert.Nil(t, res.GeoReference.SRS)
	require.Len(t, res.Diagnostics, 1)
	assert.ErrorIs(t, res.Diagnostics[0].Err, crs.ErrUnknownCRS)
}

func TestFindGML(t *testing.T) {
	other := box.NewAssoc("gml.other", box.NewXML("<a/>"))
	root := box.NewAssoc("gml.root-instance", box.NewXML("<b/>"))
	data := box.NewAssoc("gml.data", other, root)
	free := box.NewXML("<c/>")
	boxes := []*box.Box{free, data}

	label, x := FindGML(boxes)
	assert.Equal(t, "gml.root-instance", label)
	assert.Equal(t, []byte("<b/>"), x.Contents)
	assert.True(t, IsGMLBox(boxes, other.Children[1]))
	assert.False(t, IsGMLBox(boxes, free))

	label, x = FindGML([]*box.Box{box.NewAssoc("gml.data", other)})
	assert.Equal(t, "gml.other", label)
	assert.NotNil(t, x)

	_, x = FindGML([]*box.Box{free})
	assert.Nil(t, x)
}

func TestResolve_SinglePrecisionGeoJP2(t *testing.T) {
	info := geoJP2Info(32631, 440720.3, 60, 3751320, 60)
	info.SinglePrecision = true
	grid := gmlBoxes(gridFor("EPSG:32631", 440720.3, 60, 3751320, 60))

	res := Resolve([]*box.Box{geoJP2Box(info), grid}, Options{PreferGeoJP2: true})
	assert.Equal(t, SourceGeoJP2, res.GeoReference.Source)
	assert.Equal(t, float64(float32(440720.3)), res.GeoReference.GeoTransform[0])
	assert.Zero(t, diag.Count(res.Diagnostics, diag.KindGeoreferencing))

	// The same values stored as DOUBLE are held to the full tolerance.
	info = geoJP2Info(32631, float64(float32(440720.3)), 60, 3751320, 60)
	res = Resolve([]*box.Box{geoJP2Box(info), grid}, Options{PreferGeoJP2: true})
	assert.Equal(t, 1, diag.Count(res.Diagnostics, diag.KindGeoreferencing))
}

func TestNearlyEqual(t *testing.T) {
	assert.True(t, NearlyEqual(1.0, 1.0+1e-8, DefaultGeographicTolerance))
	assert.False(t, NearlyEqual(1.0, 1.0+1e-6, DefaultGeographicTolerance))
	assert.True(t, NearlyEqual(float32(2.5), float32(2.5004), float32(1e-3)))
	assert.True(t, GeoTransformsEqual(IdentityGeoTransform, IdentityGeoTransform, 0))
	assert.False(t, GeoTransformsEqual(IdentityGeoTransform, SwapAxes(IdentityGeoTransform), 0.5))
}

func TestParseWorldFile(t *testing.T) {
	gt, err := ParseWorldFile([]byte("  2\r\n0\r\n0\r\n-2\r\n\r\n1001\r\n1999\r\n"))
	require.NoError(t, err)
	assert.Equal(t, [6]float64{1000, 2, 0, 2000, 0, -2}, gt)

	for _, bad := range []string{"1\n2\n3\n", "1\n0\n0\nx\n0\n0\n", "0\n0\n0\n0\n0\n0\n"} {
		_, err := ParseWorldFile([]byte(bad))
		assert.ErrorIs(t, err, ErrBadFallback, bad)
	}
}

func TestParseMSIG(t *testing.T) {
	_, err := ParseMSIG([]byte("MSIG/short"))
	assert.ErrorIs(t, err, ErrBadFallback)
	payload := msigPayload([6]float64{1, 0, 0, -1, 0.5, 0.5})
	payload[0] = 'X'
	_, err = ParseMSIG(payload)
	assert.ErrorIs(t, err, ErrBadFallback)
}
