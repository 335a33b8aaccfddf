package crs

import (
	"fmt"
	"strconv"
	"sync"
)

// Catalog resolves EPSG codes to definitions.
type Catalog interface {
	FromEPSG(code int) (*SpatialRef, error)
}

// BuiltinCatalog is a Catalog backed by a table of the EPSG definitions
// commonly met in JP2 georeferencing. Resolved entries are cached.
type BuiltinCatalog struct {
	mu    sync.Mutex
	cache map[int]*SpatialRef
}

// DefaultCatalog returns a new built-in catalog.
func DefaultCatalog() *BuiltinCatalog {
	return &BuiltinCatalog{cache: make(map[int]*SpatialRef)}
}

// FromEPSG returns a copy of the definition for code.
func (c *BuiltinCatalog) FromEPSG(code int) (*SpatialRef, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cache == nil {
		c.cache = make(map[int]*SpatialRef)
	}
	if s, ok := c.cache[code]; ok {
		return s.Clone(), nil
	}
	s := build(code)
	if s == nil {
		return nil, fmt.Errorf("EPSG:%d: %w", code, ErrUnknownCRS)
	}
	c.cache[code] = s
	return s.Clone(), nil
}

var (
	wgs84Ellipsoid = Ellipsoid{Name: "WGS 84", SemiMajor: 6378137, InvFlattening: 298.257223563, Code: 7030}
	grs80Ellipsoid = Ellipsoid{Name: "GRS 1980", SemiMajor: 6378137, InvFlattening: 298.257222101, Code: 7019}
	clarke1866     = Ellipsoid{Name: "Clarke 1866", SemiMajor: 6378206.4, InvFlattening: 294.978698213898, Code: 7008}
	international  = Ellipsoid{Name: "International 1924", SemiMajor: 6378388, InvFlattening: 297, Code: 7022}
	airy1830       = Ellipsoid{Name: "Airy 1830", SemiMajor: 6377563.396, InvFlattening: 299.3249646, Code: 7001}
)

var geographicByCode = map[int]struct {
	name  string
	datum Datum
}{
	4326: {"WGS 84", Datum{Name: "WGS_1984", Code: 6326, Ellipsoid: wgs84Ellipsoid}},
	4258: {"ETRS89", Datum{Name: "European_Terrestrial_Reference_System_1989", Code: 6258, Ellipsoid: grs80Ellipsoid}},
	4269: {"NAD83", Datum{Name: "North_American_Datum_1983", Code: 6269, Ellipsoid: grs80Ellipsoid}},
	4267: {"NAD27", Datum{Name: "North_American_Datum_1927", Code: 6267, Ellipsoid: clarke1866}},
	4171: {"RGF93", Datum{Name: "Reseau_Geodesique_Francais_1993", Code: 6171, Ellipsoid: grs80Ellipsoid}},
	4230: {"ED50", Datum{Name: "European_Datum_1950", Code: 6230, Ellipsoid: international}},
	4277: {"OSGB 1936", Datum{Name: "OSGB_1936", Code: 6277, Ellipsoid: airy1830}},
}

func geographic(code int) *SpatialRef {
	g, ok := geographicByCode[code]
	if !ok {
		return nil
	}
	return &SpatialRef{
		Kind:          KindGeographic,
		Name:          g.name,
		Authority:     "EPSG",
		Code:          strconv.Itoa(code),
		Datum:         g.datum,
		PrimeMeridian: greenwich,
		AngularUnit:   degree,
		Axes:          latLongAxes,
	}
}

func projected(code int, name string, base int, projection string, axes []Axis, params ...Parameter) *SpatialRef {
	g := geographic(base)
	return &SpatialRef{
		Kind:          KindProjected,
		Name:          name,
		Authority:     "EPSG",
		Code:          strconv.Itoa(code),
		Datum:         g.Datum,
		PrimeMeridian: g.PrimeMeridian,
		AngularUnit:   g.AngularUnit,
		Projection:    projection,
		Parameters:    params,
		LinearUnit:    metre,
		GeogCS:        g,
		Axes:          axes,
	}
}

func transverseMercator(lat0, lon0, k, fe, fn float64) []Parameter {
	return []Parameter{
		{"latitude_of_origin", lat0},
		{"central_meridian", lon0},
		{"scale_factor", k},
		{"false_easting", fe},
		{"false_northing", fn},
	}
}

func utm(code int, datumName string, base, zone int, north bool) *SpatialRef {
	hemi, fn := "N", 0.0
	if !north {
		hemi, fn = "S", 10000000
	}
	name := fmt.Sprintf("%s / UTM zone %d%s", datumName, zone, hemi)
	return projected(code, name, base, "Transverse_Mercator", eastNorthAxes,
		transverseMercator(0, float64(6*zone-183), 0.9996, 500000, fn)...)
}

func build(code int) *SpatialRef {
	if g := geographic(code); g != nil {
		return g
	}
	switch {
	case code == 3857:
		return projected(code, "WGS 84 / Pseudo-Mercator", 4326, "Mercator_1SP", eastNorthAxes,
			Parameter{"central_meridian", 0},
			Parameter{"scale_factor", 1},
			Parameter{"false_easting", 0},
			Parameter{"false_northing", 0})
	case code == 3035:
		return projected(code, "ETRS89-extended / LAEA Europe", 4258, "Lambert_Azimuthal_Equal_Area", northEastAxes,
			Parameter{"latitude_of_center", 52},
			Parameter{"longitude_of_center", 10},
			Parameter{"false_easting", 4321000},
			Parameter{"false_northing", 3210000})
	case code == 2154:
		return projected(code, "RGF93 / Lambert-93", 4171, "Lambert_Conformal_Conic_2SP", eastNorthAxes,
			Parameter{"standard_parallel_1", 49},
			Parameter{"standard_parallel_2", 44},
			Parameter{"latitude_of_origin", 46.5},
			Parameter{"central_meridian", 3},
			Parameter{"false_easting", 700000},
			Parameter{"false_northing", 6600000})
	case code == 27700:
		return projected(code, "OSGB 1936 / British National Grid", 4277, "Transverse_Mercator", eastNorthAxes,
			transverseMercator(49, -2, 0.9996012717, 400000, -100000)...)
	case code >= 32601 && code <= 32660:
		return utm(code, "WGS 84", 4326, code-32600, true)
	case code >= 32701 && code <= 32760:
		return utm(code, "WGS 84", 4326, code-32700, false)
	case code >= 25828 && code <= 25838:
		return utm(code, "ETRS89", 4258, code-25800, true)
	case code >= 26901 && code <= 26923:
		return utm(code, "NAD83", 4269, code-26900, true)
	}
	return nil
}

// AutoUTM returns the WGS 84 UTM projection for the zone containing
// (lon, lat), without an authority code.
func AutoUTM(lon, lat float64) (*SpatialRef, error) {
	if lon < -180 || lon > 180 || lat < -90 || lat > 90 {
		return nil, fmt.Errorf("AUTO42001 at %g,%g: %w", lon, lat, ErrUnknownCRS)
	}
	zone := int((lon+180)/6) + 1
	if zone > 60 {
		zone = 60
	}
	north := lat >= 0
	s := utm(0, "WGS 84", 4326, zone, north)
	hemisphere := "Northern"
	if !north {
		hemisphere = "Southern"
	}
	s.Name = fmt.Sprintf("UTM Zone %d, %s Hemisphere", zone, hemisphere)
	s.Authority, s.Code = "", ""
	return s, nil
}

// CRS84 returns WGS 84 with longitude/latitude axis order.
func CRS84() *SpatialRef {
	s := geographic(4326)
	s.Name = "WGS 84 (CRS84)"
	s.Authority, s.Code = "OGC", "CRS84"
	s.Axes = longLatAxes
	return s
}
