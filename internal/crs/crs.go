// Package crs describes the coordinate reference systems referenced by JP2
// georeferencing: EPSG definitions, srsName parsing, WKT1 export and the
// authority axis order that drives GML axis swapping.
package crs

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrUnknownCRS is returned when a CRS reference cannot be resolved.
var ErrUnknownCRS = errors.New("unknown coordinate reference system")

// Kind is the family of a SpatialRef.
type Kind int

const (
	KindGeographic Kind = iota
	KindProjected
	KindLocal
)

// Axis direction names as written in WKT1.
const (
	North = "NORTH"
	South = "SOUTH"
	East  = "EAST"
	West  = "WEST"
)

// Axis is one coordinate axis.
type Axis struct {
	Name      string
	Direction string
}

// Ellipsoid is a reference ellipsoid.
type Ellipsoid struct {
	Name          string
	SemiMajor     float64
	InvFlattening float64
	Code          int
}

// Datum is a geodetic datum.
type Datum struct {
	Name      string
	Code      int
	Ellipsoid Ellipsoid
}

// PrimeMeridian is a prime meridian.
type PrimeMeridian struct {
	Name      string
	Longitude float64
	Code      int
}

// Unit is an angular or linear unit.
type Unit struct {
	Name   string
	ToBase float64
	Code   int
}

// Parameter is one projection parameter.
type Parameter struct {
	Name  string
	Value float64
}

// SpatialRef is a coordinate reference system.
type SpatialRef struct {
	Kind Kind
	Name string

	// Authority and Code identify the definition, e.g. "EPSG" and "4326".
	// Both are empty for user-defined systems.
	Authority string
	Code      string

	// Geographic part. For projected systems these describe the base
	// geographic CRS, which is also available as GeogCS.
	Datum         Datum
	PrimeMeridian PrimeMeridian
	AngularUnit   Unit

	// Projected part.
	Projection string
	Parameters []Parameter
	LinearUnit Unit
	GeogCS     *SpatialRef

	// Axes in authority order.
	Axes []Axis
}

var (
	greenwich = PrimeMeridian{Name: "Greenwich", Longitude: 0, Code: 8901}
	degree    = Unit{Name: "degree", ToBase: 0.0174532925199433, Code: 9122}
	metre     = Unit{Name: "metre", ToBase: 1, Code: 9001}

	latLongAxes   = []Axis{{"Latitude", North}, {"Longitude", East}}
	longLatAxes   = []Axis{{"Longitude", East}, {"Latitude", North}}
	eastNorthAxes = []Axis{{"Easting", East}, {"Northing", North}}
	northEastAxes = []Axis{{"Northing", North}, {"Easting", East}}
)

// IsGeographic reports whether s is a geographic CRS.
func (s *SpatialRef) IsGeographic() bool {
	return s != nil && s.Kind == KindGeographic
}

// IsProjected reports whether s is a projected CRS.
func (s *SpatialRef) IsProjected() bool {
	return s != nil && s.Kind == KindProjected
}

// NorthingFirst reports whether the first axis in authority order points
// north or south: latitude/longitude geographic systems and
// northing/easting projected systems.
func (s *SpatialRef) NorthingFirst() bool {
	if s == nil || len(s.Axes) == 0 {
		return false
	}
	d := s.Axes[0].Direction
	return d == North || d == South
}

// IsUserDefined reports whether s carries no authority code.
func (s *SpatialRef) IsUserDefined() bool {
	return s == nil || s.Code == ""
}

// EPSG returns the EPSG code of s, or 0.
func (s *SpatialRef) EPSG() int {
	if s == nil || !strings.EqualFold(s.Authority, "EPSG") {
		return 0
	}
	n, err := strconv.Atoi(s.Code)
	if err != nil {
		return 0
	}
	return n
}

// Same reports whether s and o denote the same definition.
func (s *SpatialRef) Same(o *SpatialRef) bool {
	if s == nil || o == nil {
		return s == o
	}
	if s.Code != "" && o.Code != "" {
		return strings.EqualFold(s.Authority, o.Authority) && s.Code == o.Code
	}
	return s.WKT() == o.WKT()
}

// Clone returns a deep copy of s.
func (s *SpatialRef) Clone() *SpatialRef {
	if s == nil {
		return nil
	}
	c := *s
	c.Parameters = append([]Parameter(nil), s.Parameters...)
	c.Axes = append([]Axis(nil), s.Axes...)
	c.GeogCS = s.GeogCS.Clone()
	return &c
}

// AuthorityCode returns the authority code of a WKT node: "" (or the root
// node name) for the CRS itself, or GEOGCS, DATUM, SPHEROID, PRIMEM, UNIT.
func (s *SpatialRef) AuthorityCode(node string) (string, bool) {
	if s == nil {
		return "", false
	}
	code := func(n int) (string, bool) {
		if n == 0 {
			return "", false
		}
		return strconv.Itoa(n), true
	}
	switch strings.ToUpper(node) {
	case "", s.rootNode():
		return s.Code, s.Code != ""
	case "GEOGCS":
		if s.GeogCS != nil {
			return s.GeogCS.AuthorityCode("")
		}
	case "DATUM":
		return code(s.Datum.Code)
	case "SPHEROID":
		return code(s.Datum.Ellipsoid.Code)
	case "PRIMEM":
		return code(s.PrimeMeridian.Code)
	case "UNIT":
		if s.Kind == KindProjected {
			return code(s.LinearUnit.Code)
		}
		return code(s.AngularUnit.Code)
	}
	return "", false
}

// AuthorityName returns the authority of the root node, e.g. "EPSG".
func (s *SpatialRef) AuthorityName() string {
	if s == nil {
		return ""
	}
	return s.Authority
}

func (s *SpatialRef) rootNode() string {
	switch s.Kind {
	case KindProjected:
		return "PROJCS"
	case KindLocal:
		return "LOCAL_CS"
	default:
		return "GEOGCS"
	}
}

// WKT exports s as WKT1 in the layout GDAL produces, with AXIS and
// AUTHORITY nodes.
func (s *SpatialRef) WKT() string {
	if s == nil {
		return ""
	}
	var b strings.Builder
	switch s.Kind {
	case KindProjected:
		b.WriteString(`PROJCS["` + s.Name + `",`)
		base := s.GeogCS
		if base == nil {
			base = &SpatialRef{Kind: KindGeographic, Name: s.Datum.Name,
				Datum: s.Datum, PrimeMeridian: s.PrimeMeridian, AngularUnit: s.AngularUnit}
		}
		base.writeGeogCS(&b, false)
		b.WriteString(`,PROJECTION["` + s.Projection + `"]`)
		for _, p := range s.Parameters {
			b.WriteString(`,PARAMETER["` + p.Name + `",` + formatNumber(p.Value) + `]`)
		}
		b.WriteString(",")
		writeUnit(&b, s.LinearUnit)
		writeAxes(&b, s.Axes)
		writeAuthority(&b, s.Authority, s.Code)
		b.WriteString("]")
	case KindLocal:
		b.WriteString(`LOCAL_CS["` + s.Name + `",`)
		writeUnit(&b, s.LinearUnit)
		writeAxes(&b, s.Axes)
		b.WriteString("]")
	default:
		s.writeGeogCS(&b, true)
	}
	return b.String()
}

func (s *SpatialRef) writeGeogCS(b *strings.Builder, withAxes bool) {
	e := s.Datum.Ellipsoid
	b.WriteString(`GEOGCS["` + s.Name + `",DATUM["` + s.Datum.Name + `",SPHEROID["` + e.Name + `",` +
		formatNumber(e.SemiMajor) + `,` + formatNumber(e.InvFlattening))
	writeAuthorityCode(b, e.Code)
	b.WriteString("]")
	writeAuthorityCode(b, s.Datum.Code)
	b.WriteString(`],PRIMEM["` + s.PrimeMeridian.Name + `",` + formatNumber(s.PrimeMeridian.Longitude))
	writeAuthorityCode(b, s.PrimeMeridian.Code)
	b.WriteString("],")
	writeUnit(b, s.AngularUnit)
	if withAxes {
		writeAxes(b, s.Axes)
	}
	writeAuthority(b, s.Authority, s.Code)
	b.WriteString("]")
}

func writeUnit(b *strings.Builder, u Unit) {
	b.WriteString(`UNIT["` + u.Name + `",` + formatNumber(u.ToBase))
	writeAuthorityCode(b, u.Code)
	b.WriteString("]")
}

func writeAxes(b *strings.Builder, axes []Axis) {
	for _, a := range axes {
		b.WriteString(`,AXIS["` + a.Name + `",` + a.Direction + `]`)
	}
}

func writeAuthorityCode(b *strings.Builder, code int) {
	if code != 0 {
		writeAuthority(b, "EPSG", strconv.Itoa(code))
	}
}

func writeAuthority(b *strings.Builder, authority, code string) {
	if authority != "" && code != "" {
		b.WriteString(`,AUTHORITY["` + authority + `","` + code + `"]`)
	}
}

// formatNumber prints a WKT number with 15 significant digits.
func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'g', 15, 64)
}

// String returns a short description such as "EPSG:4326 (WGS 84)".
func (s *SpatialRef) String() string {
	if s == nil {
		return "<nil>"
	}
	if s.Code == "" {
		return s.Name
	}
	return fmt.Sprintf("%s:%s (%s)", s.Authority, s.Code, s.Name)
}
