package crs

import (
	"fmt"
	"strconv"
	"strings"
)

// SetFromUserInput resolves a CRS reference as found in srsName attributes
// and user configuration:
//
//	EPSG:n, EPSGA:n
//	urn:ogc:def:crs:EPSG::n, urn:ogc:def:crs:EPSG:<version>:n
//	urn:x-ogc:def:crs:EPSG:n
//	http(s)://www.opengis.net/def/crs/EPSG/0/n
//	http://www.opengis.net/gml/srs/epsg.xml#n
//	urn:ogc:def:crs:OGC:1.3:CRS84, CRS:84, OGC:CRS84
//	urn:ogc:def:crs:OGC::AUTO42001:lon:lat, AUTO:42001,<unit>,lon,lat
//
// EPSG references resolve through cat with the authority axis order.
func SetFromUserInput(cat Catalog, input string) (*SpatialRef, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return nil, fmt.Errorf("empty CRS reference: %w", ErrUnknownCRS)
	}
	lower := strings.ToLower(s)

	switch lower {
	case "urn:ogc:def:crs:ogc:1.3:crs84", "urn:ogc:def:crs:ogc::crs84", "crs:84", "ogc:crs84",
		"http://www.opengis.net/def/crs/ogc/1.3/crs84":
		return CRS84(), nil
	}

	if code, ok := epsgCode(lower); ok {
		if cat == nil {
			cat = DefaultCatalog()
		}
		return cat.FromEPSG(code)
	}
	if lon, lat, ok := auto42001(lower); ok {
		return AutoUTM(lon, lat)
	}
	return nil, fmt.Errorf("%q: %w", input, ErrUnknownCRS)
}

// epsgCode extracts the EPSG code from the reference forms EPSG codes are
// written in.
func epsgCode(s string) (int, bool) {
	var rest string
	switch {
	case strings.HasPrefix(s, "epsga:"):
		rest = s[len("epsga:"):]
	case strings.HasPrefix(s, "epsg:"):
		rest = s[len("epsg:"):]
	case strings.HasPrefix(s, "urn:ogc:def:crs:epsg:"), strings.HasPrefix(s, "urn:x-ogc:def:crs:epsg:"):
		// The version field may be empty or numeric; the code is last.
		rest = s[strings.LastIndexByte(s, ':')+1:]
	case strings.HasPrefix(s, "http://www.opengis.net/def/crs/epsg/"),
		strings.HasPrefix(s, "https://www.opengis.net/def/crs/epsg/"):
		rest = s[strings.LastIndexByte(s, '/')+1:]
	case strings.HasPrefix(s, "http://www.opengis.net/gml/srs/epsg.xml#"):
		rest = s[strings.LastIndexByte(s, '#')+1:]
	default:
		return 0, false
	}
	code, err := strconv.Atoi(rest)
	if err != nil || code <= 0 {
		return 0, false
	}
	return code, true
}

func auto42001(s string) (lon, lat float64, ok bool) {
	var fields []string
	switch {
	case strings.HasPrefix(s, "urn:ogc:def:crs:ogc::auto42001:"):
		fields = strings.Split(s[len("urn:ogc:def:crs:ogc::auto42001:"):], ":")
	case strings.HasPrefix(s, "auto:42001,"):
		fields = strings.Split(s[len("auto:42001,"):], ",")
		// An optional unit code precedes lon,lat.
		if len(fields) == 3 {
			fields = fields[1:]
		}
	default:
		return 0, 0, false
	}
	if len(fields) != 2 {
		return 0, 0, false
	}
	lon, err1 := strconv.ParseFloat(fields[0], 64)
	lat, err2 := strconv.ParseFloat(fields[1], 64)
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return lon, lat, true
}
