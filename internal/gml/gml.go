// Package gml extracts the RectifiedGrid georeferencing from GMLJP2
// documents.
package gml

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/mrjoshuak/go-jp2meta/internal/xmlutil"
)

// ErrNoGrid is returned when a document holds no usable RectifiedGrid.
var ErrNoGrid = errors.New("no usable gml:RectifiedGrid")

// Grid is the content of a gml:RectifiedGrid.
type Grid struct {
	// SRSName is taken from the grid, its origin Point, or the first
	// Envelope in the document, in that order.
	SRSName string

	// Origin is the position of the centre of pixel (0, 0).
	Origin [2]float64

	// OffsetVectors are the model steps for one pixel along each grid axis.
	OffsetVectors [2][2]float64

	// AxisNames holds the declared axis names, if any.
	AxisNames []string

	// Low and High are the grid envelope limits when given.
	Low, High []int
}

// Parse parses a GML document and returns its first RectifiedGrid.
func Parse(data []byte) (*Grid, error) {
	doc, err := xmlutil.Parse(data)
	if err != nil {
		return nil, err
	}
	return FromDocument(doc)
}

// FromDocument returns the first RectifiedGrid of doc.
func FromDocument(doc *xmlutil.Document) (*Grid, error) {
	rg := doc.Find("RectifiedGrid")
	if rg == nil {
		return nil, ErrNoGrid
	}
	g := &Grid{SRSName: rg.Attr("srsName")}

	point := rg.Walk("origin", "Point")
	if point == nil {
		return nil, fmt.Errorf("%w: missing origin Point", ErrNoGrid)
	}
	text := point.PathText("pos")
	if text == "" {
		text = point.PathText("coordinates")
	}
	origin, err := numbers(text)
	if err != nil || len(origin) < 2 {
		return nil, fmt.Errorf("%w: bad origin %q", ErrNoGrid, text)
	}
	g.Origin = [2]float64{origin[0], origin[1]}
	if g.SRSName == "" {
		g.SRSName = point.Attr("srsName")
	}

	vectors := rg.ChildrenNamed("offsetVector")
	if len(vectors) < 2 {
		return nil, fmt.Errorf("%w: %d offsetVector elements", ErrNoGrid, len(vectors))
	}
	for i := 0; i < 2; i++ {
		v, err := numbers(vectors[i].Text())
		if err != nil || len(v) < 2 {
			return nil, fmt.Errorf("%w: bad offsetVector %q", ErrNoGrid, vectors[i].Text())
		}
		g.OffsetVectors[i] = [2]float64{v[0], v[1]}
	}

	for _, n := range rg.ChildrenNamed("axisName") {
		g.AxisNames = append(g.AxisNames, n.Text())
	}
	if len(g.AxisNames) == 0 {
		g.AxisNames = strings.Fields(rg.PathText("axisLabels"))
	}

	if env := rg.Walk("limits", "GridEnvelope"); env != nil {
		g.Low, _ = integers(env.PathText("low"))
		g.High, _ = integers(env.PathText("high"))
	}

	if g.SRSName == "" {
		if env := doc.Find("Envelope"); env != nil {
			g.SRSName = env.Attr("srsName")
		}
	}
	return g, nil
}

// GeoTransform returns the affine transform in the top-left corner
// convention, in the order the coordinates are written in the document.
func (g *Grid) GeoTransform() [6]float64 {
	gt := [6]float64{
		g.Origin[0], g.OffsetVectors[0][0], g.OffsetVectors[1][0],
		g.Origin[1], g.OffsetVectors[0][1], g.OffsetVectors[1][1],
	}
	gt[0] -= gt[1]*0.5 + gt[2]*0.5
	gt[3] -= gt[4]*0.5 + gt[5]*0.5
	return gt
}

// ExplicitEastNorth reports whether the axis names declare an
// easting/longitude first axis and a northing/latitude second axis.
func (g *Grid) ExplicitEastNorth() bool {
	if len(g.AxisNames) < 2 {
		return false
	}
	return isEastName(g.AxisNames[0]) && isNorthName(g.AxisNames[1])
}

// ExplicitNorthEast reports whether the axis names declare a
// northing/latitude first axis and an easting/longitude second axis.
func (g *Grid) ExplicitNorthEast() bool {
	if len(g.AxisNames) < 2 {
		return false
	}
	return isNorthName(g.AxisNames[0]) && isEastName(g.AxisNames[1])
}

func isEastName(s string) bool {
	s = strings.ToLower(s)
	return s == "x" || s == "e" || strings.HasPrefix(s, "east") || strings.HasPrefix(s, "lon")
}

func isNorthName(s string) bool {
	s = strings.ToLower(s)
	return s == "y" || s == "n" || strings.HasPrefix(s, "north") || strings.HasPrefix(s, "lat")
}

// numbers parses a blank or comma separated list of numbers.
func numbers(s string) ([]float64, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
	out := make([]float64, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func integers(s string) ([]int, error) {
	var out []int
	for _, f := range strings.Fields(s) {
		v, err := strconv.Atoi(f)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Document renders g as a minimal GMLJP2 feature collection holding one
// RectifiedGridCoverage. The srsName is written on the RectifiedGrid.
func (g *Grid) Document() []byte {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	b.WriteString(`<gml:FeatureCollection xmlns:gml="http://www.opengis.net/gml">` + "\n")
	b.WriteString("  <gml:featureMember>\n    <gml:FeatureCollection>\n      <gml:featureMember>\n")
	b.WriteString(`        <gml:RectifiedGridCoverage dimension="2" gml:id="RGC0001">` + "\n")
	b.WriteString("          <gml:rectifiedGridDomain>\n")
	if g.SRSName != "" {
		fmt.Fprintf(&b, "            <gml:RectifiedGrid dimension=\"2\" srsName=%q>\n", g.SRSName)
	} else {
		b.WriteString("            <gml:RectifiedGrid dimension=\"2\">\n")
	}
	if len(g.Low) == 2 && len(g.High) == 2 {
		fmt.Fprintf(&b, "              <gml:limits><gml:GridEnvelope><gml:low>%d %d</gml:low><gml:high>%d %d</gml:high></gml:GridEnvelope></gml:limits>\n",
			g.Low[0], g.Low[1], g.High[0], g.High[1])
	}
	for _, n := range g.AxisNames {
		fmt.Fprintf(&b, "              <gml:axisName>%s</gml:axisName>\n", n)
	}
	fmt.Fprintf(&b, "              <gml:origin><gml:Point gml:id=\"P0001\"><gml:pos>%s %s</gml:pos></gml:Point></gml:origin>\n",
		formatCoord(g.Origin[0]), formatCoord(g.Origin[1]))
	for _, v := range g.OffsetVectors {
		fmt.Fprintf(&b, "              <gml:offsetVector>%s %s</gml:offsetVector>\n", formatCoord(v[0]), formatCoord(v[1]))
	}
	b.WriteString("            </gml:RectifiedGrid>\n          </gml:rectifiedGridDomain>\n")
	b.WriteString("        </gml:RectifiedGridCoverage>\n      </gml:featureMember>\n    </gml:FeatureCollection>\n")
	b.WriteString("  </gml:featureMember>\n</gml:FeatureCollection>\n")
	return []byte(b.String())
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'g', 17, 64)
}
