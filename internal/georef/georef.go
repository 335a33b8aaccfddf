// Package georef resolves the georeferencing of a JP2 file from its GeoJP2
// and GMLJP2 boxes, with MSIG and world-file fallbacks.
package georef

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/exp/constraints"

	"github.com/mrjoshuak/go-jp2meta/internal/box"
	"github.com/mrjoshuak/go-jp2meta/internal/crs"
	"github.com/mrjoshuak/go-jp2meta/internal/diag"
	"github.com/mrjoshuak/go-jp2meta/internal/geotiff"
	"github.com/mrjoshuak/go-jp2meta/internal/gml"
)

// Default comparison tolerances.
const (
	DefaultGeographicTolerance = 1e-7
	DefaultProjectedTolerance  = 1e-3
)

// Source identifies where a GeoReference came from.
type Source int

const (
	SourceNone Source = iota
	SourceGeoJP2
	SourceGMLJP2
	SourceMSIG
	SourceWorldFile
)

func (s Source) String() string {
	switch s {
	case SourceGeoJP2:
		return "GeoJP2"
	case SourceGMLJP2:
		return "GMLJP2"
	case SourceMSIG:
		return "MSIG"
	case SourceWorldFile:
		return "WorldFile"
	default:
		return "None"
	}
}

// IdentityGeoTransform is reported when no source georeferences the image.
var IdentityGeoTransform = [6]float64{0, 1, 0, 0, 0, 1}

// GeoReference is the resolved georeferencing of an image.
type GeoReference struct {
	GeoTransform    [6]float64
	HasGeoTransform bool
	SRS             *crs.SpatialRef
	Source          Source

	// AxisOrderApplied is set when GMLJP2 coordinates were swapped to
	// easting/northing order.
	AxisOrderApplied bool

	GCPs []geotiff.GCP
}

// Options controls Resolve.
type Options struct {
	Catalog crs.Catalog
	Logger  log.FieldLogger

	// IgnoreAxisOrientation disables GMLJP2 axis swapping.
	IgnoreAxisOrientation bool

	// PreferGeoJP2 selects GeoJP2 when both sources are valid but disagree.
	PreferGeoJP2 bool

	GeographicTolerance float64
	ProjectedTolerance  float64

	// Source is read for payloads the box walker left on disk.
	Source io.ReaderAt

	// Path is the container file name; world files are looked up next to
	// it. Empty disables the world-file fallback.
	Path string

	// ReadFile reads companion files. Defaults to os.ReadFile.
	ReadFile func(name string) ([]byte, error)
}

func (o *Options) withDefaults() Options {
	opts := *o
	if opts.Catalog == nil {
		opts.Catalog = crs.DefaultCatalog()
	}
	if opts.GeographicTolerance <= 0 {
		opts.GeographicTolerance = DefaultGeographicTolerance
	}
	if opts.ProjectedTolerance <= 0 {
		opts.ProjectedTolerance = DefaultProjectedTolerance
	}
	if opts.ReadFile == nil {
		opts.ReadFile = os.ReadFile
	}
	return opts
}

// Result is the outcome of Resolve.
type Result struct {
	GeoReference GeoReference

	// Files lists companion files that contributed, e.g. a world file.
	Files []string

	Diagnostics []diag.Event
}

// candidate is the georeferencing offered by one source.
type candidate struct {
	source     Source
	gt         [6]float64
	hasGT      bool
	srs        *crs.SpatialRef
	gcps       []geotiff.GCP
	consistent bool
	swapped    bool
	single     bool
}

func (c *candidate) usable() bool {
	return c != nil && (c.hasGT || len(c.gcps) > 0 || c.srs != nil)
}

// Resolve computes the georeferencing of the file whose boxes are given.
func Resolve(boxes []*box.Box, o Options) Result {
	opts := o.withDefaults()
	dc := diag.NewCollector("georef", opts.Logger)

	geo := geoJP2Candidate(boxes, &opts, dc)
	gmlc := gmlCandidate(boxes, &opts, dc)
	chosen := choose(geo, gmlc, &opts, dc)

	var files []string
	if chosen == nil || (!chosen.hasGT && len(chosen.gcps) == 0) {
		fallback := msigCandidate(boxes, &opts, dc)
		if fallback == nil {
			var name string
			fallback, name = worldFileCandidate(&opts, dc)
			if fallback != nil {
				files = append(files, name)
			}
		}
		if fallback != nil {
			if chosen != nil && chosen.srs != nil {
				fallback.srs = chosen.srs
			}
			chosen = fallback
		}
	}

	ref := GeoReference{GeoTransform: IdentityGeoTransform}
	if chosen != nil {
		ref.Source = chosen.source
		ref.SRS = chosen.srs
		ref.GCPs = chosen.gcps
		ref.AxisOrderApplied = chosen.swapped
		if chosen.hasGT {
			ref.GeoTransform = chosen.gt
			ref.HasGeoTransform = true
		}
	}
	return Result{GeoReference: ref, Files: files, Diagnostics: dc.Events()}
}

// choose applies the precedence policy between GeoJP2 and GMLJP2.
func choose(geo, gmlc *candidate, opts *Options, dc *diag.Collector) *candidate {
	switch {
	case !geo.usable() && !gmlc.usable():
		return nil
	case !gmlc.usable():
		return geo
	case !geo.usable():
		return gmlc
	}

	preferred, other := gmlc, geo
	if opts.PreferGeoJP2 {
		preferred, other = geo, gmlc
	}

	switch {
	case geo.consistent && !gmlc.consistent:
		dc.Debugf(diag.KindGeoreferencing, "GMLJP2 georeferencing is not self-consistent, using GeoJP2")
		return geo
	case gmlc.consistent && !geo.consistent:
		dc.Debugf(diag.KindGeoreferencing, "GeoJP2 georeferencing is not self-consistent, using GMLJP2")
		return gmlc
	}

	if geo.hasGT && gmlc.hasGT {
		tol := opts.ProjectedTolerance
		if srs := firstSRS(preferred, other); srs.IsGeographic() {
			tol = opts.GeographicTolerance
		}
		if !geoTransformsMatch(geo, gmlc, tol) {
			dc.Warnf(diag.KindGeoreferencing,
				"GeoJP2 and GMLJP2 geotransforms disagree, using %s", preferred.source)
			return preferred
		}
	}
	if preferred.srs == nil && other.srs != nil {
		merged := *preferred
		merged.srs = other.srs
		return &merged
	}
	if !preferred.hasGT && other.hasGT {
		return other
	}
	return preferred
}

func firstSRS(cands ...*candidate) *crs.SpatialRef {
	for _, c := range cands {
		if c.srs != nil {
			return c.srs
		}
	}
	return nil
}

func payload(b *box.Box, opts *Options) ([]byte, error) {
	return b.Payload(opts.Source)
}

// geoJP2Candidate decodes the first GeoJP2 uuid box.
func geoJP2Candidate(boxes []*box.Box, opts *Options, dc *diag.Collector) *candidate {
	b := findUUID(boxes, box.UUIDGeoJP2)
	if b == nil {
		return nil
	}
	data, err := payload(b, opts)
	if err != nil {
		dc.Error(diag.KindGeoreferencing, diag.SeverityWarning, fmt.Errorf("GeoJP2 box: %w", err))
		return nil
	}
	info, err := geotiff.Decode(data[min(16, len(data)):])
	if err != nil {
		dc.Error(diag.KindGeoreferencing, diag.SeverityWarning, fmt.Errorf("GeoJP2 box: %w", err))
		return nil
	}

	c := &candidate{source: SourceGeoJP2, consistent: true, single: info.SinglePrecision}
	c.gt, c.hasGT = info.GeoTransform()
	if !c.hasGT {
		c.gcps = info.GCPs()
	}
	switch code := info.EPSG(); code {
	case 0:
	case geotiff.UserDefined:
		c.consistent = false
		dc.Debugf(diag.KindGeoreferencing, "GeoJP2 CRS is user-defined (%q)", info.Citation())
	default:
		srs, err := opts.Catalog.FromEPSG(code)
		if err != nil {
			c.consistent = false
			dc.Error(diag.KindGeoreferencing, diag.SeverityWarning, fmt.Errorf("GeoJP2 CRS: %w", err))
		} else {
			c.srs = srs
		}
	}
	return c
}

// gmlCandidate parses the GMLJP2 RectifiedGrid.
func gmlCandidate(boxes []*box.Box, opts *Options, dc *diag.Collector) *candidate {
	_, xmlBox := FindGML(boxes)
	if xmlBox == nil {
		return nil
	}
	data, err := payload(xmlBox, opts)
	if err != nil {
		dc.Error(diag.KindGeoreferencing, diag.SeverityWarning, fmt.Errorf("GMLJP2 box: %w", err))
		return nil
	}
	grid, err := gml.Parse(data)
	if err != nil {
		dc.Error(diag.KindGeoreferencing, diag.SeverityWarning, fmt.Errorf("GMLJP2: %w", err))
		return nil
	}

	c := &candidate{source: SourceGMLJP2, gt: grid.GeoTransform(), hasGT: true, consistent: true}
	if grid.SRSName != "" {
		srs, err := crs.SetFromUserInput(opts.Catalog, grid.SRSName)
		if err != nil {
			c.consistent = false
			dc.Error(diag.KindGeoreferencing, diag.SeverityWarning, fmt.Errorf("GMLJP2 srsName: %w", err))
		} else {
			c.srs = srs
		}
	}

	// Explicit axis names win over the axis order of the CRS, in both
	// directions.
	switch {
	case opts.IgnoreAxisOrientation:
	case c.srs.NorthingFirst() && grid.ExplicitEastNorth():
		dc.Debugf(diag.KindGeoreferencing, "axis names %v override the %s axis order", grid.AxisNames, c.srs)
	case c.srs.NorthingFirst():
		c.gt = SwapAxes(c.gt)
		c.swapped = true
	case grid.ExplicitNorthEast():
		dc.Debugf(diag.KindGeoreferencing, "axis names %v override the %s axis order", grid.AxisNames, c.srs)
		c.gt = SwapAxes(c.gt)
		c.swapped = true
	}
	return c
}

// msigCandidate reads the geotransform of an MSIG uuid box.
func msigCandidate(boxes []*box.Box, opts *Options, dc *diag.Collector) *candidate {
	b := findUUID(boxes, box.UUIDMSIG)
	if b == nil {
		return nil
	}
	data, err := payload(b, opts)
	if err != nil || len(data) < 16 {
		return nil
	}
	gt, err := ParseMSIG(data[16:])
	if err != nil {
		dc.Error(diag.KindGeoreferencing, diag.SeverityWarning, err)
		return nil
	}
	return &candidate{source: SourceMSIG, gt: gt, hasGT: true, consistent: true}
}

// worldFileCandidate reads a .j2w or .wld file next to the container.
func worldFileCandidate(opts *Options, dc *diag.Collector) (*candidate, string) {
	if opts.Path == "" {
		return nil, ""
	}
	base := strings.TrimSuffix(opts.Path, filepath.Ext(opts.Path))
	for _, ext := range []string{".j2w", ".J2W", ".wld", ".WLD"} {
		name := base + ext
		data, err := opts.ReadFile(name)
		if err != nil {
			continue
		}
		gt, err := ParseWorldFile(data)
		if err != nil {
			dc.Error(diag.KindGeoreferencing, diag.SeverityWarning, fmt.Errorf("%s: %w", filepath.Base(name), err))
			continue
		}
		return &candidate{source: SourceWorldFile, gt: gt, hasGT: true, consistent: true}, name
	}
	return nil, ""
}

func findUUID(boxes []*box.Box, id uuid.UUID) *box.Box {
	var found *box.Box
	box.Walk(boxes, func(b *box.Box, _ int) bool {
		if found != nil {
			return false
		}
		if got, _, ok := box.UUIDOf(b); ok && got == id {
			found = b
		}
		return true
	})
	return found
}

// FindGML returns the label and xml box of the GMLJP2 document: the xml box
// of the gml.root-instance association under gml.data, or failing that of
// the first labelled association under gml.data.
func FindGML(boxes []*box.Box) (string, *box.Box) {
	data := gmlData(boxes)
	if data == nil {
		return "", nil
	}
	var label string
	var xmlBox *box.Box
	for _, c := range data.Children {
		l := box.Label(c)
		if l == "" {
			continue
		}
		x := c.Child(box.TypeXML)
		if x == nil {
			continue
		}
		if l == "gml.root-instance" {
			return l, x
		}
		if xmlBox == nil {
			label, xmlBox = l, x
		}
	}
	return label, xmlBox
}

// IsGMLBox reports whether x is an xml box inside the GMLJP2 gml.data
// association.
func IsGMLBox(boxes []*box.Box, x *box.Box) bool {
	data := gmlData(boxes)
	if data == nil {
		return false
	}
	inside := false
	box.Walk(data.Children, func(b *box.Box, _ int) bool {
		if b == x {
			inside = true
		}
		return !inside
	})
	return inside
}

func gmlData(boxes []*box.Box) *box.Box {
	var data *box.Box
	box.Walk(boxes, func(b *box.Box, _ int) bool {
		if data == nil && box.Label(b) == "gml.data" {
			data = b
		}
		return data == nil
	})
	return data
}

// SwapAxes exchanges the roles of the two model axes of gt.
func SwapAxes(gt [6]float64) [6]float64 {
	return [6]float64{gt[3], gt[4], gt[5], gt[0], gt[1], gt[2]}
}

// NearlyEqual reports whether a and b differ by at most tol.
func NearlyEqual[T constraints.Float](a, b, tol T) bool {
	return math.Abs(float64(a-b)) <= float64(tol)
}

// GeoTransformsEqual compares two geotransforms term by term.
func GeoTransformsEqual(a, b [6]float64, tol float64) bool {
	for i := range a {
		if !NearlyEqual(a[i], b[i], tol) {
			return false
		}
	}
	return true
}

// geoTransformsMatch compares the geotransforms of a and b. When either
// was stored in single precision the terms are compared as float32.
func geoTransformsMatch(a, b *candidate, tol float64) bool {
	if !a.single && !b.single {
		return GeoTransformsEqual(a.gt, b.gt, tol)
	}
	for i := range a.gt {
		if !NearlyEqual(float32(a.gt[i]), float32(b.gt[i]), float32(tol)) {
			return false
		}
	}
	return true
}
