package jp2meta

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/mrjoshuak/go-jp2meta/internal/box"
	"github.com/mrjoshuak/go-jp2meta/internal/codestream"
	"github.com/mrjoshuak/go-jp2meta/internal/crs"
	"github.com/mrjoshuak/go-jp2meta/internal/diag"
	"github.com/mrjoshuak/go-jp2meta/internal/georef"
	"github.com/mrjoshuak/go-jp2meta/internal/metadata"
	"github.com/mrjoshuak/go-jp2meta/internal/vendor"
)

// Metadata domain names besides the vendor domains IMD, RPC and IMAGERY.
const (
	DomainDefault        = ""
	DomainImageStructure = "IMAGE_STRUCTURE"
	DomainGML            = "xml:gml.root-instance"
	DomainXMP            = "xml:XMP"
	DomainIPR            = "xml:IPR"
	DomainIMD            = vendor.DomainIMD
	DomainRPC            = vendor.DomainRPC
	DomainIMAGERY        = vendor.DomainIMAGERY
)

// XMLItem is the key holding the document of an "xml:" domain.
const XMLItem = "XML"

var jp2Signature = []byte{0x00, 0x00, 0x00, 0x0C, 'j', 'P', ' ', ' ', 0x0D, 0x0A, 0x87, 0x0A}

// Dataset is an opened JPEG 2000 file. All metadata is computed by Open;
// the accessors never fail and are safe for concurrent use.
type Dataset struct {
	name   string
	format Format
	boxes  []*box.Box
	header *box.JP2Header
	cs     *codestream.Codestream
	geo    georef.GeoReference

	domains map[string]*metadata.Domain
	order   []string
	files   []string

	diagnostics []diag.Event
	vendorErr   error

	mu     sync.Mutex
	closer io.Closer
}

// Open opens and reads the metadata of the file at path. A nil cfg selects
// DefaultConfig. Nothing is written next to the file.
func Open(path string, cfg *Config) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	ds, err := OpenReader(f, fi.Size(), path, cfg)
	if err != nil {
		f.Close()
		return nil, err
	}
	ds.closer = f
	return ds, nil
}

// OpenReader reads the metadata of the size bytes of r. name is used to
// find companion files and may be empty.
func OpenReader(r io.ReaderAt, size int64, name string, cfg *Config) (*Dataset, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	dc := diag.NewCollector("jp2meta", cfg.logger())
	ds := &Dataset{name: name, domains: make(map[string]*metadata.Domain)}

	head := make([]byte, 12)
	n, err := r.ReadAt(head, 0)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("reading %s: %w", displayName(name), err)
	}
	head = head[:n]

	switch {
	case codestream.IsCodestream(head):
		ds.format = FormatJ2K
		if err := ds.scan(r, 0, size, cfg, dc); err != nil {
			return nil, err
		}
	case bytes.Equal(head, jp2Signature):
		if err := ds.readBoxes(r, size, cfg, dc); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: %s is not a JPEG 2000 file", ErrMalformedContainer, displayName(name))
	}

	geo := georef.Resolve(ds.boxes, georef.Options{
		Catalog:               cfg.Catalog,
		Logger:                cfg.Logger,
		IgnoreAxisOrientation: cfg.IgnoreAxisOrientation,
		PreferGeoJP2:          cfg.PreferGeoJP2,
		GeographicTolerance:   cfg.GeographicTolerance,
		ProjectedTolerance:    cfg.ProjectedTolerance,
		Source:                r,
		Path:                  name,
		ReadFile:              cfg.ReadFile,
	})
	ds.geo = geo.GeoReference
	dc.Merge(geo.Diagnostics)

	vend := vendor.Extract(ds.boxes, vendor.FindCompanions(name, cfg.ReadFile), vendor.Options{
		Logger: cfg.Logger,
		Path:   name,
		Source: r,
	})
	dc.Merge(vend.Diagnostics)
	ds.vendorErr = vend.Err

	ds.files = dedupe(append(append([]string{name}, geo.Files...), vend.Files...))
	ds.buildDomains(r, vend.Domains, dc)
	ds.diagnostics = dc.Events()
	DefaultErrorChannel.Record(ds.diagnostics)
	return ds, nil
}

func (ds *Dataset) readBoxes(r io.ReaderAt, size int64, cfg *Config, dc *diag.Collector) error {
	boxes, err := box.Parse(r, size, box.WithMaxPayload(cfg.maxPayload()))
	if err != nil {
		return fmt.Errorf("reading boxes of %s: %w", displayName(ds.name), err)
	}
	ds.boxes = boxes
	ds.format = FormatJP2

	if ftyp := box.Find(boxes, box.TypeFileType); ftyp != nil {
		var ft box.FileTypeBox
		if err := ft.Parse(ftyp.Contents); err != nil {
			dc.Error(diag.KindMalformedContainer, diag.SeverityWarning, fmt.Errorf("ftyp: %w", err))
		} else if ft.Brand == box.TypeOf("jpx ") {
			ds.format = FormatJPX
		}
	}
	if jp2h := box.Find(boxes, box.TypeJP2Header); jp2h != nil {
		h, err := box.ParseJP2Header(jp2h)
		if err != nil {
			dc.Error(diag.KindMalformedContainer, diag.SeverityWarning, fmt.Errorf("jp2h: %w", err))
		}
		ds.header = h
	}

	jp2c := box.Find(boxes, box.TypeContCodestream)
	if jp2c == nil {
		dc.Warnf(diag.KindMalformedContainer, "no contiguous codestream box")
		return nil
	}
	if jp2c.Contents != nil {
		ds.cs = codestream.Scan(jp2c.Contents, codestream.ScanOptions{StopAtSOD: true, Logger: cfg.Logger})
		dc.Merge(ds.cs.Diagnostics)
		return nil
	}
	return ds.scan(r, jp2c.DataOffset(), jp2c.DataLength(), cfg, dc)
}

// scan reads the main header and the first tile-part header of the
// codestream at off, reading no further than the first SOD.
func (ds *Dataset) scan(r io.ReaderAt, off, length int64, cfg *Config, dc *diag.Collector) error {
	cs, err := codestream.ScanHeader(r, off, length, cfg.maxPayload(), codestream.ScanOptions{Logger: cfg.Logger})
	if err != nil {
		return fmt.Errorf("reading codestream: %w", err)
	}
	ds.cs = cs
	dc.Merge(cs.Diagnostics)
	return nil
}

func (ds *Dataset) setDomain(d *metadata.Domain) {
	if d.Len() == 0 {
		return
	}
	if _, ok := ds.domains[d.Name()]; !ok {
		ds.order = append(ds.order, d.Name())
	}
	ds.domains[d.Name()] = d
}

func (ds *Dataset) setXML(name string, data []byte) {
	d := metadata.NewDomain(name)
	d.Set(XMLItem, string(bytes.TrimRight(data, "\x00")))
	ds.setDomain(d)
}

func (ds *Dataset) buildDomains(r io.ReaderAt, vendorDomains map[string]*metadata.Domain, dc *diag.Collector) {
	def := metadata.NewDomain(DomainDefault)
	structure := metadata.NewDomain(DomainImageStructure)
	structure.Set("COMPRESSION", "JPEG2000")
	if ds.cs != nil {
		h := ds.cs.Header
		for _, c := range h.Comments {
			if c.Text != "" {
				def.Set("COMMENT", c.Text)
				break
			}
		}
		def.Set("JPEG2000_PROFILE", Profile(h.Profile).String())
		if h.CodingStyle != nil {
			if h.IsReversible() {
				structure.Set("COMPRESSION_REVERSIBILITY", "LOSSLESS (possibly)")
			} else {
				structure.Set("COMPRESSION_REVERSIBILITY", "LOSSY")
			}
			structure.Set("RESOLUTION_LEVELS", strconv.Itoa(h.CodingStyle.NumResolutions()))
			structure.Set("QUALITY_LAYERS", strconv.Itoa(int(h.CodingStyle.NumLayers)))
			structure.Set("PROGRESSION_ORDER", h.CodingStyle.ProgressionOrder.String())
		}
		if len(h.ComponentInfo) > 0 {
			if bits := h.ComponentInfo[0].Precision(); bits != 8 && bits != 16 {
				structure.Set("NBITS", strconv.Itoa(bits))
			}
		}
		if h.IsHTJ2K() {
			structure.Set("HTJ2K", "YES")
		}
	}
	if ds.geo.HasGeoTransform {
		def.Set("AREA_OR_POINT", "Area")
	}
	ds.setDomain(def)
	structure.Set("COLORSPACE", ds.ColorSpaceName())
	ds.setDomain(structure)

	for _, name := range []string{DomainIMD, DomainRPC, DomainIMAGERY} {
		if d, ok := vendorDomains[name]; ok {
			ds.setDomain(d)
		}
	}

	payload := func(b *box.Box) []byte {
		data, err := b.Payload(r)
		if err != nil {
			dc.Error(diag.KindMalformedContainer, diag.SeverityWarning, err)
			return nil
		}
		return data
	}

	if _, gmlBox := georef.FindGML(ds.boxes); gmlBox != nil {
		if data := payload(gmlBox); data != nil {
			ds.setXML(DomainGML, data)
		}
	}
	if b := findUUID(ds.boxes, box.UUIDXMP); b != nil {
		if _, data, ok := box.UUIDOf(b); ok {
			ds.setXML(DomainXMP, data)
		}
	}
	n := 0
	for _, b := range box.FindAll(ds.boxes, box.TypeXML) {
		if georef.IsGMLBox(ds.boxes, b) {
			continue
		}
		if data := payload(b); data != nil {
			ds.setXML(fmt.Sprintf("xml:BOX_%d", n), data)
			n++
		}
	}
	if ipr := box.Find(ds.boxes, box.TypeIPR); ipr != nil {
		if data := payload(ipr); data != nil {
			ds.setXML(DomainIPR, data)
		}
	}
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

func dedupe(paths []string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, p := range paths {
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

func displayName(name string) string {
	if name == "" {
		return "input"
	}
	return name
}

// Name returns the name the dataset was opened with.
func (ds *Dataset) Name() string { return ds.name }

// Format returns the container format.
func (ds *Dataset) Format() Format { return ds.format }

// MetadataDomainList returns the names of the non-empty metadata domains.
func (ds *Dataset) MetadataDomainList() []string {
	return append([]string(nil), ds.order...)
}

// Metadata returns a copy of a metadata domain. Absent domains yield an
// empty domain.
func (ds *Dataset) Metadata(domain string) *metadata.Domain {
	if d, ok := ds.domains[domain]; ok {
		return d.Clone()
	}
	return metadata.NewDomain(domain)
}

// MetadataItem returns one metadata value, or "".
func (ds *Dataset) MetadataItem(key, domain string) string {
	return ds.domains[domain].Get(key)
}

// MetadataXML returns the document of an "xml:" domain.
func (ds *Dataset) MetadataXML(domain string) (string, bool) {
	if !strings.HasPrefix(domain, "xml:") {
		return "", false
	}
	return ds.domains[domain].Lookup(XMLItem)
}

// FileList returns the container followed by the companion files that
// were read, without duplicates.
func (ds *Dataset) FileList() []string {
	return append([]string(nil), ds.files...)
}

// GeoTransform returns the affine pixel-to-world transform. ok is false
// when no source georeferences the image; the identity transform is
// returned then.
func (ds *Dataset) GeoTransform() (gt [6]float64, ok bool) {
	return ds.geo.GeoTransform, ds.geo.HasGeoTransform
}

// Projection returns the WKT of the coordinate reference system, or "".
func (ds *Dataset) Projection() string {
	if ds.geo.SRS == nil {
		return ""
	}
	return ds.geo.SRS.WKT()
}

// SpatialRef returns a copy of the coordinate reference system, or nil.
func (ds *Dataset) SpatialRef() *crs.SpatialRef {
	return ds.geo.SRS.Clone()
}

// AuthorityCode returns the authority code of a node of the coordinate
// reference system. An empty node selects the root.
func (ds *Dataset) AuthorityCode(node string) (string, bool) {
	return ds.geo.SRS.AuthorityCode(node)
}

// GeoReference returns the resolved georeferencing.
func (ds *Dataset) GeoReference() georef.GeoReference {
	return ds.geo
}

// Codestream returns the scan of the codestream main header, or nil when
// the container has no codestream.
func (ds *Dataset) Codestream() *codestream.Codestream {
	return ds.cs
}

// Boxes returns the box hierarchy. It is nil for raw codestreams.
func (ds *Dataset) Boxes() []*box.Box {
	return ds.boxes
}

// Header returns the decoded jp2h box, or nil.
func (ds *Dataset) Header() *box.JP2Header {
	return ds.header
}

// ColorSpace returns the colour space declared by the colr box.
func (ds *Dataset) ColorSpace() ColorSpace {
	if ds.header == nil || ds.header.ColorSpec == nil || ds.header.ColorSpec.Method != 1 {
		return ColorSpaceUnspecified
	}
	return colorSpaceOf(ds.header.ColorSpec.EnumeratedColorspace)
}

// ColorSpaceName returns the colr box colour space name, "ICC" for ICC
// profiles, or "unspecified".
func (ds *Dataset) ColorSpaceName() string {
	switch {
	case ds.header == nil || ds.header.ColorSpec == nil:
		return "unspecified"
	case ds.header.ColorSpec.Method != 1:
		return "ICC"
	}
	return box.ColorspaceName(ds.header.ColorSpec.EnumeratedColorspace)
}

// VendorError returns the *vendor.IncompleteError raised while reading
// vendor metadata, or nil. It unwraps to ErrIncompleteMetadata.
func (ds *Dataset) VendorError() error {
	return ds.vendorErr
}

// Diagnostics returns the events raised while opening the dataset.
func (ds *Dataset) Diagnostics() []diag.Event {
	return append([]diag.Event(nil), ds.diagnostics...)
}

// Close releases the file opened by Open. It is safe to call more than
// once.
func (ds *Dataset) Close() error {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	if ds.closer == nil {
		return nil
	}
	err := ds.closer.Close()
	ds.closer = nil
	return err
}
