// Command jp2info prints the metadata and structure of JPEG 2000 files.
package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/dustin/go-humanize"
	"github.com/pkg/profile"
	log "github.com/sirupsen/logrus"

	jp2meta "github.com/mrjoshuak/go-jp2meta"
	"github.com/mrjoshuak/go-jp2meta/internal/diag"
)

// CLI defines the command-line interface for jp2info.
var CLI struct {
	LogLevel string `name:"log-level" default:"warning" enum:"debug,info,warning,error" help:"Diagnostic level (debug, info, warning, error)"`
	LogJSON  bool   `name:"log-json" help:"Log diagnostics as JSON"`
	Profile  string `name:"profile" enum:"none,cpu,mem" default:"none" help:"Write a cpu or mem profile to the working directory"`

	IgnoreAxisOrientation bool  `name:"ignore-axis-orientation" help:"Keep GMLJP2 coordinates in document order"`
	PreferGeoJP2          bool  `name:"prefer-geojp2" help:"Prefer GeoJP2 over GMLJP2 when both are valid"`
	MaxPayload            int64 `name:"max-payload" default:"16777216" help:"Largest box payload loaded at open, in bytes"`

	Info      InfoCmd      `cmd:"" default:"withargs" help:"Print metadata domains and georeferencing"`
	Structure StructureCmd `cmd:"" help:"Print the box and marker structure"`
}

func config() (*jp2meta.Config, error) {
	cfg, err := jp2meta.ConfigFromEnv()
	if err != nil {
		return nil, err
	}
	if CLI.IgnoreAxisOrientation {
		cfg.IgnoreAxisOrientation = true
	}
	if CLI.PreferGeoJP2 {
		cfg.PreferGeoJP2 = true
	}
	cfg.MaxPayload = CLI.MaxPayload
	return cfg, nil
}

// InfoCmd prints what Open reports about each file.
type InfoCmd struct {
	Paths   []string `arg:"" help:"JPEG 2000 files"`
	Domains []string `name:"domain" short:"d" help:"Only print these metadata domains"`
	XML     bool     `name:"xml" help:"Print the documents of xml: domains"`
}

func (c *InfoCmd) Run() error {
	cfg, err := config()
	if err != nil {
		return err
	}
	for i, path := range c.Paths {
		if i > 0 {
			fmt.Println()
		}
		if err := c.info(os.Stdout, path, cfg); err != nil {
			return err
		}
	}
	return nil
}

func (c *InfoCmd) info(w io.Writer, path string, cfg *jp2meta.Config) error {
	ds, err := jp2meta.Open(path, cfg)
	if err != nil {
		return err
	}
	defer ds.Close()

	fi, err := os.Stat(path)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "File: %s (%s, %s)\n", path, ds.Format(), humanize.IBytes(uint64(fi.Size())))
	if cs := ds.Codestream(); cs != nil {
		h := cs.Header
		fmt.Fprintf(w, "Size: %d x %d, %d components\n", h.ImageWidth-h.ImageXOffset, h.ImageHeight-h.ImageYOffset, h.NumComponents)
		tx, ty := h.NumTiles()
		fmt.Fprintf(w, "Tiles: %s (%d x %d of %d x %d)\n", humanize.Comma(int64(tx)*int64(ty)), tx, ty, h.TileWidth, h.TileHeight)
	}
	fmt.Fprintf(w, "Color space: %s\n", ds.ColorSpaceName())

	if gt, ok := ds.GeoTransform(); ok {
		ref := ds.GeoReference()
		fmt.Fprintf(w, "Georeferencing: %s\n", ref.Source)
		fmt.Fprintf(w, "  Origin: (%.15g, %.15g)\n", gt[0], gt[3])
		fmt.Fprintf(w, "  Pixel size: (%.15g, %.15g)\n", gt[1], gt[5])
		if gt[2] != 0 || gt[4] != 0 {
			fmt.Fprintf(w, "  Rotation: (%.15g, %.15g)\n", gt[2], gt[4])
		}
	}
	if srs := ds.SpatialRef(); srs != nil {
		fmt.Fprintf(w, "Coordinate system: %s\n", srs)
		if code, ok := ds.AuthorityCode(""); ok {
			fmt.Fprintf(w, "  Authority: %s:%s\n", srs.AuthorityName(), code)
		}
	}

	files := ds.FileList()
	if len(files) > 1 {
		fmt.Fprintln(w, "Files:")
		for _, f := range files {
			fmt.Fprintf(w, "  %s\n", f)
		}
	}

	for _, name := range ds.MetadataDomainList() {
		if len(c.Domains) > 0 && !contains(c.Domains, name) {
			continue
		}
		if doc, ok := ds.MetadataXML(name); ok {
			fmt.Fprintf(w, "Metadata (%s): %s\n", name, humanize.Bytes(uint64(len(doc))))
			if c.XML {
				fmt.Fprintln(w, doc)
			}
			continue
		}
		if name == "" {
			fmt.Fprintln(w, "Metadata:")
		} else {
			fmt.Fprintf(w, "Metadata (%s):\n", name)
		}
		for _, item := range ds.Metadata(name).Items() {
			fmt.Fprintf(w, "  %s=%s\n", item.Key, item.Value)
		}
	}

	for _, e := range ds.Diagnostics() {
		if e.Severity >= diag.SeverityWarning {
			fmt.Fprintf(w, "Warning: %s\n", e)
		}
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

// StructureCmd prints the structure dump of a file.
type StructureCmd struct {
	Path     string   `arg:"" type:"existingfile" help:"JPEG 2000 file"`
	Options  []string `name:"option" short:"o" help:"Dump option as KEY=VALUE (ALL, BINARY_CONTENT, TEXT_CONTENT, CODESTREAM, STOP_AT_SOD, DIGEST, MAX_LINES)"`
	MaxLines int      `name:"max-lines" env:"GDAL_JPEG2000_STRUCTURE_MAX_LINES" default:"500000" help:"Line cap when no MAX_LINES option is given"`
}

func (c *StructureCmd) Run() error {
	cfg, err := config()
	if err != nil {
		return err
	}
	cfg.StructureMaxLines = c.MaxLines
	text, _, err := jp2meta.StructureAsString(c.Path, c.Options, cfg)
	if err != nil {
		return err
	}
	fmt.Print(text)
	return nil
}

func setupLogging() error {
	level, err := log.ParseLevel(CLI.LogLevel)
	if err != nil {
		return err
	}
	log.SetLevel(level)
	log.SetOutput(os.Stderr)
	if CLI.LogJSON {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{DisableTimestamp: true})
	}
	return nil
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("jp2info"),
		kong.Description("Inspect JPEG 2000 metadata, georeferencing and structure"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)
	ctx.FatalIfErrorf(setupLogging())

	switch CLI.Profile {
	case "cpu":
		defer profile.Start(profile.CPUProfile, profile.ProfilePath("."), profile.Quiet).Stop()
	case "mem":
		defer profile.Start(profile.MemProfile, profile.ProfilePath("."), profile.Quiet).Stop()
	}

	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}
