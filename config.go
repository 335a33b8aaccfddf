package jp2meta

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/mrjoshuak/go-jp2meta/internal/box"
	"github.com/mrjoshuak/go-jp2meta/internal/crs"
	"github.com/mrjoshuak/go-jp2meta/internal/georef"
)

// Environment variables read by ConfigFromEnv.
const (
	EnvIgnoreAxisOrientation = "GDAL_IGNORE_AXIS_ORIENTATION"
	EnvStructureMaxLines     = "GDAL_JPEG2000_STRUCTURE_MAX_LINES"
	EnvPreferGeoJP2          = "JP2_GEOREF_PREFER_GEOJP2"
	EnvGeographicTolerance   = "JP2_GEOREF_TOLERANCE_GEOGRAPHIC"
	EnvProjectedTolerance    = "JP2_GEOREF_TOLERANCE_PROJECTED"
)

// Config holds the settings of Open and StructureAsString.
type Config struct {
	// IgnoreAxisOrientation keeps GMLJP2 coordinates in the order they
	// are written, even for CRSs whose authority order is northing first.
	IgnoreAxisOrientation bool

	// PreferGeoJP2 selects GeoJP2 over GMLJP2 when both are valid.
	PreferGeoJP2 bool

	// GeographicTolerance and ProjectedTolerance bound the difference
	// between two geotransforms considered equal, in CRS units.
	GeographicTolerance float64
	ProjectedTolerance  float64

	// StructureMaxLines caps structure dumps. 0 means unlimited.
	StructureMaxLines int

	// MaxPayload is the largest box payload loaded into memory at open, and
	// the most codestream bytes read to find the first SOD. 0 selects
	// box.DefaultMaxPayload.
	MaxPayload int64

	// Catalog resolves EPSG codes. Nil selects the built-in catalog.
	Catalog crs.Catalog

	// Logger receives diagnostics. Nil selects logrus.StandardLogger().
	Logger log.FieldLogger

	// ReadFile reads companion files. Nil selects os.ReadFile.
	ReadFile func(name string) ([]byte, error)
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		GeographicTolerance: georef.DefaultGeographicTolerance,
		ProjectedTolerance:  georef.DefaultProjectedTolerance,
		MaxPayload:          box.DefaultMaxPayload,
	}
}

// ConfigFromEnv returns DefaultConfig updated from the process environment.
func ConfigFromEnv() (*Config, error) {
	return configFromLookup(os.LookupEnv)
}

func configFromLookup(lookup func(string) (string, bool)) (*Config, error) {
	cfg := DefaultConfig()
	var err error
	if v, ok := lookup(EnvIgnoreAxisOrientation); ok {
		if cfg.IgnoreAxisOrientation, err = parseBool(v); err != nil {
			return nil, fmt.Errorf("%s: %w", EnvIgnoreAxisOrientation, err)
		}
	}
	if v, ok := lookup(EnvPreferGeoJP2); ok {
		if cfg.PreferGeoJP2, err = parseBool(v); err != nil {
			return nil, fmt.Errorf("%s: %w", EnvPreferGeoJP2, err)
		}
	}
	if v, ok := lookup(EnvStructureMaxLines); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil || n < 0 {
			return nil, fmt.Errorf("%s: invalid line count %q", EnvStructureMaxLines, v)
		}
		cfg.StructureMaxLines = n
	}
	for _, tol := range []struct {
		name string
		dst  *float64
	}{
		{EnvGeographicTolerance, &cfg.GeographicTolerance},
		{EnvProjectedTolerance, &cfg.ProjectedTolerance},
	} {
		v, ok := lookup(tol.name)
		if !ok {
			continue
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil || f <= 0 {
			return nil, fmt.Errorf("%s: invalid tolerance %q", tol.name, v)
		}
		*tol.dst = f
	}
	return cfg, nil
}

func parseBool(v string) (bool, error) {
	switch strings.ToUpper(strings.TrimSpace(v)) {
	case "YES", "ON", "TRUE", "1":
		return true, nil
	case "NO", "OFF", "FALSE", "0", "":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean %q", v)
}

func (c *Config) maxPayload() int64 {
	if c.MaxPayload <= 0 {
		return box.DefaultMaxPayload
	}
	return c.MaxPayload
}

func (c *Config) logger() log.FieldLogger {
	if c.Logger == nil {
		return log.StandardLogger()
	}
	return c.Logger
}
