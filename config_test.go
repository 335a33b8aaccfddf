package jp2meta

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lookupFrom(env map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.False(t, cfg.IgnoreAxisOrientation)
	assert.False(t, cfg.PreferGeoJP2)
	assert.Equal(t, 1e-7, cfg.GeographicTolerance)
	assert.Equal(t, 1e-3, cfg.ProjectedTolerance)
	assert.Zero(t, cfg.StructureMaxLines)
	assert.Equal(t, int64(16<<20), cfg.MaxPayload)
	assert.NotNil(t, cfg.logger())
}

func TestConfigFromLookup(t *testing.T) {
	cfg, err := configFromLookup(lookupFrom(map[string]string{
		EnvIgnoreAxisOrientation: "YES",
		EnvPreferGeoJP2:          "on",
		EnvStructureMaxLines:     " 40 ",
		EnvGeographicTolerance:   "1e-5",
		EnvProjectedTolerance:    "0.5",
	}))
	require.NoError(t, err)
	assert.True(t, cfg.IgnoreAxisOrientation)
	assert.True(t, cfg.PreferGeoJP2)
	assert.Equal(t, 40, cfg.StructureMaxLines)
	assert.Equal(t, 1e-5, cfg.GeographicTolerance)
	assert.Equal(t, 0.5, cfg.ProjectedTolerance)

	cfg, err = configFromLookup(lookupFrom(nil))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestConfigFromLookup_Invalid(t *testing.T) {
	for _, env := range []map[string]string{
		{EnvIgnoreAxisOrientation: "perhaps"},
		{EnvPreferGeoJP2: "2"},
		{EnvStructureMaxLines: "-3"},
		{EnvStructureMaxLines: "many"},
		{EnvGeographicTolerance: "0"},
		{EnvProjectedTolerance: "wide"},
	} {
		_, err := configFromLookup(lookupFrom(env))
		assert.Error(t, err, "%v", env)
	}
}
