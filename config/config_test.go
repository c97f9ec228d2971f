package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gnsscore "github.com/fxb-gnss/gnsscore"
)

const sampleToml = `
filter = [">=2024-01-01 00:00:00, =G, >15e, >35s"]

[meta]
task = "static-baseline"
project = "demo"

[io]
rover_nav_path = "rover.nav"
rover_obs_path = "rover.obs"
base_obs_path = "base.obs"
out_path = "out.txt"

[model]
trop = 0
iono = 0
solution_mode = 1

[model.enabled_code]
G = ["1C", "2W"]
C = ["2I"]
`

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "run.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadValidConfig(t *testing.T) {
	path := writeTempConfig(t, sampleToml)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "static-baseline", cfg.Meta.Task)
	assert.Equal(t, 1, cfg.Model.SolutionMode)
	assert.NotEmpty(t, cfg.RunID)
	assert.Equal(t, []string{"1C", "2W"}, cfg.Model.EnabledCode["G"])
}

func TestLoadMissingFileReturnsConfigMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
	var ce *ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, gnsscore.ErrConfigMissing, ce.Kind)
}

func TestLoadInvalidSchemaReturnsConfigInvalid(t *testing.T) {
	path := writeTempConfig(t, `
[io]
rover_nav_path = "rover.nav"
rover_obs_path = "rover.obs"

[model]
solution_mode = 99
`)
	_, err := Load(path)
	require.Error(t, err)
	var ce *ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, gnsscore.ErrConfigInvalid, ce.Kind)
}

func TestLoadMalformedTomlReturnsConfigInvalid(t *testing.T) {
	path := writeTempConfig(t, `this is not [ valid toml`)
	_, err := Load(path)
	require.Error(t, err)
	var ce *ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, gnsscore.ErrConfigInvalid, ce.Kind)
}

func TestParseFiltersScenario(t *testing.T) {
	clauses, err := ParseFilters([]string{">=2024-01-01 00:00:00, =G, >15e, >35s"})
	require.NoError(t, err)
	require.Len(t, clauses, 4)

	assert.Equal(t, FilterEpoch, clauses[0].Kind)
	assert.Equal(t, OpGE, clauses[0].Op)

	assert.Equal(t, FilterConstellation, clauses[1].Kind)
	assert.Equal(t, gnsscore.ConstGPS, clauses[1].Cons)

	assert.Equal(t, FilterElevation, clauses[2].Kind)
	assert.Equal(t, 15.0, clauses[2].Value)

	assert.Equal(t, FilterSNR, clauses[3].Kind)
	assert.Equal(t, 35.0, clauses[3].Value)
}

func TestParseFiltersRejectsGarbage(t *testing.T) {
	_, err := ParseFilters([]string{"?!nonsense"})
	require.Error(t, err)
	var pe *gnsscore.ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, gnsscore.ErrParseFilter, pe.Kind)
}
