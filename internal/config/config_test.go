package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeMission(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mission.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CONTACTMGR_OWNSHIP", "alpha")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "alpha", cfg.Ownship)
	assert.Equal(t, "alpha", cfg.SubjectPrefix)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, 4.0, cfg.AppTick)
	assert.Equal(t, 250*time.Millisecond, cfg.TickInterval())
	assert.Equal(t, 1000, cfg.DebounceMs)
	assert.Equal(t, time.Hour, cfg.StateTTL)
	assert.False(t, cfg.HotReload)
	assert.False(t, cfg.HasOrigin())
	assert.Empty(t, cfg.Params)
}

func TestLoad_MissionFile(t *testing.T) {
	path := writeMission(t, `
ownship: henry
lat_origin: 42.358456
lon_origin: -71.087589
app_tick: 2
threshold_lookup: vehicle_name
params:
  - "alert = id=avd,var=CONTACT_INFO,val=name=avd_$[VNAME]"
  - "decay = 30,60"
  - "display_radii = true"
`)
	t.Setenv("CONTACTMGR_CONFIG", path)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "henry", cfg.Ownship)
	assert.Equal(t, "henry", cfg.SubjectPrefix)
	assert.Equal(t, 2.0, cfg.AppTick)
	assert.Equal(t, "vehicle_name", cfg.ThresholdLookup)
	require.True(t, cfg.HasOrigin())
	assert.InDelta(t, 42.358456, *cfg.LatOrigin, 1e-9)
	assert.InDelta(t, -71.087589, *cfg.LonOrigin, 1e-9)
	assert.Equal(t, []string{
		"alert = id=avd,var=CONTACT_INFO,val=name=avd_$[VNAME]",
		"decay = 30,60",
		"display_radii = true",
	}, cfg.Params)
}

func TestLoad_EnvironmentOverridesMission(t *testing.T) {
	path := writeMission(t, "ownship: henry\napp_tick: 2\n")
	t.Setenv("CONTACTMGR_CONFIG", path)
	t.Setenv("CONTACTMGR_OWNSHIP", "alpha")
	t.Setenv("CONTACTMGR_APP_TICK", "10")
	t.Setenv("CONTACTMGR_SUBJECT_PREFIX", "fleet.alpha")
	t.Setenv("CONTACTMGR_HOT_RELOAD", "true")
	t.Setenv("CONTACTMGR_REDIS_DB", "3")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "alpha", cfg.Ownship)
	assert.Equal(t, 10.0, cfg.AppTick)
	assert.Equal(t, "fleet.alpha", cfg.SubjectPrefix)
	assert.True(t, cfg.HotReload)
	assert.Equal(t, 3, cfg.RedisDB)
}

func TestLoad_Errors(t *testing.T) {
	t.Run("missing mission file", func(t *testing.T) {
		t.Setenv("CONTACTMGR_CONFIG", filepath.Join(t.TempDir(), "nope.yaml"))
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("malformed mission file", func(t *testing.T) {
		t.Setenv("CONTACTMGR_CONFIG", writeMission(t, "params: [unterminated"))
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("half an origin", func(t *testing.T) {
		t.Setenv("CONTACTMGR_CONFIG", writeMission(t, "ownship: a\nlat_origin: 42\n"))
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("non-positive tick", func(t *testing.T) {
		t.Setenv("CONTACTMGR_APP_TICK", "-1")
		_, err := Load()
		assert.Error(t, err)
	})
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("TEST_INT", "abc")
	t.Setenv("TEST_FLOAT", "2.5")
	t.Setenv("TEST_BOOL", "no")

	assert.Equal(t, 7, getEnvInt("TEST_INT", 7))
	assert.Equal(t, 2.5, getEnvFloat("TEST_FLOAT", 1))
	assert.False(t, getEnvBool("TEST_BOOL", true))
	assert.True(t, getEnvBool("TEST_UNSET_BOOL", true))
	assert.Equal(t, "fallback", getEnv("TEST_UNSET", "fallback"))
}
