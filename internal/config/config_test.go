package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"epifeed/internal/fetch"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, cfg.Fetch.Timeout)
	assert.Equal(t, 2.0, cfg.Fetch.RateLimit)
	assert.Equal(t, 2, cfg.Fetch.RateBurst)
	assert.Equal(t, "epifeed.db", cfg.Archive.Path)
	assert.True(t, cfg.Archive.Fallback)
	assert.Equal(t, 15*time.Minute, cfg.Cache.TTL)
	assert.False(t, cfg.Logging.Verbose)

	assert.Equal(t, "johns_hopkins_data/csse_covid_19_data/csse_covid_19_daily_reports", cfg.Providers.JHU.Dir)
	assert.Equal(t, "01-02-2006", cfg.Providers.JHU.NameLayout)
	assert.True(t, cfg.Providers.JHU.Refresh)
	assert.Equal(t, []string{"submodule", "update", "--remote"}, cfg.Providers.JHU.RefreshArgs)
	assert.Equal(t, "https://covidtracking.com/api/v1/us/daily.csv", cfg.Providers.CovidTracking.URL)
	assert.Equal(t, "https://covid.ourworldindata.org/data/ecdc/full_data.csv", cfg.Providers.OWID.URL)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("EPIFEED_FETCH_TIMEOUT", "5s")
	t.Setenv("EPIFEED_ARCHIVE_PATH", "/var/lib/epifeed/archive.db")
	t.Setenv("EPIFEED_LOGGING_VERBOSE", "true")
	t.Setenv("EPIFEED_PROVIDERS_OWID_URL", "http://mirror.local/full_data.csv")
	t.Setenv("EPIFEED_PROVIDERS_JHU_REFRESH", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, cfg.Fetch.Timeout)
	assert.Equal(t, "/var/lib/epifeed/archive.db", cfg.Archive.Path)
	assert.True(t, cfg.Logging.Verbose)
	assert.Equal(t, "http://mirror.local/full_data.csv", cfg.Providers.OWID.URL)
	assert.False(t, cfg.Providers.JHU.Refresh)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "epifeed.yaml")
	content := `
fetch:
  timeout: 10s
  rate_limit: 0.5
archive:
  path: ""
  fallback: false
providers:
  jhu:
    root: /srv/covid
    refresh_args: ["pull", "--ff-only"]
  covidtracking:
    url: file:///srv/covid/daily.csv
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, 10*time.Second, cfg.Fetch.Timeout)
	assert.Equal(t, 0.5, cfg.Fetch.RateLimit)
	assert.Empty(t, cfg.Archive.Path)
	assert.False(t, cfg.Archive.Fallback)
	assert.Equal(t, "/srv/covid", cfg.Providers.JHU.Root)
	assert.Equal(t, "*.csv", cfg.Providers.JHU.Pattern)

	settings := cfg.ProviderSettings()
	assert.Equal(t, "/srv/covid", settings.JHU.Descriptor().Root)
	assert.Equal(t, fetch.URL("file:///srv/covid/daily.csv").WithArchiveKey("covidtracking"), settings.CovidTracking.Descriptor())

	refresher := cfg.Refresher()
	assert.Equal(t, []string{"pull", "--ff-only"}, refresher.Args)

	fc := cfg.FetchConfig()
	assert.Equal(t, 10*time.Second, fc.Timeout)
	assert.Equal(t, 0.5, fc.RateLimitPerSec)
}

func TestLoadFromFile_Missing(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
