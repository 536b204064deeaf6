// Package config loads epifeed settings from defaults, an optional config
// file and EPIFEED_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"epifeed/internal/fetch"
	"epifeed/internal/providers"
	"epifeed/internal/providers/covidtracking"
	"epifeed/internal/providers/jhu"
	"epifeed/internal/providers/owid"
)

const envPrefix = "EPIFEED"

type Config struct {
	Fetch     FetchConfig     `mapstructure:"fetch"`
	Archive   ArchiveConfig   `mapstructure:"archive"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Providers ProvidersConfig `mapstructure:"providers"`
}

type FetchConfig struct {
	Timeout   time.Duration `mapstructure:"timeout"`
	RateLimit float64       `mapstructure:"rate_limit"`
	RateBurst int           `mapstructure:"rate_burst"`
	UserAgent string        `mapstructure:"user_agent"`
}

type ArchiveConfig struct {
	Path     string `mapstructure:"path"` // empty disables archiving
	Keep     int    `mapstructure:"keep"`
	Fallback bool   `mapstructure:"fallback"`
}

type CacheConfig struct {
	Size int           `mapstructure:"size"`
	TTL  time.Duration `mapstructure:"ttl"`
}

type LoggingConfig struct {
	Verbose bool `mapstructure:"verbose"`
}

type ProvidersConfig struct {
	JHU           JHUConfig `mapstructure:"jhu"`
	CovidTracking URLConfig `mapstructure:"covidtracking"`
	OWID          URLConfig `mapstructure:"owid"`
}

type JHUConfig struct {
	Root           string        `mapstructure:"root"`
	Dir            string        `mapstructure:"dir"`
	Pattern        string        `mapstructure:"pattern"`
	NameLayout     string        `mapstructure:"name_layout"`
	Refresh        bool          `mapstructure:"refresh"`
	RefreshArgs    []string      `mapstructure:"refresh_args"`
	RefreshTimeout time.Duration `mapstructure:"refresh_timeout"`
}

type URLConfig struct {
	URL string `mapstructure:"url"`
}

// Load reads epifeed.{yaml,toml,json} from ./config, ~/.epifeed or
// /etc/epifeed when present. A missing file is not an error.
func Load() (*Config, error) {
	v := newViper()
	v.SetConfigName("epifeed")
	v.AddConfigPath("./config")
	v.AddConfigPath(filepath.Join(homeDir(), ".epifeed"))
	v.AddConfigPath("/etc/epifeed")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: reading config file: %w", err)
		}
	}
	return decode(v)
}

func LoadFromFile(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	return decode(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decoding: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("fetch.timeout", 30*time.Second)
	v.SetDefault("fetch.rate_limit", 2.0)
	v.SetDefault("fetch.rate_burst", 2)
	v.SetDefault("fetch.user_agent", "epifeed/0.1")

	v.SetDefault("archive.path", "epifeed.db")
	v.SetDefault("archive.keep", 5)
	v.SetDefault("archive.fallback", true)

	v.SetDefault("cache.size", 8)
	v.SetDefault("cache.ttl", 15*time.Minute)

	v.SetDefault("logging.verbose", false)

	jhuDefaults := jhu.DefaultConfig()
	v.SetDefault("providers.jhu.root", jhuDefaults.Root)
	v.SetDefault("providers.jhu.dir", jhuDefaults.Dir)
	v.SetDefault("providers.jhu.pattern", jhuDefaults.Pattern)
	v.SetDefault("providers.jhu.name_layout", jhuDefaults.NameLayout)
	v.SetDefault("providers.jhu.refresh", jhuDefaults.Refresh)
	v.SetDefault("providers.jhu.refresh_args", []string{"submodule", "update", "--remote"})
	v.SetDefault("providers.jhu.refresh_timeout", 2*time.Minute)
	v.SetDefault("providers.covidtracking.url", covidtracking.DefaultConfig().URL)
	v.SetDefault("providers.owid.url", owid.DefaultConfig().URL)
}

func (c *Config) FetchConfig() fetch.Config {
	return fetch.Config{
		Timeout:         c.Fetch.Timeout,
		RateLimitPerSec: c.Fetch.RateLimit,
		RateLimitBurst:  c.Fetch.RateBurst,
		UserAgent:       c.Fetch.UserAgent,
	}
}

func (c *Config) ProviderSettings() providers.Settings {
	return providers.Settings{
		JHU: jhu.Config{
			Root:       c.Providers.JHU.Root,
			Dir:        c.Providers.JHU.Dir,
			Pattern:    c.Providers.JHU.Pattern,
			NameLayout: c.Providers.JHU.NameLayout,
			Refresh:    c.Providers.JHU.Refresh,
		},
		CovidTracking: covidtracking.Config{URL: c.Providers.CovidTracking.URL},
		OWID:          owid.Config{URL: c.Providers.OWID.URL},
	}
}

func (c *Config) Refresher() fetch.GitRefresher {
	return fetch.GitRefresher{
		Args:    append([]string(nil), c.Providers.JHU.RefreshArgs...),
		Timeout: c.Providers.JHU.RefreshTimeout,
	}
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
