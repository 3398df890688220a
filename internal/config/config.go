package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/vburojevic/runwatch/internal/domain"
)

// Config holds application configuration
type Config struct {
	// Global settings
	Format  string `mapstructure:"format"`
	Verbose bool   `mapstructure:"verbose"`

	Store  StoreConfig  `mapstructure:"store"`
	Source SourceConfig `mapstructure:"source"`
	Digest DigestConfig `mapstructure:"digest"`

	// Workers bounds how many resources are processed at once
	Workers int `mapstructure:"workers"`

	// Region and AccountID apply to resources that do not set their own
	Region    string `mapstructure:"region"`
	AccountID string `mapstructure:"account_id"`

	Groups []GroupConfig `mapstructure:"groups"`
}

// StoreConfig configures the metrics store
type StoreConfig struct {
	Path      string `mapstructure:"path"`
	Retention string `mapstructure:"retention"`
}

// SourceConfig configures where raw telemetry is read from
type SourceConfig struct {
	Dir string `mapstructure:"dir"`
}

// DigestConfig holds digest command defaults
type DigestConfig struct {
	Period string `mapstructure:"period"`
}

// GroupConfig is one monitoring group: resource lists keyed by resource type tag
type GroupConfig struct {
	Name      string                      `mapstructure:"name"`
	Resources map[string][]ResourceConfig `mapstructure:"resources"`
}

// ResourceConfig is one monitored resource and its alerting thresholds
type ResourceConfig struct {
	Name            string  `mapstructure:"name"`
	MinRequiredRuns int     `mapstructure:"min_required_runs"`
	SLASeconds      float64 `mapstructure:"sla_seconds"`
	Region          string  `mapstructure:"region"`
	AccountID       string  `mapstructure:"account_id"`
}

// Default returns a Config with default values
func Default() *Config {
	return &Config{
		Format:  "ndjson",
		Verbose: false,
		Store: StoreConfig{
			Path:      "runwatch.db",
			Retention: "720h",
		},
		Source: SourceConfig{
			Dir: "telemetry",
		},
		Digest: DigestConfig{
			Period: "24h",
		},
		Workers: 8,
		Region:  "us-east-1",
	}
}

// RetentionPeriod parses Store.Retention; an empty value keeps everything
func (c *Config) RetentionPeriod() (time.Duration, error) {
	return parseDuration("store.retention", c.Store.Retention)
}

// DigestPeriod parses Digest.Period
func (c *Config) DigestPeriod() (time.Duration, error) {
	d, err := parseDuration("digest.period", c.Digest.Period)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("digest.period must be positive, got %q", c.Digest.Period)
	}
	return d, nil
}

func parseDuration(key, s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return d, nil
}

// Resources flattens the groups into monitored resources. Every type tag is
// validated; all invalid tags are reported together.
func (c *Config) Resources() ([]domain.Resource, error) {
	var out []domain.Resource
	var errs []error
	for _, g := range c.Groups {
		tags := make([]string, 0, len(g.Resources))
		for tag := range g.Resources {
			tags = append(tags, tag)
		}
		sort.Strings(tags)

		for _, tag := range tags {
			rt, err := domain.ParseResourceType(tag)
			if err != nil {
				errs = append(errs, fmt.Errorf("group %q: %w", g.Name, err))
				continue
			}
			for _, rc := range g.Resources[tag] {
				if rc.Name == "" {
					errs = append(errs, fmt.Errorf("group %q: %s resource without a name", g.Name, rt))
					continue
				}
				res := domain.Resource{
					Type:            rt,
					Name:            rc.Name,
					Group:           g.Name,
					Region:          rc.Region,
					AccountID:       rc.AccountID,
					MinRequiredRuns: rc.MinRequiredRuns,
					SLASeconds:      rc.SLASeconds,
				}
				if res.Region == "" {
					res.Region = c.Region
				}
				if res.AccountID == "" {
					res.AccountID = c.AccountID
				}
				out = append(out, res)
			}
		}
	}
	return out, errors.Join(errs...)
}

// Load loads configuration from files and environment
// Config file search order (highest precedence first):
// 1. ./.runwatch.yaml or ./runwatch.yaml
// 2. ~/.runwatch.yaml or ~/runwatch.yaml
// 3. $XDG_CONFIG_HOME/runwatch/config.yaml (or ~/.config/runwatch/config.yaml)
// 4. /etc/runwatch/config.yaml
// RUNWATCH_* environment variables override file values, e.g.
// RUNWATCH_STORE_PATH for store.path.
func Load() (*Config, error) {
	return load(findConfigFile())
}

// LoadFromFile loads configuration from a specific file
func LoadFromFile(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config file path is empty")
	}
	return load(path)
}

func load(path string) (*Config, error) {
	v := newViper()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// newViper returns a viper instance seeded with the defaults so that every
// scalar key can be overridden from the environment
func newViper() *viper.Viper {
	v := viper.New()
	d := Default()

	v.SetDefault("format", d.Format)
	v.SetDefault("verbose", d.Verbose)
	v.SetDefault("store.path", d.Store.Path)
	v.SetDefault("store.retention", d.Store.Retention)
	v.SetDefault("source.dir", d.Source.Dir)
	v.SetDefault("digest.period", d.Digest.Period)
	v.SetDefault("workers", d.Workers)
	v.SetDefault("region", d.Region)
	v.SetDefault("account_id", d.AccountID)

	v.SetEnvPrefix("RUNWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// findConfigFile searches for config file in standard locations
func findConfigFile() string {
	names := []string{".runwatch.yaml", ".runwatch.yml", "runwatch.yaml", "runwatch.yml"}

	home, homeErr := os.UserHomeDir()
	configDir, configDirErr := os.UserConfigDir()

	var searchPaths []string
	if cwd, err := os.Getwd(); err == nil {
		searchPaths = append(searchPaths, cwd)
	}
	if homeErr == nil {
		searchPaths = append(searchPaths, home)
	}
	if configDirErr == nil {
		searchPaths = append(searchPaths, filepath.Join(configDir, "runwatch"))
	}
	searchPaths = append(searchPaths, "/etc/runwatch")

	for _, dir := range searchPaths {
		for _, name := range names {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
		// Also check for config.yaml in subdirs
		if filepath.Base(dir) == "runwatch" {
			path := filepath.Join(dir, "config.yaml")
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}

	return ""
}

// ConfigFile returns the path to the config file that would be loaded
func ConfigFile() string {
	return findConfigFile()
}
