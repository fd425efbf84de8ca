// Package config loads elannet settings from defaults, an optional YAML
// file and ELANNET_* environment variables, in increasing priority.
package config

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/born-ml/elannet/internal/elan"
	"github.com/born-ml/elannet/internal/weights"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override: cache.dir is read from
// ELANNET_CACHE_DIR.
const EnvPrefix = "ELANNET"

// Config is the resolved configuration.
type Config struct {
	Cache   CacheConfig   `mapstructure:"cache"`
	Runtime RuntimeConfig `mapstructure:"runtime"`
	Model   ModelConfig   `mapstructure:"model"`
	Weights WeightsConfig `mapstructure:"weights"`
	UI      UIConfig      `mapstructure:"ui"`
}

// CacheConfig controls where checkpoints are stored.
type CacheConfig struct {
	Dir       string `mapstructure:"dir"`
	CheckHash bool   `mapstructure:"check_hash"`
}

// RuntimeConfig controls the CPU backend. Zero workers means GOMAXPROCS.
type RuntimeConfig struct {
	Workers int `mapstructure:"workers"`
}

// ModelConfig holds factory defaults.
type ModelConfig struct {
	Variant    string `mapstructure:"variant"`
	NumClasses int    `mapstructure:"num_classes"`
}

// WeightsConfig overrides checkpoint URLs per variant name.
type WeightsConfig struct {
	URLs map[string]string `mapstructure:"urls"`
}

// UIConfig controls terminal output.
type UIConfig struct {
	Progress bool `mapstructure:"progress"`
	Verbose  bool `mapstructure:"verbose"`
}

// New returns a viper instance with defaults and environment bindings
// set, searching the standard config directories for config.yaml.
func New() *viper.Viper {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if dir := userConfigDir(); dir != "" {
		v.AddConfigPath(dir)
	}

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the configuration. A non-empty path names the file
// explicitly and must exist; otherwise a missing config.yaml is not an
// error.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Cache.Dir = expandPath(cfg.Cache.Dir)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges and variant names.
func (c *Config) Validate() error {
	if c.Runtime.Workers < 0 {
		return fmt.Errorf("runtime.workers must be >= 0, got %d", c.Runtime.Workers)
	}
	if c.Model.NumClasses <= 0 {
		return fmt.Errorf("model.num_classes must be > 0, got %d", c.Model.NumClasses)
	}
	if _, err := elan.ParseVariant(c.Model.Variant); err != nil {
		return fmt.Errorf("model.variant: %w", err)
	}
	for name := range c.Weights.URLs {
		if _, err := elan.ParseVariant(name); err != nil {
			return fmt.Errorf("weights.urls: %w", err)
		}
	}
	return nil
}

// WeightsURL returns the configured checkpoint URL override for v.
func (c *Config) WeightsURL(v elan.Variant) (string, bool) {
	url, ok := c.Weights.URLs[v.String()]
	return url, ok && url != ""
}

// WeightsOptions converts the cache and UI settings into loader options.
// progress receives the download bar when ui.progress is set; logger may
// be nil.
func (c *Config) WeightsOptions(progress io.Writer, logger *log.Logger) weights.Options {
	opts := weights.Options{
		CacheDir:  c.Cache.Dir,
		CheckHash: c.Cache.CheckHash,
		Logger:    logger,
	}
	if c.UI.Progress {
		opts.Progress = progress
	}
	return opts
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("cache.dir", weights.DefaultCacheDir())
	v.SetDefault("cache.check_hash", true)

	v.SetDefault("runtime.workers", 0)

	v.SetDefault("model.variant", elan.Large.String())
	v.SetDefault("model.num_classes", elan.DefaultNumClasses)

	v.SetDefault("ui.progress", true)
	v.SetDefault("ui.verbose", false)
}

func userConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "elannet")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	if runtime.GOOS == "windows" {
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "elannet")
		}
	}
	return filepath.Join(home, ".config", "elannet")
}

// expandPath expands a leading ~ and environment variables.
func expandPath(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[1:])
		}
	}
	return os.ExpandEnv(path)
}
