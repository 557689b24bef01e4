// Package config loads nary's settings.
//
// Values are layered: built-in defaults, then a .nary.toml file (the
// working directory first, then the home directory), then NARY_* environment
// variables, then command-line flags bound by the CLI.
package config

import (
	"bytes"
	stderrors "errors"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"

	"github.com/matzehuels/nary/pkg/deps"
	"github.com/matzehuels/nary/pkg/errors"
	"github.com/matzehuels/nary/pkg/install"
	"github.com/matzehuels/nary/pkg/integrations/npm"
	"github.com/matzehuels/nary/pkg/semver"
)

const (
	// EnvPrefix prefixes every environment variable, as in NARY_REGISTRY.
	EnvPrefix = "NARY"
	// FileName is the config file searched for, without extension.
	FileName = ".nary"
)

// Config holds the runtime configuration.
type Config struct {
	CacheDir    string        `mapstructure:"cache_dir"`
	Registry    string        `mapstructure:"registry"`
	Concurrency int           `mapstructure:"concurrency"`
	ORPolicy    string        `mapstructure:"or_policy"`
	MaxDepth    int           `mapstructure:"max_depth"`
	MetadataTTL time.Duration `mapstructure:"metadata_ttl"`
	Retries     int           `mapstructure:"retries"`
	Production  bool          `mapstructure:"production"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Registry:    npm.DefaultRegistry,
		Concurrency: install.DefaultConcurrency,
		ORPolicy:    string(semver.DefaultPolicy),
		MaxDepth:    deps.DefaultMaxDepth,
	}
}

// NewViper returns a viper instance with defaults, the config file and the
// environment applied. An explicit configFile must exist; the searched-for
// .nary.toml is optional.
func NewViper(configFile string) (*viper.Viper, error) {
	v := viper.New()
	d := Defaults()
	v.SetDefault("cache_dir", d.CacheDir)
	v.SetDefault("registry", d.Registry)
	v.SetDefault("concurrency", d.Concurrency)
	v.SetDefault("or_policy", d.ORPolicy)
	v.SetDefault("max_depth", d.MaxDepth)
	v.SetDefault("metadata_ttl", d.MetadataTTL)
	v.SetDefault("retries", d.Retries)
	v.SetDefault("production", d.Production)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType("toml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !stderrors.As(err, &notFound) {
			return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "read config")
		}
	}
	return v, nil
}

// Load decodes and validates the configuration held by v.
func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errors.Wrap(errors.ErrCodeInvalidInput, err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c Config) Validate() error {
	if c.Concurrency < 1 {
		return errors.New(errors.ErrCodeInvalidInput, "concurrency must be at least 1, got %d", c.Concurrency)
	}
	if c.MaxDepth < 1 {
		return errors.New(errors.ErrCodeInvalidInput, "max_depth must be at least 1, got %d", c.MaxDepth)
	}
	if c.Retries < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "retries must not be negative, got %d", c.Retries)
	}
	if c.MetadataTTL < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "metadata_ttl must not be negative, got %s", c.MetadataTTL)
	}
	if err := errors.ValidateURL(c.Registry); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidInput, err, "registry %q", c.Registry)
	}
	if _, err := semver.ParsePolicy(c.ORPolicy); err != nil {
		return err
	}
	return nil
}

// Policy returns the parsed OR-range policy. Call Validate first.
func (c Config) Policy() semver.ORPolicy {
	p, err := semver.ParsePolicy(c.ORPolicy)
	if err != nil {
		return semver.DefaultPolicy
	}
	return p
}

// file is the TOML shape of Config.
type file struct {
	CacheDir    string `toml:"cache_dir"`
	Registry    string `toml:"registry"`
	Concurrency int    `toml:"concurrency"`
	ORPolicy    string `toml:"or_policy"`
	MaxDepth    int    `toml:"max_depth"`
	MetadataTTL string `toml:"metadata_ttl"`
	Retries     int    `toml:"retries"`
	Production  bool   `toml:"production"`
}

// TOML encodes c in the .nary.toml format.
func (c Config) TOML() ([]byte, error) {
	var buf bytes.Buffer
	err := toml.NewEncoder(&buf).Encode(file{
		CacheDir:    c.CacheDir,
		Registry:    c.Registry,
		Concurrency: c.Concurrency,
		ORPolicy:    c.ORPolicy,
		MaxDepth:    c.MaxDepth,
		MetadataTTL: c.MetadataTTL.String(),
		Retries:     c.Retries,
		Production:  c.Production,
	})
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "encode config")
	}
	return buf.Bytes(), nil
}
