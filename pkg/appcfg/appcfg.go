package appcfg

import (
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultPrefix        = "aaaaa"
	DefaultProgressEvery = 100_000
	DefaultPath          = "configs/app.yaml"
)

type Config struct {
	LogLevel             string        `yaml:"log_level"` // "debug"|"info"|"warn"|"error"
	LogDir               string        `yaml:"log_dir"`   // "" = console only, no results file
	HideSecretsInConsole bool          `yaml:"hide_secrets_in_console"`
	Workers              int           `yaml:"workers"` // 0 = one per CPU
	ProgressEvery        uint64        `yaml:"progress_every"`
	DefaultPrefix        string        `yaml:"default_prefix"`
	StrictPrefix         bool          `yaml:"strict_prefix"` // reject prefixes that can never match
	MaxAttempts          uint64        `yaml:"max_attempts"`  // 0 = unbounded
	MaxDuration          time.Duration `yaml:"max_duration"`  // 0 = unbounded, e.g. "2h"
	Passphrase           string        `yaml:"passphrase"`    // BIP-39 passphrase, empty by default
}

func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// Load reads a YAML file. A missing file is not an error; defaults are returned
// together with an error satisfying errors.Is(err, os.ErrNotExist).
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Default(), fmt.Errorf("open app config %q: %w", path, err)
	}
	defer f.Close()

	var c Config
	if err := yaml.NewDecoder(f).Decode(&c); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode app yaml %q: %w", path, err)
	}
	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("app config %q: %w", path, err)
	}
	c.applyDefaults()
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}
	if c.ProgressEvery == 0 {
		c.ProgressEvery = DefaultProgressEvery
	}
	if c.DefaultPrefix == "" {
		c.DefaultPrefix = DefaultPrefix
	}
}

func (c *Config) validate() error {
	if c.Workers < 0 {
		return errors.New("workers must be >= 0")
	}
	if c.MaxDuration < 0 {
		return errors.New("max_duration must be >= 0")
	}
	switch c.LogLevel {
	case "", "debug", "info", "warn", "warning", "error", "err":
	default:
		return fmt.Errorf("unknown log_level %q", c.LogLevel)
	}
	return nil
}
