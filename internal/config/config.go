// Package config holds the server configuration, loaded from an optional
// TOML file with flag-friendly defaults.
package config

import (
	"os"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/slidesmith/slidesmith/pkg/errors"
)

// Size limits enforced at the HTTP boundary. The engine never sees an
// oversized upload.
const (
	DefaultMaxDeckMB  = 50
	DefaultMaxImageMB = 10
)

// Config is the server configuration.
type Config struct {
	// Addr is the listen address for the HTTP API.
	Addr string `toml:"addr"`

	// MaxDeckMB caps uploaded deck size in MiB.
	MaxDeckMB int64 `toml:"max_deck_size_mb"`

	// MaxImageMB caps uploaded image size in MiB.
	MaxImageMB int64 `toml:"max_image_size_mb"`

	// ReadTimeout and WriteTimeout bound request handling. Write must leave
	// room for composing and serializing a large deck.
	ReadTimeout  Duration `toml:"read_timeout"`
	WriteTimeout Duration `toml:"write_timeout"`

	// CacheDir stores inspection results; empty uses the user cache dir.
	CacheDir string `toml:"cache_dir"`
}

// Duration decodes TOML strings like "30s" into a time.Duration.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler for TOML decoding.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Addr:         ":8080",
		MaxDeckMB:    DefaultMaxDeckMB,
		MaxImageMB:   DefaultMaxImageMB,
		ReadTimeout:  Duration{30 * time.Second},
		WriteTimeout: Duration{60 * time.Second},
	}
}

// Load reads a TOML config file, filling unset fields from defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrap(errors.ErrCodeInvalidInput, err, "cannot read config %s", path)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrap(errors.ErrCodeInvalidInput, err, "invalid config %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects configurations the server cannot run with.
func (c Config) Validate() error {
	if c.Addr == "" {
		return errors.New(errors.ErrCodeInvalidInput, "listen address must not be empty")
	}
	if c.MaxDeckMB <= 0 {
		return errors.New(errors.ErrCodeInvalidInput, "max_deck_size_mb must be positive, got %d", c.MaxDeckMB)
	}
	if c.MaxImageMB <= 0 {
		return errors.New(errors.ErrCodeInvalidInput, "max_image_size_mb must be positive, got %d", c.MaxImageMB)
	}
	return nil
}

// MaxDeckBytes returns the deck limit in bytes.
func (c Config) MaxDeckBytes() int64 { return c.MaxDeckMB << 20 }

// MaxImageBytes returns the image limit in bytes.
func (c Config) MaxImageBytes() int64 { return c.MaxImageMB << 20 }
