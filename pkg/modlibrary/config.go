package modlibrary

import (
	"os"
	"path/filepath"

	"github.com/himanishpuri/ModLibrary/pkg/modlibrary/fingerprint"
	"github.com/himanishpuri/ModLibrary/pkg/modlibrary/storage"
)

type Config struct {
	DBPath        string
	SampleRate    int
	Logger        Logger
	Storage       Storage
	Decoder       Decoder
	Fingerprinter func() fingerprint.Service
	Matcher       fingerprint.Strategy
}

type Option func(*Config)

func WithDBPath(path string) Option {
	return func(c *Config) {
		c.DBPath = path
	}
}

func WithSampleRate(rate int) Option {
	return func(c *Config) {
		c.SampleRate = rate
	}
}

func WithLogger(log Logger) Option {
	return func(c *Config) {
		c.Logger = log
	}
}

func WithStorage(storage Storage) Option {
	return func(c *Config) {
		c.Storage = storage
	}
}

func WithDecoder(dec Decoder) Option {
	return func(c *Config) {
		c.Decoder = dec
	}
}

// WithFingerprinter sets the factory for the accumulator used per file.
func WithFingerprinter(newService func() fingerprint.Service) Option {
	return func(c *Config) {
		c.Fingerprinter = newService
	}
}

func WithMatcher(strategy fingerprint.Strategy) Option {
	return func(c *Config) {
		c.Matcher = strategy
	}
}

// DefaultDBPath is "<user config dir>/ModLibrary/Mod Library.sqlite", or the
// file name alone when the config directory is unknown.
func DefaultDBPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return storage.DefaultDBFile
	}
	return filepath.Join(dir, "ModLibrary", storage.DefaultDBFile)
}

func defaultConfig() *Config {
	return &Config{
		DBPath:     DefaultDBPath(),
		SampleRate: fingerprint.DefaultSampleRate,
		Fingerprinter: func() fingerprint.Service {
			return fingerprint.NewSpectral()
		},
	}
}
