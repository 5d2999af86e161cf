package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/richard-senior/poolleague/internal/logger"
	"github.com/richard-senior/poolleague/pkg/league"
)

// Config is the application configuration: where data lives, how to log,
// and the engine parameters
type Config struct {
	Database string        `yaml:"database"` // SQLite file, ":memory:" for a throwaway store
	Log      LogConfig     `yaml:"log"`
	HTTP     HTTPConfig    `yaml:"http"`
	Sources  SourcesConfig `yaml:"sources"`
	Engine   league.Config `yaml:"engine"`
}

type LogConfig struct {
	Output   string `yaml:"output"` // console, file or both (default: file)
	Level    string `yaml:"level"`  // (default: info)
	File     string `yaml:"file"`   // (default: /tmp/poolleague.log)
	DateTime bool   `yaml:"datetime"`
}

type HTTPConfig struct {
	Addr           string   `yaml:"addr"` // (default: :8080)
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// SourcesConfig points at external league data
type SourcesConfig struct {
	ResultsURL string `yaml:"results_url"` // league website results page
	CABundle   string `yaml:"ca_bundle"`   // extra PEM roots for the HTTP client
}

// Default returns the default configuration
func Default() Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.TempDir()
	}
	return Config{
		Database: home + "/.poolleague/league.db",
		Log: LogConfig{
			Output:   "file",
			Level:    "info",
			File:     "/tmp/poolleague.log",
			DateTime: true,
		},
		HTTP: HTTPConfig{
			Addr:           ":8080",
			AllowedOrigins: []string{"*"},
		},
		Engine: league.DefaultConfig(),
	}
}

// Load reads a YAML file over the defaults. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the application settings and the engine parameters
func (c Config) Validate() error {
	if c.Database == "" {
		return fmt.Errorf("database path must be set")
	}
	if _, err := c.outputRune(); err != nil {
		return err
	}
	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	if err := league.ValidateConfig(c.Engine); err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	return nil
}

func (c Config) outputRune() (rune, error) {
	switch c.Log.Output {
	case "console":
		return 'c', nil
	case "", "file":
		return 'f', nil
	case "both":
		return 'b', nil
	}
	return 0, fmt.Errorf("log output must be console, file or both, got: %s", c.Log.Output)
}

// ApplyLogging configures the package logger from the log section
func (c Config) ApplyLogging() error {
	out, err := c.outputRune()
	if err != nil {
		return err
	}
	level, err := logger.ParseLevel(c.Log.Level)
	if err != nil {
		return err
	}
	logger.SetShowDateTime(c.Log.DateTime)
	logger.SetLogFile(c.Log.File)
	if err := logger.SetLogOutput(out); err != nil {
		return err
	}
	logger.SetLevel(level)
	return nil
}
