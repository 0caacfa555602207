package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/DylanMcBean/Exepose/internal/db"
	"github.com/DylanMcBean/Exepose/internal/monitor"
)

// Config represents the application configuration
type Config struct {
	Monitor MonitorConfig `toml:"monitor" yaml:"monitor"`
	Process ProcessConfig `toml:"process" yaml:"process"`
	History db.Config     `toml:"history" yaml:"history"`
	Logging LoggingConfig `toml:"logging" yaml:"logging"`
}

// MonitorConfig holds the polling settings. Durations are whole seconds.
type MonitorConfig struct {
	OutputDir           string `toml:"output_dir" yaml:"output_dir"`
	StatsFile           string `toml:"fuzzer_stats" yaml:"fuzzer_stats"`
	MaxTimeWithoutFinds int    `toml:"max_time_without_finds" yaml:"max_time_without_finds"`
	CheckInterval       int    `toml:"check_interval" yaml:"check_interval"`
	InitialDelay        int    `toml:"initial_delay" yaml:"initial_delay"`
}

// ProcessConfig selects how fuzzer processes are found
type ProcessConfig struct {
	Pattern string `toml:"pattern" yaml:"pattern"`
	Locator string `toml:"locator" yaml:"locator"`

	// ProcRoot is scanned by the procfs locator
	ProcRoot string `toml:"proc_root" yaml:"proc_root"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string `toml:"level" yaml:"level"`
	Format string `toml:"format" yaml:"format"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Monitor: MonitorConfig{
			OutputDir:           "/path/to/fuzzer/output",
			StatsFile:           "fuzzer_stats",
			MaxTimeWithoutFinds: 3600,
			CheckInterval:       60,
			InitialDelay:        int(monitor.DefaultInitialDelay / time.Second),
		},
		Process: ProcessConfig{
			Pattern:  "afl-fuzz",
			Locator:  "pgrep",
			ProcRoot: "/proc",
		},
		History: db.Config{
			Enabled:         false,
			Driver:          "sqlite3",
			DSN:             "fuzzmon.db",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
			SkipMigrations:  false,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadFromFile loads configuration from a TOML or YAML file, chosen by
// extension. Keys missing from the file keep their defaults.
func LoadFromFile(path string) (*Config, error) {
	config := DefaultConfig()

	content, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config file does not exist: %s", path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml", "":
		err = decodeTOML(content, config)
	case ".yaml", ".yml":
		err = decodeYAML(content, config)
	default:
		return nil, fmt.Errorf("unsupported config file extension %q (must be .toml, .yaml or .yml)", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

func decodeTOML(content []byte, config *Config) error {
	md, err := toml.Decode(string(content), config)
	if err != nil {
		return err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("unknown keys: %v", undecoded)
	}
	return nil
}

func decodeYAML(content []byte, config *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(content))
	dec.KnownFields(true)

	// An empty document decodes to io.EOF and leaves the defaults alone.
	if err := dec.Decode(config); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// LoadConfig loads configuration with the following precedence:
// 1. Default values
// 2. Config file (if specified)
// 3. Command-line flags (handled by caller)
func LoadConfig(configPath string) (*Config, error) {
	if configPath == "" {
		return DefaultConfig(), nil
	}

	return LoadFromFile(configPath)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Monitor validation
	if c.Monitor.StatsFile == "" {
		return fmt.Errorf("monitor fuzzer_stats must be specified")
	}
	if c.Monitor.CheckInterval <= 0 {
		return fmt.Errorf("monitor check_interval must be positive")
	}
	if c.Monitor.MaxTimeWithoutFinds < 0 {
		return fmt.Errorf("monitor max_time_without_finds must not be negative")
	}
	if c.Monitor.InitialDelay < 0 {
		return fmt.Errorf("monitor initial_delay must not be negative")
	}

	// Process validation
	if c.Process.Pattern == "" {
		return fmt.Errorf("process pattern must be specified")
	}
	if c.Process.Locator != "pgrep" && c.Process.Locator != "procfs" {
		return fmt.Errorf("unsupported process locator: %s (must be pgrep or procfs)", c.Process.Locator)
	}
	if c.Process.Locator == "procfs" && c.Process.ProcRoot == "" {
		return fmt.Errorf("process proc_root must be specified for the procfs locator")
	}

	// History validation
	if c.History.Enabled {
		if _, err := db.DriverName(c.History.Driver); err != nil {
			return fmt.Errorf("unsupported history driver: %s (must be sqlite3 or pgx)", c.History.Driver)
		}
		if c.History.DSN == "" {
			return fmt.Errorf("history DSN must be specified")
		}
	}

	// Logging validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}
	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		return fmt.Errorf("invalid log format: %s (must be text or json)", c.Logging.Format)
	}

	return nil
}

// maxSeconds is the largest whole number of seconds a time.Duration holds
const maxSeconds = math.MaxInt64 / int64(time.Second)

// seconds converts n seconds to a Duration, saturating instead of wrapping
func seconds(n int) time.Duration {
	if int64(n) > maxSeconds {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(n) * time.Second
}

// MonitorSettings converts the monitor section into loop settings. Values
// beyond the Duration range (about 292 years) are clamped to it.
func (c *Config) MonitorSettings() monitor.Config {
	return monitor.Config{
		OutputDir:           c.Monitor.OutputDir,
		StatsFile:           c.Monitor.StatsFile,
		MaxTimeWithoutFinds: seconds(c.Monitor.MaxTimeWithoutFinds),
		CheckInterval:       seconds(c.Monitor.CheckInterval),
		InitialDelay:        seconds(c.Monitor.InitialDelay),
	}
}
