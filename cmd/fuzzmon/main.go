package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/DylanMcBean/Exepose/internal/config"
	"github.com/DylanMcBean/Exepose/internal/db"
	"github.com/DylanMcBean/Exepose/internal/fuzzstats"
	"github.com/DylanMcBean/Exepose/internal/history"
	"github.com/DylanMcBean/Exepose/internal/monitor"
	"github.com/DylanMcBean/Exepose/internal/process"
)

// flags holds the raw command-line values; only flags the user set are
// applied on top of the loaded configuration
type flags struct {
	configFile          string
	outputDir           string
	statsFile           string
	maxTimeWithoutFinds int
	checkInterval       int
	logLevel            string
	historyDSN          string
}

func parseFlags(fs *flag.FlagSet, args []string) (*flags, map[string]bool, error) {
	defaults := config.DefaultConfig()
	f := &flags{}

	fs.StringVar(&f.configFile, "config", "", "Path to configuration file (TOML or YAML)")
	fs.StringVar(&f.outputDir, "output-dir", defaults.Monitor.OutputDir, "Path to the fuzzer output directory")
	fs.StringVar(&f.statsFile, "fuzzer-stats", defaults.Monitor.StatsFile, "Name of the fuzzer stats file")
	fs.IntVar(&f.maxTimeWithoutFinds, "max-time-without-finds", defaults.Monitor.MaxTimeWithoutFinds, "Maximum time without new finds in seconds")
	fs.IntVar(&f.checkInterval, "check-interval", defaults.Monitor.CheckInterval, "Time between checks in seconds")
	fs.StringVar(&f.logLevel, "log-level", defaults.Logging.Level, "Log level (debug, info, warn, error)")
	fs.StringVar(&f.historyDSN, "history-dsn", "", "Record run history to this database (enables history)")

	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}

	set := make(map[string]bool)
	fs.Visit(func(fl *flag.Flag) {
		set[fl.Name] = true
	})

	return f, set, nil
}

// applyFlags overrides the file configuration with explicitly set flags
func applyFlags(cfg *config.Config, f *flags, set map[string]bool) {
	if set["output-dir"] {
		cfg.Monitor.OutputDir = f.outputDir
	}
	if set["fuzzer-stats"] {
		cfg.Monitor.StatsFile = f.statsFile
	}
	if set["max-time-without-finds"] {
		cfg.Monitor.MaxTimeWithoutFinds = f.maxTimeWithoutFinds
	}
	if set["check-interval"] {
		cfg.Monitor.CheckInterval = f.checkInterval
	}
	if set["log-level"] {
		cfg.Logging.Level = f.logLevel
	}
	if set["history-dsn"] {
		cfg.History.Enabled = true
		cfg.History.DSN = f.historyDSN
	}
}

func loadConfig(args []string) (*config.Config, error) {
	fs := flag.NewFlagSet("fuzzmon", flag.ContinueOnError)
	f, set, err := parseFlags(fs, args)
	if err != nil {
		return nil, err
	}

	cfg, err := config.LoadConfig(f.configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	applyFlags(cfg, f, set)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func newLogger(w io.Writer, cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// openHistory opens and migrates the history store
func openHistory(cfg db.Config, logger *slog.Logger) (*db.DB, error) {
	logger.Info("connecting to history database", "driver", cfg.Driver)
	database, err := db.OpenWithConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to history database: %w", err)
	}

	if cfg.SkipMigrations {
		logger.Info("skipping migrations", "reason", "configured to skip")
		return database, nil
	}

	if err := database.Migrate(); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	version, err := database.SchemaVersion()
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to get schema version: %w", err)
	}
	logger.Info("history schema ready", "version", version)

	return database, nil
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	locator, err := process.NewLocator(cfg.Process.Locator, cfg.Process.Pattern, cfg.Process.ProcRoot, logger)
	if err != nil {
		return err
	}
	stopper := process.NewTerminator(locator, process.Kill, logger)
	source := fuzzstats.NewReader(cfg.Monitor.OutputDir, cfg.Monitor.StatsFile)

	var opts []monitor.Option
	if cfg.History.Enabled {
		database, err := openHistory(cfg.History, logger)
		if err != nil {
			return err
		}
		defer database.Close()

		opts = append(opts, monitor.WithRecorder(history.NewRecorder(database, logger)))
	}

	m, err := monitor.New(cfg.MonitorSettings(), source, stopper, logger, opts...)
	if err != nil {
		return fmt.Errorf("failed to create monitor: %w", err)
	}

	res, err := m.Run(ctx)
	if err != nil {
		return err
	}

	logger.Info("fuzzer monitor finished",
		"run_id", res.RunID,
		"state", res.State.String(),
		"ticks", res.Ticks)
	return nil
}

func main() {
	cfg, err := loadConfig(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		slog.Error("failed to start", "error", err)
		os.Exit(1)
	}

	logger := newLogger(os.Stdout, cfg.Logging)
	slog.SetDefault(logger)

	// Interrupting the monitor leaves the fuzzer running.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("fuzzer monitor failed", "error", err)
		stop()
		os.Exit(1)
	}
}
