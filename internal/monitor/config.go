package monitor

import (
	"fmt"
	"time"
)

// DefaultInitialDelay is the wait before the first check. It is shorter than
// the check interval so the first data point shows up quickly.
const DefaultInitialDelay = 10 * time.Second

// Config defines the immutable settings of one monitor run
type Config struct {
	OutputDir           string
	StatsFile           string
	MaxTimeWithoutFinds time.Duration
	CheckInterval       time.Duration
	InitialDelay        time.Duration
}

// validateConfig validates monitor configuration and returns error if invalid
func validateConfig(config Config) error {
	if config.CheckInterval <= 0 {
		return fmt.Errorf("CheckInterval must be positive, got %v", config.CheckInterval)
	}

	if config.InitialDelay < 0 {
		return fmt.Errorf("InitialDelay must not be negative, got %v", config.InitialDelay)
	}

	if config.MaxTimeWithoutFinds < 0 {
		return fmt.Errorf("MaxTimeWithoutFinds must not be negative, got %v", config.MaxTimeWithoutFinds)
	}

	return nil
}
