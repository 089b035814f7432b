package cmd

import (
	"fmt"
	"os"

	"github.com/calla-labs/reloop/internal/config"
	"github.com/calla-labs/reloop/internal/logging"
	"github.com/calla-labs/reloop/internal/progress"
	"github.com/calla-labs/reloop/internal/quota"
)

// environment is everything a subcommand needs before doing real work:
// validated config, the resolved state directory, and a logger writing
// into it.
type environment struct {
	cfg      *config.Config
	stateDir string
	logger   *logging.Logger
}

func loadEnvironment() (*environment, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get current directory: %w", err)
	}
	stateDir := cfg.Paths.ResolveStateDir(cwd)
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}

	logger := logging.NopLogger()
	if cfg.Logging.Enabled {
		rotation := logging.DefaultRotationConfig()
		if cfg.Logging.MaxSizeMB > 0 {
			rotation.MaxSizeMB = cfg.Logging.MaxSizeMB
		}
		if cfg.Logging.MaxBackups > 0 {
			rotation.MaxBackups = cfg.Logging.MaxBackups
		}
		logger, err = logging.NewLogger(stateDir, logging.ParseLevel(cfg.Logging.Level), rotation)
		if err != nil {
			return nil, fmt.Errorf("initializing logging: %w", err)
		}
	}

	return &environment{cfg: cfg, stateDir: stateDir, logger: logger}, nil
}

func (e *environment) Close() {
	_ = e.logger.Close()
}

// loadDetector builds a detector over the persisted progress ledger.
func (e *environment) loadDetector() (*progress.Detector, error) {
	st, err := progress.Load(e.stateDir)
	if err != nil {
		return nil, err
	}
	thresholds := progress.Thresholds{
		NoProgress: e.cfg.Loop.NoProgressThreshold,
		SameError:  e.cfg.Loop.SameErrorThreshold,
	}
	return progress.NewDetector(st, thresholds, e.logger), nil
}

// loadGate builds a quota gate over the persisted tracker.
func (e *environment) loadGate() (*quota.Gate, error) {
	st, err := quota.Load(e.stateDir)
	if err != nil {
		return nil, err
	}
	return quota.NewGate(st, e.cfg.Quota.HourlyCallLimit, e.cfg.Quota.Window(), e.logger), nil
}
