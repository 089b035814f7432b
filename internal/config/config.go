package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete reloop configuration.
// All defaults are enumerated in Default() and resolved once at startup;
// components receive resolved values rather than re-reading configuration
// ad hoc.
type Config struct {
	Loop     LoopConfig     `mapstructure:"loop"`
	Quota    QuotaConfig    `mapstructure:"quota"`
	Research ResearchConfig `mapstructure:"research"`
	Agent    AgentConfig    `mapstructure:"agent"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Paths    PathsConfig    `mapstructure:"paths"`
}

// LoopConfig controls the outer iteration loop and its stuck detection.
type LoopConfig struct {
	// NoProgressThreshold is the number of consecutive iterations with no
	// change in the completion vector before the loop halts (default: 3)
	NoProgressThreshold int `mapstructure:"no_progress_threshold"`
	// SameErrorThreshold is the number of consecutive iterations with an
	// identical error fingerprint before the loop halts (default: 5)
	SameErrorThreshold int `mapstructure:"same_error_threshold"`
	// MaxIterations is the maximum number of iterations before stopping
	// regardless of progress (default: 50, 0 = unlimited)
	MaxIterations int `mapstructure:"max_iterations"`
	// CompletionPromise is the text the agent outputs inside
	// <promise>...</promise> to signal the task is fully done (default: "DONE")
	CompletionPromise string `mapstructure:"completion_promise"`
	// StoriesFile is the markdown file whose checkbox list supplies the
	// completion vector, one entry per user story (default: "prd.md")
	StoriesFile string `mapstructure:"stories_file"`
}

// QuotaConfig controls the rolling-window call budget.
type QuotaConfig struct {
	// HourlyCallLimit is the number of agent calls permitted per window
	// (default: 100)
	HourlyCallLimit int `mapstructure:"hourly_call_limit"`
	// WindowSeconds is the quota window length in seconds (default: 3600)
	WindowSeconds int `mapstructure:"window_seconds"`
}

// ResearchConfig controls the pool of background investigative tasks.
type ResearchConfig struct {
	// MaxConcurrent is the maximum number of research tasks running at
	// once (default: 3)
	MaxConcurrent int `mapstructure:"max_concurrent"`
	// TimeoutSeconds is the per-task runtime bound before forcible
	// termination (default: 600)
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
	// Model is the execution profile used for research tasks; research is
	// investigative, so the default is a lightweight model
	Model string `mapstructure:"model"`
	// OutputDir is where research artifacts are written, relative to the
	// working directory unless absolute (default: "research")
	OutputDir string `mapstructure:"output_dir"`
	// TemplateFile is an optional external prompt template; when absent
	// or unreadable the built-in template is used and the spawn proceeds
	TemplateFile string `mapstructure:"template_file"`
}

// AgentConfig controls how the primary coding agent is invoked.
type AgentConfig struct {
	// Command is the agent executable (default: "claude")
	Command string `mapstructure:"command"`
	// Args are extra arguments prepended before the prompt
	Args []string `mapstructure:"args"`
	// Model is the execution profile for primary iterations; empty means
	// the agent's own default
	Model string `mapstructure:"model"`
}

// LoggingConfig controls debug logging behavior.
type LoggingConfig struct {
	// Enabled controls whether debug logging is enabled (default: true)
	Enabled bool `mapstructure:"enabled"`
	// Level is the log level: "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level"`
	// MaxSizeMB is the maximum log file size in megabytes before rotation (default: 10)
	MaxSizeMB int `mapstructure:"max_size_mb"`
	// MaxBackups is the number of backup log files to keep (default: 3)
	MaxBackups int `mapstructure:"max_backups"`
}

// PathsConfig controls where reloop stores run state.
type PathsConfig struct {
	// StateDir is the directory holding the progress ledger, quota
	// tracker, and log files. If empty, defaults to ".reloop" relative
	// to the working directory. Supports ~ for home directory expansion.
	StateDir string `mapstructure:"state_dir"`
}

// ResolveStateDir returns the resolved state directory path.
// If StateDir is empty, it returns the default path relative to baseDir.
// If StateDir starts with ~, it expands to the user's home directory.
// If StateDir is a relative path, it's resolved relative to baseDir.
func (p *PathsConfig) ResolveStateDir(baseDir string) string {
	if p.StateDir == "" {
		return filepath.Join(baseDir, ".reloop")
	}

	path := p.StateDir

	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[2:])
		}
	} else if path == "~" {
		home, err := os.UserHomeDir()
		if err == nil {
			path = home
		}
	}

	if !filepath.IsAbs(path) {
		path = filepath.Join(baseDir, path)
	}

	return path
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Loop: LoopConfig{
			NoProgressThreshold: 3,
			SameErrorThreshold:  5,
			MaxIterations:       50,
			CompletionPromise:   "DONE",
			StoriesFile:         "prd.md",
		},
		Quota: QuotaConfig{
			HourlyCallLimit: 100,
			WindowSeconds:   3600,
		},
		Research: ResearchConfig{
			MaxConcurrent:  3,
			TimeoutSeconds: 600,
			Model:          "claude-3-5-haiku-latest",
			OutputDir:      "research",
			TemplateFile:   "",
		},
		Agent: AgentConfig{
			Command: "claude",
			Args:    []string{"-p", "--dangerously-skip-permissions"},
			Model:   "",
		},
		Logging: LoggingConfig{
			Enabled:    true,
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
		Paths: PathsConfig{
			StateDir: "", // Empty means use default: .reloop
		},
	}
}

// Window returns the quota window as a time.Duration.
func (c *QuotaConfig) Window() time.Duration {
	return time.Duration(c.WindowSeconds) * time.Second
}

// Timeout returns the research task timeout as a time.Duration.
func (c *ResearchConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// SetDefaults registers default values with viper.
func SetDefaults() {
	defaults := Default()

	// Loop defaults
	viper.SetDefault("loop.no_progress_threshold", defaults.Loop.NoProgressThreshold)
	viper.SetDefault("loop.same_error_threshold", defaults.Loop.SameErrorThreshold)
	viper.SetDefault("loop.max_iterations", defaults.Loop.MaxIterations)
	viper.SetDefault("loop.completion_promise", defaults.Loop.CompletionPromise)
	viper.SetDefault("loop.stories_file", defaults.Loop.StoriesFile)

	// Quota defaults
	viper.SetDefault("quota.hourly_call_limit", defaults.Quota.HourlyCallLimit)
	viper.SetDefault("quota.window_seconds", defaults.Quota.WindowSeconds)

	// Research defaults
	viper.SetDefault("research.max_concurrent", defaults.Research.MaxConcurrent)
	viper.SetDefault("research.timeout_seconds", defaults.Research.TimeoutSeconds)
	viper.SetDefault("research.model", defaults.Research.Model)
	viper.SetDefault("research.output_dir", defaults.Research.OutputDir)
	viper.SetDefault("research.template_file", defaults.Research.TemplateFile)

	// Agent defaults
	viper.SetDefault("agent.command", defaults.Agent.Command)
	viper.SetDefault("agent.args", defaults.Agent.Args)
	viper.SetDefault("agent.model", defaults.Agent.Model)

	// Logging defaults
	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	viper.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)

	// Paths defaults
	viper.SetDefault("paths.state_dir", defaults.Paths.StateDir)
}

// Load reads the configuration from viper into a Config struct and
// validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// ConfigDir returns the path to the user's config directory.
func ConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "reloop")
	}
	// Fall back to ~/.config/reloop
	home, err := os.UserHomeDir()
	if err != nil {
		return ".reloop"
	}
	return filepath.Join(home, ".config", "reloop")
}

// ConfigFile returns the path to the config file.
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
