// Package config provides layered configuration loading for TrafficControl:
// built-in defaults, then an optional YAML file, then recognized
// environment variables, then CLI flags, each layer overriding the one
// before it. Grounded on the teacher's pkg/config global-singleton,
// value-based-access philosophy, adapted from project-config-on-disk to a
// single process-wide orchestrator config since this module has no
// per-project config directory.
package config

import (
	"fmt"
	"os"
	"strconv"
	"sync"

	"gopkg.in/yaml.v3"
)

// ModelLimits maps a model tier name to its concurrent session limit.
type ModelLimits map[string]int

// Config is the orchestrator's full runtime configuration. Loaded once at
// startup and accessed thereafter by value via Get.
type Config struct {
	PollIntervalMs            int         `yaml:"pollIntervalMs"`
	GracefulShutdownTimeoutMs int         `yaml:"gracefulShutdownTimeoutMs"`
	StatusCheckInIntervalMs   int         `yaml:"statusCheckInIntervalMs"`
	ModelLimits               ModelLimits `yaml:"modelLimits"`

	EventHistorySize int `yaml:"eventHistorySize"`

	MaxConsecutiveAgentErrors int     `yaml:"maxConsecutiveAgentErrors"`
	ErrorRateWindow           int     `yaml:"errorRateWindow"`
	ErrorRateThreshold        float64 `yaml:"errorRateThreshold"`
	HalfOpenProbeTimeoutMs    int     `yaml:"halfOpenProbeTimeoutMs"`

	DailyBudgetUSD  float64 `yaml:"dailyBudgetUsd"`
	WeeklyBudgetUSD float64 `yaml:"weeklyBudgetUsd"`
	WarningPercent  float64 `yaml:"warningPercent"`
	CriticalPercent float64 `yaml:"criticalPercent"`
	HardStopAtLimit bool    `yaml:"hardStopAtLimit"`

	ProductivityWarningTokens  int64 `yaml:"productivityWarningTokens"`
	ProductivityCriticalTokens int64 `yaml:"productivityCriticalTokens"`
	ProductivityAlertCooldownMs int  `yaml:"productivityAlertCooldownMs"`
	ProductivityAutoPause      bool  `yaml:"productivityAutoPause"`

	// TokenLimitWithoutOutput is the circuit breaker's own token-stall trip
	// threshold (spec section 4.5), independent of the productivity
	// monitor's warning/critical thresholds above. Zero disables the trip.
	TokenLimitWithoutOutput int64 `yaml:"tokenLimitWithoutOutput"`

	MaxConsecutiveDBFailures int `yaml:"maxConsecutiveDbFailures"`

	RequireApprovalForAll bool `yaml:"requireApprovalForAll"`
	AutoApproveConfirmed  bool `yaml:"autoApproveConfirmed"`

	StatePath string `yaml:"statePath"`
	LogLevel  string `yaml:"logLevel"`

	SlackChannelID string `yaml:"-"`
	SlackBotToken  string `yaml:"-"`

	HTTPAddr string `yaml:"httpAddr"`
}

// Default returns the built-in baseline configuration. Every loader layer
// starts here.
func Default() Config {
	return Config{
		PollIntervalMs:            5000,
		GracefulShutdownTimeoutMs: 30000,
		StatusCheckInIntervalMs:   60000,
		ModelLimits:               ModelLimits{"opus": 2, "sonnet": 5, "haiku": 10},
		EventHistorySize:          500,
		MaxConsecutiveAgentErrors: 3,
		ErrorRateWindow:           10,
		ErrorRateThreshold:        0.5,
		HalfOpenProbeTimeoutMs:    30000,
		DailyBudgetUSD:            0,
		WeeklyBudgetUSD:           0,
		WarningPercent:            0.75,
		CriticalPercent:           0.9,
		HardStopAtLimit:           true,
		ProductivityWarningTokens: 50000,
		ProductivityAlertCooldownMs: 300000,
		ProductivityAutoPause:     false,
		TokenLimitWithoutOutput:   150000,
		MaxConsecutiveDBFailures:  3,
		RequireApprovalForAll:     false,
		AutoApproveConfirmed:      true,
		StatePath:                 "trafficcontrol-state.json",
		LogLevel:                  "INFO",
		HTTPAddr:                  ":8089",
	}
}

var (
	mu      sync.RWMutex
	current Config
)

// Load builds the layered configuration: defaults, then path (if
// non-empty and present) as YAML, then recognized environment variables.
// CLI flag overlay is applied by ApplyFlags after Load. The result is
// stored as the process-wide singleton and also returned.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parsing %s: %w", path, err)
		}
	}

	applyEnv(&cfg)

	mu.Lock()
	current = cfg
	mu.Unlock()
	return cfg, nil
}

// applyEnv overlays recognized environment variables (section 6 of the
// design) onto cfg.
func applyEnv(cfg *Config) {
	if v := os.Getenv("TC_POLL_INTERVAL_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.PollIntervalMs = n
		}
	}
	if v := os.Getenv("TC_MAX_CONCURRENT_AGENTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			if cfg.ModelLimits == nil {
				cfg.ModelLimits = ModelLimits{}
			}
			for model := range cfg.ModelLimits {
				cfg.ModelLimits[model] = n
			}
		}
	}
	if v := os.Getenv("OPUS_SESSION_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.ModelLimits["opus"] = n
		}
	}
	if v := os.Getenv("SONNET_SESSION_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.ModelLimits["sonnet"] = n
		}
	}
	if v := os.Getenv("TC_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("TC_SLACK_CHANNEL"); v != "" {
		cfg.SlackChannelID = v
	} else if v := os.Getenv("SLACK_CHANNEL_ID"); v != "" {
		cfg.SlackChannelID = v
	}
	if v := os.Getenv("SLACK_BOT_TOKEN"); v != "" {
		cfg.SlackBotToken = v
	}
}

// Get returns a copy of the current process-wide configuration.
func Get() Config {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// Set overwrites the process-wide configuration. Used by the CLI flag
// overlay and by tests.
func Set(cfg Config) {
	mu.Lock()
	defer mu.Unlock()
	current = cfg
}

// Validate checks cfg for internally inconsistent values, returning a
// descriptive error for the first problem found.
func Validate(cfg Config) error {
	if cfg.PollIntervalMs <= 0 {
		return fmt.Errorf("config: pollIntervalMs must be positive, got %d", cfg.PollIntervalMs)
	}
	if len(cfg.ModelLimits) == 0 {
		return fmt.Errorf("config: modelLimits must not be empty")
	}
	for model, limit := range cfg.ModelLimits {
		if limit < 0 {
			return fmt.Errorf("config: modelLimits[%s] must not be negative, got %d", model, limit)
		}
	}
	if cfg.ErrorRateThreshold < 0 || cfg.ErrorRateThreshold > 1 {
		return fmt.Errorf("config: errorRateThreshold must be in [0,1], got %f", cfg.ErrorRateThreshold)
	}
	if cfg.WarningPercent > cfg.CriticalPercent && cfg.CriticalPercent > 0 {
		return fmt.Errorf("config: warningPercent (%f) must not exceed criticalPercent (%f)", cfg.WarningPercent, cfg.CriticalPercent)
	}
	return nil
}
