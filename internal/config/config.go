// Package config holds the tunables for the cognition engine: KB capacity
// and eviction, priority decay, derivation limits, query defaults, and the
// event bus's dispatch pool. Shape follows the teacher's internal/config
// package: a single yaml-tagged Config struct, a DefaultConfig constructor,
// and environment overrides applied after load.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all engine configuration.
type Config struct {
	KB           KBConfig           `yaml:"kb"`
	Priority     PriorityConfig     `yaml:"priority"`
	Rules        RulesConfig        `yaml:"rules"`
	Query        QueryConfig        `yaml:"query"`
	Bus          BusConfig          `yaml:"bus"`
	TMS          TMSConfig          `yaml:"tms"`
	Logging      LoggingConfig      `yaml:"logging"`
}

// KBConfig controls partition capacity and eviction.
type KBConfig struct {
	DefaultCapacity  int     `yaml:"default_capacity"`
	EvictionTarget   float64 `yaml:"eviction_target"` // fraction of capacity kept after eviction
	ProtectedSymbols []string `yaml:"protected_symbols"`
}

// PriorityConfig controls the priority/attention mechanism (spec section 4.3).
type PriorityConfig struct {
	BasePriority   float64 `yaml:"base_priority"`
	AccessIncrement float64 `yaml:"access_increment"`
	DecayRate      float64 `yaml:"decay_rate"`
}

// RulesConfig controls forward/backward chaining limits (spec section 4.5).
type RulesConfig struct {
	DepthLimit        int  `yaml:"depth_limit"`
	ConsultGlobalPartition bool `yaml:"consult_global_partition"`
}

// QueryConfig controls backward-chaining queries (spec section 4.5).
type QueryConfig struct {
	DefaultResultLimit int           `yaml:"default_result_limit"`
	DefaultDeadline    time.Duration `yaml:"default_deadline"`
}

// BusConfig controls the event bus's bounded worker pool (spec section 4.6).
type BusConfig struct {
	WorkerCount  int           `yaml:"worker_count"`
	QueueDepth   int           `yaml:"queue_depth"`
	BatchWindow  time.Duration `yaml:"batch_window"`
	BatchLimit   int           `yaml:"batch_limit"`
}

// TMSConfig selects the contradiction-resolution strategy (spec section 4.4).
type TMSConfig struct {
	ResolutionStrategy string `yaml:"resolution_strategy"` // e.g. "retract-weakest"
}

// LoggingConfig toggles structured logging (spec section A.1 of SPEC_FULL).
type LoggingConfig struct {
	DebugMode bool `yaml:"debug_mode"`
}

// DefaultConfig returns the engine's default configuration.
func DefaultConfig() *Config {
	return &Config{
		KB: KBConfig{
			DefaultCapacity: 10000,
			EvictionTarget:  0.8,
			ProtectedSymbols: []string{
				"⇒", "⇔", "=", "not", "forall", "exists",
				"+", "-", "*", "/", "<", ">", "<=", ">=", "ask-user",
			},
		},
		Priority: PriorityConfig{
			BasePriority:    0.5,
			AccessIncrement: 0.05,
			DecayRate:       0.01,
		},
		Rules: RulesConfig{
			DepthLimit:             64,
			ConsultGlobalPartition: true,
		},
		Query: QueryConfig{
			DefaultResultLimit: 100,
			DefaultDeadline:    5 * time.Second,
		},
		Bus: BusConfig{
			WorkerCount: 4,
			QueueDepth:  256,
			BatchWindow: 50 * time.Millisecond,
			BatchLimit:  32,
		},
		TMS: TMSConfig{
			ResolutionStrategy: "retract-weakest",
		},
	}
}

// Load reads a YAML config file, falling back to defaults for any field the
// file omits (yaml.Unmarshal into a pre-populated struct preserves that).
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides lets a few hot knobs be tuned without editing the file,
// following the teacher's COG_* / ZAI_API_KEY-style override convention.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("COG_KB_CAPACITY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.KB.DefaultCapacity = n
		}
	}
	if v := os.Getenv("COG_DEPTH_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Rules.DepthLimit = n
		}
	}
	if v := os.Getenv("COG_DEBUG"); v != "" {
		c.Logging.DebugMode = v == "1" || v == "true"
	}
}

// Validate checks that configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	if c.KB.DefaultCapacity < 1 {
		return fmt.Errorf("kb.default_capacity must be >= 1")
	}
	if c.KB.EvictionTarget <= 0 || c.KB.EvictionTarget > 1 {
		return fmt.Errorf("kb.eviction_target must be in (0, 1]")
	}
	if c.Priority.DecayRate < 0 || c.Priority.DecayRate >= 1 {
		return fmt.Errorf("priority.decay_rate must be in [0, 1)")
	}
	if c.Rules.DepthLimit < 1 {
		return fmt.Errorf("rules.depth_limit must be >= 1")
	}
	if c.Bus.WorkerCount < 1 {
		return fmt.Errorf("bus.worker_count must be >= 1")
	}
	return nil
}

// IsProtected returns true if sym is in the configured protected-symbol set.
func (c *Config) IsProtected(sym string) bool {
	for _, s := range c.KB.ProtectedSymbols {
		if s == sym {
			return true
		}
	}
	return false
}
