package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// EngineConfig holds the answer-engine tuning parameters. Every
// heuristic constant used by the engine lives here so components never
// carry inline magic numbers.
type EngineConfig struct {
	Backends   map[string]BackendConfig `yaml:"backends"`
	Priority   []string                 `yaml:"priority,omitempty"`
	Selection  SelectionConfig          `yaml:"selection,omitempty"`
	Dispatch   DispatchConfig           `yaml:"dispatch,omitempty"`
	Validation ValidationConfig         `yaml:"validation,omitempty"`
	Registry   RegistryConfig           `yaml:"registry,omitempty"`
	StatsPath  string                   `yaml:"stats_path,omitempty"`
	StatsStore string                   `yaml:"stats_store,omitempty"` // "file" or "sqlite"
}

// BackendConfig declares a backend instance: which provider serves it,
// which model it pins, and its static capability vector.
type BackendConfig struct {
	Provider     string             `yaml:"provider"`
	Model        string             `yaml:"model"`
	Capabilities map[string]float64 `yaml:"capabilities,omitempty"`
}

// SelectionConfig controls how many backends a round fans out to.
type SelectionConfig struct {
	// Complexity below LowComplexity selects MinBackends; below
	// HighComplexity selects MidBackends; otherwise all available.
	LowComplexity  float64 `yaml:"low_complexity,omitempty"`
	HighComplexity float64 `yaml:"high_complexity,omitempty"`
	MinBackends    int     `yaml:"min_backends,omitempty"`
	MidBackends    int     `yaml:"mid_backends,omitempty"`
	MaxBackends    int     `yaml:"max_backends,omitempty"`
	// Parallel dispatch requires more than one backend and at least
	// this much complexity.
	ParallelThreshold float64 `yaml:"parallel_threshold,omitempty"`
}

// DispatchConfig controls per-call timeouts and concurrency.
type DispatchConfig struct {
	TimeoutMs int `yaml:"timeout_ms,omitempty"`
	WorkerCap int `yaml:"worker_cap,omitempty"`
	// Sequential dispatch stops early once a validated response
	// reaches this quality score.
	ShortCircuitScore float64 `yaml:"short_circuit_score,omitempty"`
}

// ValidationConfig controls response rejection thresholds and the
// quality score weighting.
type ValidationConfig struct {
	// A response whose most frequent trigram accounts for more than
	// this share of all trigrams is rejected as repetitive.
	RepetitionThreshold float64 `yaml:"repetition_threshold,omitempty"`
	// Self-reference hits allowed per 500 characters of text.
	SelfRefPer500 float64 `yaml:"self_ref_per_500,omitempty"`
	// Minimum acceptable length is MinLengthBase + MinLengthSlope *
	// complexity, in characters.
	MinLengthBase  int `yaml:"min_length_base,omitempty"`
	MinLengthSlope int `yaml:"min_length_slope,omitempty"`
	// Quality score component weights.
	LengthWeight    float64 `yaml:"length_weight,omitempty"`
	RelevanceWeight float64 `yaml:"relevance_weight,omitempty"`
	StructureWeight float64 `yaml:"structure_weight,omitempty"`
	// Maximum capability-affinity bonus/penalty applied to the score.
	AffinityAdjustment float64 `yaml:"affinity_adjustment,omitempty"`
}

// RegistryConfig controls live-statistics smoothing and blending.
type RegistryConfig struct {
	// Exponential moving average smoothing factor for live stats.
	Smoothing float64 `yaml:"smoothing,omitempty"`
	// Live statistics reach their maximum blend share at this many
	// samples; below it the static capability vector dominates.
	LiveSampleThreshold int `yaml:"live_sample_threshold,omitempty"`
	// Maximum share of the blended weight the live stats may claim.
	LiveBlendMax float64 `yaml:"live_blend_max,omitempty"`
}

// Timeout returns the per-call dispatch timeout as a duration.
func (d DispatchConfig) Timeout() time.Duration {
	return time.Duration(d.TimeoutMs) * time.Millisecond
}

// LoadEngineConfig reads engine configuration from a YAML file.
func LoadEngineConfig(path string) (*EngineConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg EngineConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	applyEngineDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks an engine config for inconsistencies not fixable by
// defaulting.
func (c *EngineConfig) Validate() error {
	for name, b := range c.Backends {
		if b.Provider == "" {
			return fmt.Errorf("backend %q: provider is required", name)
		}
		for dim, v := range b.Capabilities {
			if v < 0 || v > 1 {
				return fmt.Errorf("backend %q: capability %q out of range [0,1]: %v", name, dim, v)
			}
		}
	}
	for _, p := range c.Priority {
		if _, ok := c.Backends[p]; !ok {
			return fmt.Errorf("priority backend %q is not declared", p)
		}
	}
	if c.Selection.MinBackends > c.Selection.MaxBackends {
		return fmt.Errorf("selection: min_backends %d exceeds max_backends %d",
			c.Selection.MinBackends, c.Selection.MaxBackends)
	}
	if c.Registry.Smoothing <= 0 || c.Registry.Smoothing > 1 {
		return fmt.Errorf("registry: smoothing must be in (0,1], got %v", c.Registry.Smoothing)
	}
	switch c.StatsStore {
	case "", "file", "sqlite":
	default:
		return fmt.Errorf("stats_store must be \"file\" or \"sqlite\", got %q", c.StatsStore)
	}
	return nil
}

// DefaultEngineConfig returns the default engine configuration with no
// backends declared.
func DefaultEngineConfig() *EngineConfig {
	cfg := &EngineConfig{}
	applyEngineDefaults(cfg)
	return cfg
}

func applyEngineDefaults(cfg *EngineConfig) {
	if cfg == nil {
		return
	}
	if cfg.Selection.LowComplexity == 0 {
		cfg.Selection.LowComplexity = 0.35
	}
	if cfg.Selection.HighComplexity == 0 {
		cfg.Selection.HighComplexity = 0.7
	}
	if cfg.Selection.MinBackends == 0 {
		cfg.Selection.MinBackends = 2
	}
	if cfg.Selection.MidBackends == 0 {
		cfg.Selection.MidBackends = 4
	}
	if cfg.Selection.MaxBackends == 0 {
		cfg.Selection.MaxBackends = 8
	}
	if cfg.Selection.ParallelThreshold == 0 {
		cfg.Selection.ParallelThreshold = 0.3
	}
	if cfg.Dispatch.TimeoutMs == 0 {
		cfg.Dispatch.TimeoutMs = 4000
	}
	if cfg.Dispatch.WorkerCap == 0 {
		cfg.Dispatch.WorkerCap = 4
	}
	if cfg.Dispatch.ShortCircuitScore == 0 {
		cfg.Dispatch.ShortCircuitScore = 0.85
	}
	if cfg.Validation.RepetitionThreshold == 0 {
		cfg.Validation.RepetitionThreshold = 0.4
	}
	if cfg.Validation.SelfRefPer500 == 0 {
		cfg.Validation.SelfRefPer500 = 2
	}
	if cfg.Validation.MinLengthBase == 0 {
		cfg.Validation.MinLengthBase = 20
	}
	if cfg.Validation.MinLengthSlope == 0 {
		cfg.Validation.MinLengthSlope = 120
	}
	if cfg.Validation.LengthWeight == 0 {
		cfg.Validation.LengthWeight = 0.35
	}
	if cfg.Validation.RelevanceWeight == 0 {
		cfg.Validation.RelevanceWeight = 0.4
	}
	if cfg.Validation.StructureWeight == 0 {
		cfg.Validation.StructureWeight = 0.25
	}
	if cfg.Validation.AffinityAdjustment == 0 {
		cfg.Validation.AffinityAdjustment = 0.05
	}
	if cfg.Registry.Smoothing == 0 {
		cfg.Registry.Smoothing = 0.2
	}
	if cfg.Registry.LiveSampleThreshold == 0 {
		cfg.Registry.LiveSampleThreshold = 10
	}
	if cfg.Registry.LiveBlendMax == 0 {
		cfg.Registry.LiveBlendMax = 0.7
	}
	if cfg.StatsStore == "" {
		cfg.StatsStore = "file"
	}
}
