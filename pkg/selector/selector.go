// Package selector turns a query profile into a dispatch plan: which
// backends to invoke, in what order, and how.
package selector

import (
	"errors"
	"log"
	"sort"
	"time"

	"github.com/zen-systems/quorum/pkg/analyzer"
	"github.com/zen-systems/quorum/pkg/config"
	"github.com/zen-systems/quorum/pkg/registry"
)

// ErrNoBackendsAvailable is returned when the available backend set is
// empty. This is the single hard-stop condition upstream of dispatch.
var ErrNoBackendsAvailable = errors.New("no backends available")

// Plan is the ordered dispatch instruction consumed by the
// coordinator.
type Plan struct {
	Backends []string // selector rank order
	Parallel bool
	Timeout  time.Duration
	// Exhaustive disables the sequential short-circuit so every
	// planned backend is invoked (required for blending).
	Exhaustive bool
}

// Options carries per-round overrides from caller preferences.
type Options struct {
	Priority    []string
	MinBackends int
	MaxBackends int
	Exhaustive  bool
}

// Selector chooses backends by blended registry weight.
type Selector struct {
	cfg      config.SelectionConfig
	dispatch config.DispatchConfig
	priority []string
	debug    bool
}

// Option configures a Selector.
type Option func(*Selector)

// WithPriority sets the configured priority backend list. Priority
// backends are always included when available.
func WithPriority(priority []string) Option {
	return func(s *Selector) { s.priority = priority }
}

// WithDebug enables debug logging.
func WithDebug(debug bool) Option {
	return func(s *Selector) { s.debug = debug }
}

// New creates a selector with the given tuning config.
func New(cfg config.SelectionConfig, dispatch config.DispatchConfig, opts ...Option) *Selector {
	s := &Selector{cfg: cfg, dispatch: dispatch}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Select builds a dispatch plan for the query. The backend count
// scales with complexity; ranking is fully deterministic: weight
// descending, then lower historical latency, then identifier.
func (s *Selector) Select(profile analyzer.QueryProfile, reg *registry.Registry, available []string, opts Options) (*Plan, error) {
	if len(available) == 0 {
		return nil, ErrNoBackendsAvailable
	}

	count := s.targetCount(profile.Complexity, len(available), opts)

	ranked := s.rank(profile.Type, reg, available)

	priority := opts.Priority
	if len(priority) == 0 {
		priority = s.priority
	}

	chosen := make([]string, 0, count)
	seen := make(map[string]bool, count)

	// Priority backends come first whenever available, regardless of
	// rank. Unavailable entries are skipped without error.
	availSet := make(map[string]bool, len(available))
	for _, id := range available {
		availSet[id] = true
	}
	for _, id := range priority {
		if availSet[id] && !seen[id] {
			chosen = append(chosen, id)
			seen[id] = true
		}
	}

	for _, id := range ranked {
		if len(chosen) >= count {
			break
		}
		if !seen[id] {
			chosen = append(chosen, id)
			seen[id] = true
		}
	}

	parallel := len(chosen) > 1 && profile.Complexity >= s.cfg.ParallelThreshold

	if s.debug {
		log.Printf("[selector] type=%s complexity=%.2f count=%d parallel=%v backends=%v",
			profile.Type, profile.Complexity, len(chosen), parallel, chosen)
	}

	return &Plan{
		Backends:   chosen,
		Parallel:   parallel,
		Timeout:    s.dispatch.Timeout(),
		Exhaustive: opts.Exhaustive,
	}, nil
}

// targetCount maps complexity to a backend count, clamped by caller
// preferences, the hard upper bound, and the available set.
func (s *Selector) targetCount(complexity float64, availableCount int, opts Options) int {
	var count int
	switch {
	case complexity < s.cfg.LowComplexity:
		count = s.cfg.MinBackends
	case complexity < s.cfg.HighComplexity:
		count = s.cfg.MidBackends
	default:
		count = availableCount
	}

	if opts.MinBackends > 0 && count < opts.MinBackends {
		count = opts.MinBackends
	}
	if opts.MaxBackends > 0 && count > opts.MaxBackends {
		count = opts.MaxBackends
	}
	if count > s.cfg.MaxBackends {
		count = s.cfg.MaxBackends
	}
	if count > availableCount {
		count = availableCount
	}
	if count < 1 {
		count = 1
	}
	return count
}

// rank orders the available backends by blended weight. The full
// tie-break chain keeps selection reproducible.
func (s *Selector) rank(qt analyzer.QueryType, reg *registry.Registry, available []string) []string {
	type scored struct {
		id      string
		weight  float64
		latency time.Duration
	}

	entries := make([]scored, 0, len(available))
	for _, id := range available {
		entries = append(entries, scored{
			id:      id,
			weight:  reg.Weight(id, qt),
			latency: reg.AvgLatency(id, qt),
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].weight != entries[j].weight {
			return entries[i].weight > entries[j].weight
		}
		if entries[i].latency != entries[j].latency {
			return entries[i].latency < entries[j].latency
		}
		return entries[i].id < entries[j].id
	})

	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.id
	}
	return out
}
