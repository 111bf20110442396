// Package engine wires the round pipeline: analyze, select, dispatch,
// validate, rank, and feed the outcome back into the capability
// registry.
package engine

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zen-systems/quorum/pkg/analyzer"
	"github.com/zen-systems/quorum/pkg/backend"
	"github.com/zen-systems/quorum/pkg/config"
	"github.com/zen-systems/quorum/pkg/dispatch"
	"github.com/zen-systems/quorum/pkg/metrics"
	"github.com/zen-systems/quorum/pkg/rank"
	"github.com/zen-systems/quorum/pkg/registry"
	"github.com/zen-systems/quorum/pkg/selector"
	"github.com/zen-systems/quorum/pkg/statstore"
	"github.com/zen-systems/quorum/pkg/validate"
)

// Preferences are optional per-request overrides from the caller.
type Preferences struct {
	// Priority backends are always included when available.
	Priority []string
	// MinBackends / MaxBackends bound the selected backend count.
	MinBackends int
	MaxBackends int
	// Blend combines the top candidates instead of picking the best.
	// Blending implies exhaustive dispatch.
	Blend     bool
	BlendTopN int
	// Exhaustive disables the sequential short-circuit.
	Exhaustive bool
}

// Engine routes each request to a set of backends and returns one
// answer per round. The registry is the only state shared across
// concurrent rounds.
type Engine struct {
	cfg       *config.EngineConfig
	registry  *registry.Registry
	backends  map[string]backend.Backend
	selector  *selector.Selector
	validator *validate.Validator
	metrics   *metrics.Metrics
	store     statstore.Store
	debug     bool

	updates sync.WaitGroup
}

// Option configures an Engine.
type Option func(*Engine)

// WithRegistry injects a registry, replacing the engine-owned one.
// Tests instantiate a fresh registry per case.
func WithRegistry(reg *registry.Registry) Option {
	return func(e *Engine) { e.registry = reg }
}

// WithMetrics enables metric collection.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithStore attaches a stats store. Its snapshot is loaded at
// construction and saved on Close.
func WithStore(store statstore.Store) Option {
	return func(e *Engine) { e.store = store }
}

// WithDebug enables debug logging.
func WithDebug(debug bool) Option {
	return func(e *Engine) { e.debug = debug }
}

// New creates an engine over the given backends, registering each
// backend's static capability vector from the config.
func New(cfg *config.EngineConfig, backends map[string]backend.Backend, opts ...Option) (*Engine, error) {
	if cfg == nil {
		cfg = config.DefaultEngineConfig()
	}

	e := &Engine{
		cfg:       cfg,
		backends:  backends,
		validator: validate.New(cfg.Validation),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.registry == nil {
		e.registry = registry.New(cfg.Registry, registry.WithDebug(e.debug))
	}
	e.selector = selector.New(cfg.Selection, cfg.Dispatch,
		selector.WithPriority(cfg.Priority), selector.WithDebug(e.debug))

	for _, name := range sortedNames(backends) {
		caps := cfg.Backends[name].Capabilities
		if err := e.registry.Register(name, caps); err != nil {
			return nil, fmt.Errorf("failed to register backend %q: %w", name, err)
		}
	}

	if e.store != nil {
		snap, err := e.store.Load()
		if err != nil {
			return nil, fmt.Errorf("failed to load stats: %w", err)
		}
		e.registry.ImportSnapshot(snap)
	}

	return e, nil
}

// Registry exposes the engine's capability registry.
func (e *Engine) Registry() *registry.Registry {
	return e.registry
}

// Process runs one complete round for a query. Callers always receive
// a RoundResult unless no backends are configured at all; every other
// failure mode degrades into the result itself.
func (e *Engine) Process(ctx context.Context, query string, prefs *Preferences) (*rank.RoundResult, error) {
	start := time.Now()
	if prefs == nil {
		prefs = &Preferences{}
	}

	profile := analyzer.Analyze(query)
	if e.debug {
		log.Printf("[engine] query type=%s complexity=%.2f", profile.Type, profile.Complexity)
	}

	plan, err := e.selector.Select(profile, e.registry, sortedNames(e.backends), selector.Options{
		Priority:    prefs.Priority,
		MinBackends: prefs.MinBackends,
		MaxBackends: prefs.MaxBackends,
		Exhaustive:  prefs.Exhaustive || prefs.Blend,
	})
	if err != nil {
		return nil, err
	}

	// The coordinator is rebuilt per round so the sequential
	// short-circuit can validate against this round's query profile.
	coord := dispatch.New(e.backends, e.cfg.Dispatch,
		dispatch.WithEvaluator(func(c *dispatch.Candidate) {
			e.validator.Validate(c, profile, e.staticCaps(c.Backend))
		}),
		dispatch.WithDebug(e.debug))

	candidates := coord.Dispatch(ctx, plan, query)

	for _, c := range candidates {
		if !c.Scored {
			e.validator.Validate(c, profile, e.staticCaps(c.Backend))
		}
	}

	e.observe(profile, candidates)

	policy := rank.PolicyPickBest
	if prefs.Blend {
		policy = rank.PolicyBlend
	}
	result := rank.Rank(candidates, policy, prefs.BlendTopN)
	if result == nil {
		result = fallbackResult(profile, candidates)
		if e.metrics != nil {
			e.metrics.FallbacksTotal.Inc()
		}
	}
	result.ID = uuid.NewString()
	result.Elapsed = time.Since(start)

	// Feedback is decoupled from the response path; Flush waits for
	// in-flight updates.
	e.updates.Add(1)
	go e.update(profile, candidates)

	return result, nil
}

// update folds the round's outcomes into the registry for every
// candidate that actually executed.
func (e *Engine) update(profile analyzer.QueryProfile, candidates []*dispatch.Candidate) {
	defer e.updates.Done()

	for _, c := range candidates {
		quality := 0.0
		if c.Valid {
			quality = c.Quality
		}
		e.registry.RecordOutcome(c.Backend, profile.Type, quality, c.Valid, c.Elapsed)
	}
}

// observe records metrics for the round's candidates.
func (e *Engine) observe(profile analyzer.QueryProfile, candidates []*dispatch.Candidate) {
	if e.metrics == nil {
		return
	}

	e.metrics.RoundsTotal.WithLabelValues(string(profile.Type)).Inc()
	for _, c := range candidates {
		e.metrics.InvocationDuration.WithLabelValues(c.Backend, string(c.State)).Observe(c.Elapsed.Seconds())
		if !c.Valid && c.Rejection != "" {
			e.metrics.RejectionsTotal.WithLabelValues(c.Rejection).Inc()
		}
	}
}

// Flush blocks until all pending registry updates have been applied.
func (e *Engine) Flush() {
	e.updates.Wait()
}

// Close flushes pending updates and persists the live statistics.
func (e *Engine) Close() error {
	e.updates.Wait()

	if e.store == nil {
		return nil
	}
	if err := e.store.Save(e.registry.ExportSnapshot()); err != nil {
		e.store.Close()
		return fmt.Errorf("failed to save stats: %w", err)
	}
	return e.store.Close()
}

func (e *Engine) staticCaps(name string) map[string]float64 {
	return e.cfg.Backends[name].Capabilities
}

func sortedNames(backends map[string]backend.Backend) []string {
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
