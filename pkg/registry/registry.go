// Package registry tracks per-backend capability profiles: a static
// capability vector fixed at registration and live performance
// statistics folded in after every round. The registry is the only
// state shared across concurrent rounds.
package registry

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/zen-systems/quorum/pkg/analyzer"
	"github.com/zen-systems/quorum/pkg/config"
)

// ErrDuplicateBackend is returned when a backend identifier is
// registered twice. Re-registration must go through UpdateStatic.
var ErrDuplicateBackend = errors.New("backend already registered")

// DefaultDimension is the conservative capability assumed for any
// dimension a backend did not declare.
const DefaultDimension = 0.5

// LiveStats holds the exponentially-smoothed performance record for
// one (backend, query type) pair.
type LiveStats struct {
	SuccessRate float64 `json:"success_rate"`
	AvgQuality  float64 `json:"avg_quality"`
	AvgLatency  float64 `json:"avg_latency"` // seconds
	SampleCount int64   `json:"sample_count"`
}

// CapabilityProfile describes one backend: its identifier, immutable
// static capability vector, and live statistics keyed by query type.
type CapabilityProfile struct {
	Backend string
	Static  map[string]float64
	Live    map[analyzer.QueryType]*LiveStats
}

// Snapshot is the persistence form of the live-statistics map:
// backend -> query type -> stats. Static capabilities are config, not
// state, and are not part of the snapshot.
type Snapshot map[string]map[string]LiveStats

// Registry is safe for concurrent use. Reads see a consistent,
// possibly slightly stale view; writes serialize so moving averages
// never lose updates.
type Registry struct {
	mu       sync.RWMutex
	profiles map[string]*CapabilityProfile
	cfg      config.RegistryConfig
	debug    bool
}

// Option configures a Registry.
type Option func(*Registry)

// WithDebug enables debug logging.
func WithDebug(debug bool) Option {
	return func(r *Registry) { r.debug = debug }
}

// New creates an empty registry with the given tuning config.
func New(cfg config.RegistryConfig, opts ...Option) *Registry {
	r := &Registry{
		profiles: make(map[string]*CapabilityProfile),
		cfg:      cfg,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a backend with its static capability vector. It fails
// with ErrDuplicateBackend if the identifier is already known.
func (r *Registry) Register(backendID string, static map[string]float64) error {
	for dim, v := range static {
		if v < 0 || v > 1 {
			return fmt.Errorf("capability %q for backend %q out of range [0,1]: %v", dim, backendID, v)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.profiles[backendID]; ok {
		return fmt.Errorf("backend %q: %w", backendID, ErrDuplicateBackend)
	}
	r.profiles[backendID] = newProfile(backendID, static)
	return nil
}

// UpdateStatic replaces the static capability vector of an existing
// backend. This is the explicit update path; Register never
// overwrites.
func (r *Registry) UpdateStatic(backendID string, static map[string]float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.profiles[backendID]
	if !ok {
		return fmt.Errorf("backend %q not registered", backendID)
	}
	p.Static = copyDims(static)
	return nil
}

// Weight returns the blended fitness score of a backend for a query
// type. The blend starts fully static and shifts toward live
// statistics as the sample count grows, never exceeding the configured
// live share.
func (r *Registry) Weight(backendID string, qt analyzer.QueryType) float64 {
	p := r.profile(backendID)

	r.mu.RLock()
	defer r.mu.RUnlock()

	static := staticScore(p.Static, qt)
	stats, ok := p.Live[qt]
	if !ok || stats.SampleCount == 0 {
		return static
	}

	live := liveSuccessWeight*stats.SuccessRate + liveQualityWeight*stats.AvgQuality
	share := r.cfg.LiveBlendMax * float64(stats.SampleCount) / float64(r.cfg.LiveSampleThreshold)
	if share > r.cfg.LiveBlendMax {
		share = r.cfg.LiveBlendMax
	}

	return (1-share)*static + share*live
}

// AvgLatency returns the smoothed latency for a (backend, query type)
// pair, or zero when no samples exist. Used as a selection tie-break.
func (r *Registry) AvgLatency(backendID string, qt analyzer.QueryType) time.Duration {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.profiles[backendID]
	if !ok {
		return 0
	}
	stats, ok := p.Live[qt]
	if !ok {
		return 0
	}
	return time.Duration(stats.AvgLatency * float64(time.Second))
}

// RecordOutcome folds one round's result for a backend into its live
// statistics using an exponential moving average. This is the only
// mutation path for live statistics.
func (r *Registry) RecordOutcome(backendID string, qt analyzer.QueryType, quality float64, success bool, latency time.Duration) {
	if quality < 0 {
		quality = 0
	}
	if quality > 1 {
		quality = 1
	}
	successVal := 0.0
	if success {
		successVal = 1.0
	}
	latencySec := latency.Seconds()
	if latencySec < 0 {
		latencySec = 0
	}

	p := r.profile(backendID)

	r.mu.Lock()
	defer r.mu.Unlock()

	stats, ok := p.Live[qt]
	if !ok {
		stats = &LiveStats{}
		p.Live[qt] = stats
	}

	if stats.SampleCount == 0 {
		// First observation seeds the averages directly so the EWMA
		// does not drag toward zero.
		stats.SuccessRate = successVal
		stats.AvgQuality = quality
		stats.AvgLatency = latencySec
	} else {
		a := r.cfg.Smoothing
		stats.SuccessRate = (1-a)*stats.SuccessRate + a*successVal
		stats.AvgQuality = (1-a)*stats.AvgQuality + a*quality
		stats.AvgLatency = (1-a)*stats.AvgLatency + a*latencySec
	}
	stats.SampleCount++
}

// Profile returns a copy of a backend's profile.
func (r *Registry) Profile(backendID string) (CapabilityProfile, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.profiles[backendID]
	if !ok {
		return CapabilityProfile{}, false
	}
	return copyProfile(p), true
}

// Backends returns all registered backend identifiers, sorted.
func (r *Registry) Backends() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.profiles))
	for id := range r.profiles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ExportSnapshot returns the live-statistics map for persistence.
func (r *Registry) ExportSnapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap := make(Snapshot, len(r.profiles))
	for id, p := range r.profiles {
		stats := make(map[string]LiveStats, len(p.Live))
		for qt, s := range p.Live {
			stats[string(qt)] = *s
		}
		snap[id] = stats
	}
	return snap
}

// ImportSnapshot restores live statistics from a persisted snapshot.
// Unknown query types are kept as-is (forward compatibility); missing
// ones stay at zero-sample defaults.
func (r *Registry) ImportSnapshot(snap Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, stats := range snap {
		p, ok := r.profiles[id]
		if !ok {
			p = newProfile(id, nil)
			r.profiles[id] = p
			if r.debug {
				log.Printf("[registry] configuration gap: snapshot references unregistered backend %q; using conservative profile", id)
			}
		}
		for qt, s := range stats {
			copied := s
			if copied.SampleCount < 0 {
				copied.SampleCount = 0
			}
			p.Live[analyzer.QueryType(qt)] = &copied
		}
	}
}

// profile returns the backend's profile, creating a conservative
// default the first time an unregistered backend is observed.
func (r *Registry) profile(backendID string) *CapabilityProfile {
	r.mu.RLock()
	p, ok := r.profiles[backendID]
	r.mu.RUnlock()
	if ok {
		return p
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok = r.profiles[backendID]; ok {
		return p
	}
	log.Printf("[registry] configuration gap: backend %q observed without registration; using conservative profile", backendID)
	p = newProfile(backendID, nil)
	r.profiles[backendID] = p
	return p
}

func newProfile(backendID string, static map[string]float64) *CapabilityProfile {
	return &CapabilityProfile{
		Backend: backendID,
		Static:  copyDims(static),
		Live:    make(map[analyzer.QueryType]*LiveStats),
	}
}

func copyDims(dims map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(dims))
	for k, v := range dims {
		out[k] = v
	}
	return out
}

func copyProfile(p *CapabilityProfile) CapabilityProfile {
	out := CapabilityProfile{
		Backend: p.Backend,
		Static:  copyDims(p.Static),
		Live:    make(map[analyzer.QueryType]*LiveStats, len(p.Live)),
	}
	for qt, s := range p.Live {
		copied := *s
		out.Live[qt] = &copied
	}
	return out
}
