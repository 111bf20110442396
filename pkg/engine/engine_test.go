package engine

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/zen-systems/quorum/pkg/analyzer"
	"github.com/zen-systems/quorum/pkg/backend"
	"github.com/zen-systems/quorum/pkg/config"
	"github.com/zen-systems/quorum/pkg/dispatch"
	"github.com/zen-systems/quorum/pkg/metrics"
	"github.com/zen-systems/quorum/pkg/rank"
	"github.com/zen-systems/quorum/pkg/selector"
	"github.com/zen-systems/quorum/pkg/statstore"
)

const simpleQuery = "What is the capital of France?"

// complexQuery triggers technical classification and a high complexity
// score, so the selector fans out to every available backend.
const complexQuery = "First debug the code in the api server, then explain why " +
	"the database algorithm has high latency under concurrency in this " +
	"distributed architecture."

// richAnswer clears the validator's adaptive floor even for complex
// queries and mentions the query vocabulary.
const richAnswer = "The api server latency comes from the database algorithm " +
	"holding a coarse lock under concurrency. Debug the code by profiling " +
	"the hot path first.\n\n- Narrow the lock scope\n- Batch the writes\n\n" +
	"Overall, the distributed architecture needs finer-grained locking " +
	"before anything else will help."

func mockSet(names ...string) map[string]backend.Backend {
	backends := make(map[string]backend.Backend, len(names))
	for _, name := range names {
		m := backend.NewMockBackend(name)
		m.SetResponse(simpleQuery, "The capital of France is Paris, the seat of "+
			"the French government and the country's cultural center. ("+name+")")
		m.SetResponse(complexQuery, richAnswer+" ("+name+")")
		backends[name] = m
	}
	return backends
}

func testEngine(t *testing.T, backends map[string]backend.Backend, cfg *config.EngineConfig, opts ...Option) *Engine {
	t.Helper()
	e, err := New(cfg, backends, opts...)
	if err != nil {
		t.Fatalf("engine construction failed: %v", err)
	}
	return e
}

func TestProcessSimpleQuerySmallPlan(t *testing.T) {
	e := testEngine(t, mockSet("a", "b", "c", "d", "e"), nil)
	defer e.Close()

	result, err := e.Process(context.Background(), simpleQuery, nil)
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}
	if result.Degraded() {
		t.Fatalf("healthy backends produced a degraded result")
	}
	// A trivial query consults a small subset, not the full pool.
	if len(result.Scores) >= 5 {
		t.Fatalf("simple query consulted %d backends", len(result.Scores))
	}
	if result.ID == "" {
		t.Fatalf("result missing round identifier")
	}
}

func TestProcessTimeoutExcludedFromRanking(t *testing.T) {
	backends := mockSet("fast1", "fast2", "fast3", "fast4")
	slow := backend.NewMockBackend("slow")
	slow.Delay = time.Second
	backends["slow"] = slow

	cfg := config.DefaultEngineConfig()
	cfg.Dispatch.TimeoutMs = 100

	e := testEngine(t, backends, cfg)
	defer e.Close()

	result, err := e.Process(context.Background(), simpleQuery, &Preferences{
		MinBackends: 5,
		Exhaustive:  true,
	})
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}
	if result.Degraded() {
		t.Fatalf("responsive backends available but result degraded")
	}
	if result.Backend == "slow" {
		t.Fatalf("timed-out backend won the round")
	}

	found := false
	for _, s := range result.Scores {
		if s.Backend == "slow" {
			found = true
			if s.State != string(dispatch.StateTimeout) {
				t.Fatalf("slow backend state %q, want timeout", s.State)
			}
			if s.Valid {
				t.Fatalf("timed-out candidate marked valid")
			}
		}
	}
	if !found {
		t.Fatalf("timed-out backend missing from score summary")
	}
}

func TestProcessAllFailuresFallsBack(t *testing.T) {
	broken := backend.NewMockBackend("broken")
	broken.Err = errors.New("scripted outage")
	mute := backend.NewMockBackend("mute")
	mute.SetResponse(simpleQuery, "")

	e := testEngine(t, map[string]backend.Backend{"broken": broken, "mute": mute}, nil)
	defer e.Close()

	result, err := e.Process(context.Background(), simpleQuery, nil)
	if err != nil {
		t.Fatalf("fallback path must not error: %v", err)
	}
	if !result.Degraded() {
		t.Fatalf("expected degraded result, got backend %q", result.Backend)
	}
	if result.Backend != rank.FallbackBackend {
		t.Fatalf("fallback sentinel missing: %q", result.Backend)
	}
	if len(result.FailureContext) != 2 {
		t.Fatalf("failure context incomplete: %v", result.FailureContext)
	}
	if result.Text == "" {
		t.Fatalf("degraded result has no explanatory text")
	}
}

func TestProcessPriorityUnavailableProceeds(t *testing.T) {
	e := testEngine(t, mockSet("a", "b"), nil)
	defer e.Close()

	result, err := e.Process(context.Background(), simpleQuery, &Preferences{
		Priority: []string{"not-configured"},
	})
	if err != nil {
		t.Fatalf("unavailable priority backend must not fail the round: %v", err)
	}
	if result.Degraded() {
		t.Fatalf("round degraded despite healthy backends")
	}
	for _, s := range result.Scores {
		if s.Backend == "not-configured" {
			t.Fatalf("unavailable backend was consulted")
		}
	}
}

func TestProcessComplexQueryWiderPlan(t *testing.T) {
	backends := mockSet("a", "b", "c", "d", "e")
	simpleEngine := testEngine(t, backends, nil)
	defer simpleEngine.Close()

	simple, err := simpleEngine.Process(context.Background(), simpleQuery, nil)
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}

	complexEngine := testEngine(t, mockSet("a", "b", "c", "d", "e"), nil)
	defer complexEngine.Close()

	complexResult, err := complexEngine.Process(context.Background(), complexQuery, nil)
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}

	if len(complexResult.Scores) <= len(simple.Scores) {
		t.Fatalf("complex query consulted %d backends, simple consulted %d",
			len(complexResult.Scores), len(simple.Scores))
	}
}

func TestProcessNoBackends(t *testing.T) {
	e := testEngine(t, map[string]backend.Backend{}, nil)
	defer e.Close()

	_, err := e.Process(context.Background(), simpleQuery, nil)
	if !errors.Is(err, selector.ErrNoBackendsAvailable) {
		t.Fatalf("expected ErrNoBackendsAvailable, got %v", err)
	}
}

func TestProcessBlendPreference(t *testing.T) {
	e := testEngine(t, mockSet("a", "b", "c"), nil)
	defer e.Close()

	result, err := e.Process(context.Background(), simpleQuery, &Preferences{
		Blend:       true,
		BlendTopN:   2,
		MinBackends: 3,
	})
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}
	if result.Degraded() {
		t.Fatalf("blend round degraded")
	}
	if len(result.Shares) != 2 {
		t.Fatalf("expected 2 blend contributors, got %v", result.Shares)
	}
}

func TestProcessFeedbackReachesRegistry(t *testing.T) {
	e := testEngine(t, mockSet("a", "b"), nil)
	defer e.Close()

	if _, err := e.Process(context.Background(), simpleQuery, nil); err != nil {
		t.Fatalf("process failed: %v", err)
	}
	e.Flush()

	profile, ok := e.Registry().Profile("a")
	if !ok {
		t.Fatalf("backend profile missing after round")
	}
	stats, ok := profile.Live[analyzer.Factual]
	if !ok || stats.SampleCount != 1 {
		t.Fatalf("round outcome not recorded: %+v", profile.Live)
	}
}

func TestProcessAdaptsToFailures(t *testing.T) {
	good := backend.NewMockBackend("good")
	good.SetResponse(simpleQuery, "The capital of France is Paris, the seat of "+
		"the French government and the country's cultural center.")
	bad := backend.NewMockBackend("bad")
	bad.Err = errors.New("scripted outage")

	e := testEngine(t, map[string]backend.Backend{"good": good, "bad": bad}, nil)
	defer e.Close()

	for i := 0; i < 6; i++ {
		if _, err := e.Process(context.Background(), simpleQuery, nil); err != nil {
			t.Fatalf("round %d failed: %v", i, err)
		}
		e.Flush()
	}

	reg := e.Registry()
	if reg.Weight("good", analyzer.Factual) <= reg.Weight("bad", analyzer.Factual) {
		t.Fatalf("repeated failures did not lower the backend's weight")
	}
}

func TestEngineStatsPersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats.json")

	store, err := statstore.NewFileStore(path)
	if err != nil {
		t.Fatalf("store creation failed: %v", err)
	}
	e := testEngine(t, mockSet("a", "b"), nil, WithStore(store))

	if _, err := e.Process(context.Background(), simpleQuery, nil); err != nil {
		t.Fatalf("process failed: %v", err)
	}
	if err := e.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	reloaded, err := statstore.NewFileStore(path)
	if err != nil {
		t.Fatalf("store reopen failed: %v", err)
	}
	e2 := testEngine(t, mockSet("a", "b"), nil, WithStore(reloaded))
	defer e2.Close()

	profile, ok := e2.Registry().Profile("a")
	if !ok {
		t.Fatalf("profile missing after reload")
	}
	if stats, ok := profile.Live[analyzer.Factual]; !ok || stats.SampleCount == 0 {
		t.Fatalf("persisted statistics not restored: %+v", profile.Live)
	}
}

func TestProcessRecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	broken := backend.NewMockBackend("broken")
	broken.Err = errors.New("scripted outage")

	e := testEngine(t, map[string]backend.Backend{"broken": broken}, nil, WithMetrics(m))
	defer e.Close()

	if _, err := e.Process(context.Background(), simpleQuery, nil); err != nil {
		t.Fatalf("process failed: %v", err)
	}

	if got := testutil.ToFloat64(m.RoundsTotal.WithLabelValues(string(analyzer.Factual))); got != 1 {
		t.Fatalf("rounds counter = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.FallbacksTotal); got != 1 {
		t.Fatalf("fallback counter = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.RejectionsTotal.WithLabelValues(string(dispatch.StateError))); got != 1 {
		t.Fatalf("rejections counter = %v, want 1", got)
	}
}

func TestEngineDuplicateBackendNames(t *testing.T) {
	cfg := config.DefaultEngineConfig()
	backends := mockSet("a")

	e := testEngine(t, backends, cfg)
	defer e.Close()

	// Registering the same identifier twice through the registry is the
	// only duplicate path; engine construction registers each name once.
	if err := e.Registry().Register("a", nil); err == nil {
		t.Fatalf("duplicate registration accepted")
	}
}
