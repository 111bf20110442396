package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/zen-systems/quorum/pkg/backend"
	"github.com/zen-systems/quorum/pkg/config"
	"github.com/zen-systems/quorum/pkg/selector"
)

type panicBackend struct{}

func (p *panicBackend) Invoke(ctx context.Context, query string) (*backend.Reply, error) {
	panic("scripted panic")
}

func (p *panicBackend) Name() string  { return "panicker" }
func (p *panicBackend) Model() string { return "panic-1" }

func testPlan(backends []string, parallel bool) *selector.Plan {
	return &selector.Plan{
		Backends: backends,
		Parallel: parallel,
		Timeout:  2 * time.Second,
	}
}

func testDispatchConfig() config.DispatchConfig {
	return config.DefaultEngineConfig().Dispatch
}

func TestDispatchOneCandidatePerBackend(t *testing.T) {
	backends := map[string]backend.Backend{
		"a": backend.NewMockBackend("a"),
		"b": backend.NewMockBackend("b"),
		"c": backend.NewMockBackend("c"),
	}
	c := New(backends, testDispatchConfig())

	results := c.Dispatch(context.Background(), testPlan([]string{"b", "a", "c"}, true), "hello")
	if len(results) != 3 {
		t.Fatalf("expected 3 candidates, got %d", len(results))
	}
	// Candidates come back in plan order.
	for i, want := range []string{"b", "a", "c"} {
		if results[i].Backend != want {
			t.Fatalf("candidate %d: got %q, want %q", i, results[i].Backend, want)
		}
		if results[i].Rank != i {
			t.Fatalf("candidate %d: rank %d", i, results[i].Rank)
		}
		if results[i].State != StateSuccess {
			t.Fatalf("candidate %d: state %s", i, results[i].State)
		}
	}
}

func TestDispatchFailureIsolation(t *testing.T) {
	failing := backend.NewMockBackend("bad")
	failing.Err = errors.New("scripted failure")

	backends := map[string]backend.Backend{
		"good": backend.NewMockBackend("good"),
		"bad":  failing,
		"also": backend.NewMockBackend("also"),
	}
	c := New(backends, testDispatchConfig())

	results := c.Dispatch(context.Background(), testPlan([]string{"good", "bad", "also"}, true), "hi")
	if len(results) != 3 {
		t.Fatalf("expected 3 candidates, got %d", len(results))
	}
	if results[1].State != StateError {
		t.Fatalf("failing backend: state %s, want error", results[1].State)
	}
	if results[1].Err == nil {
		t.Fatalf("failing backend should carry its error")
	}
	if results[0].State != StateSuccess || results[2].State != StateSuccess {
		t.Fatalf("failure leaked into healthy backends: %s / %s", results[0].State, results[2].State)
	}
}

func TestDispatchPanicIsolation(t *testing.T) {
	backends := map[string]backend.Backend{
		"panicker": &panicBackend{},
		"good":     backend.NewMockBackend("good"),
	}
	c := New(backends, testDispatchConfig())

	results := c.Dispatch(context.Background(), testPlan([]string{"panicker", "good"}, true), "hi")
	if len(results) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(results))
	}
	if results[0].State != StateError {
		t.Fatalf("panicking backend: state %s, want error", results[0].State)
	}
	if results[1].State != StateSuccess {
		t.Fatalf("panic leaked into healthy backend: %s", results[1].State)
	}
}

func TestDispatchTimeout(t *testing.T) {
	slow := backend.NewMockBackend("slow")
	slow.Delay = 500 * time.Millisecond

	backends := map[string]backend.Backend{
		"slow": slow,
		"fast": backend.NewMockBackend("fast"),
	}
	c := New(backends, testDispatchConfig())

	plan := testPlan([]string{"slow", "fast"}, true)
	plan.Timeout = 50 * time.Millisecond

	results := c.Dispatch(context.Background(), plan, "hi")
	if results[0].State != StateTimeout {
		t.Fatalf("slow backend: state %s, want timeout", results[0].State)
	}
	if results[1].State != StateSuccess {
		t.Fatalf("fast backend: state %s, want success", results[1].State)
	}
}

func TestDispatchEmptyResponse(t *testing.T) {
	mute := backend.NewMockBackend("mute")
	mute.SetResponse("hi", "   \n ")

	c := New(map[string]backend.Backend{"mute": mute}, testDispatchConfig())

	results := c.Dispatch(context.Background(), testPlan([]string{"mute"}, false), "hi")
	if len(results) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(results))
	}
	if results[0].State != StateEmpty {
		t.Fatalf("whitespace reply: state %s, want empty", results[0].State)
	}
}

func TestDispatchUnknownBackend(t *testing.T) {
	c := New(map[string]backend.Backend{}, testDispatchConfig())

	results := c.Dispatch(context.Background(), testPlan([]string{"ghost"}, false), "hi")
	if len(results) != 1 || results[0].State != StateError {
		t.Fatalf("unconfigured backend should produce an error candidate: %+v", results)
	}
}

func TestDispatchSequentialShortCircuit(t *testing.T) {
	backends := map[string]backend.Backend{
		"first":  backend.NewMockBackend("first"),
		"second": backend.NewMockBackend("second"),
		"third":  backend.NewMockBackend("third"),
	}

	evaluate := func(cand *Candidate) {
		cand.Scored = true
		cand.Valid = true
		cand.Quality = 0.9
	}
	c := New(backends, testDispatchConfig(), WithEvaluator(evaluate))

	results := c.Dispatch(context.Background(), testPlan([]string{"first", "second", "third"}, false), "hi")
	if len(results) != 1 {
		t.Fatalf("short-circuit should stop after the first candidate, got %d", len(results))
	}
	if results[0].Backend != "first" {
		t.Fatalf("unexpected winner: %q", results[0].Backend)
	}
}

func TestDispatchExhaustiveDisablesShortCircuit(t *testing.T) {
	backends := map[string]backend.Backend{
		"first":  backend.NewMockBackend("first"),
		"second": backend.NewMockBackend("second"),
	}

	evaluate := func(cand *Candidate) {
		cand.Scored = true
		cand.Valid = true
		cand.Quality = 0.95
	}
	c := New(backends, testDispatchConfig(), WithEvaluator(evaluate))

	plan := testPlan([]string{"first", "second"}, false)
	plan.Exhaustive = true

	results := c.Dispatch(context.Background(), plan, "hi")
	if len(results) != 2 {
		t.Fatalf("exhaustive plan must invoke every backend, got %d candidates", len(results))
	}
}

func TestDispatchSequentialBelowThresholdContinues(t *testing.T) {
	backends := map[string]backend.Backend{
		"first":  backend.NewMockBackend("first"),
		"second": backend.NewMockBackend("second"),
	}

	evaluate := func(cand *Candidate) {
		cand.Scored = true
		cand.Valid = true
		cand.Quality = 0.4
	}
	c := New(backends, testDispatchConfig(), WithEvaluator(evaluate))

	results := c.Dispatch(context.Background(), testPlan([]string{"first", "second"}, false), "hi")
	if len(results) != 2 {
		t.Fatalf("below-threshold candidates must not short-circuit, got %d", len(results))
	}
}

func TestDispatchNilPlan(t *testing.T) {
	c := New(map[string]backend.Backend{}, testDispatchConfig())
	if results := c.Dispatch(context.Background(), nil, "hi"); results != nil {
		t.Fatalf("nil plan should yield no candidates, got %v", results)
	}
}
