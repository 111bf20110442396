package rank

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/zen-systems/quorum/pkg/dispatch"
)

func validCandidate(name string, quality float64, elapsed time.Duration, rank int) *dispatch.Candidate {
	return &dispatch.Candidate{
		Backend: name,
		Text:    "answer from " + name,
		State:   dispatch.StateSuccess,
		Elapsed: elapsed,
		Rank:    rank,
		Scored:  true,
		Valid:   true,
		Quality: quality,
	}
}

func TestRankNoValidCandidates(t *testing.T) {
	candidates := []*dispatch.Candidate{
		{Backend: "a", State: dispatch.StateTimeout, Scored: true, Rejection: "timeout"},
		{Backend: "b", State: dispatch.StateSuccess, Scored: true, Rejection: "too-short"},
	}
	if result := Rank(candidates, PolicyPickBest, 0); result != nil {
		t.Fatalf("zero valid candidates must yield nil, got %+v", result)
	}
}

func TestRankPicksHighestQuality(t *testing.T) {
	candidates := []*dispatch.Candidate{
		validCandidate("mid", 0.6, time.Second, 0),
		validCandidate("best", 0.9, time.Second, 1),
		validCandidate("low", 0.3, time.Second, 2),
	}
	result := Rank(candidates, PolicyPickBest, 0)
	if result == nil {
		t.Fatalf("expected a result")
	}
	if result.Backend != "best" {
		t.Fatalf("winner %q, want best", result.Backend)
	}
	if result.Text != "answer from best" {
		t.Fatalf("unexpected text %q", result.Text)
	}
	if result.Degraded() {
		t.Fatalf("normal result flagged degraded")
	}
}

func TestRankLatencyTieBreak(t *testing.T) {
	candidates := []*dispatch.Candidate{
		validCandidate("slow", 0.8, 3*time.Second, 0),
		validCandidate("fast", 0.8, 200*time.Millisecond, 1),
	}
	result := Rank(candidates, PolicyPickBest, 0)
	if result.Backend != "fast" {
		t.Fatalf("latency tie-break picked %q", result.Backend)
	}
}

func TestRankSelectorOrderTieBreak(t *testing.T) {
	candidates := []*dispatch.Candidate{
		validCandidate("second", 0.8, time.Second, 1),
		validCandidate("first", 0.8, time.Second, 0),
	}
	result := Rank(candidates, PolicyPickBest, 0)
	if result.Backend != "first" {
		t.Fatalf("selector-order tie-break picked %q", result.Backend)
	}
}

func TestRankSummaryCoversAllCandidates(t *testing.T) {
	candidates := []*dispatch.Candidate{
		validCandidate("winner", 0.9, time.Second, 0),
		{Backend: "failed", State: dispatch.StateError, Scored: true, Rejection: "error"},
	}
	result := Rank(candidates, PolicyPickBest, 0)
	if len(result.Scores) != 2 {
		t.Fatalf("summary has %d entries, want 2", len(result.Scores))
	}
	if result.Scores[1].Backend != "failed" || result.Scores[1].Rejection != "error" {
		t.Fatalf("failed candidate missing from summary: %+v", result.Scores[1])
	}
}

func TestRankBlendSharesSumToOne(t *testing.T) {
	candidates := []*dispatch.Candidate{
		validCandidate("a", 0.9, time.Second, 0),
		validCandidate("b", 0.6, time.Second, 1),
		validCandidate("c", 0.3, time.Second, 2),
	}
	result := Rank(candidates, PolicyBlend, 3)
	if result == nil {
		t.Fatalf("expected a blended result")
	}
	if len(result.Shares) != 3 {
		t.Fatalf("expected 3 contributors, got %d", len(result.Shares))
	}

	sum := 0.0
	for _, share := range result.Shares {
		sum += share
	}
	if math.Abs(sum-1.0) > 1e-9 {
		t.Fatalf("shares sum to %v", sum)
	}
	if result.Shares["a"] <= result.Shares["c"] {
		t.Fatalf("higher-quality contributor got smaller share: %v", result.Shares)
	}
}

func TestRankBlendTopNLimit(t *testing.T) {
	candidates := []*dispatch.Candidate{
		validCandidate("a", 0.9, time.Second, 0),
		validCandidate("b", 0.8, time.Second, 1),
		validCandidate("c", 0.7, time.Second, 2),
		validCandidate("d", 0.6, time.Second, 3),
	}
	result := Rank(candidates, PolicyBlend, 2)
	if len(result.Shares) != 2 {
		t.Fatalf("expected 2 contributors, got %v", result.Shares)
	}
	if _, ok := result.Shares["c"]; ok {
		t.Fatalf("below-cutoff candidate contributed")
	}
	if !strings.Contains(result.Text, "[a]") || !strings.Contains(result.Text, "[b]") {
		t.Fatalf("blend text missing contributor sections: %q", result.Text)
	}
	if result.Backend != "a" {
		t.Fatalf("blend should attribute the top contributor, got %q", result.Backend)
	}
}

func TestRankBlendSingleValidFallsBackToPick(t *testing.T) {
	candidates := []*dispatch.Candidate{
		validCandidate("only", 0.7, time.Second, 0),
	}
	result := Rank(candidates, PolicyBlend, 3)
	if result.Backend != "only" || result.Shares != nil {
		t.Fatalf("single valid candidate should not blend: %+v", result)
	}
	if strings.Contains(result.Text, "---") {
		t.Fatalf("single-candidate result carries blend separators: %q", result.Text)
	}
}

func TestDegraded(t *testing.T) {
	degraded := &RoundResult{Backend: FallbackBackend}
	if !degraded.Degraded() {
		t.Fatalf("fallback result not flagged degraded")
	}
	var nilResult *RoundResult
	if nilResult.Degraded() {
		t.Fatalf("nil result flagged degraded")
	}
}
