// Package rank orders validated candidates and produces the round's
// final result.
package rank

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/zen-systems/quorum/pkg/dispatch"
)

// FallbackBackend is the sentinel backend identifier on degraded
// results.
const FallbackBackend = "fallback"

// Policy selects how the final answer is produced.
type Policy string

const (
	// PolicyPickBest returns the single top candidate.
	PolicyPickBest Policy = "pick-best"
	// PolicyBlend combines the top candidates proportionally to
	// their scores.
	PolicyBlend Policy = "blend"
)

// DefaultBlendTopN is how many candidates a blend combines unless the
// caller asks otherwise.
const DefaultBlendTopN = 3

// BackendScore summarizes one backend's outcome for observability.
type BackendScore struct {
	Backend   string        `json:"backend"`
	State     string        `json:"state"`
	Valid     bool          `json:"valid"`
	Quality   float64       `json:"quality"`
	Latency   time.Duration `json:"latency"`
	Rejection string        `json:"rejection,omitempty"`
}

// RoundResult is the final artifact returned to callers. Degraded
// results carry the fallback sentinel in Backend.
type RoundResult struct {
	ID      string         `json:"id"`
	Text    string         `json:"text"`
	Backend string         `json:"backend"`
	Scores  []BackendScore `json:"scores"`
	// Shares records each contributing backend's proportion of a
	// blended answer. Empty for pick-best and fallback results.
	Shares  map[string]float64 `json:"shares,omitempty"`
	Elapsed time.Duration      `json:"elapsed"`
	// FailureContext explains, per backend, why no usable answer was
	// produced. Only populated on fallback results.
	FailureContext []string `json:"failure_context,omitempty"`
}

// Degraded reports whether the result came from the fallback path.
func (r *RoundResult) Degraded() bool {
	return r != nil && r.Backend == FallbackBackend
}

// Rank orders valid candidates and builds the round result. It
// returns nil when zero candidates are valid; that is the fallback
// trigger, never an error.
func Rank(candidates []*dispatch.Candidate, policy Policy, blendTopN int) *RoundResult {
	valid := make([]*dispatch.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Valid && c.State == dispatch.StateSuccess {
			valid = append(valid, c)
		}
	}
	if len(valid) == 0 {
		return nil
	}

	// Deterministic given the same scores: quality descending, then
	// lower latency, then selector rank order.
	sort.SliceStable(valid, func(i, j int) bool {
		if valid[i].Quality != valid[j].Quality {
			return valid[i].Quality > valid[j].Quality
		}
		if valid[i].Elapsed != valid[j].Elapsed {
			return valid[i].Elapsed < valid[j].Elapsed
		}
		return valid[i].Rank < valid[j].Rank
	})

	result := &RoundResult{Scores: Summarize(candidates)}

	if policy == PolicyBlend && len(valid) > 1 {
		blend(result, valid, blendTopN)
		return result
	}

	top := valid[0]
	result.Text = top.Text
	result.Backend = top.Backend
	return result
}

// Summarize builds the per-backend score summary for a candidate set.
func Summarize(candidates []*dispatch.Candidate) []BackendScore {
	scores := make([]BackendScore, 0, len(candidates))
	for _, c := range candidates {
		scores = append(scores, BackendScore{
			Backend:   c.Backend,
			State:     string(c.State),
			Valid:     c.Valid,
			Quality:   c.Quality,
			Latency:   c.Elapsed,
			Rejection: c.Rejection,
		})
	}
	return scores
}

// blend combines the top candidates into a composite answer, recording
// each contributor's share of the total score.
func blend(result *RoundResult, valid []*dispatch.Candidate, topN int) {
	if topN <= 0 {
		topN = DefaultBlendTopN
	}
	if topN > len(valid) {
		topN = len(valid)
	}
	contributors := valid[:topN]

	total := 0.0
	for _, c := range contributors {
		total += c.Quality
	}

	shares := make(map[string]float64, len(contributors))
	var sb strings.Builder
	for i, c := range contributors {
		share := 1.0 / float64(len(contributors))
		if total > 0 {
			share = c.Quality / total
		}
		shares[c.Backend] = share

		if i > 0 {
			sb.WriteString("\n\n---\n\n")
		}
		sb.WriteString(fmt.Sprintf("[%s]\n", c.Backend))
		sb.WriteString(c.Text)
	}

	result.Text = sb.String()
	result.Backend = contributors[0].Backend
	result.Shares = shares
}
