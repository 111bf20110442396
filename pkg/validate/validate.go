// Package validate inspects raw backend responses for structural and
// quality defects and assigns each surviving response a quality score.
package validate

import (
	"strings"

	"github.com/zen-systems/quorum/pkg/analyzer"
	"github.com/zen-systems/quorum/pkg/config"
	"github.com/zen-systems/quorum/pkg/dispatch"
	"github.com/zen-systems/quorum/pkg/registry"
)

// Rejection reasons, in check order. First failing check wins.
const (
	ReasonEmpty           = "empty"
	ReasonRepetitive      = "repetitive"
	ReasonSelfReferential = "self-referential"
	ReasonTooShort        = "too-short"
)

// selfReferencePatterns are disclosed-AI self-reference markers. A
// small density is tolerated; answers dominated by them are rejected.
var selfReferencePatterns = []string{
	"as an ai",
	"as a language model",
	"as an artificial intelligence",
	"i am an ai",
	"i'm an ai",
	"i am a language model",
	"my training data",
	"i do not have personal",
	"i don't have personal",
	"i cannot browse",
}

// concludingMarkers signal a wrapped-up answer.
var concludingMarkers = []string{
	"in summary", "in conclusion", "overall", "to summarize", "therefore",
}

// Validator applies the rejection checks and quality scoring.
type Validator struct {
	cfg config.ValidationConfig
}

// New creates a validator with the given thresholds.
func New(cfg config.ValidationConfig) *Validator {
	return &Validator{cfg: cfg}
}

// Validate scores a candidate in place. Candidates whose invocation
// already failed are marked invalid with their terminal state as the
// rejection reason. The capability-affinity adjustment is bounded and
// applied only after a candidate has passed every check, so it can
// never turn an invalid response valid.
func (v *Validator) Validate(c *dispatch.Candidate, profile analyzer.QueryProfile, static map[string]float64) {
	c.Scored = true
	c.Valid = false
	c.Quality = 0

	if c.State != dispatch.StateSuccess {
		c.Rejection = string(c.State)
		return
	}

	text := strings.TrimSpace(c.Text)
	lower := strings.ToLower(text)

	if text == "" {
		c.Rejection = ReasonEmpty
		return
	}
	if v.repetitive(lower) {
		c.Rejection = ReasonRepetitive
		return
	}
	if v.selfReferential(lower) {
		c.Rejection = ReasonSelfReferential
		return
	}

	minLen := v.minLength(profile.Complexity)
	if len(text) < minLen {
		c.Rejection = ReasonTooShort
		return
	}

	c.Valid = true
	c.Rejection = ""

	score := v.cfg.LengthWeight*v.lengthAdequacy(len(text), minLen) +
		v.cfg.RelevanceWeight*v.relevance(lower, profile.Text) +
		v.cfg.StructureWeight*v.structure(text, lower)

	// Bounded bonus/penalty from how well the backend's static
	// capabilities fit the query type.
	affinity := registry.Affinity(static, profile.Type)
	score += v.cfg.AffinityAdjustment * (2*affinity - 1)

	c.Quality = clamp01(score)
}

// minLength is the complexity-adaptive acceptance floor in characters.
func (v *Validator) minLength(complexity float64) int {
	return v.cfg.MinLengthBase + int(float64(v.cfg.MinLengthSlope)*complexity)
}

// repetitive reports whether one word trigram dominates the text
// beyond the configured share.
func (v *Validator) repetitive(lower string) bool {
	words := strings.Fields(lower)
	if len(words) < 12 {
		return false
	}

	counts := make(map[string]int)
	total := 0
	top := 0
	for i := 0; i+2 < len(words); i++ {
		gram := words[i] + " " + words[i+1] + " " + words[i+2]
		counts[gram]++
		if counts[gram] > top {
			top = counts[gram]
		}
		total++
	}

	return float64(top)/float64(total) > v.cfg.RepetitionThreshold
}

// selfReferential reports whether AI self-reference markers exceed
// the allowed density per 500 characters.
func (v *Validator) selfReferential(lower string) bool {
	hits := 0
	for _, pattern := range selfReferencePatterns {
		hits += strings.Count(lower, pattern)
	}
	if hits == 0 {
		return false
	}

	spans := float64(len(lower)) / 500
	if spans < 1 {
		spans = 1
	}
	return float64(hits) > v.cfg.SelfRefPer500*spans
}

// lengthAdequacy saturates once the answer comfortably clears the
// adaptive floor and decays mildly for padded answers.
func (v *Validator) lengthAdequacy(length, minLen int) float64 {
	expected := float64(minLen) * 3
	ratio := float64(length) / expected

	if ratio < 1 {
		return ratio
	}
	// Needless padding costs a little, never everything.
	penalty := (ratio - 1) * 0.05
	if penalty > 0.3 {
		penalty = 0.3
	}
	return 1 - penalty
}

// relevance measures lexical overlap with the query, weighted toward
// meaningful terms by dropping stopwords and short tokens.
func (v *Validator) relevance(lowerResponse, query string) float64 {
	terms := meaningfulTerms(query)
	if len(terms) == 0 {
		return 0.5 // nothing to match against; stay neutral
	}

	matched := 0
	for term := range terms {
		if strings.Contains(lowerResponse, term) {
			matched++
		}
	}
	return float64(matched) / float64(len(terms))
}

// structure rewards organizational signals: paragraph breaks,
// enumerations, and a concluding statement for longer answers.
func (v *Validator) structure(text, lower string) float64 {
	score := 0.4

	if strings.Contains(text, "\n\n") {
		score += 0.2
	}
	if hasEnumeration(text) {
		score += 0.2
	}

	const longAnswer = 600
	if len(text) <= longAnswer {
		// Short answers owe no conclusion.
		score += 0.2
	} else {
		for _, marker := range concludingMarkers {
			if strings.Contains(lower, marker) {
				score += 0.2
				break
			}
		}
	}

	return clamp01(score)
}

func hasEnumeration(text string) bool {
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "- ") || strings.HasPrefix(trimmed, "* ") {
			return true
		}
		if len(trimmed) > 2 && trimmed[0] >= '1' && trimmed[0] <= '9' && (trimmed[1] == '.' || trimmed[1] == ')') {
			return true
		}
	}
	return false
}

func meaningfulTerms(query string) map[string]struct{} {
	terms := make(map[string]struct{})
	for _, word := range strings.Fields(strings.ToLower(query)) {
		word = strings.Trim(word, ".,!?;:\"'()[]")
		if len(word) < 3 {
			continue
		}
		if _, ok := stopwords[word]; ok {
			continue
		}
		terms[word] = struct{}{}
	}
	return terms
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
