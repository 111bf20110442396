// Package analyzer classifies incoming queries and scores their
// complexity. Analysis is pure: no I/O, no backend calls, and a single
// linear scan over the text, so the same input always yields the same
// profile.
package analyzer

import "strings"

// QueryType is one of the fixed query categories.
type QueryType string

const (
	Technical QueryType = "technical"
	Reasoning QueryType = "reasoning"
	Creative  QueryType = "creative"
	Factual   QueryType = "factual"
	General   QueryType = "general"
)

// Types lists all query types in classification priority order. When
// keyword counts tie, the earlier type wins.
var Types = []QueryType{Technical, Reasoning, Creative, Factual, General}

// QueryProfile captures what the analyzer derived from a query. It
// lives for one round and is discarded afterwards.
type QueryProfile struct {
	Text       string
	Type       QueryType
	Complexity float64
}

// Per-factor complexity contribution caps. No single factor may push
// the score to an extreme on its own.
const (
	lengthCap    = 0.25
	vocabCap     = 0.25
	multiStepCap = 0.25
	cueCap       = 0.25

	// Text length at which the length factor saturates, in characters.
	lengthSaturation = 1200
)

// Analyze derives a QueryProfile from raw query text.
func Analyze(text string) QueryProfile {
	lower := strings.ToLower(text)

	return QueryProfile{
		Text:       text,
		Type:       classify(lower),
		Complexity: complexity(lower),
	}
}

// classify picks the query type with the most keyword matches. Ties
// resolve by the fixed priority order, never randomly.
func classify(lower string) QueryType {
	best := General
	bestCount := 0

	for _, qt := range Types {
		count := 0
		for _, kw := range typeKeywords[qt] {
			if containsKeyword(lower, kw) {
				count++
			}
		}
		if count > bestCount {
			best = qt
			bestCount = count
		}
	}

	return best
}

// complexity combines length, vocabulary, multi-step phrasing, and
// reasoning cues into a capped weighted sum in [0,1].
func complexity(lower string) float64 {
	length := float64(len(lower)) / lengthSaturation
	if length > 1 {
		length = 1
	}
	score := length * lengthCap

	score += factor(lower, technicalVocabulary, 4) * vocabCap
	score += factor(lower, multiStepPhrases, 2) * multiStepCap
	score += factor(lower, reasoningCues, 2) * cueCap

	if score > 1 {
		score = 1
	}
	if score < 0 {
		score = 0
	}
	return score
}

// factor counts keyword hits and saturates at the given hit count.
func factor(lower string, keywords []string, saturation int) float64 {
	hits := 0
	for _, kw := range keywords {
		if containsKeyword(lower, kw) {
			hits++
			if hits >= saturation {
				break
			}
		}
	}
	return float64(hits) / float64(saturation)
}

// containsKeyword checks if the text contains the keyword as a word or
// phrase boundary match.
func containsKeyword(text, keyword string) bool {
	idx := strings.Index(text, keyword)
	if idx == -1 {
		return false
	}

	// Check word boundary before keyword
	if idx > 0 {
		prev := text[idx-1]
		if isWordChar(prev) {
			return false
		}
	}

	// Check word boundary after keyword
	endIdx := idx + len(keyword)
	if endIdx < len(text) {
		next := text[endIdx]
		if isWordChar(next) {
			return false
		}
	}

	return true
}

func isWordChar(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_'
}
