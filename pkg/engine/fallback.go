package engine

import (
	"fmt"

	"github.com/zen-systems/quorum/pkg/analyzer"
	"github.com/zen-systems/quorum/pkg/dispatch"
	"github.com/zen-systems/quorum/pkg/rank"
)

// fallbackResult produces the clearly-labeled degraded answer when no
// backend produced a usable response. It always succeeds; the result
// never claims a normal answer was obtained.
func fallbackResult(profile analyzer.QueryProfile, candidates []*dispatch.Candidate) *rank.RoundResult {
	context := make([]string, 0, len(candidates))
	for _, c := range candidates {
		reason := c.Rejection
		if reason == "" {
			reason = string(c.State)
		}
		context = append(context, fmt.Sprintf("%s: %s", c.Backend, reason))
	}

	text := fmt.Sprintf(
		"I was unable to produce a reliable answer to this request. "+
			"%d backend(s) were consulted and none returned an acceptable response. "+
			"Please try rephrasing the question or asking again later.",
		len(candidates))

	return &rank.RoundResult{
		Text:           text,
		Backend:        rank.FallbackBackend,
		Scores:         rank.Summarize(candidates),
		FailureContext: context,
	}
}
