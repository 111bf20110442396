package registry

import "github.com/zen-systems/quorum/pkg/analyzer"

// Capability dimension names. Backends may declare any subset; missing
// dimensions fall back to DefaultDimension.
const (
	DimTechnical    = "technical-expertise"
	DimCreative     = "creative-writing"
	DimReasoning    = "reasoning"
	DimMath         = "math-reasoning"
	DimLongContext  = "long-context"
	DimInstructions = "instruction-following"
)

// Dimensions lists all known capability dimensions.
var Dimensions = []string{
	DimTechnical, DimCreative, DimReasoning, DimMath, DimLongContext, DimInstructions,
}

// dimensionRelevance maps a query type to the capability dimensions
// that matter for it and their relative weights. Weights sum to 1 per
// query type.
var dimensionRelevance = map[analyzer.QueryType]map[string]float64{
	analyzer.Technical: {
		DimTechnical:    0.6,
		DimInstructions: 0.2,
		DimReasoning:    0.2,
	},
	analyzer.Reasoning: {
		DimReasoning:   0.5,
		DimMath:        0.3,
		DimLongContext: 0.2,
	},
	analyzer.Creative: {
		DimCreative:     0.7,
		DimInstructions: 0.3,
	},
	analyzer.Factual: {
		DimInstructions: 0.5,
		DimReasoning:    0.3,
		DimLongContext:  0.2,
	},
}

// Live score component weights inside the blended Weight calculation.
const (
	liveSuccessWeight = 0.6
	liveQualityWeight = 0.4
)

// staticScore projects a static capability vector onto the dimensions
// relevant for a query type. General queries average every dimension.
func staticScore(static map[string]float64, qt analyzer.QueryType) float64 {
	relevance, ok := dimensionRelevance[qt]
	if !ok {
		sum := 0.0
		for _, dim := range Dimensions {
			sum += dimOrDefault(static, dim)
		}
		return sum / float64(len(Dimensions))
	}

	score := 0.0
	for dim, w := range relevance {
		score += w * dimOrDefault(static, dim)
	}
	return score
}

func dimOrDefault(static map[string]float64, dim string) float64 {
	if v, ok := static[dim]; ok {
		return v
	}
	return DefaultDimension
}

// Affinity reports how well a static capability vector matches a query
// type, in [0,1]. The validator uses it for its bounded score
// adjustment.
func Affinity(static map[string]float64, qt analyzer.QueryType) float64 {
	return staticScore(static, qt)
}
