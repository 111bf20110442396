package analyzer

// typeKeywords holds the classification keyword lists. Keywords are
// lowercase; matching is word-boundary based.
var typeKeywords = map[QueryType][]string{
	Technical: {
		"code", "function", "bug", "debug", "error", "compile", "api",
		"algorithm", "database", "server", "deploy", "implement",
		"refactor", "stack trace", "exception", "regex", "library",
		"framework", "kubernetes", "docker", "sql",
	},
	Reasoning: {
		"why", "explain", "analyze", "compare", "evaluate", "reason",
		"think through", "step by step", "logical", "deduce", "infer",
		"pros and cons", "trade-off", "tradeoff", "implications",
	},
	Creative: {
		"write a story", "poem", "creative", "imagine", "fiction",
		"brainstorm", "lyrics", "slogan", "character", "plot",
		"rewrite", "metaphor",
	},
	Factual: {
		"what is", "who is", "when", "where", "define", "definition",
		"how many", "capital of", "look up", "fact", "date",
	},
	General: {},
}

// technicalVocabulary feeds the complexity score's domain-vocabulary
// factor.
var technicalVocabulary = []string{
	"algorithm", "concurrency", "distributed", "latency", "throughput",
	"architecture", "protocol", "encryption", "optimization",
	"complexity", "recursion", "transaction", "consistency",
	"scalability", "asynchronous", "deterministic", "heuristic",
}

// multiStepPhrases signal that the query asks for several pieces of
// work or a comparison.
var multiStepPhrases = []string{
	"first", "then", "finally", "also", "as well as", "compare",
	"versus", "vs", "both", "and then", "after that", "multiple",
	"each of", "list all",
}

// reasoningCues signal that the query expects justification, not just
// an answer.
var reasoningCues = []string{
	"why", "explain", "how does", "what happens if", "justify",
	"walk me through", "reasoning", "prove", "derive",
}
