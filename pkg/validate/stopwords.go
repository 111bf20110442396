package validate

// stopwords excluded from relevance matching.
var stopwords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "are": {}, "but": {}, "not": {},
	"you": {}, "all": {}, "can": {}, "had": {}, "her": {}, "was": {},
	"one": {}, "our": {}, "out": {}, "has": {}, "him": {}, "his": {},
	"how": {}, "its": {}, "may": {}, "who": {}, "did": {}, "get": {},
	"use": {}, "that": {}, "this": {}, "with": {}, "from": {},
	"they": {}, "what": {}, "which": {}, "their": {}, "would": {},
	"there": {}, "about": {}, "could": {}, "should": {}, "these": {},
	"them": {}, "then": {}, "than": {}, "have": {}, "will": {},
	"your": {}, "when": {}, "where": {}, "does": {}, "please": {},
	"into": {}, "some": {}, "more": {}, "very": {}, "just": {},
	"also": {}, "been": {}, "being": {}, "each": {}, "between": {},
}
