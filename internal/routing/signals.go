package routing

import "regexp"

// Signal lexicons. These drive the rule scorer and are matched against the
// lowercased prompt during extraction only; afterwards just the hit counts
// survive.
var (
	// freshnessRe marks prompts about volatile or dated information.
	freshnessRe = regexp.MustCompile(`(today|latest|price|pricing|schedule|release|news|update|who\s+is|20\d{2}|policy|changelog|version|deprecat|breaking)`)

	// implementationRe marks multi-step implementation and tooling work.
	implementationRe = regexp.MustCompile(`(implement|scaffold|integrate|deploy|refactor|migrate|benchmark|write tests|generate project|create pr|scrape|automate|pipeline|dataset)`)

	// ambiguityRe marks underspecified asks that need clarification first.
	ambiguityRe = regexp.MustCompile(`\b(best|cheapest|fastest|quickest|near me|for my use case|recommend)\b`)
)

// countMatches returns the number of non-overlapping matches of re in text.
func countMatches(re *regexp.Regexp, text string) int {
	return len(re.FindAllStringIndex(text, -1))
}
