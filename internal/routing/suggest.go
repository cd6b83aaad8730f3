package routing

import "strings"

// SuggestionPack carries ready-to-use follow-ups per channel. The web entry
// is built from the ephemeral prompt text and is returned to the caller
// only; it never reaches storage or logs.
type SuggestionPack struct {
	Ask    []string `json:"ask"`
	Web    string   `json:"web"`
	Agent  []string `json:"agent"`
	Direct string   `json:"direct"`
}

// Suggestions builds the per-channel suggestion pack for a prompt. With an
// empty prompt (feature-only requests) the web query degrades to just the
// search qualifiers.
func Suggestions(prompt string) SuggestionPack {
	q := strings.TrimRight(strings.TrimSpace(prompt), "?")
	web := "site:docs official after:2024-01-01"
	if q != "" {
		web = q + " " + web
	}
	return SuggestionPack{
		Ask: []string{
			"Goal & success metric?",
			"Constraints (budget, deadline, platform)?",
			"Inputs available (files, URLs, APIs)?",
		},
		Web: web,
		Agent: []string{
			"Plan:\n1) Subtasks\n2) Tools\n3) Execute\n4) Verify\n5) Summarize",
			"Tools: web.search → parse → write.md / commit PR",
		},
		Direct: "Answer concisely with 3 bullets and a short example.",
	}
}
