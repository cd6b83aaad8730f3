package routing

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode/utf8"

	"github.com/rahulraonatarajan/prompt-go-mcp/internal/model"
)

// Length bucket boundaries in characters.
const (
	shortPromptChars  = 280
	mediumPromptChars = 1200
)

// ContextFlags are caller-supplied hints that travel alongside a prompt.
// They are recorded as features but carry no prompt content.
type ContextFlags struct {
	HasCodeSelection bool `json:"has_code_selection,omitempty"`
	RecentSession    bool `json:"recent_session,omitempty"`
}

// Extract derives a feature record from a prompt. Pure: no I/O, no clock,
// no randomness. The prompt itself is read once here and never retained;
// callers must not hold it past this call if they intend to persist or log
// the result.
func Extract(prompt string, flags ContextFlags) model.Features {
	p := strings.ToLower(prompt)

	f := model.Features{
		CharCount:          utf8.RuneCountInString(prompt),
		QuestionMarks:      strings.Count(p, "?"),
		FreshnessHits:      countMatches(freshnessRe, p),
		ImplementationHits: countMatches(implementationRe, p),
		AmbiguityHits:      countMatches(ambiguityRe, p),
		NotSure:            strings.Contains(p, "not sure"),
		RecommendAsk:       strings.Contains(p, "recommend") && !strings.Contains(p, "budget"),
		ComparisonAsk:      strings.Contains(p, "how much") || strings.Contains(p, "compare"),
		StepByStep:         strings.Contains(p, "step-by-step"),
		BulletItems:        strings.Count(p, "\n- "),
		HasCodeSelection:   flags.HasCodeSelection,
		RecentSession:      flags.RecentSession,
		PromptHash:         HashPrompt(prompt),
	}

	switch {
	case f.CharCount < shortPromptChars:
		f.LengthBucket = model.LengthShort
	case f.CharCount < mediumPromptChars:
		f.LengthBucket = model.LengthMedium
	default:
		f.LengthBucket = model.LengthLong
	}

	return f
}

// HashPrompt returns the SHA-256 hex digest of the exact prompt text.
// The hash is content-agnostic: equal prompts collide, nothing about the
// text can be recovered from it.
func HashPrompt(prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	return hex.EncodeToString(sum[:])
}
