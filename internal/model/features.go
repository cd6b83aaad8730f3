package model

import (
	"fmt"
	"strings"
)

// LengthBucket classifies prompt length without retaining the text.
type LengthBucket string

const (
	LengthShort  LengthBucket = "short"  // under 280 chars
	LengthMedium LengthBucket = "medium" // under 1200 chars
	LengthLong   LengthBucket = "long"
)

// Features is the derived, content-agnostic view of a prompt. It is the
// only representation of prompt content that crosses the extraction
// boundary: no substring of the raw text appears here, only counts, flags,
// and a SHA-256 hash.
type Features struct {
	LengthBucket       LengthBucket `json:"length_bucket"`
	CharCount          int          `json:"char_count"`
	QuestionMarks      int          `json:"question_marks"`
	FreshnessHits      int          `json:"freshness_hits"`
	ImplementationHits int          `json:"implementation_hits"`
	AmbiguityHits      int          `json:"ambiguity_hits"`
	NotSure            bool         `json:"not_sure"`
	RecommendAsk       bool         `json:"recommend_ask"`
	ComparisonAsk      bool         `json:"comparison_ask"`
	StepByStep         bool         `json:"step_by_step"`
	BulletItems        int          `json:"bullet_items"`
	HasCodeSelection   bool         `json:"has_code_selection"`
	RecentSession      bool         `json:"recent_session"`
	PromptHash         string       `json:"prompt_hash"`
}

// InvalidFeaturesError reports a malformed feature record received over
// the tool surface. The request carrying it is rejected; nothing else is
// affected.
type InvalidFeaturesError struct {
	Reasons []string
}

func (e *InvalidFeaturesError) Error() string {
	return "invalid features: " + strings.Join(e.Reasons, "; ")
}

// Validate checks a feature record supplied by a caller (as opposed to one
// produced by the extractor, which is correct by construction).
func (f *Features) Validate() error {
	var reasons []string
	switch f.LengthBucket {
	case LengthShort, LengthMedium, LengthLong:
	default:
		reasons = append(reasons, fmt.Sprintf("unknown length bucket %q", f.LengthBucket))
	}
	if f.CharCount < 0 {
		reasons = append(reasons, "char_count is negative")
	}
	if f.QuestionMarks < 0 {
		reasons = append(reasons, "question_marks is negative")
	}
	if f.FreshnessHits < 0 || f.ImplementationHits < 0 || f.AmbiguityHits < 0 {
		reasons = append(reasons, "signal hit count is negative")
	}
	if f.BulletItems < 0 {
		reasons = append(reasons, "bullet_items is negative")
	}
	if len(reasons) > 0 {
		return &InvalidFeaturesError{Reasons: reasons}
	}
	return nil
}
