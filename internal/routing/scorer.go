package routing

import (
	"math"

	"github.com/rahulraonatarajan/prompt-go-mcp/internal/model"
)

// Raw heuristic points per channel. A matched heuristic only ever adds
// points, so rule scores are monotonic in the matched signals.
const (
	webFreshnessPoints  = 1.2
	webComparisonPoints = 0.4
	agentPoints         = 1.1
	askPoints           = 0.9
	directPoints        = 0.9
)

// RuleScores computes the deterministic per-channel rule score in (0, 1)
// from a feature record. No weights are applied here; the decision engine
// multiplies those in afterwards.
func RuleScores(f model.Features) map[model.Channel]float64 {
	points := rawPoints(f)
	scores := make(map[model.Channel]float64, len(points))
	for ch, p := range points {
		scores[ch] = sigmoid(p)
	}
	return scores
}

// rawPoints applies the heuristic table to a feature record.
func rawPoints(f model.Features) map[model.Channel]float64 {
	points := map[model.Channel]float64{
		model.ChannelWeb:    0,
		model.ChannelAgent:  0,
		model.ChannelAsk:    0,
		model.ChannelDirect: 0,
	}

	if f.FreshnessHits > 0 {
		points[model.ChannelWeb] += webFreshnessPoints
	}
	if f.ComparisonAsk {
		points[model.ChannelWeb] += webComparisonPoints
	}
	if f.ImplementationHits > 0 || f.StepByStep || f.BulletItems >= 2 {
		points[model.ChannelAgent] += agentPoints
	}
	if f.AmbiguityHits > 0 || f.NotSure || f.RecommendAsk {
		points[model.ChannelAsk] += askPoints
	}
	if f.LengthBucket == model.LengthShort && f.QuestionMarks == 1 &&
		f.FreshnessHits == 0 && f.ImplementationHits == 0 {
		points[model.ChannelDirect] += directPoints
	}

	return points
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// Rationale returns the matched-signal tags and their human-readable
// reasons, strongest signal first. When nothing matched, a single
// no-strong-signals entry points at the safe defaults.
func Rationale(f model.Features) (tags []string, reasons []string) {
	if f.FreshnessHits > 0 {
		tags = append(tags, model.TagFreshness)
		reasons = append(reasons, "Fresh/volatile info → web")
	}
	if f.ImplementationHits > 0 || f.StepByStep {
		tags = append(tags, model.TagMultiStep)
		reasons = append(reasons, "Multi-step/tooling → agent")
	}
	if f.AmbiguityHits > 0 {
		tags = append(tags, model.TagUnderspecified)
		reasons = append(reasons, "Underspecified → ask")
	}
	if f.LengthBucket == model.LengthShort && f.QuestionMarks == 1 && f.FreshnessHits == 0 {
		tags = append(tags, model.TagShortQuestion)
		reasons = append(reasons, "Short Q → direct")
	}
	if len(tags) == 0 {
		tags = append(tags, model.TagNoStrongSignals)
		reasons = append(reasons, "No strong signals; direct or ask are safe defaults")
	}
	return tags, reasons
}
