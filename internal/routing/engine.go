package routing

import (
	"sort"

	"github.com/rahulraonatarajan/prompt-go-mcp/internal/model"
)

// Result is a channel decision before enforcement: the winning channel, the
// full ranking, and how it was reached. Pure data; building one performs
// no I/O.
type Result struct {
	Channel    model.Channel
	Ranking    []model.ScoreItem
	RuleScores map[model.Channel]float64
	Weights    map[model.Channel]float64
	Confidence float64
	Rationale  []string
	Reasons    []string
}

// Decide combines rule scores with the resolved channel weights:
// final = ruleScore * weight per channel, winner by max with fixed
// tie-break priority ask > direct > agent > web. Confidence is the margin
// between the top two final scores normalized by the top score.
//
// Missing weight entries default to 1.0. Given identical features and
// weights the result is identical.
func Decide(f model.Features, weights map[model.Channel]float64) Result {
	rules := RuleScores(f)

	ranking := make([]model.ScoreItem, 0, len(rules))
	resolved := make(map[model.Channel]float64, len(rules))
	for _, ch := range model.AllChannels() {
		w, ok := weights[ch]
		if !ok {
			w = 1.0
		}
		resolved[ch] = w
		ranking = append(ranking, model.ScoreItem{Channel: ch, Score: rules[ch] * w})
	}

	sort.SliceStable(ranking, func(i, j int) bool {
		if ranking[i].Score != ranking[j].Score {
			return ranking[i].Score > ranking[j].Score
		}
		return ranking[i].Channel.TieRank() < ranking[j].Channel.TieRank()
	})

	confidence := 0.0
	if top := ranking[0].Score; top > 0 {
		confidence = (top - ranking[1].Score) / top
	}

	tags, reasons := Rationale(f)

	return Result{
		Channel:    ranking[0].Channel,
		Ranking:    ranking,
		RuleScores: rules,
		Weights:    resolved,
		Confidence: confidence,
		Rationale:  tags,
		Reasons:    reasons,
	}
}
