package analytics

import (
	"context"
	"fmt"
	"math"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/rahulraonatarajan/prompt-go-mcp/internal/model"
	"github.com/rahulraonatarajan/prompt-go-mcp/internal/store"
)

// Weekly recommendation triggers over the trailing seven days.
const (
	simpleQARatioTrigger = 0.3
	freshnessHitsTrigger = 50
	agentOveruseTrigger  = 0.2
	weightDriftTrigger   = 0.15
)

// recsSummary is the fixed summary line of the weekly recommendations.
const recsSummary = "Use smaller models for short Q&A, prefer web for freshness, and require action verbs for agents."

// WeeklyRecommendations derives rule-file suggestions from the trailing
// seven days of routing decisions plus the org's learned channel
// weights. An org with no decisions still gets the summary line.
func (s *Service) WeeklyRecommendations(ctx context.Context, org string) (model.Recommendations, error) {
	until := s.nowFunc().UTC()
	since := until.AddDate(0, 0, -7)
	decisions, err := s.store.ListDecisions(ctx, store.DecisionFilter{
		Org:   org,
		Since: since,
		Until: until,
		Limit: sampleLimit,
	})
	if err != nil {
		return model.Recommendations{}, eris.Wrapf(err, "analytics: list decisions for org %s", org)
	}

	counts := map[model.Channel]int{}
	for _, d := range decisions {
		counts[d.Channel]++
	}
	denom := float64(max(len(decisions), 1))

	rules := make([]model.RuleRecommendation, 0, 4)
	if float64(counts[model.ChannelDirect])/denom > simpleQARatioTrigger {
		rules = append(rules, model.RuleRecommendation{
			Rule:   "downshift_simple_qa",
			Action: "use gpt-3.5 or local tiny-llama for short single-question prompts",
		})
	}
	if counts[model.ChannelWeb] > freshnessHitsTrigger {
		rules = append(rules, model.RuleRecommendation{
			Rule:   "prefer_web_for_freshness",
			Action: "route 'latest/pricing/update/version' prompts to web first",
		})
	}
	if float64(counts[model.ChannelAgent])/denom > agentOveruseTrigger {
		rules = append(rules, model.RuleRecommendation{
			Rule:   "agent_threshold",
			Action: "require 'plan/implement/deploy' verbs before agent route",
		})
	}
	rules = append(rules, s.weightDriftRules(ctx, org)...)

	return model.Recommendations{Summary: recsSummary, Rules: rules}, nil
}

// weightDriftRules suggests policy-file weight changes for channels
// whose learned multiplier has moved well away from neutral. A failed
// weight read drops the drift rules, not the whole recommendation set.
func (s *Service) weightDriftRules(ctx context.Context, org string) []model.RuleRecommendation {
	if s.weights == nil {
		return nil
	}
	resolved, err := s.weights.Resolve(ctx, org, "")
	if err != nil {
		zap.L().Warn("analytics: weight read failed, skipping drift rules",
			zap.String("org", org),
			zap.Error(err),
		)
		return nil
	}

	var rules []model.RuleRecommendation
	for _, ch := range model.AllChannels() {
		w := resolved[ch]
		if math.Abs(w-1.0) < weightDriftTrigger {
			continue
		}
		rules = append(rules, model.RuleRecommendation{
			Rule:   "adjust_weight_" + string(ch),
			Action: fmt.Sprintf("set weights.%s: %.2f in the org policy file to match learned routing", ch, w),
		})
	}
	return rules
}
