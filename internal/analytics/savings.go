package analytics

import (
	"github.com/rahulraonatarajan/prompt-go-mcp/internal/budget"
	"github.com/rahulraonatarajan/prompt-go-mcp/internal/model"
)

// EfficiencyThreshold marks an outcome as efficient when it ran on the
// requested model and the caller rated it at least this useful.
const EfficiencyThreshold = 0.7

// DowngradeSavings sums, over downgraded outcomes, what the originally
// requested model would have cost for the same tokens minus what was
// actually paid. Each row contributes at least zero; rows without a
// recorded requested model contribute nothing.
func (s *Service) DowngradeSavings(rows []model.Outcome) float64 {
	var total float64
	for _, r := range rows {
		if !r.Downgraded || r.RequestedModel == "" {
			continue
		}
		saved := s.calc.Estimate(r.RequestedModel, r.TokensIn, r.TokensOut) - r.CostUSD
		if saved > 0 {
			total += saved
		}
	}
	return total
}

// UserEfficiency computes, per user, the share of outcomes that were
// not downgraded and scored at or above the efficiency threshold.
func UserEfficiency(rows []model.Outcome) map[string]float64 {
	total := map[string]int{}
	good := map[string]int{}
	for _, r := range rows {
		total[r.User]++
		if !r.Downgraded && r.Utility >= EfficiencyThreshold {
			good[r.User]++
		}
	}
	out := make(map[string]float64, len(total))
	for user, n := range total {
		out[user] = float64(good[user]) / float64(n)
	}
	return out
}

// Opportunity is one identified saving in the optimization report.
type Opportunity struct {
	Category            string  `json:"category"`
	Description         string  `json:"description"`
	CurrentCostUSD      float64 `json:"current_cost"`
	PotentialSavingsUSD float64 `json:"potential_savings"`
	Impact              string  `json:"impact"`
}

// SavingsOpportunities is the potential-savings breakdown of a report.
type SavingsOpportunities struct {
	TotalPotentialSavingsUSD float64       `json:"total_potential_savings"`
	Opportunities            []Opportunity `json:"opportunities"`
	OptimizationPercentage   float64       `json:"optimization_percentage"`
}

// Savings factors for the two structural levers.
const (
	premiumDowngradeShare = 0.6
	agentRoutingShare     = 0.3
	agentCostShareTrigger = 0.4
)

// savingsOpportunities scans a month of outcomes for premium models on
// routine work and for agent-heavy cost concentration.
func savingsOpportunities(rows []model.Outcome) SavingsOpportunities {
	out := SavingsOpportunities{Opportunities: []Opportunity{}}
	if len(rows) == 0 {
		return out
	}

	var totalCost, premiumCost, agentCost float64
	for _, r := range rows {
		totalCost += r.CostUSD
		if budget.IsPremiumModel(r.Model) {
			premiumCost += r.CostUSD
		}
		if r.Channel == model.ChannelAgent {
			agentCost += r.CostUSD
		}
	}

	if premiumCost > 0 {
		out.Opportunities = append(out.Opportunities, Opportunity{
			Category:            "Model Optimization",
			Description:         "Downgrade premium models for routine tasks",
			CurrentCostUSD:      premiumCost,
			PotentialSavingsUSD: premiumCost * premiumDowngradeShare,
			Impact:              "High",
		})
	}
	if agentCost > totalCost*agentCostShareTrigger {
		out.Opportunities = append(out.Opportunities, Opportunity{
			Category:            "Route Optimization",
			Description:         "Optimize agent-mode usage with better prompt structuring",
			CurrentCostUSD:      agentCost,
			PotentialSavingsUSD: agentCost * agentRoutingShare,
			Impact:              "Medium",
		})
	}

	var total float64
	for _, o := range out.Opportunities {
		total += o.PotentialSavingsUSD
	}
	out.TotalPotentialSavingsUSD = round2(total)
	if totalCost > 0 {
		out.OptimizationPercentage = round1(total / totalCost * 100)
	}
	return out
}
