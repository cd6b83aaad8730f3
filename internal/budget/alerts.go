package budget

import (
	"fmt"
	"strings"
	"time"

	"github.com/rahulraonatarajan/prompt-go-mcp/internal/model"
)

// startSuggestion is returned when an org has no usage to analyze yet.
const startSuggestion = "Start using Prompt Go to get personalized cost optimization suggestions"

// premiumModels are flagged in suggestions and savings math. Matched on
// the bare model name, with any "provider/" prefix stripped.
var premiumModels = map[string]struct{}{
	"gpt-4":         {},
	"claude-3-opus": {},
	"gpt-4-turbo":   {},
}

// IsPremiumModel reports whether the model is in the premium tier used
// by suggestion and savings heuristics.
func IsPremiumModel(name string) bool {
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	_, ok := premiumModels[name]
	return ok
}

// alertLadder builds the status alerts for the current spend picture.
// The first match of the percentage ladder wins; the low-usage notice
// stacks independently. Orgs with no limit get no alerts.
func alertLadder(current, limit, projected, percentage float64, day int) []model.BudgetAlert {
	if limit <= 0 {
		return nil
	}

	var alerts []model.BudgetAlert
	switch {
	case percentage >= 100:
		alerts = append(alerts, model.BudgetAlert{
			Level:          "critical",
			Message:        fmt.Sprintf("Budget exceeded! Current spend: $%.2f / $%.2f", current, limit),
			Suggestion:     "Consider enabling hard budget limits or upgrading your plan",
			ActionRequired: true,
		})
	case percentage >= 90:
		alerts = append(alerts, model.BudgetAlert{
			Level:          "critical",
			Message:        fmt.Sprintf("Budget nearly exhausted: %.1f%% used", percentage),
			Suggestion:     "Enable cost-saving measures immediately",
			ActionRequired: true,
		})
	case percentage >= 80:
		alerts = append(alerts, model.BudgetAlert{
			Level:      "warning",
			Message:    fmt.Sprintf("Budget alert: %.1f%% of monthly limit used", percentage),
			Suggestion: "Consider reviewing routing patterns to optimize costs",
		})
	case projected > limit*1.1:
		alerts = append(alerts, model.BudgetAlert{
			Level:      "warning",
			Message:    fmt.Sprintf("Projected to exceed budget: $%.2f estimated for month", projected),
			Suggestion: "Current usage patterns may lead to budget overrun",
		})
	}

	if percentage < 50 && day > 15 {
		alerts = append(alerts, model.BudgetAlert{
			Level:      "info",
			Message:    "Budget usage is lower than expected - good cost management!",
			Suggestion: "Consider investing saved budget in advanced features",
		})
	}
	return alerts
}

// smartSuggestions derives cost optimization tips from a month of
// recorded outcomes. Ratio checks are skipped when the month cost is
// all-zero (free local models only).
func smartSuggestions(rows []model.Outcome, pol model.BudgetPolicy, now time.Time) []string {
	if len(rows) == 0 {
		return []string{startSuggestion}
	}

	routeCost := make(map[model.Channel]float64)
	routeCount := make(map[model.Channel]int)
	var totalCost, premiumCost float64
	for _, r := range rows {
		routeCost[r.Channel] += r.CostUSD
		routeCount[r.Channel]++
		totalCost += r.CostUSD
		if IsPremiumModel(r.Model) {
			premiumCost += r.CostUSD
		}
	}
	totalRequests := len(rows)

	var out []string
	if totalCost > 0 && routeCost[model.ChannelAgent]/totalCost > 0.5 {
		out = append(out, "🤖 Agent mode accounts for >50% of costs. Try breaking complex tasks into smaller prompts.")
	}
	if totalCost > 0 && routeCost[model.ChannelDirect]/totalCost > 0.4 && routeCount[model.ChannelDirect] > 20 {
		out = append(out, "⚡ Consider using smaller/local models for simple direct questions to reduce costs by ~60%.")
	}
	if float64(routeCount[model.ChannelWeb]) < float64(totalRequests)*0.1 {
		out = append(out, "🌐 Web search is underused. Route fresh info queries to web to avoid expensive LLM calls.")
	}
	if totalCost > 0 && premiumCost/totalCost > 0.7 && len(pol.Fallbacks) > 0 {
		out = append(out, fmt.Sprintf(
			"💰 Premium models account for %.1f%% of costs. Enable automatic fallbacks to save ~40%% on routine tasks.",
			premiumCost/totalCost*100))
	}
	if totalRequests > 100 {
		if avg := totalCost / float64(totalRequests); avg > 0.05 {
			out = append(out, fmt.Sprintf(
				"📊 Average cost per request ($%.3f) is high. Consider more specific prompts and better routing.", avg))
		}
	}
	if now.Day() > 20 && pol.MonthlyLimitUSD > 0 && totalCost > pol.MonthlyLimitUSD*0.8 {
		out = append(out, "⏰ High usage in late month detected. Consider batching non-urgent requests for next month.")
	}
	return out
}
