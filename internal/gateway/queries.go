package gateway

import (
	"context"
	"time"
	"unicode/utf8"

	"github.com/rotisserie/eris"

	"github.com/rahulraonatarajan/prompt-go-mcp/internal/analytics"
	"github.com/rahulraonatarajan/prompt-go-mcp/internal/cost"
	"github.com/rahulraonatarajan/prompt-go-mcp/internal/model"
)

// GetBudgetStatus returns the org's current-period budget picture.
func (g *Gateway) GetBudgetStatus(ctx context.Context, org string) (model.BudgetStatus, error) {
	return g.ledger.Status(ctx, org)
}

// GetBudgetHistory returns recent ledger periods, newest first.
func (g *Gateway) GetBudgetHistory(ctx context.Context, org string, limit int) ([]model.LedgerEntry, error) {
	return g.ledger.History(ctx, org, limit)
}

// GetUsageSummary aggregates outcomes over [since, until) for one
// dimension; zero bounds default to the trailing thirty days.
func (g *Gateway) GetUsageSummary(ctx context.Context, org string, since, until time.Time, by string) ([]model.UsageSummaryItem, error) {
	if g.analytics == nil {
		return nil, eris.New("gateway: analytics not configured")
	}
	return g.analytics.Usage(ctx, org, since, until, by)
}

// GetUsageOverview returns every dimension's summary at once.
func (g *Gateway) GetUsageOverview(ctx context.Context, org string, since, until time.Time) (map[string][]model.UsageSummaryItem, error) {
	if g.analytics == nil {
		return nil, eris.New("gateway: analytics not configured")
	}
	return g.analytics.Overview(ctx, org, since, until)
}

// WeeklyRecommendations derives rule-file suggestions from the trailing
// week of decisions and the learned weights.
func (g *Gateway) WeeklyRecommendations(ctx context.Context, org string) (model.Recommendations, error) {
	if g.analytics == nil {
		return model.Recommendations{}, eris.New("gateway: analytics not configured")
	}
	return g.analytics.WeeklyRecommendations(ctx, org)
}

// OptimizeReport renders the quick ROI markdown for an org.
func (g *Gateway) OptimizeReport(ctx context.Context, org string) (string, error) {
	if g.analytics == nil {
		return "", eris.New("gateway: analytics not configured")
	}
	return g.analytics.OptimizeReportMarkdown(ctx, org)
}

// CostReport builds the month-to-date optimization report for an org.
func (g *Gateway) CostReport(ctx context.Context, org string) (analytics.OptimizationReport, error) {
	if g.analytics == nil {
		return analytics.OptimizationReport{}, eris.New("gateway: analytics not configured")
	}
	return g.analytics.CostOptimizationReport(ctx, org)
}

// TeamMetrics aggregates the org's trailing window for the dashboard.
func (g *Gateway) TeamMetrics(ctx context.Context, org string, days int) (analytics.TeamMetrics, error) {
	if g.analytics == nil {
		return analytics.TeamMetrics{}, eris.New("gateway: analytics not configured")
	}
	return g.analytics.TeamMetrics(ctx, org, days)
}

// EstimateCost projects token counts and cost across candidate models
// for a prompt. The text is measured and dropped, never stored.
func (g *Gateway) EstimateCost(prompt string, models []string) []cost.ModelEstimate {
	if len(models) == 0 {
		models = cost.DefaultCandidates()
	}
	return g.calc.ForPrompt(utf8.RuneCountInString(prompt), models)
}
