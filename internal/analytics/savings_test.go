package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rahulraonatarajan/prompt-go-mcp/internal/model"
)

func TestDowngradeSavings(t *testing.T) {
	t.Parallel()

	svc := NewService(nil, nil, nil, nil)

	rows := []model.Outcome{
		// Downgraded from gpt-4o: would have cost 2.50 + 10.00 = 12.50.
		{Downgraded: true, RequestedModel: "openai/gpt-4o", Model: "openai/gpt-4o-mini", TokensIn: 1000, TokensOut: 1000, CostUSD: 0.75},
		// Served as requested: no savings.
		{Downgraded: false, RequestedModel: "openai/gpt-4o", Model: "openai/gpt-4o", TokensIn: 1000, TokensOut: 1000, CostUSD: 12.5},
		// Downgraded but the requested model was never recorded.
		{Downgraded: true, TokensIn: 1000, TokensOut: 1000, CostUSD: 1},
		// Actual cost above the estimate: floored at zero.
		{Downgraded: true, RequestedModel: "local/tiny-llama", Model: "openai/gpt-4o", TokensIn: 100, TokensOut: 100, CostUSD: 1.25},
	}

	assert.InDelta(t, 11.75, svc.DowngradeSavings(rows), 1e-9)
}

func TestDowngradeSavings_NoRows(t *testing.T) {
	t.Parallel()

	svc := NewService(nil, nil, nil, nil)
	assert.Zero(t, svc.DowngradeSavings(nil))
}

func TestUserEfficiency(t *testing.T) {
	t.Parallel()

	rows := []model.Outcome{
		{User: "ada", Utility: 0.9},
		{User: "ada", Utility: 0.7}, // boundary counts
		{User: "ada", Utility: 0.9, Downgraded: true},
		{User: "grace", Utility: 0.69},
	}

	eff := UserEfficiency(rows)
	require.Len(t, eff, 2)
	assert.InDelta(t, 2.0/3.0, eff["ada"], 1e-9)
	assert.Zero(t, eff["grace"])
}

func TestSavingsOpportunities_Empty(t *testing.T) {
	t.Parallel()

	got := savingsOpportunities(nil)
	assert.Zero(t, got.TotalPotentialSavingsUSD)
	assert.Zero(t, got.OptimizationPercentage)
	assert.Empty(t, got.Opportunities)
	assert.NotNil(t, got.Opportunities)
}

func TestSavingsOpportunities_PremiumModels(t *testing.T) {
	t.Parallel()

	rows := []model.Outcome{
		{Model: "gpt-4", Channel: model.ChannelDirect, CostUSD: 100},
		{Model: "openai/gpt-3.5-turbo", Channel: model.ChannelDirect, CostUSD: 20},
	}

	got := savingsOpportunities(rows)
	require.Len(t, got.Opportunities, 1)

	opp := got.Opportunities[0]
	assert.Equal(t, "Model Optimization", opp.Category)
	assert.Equal(t, "Downgrade premium models for routine tasks", opp.Description)
	assert.Equal(t, 100.0, opp.CurrentCostUSD)
	assert.Equal(t, 60.0, opp.PotentialSavingsUSD)
	assert.Equal(t, "High", opp.Impact)

	assert.Equal(t, 60.0, got.TotalPotentialSavingsUSD)
	assert.Equal(t, 50.0, got.OptimizationPercentage)
}

func TestSavingsOpportunities_AgentHeavy(t *testing.T) {
	t.Parallel()

	rows := []model.Outcome{
		{Model: "openai/gpt-4o", Channel: model.ChannelAgent, CostUSD: 50},
		{Model: "openai/gpt-4o-mini", Channel: model.ChannelDirect, CostUSD: 50},
	}

	got := savingsOpportunities(rows)
	require.Len(t, got.Opportunities, 1)

	opp := got.Opportunities[0]
	assert.Equal(t, "Route Optimization", opp.Category)
	assert.Equal(t, "Optimize agent-mode usage with better prompt structuring", opp.Description)
	assert.Equal(t, 50.0, opp.CurrentCostUSD)
	assert.Equal(t, 15.0, opp.PotentialSavingsUSD)
	assert.Equal(t, "Medium", opp.Impact)
}

func TestSavingsOpportunities_AgentShareBoundary(t *testing.T) {
	t.Parallel()

	// Agent at exactly 40% of cost does not trigger the route lever.
	rows := []model.Outcome{
		{Model: "openai/gpt-4o", Channel: model.ChannelAgent, CostUSD: 40},
		{Model: "openai/gpt-4o-mini", Channel: model.ChannelDirect, CostUSD: 60},
	}

	got := savingsOpportunities(rows)
	assert.Empty(t, got.Opportunities)
}

func TestSavingsOpportunities_BothLevers(t *testing.T) {
	t.Parallel()

	rows := []model.Outcome{
		{Model: "anthropic/claude-3-opus", Channel: model.ChannelAgent, CostUSD: 80},
		{Model: "openai/gpt-4o-mini", Channel: model.ChannelDirect, CostUSD: 20},
	}

	got := savingsOpportunities(rows)
	require.Len(t, got.Opportunities, 2)
	assert.Equal(t, "Model Optimization", got.Opportunities[0].Category)
	assert.Equal(t, "Route Optimization", got.Opportunities[1].Category)

	// 80*0.6 + 80*0.3 against a total of 100.
	assert.Equal(t, 72.0, got.TotalPotentialSavingsUSD)
	assert.Equal(t, 72.0, got.OptimizationPercentage)
}
