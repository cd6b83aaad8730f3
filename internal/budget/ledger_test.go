package budget

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rahulraonatarajan/prompt-go-mcp/internal/model"
	"github.com/rahulraonatarajan/prompt-go-mcp/internal/policy"
	"github.com/rahulraonatarajan/prompt-go-mcp/internal/store"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

var testNow = time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)

func newTestLedger(t *testing.T, policies policy.Provider) (*Ledger, store.Store) {
	t.Helper()

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		st.Close() //nolint:errcheck
	})
	require.NoError(t, st.Migrate(context.Background()))

	led := NewLedger(st, policies)
	led.nowFunc = func() time.Time { return testNow }
	return led, st
}

func softPolicy(org string, limit float64) model.BudgetPolicy {
	pol := policy.Default(org)
	pol.MonthlyLimitUSD = limit
	pol.Mode = model.ModeSoft
	return pol
}

func TestPeriod(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "2026-03", Period(testNow))

	// Period keys are UTC: early local-time March is still February.
	ist := time.FixedZone("IST", 5*3600+1800)
	assert.Equal(t, "2026-02", Period(time.Date(2026, time.March, 1, 2, 0, 0, 0, ist)))
}

func TestStateFor(t *testing.T) {
	t.Parallel()

	pol := softPolicy("acme", 500)

	tests := []struct {
		name  string
		spend float64
		want  model.BudgetState
	}{
		{"zero", 0, model.StateUnderThreshold},
		{"just below threshold", 399.99, model.StateUnderThreshold},
		{"at threshold", 400, model.StateNearThreshold},
		{"just below limit", 499.99, model.StateNearThreshold},
		{"exactly at limit", 500, model.StateOverLimit},
		{"beyond limit", 650, model.StateOverLimit},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, stateFor(tt.spend, pol))
		})
	}

	t.Run("zero limit disables awareness", func(t *testing.T) {
		t.Parallel()
		free := softPolicy("acme", 0)
		assert.Equal(t, model.StateUnderThreshold, stateFor(10000, free))
	})
}

func TestCheckAndReserve_Observe(t *testing.T) {
	t.Parallel()

	pol := policy.Default("acme")
	pol.MonthlyLimitUSD = 100
	led, _ := newTestLedger(t, policy.Static{"acme": pol})
	ctx := context.Background()

	d := led.CheckAndReserve(ctx, "acme", "openai/gpt-4o", 0.5)
	assert.Equal(t, model.ActionAllow, d.Action)
	assert.Equal(t, model.StateUnderThreshold, d.State)
	assert.False(t, d.Alert)

	_, err := led.Commit(ctx, "acme", 100)
	require.NoError(t, err)

	d = led.CheckAndReserve(ctx, "acme", "openai/gpt-4o", 0.5)
	assert.Equal(t, model.ActionAllow, d.Action)
	assert.Equal(t, model.StateOverLimit, d.State)
	assert.Equal(t, model.ModeObserve, d.Mode)
	assert.True(t, d.Alert)
	assert.False(t, d.Degraded)
}

func TestCheckAndReserve_SoftDowngrade(t *testing.T) {
	t.Parallel()

	led, _ := newTestLedger(t, policy.Static{"acme": softPolicy("acme", 100)})
	ctx := context.Background()

	_, err := led.Commit(ctx, "acme", 60)
	require.NoError(t, err)

	d := led.CheckAndReserve(ctx, "acme", "gpt-4", 0.5)
	assert.Equal(t, model.ActionAllow, d.Action)

	_, err = led.Commit(ctx, "acme", 40)
	require.NoError(t, err)

	d = led.CheckAndReserve(ctx, "acme", "gpt-4", 0.5)
	assert.Equal(t, model.ActionDowngrade, d.Action)
	assert.Equal(t, "gpt-3.5-turbo", d.TargetModel)
	assert.Contains(t, d.Reason, "downgraded gpt-4")

	// No mapping for the requested model: soft mode still allows.
	d = led.CheckAndReserve(ctx, "acme", "anthropic/claude-3-haiku", 0.5)
	assert.Equal(t, model.ActionAllow, d.Action)
	assert.Equal(t, model.StateOverLimit, d.State)
	assert.True(t, d.Alert)
}

func TestCheckAndReserve_HardBlocks(t *testing.T) {
	t.Parallel()

	pol := softPolicy("acme", 100)
	pol.Mode = model.ModeHard
	led, _ := newTestLedger(t, policy.Static{"acme": pol})
	ctx := context.Background()

	_, err := led.Commit(ctx, "acme", 99.99)
	require.NoError(t, err)

	d := led.CheckAndReserve(ctx, "acme", "gpt-4", 0.5)
	assert.Equal(t, model.ActionAllow, d.Action)
	assert.Equal(t, model.StateNearThreshold, d.State)

	_, err = led.Commit(ctx, "acme", 25)
	require.NoError(t, err)

	d = led.CheckAndReserve(ctx, "acme", "gpt-4", 0.5)
	assert.Equal(t, model.ActionBlock, d.Action)
	assert.Equal(t, model.StateOverLimit, d.State)
	assert.NotEmpty(t, d.Reason)
	assert.Empty(t, d.TargetModel)
}

func TestCheckAndReserve_MissingPolicy(t *testing.T) {
	t.Parallel()

	led, _ := newTestLedger(t, policy.Static{})
	ctx := context.Background()

	_, err := led.Commit(ctx, "unknown-org", 10000)
	require.NoError(t, err)

	d := led.CheckAndReserve(ctx, "unknown-org", "gpt-4", 0.5)
	assert.Equal(t, model.ActionAllow, d.Action)
	assert.Equal(t, model.StateUnderThreshold, d.State)
	assert.Equal(t, model.ModeObserve, d.Mode)
	assert.False(t, d.Degraded)
}

func TestCheckAndReserve_StoreFailureDegrades(t *testing.T) {
	t.Parallel()

	led, st := newTestLedger(t, policy.Static{"acme": softPolicy("acme", 100)})
	require.NoError(t, st.Close())

	d := led.CheckAndReserve(context.Background(), "acme", "gpt-4", 0.5)
	assert.Equal(t, model.ActionAllow, d.Action)
	assert.True(t, d.Degraded)
	assert.Equal(t, model.ModeSoft, d.Mode)
}

func TestCommit(t *testing.T) {
	t.Parallel()

	led, st := newTestLedger(t, policy.Static{})
	ctx := context.Background()

	_, err := led.Commit(ctx, "acme", -1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "negative commit")

	total, err := led.Commit(ctx, "acme", 12.5)
	require.NoError(t, err)
	assert.InDelta(t, 12.5, total, 1e-9)

	total, err = led.Commit(ctx, "acme", 7.5)
	require.NoError(t, err)
	assert.InDelta(t, 20.0, total, 1e-9)

	spend, err := st.GetSpend(ctx, "acme", "2026-03")
	require.NoError(t, err)
	assert.InDelta(t, 20.0, spend, 1e-9)
}

func TestCommit_PeriodRollover(t *testing.T) {
	t.Parallel()

	led, _ := newTestLedger(t, policy.Static{})
	ctx := context.Background()

	total, err := led.Commit(ctx, "acme", 25)
	require.NoError(t, err)
	assert.InDelta(t, 25.0, total, 1e-9)

	// A new month starts a fresh entry at zero.
	led.nowFunc = func() time.Time { return testNow.AddDate(0, 1, 0) }
	total, err = led.Commit(ctx, "acme", 5)
	require.NoError(t, err)
	assert.InDelta(t, 5.0, total, 1e-9)
}

func TestStatus(t *testing.T) {
	t.Parallel()

	led, _ := newTestLedger(t, policy.Static{"acme": softPolicy("acme", 500)})
	ctx := context.Background()

	_, err := led.Commit(ctx, "acme", 450)
	require.NoError(t, err)

	status, err := led.Status(ctx, "acme")
	require.NoError(t, err)

	assert.Equal(t, "acme", status.Org)
	assert.Equal(t, "2026-03", status.Period)
	assert.InDelta(t, 450.0, status.CurrentSpendUSD, 1e-9)
	assert.InDelta(t, 500.0, status.BudgetLimitUSD, 1e-9)
	assert.InDelta(t, 90.0, status.PercentageUsed, 1e-9)
	assert.Equal(t, 21, status.DaysRemaining)
	// 450 over 10 days projects to 1395 over the 31-day month.
	assert.InDelta(t, 1395.0, status.ProjectedSpendUSD, 1e-9)
	assert.Equal(t, model.ModeSoft, status.Mode)
	assert.Equal(t, model.StateNearThreshold, status.State)

	require.NotEmpty(t, status.Alerts)
	assert.Equal(t, "critical", status.Alerts[0].Level)
	assert.Equal(t, "Budget nearly exhausted: 90.0% used", status.Alerts[0].Message)
	assert.True(t, status.Alerts[0].ActionRequired)

	assert.Equal(t, []string{startSuggestion}, status.Suggestions)
}

func TestStatus_ZeroLimit(t *testing.T) {
	t.Parallel()

	led, _ := newTestLedger(t, policy.Static{"acme": softPolicy("acme", 0)})
	ctx := context.Background()

	_, err := led.Commit(ctx, "acme", 999)
	require.NoError(t, err)

	status, err := led.Status(ctx, "acme")
	require.NoError(t, err)

	assert.Zero(t, status.PercentageUsed)
	assert.Equal(t, model.StateUnderThreshold, status.State)
	assert.Empty(t, status.Alerts)
}

func TestStatus_SuggestionsFromOutcomes(t *testing.T) {
	t.Parallel()

	led, st := newTestLedger(t, policy.Static{"acme": softPolicy("acme", 500)})
	ctx := context.Background()

	logged := time.Date(2026, time.March, 5, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		_, err := st.LogOutcome(ctx, &model.Outcome{
			Org:       "acme",
			User:      "ada",
			Channel:   model.ChannelAgent,
			Model:     "openai/gpt-4o",
			CostUSD:   15,
			CreatedAt: logged,
		})
		require.NoError(t, err)
	}
	_, err := st.LogOutcome(ctx, &model.Outcome{
		Org:       "acme",
		User:      "ada",
		Channel:   model.ChannelDirect,
		Model:     "local/tiny-llama",
		CostUSD:   0,
		CreatedAt: logged,
	})
	require.NoError(t, err)

	status, err := led.Status(ctx, "acme")
	require.NoError(t, err)

	assert.Contains(t, status.Suggestions,
		"🤖 Agent mode accounts for >50% of costs. Try breaking complex tasks into smaller prompts.")
	assert.Contains(t, status.Suggestions,
		"🌐 Web search is underused. Route fresh info queries to web to avoid expensive LLM calls.")
}

func TestHistory(t *testing.T) {
	t.Parallel()

	led, _ := newTestLedger(t, policy.Static{})
	ctx := context.Background()

	_, err := led.Commit(ctx, "acme", 10)
	require.NoError(t, err)

	led.nowFunc = func() time.Time { return testNow.AddDate(0, 1, 0) }
	_, err = led.Commit(ctx, "acme", 20)
	require.NoError(t, err)

	entries, err := led.History(ctx, "acme", 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "2026-04", entries[0].Period)
	assert.InDelta(t, 20.0, entries[0].CumulativeSpendUSD, 1e-9)
	assert.Equal(t, "2026-03", entries[1].Period)
}
