package analytics

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rahulraonatarajan/prompt-go-mcp/internal/model"
	"github.com/rahulraonatarajan/prompt-go-mcp/internal/store"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

var testNow = time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) store.Store {
	t.Helper()

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "analytics.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		st.Close() //nolint:errcheck
	})
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func newTestService(t *testing.T) (*Service, store.Store) {
	t.Helper()

	st := newTestStore(t)
	svc := NewService(st, nil, nil, nil)
	svc.nowFunc = func() time.Time { return testNow }
	return svc, st
}

func seedOutcome(t *testing.T, st store.Store, o model.Outcome) {
	t.Helper()

	if o.Org == "" {
		o.Org = "acme"
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = testNow.AddDate(0, 0, -1)
	}
	_, err := st.LogOutcome(context.Background(), &o)
	require.NoError(t, err)
}

func TestUsage_DefaultWindow(t *testing.T) {
	t.Parallel()

	svc, st := newTestService(t)
	seedOutcome(t, st, model.Outcome{User: "ada", Channel: model.ChannelAgent, Model: "openai/gpt-4o", CostUSD: 3})
	seedOutcome(t, st, model.Outcome{User: "ada", Channel: model.ChannelAgent, Model: "openai/gpt-4o", CostUSD: 3})
	seedOutcome(t, st, model.Outcome{User: "grace", Channel: model.ChannelDirect, Model: "local/tiny-llama"})
	// Outside the trailing 30 days.
	seedOutcome(t, st, model.Outcome{User: "old", Channel: model.ChannelWeb, CreatedAt: testNow.AddDate(0, 0, -40), CostUSD: 99})

	items, err := svc.Usage(context.Background(), "acme", time.Time{}, time.Time{}, ByUser)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "ada", items[0].Key)
	assert.Equal(t, 2, items[0].Requests)
	assert.Equal(t, 6.0, items[0].CostUSD)
	assert.Equal(t, "grace", items[1].Key)
}

func TestUsage_OtherOrgExcluded(t *testing.T) {
	t.Parallel()

	svc, st := newTestService(t)
	seedOutcome(t, st, model.Outcome{Org: "globex", User: "hank", CostUSD: 5})

	items, err := svc.Usage(context.Background(), "acme", time.Time{}, time.Time{}, ByUser)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestUsage_UnknownDimension(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	_, err := svc.Usage(context.Background(), "acme", time.Time{}, time.Time{}, "latency")
	require.Error(t, err)
}

func TestOverview_AllDimensions(t *testing.T) {
	t.Parallel()

	svc, st := newTestService(t)
	seedOutcome(t, st, model.Outcome{User: "ada", Feature: "chat", Channel: model.ChannelAgent, Model: "openai/gpt-4o", CostUSD: 2})
	seedOutcome(t, st, model.Outcome{User: "grace", Feature: "cli", Channel: model.ChannelWeb, Model: "openai/gpt-4o-mini", CostUSD: 1})

	overview, err := svc.Overview(context.Background(), "acme", time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, overview, 4)

	for _, dim := range Dimensions() {
		require.Contains(t, overview, dim)
		assert.Len(t, overview[dim], 2, dim)
	}
	assert.Equal(t, "ada", overview[ByUser][0].Key)
	assert.Equal(t, "chat", overview[ByFeature][0].Key)
}

func TestTeamMetrics(t *testing.T) {
	t.Parallel()

	svc, st := newTestService(t)
	seedOutcome(t, st, model.Outcome{User: "ada", Channel: model.ChannelAgent, Model: "openai/gpt-4o", CostUSD: 3, Utility: 0.9})
	seedOutcome(t, st, model.Outcome{User: "ada", Channel: model.ChannelAgent, Model: "openai/gpt-4o", CostUSD: 3, Utility: 0.8})
	seedOutcome(t, st, model.Outcome{User: "grace", Channel: model.ChannelDirect, Model: "local/tiny-llama", Utility: 0.5})

	tm, err := svc.TeamMetrics(context.Background(), "acme", 0)
	require.NoError(t, err)

	assert.Equal(t, "acme", tm.Org)
	assert.Equal(t, 7, tm.PeriodDays)
	assert.Equal(t, 3, tm.TotalRequests)
	assert.Equal(t, 6.0, tm.TotalCostUSD)
	// 6 / 0.75 - 6: savings against the unoptimized baseline.
	assert.Equal(t, 2.0, tm.EstimatedSavingsUSD)
	assert.Equal(t, map[model.Channel]int{model.ChannelAgent: 2, model.ChannelDirect: 1}, tm.RouteDistribution)

	require.Len(t, tm.TopUsers, 2)
	assert.Equal(t, "ada", tm.TopUsers[0].User)
	assert.Equal(t, 2, tm.TopUsers[0].Requests)
	assert.Equal(t, 6.0, tm.TopUsers[0].CostUSD)
	assert.Equal(t, 1.0, tm.TopUsers[0].Efficiency)
	assert.Equal(t, "grace", tm.TopUsers[1].User)
	assert.Zero(t, tm.TopUsers[1].Efficiency)
}

func TestTeamMetrics_NoUsage(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)

	tm, err := svc.TeamMetrics(context.Background(), "acme", 14)
	require.NoError(t, err)

	assert.Equal(t, 14, tm.PeriodDays)
	assert.Zero(t, tm.TotalRequests)
	assert.Zero(t, tm.TotalCostUSD)
	assert.Zero(t, tm.EstimatedSavingsUSD)
	assert.Empty(t, tm.RouteDistribution)
	assert.Empty(t, tm.TopUsers)
}

func TestTeamMetrics_TopUsersCapped(t *testing.T) {
	t.Parallel()

	svc, st := newTestService(t)
	users := []string{"ada", "grace", "hank", "iris", "jude", "kate"}
	for i, u := range users {
		seedOutcome(t, st, model.Outcome{User: u, Channel: model.ChannelDirect, Model: "openai/gpt-4o-mini", CostUSD: float64(len(users) - i)})
	}

	tm, err := svc.TeamMetrics(context.Background(), "acme", 7)
	require.NoError(t, err)
	require.Len(t, tm.TopUsers, 5)
	assert.Equal(t, "ada", tm.TopUsers[0].User)
	assert.Equal(t, "jude", tm.TopUsers[4].User)
}
