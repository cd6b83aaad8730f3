package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rahulraonatarajan/prompt-go-mcp/internal/model"
	"github.com/rahulraonatarajan/prompt-go-mcp/internal/store"
	"github.com/rahulraonatarajan/prompt-go-mcp/internal/weights"
)

func seedDecisions(t *testing.T, st store.Store, ch model.Channel, n int, at time.Time) {
	t.Helper()

	for range n {
		err := st.LogDecision(context.Background(), &model.Decision{
			ID:        uuid.NewString(),
			Org:       "acme",
			User:      "ada",
			Channel:   ch,
			CreatedAt: at,
		})
		require.NoError(t, err)
	}
}

func TestWeeklyRecommendations_AllTriggers(t *testing.T) {
	t.Parallel()

	svc, st := newTestService(t)
	at := testNow.AddDate(0, 0, -2)
	seedDecisions(t, st, model.ChannelDirect, 40, at) // 40/120 > 0.3
	seedDecisions(t, st, model.ChannelWeb, 51, at)    // > 50 hits
	seedDecisions(t, st, model.ChannelAgent, 29, at)  // 29/120 > 0.2

	recs, err := svc.WeeklyRecommendations(context.Background(), "acme")
	require.NoError(t, err)

	assert.Equal(t, "Use smaller models for short Q&A, prefer web for freshness, and require action verbs for agents.", recs.Summary)
	require.Len(t, recs.Rules, 3)

	assert.Equal(t, "downshift_simple_qa", recs.Rules[0].Rule)
	assert.Equal(t, "use gpt-3.5 or local tiny-llama for short single-question prompts", recs.Rules[0].Action)
	assert.Equal(t, "prefer_web_for_freshness", recs.Rules[1].Rule)
	assert.Equal(t, "route 'latest/pricing/update/version' prompts to web first", recs.Rules[1].Action)
	assert.Equal(t, "agent_threshold", recs.Rules[2].Rule)
	assert.Equal(t, "require 'plan/implement/deploy' verbs before agent route", recs.Rules[2].Action)
}

func TestWeeklyRecommendations_QuietWeek(t *testing.T) {
	t.Parallel()

	svc, st := newTestService(t)
	seedDecisions(t, st, model.ChannelWeb, 2, testNow.AddDate(0, 0, -1))
	seedDecisions(t, st, model.ChannelAsk, 3, testNow.AddDate(0, 0, -1))
	// Old agent burst outside the trailing week counts for nothing.
	seedDecisions(t, st, model.ChannelAgent, 30, testNow.AddDate(0, 0, -9))

	recs, err := svc.WeeklyRecommendations(context.Background(), "acme")
	require.NoError(t, err)
	assert.NotEmpty(t, recs.Summary)
	assert.Empty(t, recs.Rules)
}

func TestWeeklyRecommendations_NoDecisions(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)

	recs, err := svc.WeeklyRecommendations(context.Background(), "acme")
	require.NoError(t, err)
	assert.NotEmpty(t, recs.Summary)
	assert.Empty(t, recs.Rules)
}

func TestWeeklyRecommendations_WeightDrift(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)
	w := weights.NewService(st, nil, weights.DefaultLearningRate)
	svc := NewService(st, w, nil, nil)
	svc.nowFunc = func() time.Time { return testNow }

	// One bad-utility sample drags the org agent cell to 0.8.
	_, err := w.ApplyFeedback(context.Background(), "acme", "", model.ChannelAgent, 0)
	require.NoError(t, err)

	recs, err := svc.WeeklyRecommendations(context.Background(), "acme")
	require.NoError(t, err)

	require.Len(t, recs.Rules, 1)
	assert.Equal(t, "adjust_weight_agent", recs.Rules[0].Rule)
	assert.Equal(t, "set weights.agent: 0.80 in the org policy file to match learned routing", recs.Rules[0].Action)
}
