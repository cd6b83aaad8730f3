package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rahulraonatarajan/prompt-go-mcp/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgresStore_GetDecision_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT payload FROM decisions WHERE id = \$1`).
		WithArgs("nonexistent").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetDecision(context.Background(), "nonexistent")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetDecision_Found(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	payload := []byte(`{"id":"dec-1","org":"acme","user":"ada","channel":"web","confidence":0.35}`)
	mock.ExpectQuery(`SELECT payload FROM decisions WHERE id = \$1`).
		WithArgs("dec-1").
		WillReturnRows(pgxmock.NewRows([]string{"payload"}).AddRow(payload))

	d, err := s.GetDecision(context.Background(), "dec-1")
	require.NoError(t, err)
	assert.Equal(t, "acme", d.Org)
	assert.Equal(t, model.ChannelWeb, d.Channel)
	assert.InDelta(t, 0.35, d.Confidence, 0.0001)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_LogDecision(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO decisions`).
		WithArgs("dec-1", "acme", "ada", "direct", 0.29, false, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	d := &model.Decision{
		ID:         "dec-1",
		Org:        "acme",
		User:       "ada",
		Channel:    model.ChannelDirect,
		Confidence: 0.29,
		CreatedAt:  time.Now().UTC(),
	}
	require.NoError(t, s.LogDecision(context.Background(), d))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_LogOutcome_ReturnsID(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`INSERT INTO outcomes`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(7)))

	o, err := s.LogOutcome(context.Background(), &model.Outcome{
		Org:     "acme",
		User:    "ada",
		Channel: model.ChannelWeb,
		Model:   "openai/gpt-4o",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), o.ID)
	assert.False(t, o.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_LogOutcomes_UsesCopy(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectCopyFrom(pgx.Identifier{"outcomes"}, outcomeCopyColumns).WillReturnResult(2)

	n, err := s.LogOutcomes(context.Background(), []model.Outcome{
		{Org: "acme", User: "ada", Channel: model.ChannelWeb},
		{Org: "acme", User: "bob", Channel: model.ChannelAgent},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ApplyWeightFeedback(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	// Fresh-cell seed for utility 0 at lr 0.2 is 0.8.
	mock.ExpectQuery(`ON CONFLICT \(org, user_id, route\) DO UPDATE`).
		WithArgs("acme", "ada", "web", seedMultiplier(0, 0.2), pgxmock.AnyArg(), 0.2, 0.0).
		WillReturnRows(pgxmock.NewRows([]string{"multiplier"}).AddRow(0.8))

	m, err := s.ApplyWeightFeedback(context.Background(), "acme", "ada", model.ChannelWeb, 0, 0.2)
	require.NoError(t, err)
	assert.InDelta(t, 0.8, m, 0.0001)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_AddSpend(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`INSERT INTO ledger_entries`).
		WithArgs("acme", "2026-08", 12.5, pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"cumulative_spend_usd"}).AddRow(62.5))

	total, err := s.AddSpend(context.Background(), "acme", "2026-08", 12.5)
	require.NoError(t, err)
	assert.InDelta(t, 62.5, total, 0.0001)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetSpend_MissingIsZero(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT cumulative_spend_usd FROM ledger_entries`).
		WithArgs("acme", "2026-01").
		WillReturnError(pgx.ErrNoRows)

	spend, err := s.GetSpend(context.Background(), "acme", "2026-01")
	require.NoError(t, err)
	assert.Zero(t, spend)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListWeights(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	now := time.Now().UTC()
	mock.ExpectQuery(`SELECT org, user_id, route, multiplier, updated_at FROM channel_weights`).
		WithArgs("acme", "").
		WillReturnRows(pgxmock.NewRows([]string{"org", "user_id", "route", "multiplier", "updated_at"}).
			AddRow("acme", "", "agent", 0.64, now).
			AddRow("acme", "", "web", 1.2, now))

	weights, err := s.ListWeights(context.Background(), "acme", "")
	require.NoError(t, err)
	require.Len(t, weights, 2)
	assert.Equal(t, model.ChannelAgent, weights[0].Channel)
	assert.InDelta(t, 0.64, weights[0].Multiplier, 0.0001)
	assert.Equal(t, model.ChannelWeb, weights[1].Channel)
	assert.NoError(t, mock.ExpectationsWereMet())
}
