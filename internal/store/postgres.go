package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/rahulraonatarajan/prompt-go-mcp/internal/db"
	"github.com/rahulraonatarajan/prompt-go-mcp/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the decision-path operations.
var preparedStatements = map[string]string{
	"insert_decision": `INSERT INTO decisions (id, org, user_id, route, confidence, degraded, payload, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
	"get_decision":    `SELECT payload FROM decisions WHERE id = $1`,
	"insert_outcome": `INSERT INTO outcomes
	 (decision_id, org, user_id, feature, source_app, prompt_hash, route, model, requested_model,
	  utility, tokens_in, tokens_out, cost_usd, latency_ms, downgraded, created_at)
	 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	 RETURNING id`,
	"list_weights": `SELECT org, user_id, route, multiplier, updated_at FROM channel_weights WHERE org = $1 AND user_id = $2 ORDER BY route`,
	"weight_feedback": `INSERT INTO channel_weights (org, user_id, route, multiplier, updated_at)
	 VALUES ($1, $2, $3, $4, $5)
	 ON CONFLICT (org, user_id, route) DO UPDATE SET
	   multiplier = LEAST(2.0, GREATEST(0.0, channel_weights.multiplier + $6 * ($7 - channel_weights.multiplier))),
	   updated_at = EXCLUDED.updated_at
	 RETURNING multiplier`,
	"add_spend": `INSERT INTO ledger_entries (org, period, cumulative_spend_usd, last_updated)
	 VALUES ($1, $2, $3, $4)
	 ON CONFLICT (org, period) DO UPDATE SET
	   cumulative_spend_usd = ledger_entries.cumulative_spend_usd + EXCLUDED.cumulative_spend_usd,
	   last_updated = EXCLUDED.last_updated
	 RETURNING cumulative_spend_usd`,
	"get_spend": `SELECT cumulative_spend_usd FROM ledger_entries WHERE org = $1 AND period = $2`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool for subsystems that need
// direct query access.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS decisions (
	id         TEXT PRIMARY KEY,
	org        TEXT NOT NULL,
	user_id    TEXT NOT NULL,
	route      TEXT NOT NULL,
	confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
	degraded   BOOLEAN NOT NULL DEFAULT false,
	payload    JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS outcomes (
	id              BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	decision_id     TEXT,
	org             TEXT NOT NULL,
	user_id         TEXT NOT NULL,
	feature         TEXT NOT NULL DEFAULT '',
	source_app      TEXT NOT NULL DEFAULT '',
	prompt_hash     TEXT NOT NULL DEFAULT '',
	route           TEXT NOT NULL,
	model           TEXT NOT NULL DEFAULT '',
	requested_model TEXT NOT NULL DEFAULT '',
	utility         DOUBLE PRECISION NOT NULL DEFAULT 0,
	tokens_in       INTEGER NOT NULL DEFAULT 0,
	tokens_out      INTEGER NOT NULL DEFAULT 0,
	cost_usd        DOUBLE PRECISION NOT NULL DEFAULT 0,
	latency_ms      INTEGER NOT NULL DEFAULT 0,
	downgraded      BOOLEAN NOT NULL DEFAULT false,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS channel_weights (
	org        TEXT NOT NULL,
	user_id    TEXT NOT NULL DEFAULT '',
	route      TEXT NOT NULL,
	multiplier DOUBLE PRECISION NOT NULL DEFAULT 1.0,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (org, user_id, route)
);

CREATE TABLE IF NOT EXISTS ledger_entries (
	org                  TEXT NOT NULL,
	period               TEXT NOT NULL,
	cumulative_spend_usd DOUBLE PRECISION NOT NULL DEFAULT 0,
	last_updated         TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (org, period)
);

CREATE INDEX IF NOT EXISTS idx_decisions_org_created ON decisions(org, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_decisions_user ON decisions(user_id);
CREATE INDEX IF NOT EXISTS idx_outcomes_org_created ON outcomes(org, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_outcomes_decision ON outcomes(decision_id);
CREATE INDEX IF NOT EXISTS idx_outcomes_org_user ON outcomes(org, user_id);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) LogDecision(ctx context.Context, d *model.Decision) error {
	payload, err := json.Marshal(d)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal decision")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO decisions (id, org, user_id, route, confidence, degraded, payload, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		d.ID, d.Org, d.User, string(d.Channel), d.Confidence, d.Degraded, payload, d.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: insert decision %s", d.ID)
}

func (s *PostgresStore) GetDecision(ctx context.Context, id string) (*model.Decision, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx,
		`SELECT payload FROM decisions WHERE id = $1`, id,
	).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "decision %s", id)
		}
		return nil, eris.Wrapf(err, "postgres: get decision %s", id)
	}

	var d model.Decision
	if err := json.Unmarshal(payload, &d); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal decision")
	}
	return &d, nil
}

func (s *PostgresStore) ListDecisions(ctx context.Context, filter DecisionFilter) ([]model.Decision, error) {
	query := `SELECT payload FROM decisions WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Org != "" {
		query += fmt.Sprintf(` AND org = $%d`, argIdx)
		args = append(args, filter.Org)
		argIdx++
	}
	if filter.User != "" {
		query += fmt.Sprintf(` AND user_id = $%d`, argIdx)
		args = append(args, filter.User)
		argIdx++
	}
	if filter.Channel != "" {
		query += fmt.Sprintf(` AND route = $%d`, argIdx)
		args = append(args, string(filter.Channel))
		argIdx++
	}
	if !filter.Since.IsZero() {
		query += fmt.Sprintf(` AND created_at >= $%d`, argIdx)
		args = append(args, filter.Since.UTC())
		argIdx++
	}
	if !filter.Until.IsZero() {
		query += fmt.Sprintf(` AND created_at < $%d`, argIdx)
		args = append(args, filter.Until.UTC())
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
		argIdx++
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list decisions")
	}
	defer rows.Close()

	var decisions []model.Decision
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, eris.Wrap(err, "postgres: scan decision")
		}
		var d model.Decision
		if err := json.Unmarshal(payload, &d); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal decision")
		}
		decisions = append(decisions, d)
	}
	return decisions, eris.Wrap(rows.Err(), "postgres: list decisions iterate")
}

func (s *PostgresStore) LogOutcome(ctx context.Context, o *model.Outcome) (*model.Outcome, error) {
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}

	err := s.pool.QueryRow(ctx,
		`INSERT INTO outcomes
	 (decision_id, org, user_id, feature, source_app, prompt_hash, route, model, requested_model,
	  utility, tokens_in, tokens_out, cost_usd, latency_ms, downgraded, created_at)
	 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	 RETURNING id`,
		o.DecisionID, o.Org, o.User, o.Feature, o.SourceApp, o.PromptHash,
		string(o.Channel), o.Model, o.RequestedModel,
		o.Utility, o.TokensIn, o.TokensOut, o.CostUSD, o.LatencyMS, o.Downgraded, o.CreatedAt,
	).Scan(&o.ID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert outcome")
	}
	return o, nil
}

var outcomeCopyColumns = []string{
	"decision_id", "org", "user_id", "feature", "source_app", "prompt_hash",
	"route", "model", "requested_model", "utility", "tokens_in", "tokens_out",
	"cost_usd", "latency_ms", "downgraded", "created_at",
}

func (s *PostgresStore) LogOutcomes(ctx context.Context, outcomes []model.Outcome) (int, error) {
	if len(outcomes) == 0 {
		return 0, nil
	}

	rows := make([][]any, 0, len(outcomes))
	for i := range outcomes {
		o := &outcomes[i]
		if o.CreatedAt.IsZero() {
			o.CreatedAt = time.Now().UTC()
		}
		rows = append(rows, []any{
			o.DecisionID, o.Org, o.User, o.Feature, o.SourceApp, o.PromptHash,
			string(o.Channel), o.Model, o.RequestedModel, o.Utility, o.TokensIn, o.TokensOut,
			o.CostUSD, o.LatencyMS, o.Downgraded, o.CreatedAt,
		})
	}

	n, err := db.CopyFrom(ctx, s.pool, "outcomes", outcomeCopyColumns, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: batch outcomes")
	}
	return int(n), nil
}

func (s *PostgresStore) ListOutcomes(ctx context.Context, filter OutcomeFilter) ([]model.Outcome, error) {
	query := `SELECT id, decision_id, org, user_id, feature, source_app, prompt_hash, route, model,
	          requested_model, utility, tokens_in, tokens_out, cost_usd, latency_ms, downgraded, created_at
	          FROM outcomes WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Org != "" {
		query += fmt.Sprintf(` AND org = $%d`, argIdx)
		args = append(args, filter.Org)
		argIdx++
	}
	if filter.User != "" {
		query += fmt.Sprintf(` AND user_id = $%d`, argIdx)
		args = append(args, filter.User)
		argIdx++
	}
	if filter.Feature != "" {
		query += fmt.Sprintf(` AND feature = $%d`, argIdx)
		args = append(args, filter.Feature)
		argIdx++
	}
	if filter.Model != "" {
		query += fmt.Sprintf(` AND model = $%d`, argIdx)
		args = append(args, filter.Model)
		argIdx++
	}
	if filter.Channel != "" {
		query += fmt.Sprintf(` AND route = $%d`, argIdx)
		args = append(args, string(filter.Channel))
		argIdx++
	}
	if !filter.Since.IsZero() {
		query += fmt.Sprintf(` AND created_at >= $%d`, argIdx)
		args = append(args, filter.Since.UTC())
		argIdx++
	}
	if !filter.Until.IsZero() {
		query += fmt.Sprintf(` AND created_at < $%d`, argIdx)
		args = append(args, filter.Until.UTC())
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
		argIdx++
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list outcomes")
	}
	defer rows.Close()

	var outcomes []model.Outcome
	for rows.Next() {
		var o model.Outcome
		var route string
		if err := rows.Scan(&o.ID, &o.DecisionID, &o.Org, &o.User, &o.Feature, &o.SourceApp,
			&o.PromptHash, &route, &o.Model, &o.RequestedModel, &o.Utility, &o.TokensIn,
			&o.TokensOut, &o.CostUSD, &o.LatencyMS, &o.Downgraded, &o.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan outcome")
		}
		o.Channel = model.Channel(route)
		outcomes = append(outcomes, o)
	}
	return outcomes, eris.Wrap(rows.Err(), "postgres: list outcomes iterate")
}

func (s *PostgresStore) ListWeights(ctx context.Context, org, user string) ([]model.ChannelWeight, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT org, user_id, route, multiplier, updated_at FROM channel_weights WHERE org = $1 AND user_id = $2 ORDER BY route`,
		org, user,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list weights")
	}
	defer rows.Close()

	var weights []model.ChannelWeight
	for rows.Next() {
		var w model.ChannelWeight
		var route string
		if err := rows.Scan(&w.Org, &w.User, &route, &w.Multiplier, &w.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan weight")
		}
		w.Channel = model.Channel(route)
		weights = append(weights, w)
	}
	return weights, eris.Wrap(rows.Err(), "postgres: list weights iterate")
}

// ApplyWeightFeedback folds one utility sample into a weight cell. The
// read-modify-write happens inside a single upsert so concurrent
// feedback never loses updates.
func (s *PostgresStore) ApplyWeightFeedback(ctx context.Context, org, user string, route model.Channel, utility, learningRate float64) (float64, error) {
	var multiplier float64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO channel_weights (org, user_id, route, multiplier, updated_at)
	 VALUES ($1, $2, $3, $4, $5)
	 ON CONFLICT (org, user_id, route) DO UPDATE SET
	   multiplier = LEAST(2.0, GREATEST(0.0, channel_weights.multiplier + $6 * ($7 - channel_weights.multiplier))),
	   updated_at = EXCLUDED.updated_at
	 RETURNING multiplier`,
		org, user, string(route), seedMultiplier(utility, learningRate), time.Now().UTC(),
		learningRate, utility,
	).Scan(&multiplier)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: weight feedback %s/%s/%s", org, user, route)
	}
	return multiplier, nil
}

func (s *PostgresStore) AddSpend(ctx context.Context, org, period string, amountUSD float64) (float64, error) {
	var cumulative float64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO ledger_entries (org, period, cumulative_spend_usd, last_updated)
	 VALUES ($1, $2, $3, $4)
	 ON CONFLICT (org, period) DO UPDATE SET
	   cumulative_spend_usd = ledger_entries.cumulative_spend_usd + EXCLUDED.cumulative_spend_usd,
	   last_updated = EXCLUDED.last_updated
	 RETURNING cumulative_spend_usd`,
		org, period, amountUSD, time.Now().UTC(),
	).Scan(&cumulative)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: add spend %s/%s", org, period)
	}
	return cumulative, nil
}

func (s *PostgresStore) GetSpend(ctx context.Context, org, period string) (float64, error) {
	var spend float64
	err := s.pool.QueryRow(ctx,
		`SELECT cumulative_spend_usd FROM ledger_entries WHERE org = $1 AND period = $2`,
		org, period,
	).Scan(&spend)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, eris.Wrapf(err, "postgres: get spend %s/%s", org, period)
	}
	return spend, nil
}

func (s *PostgresStore) ListLedger(ctx context.Context, org string, limit int) ([]model.LedgerEntry, error) {
	if limit <= 0 {
		limit = 12
	}
	rows, err := s.pool.Query(ctx,
		`SELECT org, period, cumulative_spend_usd, last_updated FROM ledger_entries
	 WHERE org = $1 ORDER BY period DESC LIMIT $2`,
		org, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list ledger")
	}
	defer rows.Close()

	var entries []model.LedgerEntry
	for rows.Next() {
		var e model.LedgerEntry
		if err := rows.Scan(&e.Org, &e.Period, &e.CumulativeSpendUSD, &e.LastUpdated); err != nil {
			return nil, eris.Wrap(err, "postgres: scan ledger entry")
		}
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "postgres: list ledger iterate")
}
