package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/rahulraonatarajan/prompt-go-mcp/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS decisions (
	id         TEXT PRIMARY KEY,
	org        TEXT NOT NULL,
	user_id    TEXT NOT NULL,
	route      TEXT NOT NULL,
	confidence REAL NOT NULL DEFAULT 0,
	degraded   INTEGER NOT NULL DEFAULT 0,
	payload    TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS outcomes (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	decision_id     TEXT,
	org             TEXT NOT NULL,
	user_id         TEXT NOT NULL,
	feature         TEXT NOT NULL DEFAULT '',
	source_app      TEXT NOT NULL DEFAULT '',
	prompt_hash     TEXT NOT NULL DEFAULT '',
	route           TEXT NOT NULL,
	model           TEXT NOT NULL DEFAULT '',
	requested_model TEXT NOT NULL DEFAULT '',
	utility         REAL NOT NULL DEFAULT 0,
	tokens_in       INTEGER NOT NULL DEFAULT 0,
	tokens_out      INTEGER NOT NULL DEFAULT 0,
	cost_usd        REAL NOT NULL DEFAULT 0,
	latency_ms      INTEGER NOT NULL DEFAULT 0,
	downgraded      INTEGER NOT NULL DEFAULT 0,
	created_at      DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS channel_weights (
	org        TEXT NOT NULL,
	user_id    TEXT NOT NULL DEFAULT '',
	route      TEXT NOT NULL,
	multiplier REAL NOT NULL DEFAULT 1.0,
	updated_at DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (org, user_id, route)
);

CREATE TABLE IF NOT EXISTS ledger_entries (
	org                  TEXT NOT NULL,
	period               TEXT NOT NULL,
	cumulative_spend_usd REAL NOT NULL DEFAULT 0,
	last_updated         DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (org, period)
);

CREATE INDEX IF NOT EXISTS idx_decisions_org_created ON decisions(org, created_at);
CREATE INDEX IF NOT EXISTS idx_decisions_user ON decisions(user_id);
CREATE INDEX IF NOT EXISTS idx_outcomes_org_created ON outcomes(org, created_at);
CREATE INDEX IF NOT EXISTS idx_outcomes_decision ON outcomes(decision_id);
CREATE INDEX IF NOT EXISTS idx_outcomes_org_user ON outcomes(org, user_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) LogDecision(ctx context.Context, d *model.Decision) error {
	payload, err := json.Marshal(d)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal decision")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO decisions (id, org, user_id, route, confidence, degraded, payload, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.Org, d.User, string(d.Channel), d.Confidence, d.Degraded, string(payload), d.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: insert decision %s", d.ID)
}

func (s *SQLiteStore) GetDecision(ctx context.Context, id string) (*model.Decision, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT payload FROM decisions WHERE id = ?`, id,
	)
	return scanDecision(row, id)
}

func (s *SQLiteStore) ListDecisions(ctx context.Context, filter DecisionFilter) ([]model.Decision, error) {
	query := `SELECT payload FROM decisions WHERE 1=1`
	var args []any

	if filter.Org != "" {
		query += ` AND org = ?`
		args = append(args, filter.Org)
	}
	if filter.User != "" {
		query += ` AND user_id = ?`
		args = append(args, filter.User)
	}
	if filter.Channel != "" {
		query += ` AND route = ?`
		args = append(args, string(filter.Channel))
	}
	if !filter.Since.IsZero() {
		query += ` AND created_at >= ?`
		args = append(args, filter.Since.UTC())
	}
	if !filter.Until.IsZero() {
		query += ` AND created_at < ?`
		args = append(args, filter.Until.UTC())
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list decisions")
	}
	defer rows.Close()

	var decisions []model.Decision
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan decision")
		}
		var d model.Decision
		if err := json.Unmarshal([]byte(payload), &d); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal decision")
		}
		decisions = append(decisions, d)
	}
	return decisions, eris.Wrap(rows.Err(), "sqlite: list decisions iterate")
}

func (s *SQLiteStore) LogOutcome(ctx context.Context, o *model.Outcome) (*model.Outcome, error) {
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO outcomes
		 (decision_id, org, user_id, feature, source_app, prompt_hash, route, model, requested_model,
		  utility, tokens_in, tokens_out, cost_usd, latency_ms, downgraded, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.DecisionID, o.Org, o.User, o.Feature, o.SourceApp, o.PromptHash,
		string(o.Channel), o.Model, o.RequestedModel,
		o.Utility, o.TokensIn, o.TokensOut, o.CostUSD, o.LatencyMS, o.Downgraded, o.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert outcome")
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: outcome id")
	}
	o.ID = id
	return o, nil
}

func (s *SQLiteStore) LogOutcomes(ctx context.Context, outcomes []model.Outcome) (int, error) {
	if len(outcomes) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin batch")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO outcomes
		 (decision_id, org, user_id, feature, source_app, prompt_hash, route, model, requested_model,
		  utility, tokens_in, tokens_out, cost_usd, latency_ms, downgraded, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare batch")
	}
	defer stmt.Close()

	for i := range outcomes {
		o := &outcomes[i]
		if o.CreatedAt.IsZero() {
			o.CreatedAt = time.Now().UTC()
		}
		if _, err := stmt.ExecContext(ctx,
			o.DecisionID, o.Org, o.User, o.Feature, o.SourceApp, o.PromptHash,
			string(o.Channel), o.Model, o.RequestedModel,
			o.Utility, o.TokensIn, o.TokensOut, o.CostUSD, o.LatencyMS, o.Downgraded, o.CreatedAt,
		); err != nil {
			return 0, eris.Wrapf(err, "sqlite: batch insert outcome %d", i)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit batch")
	}
	return len(outcomes), nil
}

func (s *SQLiteStore) ListOutcomes(ctx context.Context, filter OutcomeFilter) ([]model.Outcome, error) {
	query := `SELECT id, decision_id, org, user_id, feature, source_app, prompt_hash, route, model,
	          requested_model, utility, tokens_in, tokens_out, cost_usd, latency_ms, downgraded, created_at
	          FROM outcomes WHERE 1=1`
	var args []any

	if filter.Org != "" {
		query += ` AND org = ?`
		args = append(args, filter.Org)
	}
	if filter.User != "" {
		query += ` AND user_id = ?`
		args = append(args, filter.User)
	}
	if filter.Feature != "" {
		query += ` AND feature = ?`
		args = append(args, filter.Feature)
	}
	if filter.Model != "" {
		query += ` AND model = ?`
		args = append(args, filter.Model)
	}
	if filter.Channel != "" {
		query += ` AND route = ?`
		args = append(args, string(filter.Channel))
	}
	if !filter.Since.IsZero() {
		query += ` AND created_at >= ?`
		args = append(args, filter.Since.UTC())
	}
	if !filter.Until.IsZero() {
		query += ` AND created_at < ?`
		args = append(args, filter.Until.UTC())
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list outcomes")
	}
	defer rows.Close()

	var outcomes []model.Outcome
	for rows.Next() {
		o, err := scanOutcome(rows)
		if err != nil {
			return nil, err
		}
		outcomes = append(outcomes, *o)
	}
	return outcomes, eris.Wrap(rows.Err(), "sqlite: list outcomes iterate")
}

func (s *SQLiteStore) ListWeights(ctx context.Context, org, user string) ([]model.ChannelWeight, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT org, user_id, route, multiplier, updated_at FROM channel_weights
		 WHERE org = ? AND user_id = ? ORDER BY route`,
		org, user,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list weights")
	}
	defer rows.Close()

	var weights []model.ChannelWeight
	for rows.Next() {
		var w model.ChannelWeight
		var route string
		if err := rows.Scan(&w.Org, &w.User, &route, &w.Multiplier, &w.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan weight")
		}
		w.Channel = model.Channel(route)
		weights = append(weights, w)
	}
	return weights, eris.Wrap(rows.Err(), "sqlite: list weights iterate")
}

// ApplyWeightFeedback folds one utility sample into a weight cell. The
// read-modify-write happens inside a single upsert so concurrent
// feedback never loses updates.
func (s *SQLiteStore) ApplyWeightFeedback(ctx context.Context, org, user string, route model.Channel, utility, learningRate float64) (float64, error) {
	var multiplier float64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO channel_weights (org, user_id, route, multiplier, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (org, user_id, route) DO UPDATE SET
		   multiplier = MIN(2.0, MAX(0.0, multiplier + ? * (? - multiplier))),
		   updated_at = excluded.updated_at
		 RETURNING multiplier`,
		org, user, string(route), seedMultiplier(utility, learningRate), time.Now().UTC(),
		learningRate, utility,
	).Scan(&multiplier)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: weight feedback %s/%s/%s", org, user, route)
	}
	return multiplier, nil
}

func (s *SQLiteStore) AddSpend(ctx context.Context, org, period string, amountUSD float64) (float64, error) {
	var cumulative float64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO ledger_entries (org, period, cumulative_spend_usd, last_updated)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (org, period) DO UPDATE SET
		   cumulative_spend_usd = cumulative_spend_usd + excluded.cumulative_spend_usd,
		   last_updated = excluded.last_updated
		 RETURNING cumulative_spend_usd`,
		org, period, amountUSD, time.Now().UTC(),
	).Scan(&cumulative)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: add spend %s/%s", org, period)
	}
	return cumulative, nil
}

func (s *SQLiteStore) GetSpend(ctx context.Context, org, period string) (float64, error) {
	var spend float64
	err := s.db.QueryRowContext(ctx,
		`SELECT cumulative_spend_usd FROM ledger_entries WHERE org = ? AND period = ?`,
		org, period,
	).Scan(&spend)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: get spend %s/%s", org, period)
	}
	return spend, nil
}

func (s *SQLiteStore) ListLedger(ctx context.Context, org string, limit int) ([]model.LedgerEntry, error) {
	if limit <= 0 {
		limit = 12
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT org, period, cumulative_spend_usd, last_updated FROM ledger_entries
		 WHERE org = ? ORDER BY period DESC LIMIT ?`,
		org, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list ledger")
	}
	defer rows.Close()

	var entries []model.LedgerEntry
	for rows.Next() {
		var e model.LedgerEntry
		if err := rows.Scan(&e.Org, &e.Period, &e.CumulativeSpendUSD, &e.LastUpdated); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan ledger entry")
		}
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "sqlite: list ledger iterate")
}

// helpers

type scannable interface {
	Scan(dest ...any) error
}

func scanDecision(row scannable, id string) (*model.Decision, error) {
	var payload string
	err := row.Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, eris.Wrapf(ErrNotFound, "decision %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get decision %s", id)
	}

	var d model.Decision
	if err := json.Unmarshal([]byte(payload), &d); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal decision")
	}
	return &d, nil
}

func scanOutcome(row scannable) (*model.Outcome, error) {
	var o model.Outcome
	var route string
	err := row.Scan(&o.ID, &o.DecisionID, &o.Org, &o.User, &o.Feature, &o.SourceApp, &o.PromptHash,
		&route, &o.Model, &o.RequestedModel, &o.Utility, &o.TokensIn, &o.TokensOut,
		&o.CostUSD, &o.LatencyMS, &o.Downgraded, &o.CreatedAt)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan outcome")
	}
	o.Channel = model.Channel(route)
	return &o, nil
}
