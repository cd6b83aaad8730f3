package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/rahulraonatarajan/prompt-go-mcp/internal/model"
)

// ErrNotFound is wrapped by lookups that matched no row. Callers use it
// to tell a bad identifier apart from a store outage.
var ErrNotFound = eris.New("store: not found")

// DecisionFilter specifies criteria for listing decisions.
type DecisionFilter struct {
	Org     string        `json:"org,omitempty"`
	User    string        `json:"user,omitempty"`
	Channel model.Channel `json:"route,omitempty"`
	Since   time.Time     `json:"since,omitempty"`
	Until   time.Time     `json:"until,omitempty"`
	Limit   int           `json:"limit,omitempty"`
	Offset  int           `json:"offset,omitempty"`
}

// OutcomeFilter specifies criteria for listing outcomes.
type OutcomeFilter struct {
	Org     string        `json:"org,omitempty"`
	User    string        `json:"user,omitempty"`
	Feature string        `json:"feature,omitempty"`
	Model   string        `json:"model,omitempty"`
	Channel model.Channel `json:"route,omitempty"`
	Since   time.Time     `json:"since,omitempty"`
	Until   time.Time     `json:"until,omitempty"`
	Limit   int           `json:"limit,omitempty"`
	Offset  int           `json:"offset,omitempty"`
}

// Store defines the persistence interface for decisions, outcomes,
// learned channel weights, and the budget ledger.
type Store interface {
	// Decisions
	LogDecision(ctx context.Context, d *model.Decision) error
	GetDecision(ctx context.Context, id string) (*model.Decision, error)
	ListDecisions(ctx context.Context, filter DecisionFilter) ([]model.Decision, error)

	// Outcomes
	LogOutcome(ctx context.Context, o *model.Outcome) (*model.Outcome, error)
	LogOutcomes(ctx context.Context, outcomes []model.Outcome) (int, error)
	ListOutcomes(ctx context.Context, filter OutcomeFilter) ([]model.Outcome, error)

	// Channel weights. User is "" for org-level cells.
	// ApplyWeightFeedback folds one utility sample into the (org, user,
	// route) cell in a single statement and returns the new multiplier.
	ListWeights(ctx context.Context, org, user string) ([]model.ChannelWeight, error)
	ApplyWeightFeedback(ctx context.Context, org, user string, route model.Channel, utility, learningRate float64) (float64, error)

	// Budget ledger. AddSpend atomically adds to the (org, period) cell
	// and returns the new cumulative spend. GetSpend returns 0 for a
	// period with no entry.
	AddSpend(ctx context.Context, org, period string, amountUSD float64) (float64, error)
	GetSpend(ctx context.Context, org, period string) (float64, error)
	ListLedger(ctx context.Context, org string, limit int) ([]model.LedgerEntry, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// seedMultiplier is the value a fresh weight cell takes when feedback
// arrives before any row exists: one EMA step from the 1.0 default.
func seedMultiplier(utility, learningRate float64) float64 {
	m := 1.0 + learningRate*(utility-1.0)
	if m < 0 {
		return 0
	}
	if m > 2 {
		return 2
	}
	return m
}
