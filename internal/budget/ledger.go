// Package budget tracks cumulative spend per org and period and turns
// committed spend plus policy into enforcement directives.
package budget

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/rahulraonatarajan/prompt-go-mcp/internal/model"
	"github.com/rahulraonatarajan/prompt-go-mcp/internal/policy"
	"github.com/rahulraonatarajan/prompt-go-mcp/internal/store"
)

// statusSampleLimit caps the outcome scan behind status suggestions.
const statusSampleLimit = 10000

// Ledger answers budget checks from last-known committed spend and the
// org's policy. Commit is the sole mutator of ledger state; checks may
// read spend that is stale relative to in-flight commits.
type Ledger struct {
	store    store.Store
	policies policy.Provider

	// nowFunc allows test injection of time.
	nowFunc func() time.Time
}

// NewLedger creates a ledger over the given store and policy provider.
func NewLedger(st store.Store, policies policy.Provider) *Ledger {
	return &Ledger{store: st, policies: policies, nowFunc: time.Now}
}

// Period returns the ledger period key for t: "YYYY-MM" in UTC.
func Period(t time.Time) string {
	return t.UTC().Format("2006-01")
}

// CurrentPeriod returns the period key for the current instant.
func (l *Ledger) CurrentPeriod() string {
	return Period(l.nowFunc())
}

// CheckAndReserve derives the budget state for org and returns the
// directive its policy prescribes for the requested model. Never an
// error: a failed spend read degrades to an observe-equivalent allow.
func (l *Ledger) CheckAndReserve(ctx context.Context, org, requestedModel string, estimatedCostUSD float64) model.Directive {
	pol := l.policyFor(org)
	period := Period(l.nowFunc())

	spend, err := l.store.GetSpend(ctx, org, period)
	if err != nil {
		zap.L().Warn("budget: spend read failed, allowing without enforcement",
			zap.String("org", org),
			zap.Error(err))
		return model.Directive{
			Action:   model.ActionAllow,
			State:    model.StateUnderThreshold,
			Mode:     pol.Mode,
			Degraded: true,
		}
	}

	state := stateFor(spend, pol)
	d := directiveFor(pol, state, requestedModel)
	zap.L().Debug("budget: check",
		zap.String("org", org),
		zap.String("period", period),
		zap.Float64("spend_usd", spend),
		zap.Float64("estimated_usd", estimatedCostUSD),
		zap.String("state", string(state)),
		zap.String("action", string(d.Action)))
	return d
}

// Commit adds actualCost to the current period's entry, creating it at
// zero first when absent, and returns the new cumulative spend.
// Negative amounts are rejected.
func (l *Ledger) Commit(ctx context.Context, org string, costUSD float64) (float64, error) {
	if costUSD < 0 {
		return 0, eris.Errorf("budget: negative commit %.6f for org %s", costUSD, org)
	}
	total, err := l.store.AddSpend(ctx, org, Period(l.nowFunc()), costUSD)
	if err != nil {
		return 0, eris.Wrapf(err, "budget: commit spend for org %s", org)
	}
	return total, nil
}

// Status reports the full budget picture for org's current period:
// spend, projection, derived state, the alert ladder, and cost
// suggestions drawn from this month's recorded outcomes.
func (l *Ledger) Status(ctx context.Context, org string) (model.BudgetStatus, error) {
	now := l.nowFunc().UTC()
	period := Period(now)
	pol := l.policyFor(org)

	spend, err := l.store.GetSpend(ctx, org, period)
	if err != nil {
		return model.BudgetStatus{}, eris.Wrapf(err, "budget: read spend for org %s", org)
	}

	limit := pol.MonthlyLimitUSD
	percentage := 0.0
	if limit > 0 {
		percentage = spend / limit * 100
	}

	daysElapsed := now.Day()
	totalDays := daysInMonth(now)
	projected := spend / float64(daysElapsed) * float64(totalDays)

	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	rows, err := l.store.ListOutcomes(ctx, store.OutcomeFilter{
		Org:   org,
		Since: monthStart,
		Until: now,
		Limit: statusSampleLimit,
	})
	if err != nil {
		zap.L().Warn("budget: outcome scan for suggestions failed",
			zap.String("org", org),
			zap.Error(err))
		rows = nil
	}

	return model.BudgetStatus{
		Org:               org,
		Period:            period,
		CurrentSpendUSD:   round2(spend),
		BudgetLimitUSD:    limit,
		PercentageUsed:    round1(percentage),
		DaysRemaining:     totalDays - daysElapsed,
		ProjectedSpendUSD: round2(projected),
		Mode:              pol.Mode,
		State:             stateFor(spend, pol),
		Alerts:            alertLadder(spend, limit, projected, percentage, now.Day()),
		Suggestions:       smartSuggestions(rows, pol, now),
	}, nil
}

// History returns the most recent ledger entries for org, newest first.
func (l *Ledger) History(ctx context.Context, org string, limit int) ([]model.LedgerEntry, error) {
	entries, err := l.store.ListLedger(ctx, org, limit)
	if err != nil {
		return nil, eris.Wrapf(err, "budget: list ledger for org %s", org)
	}
	return entries, nil
}

// policyFor returns the org's policy, or the zero-limit observe default
// when no policy is configured.
func (l *Ledger) policyFor(org string) model.BudgetPolicy {
	if l.policies != nil {
		if pol, ok := l.policies.Get(org); ok {
			return pol
		}
	}
	zap.L().Warn("budget: no policy for org, observing with zero limit", zap.String("org", org))
	return model.BudgetPolicy{
		Org:            policy.NormalizeOrg(org),
		Mode:           model.ModeObserve,
		AlertThreshold: policy.DefaultAlertThreshold,
	}
}

// stateFor derives the budget state from cumulative spend and policy.
// spend == limit counts as over; a non-positive limit disables
// awareness entirely.
func stateFor(spendUSD float64, pol model.BudgetPolicy) model.BudgetState {
	limit := pol.MonthlyLimitUSD
	if limit <= 0 {
		return model.StateUnderThreshold
	}
	if spendUSD >= limit {
		return model.StateOverLimit
	}
	threshold := pol.AlertThreshold
	if threshold <= 0 || threshold > 1 {
		threshold = policy.DefaultAlertThreshold
	}
	if spendUSD >= threshold*limit {
		return model.StateNearThreshold
	}
	return model.StateUnderThreshold
}

// directiveFor maps (mode, state) to an action. Only OVER_LIMIT ever
// restricts: observe always allows, soft downgrades through the
// fallback map (single hop, allow when unmapped), hard blocks.
func directiveFor(pol model.BudgetPolicy, state model.BudgetState, requestedModel string) model.Directive {
	d := model.Directive{
		Action: model.ActionAllow,
		State:  state,
		Mode:   pol.Mode,
		Alert:  state != model.StateUnderThreshold,
	}
	if state != model.StateOverLimit {
		return d
	}

	switch pol.Mode {
	case model.ModeSoft:
		if target, ok := pol.Fallbacks[requestedModel]; ok && target != "" && target != requestedModel {
			d.Action = model.ActionDowngrade
			d.TargetModel = target
			d.Reason = fmt.Sprintf("Budget enforcement: downgraded %s → %s", requestedModel, target)
		}
	case model.ModeHard:
		d.Action = model.ActionBlock
		d.Reason = "Hard budget limit reached: request blocked until the period resets"
	}
	return d
}

// daysInMonth returns the number of days in t's month. Day zero of the
// next month normalizes to the last day of this one.
func daysInMonth(t time.Time) int {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

func round1(v float64) float64 { return math.Round(v*10) / 10 }
