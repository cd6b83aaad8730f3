package model

import "time"

// Mode is the budget enforcement mode for an organization.
type Mode string

const (
	ModeObserve Mode = "observe"
	ModeSoft    Mode = "soft"
	ModeHard    Mode = "hard"
)

// Valid reports whether m is a recognized enforcement mode.
func (m Mode) Valid() bool {
	switch m {
	case ModeObserve, ModeSoft, ModeHard:
		return true
	}
	return false
}

// BudgetState is derived from cumulative spend and the policy limit on
// every check. It is never stored.
type BudgetState string

const (
	StateUnderThreshold BudgetState = "under_threshold"
	StateNearThreshold  BudgetState = "near_threshold"
	StateOverLimit      BudgetState = "over_limit"
)

// BudgetPolicy is per-org budget configuration. Policies are read-mostly:
// the policy provider replaces whole snapshots atomically, and nothing in
// the decision path mutates one.
type BudgetPolicy struct {
	Org              string              `yaml:"org" json:"org"`
	MonthlyLimitUSD  float64             `yaml:"monthly_limit_usd" json:"monthly_limit_usd"`
	AlertThreshold   float64             `yaml:"alert_threshold" json:"alert_threshold"`
	Mode             Mode                `yaml:"mode" json:"mode"`
	Fallbacks        map[string]string   `yaml:"budget_fallbacks" json:"budget_fallbacks,omitempty"`
	Weights          map[Channel]float64 `yaml:"weights" json:"weights,omitempty"`
	FreshnessDomains []string            `yaml:"freshness_domains" json:"freshness_domains,omitempty"`
}

// DirectiveAction is what the ledger tells the resolver to do.
type DirectiveAction string

const (
	ActionAllow     DirectiveAction = "allow"
	ActionDowngrade DirectiveAction = "downgrade"
	ActionBlock     DirectiveAction = "block"
)

// Directive is the budget ledger's verdict for one prospective spend.
// A block is data, not an error: callers surface it as a refusal.
type Directive struct {
	Action      DirectiveAction `json:"action"`
	TargetModel string          `json:"target_model,omitempty"`
	State       BudgetState     `json:"state"`
	Mode        Mode            `json:"mode"`
	Alert       bool            `json:"alert,omitempty"`
	Degraded    bool            `json:"degraded,omitempty"`
	Reason      string          `json:"reason,omitempty"`
}

// LedgerEntry is the single mutable budget record for an org and period.
// CumulativeSpendUSD only ever grows within a period; Commit is the sole
// writer.
type LedgerEntry struct {
	Org                string    `json:"org"`
	Period             string    `json:"period"`
	CumulativeSpendUSD float64   `json:"cumulative_spend_usd"`
	LastUpdated        time.Time `json:"last_updated"`
}

// BudgetAlert is one entry in the budget status alert ladder.
type BudgetAlert struct {
	Level          string `json:"level"` // info, warning, critical
	Message        string `json:"message"`
	Suggestion     string `json:"suggestion,omitempty"`
	ActionRequired bool   `json:"action_required"`
}

// BudgetStatus is the full budget picture for an org's current period.
type BudgetStatus struct {
	Org               string        `json:"org"`
	Period            string        `json:"period"`
	CurrentSpendUSD   float64       `json:"current_spend"`
	BudgetLimitUSD    float64       `json:"budget_limit"`
	PercentageUsed    float64       `json:"percentage_used"`
	DaysRemaining     int           `json:"days_remaining"`
	ProjectedSpendUSD float64       `json:"projected_spend"`
	Mode              Mode          `json:"mode"`
	State             BudgetState   `json:"state"`
	Alerts            []BudgetAlert `json:"alerts"`
	Suggestions       []string      `json:"suggestions"`
}

// RuleRecommendation is one weekly recommendation for the org's rule file.
type RuleRecommendation struct {
	Rule   string `json:"rule"`
	Action string `json:"action"`
}

// Recommendations is the weekly recommendation set for an org.
type Recommendations struct {
	Summary string               `json:"summary"`
	Rules   []RuleRecommendation `json:"rules"`
}

// UsageSummaryItem is one aggregated row of a usage summary.
type UsageSummaryItem struct {
	Key          string  `json:"key"`
	Requests     int     `json:"requests"`
	TokensIn     int     `json:"tokens_in"`
	TokensOut    int     `json:"tokens_out"`
	CostUSD      float64 `json:"cost_usd"`
	LatencyMSP95 int     `json:"latency_ms_p95"`
}
