package model

import "time"

// Rationale tags name the dominant matched signals, strongest first.
const (
	TagFreshness       = "freshness"
	TagMultiStep       = "multi_step"
	TagUnderspecified  = "underspecified"
	TagShortQuestion   = "short_question"
	TagNoStrongSignals = "no_strong_signals"
)

// Decision is an issued routing decision. Everything here is derived from
// features, weights, and policy; the prompt itself is long gone by the time
// a Decision exists.
type Decision struct {
	ID             string              `json:"id"`
	Org            string              `json:"org"`
	User           string              `json:"user"`
	Features       Features            `json:"features"`
	Channel        Channel             `json:"channel"`
	Ranking        []ScoreItem         `json:"ranking"`
	RuleScores     map[Channel]float64 `json:"rule_scores"`
	Weights        map[Channel]float64 `json:"weights"`
	Confidence     float64             `json:"confidence"`
	Rationale      []string            `json:"rationale"`
	Reasons        []string            `json:"reasons"`
	RequestedModel string              `json:"requested_model"`
	ServedModel    string              `json:"served_model"`
	Enforcement    Resolution          `json:"enforcement"`
	EstimatedCost  float64             `json:"estimated_cost_usd"`
	Degraded       bool                `json:"degraded,omitempty"`
	CreatedAt      time.Time           `json:"created_at"`
}

// Resolution is the enforcement outcome applied to a decision: the channel
// and model actually permitted, and whether that differs from the request.
type Resolution struct {
	Channel       Channel `json:"channel"`
	Model         string  `json:"model"`
	WasDowngraded bool    `json:"was_downgraded"`
	Blocked       bool    `json:"blocked"`
	Reason        string  `json:"reason,omitempty"`
}

// Outcome is a recorded usage sample tied to an issued decision: what was
// actually run, what it cost, and how useful the result was.
// RequestedModel is copied from the decision when one is linked, so savings
// can be computed from outcomes alone.
type Outcome struct {
	ID             int64     `json:"id,omitempty"`
	DecisionID     string    `json:"decision_id"`
	Org            string    `json:"org"`
	User           string    `json:"user"`
	Feature        string    `json:"feature"`
	SourceApp      string    `json:"source_app"`
	PromptHash     string    `json:"prompt_hash"`
	Channel        Channel   `json:"route"`
	Model          string    `json:"model"`
	RequestedModel string    `json:"requested_model,omitempty"`
	Utility        float64   `json:"utility"`
	TokensIn       int       `json:"tokens_in"`
	TokensOut      int       `json:"tokens_out"`
	CostUSD        float64   `json:"cost_usd"`
	LatencyMS      int       `json:"latency_ms"`
	Downgraded     bool      `json:"downgraded"`
	CreatedAt      time.Time `json:"created_at"`
}

// ChannelWeight is one learned weight cell. User is empty for org-level
// cells. Multiplier stays in [0, 2]; absent cells read as 1.0.
type ChannelWeight struct {
	Org        string    `json:"org"`
	User       string    `json:"user"`
	Channel    Channel   `json:"channel"`
	Multiplier float64   `json:"multiplier"`
	UpdatedAt  time.Time `json:"updated_at"`
}
