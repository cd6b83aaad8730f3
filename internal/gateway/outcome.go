package gateway

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/rahulraonatarajan/prompt-go-mcp/internal/model"
)

// Qualitative outcome labels accepted at the transport edges.
const (
	OutcomeGood    = "good"
	OutcomeNeutral = "neutral"
	OutcomeBad     = "bad"
)

// UtilityFromOutcome maps a qualitative outcome label to a utility
// sample: good 1.0, neutral 0.5, bad 0.0.
func UtilityFromOutcome(outcome string) (float64, error) {
	switch strings.ToLower(strings.TrimSpace(outcome)) {
	case OutcomeGood:
		return 1.0, nil
	case OutcomeNeutral:
		return 0.5, nil
	case OutcomeBad:
		return 0.0, nil
	}
	return 0, eris.Wrapf(ErrInvalidRequest, "unknown outcome %q", outcome)
}

// OutcomeRequest records what actually happened for an issued decision.
type OutcomeRequest struct {
	DecisionID string        `json:"decision_id"`
	Org        string        `json:"org"`
	User       string        `json:"user,omitempty"`
	Channel    model.Channel `json:"route"`
	Utility    float64       `json:"utility"`
	Model      string        `json:"model,omitempty"`
	Feature    string        `json:"feature,omitempty"`
	SourceApp  string        `json:"source_app,omitempty"`
	TokensIn   int           `json:"tokens_in,omitempty"`
	TokensOut  int           `json:"tokens_out,omitempty"`
	CostUSD    float64       `json:"cost_usd"`
	LatencyMS  int           `json:"latency_ms,omitempty"`
}

// OutcomeResponse reports the committed spend and the weight update.
type OutcomeResponse struct {
	OutcomeID     int64   `json:"outcome_id"`
	CostUSD       float64 `json:"cost_usd"`
	SpendUSD      float64 `json:"cumulative_spend_usd"`
	Multiplier    float64 `json:"multiplier,omitempty"`
	WeightApplied bool    `json:"weight_applied"`
}

// RecordOutcome commits the spend, inserts the outcome row, then folds
// the utility sample into the channel weights. The decision id must
// name an issued decision; feedback never applies without provenance.
// A failed weight update degrades learning, not the request; a failed
// spend commit or outcome insert is returned as a retryable error.
func (g *Gateway) RecordOutcome(ctx context.Context, req OutcomeRequest) (*OutcomeResponse, error) {
	org := strings.TrimSpace(req.Org)
	if org == "" {
		return nil, eris.Wrap(ErrInvalidRequest, "org is required")
	}
	if !req.Channel.Valid() {
		return nil, eris.Wrapf(ErrInvalidRequest, "unknown route %q", req.Channel)
	}
	if req.Utility < 0 || req.Utility > 1 {
		return nil, eris.Wrapf(ErrInvalidRequest, "utility %.3f outside [0, 1]", req.Utility)
	}
	if req.DecisionID == "" {
		return nil, eris.Wrap(ErrInvalidRequest, "decision id is required")
	}

	decision, err := g.store.GetDecision(ctx, req.DecisionID)
	if err != nil {
		return nil, eris.Wrapf(err, "gateway: decision %s", req.DecisionID)
	}
	if decision.Org != org {
		return nil, eris.Wrapf(ErrInvalidRequest, "decision %s belongs to a different org", req.DecisionID)
	}

	servedModel := req.Model
	if servedModel == "" {
		servedModel = decision.ServedModel
	}
	user := req.User
	if user == "" {
		user = decision.User
	}

	costUSD := req.CostUSD
	if costUSD == 0 && req.TokensIn+req.TokensOut > 0 && servedModel != "" {
		costUSD = g.calc.Estimate(servedModel, req.TokensIn, req.TokensOut)
	}

	spend, err := g.ledger.Commit(ctx, org, costUSD)
	if err != nil {
		return nil, err
	}

	outcome := &model.Outcome{
		DecisionID:     decision.ID,
		Org:            org,
		User:           user,
		Feature:        req.Feature,
		SourceApp:      req.SourceApp,
		PromptHash:     decision.Features.PromptHash,
		Channel:        req.Channel,
		Model:          servedModel,
		RequestedModel: decision.RequestedModel,
		Utility:        req.Utility,
		TokensIn:       req.TokensIn,
		TokensOut:      req.TokensOut,
		CostUSD:        costUSD,
		LatencyMS:      req.LatencyMS,
		Downgraded:     decision.Enforcement.WasDowngraded,
		CreatedAt:      g.nowFunc().UTC(),
	}
	logged, err := g.store.LogOutcome(ctx, outcome)
	if err != nil {
		return nil, eris.Wrapf(err, "gateway: log outcome for decision %s", decision.ID)
	}

	resp := &OutcomeResponse{
		OutcomeID: logged.ID,
		CostUSD:   costUSD,
		SpendUSD:  spend,
	}
	multiplier, err := g.weights.ApplyFeedback(ctx, org, user, req.Channel, req.Utility)
	if err != nil {
		zap.L().Warn("gateway: weight feedback dropped",
			zap.String("org", org),
			zap.String("decision_id", decision.ID),
			zap.String("route", string(req.Channel)),
			zap.Error(err),
		)
		return resp, nil
	}
	resp.Multiplier = multiplier
	resp.WeightApplied = true

	zap.L().Debug("gateway: outcome recorded",
		zap.String("org", org),
		zap.String("decision_id", decision.ID),
		zap.Float64("cost_usd", costUSD),
		zap.Float64("spend_usd", spend),
		zap.Float64("multiplier", multiplier),
	)
	return resp, nil
}

// ImportOutcomes bulk-inserts historical usage rows for an org, for
// backfilling from an exported usage log. Rows are stamped with the org
// before insert; no spend is committed and no weight feedback is
// applied, since imported history predates enforcement here.
func (g *Gateway) ImportOutcomes(ctx context.Context, org string, rows []model.Outcome) (int, error) {
	org = strings.TrimSpace(org)
	if org == "" {
		return 0, eris.Wrap(ErrInvalidRequest, "org is required")
	}
	for i := range rows {
		if !rows[i].Channel.Valid() {
			return 0, eris.Wrapf(ErrInvalidRequest, "unknown route %q at row %d", rows[i].Channel, i)
		}
		if rows[i].Utility < 0 || rows[i].Utility > 1 {
			return 0, eris.Wrapf(ErrInvalidRequest, "utility %.3f outside [0, 1] at row %d", rows[i].Utility, i)
		}
		rows[i].Org = org
	}

	n, err := g.store.LogOutcomes(ctx, rows)
	if err != nil {
		return 0, eris.Wrapf(err, "gateway: import %d outcomes for org %s", len(rows), org)
	}
	zap.L().Info("gateway: outcomes imported",
		zap.String("org", org),
		zap.Int("rows", n),
	)
	return n, nil
}
