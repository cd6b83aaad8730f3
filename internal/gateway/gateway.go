// Package gateway wires routing, weights, budget enforcement, and
// persistence into the operations every transport (CLI, HTTP, MCP)
// exposes. Raw prompt text enters SuggestRoute, is reduced to features
// in memory, and is gone before anything is persisted or logged.
package gateway

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/rahulraonatarajan/prompt-go-mcp/internal/analytics"
	"github.com/rahulraonatarajan/prompt-go-mcp/internal/budget"
	"github.com/rahulraonatarajan/prompt-go-mcp/internal/cost"
	"github.com/rahulraonatarajan/prompt-go-mcp/internal/model"
	"github.com/rahulraonatarajan/prompt-go-mcp/internal/notify"
	"github.com/rahulraonatarajan/prompt-go-mcp/internal/routing"
	"github.com/rahulraonatarajan/prompt-go-mcp/internal/store"
	"github.com/rahulraonatarajan/prompt-go-mcp/internal/weights"
)

// DefaultModel is assumed when a request names no model.
const DefaultModel = "openai/gpt-4o-mini"

// ErrInvalidRequest is wrapped by request validation failures so
// transports can answer with a client error instead of a server fault.
var ErrInvalidRequest = eris.New("gateway: invalid request")

// Deps are the collaborators a Gateway needs. Store, Weights, and
// Ledger are required; Analytics and Notifier are optional.
type Deps struct {
	Store        store.Store
	Weights      *weights.Service
	Ledger       *budget.Ledger
	Calculator   *cost.Calculator
	Analytics    *analytics.Service
	Notifier     *notify.Notifier
	DefaultModel string
}

// Gateway implements the tool surface.
type Gateway struct {
	store     store.Store
	weights   *weights.Service
	ledger    *budget.Ledger
	calc      *cost.Calculator
	analytics *analytics.Service
	notifier  *notify.Notifier

	defaultModel string

	// nowFunc allows test injection of time.
	nowFunc func() time.Time
	// newID allows test injection of decision ids.
	newID func() string
}

// New creates a Gateway, checking the required collaborators.
func New(d Deps) (*Gateway, error) {
	if d.Store == nil {
		return nil, eris.New("gateway: store is required")
	}
	if d.Weights == nil {
		return nil, eris.New("gateway: weights service is required")
	}
	if d.Ledger == nil {
		return nil, eris.New("gateway: budget ledger is required")
	}
	if d.Calculator == nil {
		d.Calculator = cost.NewCalculator(nil)
	}
	if d.DefaultModel == "" {
		d.DefaultModel = DefaultModel
	}
	return &Gateway{
		store:        d.Store,
		weights:      d.Weights,
		ledger:       d.Ledger,
		calc:         d.Calculator,
		analytics:    d.Analytics,
		notifier:     d.Notifier,
		defaultModel: d.DefaultModel,
		nowFunc:      time.Now,
		newID:        uuid.NewString,
	}, nil
}

// SuggestRequest is a routing request. Prompt and Features are
// alternatives: raw text is reduced to features immediately, while a
// pre-extracted record is validated and used as-is.
type SuggestRequest struct {
	Org            string               `json:"org"`
	User           string               `json:"user,omitempty"`
	Prompt         string               `json:"prompt,omitempty"`
	Features       *model.Features      `json:"features,omitempty"`
	Context        routing.ContextFlags `json:"context"`
	Feature        string               `json:"feature,omitempty"`
	SourceApp      string               `json:"source_app,omitempty"`
	RequestedModel string               `json:"model,omitempty"`
}

// SuggestResponse is the routing verdict plus the enforcement outcome.
type SuggestResponse struct {
	DecisionID       string                 `json:"decision_id"`
	Channel          model.Channel          `json:"top_route"`
	ServedModel      string                 `json:"served_model,omitempty"`
	Ranking          []model.ScoreItem      `json:"ranking"`
	Confidence       float64                `json:"confidence"`
	Rationale        []string               `json:"rationale"`
	Reasons          []string               `json:"reasons"`
	Suggestions      routing.SuggestionPack `json:"suggestions"`
	Directive        model.Directive        `json:"directive"`
	Enforcement      model.Resolution       `json:"enforcement"`
	EstimatedCostUSD float64                `json:"estimated_cost_usd"`
	Degraded         bool                   `json:"degraded,omitempty"`
}

// SuggestRoute decides the channel for one prompt: features, rule
// scores, learned weights, then the budget directive applied to the
// requested model. Storage trouble degrades the response instead of
// failing it; only an invalid request is an error.
func (g *Gateway) SuggestRoute(ctx context.Context, req SuggestRequest) (*SuggestResponse, error) {
	org := strings.TrimSpace(req.Org)
	if org == "" {
		return nil, eris.Wrap(ErrInvalidRequest, "org is required")
	}

	features, err := g.resolveFeatures(req)
	if err != nil {
		return nil, err
	}

	degraded := false
	wts, err := g.weights.Resolve(ctx, org, req.User)
	if err != nil {
		zap.L().Warn("gateway: weight read failed, using defaults",
			zap.String("org", org),
			zap.Error(err),
		)
		wts = weights.Defaults()
		degraded = true
	}

	result := routing.Decide(features, wts)

	requestedModel := req.RequestedModel
	if requestedModel == "" {
		requestedModel = g.defaultModel
	}
	estimate := g.calc.ForPrompt(features.CharCount, []string{requestedModel})[0]

	directive := g.ledger.CheckAndReserve(ctx, org, requestedModel, estimate.CostUSD)
	if directive.Degraded {
		degraded = true
	}
	resolution := budget.Resolve(directive, result.Channel, requestedModel)

	decision := &model.Decision{
		ID:             g.newID(),
		Org:            org,
		User:           req.User,
		Features:       features,
		Channel:        result.Channel,
		Ranking:        result.Ranking,
		RuleScores:     result.RuleScores,
		Weights:        result.Weights,
		Confidence:     result.Confidence,
		Rationale:      result.Rationale,
		Reasons:        result.Reasons,
		RequestedModel: requestedModel,
		ServedModel:    resolution.Model,
		Enforcement:    resolution,
		EstimatedCost:  estimate.CostUSD,
		Degraded:       degraded,
		CreatedAt:      g.nowFunc().UTC(),
	}
	if err := g.store.LogDecision(ctx, decision); err != nil {
		zap.L().Warn("gateway: decision persist failed",
			zap.String("org", org),
			zap.String("decision_id", decision.ID),
			zap.Error(err),
		)
		degraded = true
	}

	if directive.Alert {
		g.dispatchAlert(org, directive)
	}

	zap.L().Debug("gateway: route suggested",
		zap.String("org", org),
		zap.String("decision_id", decision.ID),
		zap.String("route", string(result.Channel)),
		zap.Float64("confidence", result.Confidence),
		zap.String("budget_action", string(directive.Action)),
		zap.Bool("degraded", degraded),
	)

	return &SuggestResponse{
		DecisionID:       decision.ID,
		Channel:          result.Channel,
		ServedModel:      resolution.Model,
		Ranking:          result.Ranking,
		Confidence:       result.Confidence,
		Rationale:        result.Rationale,
		Reasons:          result.Reasons,
		Suggestions:      routing.Suggestions(req.Prompt),
		Directive:        directive,
		Enforcement:      resolution,
		EstimatedCostUSD: estimate.CostUSD,
		Degraded:         degraded,
	}, nil
}

// resolveFeatures picks the feature record for a request: validated
// caller-supplied features win, otherwise the prompt is extracted.
func (g *Gateway) resolveFeatures(req SuggestRequest) (model.Features, error) {
	if req.Features != nil {
		if err := req.Features.Validate(); err != nil {
			return model.Features{}, err
		}
		return *req.Features, nil
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return model.Features{}, &model.InvalidFeaturesError{
			Reasons: []string{"prompt or features required"},
		}
	}
	return routing.Extract(req.Prompt, req.Context), nil
}

// dispatchAlert sends a budget event without blocking the request.
func (g *Gateway) dispatchAlert(org string, directive model.Directive) {
	if g.notifier == nil || !g.notifier.Enabled() {
		return
	}
	g.notifier.Dispatch(notify.Event{
		Org:    org,
		Period: g.ledger.CurrentPeriod(),
		State:  directive.State,
		Action: directive.Action,
		Reason: directive.Reason,
	})
}
