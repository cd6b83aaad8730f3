// Package weights resolves effective channel weights and folds outcome
// feedback into them.
package weights

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/rahulraonatarajan/prompt-go-mcp/internal/model"
	"github.com/rahulraonatarajan/prompt-go-mcp/internal/policy"
	"github.com/rahulraonatarajan/prompt-go-mcp/internal/store"
)

// DefaultLearningRate is how fast one feedback sample moves a cell.
const DefaultLearningRate = 0.2

// Service resolves per-channel multipliers for a caller and applies
// outcome feedback. Resolution order per channel: user cell, org cell,
// the org policy's weight, then 1.0.
type Service struct {
	store        store.Store
	policies     policy.Provider
	learningRate float64
}

// NewService creates a weight service. Out-of-range learning rates fall
// back to the default.
func NewService(st store.Store, policies policy.Provider, learningRate float64) *Service {
	if learningRate <= 0 || learningRate > 1 {
		learningRate = DefaultLearningRate
	}
	return &Service{store: st, policies: policies, learningRate: learningRate}
}

// LearningRate returns the configured learning rate.
func (s *Service) LearningRate() float64 {
	return s.learningRate
}

// Defaults returns the neutral weight map used when the store is
// unreachable and the decision path degrades.
func Defaults() map[model.Channel]float64 {
	m := make(map[model.Channel]float64, len(model.AllChannels()))
	for _, ch := range model.AllChannels() {
		m[ch] = 1.0
	}
	return m
}

// Resolve returns the effective multiplier for every channel for
// (org, user). A missing cell falls through to the next level; the
// result always covers all channels.
func (s *Service) Resolve(ctx context.Context, org, user string) (map[model.Channel]float64, error) {
	orgRows, err := s.store.ListWeights(ctx, org, "")
	if err != nil {
		return nil, eris.Wrap(err, "weights: resolve org cells")
	}

	var userRows []model.ChannelWeight
	if user != "" {
		userRows, err = s.store.ListWeights(ctx, org, user)
		if err != nil {
			return nil, eris.Wrap(err, "weights: resolve user cells")
		}
	}

	userCells := byChannel(userRows)
	orgCells := byChannel(orgRows)

	var policyWeights map[model.Channel]float64
	if s.policies != nil {
		if pol, ok := s.policies.Get(org); ok {
			policyWeights = pol.Weights
		}
	}

	resolved := make(map[model.Channel]float64, len(model.AllChannels()))
	for _, ch := range model.AllChannels() {
		if m, ok := userCells[ch]; ok {
			resolved[ch] = m
			continue
		}
		if m, ok := orgCells[ch]; ok {
			resolved[ch] = m
			continue
		}
		if m, ok := policyWeights[ch]; ok {
			resolved[ch] = m
			continue
		}
		resolved[ch] = 1.0
	}
	return resolved, nil
}

// ApplyFeedback folds one utility sample into the (org, user) cell and
// into the org-level cell, so the org fallback tracks org-wide behavior
// and new users inherit it. Returns the new user-cell multiplier, or
// the org-level one when user is empty.
func (s *Service) ApplyFeedback(ctx context.Context, org, user string, ch model.Channel, utility float64) (float64, error) {
	if !ch.Valid() {
		return 0, eris.Errorf("weights: unknown route %q", ch)
	}
	if utility < 0 || utility > 1 {
		return 0, eris.Errorf("weights: utility %.3f outside [0, 1]", utility)
	}

	orgMult, err := s.store.ApplyWeightFeedback(ctx, org, "", ch, utility, s.learningRate)
	if err != nil {
		return 0, eris.Wrap(err, "weights: org feedback")
	}
	if user == "" {
		return orgMult, nil
	}

	userMult, err := s.store.ApplyWeightFeedback(ctx, org, user, ch, utility, s.learningRate)
	if err != nil {
		return 0, eris.Wrap(err, "weights: user feedback")
	}
	return userMult, nil
}

func byChannel(rows []model.ChannelWeight) map[model.Channel]float64 {
	m := make(map[model.Channel]float64, len(rows))
	for _, w := range rows {
		m[w.Channel] = w.Multiplier
	}
	return m
}
