package budget

import "github.com/rahulraonatarajan/prompt-go-mcp/internal/model"

// Resolve applies a budget directive to the engine's chosen channel and
// the requested model. Allows pass both through, downgrades swap only
// the model, and blocks carry neither so callers cannot serve a blocked
// request by accident.
func Resolve(d model.Directive, channel model.Channel, requestedModel string) model.Resolution {
	switch d.Action {
	case model.ActionBlock:
		return model.Resolution{Blocked: true, Reason: d.Reason}
	case model.ActionDowngrade:
		if d.TargetModel == "" {
			return model.Resolution{Channel: channel, Model: requestedModel}
		}
		return model.Resolution{
			Channel:       channel,
			Model:         d.TargetModel,
			WasDowngraded: true,
			Reason:        d.Reason,
		}
	default:
		return model.Resolution{Channel: channel, Model: requestedModel}
	}
}
