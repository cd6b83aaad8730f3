package policy

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/rahulraonatarajan/prompt-go-mcp/internal/model"
)

// Defaults applied to policy files that omit the corresponding key.
// A file that sets monthly_limit_usd to 0 explicitly keeps the zero,
// which disables enforcement for that org.
const (
	DefaultMonthlyLimitUSD = 500.0
	DefaultAlertThreshold  = 0.8
)

const fileSuffix = "_policy.yaml"

// DefaultFallbacks returns the stock downgrade map for soft mode.
func DefaultFallbacks() map[string]string {
	return map[string]string{
		"gpt-4":         "gpt-3.5-turbo",
		"claude-3-opus": "claude-3-haiku",
	}
}

// Default returns the stock policy for an org, used by `promptgo policy
// --init` and as the merge base when loading files.
func Default(org string) model.BudgetPolicy {
	return model.BudgetPolicy{
		Org:             org,
		MonthlyLimitUSD: DefaultMonthlyLimitUSD,
		AlertThreshold:  DefaultAlertThreshold,
		Mode:            model.ModeObserve,
		Fallbacks:       DefaultFallbacks(),
	}
}

// NormalizeOrg converts an org name to its policy key: lowercased, with
// spaces replaced by underscores.
func NormalizeOrg(org string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(org)), " ", "_")
}

// FileName returns the policy file name for an org, e.g. "Acme Corp"
// becomes "acme_corp_policy.yaml".
func FileName(org string) string {
	return NormalizeOrg(org) + fileSuffix
}

func orgFromFileName(name string) string {
	return strings.TrimSuffix(name, fileSuffix)
}

// LoadFile reads one org policy from a YAML file. Keys absent from the
// file fall back to the defaults; keys present override them, so an
// explicit zero limit survives the merge.
func LoadFile(path string) (model.BudgetPolicy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.BudgetPolicy{}, eris.Wrapf(err, "policy: read %s", path)
	}

	// Policy files nest everything under a top-level "budget" key.
	wrapper := struct {
		Budget model.BudgetPolicy `yaml:"budget"`
	}{
		Budget: model.BudgetPolicy{
			MonthlyLimitUSD: DefaultMonthlyLimitUSD,
			AlertThreshold:  DefaultAlertThreshold,
			Mode:            model.ModeObserve,
		},
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return model.BudgetPolicy{}, eris.Wrapf(err, "policy: parse %s", path)
	}

	p := wrapper.Budget
	if p.Org == "" {
		p.Org = orgFromFileName(filepath.Base(path))
	}
	if p.Fallbacks == nil {
		p.Fallbacks = DefaultFallbacks()
	}
	if err := Validate(p); err != nil {
		return model.BudgetPolicy{}, eris.Wrapf(err, "policy: %s", path)
	}
	return p, nil
}

// Validate checks a policy for usable enforcement settings.
func Validate(p model.BudgetPolicy) error {
	if !p.Mode.Valid() {
		return eris.Errorf("invalid mode %q", p.Mode)
	}
	if p.AlertThreshold <= 0 || p.AlertThreshold > 1 {
		return eris.Errorf("alert_threshold %.2f outside (0, 1]", p.AlertThreshold)
	}
	for ch, w := range p.Weights {
		if !ch.Valid() {
			return eris.Errorf("unknown route %q in weights", ch)
		}
		if w < 0 || w > 2 {
			return eris.Errorf("weight %.2f for route %q outside [0, 2]", w, ch)
		}
	}
	return nil
}

// WriteDefault writes the stock policy file for org into dir. It
// refuses to overwrite an existing file.
func WriteDefault(dir, org string) (string, error) {
	path := filepath.Join(dir, FileName(org))
	if _, err := os.Stat(path); err == nil {
		return "", eris.Errorf("policy: %s already exists", path)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", eris.Wrapf(err, "policy: create dir %s", dir)
	}

	wrapper := struct {
		Budget model.BudgetPolicy `yaml:"budget"`
	}{Budget: Default(org)}
	data, err := yaml.Marshal(wrapper)
	if err != nil {
		return "", eris.Wrap(err, "policy: marshal default")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", eris.Wrapf(err, "policy: write %s", path)
	}
	return path, nil
}
