package policy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rahulraonatarajan/prompt-go-mcp/internal/model"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func writePolicy(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestNormalizeOrg(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"Acme Corp", "acme_corp"},
		{"acme", "acme"},
		{"  Big Fish Labs  ", "big_fish_labs"},
		{"ALLCAPS", "allcaps"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, NormalizeOrg(tt.in))
			assert.Equal(t, tt.want+"_policy.yaml", FileName(tt.in))
		})
	}
}

func TestLoadFile_AppliesDefaults(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	path := writePolicy(t, dir, "acme_policy.yaml", "budget:\n  monthly_limit_usd: 750\n")

	p, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "acme", p.Org)
	assert.InDelta(t, 750, p.MonthlyLimitUSD, 0.001)
	assert.InDelta(t, DefaultAlertThreshold, p.AlertThreshold, 0.001)
	assert.Equal(t, model.ModeObserve, p.Mode)
	assert.Equal(t, DefaultFallbacks(), p.Fallbacks)
}

func TestLoadFile_ExplicitZeroLimitSurvives(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	path := writePolicy(t, dir, "acme_policy.yaml", "budget:\n  monthly_limit_usd: 0\n  mode: hard\n")

	p, err := LoadFile(path)
	require.NoError(t, err)
	assert.Zero(t, p.MonthlyLimitUSD)
	assert.Equal(t, model.ModeHard, p.Mode)
}

func TestLoadFile_FullPolicy(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	content := `budget:
  org: Acme Corp
  monthly_limit_usd: 1200.50
  alert_threshold: 0.9
  mode: soft
  budget_fallbacks:
    gpt-4o: gpt-4o-mini
  weights:
    web: 1.4
    agent: 0.6
  freshness_domains:
    - docs.example.com
`
	p, err := LoadFile(writePolicy(t, dir, "acme_corp_policy.yaml", content))
	require.NoError(t, err)
	assert.Equal(t, "Acme Corp", p.Org)
	assert.InDelta(t, 1200.50, p.MonthlyLimitUSD, 0.001)
	assert.InDelta(t, 0.9, p.AlertThreshold, 0.001)
	assert.Equal(t, model.ModeSoft, p.Mode)
	// A fallback map in the file replaces the defaults outright.
	assert.Equal(t, map[string]string{"gpt-4o": "gpt-4o-mini"}, p.Fallbacks)
	assert.InDelta(t, 1.4, p.Weights[model.ChannelWeb], 0.001)
	assert.Equal(t, []string{"docs.example.com"}, p.FreshnessDomains)
}

func TestLoadFile_Errors(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	tests := []struct {
		name    string
		content string
	}{
		{"bad yaml", "budget: [unclosed"},
		{"bad mode", "budget:\n  mode: aggressive\n"},
		{"bad threshold", "budget:\n  alert_threshold: 1.5\n"},
		{"bad weight route", "budget:\n  weights:\n    teleport: 1.0\n"},
		{"weight out of range", "budget:\n  weights:\n    web: 2.5\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			path := writePolicy(t, dir, NormalizeOrg(tt.name)+"_policy.yaml", tt.content)
			_, err := LoadFile(path)
			assert.Error(t, err)
		})
	}
}

func TestLoadFile_Missing(t *testing.T) {
	t.Parallel()
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope_policy.yaml"))
	assert.Error(t, err)
}

func TestDirProvider(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	writePolicy(t, dir, "acme_corp_policy.yaml", "budget:\n  monthly_limit_usd: 100\n")
	writePolicy(t, dir, "globex_policy.yaml", "budget:\n  mode: hard\n")
	writePolicy(t, dir, "broken_policy.yaml", "budget: [unclosed")
	writePolicy(t, dir, "notes.txt", "not a policy")

	p, err := NewDirProvider(dir)
	require.NoError(t, err)

	assert.Equal(t, []string{"acme_corp", "globex"}, p.Orgs())

	pol, ok := p.Get("Acme Corp")
	require.True(t, ok)
	assert.InDelta(t, 100, pol.MonthlyLimitUSD, 0.001)

	_, ok = p.Get("unknown")
	assert.False(t, ok)

	// New files show up after an explicit reload.
	writePolicy(t, dir, "initech_policy.yaml", "budget:\n  mode: soft\n")
	require.NoError(t, p.Reload())
	pol, ok = p.Get("initech")
	require.True(t, ok)
	assert.Equal(t, model.ModeSoft, pol.Mode)
}

func TestDirProvider_MissingDir(t *testing.T) {
	t.Parallel()

	p, err := NewDirProvider(filepath.Join(t.TempDir(), "does-not-exist"))
	require.NoError(t, err)
	assert.Empty(t, p.Orgs())

	_, ok := p.Get("acme")
	assert.False(t, ok)
}

func TestWriteDefault(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	path, err := WriteDefault(dir, "Acme Corp")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "acme_corp_policy.yaml"), path)

	p, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Acme Corp", p.Org)
	assert.InDelta(t, DefaultMonthlyLimitUSD, p.MonthlyLimitUSD, 0.001)
	assert.Equal(t, model.ModeObserve, p.Mode)

	_, err = WriteDefault(dir, "Acme Corp")
	assert.Error(t, err)
}

func TestStatic(t *testing.T) {
	t.Parallel()

	s := Static{"acme": {Org: "acme", Mode: model.ModeHard}}
	p, ok := s.Get("ACME")
	require.True(t, ok)
	assert.Equal(t, model.ModeHard, p.Mode)

	_, ok = s.Get("other")
	assert.False(t, ok)
}
