package policy

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/rahulraonatarajan/prompt-go-mcp/internal/model"
)

// Provider supplies budget policies to the decision path. The second
// return is false when the org has no policy, in which case callers run
// it unenforced.
type Provider interface {
	Get(org string) (model.BudgetPolicy, bool)
}

// Static is a fixed in-memory Provider, keyed by normalized org.
type Static map[string]model.BudgetPolicy

func (s Static) Get(org string) (model.BudgetPolicy, bool) {
	p, ok := s[NormalizeOrg(org)]
	return p, ok
}

// DirProvider serves per-org policies from a directory of
// *_policy.yaml files via an in-memory snapshot. Reload swaps the whole
// snapshot, so readers never observe a half-loaded state.
type DirProvider struct {
	dir string

	mu       sync.RWMutex
	policies map[string]model.BudgetPolicy
}

// NewDirProvider loads all policy files under dir. A missing directory
// yields an empty provider rather than an error.
func NewDirProvider(dir string) (*DirProvider, error) {
	p := &DirProvider{dir: dir, policies: map[string]model.BudgetPolicy{}}
	if err := p.Reload(); err != nil {
		return nil, err
	}
	return p, nil
}

// Get returns the policy for org.
func (p *DirProvider) Get(org string) (model.BudgetPolicy, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	pol, ok := p.policies[NormalizeOrg(org)]
	return pol, ok
}

// Orgs returns the orgs with loaded policies, sorted.
func (p *DirProvider) Orgs() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	orgs := make([]string, 0, len(p.policies))
	for org := range p.policies {
		orgs = append(orgs, org)
	}
	sort.Strings(orgs)
	return orgs
}

// Reload rescans the policy directory and swaps the snapshot. A file
// that fails to parse is skipped with a warning so one bad policy
// cannot take down the rest.
func (p *DirProvider) Reload() error {
	entries, err := os.ReadDir(p.dir)
	if err != nil {
		if os.IsNotExist(err) {
			zap.L().Warn("policy: directory missing, all orgs unenforced", zap.String("dir", p.dir))
			p.mu.Lock()
			p.policies = map[string]model.BudgetPolicy{}
			p.mu.Unlock()
			return nil
		}
		return eris.Wrapf(err, "policy: read dir %s", p.dir)
	}

	next := make(map[string]model.BudgetPolicy, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), fileSuffix) {
			continue
		}
		pol, err := LoadFile(filepath.Join(p.dir, e.Name()))
		if err != nil {
			zap.L().Warn("policy: skipping unparsable file",
				zap.String("file", e.Name()),
				zap.Error(err))
			continue
		}
		next[NormalizeOrg(pol.Org)] = pol
	}

	p.mu.Lock()
	p.policies = next
	p.mu.Unlock()
	zap.L().Debug("policy: snapshot loaded", zap.Int("orgs", len(next)))
	return nil
}
