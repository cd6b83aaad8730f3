package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/rahulraonatarajan/prompt-go-mcp/internal/analytics"
	"github.com/rahulraonatarajan/prompt-go-mcp/internal/budget"
	"github.com/rahulraonatarajan/prompt-go-mcp/internal/cost"
	"github.com/rahulraonatarajan/prompt-go-mcp/internal/gateway"
	"github.com/rahulraonatarajan/prompt-go-mcp/internal/notify"
	"github.com/rahulraonatarajan/prompt-go-mcp/internal/policy"
	"github.com/rahulraonatarajan/prompt-go-mcp/internal/store"
	"github.com/rahulraonatarajan/prompt-go-mcp/internal/weights"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		path := cfg.Store.Path
		if path == "" {
			path = "promptgo.db"
		}
		return store.NewSQLite(path)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &cfg.Store.Pool)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// appEnv holds the wired collaborators behind the serve/mcp/query
// commands.
type appEnv struct {
	Store    store.Store
	Policies policy.Provider
	Gateway  *gateway.Gateway

	stopWatch context.CancelFunc
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.stopWatch != nil {
		e.stopWatch()
	}
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initEnv validates config for the given mode, then builds the store,
// the policy provider, and the gateway. Callers should defer
// env.Close().
func initEnv(ctx context.Context, mode string) (*appEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	env := &appEnv{Store: st}

	if cfg.Policy.Dir != "" {
		provider, err := policy.NewDirProvider(cfg.Policy.Dir)
		if err != nil {
			_ = st.Close()
			return nil, eris.Wrapf(err, "load policies from %s", cfg.Policy.Dir)
		}
		env.Policies = provider
		if cfg.Policy.Watch {
			wctx, cancel := context.WithCancel(ctx)
			provider.Watch(wctx)
			env.stopWatch = cancel
		}
		zap.L().Info("policies loaded",
			zap.String("dir", cfg.Policy.Dir),
			zap.Int("orgs", len(provider.Orgs())),
		)
	}

	w := weights.NewService(st, env.Policies, cfg.Weights.LearningRate)
	led := budget.NewLedger(st, env.Policies)
	calc := cost.NewCalculator(cfg.Rates())

	gw, err := gateway.New(gateway.Deps{
		Store:        st,
		Weights:      w,
		Ledger:       led,
		Calculator:   calc,
		Analytics:    analytics.NewService(st, w, led, calc),
		Notifier:     notify.NewNotifier(cfg.Notifier()),
		DefaultModel: cfg.Routing.DefaultModel,
	})
	if err != nil {
		env.Close()
		return nil, err
	}
	env.Gateway = gw

	return env, nil
}
