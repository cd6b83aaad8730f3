// Package notify delivers budget events to a team webhook. Deliveries
// are rate limited per org so a hot request path cannot spam the
// channel, retried on transient failures, and cut off by a circuit
// breaker while the endpoint stays down.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/rahulraonatarajan/prompt-go-mcp/internal/model"
	"github.com/rahulraonatarajan/prompt-go-mcp/internal/resilience"
)

// Event is the webhook payload for one budget notification.
type Event struct {
	Org       string                `json:"org"`
	Period    string                `json:"period"`
	State     model.BudgetState     `json:"state"`
	Action    model.DirectiveAction `json:"action,omitempty"`
	Reason    string                `json:"reason,omitempty"`
	Alerts    []model.BudgetAlert   `json:"alerts,omitempty"`
	Timestamp time.Time             `json:"timestamp"`
}

// Config controls webhook delivery. An empty WebhookURL disables the
// notifier entirely.
type Config struct {
	WebhookURL  string
	Timeout     time.Duration
	MinInterval time.Duration
	Burst       int

	Retry   resilience.RetryConfig
	Breaker resilience.CircuitBreakerConfig
}

// Notifier posts budget events to the configured webhook.
type Notifier struct {
	cfg     Config
	client  *http.Client
	breaker *resilience.CircuitBreaker

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewNotifier creates a notifier. Zero config fields get defaults:
// 10s request timeout, at most one delivery per org every 5 minutes.
func NewNotifier(cfg Config) *Notifier {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = 5 * time.Minute
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	return &Notifier{
		cfg:      cfg,
		client:   &http.Client{Timeout: cfg.Timeout},
		breaker:  resilience.NewCircuitBreaker(cfg.Breaker),
		limiters: make(map[string]*rate.Limiter),
	}
}

// Enabled reports whether a webhook URL is configured.
func (n *Notifier) Enabled() bool {
	return n.cfg.WebhookURL != ""
}

// Notify delivers one event. Rate-limited events are dropped silently;
// delivery failures are returned after retries.
func (n *Notifier) Notify(ctx context.Context, ev Event) error {
	if !n.Enabled() {
		return nil
	}
	if !n.limiterFor(ev.Org).Allow() {
		zap.L().Debug("notify: rate limited, dropping event",
			zap.String("org", ev.Org),
			zap.String("state", string(ev.State)))
		return nil
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	err := n.breaker.Execute(ctx, func(ctx context.Context) error {
		return resilience.Do(ctx, n.cfg.Retry, func(ctx context.Context) error {
			return n.post(ctx, ev)
		})
	})
	if err != nil {
		return eris.Wrapf(err, "notify: deliver event for org %s", ev.Org)
	}
	zap.L().Info("notify: event delivered",
		zap.String("org", ev.Org),
		zap.String("state", string(ev.State)),
		zap.String("action", string(ev.Action)))
	return nil
}

// Dispatch delivers the event in the background, detached from the
// caller's request context. Failures are logged, never surfaced.
func (n *Notifier) Dispatch(ev Event) {
	if !n.Enabled() {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := n.Notify(ctx, ev); err != nil {
			zap.L().Warn("notify: background delivery failed",
				zap.String("org", ev.Org),
				zap.String("class", resilience.ClassifyError(err)),
				zap.Error(err))
		}
	}()
}

func (n *Notifier) post(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return eris.Wrap(err, "notify: marshal event")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "notify: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "notify: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		err := eris.Errorf("notify: webhook returned status %d", resp.StatusCode)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return resilience.NewTransientError(err, resp.StatusCode)
		}
		return err
	}
	return nil
}

func (n *Notifier) limiterFor(org string) *rate.Limiter {
	n.mu.Lock()
	defer n.mu.Unlock()
	lim, ok := n.limiters[org]
	if !ok {
		lim = rate.NewLimiter(rate.Every(n.cfg.MinInterval), n.cfg.Burst)
		n.limiters[org] = lim
	}
	return lim
}
