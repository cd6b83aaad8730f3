package analytics

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"

	"github.com/rahulraonatarajan/prompt-go-mcp/internal/budget"
	"github.com/rahulraonatarajan/prompt-go-mcp/internal/cost"
	"github.com/rahulraonatarajan/prompt-go-mcp/internal/model"
	"github.com/rahulraonatarajan/prompt-go-mcp/internal/store"
	"github.com/rahulraonatarajan/prompt-go-mcp/internal/weights"
)

// defaultWindowDays is the reporting window when callers pass zero times.
const defaultWindowDays = 30

// Service answers usage, savings, and recommendation queries for one
// deployment. The ledger and weights handles are optional; methods that
// need a missing one say so.
type Service struct {
	store   store.Store
	weights *weights.Service
	ledger  *budget.Ledger
	calc    *cost.Calculator

	// nowFunc allows test injection of time.
	nowFunc func() time.Time
}

// NewService creates an analytics service. A nil calculator falls back
// to the stock pricing table.
func NewService(st store.Store, w *weights.Service, led *budget.Ledger, calc *cost.Calculator) *Service {
	if calc == nil {
		calc = cost.NewCalculator(nil)
	}
	return &Service{
		store:   st,
		weights: w,
		ledger:  led,
		calc:    calc,
		nowFunc: time.Now,
	}
}

// Usage summarizes the org's outcomes over [since, until) for one
// dimension. Zero bounds default to the trailing thirty days.
func (s *Service) Usage(ctx context.Context, org string, since, until time.Time, by string) ([]model.UsageSummaryItem, error) {
	since, until = s.window(since, until)
	rows, err := s.loadOutcomes(ctx, org, since, until)
	if err != nil {
		return nil, err
	}
	return Summarize(rows, by)
}

// Overview summarizes every dimension over one row load, fanning the
// per-dimension aggregation out across goroutines.
func (s *Service) Overview(ctx context.Context, org string, since, until time.Time) (map[string][]model.UsageSummaryItem, error) {
	since, until = s.window(since, until)
	rows, err := s.loadOutcomes(ctx, org, since, until)
	if err != nil {
		return nil, err
	}

	var mu sync.Mutex
	out := make(map[string][]model.UsageSummaryItem, len(Dimensions()))

	var g errgroup.Group
	for _, dim := range Dimensions() {
		g.Go(func() error {
			items, err := Summarize(rows, dim)
			if err != nil {
				return err
			}
			mu.Lock()
			out[dim] = items
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// TeamMetrics is the team dashboard payload for an org's trailing window.
type TeamMetrics struct {
	Org                 string                `json:"org"`
	PeriodDays          int                   `json:"period_days"`
	TotalRequests       int                   `json:"total_requests"`
	TotalCostUSD        float64               `json:"total_cost"`
	EstimatedSavingsUSD float64               `json:"estimated_savings"`
	RouteDistribution   map[model.Channel]int `json:"route_distribution"`
	TopUsers            []UserMetric          `json:"top_users"`
}

// UserMetric is one row of the team performance table.
type UserMetric struct {
	User       string  `json:"user"`
	Requests   int     `json:"requests"`
	CostUSD    float64 `json:"cost"`
	Efficiency float64 `json:"efficiency"`
}

const (
	// optimizedCostShare treats observed spend as this share of what an
	// unoptimized deployment would have paid.
	optimizedCostShare = 0.75

	topUserCount = 5
)

// TeamMetrics aggregates the trailing window for the team dashboard:
// totals, route distribution, savings against an unoptimized baseline,
// and the most expensive users with their efficiency scores.
func (s *Service) TeamMetrics(ctx context.Context, org string, days int) (TeamMetrics, error) {
	if days <= 0 {
		days = 7
	}
	until := s.nowFunc().UTC()
	since := until.AddDate(0, 0, -days)
	rows, err := s.loadOutcomes(ctx, org, since, until)
	if err != nil {
		return TeamMetrics{}, err
	}

	tm := TeamMetrics{
		Org:               org,
		PeriodDays:        days,
		TotalRequests:     len(rows),
		RouteDistribution: map[model.Channel]int{},
	}
	var totalCost float64
	for _, r := range rows {
		totalCost += r.CostUSD
		tm.RouteDistribution[r.Channel]++
	}
	tm.TotalCostUSD = round2(totalCost)
	tm.EstimatedSavingsUSD = round2(totalCost/optimizedCostShare - totalCost)

	users, err := Summarize(rows, ByUser)
	if err != nil {
		return TeamMetrics{}, err
	}
	if len(users) > topUserCount {
		users = users[:topUserCount]
	}
	efficiency := UserEfficiency(rows)
	for _, u := range users {
		tm.TopUsers = append(tm.TopUsers, UserMetric{
			User:       u.Key,
			Requests:   u.Requests,
			CostUSD:    u.CostUSD,
			Efficiency: efficiency[u.Key],
		})
	}
	return tm, nil
}

func (s *Service) loadOutcomes(ctx context.Context, org string, since, until time.Time) ([]model.Outcome, error) {
	rows, err := s.store.ListOutcomes(ctx, store.OutcomeFilter{
		Org:   org,
		Since: since,
		Until: until,
		Limit: sampleLimit,
	})
	if err != nil {
		return nil, eris.Wrapf(err, "analytics: list outcomes for org %s", org)
	}
	return rows, nil
}

func (s *Service) window(since, until time.Time) (time.Time, time.Time) {
	if until.IsZero() {
		until = s.nowFunc().UTC()
	}
	if since.IsZero() {
		since = until.AddDate(0, 0, -defaultWindowDays)
	}
	return since, until
}
