// Package analytics aggregates recorded decisions and outcomes into
// usage summaries, savings estimates, optimization reports, and weekly
// rule recommendations. Everything here reads the store; nothing writes.
package analytics

import (
	"math"
	"sort"

	"github.com/rotisserie/eris"

	"github.com/rahulraonatarajan/prompt-go-mcp/internal/model"
)

// Summary dimensions accepted by Summarize.
const (
	ByUser    = "user"
	ByFeature = "feature"
	ByModel   = "model"
	ByChannel = "channel"
)

// Dimensions returns the supported summary dimensions in fixed order.
func Dimensions() []string {
	return []string{ByUser, ByFeature, ByModel, ByChannel}
}

// ValidDimension reports whether by names a summary dimension.
func ValidDimension(by string) bool {
	switch by {
	case ByUser, ByFeature, ByModel, ByChannel:
		return true
	}
	return false
}

// sampleLimit caps the outcome and decision scans behind aggregation.
const sampleLimit = 10000

type bucket struct {
	requests  int
	tokensIn  int
	tokensOut int
	costUSD   float64
	latencies []int
}

// Summarize aggregates outcomes into one row per key of the given
// dimension. Rows come back ordered by cost descending so the expensive
// keys lead, with request count and key as tie-breakers.
func Summarize(rows []model.Outcome, by string) ([]model.UsageSummaryItem, error) {
	if !ValidDimension(by) {
		return nil, eris.Errorf("analytics: unknown summary dimension %q", by)
	}

	buckets := map[string]*bucket{}
	for _, r := range rows {
		key := groupKey(r, by)
		b := buckets[key]
		if b == nil {
			b = &bucket{}
			buckets[key] = b
		}
		b.requests++
		b.tokensIn += r.TokensIn
		b.tokensOut += r.TokensOut
		b.costUSD += r.CostUSD
		b.latencies = append(b.latencies, r.LatencyMS)
	}

	items := make([]model.UsageSummaryItem, 0, len(buckets))
	for key, b := range buckets {
		items = append(items, model.UsageSummaryItem{
			Key:          key,
			Requests:     b.requests,
			TokensIn:     b.tokensIn,
			TokensOut:    b.tokensOut,
			CostUSD:      round2(b.costUSD),
			LatencyMSP95: p95(b.latencies),
		})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].CostUSD != items[j].CostUSD {
			return items[i].CostUSD > items[j].CostUSD
		}
		if items[i].Requests != items[j].Requests {
			return items[i].Requests > items[j].Requests
		}
		return items[i].Key < items[j].Key
	})
	return items, nil
}

func groupKey(o model.Outcome, by string) string {
	switch by {
	case ByUser:
		return o.User
	case ByFeature:
		return o.Feature
	case ByModel:
		return o.Model
	default:
		return string(o.Channel)
	}
}

// p95 indexes the sorted latencies at int(0.95*n)-1, clamped to the
// first element so a single sample reports itself.
func p95(latencies []int) int {
	if len(latencies) == 0 {
		return 0
	}
	lat := make([]int, len(latencies))
	copy(lat, latencies)
	sort.Ints(lat)
	idx := int(0.95*float64(len(lat))) - 1
	if idx < 0 {
		idx = 0
	}
	return lat[idx]
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

func round1(v float64) float64 { return math.Round(v*10) / 10 }
