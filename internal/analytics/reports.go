package analytics

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/rahulraonatarajan/prompt-go-mcp/internal/model"
)

// downshiftRatio is the assumed share of current spend recoverable by
// routing and model downshifts.
const downshiftRatio = 0.25

// optimizeNotes are the standing bullets of the quick optimize report.
var optimizeNotes = []string{
	"Downshift short Q&A to cheaper/local models",
	"Prefer web for freshness keywords",
	"Set agent threshold requiring action verbs",
}

// reportPrinter renders currency with thousands separators.
var reportPrinter = message.NewPrinter(language.English)

// ROIMarkdown renders the ROI report document. The savings figure is
// grouped ("$12,500.00") for readability in chat surfaces.
func ROIMarkdown(savingsUSD float64, notes []string) string {
	var b strings.Builder
	b.WriteString("# Prompt Go – ROI Report\n\n")
	reportPrinter.Fprintf(&b, "**Estimated monthly savings:** $%.2f\n\n", savingsUSD)
	b.WriteString("Recommendations:\n")
	for _, n := range notes {
		b.WriteString("- ")
		b.WriteString(n)
		b.WriteString("\n")
	}
	return b.String()
}

// OptimizeReportMarkdown renders the quick ROI estimate: a quarter of
// the trailing week's spend, with the standing optimization bullets.
func (s *Service) OptimizeReportMarkdown(ctx context.Context, org string) (string, error) {
	until := s.nowFunc().UTC()
	since := until.AddDate(0, 0, -7)
	rows, err := s.loadOutcomes(ctx, org, since, until)
	if err != nil {
		return "", err
	}
	var subtotal float64
	for _, r := range rows {
		subtotal += r.CostUSD
	}
	return ROIMarkdown(subtotal*downshiftRatio, optimizeNotes), nil
}

// TieredRecommendations groups report recommendations by urgency.
type TieredRecommendations struct {
	Immediate  []string `json:"immediate"`
	MediumTerm []string `json:"medium_term"`
	LongTerm   []string `json:"long_term"`
}

// OptimizationReport is the month-to-date cost report for an org.
type OptimizationReport struct {
	Org             string                `json:"org"`
	Period          string                `json:"period"`
	BudgetStatus    model.BudgetStatus    `json:"budget_status"`
	Savings         SavingsOpportunities  `json:"savings_opportunities"`
	Recommendations TieredRecommendations `json:"recommendations"`
	Markdown        string                `json:"markdown"`
	GeneratedAt     time.Time             `json:"generated_at"`
}

var immediateRecommendations = []string{
	"Enable soft budget enforcement to automatically downgrade models",
	"Review and optimize agent-mode prompts for efficiency",
	"Batch non-urgent requests to spread costs",
}

var mediumTermRecommendations = []string{
	"Set up team routing preferences based on usage patterns",
	"Implement prompt templates for common use cases",
	"Enable adaptive learning to improve routing efficiency",
}

var longTermRecommendations = []string{
	"Consider local/on-premise models for routine tasks",
	"Establish team guidelines for cost-effective prompting",
	"Regular budget reviews and optimization sessions",
}

// CostOptimizationReport builds the month-to-date savings report:
// budget status, the opportunity breakdown, urgency-tiered
// recommendations, and the rendered markdown. Immediate actions appear
// only once the org has used more than 80% of its budget.
func (s *Service) CostOptimizationReport(ctx context.Context, org string) (OptimizationReport, error) {
	if s.ledger == nil {
		return OptimizationReport{}, eris.New("analytics: no budget ledger configured")
	}
	status, err := s.ledger.Status(ctx, org)
	if err != nil {
		return OptimizationReport{}, eris.Wrapf(err, "analytics: budget status for org %s", org)
	}

	now := s.nowFunc().UTC()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	rows, err := s.loadOutcomes(ctx, org, monthStart, now)
	if err != nil {
		return OptimizationReport{}, err
	}

	savings := savingsOpportunities(rows)
	recs := TieredRecommendations{
		MediumTerm: mediumTermRecommendations,
		LongTerm:   longTermRecommendations,
	}
	if status.PercentageUsed > 80 {
		recs.Immediate = immediateRecommendations
	}

	notes := make([]string, 0, len(savings.Opportunities)+len(recs.Immediate))
	for _, o := range savings.Opportunities {
		notes = append(notes, o.Description)
	}
	notes = append(notes, recs.Immediate...)
	if len(notes) == 0 {
		notes = recs.MediumTerm
	}

	return OptimizationReport{
		Org:             org,
		Period:          status.Period,
		BudgetStatus:    status,
		Savings:         savings,
		Recommendations: recs,
		Markdown:        ROIMarkdown(savings.TotalPotentialSavingsUSD, notes),
		GeneratedAt:     now,
	}, nil
}
