// Package mcpserver exposes the gateway as an MCP stdio server so
// editors and coding agents can call the routing tools in-session.
package mcpserver

import (
	"context"
	"encoding/json"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/rahulraonatarajan/prompt-go-mcp/internal/analytics"
	"github.com/rahulraonatarajan/prompt-go-mcp/internal/gateway"
	"github.com/rahulraonatarajan/prompt-go-mcp/internal/model"
	"github.com/rahulraonatarajan/prompt-go-mcp/internal/routing"
)

const serverName = "prompt-go"

// Server wraps the gateway behind an MCP tool surface.
type Server struct {
	gw  *gateway.Gateway
	mcp *mcp.Server
}

// New registers the tool set on a fresh MCP server.
func New(gw *gateway.Gateway, version string) *Server {
	s := &Server{gw: gw}
	srv := mcp.NewServer(&mcp.Implementation{Name: serverName, Version: version}, nil)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "suggestRoute",
		Description: "Suggest a routing channel for a prompt with ranking, reasons, per-route suggestions, and the budget directive.",
	}, s.suggestRoute)
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "recordOutcome",
		Description: "Record what happened for an issued decision: spend, tokens, latency, and an outcome that feeds weight learning.",
	}, s.recordOutcome)
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "getBudgetStatus",
		Description: "Current-period budget status for an org: spend, limit, projection, and alerts.",
	}, s.budgetStatus)
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "getUsageSummary",
		Description: "Summarize usage and costs for an org over a window, grouped by user, feature, model, channel, or all.",
	}, s.usageSummary)
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "optimizeReport",
		Description: "Render the ROI markdown report for an org.",
	}, s.optimizeReport)
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "weeklyRecommendations",
		Description: "Weekly rule recommendations derived from the trailing week of decisions and learned weights.",
	}, s.weeklyRecommendations)
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "estimateCost",
		Description: "Estimate tokens, cost, and latency for a prompt across candidate models.",
	}, s.estimateCost)

	s.mcp = srv
	return s
}

// Run serves MCP over stdio until the context is canceled or the
// client hangs up.
func (s *Server) Run(ctx context.Context) error {
	zap.L().Info("mcpserver: serving stdio", zap.String("server", serverName))
	if err := s.mcp.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return eris.Wrap(err, "mcpserver: run")
	}
	return nil
}

type suggestArgs struct {
	Org       string                `json:"org" jsonschema:"organization the request is billed to"`
	User      string                `json:"user,omitempty" jsonschema:"user id for per-user weight learning"`
	Prompt    string                `json:"prompt,omitempty" jsonschema:"raw prompt text, measured and then discarded"`
	Features  *model.Features       `json:"features,omitempty" jsonschema:"pre-extracted feature record used instead of prompt"`
	Context   *routing.ContextFlags `json:"context,omitempty" jsonschema:"editor context hints"`
	Model     string                `json:"model,omitempty" jsonschema:"requested model, defaults to the configured model"`
	Feature   string                `json:"feature,omitempty" jsonschema:"feature tag for usage attribution"`
	SourceApp string                `json:"source_app,omitempty"`
}

func (s *Server) suggestRoute(ctx context.Context, _ *mcp.CallToolRequest, args suggestArgs) (*mcp.CallToolResult, any, error) {
	req := gateway.SuggestRequest{
		Org:            args.Org,
		User:           args.User,
		Prompt:         args.Prompt,
		Features:       args.Features,
		Feature:        args.Feature,
		SourceApp:      args.SourceApp,
		RequestedModel: args.Model,
	}
	if args.Context != nil {
		req.Context = *args.Context
	}
	resp, err := s.gw.SuggestRoute(ctx, req)
	if err != nil {
		return nil, nil, err
	}
	return toolResult(resp)
}

type outcomeArgs struct {
	DecisionID string  `json:"decision_id" jsonschema:"decision id returned by suggestRoute"`
	Org        string  `json:"org"`
	User       string  `json:"user,omitempty"`
	Route      string  `json:"route" jsonschema:"channel that served the request: web, agent, ask, or direct"`
	Outcome    string  `json:"outcome,omitempty" jsonschema:"qualitative outcome: good, neutral, or bad"`
	Utility    float64 `json:"utility,omitempty" jsonschema:"observed utility in [0,1], ignored when outcome is set"`
	Model      string  `json:"model,omitempty"`
	Feature    string  `json:"feature,omitempty"`
	SourceApp  string  `json:"source_app,omitempty"`
	TokensIn   int     `json:"tokens_in,omitempty"`
	TokensOut  int     `json:"tokens_out,omitempty"`
	CostUSD    float64 `json:"cost_usd,omitempty"`
	LatencyMS  int     `json:"latency_ms,omitempty"`
}

func (s *Server) recordOutcome(ctx context.Context, _ *mcp.CallToolRequest, args outcomeArgs) (*mcp.CallToolResult, any, error) {
	utility := args.Utility
	if args.Outcome != "" {
		var err error
		if utility, err = gateway.UtilityFromOutcome(args.Outcome); err != nil {
			return nil, nil, err
		}
	}
	resp, err := s.gw.RecordOutcome(ctx, gateway.OutcomeRequest{
		DecisionID: args.DecisionID,
		Org:        args.Org,
		User:       args.User,
		Channel:    model.Channel(args.Route),
		Utility:    utility,
		Model:      args.Model,
		Feature:    args.Feature,
		SourceApp:  args.SourceApp,
		TokensIn:   args.TokensIn,
		TokensOut:  args.TokensOut,
		CostUSD:    args.CostUSD,
		LatencyMS:  args.LatencyMS,
	})
	if err != nil {
		return nil, nil, err
	}
	return toolResult(resp)
}

type orgArgs struct {
	Org string `json:"org" jsonschema:"organization id"`
}

func (s *Server) budgetStatus(ctx context.Context, _ *mcp.CallToolRequest, args orgArgs) (*mcp.CallToolResult, any, error) {
	status, err := s.gw.GetBudgetStatus(ctx, args.Org)
	if err != nil {
		return nil, nil, err
	}
	return toolResult(status)
}

type usageArgs struct {
	Org   string `json:"org"`
	Since string `json:"since,omitempty" jsonschema:"window start, RFC 3339"`
	Until string `json:"until,omitempty" jsonschema:"window end, RFC 3339"`
	Days  int    `json:"days,omitempty" jsonschema:"trailing window in days when since/until are not set"`
	By    string `json:"by,omitempty" jsonschema:"group by user, feature, model, channel, or all"`
}

func (s *Server) usageSummary(ctx context.Context, _ *mcp.CallToolRequest, args usageArgs) (*mcp.CallToolResult, any, error) {
	since, until, err := usageWindow(args)
	if err != nil {
		return nil, nil, err
	}

	if args.By == "all" {
		overview, err := s.gw.GetUsageOverview(ctx, args.Org, since, until)
		if err != nil {
			return nil, nil, err
		}
		return toolResult(map[string]any{"org": args.Org, "overview": overview})
	}

	by := args.By
	if by == "" {
		by = analytics.ByUser
	}
	items, err := s.gw.GetUsageSummary(ctx, args.Org, since, until, by)
	if err != nil {
		return nil, nil, err
	}
	if items == nil {
		items = []model.UsageSummaryItem{}
	}
	return toolResult(map[string]any{"org": args.Org, "by": by, "items": items})
}

func usageWindow(args usageArgs) (time.Time, time.Time, error) {
	var since, until time.Time
	var err error
	if args.Since != "" {
		if since, err = time.Parse(time.RFC3339, args.Since); err != nil {
			return time.Time{}, time.Time{}, eris.Wrapf(err, "mcpserver: parse since %q", args.Since)
		}
	}
	if args.Until != "" {
		if until, err = time.Parse(time.RFC3339, args.Until); err != nil {
			return time.Time{}, time.Time{}, eris.Wrapf(err, "mcpserver: parse until %q", args.Until)
		}
	}
	if since.IsZero() && until.IsZero() && args.Days > 0 {
		until = time.Now().UTC()
		since = until.AddDate(0, 0, -args.Days)
	}
	return since, until, nil
}

func (s *Server) optimizeReport(ctx context.Context, _ *mcp.CallToolRequest, args orgArgs) (*mcp.CallToolResult, any, error) {
	markdown, err := s.gw.OptimizeReport(ctx, args.Org)
	if err != nil {
		return nil, nil, err
	}
	return toolResult(map[string]string{"org": args.Org, "markdown": markdown})
}

func (s *Server) weeklyRecommendations(ctx context.Context, _ *mcp.CallToolRequest, args orgArgs) (*mcp.CallToolResult, any, error) {
	recs, err := s.gw.WeeklyRecommendations(ctx, args.Org)
	if err != nil {
		return nil, nil, err
	}
	return toolResult(recs)
}

type estimateArgs struct {
	Prompt string   `json:"prompt" jsonschema:"prompt text to size, measured and then discarded"`
	Models []string `json:"models,omitempty" jsonschema:"candidate models, defaults to the stock table"`
}

func (s *Server) estimateCost(_ context.Context, _ *mcp.CallToolRequest, args estimateArgs) (*mcp.CallToolResult, any, error) {
	return toolResult(map[string]any{"estimates": s.gw.EstimateCost(args.Prompt, args.Models)})
}

// toolResult renders a response value as a JSON text block.
func toolResult(v any) (*mcp.CallToolResult, any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, nil, eris.Wrap(err, "mcpserver: encode result")
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(raw)}},
	}, nil, nil
}
