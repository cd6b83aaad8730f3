package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/rahulraonatarajan/prompt-go-mcp/internal/analytics"
	"github.com/rahulraonatarajan/prompt-go-mcp/internal/gateway"
	"github.com/rahulraonatarajan/prompt-go-mcp/internal/model"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSuggestRoute(w http.ResponseWriter, r *http.Request) {
	var req gateway.SuggestRequest
	if !decode(w, r, &req) {
		return
	}
	resp, err := s.gw.SuggestRoute(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleRecordOutcome accepts either a numeric utility or a qualitative
// outcome label; the label wins when both are present.
func (s *Server) handleRecordOutcome(w http.ResponseWriter, r *http.Request) {
	var req struct {
		gateway.OutcomeRequest
		Outcome string `json:"outcome,omitempty"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.Outcome != "" {
		utility, err := gateway.UtilityFromOutcome(req.Outcome)
		if err != nil {
			writeError(w, err)
			return
		}
		req.OutcomeRequest.Utility = utility
	}
	resp, err := s.gw.RecordOutcome(r.Context(), req.OutcomeRequest)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleEstimate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Prompt string   `json:"prompt"`
		Models []string `json:"models,omitempty"`
	}
	if !decode(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"estimates": s.gw.EstimateCost(req.Prompt, req.Models),
	})
}

func (s *Server) handleBudgetStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.gw.GetBudgetStatus(r.Context(), chi.URLParam(r, "org"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleBudgetHistory(w http.ResponseWriter, r *http.Request) {
	org := chi.URLParam(r, "org")
	months, ok := intQuery(w, r, "months", 12)
	if !ok {
		return
	}
	entries, err := s.gw.GetBudgetHistory(r.Context(), org, months)
	if err != nil {
		writeError(w, err)
		return
	}
	if entries == nil {
		entries = []model.LedgerEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"org": org, "entries": entries})
}

func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	org := chi.URLParam(r, "org")
	days, ok := intQuery(w, r, "days", 30)
	if !ok {
		return
	}
	until := time.Now().UTC()
	since := until.AddDate(0, 0, -days)

	by := r.URL.Query().Get("by")
	if by == "all" {
		overview, err := s.gw.GetUsageOverview(r.Context(), org, since, until)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"org": org, "days": days, "overview": overview})
		return
	}
	if by == "" {
		by = analytics.ByUser
	}
	if !analytics.ValidDimension(by) {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error": "by must be one of user, feature, model, channel, or all",
		})
		return
	}
	items, err := s.gw.GetUsageSummary(r.Context(), org, since, until, by)
	if err != nil {
		writeError(w, err)
		return
	}
	if items == nil {
		items = []model.UsageSummaryItem{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"org": org, "days": days, "by": by, "items": items})
}

func (s *Server) handleTeamMetrics(w http.ResponseWriter, r *http.Request) {
	org := chi.URLParam(r, "org")
	days, ok := intQuery(w, r, "days", 7)
	if !ok {
		return
	}
	metrics, err := s.gw.TeamMetrics(r.Context(), org, days)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, metrics)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	org := chi.URLParam(r, "org")
	switch typ := r.URL.Query().Get("type"); typ {
	case "", "cost":
		report, err := s.gw.CostReport(r.Context(), org)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, report)
	case "optimize":
		markdown, err := s.gw.OptimizeReport(r.Context(), org)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"org": org, "markdown": markdown})
	default:
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error": "type must be cost or optimize",
		})
	}
}

func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	recs, err := s.gw.WeeklyRecommendations(r.Context(), chi.URLParam(r, "org"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

// handleImportOutcomes backfills historical usage rows. Spend and
// weights stay untouched; only the usage log grows.
func (s *Server) handleImportOutcomes(w http.ResponseWriter, r *http.Request) {
	var rows []model.Outcome
	if !decode(w, r, &rows) {
		return
	}
	n, err := s.gw.ImportOutcomes(r.Context(), chi.URLParam(r, "org"), rows)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"imported": n})
}

// intQuery parses an integer query parameter, falling back when the
// parameter is absent and answering 400 when it is malformed.
func intQuery(w http.ResponseWriter, r *http.Request, name string, fallback int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error": name + " must be a non-negative integer",
		})
		return 0, false
	}
	return n, true
}
