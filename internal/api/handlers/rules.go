package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/dvloznov/finance-client/internal/api/middleware"
	"github.com/dvloznov/finance-client/internal/domain"
	"github.com/dvloznov/finance-client/internal/jobs"
	"github.com/dvloznov/finance-client/internal/logger"
	"github.com/dvloznov/finance-client/internal/rules"
	"github.com/dvloznov/finance-client/internal/workflow"
)

// RuleAnalyzer plans and persists rule sets. *rules.Applier implements it.
type RuleAnalyzer interface {
	Analyze(ctx context.Context, kind domain.RuleKind) (*rules.Analysis, error)
	Apply(ctx context.Context, analysis *rules.Analysis) (int, error)
}

// RulesHandler handles rule application endpoints.
type RulesHandler struct {
	analyzer  RuleAnalyzer
	publisher jobs.Publisher
	log       zerolog.Logger
}

// NewRulesHandler creates a new rules handler.
func NewRulesHandler(analyzer RuleAnalyzer, publisher jobs.Publisher, log zerolog.Logger) *RulesHandler {
	return &RulesHandler{
		analyzer:  analyzer,
		publisher: publisher,
		log:       log,
	}
}

type previewResponse struct {
	Kind        domain.RuleKind            `json:"kind"`
	PlanID      string                     `json:"planId"`
	RuleCount   int                        `json:"ruleCount"`
	Scanned     int                        `json:"scanned"`
	Count       int                        `json:"count"`
	LargeUpdate bool                       `json:"largeUpdate"`
	Changes     []domain.RuleChangePreview `json:"changes"`
}

// Preview handles GET /api/rules/{kind}/preview
func (h *RulesHandler) Preview(w http.ResponseWriter, r *http.Request) {
	kind, err := domain.ParseRuleKind(r.PathValue("kind"))
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	analysis, err := h.analyzer.Analyze(r.Context(), kind)
	if err != nil {
		writeWorkflowError(w, err, "Failed to analyze transactions")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, newPreviewResponse(analysis))
}

func newPreviewResponse(analysis *rules.Analysis) previewResponse {
	changes := analysis.Previews()
	if changes == nil {
		changes = []domain.RuleChangePreview{}
	}
	return previewResponse{
		Kind:        analysis.Kind,
		PlanID:      analysis.Fingerprint(),
		RuleCount:   analysis.RuleCount,
		Scanned:     analysis.Scanned,
		Count:       len(changes),
		LargeUpdate: analysis.LargeUpdate,
		Changes:     changes,
	}
}

type applyRequest struct {
	PlanID string `json:"planId"`
}

// planID reads the confirmed plan from ?planId= or a JSON body.
func planID(r *http.Request) (string, error) {
	if id := r.URL.Query().Get("planId"); id != "" {
		return id, nil
	}
	var req applyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return req.PlanID, nil
}

// Apply handles POST /api/rules/{kind}/apply
// The request names the plan the user confirmed by its planId. The plan is
// rebuilt from a fresh snapshot and persisted only when it still matches;
// otherwise 409 carries the fresh preview. With ?async=true the work is
// queued and the job ID returned instead.
func (h *RulesHandler) Apply(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	kind, err := domain.ParseRuleKind(r.PathValue("kind"))
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	plan, err := planID(r)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if plan == "" {
		middleware.WriteError(w, http.StatusBadRequest, "planId is required; preview the rules first")
		return
	}

	if async, _ := strconv.ParseBool(r.URL.Query().Get("async")); async {
		job := workflow.NewApplyRulesJob(kind, plan)
		if err := h.publisher.Publish(ctx, job); err != nil {
			h.log.Error().Err(err).Msg("Failed to enqueue apply rules job")
			middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue job")
			return
		}
		middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
			"jobId":  job.ID,
			"status": string(job.Status),
		})
		return
	}

	analysis, err := h.analyzer.Analyze(ctx, kind)
	if err != nil {
		writeWorkflowError(w, err, "Failed to analyze transactions")
		return
	}

	result := rules.ApplyResult{
		Kind:        kind,
		Scanned:     analysis.Scanned,
		Planned:     len(analysis.Changes),
		LargeUpdate: analysis.LargeUpdate,
	}
	if analysis.Empty() {
		result.NoChanges = true
		middleware.WriteJSON(w, http.StatusOK, result)
		return
	}

	if ok, _ := rules.ConfirmPlan(plan)(ctx, analysis); !ok {
		log.Warn().Str("rule_kind", string(kind)).Int("planned", len(analysis.Changes)).Msg("Plan changed since preview")
		middleware.WriteJSON(w, http.StatusConflict, planChangedResponse{
			Error:   rules.ErrPlanChanged.Error(),
			Preview: newPreviewResponse(analysis),
		})
		return
	}

	result.Confirmed = true
	result.Updated, err = h.analyzer.Apply(ctx, analysis)
	if err != nil {
		writeWorkflowError(w, err, "Failed to apply "+string(kind)+" rules")
		return
	}

	log.Info().Str("rule_kind", string(kind)).Int("updated", result.Updated).Msg("Rules applied from console")
	middleware.WriteJSON(w, http.StatusOK, result)
}

type planChangedResponse struct {
	Error   string          `json:"error"`
	Preview previewResponse `json:"preview"`
}
