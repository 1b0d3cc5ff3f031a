package handlers

import (
	"net/http"
	"strconv"
	"time"

	"cloud.google.com/go/civil"
	"github.com/rs/zerolog"

	"github.com/dvloznov/finance-client/internal/api/middleware"
	"github.com/dvloznov/finance-client/internal/jobs"
	"github.com/dvloznov/finance-client/internal/reports"
	"github.com/dvloznov/finance-client/internal/workflow"
)

// ReportsHandler handles report endpoints.
type ReportsHandler struct {
	source    reports.TransactionSource
	publisher jobs.Publisher
	log       zerolog.Logger

	// ExportEnabled and NotionEnabled gate the job endpoints.
	ExportEnabled bool
	NotionEnabled bool

	now func() time.Time
}

// NewReportsHandler creates a new reports handler.
func NewReportsHandler(source reports.TransactionSource, publisher jobs.Publisher, log zerolog.Logger) *ReportsHandler {
	return &ReportsHandler{
		source:    source,
		publisher: publisher,
		log:       log,
		now:       time.Now,
	}
}

// rangeFromQuery resolves ?preset= or ?start=&end=, defaulting to this month.
func (h *ReportsHandler) rangeFromQuery(r *http.Request) (reports.Range, error) {
	q := r.URL.Query()
	if preset := q.Get("preset"); preset != "" {
		return reports.Preset(preset).Resolve(civil.DateOf(h.now()))
	}
	start, end := q.Get("start"), q.Get("end")
	if start == "" && end == "" {
		return reports.DefaultRange(h.now()), nil
	}
	return reports.ParseRange(start, end)
}

// GetReport handles GET /api/reports
func (h *ReportsHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	rng, err := h.rangeFromQuery(r)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	report, err := reports.Generate(r.Context(), h.source, rng)
	if err != nil {
		h.log.Error().Err(err).Str("start", rng.StartString()).Str("end", rng.EndString()).Msg("Failed to generate report")
		writeWorkflowError(w, err, "Failed to load report data")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, report)
}

// Export handles POST /api/reports/export
func (h *ReportsHandler) Export(w http.ResponseWriter, r *http.Request) {
	if !h.ExportEnabled {
		middleware.WriteError(w, http.StatusNotImplemented, "BigQuery export is not configured")
		return
	}

	rng, err := h.rangeFromQuery(r)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.enqueue(w, r, workflow.NewReportExportJob(rng))
}

// SyncNotion handles POST /api/reports/notion
func (h *ReportsHandler) SyncNotion(w http.ResponseWriter, r *http.Request) {
	if !h.NotionEnabled {
		middleware.WriteError(w, http.StatusNotImplemented, "Notion sync is not configured")
		return
	}

	rng, err := h.rangeFromQuery(r)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	dryRun, _ := strconv.ParseBool(r.URL.Query().Get("dryRun"))
	h.enqueue(w, r, workflow.NewNotionSyncJob(rng, dryRun))
}

func (h *ReportsHandler) enqueue(w http.ResponseWriter, r *http.Request, job *jobs.Job) {
	if err := h.publisher.Publish(r.Context(), job); err != nil {
		h.log.Error().Err(err).Str("job_type", string(job.Type)).Msg("Failed to enqueue job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue job")
		return
	}

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"jobId":  job.ID,
		"status": string(job.Status),
	})
}
