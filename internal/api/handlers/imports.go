package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/dvloznov/finance-client/internal/api/middleware"
	"github.com/dvloznov/finance-client/internal/batchimport"
	"github.com/dvloznov/finance-client/internal/domain"
	"github.com/dvloznov/finance-client/internal/jobs"
	"github.com/dvloznov/finance-client/internal/workflow"
)

// MaxUploadBytes bounds a multipart import request.
const MaxUploadBytes = 32 << 20

// AccountSource loads the account list a new session resolves against.
type AccountSource interface {
	FetchAccounts(ctx context.Context) ([]domain.Account, error)
}

// ImportsHandler handles batch CSV import endpoints.
type ImportsHandler struct {
	registry  *batchimport.Registry
	accounts  AccountSource
	publisher jobs.Publisher
	log       zerolog.Logger
}

// NewImportsHandler creates a new imports handler.
func NewImportsHandler(registry *batchimport.Registry, accounts AccountSource, publisher jobs.Publisher, log zerolog.Logger) *ImportsHandler {
	return &ImportsHandler{
		registry:  registry,
		accounts:  accounts,
		publisher: publisher,
		log:       log,
	}
}

func (h *ImportsHandler) session(w http.ResponseWriter, r *http.Request) (*batchimport.Session, bool) {
	s, ok := h.registry.Get(r.PathValue("id"))
	if !ok {
		middleware.WriteError(w, http.StatusNotFound, "Import session not found")
		return nil, false
	}
	return s, true
}

// CreateSession handles POST /api/imports
// The request is multipart with one or more "files" parts.
func (h *ImportsHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBytes)
	if err := r.ParseMultipartForm(MaxUploadBytes); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid multipart body")
		return
	}

	var files []batchimport.File
	for _, fh := range r.MultipartForm.File["files"] {
		f, err := fh.Open()
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Failed to read "+fh.Filename)
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Failed to read "+fh.Filename)
			return
		}
		files = append(files, batchimport.File{Name: fh.Filename, Data: data})
	}
	if len(files) == 0 {
		middleware.WriteError(w, http.StatusBadRequest, batchimport.ErrNoItems.Error())
		return
	}

	accounts, err := h.accounts.FetchAccounts(ctx)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load accounts")
		writeWorkflowError(w, err, "Failed to load accounts")
		return
	}

	session := h.registry.Open(accounts)
	skipped, err := session.AddFiles(files)
	if err != nil {
		writeWorkflowError(w, err, "Failed to add files")
		return
	}

	h.log.Info().Str("session_id", session.ID).Int("files", len(files)).Int("skipped", len(skipped)).Msg("Import session opened")

	if skipped == nil {
		skipped = []string{}
	}
	middleware.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"session":  session.Snapshot(),
		"accounts": accounts,
		"skipped":  skipped,
	})
}

// GetSession handles GET /api/imports/{id}
func (h *ImportsHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	middleware.WriteJSON(w, http.StatusOK, s.Snapshot())
}

type setAccountRequest struct {
	AccountID int64            `json:"accountId"`
	BankName  *domain.BankName `json:"bankName"`
}

// SetAccount handles PUT /api/imports/{id}/items/{index}/account
func (h *ImportsHandler) SetAccount(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	index, ok := pathIndex(r, "index")
	if !ok {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid item index")
		return
	}

	var req setAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := s.SetSelection(index, req.AccountID, req.BankName); err != nil {
		writeWorkflowError(w, err, "Failed to update item")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, s.Snapshot())
}

// RemoveItem handles DELETE /api/imports/{id}/items/{index}
func (h *ImportsHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	index, ok := pathIndex(r, "index")
	if !ok {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid item index")
		return
	}

	if err := s.RemoveItem(index); err != nil {
		writeWorkflowError(w, err, "Failed to remove item")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, s.Snapshot())
}

// Preview handles POST /api/imports/{id}/preview
// Per-item failures are reported on the items; the request only fails when
// nothing could be previewed.
func (h *ImportsHandler) Preview(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	result, err := s.UploadAndPreview(r.Context())
	if errors.Is(err, batchimport.ErrAllUploadsFailed) {
		middleware.WriteJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"error":   err.Error(),
			"result":  result,
			"session": s.Snapshot(),
		})
		return
	}
	if err != nil {
		writeWorkflowError(w, err, "Failed to upload files")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"result":  result,
		"session": s.Snapshot(),
	})
}

// Save handles POST /api/imports/{id}/save
func (h *ImportsHandler) Save(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	job := workflow.NewImportSaveJob(s.ID)
	if err := h.publisher.Publish(r.Context(), job); err != nil {
		h.log.Error().Err(err).Str("session_id", s.ID).Msg("Failed to enqueue import save job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue job")
		return
	}

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"jobId":  job.ID,
		"status": string(job.Status),
	})
}

// CloseSession handles DELETE /api/imports/{id}
func (h *ImportsHandler) CloseSession(w http.ResponseWriter, r *http.Request) {
	if !h.registry.Close(r.PathValue("id")) {
		middleware.WriteError(w, http.StatusNotFound, "Import session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
