package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/dvloznov/finance-client/internal/api/middleware"
	"github.com/dvloznov/finance-client/internal/batchimport"
	"github.com/dvloznov/finance-client/internal/financeapi"
	"github.com/dvloznov/finance-client/internal/rules"
)

const sessionExpiredMessage = "Your session has expired. Please sign in again."

// writeWorkflowError maps a workflow error to a status and user message.
func writeWorkflowError(w http.ResponseWriter, err error, fallback string) {
	var (
		analyzeErr *rules.AnalyzeError
		persistErr *rules.PersistError
	)

	switch {
	case financeapi.IsUnauthorized(err):
		middleware.WriteError(w, http.StatusUnauthorized, sessionExpiredMessage)
	case errors.As(err, &analyzeErr):
		middleware.WriteError(w, http.StatusBadGateway, analyzeErr.UserMessage())
	case errors.As(err, &persistErr):
		middleware.WriteError(w, http.StatusBadGateway, persistErr.UserMessage())
	case errors.Is(err, batchimport.ErrSessionClosed):
		middleware.WriteError(w, http.StatusGone, err.Error())
	case errors.Is(err, batchimport.ErrItemNotFound):
		middleware.WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, batchimport.ErrItemBusy), errors.Is(err, rules.ErrPlanChanged):
		middleware.WriteError(w, http.StatusConflict, err.Error())
	case errors.Is(err, batchimport.ErrNoItems),
		errors.Is(err, batchimport.ErrUnresolvedItems),
		errors.Is(err, batchimport.ErrNothingToSave),
		errors.Is(err, batchimport.ErrUnknownAccount),
		errors.Is(err, batchimport.ErrInvalidBank):
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		middleware.WriteError(w, http.StatusServiceUnavailable, "The request was interrupted. Please try again.")
	default:
		middleware.WriteError(w, http.StatusBadGateway, fallback)
	}
}

// pathIndex parses a non-negative integer path value.
func pathIndex(r *http.Request, name string) (int, bool) {
	n, err := strconv.Atoi(r.PathValue(name))
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
