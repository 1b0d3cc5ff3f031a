package rules

import (
	"errors"
	"fmt"

	"github.com/dvloznov/finance-client/internal/domain"
)

var (
	// ErrNoChanges is returned by Apply when the analysis planned nothing.
	ErrNoChanges = errors.New("no transactions match current rules")
	// ErrNotAnalyzed is returned by Apply without a prior analysis.
	ErrNotAnalyzed = errors.New("rules have not been analyzed")
)

const analyzeFailedMessage = "Failed to analyze transactions"

// userMessager is implemented by collaborator errors that carry a
// human-readable message from the backend.
type userMessager interface {
	UserMessage(fallback string) string
}

// AnalyzeError reports a failure while loading rules or transactions. Nothing
// has been persisted when it is returned.
type AnalyzeError struct {
	Kind domain.RuleKind
	Err  error
}

func (e *AnalyzeError) Error() string {
	return fmt.Sprintf("analyze %s rules: %v", e.Kind, e.Err)
}

func (e *AnalyzeError) Unwrap() error { return e.Err }

// UserMessage is the message shown to the user.
func (e *AnalyzeError) UserMessage() string { return analyzeFailedMessage }

// PersistError reports a rejected bulk update. The backend may or may not
// have applied part of it; the client cannot tell and does not retry.
type PersistError struct {
	Kind  domain.RuleKind
	Count int
	Err   error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("apply %s rules to %d transactions: %v", e.Kind, e.Count, e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }

// UserMessage returns the backend's message when it sent one.
func (e *PersistError) UserMessage() string {
	fallback := fmt.Sprintf("Failed to apply %s rules", e.Kind)
	var um userMessager
	if errors.As(e.Err, &um) {
		return um.UserMessage(fallback)
	}
	return fallback
}
