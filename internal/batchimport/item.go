// Package batchimport drives a set of CSV files through bank detection,
// account resolution, upload with preview and sequential save. Each file is
// tracked independently so one failure never affects its siblings.
package batchimport

import (
	"github.com/dvloznov/finance-client/internal/domain"
)

// Status is the lifecycle state of one item.
type Status string

const (
	StatusPending   Status = "pending"
	StatusUploading Status = "uploading"
	StatusReady     Status = "ready"
	StatusSaving    Status = "saving"
	StatusSuccess   Status = "success"
	StatusError     Status = "error"
)

// Busy reports whether a request for the item is in flight.
func (s Status) Busy() bool { return s == StatusUploading || s == StatusSaving }

// Step is the position of a session in the import workflow.
type Step string

const (
	StepSelect  Step = "select"
	StepPreview Step = "preview"
	StepDone    Step = "done"
)

const (
	uploadFailedMessage = "Failed to parse CSV file. Please check the format and try again."
	saveFailedMessage   = "Failed to save transactions. Please try again."
)

// File is a file chosen for import.
type File struct {
	Name string
	Data []byte
}

// Item is one file of a batch.
type Item struct {
	ID         string                      `json:"id"`
	FileName   string                      `json:"fileName"`
	Size       int                         `json:"size"`
	AccountID  *int64                      `json:"accountId"`
	BankName   *domain.BankName            `json:"bankName"`
	Previews   []domain.TransactionPreview `json:"previews"`
	Status     Status                      `json:"status"`
	Error      string                      `json:"error,omitempty"`
	Message    string                      `json:"message,omitempty"` // backend confirmation after save
	ArchiveURI string                      `json:"archiveUri,omitempty"`

	data []byte
}

// Resolved reports whether both account and bank format are chosen.
func (it *Item) Resolved() bool {
	return it.AccountID != nil && it.BankName != nil
}

// snapshot returns a copy that shares no mutable state with it.
func (it *Item) snapshot() Item {
	cp := *it
	if it.AccountID != nil {
		id := *it.AccountID
		cp.AccountID = &id
	}
	if it.BankName != nil {
		b := *it.BankName
		cp.BankName = &b
	}
	cp.Previews = append([]domain.TransactionPreview(nil), it.Previews...)
	cp.data = nil
	return cp
}

// resetForUpload returns a finished item to pending after its selection
// changed.
func (it *Item) resetForUpload() {
	if it.Status == StatusError || it.Status == StatusReady {
		it.Status = StatusPending
		it.Error = ""
		it.Previews = nil
	}
}
