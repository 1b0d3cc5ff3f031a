package inmemory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dvloznov/finance-client/internal/jobs"
)

func TestStore_SaveAndGet(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	job := jobs.New(jobs.JobTypeReportExport, map[string]string{"range": "ytd"})
	if err := store.SaveJob(ctx, job); err != nil {
		t.Fatalf("SaveJob failed: %v", err)
	}

	// Mutating the original must not leak into the store.
	job.Status = jobs.JobStatusRunning

	got, err := store.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetJob failed: %v", err)
	}
	if got.Status != jobs.JobStatusPending {
		t.Errorf("expected stored status pending, got %s", got.Status)
	}
	if got.Param("range") != "ytd" {
		t.Errorf("expected range param ytd, got %q", got.Param("range"))
	}
}

func TestStore_SaveWithoutID(t *testing.T) {
	store := NewStore()
	if err := store.SaveJob(context.Background(), &jobs.Job{}); err == nil {
		t.Fatal("expected error for job without ID")
	}
}

func TestStore_GetUnknown(t *testing.T) {
	store := NewStore()
	_, err := store.GetJob(context.Background(), "missing")
	if !errors.Is(err, jobs.ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
}

func TestStore_ListJobs(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	seed := []*jobs.Job{
		{ID: "a", Type: jobs.JobTypeApplyRules, Status: jobs.JobStatusCompleted, CreatedAt: base},
		{ID: "b", Type: jobs.JobTypeApplyRules, Status: jobs.JobStatusFailed, CreatedAt: base.Add(time.Minute)},
		{ID: "c", Type: jobs.JobTypeNotionSync, Status: jobs.JobStatusCompleted, CreatedAt: base.Add(2 * time.Minute)},
	}
	for _, j := range seed {
		if err := store.SaveJob(ctx, j); err != nil {
			t.Fatalf("SaveJob failed: %v", err)
		}
	}

	tests := []struct {
		name   string
		filter jobs.JobFilter
		want   []string
	}{
		{"all newest first", jobs.JobFilter{}, []string{"c", "b", "a"}},
		{"by type", jobs.JobFilter{Type: jobs.JobTypeApplyRules}, []string{"b", "a"}},
		{"by status", jobs.JobFilter{Status: jobs.JobStatusCompleted}, []string{"c", "a"}},
		{"limit", jobs.JobFilter{Limit: 1}, []string{"c"}},
		{"offset", jobs.JobFilter{Offset: 1, Limit: 1}, []string{"b"}},
		{"offset past end", jobs.JobFilter{Offset: 5}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.ListJobs(ctx, tt.filter)
			if err != nil {
				t.Fatalf("ListJobs failed: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("expected %d jobs, got %d", len(tt.want), len(got))
			}
			for i, id := range tt.want {
				if got[i].ID != id {
					t.Errorf("position %d: expected %s, got %s", i, id, got[i].ID)
				}
			}
		})
	}
}

func TestStore_UpdateJobStatus(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	job := jobs.New(jobs.JobTypeImportSave, nil)
	_ = store.SaveJob(ctx, job)

	if err := store.UpdateJobStatus(ctx, job.ID, jobs.JobStatusFailed, "boom"); err != nil {
		t.Fatalf("UpdateJobStatus failed: %v", err)
	}

	got, _ := store.GetJob(ctx, job.ID)
	if got.Status != jobs.JobStatusFailed || got.Error != "boom" {
		t.Errorf("unexpected job state: %+v", got)
	}

	if err := store.UpdateJobStatus(ctx, "missing", jobs.JobStatusFailed, ""); !errors.Is(err, jobs.ErrJobNotFound) {
		t.Errorf("expected ErrJobNotFound, got %v", err)
	}
}

func TestStore_Prune(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	cutoff := time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC)
	old := cutoff.Add(-time.Hour)
	recent := cutoff.Add(time.Hour)

	seed := []*jobs.Job{
		{ID: "old-done", Status: jobs.JobStatusCompleted, CompletedAt: &old},
		{ID: "old-failed", Status: jobs.JobStatusFailed, CompletedAt: &old},
		{ID: "recent-done", Status: jobs.JobStatusCompleted, CompletedAt: &recent},
		{ID: "retrying", Status: jobs.JobStatusRetrying, CompletedAt: &old},
		{ID: "pending", Status: jobs.JobStatusPending},
	}
	for _, j := range seed {
		_ = store.SaveJob(ctx, j)
	}

	if n := store.Prune(cutoff); n != 2 {
		t.Fatalf("expected 2 pruned jobs, got %d", n)
	}
	for _, id := range []string{"recent-done", "retrying", "pending"} {
		if _, err := store.GetJob(ctx, id); err != nil {
			t.Errorf("%s should be kept: %v", id, err)
		}
	}
	if _, err := store.GetJob(ctx, "old-done"); !errors.Is(err, jobs.ErrJobNotFound) {
		t.Errorf("old-done should be pruned, got %v", err)
	}
}
