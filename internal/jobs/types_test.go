package jobs

import "testing"

func TestDefaultMaxRetries(t *testing.T) {
	tests := []struct {
		jobType JobType
		want    int
	}{
		{JobTypeApplyRules, 0},
		{JobTypeImportSave, 0},
		{JobTypeReportExport, 2},
		{JobTypeNotionSync, 2},
		{JobType("unknown"), 0},
	}

	for _, tt := range tests {
		t.Run(string(tt.jobType), func(t *testing.T) {
			if got := DefaultMaxRetries(tt.jobType); got != tt.want {
				t.Errorf("DefaultMaxRetries(%q) = %d, want %d", tt.jobType, got, tt.want)
			}
		})
	}
}

func TestNew(t *testing.T) {
	job := New(JobTypeApplyRules, map[string]string{"kind": "vendor"})

	if job.ID == "" {
		t.Error("expected job ID to be set")
	}
	if job.Status != JobStatusPending {
		t.Errorf("expected pending status, got %s", job.Status)
	}
	if job.Param("kind") != "vendor" {
		t.Errorf("expected kind param vendor, got %q", job.Param("kind"))
	}
	if job.MaxRetries != 0 {
		t.Errorf("expected no retries for apply_rules, got %d", job.MaxRetries)
	}
	if job.Finished() {
		t.Error("new job should not be finished")
	}
}
