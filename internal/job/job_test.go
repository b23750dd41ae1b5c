package job

import "testing"

func TestNew(t *testing.T) {
	j := New("vacation photos")
	if j.ID == "" {
		t.Error("expected job to have an ID")
	}
	if j.Status != StatusUploading {
		t.Errorf("expected status %s, got %s", StatusUploading, j.Status)
	}
	if j.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be set")
	}
}

func TestJob_TransitionTo(t *testing.T) {
	tests := []struct {
		name    string
		from    Status
		to      Status
		wantErr bool
	}{
		{"uploading to extracting", StatusUploading, StatusExtracting, false},
		{"extracting to labeling", StatusExtracting, StatusLabeling, false},
		{"labeling to clustering", StatusLabeling, StatusClustering, false},
		{"clustering to merging", StatusClustering, StatusMerging, false},
		{"merging to ranking", StatusMerging, StatusRanking, false},
		{"ranking to enhancing", StatusRanking, StatusEnhancing, false},
		{"enhancing to completed", StatusEnhancing, StatusCompleted, false},
		{"uploading to failed", StatusUploading, StatusFailed, false},
		{"ranking to failed", StatusRanking, StatusFailed, false},
		{"skips a stage", StatusUploading, StatusLabeling, true},
		{"completed is terminal", StatusCompleted, StatusExtracting, true},
		{"failed is terminal", StatusFailed, StatusExtracting, true},
		{"backwards transition", StatusRanking, StatusLabeling, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j := New("")
			j.Status = tt.from
			err := j.TransitionTo(tt.to)
			if tt.wantErr && err == nil {
				t.Error("expected error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tt.wantErr && j.Status != tt.to {
				t.Errorf("expected status %s, got %s", tt.to, j.Status)
			}
		})
	}
}

func TestJob_TransitionTo_ResetsProgress(t *testing.T) {
	j := New("")
	j.UpdateProgress(5, 10)
	if err := j.TransitionTo(StatusExtracting); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if j.ProcessedFiles != 0 {
		t.Errorf("expected processed files reset to 0, got %d", j.ProcessedFiles)
	}
}

func TestJob_Fail_PreservesProgress(t *testing.T) {
	j := New("")
	j.Status = StatusLabeling
	j.UpdateProgress(3, 10)

	if err := j.Fail("describe call exhausted retries"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if j.Status != StatusFailed {
		t.Errorf("expected status failed, got %s", j.Status)
	}
	if j.ProcessedFiles != 3 {
		t.Errorf("expected processed files preserved at 3, got %d", j.ProcessedFiles)
	}
	if j.Error == "" {
		t.Error("expected error message to be set")
	}
}

func TestJob_Fail_AlreadyTerminal(t *testing.T) {
	j := New("")
	j.Status = StatusCompleted
	if err := j.Fail("too late"); err == nil {
		t.Error("expected error failing an already-terminal job")
	}
}

func TestJob_UpdateProgress_ClampsToInvariant(t *testing.T) {
	j := New("")
	j.UpdateProgress(15, 10)
	if j.ProcessedFiles != 10 {
		t.Errorf("expected processed files clamped to total (10), got %d", j.ProcessedFiles)
	}

	j.UpdateProgress(-1, 10)
	if j.ProcessedFiles != 0 {
		t.Errorf("expected negative processed files clamped to 0, got %d", j.ProcessedFiles)
	}
}

func TestJob_Clone_IsIndependent(t *testing.T) {
	j := New("original")
	clone := j.Clone()
	clone.Name = "mutated"
	if j.Name == "mutated" {
		t.Error("expected clone mutation not to affect original")
	}
}
