package storage

import (
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// TestMigrationsIdempotent opens the same on-disk database twice and checks
// the migration is not re-applied.
func TestMigrationsIdempotent(t *testing.T) {
	dir := t.TempDir()

	s1, err := Open(dir)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}
	v1, err := s1.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	s1.Close()

	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	defer s2.Close()

	v2, err := s2.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	if len(v1) == 0 || len(v1) != len(v2) {
		t.Errorf("migration count changed: %d -> %d", len(v1), len(v2))
	}
}

func TestSchemaObjectsExist(t *testing.T) {
	s := openTestStore(t)

	objects := map[string]string{
		"contacts":                         "table",
		"interactions":                     "table",
		"trust_insights":                   "table",
		"goals":                            "table",
		"contact_vectors":                  "table",
		"jobs":                             "table",
		"idx_interactions_contact_occurred": "index",
		"idx_trust_insights_tier":          "index",
		"idx_jobs_status_run_after":        "index",
	}
	for name, typ := range objects {
		var count int
		err := s.db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type = ? AND name = ?", typ, name).Scan(&count)
		if err != nil {
			t.Fatalf("querying sqlite_master for %s: %v", name, err)
		}
		if count != 1 {
			t.Errorf("%s %q not found", typ, name)
		}
	}
}

func TestEnqueueAndClaimJob(t *testing.T) {
	s := openTestStore(t)

	job := Job{ID: "j-claim-1", Type: JobTrustRecompute, PayloadJSON: `{"contact_id":"c1"}`}
	if err := s.EnqueueJob(job); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}

	n, err := s.PendingJobCount(JobTrustRecompute)
	if err != nil {
		t.Fatalf("PendingJobCount: %v", err)
	}
	if n != 1 {
		t.Errorf("PendingJobCount = %d, want 1", n)
	}

	got, err := s.ClaimNextJob([]string{JobTrustRecompute})
	if err != nil {
		t.Fatalf("ClaimNextJob: %v", err)
	}
	if got == nil {
		t.Fatal("ClaimNextJob returned nil")
	}
	if got.ID != job.ID || got.PayloadJSON != job.PayloadJSON {
		t.Errorf("claimed %+v, want id %q payload %q", got, job.ID, job.PayloadJSON)
	}
	if got.Status != "running" {
		t.Errorf("Status = %q, want running", got.Status)
	}
	if got.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want 3", got.MaxAttempts)
	}
}

func TestClaimNextJob_NothingDue(t *testing.T) {
	tests := []struct {
		name string
		jobs []Job
	}{
		{"empty queue", nil},
		{"future run_after", []Job{{ID: "j-future", Type: JobContactEmbed, PayloadJSON: `{}`, RunAfter: time.Now().Add(time.Hour)}}},
		{"other type", []Job{{ID: "j-other", Type: JobTrustRecompute, PayloadJSON: `{}`}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := openTestStore(t)
			for _, j := range tt.jobs {
				if err := s.EnqueueJob(j); err != nil {
					t.Fatalf("EnqueueJob: %v", err)
				}
			}
			got, err := s.ClaimNextJob([]string{JobContactEmbed})
			if err != nil {
				t.Fatalf("ClaimNextJob: %v", err)
			}
			if got != nil {
				t.Errorf("expected nil, got %+v", got)
			}
		})
	}
}

func TestClaimNextJob_SkipsRunning(t *testing.T) {
	s := openTestStore(t)

	for _, id := range []string{"j-first", "j-second"} {
		if err := s.EnqueueJob(Job{ID: id, Type: JobContactEmbed, PayloadJSON: `{}`}); err != nil {
			t.Fatalf("EnqueueJob %s: %v", id, err)
		}
		got, err := s.ClaimNextJob([]string{JobContactEmbed})
		if err != nil {
			t.Fatalf("ClaimNextJob: %v", err)
		}
		if got == nil || got.ID != id {
			t.Fatalf("claimed %+v, want %s", got, id)
		}
	}
}

func TestCompleteJob(t *testing.T) {
	s := openTestStore(t)

	if err := s.EnqueueJob(Job{ID: "j-complete", Type: JobContactEmbed, PayloadJSON: `{}`}); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}
	if _, err := s.ClaimNextJob([]string{JobContactEmbed}); err != nil {
		t.Fatalf("ClaimNextJob: %v", err)
	}
	if err := s.CompleteJob("j-complete"); err != nil {
		t.Fatalf("CompleteJob: %v", err)
	}
	if err := s.CompleteJob("missing"); err != ErrNotFound {
		t.Errorf("CompleteJob(missing) = %v, want ErrNotFound", err)
	}

	var status string
	if err := s.db.QueryRow(`SELECT status FROM jobs WHERE id = 'j-complete'`).Scan(&status); err != nil {
		t.Fatalf("SELECT: %v", err)
	}
	if status != "completed" {
		t.Errorf("status = %q, want completed", status)
	}
}

func TestFailJob_RetriesWithBackoff(t *testing.T) {
	s := openTestStore(t)

	if err := s.EnqueueJob(Job{ID: "j-retry", Type: JobContactEmbed, PayloadJSON: `{}`}); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}
	if _, err := s.ClaimNextJob([]string{JobContactEmbed}); err != nil {
		t.Fatalf("ClaimNextJob: %v", err)
	}

	before := time.Now().UTC()
	if err := s.FailJob("j-retry", "embed failed"); err != nil {
		t.Fatalf("FailJob: %v", err)
	}

	var status, lastError, runAfterStr string
	var attempts int
	err := s.db.QueryRow(`SELECT status, attempts, last_error, run_after FROM jobs WHERE id = 'j-retry'`).
		Scan(&status, &attempts, &lastError, &runAfterStr)
	if err != nil {
		t.Fatalf("SELECT: %v", err)
	}
	if status != "pending" || attempts != 1 || lastError != "embed failed" {
		t.Errorf("got status=%q attempts=%d last_error=%q", status, attempts, lastError)
	}
	runAfter, err := time.Parse(time.RFC3339, runAfterStr)
	if err != nil {
		t.Fatalf("parsing run_after: %v", err)
	}
	if !runAfter.After(before) {
		t.Errorf("run_after %v should be after %v", runAfter, before)
	}
}

func TestFailJob_MaxAttemptsReached(t *testing.T) {
	s := openTestStore(t)

	if err := s.EnqueueJob(Job{ID: "j-fail-max", Type: JobContactEmbed, PayloadJSON: `{}`, MaxAttempts: 1}); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}
	if _, err := s.ClaimNextJob([]string{JobContactEmbed}); err != nil {
		t.Fatalf("ClaimNextJob: %v", err)
	}
	if err := s.FailJob("j-fail-max", "fatal"); err != nil {
		t.Fatalf("FailJob: %v", err)
	}
	if err := s.FailJob("missing", "x"); err != ErrNotFound {
		t.Errorf("FailJob(missing) = %v, want ErrNotFound", err)
	}

	var status string
	if err := s.db.QueryRow(`SELECT status FROM jobs WHERE id = 'j-fail-max'`).Scan(&status); err != nil {
		t.Fatalf("SELECT: %v", err)
	}
	if status != "failed" {
		t.Errorf("status = %q, want failed", status)
	}
}
