// Package ingest runs the background job queue: contact embedding and trust
// recomputation, plus PDF bio extraction.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/rhizhq/rhiz/internal/storage"
)

// JobStore abstracts the job queue and the contact lookups jobs need.
type JobStore interface {
	EnqueueJob(job storage.Job) error
	ClaimNextJob(types []string) (*storage.Job, error)
	CompleteJob(id string) error
	FailJob(id string, errMsg string) error
	GetContact(id string) (storage.Contact, error)
}

// ContactIndexer embeds a contact profile into the vector store.
type ContactIndexer interface {
	Index(ctx context.Context, c storage.Contact) error
}

// TrustRecomputer refreshes one contact's trust insight.
type TrustRecomputer interface {
	Recompute(ctx context.Context, contactID string) (storage.TrustInsight, error)
}

var jobTypes = []string{storage.JobContactEmbed, storage.JobTrustRecompute}

type contactPayload struct {
	ContactID string `json:"contact_id"`
}

// EnqueueEmbed schedules (re)embedding of a contact profile.
func EnqueueEmbed(store JobStore, contactID string) error {
	return enqueue(store, storage.JobContactEmbed, contactID)
}

// EnqueueRecompute schedules a trust recompute for a contact.
func EnqueueRecompute(store JobStore, contactID string) error {
	return enqueue(store, storage.JobTrustRecompute, contactID)
}

func enqueue(store JobStore, jobType, contactID string) error {
	payload, err := json.Marshal(contactPayload{ContactID: contactID})
	if err != nil {
		return err
	}
	if err := store.EnqueueJob(storage.Job{
		ID:          uuid.New().String(),
		Type:        jobType,
		PayloadJSON: string(payload),
	}); err != nil {
		return fmt.Errorf("enqueueing %s for %s: %w", jobType, contactID, err)
	}
	return nil
}

// Worker processes contact_embed and trust_recompute jobs from the SQLite queue.
type Worker struct {
	store   JobStore
	indexer ContactIndexer
	trust   TrustRecomputer
	poll    time.Duration
	logger  *slog.Logger
}

// NewWorker creates a Worker. If pollInterval is <= 0, it defaults to 500ms.
func NewWorker(store JobStore, indexer ContactIndexer, trust TrustRecomputer, pollInterval time.Duration) *Worker {
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	return &Worker{
		store:   store,
		indexer: indexer,
		trust:   trust,
		poll:    pollInterval,
		logger:  slog.Default().With("component", "worker"),
	}
}

// Run polls for jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		done, err := w.RunOnce(ctx)
		if err != nil {
			w.logger.Error("worker iteration failed", "error", err)
		}
		if done {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.poll):
		}
	}
}

// RunOnce claims and processes a single job.
// Returns true if a job was processed (regardless of success/failure).
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.store.ClaimNextJob(jobTypes)
	if err != nil {
		return false, fmt.Errorf("claiming job: %w", err)
	}
	if job == nil {
		return false, nil
	}

	if err := w.processJob(ctx, job); err != nil {
		w.logger.Warn("job failed", "job_id", job.ID, "type", job.Type, "attempt", job.Attempts+1, "error", err)
		if failErr := w.store.FailJob(job.ID, err.Error()); failErr != nil {
			w.logger.Error("failed to mark job as failed", "job_id", job.ID, "error", failErr)
		}
		return true, nil
	}

	if err := w.store.CompleteJob(job.ID); err != nil {
		return true, fmt.Errorf("completing job %s: %w", job.ID, err)
	}
	return true, nil
}

func (w *Worker) processJob(ctx context.Context, job *storage.Job) error {
	var payload contactPayload
	if err := json.Unmarshal([]byte(job.PayloadJSON), &payload); err != nil {
		return fmt.Errorf("parsing payload: %w", err)
	}
	if payload.ContactID == "" {
		return fmt.Errorf("payload has no contact_id")
	}

	switch job.Type {
	case storage.JobContactEmbed:
		c, err := w.store.GetContact(payload.ContactID)
		if errors.Is(err, storage.ErrNotFound) {
			w.logger.Info("contact gone, dropping embed job", "job_id", job.ID, "contact_id", payload.ContactID)
			return nil
		}
		if err != nil {
			return fmt.Errorf("loading contact %s: %w", payload.ContactID, err)
		}
		if err := w.indexer.Index(ctx, c); err != nil {
			return fmt.Errorf("indexing contact %s: %w", c.ID, err)
		}
		return nil

	case storage.JobTrustRecompute:
		ti, err := w.trust.Recompute(ctx, payload.ContactID)
		if errors.Is(err, storage.ErrNotFound) {
			w.logger.Info("contact gone, dropping recompute job", "job_id", job.ID, "contact_id", payload.ContactID)
			return nil
		}
		if err != nil {
			return err
		}
		w.logger.Debug("trust updated", "contact_id", payload.ContactID, "tier", ti.Tier)
		return nil

	default:
		return fmt.Errorf("unknown job type %q", job.Type)
	}
}
