// Package trust keeps stored trust insights in step with interaction history.
package trust

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rhizhq/rhiz/internal/scoring"
	"github.com/rhizhq/rhiz/internal/storage"
)

// Store is the persistence the service needs.
type Store interface {
	GetContact(id string) (storage.Contact, error)
	ListContactIDs(ownerID string) ([]string, error)
	ListInteractions(contactID string, since time.Time) ([]storage.Interaction, error)
	LastInteractionAt(contactID string) (time.Time, error)
	SaveTrustInsight(ti storage.TrustInsight) error
	TierCounts(ownerID string) (map[scoring.Tier]int, error)
}

// Config controls scoring windows and fan-out.
type Config struct {
	Scoring     scoring.Config
	Concurrency int
	// Now is the clock; nil means time.Now.
	Now func() time.Time
}

// Summary reports the outcome of a RecomputeAll run.
type Summary struct {
	Total    int           `json:"total" yaml:"total"`
	Updated  int           `json:"updated" yaml:"updated"`
	Failed   int           `json:"failed" yaml:"failed"`
	Duration time.Duration `json:"duration_ns" yaml:"duration"`
}

type Service struct {
	store   Store
	cfg     Config
	metrics *Metrics
}

// NewService creates a Service. metrics may be nil.
func NewService(store Store, cfg Config, metrics *Metrics) *Service {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{store: store, cfg: cfg, metrics: metrics}
}

// Recompute evaluates one contact's history, overwrites its insight and
// returns it. The contact's tier is updated with the insight.
func (s *Service) Recompute(ctx context.Context, contactID string) (storage.TrustInsight, error) {
	ti, err := s.recompute(ctx, contactID)
	s.metrics.observe(err)
	return ti, err
}

func (s *Service) recompute(ctx context.Context, contactID string) (storage.TrustInsight, error) {
	if err := ctx.Err(); err != nil {
		return storage.TrustInsight{}, err
	}
	if _, err := s.store.GetContact(contactID); err != nil {
		return storage.TrustInsight{}, fmt.Errorf("loading contact %s: %w", contactID, err)
	}

	now := s.cfg.Now().UTC()
	cfg := s.cfg.Scoring
	cfg.Now = now

	history, err := s.store.ListInteractions(contactID, now.Add(-cfg.Lookback()))
	if err != nil {
		return storage.TrustInsight{}, fmt.Errorf("loading interactions for %s: %w", contactID, err)
	}

	in := scoring.Evaluate(storage.Events(history), cfg)
	if in.DaysSinceLast < 0 {
		// Nothing inside the windows; recency still comes from the full history.
		last, err := s.store.LastInteractionAt(contactID)
		switch {
		case err == nil:
			in.DaysSinceLast = scoring.DaysSinceLast([]scoring.Event{{At: last}}, now)
		case !errors.Is(err, storage.ErrNotFound):
			return storage.TrustInsight{}, err
		}
	}

	ti := storage.InsightFrom(contactID, in)
	if err := s.store.SaveTrustInsight(ti); err != nil {
		return storage.TrustInsight{}, fmt.Errorf("saving insight for %s: %w", contactID, err)
	}
	slog.Debug("trust recomputed", "contact_id", contactID, "tier", ti.Tier, "score", ti.Score)
	return ti, nil
}

// RecomputeAll recomputes every contact of ownerID (all owners when empty).
// Individual failures are logged and counted; only a failure to list contacts
// or a cancelled context is returned as an error.
func (s *Service) RecomputeAll(ctx context.Context, ownerID string) (Summary, error) {
	start := time.Now()
	ids, err := s.store.ListContactIDs(ownerID)
	if err != nil {
		return Summary{}, fmt.Errorf("listing contacts: %w", err)
	}

	var updated, failed atomic.Int64
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for _, id := range ids {
		g.Go(func() error {
			if _, err := s.Recompute(gCtx, id); err != nil {
				if gCtx.Err() != nil {
					return gCtx.Err()
				}
				failed.Add(1)
				slog.Warn("trust recompute failed", "contact_id", id, "error", err)
				return nil
			}
			updated.Add(1)
			return nil
		})
	}
	err = g.Wait()

	sum := Summary{
		Total:    len(ids),
		Updated:  int(updated.Load()),
		Failed:   int(failed.Load()),
		Duration: time.Since(start),
	}
	if err != nil {
		return sum, err
	}

	if counts, err := s.store.TierCounts(""); err == nil {
		s.metrics.setTiers(counts)
	} else {
		slog.Warn("reading tier counts", "error", err)
	}
	if s.metrics != nil {
		s.metrics.Duration.Observe(sum.Duration.Seconds())
		s.metrics.LastRun.SetToCurrentTime()
	}
	slog.Info("trust recompute finished", "owner", ownerID, "total", sum.Total, "updated", sum.Updated, "failed", sum.Failed, "duration", sum.Duration)
	return sum, nil
}
