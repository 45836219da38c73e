package trust

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rhizhq/rhiz/internal/scoring"
	"github.com/rhizhq/rhiz/internal/storage"
)

var refNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (*Service, *storage.Store, *prometheus.Registry) {
	t.Helper()
	st, err := storage.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	reg := prometheus.NewRegistry()
	svc := NewService(st, Config{
		Scoring:     scoring.DefaultConfig(),
		Concurrency: 2,
		Now:         func() time.Time { return refNow },
	}, NewMetrics(reg))
	return svc, st, reg
}

func addContact(t *testing.T, st *storage.Store, id, owner string) {
	t.Helper()
	require.NoError(t, st.SaveContact(storage.Contact{ID: id, OwnerID: owner, Name: id}))
}

func logInteraction(t *testing.T, st *storage.Store, id, contactID string, dir scoring.Direction, at time.Time, sentiment float64) {
	t.Helper()
	ix, err := storage.NewInteraction(id, contactID, dir, at, &sentiment, "", "")
	require.NoError(t, err)
	require.NoError(t, st.SaveInteraction(ix))
}

func metricValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	next:
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if labels[lp.GetName()] != lp.GetValue() {
					continue next
				}
			}
			switch {
			case m.GetCounter() != nil:
				return m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				return m.GetGauge().GetValue()
			}
		}
	}
	return 0
}

func TestRecompute_Scenario(t *testing.T) {
	svc, st, reg := newTestService(t)
	addContact(t, st, "c1", "u1")
	for i, id := range []string{"i1", "i2", "i3", "i4", "i5"} {
		logInteraction(t, st, id, "c1", scoring.DirectionInitiated, refNow.Add(-time.Duration(i*12)*time.Hour), 0.9)
	}

	ti, err := svc.Recompute(context.Background(), "c1")
	require.NoError(t, err)
	assert.InDelta(t, 0.6625, ti.Score, 1e-9)
	assert.Equal(t, scoring.TierGrowing, ti.Tier)
	assert.Equal(t, 0, ti.DaysSinceLast)
	assert.Equal(t, refNow, ti.ComputedAt)

	stored, err := st.GetTrustInsight("c1")
	require.NoError(t, err)
	assert.Equal(t, ti.Tier, stored.Tier)
	c, err := st.GetContact("c1")
	require.NoError(t, err)
	assert.Equal(t, scoring.TierGrowing, c.Tier)

	assert.Equal(t, 1.0, metricValue(t, reg, "rhiz_trust_recomputes_total", map[string]string{"result": "ok"}))
}

func TestRecompute_NoHistory(t *testing.T) {
	svc, st, _ := newTestService(t)
	addContact(t, st, "c1", "u1")

	ti, err := svc.Recompute(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, 0.375, ti.Score)
	assert.Equal(t, scoring.TierFrayed, ti.Tier)
	assert.Equal(t, -1, ti.DaysSinceLast)
}

func TestRecompute_OldHistoryKeepsRecency(t *testing.T) {
	svc, st, _ := newTestService(t)
	addContact(t, st, "c1", "u1")
	logInteraction(t, st, "old", "c1", scoring.DirectionReceived, refNow.AddDate(0, 0, -200), 1)

	ti, err := svc.Recompute(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, 0.375, ti.Score)
	assert.Equal(t, 200, ti.DaysSinceLast)
}

func TestRecompute_IsIdempotent(t *testing.T) {
	svc, st, _ := newTestService(t)
	addContact(t, st, "c1", "u1")
	logInteraction(t, st, "i1", "c1", scoring.DirectionReceived, refNow.Add(-5*time.Hour), 0.7)
	logInteraction(t, st, "i2", "c1", scoring.DirectionInitiated, refNow.Add(-30*time.Hour), 0.2)

	first, err := svc.Recompute(context.Background(), "c1")
	require.NoError(t, err)
	second, err := svc.Recompute(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestRecompute_UnknownContact(t *testing.T) {
	svc, _, reg := newTestService(t)
	_, err := svc.Recompute(context.Background(), "ghost")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.Equal(t, 1.0, metricValue(t, reg, "rhiz_trust_recomputes_total", map[string]string{"result": "error"}))
}

func TestRecomputeAll(t *testing.T) {
	svc, st, reg := newTestService(t)
	for _, id := range []string{"a", "b", "c"} {
		addContact(t, st, id, "u1")
	}
	addContact(t, st, "z", "u2")
	for i := 0; i < 4; i++ {
		logInteraction(t, st, "a"+string(rune('0'+i)), "a", scoring.DirectionReceived, refNow.Add(-time.Duration(i)*time.Hour), 1)
	}

	sum, err := svc.RecomputeAll(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Total)
	assert.Equal(t, 3, sum.Updated)
	assert.Equal(t, 0, sum.Failed)

	a, err := st.GetTrustInsight("a")
	require.NoError(t, err)
	assert.Equal(t, scoring.TierRooted, a.Tier)
	_, err = st.GetTrustInsight("z")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	assert.Equal(t, 1.0, metricValue(t, reg, "rhiz_contacts_by_tier", map[string]string{"tier": "rooted"}))
	assert.Equal(t, 2.0, metricValue(t, reg, "rhiz_contacts_by_tier", map[string]string{"tier": "frayed"}))
	assert.Greater(t, metricValue(t, reg, "rhiz_trust_last_recompute_timestamp_seconds", nil), 0.0)
}

// failingStore fails recompute for one contact to check failures are counted.
type failingStore struct {
	*storage.Store
	bad string
}

func (f failingStore) ListInteractions(contactID string, since time.Time) ([]storage.Interaction, error) {
	if contactID == f.bad {
		return nil, errors.New("disk on fire")
	}
	return f.Store.ListInteractions(contactID, since)
}

func TestRecomputeAll_CountsFailures(t *testing.T) {
	_, st, _ := newTestService(t)
	for _, id := range []string{"a", "b", "c"} {
		addContact(t, st, id, "u1")
	}
	svc := NewService(failingStore{Store: st, bad: "b"}, Config{Scoring: scoring.DefaultConfig(), Now: func() time.Time { return refNow }}, nil)

	sum, err := svc.RecomputeAll(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Total)
	assert.Equal(t, 2, sum.Updated)
	assert.Equal(t, 1, sum.Failed)
}

func TestRecomputeAll_Cancelled(t *testing.T) {
	svc, st, _ := newTestService(t)
	addContact(t, st, "a", "u1")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.RecomputeAll(ctx, "u1")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestValidateSchedule(t *testing.T) {
	assert.NoError(t, ValidateSchedule(DefaultSchedule))
	assert.NoError(t, ValidateSchedule("*/15 * * * *"))
	assert.Error(t, ValidateSchedule("every night"))
	assert.Error(t, ValidateSchedule("0 0 3 * * *")) // seconds field not accepted
}

func TestNextRun(t *testing.T) {
	next, err := NextRun("0 3 * * *", refNow)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 6, 2, 3, 0, 0, 0, time.UTC), next)

	_, err = NextRun("nope", refNow)
	assert.Error(t, err)
}

type fakeRecomputer struct {
	calls chan string
}

func (f *fakeRecomputer) RecomputeAll(_ context.Context, ownerID string) (Summary, error) {
	f.calls <- ownerID
	return Summary{}, nil
}

func TestScheduler_RunNow(t *testing.T) {
	rec := &fakeRecomputer{calls: make(chan string, 1)}
	s, err := NewScheduler("", rec)
	require.NoError(t, err)
	assert.Equal(t, DefaultSchedule, s.Schedule())

	s.Start()
	defer s.Stop()

	require.NoError(t, s.RunNow())
	select {
	case owner := <-rec.calls:
		assert.Equal(t, "", owner)
	case <-time.After(5 * time.Second):
		t.Fatal("scheduled recompute did not run")
	}

	next, err := s.NextRun()
	require.NoError(t, err)
	assert.True(t, next.After(time.Now()))
}

func TestNewScheduler_InvalidExpression(t *testing.T) {
	_, err := NewScheduler("61 * * * *", &fakeRecomputer{})
	assert.Error(t, err)
}
