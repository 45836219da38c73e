package scoring

import "time"

// Insight is the full result of scoring one contact's history.
type Insight struct {
	Signals
	Tier Tier `json:"tier" yaml:"tier"`
	// DaysSinceLast is -1 when there is no history up to the reference time.
	DaysSinceLast int       `json:"days_since_last" yaml:"daysSinceLast"`
	ComputedAt    time.Time `json:"computed_at" yaml:"computedAt"`
}

// Evaluate computes signals, classifies the tier and measures recency.
func Evaluate(events []Event, cfg Config) Insight {
	sorted := sortedEvents(events)
	now := resolveNow(sorted, cfg.Now)
	cfg.Now = now

	sig := ComputeTrustSignals(sorted, cfg)
	return Insight{
		Signals:       sig,
		Tier:          ClassifyTier(sig.Composite, sig.Frequency),
		DaysSinceLast: DaysSinceLast(sorted, now),
		ComputedAt:    now,
	}
}

// DaysSinceLast returns whole days between the latest event at or before now
// and now, or -1 if there is none.
func DaysSinceLast(events []Event, now time.Time) int {
	var last time.Time
	for _, e := range events {
		if e.At.After(now) {
			continue
		}
		if e.At.After(last) {
			last = e.At
		}
	}
	if last.IsZero() {
		return -1
	}
	return int(now.Sub(last) / day)
}
