package scoring

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Direction records who started an interaction.
type Direction string

const (
	DirectionInitiated Direction = "initiated" // user reached out
	DirectionReceived  Direction = "received"  // contact reached out
	DirectionNeutral   Direction = "neutral"
)

// ParseDirection validates a direction string.
func ParseDirection(s string) (Direction, error) {
	switch d := Direction(s); d {
	case DirectionInitiated, DirectionReceived, DirectionNeutral:
		return d, nil
	}
	return "", fmt.Errorf("unknown direction %q", s)
}

// Event is the slice of an interaction record the aggregator looks at.
type Event struct {
	At        time.Time
	Direction Direction
	Sentiment *float64 // normalized [0,1]; nil when unknown
}

// Config holds the lookback windows. Now is the reference instant; when zero
// the most recent event timestamp is used so results stay deterministic.
type Config struct {
	ResponseWindow    time.Duration
	FrequencyWindow   time.Duration
	ReciprocityWindow time.Duration
	SentimentWindow   time.Duration
	MaxResponseGap    time.Duration
	Now               time.Time
}

const day = 24 * time.Hour

// DefaultConfig returns the standard windows: 90d response and reciprocity,
// 30d frequency count, 60d sentiment, 7d max response gap.
func DefaultConfig() Config {
	return Config{
		ResponseWindow:    90 * day,
		FrequencyWindow:   30 * day,
		ReciprocityWindow: 90 * day,
		SentimentWindow:   60 * day,
		MaxResponseGap:    7 * day,
	}
}

// Lookback returns the widest window, i.e. how much history a caller must load.
func (c Config) Lookback() time.Duration {
	w := c.ResponseWindow
	for _, d := range []time.Duration{c.FrequencyWindow, c.ReciprocityWindow, c.SentimentWindow} {
		if d > w {
			w = d
		}
	}
	return w
}

const (
	neutralSignal       = 0.5
	responseScaleHours  = 48.0
	frequencySaturation = 4.0
	signalWeight        = 0.25
)

// Signals are the four normalized trust signals and their composite.
type Signals struct {
	Response    float64 `json:"response" yaml:"response"`
	Frequency   float64 `json:"frequency" yaml:"frequency"`
	Reciprocity float64 `json:"reciprocity" yaml:"reciprocity"`
	Sentiment   float64 `json:"sentiment" yaml:"sentiment"`
	Composite   float64 `json:"composite" yaml:"composite"`
}

// ComputeTrustSignals aggregates an interaction history into Signals.
// The input is never mutated and its order does not matter.
func ComputeTrustSignals(events []Event, cfg Config) Signals {
	sorted := sortedEvents(events)
	now := resolveNow(sorted, cfg.Now)

	s := Signals{
		Response:    responseSignal(sorted, now, cfg),
		Frequency:   frequencySignal(sorted, now, cfg.FrequencyWindow),
		Reciprocity: reciprocitySignal(sorted, now, cfg.ReciprocityWindow),
		Sentiment:   sentimentSignal(sorted, now, cfg.SentimentWindow),
	}
	s.Composite = signalWeight*s.Response +
		signalWeight*s.Frequency +
		signalWeight*s.Reciprocity +
		signalWeight*s.Sentiment
	return s
}

func sortedEvents(events []Event) []Event {
	out := make([]Event, len(events))
	copy(out, events)
	sort.SliceStable(out, func(i, j int) bool { return out[i].At.Before(out[j].At) })
	return out
}

func resolveNow(sorted []Event, now time.Time) time.Time {
	if !now.IsZero() || len(sorted) == 0 {
		return now
	}
	return sorted[len(sorted)-1].At
}

// inWindow reports whether t lies in [now-window, now].
func inWindow(t, now time.Time, window time.Duration) bool {
	return !t.After(now) && !t.Before(now.Add(-window))
}

func responseSignal(sorted []Event, now time.Time, cfg Config) float64 {
	var (
		total float64
		n     int
		prev  *time.Time
	)
	for i := range sorted {
		at := sorted[i].At
		if !inWindow(at, now, cfg.ResponseWindow) {
			continue
		}
		if prev != nil {
			gap := at.Sub(*prev)
			if gap < cfg.MaxResponseGap {
				total += gap.Hours()
				n++
			}
		}
		prev = &sorted[i].At
	}
	if n == 0 {
		return neutralSignal
	}
	avg := total / float64(n)
	return clamp(math.Max(0, 1-avg/responseScaleHours), 0, 1)
}

func frequencySignal(sorted []Event, now time.Time, window time.Duration) float64 {
	count := 0
	for _, e := range sorted {
		if inWindow(e.At, now, window) {
			count++
		}
	}
	return math.Min(1, float64(count)/frequencySaturation)
}

func reciprocitySignal(sorted []Event, now time.Time, window time.Duration) float64 {
	var contact, total float64
	for _, e := range sorted {
		if !inWindow(e.At, now, window) {
			continue
		}
		switch e.Direction {
		case DirectionReceived:
			contact++
		case DirectionInitiated:
		default:
			contact += 0.5
		}
		total++
	}
	if total == 0 {
		return neutralSignal
	}
	return contact / total
}

func sentimentSignal(sorted []Event, now time.Time, window time.Duration) float64 {
	var sum float64
	var n int
	for _, e := range sorted {
		if e.Sentiment == nil || math.IsNaN(*e.Sentiment) || !inWindow(e.At, now, window) {
			continue
		}
		sum += clamp(*e.Sentiment, 0, 1)
		n++
	}
	if n == 0 {
		return neutralSignal
	}
	return sum / float64(n)
}
