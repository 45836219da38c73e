// Package outreach decides who is worth reconnecting with and drafts the
// message.
package outreach

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/rhizhq/rhiz/internal/scoring"
	"github.com/rhizhq/rhiz/internal/storage"
)

// DefaultQuietDays is how long a relationship must be silent before it is suggested.
const DefaultQuietDays = 21

// decayDays is the silence after which priority stops growing.
const decayDays = 60.0

// Candidate pairs a contact with its current insight.
type Candidate struct {
	Contact storage.Contact
	Insight storage.TrustInsight
}

type Options struct {
	QuietDays int
	Limit     int
}

// Suggestion is a contact worth reaching out to.
type Suggestion struct {
	Contact       storage.Contact `json:"contact" yaml:"contact"`
	Tier          scoring.Tier    `json:"tier" yaml:"tier"`
	TrustScore    float64         `json:"trust_score" yaml:"trustScore"`
	DaysSinceLast int             `json:"days_since_last" yaml:"daysSinceLast"`
	Priority      float64         `json:"priority" yaml:"priority"`
	Reason        string          `json:"reason" yaml:"reason"`
}

// Priority weighs trust by how long the relationship has been quiet.
func Priority(score float64, daysSinceLast int) float64 {
	if daysSinceLast <= 0 {
		return 0
	}
	return score * math.Min(1, float64(daysSinceLast)/decayDays)
}

// Suggest ranks candidates that have gone quiet. Contacts without history or
// in the frayed tier are left out. Order is priority, then tier, then name.
func Suggest(cands []Candidate, opts Options) []Suggestion {
	quiet := opts.QuietDays
	if quiet <= 0 {
		quiet = DefaultQuietDays
	}

	var out []Suggestion
	for _, c := range cands {
		in := c.Insight
		if in.DaysSinceLast < 0 || in.DaysSinceLast < quiet {
			continue
		}
		if in.Tier == scoring.TierFrayed || in.Tier.Rank() < 0 {
			continue
		}
		out = append(out, Suggestion{
			Contact:       c.Contact,
			Tier:          in.Tier,
			TrustScore:    in.Score,
			DaysSinceLast: in.DaysSinceLast,
			Priority:      Priority(in.Score, in.DaysSinceLast),
			Reason:        fmt.Sprintf("%s relationship, quiet for %d days", in.Tier, in.DaysSinceLast),
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		if ra, rb := a.Tier.Rank(), b.Tier.Rank(); ra != rb {
			return ra > rb
		}
		if a.Contact.Name != b.Contact.Name {
			return a.Contact.Name < b.Contact.Name
		}
		return a.Contact.ID < b.Contact.ID
	})

	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out
}

// Source lists insights and resolves their contacts.
type Source interface {
	ListTrustInsights(ownerID string, tier scoring.Tier) ([]storage.TrustInsight, error)
	GetContact(id string) (storage.Contact, error)
}

// Candidates loads every contact of ownerID that has an insight.
func Candidates(src Source, ownerID string) ([]Candidate, error) {
	insights, err := src.ListTrustInsights(ownerID, "")
	if err != nil {
		return nil, fmt.Errorf("listing insights: %w", err)
	}
	cands := make([]Candidate, 0, len(insights))
	for _, in := range insights {
		c, err := src.GetContact(in.ContactID)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		cands = append(cands, Candidate{Contact: c, Insight: in})
	}
	return cands, nil
}
