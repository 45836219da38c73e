package storage

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rhizhq/rhiz/internal/scoring"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidRecord is returned when a record fails construction-time validation.
	ErrInvalidRecord = errors.New("invalid record")
)

// Relationship types a contact can be labelled with.
const (
	RelationshipPersonal     = "personal"
	RelationshipProfessional = "professional"
	RelationshipMentor       = "mentor"
	RelationshipInvestor     = "investor"
	RelationshipOther        = "other"
)

// Sentiment labels accepted at ingestion and their normalized scores.
var sentimentLabels = map[string]float64{
	"positive": 1,
	"neutral":  0.5,
	"negative": 0,
}

// Contact is a person known to a user. Tier is derived and recomputed.
type Contact struct {
	ID               string       `json:"id" yaml:"id"`
	OwnerID          string       `json:"owner_id" yaml:"ownerID"`
	Name             string       `json:"name" yaml:"name"`
	Role             string       `json:"role,omitempty" yaml:"role,omitempty"`
	Company          string       `json:"company,omitempty" yaml:"company,omitempty"`
	RelationshipType string       `json:"relationship_type" yaml:"relationshipType"`
	Notes            string       `json:"notes,omitempty" yaml:"notes,omitempty"`
	Tier             scoring.Tier `json:"tier,omitempty" yaml:"tier,omitempty"`
	CreatedAt        time.Time    `json:"created_at" yaml:"createdAt"`
	UpdatedAt        time.Time    `json:"updated_at" yaml:"updatedAt"`
}

// Validate checks required fields and fills the relationship type default.
func (c *Contact) Validate() error {
	c.Name = strings.TrimSpace(c.Name)
	if c.ID == "" {
		return fmt.Errorf("%w: contact id is required", ErrInvalidRecord)
	}
	if c.OwnerID == "" {
		return fmt.Errorf("%w: contact owner is required", ErrInvalidRecord)
	}
	if c.Name == "" {
		return fmt.Errorf("%w: contact name is required", ErrInvalidRecord)
	}
	switch c.RelationshipType {
	case "":
		c.RelationshipType = RelationshipProfessional
	case RelationshipPersonal, RelationshipProfessional, RelationshipMentor, RelationshipInvestor, RelationshipOther:
	default:
		return fmt.Errorf("%w: unknown relationship type %q", ErrInvalidRecord, c.RelationshipType)
	}
	if c.Tier != "" && c.Tier.Rank() < 0 {
		return fmt.Errorf("%w: unknown tier %q", ErrInvalidRecord, c.Tier)
	}
	return nil
}

// ProfileText is the text embedded to place a contact in vector space.
func (c Contact) ProfileText() string {
	var parts []string
	for _, s := range []string{c.Name, c.Role, c.Company, c.Notes} {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n")
}

// Interaction is one immutable communication event with a contact.
type Interaction struct {
	ID             string            `json:"id" yaml:"id"`
	ContactID      string            `json:"contact_id" yaml:"contactID"`
	Direction      scoring.Direction `json:"direction" yaml:"direction"`
	OccurredAt     time.Time         `json:"occurred_at" yaml:"occurredAt"`
	Sentiment      *float64          `json:"sentiment,omitempty" yaml:"sentiment,omitempty"`
	SentimentLabel string            `json:"sentiment_label,omitempty" yaml:"sentimentLabel,omitempty"`
	Outcome        string            `json:"outcome,omitempty" yaml:"outcome,omitempty"`
	CreatedAt      time.Time         `json:"created_at" yaml:"createdAt"`
}

// NewInteraction builds a validated Interaction. When sentiment is nil and a
// label is given, the label's normalized score is used.
func NewInteraction(id, contactID string, dir scoring.Direction, at time.Time, sentiment *float64, label, outcome string) (Interaction, error) {
	i := Interaction{
		ID:             id,
		ContactID:      contactID,
		Direction:      dir,
		OccurredAt:     at.UTC(),
		Sentiment:      sentiment,
		SentimentLabel: strings.ToLower(strings.TrimSpace(label)),
		Outcome:        outcome,
		CreatedAt:      time.Now().UTC(),
	}
	if err := i.Validate(); err != nil {
		return Interaction{}, err
	}
	return i, nil
}

// Validate checks required fields and normalizes the sentiment.
func (i *Interaction) Validate() error {
	if i.ID == "" {
		return fmt.Errorf("%w: interaction id is required", ErrInvalidRecord)
	}
	if i.ContactID == "" {
		return fmt.Errorf("%w: contact id is required", ErrInvalidRecord)
	}
	if _, err := scoring.ParseDirection(string(i.Direction)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	if i.OccurredAt.IsZero() {
		return fmt.Errorf("%w: interaction timestamp is required", ErrInvalidRecord)
	}
	if i.SentimentLabel != "" {
		v, ok := sentimentLabels[i.SentimentLabel]
		if !ok {
			return fmt.Errorf("%w: unknown sentiment label %q", ErrInvalidRecord, i.SentimentLabel)
		}
		if i.Sentiment == nil {
			i.Sentiment = &v
		}
	}
	if i.Sentiment != nil && !(*i.Sentiment >= 0 && *i.Sentiment <= 1) {
		return fmt.Errorf("%w: sentiment %v outside [0,1]", ErrInvalidRecord, *i.Sentiment)
	}
	return nil
}

// Event projects the interaction onto what the scoring core reads.
func (i Interaction) Event() scoring.Event {
	return scoring.Event{At: i.OccurredAt, Direction: i.Direction, Sentiment: i.Sentiment}
}

// Events projects a history onto scoring events.
func Events(history []Interaction) []scoring.Event {
	out := make([]scoring.Event, len(history))
	for i, ix := range history {
		out[i] = ix.Event()
	}
	return out
}

// TrustInsight is the recomputable trust summary attached to one contact.
type TrustInsight struct {
	ContactID     string       `json:"contact_id" yaml:"contactID"`
	Tier          scoring.Tier `json:"tier" yaml:"tier"`
	Score         float64      `json:"score" yaml:"score"`
	Response      float64      `json:"response" yaml:"response"`
	Frequency     float64      `json:"frequency" yaml:"frequency"`
	Reciprocity   float64      `json:"reciprocity" yaml:"reciprocity"`
	Sentiment     float64      `json:"sentiment" yaml:"sentiment"`
	DaysSinceLast int          `json:"days_since_last" yaml:"daysSinceLast"`
	ComputedAt    time.Time    `json:"computed_at" yaml:"computedAt"`
}

// InsightFrom converts a scoring result into its stored form.
func InsightFrom(contactID string, in scoring.Insight) TrustInsight {
	return TrustInsight{
		ContactID:     contactID,
		Tier:          in.Tier,
		Score:         in.Composite,
		Response:      in.Response,
		Frequency:     in.Frequency,
		Reciprocity:   in.Reciprocity,
		Sentiment:     in.Sentiment,
		DaysSinceLast: in.DaysSinceLast,
		ComputedAt:    in.ComputedAt.UTC(),
	}
}

// Goal is something a user wants help with; contacts are matched against it.
type Goal struct {
	ID          string    `json:"id" yaml:"id"`
	OwnerID     string    `json:"owner_id" yaml:"ownerID"`
	Title       string    `json:"title" yaml:"title"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at" yaml:"createdAt"`
}

// Text is the goal text that gets embedded.
func (g Goal) Text() string {
	if g.Description == "" {
		return g.Title
	}
	return g.Title + "\n" + g.Description
}

// Job types handled by the background worker.
const (
	JobContactEmbed   = "contact_embed"
	JobTrustRecompute = "trust_recompute"
)

type Job struct {
	ID          string
	Type        string
	PayloadJSON string
	Status      string // "pending", "running", "completed", "failed"
	Attempts    int
	MaxAttempts int
	RunAfter    time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastError   string
}
