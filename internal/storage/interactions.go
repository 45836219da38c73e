package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rhizhq/rhiz/internal/scoring"
)

const interactionColumns = `id, contact_id, direction, occurred_at, sentiment, sentiment_label, outcome, created_at`

func scanInteraction(row rowScanner) (Interaction, error) {
	var i Interaction
	var direction, occurredAt, createdAt string
	var sentiment sql.NullFloat64
	if err := row.Scan(&i.ID, &i.ContactID, &direction, &occurredAt, &sentiment, &i.SentimentLabel, &i.Outcome, &createdAt); err != nil {
		return Interaction{}, err
	}
	i.Direction = scoring.Direction(direction)
	if sentiment.Valid {
		v := sentiment.Float64
		i.Sentiment = &v
	}
	var err error
	if i.OccurredAt, err = parseTime("occurred_at", occurredAt); err != nil {
		return Interaction{}, err
	}
	if i.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return Interaction{}, err
	}
	return i, nil
}

// SaveInteraction appends an interaction. Interactions are never updated;
// saving an existing ID fails. The contact must exist.
func (s *Store) SaveInteraction(i Interaction) error {
	if err := i.Validate(); err != nil {
		return err
	}
	if _, err := s.GetContact(i.ContactID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("contact %s: %w", i.ContactID, ErrNotFound)
		}
		return err
	}
	if i.CreatedAt.IsZero() {
		i.CreatedAt = time.Now().UTC()
	}
	var sentiment sql.NullFloat64
	if i.Sentiment != nil {
		sentiment = sql.NullFloat64{Float64: *i.Sentiment, Valid: true}
	}
	_, err := s.db.Exec(`
		INSERT INTO interactions (`+interactionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		i.ID, i.ContactID, string(i.Direction), formatTime(i.OccurredAt), sentiment,
		i.SentimentLabel, i.Outcome, formatTime(i.CreatedAt),
	)
	return err
}

func (s *Store) GetInteraction(id string) (Interaction, error) {
	i, err := scanInteraction(s.db.QueryRow(`SELECT `+interactionColumns+` FROM interactions WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Interaction{}, ErrNotFound
	}
	return i, err
}

// ListInteractions returns a contact's history oldest first. A zero since
// returns the full history.
func (s *Store) ListInteractions(contactID string, since time.Time) ([]Interaction, error) {
	var rows *sql.Rows
	var err error
	if since.IsZero() {
		rows, err = s.db.Query(`SELECT `+interactionColumns+` FROM interactions
			WHERE contact_id = ? ORDER BY occurred_at ASC, id ASC`, contactID)
	} else {
		rows, err = s.db.Query(`SELECT `+interactionColumns+` FROM interactions
			WHERE contact_id = ? AND occurred_at >= ? ORDER BY occurred_at ASC, id ASC`,
			contactID, formatTime(since))
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Interaction
	for rows.Next() {
		i, err := scanInteraction(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, i)
	}
	return results, rows.Err()
}

// LastInteractionAt returns the most recent interaction time for a contact,
// or ErrNotFound when the contact has no history.
func (s *Store) LastInteractionAt(contactID string) (time.Time, error) {
	var v sql.NullString
	if err := s.db.QueryRow(`SELECT MAX(occurred_at) FROM interactions WHERE contact_id = ?`, contactID).Scan(&v); err != nil {
		return time.Time{}, err
	}
	if !v.Valid {
		return time.Time{}, ErrNotFound
	}
	return parseTime("occurred_at", v.String)
}
