package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rhizhq/rhiz/internal/scoring"
)

const contactColumns = `id, owner_id, name, role, company, relationship_type, notes, tier, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanContact(row rowScanner) (Contact, error) {
	var c Contact
	var tier, createdAt, updatedAt string
	if err := row.Scan(&c.ID, &c.OwnerID, &c.Name, &c.Role, &c.Company, &c.RelationshipType, &c.Notes, &tier, &createdAt, &updatedAt); err != nil {
		return Contact{}, err
	}
	c.Tier = scoring.Tier(tier)
	var err error
	if c.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return Contact{}, err
	}
	if c.UpdatedAt, err = parseTime("updated_at", updatedAt); err != nil {
		return Contact{}, err
	}
	return c, nil
}

// SaveContact inserts a contact or updates its editable fields. The stored
// tier and creation time are kept on update.
func (s *Store) SaveContact(c Contact) error {
	if err := c.Validate(); err != nil {
		return err
	}
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	_, err := s.db.Exec(`
		INSERT INTO contacts (`+contactColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			role = excluded.role,
			company = excluded.company,
			relationship_type = excluded.relationship_type,
			notes = excluded.notes,
			updated_at = excluded.updated_at`,
		c.ID, c.OwnerID, c.Name, c.Role, c.Company, c.RelationshipType, c.Notes, string(c.Tier),
		formatTime(c.CreatedAt), formatTime(now),
	)
	return err
}

func (s *Store) GetContact(id string) (Contact, error) {
	c, err := scanContact(s.db.QueryRow(`SELECT `+contactColumns+` FROM contacts WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Contact{}, ErrNotFound
	}
	return c, err
}

// ListContacts returns contacts ordered by name. An empty ownerID lists every owner.
func (s *Store) ListContacts(ownerID string, limit, offset int) ([]Contact, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(`
		SELECT `+contactColumns+` FROM contacts
		WHERE (? = '' OR owner_id = ?)
		ORDER BY name ASC, id ASC LIMIT ? OFFSET ?`,
		ownerID, ownerID, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Contact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, c)
	}
	return results, rows.Err()
}

// ListContactIDs returns the IDs of every contact owned by ownerID, or of all
// contacts when ownerID is empty.
func (s *Store) ListContactIDs(ownerID string) ([]string, error) {
	rows, err := s.db.Query(`SELECT id FROM contacts WHERE (? = '' OR owner_id = ?) ORDER BY id`, ownerID, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Store) UpdateContactTier(id string, tier scoring.Tier) error {
	res, err := s.db.Exec(`UPDATE contacts SET tier = ?, updated_at = ? WHERE id = ?`,
		string(tier), formatTime(time.Now()), id)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

// DeleteContact removes a contact together with its interactions, insight and vector.
func (s *Store) DeleteContact(id string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning delete transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`DELETE FROM contacts WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if err := checkAffected(res); err != nil {
		return err
	}
	for _, table := range []string{"interactions", "trust_insights", "contact_vectors"} {
		if _, err := tx.Exec(`DELETE FROM `+table+` WHERE contact_id = ?`, id); err != nil {
			return fmt.Errorf("deleting from %s: %w", table, err)
		}
	}
	return tx.Commit()
}
