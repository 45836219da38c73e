package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

func (s *Store) SaveGoal(g Goal) error {
	g.Title = strings.TrimSpace(g.Title)
	if g.ID == "" || g.OwnerID == "" {
		return fmt.Errorf("%w: goal id and owner are required", ErrInvalidRecord)
	}
	if g.Title == "" {
		return fmt.Errorf("%w: goal title is required", ErrInvalidRecord)
	}
	if g.CreatedAt.IsZero() {
		g.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(`
		INSERT INTO goals (id, owner_id, title, description, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET title = excluded.title, description = excluded.description`,
		g.ID, g.OwnerID, g.Title, g.Description, formatTime(g.CreatedAt),
	)
	return err
}

func (s *Store) GetGoal(id string) (Goal, error) {
	var g Goal
	var createdAt string
	err := s.db.QueryRow(`SELECT id, owner_id, title, description, created_at FROM goals WHERE id = ?`, id).
		Scan(&g.ID, &g.OwnerID, &g.Title, &g.Description, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Goal{}, ErrNotFound
	}
	if err != nil {
		return Goal{}, err
	}
	if g.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return Goal{}, err
	}
	return g, nil
}

func (s *Store) ListGoals(ownerID string, limit int) ([]Goal, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(`
		SELECT id, owner_id, title, description, created_at FROM goals
		WHERE (? = '' OR owner_id = ?)
		ORDER BY created_at DESC, id ASC LIMIT ?`, ownerID, ownerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Goal
	for rows.Next() {
		var g Goal
		var createdAt string
		if err := rows.Scan(&g.ID, &g.OwnerID, &g.Title, &g.Description, &createdAt); err != nil {
			return nil, err
		}
		if g.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
			return nil, err
		}
		results = append(results, g)
	}
	return results, rows.Err()
}

func (s *Store) DeleteGoal(id string) error {
	res, err := s.db.Exec(`DELETE FROM goals WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return checkAffected(res)
}
