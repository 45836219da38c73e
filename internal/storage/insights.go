package storage

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/rhizhq/rhiz/internal/scoring"
)

const insightColumns = `t.contact_id, t.tier, t.score, t.response, t.frequency, t.reciprocity, t.sentiment, t.days_since_last, t.computed_at`

func scanInsight(row rowScanner) (TrustInsight, error) {
	var ti TrustInsight
	var tier, computedAt string
	if err := row.Scan(&ti.ContactID, &tier, &ti.Score, &ti.Response, &ti.Frequency, &ti.Reciprocity, &ti.Sentiment, &ti.DaysSinceLast, &computedAt); err != nil {
		return TrustInsight{}, err
	}
	ti.Tier = scoring.Tier(tier)
	var err error
	if ti.ComputedAt, err = parseTime("computed_at", computedAt); err != nil {
		return TrustInsight{}, err
	}
	return ti, nil
}

// SaveTrustInsight upserts the insight for a contact and mirrors its tier onto
// the contact row in the same transaction.
func (s *Store) SaveTrustInsight(ti TrustInsight) error {
	if ti.ContactID == "" {
		return fmt.Errorf("%w: insight contact id is required", ErrInvalidRecord)
	}
	if ti.Tier.Rank() < 0 {
		return fmt.Errorf("%w: unknown tier %q", ErrInvalidRecord, ti.Tier)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning insight transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`UPDATE contacts SET tier = ? WHERE id = ?`, string(ti.Tier), ti.ContactID)
	if err != nil {
		return err
	}
	if err := checkAffected(res); err != nil {
		return fmt.Errorf("contact %s: %w", ti.ContactID, err)
	}

	_, err = tx.Exec(`
		INSERT INTO trust_insights (contact_id, tier, score, response, frequency, reciprocity, sentiment, days_since_last, computed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(contact_id) DO UPDATE SET
			tier = excluded.tier,
			score = excluded.score,
			response = excluded.response,
			frequency = excluded.frequency,
			reciprocity = excluded.reciprocity,
			sentiment = excluded.sentiment,
			days_since_last = excluded.days_since_last,
			computed_at = excluded.computed_at`,
		ti.ContactID, string(ti.Tier), ti.Score, ti.Response, ti.Frequency, ti.Reciprocity,
		ti.Sentiment, ti.DaysSinceLast, formatTime(ti.ComputedAt),
	)
	if err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) GetTrustInsight(contactID string) (TrustInsight, error) {
	ti, err := scanInsight(s.db.QueryRow(`SELECT `+insightColumns+` FROM trust_insights t WHERE t.contact_id = ?`, contactID))
	if errors.Is(err, sql.ErrNoRows) {
		return TrustInsight{}, ErrNotFound
	}
	return ti, err
}

// ListTrustInsights returns insights ordered by score, highest first.
// Empty ownerID or tier disables that filter.
func (s *Store) ListTrustInsights(ownerID string, tier scoring.Tier) ([]TrustInsight, error) {
	rows, err := s.db.Query(`
		SELECT `+insightColumns+`
		FROM trust_insights t JOIN contacts c ON c.id = t.contact_id
		WHERE (? = '' OR c.owner_id = ?) AND (? = '' OR t.tier = ?)
		ORDER BY t.score DESC, t.contact_id ASC`,
		ownerID, ownerID, string(tier), string(tier),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []TrustInsight
	for rows.Next() {
		ti, err := scanInsight(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, ti)
	}
	return results, rows.Err()
}

// TierCounts returns how many contacts of ownerID sit in each tier.
func (s *Store) TierCounts(ownerID string) (map[scoring.Tier]int, error) {
	rows, err := s.db.Query(`
		SELECT t.tier, COUNT(*)
		FROM trust_insights t JOIN contacts c ON c.id = t.contact_id
		WHERE (? = '' OR c.owner_id = ?)
		GROUP BY t.tier`, ownerID, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[scoring.Tier]int, len(scoring.Tiers))
	for _, t := range scoring.Tiers {
		counts[t] = 0
	}
	for rows.Next() {
		var tier string
		var n int
		if err := rows.Scan(&tier, &n); err != nil {
			return nil, err
		}
		counts[scoring.Tier(tier)] = n
	}
	return counts, rows.Err()
}
