package matching

import (
	"container/heap"
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rhizhq/rhiz/internal/scoring"
	"github.com/rhizhq/rhiz/internal/storage"
)

// ContactVector is the stored embedding of one contact's profile.
type ContactVector struct {
	ContactID string
	OwnerID   string
	Model     string
	Embedding []float32
	UpdatedAt time.Time
}

// Scored is a search hit. Degenerate marks a comparison where either vector
// has no orientation; such hits rank after every directional one.
type Scored struct {
	ContactID  string
	Similarity float64
	Degenerate bool
}

// VectorStore persists contact vectors and answers nearest-neighbour queries.
type VectorStore interface {
	Upsert(ctx context.Context, v ContactVector) error
	Get(ctx context.Context, contactID string) (ContactVector, error)
	Delete(ctx context.Context, contactID string) error
	// Search returns up to topK contacts of ownerID most similar to query,
	// skipping exclude. A stored vector whose length differs from query
	// yields an error wrapping scoring.ErrShapeMismatch.
	Search(ctx context.Context, ownerID string, query []float32, topK int, exclude string) ([]Scored, error)
	Count(ctx context.Context, ownerID string) (int, error)
}

var _ VectorStore = (*SQLiteStore)(nil)

// SQLiteStore keeps vectors in the contact_vectors table and searches them by
// brute-force cosine similarity.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore wraps a database whose schema already has contact_vectors.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) Upsert(ctx context.Context, v ContactVector) error {
	if v.ContactID == "" || v.OwnerID == "" {
		return fmt.Errorf("%w: vector needs contact and owner", storage.ErrInvalidRecord)
	}
	if len(v.Embedding) == 0 {
		return fmt.Errorf("%w: empty embedding for %s", storage.ErrInvalidRecord, v.ContactID)
	}
	updated := v.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO contact_vectors (contact_id, owner_id, model, dim, embedding, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(contact_id) DO UPDATE SET
			owner_id = excluded.owner_id,
			model = excluded.model,
			dim = excluded.dim,
			embedding = excluded.embedding,
			updated_at = excluded.updated_at`,
		v.ContactID, v.OwnerID, v.Model, len(v.Embedding), encodeFloat32s(v.Embedding),
		updated.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("upserting vector for %s: %w", v.ContactID, err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, contactID string) (ContactVector, error) {
	var v ContactVector
	var blob []byte
	var updated string
	err := s.db.QueryRowContext(ctx, `
		SELECT contact_id, owner_id, model, embedding, updated_at
		FROM contact_vectors WHERE contact_id = ?`, contactID,
	).Scan(&v.ContactID, &v.OwnerID, &v.Model, &blob, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return ContactVector{}, storage.ErrNotFound
	}
	if err != nil {
		return ContactVector{}, err
	}
	if v.Embedding, err = decodeFloat32sInto(nil, blob); err != nil {
		return ContactVector{}, fmt.Errorf("decoding embedding for %s: %w", contactID, err)
	}
	if v.UpdatedAt, err = time.Parse(time.RFC3339, updated); err != nil {
		return ContactVector{}, fmt.Errorf("parsing updated_at: %w", err)
	}
	return v, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, contactID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM contact_vectors WHERE contact_id = ?`, contactID)
	if err != nil {
		return fmt.Errorf("deleting vector %s: %w", contactID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) Count(ctx context.Context, ownerID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM contact_vectors WHERE (? = '' OR owner_id = ?)`, ownerID, ownerID).Scan(&n)
	return n, err
}

func (s *SQLiteStore) Search(ctx context.Context, ownerID string, query []float32, topK int, exclude string) ([]Scored, error) {
	if topK <= 0 || len(query) == 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `SELECT contact_id, embedding FROM contact_vectors WHERE owner_id = ?`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("querying vectors: %w", err)
	}
	defer rows.Close()

	queryDegenerate := !scoring.HasOrientation(query)
	h := &scoredHeap{}
	var buf []float32
	for rows.Next() {
		var id string
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, fmt.Errorf("scanning vector row: %w", err)
		}
		if id == exclude {
			continue
		}
		if buf, err = decodeFloat32sInto(buf, blob); err != nil {
			return nil, fmt.Errorf("decoding embedding for %s: %w", id, err)
		}
		sim, err := scoring.CosineSimilarity(query, buf)
		if err != nil {
			return nil, fmt.Errorf("contact %s: %w", id, err)
		}
		item := Scored{
			ContactID:  id,
			Similarity: sim,
			Degenerate: queryDegenerate || !scoring.HasOrientation(buf),
		}
		if h.Len() < topK {
			heap.Push(h, item)
		} else if less((*h)[0], item) {
			(*h)[0] = item
			heap.Fix(h, 0)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating vectors: %w", err)
	}

	out := make([]Scored, h.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(h).(Scored)
	}
	return out, nil
}

// less orders hits weakest first: degenerate before directional, then by
// similarity, then by contact ID for a stable result.
func less(a, b Scored) bool {
	if a.Degenerate != b.Degenerate {
		return a.Degenerate
	}
	if a.Similarity != b.Similarity {
		return a.Similarity < b.Similarity
	}
	return a.ContactID > b.ContactID
}

// scoredHeap is a min-heap: the root is the weakest hit kept so far.
type scoredHeap []Scored

func (h scoredHeap) Len() int           { return len(h) }
func (h scoredHeap) Less(i, j int) bool { return less(h[i], h[j]) }
func (h scoredHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *scoredHeap) Push(x any)        { *h = append(*h, x.(Scored)) }
func (h *scoredHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

func encodeFloat32s(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// decodeFloat32sInto decodes blob into dst, reusing its capacity.
func decodeFloat32sInto(dst []float32, blob []byte) ([]float32, error) {
	if len(blob)%4 != 0 {
		return nil, fmt.Errorf("embedding blob length %d is not a multiple of 4", len(blob))
	}
	n := len(blob) / 4
	if cap(dst) < n {
		dst = make([]float32, n)
	}
	dst = dst[:n]
	for i := range dst {
		dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return dst, nil
}
