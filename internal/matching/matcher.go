package matching

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/rhizhq/rhiz/internal/scoring"
	"github.com/rhizhq/rhiz/internal/storage"
)

// Directory resolves contacts and their current trust insight.
type Directory interface {
	GetContact(id string) (storage.Contact, error)
	GetTrustInsight(contactID string) (storage.TrustInsight, error)
}

// Match is a contact ranked against a goal or another contact.
type Match struct {
	Contact    storage.Contact `json:"contact" yaml:"contact"`
	Similarity float64         `json:"similarity" yaml:"similarity"`
	Tier       scoring.Tier    `json:"tier,omitempty" yaml:"tier,omitempty"`
	TrustScore float64         `json:"trust_score" yaml:"trustScore"`
	// Degenerate is set when either embedding has no orientation.
	Degenerate bool            `json:"degenerate,omitempty" yaml:"degenerate,omitempty"`
}

// Matcher ranks contacts by semantic similarity.
type Matcher struct {
	embedder *Embedder
	store    VectorStore
	dir      Directory
}

func NewMatcher(embedder *Embedder, store VectorStore, dir Directory) *Matcher {
	return &Matcher{embedder: embedder, store: store, dir: dir}
}

// Index embeds a contact's profile text and stores the vector.
func (m *Matcher) Index(ctx context.Context, c storage.Contact) error {
	text := c.ProfileText()
	if text == "" {
		return fmt.Errorf("%w: contact %s has no profile text", storage.ErrInvalidRecord, c.ID)
	}
	vec, err := m.embedder.Embed(ctx, text)
	if err != nil {
		return err
	}
	return m.store.Upsert(ctx, ContactVector{
		ContactID: c.ID,
		OwnerID:   c.OwnerID,
		Model:     m.embedder.Model(),
		Embedding: vec,
	})
}

// MatchGoal returns the k contacts of ownerID closest to the goal text.
func (m *Matcher) MatchGoal(ctx context.Context, ownerID, text string, k int) ([]Match, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: goal text is required", storage.ErrInvalidRecord)
	}
	vec, err := m.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	return m.rank(ctx, ownerID, vec, k, "")
}

// SimilarContacts returns the k contacts closest to contactID, excluding itself.
func (m *Matcher) SimilarContacts(ctx context.Context, contactID string, k int) ([]Match, error) {
	v, err := m.store.Get(ctx, contactID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("contact %s has no embedding yet: %w", contactID, storage.ErrNotFound)
		}
		return nil, err
	}
	return m.rank(ctx, v.OwnerID, v.Embedding, k, contactID)
}

// rank over-fetches candidates so that trust tie-breaks at the cut-off are
// decided on the full tie group, then truncates to k.
func (m *Matcher) rank(ctx context.Context, ownerID string, vec []float32, k int, exclude string) ([]Match, error) {
	if k <= 0 {
		return nil, nil
	}
	hits, err := m.store.Search(ctx, ownerID, vec, k*2+8, exclude)
	if err != nil {
		return nil, err
	}

	matches := make([]Match, 0, len(hits))
	for _, h := range hits {
		c, err := m.dir.GetContact(h.ContactID)
		if errors.Is(err, storage.ErrNotFound) {
			slog.Debug("skipping vector for missing contact", "contact_id", h.ContactID)
			continue
		}
		if err != nil {
			return nil, err
		}
		match := Match{Contact: c, Similarity: h.Similarity, Tier: c.Tier, Degenerate: h.Degenerate}
		ti, err := m.dir.GetTrustInsight(h.ContactID)
		switch {
		case err == nil:
			match.Tier, match.TrustScore = ti.Tier, ti.Score
		case !errors.Is(err, storage.ErrNotFound):
			return nil, err
		}
		matches = append(matches, match)
	}

	SortMatches(matches)
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

// SortMatches puts degenerate matches last, then orders by similarity, tier
// rank and trust score, all descending, with contact ID as the final tie-break.
func SortMatches(ms []Match) {
	sort.SliceStable(ms, func(i, j int) bool {
		a, b := ms[i], ms[j]
		if a.Degenerate != b.Degenerate {
			return b.Degenerate
		}
		if a.Similarity != b.Similarity {
			return a.Similarity > b.Similarity
		}
		if ra, rb := a.Tier.Rank(), b.Tier.Rank(); ra != rb {
			return ra > rb
		}
		if a.TrustScore != b.TrustScore {
			return a.TrustScore > b.TrustScore
		}
		return a.Contact.ID < b.Contact.ID
	})
}
