// Package matching places contacts and goals in embedding space and ranks
// contacts by semantic similarity, using trust to break ties.
package matching

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/errgroup"

	"github.com/rhizhq/rhiz/internal/engine"
)

// batchSize caps how many texts go into a single embed request.
const batchSize = 16

// Embedder wraps an Engine to generate text embeddings. Results are memoized
// per model and text for the configured TTL.
type Embedder struct {
	engine engine.Engine
	model  string
	memo   *cache.Cache
}

// NewEmbedder creates an Embedder using the given Engine and model name.
// A ttl of zero disables memoization.
func NewEmbedder(e engine.Engine, model string, ttl time.Duration) *Embedder {
	emb := &Embedder{engine: e, model: model}
	if ttl > 0 {
		emb.memo = cache.New(ttl, 2*ttl)
	}
	return emb
}

// Model returns the embedding model name.
func (e *Embedder) Model() string { return e.model }

func (e *Embedder) key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return e.model + ":" + hex.EncodeToString(sum[:])
}

func (e *Embedder) cached(text string) ([]float32, bool) {
	if e.memo == nil {
		return nil, false
	}
	v, ok := e.memo.Get(e.key(text))
	if !ok {
		return nil, false
	}
	return v.([]float32), true
}

func (e *Embedder) remember(text string, vec []float32) {
	if e.memo != nil {
		e.memo.SetDefault(e.key(text), vec)
	}
}

// Embed returns the embedding vector for a single text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if vec, ok := e.cached(text); ok {
		return vec, nil
	}
	vec, err := e.engine.Embed(ctx, e.model, text)
	if err != nil {
		return nil, fmt.Errorf("embedding text: %w", err)
	}
	e.remember(text, vec)
	return vec, nil
}

// EmbedBatch returns embedding vectors aligned with texts. Cache misses are
// sent in batches, at most four in flight. Returns nil for empty input.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	results := make([][]float32, len(texts))
	var missing []int
	for i, text := range texts {
		if vec, ok := e.cached(text); ok {
			results[i] = vec
		} else {
			missing = append(missing, i)
		}
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for start := 0; start < len(missing); start += batchSize {
		idx := missing[start:min(start+batchSize, len(missing))]
		g.Go(func() error {
			batch := make([]string, len(idx))
			for j, i := range idx {
				batch[j] = texts[i]
			}
			vecs, err := e.engine.EmbedBatch(gCtx, e.model, batch)
			if err != nil {
				return fmt.Errorf("embedding batch at %d: %w", idx[0], err)
			}
			if len(vecs) != len(idx) {
				return fmt.Errorf("embedding batch at %d: got %d vectors, want %d", idx[0], len(vecs), len(idx))
			}
			for j, i := range idx {
				results[i] = vecs[j]
				e.remember(texts[i], vecs[j])
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
