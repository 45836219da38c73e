// Package engine abstracts the local inference backend used for embeddings
// and outreach drafting.
package engine

import "context"

// Engine is a local inference backend. Consumers such as the contact embedder
// and the outreach drafter use this interface instead of a concrete client.
type Engine interface {
	// Chat sends messages to the given model and returns the assistant's response.
	// When jsonSchema is non-nil, structured JSON output is requested.
	Chat(ctx context.Context, model string, messages []Message, jsonSchema *Schema) (string, error)

	Embed(ctx context.Context, model string, text string) ([]float32, error)

	// EmbedBatch embeds texts in one round trip; the result is aligned with texts.
	EmbedBatch(ctx context.Context, model string, texts []string) ([][]float32, error)

	IsRunning(ctx context.Context) bool

	ListModels(ctx context.Context) ([]string, error)

	// HasModel reports whether the given model name is available locally.
	HasModel(ctx context.Context, name string) bool

	// PullModel downloads a model. The optional callback receives progress updates.
	PullModel(ctx context.Context, name string, onProgress func(PullProgress)) error
}
