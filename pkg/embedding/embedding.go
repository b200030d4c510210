// Package embedding converts text into embedding vectors via an external
// embedding service. All vector compute happens upstream; this package
// only handles the wire protocol.
package embedding

import "context"

// Client embeds text via an external service.
type Client interface {
	// Embed converts a batch of text strings into embedding vectors.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the dimensionality of the embedding vectors.
	// Returns 0 until the first successful Embed call.
	Dimensions() int
}
