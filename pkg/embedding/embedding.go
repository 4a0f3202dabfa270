// Package embedding produces and caches text embedding vectors.
//
// Vectors come from an Ollama embedding model when it is reachable and from
// a deterministic hash-derived fallback when it is not, so callers above
// this package never see an embedding failure.
package embedding

import "context"

// Provider produces an embedding vector for a piece of text.
type Provider interface {
	// Embed returns a vector of Dimension() floats for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimension returns the width of vectors this provider produces.
	Dimension() int
}
