// Package llm defines the text-generation and embedding contracts the
// planning pipeline depends on, plus the Gemini and Groq clients, a
// file-backed embedding cache, and the SQLite vector repository behind
// semantic recipe search.
package llm

import (
	"context"

	"budget-meal-planner/internal/shared"
)

// ContentResponse carries one model completion together with the token
// usage the metrics store records.
type ContentResponse struct {
	Content string
	Usage   shared.TokenUsage
}

// TextGenerator produces a completion for a prompt. The recipe extractor
// and the generative meal fallback both run on it.
type TextGenerator interface {
	GenerateContent(ctx context.Context, prompt string) (ContentResponse, error)
}

// EmbeddingGenerator turns text into a vector for similarity search.
type EmbeddingGenerator interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}
