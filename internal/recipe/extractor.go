package recipe

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"text/template"
	"time"

	"budget-meal-planner/internal/llm"
	"budget-meal-planner/internal/shared"
)

//go:embed extractor_prompt.md
var extractorPrompt string

type ExtractorResult struct {
	Recipe Recipe
	Meta   shared.AgentMeta
}

// NormalizeHTML takes a raw recipe page, extracts structured information
// using an LLM, and generates a vector embedding for semantic search.
func NormalizeHTML(
	ctx context.Context,
	textGen llm.TextGenerator,
	embGen llm.EmbeddingGenerator,
	data PageData,
) (RecipeWithEmbedding, shared.AgentMeta, error) {
	result, err := runExtractor(ctx, textGen, data)
	if err != nil {
		return RecipeWithEmbedding{}, result.Meta, err
	}

	embedding, err := embGen.GenerateEmbedding(ctx, result.Recipe.ToEmbeddingText())
	if err != nil {
		return RecipeWithEmbedding{}, result.Meta, fmt.Errorf("failed to generate embedding: %w", err)
	}

	return RecipeWithEmbedding{
		Recipe:    result.Recipe,
		Embedding: embedding,
	}, result.Meta, nil
}

func runExtractor(
	ctx context.Context,
	textGen llm.TextGenerator,
	data PageData,
) (ExtractorResult, error) {
	start := time.Now()

	prompt, err := buildExtractorPrompt(data)
	if err != nil {
		return ExtractorResult{}, err
	}

	llmResp, err := textGen.GenerateContent(ctx, prompt)
	if err != nil {
		return ExtractorResult{}, fmt.Errorf("failed to get LLM response: %w", err)
	}

	rec := Recipe{}
	if err := json.Unmarshal([]byte(llmResp.Content), &rec); err != nil {
		return ExtractorResult{
			Recipe: rec,
			Meta: shared.AgentMeta{
				AgentName: "Extractor",
				Usage:     llmResp.Usage,
				Latency:   time.Since(start),
			},
		}, fmt.Errorf("failed to unmarshal LLM response: %w", err)
	}

	rec.ID = data.ID
	rec.UpdatedAt = data.UpdatedAt
	return ExtractorResult{
		Recipe: rec,
		Meta: shared.AgentMeta{
			AgentName: "Extractor",
			Usage:     llmResp.Usage,
			Latency:   time.Since(start),
		},
	}, nil
}

func buildExtractorPrompt(data PageData) (string, error) {
	tmpl, err := template.New("extractor").Parse(extractorPrompt)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}

	return buf.String(), nil
}
