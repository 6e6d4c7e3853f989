package importer

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"budget-meal-planner/internal/llm"
	"budget-meal-planner/internal/recipe"
	"budget-meal-planner/internal/shared"
	"budget-meal-planner/internal/vault"

	"github.com/PuerkitoBio/goquery"
)

// Importer pulls a recipe page from the web, extracts a structured recipe
// and stores it in the vault plus the local recipe and embedding tables,
// making it available to the structured-recipe source.
type Importer struct {
	vaultClient vault.Client
	textGen     llm.TextGenerator
	embGen      llm.EmbeddingGenerator
	recipes     *recipe.Repository
	vectors     *llm.VectorRepository
	httpClient  *http.Client
}

// NewImporter creates a new Importer instance.
func NewImporter(
	vaultClient vault.Client,
	textGen llm.TextGenerator,
	embGen llm.EmbeddingGenerator,
	recipes *recipe.Repository,
	vectors *llm.VectorRepository,
) *Importer {
	return &Importer{
		vaultClient: vaultClient,
		textGen:     textGen,
		embGen:      embGen,
		recipes:     recipes,
		vectors:     vectors,
		httpClient:  &http.Client{Timeout: 15 * time.Second},
	}
}

// ImportURL fetches the URL, extracts the recipe using the LLM, publishes it
// to the vault and saves it locally.
func (i *Importer) ImportURL(ctx context.Context, url string) (*recipe.Recipe, shared.AgentMeta, error) {
	// 1. Fetch and Clean HTML
	content, err := i.fetchAndCleanHTML(url)
	if err != nil {
		return nil, shared.AgentMeta{}, fmt.Errorf("failed to fetch content: %w", err)
	}

	// 2. Extract structured recipe + embedding
	result, meta, err := recipe.NormalizeHTML(ctx, i.textGen, i.embGen, recipe.PageData{
		Title: url,
		HTML:  content,
	})
	if err != nil {
		return nil, meta, fmt.Errorf("extraction failed: %w", err)
	}

	// 3. Publish to the vault
	html := formatToHTML(result.Recipe, url)
	entry, err := i.vaultClient.CreateEntry(result.Recipe.Title, html, true)
	if err != nil {
		return nil, meta, fmt.Errorf("failed to save to vault: %w", err)
	}

	// 4. Save locally under the vault-assigned ID
	rec := result.Recipe
	rec.ID = entry.ID
	if entry.UpdatedAt != "" {
		rec.UpdatedAt = entry.UpdatedAt
	}

	if err := i.recipes.Save(ctx, rec); err != nil {
		return nil, meta, fmt.Errorf("failed to save recipe: %w", err)
	}
	if err := i.vectors.Save(ctx, rec.ID, result.Embedding); err != nil {
		return nil, meta, fmt.Errorf("failed to save embedding: %w", err)
	}

	return &rec, meta, nil
}

func (i *Importer) fetchAndCleanHTML(url string) (string, error) {
	resp, err := i.httpClient.Get(url)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to fetch URL: status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", err
	}

	// Remove noise to save LLM tokens
	doc.Find("script, style, nav, footer, iframe, ads, .ads, #ads").Each(func(i int, s *goquery.Selection) {
		s.Remove()
	})

	return doc.Find("body").Text(), nil
}

func formatToHTML(r recipe.Recipe, sourceURL string) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("<p><i>Imported from: <a href=\"%s\">%s</a></i></p>", sourceURL, sourceURL))

	sb.WriteString("<h2>Ingredients</h2><ul>")
	for _, ing := range r.Ingredients {
		sb.WriteString(fmt.Sprintf("<li>%s</li>", ing))
	}
	sb.WriteString("</ul>")

	sb.WriteString("<h2>Instructions</h2>")
	sb.WriteString(fmt.Sprintf("<p>%s</p>", r.Instructions))

	sb.WriteString("<hr>")
	sb.WriteString(fmt.Sprintf("<p><strong>Prep Time:</strong> %d min | <strong>Servings:</strong> %d</p>",
		r.PrepTimeMinutes, r.Servings))
	sb.WriteString(fmt.Sprintf("<p><strong>Per serving:</strong> %.0f kcal | P %.0fg | C %.0fg | F %.0fg</p>",
		r.Calories, r.Proteins, r.Carbs, r.Fats))

	return sb.String()
}
