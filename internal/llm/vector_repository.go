package llm

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"slices"
)

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// VectorRepository stores recipe embeddings as little-endian float32 blobs
// and serves cosine-similarity lookups over them.
type VectorRepository struct {
	q  dbtx
	db *sql.DB
}

func NewVectorRepository(d *sql.DB) *VectorRepository {
	return &VectorRepository{q: d, db: d}
}

// WithTx returns a new VectorRepository that uses the provided transaction.
func (r *VectorRepository) WithTx(tx *sql.Tx) *VectorRepository {
	return &VectorRepository{q: tx, db: r.db}
}

func (r *VectorRepository) Save(ctx context.Context, recipeID string, embedding []float32) error {
	embeddingBytes, err := float32SliceToByteSlice(embedding)
	if err != nil {
		return fmt.Errorf("failed to convert float32 slice to byte slice: %w", err)
	}

	_, err = r.q.ExecContext(ctx, `
		INSERT INTO recipe_embeddings (recipe_id, embedding)
		VALUES (?, ?)
		ON CONFLICT(recipe_id) DO UPDATE SET embedding = excluded.embedding`,
		recipeID, embeddingBytes,
	)
	if err != nil {
		return fmt.Errorf("failed to insert embedding: %w", err)
	}
	return nil
}

func (r *VectorRepository) Get(ctx context.Context, recipeID string) ([]float32, error) {
	var embeddingBytes []byte
	err := r.q.QueryRowContext(ctx,
		`SELECT embedding FROM recipe_embeddings WHERE recipe_id = ?`, recipeID,
	).Scan(&embeddingBytes)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Embedding not found
		}
		return nil, fmt.Errorf("failed to get embedding by recipe ID: %w", err)
	}

	embedding, err := byteSliceToFloat32Slice(embeddingBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to convert byte slice to float32 slice: %w", err)
	}
	return embedding, nil
}

// FindSimilar searches for recipes with embeddings similar to the query.
// It retrieves all embeddings, calculates cosine similarity, and returns the
// IDs of the top N similar recipes, best first.
func (r *VectorRepository) FindSimilar(ctx context.Context, queryEmbedding []float32, limit int, excludeIDs []string) ([]string, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT recipe_id, embedding FROM recipe_embeddings`)
	if err != nil {
		return nil, fmt.Errorf("failed to list all embeddings: %w", err)
	}
	defer rows.Close()

	// Create a map for efficient exclusion lookup
	excludeMap := make(map[string]struct{})
	for _, id := range excludeIDs {
		excludeMap[id] = struct{}{}
	}

	type scoredRecipe struct {
		RecipeID string
		Score    float64
	}

	scoredRecipes := []scoredRecipe{}

	for rows.Next() {
		var recipeID string
		var embeddingBytes []byte
		if err := rows.Scan(&recipeID, &embeddingBytes); err != nil {
			return nil, fmt.Errorf("failed to scan embedding row: %w", err)
		}

		// Skip if ID is in the exclusion list
		if _, excluded := excludeMap[recipeID]; excluded {
			continue
		}

		embed, err := byteSliceToFloat32Slice(embeddingBytes)
		if err != nil {
			// A corrupt row should not sink the whole search.
			continue
		}

		scoredRecipes = append(scoredRecipes, scoredRecipe{
			RecipeID: recipeID,
			Score:    cosineSimilarity(queryEmbedding, embed),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate embeddings: %w", err)
	}

	// Sort by score descending
	slices.SortFunc(scoredRecipes, func(a, b scoredRecipe) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		default:
			return 0
		}
	})

	if limit > len(scoredRecipes) {
		limit = len(scoredRecipes)
	}

	var result []string
	for i := 0; i < limit; i++ {
		result = append(result, scoredRecipes[i].RecipeID)
	}

	return result, nil
}

// float32SliceToByteSlice converts a slice of float32 to a byte slice.
func float32SliceToByteSlice(floats []float32) ([]byte, error) {
	if len(floats) == 0 {
		return nil, nil
	}
	buf := make([]byte, 4*len(floats)) // 4 bytes per float32
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:(i+1)*4], math.Float32bits(f))
	}
	return buf, nil
}

// byteSliceToFloat32Slice converts a byte slice to a slice of float32.
func byteSliceToFloat32Slice(bytes []byte) ([]float32, error) {
	if len(bytes) == 0 {
		return nil, nil
	}
	if len(bytes)%4 != 0 {
		return nil, fmt.Errorf("byte slice length is not a multiple of 4")
	}
	floats := make([]float32, len(bytes)/4)
	for i := 0; i < len(bytes)/4; i++ {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(bytes[i*4 : (i+1)*4]))
	}
	return floats, nil
}

// cosineSimilarity calculates the cosine similarity between two vectors.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0.0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i] * b[i])
		normA += float64(a[i] * a[i])
		normB += float64(b[i] * b[i])
	}

	if normA == 0 || normB == 0 {
		return 0.0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
