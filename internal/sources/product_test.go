package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"budget-meal-planner/internal/nutrition"

	"go.uber.org/zap"
)

func TestProductAPIAdapter(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if got := r.URL.Query().Get("search_terms"); got != "granola" {
				t.Errorf("Expected search_terms 'granola', got '%s'", got)
			}
			w.WriteHeader(http.StatusOK)
			// Mixed numeric types on purpose: the API serves both.
			fmt.Fprintln(w, `{
				"products": [
					{
						"product_name": "Crunchy Granola",
						"brands": "Acme",
						"nutriments": {
							"energy-kcal_100g": 450,
							"proteins_100g": "10.5",
							"carbohydrates_100g": 60,
							"fat_100g": 18
						}
					},
					{
						"product_name": "Mystery Bar",
						"nutriments": {}
					}
				]
			}`)
		}))
		defer server.Close()

		adapter := NewProductAPIAdapter(server.URL, zap.NewNop())
		candidates := adapter.Search(ctx, "granola", Constraints{TargetCalories: 450})

		// The product without kcal data is dropped.
		if len(candidates) != 1 {
			t.Fatalf("Expected 1 candidate, got %d", len(candidates))
		}
		got := candidates[0]
		if got.Name != "Crunchy Granola" {
			t.Errorf("Expected name 'Crunchy Granola', got '%s'", got.Name)
		}
		if got.Calories != 450 {
			t.Errorf("Expected 450 calories for a 100g portion, got %f", got.Calories)
		}
		if got.Proteins != 11 { // 10.5 rounded
			t.Errorf("Expected 11g protein, got %f", got.Proteins)
		}
		if got.SourceKind != nutrition.SourcePackagedProduct {
			t.Errorf("Expected packaged-product source kind, got '%s'", got.SourceKind)
		}
		if got.Description != "Acme" {
			t.Errorf("Expected brand in description, got '%s'", got.Description)
		}
	})

	t.Run("ServerErrorNeverRaises", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer server.Close()

		adapter := NewProductAPIAdapter(server.URL, zap.NewNop())
		candidates := adapter.Search(ctx, "granola", Constraints{TargetCalories: 450})
		if candidates != nil {
			t.Errorf("Expected nil candidates on server error, got %v", candidates)
		}
	})

	t.Run("UnreachableHostNeverRaises", func(t *testing.T) {
		adapter := NewProductAPIAdapter("http://127.0.0.1:1", zap.NewNop())
		candidates := adapter.Search(ctx, "granola", Constraints{TargetCalories: 450})
		if candidates != nil {
			t.Errorf("Expected nil candidates on connection failure, got %v", candidates)
		}
	})

	t.Run("AllergyFilter", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			fmt.Fprintln(w, `{
				"products": [
					{"product_name": "Peanut bar", "nutriments": {"energy-kcal_100g": 500}}
				]
			}`)
		}))
		defer server.Close()

		adapter := NewProductAPIAdapter(server.URL, zap.NewNop())
		candidates := adapter.Search(ctx, "bar", Constraints{TargetCalories: 300, Allergies: []string{"peanut"}})
		if len(candidates) != 0 {
			t.Errorf("Expected allergen matches to be filtered out, got %d candidates", len(candidates))
		}
	})
}

func TestNutrimentValue(t *testing.T) {
	nutriments := map[string]interface{}{
		"energy-kcal_100g": 420.0,
		"proteins_100g":    "12.5",
		"fat_100g":         "oops",
	}

	if got := nutrimentValue(nutriments, "energy-kcal_100g"); got != 420 {
		t.Errorf("Expected 420, got %f", got)
	}
	if got := nutrimentValue(nutriments, "proteins_100g"); got != 12.5 {
		t.Errorf("Expected 12.5, got %f", got)
	}
	if got := nutrimentValue(nutriments, "fat_100g"); got != 0 {
		t.Errorf("Expected 0 for an unparseable string, got %f", got)
	}
	if got := nutrimentValue(nutriments, "missing"); got != 0 {
		t.Errorf("Expected 0 for a missing key, got %f", got)
	}
}
