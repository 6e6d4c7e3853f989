package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestGroqClient(serverURL string) *groqClient {
	return &groqClient{
		apiKey:     "test_key",
		baseURL:    serverURL,
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
}

func TestGroqGenerateContent(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if got := r.Header.Get("Authorization"); got != "Bearer test_key" {
				t.Errorf("Expected Authorization 'Bearer test_key', got '%s'", got)
			}
			w.WriteHeader(http.StatusOK)
			fmt.Fprintln(w, `{
				"choices": [{"message": {"content": "{\"name\": \"Lentil Soup\"}"}}],
				"usage": {"prompt_tokens": 120, "completion_tokens": 45, "total_tokens": 165}
			}`)
		}))
		defer server.Close()

		client := newTestGroqClient(server.URL)
		resp, err := client.GenerateContent(ctx, "describe a meal")
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if resp.Content != `{"name": "Lentil Soup"}` {
			t.Errorf("Expected content '{\"name\": \"Lentil Soup\"}', got '%s'", resp.Content)
		}
		if resp.Usage.PromptTokens != 120 {
			t.Errorf("Expected 120 prompt tokens, got %d", resp.Usage.PromptTokens)
		}
		if resp.Usage.CompletionTokens != 45 {
			t.Errorf("Expected 45 completion tokens, got %d", resp.Usage.CompletionTokens)
		}
		if resp.Usage.TotalTokens != 165 {
			t.Errorf("Expected 165 total tokens, got %d", resp.Usage.TotalTokens)
		}
	})

	t.Run("ServerError", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		client := newTestGroqClient(server.URL)
		_, err := client.GenerateContent(ctx, "describe a meal")
		if err == nil {
			t.Fatal("Expected an error for non-200 status code, got nil")
		}
	})

	t.Run("EmptyChoices", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			fmt.Fprintln(w, `{"choices": []}`)
		}))
		defer server.Close()

		client := newTestGroqClient(server.URL)
		_, err := client.GenerateContent(ctx, "describe a meal")
		if err == nil {
			t.Fatal("Expected an error for empty choices, got nil")
		}
	})
}
