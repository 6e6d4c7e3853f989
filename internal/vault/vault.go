package vault

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"budget-meal-planner/internal/config"

	"github.com/golang-jwt/jwt/v5"
)

// Entry represents a single recipe page stored in the vault.
type Entry struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	HTML      string `json:"html"`
	UpdatedAt string `json:"updated_at"`
}

// EntriesResponse is the top-level structure of the vault API response.
type EntriesResponse struct {
	Entries []Entry `json:"entries"`
}

// Client is an interface for a recipe vault client (Content & Admin).
type Client interface {
	FetchEntries() ([]Entry, error)
	CreateEntry(title, html string, publish bool) (*Entry, error)
}

// vaultClient is the concrete implementation of the vault API client.
type vaultClient struct {
	httpClient *http.Client
	config     *config.Config
}

// NewClient creates a new vault API client.
func NewClient(cfg *config.Config) Client {
	return &vaultClient{
		httpClient: &http.Client{},
		config:     cfg,
	}
}

// FetchEntries fetches all recipe pages from the vault Content API.
func (c *vaultClient) FetchEntries() ([]Entry, error) {
	url := fmt.Sprintf("%s/api/content/entries/?key=%s", c.config.VaultURL, c.config.VaultContentKey)

	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("content api error: status %d", resp.StatusCode)
	}

	var entriesResponse EntriesResponse
	if err := json.NewDecoder(resp.Body).Decode(&entriesResponse); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return entriesResponse.Entries, nil
}

// CreateEntry creates a new recipe page using the vault Admin API.
func (c *vaultClient) CreateEntry(title, html string, publish bool) (*Entry, error) {
	token, err := c.createAdminToken()
	if err != nil {
		return nil, fmt.Errorf("failed to create admin token: %w", err)
	}

	status := "draft"
	if publish {
		status = "published"
	}

	newEntry := map[string]interface{}{
		"entries": []map[string]interface{}{
			{
				"title":  title,
				"html":   html,
				"status": status,
			},
		},
	}

	body, _ := json.Marshal(newEntry)
	url := fmt.Sprintf("%s/api/admin/entries/?source=html", c.config.VaultURL)

	req, err := http.NewRequest("POST", url, strings.NewReader(string(body)))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		var errResp interface{}
		json.NewDecoder(resp.Body).Decode(&errResp)
		return nil, fmt.Errorf("admin api error: status %d, body: %v", resp.StatusCode, errResp)
	}

	var response EntriesResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, err
	}

	if len(response.Entries) == 0 {
		return nil, fmt.Errorf("no entry returned from api")
	}

	return &response.Entries[0], nil
}

// createAdminToken generates a short-lived JWT for the Admin API.
func (c *vaultClient) createAdminToken() (string, error) {
	keyParts := strings.Split(c.config.VaultAdminKey, ":")
	if len(keyParts) != 2 {
		return "", fmt.Errorf("invalid admin key format: expected id:secret")
	}

	id := keyParts[0]
	secretHex := keyParts[1]

	secret, err := hex.DecodeString(secretHex)
	if err != nil {
		return "", fmt.Errorf("failed to decode secret hex: %w", err)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(5 * time.Minute).Unix(),
		"aud": "/api/admin/",
	})
	token.Header["kid"] = id

	return token.SignedString(secret)
}
