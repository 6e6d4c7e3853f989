package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

const (
	defaultDatabasePath       = "meal_planner.db"
	defaultProductAPIURL      = "https://world.openfoodfacts.org"
	defaultDailyCalorieTarget = 2000
	defaultRewardDayIndex     = 6
	defaultSourcePreference   = "balanced"
	defaultEatingWindowStart  = 8
)

// Config holds the configuration for the application.
type Config struct {
	VaultURL        string
	VaultContentKey string
	VaultAdminKey   string
	GeminiAPIKey    string
	GroqAPIKey      string

	DatabasePath  string
	RedisAddr     string
	RedisPassword string
	ProductAPIURL string

	// Planning defaults, overridable per request.
	DailyCalorieTarget int
	RewardDayIndex     int
	SourcePreference   string
	EatingWindowStart  int

	// Telegram Config
	TelegramBotToken    string
	TelegramWebhookURL  string
	TelegramAllowUserID int64
}

// NewFromEnv creates a new Config object from environment variables.
func NewFromEnv() (*Config, error) {
	vaultURL := os.Getenv("VAULT_API_URL")
	if vaultURL == "" {
		return nil, fmt.Errorf("VAULT_API_URL environment variable not set")
	}

	vaultContentKey := os.Getenv("VAULT_CONTENT_API_KEY")
	if vaultContentKey == "" {
		return nil, fmt.Errorf("VAULT_CONTENT_API_KEY environment variable not set")
	}

	vaultAdminKey := os.Getenv("VAULT_ADMIN_API_KEY")
	if vaultAdminKey == "" {
		// Fallback to content key if only one is provided
		vaultAdminKey = vaultContentKey
	}

	geminiAPIKey := os.Getenv("GEMINI_API_KEY")
	if geminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY environment variable not set")
	}

	groqAPIKey := os.Getenv("GROQ_API_KEY")
	if groqAPIKey == "" {
		return nil, fmt.Errorf("GROQ_API_KEY environment variable not set")
	}

	databasePath := os.Getenv("DATABASE_PATH")
	if databasePath == "" {
		databasePath = defaultDatabasePath
	}

	productAPIURL := os.Getenv("PRODUCT_API_URL")
	if productAPIURL == "" {
		productAPIURL = defaultProductAPIURL
	}

	// Redis is optional; an empty address disables the search cache.
	redisAddr := os.Getenv("REDIS_ADDR")
	redisPassword := os.Getenv("REDIS_PASSWORD")

	dailyCalorieTarget := intFromEnv("DAILY_CALORIE_TARGET", defaultDailyCalorieTarget)
	rewardDayIndex := intFromEnv("REWARD_DAY_INDEX", defaultRewardDayIndex)
	eatingWindowStart := intFromEnv("EATING_WINDOW_START_HOUR", defaultEatingWindowStart)

	sourcePreference := os.Getenv("SOURCE_PREFERENCE")
	if sourcePreference == "" {
		sourcePreference = defaultSourcePreference
	}

	// Telegram Config (Optional for CLI, required for Bot)
	telegramBotToken := os.Getenv("TELEGRAM_BOT_TOKEN")
	telegramWebhookURL := os.Getenv("TELEGRAM_WEBHOOK_URL")
	telegramAllowUserIDStr := os.Getenv("TELEGRAM_ALLOW_USER_ID")
	var telegramAllowUserID int64
	if telegramAllowUserIDStr != "" {
		fmt.Sscanf(telegramAllowUserIDStr, "%d", &telegramAllowUserID)
	}

	return &Config{
		VaultURL:            vaultURL,
		VaultContentKey:     vaultContentKey,
		VaultAdminKey:       vaultAdminKey,
		GeminiAPIKey:        geminiAPIKey,
		GroqAPIKey:          groqAPIKey,
		DatabasePath:        databasePath,
		RedisAddr:           redisAddr,
		RedisPassword:       redisPassword,
		ProductAPIURL:       productAPIURL,
		DailyCalorieTarget:  dailyCalorieTarget,
		RewardDayIndex:      rewardDayIndex,
		SourcePreference:    sourcePreference,
		EatingWindowStart:   eatingWindowStart,
		TelegramBotToken:    telegramBotToken,
		TelegramWebhookURL:  telegramWebhookURL,
		TelegramAllowUserID: telegramAllowUserID,
	}, nil
}

// DataDir is the directory holding the database file, and by convention
// the embedding and recipe caches next to it.
func (c *Config) DataDir() string {
	return filepath.Dir(c.DatabasePath)
}

// intFromEnv reads an integer variable, keeping the fallback on a
// missing or unparseable value.
func intFromEnv(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
