// Package api exposes plan generation, the calorie ledger and the food
// catalog over HTTP. Callers identify themselves with an X-User-ID
// header; user IDs are opaque strings with no account system behind them.
package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"budget-meal-planner/internal/app"
)

func requireUserID(c *gin.Context) (string, bool) {
	userID := c.GetHeader("X-User-ID")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing user id header"})
		return "", false
	}
	return userID, true
}

func (p preferencesPayload) validate() error {
	if p.DailyCalories <= 0 {
		return fmt.Errorf("daily_calories must be positive")
	}
	if p.RewardDayIndex != nil && *p.RewardDayIndex != 5 && *p.RewardDayIndex != 6 {
		return fmt.Errorf("reward_day_index must be 5 or 6")
	}
	if p.MaxPrepMinutes < 0 {
		return fmt.Errorf("max_prep_minutes must be non-negative")
	}
	if p.EatingWindowStart < 0 || p.EatingWindowStart > 23 {
		return fmt.Errorf("eating_window_start must be an hour between 0 and 23")
	}
	return nil
}

func handleError(c *gin.Context, logger *zap.Logger, err error) {
	switch {
	case errors.Is(err, app.ErrPlanNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "plan not found"})

	case errors.Is(err, app.ErrNoLedger):
		c.JSON(http.StatusNotFound, gin.H{"error": "no active ledger cycle; generate a plan first"})

	default:
		logger.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
