package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"budget-meal-planner/internal/planner"
)

// PlanService is the slice of the application the plan endpoints use.
type PlanService interface {
	GeneratePlan(ctx context.Context, prefs planner.Preferences) (*planner.WeeklyPlan, error)
	LatestPlan(ctx context.Context, userID string) (*planner.WeeklyPlan, error)
	RegenerateDay(ctx context.Context, planID string, dayIndex int, prefs planner.Preferences) (*planner.WeeklyPlan, error)
	ProposeRewardDay(ctx context.Context, planID string, chosenIndex int, prefs planner.Preferences) (*planner.WeeklyPlan, error)
}

// PlanHandler exposes weekly plan generation over HTTP.
type PlanHandler struct {
	svc    PlanService
	logger *zap.Logger
}

func NewPlanHandler(svc PlanService, logger *zap.Logger) *PlanHandler {
	return &PlanHandler{svc: svc, logger: logger}
}

// preferencesPayload is the request shape shared by every endpoint that
// needs the user's planning constraints.
type preferencesPayload struct {
	DailyCalories     float64  `json:"daily_calories" binding:"required"`
	RewardDayIndex    *int     `json:"reward_day_index"`
	SourcePreference  string   `json:"source_preference"`
	DietType          string   `json:"diet_type"`
	Allergies         []string `json:"allergies"`
	MaxPrepMinutes    int      `json:"max_prep_minutes"`
	EatingWindowStart int      `json:"eating_window_start"`
}

func (p preferencesPayload) toPreferences(userID string) planner.Preferences {
	return planner.Preferences{
		UserID:            userID,
		DailyCalories:     p.DailyCalories,
		RewardDayIndex:    p.RewardDayIndex,
		SourcePreference:  p.SourcePreference,
		DietType:          p.DietType,
		Allergies:         p.Allergies,
		MaxPrepMinutes:    p.MaxPrepMinutes,
		EatingWindowStart: p.EatingWindowStart,
	}
}

type rewardDayRequest struct {
	DayIndex int `json:"day_index" binding:"required"`
	preferencesPayload
}

func (h *PlanHandler) RegisterRoutes(router *gin.RouterGroup) {
	plans := router.Group("/plans")
	{
		plans.POST("", h.Generate)
		plans.GET("/latest", h.Latest)
		plans.POST("/:id/days/:index/regenerate", h.RegenerateDay)
		plans.POST("/:id/reward-day", h.ProposeRewardDay)
	}
}

// Generate builds and stores a fresh weekly plan for the user.
func (h *PlanHandler) Generate(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req preferencesPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}
	if err := req.validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	plan, err := h.svc.GeneratePlan(c.Request.Context(), req.toPreferences(userID))
	if err != nil {
		handleError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, plan)
}

// Latest returns the newest stored plan for the user.
func (h *PlanHandler) Latest(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	plan, err := h.svc.LatestPlan(c.Request.Context(), userID)
	if err != nil {
		handleError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, plan)
}

// RegenerateDay rebuilds one day of a stored plan, keeping the others.
func (h *PlanHandler) RegenerateDay(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	dayIndex, err := strconv.Atoi(c.Param("index"))
	if err != nil || dayIndex < 0 || dayIndex > 6 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "day index must be between 0 and 6"})
		return
	}

	var req preferencesPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}
	if err := req.validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	plan, err := h.svc.RegenerateDay(c.Request.Context(), c.Param("id"), dayIndex, req.toPreferences(userID))
	if err != nil {
		handleError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, plan)
}

// ProposeRewardDay converts Saturday or Sunday of a stored plan into the
// reward day funded by the week's savings.
func (h *PlanHandler) ProposeRewardDay(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req rewardDayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}
	if req.DayIndex != 5 && req.DayIndex != 6 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "day_index must be 5 or 6"})
		return
	}
	if err := req.validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	plan, err := h.svc.ProposeRewardDay(c.Request.Context(), c.Param("id"), req.DayIndex, req.toPreferences(userID))
	if err != nil {
		handleError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, plan)
}
