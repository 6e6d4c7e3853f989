package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"budget-meal-planner/internal/ledger"
)

// LedgerService is the slice of the application the ledger endpoints use.
type LedgerService interface {
	LogConsumption(ctx context.Context, userID string, date time.Time, calories float64) (*ledger.Ledger, error)
	CreditStatus(ctx context.Context, userID string) (*ledger.Ledger, error)
}

// LedgerHandler exposes consumption logging and the credit balance.
type LedgerHandler struct {
	svc    LedgerService
	logger *zap.Logger
}

func NewLedgerHandler(svc LedgerService, logger *zap.Logger) *LedgerHandler {
	return &LedgerHandler{svc: svc, logger: logger}
}

type logConsumptionRequest struct {
	// Date is the day the calories were eaten, YYYY-MM-DD. Empty means
	// today.
	Date     string  `json:"date"`
	Calories float64 `json:"calories" binding:"required"`
}

func (h *LedgerHandler) RegisterRoutes(router *gin.RouterGroup) {
	group := router.Group("/ledger")
	{
		group.POST("/consumption", h.LogConsumption)
		group.GET("/credit", h.Credit)
	}
}

// LogConsumption records calories eaten on a date of the current cycle.
func (h *LedgerHandler) LogConsumption(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req logConsumptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}
	if req.Calories < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "calories must be non-negative"})
		return
	}

	date := time.Now().UTC()
	if req.Date != "" {
		parsed, err := time.Parse("2006-01-02", req.Date)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
			return
		}
		date = parsed
	}

	l, err := h.svc.LogConsumption(c.Request.Context(), userID, date, req.Calories)
	if err != nil {
		handleError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, ledgerStatus(l, time.Now().UTC()))
}

// Credit returns the cycle's accumulated savings and reward eligibility.
func (h *LedgerHandler) Credit(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	l, err := h.svc.CreditStatus(c.Request.Context(), userID)
	if err != nil {
		handleError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, ledgerStatus(l, time.Now().UTC()))
}

// ledgerStatus renders the client view of a cycle. Credit counts only
// days before the current one, so today's meals never inflate it.
func ledgerStatus(l *ledger.Ledger, now time.Time) gin.H {
	idx := l.DayIndex(now)
	if idx < 0 {
		idx = 0
	} else if idx > 6 {
		idx = 6
	}

	credit, _ := l.CumulativeCredit(idx)
	eligible, _ := l.IsRewardEligible(idx)
	days := l.Days()

	return gin.H{
		"cycle_start":       l.CycleStart().Format("2006-01-02"),
		"day_index":         idx,
		"daily_target":      l.DailyTarget(),
		"cumulative_credit": credit,
		"max_variance":      l.MaxVariance(),
		"reward_day_index":  l.RewardDayIndex(),
		"reward_eligible":   eligible,
		"reward_confirmed":  l.RewardConfirmed(),
		"days":              days[:],
	}
}
