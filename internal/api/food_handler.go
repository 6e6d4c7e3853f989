package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"budget-meal-planner/internal/sources"
)

// FoodService is the slice of the application the catalog endpoints use.
// The catalog is global, so these endpoints need no user header.
type FoodService interface {
	SearchFoods(ctx context.Context, query string, limit int) ([]sources.FoodItem, error)
	FoodByID(ctx context.Context, id int64) (*sources.FoodItem, error)
}

// FoodHandler exposes the generic food catalog.
type FoodHandler struct {
	svc    FoodService
	logger *zap.Logger
}

func NewFoodHandler(svc FoodService, logger *zap.Logger) *FoodHandler {
	return &FoodHandler{svc: svc, logger: logger}
}

func (h *FoodHandler) RegisterRoutes(router *gin.RouterGroup) {
	foods := router.Group("/foods")
	{
		foods.GET("/search", h.Search)
		foods.GET("/:id", h.GetByID)
	}
}

// Search finds catalog foods by name substring.
func (h *FoodHandler) Search(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "q is required"})
		return
	}

	limit := 20
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive number"})
			return
		}
		if parsed > 100 {
			parsed = 100
		}
		limit = parsed
	}

	items, err := h.svc.SearchFoods(c.Request.Context(), query, limit)
	if err != nil {
		handleError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"results": items, "count": len(items)})
}

// GetByID returns one catalog food.
func (h *FoodHandler) GetByID(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "food id must be a number"})
		return
	}

	item, err := h.svc.FoodByID(c.Request.Context(), id)
	if err != nil {
		handleError(c, h.logger, err)
		return
	}
	if item == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "food not found"})
		return
	}

	c.JSON(http.StatusOK, item)
}
