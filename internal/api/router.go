package api

import (
	"database/sql"
	"net/http"

	"github.com/gin-gonic/gin"

	"budget-meal-planner/internal/metrics"
)

// RouterDependencies bundles everything the HTTP surface needs.
type RouterDependencies struct {
	PlanHandler   *PlanHandler
	LedgerHandler *LedgerHandler
	FoodHandler   *FoodHandler
	DB            *sql.DB
	DataDir       string
}

// NewRouter assembles the gin engine: CORS, health check and the
// versioned API group.
func NewRouter(deps RouterDependencies) *gin.Engine {
	router := gin.Default()

	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, X-User-ID")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})

	router.GET("/health", func(c *gin.Context) {
		status, dbStatus := "ok", "connected"
		statusCode := http.StatusOK
		if err := deps.DB.Ping(); err != nil {
			status, dbStatus = "error", "unreachable"
			statusCode = http.StatusServiceUnavailable
		}

		c.JSON(statusCode, gin.H{
			"status":   status,
			"database": dbStatus,
			"system":   metrics.GetSysHealth(deps.DataDir),
		})
	})

	apiV1 := router.Group("/api/v1")
	deps.PlanHandler.RegisterRoutes(apiV1)
	deps.LedgerHandler.RegisterRoutes(apiV1)
	deps.FoodHandler.RegisterRoutes(apiV1)

	return router
}
