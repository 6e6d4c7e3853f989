package api_test

import (
	"database/sql"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"budget-meal-planner/internal/api"

	_ "modernc.org/sqlite"
)

func setupFullRouter(t *testing.T) (*gin.Engine, *sql.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Expected no error opening database, got %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := zap.NewNop()
	router := api.NewRouter(api.RouterDependencies{
		PlanHandler:   api.NewPlanHandler(&fakePlanService{plan: samplePlan()}, logger),
		LedgerHandler: api.NewLedgerHandler(&fakeLedgerService{}, logger),
		FoodHandler:   api.NewFoodHandler(&fakeFoodService{}, logger),
		DB:            db,
		DataDir:       t.TempDir(),
	})
	return router, db
}

func TestHealthEndpoint(t *testing.T) {
	t.Run("Healthy", func(t *testing.T) {
		router, _ := setupFullRouter(t)

		w := doJSON(router, "GET", "/health", "", "")

		assert.Equal(t, http.StatusOK, w.Code)
		body := w.Body.String()
		assert.Contains(t, body, `"status":"ok"`)
		assert.Contains(t, body, `"database":"connected"`)
		assert.Contains(t, body, "goroutines")
	})

	t.Run("DatabaseDown", func(t *testing.T) {
		router, db := setupFullRouter(t)
		db.Close()

		w := doJSON(router, "GET", "/health", "", "")

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Contains(t, w.Body.String(), `"database":"unreachable"`)
	})
}

func TestCORSPreflight(t *testing.T) {
	router, _ := setupFullRouter(t)

	w := doJSON(router, "OPTIONS", "/api/v1/plans", "", "")

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRoutesRegistered(t *testing.T) {
	router, _ := setupFullRouter(t)

	routes := map[string]bool{}
	for _, r := range router.Routes() {
		routes[r.Method+" "+r.Path] = true
	}

	for _, want := range []string{
		"POST /api/v1/plans",
		"GET /api/v1/plans/latest",
		"POST /api/v1/plans/:id/days/:index/regenerate",
		"POST /api/v1/plans/:id/reward-day",
		"POST /api/v1/ledger/consumption",
		"GET /api/v1/ledger/credit",
		"GET /api/v1/foods/search",
		"GET /api/v1/foods/:id",
		"GET /health",
	} {
		assert.True(t, routes[want], "route %s not registered", want)
	}
}
