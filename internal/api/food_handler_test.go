package api_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"budget-meal-planner/internal/api"
	"budget-meal-planner/internal/sources"
)

type fakeFoodService struct {
	items []sources.FoodItem
	item  *sources.FoodItem
	err   error

	gotQuery string
	gotLimit int
	gotID    int64
}

func (f *fakeFoodService) SearchFoods(_ context.Context, query string, limit int) ([]sources.FoodItem, error) {
	f.gotQuery = query
	f.gotLimit = limit
	return f.items, f.err
}

func (f *fakeFoodService) FoodByID(_ context.Context, id int64) (*sources.FoodItem, error) {
	f.gotID = id
	return f.item, f.err
}

func setupFoodRouter(svc api.FoodService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	group := r.Group("/api/v1")
	api.NewFoodHandler(svc, zap.NewNop()).RegisterRoutes(group)
	return r
}

func TestSearchFoods(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		svc := &fakeFoodService{items: []sources.FoodItem{
			{ID: 1, Name: "Chicken breast", CaloriesPer100g: 165},
			{ID: 2, Name: "Chicken thigh", CaloriesPer100g: 209},
		}}
		r := setupFoodRouter(svc)

		w := doJSON(r, "GET", "/api/v1/foods/search?q=chicken", "", "")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "Chicken breast")
		assert.Contains(t, w.Body.String(), `"count":2`)
		assert.Equal(t, "chicken", svc.gotQuery)
		assert.Equal(t, 20, svc.gotLimit)
	})

	t.Run("MissingQuery", func(t *testing.T) {
		r := setupFoodRouter(&fakeFoodService{})

		w := doJSON(r, "GET", "/api/v1/foods/search", "", "")

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "q is required")
	})

	t.Run("LimitForwarded", func(t *testing.T) {
		svc := &fakeFoodService{}
		r := setupFoodRouter(svc)

		w := doJSON(r, "GET", "/api/v1/foods/search?q=rice&limit=5", "", "")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 5, svc.gotLimit)
	})

	t.Run("LimitCappedAtHundred", func(t *testing.T) {
		svc := &fakeFoodService{}
		r := setupFoodRouter(svc)

		w := doJSON(r, "GET", "/api/v1/foods/search?q=rice&limit=5000", "", "")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 100, svc.gotLimit)
	})

	t.Run("InvalidLimit", func(t *testing.T) {
		r := setupFoodRouter(&fakeFoodService{})

		w := doJSON(r, "GET", "/api/v1/foods/search?q=rice&limit=lots", "", "")

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("ServiceError", func(t *testing.T) {
		r := setupFoodRouter(&fakeFoodService{err: errors.New("catalog gone")})

		w := doJSON(r, "GET", "/api/v1/foods/search?q=rice", "", "")

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestFoodByID(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		svc := &fakeFoodService{item: &sources.FoodItem{ID: 42, Name: "Oats", CaloriesPer100g: 389}}
		r := setupFoodRouter(svc)

		w := doJSON(r, "GET", "/api/v1/foods/42", "", "")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "Oats")
		assert.Equal(t, int64(42), svc.gotID)
	})

	t.Run("NotANumber", func(t *testing.T) {
		r := setupFoodRouter(&fakeFoodService{})

		w := doJSON(r, "GET", "/api/v1/foods/oats", "", "")

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("NotFound", func(t *testing.T) {
		r := setupFoodRouter(&fakeFoodService{})

		w := doJSON(r, "GET", "/api/v1/foods/99", "", "")

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Contains(t, w.Body.String(), "food not found")
	})
}
