package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"budget-meal-planner/internal/api"
	"budget-meal-planner/internal/app"
	"budget-meal-planner/internal/config"
)

func main() {
	// .env keeps local runs convenient; deployments set real variables.
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file loaded: %v", err)
	}

	cfg, err := config.NewFromEnv()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()

	application, err := app.Bootstrap(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("Failed to bootstrap application: %v", err)
	}
	defer application.Close()

	router := api.NewRouter(api.RouterDependencies{
		PlanHandler:   api.NewPlanHandler(application, logger),
		LedgerHandler: api.NewLedgerHandler(application, logger),
		FoodHandler:   api.NewFoodHandler(application, logger),
		DB:            application.DB(),
		DataDir:       cfg.DataDir(),
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	srv := &http.Server{
		Addr:        ":" + port,
		Handler:     router,
		ReadTimeout: 10 * time.Second,
		// Plan generation waits on LLM calls, so responses can take a
		// couple of minutes.
		WriteTimeout: 3 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("planner api listening", zap.String("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("stop signal received, shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Forced shutdown: %v", err)
	}

	logger.Info("server stopped")
}
