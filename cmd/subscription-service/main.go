package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/planlogic/subscription-service/internal/app"
	"github.com/planlogic/subscription-service/internal/config"
	"github.com/planlogic/subscription-service/pkg/logger"
)

func main() {
	log := logger.FromEnv()

	log.Infow("Subscription service starting up")

	cfg, err := config.LoadConfig(".env")
	if err != nil {
		log.Fatalw("Failed to load configuration", "error", err)
	}

	if cfg.Auth.JWTSecret == "" {
		log.Warnw("JWT secret is not set, authenticated endpoints will reject all requests")
	}
	if cfg.Razorpay.KeyID == "" || cfg.Razorpay.KeySecret == "" {
		log.Warnw("Razorpay API keys are not set, gateway operations are unavailable")
	}

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	application, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatalw("Failed to initialize application", "error", err)
	}

	go func() {
		if err := application.Run(); err != nil {
			log.Fatalw("Failed to start HTTP server", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Infow("Shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	application.Shutdown(shutdownCtx)
	log.Infow("Cleanup finished. Goodbye!")
}
