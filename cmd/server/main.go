package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/anonto42/apollo/backend/internal/middleware"
	"github.com/anonto42/apollo/backend/internal/notifications"
	"github.com/anonto42/apollo/backend/internal/router"
	"github.com/anonto42/apollo/backend/pkg/config"
	"github.com/anonto42/apollo/backend/pkg/firebase"
	"github.com/anonto42/apollo/backend/pkg/logger"
	"github.com/anonto42/apollo/backend/validators"
	"github.com/labstack/echo/v4"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Init().Fatalw("loading configuration", "error", err)
	}

	log := logger.Init(logger.WithLevel(cfg.LogLevel))
	defer logger.Sync()

	// Initialize database connections
	db, err := config.InitDB(cfg)
	if err != nil {
		log.Fatalw("initializing databases", "error", err)
	}
	defer db.CloseDB()

	// Initialize Firebase
	ctx := context.Background()
	firebaseApp, err := firebase.InitFirebase(ctx, cfg.FirebaseCredentialsPath, cfg.FirebaseProjectID)
	if err != nil {
		log.Fatalw("initializing firebase", "error", err)
	}
	defer firebaseApp.Close()

	var fs *firestore.Client
	if cfg.DocumentBackend == config.BackendFirestore {
		if fs, err = firebaseApp.OpenFirestore(ctx); err != nil {
			log.Fatalw("opening firestore", "error", err)
		}
	}

	stores, err := router.NewStores(cfg.DocumentBackend, db.Postgres, fs, db.MongoDB)
	if err != nil {
		log.Fatalw("setting up repositories", "error", err)
	}
	log.Infow("document backend ready", "backend", cfg.DocumentBackend)

	manager := notifications.NewManager(stores.Live, notifications.Options{
		Retract:      cfg.Notifications.Retract,
		FallbackName: cfg.Notifications.FallbackName,
		Logger:       log.Named("notifications"),
	})

	authLimiter, err := middleware.NewLimiter(cfg.AuthRateLimit, cfg.RedisURL)
	if err != nil {
		log.Fatalw("building auth rate limiter", "error", err)
	}

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true
	e.Validator = validators.NewValidator()
	config.SetupMiddleware(e, log)

	router.SetupRoutes(e, router.Deps{
		Stores:      stores,
		Manager:     manager,
		AuthClient:  firebaseApp.AuthClient,
		AuthLimiter: authLimiter,
		JWTSecret:   cfg.JWTSecret,
		JWTTTL:      cfg.JWTTTL,
		Settle:      cfg.Notifications.Settle,
		Log:         log,
	})

	go func() {
		log.Infow("server starting", "port", cfg.Port, "env", cfg.Env)
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("server stopped", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")

	// close live streams first so websocket handlers return
	manager.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server shutdown", "error", err)
	}
}
