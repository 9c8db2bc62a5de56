package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"stashly-backend-go/internal/api"
	"stashly-backend-go/internal/config"
	"stashly-backend-go/internal/core"
	"stashly-backend-go/internal/db"
	"stashly-backend-go/internal/llm"
	"stashly-backend-go/internal/middleware"
	"stashly-backend-go/internal/payments"
)

func main() {
	// .env is a local-development convenience; in deployment everything
	// arrives through real environment variables.
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		fallbackLogger, _ := zap.NewProduction()
		fallbackLogger.Fatal("failed to load configuration", zap.Error(err))
	}

	var logger *zap.Logger
	if cfg.GinMode == gin.ReleaseMode {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		panic("failed to initialize zap logger: " + err.Error())
	}
	defer logger.Sync() // flushes buffer, if any

	gin.SetMode(cfg.GinMode)

	catalog, err := core.ParseCatalog(cfg.ActiveCatalogJSON())
	if err != nil {
		logger.Fatal("invalid price catalog", zap.String("mode", cfg.StripeMode), zap.Error(err))
	}
	logger.Info("price catalog loaded",
		zap.String("mode", cfg.StripeMode),
		zap.Int("plans", len(catalog.Plans())))

	ctx := context.Background()

	// Firebase is optional: without it the server runs with in-memory
	// subscription storage and anonymous routes.
	var firebaseClients *db.FirebaseClients
	if cfg.FirebaseEnabled() {
		firebaseClients, err = db.InitFirebase(ctx, cfg)
		if err != nil {
			logger.Fatal("failed to initialize Firebase", zap.Error(err))
		}
		defer firebaseClients.Firestore.Close()
		logger.Info("Firebase initialized", zap.String("projectId", cfg.FirebaseProjectID))
	} else {
		logger.Warn("Firebase is not configured; using in-memory subscription storage and anonymous routes")
	}

	var subscriptionRepo db.SubscriptionRepository
	if firebaseClients != nil {
		subscriptionRepo = db.NewFirestoreSubscriptionRepository(firebaseClients.Firestore)
	} else {
		subscriptionRepo = db.NewMemorySubscriptionRepository()
	}

	gateway := payments.NewStripeGateway(cfg.ActiveStripeKey(), logger)

	var modelClient llm.Client
	if cfg.OpenAIEnabled() {
		llmCfg := llm.Config{
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   cfg.OpenAIModel,
		}
		if cfg.OpenAIAssistantID != "" {
			modelClient = llm.NewAssistantRunner(llmCfg, cfg.OpenAIAssistantID, logger)
			logger.Info("classifier using assistant runner", zap.String("assistantId", cfg.OpenAIAssistantID))
		} else {
			modelClient = llm.NewChatClient(llmCfg, logger)
			logger.Info("classifier using chat completions", zap.String("model", cfg.OpenAIModel))
		}
	} else {
		logger.Warn("OpenAI is not configured; classification will use the deterministic fallback")
	}

	billingService := core.NewBillingService(catalog, gateway, subscriptionRepo, logger)
	classificationService := core.NewClassificationService(modelClient, logger)

	var authMW *middleware.AuthMiddleware
	var authHandler *api.AuthHandler
	if firebaseClients != nil {
		authMW = middleware.NewAuthMiddleware(firebaseClients.Auth, logger)
		authHandler = api.NewAuthHandler(firebaseClients.Auth, logger)
	} else {
		authHandler = api.NewAuthHandler(nil, logger)
	}

	router := gin.New()
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.RecoveryMiddleware(logger))
	if cfg.ClientURL != "" {
		router.Use(middleware.CORSMiddleware(cfg.ClientURL))
	} else {
		logger.Warn("CLIENT_URL is not set; CORS middleware disabled")
	}

	api.SetupRoutes(router, api.RouterDeps{
		Billing:  api.NewBillingHandler(billingService, logger),
		Webhook:  api.NewWebhookHandler(billingService, cfg.ActiveWebhookSecret(), logger),
		AI:       api.NewAIHandler(classificationService, logger),
		Auth:     authHandler,
		AuthMW:   authMW,
		SubsGate: middleware.RequireActiveSubscription(billingService, logger),
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info("server starting", zap.String("port", cfg.Port), zap.String("mode", cfg.StripeMode))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("forced shutdown", zap.Error(err))
	}
	logger.Info("server exited")
}
