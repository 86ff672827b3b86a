package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	billingapp "github.com/consulta/backend/internal/application/billing"
	consultationapp "github.com/consulta/backend/internal/application/consultation"
	creditapp "github.com/consulta/backend/internal/application/credit"
	identityapp "github.com/consulta/backend/internal/application/identity"
	"github.com/consulta/backend/internal/infrastructure/auth"
	"github.com/consulta/backend/internal/infrastructure/cache"
	"github.com/consulta/backend/internal/infrastructure/config"
	"github.com/consulta/backend/internal/infrastructure/logger"
	"github.com/consulta/backend/internal/infrastructure/lookup"
	"github.com/consulta/backend/internal/infrastructure/payment"
	"github.com/consulta/backend/internal/infrastructure/persistence"
	"github.com/consulta/backend/internal/interfaces/http/handler"
	"github.com/consulta/backend/internal/interfaces/http/middleware"
	"github.com/consulta/backend/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Version is set at build time via -ldflags "-X main.Version=..."
var Version = "dev"

const (
	maxRequestBodyBytes = 1 << 20 // 1MB
	shutdownTimeout     = 30 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load configuration: " + err.Error())
	}

	appLogger, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(appLogger)
	}()

	appLogger.Info("Starting server",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("version", Version),
	)

	gormLogger := logger.NewGormLogger(appLogger, logger.MapGormLogLevel(cfg.Log.Level))
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLogger)
	if err != nil {
		appLogger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			appLogger.Error("Failed to close database", zap.Error(err))
		}
	}()

	// Repositories
	userRepo := persistence.NewGormUserRepository(db.DB)
	ledgerRepo := persistence.NewGormLedgerRepository(db.DB)
	typeRepo := persistence.NewGormConsultationTypeRepository(db.DB)
	consultationRepo := persistence.NewGormConsultationRepository(db.DB)
	planRepo := persistence.NewGormPlanRepository(db.DB)
	subscriptionRepo := persistence.NewGormSubscriptionRepository(db.DB)
	uow := persistence.NewGormLedgerUnitOfWork(db.DB)
	reconcileStore := persistence.NewGormReconcileStore(db.DB)

	// Renewal serialization guard. Redis when reachable; the in-memory
	// fallback only serializes within a single instance.
	guardFactory := cache.NewInflightGuardFactory(cfg.Redis, cache.WithLogger(appLogger))
	guard, err := guardFactory.CreateGuard()
	if err != nil {
		appLogger.Fatal("Failed to create renewal guard", zap.Error(err))
	}

	// Payment gateway. Without a secret key the server still serves
	// consultations against existing credit, but registration skips customer
	// provisioning and on-demand renewals fail.
	var (
		customerCreator identityapp.CustomerCreator
		gateway         billingapp.PaymentGateway
		canceler        billingapp.SubscriptionCanceler
	)
	if cfg.Stripe.SecretKey != "" {
		stripeAdapter, err := payment.NewStripeAdapter(&payment.StripeConfig{
			SecretKey:       cfg.Stripe.SecretKey,
			WebhookSecret:   cfg.Stripe.WebhookSecret,
			IsTestMode:      cfg.App.Env != "production",
			DefaultCurrency: "brl",
			ChargeTimeout:   cfg.Stripe.ChargeTimeout,
		}, appLogger)
		if err != nil {
			appLogger.Fatal("Failed to initialize Stripe adapter", zap.Error(err))
		}
		customerCreator = stripeAdapter
		gateway = stripeAdapter
		canceler = stripeAdapter
	} else {
		appLogger.Warn("Stripe secret key not configured; payment operations are disabled")
	}

	lookupClient, err := lookup.NewHTTPClient(&lookup.Config{
		BaseURL: cfg.Lookup.BaseURL,
		APIKey:  cfg.Lookup.APIKey,
		Timeout: cfg.Lookup.Timeout,
	}, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to initialize lookup client", zap.Error(err))
	}

	// Application services
	ledgerService := creditapp.NewLedgerService(uow, ledgerRepo, userRepo, appLogger, cfg.Billing.WelcomeCreditCents)
	pricingService := creditapp.NewPricingService(typeRepo, cfg.Billing.PriceCacheTTL, appLogger)
	userService := identityapp.NewUserService(userRepo, customerCreator, ledgerService, appLogger)
	subscriptionService := billingapp.NewSubscriptionService(subscriptionRepo, planRepo, appLogger)
	renewalService := billingapp.NewRenewalService(guard, uow, subscriptionRepo, planRepo, userRepo, gateway, cfg.Billing.RenewalGuardTTL, appLogger)
	webhookService := billingapp.NewWebhookService(billingapp.WebhookServiceConfig{
		Store:         reconcileStore,
		UserRepo:      userRepo,
		Gateway:       canceler,
		WebhookSecret: cfg.Stripe.WebhookSecret,
		Logger:        appLogger,
	})
	billingService := consultationapp.NewBillingService(uow, consultationRepo, userRepo, pricingService, renewalService, lookupClient, appLogger)

	verifier := auth.NewTokenVerifier(cfg.JWT)

	// HTTP engine
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		appLogger.Fatal("Failed to set trusted proxies", zap.Error(err))
	}

	authConfig := middleware.DefaultAuthConfig(verifier)
	authConfig.Logger = appLogger
	// Registration happens before the caller has a token.
	authConfig.SkipPaths = append(authConfig.SkipPaths, "/api/v1/users")

	engine.Use(
		middleware.RequestID(),
		logger.Recovery(appLogger),
		logger.GinMiddleware(appLogger),
		middleware.CORSWithConfig(corsConfig(cfg)),
		middleware.BodyLimit(maxRequestBodyBytes),
		middleware.AuthWithConfig(authConfig),
	)

	handler.NewSystemHandler(db.DB, Version).RegisterSystemRoutes(engine)

	router.NewRouter(engine, router.WithAPIVersion("v1")).
		Register(handler.NewUserHandler(userService)).
		Register(handler.NewLedgerHandler(ledgerService)).
		Register(handler.NewCatalogHandler(pricingService)).
		Register(handler.NewConsultationHandler(billingService)).
		Register(handler.NewBillingHandler(subscriptionService, renewalService)).
		Register(handler.NewStripeWebhookHandler(webhookService)).
		Setup()

	server := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		appLogger.Info("HTTP server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	appLogger.Info("Shutting down server", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		appLogger.Error("Server forced to shutdown", zap.Error(err))
	}

	appLogger.Info("Server stopped")
}

// corsConfig builds the CORS policy from configuration. Origins default to
// empty, which rejects cross-origin browser calls until deployments opt in.
func corsConfig(cfg *config.Config) middleware.CORSConfig {
	corsCfg := middleware.DefaultCORSConfig()
	if cfg.App.Env != "production" {
		corsCfg.AllowOrigins = []string{"http://localhost:3000"}
	}
	return corsCfg
}
