// internal/app/server.go
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"babylon-billing-service/internal/config"
	"babylon-billing-service/internal/db"
	settingsdomain "babylon-billing-service/internal/domain/settings"
	"babylon-billing-service/internal/gateway/asaas"
	billinghandler "babylon-billing-service/internal/handlers/billing"
	licensehandler "babylon-billing-service/internal/handlers/license"
	planhandler "babylon-billing-service/internal/handlers/plans"
	wshandler "babylon-billing-service/internal/handlers/websocket"
	"babylon-billing-service/internal/pkg/idempotency"
	xjwt "babylon-billing-service/internal/pkg/jwt"
	"babylon-billing-service/internal/repository/postgres"
	emailsvc "babylon-billing-service/internal/service/email"
	licensesvc "babylon-billing-service/internal/service/license"
	paymentsvc "babylon-billing-service/internal/service/payment"
	settingssvc "babylon-billing-service/internal/service/settings"
	subscriptionsvc "babylon-billing-service/internal/service/subscription"
	webhooksvc "babylon-billing-service/internal/service/webhook"
	"babylon-billing-service/internal/websocket"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Server owns the process-level resources and the HTTP listener.
type Server struct {
	cfg    config.AppConfig
	logger *zap.Logger

	httpServer *http.Server
	shutdowns  []func()
}

func NewServer(cfg config.AppConfig, logger *zap.Logger) *Server {
	return &Server{cfg: cfg, logger: logger}
}

// Start connects the dependencies, wires the services and blocks serving
// HTTP until the listener fails or Shutdown is called.
func (s *Server) Start(ctx context.Context) error {
	if err := db.RunMigrations(s.cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migrations failed: %w", err)
	}

	pool, err := db.ConnectDB(ctx, s.cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("postgres connection failed: %w", err)
	}
	s.shutdowns = append(s.shutdowns, pool.Close)

	redisClient, err := db.NewRedisClient(db.RedisConfig{
		Addr:     s.cfg.RedisAddr,
		Password: s.cfg.RedisPass,
	})
	if err != nil {
		return fmt.Errorf("redis connection failed: %w", err)
	}
	s.shutdowns = append(s.shutdowns, func() { _ = redisClient.Close() })

	// Repositories
	dbWrapper := postgres.NewDB(pool)
	profileRepo := postgres.NewProfileRepository(pool)
	planRepo := postgres.NewLicensePlanRepository(pool)
	licenseRepo := postgres.NewLicenseRepository(pool)
	invoiceRepo := postgres.NewInvoiceRepository(pool)
	settingsRepo := postgres.NewSettingsRepository(pool)

	// Realtime hub
	hub := websocket.NewHub(s.logger)
	go hub.Run(ctx)

	// Services
	settingsService := settingssvc.NewService(settingsRepo, s.cfg, s.logger)
	dedupeStore := idempotency.NewRedisStore(redisClient)

	emailSender := emailsvc.NewEmailSender(
		s.cfg.SMTPHost, s.cfg.SMTPPort, s.cfg.SMTPUser, s.cfg.SMTPPass,
		s.cfg.SMTPFromName, s.cfg.SMTPSecure,
	)

	subscriptionService := subscriptionsvc.NewService(
		profileRepo, planRepo, licenseRepo, invoiceRepo, dbWrapper,
		settingsService,
		func(cfg settingsdomain.GatewaySettings) subscriptionsvc.Gateway {
			return asaas.NewClient(cfg.BaseURL(), cfg.AsaasAPIKey)
		},
		s.logger,
	)

	reconciler := webhooksvc.NewReconciler(
		invoiceRepo, licenseRepo, profileRepo, dbWrapper,
		dedupeStore, hub, emailSender, s.logger,
	)

	verifier := paymentsvc.NewVerifier(
		settingsService,
		func(cfg settingsdomain.GatewaySettings) paymentsvc.Gateway {
			return asaas.NewClient(cfg.BaseURL(), cfg.AsaasAPIKey)
		},
		s.logger,
	)

	licenseService := licensesvc.NewService(licenseRepo, invoiceRepo, planRepo, s.logger)

	jwtManager := xjwt.NewManager(s.cfg.JWTSecret)

	// Handlers
	handlers := routerHandlers{
		subscription: billinghandler.NewSubscriptionHandler(subscriptionService, s.logger),
		webhook:      billinghandler.NewWebhookHandler(reconciler, settingsService, s.logger),
		payment:      billinghandler.NewPaymentHandler(verifier, s.logger),
		plans:        planhandler.NewHandler(licenseService, s.logger),
		license:      licensehandler.NewHandler(licenseService, s.logger),
		ws:           wshandler.NewHandler(hub, jwtManager, s.logger),
	}

	gin.SetMode(s.cfg.GinMode)
	router := s.buildRouter(handlers, jwtManager)

	s.httpServer = &http.Server{
		Addr:         s.cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("http server listening", zap.String("addr", s.cfg.HTTPAddr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops the listener and releases connections.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}
	for i := len(s.shutdowns) - 1; i >= 0; i-- {
		s.shutdowns[i]()
	}
	return err
}
