package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/LuisNMHN/netmarkethn-backend/internal/config"
	"github.com/LuisNMHN/netmarkethn-backend/internal/db"
	httpHandlers "github.com/LuisNMHN/netmarkethn-backend/internal/http/handlers"
	httpRouter "github.com/LuisNMHN/netmarkethn-backend/internal/http/router"
	"github.com/LuisNMHN/netmarkethn-backend/internal/logger"
	"github.com/LuisNMHN/netmarkethn-backend/internal/mailer"
	"github.com/LuisNMHN/netmarkethn-backend/internal/repository"
	"github.com/LuisNMHN/netmarkethn-backend/internal/service"
	"github.com/LuisNMHN/netmarkethn-backend/internal/storage"
	"github.com/LuisNMHN/netmarkethn-backend/internal/ws"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("main: failed to load configuration: %v", err)
	}

	if cfg.Env == "development" {
		logger.Init("debug")
		logger.SetTextFormatter()
	} else {
		logger.Init("info")
	}

	dbConn, err := db.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("main: failed to connect to database: %v", err)
	}
	defer safeClose(dbConn)

	if err := db.RunMigrations(ctx, dbConn, cfg.MigrationsPath); err != nil {
		log.Fatalf("main: migrations failed: %v", err)
	}

	tokenManager := service.NewTokenManager(cfg.JWTSecret, cfg.RefreshSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)

	documentStorage, err := storage.NewDocumentStorage(cfg.KYCStoragePath, cfg.MaxUploadSizeMB)
	if err != nil {
		log.Fatalf("main: failed to prepare document storage: %v", err)
	}

	// Redis is optional: without it unread counters are served straight
	// from Postgres and the email queue is disabled.
	var cacheService *service.CacheService
	mail := mailer.New("")
	if cfg.RedisAddr != "" {
		redisClient, err := db.NewRedis(ctx, cfg.RedisAddr)
		if err != nil {
			log.Printf("main: redis unavailable, running without cache and email queue: %v", err)
		} else {
			cacheService = service.NewCacheService(redisClient)
			mail = mailer.New(cfg.RedisAddr)
		}
	}
	defer mail.Close()

	// Repositories.
	userRepo := repository.NewUserRepository(dbConn)
	ledgerRepo := repository.NewLedgerRepository(dbConn)
	escrowRepo := repository.NewEscrowRepository(dbConn)
	transferRepo := repository.NewTransferRepository(dbConn)
	notificationRepo := repository.NewNotificationRepository(dbConn)
	kycRepo := repository.NewKYCRepository(dbConn)
	saleRepo := repository.NewSaleRequestRepository(dbConn)
	marketRepo := repository.NewMarketRepository(dbConn)
	conversationRepo := repository.NewConversationRepository(dbConn)
	preferenceRepo := repository.NewPreferenceRepository(dbConn)

	// WebSockets.
	hub := ws.NewHub(ctx)
	go hub.Run()

	// Services. Notifications come first so the rest can emit through them.
	notificationService := service.NewNotificationService(notificationRepo, hub, mail, userRepo, cacheService)
	authService := service.NewAuthService(userRepo, tokenManager, mail)
	kycGate := service.NewKYCGate(userRepo, cfg.KYCThreshold)
	ledgerService := service.NewLedgerService(ledgerRepo, notificationService, kycGate)
	escrowService := service.NewEscrowService(escrowRepo, notificationService, cfg.EscrowTTL)
	transferService := service.NewTransferService(transferRepo, notificationService, cfg.TransferTTL)
	kycService := service.NewKYCService(kycRepo, userRepo, documentStorage, notificationService, mail)
	saleService := service.NewSaleRequestService(saleRepo, escrowService, ledgerRepo, notificationService, kycGate)
	marketService := service.NewMarketService(marketRepo, notificationService)
	conversationService := service.NewConversationService(conversationRepo,
		httpRouter.NewSubjectResolver(escrowRepo, saleRepo), notificationService, hub)
	preferenceService := service.NewPreferenceService(preferenceRepo)

	escrowService.StartSweeper(ctx, cfg.EscrowSweepEvery)
	transferService.StartSweeper(ctx, cfg.EscrowSweepEvery)
	notificationService.StartSweeper(ctx, cfg.EscrowSweepEvery)

	// HTTP handlers.
	h := httpRouter.Handlers{
		Health:       httpHandlers.NewHealthHandler(dbConn),
		Auth:         httpHandlers.NewAuthHandler(authService),
		Ledger:       httpHandlers.NewLedgerHandler(ledgerService),
		Escrow:       httpHandlers.NewEscrowHandler(escrowService),
		Transfer:     httpHandlers.NewTransferHandler(transferService),
		Notification: httpHandlers.NewNotificationHandler(notificationService),
		KYC:          httpHandlers.NewKYCHandler(kycService, documentStorage.MaxUploadBytes()),
		SaleRequest:  httpHandlers.NewSaleRequestHandler(saleService),
		Market:       httpHandlers.NewMarketHandler(marketService),
		Conversation: httpHandlers.NewConversationHandler(conversationService),
		Preference:   httpHandlers.NewPreferenceHandler(preferenceService),
		WS:           httpHandlers.NewWSHandler(hub, tokenManager, cfg.AllowedOrigins),
	}

	engine := httpRouter.SetupRouter(cfg, h, tokenManager)

	server := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: engine,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("main: http server shutdown: %v", err)
		}
	}()

	log.Printf("main: HTTP server listening on port %s", cfg.HTTPPort)

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("main: server exited with error: %v", err)
	}
}

// safeClose closes the database connection.
func safeClose(db *sqlx.DB) {
	if err := db.Close(); err != nil {
		log.Printf("main: closing database: %v", err)
	}
}
