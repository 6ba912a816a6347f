package router

import (
	"github.com/gin-gonic/gin"

	"github.com/LuisNMHN/netmarkethn-backend/internal/config"
	"github.com/LuisNMHN/netmarkethn-backend/internal/http/handlers"
	"github.com/LuisNMHN/netmarkethn-backend/internal/http/middleware"
	"github.com/LuisNMHN/netmarkethn-backend/internal/service"
)

// Handlers bundles every HTTP handler the router mounts.
type Handlers struct {
	Health       *handlers.HealthHandler
	Auth         *handlers.AuthHandler
	Ledger       *handlers.LedgerHandler
	Escrow       *handlers.EscrowHandler
	Transfer     *handlers.TransferHandler
	Notification *handlers.NotificationHandler
	KYC          *handlers.KYCHandler
	SaleRequest  *handlers.SaleRequestHandler
	Market       *handlers.MarketHandler
	Conversation *handlers.ConversationHandler
	Preference   *handlers.PreferenceHandler
	WS           *handlers.WSHandler
}

// SetupRouter wires middleware and routes onto a gin engine.
func SetupRouter(cfg *config.Config, h Handlers, tokenManager *service.TokenManager) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	r.GET("/health", h.Health.Health)

	api := r.Group("/api/v1")

	authGroup := api.Group("/auth")
	authGroup.Use(middleware.RateLimitMiddleware(cfg.RateLimitLimit, cfg.RateLimitPeriod))
	{
		authGroup.POST("/register", h.Auth.Register)
		authGroup.POST("/login", h.Auth.Login)
		authGroup.POST("/refresh", h.Auth.Refresh)
		authGroup.POST("/logout", h.Auth.Logout)
	}

	api.GET("/ws", h.WS.Connect)

	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(tokenManager))
	{
		protected.POST("/auth/logout-all", h.Auth.LogoutAll)
		protected.GET("/auth/me", h.Auth.Me)

		protected.GET("/ledger/balance", h.Ledger.Balance)
		protected.POST("/ledger/transfer", h.Ledger.Transfer)
		protected.GET("/ledger/transactions", h.Ledger.Transactions)
		protected.GET("/ledger/transactions/:id", middleware.UUIDValidator("id"), h.Ledger.Transaction)

		protected.POST("/escrows", h.Escrow.Create)
		protected.GET("/escrows", h.Escrow.List)
		protected.GET("/escrows/:id", middleware.UUIDValidator("id"), h.Escrow.Get)
		protected.POST("/escrows/:id/lock", middleware.UUIDValidator("id"), h.Escrow.Lock)
		protected.POST("/escrows/:id/release", middleware.UUIDValidator("id"), h.Escrow.Release)
		protected.POST("/escrows/:id/cancel", middleware.UUIDValidator("id"), h.Escrow.Cancel)
		protected.POST("/escrows/:id/dispute", middleware.UUIDValidator("id"), h.Escrow.Dispute)

		protected.POST("/transfers", h.Transfer.Create)
		protected.POST("/transfers/confirm", h.Transfer.Confirm)
		protected.GET("/transfers", h.Transfer.List)
		protected.GET("/transfers/:id", middleware.UUIDValidator("id"), h.Transfer.Get)
		protected.POST("/transfers/:id/cancel", middleware.UUIDValidator("id"), h.Transfer.Cancel)

		protected.GET("/notifications", h.Notification.List)
		protected.GET("/notifications/unread-count", h.Notification.UnreadCount)
		protected.POST("/notifications/read-all", h.Notification.MarkAllRead)
		protected.POST("/notifications/:id/read", middleware.UUIDValidator("id"), h.Notification.MarkRead)
		protected.POST("/notifications/:id/archive", middleware.UUIDValidator("id"), h.Notification.Archive)

		protected.POST("/kyc/documents", h.KYC.Upload)
		protected.GET("/kyc/documents", h.KYC.ListMine)

		protected.POST("/sale-requests", h.SaleRequest.Create)
		protected.GET("/sale-requests", h.SaleRequest.ListOpen)
		protected.GET("/sale-requests/mine", h.SaleRequest.ListMine)
		protected.GET("/sale-requests/:id", middleware.UUIDValidator("id"), h.SaleRequest.Get)
		protected.POST("/sale-requests/:id/accept", middleware.UUIDValidator("id"), h.SaleRequest.Accept)
		protected.POST("/sale-requests/:id/complete", middleware.UUIDValidator("id"), h.SaleRequest.Complete)
		protected.POST("/sale-requests/:id/cancel", middleware.UUIDValidator("id"), h.SaleRequest.Cancel)

		protected.GET("/markets", h.Market.ListOpen)
		protected.GET("/markets/:id", middleware.UUIDValidator("id"), h.Market.Get)
		protected.POST("/markets/:id/stake", middleware.UUIDValidator("id"), h.Market.Stake)
		protected.GET("/markets/:id/positions", middleware.UUIDValidator("id"), h.Market.Positions)

		protected.POST("/conversations", h.Conversation.Open)
		protected.GET("/conversations", h.Conversation.List)
		protected.GET("/conversations/:id/messages", middleware.UUIDValidator("id"), h.Conversation.Messages)
		protected.POST("/conversations/:id/messages", middleware.UUIDValidator("id"), h.Conversation.Send)

		protected.GET("/preferences", h.Preference.List)
		protected.GET("/preferences/:key", h.Preference.Get)
		protected.PUT("/preferences/:key", h.Preference.Set)
		protected.DELETE("/preferences/:key", h.Preference.Delete)
	}

	admin := api.Group("/admin")
	admin.Use(middleware.AuthMiddleware(tokenManager), middleware.RequireAdmin())
	{
		admin.POST("/ledger/emit", h.Ledger.Emit)
		admin.POST("/ledger/burn", h.Ledger.Burn)

		admin.POST("/escrows/:id/resolve", middleware.UUIDValidator("id"), h.Escrow.ResolveDispute)

		admin.GET("/kyc/pending", h.KYC.ListPending)
		admin.GET("/kyc/documents/:id/file", middleware.UUIDValidator("id"), h.KYC.Download)
		admin.POST("/kyc/documents/:id/review", middleware.UUIDValidator("id"), h.KYC.Review)

		admin.POST("/notifications/broadcast", h.Notification.Broadcast)

		admin.POST("/markets", h.Market.Create)
		admin.POST("/markets/:id/resolve", middleware.UUIDValidator("id"), h.Market.Resolve)
		admin.POST("/markets/:id/void", middleware.UUIDValidator("id"), h.Market.Void)
	}

	return r
}
