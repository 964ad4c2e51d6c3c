package router

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"qpaygate/internal/checkout"
	"qpaygate/internal/config"
	"qpaygate/internal/handler"
	"qpaygate/internal/middleware"
	"qpaygate/internal/reconcile"
	"qpaygate/internal/repository"
	"qpaygate/internal/session"
	"qpaygate/internal/signer"
)

// Setup configures all routes for the Echo server.
func Setup(
	e *echo.Echo,
	db *gorm.DB,
	cfg *config.Config,
	engine *reconcile.Engine,
	executor *checkout.Executor,
	oauthClient handler.OAuthClient,
	sessions session.Store,
	urlSigner *signer.Signer,
	logger *zap.Logger,
) {
	// Global middleware
	e.Use(echomw.Recover())
	e.Use(middleware.CORS())

	// Repositories
	payments := repository.NewPaymentRepository(db)
	orders := repository.NewOrderRepository(db)
	creds := repository.NewCredentialRepository(db)
	settings := repository.NewSettingRepository(db)

	// Handlers
	paymentHandler := handler.NewPaymentHandler(
		payments, orders, creds, settings,
		engine.Reconcile, sessions,
		cfg.Gateway.WebhookSecret, logger,
	)
	checkoutHandler := handler.NewCheckoutHandler(orders, executor, sessions, logger)
	redirectHandler := handler.NewRedirectHandler(urlSigner, sessions, logger)
	oauthHandler := handler.NewOAuthHandler(oauthClient, creds, sessions, cfg.Server.PublicURL, logger)
	apiHandler := handler.NewAPIHandler(payments, executor, logger)

	// Buyer-facing payment routes
	pay := e.Group("/pay")
	pay.POST("/:code/card", checkoutHandler.Card)
	pay.POST("/:code/start", checkoutHandler.Start)
	pay.GET("/return/:code/:hash/:payment", paymentHandler.Return)
	pay.POST("/webhook/:payment", paymentHandler.Webhook)
	pay.GET("/redirect", redirectHandler.Redirect)
	pay.GET("/fingerprint", redirectHandler.Fingerprint)

	// OAuth connect flow
	connect := e.Group("/connect")
	connect.GET("/:tenant/start", oauthHandler.Start)
	connect.GET("/return", oauthHandler.Return)
	connect.POST("/:tenant/disconnect", oauthHandler.Disconnect)

	// Merchant API
	apiGroup := e.Group("/api")
	apiGroup.Use(middleware.APIAuth(cfg.Server.APIKey))
	apiGroup.GET("/payments/:id", apiHandler.GetPayment)
	apiGroup.POST("/payments/:id/refund", apiHandler.Refund)

	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{"status": "ok"})
	})
}
