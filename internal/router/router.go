package router

import (
	"net/http"
	"time"

	"skillmint/config"
	"skillmint/internal/domain"
	"skillmint/internal/handler"
	"skillmint/internal/metrics"
	"skillmint/internal/middleware"
	"skillmint/internal/repository"
	"skillmint/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

func Setup(cfg *config.Config, db *gorm.DB, svc *service.Services, m *metrics.Metrics, log logrus.FieldLogger) *gin.Engine {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID(), middleware.Logger(log), middleware.Metrics(m))
	r.Use(middleware.RateLimit(middleware.NewInMemoryRateLimiter(300, 60*time.Second)))

	// Handlers
	orderHandler := handler.NewOrderHandler(svc.Orders, svc.Refunds, log)
	walletHandler := handler.NewWalletHandler(svc.Ledger, svc.TopUps, log)
	withdrawalHandler := handler.NewWithdrawalHandler(svc.Withdrawals, log)
	referralHandler := handler.NewReferralHandler(repository.NewUserRepository(db), svc.Commissions, log)
	webhookHandler := handler.NewPaymentWebhookHandler(svc.Orders, log)
	adminHandler := handler.NewAdminHandler(svc.Withdrawals, svc.Commissions, svc.Refunds, svc.Ledger, log)

	r.GET("/healthz", func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(m.Handler()))

	v1 := r.Group("/api/v1")
	// Gateway callbacks carry an HMAC signature instead of a user token.
	v1.POST("/webhooks/payment", webhookHandler.Handle)

	authed := v1.Group("")
	authed.Use(middleware.AuthRequired(&cfg.JWT))
	{
		authed.POST("/orders", orderHandler.Create)
		authed.POST("/orders/verify", orderHandler.Verify)
		authed.GET("/orders", orderHandler.List)
		authed.GET("/orders/:order_id", orderHandler.Get)
		authed.POST("/orders/:order_id/cancel", orderHandler.Cancel)
		authed.POST("/orders/:order_id/refund", orderHandler.RequestRefund)

		authed.GET("/me/wallet", walletHandler.GetWallet)
		authed.GET("/me/wallet/transactions", walletHandler.Transactions)
		authed.POST("/wallet/topup", walletHandler.CreateTopUp)
		authed.POST("/wallet/topup/verify", walletHandler.VerifyTopUp)

		authed.GET("/me/referral-code", referralHandler.GetMyReferralCode)
		authed.GET("/me/commissions", referralHandler.GetMyCommissions)

		authed.POST("/withdrawals", withdrawalHandler.Create)
		authed.GET("/withdrawals", withdrawalHandler.List)
		authed.POST("/withdrawals/:request_id/cancel", withdrawalHandler.Cancel)
	}

	admin := authed.Group("/admin")
	admin.Use(middleware.RequireRole(domain.RoleAdmin))
	{
		admin.GET("/withdrawals", adminHandler.ListWithdrawals)
		admin.POST("/withdrawals/:request_id/approve", adminHandler.ApproveWithdrawal)
		admin.POST("/withdrawals/:request_id/reject", adminHandler.RejectWithdrawal)
		admin.POST("/withdrawals/:request_id/complete", adminHandler.CompleteWithdrawal)

		admin.GET("/commissions", adminHandler.ListCommissions)
		admin.POST("/commissions/:commission_id/approve", adminHandler.ApproveCommission)
		admin.POST("/commissions/:commission_id/reject", adminHandler.RejectCommission)
		admin.POST("/commissions/:commission_id/pay", adminHandler.PayCommission)

		admin.GET("/refunds", adminHandler.ListRefundRequests)
		admin.POST("/orders/:order_id/refund/approve", adminHandler.ApproveRefund)
		admin.POST("/orders/:order_id/refund/reject", adminHandler.RejectRefund)

		admin.GET("/settings/commission-levels", adminHandler.GetCommissionLevels)
		admin.PUT("/settings/commission-levels", adminHandler.UpdateCommissionLevels)

		admin.POST("/wallet/corrections", adminHandler.CreateCorrection)
	}
	return r
}
