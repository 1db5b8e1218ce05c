package http

import (
	"github.com/gin-gonic/gin"

	"github.com/dwarvesf/escrow-backend/internal/handler"
	"github.com/dwarvesf/escrow-backend/internal/utils/config"
	"github.com/dwarvesf/escrow-backend/internal/utils/logger"
)

func loadV1Routes(r *gin.Engine, h *handler.Handler, appConfig *config.AppConfig, logger *logger.Logger) {
	v1 := r.Group("/api/v1")
	v1.Use(NewRateLimiter(appConfig.ApiServer.RateLimitPerSecond, appConfig.ApiServer.RateLimitBurst).Middleware())

	accounts := v1.Group("/accounts")
	{
		accounts.GET("/:account", h.EscrowHandler.GetAccount)
		accounts.GET("/:account/locks", h.EscrowHandler.ListLocks)
		accounts.POST("/:account/withdraw", h.EscrowHandler.Withdraw)
	}
	v1.GET("/locks/:ref", h.EscrowHandler.GetLock)

	makers := v1.Group("/makers")
	{
		makers.POST("", h.MakerHandler.Register)
		makers.GET("", h.MakerHandler.ListMakers)
		makers.GET("/:id", h.MakerHandler.GetMaker)
		makers.PUT("/:id", h.MakerHandler.Update)
		makers.POST("/:id/pause", h.MakerHandler.Pause)
		makers.POST("/:id/resume", h.MakerHandler.Resume)
		makers.GET("/:id/quote", h.MakerHandler.Quote)
	}

	orders := v1.Group("/orders")
	{
		orders.POST("", h.OrderHandler.CreateOrder)
		orders.GET("", h.OrderHandler.ListOrders)
		orders.GET("/:id", h.OrderHandler.GetOrder)
		orders.POST("/:id/paid", h.OrderHandler.MarkPaid)
		orders.POST("/:id/confirm", h.OrderHandler.ConfirmReceipt)
		orders.POST("/:id/cancel", h.OrderHandler.Cancel)
	}

	swaps := v1.Group("/swaps")
	{
		swaps.POST("", h.SwapHandler.CreateSwap)
		swaps.GET("", h.SwapHandler.ListSwaps)
		swaps.GET("/:id", h.SwapHandler.GetSwap)
		swaps.POST("/:id/tx-hash", h.SwapHandler.SubmitTxHash)
		swaps.POST("/:id/verify", h.SwapHandler.Verify)
	}

	disputes := v1.Group("/disputes")
	{
		disputes.POST("", h.DisputeHandler.Open)
		disputes.GET("", h.DisputeHandler.ListDisputes)
		disputes.GET("/biz/:domain/:bizId", h.DisputeHandler.GetByBiz)
		disputes.GET("/:id", h.DisputeHandler.GetDispute)
		disputes.POST("/:id/respond", h.DisputeHandler.Respond)
		disputes.GET("/:id/evidence", h.DisputeHandler.ListEvidence)
		disputes.POST("/:id/evidence", h.DisputeHandler.SubmitEvidence)
		disputes.POST("/:id/withdraw", h.DisputeHandler.Withdraw)
		disputes.GET("/:id/votes", h.DisputeHandler.ListVotes)
		disputes.POST("/:id/votes", h.DisputeHandler.Vote)
	}

	admin := v1.Group("/admin", AdminAuth(appConfig.ApiServer.AdminToken, logger))
	{
		admin.POST("/accounts/:account/credit", h.EscrowHandler.Credit)
		admin.POST("/makers/:id/suspend", h.MakerHandler.Suspend)
		admin.POST("/makers/:id/unsuspend", h.MakerHandler.Unsuspend)
		admin.POST("/swaps/:id/verification", h.SwapHandler.ApplyVerification)
		admin.POST("/disputes/:id/advance", h.DisputeHandler.Advance)
		admin.POST("/sweep", h.SweepHandler.Trigger)
	}

	// health check
	r.GET("/healthz", h.HealthHandler.Basic)
	health := r.Group("/api/v1/health")
	{
		health.GET("/db", h.HealthHandler.Database)
		health.GET("/external", h.HealthHandler.External)
		health.GET("/jobs", h.HealthHandler.Jobs)
	}

	r.GET("/metrics", h.MetricsHandler.Handler())
}
