package handler

import (
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"

	"github.com/dwarvesf/escrow-backend/internal/dispute"
	"github.com/dwarvesf/escrow-backend/internal/escrow"
	disputehandler "github.com/dwarvesf/escrow-backend/internal/handler/dispute"
	escrowhandler "github.com/dwarvesf/escrow-backend/internal/handler/escrow"
	"github.com/dwarvesf/escrow-backend/internal/handler/health"
	makerhandler "github.com/dwarvesf/escrow-backend/internal/handler/maker"
	"github.com/dwarvesf/escrow-backend/internal/handler/metrics"
	"github.com/dwarvesf/escrow-backend/internal/handler/order"
	swaphandler "github.com/dwarvesf/escrow-backend/internal/handler/swap"
	"github.com/dwarvesf/escrow-backend/internal/handler/sweep"
	"github.com/dwarvesf/escrow-backend/internal/ledger"
	"github.com/dwarvesf/escrow-backend/internal/maker"
	"github.com/dwarvesf/escrow-backend/internal/monitoring"
	"github.com/dwarvesf/escrow-backend/internal/oracle"
	"github.com/dwarvesf/escrow-backend/internal/otc"
	"github.com/dwarvesf/escrow-backend/internal/swap"
	"github.com/dwarvesf/escrow-backend/internal/sweeper"
	"github.com/dwarvesf/escrow-backend/internal/utils/config"
	"github.com/dwarvesf/escrow-backend/internal/utils/logger"
)

type Handler struct {
	EscrowHandler  escrowhandler.IHandler
	MakerHandler   makerhandler.IHandler
	OrderHandler   order.IHandler
	SwapHandler    swaphandler.IHandler
	DisputeHandler disputehandler.IHandler
	SweepHandler   sweep.IHandler
	HealthHandler  health.IHealthHandler
	MetricsHandler *metrics.MetricsHandler
}

// Services are the engines the HTTP layer drives.
type Services struct {
	Escrow   escrow.IEscrow
	Makers   maker.IMaker
	Otc      otc.IOtc
	Swap     swap.ISwap
	Disputes dispute.IDispute
	Sweeper  sweeper.ISweeper
	Oracle   oracle.IOracle
	Ledger   ledger.IClient
}

func New(appConfig *config.AppConfig, logger *logger.Logger,
	db *gorm.DB,
	services Services,
	metricsRegistry *prometheus.Registry,
	jobStatusManager *monitoring.JobStatusManager,
	metricsRecorder *monitoring.BusinessMetricsRecorder) *Handler {
	return &Handler{
		EscrowHandler:  escrowhandler.New(services.Escrow, logger, metricsRecorder),
		MakerHandler:   makerhandler.New(services.Makers, logger, metricsRecorder),
		OrderHandler:   order.New(services.Otc, logger, metricsRecorder),
		SwapHandler:    swaphandler.New(services.Swap, logger, metricsRecorder),
		DisputeHandler: disputehandler.New(services.Disputes, logger, metricsRecorder),
		SweepHandler:   sweep.New(services.Sweeper, logger),
		HealthHandler:  health.New(appConfig, logger, db, services.Oracle, services.Ledger, jobStatusManager),
		MetricsHandler: metrics.NewMetricsHandler(metricsRegistry, logger),
	}
}
