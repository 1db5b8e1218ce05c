package server

import (
	"context"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lightningnetwork/lnd/clock"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/dwarvesf/escrow-backend/internal/dispute"
	"github.com/dwarvesf/escrow-backend/internal/escrow"
	"github.com/dwarvesf/escrow-backend/internal/events"
	"github.com/dwarvesf/escrow-backend/internal/handler"
	"github.com/dwarvesf/escrow-backend/internal/ledger"
	"github.com/dwarvesf/escrow-backend/internal/maker"
	"github.com/dwarvesf/escrow-backend/internal/model"
	"github.com/dwarvesf/escrow-backend/internal/monitoring"
	"github.com/dwarvesf/escrow-backend/internal/oracle"
	"github.com/dwarvesf/escrow-backend/internal/otc"
	"github.com/dwarvesf/escrow-backend/internal/store"
	pgstore "github.com/dwarvesf/escrow-backend/internal/store/postgres"
	redisstore "github.com/dwarvesf/escrow-backend/internal/store/redis"
	"github.com/dwarvesf/escrow-backend/internal/swap"
	"github.com/dwarvesf/escrow-backend/internal/sweeper"
	"github.com/dwarvesf/escrow-backend/internal/transport/http"
	"github.com/dwarvesf/escrow-backend/internal/utils/config"
	"github.com/dwarvesf/escrow-backend/internal/utils/logger"
	"github.com/dwarvesf/escrow-backend/internal/utils/vault"
)

const shutdownTimeout = 15 * time.Second

func Init() {
	appConfig := config.New()
	logger := logger.New(appConfig.Environment)
	defer logger.Sync()

	if err := vault.ApplySecrets(appConfig); err != nil {
		logger.Fatal("[Init][vault.ApplySecrets] failed to load secrets from vault", map[string]string{
			"error": err.Error(),
		})
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db := pgstore.New(appConfig, logger)
	s := store.New()
	clk := clock.NewDefaultClock()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	apiMetrics := monitoring.NewExternalAPIMetrics()
	apiMetrics.MustRegister(registry)
	escrowMetrics := monitoring.NewEscrowMetrics()
	escrowMetrics.MustRegister(registry)
	httpMetrics := monitoring.NewHTTPMetrics()
	httpMetrics.MustRegister(registry)
	jobMetrics := monitoring.NewBackgroundJobMetrics()
	jobMetrics.MustRegister(registry)

	jobStatusManager := monitoring.NewJobStatusManager(logger, jobMetrics, clk)
	defer jobStatusManager.Stop()

	publisher := newPublisher(ctx, appConfig, logger)

	ledgerClient, err := ledger.New(ctx, appConfig, logger)
	if err != nil {
		logger.Fatal("[Init][ledger.New] failed to init ledger client", map[string]string{
			"error": err.Error(),
		})
	}
	ledgerClient = monitoring.NewCircuitBreakerLedger(ledgerClient,
		monitoring.CircuitBreakerConfigs[monitoring.ServiceLedgerRPC], apiMetrics, logger)
	paymentOracle := monitoring.NewCircuitBreakerOracle(oracle.New(appConfig, logger, clk),
		monitoring.CircuitBreakerConfigs[monitoring.ServiceTronAPI], apiMetrics, logger)

	escrowSvc := escrow.New(db, s, ledgerClient, logger, escrowMetrics)
	makers := maker.New(db, s, logger)
	otcSvc := otc.New(db, s, escrowSvc, makers, publisher, logger, clk, appConfig.Otc, escrowMetrics)
	swapSvc := swap.New(db, s, escrowSvc, makers, paymentOracle, publisher, logger, clk, appConfig.Swap, escrowMetrics)
	disputes := dispute.New(db, s, escrowSvc, map[model.DisputeDomain]dispute.Subject{
		model.DisputeDomainOtc:         otcSvc,
		model.DisputeDomainSwap:        swapSvc,
		model.DisputeDomainDivination:  dispute.NewLockSubject(model.DisputeDomainDivination, escrowSvc),
		model.DisputeDomainMatchmaking: dispute.NewLockSubject(model.DisputeDomainMatchmaking, escrowSvc),
	}, publisher, logger, clk, appConfig.Dispute, escrowMetrics)
	sw := sweeper.New(db, s, otcSvc, swapSvc, disputes, logger, clk, appConfig.Sweeper, appConfig.Otc, escrowMetrics)

	c := cron.New()
	sweepJob := sweeper.NewJob(sw, jobStatusManager, logger, appConfig)
	if _, err := c.AddFunc(appConfig.Sweeper.Schedule, sweepJob.Execute); err != nil {
		logger.Fatal("[Init][AddFunc] invalid sweeper schedule", map[string]string{
			"schedule": appConfig.Sweeper.Schedule,
			"error":    err.Error(),
		})
	}
	c.Start()
	defer c.Stop()

	h := handler.New(appConfig, logger, db, handler.Services{
		Escrow:   escrowSvc,
		Makers:   makers,
		Otc:      otcSvc,
		Swap:     swapSvc,
		Disputes: disputes,
		Sweeper:  sw,
		Oracle:   paymentOracle,
		Ledger:   ledgerClient,
	}, registry, jobStatusManager, monitoring.NewBusinessMetricsRecorder(httpMetrics))

	httpServer := &nethttp.Server{
		Addr:              ":" + appConfig.ApiServer.Port,
		Handler:           http.NewHttpServer(appConfig, logger, h, httpMetrics),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http server listening", map[string]string{"addr": httpServer.Addr})
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			return errors.Wrap(err, "http server")
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	if appConfig.Ledger.SubscribeBlocks {
		g.Go(func() error {
			// the cron schedule keeps sweeping if the subscription drops
			if err := sw.WatchFinalized(gctx, ledgerClient); err != nil {
				logger.Error("[Init][WatchFinalized] finalized block subscription stopped", map[string]string{
					"error": err.Error(),
				})
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error("[Init] server stopped", map[string]string{
			"error": err.Error(),
		})
	}
}

// newPublisher fans domain events out over redis pub/sub when redis is
// configured and logs them otherwise.
func newPublisher(ctx context.Context, appConfig *config.AppConfig, logger *logger.Logger) events.Publisher {
	client, err := redisstore.New(ctx, appConfig, logger)
	if err != nil {
		logger.Error("[newPublisher][redis.New] falling back to log publisher", map[string]string{
			"error": err.Error(),
		})
		return events.NewLogPublisher(logger)
	}
	if client == nil {
		return events.NewLogPublisher(logger)
	}
	return events.NewRedisPublisher(client, "")
}
