package sweeper

import (
	"context"
	"strconv"
	"sync"

	"github.com/lightningnetwork/lnd/clock"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/dwarvesf/escrow-backend/internal/dispute"
	"github.com/dwarvesf/escrow-backend/internal/ledger"
	"github.com/dwarvesf/escrow-backend/internal/model"
	"github.com/dwarvesf/escrow-backend/internal/monitoring"
	"github.com/dwarvesf/escrow-backend/internal/otc"
	"github.com/dwarvesf/escrow-backend/internal/store"
	"github.com/dwarvesf/escrow-backend/internal/swap"
	"github.com/dwarvesf/escrow-backend/internal/utils/config"
	"github.com/dwarvesf/escrow-backend/internal/utils/logger"
)

const (
	stepFinalizeOrders  = "finalize_orders"
	stepVerifySwaps     = "verify_swaps"
	stepExpireOrders    = "expire_orders"
	stepTimeoutSwaps    = "timeout_swaps"
	stepAdvanceDisputes = "advance_disputes"

	defaultBatchSize = 200
)

var ErrSweepInProgress = errors.New("sweep already in progress")

type Sweeper struct {
	db        *gorm.DB
	store     *store.Store
	otc       otc.IOtc
	swap      swap.ISwap
	dispute   dispute.IDispute
	logger    *logger.Logger
	clock     clock.Clock
	config    config.SweeperConfig
	otcConfig config.OtcConfig
	metrics   *monitoring.EscrowMetrics

	running sync.Mutex
}

func New(
	db *gorm.DB,
	store *store.Store,
	otc otc.IOtc,
	swap swap.ISwap,
	dispute dispute.IDispute,
	logger *logger.Logger,
	clk clock.Clock,
	config config.SweeperConfig,
	otcConfig config.OtcConfig,
	metrics *monitoring.EscrowMetrics,
) *Sweeper {
	if config.BatchSize <= 0 {
		config.BatchSize = defaultBatchSize
	}
	return &Sweeper{
		db:        db,
		store:     store,
		otc:       otc,
		swap:      swap,
		dispute:   dispute,
		logger:    logger,
		clock:     clk,
		config:    config,
		otcConfig: otcConfig,
		metrics:   metrics,
	}
}

// Sweep finalizes confirmations and verifications before expiring anything,
// so an entity whose release became due in the same pass is not refunded.
// Only one pass runs at a time; a concurrent call returns ErrSweepInProgress.
func (s *Sweeper) Sweep(ctx context.Context) (*Report, error) {
	if !s.running.TryLock() {
		return nil, ErrSweepInProgress
	}
	defer s.running.Unlock()

	report := &Report{}
	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	keep(s.finalizeOrders(ctx, &report.FinalizedOrders))
	keep(s.verifySwaps(ctx, &report.VerifiedSwaps))
	keep(s.expireOrders(ctx, &report.ExpiredOrders))
	keep(s.timeoutSwaps(ctx, &report.TimedOutSwaps))
	keep(s.advanceDisputes(ctx, &report.AdvancedDisputes))

	s.logger.Info("[Sweep] done", map[string]string{
		"finalized_orders":  strconv.Itoa(report.FinalizedOrders.Processed),
		"verified_swaps":    strconv.Itoa(report.VerifiedSwaps.Processed),
		"expired_orders":    strconv.Itoa(report.ExpiredOrders.Processed),
		"timed_out_swaps":   strconv.Itoa(report.TimedOutSwaps.Processed),
		"advanced_disputes": strconv.Itoa(report.AdvancedDisputes.Processed),
		"failed":            strconv.Itoa(report.Failed()),
	})
	return report, firstErr
}

// finalizeOrders also runs with no grace configured: confirmations recorded
// under an earlier grace setting are still waiting for their release.
func (s *Sweeper) finalizeOrders(ctx context.Context, step *StepReport) error {
	cutoff := s.clock.Now()
	if s.otcConfig.ConfirmationGrace > 0 {
		cutoff = cutoff.Add(-s.otcConfig.ConfirmationGrace)
	}
	orders, err := s.store.OtcOrder.FindConfirmedBefore(s.db, cutoff, s.config.BatchSize)
	if err != nil {
		s.logger.Error("[Sweep][FindConfirmedBefore]", map[string]string{"error": err.Error()})
		return errors.Wrap(err, stepFinalizeOrders)
	}

	for _, order := range orders {
		_, err := s.otc.FinalizeConfirmed(ctx, order.ID)
		s.count(stepFinalizeOrders, order.ID, err, step)
	}
	s.record(stepFinalizeOrders, step)
	return nil
}

func (s *Sweeper) verifySwaps(ctx context.Context, step *StepReport) error {
	swaps, err := s.store.SwapRecord.FindAwaitingVerification(s.db, s.config.BatchSize)
	if err != nil {
		s.logger.Error("[Sweep][FindAwaitingVerification]", map[string]string{"error": err.Error()})
		return errors.Wrap(err, stepVerifySwaps)
	}

	for _, record := range swaps {
		_, err := s.swap.Verify(ctx, record.ID)
		s.count(stepVerifySwaps, record.ID, err, step)
	}
	s.record(stepVerifySwaps, step)
	s.metrics.SetOpenEntities("swap_awaiting_verification", len(swaps))
	return nil
}

func (s *Sweeper) expireOrders(ctx context.Context, step *StepReport) error {
	orders, err := s.store.OtcOrder.FindExpired(s.db, s.clock.Now(), s.config.BatchSize)
	if err != nil {
		s.logger.Error("[Sweep][FindExpired]", map[string]string{"error": err.Error()})
		return errors.Wrap(err, stepExpireOrders)
	}

	for _, order := range orders {
		_, err := s.otc.Expire(ctx, order.ID)
		s.count(stepExpireOrders, order.ID, err, step)
	}
	s.record(stepExpireOrders, step)
	return nil
}

func (s *Sweeper) timeoutSwaps(ctx context.Context, step *StepReport) error {
	swaps, err := s.store.SwapRecord.FindTimedOut(s.db, s.clock.Now(), s.config.BatchSize)
	if err != nil {
		s.logger.Error("[Sweep][FindTimedOut]", map[string]string{"error": err.Error()})
		return errors.Wrap(err, stepTimeoutSwaps)
	}

	for _, record := range swaps {
		_, err := s.swap.Timeout(ctx, record.ID)
		s.count(stepTimeoutSwaps, record.ID, err, step)
	}
	s.record(stepTimeoutSwaps, step)
	return nil
}

func (s *Sweeper) advanceDisputes(ctx context.Context, step *StepReport) error {
	disputes, err := s.store.Dispute.FindDue(s.db, model.OpenDisputeStatuses, s.clock.Now(), s.config.BatchSize)
	if err != nil {
		s.logger.Error("[Sweep][FindDue]", map[string]string{"error": err.Error()})
		return errors.Wrap(err, stepAdvanceDisputes)
	}

	for _, d := range disputes {
		_, err := s.dispute.Advance(ctx, d.ID)
		s.count(stepAdvanceDisputes, d.ID, err, step)
	}
	s.record(stepAdvanceDisputes, step)
	s.metrics.SetOpenEntities("dispute_due", len(disputes))
	return nil
}

// count treats a lost race against a user action or another sweeper as skipped.
func (s *Sweeper) count(stepName string, id uint64, err error, step *StepReport) {
	switch {
	case err == nil:
		step.Processed++
	case errors.Is(err, model.ErrAlreadyTerminal), errors.Is(err, model.ErrInvalidTransition):
		step.Skipped++
	default:
		step.Failed++
		s.logger.Error("[Sweep]["+stepName+"]", map[string]string{
			"id":    strconv.FormatUint(id, 10),
			"error": err.Error(),
		})
	}
}

func (s *Sweeper) record(stepName string, step *StepReport) {
	s.metrics.RecordSweepOutcome(stepName, "processed", step.Processed)
	s.metrics.RecordSweepOutcome(stepName, "skipped", step.Skipped)
	s.metrics.RecordSweepOutcome(stepName, "failed", step.Failed)
}

func (s *Sweeper) WatchFinalized(ctx context.Context, client ledger.IClient) error {
	blocks := make(chan ledger.BlockRef, 16)
	sub, err := client.SubscribeFinalized(ctx, blocks)
	if err != nil {
		s.logger.Error("[WatchFinalized][SubscribeFinalized]", map[string]string{"error": err.Error()})
		return err
	}
	defer sub.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-sub.Err():
			if err != nil {
				s.logger.Error("[WatchFinalized][Subscription]", map[string]string{"error": err.Error()})
			}
			return err
		case block := <-blocks:
			if _, err := s.Sweep(ctx); err != nil && !errors.Is(err, ErrSweepInProgress) {
				s.logger.Error("[WatchFinalized][Sweep]", map[string]string{
					"block": block.String(),
					"error": err.Error(),
				})
			}
		}
	}
}
