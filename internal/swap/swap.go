package swap

import (
	"context"
	"strconv"

	"github.com/lightningnetwork/lnd/clock"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/dwarvesf/escrow-backend/internal/consts"
	"github.com/dwarvesf/escrow-backend/internal/escrow"
	"github.com/dwarvesf/escrow-backend/internal/events"
	"github.com/dwarvesf/escrow-backend/internal/maker"
	"github.com/dwarvesf/escrow-backend/internal/model"
	"github.com/dwarvesf/escrow-backend/internal/monitoring"
	"github.com/dwarvesf/escrow-backend/internal/oracle"
	"github.com/dwarvesf/escrow-backend/internal/store"
	"github.com/dwarvesf/escrow-backend/internal/store/swaprecord"
	"github.com/dwarvesf/escrow-backend/internal/utils/config"
	"github.com/dwarvesf/escrow-backend/internal/utils/logger"
)

const entityName = "swap"

type Swap struct {
	db        *gorm.DB
	store     *store.Store
	escrow    escrow.IEscrow
	makers    maker.IMaker
	oracle    oracle.IOracle
	publisher events.Publisher
	logger    *logger.Logger
	clock     clock.Clock
	config    config.SwapConfig
	metrics   *monitoring.EscrowMetrics
}

func New(
	db *gorm.DB,
	store *store.Store,
	escrow escrow.IEscrow,
	makers maker.IMaker,
	oracle oracle.IOracle,
	publisher events.Publisher,
	logger *logger.Logger,
	clk clock.Clock,
	config config.SwapConfig,
	metrics *monitoring.EscrowMetrics,
) *Swap {
	return &Swap{
		db:        db,
		store:     store,
		escrow:    escrow,
		makers:    makers,
		oracle:    oracle,
		publisher: publisher,
		logger:    logger,
		clock:     clk,
		config:    config,
		metrics:   metrics,
	}
}

func (s *Swap) CreateSwap(ctx context.Context, req CreateSwapRequest) (*model.SwapRecord, error) {
	if err := model.ValidateRequest(req); err != nil {
		return nil, err
	}
	if req.User == "" || req.MakerID == "" {
		return nil, model.Validationf("user and maker are required")
	}
	if req.User == req.MakerID {
		return nil, model.Validationf("makers cannot swap with themselves")
	}
	if !model.IsPositiveAmount(req.CosAmount) || !model.IsPositiveAmount(req.UsdtAmount) {
		return nil, model.Validationf("cos and usdt amounts must be positive integers")
	}
	if err := oracle.ValidateTronAddress(req.UsdtAddress); err != nil {
		return nil, err
	}

	var swap *model.SwapRecord
	outbox := &events.Outbox{}
	err := store.DoInTx(s.db, func(tx *gorm.DB) error {
		m, err := s.makers.GetActiveTx(tx, req.MakerID)
		if err != nil {
			return err
		}
		if !m.WithinCapacity(req.CosAmount) {
			return model.Validationf("amount %s is outside maker %s limits [%s, %s]", req.CosAmount, m.ID, m.MinSwapAmount, m.MaxSwapAmount)
		}

		now := s.clock.Now()
		swap, err = s.store.SwapRecord.Create(tx, &model.SwapRecord{
			MakerID:     req.MakerID,
			User:        req.User,
			CosAmount:   req.CosAmount,
			UsdtAmount:  req.UsdtAmount,
			UsdtAddress: req.UsdtAddress,
			Status:      model.SwapStatusPending,
			TimeoutAt:   now.Add(s.config.Timeout),
		})
		if err != nil {
			return err
		}

		if _, err := s.escrow.LockTx(ctx, tx, req.User, req.CosAmount, swap.LockRef()); err != nil {
			return err
		}

		outbox.Add(consts.EVENT_STREAM_SWAPS, events.SwapCreated, now, swapPayload(swap))
		return nil
	})
	if err != nil {
		s.logger.Error("[CreateSwap][DoInTx]", map[string]string{
			"user":     req.User,
			"maker_id": req.MakerID,
			"error":    err.Error(),
		})
		return nil, err
	}

	s.metrics.RecordTransition(entityName, string(swap.Status))
	outbox.Flush(ctx, s.publisher, s.logger)
	return swap, nil
}

func (s *Swap) SubmitTxHash(ctx context.Context, swapID uint64, makerID, txHash string) (*model.SwapRecord, error) {
	hash, err := oracle.NormalizeTxHash(txHash)
	if err != nil {
		return nil, err
	}

	return s.transition(ctx, "SubmitTxHash", swapID, func(tx *gorm.DB, swap *model.SwapRecord, outbox *events.Outbox) error {
		if makerID != swap.MakerID {
			return model.Validationf("only maker %s can submit a transfer for swap %d", swap.MakerID, swap.ID)
		}
		switch swap.Status {
		case model.SwapStatusPending, model.SwapStatusAwaitingVerification, model.SwapStatusVerificationFailed:
		default:
			return model.InvalidTransitionf("swap %d is %s", swap.ID, swap.Status)
		}
		if hash == swap.TxHash {
			return nil
		}

		now := s.clock.Now()
		if now.After(swap.TimeoutAt) {
			return model.InvalidTransitionf("swap %d timed out", swap.ID)
		}

		holder, err := s.store.SwapRecord.GetByTxHash(tx, hash)
		if err == nil && holder.ID != swap.ID {
			return model.Validationf("transfer %s is already used by swap %d", hash, holder.ID)
		}
		if err != nil && !errors.Is(err, model.ErrNotFound) {
			return err
		}

		deadline := now.Add(s.config.VerificationWindow)
		if deadline.After(swap.TimeoutAt) {
			deadline = swap.TimeoutAt
		}

		swap.TxHash = hash
		swap.TxSubmittedAt = &now
		swap.VerifyDeadlineAt = &deadline
		swap.FailureReason = ""
		swap.Status = model.SwapStatusAwaitingVerification
		outbox.Add(consts.EVENT_STREAM_SWAPS, events.SwapTxSubmitted, now, swapPayload(swap))
		return nil
	})
}

// Verify calls the oracle outside any transaction, then re-reads the swap and
// applies the result only if the transfer it checked is still current.
func (s *Swap) Verify(ctx context.Context, swapID uint64) (*oracle.VerificationResult, error) {
	swap, err := s.Get(ctx, swapID)
	if err != nil {
		return nil, err
	}
	if swap.Status.IsTerminal() {
		return nil, errors.Wrapf(model.ErrAlreadyTerminal, "swap %d is %s", swap.ID, swap.Status)
	}
	if swap.Status != model.SwapStatusAwaitingVerification {
		return nil, model.InvalidTransitionf("swap %d is %s", swap.ID, swap.Status)
	}

	result, err := s.oracle.Verify(ctx, swap.TxHash, swap.UsdtAddress, swap.UsdtAmount)
	if err != nil {
		s.logger.Error("[Verify][oracle.Verify]", map[string]string{
			"swap_id": strconv.FormatUint(swapID, 10),
			"tx_hash": swap.TxHash,
			"error":   err.Error(),
		})
		return nil, errors.Wrapf(model.ErrExternalVerification, "verify swap %d: %v", swapID, err)
	}

	if _, err := s.apply(ctx, "Verify", swapID, swap.TxHash, result.Status); err != nil {
		return result, err
	}
	return result, nil
}

func (s *Swap) ApplyVerification(ctx context.Context, swapID uint64, txHash string, status oracle.VerificationStatus) (*model.SwapRecord, error) {
	if !status.Valid() {
		return nil, model.Validationf("unknown verification status %q", status)
	}
	hash, err := oracle.NormalizeTxHash(txHash)
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, "ApplyVerification", swapID, hash, status)
}

func (s *Swap) apply(ctx context.Context, op string, swapID uint64, txHash string, status oracle.VerificationStatus) (*model.SwapRecord, error) {
	return s.transition(ctx, op, swapID, func(tx *gorm.DB, swap *model.SwapRecord, outbox *events.Outbox) error {
		if swap.Status != model.SwapStatusAwaitingVerification {
			return model.InvalidTransitionf("swap %d is %s", swap.ID, swap.Status)
		}
		if swap.TxHash != txHash {
			return model.InvalidTransitionf("transfer %s is no longer current for swap %d", txHash, swap.ID)
		}

		now := s.clock.Now()
		switch status {
		case oracle.VerificationConfirmed:
			if _, err := s.escrow.ReleaseTx(ctx, tx, swap.LockRef(), swap.MakerID); err != nil {
				return err
			}
			if err := s.makers.IncrementUsersServedTx(tx, swap.MakerID); err != nil {
				return err
			}
			swap.Status = model.SwapStatusCompleted
			swap.CompletedAt = &now
			outbox.Add(consts.EVENT_STREAM_SWAPS, events.SwapCompleted, now, swapPayload(swap))
		case oracle.VerificationAmountMismatch:
			s.fail(swap, model.SwapReasonAmountMismatch, outbox)
		case oracle.VerificationAddressMismatch:
			s.fail(swap, model.SwapReasonAddressMismatch, outbox)
		case oracle.VerificationNotFound:
			if swap.VerifyDeadlineAt != nil && now.After(*swap.VerifyDeadlineAt) {
				s.fail(swap, model.SwapReasonTxNotFound, outbox)
			}
		}
		return nil
	})
}

func (s *Swap) fail(swap *model.SwapRecord, reason string, outbox *events.Outbox) {
	swap.Status = model.SwapStatusVerificationFailed
	swap.FailureReason = reason
	outbox.Add(consts.EVENT_STREAM_SWAPS, events.SwapVerificationFailed, s.clock.Now(), swapPayload(swap))
}

func (s *Swap) Timeout(ctx context.Context, swapID uint64) (*model.SwapRecord, error) {
	return s.transition(ctx, "Timeout", swapID, func(tx *gorm.DB, swap *model.SwapRecord, outbox *events.Outbox) error {
		switch swap.Status {
		case model.SwapStatusPending, model.SwapStatusAwaitingVerification, model.SwapStatusVerificationFailed:
		default:
			return model.InvalidTransitionf("swap %d is %s", swap.ID, swap.Status)
		}
		if !s.clock.Now().After(swap.TimeoutAt) {
			return model.InvalidTransitionf("swap %d is not due yet", swap.ID)
		}

		if _, err := s.escrow.RefundTx(ctx, tx, swap.LockRef()); err != nil {
			return err
		}
		swap.Status = model.SwapStatusRefunded
		swap.FailureReason = model.SwapReasonTimeout
		outbox.Add(consts.EVENT_STREAM_SWAPS, events.SwapRefunded, s.clock.Now(), swapPayload(swap))
		return nil
	})
}

func (s *Swap) Get(ctx context.Context, swapID uint64) (*model.SwapRecord, error) {
	return s.store.SwapRecord.Get(s.db, swapID)
}

func (s *Swap) ListByAccount(ctx context.Context, filter swaprecord.ListFilter) ([]*model.SwapRecord, int64, error) {
	return s.store.SwapRecord.Find(s.db, filter)
}

// transition runs fn on the locked swap row and saves it if its state changed
// along the swap transition table. Terminal swaps return model.ErrAlreadyTerminal.
func (s *Swap) transition(
	ctx context.Context,
	op string,
	swapID uint64,
	fn func(tx *gorm.DB, swap *model.SwapRecord, outbox *events.Outbox) error,
) (*model.SwapRecord, error) {
	var swap *model.SwapRecord
	outbox := &events.Outbox{}
	err := store.DoInTx(s.db, func(tx *gorm.DB) error {
		var err error
		swap, err = s.store.SwapRecord.GetForUpdate(tx, swapID)
		if err != nil {
			return err
		}
		if swap.Status.IsTerminal() {
			return errors.Wrapf(model.ErrAlreadyTerminal, "swap %d is %s", swap.ID, swap.Status)
		}

		from := swap.Status
		if err := fn(tx, swap, outbox); err != nil {
			return err
		}
		if swap.Status != from && !from.CanTransitionTo(swap.Status) {
			return model.InvalidTransitionf("swap %d cannot move from %s to %s", swap.ID, from, swap.Status)
		}
		return s.store.SwapRecord.Save(tx, swap)
	})
	if err != nil {
		if errors.Is(err, model.ErrAlreadyTerminal) {
			return swap, err
		}
		s.logger.Error("["+op+"][DoInTx]", map[string]string{
			"swap_id": strconv.FormatUint(swapID, 10),
			"error":   err.Error(),
		})
		return nil, err
	}

	s.metrics.RecordTransition(entityName, string(swap.Status))
	outbox.Flush(ctx, s.publisher, s.logger)
	return swap, nil
}

func swapPayload(swap *model.SwapRecord) map[string]any {
	payload := map[string]any{
		"swap_id":     swap.ID,
		"maker_id":    swap.MakerID,
		"user":        swap.User,
		"cos_amount":  swap.CosAmount.String(),
		"usdt_amount": swap.UsdtAmount.String(),
		"status":      string(swap.Status),
	}
	if swap.TxHash != "" {
		payload["tx_hash"] = swap.TxHash
	}
	if swap.FailureReason != "" {
		payload["reason"] = swap.FailureReason
	}
	return payload
}
