package swap

import (
	"context"
	"strconv"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/dwarvesf/escrow-backend/internal/consts"
	"github.com/dwarvesf/escrow-backend/internal/events"
	"github.com/dwarvesf/escrow-backend/internal/model"
)

// OpenDisputeTx records the user's report. Only the user can report a swap and
// the maker is always the respondent.
func (s *Swap) OpenDisputeTx(ctx context.Context, tx *gorm.DB, outbox *events.Outbox, opening model.DisputeOpening) (string, error) {
	swap, err := s.disputedSwap(tx, opening.BizID)
	if err != nil {
		return "", err
	}

	switch {
	case swap.Status == model.SwapStatusUserReported || swap.Status == model.SwapStatusArbitrating:
		return "", errors.Wrapf(model.ErrAlreadyDisputed, "swap %d", swap.ID)
	case !swap.Status.Reportable():
		return "", model.InvalidTransitionf("swap %d is %s", swap.ID, swap.Status)
	}
	if opening.Complainant != swap.User {
		return "", model.Validationf("only the user can report swap %d", swap.ID)
	}
	if opening.Respondent != "" && opening.Respondent != swap.MakerID {
		return "", model.Validationf("respondent of swap %d must be %s", swap.ID, swap.MakerID)
	}

	swap.StatusBeforeReport = swap.Status
	if len(opening.EvidenceCIDs) > 0 {
		swap.EvidenceCID = opening.EvidenceCIDs[0]
	}
	if err := s.moveTo(tx, swap, model.SwapStatusUserReported); err != nil {
		return "", err
	}

	outbox.Add(consts.EVENT_STREAM_SWAPS, events.SwapReported, s.clock.Now(), swapPayload(swap))
	return swap.MakerID, nil
}

func (s *Swap) EscalateDisputeTx(ctx context.Context, tx *gorm.DB, outbox *events.Outbox, bizID string) error {
	swap, err := s.disputedSwap(tx, bizID)
	if err != nil {
		return err
	}
	if err := s.moveTo(tx, swap, model.SwapStatusArbitrating); err != nil {
		return err
	}
	outbox.Add(consts.EVENT_STREAM_SWAPS, events.SwapArbitrating, s.clock.Now(), swapPayload(swap))
	return nil
}

func (s *Swap) WithdrawDisputeTx(ctx context.Context, tx *gorm.DB, outbox *events.Outbox, bizID string) error {
	swap, err := s.disputedSwap(tx, bizID)
	if err != nil {
		return err
	}
	if swap.Status != model.SwapStatusUserReported {
		return model.InvalidTransitionf("swap %d is %s", swap.ID, swap.Status)
	}

	previous := swap.StatusBeforeReport
	swap.StatusBeforeReport = ""
	if err := s.moveTo(tx, swap, previous); err != nil {
		return err
	}
	outbox.Add(consts.EVENT_STREAM_SWAPS, events.SwapRestored, s.clock.Now(), swapPayload(swap))
	return nil
}

// ResolveDisputeTx refunds the user when they win and releases to the maker
// otherwise. Swaps cannot be settled by ratio.
func (s *Swap) ResolveDisputeTx(ctx context.Context, tx *gorm.DB, outbox *events.Outbox, bizID string, outcome model.DisputeOutcome) error {
	if outcome.Verdict == model.VerdictSettlement {
		return model.Validationf("swap disputes cannot end in a settlement")
	}

	swap, err := s.disputedSwap(tx, bizID)
	if err != nil {
		return err
	}
	if swap.Status != model.SwapStatusUserReported && swap.Status != model.SwapStatusArbitrating {
		return model.InvalidTransitionf("swap %d is %s", swap.ID, swap.Status)
	}

	now := s.clock.Now()
	switch outcome.Winner() {
	case swap.User:
		if _, err := s.escrow.RefundTx(ctx, tx, swap.LockRef()); err != nil {
			return err
		}
		swap.FailureReason = model.SwapReasonUserWin
		if err := s.moveTo(tx, swap, model.SwapStatusArbitrationApproved); err != nil {
			return err
		}
		outbox.Add(consts.EVENT_STREAM_SWAPS, events.SwapArbitrationApproved, now, swapPayload(swap))
	case swap.MakerID:
		if _, err := s.escrow.ReleaseTx(ctx, tx, swap.LockRef(), swap.MakerID); err != nil {
			return err
		}
		swap.FailureReason = model.SwapReasonMakerWin
		swap.CompletedAt = &now
		if err := s.moveTo(tx, swap, model.SwapStatusArbitrationRejected); err != nil {
			return err
		}
		outbox.Add(consts.EVENT_STREAM_SWAPS, events.SwapArbitrationRejected, now, swapPayload(swap))
	default:
		return model.Validationf("verdict winner is not a party of swap %d", swap.ID)
	}
	return nil
}

func (s *Swap) moveTo(tx *gorm.DB, swap *model.SwapRecord, next model.SwapStatus) error {
	if !swap.Status.CanTransitionTo(next) {
		return model.InvalidTransitionf("swap %d cannot move from %s to %s", swap.ID, swap.Status, next)
	}
	swap.Status = next
	if err := s.store.SwapRecord.Save(tx, swap); err != nil {
		return err
	}
	s.metrics.RecordTransition(entityName, string(next))
	return nil
}

func (s *Swap) disputedSwap(tx *gorm.DB, bizID string) (*model.SwapRecord, error) {
	id, err := strconv.ParseUint(bizID, 10, 64)
	if err != nil {
		return nil, model.Validationf("invalid swap id %q", bizID)
	}
	swap, err := s.store.SwapRecord.GetForUpdate(tx, id)
	if err != nil {
		return nil, err
	}
	if swap.Status.IsTerminal() {
		return nil, errors.Wrapf(model.ErrAlreadyTerminal, "swap %d is %s", swap.ID, swap.Status)
	}
	return swap, nil
}
