package dispute

import (
	"context"

	"gorm.io/gorm"

	"github.com/dwarvesf/escrow-backend/internal/escrow"
	"github.com/dwarvesf/escrow-backend/internal/events"
	"github.com/dwarvesf/escrow-backend/internal/model"
)

// LockSubject disputes funds a domain escrowed directly under "<domain>:<bizId>",
// such as divination orders and matchmaking bookings.
type LockSubject struct {
	domain model.DisputeDomain
	escrow escrow.IEscrow
}

func NewLockSubject(domain model.DisputeDomain, escrow escrow.IEscrow) *LockSubject {
	return &LockSubject{domain: domain, escrow: escrow}
}

func (s *LockSubject) OpenDisputeTx(ctx context.Context, tx *gorm.DB, outbox *events.Outbox, opening model.DisputeOpening) (string, error) {
	if opening.Respondent == "" {
		return "", model.Validationf("%s disputes need a respondent", s.domain)
	}
	lock, err := s.openLock(tx, opening.BizID)
	if err != nil {
		return "", err
	}
	if lock.Owner != opening.Complainant && lock.Owner != opening.Respondent {
		return "", model.Validationf("neither party owns %s", lock.LockRef)
	}
	return opening.Respondent, nil
}

func (s *LockSubject) EscalateDisputeTx(ctx context.Context, tx *gorm.DB, outbox *events.Outbox, bizID string) error {
	_, err := s.openLock(tx, bizID)
	return err
}

func (s *LockSubject) WithdrawDisputeTx(ctx context.Context, tx *gorm.DB, outbox *events.Outbox, bizID string) error {
	_, err := s.openLock(tx, bizID)
	return err
}

func (s *LockSubject) ResolveDisputeTx(ctx context.Context, tx *gorm.DB, outbox *events.Outbox, bizID string, outcome model.DisputeOutcome) error {
	lockRef := model.BizLockRef(s.domain, bizID)
	if outcome.Verdict == model.VerdictSettlement {
		_, err := s.escrow.SplitTx(ctx, tx, lockRef, outcome.Complainant, outcome.Respondent, outcome.ComplainantShareBps)
		return err
	}
	_, err := s.escrow.ReleaseTx(ctx, tx, lockRef, outcome.Winner())
	return err
}

func (s *LockSubject) openLock(tx *gorm.DB, bizID string) (*model.EscrowLock, error) {
	lock, err := s.escrow.GetLockTx(tx, model.BizLockRef(s.domain, bizID))
	if err != nil {
		return nil, err
	}
	if lock.Status.IsTerminal() {
		return nil, model.InvalidTransitionf("%s is %s", lock.LockRef, lock.Status)
	}
	return lock, nil
}
