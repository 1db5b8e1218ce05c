package otc

import (
	"context"
	"strconv"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/dwarvesf/escrow-backend/internal/consts"
	"github.com/dwarvesf/escrow-backend/internal/events"
	"github.com/dwarvesf/escrow-backend/internal/model"
)

// OpenDisputeTx moves the order to Disputed and returns the counterparty as respondent.
func (o *Otc) OpenDisputeTx(ctx context.Context, tx *gorm.DB, outbox *events.Outbox, opening model.DisputeOpening) (string, error) {
	order, err := o.disputedOrder(tx, opening.BizID)
	if err != nil {
		return "", err
	}

	switch order.State {
	case model.OtcOrderStateCreated, model.OtcOrderStatePaidOrCommitted:
	case model.OtcOrderStateDisputed:
		return "", errors.Wrapf(model.ErrAlreadyDisputed, "order %d", order.ID)
	default:
		return "", model.InvalidTransitionf("order %d is %s", order.ID, order.State)
	}

	if !order.IsParty(opening.Complainant) {
		return "", model.Validationf("%s is not a party of order %d", opening.Complainant, order.ID)
	}
	counterparty := order.Counterparty(opening.Complainant)
	if opening.Respondent != "" && opening.Respondent != counterparty {
		return "", model.Validationf("respondent of order %d must be %s", order.ID, counterparty)
	}

	order.StateBeforeDispute = order.State
	order.State = model.OtcOrderStateDisputed
	if err := o.store.OtcOrder.Save(tx, order); err != nil {
		return "", err
	}

	o.metrics.RecordTransition(entityName, string(order.State))
	outbox.Add(consts.EVENT_STREAM_ORDERS, events.OrderDisputed, o.clock.Now(), orderPayload(order))
	return counterparty, nil
}

// EscalateDisputeTx leaves the order Disputed; the verdict decides its outcome.
func (o *Otc) EscalateDisputeTx(ctx context.Context, tx *gorm.DB, outbox *events.Outbox, bizID string) error {
	order, err := o.disputedOrder(tx, bizID)
	if err != nil {
		return err
	}
	if order.State != model.OtcOrderStateDisputed {
		return model.InvalidTransitionf("order %d is %s", order.ID, order.State)
	}
	return nil
}

func (o *Otc) WithdrawDisputeTx(ctx context.Context, tx *gorm.DB, outbox *events.Outbox, bizID string) error {
	order, err := o.disputedOrder(tx, bizID)
	if err != nil {
		return err
	}
	if order.State != model.OtcOrderStateDisputed {
		return model.InvalidTransitionf("order %d is %s", order.ID, order.State)
	}

	order.State = order.StateBeforeDispute
	order.StateBeforeDispute = ""
	if err := o.store.OtcOrder.Save(tx, order); err != nil {
		return err
	}

	o.metrics.RecordTransition(entityName, string(order.State))
	outbox.Add(consts.EVENT_STREAM_ORDERS, events.OrderRestored, o.clock.Now(), orderPayload(order))
	return nil
}

// ResolveDisputeTx routes the order's escrow: buyer wins are released to the
// buyer, seller wins are refunded to the seller and settlements are split.
func (o *Otc) ResolveDisputeTx(ctx context.Context, tx *gorm.DB, outbox *events.Outbox, bizID string, outcome model.DisputeOutcome) error {
	order, err := o.disputedOrder(tx, bizID)
	if err != nil {
		return err
	}
	if order.State != model.OtcOrderStateDisputed {
		return model.InvalidTransitionf("order %d is %s", order.ID, order.State)
	}

	switch winner := outcome.Winner(); {
	case outcome.Verdict == model.VerdictSettlement:
		if _, err := o.escrow.SplitTx(ctx, tx, order.LockRef(), outcome.Complainant, outcome.Respondent, outcome.ComplainantShareBps); err != nil {
			return err
		}
		o.close(order, model.OtcOrderStateReleased, model.OtcCloseReasonDisputeSettlement)
		outbox.Add(consts.EVENT_STREAM_ORDERS, events.OrderReleased, *order.ClosedAt, orderPayload(order))
	case winner == order.Buyer:
		if err := o.release(ctx, tx, order, model.OtcCloseReasonDisputeBuyerWin, outbox); err != nil {
			return err
		}
	case winner == order.Seller:
		if err := o.refund(ctx, tx, order, model.OtcOrderStateRefunded, model.OtcCloseReasonDisputeSellerWin, events.OrderRefunded, outbox); err != nil {
			return err
		}
	default:
		return model.Validationf("verdict winner %q is not a party of order %d", winner, order.ID)
	}

	if err := o.store.OtcOrder.Save(tx, order); err != nil {
		return err
	}
	o.metrics.RecordTransition(entityName, string(order.State))
	return nil
}

func (o *Otc) disputedOrder(tx *gorm.DB, bizID string) (*model.OtcOrder, error) {
	id, err := strconv.ParseUint(bizID, 10, 64)
	if err != nil {
		return nil, model.Validationf("invalid order id %q", bizID)
	}
	order, err := o.store.OtcOrder.GetForUpdate(tx, id)
	if err != nil {
		return nil, err
	}
	if order.State.IsTerminal() {
		return nil, errors.Wrapf(model.ErrAlreadyTerminal, "order %d is %s", order.ID, order.State)
	}
	return order, nil
}
