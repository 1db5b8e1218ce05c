package otc

import (
	"context"
	"strconv"
	"time"

	"github.com/lightningnetwork/lnd/clock"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/dwarvesf/escrow-backend/internal/consts"
	"github.com/dwarvesf/escrow-backend/internal/escrow"
	"github.com/dwarvesf/escrow-backend/internal/events"
	"github.com/dwarvesf/escrow-backend/internal/maker"
	"github.com/dwarvesf/escrow-backend/internal/model"
	"github.com/dwarvesf/escrow-backend/internal/monitoring"
	"github.com/dwarvesf/escrow-backend/internal/store"
	"github.com/dwarvesf/escrow-backend/internal/store/otcorder"
	"github.com/dwarvesf/escrow-backend/internal/utils/config"
	"github.com/dwarvesf/escrow-backend/internal/utils/logger"
)

const entityName = "otc_order"

type Otc struct {
	db        *gorm.DB
	store     *store.Store
	escrow    escrow.IEscrow
	makers    maker.IMaker
	publisher events.Publisher
	logger    *logger.Logger
	clock     clock.Clock
	config    config.OtcConfig
	metrics   *monitoring.EscrowMetrics
}

func New(
	db *gorm.DB,
	store *store.Store,
	escrow escrow.IEscrow,
	makers maker.IMaker,
	publisher events.Publisher,
	logger *logger.Logger,
	clk clock.Clock,
	config config.OtcConfig,
	metrics *monitoring.EscrowMetrics,
) *Otc {
	return &Otc{
		db:        db,
		store:     store,
		escrow:    escrow,
		makers:    makers,
		publisher: publisher,
		logger:    logger,
		clock:     clk,
		config:    config,
		metrics:   metrics,
	}
}

func (o *Otc) CreateOrder(ctx context.Context, req CreateOrderRequest) (*model.OtcOrder, error) {
	if err := validateCreate(req); err != nil {
		return nil, err
	}

	ttl := o.config.OrderTTL
	if req.TTL > 0 {
		ttl = req.TTL
	}

	var order *model.OtcOrder
	outbox := &events.Outbox{}
	err := store.DoInTx(o.db, func(tx *gorm.DB) error {
		isMaker, err := o.makers.IsMakerTx(tx, req.Seller)
		if err != nil {
			return err
		}
		if isMaker {
			if _, err := o.makers.GetActiveTx(tx, req.Seller); err != nil {
				return err
			}
		}

		released, err := o.store.OtcOrder.HasReleasedForBuyer(tx, req.Buyer)
		if err != nil {
			return err
		}
		firstPurchase := !released
		if firstPurchase && o.config.FirstPurchaseMaxQty.IsPositive() && req.Qty.GreaterThan(o.config.FirstPurchaseMaxQty) {
			return model.Validationf("first purchase is limited to %s, got %s", o.config.FirstPurchaseMaxQty, req.Qty)
		}

		now := o.clock.Now()
		order, err = o.store.OtcOrder.Create(tx, &model.OtcOrder{
			Buyer:           req.Buyer,
			Seller:          req.Seller,
			Qty:             req.Qty,
			Amount:          req.Amount,
			State:           model.OtcOrderStateCreated,
			IsFirstPurchase: firstPurchase,
			ExpireAt:        now.Add(ttl),
		})
		if err != nil {
			return err
		}

		if _, err := o.escrow.LockTx(ctx, tx, req.Seller, req.Qty, order.LockRef()); err != nil {
			return err
		}

		outbox.Add(consts.EVENT_STREAM_ORDERS, events.OrderCreated, now, orderPayload(order))
		return nil
	})
	if err != nil {
		o.logger.Error("[CreateOrder][DoInTx]", map[string]string{
			"buyer":  req.Buyer,
			"seller": req.Seller,
			"qty":    req.Qty.String(),
			"error":  err.Error(),
		})
		return nil, err
	}

	o.metrics.RecordTransition(entityName, string(order.State))
	outbox.Flush(ctx, o.publisher, o.logger)
	return order, nil
}

func (o *Otc) MarkPaid(ctx context.Context, orderID uint64, buyer, paymentRef string) (*model.OtcOrder, error) {
	return o.transition(ctx, "MarkPaid", orderID, func(tx *gorm.DB, order *model.OtcOrder, outbox *events.Outbox) error {
		if buyer != order.Buyer {
			return model.Validationf("only the buyer can mark order %d paid", order.ID)
		}
		if order.State != model.OtcOrderStateCreated {
			return model.InvalidTransitionf("order %d is %s", order.ID, order.State)
		}
		now := o.clock.Now()
		if now.After(order.ExpireAt) {
			return model.InvalidTransitionf("order %d expired at %s", order.ID, order.ExpireAt.Format(time.RFC3339))
		}

		order.State = model.OtcOrderStatePaidOrCommitted
		order.PaymentRef = paymentRef
		order.PaidAt = &now
		outbox.Add(consts.EVENT_STREAM_ORDERS, events.OrderPaid, now, orderPayload(order))
		return nil
	})
}

func (o *Otc) ConfirmReceipt(ctx context.Context, orderID uint64, seller string) (*model.OtcOrder, error) {
	return o.transition(ctx, "ConfirmReceipt", orderID, func(tx *gorm.DB, order *model.OtcOrder, outbox *events.Outbox) error {
		if seller != order.Seller {
			return model.Validationf("only the seller can confirm order %d", order.ID)
		}
		if order.State != model.OtcOrderStatePaidOrCommitted {
			return model.InvalidTransitionf("order %d is %s", order.ID, order.State)
		}
		if order.SellerConfirmedAt != nil {
			return nil
		}

		// past expireAt the order belongs to the expiry sweep
		now := o.clock.Now()
		if now.After(order.ExpireAt) {
			return model.InvalidTransitionf("order %d expired at %s", order.ID, order.ExpireAt.Format(time.RFC3339))
		}
		order.SellerConfirmedAt = &now
		if o.config.ConfirmationGrace > 0 {
			return nil
		}
		return o.release(ctx, tx, order, model.OtcCloseReasonConfirmed, outbox)
	})
}

func (o *Otc) FinalizeConfirmed(ctx context.Context, orderID uint64) (*model.OtcOrder, error) {
	return o.transition(ctx, "FinalizeConfirmed", orderID, func(tx *gorm.DB, order *model.OtcOrder, outbox *events.Outbox) error {
		if order.State != model.OtcOrderStatePaidOrCommitted || order.SellerConfirmedAt == nil {
			return model.InvalidTransitionf("order %d has no pending confirmation", order.ID)
		}
		if o.clock.Now().Before(order.SellerConfirmedAt.Add(o.config.ConfirmationGrace)) {
			return model.InvalidTransitionf("order %d is still inside the confirmation grace", order.ID)
		}
		return o.release(ctx, tx, order, model.OtcCloseReasonConfirmed, outbox)
	})
}

func (o *Otc) Cancel(ctx context.Context, orderID uint64, caller string) (*model.OtcOrder, error) {
	return o.transition(ctx, "Cancel", orderID, func(tx *gorm.DB, order *model.OtcOrder, outbox *events.Outbox) error {
		if !order.IsParty(caller) {
			return model.Validationf("%s is not a party of order %d", caller, order.ID)
		}

		switch order.State {
		case model.OtcOrderStateCreated:
		case model.OtcOrderStatePaidOrCommitted:
			if caller != order.Buyer {
				return model.InvalidTransitionf("buyer already committed payment on order %d", order.ID)
			}
			if order.SellerConfirmedAt != nil {
				return model.InvalidTransitionf("seller already confirmed order %d", order.ID)
			}
		default:
			return model.InvalidTransitionf("order %d is %s", order.ID, order.State)
		}

		reason := model.OtcCloseReasonCanceledBySeller
		if caller == order.Buyer {
			reason = model.OtcCloseReasonCanceledByBuyer
		}
		return o.refund(ctx, tx, order, model.OtcOrderStateCanceled, reason, events.OrderCanceled, outbox)
	})
}

func (o *Otc) Expire(ctx context.Context, orderID uint64) (*model.OtcOrder, error) {
	return o.transition(ctx, "Expire", orderID, func(tx *gorm.DB, order *model.OtcOrder, outbox *events.Outbox) error {
		if order.State != model.OtcOrderStateCreated && order.State != model.OtcOrderStatePaidOrCommitted {
			return model.InvalidTransitionf("order %d is %s", order.ID, order.State)
		}
		if order.SellerConfirmedAt != nil {
			return model.InvalidTransitionf("order %d is confirmed by the seller", order.ID)
		}
		if !o.clock.Now().After(order.ExpireAt) {
			return model.InvalidTransitionf("order %d expires at %s", order.ID, order.ExpireAt.Format(time.RFC3339))
		}
		return o.refund(ctx, tx, order, model.OtcOrderStateExpired, model.OtcCloseReasonExpired, events.OrderExpired, outbox)
	})
}

func (o *Otc) Get(ctx context.Context, orderID uint64) (*model.OtcOrder, error) {
	return o.store.OtcOrder.Get(o.db, orderID)
}

func (o *Otc) ListByAccount(ctx context.Context, filter otcorder.ListFilter) ([]*model.OtcOrder, int64, error) {
	return o.store.OtcOrder.Find(o.db, filter)
}

// transition runs fn on the locked order row and saves it. Terminal orders are
// returned unchanged with model.ErrAlreadyTerminal.
func (o *Otc) transition(
	ctx context.Context,
	op string,
	orderID uint64,
	fn func(tx *gorm.DB, order *model.OtcOrder, outbox *events.Outbox) error,
) (*model.OtcOrder, error) {
	var order *model.OtcOrder
	outbox := &events.Outbox{}
	err := store.DoInTx(o.db, func(tx *gorm.DB) error {
		var err error
		order, err = o.store.OtcOrder.GetForUpdate(tx, orderID)
		if err != nil {
			return err
		}
		if order.State.IsTerminal() {
			return errors.Wrapf(model.ErrAlreadyTerminal, "order %d is %s", order.ID, order.State)
		}
		from := order.State
		if err := fn(tx, order, outbox); err != nil {
			return err
		}
		if order.State != from && !from.CanTransitionTo(order.State) {
			return model.InvalidTransitionf("order %d cannot move from %s to %s", order.ID, from, order.State)
		}
		return o.store.OtcOrder.Save(tx, order)
	})
	if err != nil {
		if errors.Is(err, model.ErrAlreadyTerminal) {
			return order, err
		}
		o.logger.Error("["+op+"][DoInTx]", map[string]string{
			"order_id": strconv.FormatUint(orderID, 10),
			"error":    err.Error(),
		})
		return nil, err
	}

	o.metrics.RecordTransition(entityName, string(order.State))
	outbox.Flush(ctx, o.publisher, o.logger)
	return order, nil
}

func (o *Otc) release(ctx context.Context, tx *gorm.DB, order *model.OtcOrder, reason string, outbox *events.Outbox) error {
	if _, err := o.escrow.ReleaseTx(ctx, tx, order.LockRef(), order.Buyer); err != nil {
		return err
	}
	if err := o.served(tx, order); err != nil {
		return err
	}
	o.close(order, model.OtcOrderStateReleased, reason)
	outbox.Add(consts.EVENT_STREAM_ORDERS, events.OrderReleased, *order.ClosedAt, orderPayload(order))
	return nil
}

func (o *Otc) refund(
	ctx context.Context,
	tx *gorm.DB,
	order *model.OtcOrder,
	state model.OtcOrderState,
	reason string,
	eventType string,
	outbox *events.Outbox,
) error {
	if _, err := o.escrow.RefundTx(ctx, tx, order.LockRef()); err != nil {
		return err
	}
	o.close(order, state, reason)
	outbox.Add(consts.EVENT_STREAM_ORDERS, eventType, *order.ClosedAt, orderPayload(order))
	return nil
}

func (o *Otc) close(order *model.OtcOrder, state model.OtcOrderState, reason string) {
	now := o.clock.Now()
	order.State = state
	order.CloseReason = reason
	order.ClosedAt = &now
}

// served counts a completed order towards a maker seller.
func (o *Otc) served(tx *gorm.DB, order *model.OtcOrder) error {
	isMaker, err := o.makers.IsMakerTx(tx, order.Seller)
	if err != nil || !isMaker {
		return err
	}
	return o.makers.IncrementUsersServedTx(tx, order.Seller)
}

func validateCreate(req CreateOrderRequest) error {
	if err := model.ValidateRequest(req); err != nil {
		return err
	}
	if req.Buyer == "" || req.Seller == "" {
		return model.Validationf("buyer and seller are required")
	}
	if req.Buyer == req.Seller {
		return model.Validationf("buyer and seller must differ")
	}
	if !model.IsPositiveAmount(req.Qty) {
		return model.Validationf("qty must be a positive integer, got %s", req.Qty)
	}
	if !model.IsPositiveAmount(req.Amount) {
		return model.Validationf("amount must be a positive integer, got %s", req.Amount)
	}
	if req.TTL < 0 {
		return model.Validationf("ttl must not be negative")
	}
	return nil
}

func orderPayload(order *model.OtcOrder) map[string]any {
	payload := map[string]any{
		"order_id": order.ID,
		"buyer":    order.Buyer,
		"seller":   order.Seller,
		"qty":      order.Qty.String(),
		"state":    string(order.State),
	}
	if order.CloseReason != "" {
		payload["reason"] = order.CloseReason
	}
	return payload
}
