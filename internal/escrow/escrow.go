package escrow

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/dwarvesf/escrow-backend/internal/consts"
	"github.com/dwarvesf/escrow-backend/internal/ledger"
	"github.com/dwarvesf/escrow-backend/internal/model"
	"github.com/dwarvesf/escrow-backend/internal/monitoring"
	"github.com/dwarvesf/escrow-backend/internal/store"
	"github.com/dwarvesf/escrow-backend/internal/utils/logger"
)

type Escrow struct {
	db      *gorm.DB
	store   *store.Store
	ledger  ledger.IClient
	logger  *logger.Logger
	metrics *monitoring.EscrowMetrics
}

func New(db *gorm.DB, store *store.Store, ledgerClient ledger.IClient, logger *logger.Logger, metrics *monitoring.EscrowMetrics) *Escrow {
	return &Escrow{
		db:      db,
		store:   store,
		ledger:  ledgerClient,
		logger:  logger,
		metrics: metrics,
	}
}

func (e *Escrow) Lock(ctx context.Context, account string, amount decimal.Decimal, lockRef string) (*model.EscrowLock, error) {
	return e.inTx(func(tx *gorm.DB) (*model.EscrowLock, error) {
		return e.LockTx(ctx, tx, account, amount, lockRef)
	})
}

func (e *Escrow) LockTx(ctx context.Context, tx *gorm.DB, account string, amount decimal.Decimal, lockRef string) (*model.EscrowLock, error) {
	if account == "" || lockRef == "" {
		return nil, model.Validationf("account and lock ref are required")
	}
	if !amount.IsPositive() {
		return nil, model.Validationf("lock amount must be positive, got %s", amount)
	}

	existing, err := e.store.EscrowLock.GetForUpdate(tx, lockRef)
	if err == nil {
		if existing.Owner != account || !existing.Amount.Equal(amount) {
			return nil, model.Validationf("lock %s already exists with different parameters", lockRef)
		}
		if existing.Status.IsTerminal() {
			return existing, errors.Wrapf(model.ErrAlreadyTerminal, "lock %s is %s", lockRef, existing.Status)
		}
		return existing, nil
	}
	if !errors.Is(err, model.ErrNotFound) {
		return nil, err
	}

	accounts, err := e.lockAccounts(tx, account)
	if err != nil {
		return nil, err
	}
	owner := accounts[account]
	if owner.Available.LessThan(amount) {
		e.metrics.RecordFundMove(string(ledger.TransitionLock), "insufficient_balance")
		return nil, errors.Wrapf(model.ErrInsufficientBalance, "account %s has %s available, needs %s", account, owner.Available, amount)
	}

	owner.Available = owner.Available.Sub(amount)
	owner.Locked = owner.Locked.Add(amount)

	lock := &model.EscrowLock{
		LockRef:   lockRef,
		Owner:     account,
		Amount:    amount,
		Remaining: amount,
		Released:  decimal.Zero,
		Refunded:  decimal.Zero,
		Slashed:   decimal.Zero,
		Status:    model.EscrowLockStatusLocked,
	}

	blockRef, err := e.submit(ctx, ledger.Transition{
		Kind:    ledger.TransitionLock,
		LockRef: lockRef,
		From:    account,
		Amount:  amount,
	})
	if err != nil {
		return nil, err
	}
	lock.LastBlockRef = blockRef

	if _, err := e.store.EscrowLock.Create(tx, lock); err != nil {
		return nil, errors.Wrap(err, "create escrow lock")
	}
	if err := e.saveAccounts(tx, accounts); err != nil {
		return nil, err
	}

	e.metrics.RecordFundMove(string(ledger.TransitionLock), "success")
	return lock, nil
}

func (e *Escrow) Release(ctx context.Context, lockRef, to string) (*model.EscrowLock, error) {
	return e.inTx(func(tx *gorm.DB) (*model.EscrowLock, error) {
		return e.ReleaseTx(ctx, tx, lockRef, to)
	})
}

func (e *Escrow) ReleaseTx(ctx context.Context, tx *gorm.DB, lockRef, to string) (*model.EscrowLock, error) {
	if to == "" {
		return nil, model.Validationf("release recipient is required")
	}

	lock, err := e.getOpenLock(tx, lockRef)
	if err != nil {
		return lock, err
	}

	accounts, err := e.lockAccounts(tx, lock.Owner, to)
	if err != nil {
		return nil, err
	}

	amount := lock.Remaining
	accounts[lock.Owner].Locked = accounts[lock.Owner].Locked.Sub(amount)
	accounts[to].Available = accounts[to].Available.Add(amount)

	lock.Released = lock.Released.Add(amount)
	lock.Remaining = decimal.Zero
	lock.Status = model.EscrowLockStatusReleased
	lock.ReleasedTo = to

	return e.commitLock(ctx, tx, lock, accounts, ledger.Transition{
		Kind:    ledger.TransitionRelease,
		LockRef: lockRef,
		From:    lock.Owner,
		To:      to,
		Amount:  amount,
	})
}

func (e *Escrow) Refund(ctx context.Context, lockRef string) (*model.EscrowLock, error) {
	return e.inTx(func(tx *gorm.DB) (*model.EscrowLock, error) {
		return e.RefundTx(ctx, tx, lockRef)
	})
}

func (e *Escrow) RefundTx(ctx context.Context, tx *gorm.DB, lockRef string) (*model.EscrowLock, error) {
	lock, err := e.getOpenLock(tx, lockRef)
	if err != nil {
		return lock, err
	}

	accounts, err := e.lockAccounts(tx, lock.Owner)
	if err != nil {
		return nil, err
	}

	amount := lock.Remaining
	owner := accounts[lock.Owner]
	owner.Locked = owner.Locked.Sub(amount)
	owner.Available = owner.Available.Add(amount)

	lock.Refunded = lock.Refunded.Add(amount)
	lock.Remaining = decimal.Zero
	lock.Status = model.EscrowLockStatusRefunded

	return e.commitLock(ctx, tx, lock, accounts, ledger.Transition{
		Kind:    ledger.TransitionRefund,
		LockRef: lockRef,
		To:      lock.Owner,
		Amount:  amount,
	})
}

func (e *Escrow) Slash(ctx context.Context, lockRef, beneficiary string, fractionBps int) (*model.EscrowLock, error) {
	return e.inTx(func(tx *gorm.DB) (*model.EscrowLock, error) {
		return e.SlashTx(ctx, tx, lockRef, beneficiary, fractionBps)
	})
}

func (e *Escrow) SlashTx(ctx context.Context, tx *gorm.DB, lockRef, beneficiary string, fractionBps int) (*model.EscrowLock, error) {
	if beneficiary == "" {
		return nil, model.Validationf("slash beneficiary is required")
	}
	if fractionBps < 0 || fractionBps > consts.BPS_DENOMINATOR {
		return nil, model.Validationf("slash fraction %d out of range", fractionBps)
	}

	lock, err := e.getOpenLock(tx, lockRef)
	if err != nil {
		return lock, err
	}
	if lock.SlashedTo != "" {
		return lock, errors.Wrapf(model.ErrAlreadyTerminal, "lock %s already slashed", lockRef)
	}

	accounts, err := e.lockAccounts(tx, lock.Owner, beneficiary)
	if err != nil {
		return nil, err
	}

	amount := model.MulBps(lock.Remaining, int64(fractionBps))
	accounts[lock.Owner].Locked = accounts[lock.Owner].Locked.Sub(amount)
	accounts[beneficiary].Available = accounts[beneficiary].Available.Add(amount)

	lock.Slashed = lock.Slashed.Add(amount)
	lock.Remaining = lock.Remaining.Sub(amount)
	lock.SlashedTo = beneficiary
	if lock.Remaining.IsZero() {
		lock.Status = model.EscrowLockStatusSettled
	}

	return e.commitLock(ctx, tx, lock, accounts, ledger.Transition{
		Kind:    ledger.TransitionSlash,
		LockRef: lockRef,
		From:    lock.Owner,
		To:      beneficiary,
		Amount:  amount,
	})
}

func (e *Escrow) Split(ctx context.Context, lockRef, first, second string, firstShareBps int) (*model.EscrowLock, error) {
	return e.inTx(func(tx *gorm.DB) (*model.EscrowLock, error) {
		return e.SplitTx(ctx, tx, lockRef, first, second, firstShareBps)
	})
}

func (e *Escrow) SplitTx(ctx context.Context, tx *gorm.DB, lockRef, first, second string, firstShareBps int) (*model.EscrowLock, error) {
	if first == "" || second == "" {
		return nil, model.Validationf("split parties are required")
	}
	if firstShareBps < 0 || firstShareBps > consts.BPS_DENOMINATOR {
		return nil, model.Validationf("split share %d out of range", firstShareBps)
	}

	lock, err := e.getOpenLock(tx, lockRef)
	if err != nil {
		return lock, err
	}

	accounts, err := e.lockAccounts(tx, lock.Owner, first, second)
	if err != nil {
		return nil, err
	}

	total := lock.Remaining
	firstAmount := model.MulBps(total, int64(firstShareBps))
	secondAmount := total.Sub(firstAmount)

	accounts[lock.Owner].Locked = accounts[lock.Owner].Locked.Sub(total)
	accounts[first].Available = accounts[first].Available.Add(firstAmount)
	accounts[second].Available = accounts[second].Available.Add(secondAmount)

	lock.Released = lock.Released.Add(total)
	lock.Remaining = decimal.Zero
	lock.Status = model.EscrowLockStatusSettled
	lock.ReleasedTo = fmt.Sprintf("%s,%s", first, second)

	return e.commitLock(ctx, tx, lock, accounts, ledger.Transition{
		Kind:    ledger.TransitionSplit,
		LockRef: lockRef,
		From:    lock.Owner,
		To:      lock.ReleasedTo,
		Amount:  total,
	})
}

func (e *Escrow) Credit(ctx context.Context, account string, amount decimal.Decimal) (*model.EscrowAccount, error) {
	return e.moveAvailable(ctx, ledger.TransitionCredit, account, amount)
}

func (e *Escrow) Withdraw(ctx context.Context, account string, amount decimal.Decimal) (*model.EscrowAccount, error) {
	return e.moveAvailable(ctx, ledger.TransitionWithdraw, account, amount)
}

func (e *Escrow) GetAccount(_ context.Context, account string) (*model.EscrowAccount, error) {
	return e.store.EscrowAccount.Get(e.db, account)
}

func (e *Escrow) GetLock(_ context.Context, lockRef string) (*model.EscrowLock, error) {
	return e.store.EscrowLock.Get(e.db, lockRef)
}

func (e *Escrow) GetLockTx(tx *gorm.DB, lockRef string) (*model.EscrowLock, error) {
	return e.store.EscrowLock.GetForUpdate(tx, lockRef)
}

func (e *Escrow) ListLocks(_ context.Context, owner string, status model.EscrowLockStatus) ([]*model.EscrowLock, error) {
	return e.store.EscrowLock.ListByOwner(e.db, owner, status)
}

func (e *Escrow) moveAvailable(ctx context.Context, kind ledger.TransitionKind, account string, amount decimal.Decimal) (*model.EscrowAccount, error) {
	if account == "" {
		return nil, model.Validationf("account is required")
	}
	if !amount.IsPositive() {
		return nil, model.Validationf("%s amount must be positive, got %s", kind, amount)
	}

	var result *model.EscrowAccount
	err := store.DoInTx(e.db, func(tx *gorm.DB) error {
		acc, err := e.store.EscrowAccount.GetForUpdate(tx, account)
		if err != nil {
			return err
		}

		transition := ledger.Transition{Kind: kind, Amount: amount}
		if kind == ledger.TransitionCredit {
			acc.Available = acc.Available.Add(amount)
			transition.To = account
		} else {
			if acc.Available.LessThan(amount) {
				return errors.Wrapf(model.ErrInsufficientBalance, "account %s has %s available, needs %s", account, acc.Available, amount)
			}
			acc.Available = acc.Available.Sub(amount)
			transition.From = account
		}

		if _, err := e.submit(ctx, transition); err != nil {
			return err
		}
		if err := e.store.EscrowAccount.Save(tx, acc); err != nil {
			return err
		}
		result = acc
		return nil
	})
	if err != nil {
		e.metrics.RecordFundMove(string(kind), "error")
		return nil, err
	}

	e.metrics.RecordFundMove(string(kind), "success")
	return result, nil
}

func (e *Escrow) getOpenLock(tx *gorm.DB, lockRef string) (*model.EscrowLock, error) {
	lock, err := e.store.EscrowLock.GetForUpdate(tx, lockRef)
	if err != nil {
		return nil, err
	}
	if lock.Status.IsTerminal() {
		return lock, errors.Wrapf(model.ErrAlreadyTerminal, "lock %s is %s", lockRef, lock.Status)
	}
	return lock, nil
}

func (e *Escrow) commitLock(ctx context.Context, tx *gorm.DB, lock *model.EscrowLock, accounts map[string]*model.EscrowAccount, transition ledger.Transition) (*model.EscrowLock, error) {
	if !lock.Conserved() {
		e.logger.Error("[commitLock] conservation violated", map[string]string{
			"lock_ref": lock.LockRef,
			"amount":   lock.Amount.String(),
		})
		return nil, errors.Errorf("lock %s would violate conservation", lock.LockRef)
	}

	blockRef, err := e.submit(ctx, transition)
	if err != nil {
		return nil, err
	}
	lock.LastBlockRef = blockRef

	if err := e.store.EscrowLock.Save(tx, lock); err != nil {
		return nil, errors.Wrap(err, "save escrow lock")
	}
	if err := e.saveAccounts(tx, accounts); err != nil {
		return nil, err
	}

	e.metrics.RecordFundMove(string(transition.Kind), "success")
	return lock, nil
}

// lockAccounts row-locks the given accounts in a fixed order so concurrent
// transitions touching the same pair cannot deadlock.
func (e *Escrow) lockAccounts(tx *gorm.DB, accounts ...string) (map[string]*model.EscrowAccount, error) {
	names := make([]string, 0, len(accounts))
	seen := make(map[string]bool, len(accounts))
	for _, a := range accounts {
		if !seen[a] {
			seen[a] = true
			names = append(names, a)
		}
	}
	sort.Strings(names)

	out := make(map[string]*model.EscrowAccount, len(names))
	for _, name := range names {
		acc, err := e.store.EscrowAccount.GetForUpdate(tx, name)
		if err != nil {
			return nil, errors.Wrapf(err, "lock account %s", name)
		}
		out[name] = acc
	}
	return out, nil
}

func (e *Escrow) saveAccounts(tx *gorm.DB, accounts map[string]*model.EscrowAccount) error {
	for _, acc := range accounts {
		if err := e.store.EscrowAccount.Save(tx, acc); err != nil {
			return errors.Wrapf(err, "save account %s", acc.Account)
		}
	}
	return nil
}

func (e *Escrow) submit(ctx context.Context, transition ledger.Transition) (string, error) {
	if transition.LockRef != "" {
		transition.IdempotencyKey = fmt.Sprintf("%s:%s", transition.LockRef, transition.Kind)
	} else {
		transition.IdempotencyKey = uuid.NewString()
	}

	ref, err := e.ledger.SubmitTransition(ctx, transition)
	if err != nil {
		e.logger.Error("[submit][SubmitTransition]", map[string]string{
			"kind":     string(transition.Kind),
			"lock_ref": transition.LockRef,
			"error":    err.Error(),
		})
		e.metrics.RecordFundMove(string(transition.Kind), "ledger_error")
		return "", errors.Wrap(err, "submit ledger transition")
	}
	return ref.String(), nil
}

func (e *Escrow) inTx(fn func(tx *gorm.DB) (*model.EscrowLock, error)) (*model.EscrowLock, error) {
	var lock *model.EscrowLock
	err := store.DoInTx(e.db, func(tx *gorm.DB) error {
		var err error
		lock, err = fn(tx)
		return err
	})
	return lock, err
}
