package escrow

import (
	"context"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/dwarvesf/escrow-backend/internal/model"
)

// IEscrow is the only component allowed to change balances. Every method
// without the Tx suffix runs in its own transaction; the Tx variants join the
// caller's transaction so a state transition and its fund move commit together.
//
// Release, Refund, Slash and Split on a lock that already reached a terminal
// status return the stored lock together with model.ErrAlreadyTerminal.
type IEscrow interface {
	Lock(ctx context.Context, account string, amount decimal.Decimal, lockRef string) (*model.EscrowLock, error)
	LockTx(ctx context.Context, tx *gorm.DB, account string, amount decimal.Decimal, lockRef string) (*model.EscrowLock, error)

	Release(ctx context.Context, lockRef, to string) (*model.EscrowLock, error)
	ReleaseTx(ctx context.Context, tx *gorm.DB, lockRef, to string) (*model.EscrowLock, error)

	Refund(ctx context.Context, lockRef string) (*model.EscrowLock, error)
	RefundTx(ctx context.Context, tx *gorm.DB, lockRef string) (*model.EscrowLock, error)

	// Slash moves floor(remaining*fractionBps/10000) to the beneficiary. The
	// rest stays locked for a later Release or Refund.
	Slash(ctx context.Context, lockRef, beneficiary string, fractionBps int) (*model.EscrowLock, error)
	SlashTx(ctx context.Context, tx *gorm.DB, lockRef, beneficiary string, fractionBps int) (*model.EscrowLock, error)

	// Split settles a lock between two parties; first receives the floor share.
	Split(ctx context.Context, lockRef, first, second string, firstShareBps int) (*model.EscrowLock, error)
	SplitTx(ctx context.Context, tx *gorm.DB, lockRef, first, second string, firstShareBps int) (*model.EscrowLock, error)

	Credit(ctx context.Context, account string, amount decimal.Decimal) (*model.EscrowAccount, error)
	Withdraw(ctx context.Context, account string, amount decimal.Decimal) (*model.EscrowAccount, error)

	GetAccount(ctx context.Context, account string) (*model.EscrowAccount, error)
	GetLock(ctx context.Context, lockRef string) (*model.EscrowLock, error)
	GetLockTx(tx *gorm.DB, lockRef string) (*model.EscrowLock, error)
	ListLocks(ctx context.Context, owner string, status model.EscrowLockStatus) ([]*model.EscrowLock, error)
}
