package store

import (
	"github.com/dwarvesf/escrow-backend/internal/store/dispute"
	"github.com/dwarvesf/escrow-backend/internal/store/escrowaccount"
	"github.com/dwarvesf/escrow-backend/internal/store/escrowlock"
	"github.com/dwarvesf/escrow-backend/internal/store/makerprofile"
	"github.com/dwarvesf/escrow-backend/internal/store/otcorder"
	"github.com/dwarvesf/escrow-backend/internal/store/swaprecord"
)

type Store struct {
	MakerProfile  makerprofile.IStore
	OtcOrder      otcorder.IStore
	SwapRecord    swaprecord.IStore
	Dispute       dispute.IStore
	EscrowLock    escrowlock.IStore
	EscrowAccount escrowaccount.IStore
}

func New() *Store {
	return &Store{
		MakerProfile:  makerprofile.New(),
		OtcOrder:      otcorder.New(),
		SwapRecord:    swaprecord.New(),
		Dispute:       dispute.New(),
		EscrowLock:    escrowlock.New(),
		EscrowAccount: escrowaccount.New(),
	}
}
