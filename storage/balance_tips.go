package storage

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/argonprotocol/notary/types"
)

type balanceTipRecord struct {
	Tip                 types.BalanceTip
	LastChangedNotebook uint32
}

// BalanceTipStore holds the latest accepted state of every account key.
//
// Lock reads the tip through the enclosing transaction so the read is
// tracked: if another notarization commits a change to the same account
// first, this transaction fails at commit with ErrBusy.
type BalanceTipStore struct{}

// LockedTip is the state of an account key as Lock found it.
type LockedTip struct {
	Tip                 *types.BalanceTip
	LastChangedNotebook types.NotebookNumber
}

func (s *BalanceTipStore) get(tx *Tx, key types.AccountKey) (*balanceTipRecord, error) {
	record := new(balanceTipRecord)
	ok, err := getRLP(tx, nsBalanceTip, key.Bytes(), record)
	if err != nil || !ok {
		return nil, err
	}
	return record, nil
}

// Get returns the stored tip or nil.
func (s *BalanceTipStore) Get(tx *Tx, key types.AccountKey) (*types.BalanceTip, error) {
	record, err := s.get(tx, key)
	if err != nil || record == nil {
		return nil, err
	}
	return &record.Tip, nil
}

// Lock verifies the claimed previous state of an account key. A first change
// requires no stored tip; any later change requires the stored change number,
// balance, origin and channel hold to equal the claimed previous state.
func (s *BalanceTipStore) Lock(
	tx *Tx,
	account common.Address,
	accountType types.AccountType,
	changeNumber uint32,
	previousBalance *big.Int,
	origin types.AccountOrigin,
	changeIndex int,
	channelHoldNote *types.Note,
) (*LockedTip, error) {
	if err := tx.CheckLockBudget(); err != nil {
		return nil, err
	}
	key := types.NewAccountKey(account, accountType)
	record, err := s.get(tx, key)
	if err != nil {
		return nil, err
	}

	mismatch := func(reason string) error {
		e := &BalanceChangeMismatchError{
			ChangeIndex:          changeIndex,
			StoredBalance:        new(big.Int),
			ProvidedChangeNumber: changeNumber,
			ProvidedBalance:      previousBalance,
			Reason:               reason,
		}
		if record != nil {
			e.StoredChangeNumber = record.Tip.ChangeNumber
			e.StoredBalance = record.Tip.Balance
		}
		return e
	}

	if record == nil {
		if changeNumber != 1 {
			return nil, mismatch("no balance tip")
		}
		if previousBalance != nil && previousBalance.Sign() != 0 {
			return nil, mismatch("first change must start from zero")
		}
		return &LockedTip{}, nil
	}
	tip := &record.Tip
	if changeNumber == 1 || tip.ChangeNumber != changeNumber-1 {
		return nil, mismatch("change number")
	}
	if tip.Balance.Cmp(bigOrZero(previousBalance)) != 0 {
		return nil, mismatch("previous balance")
	}
	if tip.AccountOrigin != origin {
		return nil, mismatch("account origin")
	}
	if !tip.ChannelHoldNote.Equal(channelHoldNote) {
		return nil, mismatch("channel hold note")
	}
	return &LockedTip{Tip: tip, LastChangedNotebook: record.LastChangedNotebook}, nil
}

// Update writes the new tip. Callers must have locked the key in tx.
func (s *BalanceTipStore) Update(
	tx *Tx,
	account common.Address,
	accountType types.AccountType,
	changeNumber uint32,
	balance *big.Int,
	notebookNumber types.NotebookNumber,
	origin types.AccountOrigin,
	channelHoldNote *types.Note,
) error {
	key := types.NewAccountKey(account, accountType)
	return setRLP(tx, nsBalanceTip, key.Bytes(), &balanceTipRecord{
		Tip: types.BalanceTip{
			AccountID:       account,
			AccountType:     accountType,
			ChangeNumber:    changeNumber,
			Balance:         bigOrZero(balance),
			AccountOrigin:   origin,
			ChannelHoldNote: channelHoldNote,
		},
		LastChangedNotebook: notebookNumber,
	})
}

func bigOrZero(b *big.Int) *big.Int {
	if b == nil {
		return new(big.Int)
	}
	return b
}
