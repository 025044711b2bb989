package types

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
)

// BalanceChange is one signed account ledger update submitted by a wallet.
type BalanceChange struct {
	AccountID            common.Address
	AccountType          AccountType
	ChangeNumber         uint32
	PreviousBalance      *big.Int
	Balance              *big.Int
	PreviousBalanceProof *BalanceProof `rlp:"nil"`
	ChannelHoldNote      *Note         `rlp:"nil"`
	Notes                []Note
	Signature            []byte
}

type balanceChangePayload struct {
	AccountID            common.Address
	AccountType          AccountType
	ChangeNumber         uint32
	PreviousBalance      *big.Int
	Balance              *big.Int
	PreviousBalanceProof *BalanceProof `rlp:"nil"`
	ChannelHoldNote      *Note         `rlp:"nil"`
	Notes                []Note
}

func (c *BalanceChange) Key() AccountKey {
	return NewAccountKey(c.AccountID, c.AccountType)
}

// SigningData is the rlp payload an account signs, everything but the
// signature itself.
func (c *BalanceChange) SigningData() ([]byte, error) {
	return rlp.EncodeToBytes(&balanceChangePayload{
		AccountID:            c.AccountID,
		AccountType:          c.AccountType,
		ChangeNumber:         c.ChangeNumber,
		PreviousBalance:      bigOrZero(c.PreviousBalance),
		Balance:              bigOrZero(c.Balance),
		PreviousBalanceProof: c.PreviousBalanceProof,
		ChannelHoldNote:      c.ChannelHoldNote,
		Notes:                c.Notes,
	})
}

func (c *BalanceChange) SigningHash() (common.Hash, error) {
	data, err := c.SigningData()
	if err != nil {
		return common.Hash{}, err
	}
	return crypto.Keccak256Hash(data), nil
}

func bigOrZero(b *big.Int) *big.Int {
	if b == nil {
		return new(big.Int)
	}
	return b
}

// ResultingChannelHold is the hold the account carries once the change is
// applied: a newly opened hold, nothing after a settle, otherwise the hold it
// already had.
func (c *BalanceChange) ResultingChannelHold() *Note {
	hold := c.ChannelHoldNote
	for i := range c.Notes {
		switch c.Notes[i].Type {
		case NoteChannelHold:
			opened := c.Notes[i]
			hold = &opened
		case NoteChannelHoldSettle:
			hold = nil
		}
	}
	return hold
}

// Tip is the balance tip the change produces for the given origin.
func (c *BalanceChange) Tip(origin AccountOrigin) BalanceTip {
	return BalanceTip{
		AccountID:       c.AccountID,
		AccountType:     c.AccountType,
		ChangeNumber:    c.ChangeNumber,
		Balance:         bigOrZero(c.Balance),
		AccountOrigin:   origin,
		ChannelHoldNote: c.ResultingChannelHold(),
	}
}
