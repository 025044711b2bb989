package types

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

type ChainTransferType uint8

const (
	ChainTransferToMainchain ChainTransferType = iota
	ChainTransferToLocalchain
)

// ChainTransfer is a value movement across the base-chain boundary, embedded
// in the header of the notebook that carried it. ToLocalchain transfers are
// identified by (AccountID, AccountNonce); ToMainchain transfers by
// (AccountID, Amount).
type ChainTransfer struct {
	Type         ChainTransferType
	AccountID    common.Address
	AccountNonce uint32
	Amount       *big.Int
}

func NewToLocalchainTransfer(account common.Address, nonce uint32) ChainTransfer {
	return ChainTransfer{Type: ChainTransferToLocalchain, AccountID: account, AccountNonce: nonce, Amount: new(big.Int)}
}

func NewToMainchainTransfer(account common.Address, amount *big.Int) ChainTransfer {
	return ChainTransfer{Type: ChainTransferToMainchain, AccountID: account, Amount: bigOrZero(amount)}
}
