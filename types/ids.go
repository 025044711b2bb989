package types

import (
	"bytes"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

type (
	NotaryID       = uint32
	NotebookNumber = uint32
	Tick           = uint32
	BlockNumber    = uint32
	AccountUID     = uint32
)

// AccountType separates the two ledgers every account owns.
type AccountType uint8

const (
	AccountTypeTax AccountType = iota
	AccountTypeDeposit
)

func (t AccountType) String() string {
	switch t {
	case AccountTypeTax:
		return "tax"
	case AccountTypeDeposit:
		return "deposit"
	}
	return fmt.Sprintf("AccountType(%d)", uint8(t))
}

func (t AccountType) Valid() bool {
	return t == AccountTypeTax || t == AccountTypeDeposit
}

// AccountKey identifies one balance ledger line.
type AccountKey struct {
	AccountID   common.Address
	AccountType AccountType
}

func NewAccountKey(account common.Address, accountType AccountType) AccountKey {
	return AccountKey{AccountID: account, AccountType: accountType}
}

// Bytes is the storage key: 20 address bytes followed by the account type.
func (k AccountKey) Bytes() []byte {
	b := make([]byte, common.AddressLength+1)
	copy(b, k.AccountID[:])
	b[common.AddressLength] = byte(k.AccountType)
	return b
}

// Less orders keys by account id, then account type.
func (k AccountKey) Less(other AccountKey) bool {
	if c := bytes.Compare(k.AccountID[:], other.AccountID[:]); c != 0 {
		return c < 0
	}
	return k.AccountType < other.AccountType
}

func (k AccountKey) String() string {
	return fmt.Sprintf("%s/%s", k.AccountID.Hex(), k.AccountType)
}

// AccountOrigin is the immutable address of an account inside notebook Merkle
// trees: the notebook it first appeared in and its sequence in that notebook.
type AccountOrigin struct {
	NotebookNumber NotebookNumber
	AccountUID     AccountUID
}

func (o AccountOrigin) IsZero() bool {
	return o.NotebookNumber == 0 && o.AccountUID == 0
}

// NewAccountOrigin is an origin minted in a notebook, published in its header
// and body.
type NewAccountOrigin struct {
	AccountID   common.Address
	AccountType AccountType
	AccountUID  AccountUID
}
