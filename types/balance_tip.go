package types

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// BalanceTip is the latest accepted state of one account key.
type BalanceTip struct {
	AccountID       common.Address
	AccountType     AccountType
	ChangeNumber    uint32
	Balance         *big.Int
	AccountOrigin   AccountOrigin
	ChannelHoldNote *Note `rlp:"nil"`
}

func (t *BalanceTip) Key() AccountKey {
	return NewAccountKey(t.AccountID, t.AccountType)
}

func (t *BalanceTip) holdNoteHash() [32]byte {
	if t.ChannelHoldNote == nil {
		return [32]byte{}
	}
	return [32]byte(t.ChannelHoldNote.Hash())
}

// Encode packs the tip into its Merkle leaf.
func (t *BalanceTip) Encode(s *Serializer) ([]byte, error) {
	return s.balanceTipArguments.Pack(
		t.AccountID,
		uint8(t.AccountType),
		t.ChangeNumber,
		bigOrZero(t.Balance),
		t.AccountOrigin.NotebookNumber,
		t.AccountOrigin.AccountUID,
		t.holdNoteHash(),
	)
}

func createBalanceTipArguments(r *typeRegistry) abi.Arguments {
	return abi.Arguments([]abi.Argument{
		{Name: "accountId", Type: r.addressTy, Indexed: false},
		{Name: "accountType", Type: r.uint8Ty, Indexed: false},
		{Name: "changeNumber", Type: r.uint32Ty, Indexed: false},
		{Name: "balance", Type: r.uint256Ty, Indexed: false},
		{Name: "originNotebookNumber", Type: r.uint32Ty, Indexed: false},
		{Name: "originAccountUid", Type: r.uint32Ty, Indexed: false},
		{Name: "channelHoldNoteHash", Type: r.bytes32Ty, Indexed: false},
	})
}
