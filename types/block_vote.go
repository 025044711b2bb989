package types

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
)

// BlockVote spends tax-funded voting power on a base-chain block.
type BlockVote struct {
	AccountID             common.Address
	BlockHash             common.Hash
	Index                 uint32
	Power                 *big.Int
	BlockRewardsAccountID common.Address
	Signature             []byte
}

type blockVotePayload struct {
	AccountID             common.Address
	BlockHash             common.Hash
	Index                 uint32
	Power                 *big.Int
	BlockRewardsAccountID common.Address
}

func (v *BlockVote) SigningData() ([]byte, error) {
	return rlp.EncodeToBytes(&blockVotePayload{
		AccountID:             v.AccountID,
		BlockHash:             v.BlockHash,
		Index:                 v.Index,
		Power:                 bigOrZero(v.Power),
		BlockRewardsAccountID: v.BlockRewardsAccountID,
	})
}

func (v *BlockVote) PowerOrZero() *big.Int {
	return bigOrZero(v.Power)
}

// Encode packs the vote into its leaf of the block votes tree.
func (v *BlockVote) Encode(s *Serializer) ([]byte, error) {
	return s.blockVoteArguments.Pack(
		v.AccountID,
		[32]byte(v.BlockHash),
		v.Index,
		bigOrZero(v.Power),
		v.BlockRewardsAccountID,
	)
}

func createBlockVoteArguments(r *typeRegistry) abi.Arguments {
	return abi.Arguments([]abi.Argument{
		{Name: "accountId", Type: r.addressTy, Indexed: false},
		{Name: "blockHash", Type: r.bytes32Ty, Indexed: false},
		{Name: "index", Type: r.uint32Ty, Indexed: false},
		{Name: "power", Type: r.uint256Ty, Indexed: false},
		{Name: "blockRewardsAccountId", Type: r.addressTy, Indexed: false},
	})
}
