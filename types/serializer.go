package types

import "github.com/ethereum/go-ethereum/accounts/abi"

// Serializer packs Merkle leaves with the abi encoding the base chain
// verifies proofs against.
type Serializer struct {
	typeRegistry        *typeRegistry
	balanceTipArguments abi.Arguments
	blockVoteArguments  abi.Arguments
}

func NewSerializer() (*Serializer, error) {
	typeRegistry, err := newTypeRegistry()
	if err != nil {
		return nil, err
	}
	return &Serializer{
		typeRegistry:        typeRegistry,
		balanceTipArguments: createBalanceTipArguments(typeRegistry),
		blockVoteArguments:  createBlockVoteArguments(typeRegistry),
	}, nil
}

// MustNewSerializer is NewSerializer for static setup code.
func MustNewSerializer() *Serializer {
	s, err := NewSerializer()
	if err != nil {
		panic(err)
	}
	return s
}
