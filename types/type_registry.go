package types

import (
	"github.com/ethereum/go-ethereum/accounts/abi"
)

type typeRegistry struct {
	addressTy abi.Type
	bytes32Ty abi.Type
	uint8Ty   abi.Type
	uint32Ty  abi.Type
	uint256Ty abi.Type
}

func newTypeRegistry() (*typeRegistry, error) {
	addressTy, err := abi.NewType("address", "", nil)
	if err != nil {
		return nil, err
	}
	bytes32Ty, err := abi.NewType("bytes32", "", nil)
	if err != nil {
		return nil, err
	}
	uint8Ty, err := abi.NewType("uint8", "", nil)
	if err != nil {
		return nil, err
	}
	uint32Ty, err := abi.NewType("uint32", "", nil)
	if err != nil {
		return nil, err
	}
	uint256Ty, err := abi.NewType("uint256", "", nil)
	if err != nil {
		return nil, err
	}
	return &typeRegistry{
		addressTy: addressTy,
		bytes32Ty: bytes32Ty,
		uint8Ty:   uint8Ty,
		uint32Ty:  uint32Ty,
		uint256Ty: uint256Ty,
	}, nil
}
