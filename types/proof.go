package types

import "github.com/ethereum/go-ethereum/common"

// BalanceProof is the Merkle inclusion proof of a balance tip in a sealed
// notebook.
type BalanceProof struct {
	NotaryID       NotaryID
	NotebookNumber NotebookNumber
	Tick           Tick
	AccountOrigin  AccountOrigin
	Proof          []common.Hash
	LeafIndex      uint32
	NumberOfLeaves uint32
}
