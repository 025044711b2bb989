package merkle

import "github.com/ethereum/go-ethereum/common"

// Proof is the sibling path from a leaf to the root, bottom up. Levels where
// the node was promoted contribute no sibling.
type Proof struct {
	Siblings       []common.Hash
	LeafIndex      uint32
	NumberOfLeaves uint32
}

// MakeProof returns the inclusion proof of leaves[index].
func MakeProof(leaves [][]byte, index int) (*Proof, error) {
	if len(leaves) == 0 {
		return nil, ErrEmptyTree
	}
	if index < 0 || index >= len(leaves) {
		return nil, ErrLeafOutOfRange
	}
	proof := &Proof{LeafIndex: uint32(index), NumberOfLeaves: uint32(len(leaves))}
	level := hashLeaves(leaves)
	for i := index; len(level) > 1; i /= 2 {
		if sibling := i ^ 1; sibling < len(level) {
			proof.Siblings = append(proof.Siblings, level[sibling])
		}
		level = nextLevel(level)
	}
	return proof, nil
}

// ComputeRoot folds the proof over leaf and returns the implied root.
func ComputeRoot(leaf []byte, siblings []common.Hash, leafIndex, numberOfLeaves uint32) (common.Hash, error) {
	if numberOfLeaves == 0 {
		return common.Hash{}, ErrEmptyTree
	}
	if leafIndex >= numberOfLeaves {
		return common.Hash{}, ErrLeafOutOfRange
	}
	current := Hasher(leaf)
	index, width := leafIndex, numberOfLeaves
	next := 0
	for width > 1 {
		if index%2 == 1 || index+1 < width {
			if next >= len(siblings) {
				return common.Hash{}, errProofExhausted
			}
			if index%2 == 1 {
				current = Hasher(siblings[next][:], current[:])
			} else {
				current = Hasher(current[:], siblings[next][:])
			}
			next++
		}
		index /= 2
		width = (width + 1) / 2
	}
	if next != len(siblings) {
		return common.Hash{}, errProofNotConsumed
	}
	return current, nil
}

// Verify reports whether leaf sits at leafIndex of a tree with the given root.
func Verify(root common.Hash, leaf []byte, siblings []common.Hash, leafIndex, numberOfLeaves uint32) bool {
	computed, err := ComputeRoot(leaf, siblings, leafIndex, numberOfLeaves)
	if err != nil {
		return false
	}
	return computed == root
}

func (p *Proof) Verify(root common.Hash, leaf []byte) bool {
	return Verify(root, leaf, p.Siblings, p.LeafIndex, p.NumberOfLeaves)
}
