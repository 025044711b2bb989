// Package merkle builds the ordered binary keccak tree notebooks commit to.
//
// Leaves are hashed once, then paired level by level. A node left without a
// partner at the end of a level is promoted to the next level unchanged.
package merkle

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"golang.org/x/crypto/sha3"
)

var (
	ErrEmptyTree        = errors.New("merkle: tree has no leaves")
	ErrLeafOutOfRange   = errors.New("merkle: leaf index out of range")
	errProofExhausted   = errors.New("merkle: proof shorter than tree height")
	errProofNotConsumed = errors.New("merkle: proof longer than tree height")
)

// Hasher is the node hash function. keccak256 over the concatenated inputs.
var Hasher = func(data ...[]byte) common.Hash {
	hasher := sha3.NewLegacyKeccak256()
	for i := 0; i < len(data); i++ {
		hasher.Write(data[i])
	}
	var h common.Hash
	hasher.Sum(h[:0])
	return h
}

func hashLeaves(leaves [][]byte) []common.Hash {
	level := make([]common.Hash, len(leaves))
	for i, leaf := range leaves {
		level[i] = Hasher(leaf)
	}
	return level
}

func nextLevel(level []common.Hash) []common.Hash {
	next := make([]common.Hash, 0, (len(level)+1)/2)
	for i := 0; i < len(level); i += 2 {
		if i+1 == len(level) {
			next = append(next, level[i])
			continue
		}
		next = append(next, Hasher(level[i][:], level[i+1][:]))
	}
	return next
}

// Root computes the root over encoded leaves. An empty tree has the zero root.
func Root(leaves [][]byte) common.Hash {
	if len(leaves) == 0 {
		return common.Hash{}
	}
	level := hashLeaves(leaves)
	for len(level) > 1 {
		level = nextLevel(level)
	}
	return level[0]
}
