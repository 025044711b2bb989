package notebook

import (
	"bytes"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"github.com/argonprotocol/notary/merkle"
	"github.com/argonprotocol/notary/storage"
	"github.com/argonprotocol/notary/types"
)

// EncodeLeaves packs tips into Merkle leaves, preserving order.
func EncodeLeaves(serializer *types.Serializer, tips []types.BalanceTip) ([][]byte, error) {
	leaves := make([][]byte, len(tips))
	for i := range tips {
		leaf, err := tips[i].Encode(serializer)
		if err != nil {
			return nil, errors.Wrapf(err, "encode leaf %d", i)
		}
		leaves[i] = leaf
	}
	return leaves, nil
}

// VerifyBalanceProof recomputes the changed accounts root from tip and proof.
// It touches no storage and is safe to call from any context.
func VerifyBalanceProof(serializer *types.Serializer, tip *types.BalanceTip, proof *types.BalanceProof, root common.Hash) bool {
	if proof == nil || tip.AccountOrigin != proof.AccountOrigin {
		return false
	}
	leaf, err := tip.Encode(serializer)
	if err != nil {
		return false
	}
	return merkle.Verify(root, leaf, proof.Proof, proof.LeafIndex, proof.NumberOfLeaves)
}

// GetBalanceProof builds the inclusion proof of tip in a sealed notebook. The
// tip must match the committed leaf exactly.
func (c *Closer) GetBalanceProof(notaryID types.NotaryID, notebookNumber types.NotebookNumber, tip *types.BalanceTip) (*types.BalanceProof, error) {
	if notaryID != c.config.NotaryID {
		return nil, errors.Wrapf(storage.ErrInvalidBalanceProofRequested, "notary %d", notaryID)
	}
	var tips []types.BalanceTip
	var header *types.SignedNotebookHeader
	err := c.storage.View(func(tx *storage.Tx) error {
		var err error
		if tips, err = c.storage.Headers.GetLeaves(tx, notebookNumber); err != nil {
			return err
		}
		header, err = c.storage.Headers.GetSignedHeader(tx, notebookNumber)
		return err
	})
	if err != nil {
		if errors.Is(err, storage.ErrNotebookNotFound) {
			return nil, errors.Wrapf(storage.ErrInvalidBalanceProofRequested, "notebook %d not sealed", notebookNumber)
		}
		return nil, err
	}

	leaves, err := EncodeLeaves(c.serializer, tips)
	if err != nil {
		return nil, err
	}
	wanted, err := tip.Encode(c.serializer)
	if err != nil {
		return nil, err
	}
	for i, leaf := range leaves {
		if !bytes.Equal(leaf, wanted) {
			continue
		}
		proof, err := merkle.MakeProof(leaves, i)
		if err != nil {
			return nil, err
		}
		return &types.BalanceProof{
			NotaryID:       notaryID,
			NotebookNumber: notebookNumber,
			Tick:           header.Header.Tick,
			AccountOrigin:  tips[i].AccountOrigin,
			Proof:          proof.Siblings,
			LeafIndex:      proof.LeafIndex,
			NumberOfLeaves: proof.NumberOfLeaves,
		}, nil
	}
	return nil, errors.Wrapf(storage.ErrInvalidBalanceProofRequested,
		"%s change %d not in notebook %d", tip.Key(), tip.ChangeNumber, notebookNumber)
}

// IsValidProof checks proof against the root persisted in the sealed header
// of proof.NotebookNumber.
func (c *Closer) IsValidProof(tip *types.BalanceTip, proof *types.BalanceProof) (bool, error) {
	if proof.NotaryID != c.config.NotaryID {
		return false, nil
	}
	header, err := c.storage.GetSignedHeader(proof.NotebookNumber)
	if err != nil {
		return false, err
	}
	return VerifyBalanceProof(c.serializer, tip, proof, header.Header.ChangedAccountsRoot), nil
}
