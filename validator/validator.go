// Package validator re-derives a sealed notebook from its own body and
// checks every commitment in its header.
package validator

import (
	"bytes"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"github.com/argonprotocol/notary/merkle"
	"github.com/argonprotocol/notary/types"
	"github.com/argonprotocol/notary/utils"
)

var (
	ErrInvalidNotebookHash      = errors.New("notebook hash mismatch")
	ErrInvalidNotebookSignature = errors.New("notebook signature invalid")
	ErrInvalidHeaderSignature   = errors.New("header signature invalid")
	ErrInvalidAccountsRoot      = errors.New("changed accounts root mismatch")
	ErrInvalidLeaves            = errors.New("leaves do not match notarizations")
	ErrInvalidBlockVotes        = errors.New("block vote aggregates mismatch")
	ErrInvalidTax               = errors.New("tax total mismatch")
	ErrInvalidAccountOrigins    = errors.New("account origins mismatch")
)

type Validator struct {
	serializer *types.Serializer
	notary     common.Address
}

func NewValidator(serializer *types.Serializer, notary common.Address) *Validator {
	return &Validator{serializer: serializer, notary: notary}
}

// ValidateSignedHeader checks the notary signature of a published header.
func (v *Validator) ValidateSignedHeader(header *types.SignedNotebookHeader) error {
	if !utils.HeaderSigIsValid(v.notary, &header.Header, header.Signature) {
		return errors.Wrapf(ErrInvalidHeaderSignature, "notebook %d", header.Header.NotebookNumber)
	}
	return nil
}

// ValidateNotebook checks a sealed notebook against the leaves it was built
// from.
func (v *Validator) ValidateNotebook(notebook *types.Notebook, leaves []types.BalanceTip) error {
	header := &notebook.Header
	if notebook.ContentHash() != notebook.Hash {
		return errors.Wrapf(ErrInvalidNotebookHash, "notebook %d", header.NotebookNumber)
	}
	if !utils.SigIsValid(v.notary, notebook.Hash.Bytes(), notebook.Signature) {
		return errors.Wrapf(ErrInvalidNotebookSignature, "notebook %d", header.NotebookNumber)
	}
	if err := v.validateLeaves(notebook, leaves); err != nil {
		return errors.Wrapf(err, "notebook %d", header.NotebookNumber)
	}
	if err := v.validateVotes(notebook); err != nil {
		return errors.Wrapf(err, "notebook %d", header.NotebookNumber)
	}
	if tax := TaxTotal(notebook.Notarizations); tax.Cmp(header.Tax) != 0 {
		return errors.Wrapf(ErrInvalidTax, "notebook %d: header %s, body %s", header.NotebookNumber, header.Tax, tax)
	}
	return nil
}

func (v *Validator) validateLeaves(notebook *types.Notebook, leaves []types.BalanceTip) error {
	header := &notebook.Header
	latest := LatestChanges(notebook.Notarizations)
	if len(latest) != len(leaves) {
		return errors.Wrapf(ErrInvalidLeaves, "%d changed accounts, %d leaves", len(latest), len(leaves))
	}
	if len(header.ChangedAccountOrigins) != len(leaves) {
		return errors.Wrapf(ErrInvalidAccountOrigins, "%d origins, %d leaves", len(header.ChangedAccountOrigins), len(leaves))
	}

	encoded := make([][]byte, len(leaves))
	for i := range leaves {
		leaf := &leaves[i]
		if i > 0 && !leaves[i-1].Key().Less(leaf.Key()) {
			return errors.Wrapf(ErrInvalidLeaves, "leaf %d out of order", i)
		}
		change, ok := latest[leaf.Key()]
		if !ok {
			return errors.Wrapf(ErrInvalidLeaves, "leaf %d has no balance change", i)
		}
		want := change.Tip(leaf.AccountOrigin)
		if want.ChangeNumber != leaf.ChangeNumber ||
			want.Balance.Cmp(leaf.Balance) != 0 ||
			!want.ChannelHoldNote.Equal(leaf.ChannelHoldNote) {
			return errors.Wrapf(ErrInvalidLeaves, "leaf %d differs from change %d", i, change.ChangeNumber)
		}
		if header.ChangedAccountOrigins[i] != leaf.AccountOrigin {
			return errors.Wrapf(ErrInvalidAccountOrigins, "leaf %d", i)
		}
		var err error
		if encoded[i], err = leaf.Encode(v.serializer); err != nil {
			return err
		}
	}
	if root := merkle.Root(encoded); root != header.ChangedAccountsRoot {
		return errors.Wrapf(ErrInvalidAccountsRoot, "header %s, computed %s", header.ChangedAccountsRoot.Hex(), root.Hex())
	}

	for _, origin := range notebook.NewAccountOrigins {
		key := types.NewAccountKey(origin.AccountID, origin.AccountType)
		if _, ok := latest[key]; !ok {
			return errors.Wrapf(ErrInvalidAccountOrigins, "new origin %s not changed", key)
		}
	}
	return nil
}

func (v *Validator) validateVotes(notebook *types.Notebook) error {
	header := &notebook.Header
	aggregate, err := AggregateVotes(v.serializer, notebook.Notarizations)
	if err != nil {
		return err
	}
	if aggregate.Root != header.BlockVotesRoot ||
		aggregate.Count != header.BlockVotesCount ||
		aggregate.Power.Cmp(header.BlockVotingPower) != 0 ||
		len(aggregate.Blocks) != len(header.BlocksWithVotes) {
		return ErrInvalidBlockVotes
	}
	for i := range aggregate.Blocks {
		if aggregate.Blocks[i] != header.BlocksWithVotes[i] {
			return ErrInvalidBlockVotes
		}
	}
	return nil
}

// LatestChanges keeps the highest numbered change of every account key.
func LatestChanges(notarizations []types.Notarization) map[types.AccountKey]*types.BalanceChange {
	latest := make(map[types.AccountKey]*types.BalanceChange)
	for i := range notarizations {
		for j := range notarizations[i].BalanceChanges {
			change := &notarizations[i].BalanceChanges[j]
			if current, ok := latest[change.Key()]; !ok || change.ChangeNumber > current.ChangeNumber {
				latest[change.Key()] = change
			}
		}
	}
	return latest
}

// TaxTotal sums the tax notes of every change.
func TaxTotal(notarizations []types.Notarization) *big.Int {
	total := new(big.Int)
	for i := range notarizations {
		for j := range notarizations[i].BalanceChanges {
			for _, note := range notarizations[i].BalanceChanges[j].Notes {
				if note.Type == types.NoteTax {
					total.Add(total, note.Value())
				}
			}
		}
	}
	return total
}

type VoteAggregate struct {
	Root   common.Hash
	Count  uint32
	Power  *big.Int
	Blocks []common.Hash
}

// AggregateVotes builds the votes tree in notarization order and collects
// the distinct voted blocks in ascending hash order.
func AggregateVotes(serializer *types.Serializer, notarizations []types.Notarization) (*VoteAggregate, error) {
	aggregate := &VoteAggregate{Power: new(big.Int)}
	var leaves [][]byte
	seen := make(map[common.Hash]bool)
	for i := range notarizations {
		for j := range notarizations[i].BlockVotes {
			vote := &notarizations[i].BlockVotes[j]
			leaf, err := vote.Encode(serializer)
			if err != nil {
				return nil, err
			}
			leaves = append(leaves, leaf)
			aggregate.Power.Add(aggregate.Power, vote.PowerOrZero())
			if !seen[vote.BlockHash] {
				seen[vote.BlockHash] = true
				aggregate.Blocks = append(aggregate.Blocks, vote.BlockHash)
			}
		}
	}
	sort.Slice(aggregate.Blocks, func(a, b int) bool {
		return bytes.Compare(aggregate.Blocks[a][:], aggregate.Blocks[b][:]) < 0
	})
	aggregate.Count = uint32(len(leaves))
	aggregate.Root = merkle.Root(leaves)
	return aggregate, nil
}
