package storage

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"github.com/argonprotocol/notary/types"
)

type notebookLeavesRecord struct {
	Leaves []types.BalanceTip
}

// NotebookHeaderStore persists sealed notebooks: the signed header, the full
// body, the ordered Merkle leaves and the notebook secret.
type NotebookHeaderStore struct{}

// Save writes a sealed notebook and advances the notebook metadata.
func (s *NotebookHeaderStore) Save(
	tx *Tx,
	notebook *types.Notebook,
	headerSignature []byte,
	leaves []types.BalanceTip,
	secret common.Hash,
) error {
	number := notebook.Header.NotebookNumber
	key := uint32Key(number)
	_, exists, err := tx.Get(nsNotebookHeader, key)
	if err != nil {
		return err
	}
	if exists {
		return errors.Errorf("notebook %d already sealed", number)
	}
	if err := setRLP(tx, nsNotebookHeader, key, &types.SignedNotebookHeader{
		Header:    notebook.Header,
		Signature: headerSignature,
	}); err != nil {
		return err
	}
	if err := setRLP(tx, nsNotebook, key, notebook); err != nil {
		return err
	}
	if err := setRLP(tx, nsNotebookLeaves, key, &notebookLeavesRecord{Leaves: leaves}); err != nil {
		return err
	}
	if err := tx.Set(nsNotebookSecret, key, secret.Bytes()); err != nil {
		return err
	}

	meta, err := s.Metadata(tx)
	if err != nil {
		return err
	}
	if number > meta.FinalizedNotebookNumber {
		meta.FinalizedNotebookNumber = number
		meta.FinalizedTick = notebook.Header.Tick
		return setRLP(tx, nsMeta, keyNotebookMeta, meta)
	}
	return nil
}

func (s *NotebookHeaderStore) GetSignedHeader(tx *Tx, notebookNumber types.NotebookNumber) (*types.SignedNotebookHeader, error) {
	header := new(types.SignedNotebookHeader)
	ok, err := getRLP(tx, nsNotebookHeader, uint32Key(notebookNumber), header)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.Wrapf(ErrNotebookNotFound, "header %d", notebookNumber)
	}
	return header, nil
}

func (s *NotebookHeaderStore) GetHeader(tx *Tx, notebookNumber types.NotebookNumber) (*types.NotebookHeader, error) {
	signed, err := s.GetSignedHeader(tx, notebookNumber)
	if err != nil {
		return nil, err
	}
	return &signed.Header, nil
}

func (s *NotebookHeaderStore) GetNotebook(tx *Tx, notebookNumber types.NotebookNumber) (*types.Notebook, error) {
	notebook := new(types.Notebook)
	ok, err := getRLP(tx, nsNotebook, uint32Key(notebookNumber), notebook)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.Wrapf(ErrNotebookNotFound, "notebook %d", notebookNumber)
	}
	return notebook, nil
}

// GetLeaves returns the balance tips committed by a notebook in leaf order.
func (s *NotebookHeaderStore) GetLeaves(tx *Tx, notebookNumber types.NotebookNumber) ([]types.BalanceTip, error) {
	record := new(notebookLeavesRecord)
	ok, err := getRLP(tx, nsNotebookLeaves, uint32Key(notebookNumber), record)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.Wrapf(ErrNotebookNotFound, "leaves %d", notebookNumber)
	}
	return record.Leaves, nil
}

// GetSecret returns the secret whose hash the notebook header commits to.
func (s *NotebookHeaderStore) GetSecret(tx *Tx, notebookNumber types.NotebookNumber) (common.Hash, bool, error) {
	data, ok, err := tx.Get(nsNotebookSecret, uint32Key(notebookNumber))
	if err != nil || !ok {
		return common.Hash{}, false, err
	}
	return common.BytesToHash(data), true, nil
}

func (s *NotebookHeaderStore) Metadata(tx *Tx) (*types.NotebookMeta, error) {
	meta := new(types.NotebookMeta)
	if _, err := getRLP(tx, nsMeta, keyNotebookMeta, meta); err != nil {
		return nil, err
	}
	return meta, nil
}

// GetSignedHeader reads a sealed header outside any transaction. Sealed
// headers never change, so they are served from an LRU cache.
func (s *Storage) GetSignedHeader(notebookNumber types.NotebookNumber) (*types.SignedNotebookHeader, error) {
	if cached, ok := s.headerCache.Get(notebookNumber); ok {
		return cached.(*types.SignedNotebookHeader), nil
	}
	var header *types.SignedNotebookHeader
	err := s.View(func(tx *Tx) error {
		var err error
		header, err = s.Headers.GetSignedHeader(tx, notebookNumber)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.headerCache.Add(notebookNumber, header)
	return header, nil
}

// Metadata returns the number and tick of the latest sealed notebook.
func (s *Storage) Metadata() (*types.NotebookMeta, error) {
	var meta *types.NotebookMeta
	err := s.View(func(tx *Tx) error {
		var err error
		meta, err = s.Headers.Metadata(tx)
		return err
	})
	return meta, err
}
