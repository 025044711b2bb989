package storage

import (
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/pkg/errors"

	"github.com/argonprotocol/notary/types"
)

// NotarizationStore is the append-only log of notarizations per notebook.
// Entries are keyed by content hash so appenders never touch a shared key.
type NotarizationStore struct{}

func (s *NotarizationStore) Append(tx *Tx, notebookNumber types.NotebookNumber, notarization *types.Notarization) error {
	data, err := rlp.EncodeToBytes(notarization)
	if err != nil {
		return errors.Wrap(err, "encode notarization")
	}
	key := joinKey(uint32Key(notebookNumber), crypto.Keccak256(data))
	return tx.Set(nsNotarization, key, data)
}

// List returns the notarizations of a notebook ordered by content hash.
func (s *NotarizationStore) List(tx *Tx, notebookNumber types.NotebookNumber) ([]types.Notarization, error) {
	_, values, err := collect(tx, nsNotarization, uint32Key(notebookNumber))
	if err != nil {
		return nil, err
	}
	notarizations := make([]types.Notarization, 0, len(values))
	for _, value := range values {
		var notarization types.Notarization
		if err := decodeRLP(value, &notarization); err != nil {
			return nil, err
		}
		notarizations = append(notarizations, notarization)
	}
	return notarizations, nil
}
