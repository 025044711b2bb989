package storage

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"github.com/argonprotocol/notary/types"
)

// AccountOriginStore assigns each account key its origin the first time the
// key appears. Uids are a 1-based sequence per notebook.
type AccountOriginStore struct{}

func (s *AccountOriginStore) Get(tx *Tx, account common.Address, accountType types.AccountType) (*types.AccountOrigin, error) {
	origin := new(types.AccountOrigin)
	ok, err := getRLP(tx, nsAccountOrigin, types.NewAccountKey(account, accountType).Bytes(), origin)
	if err != nil || !ok {
		return nil, err
	}
	return origin, nil
}

// Insert mints the next origin of the notebook for the account key. First
// appearances in the same notebook share the sequence counter, so concurrent
// inserts race and the loser gets ErrBusy at commit.
func (s *AccountOriginStore) Insert(
	tx *Tx,
	notebookNumber types.NotebookNumber,
	account common.Address,
	accountType types.AccountType,
) (*types.AccountOrigin, error) {
	key := types.NewAccountKey(account, accountType).Bytes()
	_, exists, err := tx.Get(nsAccountOrigin, key)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, errors.Wrapf(ErrDuplicateAccountOrigin, "%s", types.NewAccountKey(account, accountType))
	}

	counterKey := uint32Key(notebookNumber)
	data, ok, err := tx.Get(nsNewAccountOriginCounter, counterKey)
	if err != nil {
		return nil, err
	}
	var uid types.AccountUID
	if ok {
		uid = parseUint32Key(data)
	}
	uid++

	origin := &types.AccountOrigin{NotebookNumber: notebookNumber, AccountUID: uid}
	if err := setRLP(tx, nsAccountOrigin, key, origin); err != nil {
		return nil, err
	}
	if err := setRLP(tx, nsNewAccountOrigin, joinKey(counterKey, uint32Key(uid)), &types.NewAccountOrigin{
		AccountID:   account,
		AccountType: accountType,
		AccountUID:  uid,
	}); err != nil {
		return nil, err
	}
	if err := tx.Set(nsNewAccountOriginCounter, counterKey, uint32Key(uid)); err != nil {
		return nil, err
	}
	return origin, nil
}

// ListForNotebook returns the origins minted in a notebook ordered by uid.
func (s *AccountOriginStore) ListForNotebook(tx *Tx, notebookNumber types.NotebookNumber) ([]types.NewAccountOrigin, error) {
	_, values, err := collect(tx, nsNewAccountOrigin, uint32Key(notebookNumber))
	if err != nil {
		return nil, err
	}
	origins := make([]types.NewAccountOrigin, 0, len(values))
	for _, value := range values {
		var origin types.NewAccountOrigin
		if err := decodeRLP(value, &origin); err != nil {
			return nil, err
		}
		origins = append(origins, origin)
	}
	return origins, nil
}
