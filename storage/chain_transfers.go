package storage

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"github.com/argonprotocol/notary/types"
)

// transferToLocalRecord is an inbound transfer confirmed on the base chain.
// IncludedInNotebook is zero until a notarization claims it.
type transferToLocalRecord struct {
	AccountID          common.Address
	AccountNonce       uint32
	Amount             *big.Int
	FinalizedBlock     types.BlockNumber
	ExpirationTick     types.Tick
	IncludedInNotebook types.NotebookNumber
}

type transferToMainchainRecord struct {
	AccountID common.Address
	Amount    *big.Int
}

// PendingTransferToLocal describes an unclaimed inbound transfer.
type PendingTransferToLocal struct {
	AccountID      common.Address
	AccountNonce   uint32
	Amount         *big.Int
	FinalizedBlock types.BlockNumber
	ExpirationTick types.Tick
}

type ChainTransferStore struct{}

// RecordTransferToLocalFromBlock inserts a pending inbound transfer.
func (s *ChainTransferStore) RecordTransferToLocalFromBlock(
	tx *Tx,
	finalizedBlock types.BlockNumber,
	account common.Address,
	accountNonce uint32,
	amount *big.Int,
	expirationTick types.Tick,
) error {
	key := accountNonceKey(account, accountNonce)
	_, exists, err := tx.Get(nsTransferToLocal, key)
	if err != nil {
		return err
	}
	if exists {
		return errors.Wrapf(ErrDuplicateChainTransfer, "account %s nonce %d", account.Hex(), accountNonce)
	}
	return setRLP(tx, nsTransferToLocal, key, &transferToLocalRecord{
		AccountID:      account,
		AccountNonce:   accountNonce,
		Amount:         bigOrZero(amount),
		FinalizedBlock: finalizedBlock,
		ExpirationTick: expirationTick,
	})
}

// TakeAndRecordTransferLocal claims a pending inbound transfer for the open
// notebook. A transfer can be claimed once; a concurrent claimant loses at
// commit.
func (s *ChainTransferStore) TakeAndRecordTransferLocal(
	tx *Tx,
	notebookNumber types.NotebookNumber,
	tick types.Tick,
	account common.Address,
	accountNonce uint32,
	amount *big.Int,
	changeIndex int,
	noteIndex int,
) error {
	key := accountNonceKey(account, accountNonce)
	record := new(transferToLocalRecord)
	ok, err := getRLP(tx, nsTransferToLocal, key, record)
	if err != nil {
		return err
	}
	if !ok || record.IncludedInNotebook != 0 {
		return errors.Wrapf(ErrTransferToLocalchainNotFound,
			"change %d note %d: account %s nonce %d", changeIndex, noteIndex, account.Hex(), accountNonce)
	}
	if record.Amount.Cmp(bigOrZero(amount)) != 0 {
		return errors.Wrapf(ErrTransferToLocalchainInvalidAmount,
			"change %d note %d: recorded %s, claimed %s", changeIndex, noteIndex, record.Amount, bigOrZero(amount))
	}
	if record.ExpirationTick != 0 && tick > record.ExpirationTick {
		return errors.Wrapf(ErrTransferToLocalchainExpired,
			"change %d note %d: expired at tick %d", changeIndex, noteIndex, record.ExpirationTick)
	}

	record.IncludedInNotebook = notebookNumber
	if err := setRLP(tx, nsTransferToLocal, key, record); err != nil {
		return err
	}
	return tx.Set(nsClaimedTransferToLocal, joinKey(uint32Key(notebookNumber), key), nil)
}

// RecordTransferToMainchain queues an outbound transfer on the notebook,
// refusing once maxPerNotebook transfers are queued.
func (s *ChainTransferStore) RecordTransferToMainchain(
	tx *Tx,
	notebookNumber types.NotebookNumber,
	account common.Address,
	amount *big.Int,
	maxPerNotebook uint32,
) error {
	counterKey := uint32Key(notebookNumber)
	var count uint32
	data, ok, err := tx.Get(nsTransferToMainchainCount, counterKey)
	if err != nil {
		return err
	}
	if ok {
		count = parseUint32Key(data)
	}
	if maxPerNotebook > 0 && count >= maxPerNotebook {
		return errors.Wrapf(ErrMaxNotebookChainTransfersReached, "notebook %d holds %d", notebookNumber, count)
	}
	key := joinKey(uint32Key(notebookNumber), uint32Key(count))
	if err := setRLP(tx, nsTransferToMainchain, key, &transferToMainchainRecord{
		AccountID: account,
		Amount:    bigOrZero(amount),
	}); err != nil {
		return err
	}
	return tx.Set(nsTransferToMainchainCount, counterKey, uint32Key(count+1))
}

// TakeForNotebook drains every transfer attached to the notebook: claimed
// inbound transfers in (account, nonce) order, then outbound transfers in
// queue order.
func (s *ChainTransferStore) TakeForNotebook(tx *Tx, notebookNumber types.NotebookNumber) ([]types.ChainTransfer, error) {
	prefix := uint32Key(notebookNumber)
	var transfers []types.ChainTransfer

	claimedKeys, _, err := collect(tx, nsClaimedTransferToLocal, prefix)
	if err != nil {
		return nil, err
	}
	for _, key := range claimedKeys {
		accountNonce := key[len(prefix):]
		if len(accountNonce) != common.AddressLength+4 {
			return nil, errors.Errorf("malformed claimed transfer key %x", key)
		}
		transfers = append(transfers, types.NewToLocalchainTransfer(
			common.BytesToAddress(accountNonce[:common.AddressLength]),
			parseUint32Key(accountNonce[common.AddressLength:]),
		))
		if err := tx.Delete(nsClaimedTransferToLocal, key); err != nil {
			return nil, err
		}
	}

	outKeys, outValues, err := collect(tx, nsTransferToMainchain, prefix)
	if err != nil {
		return nil, err
	}
	for i, key := range outKeys {
		record := new(transferToMainchainRecord)
		if err := decodeRLP(outValues[i], record); err != nil {
			return nil, err
		}
		transfers = append(transfers, types.NewToMainchainTransfer(record.AccountID, record.Amount))
		if err := tx.Delete(nsTransferToMainchain, key); err != nil {
			return nil, err
		}
	}
	if len(outKeys) > 0 {
		if err := tx.Delete(nsTransferToMainchainCount, prefix); err != nil {
			return nil, err
		}
	}
	return transfers, nil
}

// ExpirePending removes unclaimed inbound transfers whose expiration tick is
// before tick and returns them. Claimed transfers are kept so their nonce
// cannot be replayed.
func (s *ChainTransferStore) ExpirePending(tx *Tx, tick types.Tick) ([]PendingTransferToLocal, error) {
	keys, values, err := collect(tx, nsTransferToLocal, nil)
	if err != nil {
		return nil, err
	}
	var expired []PendingTransferToLocal
	for i, key := range keys {
		record := new(transferToLocalRecord)
		if err := decodeRLP(values[i], record); err != nil {
			return nil, err
		}
		if record.IncludedInNotebook != 0 || record.ExpirationTick == 0 || record.ExpirationTick >= tick {
			continue
		}
		if err := tx.Delete(nsTransferToLocal, key); err != nil {
			return nil, err
		}
		expired = append(expired, PendingTransferToLocal{
			AccountID:      record.AccountID,
			AccountNonce:   record.AccountNonce,
			Amount:         record.Amount,
			FinalizedBlock: record.FinalizedBlock,
			ExpirationTick: record.ExpirationTick,
		})
	}
	return expired, nil
}

// GetPendingTransferToLocal returns an unclaimed inbound transfer or nil.
func (s *ChainTransferStore) GetPendingTransferToLocal(tx *Tx, account common.Address, accountNonce uint32) (*PendingTransferToLocal, error) {
	record := new(transferToLocalRecord)
	ok, err := getRLP(tx, nsTransferToLocal, accountNonceKey(account, accountNonce), record)
	if err != nil || !ok || record.IncludedInNotebook != 0 {
		return nil, err
	}
	return &PendingTransferToLocal{
		AccountID:      record.AccountID,
		AccountNonce:   record.AccountNonce,
		Amount:         record.Amount,
		FinalizedBlock: record.FinalizedBlock,
		ExpirationTick: record.ExpirationTick,
	}, nil
}
