package storage

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/rlp"
	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"

	"github.com/argonprotocol/notary/db"
	"github.com/argonprotocol/notary/log"
)

var logger = log.NewLogger("storage")

const headerCacheSize = 256

// Storage groups the ledger stores over one transactional database.
type Storage struct {
	db db.DB

	BalanceTips    *BalanceTipStore
	ChainTransfers *ChainTransferStore
	AccountOrigins *AccountOriginStore
	NotebookStatus *NotebookStatusStore
	Notarizations  *NotarizationStore
	Headers        *NotebookHeaderStore
	ChainState     *ChainStateStore

	headerCache *lru.Cache
}

func NewStorage(database db.DB) *Storage {
	cache, err := lru.New(headerCacheSize)
	if err != nil {
		// only fails for a non-positive size
		panic(err)
	}
	return &Storage{
		db:             database,
		BalanceTips:    &BalanceTipStore{},
		ChainTransfers: &ChainTransferStore{},
		AccountOrigins: &AccountOriginStore{},
		NotebookStatus: &NotebookStatusStore{},
		Notarizations:  &NotarizationStore{},
		Headers:        &NotebookHeaderStore{},
		ChainState:     &ChainStateStore{},
		headerCache:    cache,
	}
}

func (s *Storage) DB() db.DB {
	return s.db
}

// Tx is a ledger transaction bounded by a lock budget.
type Tx struct {
	db.Transaction
	ctx      context.Context
	deadline time.Time
}

// CheckLockBudget fails with ErrLockTimeout once the transaction deadline
// has passed.
func (tx *Tx) CheckLockBudget() error {
	if err := tx.ctx.Err(); err != nil {
		if err == context.DeadlineExceeded {
			return ErrLockTimeout
		}
		return err
	}
	if !tx.deadline.IsZero() && !time.Now().Before(tx.deadline) {
		return ErrLockTimeout
	}
	return nil
}

// ReleaseLockBudget lifts the deadline for the rest of the transaction. It is
// called once the contended rows are claimed and only local work remains.
func (tx *Tx) ReleaseLockBudget() {
	tx.deadline = time.Time{}
}

func (s *Storage) newTx(ctx context.Context, timeout time.Duration) *Tx {
	tx := &Tx{Transaction: s.db.NewTx(), ctx: ctx}
	if timeout > 0 {
		tx.deadline = time.Now().Add(timeout)
	}
	return tx
}

// Update runs fn in one transaction and commits it. Nothing is written when fn
// fails. A commit lost to a concurrent writer is reported as ErrBusy.
func (s *Storage) Update(ctx context.Context, timeout time.Duration, fn func(tx *Tx) error) error {
	tx := s.newTx(ctx, timeout)
	defer tx.Discard()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.CheckLockBudget(); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		if errors.Is(err, db.ErrConflict) {
			return errors.Wrap(ErrBusy, "commit conflict")
		}
		return errors.Wrap(err, "commit")
	}
	return nil
}

// View runs fn against a snapshot and discards it.
func (s *Storage) View(fn func(tx *Tx) error) error {
	tx := s.newTx(context.Background(), 0)
	defer tx.Discard()
	return fn(tx)
}

func getRLP(tx db.Transaction, namespace, key []byte, out interface{}) (bool, error) {
	data, ok, err := tx.Get(namespace, key)
	if err != nil || !ok {
		return false, err
	}
	if err := decodeRLP(data, out); err != nil {
		return false, errors.Wrapf(err, "%s record", namespace)
	}
	return true, nil
}

func decodeRLP(data []byte, out interface{}) error {
	return errors.Wrap(rlp.DecodeBytes(data, out), "decode")
}

func setRLP(tx db.Transaction, namespace, key []byte, value interface{}) error {
	data, err := rlp.EncodeToBytes(value)
	if err != nil {
		return errors.Wrapf(err, "encode %s record", namespace)
	}
	return tx.Set(namespace, key, data)
}

// collect walks namespace|prefix and returns copies of every key and value.
// The iterator is closed before returning so the caller may write.
func collect(tx db.Transaction, namespace, prefix []byte) ([][]byte, [][]byte, error) {
	iter := tx.Iterator(namespace, prefix)
	defer iter.Close()

	var keys, values [][]byte
	for ; iter.Valid(); iter.Next() {
		key, err := iter.Key()
		if err != nil {
			return nil, nil, err
		}
		value, err := iter.Value()
		if err != nil {
			return nil, nil, err
		}
		keys = append(keys, append([]byte{}, key...))
		values = append(values, append([]byte{}, value...))
	}
	return keys, values, nil
}
