package db

import "github.com/pkg/errors"

// ErrConflict is returned by Transaction.Commit when a key read by the
// transaction was written by another transaction that committed first.
var ErrConflict = errors.New("transaction conflict")

// ErrTxDone is returned when a finished transaction is used again.
var ErrTxDone = errors.New("transaction already committed or discarded")

// DB is an general interface to access at storage data
type DB interface {
	Type() string
	Get(namespace []byte, key []byte) ([]byte, bool, error)
	Exist(namespace []byte, key []byte) (bool, error)
	// NewTx starts a read-write transaction with snapshot isolation. Every
	// key read through it is tracked; Commit fails with ErrConflict if any of
	// those keys was committed by another transaction in the meantime.
	NewTx() Transaction
	Close() error
}

// Transaction is an optimistic read-write transaction.
type Transaction interface {
	Get(namespace []byte, key []byte) ([]byte, bool, error)
	Set(namespace []byte, key []byte, value []byte) error
	Delete(namespace []byte, key []byte) error
	// Iterator walks keys under namespace|prefix in ascending order. Keys are
	// returned without the namespace. Only one iterator may be open at a time
	// and it must be closed before the transaction writes again.
	Iterator(namespace []byte, prefix []byte) Iterator
	Commit() error
	Discard()
}

// Iterator is used to navigate specific key ranges
type Iterator interface {
	Next() error
	Valid() bool
	Key() ([]byte, error)
	Value() ([]byte, error)
	Close()
}
