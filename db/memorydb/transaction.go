package memorydb

import (
	"sync"

	notarydb "github.com/argonprotocol/notary/db"
)

type Transaction struct {
	txLock sync.Mutex
	db     *DB
	reads  map[string]uint64
	writes map[string]*txOp
	done   bool
}

type txOp struct {
	isSet bool
	value []byte
}

func (transaction *Transaction) Get(namespace []byte, key []byte) ([]byte, bool, error) {
	transaction.txLock.Lock()
	defer transaction.txLock.Unlock()

	if transaction.done {
		return nil, false, notarydb.ErrTxDone
	}
	k := string(notarydb.PrependNamespace(namespace, key))
	if op, ok := transaction.writes[k]; ok {
		if !op.isSet {
			return nil, false, nil
		}
		return append([]byte{}, op.value...), true, nil
	}

	db := transaction.db
	db.lock.Lock()
	value, version, exists := db.lookup(k)
	db.lock.Unlock()

	transaction.trackRead(k, version)
	return value, exists, nil
}

// trackRead keeps the first version observed for a key.
func (transaction *Transaction) trackRead(key string, version uint64) {
	if _, seen := transaction.reads[key]; !seen {
		transaction.reads[key] = version
	}
}

func (transaction *Transaction) Set(namespace []byte, key []byte, value []byte) error {
	transaction.txLock.Lock()
	defer transaction.txLock.Unlock()

	if transaction.done {
		return notarydb.ErrTxDone
	}
	k := string(notarydb.PrependNamespace(namespace, key))
	transaction.writes[k] = &txOp{true, append([]byte{}, notarydb.ConvNilToBytes(value)...)}
	return nil
}

func (transaction *Transaction) Delete(namespace []byte, key []byte) error {
	transaction.txLock.Lock()
	defer transaction.txLock.Unlock()

	if transaction.done {
		return notarydb.ErrTxDone
	}
	k := string(notarydb.PrependNamespace(namespace, key))
	transaction.writes[k] = &txOp{false, nil}
	return nil
}

func (transaction *Transaction) Commit() error {
	transaction.txLock.Lock()
	defer transaction.txLock.Unlock()

	if transaction.done {
		return notarydb.ErrTxDone
	}
	transaction.done = true

	db := transaction.db
	db.lock.Lock()
	defer db.lock.Unlock()

	for key, seen := range transaction.reads {
		var current uint64
		if e, ok := db.db[key]; ok {
			current = e.version
		}
		if current != seen {
			return notarydb.ErrConflict
		}
	}

	if len(transaction.writes) == 0 {
		return nil
	}
	db.version++
	for key, op := range transaction.writes {
		if op.isSet {
			db.db[key] = &entry{value: op.value, version: db.version}
		} else if _, ok := db.db[key]; ok {
			db.db[key] = &entry{version: db.version, deleted: true}
		}
	}
	return nil
}

func (transaction *Transaction) Discard() {
	transaction.txLock.Lock()
	defer transaction.txLock.Unlock()

	transaction.done = true
}
