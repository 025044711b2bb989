package memorydb

import (
	"sync"

	notarydb "github.com/argonprotocol/notary/db"
)

// entry is a committed value. Deleted keys keep a tombstone so that readers
// which saw the old value still detect the change on commit.
type entry struct {
	value   []byte
	version uint64
	deleted bool
}

func NewDB() *DB {
	return &DB{
		db: make(map[string]*entry),
	}
}

// Enforce database and transaction implements interfaces
var _ notarydb.DB = (*DB)(nil)
var _ notarydb.Transaction = (*Transaction)(nil)

type DB struct {
	lock    sync.Mutex
	db      map[string]*entry
	version uint64
}

func (db *DB) Type() string {
	return "memorydb"
}

func (db *DB) Get(namespace []byte, key []byte) ([]byte, bool, error) {
	db.lock.Lock()
	defer db.lock.Unlock()

	value, _, exists := db.lookup(string(notarydb.PrependNamespace(namespace, key)))
	return value, exists, nil
}

func (db *DB) Exist(namespace []byte, key []byte) (bool, error) {
	_, exists, err := db.Get(namespace, key)
	return exists, err
}

// lookup must be called with the lock held.
func (db *DB) lookup(key string) ([]byte, uint64, bool) {
	e, ok := db.db[key]
	if !ok {
		return nil, 0, false
	}
	if e.deleted {
		return nil, e.version, false
	}
	value := make([]byte, len(e.value))
	copy(value, e.value)
	return value, e.version, true
}

func (db *DB) Close() error {
	return nil
}

func (db *DB) NewTx() notarydb.Transaction {
	return &Transaction{
		db:     db,
		reads:  make(map[string]uint64),
		writes: make(map[string]*txOp),
	}
}
