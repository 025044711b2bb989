package memorydb

import (
	"sort"
	"strings"

	"github.com/pkg/errors"

	notarydb "github.com/argonprotocol/notary/db"
)

var errInvalidIterator = errors.New("Iterator is Invalid")

type kv struct {
	key   string
	value []byte
}

type Iterator struct {
	namespace []byte
	items     []kv
	cursor    int
	closed    bool
}

// Iterator merges committed keys with the transaction's pending writes. Every
// committed key it yields is tracked as a read.
func (transaction *Transaction) Iterator(namespace []byte, prefix []byte) notarydb.Iterator {
	transaction.txLock.Lock()
	defer transaction.txLock.Unlock()

	fullPrefix := string(notarydb.PrependNamespace(namespace, prefix))
	merged := make(map[string][]byte)

	db := transaction.db
	db.lock.Lock()
	for key := range db.db {
		if !strings.HasPrefix(key, fullPrefix) {
			continue
		}
		value, version, exists := db.lookup(key)
		transaction.trackRead(key, version)
		if exists {
			merged[key] = value
		}
	}
	db.lock.Unlock()

	for key, op := range transaction.writes {
		if !strings.HasPrefix(key, fullPrefix) {
			continue
		}
		if op.isSet {
			merged[key] = append([]byte{}, op.value...)
		} else {
			delete(merged, key)
		}
	}

	items := make([]kv, 0, len(merged))
	for key, value := range merged {
		items = append(items, kv{key, value})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].key < items[j].key })

	return &Iterator{
		namespace: namespace,
		items:     items,
	}
}

func (iter *Iterator) Next() error {
	if !iter.Valid() {
		return errInvalidIterator
	}
	iter.cursor++
	return nil
}

func (iter *Iterator) Valid() bool {
	return !iter.closed && iter.cursor < len(iter.items)
}

func (iter *Iterator) Key() ([]byte, error) {
	if !iter.Valid() {
		return nil, errInvalidIterator
	}
	return notarydb.TrimNamespace(iter.namespace, []byte(iter.items[iter.cursor].key)), nil
}

func (iter *Iterator) Value() ([]byte, error) {
	if !iter.Valid() {
		return nil, errInvalidIterator
	}
	return iter.items[iter.cursor].value, nil
}

func (iter *Iterator) Close() {
	iter.closed = true
}
