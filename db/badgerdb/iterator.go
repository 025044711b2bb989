package badgerdb

import (
	"github.com/dgraph-io/badger/v2"
	"github.com/pkg/errors"

	notarydb "github.com/argonprotocol/notary/db"
)

var errInvalidIterator = errors.New("Iterator is Invalid")

type Iterator struct {
	namespace []byte
	prefix    []byte
	iter      *badger.Iterator
}

func newIterator(txn *badger.Txn, namespace []byte, prefix []byte) *Iterator {
	fullPrefix := notarydb.PrependNamespace(namespace, prefix)

	opt := badger.DefaultIteratorOptions
	opt.Prefix = fullPrefix

	badgerIter := txn.NewIterator(opt)
	badgerIter.Seek(fullPrefix)

	return &Iterator{
		namespace: namespace,
		prefix:    fullPrefix,
		iter:      badgerIter,
	}
}

func (iter *Iterator) Next() error {
	if !iter.Valid() {
		return errInvalidIterator
	}
	iter.iter.Next()
	return nil
}

func (iter *Iterator) Valid() bool {
	return iter.iter.ValidForPrefix(iter.prefix)
}

func (iter *Iterator) Key() ([]byte, error) {
	if !iter.Valid() {
		return nil, errInvalidIterator
	}
	return notarydb.TrimNamespace(iter.namespace, iter.iter.Item().KeyCopy(nil)), nil
}

func (iter *Iterator) Value() ([]byte, error) {
	if !iter.Valid() {
		return nil, errInvalidIterator
	}
	return iter.iter.Item().ValueCopy(nil)
}

func (iter *Iterator) Close() {
	iter.iter.Close()
}
