package badgerdb

import (
	"time"

	notarydb "github.com/argonprotocol/notary/db"
	"github.com/argonprotocol/notary/log"
	"github.com/dgraph-io/badger/v2"
)

type Transaction struct {
	db        *DB
	tx        *badger.Txn
	createT   time.Time
	setCount  uint
	delCount  uint
	keySize   uint64
	valueSize uint64
	done      bool
}

func (transaction *Transaction) Get(namespace []byte, key []byte) ([]byte, bool, error) {
	if transaction.done {
		return nil, false, notarydb.ErrTxDone
	}
	key = notarydb.ConvNilToBytes(notarydb.PrependNamespace(namespace, key))

	item, err := transaction.tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, false, nil
		}
		return nil, false, err
	}
	value, err := item.ValueCopy(nil)
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (transaction *Transaction) Set(namespace []byte, key []byte, value []byte) error {
	if transaction.done {
		return notarydb.ErrTxDone
	}
	key = notarydb.ConvNilToBytes(notarydb.PrependNamespace(namespace, key))
	value = notarydb.ConvNilToBytes(value)

	// TODO: split very large notebooks across transactions once ErrTxnTooBig shows up in practice
	err := transaction.tx.Set(key, value)
	if err != nil {
		return err
	}

	transaction.setCount++
	transaction.keySize += uint64(len(key))
	transaction.valueSize += uint64(len(value))
	return nil
}

func (transaction *Transaction) Delete(namespace []byte, key []byte) error {
	if transaction.done {
		return notarydb.ErrTxDone
	}
	key = notarydb.ConvNilToBytes(notarydb.PrependNamespace(namespace, key))

	err := transaction.tx.Delete(key)
	if err != nil {
		return err
	}

	transaction.delCount++
	return nil
}

func (transaction *Transaction) Iterator(namespace []byte, prefix []byte) notarydb.Iterator {
	return newIterator(transaction.tx, namespace, prefix)
}

func (transaction *Transaction) Commit() error {
	if transaction.done {
		return notarydb.ErrTxDone
	}
	transaction.done = true

	writeStartT := time.Now()
	err := transaction.tx.Commit()
	writeEndT := time.Now()

	if writeEndT.Sub(writeStartT) > time.Millisecond*100 {
		// write warn log when write tx take too long time (100ms)
		logger.Warn().Str("name", transaction.db.name).Str("callstack1", log.SkipCaller(2)).Str("callstack2", log.SkipCaller(3)).
			Dur("prepareTime", writeStartT.Sub(transaction.createT)).
			Dur("takenTime", writeEndT.Sub(writeStartT)).
			Uint("delCount", transaction.delCount).Uint("setCount", transaction.setCount).
			Uint64("setKeySize", transaction.keySize).Uint64("setValueSize", transaction.valueSize).
			Msg("commit takes long time")
	}

	if err == badger.ErrConflict {
		return notarydb.ErrConflict
	}
	return err
}

func (transaction *Transaction) Discard() {
	transaction.done = true
	transaction.tx.Discard()
}
