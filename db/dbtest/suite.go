// Package dbtest holds the behaviour every db.DB backend must provide.
package dbtest

import (
	"testing"

	notarydb "github.com/argonprotocol/notary/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ns = []byte("t")

// Run exercises newDB with the read, iterate and conflict rules the storage
// layer relies on.
func Run(t *testing.T, newDB func(t *testing.T) notarydb.DB) {
	t.Run("SetGetDelete", func(t *testing.T) { testSetGetDelete(t, newDB(t)) })
	t.Run("Iterator", func(t *testing.T) { testIterator(t, newDB(t)) })
	t.Run("ReadWriteConflict", func(t *testing.T) { testReadWriteConflict(t, newDB(t)) })
	t.Run("BlindWritesDoNotConflict", func(t *testing.T) { testBlindWrites(t, newDB(t)) })
	t.Run("AbsentReadConflict", func(t *testing.T) { testAbsentReadConflict(t, newDB(t)) })
	t.Run("Discard", func(t *testing.T) { testDiscard(t, newDB(t)) })
}

func testSetGetDelete(t *testing.T, database notarydb.DB) {
	require.NoError(t, notarydb.Update(database, func(tx notarydb.Transaction) error {
		return tx.Set(ns, []byte("a"), []byte("1"))
	}))

	value, exists, err := database.Get(ns, []byte("a"))
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, []byte("1"), value)

	tx := database.NewTx()
	require.NoError(t, tx.Delete(ns, []byte("a")))
	_, exists, err = tx.Get(ns, []byte("a"))
	require.NoError(t, err)
	assert.False(t, exists, "pending delete visible inside the transaction")
	require.NoError(t, tx.Commit())

	exists, err = database.Exist(ns, []byte("a"))
	require.NoError(t, err)
	assert.False(t, exists)

	assert.Equal(t, notarydb.ErrTxDone, tx.Commit())
}

func testIterator(t *testing.T, database notarydb.DB) {
	require.NoError(t, notarydb.Update(database, func(tx notarydb.Transaction) error {
		for _, k := range []string{"p2", "p1", "q1", "p3"} {
			if err := tx.Set(ns, []byte(k), []byte(k)); err != nil {
				return err
			}
		}
		return tx.Set([]byte("other"), []byte("p9"), nil)
	}))

	tx := database.NewTx()
	defer tx.Discard()
	require.NoError(t, tx.Set(ns, []byte("p0"), []byte("p0")))
	require.NoError(t, tx.Delete(ns, []byte("p2")))

	iter := tx.Iterator(ns, []byte("p"))
	var keys []string
	for ; iter.Valid(); iter.Next() {
		key, err := iter.Key()
		require.NoError(t, err)
		value, err := iter.Value()
		require.NoError(t, err)
		assert.Equal(t, key, value)
		keys = append(keys, string(key))
	}
	iter.Close()
	assert.Equal(t, []string{"p0", "p1", "p3"}, keys)
}

func testReadWriteConflict(t *testing.T, database notarydb.DB) {
	require.NoError(t, notarydb.Update(database, func(tx notarydb.Transaction) error {
		return tx.Set(ns, []byte("tip"), []byte("0"))
	}))

	first := database.NewTx()
	second := database.NewTx()
	defer first.Discard()
	defer second.Discard()

	_, _, err := first.Get(ns, []byte("tip"))
	require.NoError(t, err)
	_, _, err = second.Get(ns, []byte("tip"))
	require.NoError(t, err)

	require.NoError(t, first.Set(ns, []byte("tip"), []byte("1")))
	require.NoError(t, second.Set(ns, []byte("tip"), []byte("1")))

	require.NoError(t, first.Commit())
	assert.Equal(t, notarydb.ErrConflict, second.Commit())

	value, _, err := database.Get(ns, []byte("tip"))
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), value)
}

func testBlindWrites(t *testing.T, database notarydb.DB) {
	first := database.NewTx()
	second := database.NewTx()

	require.NoError(t, first.Set(ns, []byte("marker"), []byte{1}))
	require.NoError(t, second.Set(ns, []byte("marker"), []byte{1}))
	require.NoError(t, first.Commit())
	require.NoError(t, second.Commit())

	// a reader of the marker does conflict with a writer that commits first
	reader := database.NewTx()
	_, _, err := reader.Get(ns, []byte("marker"))
	require.NoError(t, err)
	require.NoError(t, notarydb.Update(database, func(tx notarydb.Transaction) error {
		return tx.Set(ns, []byte("marker"), []byte{1})
	}))
	require.NoError(t, reader.Set(ns, []byte("status"), []byte("closed")))
	assert.Equal(t, notarydb.ErrConflict, reader.Commit())
}

func testAbsentReadConflict(t *testing.T, database notarydb.DB) {
	first := database.NewTx()
	_, exists, err := first.Get(ns, []byte("transfer"))
	require.NoError(t, err)
	require.False(t, exists)
	require.NoError(t, first.Set(ns, []byte("transfer"), []byte("a")))

	require.NoError(t, notarydb.Update(database, func(tx notarydb.Transaction) error {
		return tx.Set(ns, []byte("transfer"), []byte("b"))
	}))
	assert.Equal(t, notarydb.ErrConflict, first.Commit())
}

func testDiscard(t *testing.T, database notarydb.DB) {
	tx := database.NewTx()
	require.NoError(t, tx.Set(ns, []byte("gone"), []byte("x")))
	tx.Discard()

	exists, err := database.Exist(ns, []byte("gone"))
	require.NoError(t, err)
	assert.False(t, exists)
}
