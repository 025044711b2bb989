package badgerdb

import (
	"io/ioutil"
	"os"
	"testing"

	notarydb "github.com/argonprotocol/notary/db"
	"github.com/argonprotocol/notary/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryBadger(t *testing.T) {
	dbtest.Run(t, func(t *testing.T) notarydb.DB {
		database, err := NewInMemoryDB()
		require.NoError(t, err)
		t.Cleanup(func() { database.Close() })
		return database
	})
}

func TestBadgerReopen(t *testing.T) {
	dir, err := ioutil.TempDir("", "notary-badger")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	database, err := NewDB(dir)
	require.NoError(t, err)
	require.NoError(t, notarydb.Update(database, func(tx notarydb.Transaction) error {
		return tx.Set([]byte("ns"), []byte("k"), []byte("v"))
	}))
	require.NoError(t, database.Close())

	database, err = NewDB(dir)
	require.NoError(t, err)
	defer database.Close()
	value, exists, err := database.Get([]byte("ns"), []byte("k"))
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, []byte("v"), value)
	assert.Equal(t, "badgerdb", database.Type())
}
