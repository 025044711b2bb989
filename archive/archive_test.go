package archive

import (
	"math/big"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/argonprotocol/notary/types"
)

func newTestArchive(t *testing.T) *Archive {
	t.Helper()
	a, err := Open(filepath.Join(t.TempDir(), "archive.db"))
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

func sealedNotebook(number types.NotebookNumber) (*types.Notebook, *types.SignedNotebookHeader) {
	header := types.NotebookHeader{
		Version:          types.NotebookVersion,
		NotaryID:         1,
		NotebookNumber:   number,
		Tick:             number * 10,
		Tax:              big.NewInt(3),
		BlockVotingPower: new(big.Int),
		SecretHash:       common.HexToHash("0x5e"),
	}
	notebook := &types.Notebook{Header: header}
	notebook.Hash = notebook.ContentHash()
	notebook.Signature = []byte{1, 2, 3}
	return notebook, &types.SignedNotebookHeader{Header: header, Signature: []byte{4, 5, 6}}
}

func TestStoreAndLoad(t *testing.T) {
	a := newTestArchive(t)
	latest, err := a.Latest()
	require.NoError(t, err)
	assert.Zero(t, latest)

	for _, number := range []types.NotebookNumber{1, 3, 2} {
		require.NoError(t, a.Store(sealedNotebook(number)))
	}
	latest, err = a.Latest()
	require.NoError(t, err)
	assert.Equal(t, types.NotebookNumber(3), latest)

	notebook, header := sealedNotebook(2)
	gotHeader, err := a.GetHeader(2)
	require.NoError(t, err)
	assert.Equal(t, header.Header.Hash(), gotHeader.Header.Hash())
	assert.Equal(t, header.Signature, gotHeader.Signature)

	gotBody, err := a.GetBody(2)
	require.NoError(t, err)
	assert.Equal(t, notebook.Hash, gotBody.Hash)
	assert.Equal(t, notebook.Hash, gotBody.ContentHash())

	// The same notebook can be stored twice.
	require.NoError(t, a.Store(notebook, header))
}

func TestMissingNotebook(t *testing.T) {
	a := newTestArchive(t)
	_, err := a.GetHeader(9)
	assert.True(t, errors.Is(err, ErrNotFound))
	_, err = a.GetBody(9)
	assert.True(t, errors.Is(err, ErrNotFound))
}
