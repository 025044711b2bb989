package main

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/argonprotocol/notary/config"
	"github.com/argonprotocol/notary/test"
	"github.com/argonprotocol/notary/types"
)

func TestNodeNotarizesAndCloses(t *testing.T) {
	conf, err := config.Load("", nil)
	require.NoError(t, err)
	require.Equal(t, test.NotaryID, conf.NotaryID)
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	n := newNode(conf, key, test.NewStorage(t), nil)
	ctx := context.Background()
	require.NoError(t, n.Closer.RunOnce(ctx))

	alice := test.NewWallet(t)
	test.RecordInbound(t, n.Storage, alice.Address, 1, 500)
	result, err := n.Pipeline.Apply(ctx, conf.NotaryID, []types.BalanceChange{
		alice.Change(t, types.AccountTypeDeposit, 1, 0, 500, test.ClaimFromMainchain(1, 500)),
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, types.NotebookNumber(1), result.NotebookNumber)

	stepped, err := n.Closer.StepUp(ctx, time.Now().Add(2*conf.TickDuration))
	require.NoError(t, err)
	require.Equal(t, types.NotebookNumber(1), stepped)
	header, err := n.Closer.CloseNotebook(ctx, stepped)
	require.NoError(t, err)
	assert.Len(t, header.Header.ChangedAccountOrigins, 1)
}
