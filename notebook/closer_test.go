package notebook_test

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/argonprotocol/notary/merkle"
	"github.com/argonprotocol/notary/notarization"
	"github.com/argonprotocol/notary/notebook"
	"github.com/argonprotocol/notary/storage"
	"github.com/argonprotocol/notary/test"
	"github.com/argonprotocol/notary/types"
	"github.com/argonprotocol/notary/validator"
)

type memArchive struct {
	mu      sync.Mutex
	headers []*types.SignedNotebookHeader
}

func (a *memArchive) Store(_ *types.Notebook, header *types.SignedNotebookHeader) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.headers = append(a.headers, header)
	return nil
}

type failingArchive struct{}

func (failingArchive) Store(*types.Notebook, *types.SignedNotebookHeader) error {
	return errors.New("disk full")
}

func TestArchiversReachEveryArchiver(t *testing.T) {
	first, second := &memArchive{}, &memArchive{}
	archivers := notebook.Archivers{first, failingArchive{}, second}
	header := &types.SignedNotebookHeader{}
	assert.EqualError(t, archivers.Store(&types.Notebook{}, header), "disk full")
	assert.Len(t, first.headers, 1)
	assert.Len(t, second.headers, 1)
}

type harness struct {
	storage    *storage.Storage
	serializer *types.Serializer
	ticker     types.Ticker
	key        *ecdsa.PrivateKey
	closer     *notebook.Closer
	pipeline   *notarization.Pipeline
	archive    *memArchive
	now        time.Time
}

func newHarness(t *testing.T) *harness {
	s := test.NewStorage(t)
	ticker := test.NewTicker()
	test.OpenGenesis(t, s, ticker)
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	serializer := types.MustNewSerializer()
	pipelineConfig := notarization.DefaultConfig()
	pipelineConfig.NotaryID = test.NotaryID
	h := &harness{
		storage:    s,
		serializer: serializer,
		ticker:     ticker,
		key:        key,
		archive:    &memArchive{},
		now:        time.Now(),
		pipeline:   notarization.NewPipeline(pipelineConfig, s, serializer),
	}
	h.closer = h.newCloser(time.Second)
	return h
}

func (h *harness) newCloser(lockTimeout time.Duration) *notebook.Closer {
	return notebook.NewCloser(notebook.Config{
		NotaryID:        test.NotaryID,
		NotaryKey:       h.key,
		Ticker:          h.ticker,
		PinSafetyOffset: 10,
		LockTimeout:     lockTimeout,
	}, h.storage, h.serializer, h.archive)
}

func (h *harness) setBestBlock(t *testing.T, number types.BlockNumber) {
	t.Helper()
	require.NoError(t, h.storage.Update(context.Background(), time.Second, func(tx *storage.Tx) error {
		return h.storage.ChainState.SetBestBlock(tx, number)
	}))
}

// expire steps the open notebook up and returns the notebook now ready.
func (h *harness) expire(t *testing.T) types.NotebookNumber {
	t.Helper()
	h.now = h.now.Add(2 * h.ticker.TickDuration)
	stepped, err := h.closer.StepUp(context.Background(), h.now)
	require.NoError(t, err)
	require.NotZero(t, stepped)
	return stepped
}

func (h *harness) apply(t *testing.T, changes ...types.BalanceChange) {
	t.Helper()
	_, err := h.pipeline.Apply(context.Background(), test.NotaryID, changes, nil)
	require.NoError(t, err)
}

func (h *harness) fund(t *testing.T, w *test.Wallet, nonce uint32, amount int64) {
	t.Helper()
	test.RecordInbound(t, h.storage, w.Address, nonce, amount)
	h.apply(t, w.Change(t, types.AccountTypeDeposit, 1, 0, amount, test.ClaimFromMainchain(nonce, amount)))
}

// close expires the open notebook and seals it.
func (h *harness) close(t *testing.T) *types.SignedNotebookHeader {
	t.Helper()
	header, err := h.closer.CloseNotebook(context.Background(), h.expire(t))
	require.NoError(t, err)
	return header
}

func (h *harness) leaves(t *testing.T, notebookNumber types.NotebookNumber) []types.BalanceTip {
	var leaves []types.BalanceTip
	require.NoError(t, h.storage.View(func(tx *storage.Tx) error {
		var err error
		leaves, err = h.storage.Headers.GetLeaves(tx, notebookNumber)
		return err
	}))
	return leaves
}

func (h *harness) status(t *testing.T, notebookNumber types.NotebookNumber) types.NotebookStatus {
	var row *storage.NotebookStatusRow
	require.NoError(t, h.storage.View(func(tx *storage.Tx) error {
		var err error
		row, err = h.storage.NotebookStatus.Get(tx, notebookNumber)
		return err
	}))
	require.NotNil(t, row)
	return row.Status
}

func TestCloseThreeAccounts(t *testing.T) {
	h := newHarness(t)
	wallets := test.NewWallets(t, 3)
	balances := []int64{1000, 2500, 500}
	for i, w := range wallets {
		h.fund(t, w, 1, balances[i])
	}

	header := h.close(t)
	assert.Equal(t, types.NotebookNumber(1), header.Header.NotebookNumber)
	assert.Equal(t, types.NotebookVersion, header.Header.Version)
	assert.Equal(t, test.NotaryID, header.Header.NotaryID)

	leaves := h.leaves(t, 1)
	require.Len(t, leaves, 3)
	for i, leaf := range leaves {
		assert.Equal(t, wallets[i].Address, leaf.AccountID)
		assert.Equal(t, balances[i], leaf.Balance.Int64())
		assert.Equal(t, leaf.AccountOrigin, header.Header.ChangedAccountOrigins[i])
	}

	encoded, err := notebook.EncodeLeaves(h.serializer, leaves)
	require.NoError(t, err)
	a, b, c := merkle.Hasher(encoded[0]), merkle.Hasher(encoded[1]), merkle.Hasher(encoded[2])
	ab := merkle.Hasher(a[:], b[:])
	assert.Equal(t, merkle.Hasher(ab[:], c[:]), header.Header.ChangedAccountsRoot)

	for i := range leaves {
		proof, err := h.closer.GetBalanceProof(test.NotaryID, 1, &leaves[i])
		require.NoError(t, err)
		assert.Equal(t, uint32(i), proof.LeafIndex)
		assert.Equal(t, uint32(3), proof.NumberOfLeaves)
		assert.Equal(t, header.Header.Tick, proof.Tick)
		ok, err := h.closer.IsValidProof(&leaves[i], proof)
		require.NoError(t, err)
		assert.True(t, ok)

		tampered := leaves[i]
		tampered.Balance = new(big.Int).Add(leaves[i].Balance, big.NewInt(1))
		ok, err = h.closer.IsValidProof(&tampered, proof)
		require.NoError(t, err)
		assert.False(t, ok)
		_, err = h.closer.GetBalanceProof(test.NotaryID, 1, &tampered)
		assert.True(t, errors.Is(err, storage.ErrInvalidBalanceProofRequested))
	}

	v := validator.NewValidator(h.serializer, crypto.PubkeyToAddress(h.key.PublicKey))
	require.NoError(t, v.ValidateSignedHeader(header))
	var sealed *types.Notebook
	require.NoError(t, h.storage.View(func(tx *storage.Tx) error {
		var err error
		sealed, err = h.storage.Headers.GetNotebook(tx, 1)
		return err
	}))
	require.NoError(t, v.ValidateNotebook(sealed, leaves))
	assert.Len(t, sealed.NewAccountOrigins, 3)

	assert.Equal(t, types.NotebookClosed, h.status(t, 1))
	assert.Equal(t, types.NotebookOpen, h.status(t, 2))
	require.Len(t, h.archive.headers, 1)
	assert.Equal(t, header.Header.Hash(), h.archive.headers[0].Header.Hash())
}

func TestLatestTipPerAccount(t *testing.T) {
	h := newHarness(t)
	alice := test.NewWallet(t)
	h.fund(t, alice, 1, 100)
	h.apply(t, alice.Change(t, types.AccountTypeDeposit, 2, 100, 60, test.SendToMainchain(40)))

	h.close(t)
	leaves := h.leaves(t, 1)
	require.Len(t, leaves, 1)
	assert.Equal(t, uint32(2), leaves[0].ChangeNumber)
	assert.Equal(t, int64(60), leaves[0].Balance.Int64())

	stale := leaves[0]
	stale.ChangeNumber = 1
	stale.Balance = big.NewInt(100)
	_, err := h.closer.GetBalanceProof(test.NotaryID, 1, &stale)
	assert.True(t, errors.Is(err, storage.ErrInvalidBalanceProofRequested))
	_, err = h.closer.GetBalanceProof(test.NotaryID+1, 1, &leaves[0])
	assert.True(t, errors.Is(err, storage.ErrInvalidBalanceProofRequested))
	_, err = h.closer.GetBalanceProof(test.NotaryID, 2, &leaves[0])
	assert.True(t, errors.Is(err, storage.ErrInvalidBalanceProofRequested))
}

func TestChainTransfersInHeader(t *testing.T) {
	h := newHarness(t)
	alice := test.NewWallet(t)
	test.RecordInbound(t, h.storage, alice.Address, 4, 100)
	h.apply(t, alice.Change(t, types.AccountTypeDeposit, 1, 0, 70,
		test.ClaimFromMainchain(4, 100), test.SendToMainchain(30)))

	header := h.close(t)
	require.Len(t, header.Header.ChainTransfers, 2)
	in, out := header.Header.ChainTransfers[0], header.Header.ChainTransfers[1]
	assert.Equal(t, types.ChainTransferToLocalchain, in.Type)
	assert.Equal(t, alice.Address, in.AccountID)
	assert.Equal(t, uint32(4), in.AccountNonce)
	assert.Equal(t, types.ChainTransferToMainchain, out.Type)
	assert.Equal(t, int64(30), out.Amount.Int64())

	// Transfers are drained with the notebook.
	h.apply(t, alice.Change(t, types.AccountTypeDeposit, 2, 70, 70))
	assert.Empty(t, h.close(t).Header.ChainTransfers)
}

func TestSecretsAndPins(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.storage.Update(context.Background(), time.Second, func(tx *storage.Tx) error {
		if err := h.storage.ChainState.SetBestBlock(tx, 100); err != nil {
			return err
		}
		return h.storage.ChainState.SetFinalizedBlock(tx, 50)
	}))

	first := h.close(t)
	second := h.close(t)
	third := h.close(t)
	assert.Equal(t, types.BlockNumber(90), first.Header.PinnedToBlockNumber)
	assert.GreaterOrEqual(t, second.Header.PinnedToBlockNumber, first.Header.PinnedToBlockNumber)
	assert.GreaterOrEqual(t, third.Header.PinnedToBlockNumber, second.Header.PinnedToBlockNumber)

	assert.Equal(t, first.Header.SecretHash, notebook.SecretHash(second.Header.ParentSecret, 1))
	assert.Equal(t, second.Header.SecretHash, notebook.SecretHash(third.Header.ParentSecret, 2))
	assert.NotEqual(t, first.Header.SecretHash, second.Header.SecretHash)

	// Empty notebooks still commit to an empty tree.
	assert.Equal(t, merkle.Root(nil), first.Header.ChangedAccountsRoot)

	meta, err := h.storage.Metadata()
	require.NoError(t, err)
	assert.Equal(t, types.NotebookNumber(3), meta.FinalizedNotebookNumber)
}

func TestCloseRequiresReadyNotebook(t *testing.T) {
	h := newHarness(t)
	_, err := h.closer.CloseNotebook(context.Background(), 1)
	assert.True(t, errors.Is(err, storage.ErrInvalidNotebookStatusTransition), "got %v", err)

	h.close(t)
	_, err = h.closer.CloseNotebook(context.Background(), 1)
	assert.True(t, errors.Is(err, storage.ErrInvalidNotebookStatusTransition), "got %v", err)
}

func TestCloseInNumberOrder(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.setBestBlock(t, 100)
	require.Equal(t, types.NotebookNumber(1), h.expire(t))
	require.Equal(t, types.NotebookNumber(2), h.expire(t))

	_, err := h.closer.CloseNotebook(ctx, 2)
	assert.True(t, errors.Is(err, storage.ErrPreviousNotebookNotSealed), "got %v", err)
	assert.True(t, storage.IsRetryable(err))
	assert.Equal(t, types.NotebookReadyForClose, h.status(t, 2))
	assert.Empty(t, h.archive.headers)

	h.setBestBlock(t, 200)
	first, err := h.closer.CloseNotebook(ctx, 1)
	require.NoError(t, err)
	second, err := h.closer.CloseNotebook(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, types.BlockNumber(190), first.Header.PinnedToBlockNumber)
	assert.GreaterOrEqual(t, second.Header.PinnedToBlockNumber, first.Header.PinnedToBlockNumber)
	assert.Equal(t, first.Header.SecretHash, notebook.SecretHash(second.Header.ParentSecret, 1))
}

func TestRunOnceClosesBacklogInOrder(t *testing.T) {
	h := newHarness(t)
	h.setBestBlock(t, 100)
	h.expire(t)
	h.expire(t)

	require.NoError(t, h.closer.RunOnce(context.Background()))
	require.Len(t, h.archive.headers, 2)
	first, second := h.archive.headers[0].Header, h.archive.headers[1].Header
	assert.Equal(t, types.NotebookNumber(1), first.NotebookNumber)
	assert.Equal(t, types.NotebookNumber(2), second.NotebookNumber)
	assert.Equal(t, first.SecretHash, notebook.SecretHash(second.ParentSecret, 1))
}

func TestCloseOutlivesLockBudget(t *testing.T) {
	h := newHarness(t)
	wallets := test.NewWallets(t, 40)
	for i, w := range wallets {
		h.fund(t, w, uint32(i+1), 100)
	}

	// The budget only bounds the status probe, not the seal that follows.
	h.closer = h.newCloser(2 * time.Millisecond)
	header := h.close(t)
	assert.Equal(t, types.NotebookNumber(1), header.Header.NotebookNumber)
	assert.Len(t, h.leaves(t, 1), 40)
	assert.Equal(t, types.NotebookClosed, h.status(t, 1))
}

func TestConfirmFinalized(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	err := h.closer.ConfirmFinalized(ctx, 1)
	assert.True(t, errors.Is(err, storage.ErrInvalidNotebookStatusTransition))

	h.close(t)
	require.NoError(t, h.closer.ConfirmFinalized(ctx, 1))
	assert.Equal(t, types.NotebookFinalized, h.status(t, 1))
	err = h.closer.ConfirmFinalized(ctx, 1)
	assert.True(t, errors.Is(err, storage.ErrInvalidNotebookStatusTransition))
}

func TestRunOnce(t *testing.T) {
	s := test.NewStorage(t)
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	ticker := types.NewTicker(100*time.Millisecond, time.Now())
	closer := notebook.NewCloser(notebook.Config{
		NotaryID:    test.NotaryID,
		NotaryKey:   key,
		Ticker:      ticker,
		LockTimeout: time.Second,
	}, s, types.MustNewSerializer(), nil)

	ctx := context.Background()
	require.NoError(t, closer.RunOnce(ctx))
	require.NoError(t, s.View(func(tx *storage.Tx) error {
		open, ok, err := s.NotebookStatus.OpenNotebook(tx)
		assert.True(t, ok)
		assert.Equal(t, types.NotebookNumber(1), open)
		return err
	}))

	time.Sleep(250 * time.Millisecond)
	require.NoError(t, closer.RunOnce(ctx))
	header, err := s.GetSignedHeader(1)
	require.NoError(t, err)
	assert.Equal(t, types.NotebookNumber(1), header.Header.NotebookNumber)
}
