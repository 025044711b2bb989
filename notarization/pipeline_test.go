package notarization

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/argonprotocol/notary/notebook"
	"github.com/argonprotocol/notary/storage"
	"github.com/argonprotocol/notary/test"
	"github.com/argonprotocol/notary/types"
)

type ledger struct {
	pipeline *Pipeline
	storage  *storage.Storage
	ticker   types.Ticker
}

func newLedger(t *testing.T) *ledger {
	s := test.NewStorage(t)
	ticker := test.NewTicker()
	test.OpenGenesis(t, s, ticker)
	config := DefaultConfig()
	config.NotaryID = test.NotaryID
	return &ledger{
		pipeline: NewPipeline(config, s, types.MustNewSerializer()),
		storage:  s,
		ticker:   ticker,
	}
}

func (l *ledger) apply(changes ...types.BalanceChange) (*types.BalanceChangeResult, error) {
	return l.pipeline.Apply(context.Background(), test.NotaryID, changes, nil)
}

func (l *ledger) tip(t *testing.T, account common.Address, accountType types.AccountType) *types.BalanceTip {
	var tip *types.BalanceTip
	require.NoError(t, l.storage.View(func(tx *storage.Tx) error {
		var err error
		tip, err = l.storage.BalanceTips.Get(tx, types.NewAccountKey(account, accountType))
		return err
	}))
	return tip
}

// fund claims an inbound transfer of amount into the wallet's first deposit
// change.
func (l *ledger) fund(t *testing.T, w *test.Wallet, nonce uint32, amount int64) {
	test.RecordInbound(t, l.storage, w.Address, nonce, amount)
	_, err := l.apply(w.Change(t, types.AccountTypeDeposit, 1, 0, amount, test.ClaimFromMainchain(nonce, amount)))
	require.NoError(t, err)
}

func TestClaimFromMainchain(t *testing.T) {
	l := newLedger(t)
	alice := test.NewWallet(t)
	test.RecordInbound(t, l.storage, alice.Address, 1, 1000)

	change := alice.Change(t, types.AccountTypeDeposit, 1, 0, 1000, test.ClaimFromMainchain(1, 1000))
	result, err := l.apply(change)
	require.NoError(t, err)
	assert.Equal(t, types.NotebookNumber(1), result.NotebookNumber)
	assert.Equal(t, l.ticker.Current(), result.Tick)
	require.Len(t, result.NewAccountOrigins, 1)
	assert.Equal(t, types.NewAccountOrigin{
		AccountID:   alice.Address,
		AccountType: types.AccountTypeDeposit,
		AccountUID:  1,
	}, result.NewAccountOrigins[0])

	tip := l.tip(t, alice.Address, types.AccountTypeDeposit)
	require.NotNil(t, tip)
	assert.Equal(t, uint32(1), tip.ChangeNumber)
	assert.Equal(t, int64(1000), tip.Balance.Int64())
	assert.Equal(t, types.AccountOrigin{NotebookNumber: 1, AccountUID: 1}, tip.AccountOrigin)

	// Replaying the claim fails on the stored change number.
	_, err = l.apply(change)
	var mismatch *storage.BalanceChangeMismatchError
	require.True(t, errors.As(err, &mismatch), "got %v", err)
	assert.Equal(t, "change number", mismatch.Reason)
	assert.Equal(t, uint32(1), mismatch.StoredChangeNumber)
}

func TestClaimFromMainchainFailures(t *testing.T) {
	l := newLedger(t)
	alice := test.NewWallet(t)
	test.RecordInbound(t, l.storage, alice.Address, 1, 1000)

	_, err := l.apply(alice.Change(t, types.AccountTypeDeposit, 1, 0, 999, test.ClaimFromMainchain(1, 999)))
	assert.True(t, errors.Is(err, storage.ErrTransferToLocalchainInvalidAmount), "got %v", err)

	_, err = l.apply(alice.Change(t, types.AccountTypeDeposit, 1, 0, 1000, test.ClaimFromMainchain(2, 1000)))
	assert.True(t, errors.Is(err, storage.ErrTransferToLocalchainNotFound), "got %v", err)

	var located *BalanceChangeError
	require.True(t, errors.As(err, &located))
	assert.Equal(t, 0, located.ChangeIndex)
	assert.Equal(t, 0, located.NoteIndex)

	assert.Nil(t, l.tip(t, alice.Address, types.AccountTypeDeposit))
}

func TestTransferBetweenAccounts(t *testing.T) {
	l := newLedger(t)
	wallets := test.NewWallets(t, 2)
	alice, bob := wallets[0], wallets[1]
	l.fund(t, alice, 1, 1000)

	result, err := l.apply(
		alice.Change(t, types.AccountTypeDeposit, 2, 1000, 750, test.Send(250, bob.Address)),
		bob.Change(t, types.AccountTypeDeposit, 1, 0, 250, test.Claim(250)),
	)
	require.NoError(t, err)
	require.Len(t, result.NewAccountOrigins, 1)
	assert.Equal(t, bob.Address, result.NewAccountOrigins[0].AccountID)
	assert.Equal(t, types.AccountUID(2), result.NewAccountOrigins[0].AccountUID)

	assert.Equal(t, int64(750), l.tip(t, alice.Address, types.AccountTypeDeposit).Balance.Int64())
	assert.Equal(t, int64(250), l.tip(t, bob.Address, types.AccountTypeDeposit).Balance.Int64())

	// A gap in change numbers is refused.
	_, err = l.apply(alice.Change(t, types.AccountTypeDeposit, 4, 750, 700, test.SendToMainchain(50)))
	var mismatch *storage.BalanceChangeMismatchError
	require.True(t, errors.As(err, &mismatch), "got %v", err)
	assert.Equal(t, "change number", mismatch.Reason)

	_, err = l.apply(alice.Change(t, types.AccountTypeDeposit, 3, 700, 650, test.SendToMainchain(50)))
	require.True(t, errors.As(err, &mismatch), "got %v", err)
	assert.Equal(t, "previous balance", mismatch.Reason)

	_, err = l.apply(alice.Change(t, types.AccountTypeDeposit, 3, 750, 700, test.SendToMainchain(50)))
	require.NoError(t, err)
}

func TestStatelessRejections(t *testing.T) {
	l := newLedger(t)
	alice := test.NewWallet(t)
	test.RecordInbound(t, l.storage, alice.Address, 1, 100)
	change := alice.Change(t, types.AccountTypeDeposit, 1, 0, 100, test.ClaimFromMainchain(1, 100))

	_, err := l.pipeline.Apply(context.Background(), test.NotaryID+1, []types.BalanceChange{change}, nil)
	assert.True(t, errors.Is(err, ErrInvalidNotaryUsed))

	_, err = l.apply()
	assert.True(t, errors.Is(err, ErrEmptyNotarization))

	forged := change
	forged.Balance = big.NewInt(100)
	forged.Notes = []types.Note{test.ClaimFromMainchain(1, 100)}
	forged.AccountID = test.NewWallet(t).Address
	_, err = l.apply(forged)
	assert.True(t, errors.Is(err, ErrInvalidSignature), "got %v", err)

	vote := alice.Vote(t, common.HexToHash("0x01"), 1)
	taxChange := alice.Change(t, types.AccountTypeTax, 1, 0, 0)
	_, err = l.pipeline.Apply(context.Background(), test.NotaryID, []types.BalanceChange{taxChange}, []types.BlockVote{vote})
	assert.True(t, errors.Is(err, ErrInsufficientBlockVoteFunds), "got %v", err)

	assert.Nil(t, l.tip(t, alice.Address, types.AccountTypeDeposit))
}

func TestLimits(t *testing.T) {
	l := newLedger(t)
	l.pipeline.config.MaxBalanceChanges = 1
	l.pipeline.config.MaxNotesPerChange = 1
	alice := test.NewWallet(t)

	_, err := l.apply(
		alice.Change(t, types.AccountTypeDeposit, 1, 0, 0),
		alice.Change(t, types.AccountTypeTax, 1, 0, 0),
	)
	assert.True(t, errors.Is(err, ErrTooManyBalanceChanges))

	_, err = l.apply(alice.Change(t, types.AccountTypeDeposit, 1, 0, 30,
		test.ClaimFromMainchain(1, 10), test.ClaimFromMainchain(2, 20)))
	assert.True(t, errors.Is(err, ErrTooManyNotes))
}

func TestSubmissionIsAtomic(t *testing.T) {
	l := newLedger(t)
	wallets := test.NewWallets(t, 2)
	alice, bob := wallets[0], wallets[1]
	test.RecordInbound(t, l.storage, alice.Address, 1, 100)

	_, err := l.apply(
		alice.Change(t, types.AccountTypeDeposit, 1, 0, 100, test.ClaimFromMainchain(1, 100)),
		bob.Change(t, types.AccountTypeDeposit, 2, 0, 0),
	)
	assert.True(t, errors.Is(err, storage.ErrMissingAccountOrigin), "got %v", err)

	assert.Nil(t, l.tip(t, alice.Address, types.AccountTypeDeposit))
	require.NoError(t, l.storage.View(func(tx *storage.Tx) error {
		pending, err := l.storage.ChainTransfers.GetPendingTransferToLocal(tx, alice.Address, 1)
		require.NoError(t, err)
		assert.NotNil(t, pending)
		origin, err := l.storage.AccountOrigins.Get(tx, alice.Address, types.AccountTypeDeposit)
		require.NoError(t, err)
		assert.Nil(t, origin)
		notarizations, err := l.storage.Notarizations.List(tx, 1)
		require.NoError(t, err)
		assert.Empty(t, notarizations)
		return nil
	}))

	// The same claim alone still succeeds.
	_, err = l.apply(alice.Change(t, types.AccountTypeDeposit, 1, 0, 100, test.ClaimFromMainchain(1, 100)))
	require.NoError(t, err)
}

func TestConcurrentIdenticalSubmissions(t *testing.T) {
	l := newLedger(t)
	alice := test.NewWallet(t)
	test.RecordInbound(t, l.storage, alice.Address, 1, 500)
	change := alice.Change(t, types.AccountTypeDeposit, 1, 0, 500, test.ClaimFromMainchain(1, 500))

	const submitters = 8
	var wg sync.WaitGroup
	errs := make([]error, submitters)
	for i := 0; i < submitters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = l.apply(change)
		}(i)
	}
	wg.Wait()

	accepted := 0
	for _, err := range errs {
		if err == nil {
			accepted++
		}
	}
	assert.Equal(t, 1, accepted)

	tip := l.tip(t, alice.Address, types.AccountTypeDeposit)
	require.NotNil(t, tip)
	assert.Equal(t, uint32(1), tip.ChangeNumber)
	assert.Equal(t, int64(500), tip.Balance.Int64())
	require.NoError(t, l.storage.View(func(tx *storage.Tx) error {
		notarizations, err := l.storage.Notarizations.List(tx, 1)
		assert.Len(t, notarizations, 1)
		return err
	}))
}

func TestNoOpenNotebook(t *testing.T) {
	s := test.NewStorage(t)
	p := NewPipeline(DefaultConfig(), s, types.MustNewSerializer())
	alice := test.NewWallet(t)
	_, err := p.Apply(context.Background(), 1, []types.BalanceChange{
		alice.Change(t, types.AccountTypeDeposit, 1, 0, 0),
	}, nil)
	assert.True(t, errors.Is(err, storage.ErrNoOpenNotebook), "got %v", err)
}

func TestSendToMainchainCap(t *testing.T) {
	l := newLedger(t)
	l.pipeline.config.MaxChainTransfersPerNotebook = 1
	alice := test.NewWallet(t)
	l.fund(t, alice, 1, 100)

	_, err := l.apply(alice.Change(t, types.AccountTypeDeposit, 2, 100, 90, test.SendToMainchain(10)))
	require.NoError(t, err)
	_, err = l.apply(alice.Change(t, types.AccountTypeDeposit, 3, 90, 80, test.SendToMainchain(10)))
	assert.True(t, errors.Is(err, storage.ErrMaxNotebookChainTransfersReached), "got %v", err)
}

func TestChannelHoldFlow(t *testing.T) {
	l := newLedger(t)
	wallets := test.NewWallets(t, 2)
	alice, bob := wallets[0], wallets[1]
	l.fund(t, alice, 1, 100)

	hold := test.ChannelHold(40, bob.Address)
	_, err := l.apply(alice.Change(t, types.AccountTypeDeposit, 2, 100, 100, hold))
	require.NoError(t, err)
	tip := l.tip(t, alice.Address, types.AccountTypeDeposit)
	require.NotNil(t, tip.ChannelHoldNote)
	assert.True(t, tip.ChannelHoldNote.Equal(&hold))

	// A change that forgets the hold does not match the stored tip.
	_, err = l.apply(alice.Change(t, types.AccountTypeDeposit, 3, 100, 90, test.SendToMainchain(10)))
	var mismatch *storage.BalanceChangeMismatchError
	require.True(t, errors.As(err, &mismatch), "got %v", err)
	assert.Equal(t, "channel hold note", mismatch.Reason)

	settle := types.BalanceChange{
		AccountID:       alice.Address,
		AccountType:     types.AccountTypeDeposit,
		ChangeNumber:    3,
		PreviousBalance: big.NewInt(100),
		Balance:         big.NewInt(70),
		ChannelHoldNote: &hold,
		Notes:           []types.Note{test.ChannelHoldSettle(30)},
	}
	alice.Sign(t, &settle)
	_, err = l.apply(settle, bob.Change(t, types.AccountTypeDeposit, 1, 0, 30, test.ChannelHoldClaim(30)))
	require.NoError(t, err)

	tip = l.tip(t, alice.Address, types.AccountTypeDeposit)
	assert.Nil(t, tip.ChannelHoldNote)
	assert.Equal(t, int64(70), tip.Balance.Int64())
	assert.Equal(t, int64(30), l.tip(t, bob.Address, types.AccountTypeDeposit).Balance.Int64())
}

func TestPreviousBalanceProof(t *testing.T) {
	l := newLedger(t)
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	closer := notebook.NewCloser(notebook.Config{
		NotaryID:    test.NotaryID,
		NotaryKey:   key,
		Ticker:      l.ticker,
		LockTimeout: time.Second,
	}, l.storage, l.pipeline.serializer, nil)

	wallets := test.NewWallets(t, 2)
	alice, bob := wallets[0], wallets[1]
	l.fund(t, alice, 1, 100)
	l.fund(t, bob, 1, 50)

	ctx := context.Background()
	stepped, err := closer.StepUp(ctx, time.Now().Add(2*l.ticker.TickDuration))
	require.NoError(t, err)
	require.Equal(t, types.NotebookNumber(1), stepped)
	_, err = closer.CloseNotebook(ctx, 1)
	require.NoError(t, err)

	tip := l.tip(t, alice.Address, types.AccountTypeDeposit)
	proof, err := closer.GetBalanceProof(test.NotaryID, 1, tip)
	require.NoError(t, err)
	require.Len(t, proof.Proof, 1)

	withProof := func(proof types.BalanceProof) types.BalanceChange {
		change := alice.Change(t, types.AccountTypeDeposit, 2, 100, 90, test.SendToMainchain(10))
		change.PreviousBalanceProof = &proof
		alice.Sign(t, &change)
		return change
	}

	tampered := *proof
	tampered.Proof = []common.Hash{crypto.Keccak256Hash([]byte("forged"))}
	_, err = l.apply(withProof(tampered))
	assert.True(t, errors.Is(err, ErrInvalidPreviousBalanceProof), "got %v", err)

	foreign := *proof
	foreign.NotaryID = test.NotaryID + 1
	_, err = l.apply(withProof(foreign))
	assert.True(t, errors.Is(err, ErrCrossNotaryProofsNotImplemented), "got %v", err)

	future := *proof
	future.NotebookNumber = 9
	_, err = l.apply(withProof(future))
	assert.True(t, errors.Is(err, ErrInvalidPreviousBalanceProof), "got %v", err)

	result, err := l.apply(withProof(*proof))
	require.NoError(t, err)
	assert.Equal(t, types.NotebookNumber(2), result.NotebookNumber)
	assert.Empty(t, result.NewAccountOrigins)
}
