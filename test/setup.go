// Package test holds the ledger fixtures shared by package tests: wallets
// that sign balance changes, note builders and an in-memory ledger.
package test

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"math/big"
	"sort"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/argonprotocol/notary/db/badgerdb"
	"github.com/argonprotocol/notary/storage"
	"github.com/argonprotocol/notary/types"
	"github.com/argonprotocol/notary/utils"
)

const NotaryID types.NotaryID = 1

// NewStorage returns a ledger over an in-memory badger database.
func NewStorage(t *testing.T) *storage.Storage {
	t.Helper()
	database, err := badgerdb.NewInMemoryDB()
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return storage.NewStorage(database)
}

// NewTicker returns one-minute ticks with tick 1 starting now.
func NewTicker() types.Ticker {
	return types.NewTicker(time.Minute, time.Now().Add(-time.Minute))
}

func Update(t *testing.T, s *storage.Storage, fn func(tx *storage.Tx) error) {
	t.Helper()
	require.NoError(t, s.Update(context.Background(), time.Second, fn))
}

// OpenGenesis opens notebook 1 for the ticker's current tick.
func OpenGenesis(t *testing.T, s *storage.Storage, ticker types.Ticker) {
	t.Helper()
	tick := ticker.Current()
	Update(t, s, func(tx *storage.Tx) error {
		return s.NotebookStatus.Create(tx, 1, tick, ticker.TickEnd(tick))
	})
}

// RecordInbound records a confirmed base-chain transfer to the localchain.
func RecordInbound(t *testing.T, s *storage.Storage, account common.Address, nonce uint32, amount int64) {
	t.Helper()
	Update(t, s, func(tx *storage.Tx) error {
		return s.ChainTransfers.RecordTransferToLocalFromBlock(tx, 1, account, nonce, big.NewInt(amount), 0)
	})
}

type Wallet struct {
	Key     *ecdsa.PrivateKey
	Address common.Address
}

func NewWallet(t *testing.T) *Wallet {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return &Wallet{Key: key, Address: crypto.PubkeyToAddress(key.PublicKey)}
}

// NewWallets returns n wallets in ascending address order.
func NewWallets(t *testing.T, n int) []*Wallet {
	wallets := make([]*Wallet, n)
	for i := range wallets {
		wallets[i] = NewWallet(t)
	}
	sort.Slice(wallets, func(i, j int) bool {
		return bytes.Compare(wallets[i].Address[:], wallets[j].Address[:]) < 0
	})
	return wallets
}

// Change builds a signed balance change.
func (w *Wallet) Change(
	t *testing.T,
	accountType types.AccountType,
	changeNumber uint32,
	previous, balance int64,
	notes ...types.Note,
) types.BalanceChange {
	t.Helper()
	change := types.BalanceChange{
		AccountID:       w.Address,
		AccountType:     accountType,
		ChangeNumber:    changeNumber,
		PreviousBalance: big.NewInt(previous),
		Balance:         big.NewInt(balance),
		Notes:           notes,
	}
	w.Sign(t, &change)
	return change
}

// Sign signs the change again after it was edited.
func (w *Wallet) Sign(t *testing.T, change *types.BalanceChange) {
	t.Helper()
	require.NoError(t, utils.SignBalanceChange(w.Key, change))
}

func (w *Wallet) Vote(t *testing.T, block common.Hash, power int64) types.BlockVote {
	t.Helper()
	vote := types.BlockVote{
		AccountID:             w.Address,
		BlockHash:             block,
		Power:                 big.NewInt(power),
		BlockRewardsAccountID: w.Address,
	}
	require.NoError(t, utils.SignBlockVote(w.Key, &vote))
	return vote
}

func Send(amount int64, to ...common.Address) types.Note {
	return types.Note{Type: types.NoteSend, Amount: big.NewInt(amount), To: to}
}

func Claim(amount int64) types.Note {
	return types.Note{Type: types.NoteClaim, Amount: big.NewInt(amount)}
}

func ClaimFromMainchain(nonce uint32, amount int64) types.Note {
	return types.Note{Type: types.NoteClaimFromMainchain, Amount: big.NewInt(amount), AccountNonce: nonce}
}

func SendToMainchain(amount int64) types.Note {
	return types.Note{Type: types.NoteSendToMainchain, Amount: big.NewInt(amount)}
}

func ChannelHold(amount int64, recipient common.Address) types.Note {
	return types.Note{Type: types.NoteChannelHold, Amount: big.NewInt(amount), Recipient: recipient}
}

func ChannelHoldSettle(amount int64) types.Note {
	return types.Note{Type: types.NoteChannelHoldSettle, Amount: big.NewInt(amount)}
}

func ChannelHoldClaim(amount int64) types.Note {
	return types.Note{Type: types.NoteChannelHoldClaim, Amount: big.NewInt(amount)}
}

func Tax(amount int64) types.Note {
	return types.Note{Type: types.NoteTax, Amount: big.NewInt(amount)}
}

func SendToVote(amount int64) types.Note {
	return types.Note{Type: types.NoteSendToVote, Amount: big.NewInt(amount)}
}
