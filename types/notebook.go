package types

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
)

const NotebookVersion uint16 = 1

type NotebookStatus uint8

const (
	NotebookOpen NotebookStatus = iota
	NotebookReadyForClose
	NotebookClosed
	NotebookFinalized
)

func (s NotebookStatus) String() string {
	switch s {
	case NotebookOpen:
		return "Open"
	case NotebookReadyForClose:
		return "ReadyForClose"
	case NotebookClosed:
		return "Closed"
	case NotebookFinalized:
		return "Finalized"
	}
	return fmt.Sprintf("NotebookStatus(%d)", uint8(s))
}

// Next returns the only status s may move to.
func (s NotebookStatus) Next() (NotebookStatus, bool) {
	if s >= NotebookFinalized {
		return s, false
	}
	return s + 1, true
}

// Sealed reports whether the notebook header has been written.
func (s NotebookStatus) Sealed() bool {
	return s == NotebookClosed || s == NotebookFinalized
}

type NotebookHeader struct {
	Version               uint16
	NotaryID              NotaryID
	NotebookNumber        NotebookNumber
	Tick                  Tick
	Tax                   *big.Int
	PinnedToBlockNumber   BlockNumber
	ChangedAccountsRoot   common.Hash
	ChangedAccountOrigins []AccountOrigin
	ChainTransfers        []ChainTransfer
	BlockVotesRoot        common.Hash
	BlockVotesCount       uint32
	BlockVotingPower      *big.Int
	BlocksWithVotes       []common.Hash
	SecretHash            common.Hash
	// ParentSecret reveals the previous notebook's secret; zero for the first
	// notebook.
	ParentSecret common.Hash
}

func (h *NotebookHeader) Hash() common.Hash {
	data, err := rlp.EncodeToBytes(h)
	if err != nil {
		panic(err)
	}
	return crypto.Keccak256Hash(data)
}

type SignedNotebookHeader struct {
	Header    NotebookHeader
	Signature []byte
}

// Notarization is one atomically applied submission.
type Notarization struct {
	BalanceChanges []BalanceChange
	BlockVotes     []BlockVote
}

type Notebook struct {
	Header            NotebookHeader
	Notarizations     []Notarization
	NewAccountOrigins []NewAccountOrigin
	Hash              common.Hash
	Signature         []byte
}

type notebookPayload struct {
	Header            NotebookHeader
	Notarizations     []Notarization
	NewAccountOrigins []NewAccountOrigin
}

// ContentHash is the hash the notary signs over the full notebook body.
func (n *Notebook) ContentHash() common.Hash {
	data, err := rlp.EncodeToBytes(&notebookPayload{
		Header:            n.Header,
		Notarizations:     n.Notarizations,
		NewAccountOrigins: n.NewAccountOrigins,
	})
	if err != nil {
		panic(err)
	}
	return crypto.Keccak256Hash(data)
}

// NotebookMeta describes the last sealed notebook.
type NotebookMeta struct {
	FinalizedNotebookNumber NotebookNumber
	FinalizedTick           Tick
}

// BalanceChangeResult is returned to the submitter of an accepted
// notarization.
type BalanceChangeResult struct {
	NotebookNumber    NotebookNumber
	Tick              Tick
	NewAccountOrigins []NewAccountOrigin
}
