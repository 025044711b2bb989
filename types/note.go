package types

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
)

type NoteType uint8

const (
	// NoteSend moves funds out of an account, to be claimed inside the same
	// notarization. To optionally restricts who may claim.
	NoteSend NoteType = iota
	NoteClaim
	// NoteClaimFromMainchain credits a confirmed inbound chain transfer.
	NoteClaimFromMainchain
	NoteSendToMainchain
	// NoteChannelHold locks Amount for Recipient without moving it.
	NoteChannelHold
	NoteChannelHoldSettle
	NoteChannelHoldClaim
	NoteTax
	NoteSendToVote
)

var noteTypeNames = map[NoteType]string{
	NoteSend:               "Send",
	NoteClaim:              "Claim",
	NoteClaimFromMainchain: "ClaimFromMainchain",
	NoteSendToMainchain:    "SendToMainchain",
	NoteChannelHold:        "ChannelHold",
	NoteChannelHoldSettle:  "ChannelHoldSettle",
	NoteChannelHoldClaim:   "ChannelHoldClaim",
	NoteTax:                "Tax",
	NoteSendToVote:         "SendToVote",
}

func (t NoteType) String() string {
	if name, ok := noteTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("NoteType(%d)", uint8(t))
}

func (t NoteType) Valid() bool {
	_, ok := noteTypeNames[t]
	return ok
}

// IsCredit reports whether the note adds Amount to the account balance.
func (t NoteType) IsCredit() bool {
	return t == NoteClaim || t == NoteClaimFromMainchain || t == NoteChannelHoldClaim
}

// IsDebit reports whether the note removes Amount from the account balance.
// A channel hold is neither: it only reserves funds.
func (t NoteType) IsDebit() bool {
	switch t {
	case NoteSend, NoteSendToMainchain, NoteChannelHoldSettle, NoteTax, NoteSendToVote:
		return true
	}
	return false
}

// Note is one typed leg of a balance change. Only the fields of its Type are
// meaningful.
type Note struct {
	Type         NoteType
	Amount       *big.Int
	To           []common.Address
	AccountNonce uint32
	Recipient    common.Address
}

func (n *Note) amount() *big.Int {
	if n.Amount == nil {
		return new(big.Int)
	}
	return n.Amount
}

// Value returns Amount, never nil.
func (n *Note) Value() *big.Int {
	return n.amount()
}

// Hash identifies the note inside a balance tip leaf.
func (n *Note) Hash() common.Hash {
	data, err := rlp.EncodeToBytes(n)
	if err != nil {
		// only fails for unsupported types, which Note does not contain
		panic(err)
	}
	return crypto.Keccak256Hash(data)
}

// CanClaim reports whether account may claim this send.
func (n *Note) CanClaim(account common.Address) bool {
	if len(n.To) == 0 {
		return true
	}
	for _, to := range n.To {
		if to == account {
			return true
		}
	}
	return false
}

func (n *Note) Equal(other *Note) bool {
	if n == nil || other == nil {
		return n == other
	}
	return n.Hash() == other.Hash()
}

func (n Note) String() string {
	return fmt.Sprintf("%s(%s)", n.Type, n.amount())
}
