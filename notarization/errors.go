package notarization

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrInvalidNotaryUsed       = errors.New("notarization sent to the wrong notary")
	ErrEmptyNotarization       = errors.New("notarization has no balance changes")
	ErrTooManyBalanceChanges   = errors.New("too many balance changes")
	ErrTooManyNotes            = errors.New("too many notes in balance change")
	ErrTooManyBlockVotes       = errors.New("too many block votes")
	ErrInvalidSignature        = errors.New("balance change signature invalid")
	ErrInvalidBlockVote        = errors.New("block vote invalid")
	ErrInvalidChangeNumber     = errors.New("change number must be positive")
	ErrInvalidNoteType         = errors.New("unknown note type")
	ErrInvalidNoteAmount       = errors.New("note amount must be positive")
	ErrNegativeBalance         = errors.New("balance cannot be negative")
	ErrBalanceChangeInvalid    = errors.New("balance does not equal previous balance plus notes")
	ErrAccountTypeNoteMismatch = errors.New("note type not allowed on account type")
	ErrInvalidNoteRecipients   = errors.New("claim not allowed by send restrictions")

	ErrBalanceChangeNotNetZero         = errors.New("deposit sends and claims do not net to zero")
	ErrTaxBalanceChangeNotNetZero      = errors.New("tax sends and claims do not net to zero")
	ErrChannelHoldNotNetZero           = errors.New("channel hold settles and claims do not net to zero")
	ErrInsufficientBlockVoteFunds      = errors.New("block vote power exceeds funds sent to votes")
	ErrInvalidChannelHoldNote          = errors.New("invalid channel hold note")
	ErrChannelHoldFundsLocked          = errors.New("balance would drop below held funds")
	ErrChannelHoldNotFound             = errors.New("no channel hold to settle")
	ErrInvalidChannelHoldClaimer       = errors.New("channel hold claimed by an account other than its recipient")
	ErrCrossNotaryProofsNotImplemented = errors.New("cross notary balance proofs are not implemented")
	ErrInvalidPreviousBalanceProof     = errors.New("previous balance proof invalid")
)

// BalanceChangeError locates a failure inside a submission. NoteIndex is -1
// when the failure concerns the whole balance change.
type BalanceChangeError struct {
	ChangeIndex int
	NoteIndex   int
	Err         error
}

func changeError(changeIndex int, err error) *BalanceChangeError {
	return &BalanceChangeError{ChangeIndex: changeIndex, NoteIndex: -1, Err: err}
}

func noteError(changeIndex, noteIndex int, err error) *BalanceChangeError {
	return &BalanceChangeError{ChangeIndex: changeIndex, NoteIndex: noteIndex, Err: err}
}

func (e *BalanceChangeError) Error() string {
	if e.NoteIndex < 0 {
		return fmt.Sprintf("balance change %d: %v", e.ChangeIndex, e.Err)
	}
	return fmt.Sprintf("balance change %d note %d: %v", e.ChangeIndex, e.NoteIndex, e.Err)
}

func (e *BalanceChangeError) Unwrap() error {
	return e.Err
}
