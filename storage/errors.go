package storage

import (
	"fmt"
	"math/big"

	"github.com/pkg/errors"
)

var (
	// ErrBusy means a concurrent transaction won a race on a shared row. The
	// whole submission may be retried unchanged.
	ErrBusy = errors.New("storage busy, retry")
	// ErrLockTimeout means the transaction ran past its lock budget.
	ErrLockTimeout = errors.New("lock timeout, retry")
	// ErrNotebookStillActive is returned when a close races in-flight appends.
	ErrNotebookStillActive = errors.New("notebook still has active notarizations")
	// ErrPreviousNotebookNotSealed is returned when a close runs ahead of
	// its predecessor. Notebooks seal in number order.
	ErrPreviousNotebookNotSealed = errors.New("previous notebook not sealed yet")

	ErrTransferToLocalchainNotFound      = errors.New("transfer to localchain not found")
	ErrTransferToLocalchainInvalidAmount = errors.New("transfer to localchain amount does not match")
	ErrTransferToLocalchainExpired       = errors.New("transfer to localchain expired")
	ErrDuplicateChainTransfer            = errors.New("duplicate chain transfer")
	ErrMaxNotebookChainTransfersReached  = errors.New("max notebook chain transfers reached")

	ErrDuplicateAccountOrigin = errors.New("account origin already exists")
	ErrMissingAccountOrigin   = errors.New("account origin not found")

	ErrInvalidBalanceProofRequested    = errors.New("invalid balance proof requested")
	ErrInvalidNotebookStatusTransition = errors.New("invalid notebook status transition")
	ErrNotebookNotFound                = errors.New("notebook not found")
	ErrNoOpenNotebook                  = errors.New("no open notebook")
	ErrOpenNotebookExists              = errors.New("an open notebook already exists")
)

// IsRetryable reports whether err is a contention failure that may succeed
// when resubmitted.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrBusy) ||
		errors.Is(err, ErrLockTimeout) ||
		errors.Is(err, ErrNotebookStillActive) ||
		errors.Is(err, ErrPreviousNotebookNotSealed)
}

// BalanceChangeMismatchError reports a submission whose claimed previous
// state differs from the stored tip.
type BalanceChangeMismatchError struct {
	ChangeIndex          int
	StoredChangeNumber   uint32
	StoredBalance        *big.Int
	ProvidedChangeNumber uint32
	ProvidedBalance      *big.Int
	Reason               string
}

func (e *BalanceChangeMismatchError) Error() string {
	return fmt.Sprintf(
		"balance change %d mismatch (%s): stored change %d balance %s, provided change %d balance %s",
		e.ChangeIndex, e.Reason,
		e.StoredChangeNumber, bigString(e.StoredBalance),
		e.ProvidedChangeNumber, bigString(e.ProvidedBalance),
	)
}

func bigString(b *big.Int) string {
	if b == nil {
		return "0"
	}
	return b.String()
}
