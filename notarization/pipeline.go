// Package notarization verifies and applies wallet submissions to the ledger.
package notarization

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/argonprotocol/notary/log"
	"github.com/argonprotocol/notary/metrics"
	"github.com/argonprotocol/notary/notebook"
	"github.com/argonprotocol/notary/storage"
	"github.com/argonprotocol/notary/types"
	"github.com/argonprotocol/notary/utils"
)

var logger = log.NewLogger("notarization")

type Config struct {
	NotaryID                     types.NotaryID
	MaxBalanceChanges            int
	MaxNotesPerChange            int
	MaxBlockVotes                int
	MaxChainTransfersPerNotebook uint32
	// LockTimeout bounds the whole apply transaction.
	LockTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		NotaryID:                     1,
		MaxBalanceChanges:            25,
		MaxNotesPerChange:            100,
		MaxBlockVotes:                100,
		MaxChainTransfersPerNotebook: 1000,
		LockTimeout:                  time.Second,
	}
}

type Pipeline struct {
	config     Config
	storage    *storage.Storage
	serializer *types.Serializer
}

func NewPipeline(config Config, s *storage.Storage, serializer *types.Serializer) *Pipeline {
	return &Pipeline{config: config, storage: s, serializer: serializer}
}

// Apply verifies a submission and applies it atomically to the open
// notebook. Nothing is written when it fails. Errors for which
// storage.IsRetryable holds may be resubmitted unchanged.
func (p *Pipeline) Apply(
	ctx context.Context,
	notaryID types.NotaryID,
	changes []types.BalanceChange,
	votes []types.BlockVote,
) (*types.BalanceChangeResult, error) {
	start := time.Now()
	result, err := p.apply(ctx, notaryID, changes, votes)
	metrics.ObserveSince(metrics.NotarizationDuration, start)
	switch {
	case err == nil:
		metrics.Notarizations.WithLabelValues(metrics.ResultAccepted).Inc()
		metrics.BalanceChanges.Add(float64(len(changes)))
		countChainTransfers(changes)
		if logger.IsDebugEnabled() {
			logger.Debug().Uint32("notebook", result.NotebookNumber).Int("changes", len(changes)).
				Int("votes", len(votes)).Dur("took", time.Since(start)).Msg("notarization applied")
		}
	case storage.IsRetryable(err):
		metrics.Notarizations.WithLabelValues(metrics.ResultBusy).Inc()
		logger.Debug().Err(err).Msg("notarization busy")
	default:
		metrics.Notarizations.WithLabelValues(metrics.ResultRejected).Inc()
		logger.Debug().Err(err).Msg("notarization rejected")
	}
	return result, err
}

func (p *Pipeline) apply(
	ctx context.Context,
	notaryID types.NotaryID,
	changes []types.BalanceChange,
	votes []types.BlockVote,
) (*types.BalanceChangeResult, error) {
	if err := p.verifyStateless(notaryID, changes, votes); err != nil {
		return nil, err
	}

	result := &types.BalanceChangeResult{}
	err := p.storage.Update(ctx, p.config.LockTimeout, func(tx *storage.Tx) error {
		notebookNumber, tick, err := p.storage.NotebookStatus.LockOpenForAppending(tx)
		if err != nil {
			return err
		}
		result.NotebookNumber = notebookNumber
		result.Tick = tick
		result.NewAccountOrigins = nil

		for i := range changes {
			origin, err := p.applyChange(tx, notebookNumber, tick, i, &changes[i])
			if err != nil {
				return err
			}
			if origin != nil {
				result.NewAccountOrigins = append(result.NewAccountOrigins, *origin)
			}
		}
		return p.storage.Notarizations.Append(tx, notebookNumber, &types.Notarization{
			BalanceChanges: changes,
			BlockVotes:     votes,
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (p *Pipeline) verifyStateless(notaryID types.NotaryID, changes []types.BalanceChange, votes []types.BlockVote) error {
	if notaryID != p.config.NotaryID {
		return errors.Wrapf(ErrInvalidNotaryUsed, "notary %d, expected %d", notaryID, p.config.NotaryID)
	}
	if len(changes) == 0 {
		return ErrEmptyNotarization
	}
	if p.config.MaxBalanceChanges > 0 && len(changes) > p.config.MaxBalanceChanges {
		return errors.Wrapf(ErrTooManyBalanceChanges, "%d > %d", len(changes), p.config.MaxBalanceChanges)
	}
	if p.config.MaxBlockVotes > 0 && len(votes) > p.config.MaxBlockVotes {
		return errors.Wrapf(ErrTooManyBlockVotes, "%d > %d", len(votes), p.config.MaxBlockVotes)
	}
	for i := range changes {
		if p.config.MaxNotesPerChange > 0 && len(changes[i].Notes) > p.config.MaxNotesPerChange {
			return changeError(i, ErrTooManyNotes)
		}
	}
	if err := VerifyChangesetAllocation(changes, votes); err != nil {
		return err
	}
	for i := range changes {
		if !utils.BalanceChangeSigIsValid(&changes[i]) {
			return changeError(i, ErrInvalidSignature)
		}
	}
	for i := range votes {
		if !utils.BlockVoteSigIsValid(&votes[i]) {
			return errors.Wrapf(ErrInvalidBlockVote, "vote %d signature", i)
		}
	}
	return nil
}

// applyChange locks and updates one account. It returns the origin minted
// for the account, if this is its first change.
func (p *Pipeline) applyChange(
	tx *storage.Tx,
	notebookNumber types.NotebookNumber,
	tick types.Tick,
	i int,
	change *types.BalanceChange,
) (*types.NewAccountOrigin, error) {
	var minted *types.NewAccountOrigin
	origin, err := p.storage.AccountOrigins.Get(tx, change.AccountID, change.AccountType)
	if err != nil {
		return nil, changeError(i, err)
	}
	if origin == nil {
		if change.ChangeNumber != 1 {
			return nil, changeError(i, storage.ErrMissingAccountOrigin)
		}
		origin, err = p.storage.AccountOrigins.Insert(tx, notebookNumber, change.AccountID, change.AccountType)
		if err != nil {
			return nil, changeError(i, err)
		}
		minted = &types.NewAccountOrigin{
			AccountID:   change.AccountID,
			AccountType: change.AccountType,
			AccountUID:  origin.AccountUID,
		}
	}

	_, err = p.storage.BalanceTips.Lock(
		tx,
		change.AccountID,
		change.AccountType,
		change.ChangeNumber,
		bigOrZero(change.PreviousBalance),
		*origin,
		i,
		change.ChannelHoldNote,
	)
	if err != nil {
		return nil, changeError(i, err)
	}

	if change.PreviousBalanceProof != nil {
		if err := p.verifyPreviousBalanceProof(tx, notebookNumber, change, *origin); err != nil {
			return nil, changeError(i, err)
		}
	}

	state := &changeState{
		tx:             tx,
		notebookNumber: notebookNumber,
		tick:           tick,
		changeIndex:    i,
		change:         change,
		hold:           change.ChannelHoldNote,
	}
	for j := range change.Notes {
		note := &change.Notes[j]
		handler, ok := noteHandlers[note.Type]
		if !ok {
			return nil, noteError(i, j, ErrInvalidNoteType)
		}
		if err := handler(p, state, j, note); err != nil {
			return nil, noteError(i, j, err)
		}
	}

	err = p.storage.BalanceTips.Update(
		tx,
		change.AccountID,
		change.AccountType,
		change.ChangeNumber,
		bigOrZero(change.Balance),
		notebookNumber,
		*origin,
		state.hold,
	)
	if err != nil {
		return nil, changeError(i, err)
	}
	return minted, nil
}

// verifyPreviousBalanceProof checks the proof that the claimed previous state
// was committed by an earlier notebook of this notary. A proof pointing at
// the open notebook cannot be checked yet and is accepted as is.
func (p *Pipeline) verifyPreviousBalanceProof(
	tx *storage.Tx,
	notebookNumber types.NotebookNumber,
	change *types.BalanceChange,
	origin types.AccountOrigin,
) error {
	proof := change.PreviousBalanceProof
	if proof.NotaryID != p.config.NotaryID {
		return errors.Wrapf(ErrCrossNotaryProofsNotImplemented, "notary %d", proof.NotaryID)
	}
	if proof.NotebookNumber == notebookNumber {
		return nil
	}
	if proof.NotebookNumber > notebookNumber {
		return errors.Wrapf(ErrInvalidPreviousBalanceProof, "notebook %d is in the future", proof.NotebookNumber)
	}
	header, err := p.storage.Headers.GetHeader(tx, proof.NotebookNumber)
	if err != nil {
		if errors.Is(err, storage.ErrNotebookNotFound) {
			return errors.Wrapf(ErrInvalidPreviousBalanceProof, "notebook %d not sealed", proof.NotebookNumber)
		}
		return err
	}
	previous := &types.BalanceTip{
		AccountID:       change.AccountID,
		AccountType:     change.AccountType,
		ChangeNumber:    change.ChangeNumber - 1,
		Balance:         bigOrZero(change.PreviousBalance),
		AccountOrigin:   origin,
		ChannelHoldNote: change.ChannelHoldNote,
	}
	if !notebook.VerifyBalanceProof(p.serializer, previous, proof, header.ChangedAccountsRoot) {
		return errors.Wrapf(ErrInvalidPreviousBalanceProof, "notebook %d", proof.NotebookNumber)
	}
	return nil
}

func countChainTransfers(changes []types.BalanceChange) {
	for i := range changes {
		for j := range changes[i].Notes {
			switch changes[i].Notes[j].Type {
			case types.NoteClaimFromMainchain:
				metrics.ChainTransfers.WithLabelValues("to_localchain").Inc()
			case types.NoteSendToMainchain:
				metrics.ChainTransfers.WithLabelValues("to_mainchain").Inc()
			}
		}
	}
}
