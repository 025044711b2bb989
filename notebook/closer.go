// Package notebook seals notebooks and serves balance proofs against them.
package notebook

import (
	"context"
	"crypto/ecdsa"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"

	"github.com/argonprotocol/notary/log"
	"github.com/argonprotocol/notary/merkle"
	"github.com/argonprotocol/notary/metrics"
	"github.com/argonprotocol/notary/storage"
	"github.com/argonprotocol/notary/types"
	"github.com/argonprotocol/notary/utils"
	"github.com/argonprotocol/notary/validator"
)

var logger = log.NewLogger("notebook")

type Config struct {
	NotaryID        types.NotaryID
	NotaryKey       *ecdsa.PrivateKey
	Ticker          types.Ticker
	PinSafetyOffset types.BlockNumber
	CloseInterval   time.Duration
	// LockTimeout bounds the status probe of each close transaction.
	LockTimeout time.Duration
}

// Archiver receives every notebook once it is sealed.
type Archiver interface {
	Store(notebook *types.Notebook, header *types.SignedNotebookHeader) error
}

// Archivers hands a notebook to every archiver and reports the first
// failure.
type Archivers []Archiver

func (a Archivers) Store(notebook *types.Notebook, header *types.SignedNotebookHeader) error {
	var first error
	for _, archiver := range a {
		if err := archiver.Store(notebook, header); err != nil && first == nil {
			first = err
		}
	}
	return first
}

type Closer struct {
	config     Config
	storage    *storage.Storage
	serializer *types.Serializer
	validator  *validator.Validator
	archive    Archiver
}

func NewCloser(config Config, s *storage.Storage, serializer *types.Serializer, archive Archiver) *Closer {
	notary := crypto.PubkeyToAddress(config.NotaryKey.PublicKey)
	return &Closer{
		config:     config,
		storage:    s,
		serializer: serializer,
		validator:  validator.NewValidator(serializer, notary),
		archive:    archive,
	}
}

// sealed is a notebook built inside the close transaction.
type sealed struct {
	notebook        *types.Notebook
	headerSignature []byte
	leaves          []types.BalanceTip
}

// ErrSealedNotebookInvalid is returned when a freshly sealed notebook fails
// its own validation. Such a notebook is never archived or published.
var ErrSealedNotebookInvalid = errors.New("sealed notebook failed validation")

// CloseNotebook seals a ReadyForClose notebook. On failure the notebook stays
// ReadyForClose and the next pass retries it. Notebooks seal in number order.
func (c *Closer) CloseNotebook(ctx context.Context, notebookNumber types.NotebookNumber) (*types.SignedNotebookHeader, error) {
	start := time.Now()
	// Chain heights are read from their own snapshot so relayer block events
	// never conflict with the close.
	var chain *storage.ChainState
	if err := c.storage.View(func(tx *storage.Tx) error {
		var err error
		chain, err = c.storage.ChainState.Get(tx)
		return err
	}); err != nil {
		return nil, err
	}

	var result *sealed
	err := c.storage.Update(ctx, c.config.LockTimeout, func(tx *storage.Tx) error {
		var err error
		result, err = c.seal(tx, notebookNumber, chain)
		return err
	})
	if err != nil {
		if errors.Is(err, storage.ErrBusy) {
			return nil, errors.Wrapf(storage.ErrNotebookStillActive, "notebook %d: %v", notebookNumber, err)
		}
		return nil, err
	}
	metrics.ObserveSince(metrics.NotebookCloseDuration, start)
	metrics.NotebooksClosed.Inc()
	metrics.NotebookLeaves.Observe(float64(len(result.leaves)))

	header := &types.SignedNotebookHeader{Header: result.notebook.Header, Signature: result.headerSignature}
	logger.Info().
		Uint32("notebook", notebookNumber).
		Int("leaves", len(result.leaves)).
		Int("notarizations", len(result.notebook.Notarizations)).
		Int("transfers", len(header.Header.ChainTransfers)).
		Uint32("pin", header.Header.PinnedToBlockNumber).
		Dur("took", time.Since(start)).
		Msg("notebook closed")

	if err := c.validator.ValidateNotebook(result.notebook, result.leaves); err != nil {
		logger.Error().Err(err).Uint32("notebook", notebookNumber).Msg("sealed notebook failed validation, not archived")
		return nil, errors.Wrapf(ErrSealedNotebookInvalid, "notebook %d: %v", notebookNumber, err)
	}
	if c.archive != nil {
		if err := c.archive.Store(result.notebook, header); err != nil {
			logger.Warn().Err(err).Uint32("notebook", notebookNumber).Msg("cannot archive notebook")
		}
	}
	return header, nil
}

// previousSealed returns the header and secret of the notebook before
// notebookNumber, which must already be sealed. Both are zero for notebook 1.
func (c *Closer) previousSealed(tx *storage.Tx, notebookNumber types.NotebookNumber) (*types.NotebookHeader, common.Hash, error) {
	if notebookNumber <= 1 {
		return nil, common.Hash{}, nil
	}
	previous, err := c.storage.Headers.GetHeader(tx, notebookNumber-1)
	if errors.Is(err, storage.ErrNotebookNotFound) {
		return nil, common.Hash{}, errors.Wrapf(storage.ErrPreviousNotebookNotSealed,
			"notebook %d waits for %d", notebookNumber, notebookNumber-1)
	}
	if err != nil {
		return nil, common.Hash{}, err
	}
	secret, ok, err := c.storage.Headers.GetSecret(tx, notebookNumber-1)
	if err != nil {
		return nil, common.Hash{}, err
	}
	if !ok {
		return nil, common.Hash{}, errors.Wrapf(storage.ErrNotebookNotFound, "secret %d", notebookNumber-1)
	}
	return previous, secret, nil
}

func (c *Closer) seal(tx *storage.Tx, notebookNumber types.NotebookNumber, chain *storage.ChainState) (*sealed, error) {
	status, err := c.storage.NotebookStatus.LockForClose(tx, notebookNumber)
	if err != nil {
		return nil, err
	}
	// The lock budget bounds the status probe. Sealing itself runs unbounded.
	tx.ReleaseLockBudget()

	previous, parentSecret, err := c.previousSealed(tx, notebookNumber)
	if err != nil {
		return nil, err
	}
	pin := c.pinFor(chain, previous)
	notarizations, err := c.storage.Notarizations.List(tx, notebookNumber)
	if err != nil {
		return nil, err
	}

	tips, err := c.latestTips(tx, notarizations)
	if err != nil {
		return nil, err
	}
	leaves, err := EncodeLeaves(c.serializer, tips)
	if err != nil {
		return nil, err
	}
	changedOrigins := make([]types.AccountOrigin, len(tips))
	for i := range tips {
		changedOrigins[i] = tips[i].AccountOrigin
	}

	newOrigins, err := c.storage.AccountOrigins.ListForNotebook(tx, notebookNumber)
	if err != nil {
		return nil, err
	}
	transfers, err := c.storage.ChainTransfers.TakeForNotebook(tx, notebookNumber)
	if err != nil {
		return nil, err
	}
	votes, err := validator.AggregateVotes(c.serializer, notarizations)
	if err != nil {
		return nil, err
	}

	secret, err := newSecret()
	if err != nil {
		return nil, errors.Wrap(err, "generate notebook secret")
	}
	notebook := &types.Notebook{
		Header: types.NotebookHeader{
			Version:               types.NotebookVersion,
			NotaryID:              c.config.NotaryID,
			NotebookNumber:        notebookNumber,
			Tick:                  status.Tick,
			Tax:                   validator.TaxTotal(notarizations),
			PinnedToBlockNumber:   pin,
			ChangedAccountsRoot:   merkle.Root(leaves),
			ChangedAccountOrigins: changedOrigins,
			ChainTransfers:        transfers,
			BlockVotesRoot:        votes.Root,
			BlockVotesCount:       votes.Count,
			BlockVotingPower:      votes.Power,
			BlocksWithVotes:       votes.Blocks,
			SecretHash:            SecretHash(secret, notebookNumber),
			ParentSecret:          parentSecret,
		},
		Notarizations:     notarizations,
		NewAccountOrigins: newOrigins,
	}
	headerSignature, err := utils.SignHeader(c.config.NotaryKey, &notebook.Header)
	if err != nil {
		return nil, errors.Wrap(err, "sign header")
	}
	notebook.Hash = notebook.ContentHash()
	if notebook.Signature, err = utils.SignData(c.config.NotaryKey, notebook.Hash.Bytes()); err != nil {
		return nil, errors.Wrap(err, "sign notebook")
	}

	if err := c.storage.Headers.Save(tx, notebook, headerSignature, tips, secret); err != nil {
		return nil, err
	}
	if err := c.storage.NotebookStatus.NextStep(tx, notebookNumber, types.NotebookReadyForClose); err != nil {
		return nil, err
	}
	return &sealed{notebook: notebook, headerSignature: headerSignature, leaves: tips}, nil
}

// latestTips keeps the last change of every account key and orders the
// resulting tips by account key.
func (c *Closer) latestTips(tx *storage.Tx, notarizations []types.Notarization) ([]types.BalanceTip, error) {
	latest := validator.LatestChanges(notarizations)
	tips := make([]types.BalanceTip, 0, len(latest))
	for key, change := range latest {
		origin, err := c.storage.AccountOrigins.Get(tx, key.AccountID, key.AccountType)
		if err != nil {
			return nil, err
		}
		if origin == nil {
			return nil, errors.Wrapf(storage.ErrMissingAccountOrigin, "%s", key)
		}
		tips = append(tips, change.Tip(*origin))
	}
	sort.Slice(tips, func(i, j int) bool {
		return tips[i].Key().Less(tips[j].Key())
	})
	return tips, nil
}
