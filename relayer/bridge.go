// Package relayer connects the notary to the base chain: it records inbound
// transfers and chain heights reported by the chain and publishes sealed
// notebook headers back to it.
package relayer

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/argonprotocol/notary/log"
	"github.com/argonprotocol/notary/storage"
	"github.com/argonprotocol/notary/types"
)

var logger = log.NewLogger("relayer")

// Finalizer marks closed notebooks final.
type Finalizer interface {
	ConfirmFinalized(ctx context.Context, notebookNumber types.NotebookNumber) error
}

type BridgeConfig struct {
	Ticker types.Ticker
	// TransferExpirationTicks is how long an inbound transfer without its own
	// expiration stays claimable. Zero keeps it claimable forever.
	TransferExpirationTicks types.Tick
	LockTimeout             time.Duration
}

type Bridge struct {
	config    BridgeConfig
	client    MainchainClient
	storage   *storage.Storage
	finalizer Finalizer
}

func NewBridge(config BridgeConfig, client MainchainClient, s *storage.Storage, finalizer Finalizer) *Bridge {
	return &Bridge{config: config, client: client, storage: s, finalizer: finalizer}
}

// Start follows base-chain blocks until ctx is done or the subscription
// fails.
func (b *Bridge) Start(ctx context.Context) error {
	sink := make(chan *Block, 16)
	sub, err := b.client.WatchBlocks(ctx, sink)
	if err != nil {
		return errors.Wrap(err, "watch blocks")
	}
	defer sub.Unsubscribe()

	logger.Info().Msg("watching base chain blocks")
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-sub.Err():
			return errors.Wrap(err, "block subscription")
		case block := <-sink:
			if err := b.HandleBlock(ctx, block); err != nil {
				logger.Error().Err(err).Uint32("block", block.Number).Msg("cannot handle block")
			}
		}
	}
}

// HandleBlock records a block's height and, once finalized, its inbound
// transfers and the notebooks it finalized.
func (b *Bridge) HandleBlock(ctx context.Context, block *Block) error {
	err := b.storage.Update(ctx, b.config.LockTimeout, func(tx *storage.Tx) error {
		if err := b.storage.ChainState.SetBestBlock(tx, block.Number); err != nil {
			return err
		}
		if !block.Finalized {
			return nil
		}
		if err := b.storage.ChainState.SetFinalizedBlock(tx, block.Number); err != nil {
			return err
		}
		for i := range block.Transfers {
			if err := b.recordTransfer(tx, block.Number, &block.Transfers[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, notebookNumber := range block.FinalizedNotebooks {
		err := b.finalizer.ConfirmFinalized(ctx, notebookNumber)
		if errors.Is(err, storage.ErrInvalidNotebookStatusTransition) {
			logger.Debug().Err(err).Uint32("notebook", notebookNumber).Msg("notebook not closed, skipping finality")
			continue
		}
		if err != nil {
			return err
		}
		logger.Info().Uint32("notebook", notebookNumber).Uint32("block", block.Number).Msg("notebook finalized")
	}
	return nil
}

// recordTransfer skips transfers already recorded, which happens when a
// reconnecting subscription replays blocks.
func (b *Bridge) recordTransfer(tx *storage.Tx, number types.BlockNumber, transfer *InboundTransfer) error {
	expiration := transfer.ExpirationTick
	if expiration == 0 && b.config.TransferExpirationTicks > 0 {
		expiration = b.config.Ticker.Current() + b.config.TransferExpirationTicks
	}
	err := b.storage.ChainTransfers.RecordTransferToLocalFromBlock(
		tx, number, transfer.AccountID, transfer.AccountNonce, transfer.Amount, expiration)
	if errors.Is(err, storage.ErrDuplicateChainTransfer) {
		logger.Debug().Str("account", transfer.AccountID.Hex()).Uint32("nonce", transfer.AccountNonce).
			Msg("inbound transfer already recorded")
		return nil
	}
	return err
}
