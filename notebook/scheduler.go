package notebook

import (
	"context"
	"time"

	"github.com/argonprotocol/notary/metrics"
	"github.com/argonprotocol/notary/storage"
	"github.com/argonprotocol/notary/types"
)

// Start runs close passes every CloseInterval until ctx is done.
func (c *Closer) Start(ctx context.Context) error {
	interval := c.config.CloseInterval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Info().Dur("interval", interval).Msg("notebook closer started")
	for {
		if err := c.RunOnce(ctx); err != nil {
			logger.Warn().Err(err).Msg("close pass failed")
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// RunOnce opens the genesis notebook if needed, steps up an expired open
// notebook, seals ReadyForClose notebooks in order and expires stale inbound
// transfers. A deferred close holds back every later notebook.
func (c *Closer) RunOnce(ctx context.Context) error {
	now := time.Now()
	if err := c.EnsureGenesis(ctx, now); err != nil {
		return err
	}
	if _, err := c.StepUp(ctx, now); err != nil {
		return err
	}

	var ready []*storage.NotebookStatusRow
	if err := c.storage.View(func(tx *storage.Tx) error {
		var err error
		ready, err = c.storage.NotebookStatus.ListWithStatus(tx, types.NotebookReadyForClose)
		return err
	}); err != nil {
		return err
	}
	for _, row := range ready {
		if _, err := c.CloseNotebook(ctx, row.NotebookNumber); err != nil {
			if storage.IsRetryable(err) {
				logger.Debug().Err(err).Uint32("notebook", row.NotebookNumber).Msg("close deferred")
				break
			}
			return err
		}
	}

	return c.storage.Update(ctx, c.config.LockTimeout, func(tx *storage.Tx) error {
		expired, err := c.storage.ChainTransfers.ExpirePending(tx, c.config.Ticker.TickAt(now))
		for _, transfer := range expired {
			logger.Info().Str("account", transfer.AccountID.Hex()).Uint32("nonce", transfer.AccountNonce).
				Str("amount", transfer.Amount.String()).Msg("inbound transfer expired unclaimed")
		}
		return err
	})
}

// EnsureGenesis opens notebook 1 on an empty ledger.
func (c *Closer) EnsureGenesis(ctx context.Context, now time.Time) error {
	return c.storage.Update(ctx, c.config.LockTimeout, func(tx *storage.Tx) error {
		if _, ok, err := c.storage.NotebookStatus.OpenNotebook(tx); err != nil || ok {
			return err
		}
		tick := c.config.Ticker.TickAt(now)
		if err := c.storage.NotebookStatus.Create(tx, 1, tick, c.config.Ticker.TickEnd(tick)); err != nil {
			return err
		}
		metrics.OpenNotebook.Set(1)
		logger.Info().Uint32("tick", tick).Msg("genesis notebook opened")
		return nil
	})
}

// StepUp moves an expired open notebook to ReadyForClose and opens its
// successor for the current tick. It returns the notebook now ready, or zero.
func (c *Closer) StepUp(ctx context.Context, now time.Time) (types.NotebookNumber, error) {
	var stepped types.NotebookNumber
	tick := c.config.Ticker.TickAt(now)
	err := c.storage.Update(ctx, c.config.LockTimeout, func(tx *storage.Tx) error {
		var err error
		stepped, err = c.storage.NotebookStatus.StepUpExpiredOpen(tx, now, tick, c.config.Ticker.TickEnd(tick))
		return err
	})
	if err != nil {
		return 0, err
	}
	if stepped != 0 {
		metrics.OpenNotebook.Set(float64(stepped + 1))
		logger.Debug().Uint32("notebook", stepped).Uint32("next_tick", tick).Msg("open notebook expired")
	}
	return stepped, nil
}

// ConfirmFinalized marks a closed notebook final once the base chain has
// finalized it.
func (c *Closer) ConfirmFinalized(ctx context.Context, notebookNumber types.NotebookNumber) error {
	err := c.storage.Update(ctx, c.config.LockTimeout, func(tx *storage.Tx) error {
		return c.storage.NotebookStatus.NextStep(tx, notebookNumber, types.NotebookClosed)
	})
	if err != nil {
		return err
	}
	metrics.FinalizedNotebook.Set(float64(notebookNumber))
	return nil
}
