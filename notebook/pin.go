package notebook

import (
	"github.com/argonprotocol/notary/storage"
	"github.com/argonprotocol/notary/types"
)

// computePin is the base-chain block the notebook may safely reference:
// the best block less the safety offset, never below the finalized block nor
// below the pin of the previous notebook.
func computePin(best, finalized, offset, previous types.BlockNumber) types.BlockNumber {
	var pin types.BlockNumber
	if best > offset {
		pin = best - offset
	}
	if pin < finalized {
		pin = finalized
	}
	if pin < previous {
		pin = previous
	}
	return pin
}

// pinFor pins a notebook against the chain heights and the header of the
// notebook sealed before it, nil for the genesis notebook.
func (c *Closer) pinFor(chain *storage.ChainState, previous *types.NotebookHeader) types.BlockNumber {
	var previousPin types.BlockNumber
	if previous != nil {
		previousPin = previous.PinnedToBlockNumber
	}
	return computePin(chain.BestBlockNumber, chain.FinalizedBlockNumber, c.config.PinSafetyOffset, previousPin)
}
