package relayer

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/argonprotocol/notary/types"
)

var ErrPublishQueueFull = errors.New("header publish queue full")

// Publisher submits sealed notebook headers to the base chain in close
// order. It is a notebook.Archiver so the closer hands it every header.
type Publisher struct {
	client        MainchainClient
	queue         chan *types.SignedNotebookHeader
	retryInterval time.Duration
}

func NewPublisher(client MainchainClient, queueSize int, retryInterval time.Duration) *Publisher {
	return &Publisher{
		client:        client,
		queue:         make(chan *types.SignedNotebookHeader, queueSize),
		retryInterval: retryInterval,
	}
}

func (p *Publisher) Store(_ *types.Notebook, header *types.SignedNotebookHeader) error {
	select {
	case p.queue <- header:
		return nil
	default:
		return errors.Wrapf(ErrPublishQueueFull, "notebook %d", header.Header.NotebookNumber)
	}
}

// Start publishes queued headers until ctx is done. A header is retried
// until the base chain accepts it.
func (p *Publisher) Start(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case header := <-p.queue:
			if err := p.publish(ctx, header); err != nil {
				logger.Warn().Uint32("notebook", header.Header.NotebookNumber).Msg("stopped before header was published")
				return nil
			}
		}
	}
}

func (p *Publisher) publish(ctx context.Context, header *types.SignedNotebookHeader) error {
	number := header.Header.NotebookNumber
	for attempt := 1; ; attempt++ {
		err := p.client.SubmitNotebookHeader(ctx, header)
		if err == nil {
			logger.Info().Uint32("notebook", number).Int("attempts", attempt).Msg("notebook header published")
			return nil
		}
		logger.Warn().Err(err).Uint32("notebook", number).Int("attempt", attempt).Msg("cannot publish notebook header")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.retryInterval):
		}
	}
}
