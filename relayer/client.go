package relayer

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/pkg/errors"

	"github.com/argonprotocol/notary/types"
)

// InboundTransfer is a base-chain transfer to a localchain account of this
// notary.
type InboundTransfer struct {
	AccountID    common.Address `json:"accountId"`
	AccountNonce uint32         `json:"accountNonce"`
	Amount       *big.Int       `json:"amount"`
	// ExpirationTick is the last tick the transfer may be claimed in. Zero
	// leaves it to the bridge default.
	ExpirationTick types.Tick `json:"expirationTick"`
}

// Block is what the notary needs to know about one base-chain block.
// Transfers and finalized notebooks are only reported on finalized blocks.
type Block struct {
	Number             types.BlockNumber      `json:"number"`
	Finalized          bool                   `json:"finalized"`
	Transfers          []InboundTransfer      `json:"transfers"`
	FinalizedNotebooks []types.NotebookNumber `json:"finalizedNotebooks"`
}

// MainchainClient is the notary's connection to the base chain.
type MainchainClient interface {
	WatchBlocks(ctx context.Context, sink chan<- *Block) (event.Subscription, error)
	SubmitNotebookHeader(ctx context.Context, header *types.SignedNotebookHeader) error
}

// RPCClient speaks to a base-chain node over a websocket json-rpc endpoint.
type RPCClient struct {
	client   *rpc.Client
	notaryID types.NotaryID
}

func DialRPCClient(ctx context.Context, url string, notaryID types.NotaryID) (*RPCClient, error) {
	client, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s", url)
	}
	return &RPCClient{client: client, notaryID: notaryID}, nil
}

func (c *RPCClient) WatchBlocks(ctx context.Context, sink chan<- *Block) (event.Subscription, error) {
	return c.client.Subscribe(ctx, "notary", sink, "blocks", c.notaryID)
}

func (c *RPCClient) SubmitNotebookHeader(ctx context.Context, header *types.SignedNotebookHeader) error {
	return c.client.CallContext(ctx, nil, "notary_submitNotebookHeader", c.notaryID, header)
}

func (c *RPCClient) Close() {
	c.client.Close()
}
