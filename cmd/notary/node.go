package main

import (
	"crypto/ecdsa"

	"github.com/argonprotocol/notary/config"
	"github.com/argonprotocol/notary/notarization"
	"github.com/argonprotocol/notary/notebook"
	"github.com/argonprotocol/notary/storage"
	"github.com/argonprotocol/notary/types"
)

// node is the ledger core of a running notary. Pipeline is the entry point a
// submission transport hands balance changes to.
type node struct {
	Storage  *storage.Storage
	Pipeline *notarization.Pipeline
	Closer   *notebook.Closer
}

func newNode(conf *config.Config, key *ecdsa.PrivateKey, s *storage.Storage, archive notebook.Archiver) *node {
	serializer := types.MustNewSerializer()
	pipeline := notarization.NewPipeline(notarization.Config{
		NotaryID:                     conf.NotaryID,
		MaxBalanceChanges:            conf.MaxBalanceChanges,
		MaxNotesPerChange:            conf.MaxNotesPerChange,
		MaxBlockVotes:                conf.MaxBlockVotes,
		MaxChainTransfersPerNotebook: conf.MaxChainTransfersPerNotebook,
		LockTimeout:                  conf.LockTimeout,
	}, s, serializer)
	closer := notebook.NewCloser(notebook.Config{
		NotaryID:        conf.NotaryID,
		NotaryKey:       key,
		Ticker:          conf.Ticker(),
		PinSafetyOffset: conf.PinSafetyOffset,
		CloseInterval:   conf.CloseInterval,
		LockTimeout:     conf.LockTimeout,
	}, s, serializer, archive)
	return &node{Storage: s, Pipeline: pipeline, Closer: closer}
}
