package notarization

import (
	"github.com/argonprotocol/notary/storage"
	"github.com/argonprotocol/notary/types"
)

// changeState is the state of one balance change while its notes are applied.
type changeState struct {
	tx             *storage.Tx
	notebookNumber types.NotebookNumber
	tick           types.Tick
	changeIndex    int
	change         *types.BalanceChange
	// hold is the channel hold the account carries after the change.
	hold *types.Note
}

// noteHandler applies the storage side effects of one note. Value
// conservation is already verified by VerifyChangesetAllocation.
type noteHandler func(p *Pipeline, state *changeState, noteIndex int, note *types.Note) error

var noteHandlers = map[types.NoteType]noteHandler{
	types.NoteSend:               noopNote,
	types.NoteClaim:              noopNote,
	types.NoteClaimFromMainchain: claimFromMainchain,
	types.NoteSendToMainchain:    sendToMainchain,
	types.NoteChannelHold:        openChannelHold,
	types.NoteChannelHoldSettle:  settleChannelHold,
	types.NoteChannelHoldClaim:   noopNote,
	types.NoteTax:                noopNote,
	types.NoteSendToVote:         noopNote,
}

func noopNote(*Pipeline, *changeState, int, *types.Note) error {
	return nil
}

func claimFromMainchain(p *Pipeline, state *changeState, noteIndex int, note *types.Note) error {
	return p.storage.ChainTransfers.TakeAndRecordTransferLocal(
		state.tx,
		state.notebookNumber,
		state.tick,
		state.change.AccountID,
		note.AccountNonce,
		note.Value(),
		state.changeIndex,
		noteIndex,
	)
}

func sendToMainchain(p *Pipeline, state *changeState, noteIndex int, note *types.Note) error {
	return p.storage.ChainTransfers.RecordTransferToMainchain(
		state.tx,
		state.notebookNumber,
		state.change.AccountID,
		note.Value(),
		p.config.MaxChainTransfersPerNotebook,
	)
}

func openChannelHold(_ *Pipeline, state *changeState, _ int, note *types.Note) error {
	held := *note
	state.hold = &held
	return nil
}

func settleChannelHold(_ *Pipeline, state *changeState, _ int, _ *types.Note) error {
	state.hold = nil
	return nil
}
