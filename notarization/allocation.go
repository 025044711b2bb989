package notarization

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"github.com/argonprotocol/notary/types"
)

var ErrInvalidAccountType = errors.New("unknown account type")

// allowedNotes lists the notes each account type may carry. Base-chain
// transfers, channel holds and tax are paid from deposit accounts; tax
// accounts only move tax between themselves and fund votes.
var allowedNotes = map[types.AccountType]map[types.NoteType]bool{
	types.AccountTypeTax: {
		types.NoteSend:       true,
		types.NoteClaim:      true,
		types.NoteSendToVote: true,
	},
	types.AccountTypeDeposit: {
		types.NoteSend:               true,
		types.NoteClaim:              true,
		types.NoteClaimFromMainchain: true,
		types.NoteSendToMainchain:    true,
		types.NoteChannelHold:        true,
		types.NoteChannelHoldSettle:  true,
		types.NoteChannelHoldClaim:   true,
		types.NoteTax:                true,
	},
}

type claimRef struct {
	account     common.Address
	changeIndex int
	noteIndex   int
}

// sendPool pairs the sends and claims of one account type.
type sendPool struct {
	sent       *big.Int
	claimed    *big.Int
	hasSends   bool
	restricted bool
	recipients map[common.Address]bool
	claims     []claimRef
}

func newSendPool() *sendPool {
	return &sendPool{
		sent:       new(big.Int),
		claimed:    new(big.Int),
		restricted: true,
		recipients: make(map[common.Address]bool),
	}
}

func (p *sendPool) send(note *types.Note) {
	p.sent.Add(p.sent, note.Value())
	p.hasSends = true
	if len(note.To) == 0 {
		p.restricted = false
	}
	for _, to := range note.To {
		p.recipients[to] = true
	}
}

func (p *sendPool) unrestrictedSend(amount *big.Int) {
	p.sent.Add(p.sent, amount)
	p.hasSends = true
	p.restricted = false
}

func (p *sendPool) claim(account common.Address, changeIndex, noteIndex int, amount *big.Int) {
	p.claimed.Add(p.claimed, amount)
	p.claims = append(p.claims, claimRef{account: account, changeIndex: changeIndex, noteIndex: noteIndex})
}

func (p *sendPool) verify(notNetZero error) error {
	if p.sent.Cmp(p.claimed) != 0 {
		return errors.Wrapf(notNetZero, "sent %s, claimed %s", p.sent, p.claimed)
	}
	if !p.hasSends || !p.restricted {
		return nil
	}
	for _, c := range p.claims {
		if !p.recipients[c.account] {
			return noteError(c.changeIndex, c.noteIndex, ErrInvalidNoteRecipients)
		}
	}
	return nil
}

type allocation struct {
	deposit      *sendPool
	tax          *sendPool
	voteFunds    *big.Int
	holdSettles  map[common.Address]*big.Int
	holdClaims   map[common.Address]*big.Int
	holdClaimRef map[common.Address]claimRef
}

func addTo(m map[common.Address]*big.Int, account common.Address, amount *big.Int) {
	if v, ok := m[account]; ok {
		v.Add(v, amount)
		return
	}
	m[account] = new(big.Int).Set(amount)
}

// VerifyChangesetAllocation checks that a submission conserves value without
// touching storage: every balance equals its previous balance plus credits
// minus debits, sends match claims per account type, channel hold settles
// match the claims of their recipients and votes are funded.
func VerifyChangesetAllocation(changes []types.BalanceChange, votes []types.BlockVote) error {
	a := &allocation{
		deposit:      newSendPool(),
		tax:          newSendPool(),
		voteFunds:    new(big.Int),
		holdSettles:  make(map[common.Address]*big.Int),
		holdClaims:   make(map[common.Address]*big.Int),
		holdClaimRef: make(map[common.Address]claimRef),
	}
	for i := range changes {
		if err := a.addChange(i, &changes[i]); err != nil {
			return err
		}
	}

	if err := a.deposit.verify(ErrBalanceChangeNotNetZero); err != nil {
		return err
	}
	if err := a.tax.verify(ErrTaxBalanceChangeNotNetZero); err != nil {
		return err
	}
	for account, claimed := range a.holdClaims {
		settled, ok := a.holdSettles[account]
		if !ok {
			ref := a.holdClaimRef[account]
			return noteError(ref.changeIndex, ref.noteIndex, ErrInvalidChannelHoldClaimer)
		}
		if settled.Cmp(claimed) != 0 {
			return errors.Wrapf(ErrChannelHoldNotNetZero, "%s settled %s, claimed %s", account.Hex(), settled, claimed)
		}
	}
	for account, settled := range a.holdSettles {
		if _, ok := a.holdClaims[account]; !ok {
			return errors.Wrapf(ErrChannelHoldNotNetZero, "%s settled %s, claimed 0", account.Hex(), settled)
		}
	}

	power := new(big.Int)
	for i := range votes {
		if votes[i].PowerOrZero().Sign() <= 0 {
			return errors.Wrapf(ErrInvalidBlockVote, "vote %d has no power", i)
		}
		power.Add(power, votes[i].Power)
	}
	if power.Cmp(a.voteFunds) > 0 {
		return errors.Wrapf(ErrInsufficientBlockVoteFunds, "power %s, funds %s", power, a.voteFunds)
	}
	return nil
}

func (a *allocation) pool(accountType types.AccountType) *sendPool {
	if accountType == types.AccountTypeTax {
		return a.tax
	}
	return a.deposit
}

func (a *allocation) addChange(i int, change *types.BalanceChange) error {
	if change.ChangeNumber == 0 {
		return changeError(i, ErrInvalidChangeNumber)
	}
	allowed, ok := allowedNotes[change.AccountType]
	if !ok {
		return changeError(i, ErrInvalidAccountType)
	}
	balance := bigOrZero(change.Balance)
	previous := bigOrZero(change.PreviousBalance)
	if balance.Sign() < 0 || previous.Sign() < 0 {
		return changeError(i, ErrNegativeBalance)
	}
	hold := change.ChannelHoldNote
	if hold != nil && (hold.Type != types.NoteChannelHold || hold.Value().Sign() <= 0) {
		return changeError(i, ErrInvalidChannelHoldNote)
	}

	credits, debits := new(big.Int), new(big.Int)
	settled := false
	var opened *types.Note
	for j := range change.Notes {
		note := &change.Notes[j]
		if !note.Type.Valid() {
			return noteError(i, j, ErrInvalidNoteType)
		}
		if note.Value().Sign() <= 0 {
			return noteError(i, j, ErrInvalidNoteAmount)
		}
		if !allowed[note.Type] {
			return noteError(i, j, errors.Wrapf(ErrAccountTypeNoteMismatch, "%s on %s account", note.Type, change.AccountType))
		}

		switch note.Type {
		case types.NoteSend:
			a.pool(change.AccountType).send(note)
		case types.NoteClaim:
			a.pool(change.AccountType).claim(change.AccountID, i, j, note.Value())
		case types.NoteTax:
			a.tax.unrestrictedSend(note.Value())
		case types.NoteSendToVote:
			a.voteFunds.Add(a.voteFunds, note.Value())
		case types.NoteChannelHold:
			if (hold != nil && !settled) || opened != nil || note.Recipient == (common.Address{}) {
				return noteError(i, j, ErrInvalidChannelHoldNote)
			}
			opened = note
		case types.NoteChannelHoldSettle:
			if hold == nil {
				return noteError(i, j, ErrChannelHoldNotFound)
			}
			if settled || note.Value().Cmp(hold.Value()) > 0 {
				return noteError(i, j, ErrInvalidChannelHoldNote)
			}
			settled = true
			addTo(a.holdSettles, hold.Recipient, note.Value())
		case types.NoteChannelHoldClaim:
			addTo(a.holdClaims, change.AccountID, note.Value())
			if _, ok := a.holdClaimRef[change.AccountID]; !ok {
				a.holdClaimRef[change.AccountID] = claimRef{account: change.AccountID, changeIndex: i, noteIndex: j}
			}
		}

		if note.Type.IsCredit() {
			credits.Add(credits, note.Value())
		}
		if note.Type.IsDebit() {
			debits.Add(debits, note.Value())
		}
	}

	expected := new(big.Int).Add(previous, credits)
	expected.Sub(expected, debits)
	if expected.Cmp(balance) != 0 {
		return changeError(i, errors.Wrapf(ErrBalanceChangeInvalid, "expected %s, got %s", expected, balance))
	}
	if hold != nil && !settled && balance.Cmp(hold.Value()) < 0 {
		return changeError(i, ErrChannelHoldFundsLocked)
	}
	if opened != nil && balance.Cmp(opened.Value()) < 0 {
		return changeError(i, ErrChannelHoldFundsLocked)
	}
	return nil
}

func bigOrZero(b *big.Int) *big.Int {
	if b == nil {
		return new(big.Int)
	}
	return b
}
