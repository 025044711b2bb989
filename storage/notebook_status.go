package storage

import (
	"time"

	"github.com/pkg/errors"

	"github.com/argonprotocol/notary/types"
)

type notebookStatusRecord struct {
	Status    types.NotebookStatus
	Tick      types.Tick
	EndTime   uint64
	ChangedAt uint64
}

// NotebookStatusRow is the lifecycle state of one notebook.
type NotebookStatusRow struct {
	NotebookNumber types.NotebookNumber
	Status         types.NotebookStatus
	Tick           types.Tick
	EndTime        time.Time
	ChangedAt      time.Time
}

func (r *notebookStatusRecord) row(notebookNumber types.NotebookNumber) *NotebookStatusRow {
	return &NotebookStatusRow{
		NotebookNumber: notebookNumber,
		Status:         r.Status,
		Tick:           r.Tick,
		EndTime:        unixNano(r.EndTime),
		ChangedAt:      unixNano(r.ChangedAt),
	}
}

// NotebookStatusStore drives the notebook lifecycle
// Open -> ReadyForClose -> Closed -> Finalized.
//
// The open pointer names the single Open notebook. Appenders read it and the
// notebook's status row, so any status change committed under them fails
// their commit. Appenders only blind-write the append marker, which keeps
// them from conflicting with one another while the closer, which reads the
// marker, loses to any append that commits during the close.
type NotebookStatusStore struct{}

func (s *NotebookStatusStore) get(tx *Tx, notebookNumber types.NotebookNumber) (*notebookStatusRecord, error) {
	record := new(notebookStatusRecord)
	ok, err := getRLP(tx, nsNotebookStatus, uint32Key(notebookNumber), record)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.Wrapf(ErrNotebookNotFound, "notebook %d", notebookNumber)
	}
	return record, nil
}

func (s *NotebookStatusStore) put(tx *Tx, notebookNumber types.NotebookNumber, record *notebookStatusRecord) error {
	record.ChangedAt = uint64(time.Now().UnixNano())
	return setRLP(tx, nsNotebookStatus, uint32Key(notebookNumber), record)
}

func (s *NotebookStatusStore) Get(tx *Tx, notebookNumber types.NotebookNumber) (*NotebookStatusRow, error) {
	record, err := s.get(tx, notebookNumber)
	if err != nil {
		return nil, err
	}
	return record.row(notebookNumber), nil
}

// OpenNotebook returns the number of the Open notebook, or false when the
// ledger has no notebooks yet.
func (s *NotebookStatusStore) OpenNotebook(tx *Tx) (types.NotebookNumber, bool, error) {
	data, ok, err := tx.Get(nsOpenNotebook, keyOpenNotebook)
	if err != nil || !ok {
		return 0, false, err
	}
	return parseUint32Key(data), true, nil
}

// Create opens a notebook. It fails while another notebook is Open.
func (s *NotebookStatusStore) Create(tx *Tx, notebookNumber types.NotebookNumber, tick types.Tick, endTime time.Time) error {
	open, ok, err := s.OpenNotebook(tx)
	if err != nil {
		return err
	}
	if ok {
		current, err := s.get(tx, open)
		if err != nil {
			return err
		}
		if current.Status == types.NotebookOpen {
			return errors.Wrapf(ErrOpenNotebookExists, "notebook %d", open)
		}
	}
	_, exists, err := tx.Get(nsNotebookStatus, uint32Key(notebookNumber))
	if err != nil {
		return err
	}
	if exists {
		return errors.Wrapf(ErrInvalidNotebookStatusTransition, "notebook %d already exists", notebookNumber)
	}
	if err := s.put(tx, notebookNumber, &notebookStatusRecord{
		Status:  types.NotebookOpen,
		Tick:    tick,
		EndTime: uint64(endTime.UnixNano()),
	}); err != nil {
		return err
	}
	logger.Debug().Uint32("notebook", notebookNumber).Uint32("tick", tick).Time("end", endTime).Msg("notebook opened")
	return tx.Set(nsOpenNotebook, keyOpenNotebook, uint32Key(notebookNumber))
}

// LockOpenForAppending returns the Open notebook and registers the
// transaction as one of its appenders.
func (s *NotebookStatusStore) LockOpenForAppending(tx *Tx) (types.NotebookNumber, types.Tick, error) {
	if err := tx.CheckLockBudget(); err != nil {
		return 0, 0, err
	}
	notebookNumber, ok, err := s.OpenNotebook(tx)
	if err != nil {
		return 0, 0, err
	}
	if !ok {
		return 0, 0, ErrNoOpenNotebook
	}
	record, err := s.get(tx, notebookNumber)
	if err != nil {
		return 0, 0, err
	}
	if record.Status != types.NotebookOpen {
		return 0, 0, errors.Wrapf(ErrBusy, "notebook %d is %s", notebookNumber, record.Status)
	}
	if err := tx.Set(nsAppendMarker, uint32Key(notebookNumber), nil); err != nil {
		return 0, 0, err
	}
	return notebookNumber, record.Tick, nil
}

// LockForClose claims a ReadyForClose notebook for sealing. The close commit
// fails if an append to the notebook commits first.
func (s *NotebookStatusStore) LockForClose(tx *Tx, notebookNumber types.NotebookNumber) (*NotebookStatusRow, error) {
	if err := tx.CheckLockBudget(); err != nil {
		return nil, errors.Wrapf(ErrNotebookStillActive, "notebook %d: %v", notebookNumber, err)
	}
	record, err := s.get(tx, notebookNumber)
	if err != nil {
		return nil, err
	}
	if record.Status != types.NotebookReadyForClose {
		return nil, errors.Wrapf(ErrInvalidNotebookStatusTransition,
			"notebook %d is %s, not %s", notebookNumber, record.Status, types.NotebookReadyForClose)
	}
	if _, _, err := tx.Get(nsAppendMarker, uint32Key(notebookNumber)); err != nil {
		return nil, err
	}
	return record.row(notebookNumber), nil
}

// StepUpExpiredOpen moves the Open notebook to ReadyForClose once its end time
// has passed and opens the next notebook. It returns the number of the
// notebook now ReadyForClose, or zero when nothing expired.
func (s *NotebookStatusStore) StepUpExpiredOpen(
	tx *Tx,
	now time.Time,
	nextTick types.Tick,
	nextEndTime time.Time,
) (types.NotebookNumber, error) {
	notebookNumber, ok, err := s.OpenNotebook(tx)
	if err != nil || !ok {
		return 0, err
	}
	record, err := s.get(tx, notebookNumber)
	if err != nil {
		return 0, err
	}
	if record.Status != types.NotebookOpen || now.Before(unixNano(record.EndTime)) {
		return 0, nil
	}
	if err := s.nextStep(tx, notebookNumber, record, types.NotebookOpen); err != nil {
		return 0, err
	}
	if err := s.Create(tx, notebookNumber+1, nextTick, nextEndTime); err != nil {
		return 0, err
	}
	return notebookNumber, nil
}

// NextStep moves a sealed-side notebook one status forward. Open notebooks
// only leave Open through StepUpExpiredOpen.
func (s *NotebookStatusStore) NextStep(tx *Tx, notebookNumber types.NotebookNumber, from types.NotebookStatus) error {
	if from == types.NotebookOpen {
		return errors.Wrapf(ErrInvalidNotebookStatusTransition, "notebook %d: open notebooks step up on expiry", notebookNumber)
	}
	record, err := s.get(tx, notebookNumber)
	if err != nil {
		return err
	}
	return s.nextStep(tx, notebookNumber, record, from)
}

func (s *NotebookStatusStore) nextStep(tx *Tx, notebookNumber types.NotebookNumber, record *notebookStatusRecord, from types.NotebookStatus) error {
	next, ok := from.Next()
	if record.Status != from || !ok {
		return errors.Wrapf(ErrInvalidNotebookStatusTransition,
			"notebook %d is %s, cannot step from %s", notebookNumber, record.Status, from)
	}
	record.Status = next
	if err := s.put(tx, notebookNumber, record); err != nil {
		return err
	}
	logger.Debug().Uint32("notebook", notebookNumber).Str("status", next.String()).Msg("notebook status changed")
	return nil
}

// ListWithStatus returns every notebook in the given status in ascending
// number order.
func (s *NotebookStatusStore) ListWithStatus(tx *Tx, status types.NotebookStatus) ([]*NotebookStatusRow, error) {
	keys, values, err := collect(tx, nsNotebookStatus, nil)
	if err != nil {
		return nil, err
	}
	var rows []*NotebookStatusRow
	for i, value := range values {
		record := new(notebookStatusRecord)
		if err := decodeRLP(value, record); err != nil {
			return nil, err
		}
		if record.Status == status {
			rows = append(rows, record.row(parseUint32Key(keys[i])))
		}
	}
	return rows, nil
}

func unixNano(n uint64) time.Time {
	return time.Unix(0, int64(n))
}
