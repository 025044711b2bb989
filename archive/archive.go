// Package archive keeps every sealed notebook in sqlite so headers and bodies
// can be downloaded by number after the ledger has moved on.
package archive

import (
	"database/sql"

	"github.com/ethereum/go-ethereum/rlp"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/argonprotocol/notary/log"
	"github.com/argonprotocol/notary/types"
)

var logger = log.NewLogger("archive")

var ErrNotFound = errors.New("notebook not archived")

const schema = `
CREATE TABLE IF NOT EXISTS notebooks (
	number      INTEGER PRIMARY KEY,
	tick        INTEGER NOT NULL,
	header_hash TEXT    NOT NULL,
	header      BLOB    NOT NULL,
	body        BLOB    NOT NULL
)`

type Archive struct {
	db *sql.DB
}

// Open opens or creates the archive at path.
func Open(path string) (*Archive, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrap(err, "open archive")
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "create archive schema")
	}
	return &Archive{db: db}, nil
}

// Store archives a sealed notebook. Storing the same notebook again replaces
// the previous copy.
func (a *Archive) Store(notebook *types.Notebook, header *types.SignedNotebookHeader) error {
	headerData, err := rlp.EncodeToBytes(header)
	if err != nil {
		return errors.Wrap(err, "encode header")
	}
	body, err := rlp.EncodeToBytes(notebook)
	if err != nil {
		return errors.Wrap(err, "encode notebook")
	}
	_, err = a.db.Exec(`
		INSERT OR REPLACE INTO notebooks (number, tick, header_hash, header, body)
		VALUES (?, ?, ?, ?, ?)`,
		header.Header.NotebookNumber, header.Header.Tick, header.Header.Hash().Hex(), headerData, body,
	)
	if err != nil {
		return errors.Wrapf(err, "archive notebook %d", header.Header.NotebookNumber)
	}
	logger.Debug().Uint32("notebook", header.Header.NotebookNumber).Int("bytes", len(body)).Msg("notebook archived")
	return nil
}

func (a *Archive) GetHeader(notebookNumber types.NotebookNumber) (*types.SignedNotebookHeader, error) {
	header := new(types.SignedNotebookHeader)
	if err := a.load("header", notebookNumber, header); err != nil {
		return nil, err
	}
	return header, nil
}

func (a *Archive) GetBody(notebookNumber types.NotebookNumber) (*types.Notebook, error) {
	notebook := new(types.Notebook)
	if err := a.load("body", notebookNumber, notebook); err != nil {
		return nil, err
	}
	return notebook, nil
}

func (a *Archive) load(column string, notebookNumber types.NotebookNumber, out interface{}) error {
	var data []byte
	err := a.db.QueryRow(`SELECT `+column+` FROM notebooks WHERE number = ?`, notebookNumber).Scan(&data)
	if err == sql.ErrNoRows {
		return errors.Wrapf(ErrNotFound, "notebook %d", notebookNumber)
	}
	if err != nil {
		return err
	}
	return errors.Wrapf(rlp.DecodeBytes(data, out), "decode notebook %d %s", notebookNumber, column)
}

// Latest returns the highest archived notebook number, or zero.
func (a *Archive) Latest() (types.NotebookNumber, error) {
	var latest sql.NullInt64
	if err := a.db.QueryRow(`SELECT MAX(number) FROM notebooks`).Scan(&latest); err != nil {
		return 0, err
	}
	return types.NotebookNumber(latest.Int64), nil
}

func (a *Archive) Close() error {
	return a.db.Close()
}
