package markov

import (
	"database/sql"
	"fmt"
	"io"
	"log/slog"
)

// SetupSchema initializes the tables used by Store in the provided database.
// It should be called once on a new database before any other operations are
// performed. It is idempotent and safe to call on an already-initialized
// database.
func SetupSchema(db *sql.DB) error {

	const (
		schemaModels = `
CREATE TABLE IF NOT EXISTS markov_models (
    model_id INTEGER PRIMARY KEY,
    model_name TEXT NOT NULL UNIQUE,
    model_order INTEGER NOT NULL
);
`
		schemaTransitions = `
CREATE TABLE IF NOT EXISTS markov_transitions (
    model_id INTEGER NOT NULL,
    state TEXT NOT NULL,
    seq INTEGER NOT NULL,
    successor TEXT NOT NULL,
    PRIMARY KEY (model_id, state, seq)
);
`
	)

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}

	// If the transaction succeeds, tx.Commit() will be called first, and the rollback will do nothing.
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	if _, err = tx.Exec(schemaModels); err != nil {
		return fmt.Errorf("could not create models schema: %w", err)
	}

	if _, err = tx.Exec(schemaTransitions); err != nil {
		return fmt.Errorf("could not create transitions schema: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("could not commit transaction: %w", err)
	}

	return nil
}

// Store persists named chains in a SQLite database. It holds the database
// connection and prepared SQL statements for the common lookups.
type Store struct {
	db                   *sql.DB
	stmtGetModelInfo     *sql.Stmt
	stmtGetModels        *sql.Stmt
	stmtAddModel         *sql.Stmt
	stmtLoadChain        *sql.Stmt
	stmtNextSeq          *sql.Stmt
	stmtModelStates      *sql.Stmt
	stmtModelTotal       *sql.Stmt
	stmtModelTerminals   *sql.Stmt
	stmtDeleteChain      *sql.Stmt
	stmtInsertTransition *sql.Stmt
	logger               *slog.Logger
}

// NewStore creates and returns a new Store. The schema must already exist,
// see SetupSchema. It pre-compiles all necessary SQL statements, returning
// an error if any preparation fails.
func NewStore(db *sql.DB) (*Store, error) {
	stmtGetModelInfo, err := db.Prepare(`SELECT model_id, model_order FROM markov_models WHERE model_name = ?;`)
	if err != nil {
		return nil, err
	}

	stmtGetModels, err := db.Prepare(`SELECT model_id, model_name, model_order FROM markov_models;`)
	if err != nil {
		return nil, err
	}

	stmtAddModel, err := db.Prepare(`INSERT INTO markov_models (model_name, model_order) VALUES (?, ?);`)
	if err != nil {
		return nil, err
	}

	stmtLoadChain, err := db.Prepare(`SELECT state, successor FROM markov_transitions WHERE model_id = ? ORDER BY state, seq;`)
	if err != nil {
		return nil, err
	}

	stmtNextSeq, err := db.Prepare(`SELECT coalesce(MAX(seq) + 1, 0) FROM markov_transitions WHERE model_id = ? AND state = ?;`)
	if err != nil {
		return nil, err
	}

	stmtModelStates, err := db.Prepare(`SELECT COUNT(DISTINCT state) FROM markov_transitions WHERE model_id = ?;`)
	if err != nil {
		return nil, err
	}

	stmtModelTotal, err := db.Prepare(`SELECT COUNT(*) FROM markov_transitions WHERE model_id = ?;`)
	if err != nil {
		return nil, err
	}

	stmtModelTerminals, err := db.Prepare(`SELECT COUNT(*) FROM markov_transitions WHERE model_id = ? AND successor = '';`)
	if err != nil {
		return nil, err
	}

	stmtDeleteChain, err := db.Prepare(`DELETE FROM markov_transitions WHERE model_id = ?;`)
	if err != nil {
		return nil, err
	}

	stmtInsertTransition, err := db.Prepare(`INSERT INTO markov_transitions (model_id, state, seq, successor) VALUES (?, ?, ?, ?);`)
	if err != nil {
		return nil, err
	}

	return &Store{
		db:                   db,
		stmtGetModelInfo:     stmtGetModelInfo,
		stmtGetModels:        stmtGetModels,
		stmtAddModel:         stmtAddModel,
		stmtLoadChain:        stmtLoadChain,
		stmtNextSeq:          stmtNextSeq,
		stmtModelStates:      stmtModelStates,
		stmtModelTotal:       stmtModelTotal,
		stmtModelTerminals:   stmtModelTerminals,
		stmtDeleteChain:      stmtDeleteChain,
		stmtInsertTransition: stmtInsertTransition,
		logger:               slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, nil
}

// Close releases all prepared SQL statements held by the Store. It does not
// close the underlying database.
func (s *Store) Close() {
	_ = s.stmtGetModelInfo.Close()
	_ = s.stmtGetModels.Close()
	_ = s.stmtAddModel.Close()
	_ = s.stmtLoadChain.Close()
	_ = s.stmtNextSeq.Close()
	_ = s.stmtModelStates.Close()
	_ = s.stmtModelTotal.Close()
	_ = s.stmtModelTerminals.Close()
	_ = s.stmtDeleteChain.Close()
	_ = s.stmtInsertTransition.Close()
}

// SetLogger sets the logger for the Store. By default, all logs are discarded.
func (s *Store) SetLogger(logger *slog.Logger) {
	if logger != nil {
		s.logger = logger
	}
}
