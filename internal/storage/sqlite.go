// sqlite.go — modernc.org/sqlite-backed storage.
//
// Schema:
//
//	CREATE TABLE pending_transactions (
//	    id TEXT PRIMARY KEY,
//	    amount REAL,
//	    last_name TEXT,
//	    predicted_fraud INTEGER,
//	    model_name TEXT,
//	    model_version TEXT,
//	    is_reviewed INTEGER DEFAULT 0,
//	    actual_fraud INTEGER
//	)
//
// Duplicate-ID policy: INSERT OR REPLACE, so a re-logged transaction
// silently overwrites the previous row for the same id. That is
// acceptable for a demo/dev adapter; Postgres (see postgres.go) takes
// the other policy and keeps the first row for an id, silently
// skipping later duplicates.
package storage

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/fraudpipeline/core/internal/domain"
)

// SQLite implements domain.Storage over a modernc.org/sqlite database.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (creating if missing) the sqlite database at
// dbPath and ensures the pending_transactions table exists.
func OpenSQLite(dbPath string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("storage.OpenSQLite: open %q: %w", dbPath, err)
	}
	const schema = `
CREATE TABLE IF NOT EXISTS pending_transactions (
    id TEXT PRIMARY KEY,
    amount REAL,
    last_name TEXT,
    predicted_fraud INTEGER,
    model_name TEXT,
    model_version TEXT,
    is_reviewed INTEGER DEFAULT 0,
    actual_fraud INTEGER
)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.OpenSQLite: create table: %w", err)
	}
	return &SQLite{db: db}, nil
}

// Close closes the underlying database handle.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// WriteBatch inserts (or replaces, by id) each pending transaction in
// a single transaction. Any driver error is reported as a
// StorageError of kind Unavailable.
func (s *SQLite) WriteBatch(batch []domain.PendingTransaction) error {
	tx, err := s.db.Begin()
	if err != nil {
		return &domain.StorageError{Kind: domain.StorageErrUnavailable, Reason: err.Error()}
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
INSERT OR REPLACE INTO pending_transactions
    (id, amount, last_name, predicted_fraud, model_name, model_version, is_reviewed, actual_fraud)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return &domain.StorageError{Kind: domain.StorageErrUnavailable, Reason: err.Error()}
	}
	defer stmt.Close()

	for _, pt := range batch {
		var actualFraud interface{}
		if pt.ActualFraud != nil {
			actualFraud = *pt.ActualFraud
		}
		it := pt.InferredTransaction
		if _, err := stmt.Exec(
			it.Transaction.ID.String(), it.Transaction.Amount, it.Transaction.LastName,
			it.PredictedFraud, it.ModelName, it.ModelVersion, pt.IsReviewed, actualFraud,
		); err != nil {
			return &domain.StorageError{Kind: domain.StorageErrUnavailable, Reason: err.Error()}
		}
	}

	if err := tx.Commit(); err != nil {
		return &domain.StorageError{Kind: domain.StorageErrUnavailable, Reason: err.Error()}
	}
	return nil
}

// Count returns the number of rows currently stored. Test helper only.
func (s *SQLite) Count() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM pending_transactions`).Scan(&n)
	return n, err
}
