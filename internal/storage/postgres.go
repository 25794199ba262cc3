// postgres.go — lib/pq-backed storage.
//
// Duplicate-ID policy: plain INSERT ... ON CONFLICT (id) DO NOTHING,
// so a re-logged transaction with an id already on file is silently
// skipped rather than overwritten, and the batch still succeeds as a
// whole. This is the append-preferring counterpart to SQLite's
// INSERT OR REPLACE; see sqlite.go for the other policy.
package storage

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/fraudpipeline/core/internal/domain"
)

// Postgres implements domain.Storage over a lib/pq database.
type Postgres struct {
	db *sql.DB
}

// OpenPostgres opens a connection pool against connStr and ensures
// the pending_transactions table exists.
func OpenPostgres(connStr string) (*Postgres, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("storage.OpenPostgres: open: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.OpenPostgres: ping: %w", err)
	}
	const schema = `
CREATE TABLE IF NOT EXISTS pending_transactions (
    id TEXT PRIMARY KEY,
    amount DOUBLE PRECISION,
    last_name TEXT,
    predicted_fraud BOOLEAN,
    model_name TEXT,
    model_version TEXT,
    is_reviewed BOOLEAN DEFAULT FALSE,
    actual_fraud BOOLEAN
)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.OpenPostgres: create table: %w", err)
	}
	return &Postgres{db: db}, nil
}

// Close closes the underlying connection pool.
func (p *Postgres) Close() error {
	return p.db.Close()
}

// WriteBatch inserts each pending transaction in a single transaction,
// skipping (not overwriting) any row whose id already exists. Any
// driver error is reported as a StorageError of kind Unavailable.
func (p *Postgres) WriteBatch(batch []domain.PendingTransaction) error {
	tx, err := p.db.Begin()
	if err != nil {
		return &domain.StorageError{Kind: domain.StorageErrUnavailable, Reason: err.Error()}
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
INSERT INTO pending_transactions
    (id, amount, last_name, predicted_fraud, model_name, model_version, is_reviewed, actual_fraud)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (id) DO NOTHING`)
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
