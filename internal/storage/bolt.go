// Package storage holds concrete domain.Storage adapters.
//
// bolt.go — BoltDB-backed persistent storage.
//
// Schema (BoltDB bucket layout):
//
//	/pending
//	    key:   transaction UUID, string form
//	    value: JSON-encoded pendingRecord
//
//	/meta
//	    key:   "schema_version"
//	    value: "1"
//
// Consistency model:
//   - Single-process, single-writer (BoltDB does not support concurrent writers).
//   - All writes use ACID transactions (bbolt Tx.Commit()).
//   - CRC32 integrity check on database open (bbolt built-in).
//
// Retention:
//   - PruneOlderThan deletes records written before a given cutoff.
//     Bolt never calls it itself: nothing is pruned at open or in the
//     background, and the retentionDays value passed to OpenBolt is
//     stored but not applied.
//
// Failure modes:
//   - BoltDB file corruption: bbolt detects via CRC and returns an
//     error on Open(). The wiring layer logs a fatal event and refuses
//     to start.
//   - Disk full: bbolt.Update() returns an error, surfaced to the
//     caller as a StorageError of kind Unavailable.
package storage

import (
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/fraudpipeline/core/internal/domain"
)

const (
	// DefaultDBPath is the default BoltDB file location.
	DefaultDBPath = "/var/lib/frauddetect/frauddetect.db"

	// SchemaVersion is the current database schema version.
	SchemaVersion = "1"

	// DefaultRetentionDays is the default pending-record retention period.
	DefaultRetentionDays = 30

	bucketPending = "pending"
	bucketMeta    = "meta"
)

// pendingRecord is the persisted form of a PendingTransaction. Stored
// as JSON in the pending bucket.
type pendingRecord struct {
	TransactionID  string    `json:"transaction_id"`
	Amount         float64   `json:"amount"`
	LastName       string    `json:"last_name"`
	PredictedFraud bool      `json:"predicted_fraud"`
	ModelName      string    `json:"model_name"`
	ModelVersion   string    `json:"model_version"`
	IsReviewed     bool      `json:"is_reviewed"`
	ActualFraud    *bool     `json:"actual_fraud"`
	WrittenAt      time.Time `json:"written_at"`
}

// Bolt wraps a BoltDB instance implementing domain.Storage.
type Bolt struct {
	db            *bolt.DB
	retentionDays int
}

// OpenBolt opens (or creates) the BoltDB database at path. Initialises
// required buckets and verifies the schema version. Returns an error
// if the database is corrupt or schema is incompatible.
func OpenBolt(path string, retentionDays int) (*Bolt, error) {
	if retentionDays <= 0 {
		retentionDays = DefaultRetentionDays
	}

	bdb, err := bolt.Open(path, 0o600, &bolt.Options{
		Timeout:      5 * time.Second,
		FreelistType: bolt.FreelistArrayType,
	})
	if err != nil {
		return nil, fmt.Errorf("bolt.Open(%q): %w", path, err)
	}

	d := &Bolt{db: bdb, retentionDays: retentionDays}

	if err := d.db.Update(func(tx *bolt.Tx) error {
		for _, name := range []string{bucketPending, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("CreateBucketIfNotExists(%q): %w", name, err)
			}
		}
		meta := tx.Bucket([]byte(bucketMeta))
		if meta.Get([]byte("schema_version")) == nil {
			if err := meta.Put([]byte("schema_version"), []byte(SchemaVersion)); err != nil {
				return fmt.Errorf("write schema_version: %w", err)
			}
		}
		return nil
	}); err != nil {
		_ = bdb.Close()
		return nil, fmt.Errorf("database initialisation failed: %w", err)
	}

	if err := d.checkSchemaVersion(); err != nil {
		_ = bdb.Close()
		return nil, err
	}

	return d, nil
}

func (d *Bolt) checkSchemaVersion() error {
	return d.db.View(func(tx *bolt.Tx) error {
		meta := tx.Bucket([]byte(bucketMeta))
		v := meta.Get([]byte("schema_version"))
		if string(v) != SchemaVersion {
			return fmt.Errorf(
				"schema version mismatch: database has %q, frauddetect requires %q",
				string(v), SchemaVersion,
			)
		}
		return nil
	})
}

// Close closes the underlying BoltDB file.
func (d *Bolt) Close() error {
	return d.db.Close()
}

// WriteBatch persists each pending transaction keyed by its
// transaction UUID, overwriting any existing record with the same ID
// (bbolt's Put always replaces the value at an existing key). Uses a
// single ACID write transaction for the whole batch.
func (d *Bolt) WriteBatch(batch []domain.PendingTransaction) error {
	err := d.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketPending))
		for _, pt := range batch {
			rec := pendingRecord{
				TransactionID:  pt.InferredTransaction.Transaction.ID.String(),
				Amount:         pt.InferredTransaction.Transaction.Amount,
				LastName:       pt.InferredTransaction.Transaction.LastName,
				PredictedFraud: pt.InferredTransaction.PredictedFraud,
				ModelName:      pt.InferredTransaction.ModelName,
				ModelVersion:   pt.InferredTransaction.ModelVersion,
				IsReviewed:     pt.IsReviewed,
				ActualFraud:    pt.ActualFraud,
				WrittenAt:      time.Now().UTC(),
			}
			data, err := json.Marshal(rec)
			if err != nil {
				return fmt.Errorf("marshal %s: %w", rec.TransactionID, err)
			}
			if err := b.Put([]byte(rec.TransactionID), data); err != nil {
				return fmt.Errorf("put %s: %w", rec.TransactionID, err)
			}
		}
		return nil
	})
	if err != nil {
		return &domain.StorageError{Kind: domain.StorageErrUnavailable, Reason: err.Error()}
	}
	return nil
}

// Len returns the number of pending records currently stored. Test
// and inspection helper only.
func (d *Bolt) Len() (int, error) {
	var n int
	err := d.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket([]byte(bucketPending)).Stats().KeyN
		return nil
	})
	return n, err
}

// PruneOlderThan deletes pending records written before cutoff.
// Returns the number of records deleted.
func (d *Bolt) PruneOlderThan(cutoff time.Time) (int, error) {
	var deleted int
	err := d.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketPending))
		c := b.Cursor()
		var toDelete [][]byte
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var rec pendingRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				continue
			}
			if rec.WrittenAt.Before(cutoff) {
				keyCopy := make([]byte, len(k))
				copy(keyCopy, k)
				toDelete = append(toDelete, keyCopy)
			}
		}
		for _, k := range toDelete {
			if err := b.Delete(k); err != nil {
				return err
			}
			deleted++
		}
		return nil
	})
	return deleted, err
}
