package alarm

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fraudpipeline/core/internal/domain"
)

// Redis publishes a JSON envelope for every triggered alert to a
// pub/sub channel, for a paging system or dashboard subscribed on the
// other end. Connectivity is verified once at construction.
type Redis struct {
	rdb     *redis.Client
	channel string
}

// alertEnvelope is the wire shape published on the alarm channel.
type alertEnvelope struct {
	TransactionID string  `json:"transaction_id"`
	Amount        float64 `json:"amount"`
	LastName      string  `json:"last_name"`
	ModelName     string  `json:"model_name"`
	ModelVersion  string  `json:"model_version"`
}

// NewRedis dials addr and verifies connectivity with a Ping before
// returning. Returns an error if the connection cannot be
// established.
func NewRedis(addr, password string, db int, channel string) (*Redis, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		PoolSize:     20,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("alarm.NewRedis: ping %s: %w", addr, err)
	}

	return &Redis{rdb: rdb, channel: channel}, nil
}

// Close releases the underlying connection pool.
func (a *Redis) Close() error {
	return a.rdb.Close()
}

// Trigger publishes the alert envelope. A publish failure is reported
// as a domain.AlarmError (best-effort per the pipeline's contract —
// the caller never aborts a batch over it).
func (a *Redis) Trigger(tx domain.InferredTransaction) error {
	payload, err := json.Marshal(alertEnvelope{
		TransactionID: tx.Transaction.ID.String(),
		Amount:        tx.Transaction.Amount,
		LastName:      tx.Transaction.LastName,
		ModelName:     tx.ModelName,
		ModelVersion:  tx.ModelVersion,
	})
	if err != nil {
		return &domain.AlarmError{Reason: fmt.Sprintf("marshal envelope: %v", err)}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := a.rdb.Publish(ctx, a.channel, payload).Err(); err != nil {
		return &domain.AlarmError{Reason: fmt.Sprintf("publish: %v", err)}
	}
	return nil
}
