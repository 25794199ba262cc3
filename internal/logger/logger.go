// Package logger implements the pipeline's final stage: it reads
// inferred-transaction batches from Buffer2 and persists them as
// pending review records in Storage.
package logger

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fraudpipeline/core/internal/domain"
)

// ConfigError reports a rejected Config during construction.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("logger: invalid config: %s", e.Reason)
}

// Config controls a Logger's batch sizing, pacing, and lifetime.
type Config struct {
	n3Max        int
	pollInterval time.Duration
	iterations   *uint64
	seed         *uint64
}

// NewConfig returns a Config with the given maximum batch size.
// Returns a *ConfigError if n3Max < 1.
func NewConfig(n3Max int) (*Config, error) {
	if n3Max < 1 {
		return nil, &ConfigError{Reason: "n3_max must be >= 1"}
	}
	return &Config{n3Max: n3Max}, nil
}

func (c *Config) WithPollInterval(d time.Duration) *Config {
	c.pollInterval = d
	return c
}

func (c *Config) WithIterations(n uint64) *Config {
	c.iterations = &n
	return c
}

func (c *Config) WithSeed(seed uint64) *Config {
	c.seed = &seed
	return c
}

// Error wraps a read or write failure encountered by Logger, so the
// wiring layer can tell a clean-stop read-Closed apart from a terminal
// write failure.
type Error struct {
	Op  string // "read", "write"
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("logger: %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Logger reads from Buffer2 and writes pending review records to
// Storage. Not safe for concurrent use.
type Logger struct {
	config Config
	mu     sync.Mutex
	rng    *rand.Rand
	log    *zap.Logger
}

// New constructs a Logger. log may be nil.
func New(cfg Config, log *zap.Logger) *Logger {
	if log == nil {
		log = zap.NewNop()
	}
	var rng *rand.Rand
	if cfg.seed != nil {
		rng = rand.New(rand.NewPCG(*cfg.seed, *cfg.seed^0xBF58476D1CE4E5B9))
	} else {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Logger{config: cfg, rng: rng, log: log}
}

// LogOnce reads one batch (sized uniformly in [1, n3Max]) from buf2
// and writes it to storage as unreviewed pending transactions.
func (l *Logger) LogOnce(buf2 domain.Buffer2Read, storage domain.Storage) error {
	l.mu.Lock()
	n := 1 + l.rng.IntN(l.config.n3Max)
	l.mu.Unlock()

	batch, err := buf2.ReadBatch(n)
	if err != nil {
		return &Error{Op: "read", Err: err}
	}

	pending := make([]domain.PendingTransaction, len(batch))
	for i, it := range batch {
		pending[i] = domain.PendingTransaction{InferredTransaction: it, IsReviewed: false, ActualFraud: nil}
	}

	if err := storage.WriteBatch(pending); err != nil {
		return &Error{Op: "write", Err: err}
	}
	return nil
}

// Run drives LogOnce in a loop until ctx is cancelled, the configured
// iteration count is reached, or buf2 reports Closed on read (a clean
// stop). Any other error is returned immediately.
func (l *Logger) Run(ctx context.Context, buf2 domain.Buffer2Read, storage domain.Storage) error {
	var count uint64
	for {
		if l.config.iterations != nil && count >= *l.config.iterations {
			l.log.Info("logger run complete", zap.Uint64("iterations", count))
			return nil
		}
		select {
		case <-ctx.Done():
			l.log.Info("logger stopping on context cancellation")
			return nil
		default:
		}

		if err := l.LogOnce(buf2, storage); err != nil {
			le, _ := err.(*Error)
			if le != nil && le.Op == "read" && domain.IsClosed(le.Err) {
				l.log.Info("logger stopping, buffer2 closed")
				return nil
			}
			return fmt.Errorf("logger.Run: %w", err)
		}
		count++

		if l.config.pollInterval > 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(l.config.pollInterval):
			}
		}
	}
}
