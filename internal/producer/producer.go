// Package producer implements the pipeline's first stage: it
// synthesizes batches of transactions and writes them to Buffer1.
package producer

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fraudpipeline/core/internal/domain"
	"github.com/google/uuid"
)

// lastNames is the pool a synthesized transaction's LastName is drawn
// from. At least ten distinct names are kept so that account-level
// grouping (internal/risk) has something nontrivial to group on.
var lastNames = []string{
	"Smith", "Johnson", "Williams", "Brown", "Jones",
	"Garcia", "Miller", "Davis", "Wilson", "Taylor",
}

// ConfigError reports a rejected Config during construction.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("producer: invalid config: %s", e.Reason)
}

// Config controls a Producer's batch sizing, pacing, and lifetime.
// Construct it with NewConfig, which validates N1Max.
type Config struct {
	n1Max        int
	pollInterval time.Duration
	iterations   *uint64
	seed         *uint64
}

// NewConfig returns a Config with the given maximum batch size and
// the remaining fields at their zero values (no poll delay, unbounded
// iterations, OS-entropy seed). Use the With* methods to adjust those.
// Returns a *ConfigError if n1Max < 1.
func NewConfig(n1Max int) (*Config, error) {
	if n1Max < 1 {
		return nil, &ConfigError{Reason: "n1_max must be >= 1"}
	}
	return &Config{n1Max: n1Max}, nil
}

// WithPollInterval sets the delay between successive ProduceOnce calls
// in Run.
func (c *Config) WithPollInterval(d time.Duration) *Config {
	c.pollInterval = d
	return c
}

// WithIterations caps Run to n calls to ProduceOnce before returning
// cleanly. A nil/unset value means unbounded.
func (c *Config) WithIterations(n uint64) *Config {
	c.iterations = &n
	return c
}

// WithSeed fixes the Producer's RNG seed for deterministic batches.
// Unset means seed from OS entropy.
func (c *Config) WithSeed(seed uint64) *Config {
	c.seed = &seed
	return c
}

// Producer synthesizes Transaction batches and writes them to a
// domain.Buffer1. Not safe for concurrent use: the pipeline runs
// exactly one Producer goroutine per buffer pair.
type Producer struct {
	config Config
	mu     sync.Mutex
	rng    *rand.Rand
	log    *zap.Logger
}

// New constructs a Producer from cfg and an optional logger (nil is
// replaced with a no-op logger).
func New(cfg Config, log *zap.Logger) *Producer {
	if log == nil {
		log = zap.NewNop()
	}
	var rng *rand.Rand
	if cfg.seed != nil {
		rng = rand.New(rand.NewPCG(*cfg.seed, *cfg.seed^0x9E3779B97F4A7C15))
	} else {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Producer{config: cfg, rng: rng, log: log}
}

// GenerateBatch synthesizes between 1 and config.n1Max transactions.
func (p *Producer) GenerateBatch() []domain.Transaction {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := 1 + p.rng.IntN(p.config.n1Max)
	batch := make([]domain.Transaction, n)
	for i := range batch {
		cents := 1 + p.rng.IntN(1_000_000)
		batch[i] = domain.Transaction{
			ID:       uuid.New(),
			Amount:   float64(cents) / 100.0,
			LastName: lastNames[p.rng.IntN(len(lastNames))],
		}
	}
	return batch
}

// ProduceOnce generates one batch and writes it to buf1. It returns
// whatever error buf1.WriteBatch returns, unwrapped: the caller (Run,
// or a test) is responsible for interpreting domain.ErrClosed as a
// clean-stop signal.
func (p *Producer) ProduceOnce(buf1 domain.Buffer1) error {
	batch := p.GenerateBatch()
	return buf1.WriteBatch(batch)
}

// Run drives ProduceOnce in a loop until: ctx is cancelled, the
// configured iteration count is reached, or buf1 reports it is
// closed (a clean stop, not an error). Any other write error is
// returned immediately. Between iterations, Run sleeps for
// config.pollInterval (or returns early if ctx is cancelled first).
func (p *Producer) Run(ctx context.Context, buf1 domain.Buffer1) error {
	var count uint64
	for {
		if p.config.iterations != nil && count >= *p.config.iterations {
			p.log.Info("producer run complete", zap.Uint64("iterations", count))
			return nil
		}
		select {
		case <-ctx.Done():
			p.log.Info("producer stopping on context cancellation")
			return nil
		default:
		}

		if err := p.ProduceOnce(buf1); err != nil {
			if domain.IsClosed(err) {
				p.log.Info("producer stopping, buffer1 closed")
				return nil
			}
			return fmt.Errorf("producer.Run: %w", err)
		}
		count++

		if p.config.pollInterval > 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(p.config.pollInterval):
			}
		}
	}
}
