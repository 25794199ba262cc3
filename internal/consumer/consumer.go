// Package consumer implements the pipeline's middle stage: it reads
// batches from Buffer1, classifies them via a Modelizer, raises a
// best-effort alarm for every predicted-fraud record, and writes the
// full inferred batch to Buffer2.
package consumer

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fraudpipeline/core/internal/domain"
	"github.com/fraudpipeline/core/internal/risk"
)

// ConfigError reports a rejected Config during construction.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("consumer: invalid config: %s", e.Reason)
}

// Config controls a Consumer's batch sizing, pacing, and lifetime.
type Config struct {
	n2Max      int
	speed      time.Duration
	iterations *uint64
	seed       *uint64
}

// NewConfig returns a Config with the given maximum batch size.
// Returns a *ConfigError if n2Max < 1.
func NewConfig(n2Max int) (*Config, error) {
	if n2Max < 1 {
		return nil, &ConfigError{Reason: "n2_max must be >= 1"}
	}
	return &Config{n2Max: n2Max}, nil
}

func (c *Config) WithSpeed(d time.Duration) *Config {
	c.speed = d
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

// Error is the closed error taxonomy for Consumer operations,
// distinguishing a read failure, an inference failure, and a write
// failure so the wiring layer can react to each differently (a read
// Closed is a clean stop, a write Closed/Full is terminal).
type Error struct {
	Op  string // "read", "inference", "write"
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("consumer: %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Consumer reads from Buffer1, classifies via a Modelizer, raises
// alarms, and writes to Buffer2. Not safe for concurrent use.
type Consumer struct {
	config Config
	mu     sync.Mutex
	rng    *rand.Rand
	log    *zap.Logger

	// risk is the supplemented, optional account-risk tracker. A nil
	// tracker disables the feature entirely with zero overhead.
	risk *risk.Tracker
}

// New constructs a Consumer. log and tracker may be nil.
func New(cfg Config, log *zap.Logger, tracker *risk.Tracker) *Consumer {
	if log == nil {
		log = zap.NewNop()
	}
	var rng *rand.Rand
	if cfg.seed != nil {
		rng = rand.New(rand.NewPCG(*cfg.seed, *cfg.seed^0x2545F4914F6CDD1D))
	} else {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Consumer{config: cfg, rng: rng, log: log, risk: tracker}
}

// ConsumeOnce reads one batch (sized uniformly in [1, n2Max]) from
// buf1, classifies it in a single Modelizer.Infer call, raises a
// best-effort alarm for every predicted-fraud record, and writes the
// full inferred batch to buf2. It returns the list of alarm delivery
// failures encountered (never aborting the batch for them) plus a
// single *Error wrapping whichever of read/inference/write failed, if
// any.
func (c *Consumer) ConsumeOnce(
	buf1 domain.Buffer1Read,
	modelizer domain.Modelizer,
	alarm domain.Alarm,
	buf2 domain.Buffer2,
) ([]*domain.AlarmError, error) {
	c.mu.Lock()
	n := 1 + c.rng.IntN(c.config.n2Max)
	c.mu.Unlock()

	batch, err := buf1.ReadBatch(n)
	if err != nil {
		return nil, &Error{Op: "read", Err: err}
	}

	inferred, err := modelizer.Infer(batch)
	if err != nil {
		return nil, &Error{Op: "inference", Err: err}
	}

	var alarmErrs []*domain.AlarmError
	for _, it := range inferred {
		if !it.PredictedFraud {
			continue
		}
		if err := alarm.Trigger(it); err != nil {
			if ae, ok := err.(*domain.AlarmError); ok {
				alarmErrs = append(alarmErrs, ae)
			} else {
				alarmErrs = append(alarmErrs, &domain.AlarmError{Reason: err.Error()})
			}
		}
		if c.risk != nil {
			c.risk.RecordFlag(it.Transaction.LastName)
		}
	}

	if err := buf2.WriteBatch(inferred); err != nil {
		return alarmErrs, &Error{Op: "write", Err: err}
	}

	return alarmErrs, nil
}

// SwitchModelVersion delegates directly to modelizer.SwitchVersion.
// The Consumer holds no version state of its own.
func (c *Consumer) SwitchModelVersion(modelizer domain.Modelizer, version domain.ModelVersion) error {
	return modelizer.SwitchVersion(version)
}

// Run drives ConsumeOnce in a loop until ctx is cancelled, the
// configured iteration count is reached, or buf1 reports Closed on
// read (a clean stop). A write Closed/Full, or an inference failure,
// is returned immediately. Alarm delivery failures are logged as
// warnings and never stop the loop.
func (c *Consumer) Run(
	ctx context.Context,
	buf1 domain.Buffer1Read,
	modelizer domain.Modelizer,
	alarm domain.Alarm,
	buf2 domain.Buffer2,
) error {
	var count uint64
	for {
		if c.config.iterations != nil && count >= *c.config.iterations {
			c.log.Info("consumer run complete", zap.Uint64("iterations", count))
			return nil
		}
		select {
		case <-ctx.Done():
			c.log.Info("consumer stopping on context cancellation")
			return nil
		default:
		}

		alarmErrs, err := c.ConsumeOnce(buf1, modelizer, alarm, buf2)
		for _, ae := range alarmErrs {
			c.log.Warn("alarm delivery failed", zap.Error(ae))
		}
		if err != nil {
			var ce *Error
			if e, ok := err.(*Error); ok {
				ce = e
			}
			if ce != nil && ce.Op == "read" && domain.IsClosed(ce.Err) {
				c.log.Info("consumer stopping, buffer1 closed")
				return nil
			}
			return fmt.Errorf("consumer.Run: %w", err)
		}
		count++

		if c.config.speed > 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(c.config.speed):
			}
		}
	}
}
