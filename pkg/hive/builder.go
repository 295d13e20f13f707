package hive

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ChuLiYu/hive/internal/metrics"
	"github.com/ChuLiYu/hive/pkg/task"
)

const (
	defaultMaxRetries      = 0
	defaultRetryBaseDelay  = 50 * time.Millisecond
	defaultRetryMultiplier = 2.0
	defaultRetryMaxDelay   = 30 * time.Second
	defaultThreadPrefix    = "hive-worker"
)

// Builder configures and constructs a Hive. Construct one with NewBuilder to
// get sensible defaults; a zero-value Builder{} has a nil Logger and must
// have one set before Build is called.
type Builder[I, O, E any] struct {
	// NumThreads is the number of worker goroutines. Must be >= 1.
	NumThreads int

	// MaxRetries caps the number of retry attempts for a Retryable
	// ApplyError; 0 means a retryable failure is never retried.
	MaxRetries uint32

	// RetryBaseDelay, RetryMultiplier and RetryMaxDelay parameterize
	// backoff(attempt) = min(RetryBaseDelay * RetryMultiplier^attempt, RetryMaxDelay).
	RetryBaseDelay  time.Duration
	RetryMultiplier float64
	RetryMaxDelay   time.Duration

	// ThreadNamePrefix labels each worker goroutine's log lines; Go has no
	// OS-thread-naming equivalent to carry this further.
	ThreadNamePrefix string

	Logger  zerolog.Logger
	Metrics *metrics.Collector
}

// NewBuilder returns a Builder pre-populated with sensible defaults.
func NewBuilder[I, O, E any]() *Builder[I, O, E] {
	return &Builder[I, O, E]{
		NumThreads:      1,
		MaxRetries:      defaultMaxRetries,
		RetryBaseDelay:  defaultRetryBaseDelay,
		RetryMultiplier: defaultRetryMultiplier,
		RetryMaxDelay:   defaultRetryMaxDelay,
		Logger:          zerolog.Nop(),
	}
}

// Build validates the configuration, constructs a Hive, clones worker once
// per thread, and starts every worker goroutine before returning.
func (b *Builder[I, O, E]) Build(worker task.Worker[I, O, E]) (*Hive[I, O, E], error) {
	if b.NumThreads < 1 {
		return nil, ErrInvalidNumThreads
	}

	base := b.RetryBaseDelay
	if base <= 0 {
		base = defaultRetryBaseDelay
	}
	mult := b.RetryMultiplier
	if mult < 1.0 {
		mult = defaultRetryMultiplier
	}
	maxDelay := b.RetryMaxDelay
	if maxDelay <= 0 {
		maxDelay = defaultRetryMaxDelay
	}
	prefix := b.ThreadNamePrefix
	if prefix == "" {
		prefix = defaultThreadPrefix
	}

	h := &Hive[I, O, E]{
		queue:      NewQueue[taskEnvelope[I, O, E]](),
		outcome:    NewQueue[Outcome[I, O, E]](),
		backoff:    newBackoffPolicy(base, mult, maxDelay),
		maxRetries: b.MaxRetries,
		log:        b.Logger.With().Str("component", "hive").Logger(),
		metrics:    b.Metrics,
	}

	h.wg.Add(b.NumThreads)
	for i := 0; i < b.NumThreads; i++ {
		w := worker.Clone()
		name := fmt.Sprintf("%s-%d", prefix, i)
		go h.workerLoop(w, name)
	}

	return h, nil
}
