package hive

import (
	"context"
	"iter"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/ChuLiYu/hive/internal/metrics"
	"github.com/ChuLiYu/hive/pkg/task"
)

// Task is a single unit of submitted work: an input value paired with an
// optional detail blob threaded through to the worker's Context and into
// any resulting Panic or Outcome.
type Task[I any] struct {
	Input  I
	Detail any
}

// taskEnvelope is the internal queue item: a Task plus its submission
// index and an optional reply queue. A nil reply routes the resulting
// Outcome onto the hive's shared outcome channel (used by Map, and by
// ApplySend with a nil dest); a non-nil reply is either a dedicated
// one-shot queue used by Apply/ApplyAsync, so concurrent callers never
// race each other for their own result, or the caller's dest queue passed
// to ApplySend, which may be shared across many submissions.
type taskEnvelope[I, O, E any] struct {
	task  Task[I]
	index uint64
	reply *Queue[Outcome[I, O, E]]
}

// Hive is a fixed-size pool of worker goroutines, each running its own
// Clone of a single Worker, applying it to a stream of submitted tasks in
// parallel with per-task retry and panic isolation.
type Hive[I, O, E any] struct {
	queue   *Queue[taskEnvelope[I, O, E]]
	outcome *Queue[Outcome[I, O, E]]

	backoff    backoffPolicy
	maxRetries uint32

	log     zerolog.Logger
	metrics *metrics.Collector

	nextIndex atomic.Uint64
	wg        sync.WaitGroup

	fatal     atomic.Bool
	closed    atomic.Bool
	closeOnce sync.Once
}

// workerLoop is the body of one worker goroutine: pull a task, run it to
// completion (including retries), emit its outcome, repeat until the queue
// is closed and drained.
func (h *Hive[I, O, E]) workerLoop(w task.Worker[I, O, E], name string) {
	defer h.wg.Done()
	logger := h.log.With().Str("worker", name).Logger()

	for env := range h.queue.Iter() {
		if h.metrics != nil {
			h.metrics.IncActive()
		}
		outcome := h.runTask(w, env, logger)
		if h.metrics != nil {
			h.metrics.DecActive()
		}
		h.emit(env, outcome)
	}
}

// runTask executes env on w, retrying Retryable ApplyErrors with backoff up
// to maxRetries, isolating panics, and halting the hive on a Fatal
// ApplyError. It never leaves a task stuck: every path returns a terminal
// Outcome.
func (h *Hive[I, O, E]) runTask(w task.Worker[I, O, E], env taskEnvelope[I, O, E], logger zerolog.Logger) Outcome[I, O, E] {
	input := env.task.Input
	var attempt uint32

	for {
		if h.fatal.Load() {
			if h.metrics != nil {
				h.metrics.RecordUnprocessed()
			}
			return unprocessed[I, O, E](env.index, input)
		}

		ctx := task.Context{Index: env.index, Attempt: attempt, Detail: env.task.Detail}
		start := time.Now()
		value, applyErr, pan := h.applyOnce(w, input, ctx)
		elapsed := time.Since(start)

		if pan != nil {
			if h.metrics != nil {
				h.metrics.RecordPanic()
			}
			logger.Error().Uint64("index", env.index).Uint32("attempt", attempt).
				Interface("payload", pan.Payload).Msg("hive: worker panicked")
			return panicOutcome[I, O, E](env.index, &input, pan, env.task.Detail)
		}

		if applyErr == nil {
			if h.metrics != nil {
				h.metrics.RecordCompleted(elapsed.Seconds())
			}
			return success[I, O, E](env.index, value)
		}

		switch applyErr.Kind {
		case task.KindFatal:
			h.fatal.Store(true)
			if h.metrics != nil {
				h.metrics.RecordFailed()
			}
			logger.Error().Uint64("index", env.index).Uint32("attempt", attempt).
				Msg("hive: fatal task error, halting hive")
			return failure[I, O, E](env.index, applyErr.Input, applyErr.Err, env.task.Detail)

		case task.KindNotRetryable:
			if h.metrics != nil {
				h.metrics.RecordFailed()
			}
			return failure[I, O, E](env.index, applyErr.Input, applyErr.Err, env.task.Detail)

		default: // task.KindRetryable
			if attempt >= h.maxRetries {
				if h.metrics != nil {
					h.metrics.RecordMaxRetriesAttempted()
				}
				return maxRetriesAttempted[I, O, E](env.index, input, applyErr.Err, env.task.Detail)
			}
			if applyErr.Input != nil {
				input = *applyErr.Input
			}
			if h.metrics != nil {
				h.metrics.RecordRetry()
			}
			delay := h.backoff.delay(attempt)
			logger.Warn().Uint64("index", env.index).Uint32("attempt", attempt).
				Dur("delay", delay).Msg("hive: retrying task")
			time.Sleep(delay)
			attempt++
		}
	}
}

// applyOnce invokes w.Apply under a panic recovery boundary.
func (h *Hive[I, O, E]) applyOnce(w task.Worker[I, O, E], input I, ctx task.Context) (O, *task.ApplyError[I, E], *Panic) {
	type result struct {
		value O
		err   *task.ApplyError[I, E]
	}
	r, pan := safeCall(ctx.Detail, func() result {
		v, e := w.Apply(input, ctx)
		return result{value: v, err: e}
	})
	if pan != nil {
		var zero O
		return zero, nil, pan
	}
	return r.value, r.err, nil
}

// emit delivers outcome to env's private reply queue if it has one,
// otherwise onto the hive's shared outcome channel.
func (h *Hive[I, O, E]) emit(env taskEnvelope[I, O, E], outcome Outcome[I, O, E]) {
	if env.reply != nil {
		// Never Close env.reply here: ApplySend callers may share one
		// dest queue across many submissions, and closing after the
		// first delivery would silently drop the rest. Apply/ApplyAsync
		// use a private one-shot queue that simply goes out of scope
		// once Recv returns.
		env.reply.Send(outcome)
		return
	}
	h.outcome.Send(outcome)
	if h.metrics != nil {
		h.metrics.SetQueueDepth(h.queue.Len())
	}
}

func (h *Hive[I, O, E]) submit(t Task[I], reply *Queue[Outcome[I, O, E]]) (uint64, error) {
	if h.closed.Load() {
		return 0, ErrShuttingDown
	}
	if h.fatal.Load() {
		return 0, ErrHiveFatal
	}
	idx := h.nextIndex.Add(1) - 1
	if h.metrics != nil {
		h.metrics.RecordSubmitted()
		h.metrics.SetQueueDepth(h.queue.Len() + 1)
	}
	h.queue.Send(taskEnvelope[I, O, E]{task: t, index: idx, reply: reply})
	return idx, nil
}

// Apply submits input and blocks until its Outcome is available. detail, if
// given, is threaded through to the worker's Context.
func (h *Hive[I, O, E]) Apply(input I, detail ...any) (Outcome[I, O, E], error) {
	reply := NewQueue[Outcome[I, O, E]]()
	idx, err := h.submit(Task[I]{Input: input, Detail: firstDetail(detail)}, reply)
	if err != nil {
		return Outcome[I, O, E]{}, err
	}
	outcome, ok := reply.Recv()
	if !ok {
		if h.metrics != nil {
			h.metrics.RecordUnprocessed()
		}
		return unprocessed[I, O, E](idx, input), nil
	}
	return outcome, nil
}

// Handle is a future for a single ApplyAsync call's Outcome.
type Handle[I, O, E any] struct {
	reply   *Queue[Outcome[I, O, E]]
	index   uint64
	input   I
	metrics *metrics.Collector
}

// Wait blocks until the Outcome is available.
func (f Handle[I, O, E]) Wait() Outcome[I, O, E] {
	outcome, ok := f.reply.Recv()
	if !ok {
		if f.metrics != nil {
			f.metrics.RecordUnprocessed()
		}
		return unprocessed[I, O, E](f.index, f.input)
	}
	return outcome
}

// ApplyAsync submits input and immediately returns a Handle the caller can
// Wait on later, without blocking the calling goroutine.
func (h *Hive[I, O, E]) ApplyAsync(input I, detail ...any) (Handle[I, O, E], error) {
	reply := NewQueue[Outcome[I, O, E]]()
	idx, err := h.submit(Task[I]{Input: input, Detail: firstDetail(detail)}, reply)
	if err != nil {
		return Handle[I, O, E]{}, err
	}
	return Handle[I, O, E]{reply: reply, index: idx, input: input, metrics: h.metrics}, nil
}

// ApplySend submits input and routes its Outcome onto dest instead of a
// private reply queue, letting many ApplySend calls share one completion
// stream — e.g. a caller-driven fan-in that wants its own ordering
// reorderer rather than the hive's shared outcome channel used by Map.
func (h *Hive[I, O, E]) ApplySend(dest *Queue[Outcome[I, O, E]], input I, detail ...any) error {
	_, err := h.submit(Task[I]{Input: input, Detail: firstDetail(detail)}, dest)
	return err
}

// Map submits every input in inputs and returns an iterator over their
// Outcomes in completion order (not submission order — compose with
// IntoOrdered for submission order). Map must not be called concurrently
// with another Map, ApplySend(nil-dest case), or any other consumer of the
// hive's shared outcome channel on the same Hive: they would race for each
// other's results.
func (h *Hive[I, O, E]) Map(inputs []I) (iter.Seq[Outcome[I, O, E]], error) {
	for _, in := range inputs {
		if _, err := h.submit(Task[I]{Input: in}, nil); err != nil {
			return nil, err
		}
	}
	remaining := len(inputs)

	return func(yield func(Outcome[I, O, E]) bool) {
		for remaining > 0 {
			outcome, ok := h.outcome.Recv()
			if !ok {
				return
			}
			remaining--
			if !yield(outcome) {
				return
			}
		}
	}, nil
}

// Join stops accepting new submissions, waits for every queued and
// in-flight task to finish, then closes the outcome channel. Join is
// idempotent and safe to call more than once.
func (h *Hive[I, O, E]) Join() {
	h.closeOnce.Do(func() {
		h.closed.Store(true)
		h.queue.Close()
		h.wg.Wait()
		h.outcome.Close()
	})
}

// Shutdown stops accepting new submissions, drains any task still sitting
// in the queue as Unprocessed (skipping its worker entirely) rather than
// letting it run to completion, then waits for every worker to exit and
// closes the outcome channel. The drain always completes; if ctx is done
// before the workers exit, Shutdown returns ctx.Err() without closing the
// outcome channel, and workers already in flight keep running toward
// their own natural completion in the background.
func (h *Hive[I, O, E]) Shutdown(ctx context.Context) error {
	h.closed.Store(true)
	h.queue.Close()

	for {
		msg := h.queue.TryRecv()
		if msg.Kind != MessageReceived {
			break
		}
		env := msg.Value
		if h.metrics != nil {
			h.metrics.RecordUnprocessed()
		}
		h.emit(env, unprocessed[I, O, E](env.index, env.task.Input))
	}

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.outcome.Close()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func firstDetail(detail []any) any {
	if len(detail) == 0 {
		return nil
	}
	return detail[0]
}
