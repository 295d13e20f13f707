package hive

import (
	"github.com/rs/zerolog"

	"github.com/ChuLiYu/hive/pkg/task"
)

// caller adapts a plain infallible function into a task.Worker: the
// function never fails by contract, so Apply always returns a nil
// ApplyError.
type caller[I, O any] struct {
	f func(I) O
}

func (c caller[I, O]) Apply(input I, _ task.Context) (O, *task.ApplyError[I, struct{}]) {
	return c.f(input), nil
}

func (c caller[I, O]) Clone() task.Worker[I, O, struct{}] { return c }

// onceCaller adapts a plain function returning (O, error) into a
// task.Worker whose every failure is NotRetryable.
type onceCaller[I, O any] struct {
	f func(I) (O, error)
}

func (c onceCaller[I, O]) Apply(input I, _ task.Context) (O, *task.ApplyError[I, error]) {
	out, err := c.f(input)
	if err != nil {
		return out, &task.ApplyError[I, error]{Kind: task.KindNotRetryable, Input: &input, Err: err}
	}
	return out, nil
}

func (c onceCaller[I, O]) Clone() task.Worker[I, O, error] { return c }

// retryCaller adapts a plain function that returns its own ApplyError
// directly into a task.Worker: the caller decides retryability per call.
type retryCaller[I, O, E any] struct {
	f func(I, task.Context) (O, *task.ApplyError[I, E])
}

func (c retryCaller[I, O, E]) Apply(input I, ctx task.Context) (O, *task.ApplyError[I, E]) {
	return c.f(input, ctx)
}

func (c retryCaller[I, O, E]) Clone() task.Worker[I, O, E] { return c }

// Map builds a throwaway Hive with numThreads workers applying f to every
// element of inputs. Outcomes arrive in completion order, but the
// returned slice is re-ordered to match inputs (via IntoOrdered and
// OkOrUnwrapErrors) before returning. f must not panic; use TryMap or
// TryMapRetryable for fallible work.
func Map[I, O any](numThreads int, inputs []I, f func(I) O) []O {
	b := NewBuilder[I, O, struct{}]()
	b.NumThreads = numThreads
	b.Logger = zerolog.Nop()
	h, err := b.Build(caller[I, O]{f: f})
	if err != nil {
		panic(err)
	}
	seq, err := h.Map(inputs)
	if err != nil {
		panic(err)
	}
	out := Collect[I, O, struct{}](IntoOrdered(seq))
	h.Join()
	values, _ := out.OkOrUnwrapErrors(true)
	return values
}

// TryMap builds a throwaway Hive with numThreads workers applying f to
// every element of inputs and collects the results into an OutcomeBatch;
// every failure is NotRetryable.
func TryMap[I, O any](numThreads int, inputs []I, f func(I) (O, error)) *OutcomeBatch[I, O, error] {
	b := NewBuilder[I, O, error]()
	b.NumThreads = numThreads
	b.Logger = zerolog.Nop()
	h, err := b.Build(onceCaller[I, O]{f: f})
	if err != nil {
		panic(err)
	}
	seq, err := h.Map(inputs)
	if err != nil {
		panic(err)
	}
	batch := Collect[I, O, error](seq)
	h.Join()
	return batch
}

// TryMapRetryable builds a throwaway Hive with numThreads workers and a
// maxRetries retry budget, applying f to every element of inputs and
// collecting the results into an OutcomeBatch. f classifies its own
// failures via the returned ApplyError's Kind.
func TryMapRetryable[I, O, E any](numThreads int, maxRetries uint32, inputs []I, f func(I, task.Context) (O, *task.ApplyError[I, E])) *OutcomeBatch[I, O, E] {
	b := NewBuilder[I, O, E]()
	b.NumThreads = numThreads
	b.MaxRetries = maxRetries
	b.Logger = zerolog.Nop()
	h, err := b.Build(retryCaller[I, O, E]{f: f})
	if err != nil {
		panic(err)
	}
	seq, err := h.Map(inputs)
	if err != nil {
		panic(err)
	}
	batch := Collect[I, O, E](seq)
	h.Join()
	return batch
}
