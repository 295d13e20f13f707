package hive

import (
	"fmt"
	"iter"
)

// orderedSeq buffers out-of-order outcomes in a map keyed by index and
// yields them starting at 0 in strictly ascending order. A gap left by
// the upstream sequence ending before the next index appears truncates
// the sequence rather than erroring; a duplicate index is a programmer
// error and panics.
func orderedSeq[I, O, E any](upstream iter.Seq[Outcome[I, O, E]], limit int) iter.Seq[Outcome[I, O, E]] {
	return func(yield func(Outcome[I, O, E]) bool) {
		buf := make(map[uint64]Outcome[I, O, E])
		next := uint64(0)
		pull, stop := iter.Pull(upstream)
		defer stop()

		for {
			if limit >= 0 && next >= uint64(limit) {
				return
			}

			outcome, ok := buf[next]
			if ok {
				delete(buf, next)
			} else {
				outcome, ok = pull()
			}
			if !ok {
				return
			}

			switch {
			case outcome.Index < next:
				panic(fmt.Sprintf("hive: duplicate outcome index %d (next expected %d)", outcome.Index, next))
			case outcome.Index == next:
				next++
				if !yield(outcome) {
					return
				}
			default:
				buf[outcome.Index] = outcome
			}
		}
	}
}

// IntoOrdered yields outcomes in ascending Index order, starting at 0.
func IntoOrdered[I, O, E any](seq iter.Seq[Outcome[I, O, E]]) iter.Seq[Outcome[I, O, E]] {
	return orderedSeq(seq, -1)
}

// TakeOrdered yields up to n outcomes in ascending Index order.
func TakeOrdered[I, O, E any](seq iter.Seq[Outcome[I, O, E]], n int) iter.Seq[Outcome[I, O, E]] {
	return orderedSeq(seq, n)
}

// IntoResults yields each outcome's TaskResult in arrival order.
func IntoResults[I, O, E any](seq iter.Seq[Outcome[I, O, E]]) iter.Seq[Result[O, E]] {
	return func(yield func(Result[O, E]) bool) {
		for o := range seq {
			if !yield(o.TaskResult()) {
				return
			}
		}
	}
}

// TakeResults yields up to n TaskResults in arrival order.
func TakeResults[I, O, E any](seq iter.Seq[Outcome[I, O, E]], n int) iter.Seq[Result[O, E]] {
	return func(yield func(Result[O, E]) bool) {
		count := 0
		for o := range seq {
			if count >= n {
				return
			}
			count++
			if !yield(o.TaskResult()) {
				return
			}
		}
	}
}

// IntoOrderedResults yields each outcome's TaskResult in ascending Index
// order.
func IntoOrderedResults[I, O, E any](seq iter.Seq[Outcome[I, O, E]]) iter.Seq[Result[O, E]] {
	return IntoResults(IntoOrdered(seq))
}

// TakeOrderedResults yields up to n TaskResults in ascending Index order.
func TakeOrderedResults[I, O, E any](seq iter.Seq[Outcome[I, O, E]], n int) iter.Seq[Result[O, E]] {
	return IntoResults(TakeOrdered(seq, n))
}

// IntoOutputs yields each Success outcome's value in arrival order,
// re-raising panics and treating non-Success, non-Panic outcomes as
// programmer errors (via Outcome.Unwrap).
func IntoOutputs[I, O, E any](seq iter.Seq[Outcome[I, O, E]]) iter.Seq[O] {
	return func(yield func(O) bool) {
		for o := range seq {
			if !yield(o.Unwrap()) {
				return
			}
		}
	}
}

// TakeOutputs yields up to n Success values in arrival order.
func TakeOutputs[I, O, E any](seq iter.Seq[Outcome[I, O, E]], n int) iter.Seq[O] {
	return func(yield func(O) bool) {
		count := 0
		for o := range seq {
			if count >= n {
				return
			}
			count++
			if !yield(o.Unwrap()) {
				return
			}
		}
	}
}

// IntoOrderedOutputs yields each Success outcome's value in ascending
// Index order.
func IntoOrderedOutputs[I, O, E any](seq iter.Seq[Outcome[I, O, E]]) iter.Seq[O] {
	return IntoOutputs(IntoOrdered(seq))
}

// TakeOrderedOutputs yields up to n Success values in ascending Index
// order.
func TakeOrderedOutputs[I, O, E any](seq iter.Seq[Outcome[I, O, E]], n int) iter.Seq[O] {
	return IntoOutputs(TakeOrdered(seq, n))
}
