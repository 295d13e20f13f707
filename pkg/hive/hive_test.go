package hive

import (
	"context"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChuLiYu/hive/pkg/task"
)

// plainWorker wraps an infallible function, for S1/S5-style tests where
// every call succeeds or panics but never returns an ApplyError.
type plainWorker struct {
	f func(int) int
}

func (w plainWorker) Apply(input int, _ task.Context) (int, *task.ApplyError[int, string]) {
	return w.f(input), nil
}

func (w plainWorker) Clone() task.Worker[int, int, string] { return w }

func buildTestHive(t *testing.T, numThreads int, maxRetries uint32, worker task.Worker[int, int, string]) *Hive[int, int, string] {
	t.Helper()
	b := NewBuilder[int, int, string]()
	b.NumThreads = numThreads
	b.MaxRetries = maxRetries
	b.RetryBaseDelay = time.Millisecond
	b.RetryMultiplier = 2.0
	b.RetryMaxDelay = 20 * time.Millisecond
	h, err := b.Build(worker)
	require.NoError(t, err)
	return h
}

// S1 — Pure map: num_threads=4, inputs 2..9, f(i) = i + 1.
func TestS1PureMap(t *testing.T) {
	h := buildTestHive(t, 4, 0, plainWorker{f: func(i int) int { return i + 1 }})

	inputs := []int{2, 3, 4, 5, 6, 7, 8}
	seq, err := h.Map(inputs)
	require.NoError(t, err)

	batch := Collect[int, int, string](seq)
	h.Join()

	assert.Equal(t, 0, batch.NumFailures())
	sum := 0
	for v := range IntoOutputs(batch.All()) {
		sum += v
	}
	assert.Equal(t, 42, sum)

	var ordered []int
	for v := range IntoOutputs(batch.All()) {
		ordered = append(ordered, v)
	}
	assert.Equal(t, []int{3, 4, 5, 6, 7, 8, 9}, ordered)
}

// S2 — Non-retryable failure: f(i) = Err("no fives") if i==5 else Ok(i*i).
func TestS2NonRetryableFailure(t *testing.T) {
	worker := task.WorkerFunc[int, int, string](func(input int, _ task.Context) (int, *task.ApplyError[int, string]) {
		if input == 5 {
			return 0, &task.ApplyError[int, string]{Kind: task.KindNotRetryable, Input: &input, Err: "no fives"}
		}
		return input * input, nil
	})

	b := NewBuilder[int, int, string]()
	b.NumThreads = 4
	h, err := b.Build(worker)
	require.NoError(t, err)

	inputs := make([]int, 10)
	for i := range inputs {
		inputs[i] = i
	}
	seq, err := h.Map(inputs)
	require.NoError(t, err)
	batch := Collect[int, int, string](seq)
	h.Join()

	assert.Equal(t, 1, batch.NumFailures())
	assert.Equal(t, 9, batch.NumSuccesses())

	var found bool
	for o := range batch.IterFailures() {
		found = true
		assert.Equal(t, uint64(5), o.Index)
		assert.Equal(t, OutcomeFailure, o.Kind)
	}
	assert.True(t, found)
}

// S3 — Retry to success: i==50 fails on attempts 0,1,2 then succeeds on attempt 3.
func TestS3RetryToSuccess(t *testing.T) {
	worker := task.WorkerFunc[int, int, string](func(input int, ctx task.Context) (int, *task.ApplyError[int, string]) {
		if input != 50 {
			return input + 1, nil
		}
		if ctx.Attempt == 3 {
			return 500, nil
		}
		return 0, &task.ApplyError[int, string]{
			Kind:  task.KindRetryable,
			Input: &input,
			Err:   fmt.Sprintf("fiddy %d", ctx.Attempt),
		}
	})

	h := buildTestHive(t, 4, 3, worker)

	inputs := make([]int, 100)
	for i := range inputs {
		inputs[i] = i
	}
	seq, err := h.Map(inputs)
	require.NoError(t, err)
	batch := Collect[int, int, string](seq)
	h.Join()

	assert.False(t, batch.HasFailures())
	outcome, ok := batch.outcomes[50]
	require.True(t, ok)
	assert.Equal(t, OutcomeSuccess, outcome.Kind)
	assert.Equal(t, 500, outcome.Value)
}

// S4 — Retry to exhaustion: same as S3 but i==50 always Retryable.
func TestS4RetryToExhaustion(t *testing.T) {
	worker := task.WorkerFunc[int, int, string](func(input int, ctx task.Context) (int, *task.ApplyError[int, string]) {
		if input != 50 {
			return input + 1, nil
		}
		return 0, &task.ApplyError[int, string]{
			Kind:  task.KindRetryable,
			Input: &input,
			Err:   fmt.Sprintf("fiddy %d", ctx.Attempt),
		}
	})

	h := buildTestHive(t, 4, 3, worker)

	inputs := make([]int, 100)
	for i := range inputs {
		inputs[i] = i
	}
	seq, err := h.Map(inputs)
	require.NoError(t, err)
	batch := Collect[int, int, string](seq)
	h.Join()

	assert.Equal(t, 1, batch.NumFailures())
	outcome, ok := batch.outcomes[50]
	require.True(t, ok)
	assert.Equal(t, OutcomeMaxRetriesAttempted, outcome.Kind)
}

// S5 — Panic isolation: num_threads=2, inputs 0..4, f(i) panics if i==1.
func TestS5PanicIsolation(t *testing.T) {
	worker := plainWorker{f: func(i int) int {
		if i == 1 {
			panic("boom")
		}
		return i
	}}

	h := buildTestHive(t, 2, 0, worker)

	inputs := []int{0, 1, 2, 3}
	seq, err := h.Map(inputs)
	require.NoError(t, err)
	batch := Collect[int, int, string](seq)
	h.Join()

	panicked, ok := batch.outcomes[1]
	require.True(t, ok)
	assert.Equal(t, OutcomePanic, panicked.Kind)
	require.NotNil(t, panicked.Panic)
	assert.Equal(t, "boom", panicked.Panic.Payload)

	for _, idx := range []uint64{0, 2, 3} {
		o, ok := batch.outcomes[idx]
		require.True(t, ok)
		assert.Equal(t, OutcomeSuccess, o.Kind)
		assert.Equal(t, int(idx), o.Value)
	}
}

// Context.Attempt is 0 on first call and increments by 1 on each retry.
func TestContextAttemptIncrementsSequentially(t *testing.T) {
	var attempts []uint32
	worker := task.WorkerFunc[int, int, string](func(input int, ctx task.Context) (int, *task.ApplyError[int, string]) {
		attempts = append(attempts, ctx.Attempt)
		if ctx.Attempt < 2 {
			return 0, &task.ApplyError[int, string]{Kind: task.KindRetryable, Input: &input, Err: "retry me"}
		}
		return input, nil
	})

	h := buildTestHive(t, 1, 5, worker)
	outcome, err := h.Apply(7)
	require.NoError(t, err)
	h.Join()

	assert.Equal(t, OutcomeSuccess, outcome.Kind)
	assert.Equal(t, []uint32{0, 1, 2}, attempts)
}

// max_retries = 0 means a Retryable error immediately becomes MaxRetriesAttempted.
func TestMaxRetriesZeroExhaustsImmediately(t *testing.T) {
	worker := task.WorkerFunc[int, int, string](func(input int, _ task.Context) (int, *task.ApplyError[int, string]) {
		return 0, &task.ApplyError[int, string]{Kind: task.KindRetryable, Input: &input, Err: "never works"}
	})

	h := buildTestHive(t, 1, 0, worker)
	outcome, err := h.Apply(1)
	require.NoError(t, err)
	h.Join()

	assert.Equal(t, OutcomeMaxRetriesAttempted, outcome.Kind)
}

// Empty input iterable produces an empty outcome iterator and Join still
// terminates.
func TestEmptyInputsJoinTerminates(t *testing.T) {
	h := buildTestHive(t, 3, 0, plainWorker{f: func(i int) int { return i }})

	seq, err := h.Map(nil)
	require.NoError(t, err)
	count := 0
	for range seq {
		count++
	}
	assert.Equal(t, 0, count)

	done := make(chan struct{})
	go func() {
		h.Join()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Join did not terminate on an empty hive")
	}
}

// num_threads = 1 preserves single-worker FIFO ordering of submission.
func TestSingleThreadPreservesSubmissionOrder(t *testing.T) {
	var order []int
	worker := task.WorkerFunc[int, int, string](func(input int, _ task.Context) (int, *task.ApplyError[int, string]) {
		order = append(order, input)
		return input, nil
	})

	h := buildTestHive(t, 1, 0, worker)
	inputs := []int{5, 4, 3, 2, 1}
	seq, err := h.Map(inputs)
	require.NoError(t, err)
	for range seq {
	}
	h.Join()

	assert.Equal(t, inputs, order)
}

// Fatal halts the hive: subsequent submissions return ErrHiveFatal.
func TestFatalHaltsHive(t *testing.T) {
	worker := task.WorkerFunc[int, int, string](func(input int, _ task.Context) (int, *task.ApplyError[int, string]) {
		if input == 0 {
			return 0, &task.ApplyError[int, string]{Kind: task.KindFatal, Err: "catastrophic"}
		}
		return input, nil
	})

	h := buildTestHive(t, 1, 0, worker)
	_, err := h.Apply(0)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, err := h.Apply(1)
		return err == ErrHiveFatal
	}, time.Second, time.Millisecond)

	h.Join()
}

// ApplyAsync returns a Handle whose Wait blocks until the Outcome lands.
func TestApplyAsync(t *testing.T) {
	h := buildTestHive(t, 2, 0, plainWorker{f: func(i int) int { return i * 2 }})

	handle, err := h.ApplyAsync(21)
	require.NoError(t, err)

	outcome := handle.Wait()
	assert.Equal(t, OutcomeSuccess, outcome.Kind)
	assert.Equal(t, 42, outcome.Value)

	h.Join()
}

// Shutdown drains queued-but-unstarted tasks as Unprocessed while the
// in-flight task runs to completion.
func TestShutdownDrainsQueuedAsUnprocessed(t *testing.T) {
	release := make(chan struct{})
	worker := task.WorkerFunc[int, int, string](func(input int, _ task.Context) (int, *task.ApplyError[int, string]) {
		if input == 0 {
			<-release
		}
		return input, nil
	})

	h := buildTestHive(t, 1, 0, worker)

	dest := NewQueue[Outcome[int, int, string]]()
	require.NoError(t, h.ApplySend(dest, 0))
	require.NoError(t, h.ApplySend(dest, 1))
	require.NoError(t, h.ApplySend(dest, 2))

	// Give the single worker time to claim task 0 and block on release,
	// leaving 1 and 2 sitting in the queue.
	time.Sleep(20 * time.Millisecond)

	shutdownErr := make(chan error, 1)
	go func() { shutdownErr <- h.Shutdown(context.Background()) }()

	results := map[uint64]OutcomeKind{}
	for i := 0; i < 2; i++ {
		o, ok := dest.Recv()
		require.True(t, ok)
		results[o.Index] = o.Kind
	}
	assert.Equal(t, OutcomeUnprocessed, results[1])
	assert.Equal(t, OutcomeUnprocessed, results[2])

	close(release)
	require.NoError(t, <-shutdownErr)

	o, ok := dest.Recv()
	require.True(t, ok)
	assert.Equal(t, uint64(0), o.Index)
	assert.Equal(t, OutcomeSuccess, o.Kind)
}

// sortedIndices helper covers a plain-sort round trip used in batch tests.
func TestSortedIndicesHelper(t *testing.T) {
	b := NewOutcomeBatch[int, int, string]()
	b.Insert(success[int, int, string](3, 3))
	b.Insert(success[int, int, string](1, 1))
	b.Insert(success[int, int, string](2, 2))

	indices := b.sortedIndices(b.successes)
	assert.True(t, sort.SliceIsSorted(indices, func(i, j int) bool { return indices[i] < indices[j] }))
	assert.Equal(t, []uint64{1, 2, 3}, indices)
}
