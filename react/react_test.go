package react

import (
	"context"
	stderrors "errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kbukum/reactkit/errors"
	"github.com/kbukum/reactkit/executor"
	"github.com/kbukum/reactkit/logger"
	"github.com/kbukum/reactkit/resilience"
)

var errOdd = stderrors.New("odd")

func newRun(t *testing.T, workers int) *Run {
	t.Helper()
	pool, err := executor.NewPool(executor.PoolConfig{Name: t.Name(), Workers: workers, Logger: logger.NewNop()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Shutdown(context.Background()) })
	return New(pool, WithName(t.Name()), WithLogger(logger.NewNop()))
}

func inline() executor.Executor {
	return executor.Func(func(task func()) { task() })
}

type rejecting struct{}

func (rejecting) Submit(func()) error { return errors.ExecutorSaturated("rejecting", 0) }

func TestDispatch_CollectsEveryTask(t *testing.T) {
	run := newRun(t, 4)
	const n = 50
	suppliers := make([]func(context.Context) (int, error), n)
	for i := range suppliers {
		suppliers[i] = func(context.Context) (int, error) { return i, nil }
	}

	s := Dispatch(run, suppliers...)
	values, err := s.Collect(context.Background())
	require.NoError(t, err)
	require.Len(t, values, n)
	for i, v := range values {
		assert.Equal(t, i, v, "values are in dispatch order")
	}

	st := s.Status()
	assert.Equal(t, n, st.Tasks())
	assert.Equal(t, n, st.Dispatched())
	assert.Equal(t, n, st.Completed())
	assert.Zero(t, st.Errors())
	assert.Equal(t, n, st.AllCompleted())
	assert.True(t, st.Done())
}

func TestPipeline_MultiplyFilterSubtractSum(t *testing.T) {
	run := newRun(t, 4)

	scaled := Then(Of(run, 1, 2, 3), func(_ context.Context, v int) (int, error) { return v * 200, nil })
	kept := Then(scaled, func(_ context.Context, v int) (int, error) {
		if v <= 300 {
			return 0, errOdd
		}
		return v, nil
	})
	shifted := Then(kept, func(_ context.Context, v int) (int, error) { return v - 5, nil })
	sum := AllOf(shifted, Reducing(0, func(acc, v int) int { return acc + v }),
		func(_ context.Context, total int) (int, error) { return total, nil })

	got, err := sum.First(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 990, got)

	st := shifted.Status()
	assert.Equal(t, 2, st.Completed())
	assert.Equal(t, 1, st.Failed())
}

func TestCollectWith_Collectors(t *testing.T) {
	ctx := context.Background()
	run := newRun(t, 2)
	words := Of(run, "a", "b", "a", "c")

	joined, err := CollectWith(ctx, words, Joining(","))
	require.NoError(t, err)
	assert.Equal(t, "a,b,a,c", joined)

	set, err := CollectWith(ctx, words, ToSet[string]())
	require.NoError(t, err)
	assert.Len(t, set, 3)

	count, err := CollectWith(ctx, words, Counting[string]())
	require.NoError(t, err)
	assert.Equal(t, 4, count)

	slice, err := CollectWith(ctx, words, ToSlice[string]())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "a", "c"}, slice)

	_, err = CollectWith[string, int](ctx, words, nil)
	assert.ErrorIs(t, err, errors.ErrInvalidArgument)
}

func TestCollect_Breakout(t *testing.T) {
	const n, k = 20, 3
	run := newRun(t, n)
	release := make(chan struct{})
	defer close(release)

	suppliers := make([]func(context.Context) (int, error), n)
	for i := range suppliers {
		suppliers[i] = func(context.Context) (int, error) {
			if i >= 5 {
				<-release
			}
			return i, nil
		}
	}
	s := Dispatch(run, suppliers...)

	var seen []int
	values, err := s.Collect(context.Background(), Breakout(func(st Status) bool {
		seen = append(seen, st.Completed())
		return st.Completed() > k
	}))
	require.NoError(t, err)
	assert.Greater(t, len(values), k)
	assert.LessOrEqual(t, len(values), n)
	assert.Greater(t, s.Status().Completed(), k)
	assert.True(t, sort.IntsAreSorted(seen), "completed count never decreases: %v", seen)
}

func TestCollect_AlwaysTrueBreakoutReturnsAtOnce(t *testing.T) {
	run := newRun(t, 1)
	release := make(chan struct{})
	defer close(release)

	s := Dispatch(run, func(context.Context) (int, error) {
		<-release
		return 1, nil
	})
	values, err := s.Block(context.Background(), func(Status) bool { return true })
	require.NoError(t, err)
	assert.Empty(t, values)
}

func TestCollect_ContextEndsFirst(t *testing.T) {
	run := newRun(t, 2)
	release := make(chan struct{})
	defer close(release)

	s := Dispatch(run,
		func(context.Context) (int, error) { return 1, nil },
		func(context.Context) (int, error) {
			<-release
			return 2, nil
		})
	require.Eventually(t, func() bool { return s.Status().Completed() == 1 }, time.Second, time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	values, err := s.Collect(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, []int{1}, values)
}

func TestCapture_ReceivesEveryUnrecoveredFailure(t *testing.T) {
	const n = 10
	run := newRun(t, 4)

	var mu sync.Mutex
	var captured []*StageError
	failing := Then(Of(run, make([]int, n)...), func(context.Context, int) (int, error) {
		return 0, errOdd
	}).Capture(func(se *StageError) {
		mu.Lock()
		captured = append(captured, se)
		mu.Unlock()
	})

	values, err := failing.Collect(context.Background())
	require.NoError(t, err)
	assert.Empty(t, values)

	st := failing.Status()
	assert.Equal(t, n, st.Errors())
	assert.Equal(t, n, st.Failed())
	assert.Zero(t, st.Completed())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, captured, n)
	for _, se := range captured {
		assert.Equal(t, 1, se.Stage)
		assert.Equal(t, run.ID(), se.RunID)
		assert.ErrorIs(t, se, errOdd)
	}
	assert.Len(t, failing.Failures(), n)
}

func TestOnFail_SubstitutesAndCounts(t *testing.T) {
	run := newRun(t, 4)
	gate := make(chan struct{})

	var mu sync.Mutex
	captures := 0
	checked := Then(Of(run, 1, 2, 3, 4), func(_ context.Context, v int) (int, error) {
		<-gate
		if v%2 == 0 {
			return 0, errOdd
		}
		return v, nil
	})
	recovered := checked.OnFail(func(_ context.Context, se *StageError) (int, error) {
		return -se.Task, nil
	}).Capture(func(*StageError) {
		mu.Lock()
		captures++
		mu.Unlock()
	})
	close(gate)

	values, err := recovered.Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{1, -1, 3, -3}, values)

	st := recovered.Status()
	assert.Equal(t, 4, st.Completed())
	assert.Equal(t, 2, st.Errors())
	assert.Zero(t, st.Failed())
	assert.Equal(t, 2, checked.Status().Failed())

	mu.Lock()
	defer mu.Unlock()
	assert.Zero(t, captures)
}

func TestOnFail_RecoversFailuresThatHappenedFirst(t *testing.T) {
	run := New(inline(), WithLogger(logger.NewNop()))

	captures := 0
	failing := Then(Of(run, 1, 2, 3), func(context.Context, int) (int, error) {
		return 0, errOdd
	})
	require.Equal(t, 3, failing.Status().Failed(), "inline executor fails every task before OnFail")

	recovered := failing.OnFail(func(context.Context, *StageError) (int, error) {
		return 7, nil
	}).Capture(func(*StageError) { captures++ })

	values, err := recovered.Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{7, 7, 7}, values)
	assert.Equal(t, 3, recovered.Status().Errors())
	assert.Zero(t, captures)
}

func TestOnFail_AttachedAfterFailuresOnPool(t *testing.T) {
	const n = 20
	run := newRun(t, 4)

	var mu sync.Mutex
	captures := 0
	root := Of(run, make([]int, n)...).Capture(func(*StageError) {
		mu.Lock()
		captures++
		mu.Unlock()
	})
	failing := Then(root, func(context.Context, int) (int, error) { return 0, errOdd })
	require.Eventually(t, func() bool { return failing.Status().Failed() == n }, time.Second, time.Millisecond)

	recovered := failing.OnFail(func(context.Context, *StageError) (int, error) { return 1, nil })
	total, err := CollectWith(context.Background(), recovered, Reducing(0, func(acc, v int) int { return acc + v }))
	require.NoError(t, err)
	assert.Equal(t, n, total)

	mu.Lock()
	defer mu.Unlock()
	assert.Zero(t, captures)
}

func TestBlock_BreakoutOnAllCompleted(t *testing.T) {
	run := newRun(t, 3)

	var mu sync.Mutex
	captures := 0
	s := Then(Then(Of(run, 1, 2, 3), func(_ context.Context, v int) (int, error) {
		return v * 100, nil
	}), func(_ context.Context, v int) (int, error) {
		if v == 100 {
			return 0, errOdd
		}
		time.Sleep(time.Duration(v) * time.Millisecond)
		return v, nil
	}).Capture(func(*StageError) {
		mu.Lock()
		captures++
		mu.Unlock()
	})

	values, err := s.Block(context.Background(), func(st Status) bool { return st.AllCompleted() > 0 })
	require.NoError(t, err)
	assert.Empty(t, values)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, captures)
}

func TestOnFail_PassesEarlierFailuresThrough(t *testing.T) {
	run := New(inline(), WithLogger(logger.NewNop()))

	var captured []*StageError
	root := Dispatch(run,
		func(context.Context) (int, error) { return 0, errOdd },
		func(context.Context) (int, error) { return 1, nil },
	).Capture(func(se *StageError) { captured = append(captured, se) })

	next := Then(root, func(_ context.Context, v int) (int, error) { return v + 1, nil }).
		OnFail(func(context.Context, *StageError) (int, error) { return 100, nil })

	values, err := next.Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{2}, values)
	require.Len(t, captured, 1)
	assert.Equal(t, 0, captured[0].Stage)
	assert.Equal(t, 0, captured[0].Task)
	assert.Equal(t, 1, next.Status().Failed())
}

func TestStage_PanicBecomesFailure(t *testing.T) {
	run := New(inline(), WithLogger(logger.NewNop()))

	var captured *StageError
	s := Then(Of(run, 1), func(context.Context, int) (int, error) {
		panic("boom")
	})
	s.Capture(func(se *StageError) { captured = se })

	values, err := s.Collect(context.Background())
	require.NoError(t, err)
	assert.Empty(t, values)
	require.NotNil(t, captured)

	var pe *PanicError
	require.ErrorAs(t, captured, &pe)
	assert.Equal(t, "boom", pe.Value)
	assert.NotEmpty(t, pe.Stack)
}

func TestDispatch_ZeroSuppliers(t *testing.T) {
	run := newRun(t, 1)
	s := Dispatch[int](run)

	values, err := s.Collect(context.Background())
	require.NoError(t, err)
	assert.Empty(t, values)
	assert.True(t, s.Status().Done())

	_, err = s.First(context.Background())
	assert.ErrorIs(t, err, errors.ErrNoResults)

	count := AllOf(s, Counting[int](), func(_ context.Context, n int) (int, error) { return n, nil })
	got, err := count.Last(context.Background())
	require.NoError(t, err)
	assert.Zero(t, got)
}

func TestNew_NilExecutor(t *testing.T) {
	s := Of(New(nil, WithLogger(logger.NewNop())), 1, 2)
	assert.ErrorIs(t, s.Err(), errors.ErrInvalidArgument)

	_, err := s.Collect(context.Background())
	assert.ErrorIs(t, err, errors.ErrInvalidArgument)

	next := Then(s, func(_ context.Context, v int) (int, error) { return v, nil })
	assert.ErrorIs(t, next.Err(), errors.ErrInvalidArgument)
}

func TestThen_NilFunction(t *testing.T) {
	run := New(inline(), WithLogger(logger.NewNop()))
	s := Then[int, int](Of(run, 1), nil)
	assert.ErrorIs(t, s.Err(), errors.ErrInvalidArgument)
}

func TestCollect_RejectedSubmission(t *testing.T) {
	run := New(rejecting{}, WithLogger(logger.NewNop()))
	s := Of(run, 1, 2, 3)

	values, err := s.Collect(context.Background())
	assert.ErrorIs(t, err, errors.ErrExecutorSaturated)
	assert.Empty(t, values)
	assert.Equal(t, 3, s.Status().Failed())
}

func TestFirstAndLast(t *testing.T) {
	run := newRun(t, 3)
	gates := []chan struct{}{make(chan struct{}), make(chan struct{}), make(chan struct{})}
	suppliers := make([]func(context.Context) (string, error), len(gates))
	for i, g := range gates {
		name := string(rune('a' + i))
		suppliers[i] = func(context.Context) (string, error) {
			<-g
			return name, nil
		}
	}
	s := Dispatch(run, suppliers...)
	ctx := context.Background()

	close(gates[2])
	first, err := s.First(ctx)
	require.NoError(t, err)
	assert.Equal(t, "c", first)

	close(gates[0])
	require.Eventually(t, func() bool { return s.Status().Completed() == 2 }, time.Second, time.Millisecond)
	close(gates[1])

	last, err := s.Last(ctx)
	require.NoError(t, err)
	assert.Equal(t, "b", last)
}

func TestLast_NoSuccess(t *testing.T) {
	run := New(inline(), WithLogger(logger.NewNop()))
	s := Dispatch(run, func(context.Context) (int, error) { return 0, errOdd })
	_, err := s.Last(context.Background())
	assert.ErrorIs(t, err, errors.ErrNoResults)
}

func TestThenRetry(t *testing.T) {
	run := New(inline(), WithLogger(logger.NewNop()))
	attempts := 0
	s := ThenRetry(Of(run, 21), func(_ context.Context, v int) (int, error) {
		attempts++
		if attempts < 3 {
			return 0, errOdd
		}
		return v * 2, nil
	}, resilience.RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond})

	got, err := s.First(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, got)
	assert.Equal(t, 3, attempts)
}

func TestStatus_TracksEachStage(t *testing.T) {
	run := New(inline(), WithLogger(logger.NewNop()))
	root := Of(run, 1, 2, 3)
	odd := Then(root, func(_ context.Context, v int) (int, error) {
		if v%2 == 1 {
			return 0, errOdd
		}
		return v, nil
	})
	after := Then(odd, func(_ context.Context, v int) (int, error) { return v, nil })

	assert.Equal(t, 0, root.Index())
	assert.Equal(t, 2, after.Index())
	assert.Equal(t, 3, root.Status().Completed())

	st := after.Status()
	assert.Equal(t, 3, st.Dispatched())
	assert.Equal(t, 1, st.Completed())
	assert.Equal(t, 2, st.Errors(), "failures carried from the previous stage are counted")
	assert.Equal(t, 2, st.Failed())
	assert.Same(t, run, after.Run())
}
