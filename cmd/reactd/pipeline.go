package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kbukum/reactkit/errors"
	"github.com/kbukum/reactkit/executor"
	"github.com/kbukum/reactkit/hotstream"
	"github.com/kbukum/reactkit/logger"
	"github.com/kbukum/reactkit/observability"
	"github.com/kbukum/reactkit/react"
	"github.com/kbukum/reactkit/stream"
)

// Tick is one element of the ticks stream.
type Tick struct {
	Seq int64     `json:"seq"`
	At  time.Time `json:"at"`
}

func tickSource() *stream.Stream[Tick] {
	var seq int64
	return stream.Generate(func(context.Context) (Tick, error) {
		seq++
		return Tick{Seq: seq, At: time.Now()}, nil
	})
}

// windowSize is the number of tasks dispatched per tick.
const windowSize = 8

var errOdd = stderrors.New("odd value")

// windowWorker runs one react pipeline per tick it receives: it squares the
// values of a window ending at the tick, keeps the even squares and sums them.
type windowWorker struct {
	exec     executor.Executor
	log      *logger.Logger
	metrics  *observability.Metrics
	interval time.Duration
	wg       sync.WaitGroup
}

func (w *windowWorker) start(conn *hotstream.Connection[Tick]) {
	src := conn.Stream()
	if w.interval > 0 {
		src = conn.OnePer(1, w.interval)
	}
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		err := stream.ForEach(context.Background(), src, func(ctx context.Context, t Tick) error {
			w.process(ctx, t)
			return nil
		})
		if err != nil {
			w.log.Warn("Window worker stopped", logger.ErrorFields("consume", err))
		}
	}()
}

func (w *windowWorker) wait() { w.wg.Wait() }

func (w *windowWorker) process(ctx context.Context, t Tick) {
	run := react.New(w.exec,
		react.WithName(fmt.Sprintf("window-%d", t.Seq)),
		react.WithLogger(w.log),
		react.WithMetrics(w.metrics),
		react.WithContext(ctx),
	)

	suppliers := make([]func(context.Context) (int64, error), windowSize)
	for i := range suppliers {
		v := t.Seq + int64(i)
		suppliers[i] = func(context.Context) (int64, error) { return v * v, nil }
	}

	var filtered atomic.Int64
	even := react.Then(react.Dispatch(run, suppliers...), func(_ context.Context, sq int64) (int64, error) {
		if sq%2 != 0 {
			return 0, errOdd
		}
		return sq, nil
	}).Capture(func(se *react.StageError) {
		if !errors.Is(se, errOdd) {
			w.log.Warn("Window task failed", logger.ErrorFields("square", se))
		}
		filtered.Add(1)
	})

	sum := react.AllOf(even, react.Reducing(int64(0), func(acc, v int64) int64 { return acc + v }),
		func(_ context.Context, total int64) (int64, error) { return total, nil })

	total, err := sum.First(ctx)
	if err != nil {
		w.log.Error("Window failed", logger.MergeWithError(logger.Fields(logger.FieldRunID, run.ID()), err))
		return
	}
	w.log.Debug("Window complete", logger.Fields(
		logger.FieldRunID, run.ID(),
		"seq", t.Seq,
		"sum", total,
		"filtered", filtered.Load(),
		logger.FieldDuration, run.Elapsed().String(),
	))
}
