// Package react runs a fixed set of tasks through a chain of typed stages on
// an executor and collects the results.
//
//	run := react.New(pool, react.WithName("orders"))
//	fetched := react.Dispatch(run, fetchA, fetchB, fetchC)
//	priced := react.Then(fetched, price).OnFail(fallbackPrice)
//	totals, err := priced.Collect(ctx, react.Breakout(func(s react.Status) bool {
//		return s.Completed() >= 2
//	}))
//
// Stage 0 starts as soon as Dispatch returns. Each later stage runs for a
// task as soon as that task leaves the previous stage; there is no ordering
// between tasks. Stages are kept in an arena indexed by position, and each
// stage has its own counters, exposed as a Status snapshot.
//
// A function that returns an error or panics fails its task at that stage.
// An OnFail recovery attached to the stage substitutes a value and the task
// continues. Otherwise the failure is reported once to the run's capture
// handler and the task is excluded from every later collection.
package react
