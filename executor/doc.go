// Package executor provides the worker handles that task pipelines and hot
// streams run on.
//
// Executors are created by the caller and passed by reference. The engine
// submits work to them but never shuts them down.
//
//   - Pool: a github.com/alitto/pond/v2 pool of fixed size with an unbounded
//     (or MaxQueued-bounded) queue
//   - Dedicated: one goroutine per task
//   - Bounded: one goroutine per task, at most N running (x/sync/semaphore)
package executor
