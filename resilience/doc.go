// Package resilience provides the flow-control primitives reactkit builds on.
//
//   - RateLimiter: token bucket with reservation, used to pace consumers of
//     hot streams (stream.OnePer, Connection.OnePer).
//   - Retry: exponential backoff, used by react.ThenRetry.
//   - Bulkhead: caps concurrent holders of a resource, used by the stream
//     gateway to limit event-stream clients.
//
// All three take a clock from github.com/benbjohnson/clock so tests can
// drive time by hand.
//
//	limiter := resilience.Every("ticks", 100*time.Millisecond, clock.New())
//	if err := limiter.Wait(ctx); err != nil {
//	    return err
//	}
package resilience
