// Package stream provides lazy, pull-based sequences and the operators used
// to compose them.
//
// A Stream does no work until values are pulled through Collect, ForEach,
// First or Iter. Each operator pulls from the previous one on demand, so a
// slow consumer naturally slows the producer.
//
// Hot streams (package hotstream) pull from a Stream on their own schedule
// and hand each subscriber a Stream view over its queue, so the same
// operators compose on both sides.
//
// # Operators
//
//   - Map, FlatMap: transform values
//   - Filter, Limit, LimitWhile: select values
//   - Peek: side effect without altering the value
//   - Reduce: fold into a single value
//   - Concat: join streams sequentially
//   - OnePer: rate-limit consumption to one value per interval
//
// # Usage
//
//	src := stream.Range(0, 10)
//	evens := stream.Filter(src, func(n int) bool { return n%2 == 0 })
//	squares := stream.Map(evens, func(_ context.Context, n int) (int, error) { return n * n, nil })
//	results, err := stream.Collect(ctx, squares)
package stream
