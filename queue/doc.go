// Package queue provides the bounded queue that sits between a hot stream's
// publish loop and one subscriber.
//
// The overflow policy is fixed at construction:
//
//   - Block waits for space, so a slow consumer slows the producer.
//   - DropOldest evicts the oldest buffered value.
//   - DropNewest discards the value being offered.
//
// Drops are silent; they are only visible through Dropped.
package queue
