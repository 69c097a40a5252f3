// Package hotstream republishes a lazy stream to any number of subscribers.
//
// A hot stream starts pulling as soon as it is created, on a single worker of
// the executor it was given, and offers each element to every subscriber
// connected at that moment. Subscribers own a bounded queue.Queue: a
// blocking queue holds the publisher back when full, a drop-oldest or
// drop-newest queue never does and counts what it discards.
//
//	hs, err := hotstream.ScheduleFixedRate(source, time.Second, pool,
//		hotstream.WithName("ticks"), hotstream.WithQueueCapacity(1))
//	conn, err := hs.Connect()
//	err = stream.ForEach(ctx, conn.OnePer(2, time.Second), handle)
//
// Pulls can be paced by a schedule.Spec (fixed delay, fixed rate or cron)
// and a Pausable stream can be suspended before its next pull. Stop ends the
// loop, closes every subscriber queue and resolves Done.
package hotstream
