// Package schedule describes when a hot stream pulls from its source.
//
// A Spec is one of fixed-delay, fixed-rate or cron. Specs are validated when
// they are built, so a non-positive interval or an unparsable cron expression
// fails with ErrInvalidSchedule at registration rather than at the first tick.
// A Trigger turns a Spec into a blocking Wait driven by an injectable clock.
package schedule
