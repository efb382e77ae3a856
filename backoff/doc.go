// Package backoff generates jittered retry schedules and provides the
// cancellable wait used between retry attempts.
//
// Schedules
//   - DecorrelatedJitter(median, n) returns exactly n delays.
//   - Delays grow roughly exponentially (about 2x per attempt) with the
//     first delay centred on median.
//   - Each delay is randomized relative to the previous one, so concurrent
//     clients sharing the same settings do not retry in lockstep.
//
// Waiting
//   - Sleep(ctx, d) blocks for d or until ctx is done, whichever comes first.
package backoff
