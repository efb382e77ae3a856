// Package retry implements the retry-decision engine for outbound HTTP
// requests: a tagged attempt outcome, a single retry predicate, a Retry-After
// evaluator and an executor that runs attempts against a jittered schedule.
//
// Retries occur on:
//   - Connection and protocol failures, and timeouts.
//   - HTTP 5xx responses other than 503.
//   - HTTP 503 when Retry-After is absent, or when it parses to a delay no
//     longer than the scheduled delay for this attempt.
//   - HTTP 429 only when Retry-After is present and parses to a delay no
//     longer than the scheduled delay for this attempt.
//
// Retry-After never changes how long the executor sleeps. The sleep always
// comes from the per-request schedule, so a burst of clients told to come back
// at the same instant still spread out.
//
// Attempt numbering
//   - The first attempt carries no annotation.
//   - Retried attempts carry their 1-based retry number in the attempt
//     context; read it with AttemptFromContext.
//
// Retry on signal
//   - SignalPolicy retries failures plus any attempt for which a downstream
//     component called SignalRetry on the attempt context.
package retry
