// Package http provides a small, composable REST client with
// request/response interceptors, default headers, basic auth,
// and retries driven by the retry package.
//
// Retries
//   - Controlled via Builder.WithRetries(maxRetries, retryDelay) or
//     Builder.WithRetrySettings. The client makes at most maxRetries+1 attempts.
//   - By default, connection failures, timeouts and 5xx responses other than
//     503 are retried. 503 and 429 are retried only when Retry-After is
//     absent (503) or no later than the scheduled delay.
//   - Builder.WithRetryPolicy(retry.SignalPolicy()) retries whenever a
//     response interceptor calls retry.SignalRetry.
//
// Backoff
//   - Delays follow a decorrelated jitter schedule whose median first delay
//     is retryDelay. Retry-After never changes the delay, it only decides
//     whether a retry happens.
//
// Notes
//   - Each attempt rebuilds the http.Request from the Request value, so bodies
//     are re-sent and interceptors see the attempt context.
//   - Retries carry X-Retry-Attempt; every attempt carries the same X-Request-ID.
//   - Interceptor errors are not retried and are surfaced immediately.
//   - A non-2xx final response is returned together with an HTTP ClientError.
package http
