// Package reconnect implements the reconnect decision policy.
//
// The Policy decides whether and when a dropped conversation connection is
// re-established:
//   - Explicit teardown never retries
//   - Any other close retries after an exponential delay capped at MaxDelay
//   - The delay never shrinks across consecutive failures and returns to
//     BaseDelay after one successful open
//   - An optional MaxAttempts turns the next failure into a give-up
//
// The policy owns no timers. The session arms its own timer with the
// returned delay.
package reconnect
