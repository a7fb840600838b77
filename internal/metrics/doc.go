// Package metrics provides Prometheus metrics for monitoring.
//
// Key metrics:
//   - Connection attempts, opens and closes by reason
//   - Reconnect scheduling and give-ups
//   - Inbound frames by kind, malformed frames, dispatched and duplicate messages
//   - Outbound items sent and current queue depth per conversation
//
// A nil *Metrics is valid and records nothing.
package metrics
