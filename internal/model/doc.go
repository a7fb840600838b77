// Package model defines shared data types used across the chat connection manager.
//
// Conventions:
//   - IDs: model.ID, decoded from either a JSON string or a JSON number
//   - Timestamps: time.Time in UTC, zero when the server omitted them
//   - Outbound payloads are kept pre-encoded (json.RawMessage) so an item
//     that entered the queue can always be written to the wire
package model
