// Package outbox implements the per-conversation outbound queue.
//
// Sends issued while the connection is not open are buffered here and
// flushed, in submission order, once the connection opens. An item leaves the
// queue the moment the transport accepts it; a failed send leaves it (and
// everything behind it) in place for the next flush.
//
// The queue has no capacity limit. A conversation that stays disconnected
// while the user keeps sending grows it without bound.
package outbox
