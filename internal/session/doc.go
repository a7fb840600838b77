// Package session keeps one conversation connected.
//
// A Session owns the connection handle, reconnect policy, inbound dispatcher
// and outbound queue for one conversation. Every entry point (Start, Send,
// Stop, handle callbacks and the reconnect timer) runs as one critical
// section under the session mutex, so enqueue and flush never interleave.
// The UI callback runs on the handle's read goroutine after the turn that
// accepted the frame, which keeps inbound order.
//
// Callbacks from a handle that has been replaced, or that arrive after Stop,
// are ignored.
//
// Registry maps conversation ids to sessions for applications that keep
// several conversations open.
package session
