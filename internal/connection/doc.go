// Package connection implements the per-conversation ConnectionHandle.
//
// A Handle:
//   - Owns one websocket bound to one conversation id and one auth token
//   - Dials asynchronously; Open returns immediately
//   - Reports lifecycle through serialized callbacks (OnOpen, OnMessage,
//     OnError, OnClose), with nothing delivered after OnClose
//   - Decodes inbound envelopes; a malformed frame is reported through
//     OnError and the connection stays up
//   - Keeps the socket alive with ping/pong and treats a silent peer as stale
//
// Reconnection is not handled here. The owning session decides whether to
// open a new Handle after OnClose.
package connection
