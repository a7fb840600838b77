// Package router turns decoded inbound frames into UI messages.
//
// Only "new_message" frames reach the handler. Message bodies from the chat
// backend are normalized: ids may be strings or numbers, a missing sender
// becomes an empty record, and IsOwn is derived from the local user id.
package router
