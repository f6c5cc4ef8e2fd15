// Package dispatch routes decrypted callback payloads to registered
// handlers by message type.
//
// The gateway's crypto layer hands over plaintext payloads only after
// signature verification and envelope decryption. A handler's reply bytes,
// if any, flow back to the server layer for re-encryption before leaving
// the process. Message types with no registered handler are acknowledged
// without a reply, matching counterparty expectations (an unanswered
// callback is retried; an acknowledged one is not).
package dispatch
