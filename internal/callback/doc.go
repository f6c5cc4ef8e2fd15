// Package callback implements the challenge-response handshake and symmetric
// message envelope used by encrypted enterprise-messaging callback webhooks.
//
// The counterparty signs every request with SHA-1 over the sorted set of
// (token, timestamp, nonce, ciphertext) and carries the message body as an
// AES-256-CBC encrypted, PKCS#7 padded frame:
//
//	[16 random bytes][uint32 big-endian length][payload][receiver id]
//
// The 32-byte AES key is recovered from a 43-character base64 string with the
// trailing '=' restored, and the IV is always the first 16 bytes of the key.
// That IV rule is a protocol quirk, not a choice; it must be reproduced
// exactly for interoperability.
//
// # Security Model
//
// - Signatures compared with crypto/subtle (constant-time comparison)
// - Malformed credentials rejected at configuration time, never per request
// - Random envelope prefixes drawn from crypto/rand
// - Error values carry no key material, plaintext, or signature values
//
// # Request Flow
//
//  1. VerifySignature over the four signed fields (reject on mismatch)
//  2. Decrypt the envelope (reject on padding/frame/receiver errors)
//  3. Hand the plaintext payload to the dispatch layer
//  4. Encrypt any reply and sign it with a fresh timestamp and nonce
//
// Both request kinds (setup-time verification challenge and event callback)
// are stateless and independent; a rejected request is terminal and is never
// retried at this layer.
package callback
