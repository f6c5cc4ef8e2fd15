// Package server exposes the callback endpoints over HTTP.
//
// Each configured endpoint answers two request kinds:
//
//   - GET with signature/timestamp/nonce/echostr query parameters: the
//     setup-time verification challenge. The decrypted echo payload is
//     returned as the literal response body.
//   - POST with the same signature parameters and an encrypted body: an
//     event callback. The body envelope is JSON ({"encrypt": "..."}) or XML
//     (<xml><Encrypt>...</Encrypt></xml>), autodetected; replies go back
//     re-encrypted in the same framing.
//
// # Security Model
//
// - Every request is signature-verified before its envelope is touched
// - Body size limits enforced per endpoint
// - Rejections are generic 400s: no signature values, no padding detail
// - Request logging excludes bodies and decrypted payloads
package server
