package callback

import "errors"

// The closed set of failure kinds for this protocol. ErrInvalidKey is a
// configuration-time error that blocks activation of an endpoint; the rest
// reject a single request. Messages are deliberately generic: nothing here
// may reveal key material, plaintext, or the signature that was attempted.
var (
	// ErrInvalidKey means the configured encoding key does not recover a
	// 32-byte AES key. Fatal at configuration time.
	ErrInvalidKey = errors.New("invalid encoding key")

	// ErrSignatureMismatch means the request signature did not verify.
	ErrSignatureMismatch = errors.New("signature mismatch")

	// ErrPadding means the ciphertext is not block-aligned or its PKCS#7
	// padding is malformed.
	ErrPadding = errors.New("invalid message padding")

	// ErrFrame means the decrypted plaintext does not parse as a
	// prefix/length/payload/receiver frame.
	ErrFrame = errors.New("invalid message frame")

	// ErrReceiverMismatch means the message decrypted cleanly but is
	// addressed to a different integration instance.
	ErrReceiverMismatch = errors.New("receiver id mismatch")
)
