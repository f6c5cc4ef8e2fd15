package callback

import (
	"encoding/base64"
	"fmt"
)

const (
	// encodedKeyLen is the fixed length of the configured key string: a
	// 32-byte key in base64 with the single trailing '=' stripped.
	encodedKeyLen = 43

	keySize = 32
	ivSize  = 16
)

// KeyMaterial is the AES-256 key and IV recovered from an encoded key.
// The IV is always the first 16 bytes of the key (protocol quirk).
// KeyMaterial is immutable after derivation and safe to share across
// goroutines without locking.
type KeyMaterial struct {
	Key []byte
	IV  []byte
}

// DeriveKeyMaterial decodes a 43-character encoded key into KeyMaterial.
// The key string is standard base64 with its trailing '=' stripped; the
// decoded value must be exactly 32 bytes. Any other input is ErrInvalidKey.
func DeriveKeyMaterial(encodedKey string) (KeyMaterial, error) {
	if len(encodedKey) != encodedKeyLen {
		return KeyMaterial{}, fmt.Errorf("%w: want %d characters, got %d", ErrInvalidKey, encodedKeyLen, len(encodedKey))
	}

	key, err := base64.StdEncoding.DecodeString(encodedKey + "=")
	if err != nil {
		return KeyMaterial{}, fmt.Errorf("%w: not base64", ErrInvalidKey)
	}
	if len(key) != keySize {
		return KeyMaterial{}, fmt.Errorf("%w: decodes to %d bytes, want %d", ErrInvalidKey, len(key), keySize)
	}

	return KeyMaterial{Key: key, IV: key[:ivSize]}, nil
}

// CredentialSet is the immutable configuration of one callback integration:
// the shared token, the derived key material, and (optionally) the receiver
// id that inbound messages must be addressed to.
type CredentialSet struct {
	Token              string
	ExpectedReceiverID string

	keys KeyMaterial
}

// NewCredentialSet validates credentials eagerly and derives the key
// material once. A failure here is a configuration error: the endpoint must
// not activate, and no request-time path ever sees an underived key.
func NewCredentialSet(token, encodedKey, expectedReceiverID string) (*CredentialSet, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: empty token", ErrInvalidKey)
	}

	keys, err := DeriveKeyMaterial(encodedKey)
	if err != nil {
		return nil, err
	}

	return &CredentialSet{
		Token:              token,
		ExpectedReceiverID: expectedReceiverID,
		keys:               keys,
	}, nil
}

// Keys returns the cached key material. It is never re-derived per request.
func (c *CredentialSet) Keys() KeyMaterial {
	return c.keys
}
