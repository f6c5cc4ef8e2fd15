package callback

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/binary"
	"fmt"
)

// frameHeaderSize is the minimum plaintext size: 16 bytes of random prefix
// plus the 4-byte big-endian payload length.
const frameHeaderSize = 20

// DecryptedMessage is the parsed plaintext frame of one request. It is
// request-scoped: never persisted, never logged.
type DecryptedMessage struct {
	Payload    []byte
	ReceiverID []byte
}

// Decrypt base64-decodes and AES-256-CBC decrypts a message envelope, strips
// its PKCS#7 padding, and parses the prefix/length/payload/receiver frame.
// When expectedReceiverID is non-empty the embedded receiver id must match
// it exactly.
func Decrypt(km KeyMaterial, cipherB64, expectedReceiverID string) (*DecryptedMessage, error) {
	ct, err := base64.StdEncoding.DecodeString(cipherB64)
	if err != nil {
		return nil, fmt.Errorf("%w: ciphertext not base64", ErrPadding)
	}
	// Reject non-block-aligned input before it reaches the block cipher.
	if len(ct) == 0 || len(ct)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("%w: ciphertext length %d not a positive multiple of %d", ErrPadding, len(ct), aes.BlockSize)
	}

	block, err := aes.NewCipher(km.Key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}

	plain := make([]byte, len(ct))
	cipher.NewCBCDecrypter(block, km.IV).CryptBlocks(plain, ct)

	plain, err = stripPKCS7(plain)
	if err != nil {
		return nil, err
	}

	if len(plain) < frameHeaderSize {
		return nil, fmt.Errorf("%w: plaintext too short", ErrFrame)
	}

	// Bytes [0,16) are the random prefix; it is discarded, not validated.
	payloadLen := binary.BigEndian.Uint32(plain[16:frameHeaderSize])
	rest := plain[frameHeaderSize:]
	if uint64(payloadLen) > uint64(len(rest)) {
		return nil, fmt.Errorf("%w: declared length %d exceeds %d remaining bytes", ErrFrame, payloadLen, len(rest))
	}

	payload := rest[:payloadLen]
	receiver := rest[payloadLen:]

	if expectedReceiverID != "" && !bytes.Equal(receiver, []byte(expectedReceiverID)) {
		return nil, ErrReceiverMismatch
	}

	return &DecryptedMessage{Payload: payload, ReceiverID: receiver}, nil
}

// Encrypt frames payload and receiverID behind a fresh 16-byte random
// prefix, pads with PKCS#7, AES-256-CBC encrypts, and base64-encodes the
// result. Decrypt(Encrypt(km, p, r)) always round-trips to (p, r).
func Encrypt(km KeyMaterial, payload, receiverID []byte) (string, error) {
	prefix := make([]byte, 16)
	if _, err := rand.Read(prefix); err != nil {
		return "", fmt.Errorf("generate message prefix: %w", err)
	}

	frame := make([]byte, 0, frameHeaderSize+len(payload)+len(receiverID))
	frame = append(frame, prefix...)
	frame = binary.BigEndian.AppendUint32(frame, uint32(len(payload)))
	frame = append(frame, payload...)
	frame = append(frame, receiverID...)
	frame = padPKCS7(frame)

	block, err := aes.NewCipher(km.Key)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}

	ct := make([]byte, len(frame))
	cipher.NewCBCEncrypter(block, km.IV).CryptBlocks(ct, frame)

	return base64.StdEncoding.EncodeToString(ct), nil
}

// stripPKCS7 validates and removes PKCS#7 padding: the last byte p must be
// in 1..16 and the trailing p bytes must all equal p.
func stripPKCS7(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty plaintext", ErrPadding)
	}

	p := int(data[len(data)-1])
	if p < 1 || p > aes.BlockSize || p > len(data) {
		return nil, fmt.Errorf("%w: pad byte out of range", ErrPadding)
	}
	for _, b := range data[len(data)-p:] {
		if int(b) != p {
			return nil, fmt.Errorf("%w: inconsistent pad bytes", ErrPadding)
		}
	}
	return data[:len(data)-p], nil
}

// padPKCS7 pads data to the next multiple of the block size. Input that is
// already aligned still gains a full 16-byte pad block, per PKCS#7.
func padPKCS7(data []byte) []byte {
	p := aes.BlockSize - len(data)%aes.BlockSize
	pad := bytes.Repeat([]byte{byte(p)}, p)
	return append(data, pad...)
}
