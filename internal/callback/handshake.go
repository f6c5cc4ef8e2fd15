package callback

import (
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Handshake evaluates the two request kinds of the callback protocol for one
// credential set. It holds no per-request state: every request is verified
// and decrypted independently, and a rejection is terminal for that request.
type Handshake struct {
	creds *CredentialSet
}

// NewHandshake binds a handshake evaluator to a validated credential set.
func NewHandshake(creds *CredentialSet) *Handshake {
	return &Handshake{creds: creds}
}

// HandleVerification processes the setup-time verification challenge. The
// counterparty sends an encrypted echo string; proving possession of the
// shared secret means returning its decrypted payload as the literal
// response body.
func (h *Handshake) HandleVerification(signature, timestamp, nonce, echostr string) ([]byte, error) {
	if !VerifySignature(signature, h.creds.Token, timestamp, nonce, echostr) {
		return nil, ErrSignatureMismatch
	}

	msg, err := Decrypt(h.creds.Keys(), echostr, "")
	if err != nil {
		return nil, err
	}
	return msg.Payload, nil
}

// HandleEvent authenticates and decrypts an event callback. Receiver
// enforcement applies when the credential set configures an expected
// receiver id.
func (h *Handshake) HandleEvent(signature, timestamp, nonce, cipherB64 string) (*DecryptedMessage, error) {
	if !VerifySignature(signature, h.creds.Token, timestamp, nonce, cipherB64) {
		return nil, ErrSignatureMismatch
	}
	return Decrypt(h.creds.Keys(), cipherB64, h.creds.ExpectedReceiverID)
}

// ReplyEnvelope is an outbound encrypted reply: the ciphertext plus the
// freshly minted signature fields the counterparty will verify.
type ReplyEnvelope struct {
	Encrypt   string
	Signature string
	Timestamp string
	Nonce     string
}

// EncryptReply encrypts a reply payload addressed to the configured receiver
// and signs it with a fresh timestamp and nonce.
func (h *Handshake) EncryptReply(payload []byte) (*ReplyEnvelope, error) {
	ct, err := Encrypt(h.creds.Keys(), payload, []byte(h.creds.ExpectedReceiverID))
	if err != nil {
		return nil, err
	}

	ts := strconv.FormatInt(time.Now().Unix(), 10)
	nonce := uuid.NewString()

	return &ReplyEnvelope{
		Encrypt:   ct,
		Signature: Signature(h.creds.Token, ts, nonce, ct),
		Timestamp: ts,
		Nonce:     nonce,
	}, nil
}
