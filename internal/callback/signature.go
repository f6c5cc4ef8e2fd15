package callback

import (
	"crypto/sha1"
	"crypto/subtle"
	"encoding/hex"
	"sort"
	"strings"
)

// Signature computes the request signature: the four fields sorted ascending,
// concatenated with no separator, SHA-1, lowercase hex. The sort makes the
// digest independent of argument order at the call site.
func Signature(token, timestamp, nonce, cipher string) string {
	fields := []string{token, timestamp, nonce, cipher}
	sort.Strings(fields)

	sum := sha1.Sum([]byte(strings.Join(fields, "")))
	return hex.EncodeToString(sum[:])
}

// VerifySignature recomputes the signature and compares it to the candidate
// in constant time. It returns false on mismatch and never errors; the
// caller decides how to reject.
func VerifySignature(candidate, token, timestamp, nonce, cipher string) bool {
	if candidate == "" {
		return false
	}
	expected := Signature(token, timestamp, nonce, cipher)
	return subtle.ConstantTimeCompare([]byte(candidate), []byte(expected)) == 1
}
