// Package ingest implements the webhook ingestion pipeline: signature
// verification, payload parsing, and idempotent event recording.
//
// The pipeline is stateless; all coordination between concurrent identical
// deliveries is pushed into the event store's uniqueness constraint.
package ingest

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	"payhook/internal/types"
)

// Verifier validates the authenticity of a raw webhook body against the
// signature the provider attached to the request.
type Verifier interface {
	// Verify returns nil if provided is a valid signature over rawBody.
	// It returns a types.AppError with code ErrCodeAuthSignatureMissing when
	// provided is empty, or ErrCodeAuthSignatureInvalid on mismatch.
	Verify(rawBody []byte, provided string) error
}

// HMACVerifier implements Verifier using HMAC-SHA256 over the raw,
// unparsed request body, hex-encoded. The signature MUST be computed over
// the bytes exactly as transmitted: re-serializing parsed JSON can alter
// whitespace and key order and break the match.
//
// It is a pure function of its inputs plus the secret; no side effects.
type HMACVerifier struct {
	secret []byte
}

// NewHMACVerifier creates a verifier keyed with the shared webhook secret.
// The secret is passed in explicitly at construction; there is no ambient
// or global lookup.
func NewHMACVerifier(secret []byte) *HMACVerifier {
	return &HMACVerifier{secret: secret}
}

// Verify checks the provided hex-encoded signature against the expected
// HMAC-SHA256 of rawBody.
//
// The comparison uses hmac.Equal (constant-time). The expected digest has a
// fixed length, so a length mismatch only reveals that the attacker sent the
// wrong number of bytes, never at which byte a correct-length guess diverged.
func (v *HMACVerifier) Verify(rawBody []byte, provided string) error {
	if provided == "" {
		return types.NewAppError(types.ErrCodeAuthSignatureMissing, "Missing signature header", nil)
	}

	mac := hmac.New(sha256.New, v.secret)
	mac.Write(rawBody)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(provided)) {
		return types.NewAppError(types.ErrCodeAuthSignatureInvalid, "Invalid signature", nil)
	}
	return nil
}

// Compile-time assertion that HMACVerifier satisfies Verifier.
var _ Verifier = (*HMACVerifier)(nil)
