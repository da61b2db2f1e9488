package sign

import (
	"crypto/ed25519"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"fmt"

	sqooler "github.com/Alqor-UG/sqooler-sub000"
)

// Envelope format version.
const Version = "0.1"

// Header is the protected header of a signed envelope.
type Header struct {
	Alg     string `json:"alg"`
	Kid     string `json:"kid"`
	Typ     string `json:"typ"`
	Version string `json:"version"`
}

// NewHeader returns the header for a signature made with the given key id.
func NewHeader(kid string) Header {
	return Header{Alg: AlgEdDSA, Kid: kid, Typ: "JWS", Version: Version}
}

// Envelope is a JWS in dictionary form: a protected header, the payload as
// a plain JSON object, and the signature over both.
type Envelope struct {
	Header    Header          `json:"header"`
	Payload   json.RawMessage `json:"payload"`
	Signature Bytes           `json:"signature"`
}

// Sign wraps the payload in a signed envelope. It fails when the key is
// not intended for signing or lacks private material.
func Sign(payload any, key Key) (Envelope, error) {
	priv, err := key.privateKey()
	if err != nil {
		return Envelope{}, err
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("sign: marshal payload: %w", err)
	}

	header := NewHeader(key.Kid)
	input, err := signingInput(header, raw)
	if err != nil {
		return Envelope{}, err
	}

	return Envelope{
		Header:    header,
		Payload:   raw,
		Signature: Bytes(ed25519.Sign(priv, input)),
	}, nil
}

// Verify recomputes the signature with the presented public key. It
// returns false on mismatch and fails only on structural misuse, such as
// verifying with a signing key.
func (e Envelope) Verify(public Key) (bool, error) {
	if public.Use != UseVerify {
		return false, fmt.Errorf("sign: key %q is not intended for verification: %w", public.Kid, sqooler.ErrSigning)
	}
	if len(public.X) != ed25519.PublicKeySize {
		return false, fmt.Errorf("sign: key %q has malformed public material: %w", public.Kid, sqooler.ErrSigning)
	}

	input, err := signingInput(e.Header, e.Payload)
	if err != nil {
		return false, err
	}
	return ed25519.Verify(ed25519.PublicKey(public.X), input, e.Signature), nil
}

// SignedBy reports whether re-signing the envelope's payload under its
// stored header with the given private key reproduces the stored
// signature. This is the continuity proof required before a signed record
// may be replaced.
func (e Envelope) SignedBy(key Key) (bool, error) {
	priv, err := key.privateKey()
	if err != nil {
		return false, err
	}
	input, err := signingInput(e.Header, e.Payload)
	if err != nil {
		return false, err
	}
	resigned := ed25519.Sign(priv, input)
	return subtle.ConstantTimeCompare(resigned, e.Signature) == 1, nil
}

// Unwrap decodes the envelope payload into dst.
func (e Envelope) Unwrap(dst any) error {
	if err := json.Unmarshal(e.Payload, dst); err != nil {
		return fmt.Errorf("sign: unwrap payload: %w", err)
	}
	return nil
}

// IsEnvelope reports whether the raw record looks like a signed envelope
// rather than a plain payload.
func IsEnvelope(raw json.RawMessage) bool {
	var probe struct {
		Header    *Header         `json:"header"`
		Payload   json.RawMessage `json:"payload"`
		Signature *string         `json:"signature"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return false
	}
	return probe.Header != nil && probe.Signature != nil && len(probe.Payload) > 0
}

// Parse decodes a raw record into an envelope.
func Parse(raw json.RawMessage) (Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(raw, &e); err != nil {
		return Envelope{}, fmt.Errorf("sign: parse envelope: %w", err)
	}
	return e, nil
}

// signingInput builds base64url(header) || "." || base64url(canonical
// payload).
func signingInput(header Header, payload json.RawMessage) ([]byte, error) {
	headerJSON, err := json.Marshal(header)
	if err != nil {
		return nil, fmt.Errorf("sign: marshal header: %w", err)
	}
	canonical, err := canonicalJSON(payload)
	if err != nil {
		return nil, err
	}

	input := make([]byte, 0, base64.RawURLEncoding.EncodedLen(len(headerJSON))+base64.RawURLEncoding.EncodedLen(len(canonical))+1)
	input = base64.RawURLEncoding.AppendEncode(input, headerJSON)
	input = append(input, '.')
	input = base64.RawURLEncoding.AppendEncode(input, canonical)
	return input, nil
}

// canonicalJSON re-encodes a JSON document deterministically. Decoding
// into interface values and re-marshaling sorts all object keys, so two
// representations of the same document produce identical bytes regardless
// of the key order a storage medium happens to preserve.
func canonicalJSON(raw json.RawMessage) ([]byte, error) {
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, fmt.Errorf("sign: canonicalize payload: %w", err)
	}
	canonical, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("sign: canonicalize payload: %w", err)
	}
	return canonical, nil
}
