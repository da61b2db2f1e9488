package sign

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"

	sqooler "github.com/Alqor-UG/sqooler-sub000"
)

// Key usage values. A "verify" key must never carry private material; a
// "sign" key's private half never leaves the signer.
const (
	UseSign   = "sign"
	UseVerify = "verify"
)

// Fixed JWK parameters for Ed25519 keys.
const (
	KtyOKP     = "OKP"
	AlgEdDSA   = "EdDSA"
	CrvEd25519 = "Ed25519"
)

// Bytes is a byte slice that serializes as base64url without padding.
type Bytes []byte

// MarshalJSON encodes the bytes as a base64url string.
func (b Bytes) MarshalJSON() ([]byte, error) {
	return json.Marshal(base64.RawURLEncoding.EncodeToString(b))
}

// UnmarshalJSON decodes a base64url string, tolerating padded input.
func (b *Bytes) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	decoded, err := decodeB64(s)
	if err != nil {
		return fmt.Errorf("sign: decode base64url: %w", err)
	}
	*b = decoded
	return nil
}

func decodeB64(s string) ([]byte, error) {
	if decoded, err := base64.RawURLEncoding.DecodeString(s); err == nil {
		return decoded, nil
	}
	return base64.URLEncoding.DecodeString(s)
}

// Key is an Ed25519 JSON Web Key. X holds the public key; D holds the
// private seed and is present only on signing keys.
type Key struct {
	X   Bytes  `json:"x"`
	Use string `json:"key_ops"`
	Kid string `json:"kid"`
	D   Bytes  `json:"d,omitempty"`
	Kty string `json:"kty"`
	Alg string `json:"alg"`
	Crv string `json:"crv"`
}

// GenerateKeyPair creates a fresh signing key under the given key id. The
// verification half is derived with Public.
func GenerateKeyPair(kid string) (Key, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return Key{}, fmt.Errorf("sign: generate keypair: %w", err)
	}
	return Key{
		X:   Bytes(pub),
		Use: UseSign,
		Kid: kid,
		D:   Bytes(priv.Seed()),
		Kty: KtyOKP,
		Alg: AlgEdDSA,
		Crv: CrvEd25519,
	}, nil
}

// Public derives the verification key from a signing key.
func (k Key) Public() (Key, error) {
	if k.Use != UseSign || len(k.D) == 0 {
		return Key{}, fmt.Errorf("sign: derive public key: not a private signing key: %w", sqooler.ErrSigning)
	}
	return Key{
		X:   k.X,
		Use: UseVerify,
		Kid: k.Kid,
		Kty: KtyOKP,
		Alg: AlgEdDSA,
		Crv: CrvEd25519,
	}, nil
}

// EncodeString renders the key as a base64url JSON string suitable for an
// environment variable or config file.
func (k Key) EncodeString() (string, error) {
	raw, err := json.Marshal(k)
	if err != nil {
		return "", fmt.Errorf("sign: encode key: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// DecodeString parses a key previously rendered by EncodeString.
func DecodeString(s string) (Key, error) {
	raw, err := decodeB64(s)
	if err != nil {
		return Key{}, fmt.Errorf("sign: decode key string: %w", err)
	}
	var k Key
	if err := json.Unmarshal(raw, &k); err != nil {
		return Key{}, fmt.Errorf("sign: decode key json: %w", err)
	}
	return k, nil
}

// privateKey reconstructs the ed25519 private key from the stored seed.
func (k Key) privateKey() (ed25519.PrivateKey, error) {
	if k.Use != UseSign {
		return nil, fmt.Errorf("sign: key %q is not intended for signing: %w", k.Kid, sqooler.ErrSigning)
	}
	if len(k.D) != ed25519.SeedSize {
		return nil, fmt.Errorf("sign: key %q is missing private material: %w", k.Kid, sqooler.ErrSigning)
	}
	return ed25519.NewKeyFromSeed(k.D), nil
}
