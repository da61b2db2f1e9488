// Package sign implements the integrity layer for stored records: Ed25519
// keypairs in JWK form (RFC 8037) and signed envelopes in JWS dictionary
// form (RFC 7515).
//
// The signing input is base64url(JSON(header)) || "." ||
// base64url(canonical JSON(payload)). Payload JSON is canonicalized with
// recursively sorted object keys so that verification survives media that
// do not preserve document key order.
//
// This package is independent of storage; the storage domain layer decides
// when a record gets wrapped.
package sign
