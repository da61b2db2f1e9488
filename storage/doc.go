// Package storage defines the record-store contract shared by all
// backends and the domain layer built on top of it.
//
// A Driver is a minimal adapter over one storage medium: JSON documents
// addressed by a slash-separated path and an id. The Provider implements
// every domain operation (backend configuration, job queues, status and
// result records, public keys) once, in terms of that contract, so the
// filesystem, MongoDB and MinIO adapters stay interchangeable.
package storage
