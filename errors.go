package sqooler

import "errors"

var (
	// Record-store errors.
	ErrNotFound      = errors.New("sqooler: record not found")
	ErrAlreadyExists = errors.New("sqooler: record already exists")
	ErrInactive      = errors.New("sqooler: storage provider is not active")

	// Signing errors.
	ErrSigning = errors.New("sqooler: signing error")

	// Job-content errors. Never surfaced to polling callers; folded into
	// status records at the pipeline boundary.
	ErrValidation = errors.New("sqooler: validation error")

	// State errors.
	ErrMissingResult    = errors.New("sqooler: result required for a finished job")
	ErrMissingGenerator = errors.New("sqooler: circuit generator not configured")
)
