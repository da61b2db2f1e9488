package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
)

// Driver is the record-store primitive every adapter implements. Records
// are JSON documents addressed by a slash-separated path and an id; the
// adapter decides how both map onto its medium.
//
// All methods on a deactivated driver fail with ErrInactive before
// touching the medium.
type Driver interface {
	// Upload stores a record, overwriting any existing one.
	Upload(ctx context.Context, content json.RawMessage, path, id string) error

	// Get retrieves a record. Absent records fail with ErrNotFound.
	Get(ctx context.Context, path, id string) (json.RawMessage, error)

	// Update replaces an existing record. Absent records fail with
	// ErrNotFound.
	Update(ctx context.Context, content json.RawMessage, path, id string) error

	// Move relocates a record between paths, keeping its id. The source
	// must exist.
	Move(ctx context.Context, fromPath, toPath, id string) error

	// Delete removes a record. Absent records fail with ErrNotFound.
	Delete(ctx context.Context, path, id string) error

	// List returns the ids of all records under a path, in the adapter's
	// enumeration order. A path with no records yields an empty slice.
	List(ctx context.Context, path string) ([]string, error)

	// Name identifies the adapter, e.g. "local" or "mongodb".
	Name() string
}

var namePattern = regexp.MustCompile(`^[a-z0-9]+$`)

// ValidateName enforces the naming rule for drivers and backend display
// names: non-empty, lowercase alphanumeric.
func ValidateName(name string) error {
	if !namePattern.MatchString(name) {
		return fmt.Errorf("storage: name %q must be lowercase alphanumeric", name)
	}
	return nil
}
