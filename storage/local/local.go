// Package local implements the storage driver on a directory tree.
// Record paths map to directories, ids to "<id>.json" files, and moves
// use os.Rename, which is atomic within one filesystem.
package local

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	sqooler "github.com/Alqor-UG/sqooler-sub000"
	"github.com/Alqor-UG/sqooler-sub000/storage"
)

// Driver stores JSON records as files under a base directory.
type Driver struct {
	base     string
	name     string
	inactive atomic.Bool
}

var _ storage.Driver = (*Driver)(nil)

// New creates the base directory if needed and probes it for writability.
func New(base, name string) (*Driver, error) {
	if err := storage.ValidateName(name); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, fmt.Errorf("local: create base directory: %w", err)
	}
	probe, err := os.CreateTemp(base, ".probe-*")
	if err != nil {
		return nil, fmt.Errorf("local: base directory not writable: %w", err)
	}
	probe.Close()
	os.Remove(probe.Name())

	return &Driver{base: base, name: name}, nil
}

// Deactivate marks the driver inactive; every subsequent operation fails
// with ErrInactive.
func (d *Driver) Deactivate() { d.inactive.Store(true) }

// Activate re-enables a deactivated driver.
func (d *Driver) Activate() { d.inactive.Store(false) }

func (d *Driver) Name() string { return d.name }

func (d *Driver) guard() error {
	if d.inactive.Load() {
		return fmt.Errorf("local: %w", sqooler.ErrInactive)
	}
	return nil
}

func (d *Driver) file(path, id string) string {
	return filepath.Join(d.base, filepath.FromSlash(path), id+".json")
}

func (d *Driver) Upload(ctx context.Context, content json.RawMessage, path, id string) error {
	if err := d.guard(); err != nil {
		return err
	}
	name := d.file(path, id)
	if err := os.MkdirAll(filepath.Dir(name), 0o755); err != nil {
		return fmt.Errorf("local: create %s: %w", path, err)
	}
	if err := os.WriteFile(name, content, 0o644); err != nil {
		return fmt.Errorf("local: write %s/%s: %w", path, id, err)
	}
	return nil
}

func (d *Driver) Get(ctx context.Context, path, id string) (json.RawMessage, error) {
	if err := d.guard(); err != nil {
		return nil, err
	}
	content, err := os.ReadFile(d.file(path, id))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("local: %s/%s: %w", path, id, sqooler.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("local: read %s/%s: %w", path, id, err)
	}
	return content, nil
}

func (d *Driver) Update(ctx context.Context, content json.RawMessage, path, id string) error {
	if err := d.guard(); err != nil {
		return err
	}
	name := d.file(path, id)
	if _, err := os.Stat(name); errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("local: %s/%s: %w", path, id, sqooler.ErrNotFound)
	} else if err != nil {
		return fmt.Errorf("local: stat %s/%s: %w", path, id, err)
	}
	if err := os.WriteFile(name, content, 0o644); err != nil {
		return fmt.Errorf("local: write %s/%s: %w", path, id, err)
	}
	return nil
}

func (d *Driver) Move(ctx context.Context, fromPath, toPath, id string) error {
	if err := d.guard(); err != nil {
		return err
	}
	src := d.file(fromPath, id)
	dst := d.file(toPath, id)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("local: create %s: %w", toPath, err)
	}
	err := os.Rename(src, dst)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("local: %s/%s: %w", fromPath, id, sqooler.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("local: move %s/%s to %s: %w", fromPath, id, toPath, err)
	}
	return nil
}

func (d *Driver) Delete(ctx context.Context, path, id string) error {
	if err := d.guard(); err != nil {
		return err
	}
	err := os.Remove(d.file(path, id))
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("local: %s/%s: %w", path, id, sqooler.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("local: delete %s/%s: %w", path, id, err)
	}
	return nil
}

func (d *Driver) List(ctx context.Context, path string) ([]string, error) {
	if err := d.guard(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(filepath.Join(d.base, filepath.FromSlash(path)))
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("local: list %s: %w", path, err)
	}
	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(entry.Name(), ".json"))
	}
	return ids, nil
}
