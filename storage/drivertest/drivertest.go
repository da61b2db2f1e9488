// Package drivertest is a conformance suite for storage drivers. Each
// adapter runs the same behavioral checks against its own medium, so the
// domain layer can treat every driver alike.
package drivertest

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	sqooler "github.com/Alqor-UG/sqooler-sub000"
	"github.com/Alqor-UG/sqooler-sub000/storage"
)

// Factory returns a fresh, empty driver for one subtest.
type Factory func(t *testing.T) storage.Driver

// Run exercises the full Driver contract against drivers built by the
// factory.
func Run(t *testing.T, factory Factory) {
	t.Helper()
	ctx := context.Background()

	record := json.RawMessage(`{"display_name":"fermions","shots":4}`)
	replacement := json.RawMessage(`{"display_name":"fermions","shots":8}`)

	t.Run("UploadAndGet", func(t *testing.T) {
		drv := factory(t)
		if err := drv.Upload(ctx, record, "jobs/queued/fermions", "job1"); err != nil {
			t.Fatalf("Upload returned error: %v", err)
		}
		got, err := drv.Get(ctx, "jobs/queued/fermions", "job1")
		if err != nil {
			t.Fatalf("Get returned error: %v", err)
		}
		assertSameJSON(t, got, record)
	})

	t.Run("UploadOverwrites", func(t *testing.T) {
		drv := factory(t)
		mustUpload(t, drv, record, "jobs/queued/fermions", "job1")
		mustUpload(t, drv, replacement, "jobs/queued/fermions", "job1")
		got, err := drv.Get(ctx, "jobs/queued/fermions", "job1")
		if err != nil {
			t.Fatalf("Get returned error: %v", err)
		}
		assertSameJSON(t, got, replacement)
	})

	t.Run("GetMissing", func(t *testing.T) {
		drv := factory(t)
		if _, err := drv.Get(ctx, "jobs/queued/fermions", "absent"); !errors.Is(err, sqooler.ErrNotFound) {
			t.Fatalf("Get missing record: got %v, want ErrNotFound", err)
		}
	})

	t.Run("Update", func(t *testing.T) {
		drv := factory(t)
		mustUpload(t, drv, record, "backends/configs", "fermions")
		if err := drv.Update(ctx, replacement, "backends/configs", "fermions"); err != nil {
			t.Fatalf("Update returned error: %v", err)
		}
		got, err := drv.Get(ctx, "backends/configs", "fermions")
		if err != nil {
			t.Fatalf("Get returned error: %v", err)
		}
		assertSameJSON(t, got, replacement)
	})

	t.Run("UpdateMissing", func(t *testing.T) {
		drv := factory(t)
		if err := drv.Update(ctx, record, "backends/configs", "absent"); !errors.Is(err, sqooler.ErrNotFound) {
			t.Fatalf("Update missing record: got %v, want ErrNotFound", err)
		}
	})

	t.Run("Move", func(t *testing.T) {
		drv := factory(t)
		mustUpload(t, drv, record, "jobs/queued/fermions", "job1")
		if err := drv.Move(ctx, "jobs/queued/fermions", "jobs/running/fermions", "job1"); err != nil {
			t.Fatalf("Move returned error: %v", err)
		}
		if _, err := drv.Get(ctx, "jobs/queued/fermions", "job1"); !errors.Is(err, sqooler.ErrNotFound) {
			t.Fatalf("source still readable after move: %v", err)
		}
		got, err := drv.Get(ctx, "jobs/running/fermions", "job1")
		if err != nil {
			t.Fatalf("Get at destination returned error: %v", err)
		}
		assertSameJSON(t, got, record)
	})

	t.Run("MoveMissing", func(t *testing.T) {
		drv := factory(t)
		if err := drv.Move(ctx, "jobs/queued/fermions", "jobs/running/fermions", "absent"); !errors.Is(err, sqooler.ErrNotFound) {
			t.Fatalf("Move missing record: got %v, want ErrNotFound", err)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		drv := factory(t)
		mustUpload(t, drv, record, "jobs/deleted/fermions", "job1")
		if err := drv.Delete(ctx, "jobs/deleted/fermions", "job1"); err != nil {
			t.Fatalf("Delete returned error: %v", err)
		}
		if _, err := drv.Get(ctx, "jobs/deleted/fermions", "job1"); !errors.Is(err, sqooler.ErrNotFound) {
			t.Fatalf("record still readable after delete: %v", err)
		}
	})

	t.Run("DeleteMissing", func(t *testing.T) {
		drv := factory(t)
		if err := drv.Delete(ctx, "jobs/deleted/fermions", "absent"); !errors.Is(err, sqooler.ErrNotFound) {
			t.Fatalf("Delete missing record: got %v, want ErrNotFound", err)
		}
	})

	t.Run("ListEmpty", func(t *testing.T) {
		drv := factory(t)
		ids, err := drv.List(ctx, "jobs/queued/fermions")
		if err != nil {
			t.Fatalf("List returned error: %v", err)
		}
		if len(ids) != 0 {
			t.Fatalf("List of empty path = %v, want empty", ids)
		}
	})

	t.Run("List", func(t *testing.T) {
		drv := factory(t)
		mustUpload(t, drv, record, "jobs/queued/fermions", "job1")
		mustUpload(t, drv, record, "jobs/queued/fermions", "job2")
		mustUpload(t, drv, record, "jobs/queued/bosons", "job3")

		ids, err := drv.List(ctx, "jobs/queued/fermions")
		if err != nil {
			t.Fatalf("List returned error: %v", err)
		}
		want := map[string]bool{"job1": true, "job2": true}
		if len(ids) != len(want) {
			t.Fatalf("List = %v, want ids %v", ids, want)
		}
		for _, id := range ids {
			if !want[id] {
				t.Errorf("List returned unexpected id %q", id)
			}
		}
	})
}

func mustUpload(t *testing.T, drv storage.Driver, content json.RawMessage, path, id string) {
	t.Helper()
	if err := drv.Upload(context.Background(), content, path, id); err != nil {
		t.Fatalf("Upload %s/%s returned error: %v", path, id, err)
	}
}

// assertSameJSON compares records structurally; adapters are free to
// reorder object keys.
func assertSameJSON(t *testing.T, got, want json.RawMessage) {
	t.Helper()
	var gotVal, wantVal any
	if err := json.Unmarshal(got, &gotVal); err != nil {
		t.Fatalf("got invalid JSON %s: %v", got, err)
	}
	if err := json.Unmarshal(want, &wantVal); err != nil {
		t.Fatalf("want invalid JSON %s: %v", want, err)
	}
	gotCanon, _ := json.Marshal(gotVal)
	wantCanon, _ := json.Marshal(wantVal)
	if string(gotCanon) != string(wantCanon) {
		t.Fatalf("record mismatch:\n got %s\nwant %s", gotCanon, wantCanon)
	}
}
