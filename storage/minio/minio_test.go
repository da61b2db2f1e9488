//go:build integration

package minio_test

import (
	"context"
	"fmt"
	"testing"

	tcminio "github.com/testcontainers/testcontainers-go/modules/minio"

	"github.com/Alqor-UG/sqooler-sub000/storage"
	"github.com/Alqor-UG/sqooler-sub000/storage/drivertest"
	miniodrv "github.com/Alqor-UG/sqooler-sub000/storage/minio"
)

// setupEndpoint starts a MinIO container and returns its connection config.
func setupEndpoint(t *testing.T) miniodrv.Config {
	t.Helper()

	ctx := context.Background()

	container, err := tcminio.Run(ctx, "minio/minio:RELEASE.2024-01-16T16-07-38Z")
	if err != nil {
		t.Fatalf("start minio container: %v", err)
	}
	t.Cleanup(func() {
		if termErr := container.Terminate(ctx); termErr != nil {
			t.Logf("terminate container: %v", termErr)
		}
	})

	endpoint, err := container.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("get connection string: %v", err)
	}

	return miniodrv.Config{
		Endpoint:  endpoint,
		AccessKey: container.Username,
		SecretKey: container.Password,
	}
}

func TestDriverConformance(t *testing.T) {
	cfg := setupEndpoint(t)

	bucket := 0
	drivertest.Run(t, func(t *testing.T) storage.Driver {
		// A fresh bucket per subtest keeps them isolated.
		bucket++
		cfg := cfg
		cfg.Bucket = fmt.Sprintf("conformance-%d", bucket)
		drv, err := miniodrv.New(context.Background(), cfg, "minio")
		if err != nil {
			t.Fatalf("connect driver: %v", err)
		}
		return drv
	})
}

func TestNewCreatesBucket(t *testing.T) {
	cfg := setupEndpoint(t)
	cfg.Bucket = "freshbucket"

	ctx := context.Background()
	if _, err := miniodrv.New(ctx, cfg, "minio"); err != nil {
		t.Fatalf("New with absent bucket returned error: %v", err)
	}
	// Second connect sees the bucket already there.
	if _, err := miniodrv.New(ctx, cfg, "minio"); err != nil {
		t.Fatalf("New with existing bucket returned error: %v", err)
	}
}
