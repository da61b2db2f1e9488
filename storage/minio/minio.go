// Package minio implements the storage driver on an S3-compatible object
// store. Records live in one bucket as "<path>/<id>.json" objects; moves
// are a server-side copy followed by a remove.
package minio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync/atomic"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	sqooler "github.com/Alqor-UG/sqooler-sub000"
	"github.com/Alqor-UG/sqooler-sub000/storage"
)

// Config carries the connection settings for an S3-compatible endpoint.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// Driver stores JSON records as objects in a single bucket.
type Driver struct {
	client   *miniogo.Client
	bucket   string
	name     string
	inactive atomic.Bool
}

var _ storage.Driver = (*Driver)(nil)

// New connects to the object store and ensures the bucket exists.
func New(ctx context.Context, cfg Config, name string) (*Driver, error) {
	if err := storage.ValidateName(name); err != nil {
		return nil, err
	}
	client, err := miniogo.New(cfg.Endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio: connect: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("minio: check bucket %q: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, miniogo.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("minio: create bucket %q: %w", cfg.Bucket, err)
		}
	}
	return &Driver{client: client, bucket: cfg.Bucket, name: name}, nil
}

// Deactivate marks the driver inactive; every subsequent operation fails
// with ErrInactive.
func (d *Driver) Deactivate() { d.inactive.Store(true) }

// Activate re-enables a deactivated driver.
func (d *Driver) Activate() { d.inactive.Store(false) }

func (d *Driver) Name() string { return d.name }

func (d *Driver) guard() error {
	if d.inactive.Load() {
		return fmt.Errorf("minio: %w", sqooler.ErrInactive)
	}
	return nil
}

func objectKey(path, id string) string {
	return strings.Trim(path, "/") + "/" + id + ".json"
}

func (d *Driver) Upload(ctx context.Context, content json.RawMessage, path, id string) error {
	if err := d.guard(); err != nil {
		return err
	}
	_, err := d.client.PutObject(ctx, d.bucket, objectKey(path, id),
		bytes.NewReader(content), int64(len(content)),
		miniogo.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return fmt.Errorf("minio: upload %s/%s: %w", path, id, err)
	}
	return nil
}

func (d *Driver) Get(ctx context.Context, path, id string) (json.RawMessage, error) {
	if err := d.guard(); err != nil {
		return nil, err
	}
	obj, err := d.client.GetObject(ctx, d.bucket, objectKey(path, id), miniogo.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("minio: get %s/%s: %w", path, id, err)
	}
	defer obj.Close()

	content, err := io.ReadAll(obj)
	if isNoSuchKey(err) {
		return nil, fmt.Errorf("minio: %s/%s: %w", path, id, sqooler.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("minio: read %s/%s: %w", path, id, err)
	}
	return content, nil
}

func (d *Driver) Update(ctx context.Context, content json.RawMessage, path, id string) error {
	if err := d.guard(); err != nil {
		return err
	}
	if err := d.stat(ctx, path, id); err != nil {
		return err
	}
	return d.Upload(ctx, content, path, id)
}

func (d *Driver) Move(ctx context.Context, fromPath, toPath, id string) error {
	if err := d.guard(); err != nil {
		return err
	}
	if err := d.stat(ctx, fromPath, id); err != nil {
		return err
	}
	_, err := d.client.CopyObject(ctx,
		miniogo.CopyDestOptions{Bucket: d.bucket, Object: objectKey(toPath, id)},
		miniogo.CopySrcOptions{Bucket: d.bucket, Object: objectKey(fromPath, id)})
	if err != nil {
		return fmt.Errorf("minio: copy %s/%s to %s: %w", fromPath, id, toPath, err)
	}
	if err := d.client.RemoveObject(ctx, d.bucket, objectKey(fromPath, id), miniogo.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("minio: remove %s/%s after copy: %w", fromPath, id, err)
	}
	return nil
}

func (d *Driver) Delete(ctx context.Context, path, id string) error {
	if err := d.guard(); err != nil {
		return err
	}
	if err := d.stat(ctx, path, id); err != nil {
		return err
	}
	if err := d.client.RemoveObject(ctx, d.bucket, objectKey(path, id), miniogo.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("minio: delete %s/%s: %w", path, id, err)
	}
	return nil
}

func (d *Driver) List(ctx context.Context, path string) ([]string, error) {
	if err := d.guard(); err != nil {
		return nil, err
	}
	prefix := strings.Trim(path, "/") + "/"
	ids := []string{}
	for info := range d.client.ListObjects(ctx, d.bucket, miniogo.ListObjectsOptions{Prefix: prefix}) {
		if info.Err != nil {
			return nil, fmt.Errorf("minio: list %s: %w", path, info.Err)
		}
		name := strings.TrimPrefix(info.Key, prefix)
		if strings.Contains(name, "/") || !strings.HasSuffix(name, ".json") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}
	return ids, nil
}

// stat maps an absent object to ErrNotFound before a mutating call.
func (d *Driver) stat(ctx context.Context, path, id string) error {
	_, err := d.client.StatObject(ctx, d.bucket, objectKey(path, id), miniogo.StatObjectOptions{})
	if isNoSuchKey(err) {
		return fmt.Errorf("minio: %s/%s: %w", path, id, sqooler.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("minio: stat %s/%s: %w", path, id, err)
	}
	return nil
}

func isNoSuchKey(err error) bool {
	if err == nil {
		return false
	}
	resp := miniogo.ToErrorResponse(err)
	return resp.Code == "NoSuchKey"
}
