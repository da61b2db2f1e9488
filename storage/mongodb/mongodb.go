// Package mongodb implements the storage driver on MongoDB. The first
// segment of a record path names the database and the remaining segments,
// joined with dots, name the collection; record ids become string _id
// values, so "jobs/queued/fermions" + "abc123" lands in
// jobs["queued.fermions"] under _id "abc123".
package mongodb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongod "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	sqooler "github.com/Alqor-UG/sqooler-sub000"
	"github.com/Alqor-UG/sqooler-sub000/storage"
)

// Driver stores JSON records as MongoDB documents.
type Driver struct {
	client   *mongod.Client
	name     string
	inactive atomic.Bool
}

var _ storage.Driver = (*Driver)(nil)

// New connects to MongoDB and pings it before returning. The driver owns
// the client and releases it on Close.
func New(ctx context.Context, uri, name string) (*Driver, error) {
	if err := storage.ValidateName(name); err != nil {
		return nil, err
	}
	client, err := mongod.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongodb: connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongodb: ping: %w", err)
	}
	return &Driver{client: client, name: name}, nil
}

// Close disconnects the underlying client.
func (d *Driver) Close(ctx context.Context) error {
	d.inactive.Store(true)
	if err := d.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("mongodb: disconnect: %w", err)
	}
	return nil
}

// Deactivate marks the driver inactive without disconnecting.
func (d *Driver) Deactivate() { d.inactive.Store(true) }

// Activate re-enables a deactivated driver.
func (d *Driver) Activate() { d.inactive.Store(false) }

func (d *Driver) Name() string { return d.name }

func (d *Driver) guard() error {
	if d.inactive.Load() {
		return fmt.Errorf("mongodb: %w", sqooler.ErrInactive)
	}
	return nil
}

// collection resolves a record path: first segment is the database, the
// rest becomes the collection name.
func (d *Driver) collection(path string) (*mongod.Collection, error) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) < 2 || parts[0] == "" {
		return nil, fmt.Errorf("mongodb: path %q needs at least a database and a collection segment", path)
	}
	return d.client.Database(parts[0]).Collection(strings.Join(parts[1:], ".")), nil
}

func (d *Driver) Upload(ctx context.Context, content json.RawMessage, path, id string) error {
	if err := d.guard(); err != nil {
		return err
	}
	col, err := d.collection(path)
	if err != nil {
		return err
	}
	doc, err := toDocument(content, id)
	if err != nil {
		return err
	}
	_, err = col.ReplaceOne(ctx, bson.M{"_id": id}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("mongodb: upload %s/%s: %w", path, id, err)
	}
	return nil
}

func (d *Driver) Get(ctx context.Context, path, id string) (json.RawMessage, error) {
	if err := d.guard(); err != nil {
		return nil, err
	}
	col, err := d.collection(path)
	if err != nil {
		return nil, err
	}
	var doc bson.M
	err = col.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if isNoDocuments(err) {
		return nil, fmt.Errorf("mongodb: %s/%s: %w", path, id, sqooler.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("mongodb: get %s/%s: %w", path, id, err)
	}
	return fromDocument(doc)
}

func (d *Driver) Update(ctx context.Context, content json.RawMessage, path, id string) error {
	if err := d.guard(); err != nil {
		return err
	}
	col, err := d.collection(path)
	if err != nil {
		return err
	}
	doc, err := toDocument(content, id)
	if err != nil {
		return err
	}
	res, err := col.ReplaceOne(ctx, bson.M{"_id": id}, doc)
	if err != nil {
		return fmt.Errorf("mongodb: update %s/%s: %w", path, id, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("mongodb: %s/%s: %w", path, id, sqooler.ErrNotFound)
	}
	return nil
}

// Move copies the document into the destination collection before
// removing the source, so an interrupted move duplicates a record rather
// than dropping it.
func (d *Driver) Move(ctx context.Context, fromPath, toPath, id string) error {
	if err := d.guard(); err != nil {
		return err
	}
	content, err := d.Get(ctx, fromPath, id)
	if err != nil {
		return err
	}
	if err := d.Upload(ctx, content, toPath, id); err != nil {
		return err
	}
	return d.Delete(ctx, fromPath, id)
}

func (d *Driver) Delete(ctx context.Context, path, id string) error {
	if err := d.guard(); err != nil {
		return err
	}
	col, err := d.collection(path)
	if err != nil {
		return err
	}
	res, err := col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("mongodb: delete %s/%s: %w", path, id, err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("mongodb: %s/%s: %w", path, id, sqooler.ErrNotFound)
	}
	return nil
}

func (d *Driver) List(ctx context.Context, path string) ([]string, error) {
	if err := d.guard(); err != nil {
		return nil, err
	}
	col, err := d.collection(path)
	if err != nil {
		return nil, err
	}
	findOpts := options.Find().SetProjection(bson.M{"_id": 1})
	cursor, err := col.Find(ctx, bson.M{}, findOpts)
	if err != nil {
		return nil, fmt.Errorf("mongodb: list %s: %w", path, err)
	}
	defer cursor.Close(ctx)

	ids := []string{}
	for cursor.Next(ctx) {
		var doc struct {
			ID string `bson:"_id"`
		}
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("mongodb: list %s: %w", path, err)
		}
		ids = append(ids, doc.ID)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("mongodb: list %s: %w", path, err)
	}
	return ids, nil
}

// toDocument converts a JSON record into a BSON document keyed by id.
// Records must be JSON objects; anything else cannot carry an _id.
func toDocument(content json.RawMessage, id string) (bson.M, error) {
	var doc bson.M
	if err := json.Unmarshal(content, &doc); err != nil {
		return nil, fmt.Errorf("mongodb: record must be a JSON object: %w", sqooler.ErrValidation)
	}
	doc["_id"] = id
	return doc, nil
}

// fromDocument strips the _id and renders the document back to JSON. Key
// order is not preserved; signature checks canonicalize before verifying.
func fromDocument(doc bson.M) (json.RawMessage, error) {
	delete(doc, "_id")
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("mongodb: encode document: %w", err)
	}
	return raw, nil
}

func isNoDocuments(err error) bool {
	return errors.Is(err, mongod.ErrNoDocuments)
}
