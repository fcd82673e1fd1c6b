package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"impactflow/api/internal/ids"
	"impactflow/api/internal/models"
)

// ErrNotFound is returned when a lookup, update or delete names an unknown id
// or no record matches a predicate.
var ErrNotFound = errors.New("record not found")

// Predicate selects records whose fields equal-match every key. Keys use the
// stored (bson/json) field names. A nil predicate matches everything.
type Predicate map[string]any

// Gateway is the single persistence entry point. Each call routes to the
// networked document store when it is live and to the file store otherwise.
// The two backends never merge: a record written to the file store during an
// outage stays there after the networked store reconnects.
type Gateway struct {
	Users    *Collection[models.User]
	Events   *Collection[models.Event]
	Tasks    *Collection[models.Task]
	Contacts *Collection[models.ContactMessage]
}

// CollectionNames lists every collection the gateway manages, in the order
// they appear in the file store document.
func CollectionNames() []string {
	return []string{"users", "events", "tasks", "contacts"}
}

// NewGateway builds the gateway. db may be nil when no networked store is
// configured; the file store then serves every call.
func NewGateway(db *mongo.Database, file *FileStore, sel *Selector) *Gateway {
	return &Gateway{
		Users:    newCollection[models.User]("users", db, file, sel),
		Events:   newCollection[models.Event]("events", db, file, sel),
		Tasks:    newCollection[models.Task]("tasks", db, file, sel),
		Contacts: newCollection[models.ContactMessage]("contacts", db, file, sel),
	}
}

// Collection is a collection-scoped CRUD handle with identical semantics on
// both backends.
type Collection[T any] struct {
	name  string
	mongo *mongo.Collection
	file  *FileStore
	sel   *Selector
}

func newCollection[T any](name string, db *mongo.Database, file *FileStore, sel *Selector) *Collection[T] {
	c := &Collection[T]{name: name, file: file, sel: sel}
	if db != nil {
		c.mongo = db.Collection(name)
	}
	return c
}

func (c *Collection[T]) live() bool {
	return c.mongo != nil && c.sel.Live()
}

// Find returns all records matching pred in insertion order.
func (c *Collection[T]) Find(ctx context.Context, pred Predicate) ([]T, error) {
	if c.live() {
		filter := bson.M{}
		for k, v := range pred {
			filter[k] = v
		}
		cur, err := c.mongo.Find(ctx, filter)
		if err != nil {
			return nil, fmt.Errorf("find %s: %w", c.name, err)
		}
		var out []T
		if err := cur.All(ctx, &out); err != nil {
			return nil, fmt.Errorf("decode %s: %w", c.name, err)
		}
		return out, nil
	}

	docs, err := c.file.Find(c.name, pred)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(docs))
	for _, doc := range docs {
		var rec T
		if err := decodeDoc(doc, &rec); err != nil {
			return nil, fmt.Errorf("decode %s: %w", c.name, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// FindOne returns the first record matching pred, or ErrNotFound.
func (c *Collection[T]) FindOne(ctx context.Context, pred Predicate) (T, error) {
	var zero T

	if c.live() {
		filter := bson.M{}
		for k, v := range pred {
			filter[k] = v
		}
		var out T
		if err := c.mongo.FindOne(ctx, filter).Decode(&out); err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				return zero, ErrNotFound
			}
			return zero, fmt.Errorf("find one %s: %w", c.name, err)
		}
		return out, nil
	}

	docs, err := c.file.Find(c.name, pred)
	if err != nil {
		return zero, err
	}
	if len(docs) == 0 {
		return zero, ErrNotFound
	}
	var out T
	if err := decodeDoc(docs[0], &out); err != nil {
		return zero, fmt.Errorf("decode %s: %w", c.name, err)
	}
	return out, nil
}

// FindByID returns the record with the given id, or ErrNotFound.
func (c *Collection[T]) FindByID(ctx context.Context, id string) (T, error) {
	return c.FindOne(ctx, Predicate{"_id": id})
}

// Create assigns a fresh id (unless one is set), fills createdAt if zero,
// stores the record and returns it as stored.
func (c *Collection[T]) Create(ctx context.Context, record T) (T, error) {
	var zero T

	doc, err := encodeDoc(record)
	if err != nil {
		return zero, fmt.Errorf("encode %s: %w", c.name, err)
	}
	if id, _ := doc["_id"].(string); id == "" {
		doc["_id"] = ids.New()
	}
	if isZeroTimestamp(doc["createdAt"]) {
		doc["createdAt"] = time.Now().UTC().Format(time.RFC3339Nano)
	}

	var stored T
	if err := decodeDoc(doc, &stored); err != nil {
		return zero, fmt.Errorf("decode %s: %w", c.name, err)
	}

	if c.live() {
		if _, err := c.mongo.InsertOne(ctx, stored); err != nil {
			return zero, fmt.Errorf("insert %s: %w", c.name, err)
		}
		return stored, nil
	}

	if err := c.file.Insert(c.name, doc); err != nil {
		return zero, err
	}
	return stored, nil
}

// Update shallow-merges partial into the record with the given id and returns
// the updated record. An unknown id yields ErrNotFound, never a panic.
func (c *Collection[T]) Update(ctx context.Context, id string, partial Predicate) (T, error) {
	var zero T

	if len(partial) == 0 {
		return c.FindByID(ctx, id)
	}

	if c.live() {
		set := bson.M{}
		for k, v := range partial {
			set[k] = v
		}
		opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
		var out T
		err := c.mongo.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&out)
		if err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				return zero, ErrNotFound
			}
			return zero, fmt.Errorf("update %s: %w", c.name, err)
		}
		return out, nil
	}

	doc, err := c.file.Update(c.name, id, Doc(partial))
	if err != nil {
		return zero, err
	}
	var out T
	if err := decodeDoc(doc, &out); err != nil {
		return zero, fmt.Errorf("decode %s: %w", c.name, err)
	}
	return out, nil
}

// Delete removes the record with the given id and returns it. An unknown id
// yields ErrNotFound.
func (c *Collection[T]) Delete(ctx context.Context, id string) (T, error) {
	var zero T

	if c.live() {
		var out T
		err := c.mongo.FindOneAndDelete(ctx, bson.M{"_id": id}).Decode(&out)
		if err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				return zero, ErrNotFound
			}
			return zero, fmt.Errorf("delete %s: %w", c.name, err)
		}
		return out, nil
	}

	doc, err := c.file.Delete(c.name, id)
	if err != nil {
		return zero, err
	}
	var out T
	if err := decodeDoc(doc, &out); err != nil {
		return zero, fmt.Errorf("decode %s: %w", c.name, err)
	}
	return out, nil
}

func encodeDoc(v any) (Doc, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var doc Doc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func decodeDoc(doc Doc, out any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

// normalizeValue round-trips v through JSON so times, typed strings and
// numbers compare equal against values decoded from the file store.
func normalizeValue(v any) any {
	raw, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return v
	}
	return out
}

func matches(doc Doc, pred Predicate) bool {
	for k, want := range pred {
		if !reflect.DeepEqual(normalizeValue(doc[k]), normalizeValue(want)) {
			return false
		}
	}
	return true
}

func isZeroTimestamp(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && (s == "" || strings.HasPrefix(s, "0001-01-01T"))
}
