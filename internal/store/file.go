package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Doc is a record in its raw JSON-object form, as stored on disk.
type Doc map[string]any

// FileStore keeps every collection in a single JSON document on disk, each
// collection an ordered array of records. Every operation reads the whole
// document and every mutation rewrites it, so all access is serialized behind
// one mutex. This is a low-concurrency fallback store, not a storage engine.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// OpenFileStore opens (or creates) the backing file. A missing file is seeded
// with empty arrays for the given collections; a file that exists but cannot
// be parsed is an error, reported here rather than on first use.
func OpenFileStore(path string, collections ...string) (*FileStore, error) {
	f := &FileStore{path: path}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		seed := make(map[string][]Doc, len(collections))
		for _, name := range collections {
			seed[name] = []Doc{}
		}
		if err := f.write(seed); err != nil {
			return nil, err
		}
		return f, nil
	}

	if _, err := f.read(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *FileStore) read() (map[string][]Doc, error) {
	raw, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.path, err)
	}
	data := map[string][]Doc{}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("parse %s: %w", f.path, err)
	}
	return data, nil
}

func (f *FileStore) write(data map[string][]Doc) error {
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", f.path, err)
	}
	if err := os.WriteFile(f.path, raw, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", f.path, err)
	}
	return nil
}

// Find returns all records in collection matching pred, in insertion order.
// A nil or empty predicate matches everything.
func (f *FileStore) Find(collection string, pred Predicate) ([]Doc, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := f.read()
	if err != nil {
		return nil, err
	}

	docs := data[collection]
	if len(pred) == 0 {
		return docs, nil
	}

	var out []Doc
	for _, doc := range docs {
		if matches(doc, pred) {
			out = append(out, doc)
		}
	}
	return out, nil
}

// Insert appends doc to collection and persists.
func (f *FileStore) Insert(collection string, doc Doc) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := f.read()
	if err != nil {
		return err
	}
	data[collection] = append(data[collection], doc)
	return f.write(data)
}

// Update shallow-merges partial into the record with the given id and
// persists. Returns ErrNotFound if the id is unknown.
func (f *FileStore) Update(collection, id string, partial Doc) (Doc, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := f.read()
	if err != nil {
		return nil, err
	}

	idx := indexByID(data[collection], id)
	if idx < 0 {
		return nil, ErrNotFound
	}

	merged := Doc{}
	for k, v := range data[collection][idx] {
		merged[k] = v
	}
	for k, v := range partial {
		merged[k] = normalizeValue(v)
	}
	data[collection][idx] = merged

	if err := f.write(data); err != nil {
		return nil, err
	}
	return merged, nil
}

// Delete removes the record with the given id and persists. Returns
// ErrNotFound if the id is unknown.
func (f *FileStore) Delete(collection, id string) (Doc, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := f.read()
	if err != nil {
		return nil, err
	}

	idx := indexByID(data[collection], id)
	if idx < 0 {
		return nil, ErrNotFound
	}

	removed := data[collection][idx]
	data[collection] = append(data[collection][:idx], data[collection][idx+1:]...)

	if err := f.write(data); err != nil {
		return nil, err
	}
	return removed, nil
}

func indexByID(docs []Doc, id string) int {
	for i, doc := range docs {
		if v, ok := doc["_id"].(string); ok && v == id {
			return i
		}
	}
	return -1
}
