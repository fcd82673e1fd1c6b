package store

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func tempStore(t *testing.T) (*FileStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "db.json")
	f, err := OpenFileStore(path, "users", "events")
	if err != nil {
		t.Fatalf("open file store: %v", err)
	}
	return f, path
}

func TestOpenFileStoreSeedsMissingFile(t *testing.T) {
	f, path := tempStore(t)

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("backing file not created: %v", err)
	}

	docs, err := f.Find("users", nil)
	if err != nil {
		t.Fatalf("find on fresh store: %v", err)
	}
	if len(docs) != 0 {
		t.Fatalf("fresh collection not empty: %d docs", len(docs))
	}
}

func TestOpenFileStoreRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := OpenFileStore(path, "users"); err == nil {
		t.Fatal("corrupt file accepted")
	}
}

func TestInsertPreservesOrder(t *testing.T) {
	f, _ := tempStore(t)

	for _, id := range []string{"a", "b", "c"} {
		if err := f.Insert("users", Doc{"_id": id}); err != nil {
			t.Fatalf("insert %s: %v", id, err)
		}
	}

	docs, err := f.Find("users", nil)
	if err != nil {
		t.Fatal(err)
	}
	got := make([]string, len(docs))
	for i, d := range docs {
		got[i] = d["_id"].(string)
	}
	if got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Fatalf("insertion order not preserved: %v", got)
	}
}

func TestFindWithPredicate(t *testing.T) {
	f, _ := tempStore(t)

	docs := []Doc{
		{"_id": "1", "role": "admin", "name": "ada"},
		{"_id": "2", "role": "volunteer", "name": "bob"},
		{"_id": "3", "role": "admin", "name": "cam"},
	}
	for _, d := range docs {
		if err := f.Insert("users", d); err != nil {
			t.Fatal(err)
		}
	}

	admins, err := f.Find("users", Predicate{"role": "admin"})
	if err != nil {
		t.Fatal(err)
	}
	if len(admins) != 2 {
		t.Fatalf("want 2 admins, got %d", len(admins))
	}

	none, err := f.Find("users", Predicate{"role": "admin", "name": "bob"})
	if err != nil {
		t.Fatal(err)
	}
	if len(none) != 0 {
		t.Fatalf("conjunctive predicate matched %d docs", len(none))
	}
}

func TestUpdateMergesShallow(t *testing.T) {
	f, _ := tempStore(t)

	if err := f.Insert("users", Doc{"_id": "1", "name": "ada", "phone": "123"}); err != nil {
		t.Fatal(err)
	}

	merged, err := f.Update("users", "1", Doc{"phone": "456"})
	if err != nil {
		t.Fatal(err)
	}
	if merged["name"] != "ada" {
		t.Fatalf("untouched field lost: %v", merged["name"])
	}
	if merged["phone"] != "456" {
		t.Fatalf("updated field wrong: %v", merged["phone"])
	}
}

func TestUpdateUnknownID(t *testing.T) {
	f, _ := tempStore(t)

	if _, err := f.Update("users", "missing", Doc{"name": "x"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestDeleteRemovesAndReturns(t *testing.T) {
	f, _ := tempStore(t)

	if err := f.Insert("users", Doc{"_id": "1", "name": "ada"}); err != nil {
		t.Fatal(err)
	}

	removed, err := f.Delete("users", "1")
	if err != nil {
		t.Fatal(err)
	}
	if removed["name"] != "ada" {
		t.Fatalf("deleted doc wrong: %v", removed)
	}

	if _, err := f.Delete("users", "1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete: want ErrNotFound, got %v", err)
	}
}

func TestPersistsAcrossReopen(t *testing.T) {
	f, path := tempStore(t)

	if err := f.Insert("users", Doc{"_id": "1", "name": "ada"}); err != nil {
		t.Fatal(err)
	}

	reopened, err := OpenFileStore(path, "users", "events")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	docs, err := reopened.Find("users", nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 1 || docs[0]["name"] != "ada" {
		t.Fatalf("data lost across reopen: %v", docs)
	}
}
