package storage

import (
	"errors"
	"path/filepath"
	"testing"
)

func runDatabaseSuite(t *testing.T, db Database) {
	t.Helper()
	key := []byte("escrow/abc")
	value := []byte(`{"status":1}`)

	if _, err := db.Get(key); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing key should return ErrNotFound, got %v", err)
	}
	ok, err := db.Has(key)
	if err != nil || ok {
		t.Fatalf("missing key: has=%v err=%v", ok, err)
	}

	if err := db.Put(key, value); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := db.Get(key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != string(value) {
		t.Fatalf("round trip mismatch: %q", got)
	}
	ok, err = db.Has(key)
	if err != nil || !ok {
		t.Fatalf("stored key: has=%v err=%v", ok, err)
	}

	if err := db.Delete(key); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := db.Get(key); !errors.Is(err, ErrNotFound) {
		t.Fatalf("deleted key should return ErrNotFound, got %v", err)
	}
}

func TestMemDB(t *testing.T) {
	db := NewMemDB()
	defer db.Close()
	runDatabaseSuite(t, db)
}

func TestMemDBCopiesValues(t *testing.T) {
	db := NewMemDB()
	value := []byte("original")
	if err := db.Put([]byte("k"), value); err != nil {
		t.Fatalf("put: %v", err)
	}
	value[0] = 'X'
	got, err := db.Get([]byte("k"))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != "original" {
		t.Fatalf("stored value aliased the caller's buffer: %q", got)
	}
}

func TestBoltDB(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fare.db")
	db, err := NewBoltDB(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()
	runDatabaseSuite(t, db)
}
