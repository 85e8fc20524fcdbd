package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	jerrors "github.com/illarion/jarida/internal/errors"
)

var testKDF = KDFRecord{Algorithm: Argon2ID, Time: 1, Memory: 8192, Threads: 1}

func openInitialized(t *testing.T) *Storage {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "journal.db")

	db, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Initialize("journal-1", []byte("0123456789abcdef"), testKDF); err != nil {
		t.Fatalf("Failed to initialize: %v", err)
	}
	return db
}

func TestOpenAndInitialize(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "journal.db")

	db, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	initialized, err := db.IsInitialized()
	if err != nil {
		t.Fatalf("Failed to check initialization: %v", err)
	}
	if initialized {
		t.Error("Fresh database should not be initialized")
	}

	if err := db.Initialize("journal-1", []byte("salt"), testKDF); err != nil {
		t.Fatalf("Failed to initialize: %v", err)
	}

	initialized, err = db.IsInitialized()
	if err != nil {
		t.Fatalf("Failed to check initialization: %v", err)
	}
	if !initialized {
		t.Error("Database should be initialized")
	}
}

func TestConfigValues(t *testing.T) {
	db := openInitialized(t)

	salt, err := db.GetSalt()
	if err != nil {
		t.Fatalf("Failed to get salt: %v", err)
	}
	if string(salt) != "0123456789abcdef" {
		t.Errorf("Salt mismatch: got %q", salt)
	}

	kdf, err := db.GetKDF()
	if err != nil {
		t.Fatalf("Failed to get kdf: %v", err)
	}
	if kdf != testKDF {
		t.Errorf("KDF mismatch: got %+v, want %+v", kdf, testKDF)
	}

	id, err := db.GetJournalID()
	if err != nil {
		t.Fatalf("Failed to get journal id: %v", err)
	}
	if id != "journal-1" {
		t.Errorf("Journal id mismatch: got %s", id)
	}

	created, err := db.GetCreated()
	if err != nil {
		t.Fatalf("Failed to get created: %v", err)
	}
	if time.Since(created) > time.Minute {
		t.Errorf("Created time looks wrong: %v", created)
	}

	before, _ := db.GetModified()
	time.Sleep(10 * time.Millisecond)
	if err := db.UpdateModified(); err != nil {
		t.Fatalf("Failed to update modified: %v", err)
	}
	after, err := db.GetModified()
	if err != nil {
		t.Fatalf("Failed to get modified: %v", err)
	}
	if !after.After(before) {
		t.Errorf("Modified time should advance: before %v, after %v", before, after)
	}
}

func TestVerifierAndRekey(t *testing.T) {
	db := openInitialized(t)

	if _, err := db.GetVerifier(); err == nil {
		t.Error("Expected error for missing verifier")
	}

	if err := db.StoreVerifier([]byte("blob-1")); err != nil {
		t.Fatalf("Failed to store verifier: %v", err)
	}
	v, err := db.GetVerifier()
	if err != nil {
		t.Fatalf("Failed to get verifier: %v", err)
	}
	if string(v) != "blob-1" {
		t.Errorf("Verifier mismatch: got %q", v)
	}

	newKDF := KDFRecord{Algorithm: Argon2ID, Time: 2, Memory: 16384, Threads: 2}
	if err := db.Rekey([]byte("new-salt"), newKDF, []byte("blob-2")); err != nil {
		t.Fatalf("Failed to rekey: %v", err)
	}

	salt, _ := db.GetSalt()
	kdf, _ := db.GetKDF()
	v, _ = db.GetVerifier()
	if string(salt) != "new-salt" || kdf != newKDF || string(v) != "blob-2" {
		t.Errorf("Rekey not applied: salt=%q kdf=%+v verifier=%q", salt, kdf, v)
	}

	pending, err := db.RekeyPending()
	if err != nil || !pending {
		t.Errorf("Rekey should be pending: %v, %v", pending, err)
	}
	if err := db.FinishRekey(); err != nil {
		t.Fatalf("Failed to finish rekey: %v", err)
	}
	if pending, _ := db.RekeyPending(); pending {
		t.Error("Rekey still pending after FinishRekey")
	}
}

func TestIndexOperations(t *testing.T) {
	db := openInitialized(t)

	t1 := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)

	// Insert out of order
	for _, e := range []IndexEntry{
		{ID: "20240101T130000Z", Size: 20, Created: t2, Modified: t2},
		{ID: "20240101T120000Z", Size: 10, Created: t1, Modified: t1},
	} {
		if err := db.PutIndexEntry(e); err != nil {
			t.Fatalf("Failed to put index entry: %v", err)
		}
	}

	entries, err := db.GetIndex()
	if err != nil {
		t.Fatalf("Failed to get index: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}
	if entries[0].ID != "20240101T120000Z" || entries[1].ID != "20240101T130000Z" {
		t.Errorf("Index not in creation order: %v", entries)
	}

	entry, err := db.GetIndexEntry("20240101T120000Z")
	if err != nil {
		t.Fatalf("Failed to get index entry: %v", err)
	}
	if entry == nil || entry.Size != 10 {
		t.Errorf("Unexpected entry: %+v", entry)
	}

	missing, err := db.GetIndexEntry("nope")
	if err != nil || missing != nil {
		t.Errorf("Expected nil entry for missing id, got %+v, %v", missing, err)
	}

	if err := db.RemoveIndexEntry("20240101T120000Z"); err != nil {
		t.Fatalf("Failed to remove index entry: %v", err)
	}
	entries, _ = db.GetIndex()
	if len(entries) != 1 {
		t.Errorf("Expected 1 entry after removal, got %d", len(entries))
	}

	if err := db.ReplaceIndex([]IndexEntry{{ID: "a", Created: t1}, {ID: "b", Created: t2}, {ID: "c", Created: t2}}); err != nil {
		t.Fatalf("Failed to replace index: %v", err)
	}
	entries, _ = db.GetIndex()
	if len(entries) != 3 || entries[0].ID != "a" || entries[2].ID != "c" {
		t.Errorf("Unexpected index after replace: %v", entries)
	}
}

func TestExclusiveLock(t *testing.T) {
	if testing.Short() {
		t.Skip("waits for the lock timeout")
	}
	db := openInitialized(t)

	_, err := Open(db.Path())
	if !errors.Is(err, jerrors.ErrJournalBusy) {
		t.Fatalf("Expected ErrJournalBusy while locked, got %v", err)
	}
	if !errors.Is(err, jerrors.ErrIO) {
		t.Errorf("ErrJournalBusy should match ErrIO")
	}
}

func TestOpenReadOnlyMissing(t *testing.T) {
	_, err := OpenReadOnly(filepath.Join(t.TempDir(), "missing.db"))
	if !errors.Is(err, jerrors.ErrIO) {
		t.Errorf("Expected ErrIO for missing database, got %v", err)
	}
}

func TestCompact(t *testing.T) {
	db := openInitialized(t)

	for i := 0; i < 200; i++ {
		id := time.Unix(int64(i), 0).UTC().Format("20060102T150405Z")
		if err := db.PutIndexEntry(IndexEntry{ID: id, Size: int64(i)}); err != nil {
			t.Fatalf("Failed to put index entry: %v", err)
		}
	}
	if err := db.ReplaceIndex(nil); err != nil {
		t.Fatalf("Failed to clear index: %v", err)
	}

	if err := db.Compact(); err != nil {
		t.Fatalf("Compact failed: %v", err)
	}

	// Data survives and the database is usable again
	id, err := db.GetJournalID()
	if err != nil || id != "journal-1" {
		t.Errorf("Journal id lost after compact: %q, %v", id, err)
	}
	if err := db.PutIndexEntry(IndexEntry{ID: "x"}); err != nil {
		t.Errorf("Database not writable after compact: %v", err)
	}
}

func TestCompactFailureKeepsDatabaseOpen(t *testing.T) {
	db := openInitialized(t)

	// A non-empty directory where the backup goes makes the swap fail
	backup := db.Path() + ".backup"
	if err := os.MkdirAll(filepath.Join(backup, "blocker"), 0700); err != nil {
		t.Fatal(err)
	}

	if err := db.Compact(); err == nil {
		t.Fatal("Expected compact to fail")
	}

	if _, err := os.Stat(db.Path() + ".compact"); !os.IsNotExist(err) {
		t.Errorf("Compact temp file left behind: %v", err)
	}
	id, err := db.GetJournalID()
	if err != nil || id != "journal-1" {
		t.Errorf("Database unusable after failed compact: %q, %v", id, err)
	}
	if err := db.PutIndexEntry(IndexEntry{ID: "x"}); err != nil {
		t.Errorf("Database not writable after failed compact: %v", err)
	}
}
