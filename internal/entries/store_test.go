package entries

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/illarion/jarida/internal/crypto"
	jerrors "github.com/illarion/jarida/internal/errors"
	"github.com/illarion/jarida/internal/journal"
	"github.com/illarion/jarida/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, crypto.Key) {
	t.Helper()

	root, err := journal.Init(t.TempDir())
	require.NoError(t, err)

	db, err := storage.Open(root.DBPath())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Initialize("test-journal", nil, storage.KDFRecord{Algorithm: storage.Argon2ID}))

	store, err := Open(root, db)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	key, err := crypto.GenerateRandom(crypto.KeySize)
	require.NoError(t, err)
	return store, crypto.Key(key)
}

// clockAt makes the store allocate ids for the given times in order
func clockAt(s *Store, times ...time.Time) {
	i := 0
	s.now = func() time.Time {
		t := times[i]
		if i < len(times)-1 {
			i++
		}
		return t
	}
}

func TestWriteNewReadOne(t *testing.T) {
	store, key := newTestStore(t)

	id, err := store.WriteNew([]byte("dear diary"), key)
	require.NoError(t, err)

	content, err := store.ReadOne(id, key)
	require.NoError(t, err)
	assert.Equal(t, "dear diary", string(content))

	// On-disk layout: nonce || ciphertext || tag
	raw, err := os.ReadFile(filepath.Join(store.Root().EntriesDir(), id.String()))
	require.NoError(t, err)
	assert.Len(t, raw, crypto.NonceSize+len("dear diary")+crypto.TagSize)
	assert.NotContains(t, string(raw), "dear diary")

	info, err := os.Stat(filepath.Join(store.Root().EntriesDir(), id.String()))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(FilePerm), info.Mode().Perm())
}

func TestListIDsChronological(t *testing.T) {
	store, key := newTestStore(t)

	t1 := time.Date(2023, 12, 31, 23, 59, 59, 0, time.UTC)
	t2 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	t3 := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

	// Written out of order
	clockAt(store, t3, t1, t2)
	for range 3 {
		_, err := store.WriteNew([]byte("x"), key)
		require.NoError(t, err)
	}

	ids, err := store.ListIDs()
	require.NoError(t, err)
	require.Len(t, ids, 3)
	assert.True(t, ids[0].Time.Equal(t1))
	assert.True(t, ids[1].Time.Equal(t2))
	assert.True(t, ids[2].Time.Equal(t3))
}

func TestWriteNewDisambiguatesSameSecond(t *testing.T) {
	store, key := newTestStore(t)

	now := time.Date(2024, 2, 2, 10, 0, 0, 0, time.UTC)
	clockAt(store, now)

	var ids []ID
	for i := range 3 {
		id, err := store.WriteNew([]byte{byte('a' + i)}, key)
		require.NoError(t, err)
		ids = append(ids, id)
	}

	assert.Equal(t, "20240202T100000Z", ids[0].String())
	assert.Equal(t, "20240202T100000Z-1", ids[1].String())
	assert.Equal(t, "20240202T100000Z-2", ids[2].String())

	for i, id := range ids {
		content, err := store.ReadOne(id, key)
		require.NoError(t, err)
		assert.Equal(t, []byte{byte('a' + i)}, content)
	}

	listed, err := store.ListIDs()
	require.NoError(t, err)
	assert.Equal(t, ids, listed)
}

func TestListIDsIgnoresForeignFiles(t *testing.T) {
	store, key := newTestStore(t)

	id, err := store.WriteNew([]byte("kept"), key)
	require.NoError(t, err)

	dir := store.Root().EntriesDir()
	// Left behind by an interrupted write
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".tmp-0000"), []byte("partial"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README"), []byte("hi"), 0600))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "20240101T000000Z-5"), 0700))

	ids, err := store.ListIDs()
	require.NoError(t, err)
	assert.Equal(t, []ID{id}, ids)
}

func TestReadOneNotFound(t *testing.T) {
	store, key := newTestStore(t)

	_, err := store.ReadOne(NewID(time.Now()), key)
	assert.ErrorIs(t, err, jerrors.ErrEntryNotFound)
}

func TestReadOneWrongKey(t *testing.T) {
	store, key := newTestStore(t)

	id, err := store.WriteNew([]byte("secret"), key)
	require.NoError(t, err)

	other, err := crypto.GenerateRandom(crypto.KeySize)
	require.NoError(t, err)

	content, err := store.ReadOne(id, crypto.Key(other))
	assert.ErrorIs(t, err, jerrors.ErrDecryptionFailed)
	assert.Nil(t, content)
}

func TestReadOneDetectsSwappedFiles(t *testing.T) {
	store, key := newTestStore(t)

	clockAt(store,
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
	)
	a, err := store.WriteNew([]byte("entry a"), key)
	require.NoError(t, err)
	b, err := store.WriteNew([]byte("entry b"), key)
	require.NoError(t, err)

	dir := store.Root().EntriesDir()
	blobA, err := os.ReadFile(filepath.Join(dir, a.String()))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, b.String()), blobA, 0600))

	_, err = store.ReadOne(b, key)
	assert.ErrorIs(t, err, jerrors.ErrDecryptionFailed)
}

func TestReadOneDetectsCorruption(t *testing.T) {
	store, key := newTestStore(t)

	id, err := store.WriteNew([]byte("entry"), key)
	require.NoError(t, err)

	path := filepath.Join(store.Root().EntriesDir(), id.String())
	blob, err := os.ReadFile(path)
	require.NoError(t, err)
	blob[len(blob)-1] ^= 0x01
	require.NoError(t, os.WriteFile(path, blob, 0600))

	_, err = store.ReadOne(id, key)
	assert.ErrorIs(t, err, jerrors.ErrDecryptionFailed)
}

func TestRewriteAndRemove(t *testing.T) {
	store, key := newTestStore(t)

	id, err := store.WriteNew([]byte("first draft"), key)
	require.NoError(t, err)

	require.NoError(t, store.Rewrite(id, []byte("second draft"), key))
	content, err := store.ReadOne(id, key)
	require.NoError(t, err)
	assert.Equal(t, "second draft", string(content))

	require.NoError(t, store.Remove(id))
	_, err = store.ReadOne(id, key)
	assert.ErrorIs(t, err, jerrors.ErrEntryNotFound)

	assert.ErrorIs(t, store.Remove(id), jerrors.ErrEntryNotFound)
	assert.ErrorIs(t, store.Rewrite(id, []byte("x"), key), jerrors.ErrEntryNotFound)

	index, err := store.Index()
	require.NoError(t, err)
	assert.Empty(t, index)
}

func TestIndexTracksWrites(t *testing.T) {
	store, key := newTestStore(t)

	id, err := store.WriteNew([]byte("hello"), key)
	require.NoError(t, err)

	index, err := store.Index()
	require.NoError(t, err)
	require.Len(t, index, 1)
	assert.Equal(t, id.String(), index[0].ID)
	assert.Equal(t, int64(crypto.NonceSize+len("hello")+crypto.TagSize), index[0].Size)
	assert.True(t, index[0].Created.Equal(id.Time))
}

func TestReindex(t *testing.T) {
	store, key := newTestStore(t)

	clockAt(store,
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
	)
	first, err := store.WriteNew([]byte("one"), key)
	require.NoError(t, err)
	_, err = store.WriteNew([]byte("two"), key)
	require.NoError(t, err)

	// Index drifts from disk
	require.NoError(t, os.Remove(filepath.Join(store.Root().EntriesDir(), first.String())))

	n, err := store.Reindex()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	index, err := store.Index()
	require.NoError(t, err)
	require.Len(t, index, 1)
	assert.NotEqual(t, first.String(), index[0].ID)
}

func TestStoreWithoutDatabaseIsReadOnly(t *testing.T) {
	writer, key := newTestStore(t)
	id, err := writer.WriteNew([]byte("hello"), key)
	require.NoError(t, err)

	reader, err := Open(writer.Root(), nil)
	require.NoError(t, err)
	defer reader.Close()

	ids, err := reader.ListIDs()
	require.NoError(t, err)
	assert.Equal(t, []ID{id}, ids)

	content, err := reader.ReadOne(id, key)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(content))

	_, err = reader.WriteNew([]byte("x"), key)
	assert.Error(t, err)
}

func TestCleanTemps(t *testing.T) {
	store, _ := newTestStore(t)

	stale := filepath.Join(store.Root().EntriesDir(), ".tmp-stale")
	require.NoError(t, os.WriteFile(stale, []byte("partial"), 0600))
	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(stale, old, old))

	n, err := store.CleanTemps(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NoFileExists(t, stale)
}

func newKey(t *testing.T) crypto.Key {
	t.Helper()
	key, err := crypto.GenerateRandom(crypto.KeySize)
	require.NoError(t, err)
	return crypto.Key(key)
}

func TestStageIsInvisibleUntilCommitted(t *testing.T) {
	store, oldKey := newTestStore(t)
	newK := newKey(t)

	id, err := store.WriteNew([]byte("first"), oldKey)
	require.NoError(t, err)
	require.NoError(t, store.Stage(id, []byte("first"), newK))

	ids, err := store.ListIDs()
	require.NoError(t, err)
	assert.Equal(t, []ID{id}, ids)

	content, err := store.ReadOne(id, oldKey)
	require.NoError(t, err)
	assert.Equal(t, "first", string(content))

	n, err := store.CommitStaged()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	content, err = store.ReadOne(id, newK)
	require.NoError(t, err)
	assert.Equal(t, "first", string(content))
	_, err = store.ReadOne(id, oldKey)
	assert.ErrorIs(t, err, jerrors.ErrDecryptionFailed)
}

func TestRecoverCommitsInterruptedKeyChange(t *testing.T) {
	store, oldKey := newTestStore(t)
	newK := newKey(t)
	clockAt(store,
		time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC))

	a, err := store.WriteNew([]byte("a"), oldKey)
	require.NoError(t, err)
	b, err := store.WriteNew([]byte("b"), oldKey)
	require.NoError(t, err)

	// Both staged and the database switched, then only a was moved
	require.NoError(t, store.Stage(a, []byte("a"), newK))
	require.NoError(t, store.Stage(b, []byte("b"), newK))
	require.NoError(t, store.db.Rekey([]byte("salt"), storage.KDFRecord{Algorithm: storage.Argon2ID}, []byte("verifier")))
	require.NoError(t, store.dir.RenameInRoot(a.String()+StageSuffix, a.String()))

	require.NoError(t, store.Recover())

	for id, want := range map[ID]string{a: "a", b: "b"} {
		content, err := store.ReadOne(id, newK)
		require.NoError(t, err)
		assert.Equal(t, want, string(content))
	}
	pending, err := store.db.RekeyPending()
	require.NoError(t, err)
	assert.False(t, pending)
}

func TestRecoverDiscardsStagingWithoutKeyChange(t *testing.T) {
	store, oldKey := newTestStore(t)

	id, err := store.WriteNew([]byte("kept"), oldKey)
	require.NoError(t, err)
	require.NoError(t, store.Stage(id, []byte("kept"), newKey(t)))

	require.NoError(t, store.Recover())

	content, err := store.ReadOne(id, oldKey)
	require.NoError(t, err)
	assert.Equal(t, "kept", string(content))
	_, err = os.Stat(filepath.Join(store.Root().EntriesDir(), id.String()+StageSuffix))
	assert.True(t, os.IsNotExist(err))
}
