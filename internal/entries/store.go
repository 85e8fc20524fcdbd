package entries

import (
	"errors"
	"fmt"
	"io/fs"
	"slices"
	"strings"
	"time"

	"github.com/illarion/jarida/internal/crypto"
	jerrors "github.com/illarion/jarida/internal/errors"
	"github.com/illarion/jarida/internal/journal"
	"github.com/illarion/jarida/internal/security"
	"github.com/illarion/jarida/internal/storage"
)

// FilePerm is the permission of entry files
const FilePerm = 0600

// maxAllocAttempts bounds id allocation when another writer keeps
// publishing the same names
const maxAllocAttempts = 1000

// StageSuffix marks an entry re-encrypted under a new key that has not
// replaced the entry yet. Staged names never parse as entry ids.
const StageSuffix = ".rekey"

// Store reads and writes the entry files of one journal.
type Store struct {
	root journal.Root
	dir  *security.PathValidator
	db   *storage.Storage
	now  func() time.Time
}

// Open opens the entries directory of root. db may be nil for listing and
// reading; writes require a database opened with storage.Open, whose lock
// serializes id allocation between processes. The caller owns db.
func Open(root journal.Root, db *storage.Storage) (*Store, error) {
	dir, err := security.New(root.EntriesDir())
	if err != nil {
		return nil, err
	}
	return &Store{
		root: root,
		dir:  dir,
		db:   db,
		now:  time.Now,
	}, nil
}

// Close releases the entries directory handle
func (s *Store) Close() error {
	return s.dir.Close()
}

// Root returns the journal root this store belongs to
func (s *Store) Root() journal.Root {
	return s.root
}

func (s *Store) writable() error {
	if s.db == nil {
		return fmt.Errorf("entry store opened without journal database")
	}
	return nil
}

// WriteNew encrypts content under key and publishes it under a fresh id.
func (s *Store) WriteNew(content []byte, key crypto.Key) (ID, error) {
	if err := s.writable(); err != nil {
		return ID{}, err
	}

	id := NewID(s.now())
	for range maxAllocAttempts {
		exists, err := s.exists(id)
		if err != nil {
			return ID{}, err
		}
		if exists {
			id = id.Next()
			continue
		}

		blob, err := crypto.Seal(key, content, []byte(id.String()))
		if err != nil {
			return ID{}, err
		}

		err = s.dir.WriteFileAtomic(id.String(), blob, FilePerm, false)
		if errors.Is(err, fs.ErrExist) {
			// Published by a writer that does not hold the lock
			id = id.Next()
			continue
		}
		if err != nil {
			return ID{}, jerrors.FromFS("write", id.String(), err)
		}

		if err := s.index(id, int64(len(blob)), id.Time); err != nil {
			return id, err
		}
		return id, nil
	}
	return ID{}, fmt.Errorf("could not allocate entry id after %d attempts: %w", maxAllocAttempts, jerrors.ErrIO)
}

// ReadOne decrypts the entry id. A missing file gives ErrEntryNotFound;
// decryption failures are returned as ErrDecryptionFailed.
func (s *Store) ReadOne(id ID, key crypto.Key) ([]byte, error) {
	blob, err := s.dir.ReadFileInRoot(id.String())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", jerrors.ErrEntryNotFound, id)
		}
		return nil, jerrors.FromFS("read", id.String(), err)
	}
	return crypto.Open(key, blob, []byte(id.String()))
}

// Rewrite replaces the content of an existing entry, keeping its id
func (s *Store) Rewrite(id ID, content []byte, key crypto.Key) error {
	if err := s.writable(); err != nil {
		return err
	}
	exists, err := s.exists(id)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s", jerrors.ErrEntryNotFound, id)
	}

	blob, err := crypto.Seal(key, content, []byte(id.String()))
	if err != nil {
		return err
	}
	if err := s.dir.WriteFileAtomic(id.String(), blob, FilePerm, true); err != nil {
		return jerrors.FromFS("write", id.String(), err)
	}
	return s.index(id, int64(len(blob)), s.now())
}

// Remove deletes the entry file and its index record
func (s *Store) Remove(id ID) error {
	if err := s.writable(); err != nil {
		return err
	}
	if err := s.dir.RemoveInRoot(id.String()); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", jerrors.ErrEntryNotFound, id)
		}
		return jerrors.FromFS("remove", id.String(), err)
	}
	if err := s.db.RemoveIndexEntry(id.String()); err != nil {
		return fmt.Errorf("failed to update index: %w", err)
	}
	return s.db.UpdateModified()
}

// ListIDs returns the ids of all entries in chronological order. It only
// lists the directory; no key is needed and nothing is decrypted. Temp
// files and names that are not entry ids are skipped.
func (s *Store) ListIDs() ([]ID, error) {
	names, err := s.dir.ListNames()
	if err != nil {
		return nil, jerrors.FromFS("list", s.dir.Dir(), err)
	}

	ids := make([]ID, 0, len(names))
	for _, name := range names {
		id, err := ParseID(name)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	slices.SortFunc(ids, ID.Compare)
	return ids, nil
}

// Stat returns file information for the entry id
func (s *Store) Stat(id ID) (fs.FileInfo, error) {
	info, err := s.dir.StatInRoot(id.String())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", jerrors.ErrEntryNotFound, id)
		}
		return nil, jerrors.FromFS("stat", id.String(), err)
	}
	return info, nil
}

// Exists reports whether an entry file exists for id
func (s *Store) Exists(id ID) (bool, error) {
	return s.exists(id)
}

func (s *Store) exists(id ID) (bool, error) {
	ok, err := s.dir.ExistsInRoot(id.String())
	if err != nil {
		return false, jerrors.FromFS("stat", id.String(), err)
	}
	return ok, nil
}

// Index returns the unencrypted index records, oldest first
func (s *Store) Index() ([]storage.IndexEntry, error) {
	if s.db == nil {
		return nil, fmt.Errorf("entry store opened without journal database")
	}
	return s.db.GetIndex()
}

// Reindex rebuilds the index from the entry files on disk and returns the
// number of entries indexed.
func (s *Store) Reindex() (int, error) {
	if err := s.writable(); err != nil {
		return 0, err
	}
	ids, err := s.ListIDs()
	if err != nil {
		return 0, err
	}

	records := make([]storage.IndexEntry, 0, len(ids))
	for _, id := range ids {
		info, err := s.dir.StatInRoot(id.String())
		if err != nil {
			return 0, jerrors.FromFS("stat", id.String(), err)
		}
		records = append(records, storage.IndexEntry{
			ID:       id.String(),
			Size:     info.Size(),
			Created:  id.Time,
			Modified: info.ModTime().UTC(),
		})
	}
	if err := s.db.ReplaceIndex(records); err != nil {
		return 0, fmt.Errorf("failed to rebuild index: %w", err)
	}
	return len(records), s.db.UpdateModified()
}

// Stage writes content sealed under key next to the entry id without
// replacing it. CommitStaged moves staged entries into place.
func (s *Store) Stage(id ID, content []byte, key crypto.Key) error {
	if err := s.writable(); err != nil {
		return err
	}
	blob, err := crypto.Seal(key, content, []byte(id.String()))
	if err != nil {
		return err
	}
	name := id.String() + StageSuffix
	if err := s.dir.WriteFileAtomic(name, blob, FilePerm, true); err != nil {
		return jerrors.FromFS("stage", name, err)
	}
	return nil
}

// stagedIDs lists the entries that have a staged replacement
func (s *Store) stagedIDs() ([]ID, error) {
	names, err := s.dir.ListNames()
	if err != nil {
		return nil, jerrors.FromFS("list", s.dir.Dir(), err)
	}
	var ids []ID
	for _, name := range names {
		base, ok := strings.CutSuffix(name, StageSuffix)
		if !ok {
			continue
		}
		if id, err := ParseID(base); err == nil {
			ids = append(ids, id)
		}
	}
	slices.SortFunc(ids, ID.Compare)
	return ids, nil
}

// CommitStaged replaces every entry that has a staged version with it and
// returns the number committed. It can be repeated after an interruption.
func (s *Store) CommitStaged() (int, error) {
	ids, err := s.stagedIDs()
	if err != nil {
		return 0, err
	}
	for i, id := range ids {
		name := id.String() + StageSuffix
		if err := s.dir.RenameInRoot(name, id.String()); err != nil {
			return i, jerrors.FromFS("commit", name, err)
		}
	}
	return len(ids), nil
}

// DiscardStaged removes staged entries and returns the number removed
func (s *Store) DiscardStaged() (int, error) {
	ids, err := s.stagedIDs()
	if err != nil {
		return 0, err
	}
	for i, id := range ids {
		name := id.String() + StageSuffix
		if err := s.dir.RemoveInRoot(name); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return i, jerrors.FromFS("remove", name, err)
		}
	}
	return len(ids), nil
}

// Recover completes or rolls back a key change that was interrupted. If
// the database already holds the new key, staged entries are committed;
// otherwise they are leftovers and are discarded.
func (s *Store) Recover() error {
	if s.db == nil {
		return nil
	}
	pending, err := s.db.RekeyPending()
	if err != nil {
		return fmt.Errorf("failed to read key change state: %w", err)
	}
	if !pending {
		_, err := s.DiscardStaged()
		return err
	}
	if _, err := s.CommitStaged(); err != nil {
		return err
	}
	if err := s.db.FinishRekey(); err != nil {
		return fmt.Errorf("failed to finish key change: %w", err)
	}
	return nil
}

// CleanTemps removes temp files older than maxAge left by interrupted writes
func (s *Store) CleanTemps(maxAge time.Duration) (int, error) {
	n, err := s.dir.RemoveStaleTemps(maxAge)
	if err != nil {
		return n, jerrors.FromFS("clean", s.dir.Dir(), err)
	}
	return n, nil
}

func (s *Store) index(id ID, size int64, modified time.Time) error {
	entry := storage.IndexEntry{
		ID:       id.String(),
		Size:     size,
		Created:  id.Time,
		Modified: modified.UTC(),
	}
	if err := s.db.PutIndexEntry(entry); err != nil {
		return fmt.Errorf("failed to update index: %w", err)
	}
	return s.db.UpdateModified()
}
