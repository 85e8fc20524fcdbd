package core

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/illarion/jarida/internal/crypto"
	"github.com/illarion/jarida/internal/entries"
	jerrors "github.com/illarion/jarida/internal/errors"
	"github.com/illarion/jarida/internal/journal"
	"github.com/illarion/jarida/internal/storage"
)

const (
	Algorithm = "AES-256-GCM"

	verifierCheck = "jarida-password-check"

	// StaleTempAge is how old an abandoned temp file must be before
	// Reindex removes it
	StaleTempAge = time.Hour
)

var verifierAAD = []byte("verifier")

var ErrAmbiguousID = errors.New("ambiguous entry id")

// Progress is notified around the slow key derivation
type Progress interface {
	Start(msg string)
	Stop()
}

type noProgress struct{}

func (noProgress) Start(string) {}
func (noProgress) Stop()        {}

// Journal is one located journal root
type Journal struct {
	root     journal.Root
	progress Progress
}

// At returns the journal rooted at root without checking it
func At(root journal.Root) *Journal {
	return &Journal{root: root, progress: noProgress{}}
}

// Open locates the journal containing startDir, falling back to the home
// directory.
func Open(startDir string, locator journal.Locator) (*Journal, error) {
	root, err := locator.Locate(startDir)
	if err != nil {
		return nil, err
	}
	return At(root), nil
}

// Init creates a new journal in dir and keys it to creds. creds is cleared.
// On failure the partly created marker directory is removed again.
func Init(dir string, creds *crypto.Credentials, params crypto.KDFParams) (_ *Journal, err error) {
	defer creds.Clear()

	if err := creds.Validate(); err != nil {
		return nil, err
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}

	root, err := journal.Init(dir)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			os.RemoveAll(root.MarkerDir())
		}
	}()
	j := At(root)

	salt, err := crypto.NewSalt()
	if err != nil {
		return nil, err
	}

	db, err := storage.Open(root.DBPath())
	if err != nil {
		return nil, fmt.Errorf("failed to create database: %w", err)
	}
	defer db.Close()

	if err := db.Initialize(uuid.NewString(), salt, kdfRecord(params)); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	key, err := j.derive(crypto.Deriver{Params: params, Salt: salt}, creds)
	if err != nil {
		return nil, err
	}
	defer key.Destroy()

	verifier, err := newVerifier(key)
	if err != nil {
		return nil, err
	}
	if err := db.StoreVerifier(verifier); err != nil {
		return nil, fmt.Errorf("failed to store verifier: %w", err)
	}
	return j, nil
}

// SetProgress installs a progress reporter for key derivation
func (j *Journal) SetProgress(p Progress) {
	if p == nil {
		p = noProgress{}
	}
	j.progress = p
}

// Root returns the journal root directory
func (j *Journal) Root() journal.Root {
	return j.root
}

// openDB opens the journal database with its exclusive lock
func (j *Journal) openDB() (*storage.Storage, error) {
	if _, err := os.Stat(j.root.DBPath()); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s has no journal database", jerrors.ErrNoJournalFound, j.root)
		}
		return nil, jerrors.FromFS("stat", j.root.DBPath(), err)
	}
	db, err := storage.Open(j.root.DBPath())
	if err != nil {
		return nil, err
	}
	return j.checkInitialized(db)
}

func (j *Journal) openDBReadOnly() (*storage.Storage, error) {
	db, err := storage.OpenReadOnly(j.root.DBPath())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s has no journal database", jerrors.ErrNoJournalFound, j.root)
	}
	if err != nil {
		return nil, err
	}
	return j.checkInitialized(db)
}

// checkInitialized closes db if an interrupted init left it empty
func (j *Journal) checkInitialized(db *storage.Storage) (*storage.Storage, error) {
	ok, err := db.IsInitialized()
	if err == nil && !ok {
		err = fmt.Errorf("%w: %s has an empty journal database", jerrors.ErrNoJournalFound, j.root)
	}
	if err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// openStore opens the entry store over a locked database and completes or
// rolls back an interrupted key change first
func (j *Journal) openStore(db *storage.Storage) (*entries.Store, error) {
	store, err := entries.Open(j.root, db)
	if err != nil {
		return nil, err
	}
	if err := store.Recover(); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}

// Unlock derives the key for creds and checks it against the journal's
// verifier. creds is cleared. Wrong credentials give ErrDecryptionFailed.
func (j *Journal) Unlock(creds *crypto.Credentials) (*Session, error) {
	defer creds.Clear()

	if err := creds.Validate(); err != nil {
		return nil, err
	}
	username := string(creds.Username)

	db, err := j.openDB()
	if err != nil {
		return nil, err
	}

	store, err := j.openStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	deriver, err := deriverFromDB(db)
	if err != nil {
		store.Close()
		db.Close()
		return nil, err
	}

	key, err := j.derive(deriver, creds)
	if err != nil {
		store.Close()
		db.Close()
		return nil, err
	}

	if err := checkVerifier(db, key); err != nil {
		key.Destroy()
		store.Close()
		db.Close()
		return nil, err
	}

	return &Session{
		journal:  j,
		db:       db,
		store:    store,
		key:      key,
		username: username,
	}, nil
}

// VerifyCredentials checks creds without keeping a session open
func (j *Journal) VerifyCredentials(creds *crypto.Credentials) error {
	s, err := j.Unlock(creds)
	if err != nil {
		return err
	}
	return s.Close()
}

func (j *Journal) derive(d crypto.Deriver, creds *crypto.Credentials) (crypto.Key, error) {
	j.progress.Start("deriving key")
	defer j.progress.Stop()
	return d.Derive(creds)
}

func deriverFromDB(db *storage.Storage) (crypto.Deriver, error) {
	salt, err := db.GetSalt()
	if err != nil {
		return crypto.Deriver{}, fmt.Errorf("failed to get salt: %w", err)
	}
	rec, err := db.GetKDF()
	if err != nil {
		return crypto.Deriver{}, fmt.Errorf("failed to get kdf parameters: %w", err)
	}
	if rec.Algorithm != storage.Argon2ID {
		return crypto.Deriver{}, fmt.Errorf("unsupported key derivation %q", rec.Algorithm)
	}
	return crypto.Deriver{
		Params: crypto.KDFParams{Time: rec.Time, Memory: rec.Memory, Threads: rec.Threads},
		Salt:   salt,
	}, nil
}

func kdfRecord(p crypto.KDFParams) storage.KDFRecord {
	return storage.KDFRecord{
		Algorithm: storage.Argon2ID,
		Time:      p.Time,
		Memory:    p.Memory,
		Threads:   p.Threads,
	}
}

func newVerifier(key crypto.Key) ([]byte, error) {
	blob, err := crypto.Seal(key, []byte(verifierCheck), verifierAAD)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt verifier: %w", err)
	}
	return blob, nil
}

func checkVerifier(db *storage.Storage, key crypto.Key) error {
	blob, err := db.GetVerifier()
	if err != nil {
		return fmt.Errorf("failed to read verifier: %w", err)
	}
	check, err := crypto.Open(key, blob, verifierAAD)
	if err != nil {
		return err
	}
	defer crypto.ClearBytes(check)
	if !crypto.ConstantTimeCompare(check, []byte(verifierCheck)) {
		return jerrors.ErrDecryptionFailed
	}
	return nil
}

// ID returns the journal's unique identifier
func (j *Journal) ID() (string, error) {
	db, err := j.openDBReadOnly()
	if err != nil {
		return "", err
	}
	defer db.Close()
	return db.GetJournalID()
}

// EntryInfo describes one entry without decrypting it
type EntryInfo struct {
	ID       entries.ID
	Size     int64
	Modified time.Time
}

// List returns the entries in chronological order. No key is needed.
func (j *Journal) List(ctx context.Context) ([]EntryInfo, error) {
	store, err := entries.Open(j.root, nil)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	ids, err := store.ListIDs()
	if err != nil {
		return nil, err
	}

	infos := make([]EntryInfo, 0, len(ids))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		info, err := store.Stat(id)
		if err != nil {
			// Removed since listing
			if errors.Is(err, jerrors.ErrEntryNotFound) {
				continue
			}
			return nil, err
		}
		infos = append(infos, EntryInfo{ID: id, Size: info.Size(), Modified: info.ModTime()})
	}
	return infos, nil
}

// Resolve turns user input into an entry id. Besides the exact form it
// accepts a unique prefix such as "20240301" and the word "latest".
func (j *Journal) Resolve(s string) (entries.ID, error) {
	store, err := entries.Open(j.root, nil)
	if err != nil {
		return entries.ID{}, err
	}
	defer store.Close()

	if id, err := entries.ParseID(s); err == nil {
		ok, err := store.Exists(id)
		if err != nil {
			return entries.ID{}, err
		}
		if !ok {
			return entries.ID{}, fmt.Errorf("%w: %s", jerrors.ErrEntryNotFound, s)
		}
		return id, nil
	}

	ids, err := store.ListIDs()
	if err != nil {
		return entries.ID{}, err
	}

	if s == "latest" {
		if len(ids) == 0 {
			return entries.ID{}, fmt.Errorf("%w: journal is empty", jerrors.ErrEntryNotFound)
		}
		return ids[len(ids)-1], nil
	}
	if s == "" {
		return entries.ID{}, fmt.Errorf("%w: %q", jerrors.ErrInvalidEntryID, s)
	}

	var matches []entries.ID
	for _, id := range ids {
		if strings.HasPrefix(id.String(), s) {
			matches = append(matches, id)
		}
	}
	switch len(matches) {
	case 0:
		return entries.ID{}, fmt.Errorf("%w: %s", jerrors.ErrEntryNotFound, s)
	case 1:
		return matches[0], nil
	default:
		return entries.ID{}, fmt.Errorf("%w: %s matches %d entries", ErrAmbiguousID, s, len(matches))
	}
}

// StatusInfo summarizes a journal without decrypting anything
type StatusInfo struct {
	Root       journal.Root
	JournalID  string
	Created    time.Time
	Modified   time.Time
	Algorithm  string
	KDF        string
	EntryCount int
	TotalSize  int64
	First      *entries.ID
	Last       *entries.ID
	// Unindexed and Stale count disagreements between disk and index
	Unindexed int
	Stale     int
}

// Status returns the current status (no password required)
func (j *Journal) Status(ctx context.Context) (*StatusInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	db, err := j.openDBReadOnly()
	if err != nil {
		return nil, err
	}
	defer db.Close()

	status := &StatusInfo{
		Root:      j.root,
		Algorithm: Algorithm,
	}

	if status.JournalID, err = db.GetJournalID(); err != nil {
		return nil, fmt.Errorf("failed to read journal id: %w", err)
	}
	// Not critical
	status.Created, _ = db.GetCreated()
	status.Modified, _ = db.GetModified()

	if rec, err := db.GetKDF(); err == nil {
		status.KDF = crypto.KDFParams{Time: rec.Time, Memory: rec.Memory, Threads: rec.Threads}.String()
	}

	index, err := db.GetIndex()
	if err != nil {
		return nil, fmt.Errorf("failed to read index: %w", err)
	}
	indexed := make(map[string]bool, len(index))
	for _, e := range index {
		indexed[e.ID] = true
	}

	store, err := entries.Open(j.root, nil)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	ids, err := store.ListIDs()
	if err != nil {
		return nil, err
	}
	onDisk := make(map[string]bool, len(ids))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		onDisk[id.String()] = true
		if !indexed[id.String()] {
			status.Unindexed++
		}
		if info, err := store.Stat(id); err == nil {
			status.TotalSize += info.Size()
		}
	}
	for id := range indexed {
		if !onDisk[id] {
			status.Stale++
		}
	}

	status.EntryCount = len(ids)
	if len(ids) > 0 {
		first, last := ids[0], ids[len(ids)-1]
		status.First, status.Last = &first, &last
	}
	return status, nil
}

// ReindexResult reports what Reindex did
type ReindexResult struct {
	Indexed      int
	TempsRemoved int
}

// Reindex rebuilds the entry index from disk and removes abandoned temp
// files. No key is needed.
func (j *Journal) Reindex(ctx context.Context) (*ReindexResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	db, err := j.openDB()
	if err != nil {
		return nil, err
	}
	defer db.Close()

	store, err := j.openStore(db)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	removed, err := store.CleanTemps(StaleTempAge)
	if err != nil {
		return nil, err
	}
	n, err := store.Reindex()
	if err != nil {
		return nil, err
	}
	return &ReindexResult{Indexed: n, TempsRemoved: removed}, nil
}

// Compact compacts the journal database to reclaim unused space.
// This is useful after removing entries.
func (j *Journal) Compact() error {
	db, err := j.openDB()
	if err != nil {
		return err
	}
	defer db.Close()
	return db.Compact()
}
