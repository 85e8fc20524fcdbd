package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	jerrors "github.com/illarion/jarida/internal/errors"
	bolt "go.etcd.io/bbolt"
)

// Bucket names
var (
	ConfigBucket  = []byte("config")  // KDF params, salt, journal id, timestamps - unencrypted
	IndexBucket   = []byte("index")   // Entry list for status - unencrypted
	PrivateBucket = []byte("private") // Encrypted verifier
)

// Config keys
var (
	ConfigVersion   = []byte("version")
	ConfigCreated   = []byte("created")
	ConfigModified  = []byte("modified")
	ConfigSalt      = []byte("salt")
	ConfigKDF       = []byte("kdf")
	ConfigJournalID = []byte("journal_id")
	// ConfigRekeyPending is set while re-encrypted entries wait to be
	// moved into place after a key change
	ConfigRekeyPending = []byte("rekey_pending")

	PrivateVerifier = []byte("verifier")
)

const (
	SchemaVersion = "1"
	FilePerm      = 0600

	// LockTimeout bounds how long Open waits for another process's lock
	LockTimeout = 5 * time.Second
)

// Storage provides BBolt-based storage for a journal
type Storage struct {
	db *bolt.DB
}

// Open opens or creates the journal database and takes its exclusive lock
func Open(path string) (*Storage, error) {
	return open(path, &bolt.Options{Timeout: LockTimeout})
}

// OpenReadOnly opens an existing database under a shared lock
func OpenReadOnly(path string) (*Storage, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, jerrors.FromFS("open", path, err)
	}
	return open(path, &bolt.Options{Timeout: LockTimeout, ReadOnly: true})
}

func open(path string, opts *bolt.Options) (*Storage, error) {
	db, err := bolt.Open(path, FilePerm, opts)
	if err != nil {
		if errors.Is(err, bolt.ErrTimeout) {
			return nil, fmt.Errorf("open %s: %w", path, jerrors.ErrJournalBusy)
		}
		return nil, jerrors.FromFS("open database", path, err)
	}
	return &Storage{db: db}, nil
}

// Close closes the database and releases its lock
func (s *Storage) Close() error {
	return s.db.Close()
}

// Path returns the database file path
func (s *Storage) Path() string {
	return s.db.Path()
}

// Initialize creates the bucket structure and records the journal's
// identity and key derivation inputs
func (s *Storage) Initialize(journalID string, salt []byte, kdf KDFRecord) error {
	kdfJSON, err := json.Marshal(kdf)
	if err != nil {
		return fmt.Errorf("failed to marshal kdf parameters: %w", err)
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{ConfigBucket, IndexBucket, PrivateBucket} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}

		config := tx.Bucket(ConfigBucket)
		created, _ := time.Now().UTC().MarshalBinary()
		for k, v := range map[string][]byte{
			string(ConfigVersion):   []byte(SchemaVersion),
			string(ConfigCreated):   created,
			string(ConfigModified):  created,
			string(ConfigSalt):      salt,
			string(ConfigKDF):       kdfJSON,
			string(ConfigJournalID): []byte(journalID),
		} {
			if err := config.Put([]byte(k), v); err != nil {
				return err
			}
		}
		return nil
	})
}

// IsInitialized checks if the database has been initialized
func (s *Storage) IsInitialized() (bool, error) {
	var initialized bool
	err := s.db.View(func(tx *bolt.Tx) error {
		config := tx.Bucket(ConfigBucket)
		if config != nil && config.Get(ConfigVersion) != nil {
			initialized = true
		}
		return nil
	})
	return initialized, err
}

// getConfig copies a config value out of its read transaction
func (s *Storage) getConfig(key []byte) ([]byte, error) {
	var value []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		config := tx.Bucket(ConfigBucket)
		if config == nil {
			return fmt.Errorf("config bucket not found")
		}
		data := config.Get(key)
		if data == nil {
			return fmt.Errorf("%s not found", key)
		}
		// Make a copy since the slice is only valid during the transaction
		value = append([]byte(nil), data...)
		return nil
	})
	return value, err
}

func (s *Storage) putConfig(key, value []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		config := tx.Bucket(ConfigBucket)
		if config == nil {
			return fmt.Errorf("config bucket not found")
		}
		return config.Put(key, value)
	})
}

// GetSalt retrieves the journal salt
func (s *Storage) GetSalt() ([]byte, error) {
	return s.getConfig(ConfigSalt)
}

// GetKDF retrieves the key derivation parameters
func (s *Storage) GetKDF() (KDFRecord, error) {
	var kdf KDFRecord
	data, err := s.getConfig(ConfigKDF)
	if err != nil {
		return kdf, err
	}
	if err := json.Unmarshal(data, &kdf); err != nil {
		return kdf, fmt.Errorf("failed to parse kdf parameters: %w", err)
	}
	return kdf, nil
}

// GetJournalID retrieves the journal's stable identifier
func (s *Storage) GetJournalID() (string, error) {
	id, err := s.getConfig(ConfigJournalID)
	return string(id), err
}

// GetCreated retrieves the journal creation time
func (s *Storage) GetCreated() (time.Time, error) {
	return s.getTime(ConfigCreated)
}

// GetModified retrieves the last modified timestamp
func (s *Storage) GetModified() (time.Time, error) {
	return s.getTime(ConfigModified)
}

func (s *Storage) getTime(key []byte) (time.Time, error) {
	var t time.Time
	data, err := s.getConfig(key)
	if err != nil {
		return t, err
	}
	return t, t.UnmarshalBinary(data)
}

// UpdateModified updates the last modified timestamp
func (s *Storage) UpdateModified() error {
	modified, _ := time.Now().UTC().MarshalBinary()
	return s.putConfig(ConfigModified, modified)
}

// Rekey replaces salt, KDF parameters and verifier in one transaction and
// marks the key change pending until FinishRekey. Entries staged under the
// new key must be committed while it is pending.
func (s *Storage) Rekey(salt []byte, kdf KDFRecord, verifier []byte) error {
	kdfJSON, err := json.Marshal(kdf)
	if err != nil {
		return fmt.Errorf("failed to marshal kdf parameters: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		config := tx.Bucket(ConfigBucket)
		private := tx.Bucket(PrivateBucket)
		if config == nil || private == nil {
			return fmt.Errorf("journal database not initialized")
		}
		if err := config.Put(ConfigSalt, salt); err != nil {
			return err
		}
		if err := config.Put(ConfigKDF, kdfJSON); err != nil {
			return err
		}
		if err := config.Put(ConfigRekeyPending, []byte("1")); err != nil {
			return err
		}
		return private.Put(PrivateVerifier, verifier)
	})
}

// RekeyPending reports whether a key change still has staged entries to
// commit
func (s *Storage) RekeyPending() (bool, error) {
	var pending bool
	err := s.db.View(func(tx *bolt.Tx) error {
		config := tx.Bucket(ConfigBucket)
		if config == nil {
			return fmt.Errorf("config bucket not found")
		}
		pending = config.Get(ConfigRekeyPending) != nil
		return nil
	})
	return pending, err
}

// FinishRekey clears the pending mark set by Rekey
func (s *Storage) FinishRekey() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		config := tx.Bucket(ConfigBucket)
		if config == nil {
			return fmt.Errorf("config bucket not found")
		}
		return config.Delete(ConfigRekeyPending)
	})
}

// StoreVerifier stores the encrypted password verifier
func (s *Storage) StoreVerifier(blob []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		private := tx.Bucket(PrivateBucket)
		if private == nil {
			return fmt.Errorf("private bucket not found")
		}
		return private.Put(PrivateVerifier, blob)
	})
}

// GetVerifier retrieves the encrypted password verifier
func (s *Storage) GetVerifier() ([]byte, error) {
	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		private := tx.Bucket(PrivateBucket)
		if private == nil {
			return fmt.Errorf("private bucket not found")
		}
		data = private.Get(PrivateVerifier)
		if data == nil {
			return fmt.Errorf("verifier not found")
		}
		data = append([]byte(nil), data...)
		return nil
	})
	return data, err
}

// PutIndexEntry adds or replaces an entry in the index
func (s *Storage) PutIndexEntry(entry IndexEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		index := tx.Bucket(IndexBucket)
		if index == nil {
			return fmt.Errorf("index bucket not found")
		}
		return index.Put([]byte(entry.ID), data)
	})
}

// RemoveIndexEntry removes an entry from the index
func (s *Storage) RemoveIndexEntry(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		index := tx.Bucket(IndexBucket)
		if index == nil {
			return fmt.Errorf("index bucket not found")
		}
		return index.Delete([]byte(id))
	})
}

// GetIndexEntry returns a single index entry, or nil if absent
func (s *Storage) GetIndexEntry(id string) (*IndexEntry, error) {
	var entry *IndexEntry
	err := s.db.View(func(tx *bolt.Tx) error {
		index := tx.Bucket(IndexBucket)
		if index == nil {
			return fmt.Errorf("index bucket not found")
		}
		data := index.Get([]byte(id))
		if data == nil {
			return nil
		}
		entry = &IndexEntry{}
		return json.Unmarshal(data, entry)
	})
	return entry, err
}

// GetIndex returns all index entries ordered by creation time
func (s *Storage) GetIndex() ([]IndexEntry, error) {
	var entries []IndexEntry
	err := s.db.View(func(tx *bolt.Tx) error {
		index := tx.Bucket(IndexBucket)
		if index == nil {
			return fmt.Errorf("index bucket not found")
		}
		return index.ForEach(func(k, v []byte) error {
			var entry IndexEntry
			if err := json.Unmarshal(v, &entry); err != nil {
				return fmt.Errorf("corrupt index entry %s: %w", k, err)
			}
			entries = append(entries, entry)
			return nil
		})
	})
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].Created.Equal(entries[j].Created) {
			return entries[i].Created.Before(entries[j].Created)
		}
		return entries[i].ID < entries[j].ID
	})
	return entries, err
}

// ReplaceIndex drops the index bucket and refills it with entries
func (s *Storage) ReplaceIndex(entries []IndexEntry) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(IndexBucket); err != nil && !errors.Is(err, bolt.ErrBucketNotFound) {
			return err
		}
		index, err := tx.CreateBucket(IndexBucket)
		if err != nil {
			return err
		}
		for _, entry := range entries {
			data, err := json.Marshal(entry)
			if err != nil {
				return err
			}
			if err := index.Put([]byte(entry.ID), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// Compact creates a compacted copy of the database, removing unused space.
// Index churn from rm and passwd leaves free pages behind.
func (s *Storage) Compact() error {
	srcPath := s.db.Path()
	tmpPath := srcPath + ".compact"

	// Create new database
	dst, err := bolt.Open(tmpPath, FilePerm, nil)
	if err != nil {
		return fmt.Errorf("failed to create compact database: %w", err)
	}

	// Copy all buckets
	err = s.db.View(func(srcTx *bolt.Tx) error {
		return dst.Update(func(dstTx *bolt.Tx) error {
			return srcTx.ForEach(func(name []byte, srcBucket *bolt.Bucket) error {
				dstBucket, err := dstTx.CreateBucketIfNotExists(name)
				if err != nil {
					return err
				}
				return srcBucket.ForEach(func(k, v []byte) error {
					return dstBucket.Put(k, v)
				})
			})
		})
	})

	if err != nil {
		dst.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to copy data: %w", err)
	}

	if err := dst.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close compact database: %w", err)
	}

	// The file lock is released while the files are swapped; another
	// process may open the database in between. It is reopened on every
	// path so s stays usable.
	if err := s.db.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close source database: %w", err)
	}

	swapErr := swapFiles(srcPath, tmpPath)
	if err := s.reopen(srcPath); err != nil {
		return errors.Join(swapErr, err)
	}
	return swapErr
}

// swapFiles replaces srcPath with tmpPath, restoring srcPath on failure
func swapFiles(srcPath, tmpPath string) error {
	backupPath := srcPath + ".backup"
	if err := os.Rename(srcPath, backupPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to backup original: %w", err)
	}
	if err := os.Rename(tmpPath, srcPath); err != nil {
		os.Rename(backupPath, srcPath) // rollback
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace database: %w", err)
	}
	os.Remove(backupPath)
	return nil
}

func (s *Storage) reopen(path string) error {
	db, err := bolt.Open(path, FilePerm, &bolt.Options{Timeout: LockTimeout})
	if err != nil {
		if errors.Is(err, bolt.ErrTimeout) {
			return fmt.Errorf("failed to reopen database: %w", jerrors.ErrJournalBusy)
		}
		return fmt.Errorf("failed to reopen database: %w", err)
	}
	s.db = db
	return nil
}
