package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/illarion/jarida/internal/crypto"
	"github.com/illarion/jarida/internal/entries"
	jerrors "github.com/illarion/jarida/internal/errors"
	"github.com/illarion/jarida/internal/storage"
)

// Session is an unlocked journal. It holds the journal database lock and
// the derived key until Close.
type Session struct {
	journal  *Journal
	db       *storage.Storage
	store    *entries.Store
	key      crypto.Key
	username string
}

// Close destroys the key and releases the journal lock
func (s *Session) Close() error {
	if s.key != nil {
		s.key.Destroy()
		s.key = nil
	}
	var errs []error
	if s.store != nil {
		errs = append(errs, s.store.Close())
		s.store = nil
	}
	if s.db != nil {
		errs = append(errs, s.db.Close())
		s.db = nil
	}
	return errors.Join(errs...)
}

// Journal returns the journal this session unlocked
func (s *Session) Journal() *Journal {
	return s.journal
}

// Username returns the name the session was unlocked with
func (s *Session) Username() string {
	return s.username
}

func (s *Session) open() error {
	if s.key == nil {
		return fmt.Errorf("session is closed")
	}
	return nil
}

// IsBlank reports whether content holds nothing but whitespace
func IsBlank(content []byte) bool {
	return strings.IndexFunc(string(content), func(r rune) bool { return !unicode.IsSpace(r) }) < 0
}

// NewEntry encrypts and stores content as a new entry written by the
// session's user. Blank content is rejected with ErrEmptyEntry.
func (s *Session) NewEntry(content []byte) (entries.ID, error) {
	if err := s.open(); err != nil {
		return entries.ID{}, err
	}
	if IsBlank(content) {
		return entries.ID{}, jerrors.ErrEmptyEntry
	}
	payload, err := encodeEntry(entryHeader{Author: s.username}, content)
	if err != nil {
		return entries.ID{}, err
	}
	defer crypto.ClearBytes(payload)
	return s.store.WriteNew(payload, s.key)
}

// ShowEntry decrypts one entry and returns its text
func (s *Session) ShowEntry(id entries.ID) ([]byte, error) {
	e, err := s.readEntry(id)
	if err != nil {
		return nil, err
	}
	return e.Content, nil
}

func (s *Session) readEntry(id entries.ID) (*Entry, error) {
	if err := s.open(); err != nil {
		return nil, err
	}
	plain, err := s.store.ReadOne(id, s.key)
	if err != nil {
		return nil, err
	}
	h, content := decodeEntry(plain)
	return &Entry{ID: id, Author: h.Author, Content: content}, nil
}

// Entry is a decrypted entry with its index record
type Entry struct {
	ID entries.ID
	// Author is the username that wrote the entry, empty if unknown
	Author  string
	Content []byte
	Index   *storage.IndexEntry
}

// EntryDetails decrypts one entry and attaches its index record, which is
// nil if the index does not know the entry
func (s *Session) EntryDetails(id entries.ID) (*Entry, error) {
	e, err := s.readEntry(id)
	if err != nil {
		return nil, err
	}
	if e.Index, err = s.db.GetIndexEntry(id.String()); err != nil {
		crypto.ClearBytes(e.Content)
		return nil, fmt.Errorf("failed to read index: %w", err)
	}
	return e, nil
}

// EachEntry decrypts every entry in chronological order and passes it to
// fn. It stops at the first error, including a failed decryption.
func (s *Session) EachEntry(ctx context.Context, fn func(*Entry) error) error {
	if err := s.open(); err != nil {
		return err
	}
	ids, err := s.store.ListIDs()
	if err != nil {
		return err
	}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}
		e, err := s.EntryDetails(id)
		if err != nil {
			return fmt.Errorf("entry %s: %w", id, err)
		}
		err = fn(e)
		crypto.ClearBytes(e.Content)
		if err != nil {
			return err
		}
	}
	return nil
}

// EditEntry replaces the text of an existing entry. The author is kept.
// Blank content is rejected with ErrEmptyEntry; use RemoveEntry to delete.
func (s *Session) EditEntry(id entries.ID, content []byte) error {
	if IsBlank(content) {
		if err := s.open(); err != nil {
			return err
		}
		return jerrors.ErrEmptyEntry
	}
	old, err := s.readEntry(id)
	if err != nil {
		return err
	}
	crypto.ClearBytes(old.Content)

	payload, err := encodeEntry(entryHeader{Author: old.Author}, content)
	if err != nil {
		return err
	}
	defer crypto.ClearBytes(payload)
	return s.store.Rewrite(id, payload, s.key)
}

// RemoveEntry deletes an entry
func (s *Session) RemoveEntry(id entries.ID) error {
	if err := s.open(); err != nil {
		return err
	}
	return s.store.Remove(id)
}

// ChangeCredentials re-encrypts every entry and the verifier under a key
// derived from newCreds with a fresh salt. Every entry is decrypted and
// staged under the new key before the key is switched; if any step before
// the switch fails, nothing changes. Entry authors are kept. newCreds is
// cleared.
func (s *Session) ChangeCredentials(ctx context.Context, newCreds *crypto.Credentials, params crypto.KDFParams) error {
	defer newCreds.Clear()

	if err := s.open(); err != nil {
		return err
	}
	if err := newCreds.Validate(); err != nil {
		return err
	}
	if err := params.Validate(); err != nil {
		return err
	}
	username := string(newCreds.Username)

	ids, err := s.store.ListIDs()
	if err != nil {
		return err
	}

	type plainEntry struct {
		id   entries.ID
		data []byte
	}
	var plain []plainEntry
	// Ensure all decrypted data is cleared from memory on all exit paths
	defer func() {
		for i := range plain {
			crypto.ClearBytes(plain[i].data)
		}
	}()

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}
		data, err := s.store.ReadOne(id, s.key)
		if err != nil {
			return fmt.Errorf("entry %s: %w", id, err)
		}
		plain = append(plain, plainEntry{id: id, data: data})
	}

	salt, err := crypto.NewSalt()
	if err != nil {
		return err
	}
	newKey, err := s.journal.derive(crypto.Deriver{Params: params, Salt: salt}, newCreds)
	if err != nil {
		return err
	}
	verifier, err := newVerifier(newKey)
	if err != nil {
		newKey.Destroy()
		return err
	}

	// Stage every entry under the new key next to the current one. Until
	// Rekey commits, a failure leaves the journal as it was.
	abort := func(err error) error {
		newKey.Destroy()
		if _, derr := s.store.DiscardStaged(); derr != nil {
			return errors.Join(err, derr)
		}
		return err
	}
	for _, p := range plain {
		if err := ctx.Err(); err != nil {
			return abort(err)
		}
		if err := s.store.Stage(p.id, p.data, newKey); err != nil {
			return abort(fmt.Errorf("failed to re-encrypt entry %s: %w", p.id, err))
		}
	}
	if err := s.db.Rekey(salt, kdfRecord(params), verifier); err != nil {
		return abort(fmt.Errorf("failed to store new key parameters: %w", err))
	}

	// The new key is now the journal's key
	oldKey := s.key
	s.key = newKey
	oldKey.Destroy()
	s.username = username

	// Interrupted commits are finished by the next Unlock
	if _, err := s.store.CommitStaged(); err != nil {
		return fmt.Errorf("failed to replace entries, they are kept for the next unlock: %w", err)
	}
	if err := s.db.FinishRekey(); err != nil {
		return err
	}
	return s.db.UpdateModified()
}
