package errors

import (
	"errors"
	"fmt"
	"io/fs"
)

// Credential and cryptographic errors.
var (
	// ErrInvalidCredentials indicates an empty or malformed username or password.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrDecryptionFailed indicates an entry could not be authenticated and decrypted.
	ErrDecryptionFailed = errors.New("decryption failed")
)

// Journal discovery errors.
var (
	// ErrNoJournalFound indicates neither an ancestor directory nor the home
	// directory contains a journal marker.
	ErrNoJournalFound = errors.New("no journal found")

	// ErrFilesystemRootReached indicates the upward search hit the filesystem root.
	ErrFilesystemRootReached = errors.New("filesystem root reached")

	// ErrAlreadyInitialized indicates the directory already holds a journal.
	ErrAlreadyInitialized = errors.New("journal already initialized")
)

// Entry errors.
var (
	// ErrEntryNotFound indicates no entry file matches the requested id.
	ErrEntryNotFound = errors.New("entry not found")

	// ErrInvalidEntryID indicates a string that is not a well-formed entry id.
	ErrInvalidEntryID = errors.New("invalid entry id")

	// ErrEmptyEntry indicates an entry with no content besides whitespace.
	ErrEmptyEntry = errors.New("entry is empty")
)

// Filesystem errors.
var (
	// ErrAccessDenied indicates the operating system refused access to a path.
	ErrAccessDenied = errors.New("access denied")

	// ErrIO indicates any other filesystem failure (disk full, name too long, ...).
	ErrIO = errors.New("i/o failure")

	// ErrJournalBusy indicates another process holds the journal lock.
	ErrJournalBusy = fmt.Errorf("journal is locked by another process: %w", ErrIO)
)

// FromFS classifies a filesystem error into ErrAccessDenied or ErrIO while
// keeping the original error in the chain. A nil err yields nil.
func FromFS(op, path string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, fs.ErrPermission) {
		return fmt.Errorf("%s %s: %w: %w", op, path, ErrAccessDenied, err)
	}
	return fmt.Errorf("%s %s: %w: %w", op, path, ErrIO, err)
}
