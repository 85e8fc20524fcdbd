package journal

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	jerrors "github.com/illarion/jarida/internal/errors"
)

const (
	MarkerDir     = ".jarida"
	EntriesDir    = "entries"
	DBFile        = "journal.db"
	ConfigFile    = "config.toml"
	DirPermSecure = 0700 // Directory: owner rwx only
)

// Root is the absolute path of a journal's top directory
type Root string

func (r Root) String() string { return string(r) }
func (r Root) MarkerDir() string { return filepath.Join(string(r), MarkerDir) }
func (r Root) EntriesDir() string { return filepath.Join(string(r), EntriesDir) }
func (r Root) DBPath() string { return filepath.Join(string(r), MarkerDir, DBFile) }
func (r Root) ConfigPath() string { return filepath.Join(string(r), MarkerDir, ConfigFile) }

// Locator finds journal roots. Home returns the fallback directory; nil
// means os.UserHomeDir.
type Locator struct {
	Home func() (string, error)
}

// Locate returns the nearest ancestor of startDir (startDir included) that
// holds a marker, or the home directory if it does. Otherwise the error
// matches both ErrNoJournalFound and ErrFilesystemRootReached.
func (l Locator) Locate(startDir string) (Root, error) {
	root, err := walkUp(startDir)
	if err == nil {
		return root, nil
	}
	if !errors.Is(err, jerrors.ErrFilesystemRootReached) {
		return "", err
	}

	home, herr := l.home()
	if herr != nil {
		return "", fmt.Errorf("%w: %w (home directory unavailable: %v)", jerrors.ErrNoJournalFound, err, herr)
	}
	ok, merr := hasMarker(home)
	if merr != nil {
		return "", merr
	}
	if !ok {
		return "", fmt.Errorf("%w: searched from %s and %s: %w", jerrors.ErrNoJournalFound, startDir, home, err)
	}
	return Root(home), nil
}

func (l Locator) home() (string, error) {
	homeFn := l.Home
	if homeFn == nil {
		homeFn = os.UserHomeDir
	}
	home, err := homeFn()
	if err != nil {
		return "", err
	}
	return filepath.Abs(home)
}

// walkUp checks dir and each parent in turn, iteratively
func walkUp(startDir string) (Root, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", startDir, jerrors.ErrIO)
	}

	for {
		ok, err := hasMarker(dir)
		if err != nil {
			return "", err
		}
		if ok {
			return Root(dir), nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("%w: no %s above %s", jerrors.ErrFilesystemRootReached, MarkerDir, startDir)
		}
		dir = parent
	}
}

// hasMarker reports whether dir contains a marker directory. A missing
// dir or marker is not an error; a permission failure is.
func hasMarker(dir string) (bool, error) {
	info, err := os.Stat(filepath.Join(dir, MarkerDir))
	switch {
	case err == nil:
		return info.IsDir(), nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	case errors.Is(err, fs.ErrPermission):
		return false, fmt.Errorf("probing %s: %w: %w", dir, jerrors.ErrAccessDenied, err)
	default:
		// ENOTDIR from a path component that is a file counts as "no marker"
		var pathErr *fs.PathError
		if errors.As(err, &pathErr) && isNotDir(pathErr) {
			return false, nil
		}
		return false, jerrors.FromFS("probing", dir, err)
	}
}

// Init creates the marker and entries directories in dir. It does not
// write the journal database; see core.Init.
func Init(dir string) (Root, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", dir, jerrors.ErrIO)
	}
	root := Root(abs)

	if _, err := os.Lstat(root.MarkerDir()); err == nil {
		return "", fmt.Errorf("%w: %s", jerrors.ErrAlreadyInitialized, abs)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return "", jerrors.FromFS("stat", root.MarkerDir(), err)
	}

	if err := os.MkdirAll(abs, DirPermSecure); err != nil {
		return "", jerrors.FromFS("mkdir", abs, err)
	}
	if err := os.Mkdir(root.MarkerDir(), DirPermSecure); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return "", fmt.Errorf("%w: %s", jerrors.ErrAlreadyInitialized, abs)
		}
		return "", jerrors.FromFS("mkdir", root.MarkerDir(), err)
	}
	if err := os.MkdirAll(root.EntriesDir(), DirPermSecure); err != nil {
		return "", jerrors.FromFS("mkdir", root.EntriesDir(), err)
	}
	return root, nil
}
