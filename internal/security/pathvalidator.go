package security

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	jerrors "github.com/illarion/jarida/internal/errors"
)

var (
	ErrPathEscapes  = errors.New("path escapes directory")
	ErrAbsolutePath = errors.New("absolute paths are not allowed")
	ErrEmptyPath    = errors.New("empty path not allowed")
	ErrNotPlainName = errors.New("name must be a single path element")
	ErrHiddenName   = errors.New("name must not start with a dot")
)

// TempPrefix marks in-flight atomic writes. Names with this prefix are
// never valid entry names.
const TempPrefix = ".tmp-"

// beforeRename is called between writing the temp file and publishing it.
// Tests use it to simulate a crash.
var beforeRename = func(tmpName string) error { return nil }

// PathValidator confines file operations to one directory using os.Root,
// so a crafted name cannot reach outside it through .. or symlinks.
type PathValidator struct {
	root *os.Root
	dir  string
}

// New opens dir as the confinement root
func New(dir string) (*PathValidator, error) {
	absPath, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	root, err := os.OpenRoot(absPath)
	if err != nil {
		return nil, jerrors.FromFS("open root", absPath, err)
	}

	return &PathValidator{
		root: root,
		dir:  absPath,
	}, nil
}

// Close releases the root directory handle
func (pv *PathValidator) Close() error {
	if pv.root != nil {
		return pv.root.Close()
	}
	return nil
}

// Dir returns the absolute confinement directory
func (pv *PathValidator) Dir() string {
	return pv.dir
}

// ValidateName accepts only a plain, visible file name directly inside
// the root. It rejects:
// - Empty names
// - Absolute paths
// - Anything with a separator or .. component
// - Names starting with a dot (reserved for temp files)
func (pv *PathValidator) ValidateName(name string) error {
	if name == "" {
		return ErrEmptyPath
	}
	if filepath.IsAbs(name) {
		return fmt.Errorf("%w: %s", ErrAbsolutePath, name)
	}
	if !filepath.IsLocal(name) {
		return fmt.Errorf("%w: %s", ErrPathEscapes, name)
	}
	if strings.ContainsAny(name, `/\`) || filepath.Base(name) != name {
		return fmt.Errorf("%w: %s", ErrNotPlainName, name)
	}
	if strings.HasPrefix(name, ".") {
		return fmt.Errorf("%w: %s", ErrHiddenName, name)
	}
	return nil
}

// ReadFileInRoot reads a file inside the root
func (pv *PathValidator) ReadFileInRoot(name string) ([]byte, error) {
	if err := pv.ValidateName(name); err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}
	return pv.root.ReadFile(name)
}

// StatInRoot stats a file inside the root
func (pv *PathValidator) StatInRoot(name string) (os.FileInfo, error) {
	if err := pv.ValidateName(name); err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}
	return pv.root.Lstat(name)
}

// ExistsInRoot reports whether name exists inside the root
func (pv *PathValidator) ExistsInRoot(name string) (bool, error) {
	_, err := pv.StatInRoot(name)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}

// RemoveInRoot removes a file inside the root
func (pv *PathValidator) RemoveInRoot(name string) error {
	if err := pv.ValidateName(name); err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}
	return pv.root.Remove(name)
}

// ListNames returns the names of regular files in the root, unsorted
func (pv *PathValidator) ListNames() ([]string, error) {
	entries, err := fs.ReadDir(pv.root.FS(), ".")
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// WriteFileAtomic writes data to a temp file, syncs it and renames it over
// name, so readers see either the old file, no file, or the complete new
// file. With replace=false an existing name fails with fs.ErrExist.
func (pv *PathValidator) WriteFileAtomic(name string, data []byte, perm os.FileMode, replace bool) (err error) {
	if err := pv.ValidateName(name); err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}

	tmpName := TempPrefix + uuid.NewString()
	f, err := pv.root.OpenFile(tmpName, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			pv.root.Remove(tmpName)
		}
	}()

	if _, err = f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err = f.Sync(); err != nil {
		f.Close()
		return err
	}
	if err = f.Close(); err != nil {
		return err
	}

	if err = beforeRename(tmpName); err != nil {
		return err
	}

	if !replace {
		if err = pv.publishExclusive(tmpName, name); err != nil {
			return err
		}
		pv.syncDir()
		return nil
	}

	if err = pv.root.Rename(tmpName, name); err != nil {
		return err
	}
	pv.syncDir()
	return nil
}

// publishExclusive gives tmpName the name name only if name is free. A
// hard link fails atomically on an existing name; on filesystems without
// hard links it falls back to a check followed by a rename.
func (pv *PathValidator) publishExclusive(tmpName, name string) error {
	err := pv.root.Link(tmpName, name)
	switch {
	case err == nil:
		// name now holds the data; the temp name is only a second link
		_ = pv.root.Remove(tmpName)
		return nil
	case errors.Is(err, fs.ErrExist):
		return fmt.Errorf("%s: %w", name, fs.ErrExist)
	}

	exists, err := pv.ExistsInRoot(name)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%s: %w", name, fs.ErrExist)
	}
	return pv.root.Rename(tmpName, name)
}

// RenameInRoot renames from to to inside the root, replacing to
func (pv *PathValidator) RenameInRoot(from, to string) error {
	if err := pv.ValidateName(from); err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}
	if err := pv.ValidateName(to); err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}
	if err := pv.root.Rename(from, to); err != nil {
		return err
	}
	pv.syncDir()
	return nil
}

// syncDir flushes the directory entry of a rename to disk
func (pv *PathValidator) syncDir() {
	d, err := pv.root.Open(".")
	if err != nil {
		return
	}
	defer d.Close()
	// Not every platform can fsync a directory; the rename itself stands
	_ = d.Sync()
}

// RemoveStaleTemps deletes temp files older than maxAge left behind by
// interrupted writes. It returns the number removed.
func (pv *PathValidator) RemoveStaleTemps(maxAge time.Duration) (int, error) {
	entries, err := fs.ReadDir(pv.root.FS(), ".")
	if err != nil {
		return 0, err
	}
	removed := 0
	cutoff := time.Now().Add(-maxAge)
	for _, e := range entries {
		if !strings.HasPrefix(e.Name(), TempPrefix) {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := pv.root.Remove(e.Name()); err == nil {
			removed++
		}
	}
	return removed, nil
}
