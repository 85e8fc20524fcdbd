//go:build !windows

package journal

import (
	"errors"
	"io/fs"
	"syscall"
)

func isNotDir(err *fs.PathError) bool {
	return errors.Is(err.Err, syscall.ENOTDIR)
}
