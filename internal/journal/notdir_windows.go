//go:build windows

package journal

import "io/fs"

func isNotDir(err *fs.PathError) bool {
	return false
}
