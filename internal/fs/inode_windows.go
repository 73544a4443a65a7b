//go:build windows

package fs

import "os"

// Windows has no POSIX inode; zero means "unknown".
func inodeOf(os.FileInfo) uint64 {
	return 0
}
