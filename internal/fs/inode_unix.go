//go:build unix

package fs

import (
	"os"
	"syscall"
)

// inodeOf lets callers tell a renamed archive apart from a fresh one.
func inodeOf(info os.FileInfo) uint64 {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return 0
	}
	return uint64(st.Ino)
}
