// Package fs defines the filesystem abstraction used by logkeeper.
// It provides the FS interface and the FileInfo snapshot that retention
// conditions inspect.
package fs

import (
	"context"
	iofs "io/fs"
	"time"
)

// FileInfo is an immutable snapshot of one archive file taken at scan time.
type FileInfo struct {
	Path  string
	Size  int64
	MTime time.Time
	IsDir bool
	Mode  iofs.FileMode
	Inode uint64
}

type FS interface {
	Stat(path string) (FileInfo, error)
	// Scan lists the regular files under root, descending at most maxDepth
	// directory levels (1 = root only). maxDepth <= 0 means 1.
	Scan(ctx context.Context, root string, maxDepth int) ([]FileInfo, error)
	Remove(ctx context.Context, path string) error
}
