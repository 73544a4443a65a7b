package fs

import (
	"context"
	iofs "io/fs"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
)

func (o *OSFS) Scan(ctx context.Context, root string, maxDepth int) ([]FileInfo, error) {
	if maxDepth <= 0 {
		maxDepth = 1
	}
	root = filepath.Clean(root)

	var out []FileInfo
	err := filepath.WalkDir(root, func(path string, d iofs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			// unreadable entries below root are skipped
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			if path != root && depth(root, path) >= maxDepth {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		out = append(out, fromOS(path, info))
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "scanning %s", root)
	}
	return out, nil
}

func depth(root, path string) int {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." {
		return 0
	}
	return strings.Count(rel, string(filepath.Separator)) + 1
}
