package retention

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/raoulx24/logkeeper/internal/fs"
)

// FileName accepts files whose path relative to the base path matches a
// glob or a regular expression. Both may be set; a file must match both.
type FileName struct {
	Glob  string
	Regex *regexp.Regexp
}

func (c *FileName) Select(_ context.Context, basePath string, candidates []fs.FileInfo) ([]fs.FileInfo, error) {
	var out []fs.FileInfo
	for _, f := range candidates {
		rel, err := filepath.Rel(basePath, f.Path)
		if err != nil {
			rel = f.Path
		}
		rel = filepath.ToSlash(rel)
		if c.Glob != "" {
			ok, err := filepath.Match(c.Glob, rel)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
		}
		if c.Regex != nil && !c.Regex.MatchString(rel) {
			continue
		}
		out = append(out, f)
	}
	return out, nil
}

func (c *FileName) String() string {
	if c.Regex != nil {
		return fmt.Sprintf("fileName(glob=%q, regex=%q)", c.Glob, c.Regex)
	}
	return fmt.Sprintf("fileName(glob=%q)", c.Glob)
}

// LastModified accepts files older than Age.
type LastModified struct {
	Age time.Duration
	Now func() time.Time
}

func (c *LastModified) Select(_ context.Context, _ string, candidates []fs.FileInfo) ([]fs.FileInfo, error) {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	cutoff := now().Add(-c.Age)

	var out []fs.FileInfo
	for _, f := range candidates {
		if f.MTime.Before(cutoff) {
			out = append(out, f)
		}
	}
	return out, nil
}

func (c *LastModified) String() string { return "lastModified(age=" + c.Age.String() + ")" }

// AccumulatedFileCount keeps the first Keep files it is handed and accepts
// the rest. With candidates sorted newest first, that keeps the newest.
type AccumulatedFileCount struct {
	Keep int
}

func (c *AccumulatedFileCount) Select(_ context.Context, _ string, candidates []fs.FileInfo) ([]fs.FileInfo, error) {
	if len(candidates) <= c.Keep {
		return nil, nil
	}
	return candidates[c.Keep:], nil
}

func (c *AccumulatedFileCount) String() string {
	return fmt.Sprintf("accumulatedFileCount(keep=%d)", c.Keep)
}

// AccumulatedFileSize walks the files in order, summing their sizes, and
// accepts every file from the one that pushes the total past Threshold.
type AccumulatedFileSize struct {
	Threshold uint64
}

func (c *AccumulatedFileSize) Select(_ context.Context, _ string, candidates []fs.FileInfo) ([]fs.FileInfo, error) {
	var total uint64
	for i, f := range candidates {
		if f.Size > 0 {
			total += uint64(f.Size)
		}
		if total > c.Threshold {
			return candidates[i:], nil
		}
	}
	return nil, nil
}

func (c *AccumulatedFileSize) String() string {
	return "accumulatedFileSize(threshold=" + humanize.IBytes(c.Threshold) + ")"
}
