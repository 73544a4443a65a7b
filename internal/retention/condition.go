// Package retention decides which rolled archives to delete and deletes
// them.
//
// A pass runs the candidate files through an ordered chain of Conditions.
// Each condition narrows the list it is handed; whatever survives the last
// condition is deleted one file at a time.
package retention

import (
	"context"

	"github.com/raoulx24/logkeeper/internal/fs"
	"github.com/raoulx24/logkeeper/internal/logging"
	"github.com/raoulx24/logkeeper/internal/script"
)

// Condition is one stage of a retention chain. Select returns the subset of
// candidates it accepts for deletion, in the order it wants them kept.
type Condition interface {
	Select(ctx context.Context, basePath string, candidates []fs.FileInfo) ([]fs.FileInfo, error)
}

// Configuration is what conditions may read from the loaded configuration.
type Configuration interface {
	Properties() map[string]string
	Substitute(s string) string
	Scripts() script.Gateway
	Diagnostics() logging.Sink
}

// ConditionFunc adapts a plain function to Condition.
type ConditionFunc func(ctx context.Context, basePath string, candidates []fs.FileInfo) ([]fs.FileInfo, error)

func (f ConditionFunc) Select(ctx context.Context, basePath string, candidates []fs.FileInfo) ([]fs.FileInfo, error) {
	return f(ctx, basePath, candidates)
}
