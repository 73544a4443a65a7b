package worker

import (
	"context"

	"github.com/raoulx24/logkeeper/internal/retention"
)

// Pruner runs one retention pass over a base path. *retention.Engine
// implements it.
type Pruner interface {
	Run(ctx context.Context, basePath string) (retention.Result, error)
}
