package bridge

import (
	"github.com/cockroachdb/errors"
)

var (
	ErrNilContext = errors.New("logger context is nil")
	ErrInvariant  = errors.New("bridge invariant violated")
)

// LoggerCreationError reports that the factory could not produce a logger.
type LoggerCreationError struct {
	Name    string
	Context string
	Err     error
}

func (e *LoggerCreationError) Error() string {
	if e.Err == nil {
		return "creating logger " + e.Name + " in " + e.Context + ": factory returned no logger"
	}
	return "creating logger " + e.Name + " in " + e.Context + ": " + e.Err.Error()
}

func (e *LoggerCreationError) Unwrap() error { return e.Err }
