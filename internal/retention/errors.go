package retention

import (
	"github.com/cockroachdb/errors"
)

var (
	// ErrConfiguration marks a condition that could not be built. The
	// condition is left out of its chain; the rest of the chain still runs.
	ErrConfiguration = errors.New("retention condition misconfigured")

	// ErrScriptExecution marks a condition failure during a pass. The pass
	// is aborted before any file is deleted.
	ErrScriptExecution = errors.New("retention condition failed")

	// ErrScriptResult is returned when a script answers with something other
	// than a list of candidate files.
	ErrScriptResult = classify(errors.New("script returned a result of the wrong shape"), ErrScriptExecution)
)

// DeletionFailure records one file the pass could not delete.
type DeletionFailure struct {
	Path string
	Err  error
}

func (f DeletionFailure) Error() string {
	return "deleting " + f.Path + ": " + f.Err.Error()
}

func (f DeletionFailure) Unwrap() error { return f.Err }

// classified attaches an error class to a cause. Both stay reachable
// through Unwrap, so errors.Is from either the standard library or
// cockroachdb/errors finds the class and the cause.
type classified struct {
	cause error
	class error
}

func (e *classified) Error() string   { return e.cause.Error() }
func (e *classified) Unwrap() []error { return []error{e.cause, e.class} }

func classify(err, class error) error {
	if err == nil {
		return nil
	}
	return &classified{cause: err, class: class}
}

func configError(err error) error {
	return classify(err, ErrConfiguration)
}
