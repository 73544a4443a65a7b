package fs

import (
	"syscall"

	"github.com/cockroachdb/errors"
)

// isTransient reports whether a filesystem error is worth retrying.
func isTransient(err error) bool {
	return errors.Is(err, syscall.EAGAIN) ||
		errors.Is(err, syscall.EBUSY) ||
		errors.Is(err, syscall.ETIMEDOUT) ||
		errors.Is(err, syscall.EINTR)
}
