package fs

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
)

// retry runs fn with exponential backoff while it keeps failing with a
// transient error. Permanent errors return immediately.
func retry(ctx context.Context, opName string, fn func() error) error {
	const maxRetries = 5
	base := 50 * time.Millisecond

	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !isTransient(err) {
			return errors.Wrapf(err, "%s failed permanently", opName)
		}
		if attempt == maxRetries {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(base * (1 << (attempt - 1))):
		}
	}

	return errors.Wrapf(lastErr, "%s failed after %d retries", opName, maxRetries)
}
