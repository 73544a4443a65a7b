// Package fsprobe checks whether fsnotify delivers events for a directory.
// Network and overlay filesystems often accept a watch and then stay
// silent, so the probe creates and renames a real file and waits for it.
package fsprobe

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
)

// DefaultTimeout is how long Probe waits for the first event.
const DefaultTimeout = 200 * time.Millisecond

// Result reports whether fsnotify is usable and why not.
type Result struct {
	FsnotifySupported bool
	Reason            string
}

func unsupported(format string, args ...any) Result {
	return Result{Reason: fmt.Sprintf(format, args...)}
}

// Probe tests dir with DefaultTimeout.
func Probe(dir string) Result {
	return ProbeTimeout(dir, DefaultTimeout)
}

// ProbeTimeout tests whether fsnotify reports a create or rename of a probe
// file in dir within timeout. The probe file is removed afterwards.
func ProbeTimeout(dir string, timeout time.Duration) Result {
	st, err := os.Stat(dir)
	if err != nil {
		return unsupported("stat failed: %v", err)
	}
	if !st.IsDir() {
		return unsupported("not a directory")
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return unsupported("fsnotify unavailable: %v", err)
	}
	defer w.Close()

	if err := w.Add(dir); err != nil {
		return unsupported("cannot watch directory: %v", err)
	}

	// unique names, so probes of the same directory do not see each other
	id := uuid.NewString()
	tmp := filepath.Join(dir, ".logkeeper-probe-"+id+".tmp")
	final := filepath.Join(dir, ".logkeeper-probe-"+id)

	f, err := os.Create(tmp)
	if err != nil {
		return unsupported("cannot create probe file: %v", err)
	}
	f.Close()

	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return unsupported("rename failed: %v", err)
	}
	defer os.Remove(final)

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	for {
		select {
		case ev := <-w.Events:
			if ev.Name != tmp && ev.Name != final {
				continue
			}
			if ev.Op.Has(fsnotify.Create) || ev.Op.Has(fsnotify.Rename) {
				return Result{FsnotifySupported: true}
			}
		case err := <-w.Errors:
			return unsupported("fsnotify error: %v", err)
		case <-deadline.C:
			return unsupported("no events received within %s", timeout)
		}
	}
}
