package worker

import (
	"slices"
	"time"

	"github.com/raoulx24/logkeeper/internal/mailbox"
)

// Reasons a retention pass was requested.
const (
	ReasonRollover = "rollover"
	ReasonSchedule = "schedule"
	ReasonManual   = "manual"
	ReasonReload   = "reload"
)

// Job asks the worker for one retention pass over its target.
type Job struct {
	Reason string
	At     time.Time
	// Paths are the new archives that triggered a rollover job.
	Paths []string
}

// MergeJobs folds a newer job into a pending one. The newer reason wins and
// the rollover paths of both are kept.
func MergeJobs(prev, next Job) Job {
	paths := slices.Concat(prev.Paths, next.Paths)
	slices.Sort(paths)
	next.Paths = slices.Compact(paths)
	return next
}

// NewMailbox returns a mailbox that merges pending jobs with MergeJobs.
func NewMailbox() *mailbox.Mailbox[Job] {
	return mailbox.New(mailbox.WithMerge(MergeJobs))
}
