package retention

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/raoulx24/logkeeper/internal/fs"
	"github.com/raoulx24/logkeeper/internal/logging"
)

// Result describes one retention pass.
type Result struct {
	ID       string
	Target   string
	BasePath string
	Started  time.Time
	Duration time.Duration
	TestMode bool

	Scanned  int
	Selected []fs.FileInfo
	Deleted  []fs.FileInfo
	Failed   []DeletionFailure
}

// Metrics observes finished passes. err is the error Prune returned.
type Metrics interface {
	PassFinished(r Result, err error)
}

// Recorder persists finished passes.
type Recorder interface {
	RecordPass(ctx context.Context, r Result, passErr error) error
}

type Engine struct {
	target     string
	conditions []Condition
	fs         fs.FS
	log        logging.Sink
	metrics    Metrics
	journal    Recorder
	testMode   bool
	maxDepth   int
	now        func() time.Time
}

type Option func(*Engine)

func WithFS(f fs.FS) Option            { return func(e *Engine) { e.fs = f } }
func WithLogger(l logging.Sink) Option { return func(e *Engine) { e.log = l } }
func WithMetrics(m Metrics) Option     { return func(e *Engine) { e.metrics = m } }
func WithJournal(r Recorder) Option    { return func(e *Engine) { e.journal = r } }
func WithMaxDepth(d int) Option        { return func(e *Engine) { e.maxDepth = d } }

// WithTestMode makes passes log the files they would delete instead of
// deleting them.
func WithTestMode(on bool) Option { return func(e *Engine) { e.testMode = on } }

// New returns an engine for one target running conditions in order.
func New(target string, conditions []Condition, opts ...Option) *Engine {
	e := &Engine{
		target:     target,
		conditions: conditions,
		maxDepth:   1,
		now:        time.Now,
	}
	for _, o := range opts {
		o(e)
	}
	if e.fs == nil {
		e.fs = fs.New()
	}
	if e.log == nil {
		e.log = logging.NewDiscard()
	}
	return e
}

func (e *Engine) Target() string { return e.target }

func (e *Engine) Conditions() int { return len(e.conditions) }

// Run scans basePath and prunes what it finds. Candidates are handed to the
// chain newest first.
func (e *Engine) Run(ctx context.Context, basePath string) (Result, error) {
	files, err := e.fs.Scan(ctx, basePath, e.maxDepth)
	if err != nil {
		res := e.newResult(basePath, 0)
		e.finish(ctx, &res, err)
		return res, err
	}
	sort.SliceStable(files, func(i, j int) bool {
		return files[i].MTime.After(files[j].MTime)
	})
	return e.Prune(ctx, basePath, files)
}

// Prune runs candidates through the chain and deletes the survivors.
//
// A condition error aborts the pass before anything is deleted. Deletion is
// best effort: a file that cannot be removed is recorded in Result.Failed
// and the remaining files are still attempted. A file whose inode changed
// since the scan was replaced by a newer one under the same name and is
// kept.
func (e *Engine) Prune(ctx context.Context, basePath string, candidates []fs.FileInfo) (Result, error) {
	res := e.newResult(basePath, len(candidates))

	if len(e.conditions) == 0 {
		e.log.Debug("no retention conditions, nothing to select", "target", e.target)
		e.finish(ctx, &res, nil)
		return res, nil
	}

	selected := candidates
	for i, c := range e.conditions {
		out, err := c.Select(ctx, basePath, selected)
		if err != nil {
			if !errors.Is(err, ErrScriptExecution) {
				err = classify(err, ErrScriptExecution)
			}
			err = errors.Wrapf(err, "condition %d (%s)", i, describe(c))
			e.log.Error("retention pass aborted", "target", e.target, "pass", res.ID, "error", err)
			e.finish(ctx, &res, err)
			return res, err
		}
		selected = out
	}
	res.Selected = selected

	for _, f := range selected {
		if err := ctx.Err(); err != nil {
			e.finish(ctx, &res, err)
			return res, err
		}
		if e.testMode {
			e.log.Info("would delete", "target", e.target, "path", f.Path, "size", f.Size)
			continue
		}
		if e.replaced(f) {
			e.log.Warn("file replaced since scan, keeping it", "target", e.target, "path", f.Path)
			continue
		}
		if err := e.fs.Remove(ctx, f.Path); err != nil {
			e.log.Warn("could not delete file", "target", e.target, "path", f.Path, "error", err)
			res.Failed = append(res.Failed, DeletionFailure{Path: f.Path, Err: err})
			continue
		}
		e.log.Debug("deleted", "target", e.target, "path", f.Path)
		res.Deleted = append(res.Deleted, f)
	}

	e.log.Info("retention pass finished",
		"target", e.target,
		"pass", res.ID,
		"scanned", res.Scanned,
		"selected", len(res.Selected),
		"deleted", len(res.Deleted),
		"failed", len(res.Failed),
	)
	e.finish(ctx, &res, nil)
	return res, nil
}

func (e *Engine) replaced(f fs.FileInfo) bool {
	if f.Inode == 0 {
		return false
	}
	cur, err := e.fs.Stat(f.Path)
	return err == nil && cur.Inode != 0 && cur.Inode != f.Inode
}

func (e *Engine) newResult(basePath string, scanned int) Result {
	return Result{
		ID:       uuid.NewString(),
		Target:   e.target,
		BasePath: basePath,
		Started:  e.now(),
		TestMode: e.testMode,
		Scanned:  scanned,
	}
}

func (e *Engine) finish(ctx context.Context, res *Result, err error) {
	res.Duration = e.now().Sub(res.Started)
	if e.metrics != nil {
		e.metrics.PassFinished(*res, err)
	}
	if e.journal != nil {
		// the pass context may already be done; the record is still wanted
		if jerr := e.journal.RecordPass(context.WithoutCancel(ctx), *res, err); jerr != nil {
			e.log.Warn("could not journal retention pass", "target", e.target, "pass", res.ID, "error", jerr)
		}
	}
}

func describe(c Condition) string {
	if s, ok := c.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%T", c)
}
