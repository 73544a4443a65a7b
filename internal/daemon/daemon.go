// Package daemon assembles logkeeper from a loaded configuration: one
// logger namespace, retention chain, worker and watcher per target, a
// shared cron scheduler, the journal and the metrics endpoint.
package daemon

import (
	"context"
	"io"
	"os"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/raoulx24/logkeeper/internal/bridge"
	"github.com/raoulx24/logkeeper/internal/config"
	"github.com/raoulx24/logkeeper/internal/fs"
	"github.com/raoulx24/logkeeper/internal/journal"
	"github.com/raoulx24/logkeeper/internal/loggers"
	"github.com/raoulx24/logkeeper/internal/logging"
	"github.com/raoulx24/logkeeper/internal/mailbox"
	"github.com/raoulx24/logkeeper/internal/metrics"
	"github.com/raoulx24/logkeeper/internal/retention"
	"github.com/raoulx24/logkeeper/internal/schedule"
	"github.com/raoulx24/logkeeper/internal/script"
	"github.com/raoulx24/logkeeper/internal/watcher"
	"github.com/raoulx24/logkeeper/internal/worker"
)

var ErrUnknownTarget = errors.New("unknown target")

// Target is everything built for one configured target.
type Target struct {
	Config  config.TargetConfig
	Context *bridge.Context
	Log     logging.Sink
	Runtime *config.Runtime
	Engine  *retention.Engine
	// Dropped holds the conditions left out of the chain.
	Dropped []error

	mailbox *mailbox.Mailbox[worker.Job]
	worker  *worker.Worker
	watcher *watcher.Watcher
}

type Daemon struct {
	mu      sync.RWMutex
	cfg     *config.Config
	targets map[string]*Target
	order   []string

	root      *bridge.Context
	loggers   *bridge.Bridge[logging.Sink]
	log       logging.Sink
	metrics   *metrics.Collector
	journal   *journal.Journal
	scheduler *schedule.Scheduler
	funcs     *script.FuncEngine
	fs        fs.FS
	out       io.Writer
}

type Option func(*Daemon)

// WithOutput sends log output to w instead of stderr.
func WithOutput(w io.Writer) Option { return func(d *Daemon) { d.out = w } }

// WithFuncs makes Go-implemented scripts available to every target.
func WithFuncs(e *script.FuncEngine) Option { return func(d *Daemon) { d.funcs = e } }

// WithFS replaces the OS filesystem.
func WithFS(f fs.FS) Option { return func(d *Daemon) { d.fs = f } }

// New builds every target of cfg. Conditions that fail to build are
// dropped and reported; anything else that fails is returned.
func New(cfg *config.Config, opts ...Option) (*Daemon, error) {
	d := &Daemon{
		cfg:     cfg,
		targets: make(map[string]*Target),
		root:    bridge.NewContext("logkeeper"),
		out:     os.Stderr,
	}
	for _, o := range opts {
		o(d)
	}
	if d.fs == nil {
		d.fs = fs.New()
	}

	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	format, err := logging.ParseFormat(cfg.Logging.Format)
	if err != nil {
		return nil, err
	}

	d.metrics = metrics.New(cfg.Metrics.Namespace)

	factory, err := loggers.Default().Factory(cfg.Logging.Backend, loggers.Options{
		Level:   level,
		Format:  format,
		Output:  d.out,
		Current: func() *bridge.Context { return d.root },
	})
	if err != nil {
		return nil, err
	}
	d.loggers = bridge.New(factory, bridge.WithMetrics[logging.Sink](d.metrics))
	if d.log, err = d.loggers.Logger("daemon"); err != nil {
		return nil, err
	}
	d.scheduler = schedule.New(d.log)

	if cfg.Journal.Path != "" {
		if d.journal, err = journal.Open(cfg.Journal.Path); err != nil {
			return nil, err
		}
	}

	for _, tc := range cfg.Targets {
		t, err := d.buildTarget(cfg, tc, bridge.NewContext(tc.Name))
		if err != nil {
			_ = d.Close()
			return nil, errors.Wrapf(err, "target %q", tc.Name)
		}
		t.mailbox = worker.NewMailbox()
		t.worker = worker.New(tc, t.Engine, cfg.Lock.Dir, t.Log, t.mailbox)
		t.watcher = watcher.New(tc, t.Log, t.mailbox, d.fs)
		if err := d.scheduler.Add(tc.Name, tc.Schedule, t.mailbox); err != nil {
			_ = d.Close()
			return nil, err
		}
		d.targets[tc.Name] = t
		d.order = append(d.order, tc.Name)
	}
	return d, nil
}

// buildTarget creates the target's loggers in ctx, its runtime with a
// private script registry, and its retention engine.
func (d *Daemon) buildTarget(cfg *config.Config, tc config.TargetConfig, ctx *bridge.Context) (*Target, error) {
	log, err := d.loggers.LoggerIn("retention", ctx)
	if err != nil {
		return nil, err
	}
	diag, err := d.loggers.LoggerIn("script", ctx)
	if err != nil {
		return nil, err
	}

	reg := script.NewRegistry()
	reg.RegisterEngine(script.LanguageStarlark, &script.StarlarkEngine{MaxSteps: cfg.Engine.MaxSteps, Log: diag})
	if d.funcs != nil {
		reg.RegisterEngine(script.LanguageGo, d.funcs)
	}

	rt, err := config.NewRuntime(cfg, reg, diag)
	if err != nil {
		return nil, err
	}

	chain, dropped := retention.DefaultRegistry().BuildChain(tc.Conditions, rt)
	return &Target{
		Config:  tc,
		Context: ctx,
		Log:     log,
		Runtime: rt,
		Engine:  d.newEngine(tc, chain, log, tc.TestMode),
		Dropped: dropped,
	}, nil
}

func (d *Daemon) newEngine(tc config.TargetConfig, chain []retention.Condition, log logging.Sink, testMode bool) *retention.Engine {
	opts := []retention.Option{
		retention.WithFS(d.fs),
		retention.WithLogger(log),
		retention.WithMetrics(d.metrics),
		retention.WithMaxDepth(tc.MaxDepth),
		retention.WithTestMode(testMode),
	}
	if d.journal != nil {
		opts = append(opts, retention.WithJournal(d.journal))
	}
	return retention.New(tc.Name, chain, opts...)
}

// Targets returns the targets in configuration order.
func (d *Daemon) Targets() []*Target {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]*Target, 0, len(d.order))
	for _, name := range d.order {
		out = append(out, d.targets[name])
	}
	return out
}

func (d *Daemon) Target(name string) (*Target, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	t, ok := d.targets[name]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownTarget, "%q", name)
	}
	return t, nil
}

// NextRun returns when target's next scheduled pass is due. It is false
// for targets without a schedule.
func (d *Daemon) NextRun(target string) (time.Time, bool) {
	return d.scheduler.NextRun(target)
}

func (d *Daemon) Log() logging.Sink                     { return d.log }
func (d *Daemon) Metrics() *metrics.Collector           { return d.metrics }
func (d *Daemon) Journal() *journal.Journal             { return d.journal }
func (d *Daemon) Loggers() *bridge.Bridge[logging.Sink] { return d.loggers }

// Run starts every worker and watcher, the scheduler and the metrics
// endpoint, and blocks until ctx is done.
func (d *Daemon) Run(ctx context.Context) error {
	targets := d.Targets()
	g, ctx := errgroup.WithContext(ctx)

	d.mu.RLock()
	addr := d.cfg.Metrics.Listen
	d.mu.RUnlock()
	if addr != "" {
		g.Go(func() error {
			d.log.Info("serving metrics", "addr", addr)
			return d.metrics.Serve(ctx, addr)
		})
	}

	for _, t := range targets {
		g.Go(func() error { return t.worker.Start(ctx) })
		g.Go(func() error {
			// a target whose directory cannot be watched still runs on schedule
			if err := t.watcher.Start(ctx); err != nil {
				t.Log.Error("watcher stopped", "target", t.Config.Name, "error", err)
			}
			return nil
		})
	}

	d.scheduler.Start()
	defer d.scheduler.Stop()

	d.log.Info("logkeeper running", "targets", len(d.order))
	return g.Wait()
}

// Reload applies a new configuration to the running targets. Targets are
// matched by name; added or removed targets need a restart. Every target
// is rebuilt before any is swapped in, so a failed reload leaves the
// running configuration untouched. Each updated target gets a pass under
// its new chain.
func (d *Daemon) Reload(cfg *config.Config) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	seen := make(map[string]bool, len(cfg.Targets))
	var rebuilt []*Target
	for _, tc := range cfg.Targets {
		seen[tc.Name] = true
		cur, ok := d.targets[tc.Name]
		if !ok {
			d.log.Warn("new target ignored until restart", "target", tc.Name)
			continue
		}
		if tc.Schedule != "" {
			if _, err := cron.ParseStandard(tc.Schedule); err != nil {
				return errors.Wrapf(err, "invalid cron schedule %q for target %q", tc.Schedule, tc.Name)
			}
		}

		next, err := d.buildTarget(cfg, tc, cur.Context)
		if err != nil {
			return errors.Wrapf(err, "target %q", tc.Name)
		}
		next.mailbox, next.worker, next.watcher = cur.mailbox, cur.worker, cur.watcher
		rebuilt = append(rebuilt, next)
	}

	for _, next := range rebuilt {
		tc := next.Config
		next.worker.UpdateConfig(tc, next.Engine)
		next.watcher.UpdateConfig(tc)
		if err := d.scheduler.Add(tc.Name, tc.Schedule, next.mailbox); err != nil {
			d.log.Error("schedule not updated", "target", tc.Name, "error", err)
		}
		d.targets[tc.Name] = next

		for _, err := range next.Dropped {
			d.log.Warn("condition dropped on reload", "target", tc.Name, "error", err)
		}
		next.mailbox.Put(worker.Job{Reason: worker.ReasonReload, At: time.Now()})
	}
	for name := range d.targets {
		if !seen[name] {
			d.log.Warn("removed target keeps running until restart", "target", name)
		}
	}

	d.cfg = cfg
	d.log.Info("config reloaded", "targets", len(rebuilt))
	return nil
}

// Prune runs one pass over target now. With dryRun the pass selects files
// without deleting them and skips the target lock.
func (d *Daemon) Prune(ctx context.Context, target string, dryRun bool) (retention.Result, error) {
	t, err := d.Target(target)
	if err != nil {
		return retention.Result{}, err
	}
	if dryRun {
		chain, _ := retention.DefaultRegistry().BuildChain(t.Config.Conditions, t.Runtime)
		return d.newEngine(t.Config, chain, t.Log, true).Run(ctx, t.Config.BasePath)
	}
	return t.worker.Handle(ctx, worker.Job{Reason: worker.ReasonManual})
}

// Close releases the journal.
func (d *Daemon) Close() error {
	return d.journal.Close()
}
