package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/robfig/cron/v3"
)

// Condition types understood by the retention engine.
const (
	ConditionFileName        = "fileName"
	ConditionLastModified    = "lastModified"
	ConditionAccumulatedFile = "accumulatedFileCount"
	ConditionAccumulatedSize = "accumulatedFileSize"
	ConditionScript          = "script"
)

// Watch modes.
const (
	WatchAuto     = "auto"
	WatchPoll     = "poll"
	WatchFsnotify = "fsnotify"
	WatchOff      = "off"
)

const (
	DefaultPollInterval   = 30 * time.Second
	DefaultDebounceWindow = 2 * time.Second
	DefaultMetricsPrefix  = "logkeeper"
)

// ApplyDefaults fills in everything left empty by the file.
func ApplyDefaults(c *Config) {
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Logging.Backend == "" {
		c.Logging.Backend = "slog"
	}
	if c.Properties == nil {
		c.Properties = map[string]string{}
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = DefaultMetricsPrefix
	}
	if c.Lock.Dir == "" {
		c.Lock.Dir = filepath.Join(os.TempDir(), "logkeeper")
	}

	for i := range c.Targets {
		t := &c.Targets[i]
		if t.Name == "" {
			t.Name = filepath.Base(filepath.Clean(t.BasePath))
		}
		if t.MaxDepth <= 0 {
			t.MaxDepth = 1
		}
		if t.Watch.Mode == "" {
			t.Watch.Mode = WatchAuto
		}
		if t.Watch.PollInterval <= 0 {
			t.Watch.PollInterval = Duration(DefaultPollInterval)
		}
		if t.Watch.DebounceWindow <= 0 {
			t.Watch.DebounceWindow = Duration(DefaultDebounceWindow)
		}
	}
}

// Validate rejects configurations the daemon could not run. Condition
// parameters are checked again, per condition, when chains are built.
func Validate(c *Config) error {
	var errs []error

	seen := map[string]bool{}
	for i, sc := range c.Scripts {
		if sc.Name == "" {
			errs = append(errs, errors.Newf("scripts[%d]: name is required", i))
			continue
		}
		if seen[sc.Name] {
			errs = append(errs, errors.Newf("scripts[%d]: duplicate name %q", i, sc.Name))
		}
		seen[sc.Name] = true
		if sc.Ref != "" {
			errs = append(errs, errors.Newf("script %q: top-level scripts cannot be references", sc.Name))
		}
	}

	targets := map[string]bool{}
	for i, t := range c.Targets {
		where := "targets[" + t.Name + "]"
		if t.BasePath == "" {
			errs = append(errs, errors.Newf("targets[%d]: basePath is required", i))
		}
		if targets[t.Name] {
			errs = append(errs, errors.Newf("%s: duplicate target name", where))
		}
		targets[t.Name] = true

		switch t.Watch.Mode {
		case WatchAuto, WatchPoll, WatchFsnotify, WatchOff:
		default:
			errs = append(errs, errors.Newf("%s: unknown watch mode %q", where, t.Watch.Mode))
		}
		if s := strings.TrimSpace(t.Schedule); s != "" {
			if _, err := cron.ParseStandard(s); err != nil {
				errs = append(errs, errors.Wrapf(err, "%s: invalid schedule %q", where, s))
			}
		}
		for j, cc := range t.Conditions {
			if cc.Type == "" {
				errs = append(errs, errors.Newf("%s.conditions[%d]: type is required", where, j))
			}
		}
	}

	return errors.Join(errs...)
}
