package retention

import (
	"context"
	"slices"

	"github.com/cockroachdb/errors"

	"github.com/raoulx24/logkeeper/internal/fs"
	"github.com/raoulx24/logkeeper/internal/script"
)

var reservedBindings = []string{
	script.BindBasePath,
	script.BindPathList,
	script.BindConfiguration,
	script.BindSubstitutor,
	script.BindDiagnostics,
}

// Scripted hands the selection to a user script. It is immutable once
// built and safe for concurrent use.
type Scripted struct {
	name string
	cfg  Configuration
}

// NewScripted builds a scripted condition. A nil script, or a reference to
// a script cfg does not know, is rejected with ErrConfiguration and
// reported to cfg's diagnostics. Any other script is registered in cfg.
func NewScripted(s script.Script, cfg Configuration) (*Scripted, error) {
	diag := cfg.Diagnostics()

	if s == nil {
		err := configError(errors.New("a script, script file or script reference is required for a script condition"))
		diag.Error("script condition not built", "error", err)
		return nil, err
	}

	gw := cfg.Scripts()
	if script.IsRef(s) {
		if _, ok := gw.Lookup(s.Name()); !ok {
			err := configError(errors.Newf("no script named %q has been declared", s.Name()))
			diag.Error("script condition not built", "script", s.Name(), "error", err)
			return nil, err
		}
	} else if err := gw.Register(s); err != nil {
		err = configError(errors.Wrapf(err, "registering script %q", s.Name()))
		diag.Error("script condition not built", "script", s.Name(), "error", err)
		return nil, err
	}

	return &Scripted{name: s.Name(), cfg: cfg}, nil
}

func (c *Scripted) ScriptName() string { return c.name }

func (c *Scripted) String() string { return "script(" + c.name + ")" }

// Select runs the script and returns the files it picked, in the order it
// returned them.
func (c *Scripted) Select(ctx context.Context, basePath string, candidates []fs.FileInfo) ([]fs.FileInfo, error) {
	diag := c.cfg.Diagnostics()

	b := make(script.Bindings)
	for k, v := range c.cfg.Properties() {
		b[k] = v
	}
	for _, name := range reservedBindings {
		if _, ok := b[name]; ok {
			diag.Warn("property hidden by script binding", "script", c.name, "property", name)
		}
	}
	b[script.BindBasePath] = basePath
	b[script.BindPathList] = slices.Clone(candidates)
	b[script.BindConfiguration] = c.cfg
	b[script.BindSubstitutor] = c.cfg.Substitute
	b[script.BindDiagnostics] = diag

	v, err := c.cfg.Scripts().Execute(ctx, c.name, b)
	if err != nil {
		return nil, classify(errors.Wrapf(err, "script %q", c.name), ErrScriptExecution)
	}

	files, ok := v.([]fs.FileInfo)
	if !ok {
		return nil, errors.Wrapf(ErrScriptResult, "script %q returned %T, want a list of files", c.name, v)
	}
	return reconcile(c.name, files, candidates)
}

// reconcile maps returned records back to the scanned candidates by path.
// Duplicates are dropped; a path that was never a candidate is an error.
func reconcile(name string, picked, candidates []fs.FileInfo) ([]fs.FileInfo, error) {
	byPath := make(map[string]fs.FileInfo, len(candidates))
	for _, f := range candidates {
		byPath[f.Path] = f
	}

	out := make([]fs.FileInfo, 0, len(picked))
	seen := make(map[string]bool, len(picked))
	for _, p := range picked {
		f, ok := byPath[p.Path]
		if !ok {
			return nil, errors.Wrapf(ErrScriptResult, "script %q selected %q, which is not a candidate", name, p.Path)
		}
		if seen[p.Path] {
			continue
		}
		seen[p.Path] = true
		out = append(out, f)
	}
	return out, nil
}
