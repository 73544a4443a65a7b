package config

import (
	"github.com/cockroachdb/errors"

	"github.com/raoulx24/logkeeper/internal/logging"
	"github.com/raoulx24/logkeeper/internal/script"
)

// Build turns the declaration into a script. A declaration with nothing
// set yields nil, which callers reject.
func (sc *ScriptConfig) Build() (script.Script, error) {
	if sc == nil {
		return nil, nil
	}
	switch {
	case sc.Ref != "":
		return script.NewRef(sc.Ref), nil
	case sc.Path != "":
		return script.NewFile(sc.Name, sc.Language, sc.Path)
	case sc.Source != "":
		return script.NewInline(sc.Name, sc.Language, sc.Source), nil
	}
	return nil, nil
}

// Runtime is the live view of a loaded configuration: its properties, the
// substitutor over them, the script registry and the diagnostics sink.
type Runtime struct {
	cfg     *Config
	subst   *Substitutor
	scripts *script.Registry
	diag    logging.Sink
}

// NewRuntime registers every top-level script of cfg in reg.
func NewRuntime(cfg *Config, reg *script.Registry, diag logging.Sink) (*Runtime, error) {
	if diag == nil {
		diag = logging.NewDiscard()
	}
	rt := &Runtime{
		cfg:     cfg,
		subst:   NewSubstitutor(cfg.Properties),
		scripts: reg,
		diag:    diag,
	}

	for i := range cfg.Scripts {
		sc := &cfg.Scripts[i]
		s, err := sc.Build()
		if err != nil {
			return nil, errors.Wrapf(err, "script %q", sc.Name)
		}
		if s == nil {
			return nil, errors.Newf("script %q: one of source or path is required", sc.Name)
		}
		if err := reg.Register(s); err != nil {
			return nil, errors.Wrapf(err, "registering script %q", sc.Name)
		}
	}
	return rt, nil
}

func (r *Runtime) Properties() map[string]string { return r.cfg.Properties }

func (r *Runtime) Substitute(s string) string { return r.subst.Replace(s) }

func (r *Runtime) Scripts() script.Gateway { return r.scripts }

func (r *Runtime) Diagnostics() logging.Sink { return r.diag }
