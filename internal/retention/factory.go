package retention

import (
	"regexp"
	"sort"

	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"

	"github.com/raoulx24/logkeeper/internal/config"
)

// Factory builds one condition type from its configuration.
type Factory func(spec config.ConditionConfig, cfg Configuration) (Condition, error)

// Registry maps condition type names to factories. It is populated
// explicitly; DefaultRegistry holds the built-in types.
type Registry struct {
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(config.ConditionFileName, newFileName)
	r.Register(config.ConditionLastModified, newLastModified)
	r.Register(config.ConditionAccumulatedFile, newAccumulatedFileCount)
	r.Register(config.ConditionAccumulatedSize, newAccumulatedFileSize)
	r.Register(config.ConditionScript, newScripted)
	return r
}

func (r *Registry) Register(typ string, f Factory) {
	r.factories[typ] = f
}

func (r *Registry) Types() []string {
	out := make([]string, 0, len(r.factories))
	for t := range r.factories {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Build returns the condition for spec. Every failure is marked
// ErrConfiguration.
func (r *Registry) Build(spec config.ConditionConfig, cfg Configuration) (Condition, error) {
	f, ok := r.factories[spec.Type]
	if !ok {
		return nil, configError(errors.Newf("unknown condition type %q", spec.Type))
	}
	c, err := f(spec, cfg)
	if err != nil {
		if !errors.Is(err, ErrConfiguration) {
			err = configError(err)
		}
		return nil, errors.Wrapf(err, "condition %q", spec.Type)
	}
	return c, nil
}

// BuildChain builds specs in order. A condition that fails to build is
// reported to cfg's diagnostics and left out; the others are kept.
func (r *Registry) BuildChain(specs []config.ConditionConfig, cfg Configuration) ([]Condition, []error) {
	var (
		chain []Condition
		errs  []error
	)
	for i, spec := range specs {
		c, err := r.Build(spec, cfg)
		if err != nil {
			cfg.Diagnostics().Error("retention condition dropped", "index", i, "type", spec.Type, "error", err)
			errs = append(errs, err)
			continue
		}
		chain = append(chain, c)
	}
	return chain, errs
}

func newFileName(spec config.ConditionConfig, cfg Configuration) (Condition, error) {
	c := &FileName{Glob: cfg.Substitute(spec.Glob)}
	if spec.Regex != "" {
		re, err := regexp.Compile(cfg.Substitute(spec.Regex))
		if err != nil {
			return nil, errors.Wrap(err, "compiling regex")
		}
		c.Regex = re
	}
	if c.Glob == "" && c.Regex == nil {
		return nil, errors.New("glob or regex is required")
	}
	return c, nil
}

func newLastModified(spec config.ConditionConfig, _ Configuration) (Condition, error) {
	if spec.Age <= 0 {
		return nil, errors.New("age must be positive")
	}
	return &LastModified{Age: spec.Age.Std()}, nil
}

func newAccumulatedFileCount(spec config.ConditionConfig, _ Configuration) (Condition, error) {
	if spec.Count < 0 {
		return nil, errors.Newf("count must not be negative, got %d", spec.Count)
	}
	return &AccumulatedFileCount{Keep: spec.Count}, nil
}

func newAccumulatedFileSize(spec config.ConditionConfig, cfg Configuration) (Condition, error) {
	n, err := humanize.ParseBytes(cfg.Substitute(spec.Size))
	if err != nil {
		return nil, errors.Wrapf(err, "parsing size %q", spec.Size)
	}
	return &AccumulatedFileSize{Threshold: n}, nil
}

func newScripted(spec config.ConditionConfig, cfg Configuration) (Condition, error) {
	s, err := spec.Script.Build()
	if err != nil {
		return nil, err
	}
	c, err := NewScripted(s, cfg)
	if err != nil {
		return nil, err
	}
	return c, nil
}
