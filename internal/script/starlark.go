package script

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/cockroachdb/errors"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
	"go.starlark.net/syntax"

	"github.com/raoulx24/logkeeper/internal/fs"
	"github.com/raoulx24/logkeeper/internal/logging"
)

// ResultGlobal is the global a Starlark script assigns its answer to.
const ResultGlobal = "result"

// DefaultMaxSteps bounds a single script run.
const DefaultMaxSteps = 10_000_000

// PropertySource is implemented by configuration handles exposed to scripts.
type PropertySource interface {
	Properties() map[string]string
}

// StarlarkEngine runs scripts written in Starlark.
//
// Candidate files are exposed as structs with the fields path, name, size,
// lastModifiedTime (Unix milliseconds) and isDirectory. A returned list of
// such structs (or dicts with the same keys) converts back to []fs.FileInfo.
type StarlarkEngine struct {
	// MaxSteps caps the number of Starlark computation steps; 0 means
	// DefaultMaxSteps.
	MaxSteps uint64
	// Log receives print() output.
	Log logging.Sink
}

var fileOptions = &syntax.FileOptions{
	Set:             true,
	While:           true,
	TopLevelControl: true,
	GlobalReassign:  true,
}

func (e *StarlarkEngine) Execute(ctx context.Context, s Script, b Bindings) (any, error) {
	predeclared := make(starlark.StringDict, len(b))
	for k, v := range b {
		sv, err := toStarlark(v)
		if err != nil {
			return nil, errors.Wrapf(err, "binding %q", k)
		}
		predeclared[k] = sv
	}

	thread := &starlark.Thread{
		Name: s.Name(),
		Print: func(_ *starlark.Thread, msg string) {
			if e.Log != nil {
				e.Log.Info(msg, "script", s.Name())
			}
		},
	}
	steps := e.MaxSteps
	if steps == 0 {
		steps = DefaultMaxSteps
	}
	thread.SetMaxExecutionSteps(steps)

	stop := context.AfterFunc(ctx, func() { thread.Cancel(context.Cause(ctx).Error()) })
	defer stop()

	globals, err := starlark.ExecFileOptions(fileOptions, thread, s.Name()+".star", s.Source(), predeclared)
	if err != nil {
		var evalErr *starlark.EvalError
		if errors.As(err, &evalErr) {
			return nil, errors.Wrapf(err, "script %q failed:\n%s", s.Name(), evalErr.Backtrace())
		}
		return nil, errors.Wrapf(err, "script %q failed", s.Name())
	}

	v, ok := globals[ResultGlobal]
	if !ok {
		return nil, errors.Wrapf(ErrNoResult, "script %q", s.Name())
	}
	return fromStarlark(v)
}

func toStarlark(v any) (starlark.Value, error) {
	switch x := v.(type) {
	case nil:
		return starlark.None, nil
	case starlark.Value:
		return x, nil
	case string:
		return starlark.String(x), nil
	case bool:
		return starlark.Bool(x), nil
	case int:
		return starlark.MakeInt(x), nil
	case int64:
		return starlark.MakeInt64(x), nil
	case float64:
		return starlark.Float(x), nil
	case fs.FileInfo:
		return fileStruct(x), nil
	case []fs.FileInfo:
		elems := make([]starlark.Value, len(x))
		for i, f := range x {
			elems[i] = fileStruct(f)
		}
		return starlark.NewList(elems), nil
	case map[string]string:
		return stringDict(x), nil
	case func(string) string:
		return starlark.NewBuiltin("substitutor", func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var in string
			if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &in); err != nil {
				return nil, err
			}
			return starlark.String(x(in)), nil
		}), nil
	case logging.Sink:
		return starlarkstruct.FromStringDict(starlarkstruct.Default, starlark.StringDict{
			"debug": sinkMethod("debug", x.Debug),
			"info":  sinkMethod("info", x.Info),
			"warn":  sinkMethod("warn", x.Warn),
			"error": sinkMethod("error", x.Error),
		}), nil
	case PropertySource:
		return starlarkstruct.FromStringDict(starlarkstruct.Default, starlark.StringDict{
			"properties": stringDict(x.Properties()),
		}), nil
	case fmt.Stringer:
		return starlark.String(x.String()), nil
	default:
		return nil, errors.Newf("unsupported binding type %T", v)
	}
}

func fileStruct(f fs.FileInfo) *starlarkstruct.Struct {
	return starlarkstruct.FromStringDict(starlarkstruct.Default, starlark.StringDict{
		"path":             starlark.String(f.Path),
		"name":             starlark.String(filepath.Base(f.Path)),
		"size":             starlark.MakeInt64(f.Size),
		"lastModifiedTime": starlark.MakeInt64(f.MTime.UnixMilli()),
		"isDirectory":      starlark.Bool(f.IsDir),
	})
}

func stringDict(m map[string]string) *starlark.Dict {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	d := starlark.NewDict(len(m))
	for _, k := range keys {
		_ = d.SetKey(starlark.String(k), starlark.String(m[k]))
	}
	d.Freeze()
	return d
}

func sinkMethod(name string, emit func(string, ...any)) *starlark.Builtin {
	return starlark.NewBuiltin(name, func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var msg string
		if err := starlark.UnpackPositionalArgs(b.Name(), args, nil, 1, &msg); err != nil {
			return nil, err
		}
		kv := make([]any, 0, 2*len(kwargs))
		for _, pair := range kwargs {
			k, _ := starlark.AsString(pair[0])
			kv = append(kv, k, plain(pair[1]))
		}
		emit(msg, kv...)
		return starlark.None, nil
	})
}

func plain(v starlark.Value) any {
	if s, ok := starlark.AsString(v); ok {
		return s
	}
	return v.String()
}

// fromStarlark converts a script result to Go. Lists whose elements are all
// file records become []fs.FileInfo; other values keep their natural Go
// shape so callers can reject them.
func fromStarlark(v starlark.Value) (any, error) {
	switch x := v.(type) {
	case starlark.NoneType:
		return nil, nil
	case starlark.String:
		return string(x), nil
	case starlark.Bool:
		return bool(x), nil
	case starlark.Int:
		n, ok := x.Int64()
		if !ok {
			return x.String(), nil
		}
		return n, nil
	case starlark.Indexable:
		return fromSequence(x)
	default:
		return v.String(), nil
	}
}

func fromSequence(seq starlark.Indexable) (any, error) {
	files := make([]fs.FileInfo, 0, seq.Len())
	for i := 0; i < seq.Len(); i++ {
		f, ok, err := toFileInfo(seq.Index(i))
		if err != nil {
			return nil, errors.Wrapf(err, "element %d", i)
		}
		if !ok {
			// not a list of records: hand back the raw elements
			raw := make([]any, seq.Len())
			for j := 0; j < seq.Len(); j++ {
				raw[j] = plain(seq.Index(j))
			}
			return raw, nil
		}
		files = append(files, f)
	}
	return files, nil
}

type attrGetter func(name string) (starlark.Value, bool)

func toFileInfo(v starlark.Value) (fs.FileInfo, bool, error) {
	var get attrGetter
	switch x := v.(type) {
	case *starlarkstruct.Struct:
		get = func(name string) (starlark.Value, bool) {
			av, err := x.Attr(name)
			return av, err == nil && av != nil
		}
	case *starlark.Dict:
		get = func(name string) (starlark.Value, bool) {
			dv, found, err := x.Get(starlark.String(name))
			return dv, err == nil && found
		}
	default:
		return fs.FileInfo{}, false, nil
	}

	pv, ok := get("path")
	if !ok {
		return fs.FileInfo{}, false, nil
	}
	path, ok := starlark.AsString(pv)
	if !ok {
		return fs.FileInfo{}, false, errors.Newf("path must be a string, got %s", pv.Type())
	}

	f := fs.FileInfo{Path: path}
	if sv, ok := get("size"); ok {
		if n, ok := asInt64(sv); ok {
			f.Size = n
		}
	}
	if mv, ok := get("lastModifiedTime"); ok {
		if n, ok := asInt64(mv); ok {
			f.MTime = time.UnixMilli(n)
		}
	}
	if dv, ok := get("isDirectory"); ok {
		f.IsDir = bool(dv.Truth())
	}
	return f, true, nil
}

func asInt64(v starlark.Value) (int64, bool) {
	i, ok := v.(starlark.Int)
	if !ok {
		return 0, false
	}
	return i.Int64()
}
