package retention

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/raoulx24/logkeeper/internal/config"
	"github.com/raoulx24/logkeeper/internal/fs"
	"github.com/raoulx24/logkeeper/internal/logging"
	"github.com/raoulx24/logkeeper/internal/script"
)

type recordingSink struct {
	mu    sync.Mutex
	lines []string
}

func (r *recordingSink) add(level, msg string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, fmt.Sprintf("%s %s %v", level, msg, args))
}

func (r *recordingSink) Debug(msg string, args ...any) { r.add("DEBUG", msg, args...) }
func (r *recordingSink) Info(msg string, args ...any)  { r.add("INFO", msg, args...) }
func (r *recordingSink) Warn(msg string, args ...any)  { r.add("WARN", msg, args...) }
func (r *recordingSink) Error(msg string, args ...any) { r.add("ERROR", msg, args...) }

func (r *recordingSink) count(level string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, l := range r.lines {
		if strings.HasPrefix(l, level+" ") {
			n++
		}
	}
	return n
}

type testConfig struct {
	props map[string]string
	gw    script.Gateway
	diag  *recordingSink
}

func newTestConfig(gw script.Gateway) *testConfig {
	return &testConfig{props: map[string]string{}, gw: gw, diag: &recordingSink{}}
}

func (c *testConfig) Properties() map[string]string { return c.props }
func (c *testConfig) Substitute(s string) string {
	for k, v := range c.props {
		s = strings.ReplaceAll(s, "${"+k+"}", v)
	}
	return s
}
func (c *testConfig) Scripts() script.Gateway   { return c.gw }
func (c *testConfig) Diagnostics() logging.Sink { return c.diag }

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) Register(s script.Script) error {
	return m.Called(s).Error(0)
}

func (m *mockGateway) Lookup(name string) (script.Script, bool) {
	args := m.Called(name)
	s, _ := args.Get(0).(script.Script)
	return s, args.Bool(1)
}

func (m *mockGateway) Execute(ctx context.Context, name string, b script.Bindings) (any, error) {
	args := m.Called(ctx, name, b)
	return args.Get(0), args.Error(1)
}

// memFS is an in-memory fs.FS whose Remove can be made to fail per path.
type memFS struct {
	mu      sync.Mutex
	files   map[string]fs.FileInfo
	fail    map[string]error
	removed []string
}

func newMemFS(files []fs.FileInfo) *memFS {
	m := &memFS{files: map[string]fs.FileInfo{}, fail: map[string]error{}}
	for _, f := range files {
		m.files[f.Path] = f
	}
	return m
}

func (m *memFS) Stat(path string) (fs.FileInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[path]
	if !ok {
		return fs.FileInfo{}, os.ErrNotExist
	}
	return f, nil
}

func (m *memFS) Scan(_ context.Context, root string, _ int) ([]fs.FileInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []fs.FileInfo
	for p, f := range m.files {
		if strings.HasPrefix(p, root) {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func (m *memFS) Remove(_ context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail[path]; err != nil {
		return err
	}
	delete(m.files, path)
	m.removed = append(m.removed, path)
	return nil
}

var baseTime = time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)

// candidates returns n archives, newest first.
func candidates(n int) []fs.FileInfo {
	out := make([]fs.FileInfo, n)
	for i := range out {
		out[i] = fs.FileInfo{
			Path:  fmt.Sprintf("/logs/app-%02d.log.gz", i),
			Size:  100,
			MTime: baseTime.Add(-time.Duration(i) * time.Hour),
		}
	}
	return out
}

func paths(files []fs.FileInfo) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.Path
	}
	return out
}

func starlarkConfig(t *testing.T, scripts map[string]string) *testConfig {
	t.Helper()
	reg := script.NewRegistry()
	reg.RegisterEngine(script.LanguageStarlark, &script.StarlarkEngine{})
	for name, src := range scripts {
		require.NoError(t, reg.Register(script.NewInline(name, "", src)))
	}
	return newTestConfig(reg)
}

func TestNewScripted_NilScript(t *testing.T) {
	gw := &mockGateway{}
	cfg := newTestConfig(gw)

	c, err := NewScripted(nil, cfg)
	assert.Nil(t, c)
	assert.ErrorIs(t, err, ErrConfiguration)
	assert.Equal(t, 1, cfg.diag.count("ERROR"))
	gw.AssertNotCalled(t, "Register", mock.Anything)
}

func TestNewScripted_UnregisteredRef(t *testing.T) {
	gw := &mockGateway{}
	gw.On("Lookup", "missing").Return(nil, false)
	cfg := newTestConfig(gw)

	c, err := NewScripted(script.NewRef("missing"), cfg)
	assert.Nil(t, c)
	assert.ErrorIs(t, err, ErrConfiguration)
	assert.Contains(t, err.Error(), "missing")
	assert.Equal(t, 1, cfg.diag.count("ERROR"))
	gw.AssertNotCalled(t, "Register", mock.Anything)
}

func TestNewScripted_RegisteredRefIsNotRegisteredAgain(t *testing.T) {
	declared := script.NewInline("keep", "", "result = []")
	gw := &mockGateway{}
	gw.On("Lookup", "keep").Return(declared, true)

	c, err := NewScripted(script.NewRef("keep"), newTestConfig(gw))
	require.NoError(t, err)
	assert.Equal(t, "keep", c.ScriptName())
	gw.AssertNotCalled(t, "Register", mock.Anything)
}

func TestNewScripted_InlineRegistersOnce(t *testing.T) {
	s := script.NewInline("select", "", "result = pathList")
	gw := &mockGateway{}
	gw.On("Register", s).Return(nil).Once()
	cfg := newTestConfig(gw)

	c, err := NewScripted(s, cfg)
	require.NoError(t, err)
	require.NotNil(t, c)
	gw.AssertNumberOfCalls(t, "Register", 1)
	assert.Equal(t, 0, cfg.diag.count("ERROR"))
}

func TestNewScripted_RegisterFails(t *testing.T) {
	reg := script.NewRegistry() // no engines
	cfg := newTestConfig(reg)

	_, err := NewScripted(script.NewInline("lua", "lua", "return {}"), cfg)
	assert.ErrorIs(t, err, ErrConfiguration)
	assert.ErrorIs(t, err, script.ErrUnknownLanguage)
}

func TestScripted_ReturnsPathListUnchanged(t *testing.T) {
	cfg := starlarkConfig(t, nil)
	c, err := NewScripted(script.NewInline("all", "", "result = pathList"), cfg)
	require.NoError(t, err)

	in := candidates(6)
	got, err := c.Select(context.Background(), "/logs", in)
	require.NoError(t, err)
	assert.Equal(t, in, got)
}

func TestScripted_EvenIndexed(t *testing.T) {
	cfg := starlarkConfig(t, nil)
	src := "result = [f for i, f in enumerate(pathList) if i % 2 == 0]"
	c, err := NewScripted(script.NewInline("even", "", src), cfg)
	require.NoError(t, err)

	in := candidates(10)
	got, err := c.Select(context.Background(), "/logs", in)
	require.NoError(t, err)
	assert.Equal(t, []fs.FileInfo{in[0], in[2], in[4], in[6], in[8]}, got)
}

func TestScripted_PreservesReturnedOrder(t *testing.T) {
	cfg := starlarkConfig(t, nil)
	src := "result = [dict(path=f.path) for f in reversed(pathList)] + [dict(path=pathList[0].path)]"
	c, err := NewScripted(script.NewInline("rev", "", src), cfg)
	require.NoError(t, err)

	in := candidates(3)
	got, err := c.Select(context.Background(), "/logs", in)
	require.NoError(t, err)
	assert.Equal(t, []fs.FileInfo{in[2], in[1], in[0]}, got)
}

func TestScripted_WrongShape(t *testing.T) {
	tests := map[string]string{
		"strings": `result = ["a", "b"]`,
		"number":  `result = 42`,
		"none":    `result = None`,
		"unknown": `result = [dict(path="/etc/passwd")]`,
	}
	for name, src := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := starlarkConfig(t, nil)
			c, err := NewScripted(script.NewInline(name, "", src), cfg)
			require.NoError(t, err)

			got, err := c.Select(context.Background(), "/logs", candidates(3))
			assert.Nil(t, got)
			assert.ErrorIs(t, err, ErrScriptResult)
			assert.ErrorIs(t, err, ErrScriptExecution)
		})
	}
}

func TestScripted_ExecutionError(t *testing.T) {
	cfg := starlarkConfig(t, nil)
	c, err := NewScripted(script.NewInline("boom", "", "result = 1 // 0"), cfg)
	require.NoError(t, err)

	_, err = c.Select(context.Background(), "/logs", candidates(1))
	assert.ErrorIs(t, err, ErrScriptExecution)
	assert.False(t, errors.Is(err, ErrScriptResult))
}

func TestScripted_Bindings(t *testing.T) {
	cfg := starlarkConfig(t, nil)
	cfg.props["keep"] = "2"
	cfg.props["dir"] = "/logs"
	cfg.props["pathList"] = "shadowed"

	src := `
diagnostics.info("selecting", base=basePath)
root = substitutor("${dir}")
n = int(configuration.properties["keep"])
result = [f for f in pathList if f.path.startswith(root)][int(keep):]
`
	c, err := NewScripted(script.NewInline("bound", "", src), cfg)
	require.NoError(t, err)

	in := candidates(5)
	got, err := c.Select(context.Background(), "/logs", in)
	require.NoError(t, err)
	assert.Equal(t, in[2:], got)
	assert.Equal(t, 1, cfg.diag.count("INFO"))
	assert.Equal(t, 1, cfg.diag.count("WARN"))
}

func TestScripted_PassesCopyOfCandidates(t *testing.T) {
	gw := &mockGateway{}
	s := script.NewInline("mutate", script.LanguageGo, "")
	gw.On("Register", s).Return(nil)

	in := candidates(2)
	gw.On("Execute", mock.Anything, "mutate", mock.Anything).Return(nil, nil).Run(func(args mock.Arguments) {
		b := args.Get(2).(script.Bindings)
		list := b[script.BindPathList].([]fs.FileInfo)
		list[0].Path = "/elsewhere"
	})

	c, err := NewScripted(s, newTestConfig(gw))
	require.NoError(t, err)

	_, err = c.Select(context.Background(), "/logs", in)
	assert.ErrorIs(t, err, ErrScriptResult)
	assert.Equal(t, "/logs/app-00.log.gz", in[0].Path)
}

func TestEngine_ChainOrder(t *testing.T) {
	var calls []string
	stage := func(name string, keep func([]fs.FileInfo) []fs.FileInfo) Condition {
		return ConditionFunc(func(_ context.Context, _ string, in []fs.FileInfo) ([]fs.FileInfo, error) {
			calls = append(calls, fmt.Sprintf("%s:%d", name, len(in)))
			return keep(in), nil
		})
	}

	mfs := newMemFS(candidates(10))
	e := New("app", []Condition{
		stage("first", func(in []fs.FileInfo) []fs.FileInfo { return in[4:] }),
		stage("second", func(in []fs.FileInfo) []fs.FileInfo { return nil }),
		stage("third", func(in []fs.FileInfo) []fs.FileInfo { return in }),
	}, WithFS(mfs))

	res, err := e.Prune(context.Background(), "/logs", candidates(10))
	require.NoError(t, err)
	assert.Equal(t, []string{"first:10", "second:6", "third:0"}, calls)
	assert.Empty(t, res.Deleted)
	assert.Empty(t, mfs.removed)
}

func TestEngine_ConditionErrorAbortsPass(t *testing.T) {
	mfs := newMemFS(candidates(4))
	boom := errors.New("script exploded")
	e := New("app", []Condition{
		&AccumulatedFileCount{Keep: 1},
		ConditionFunc(func(context.Context, string, []fs.FileInfo) ([]fs.FileInfo, error) {
			return nil, boom
		}),
	}, WithFS(mfs))

	res, err := e.Prune(context.Background(), "/logs", candidates(4))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrScriptExecution)
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, res.Deleted)
	assert.Empty(t, mfs.removed)
	assert.Len(t, mfs.files, 4)
}

func TestEngine_WrongShapeScriptDeletesNothing(t *testing.T) {
	cfg := starlarkConfig(t, nil)
	c, err := NewScripted(script.NewInline("bad", "", `result = {"path": "x"}`), cfg)
	require.NoError(t, err)

	mfs := newMemFS(candidates(3))
	_, err = New("app", []Condition{c}, WithFS(mfs)).Prune(context.Background(), "/logs", candidates(3))
	assert.ErrorIs(t, err, ErrScriptResult)
	assert.Empty(t, mfs.removed)
}

func TestEngine_UnwritableFileDoesNotStopOthers(t *testing.T) {
	in := candidates(5)
	mfs := newMemFS(in)
	denied := errors.Wrap(os.ErrPermission, "remove")
	mfs.fail[in[2].Path] = denied

	e := New("app", []Condition{&AccumulatedFileCount{Keep: 0}}, WithFS(mfs))
	res, err := e.Prune(context.Background(), "/logs", in)
	require.NoError(t, err)

	assert.Len(t, res.Deleted, 4)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, in[2].Path, res.Failed[0].Path)
	assert.ErrorIs(t, res.Failed[0], os.ErrPermission)
	assert.Equal(t, []string{in[0].Path, in[1].Path, in[3].Path, in[4].Path}, mfs.removed)
}

func TestEngine_KeepsFileReplacedSinceScan(t *testing.T) {
	in := candidates(3)
	for i := range in {
		in[i].Inode = uint64(i + 1)
	}
	mfs := newMemFS(in)
	rotated := in[2]
	rotated.Inode = 99
	mfs.files[rotated.Path] = rotated
	log := &recordingSink{}

	e := New("app", []Condition{&AccumulatedFileCount{Keep: 1}}, WithFS(mfs), WithLogger(log))
	res, err := e.Prune(context.Background(), "/logs", in)
	require.NoError(t, err)

	assert.Len(t, res.Selected, 2)
	assert.Equal(t, []string{in[1].Path}, paths(res.Deleted))
	assert.Empty(t, res.Failed)
	assert.Equal(t, []string{in[1].Path}, mfs.removed)
	assert.Equal(t, 1, log.count("WARN"))
}

func TestEngine_TestMode(t *testing.T) {
	in := candidates(3)
	mfs := newMemFS(in)
	log := &recordingSink{}

	e := New("app", []Condition{&AccumulatedFileCount{Keep: 1}}, WithFS(mfs), WithTestMode(true), WithLogger(log))
	res, err := e.Prune(context.Background(), "/logs", in)
	require.NoError(t, err)

	assert.True(t, res.TestMode)
	assert.Len(t, res.Selected, 2)
	assert.Empty(t, res.Deleted)
	assert.Empty(t, mfs.removed)
	assert.Equal(t, 3, log.count("INFO"))
}

func TestEngine_EmptyChainDeletesNothing(t *testing.T) {
	mfs := newMemFS(candidates(3))
	res, err := New("app", nil, WithFS(mfs)).Prune(context.Background(), "/logs", candidates(3))
	require.NoError(t, err)
	assert.Empty(t, res.Selected)
	assert.Empty(t, mfs.removed)
}

type passSpy struct {
	results []Result
	errs    []error
}

func (p *passSpy) PassFinished(r Result, err error) {
	p.results = append(p.results, r)
	p.errs = append(p.errs, err)
}

func (p *passSpy) RecordPass(_ context.Context, r Result, err error) error {
	p.PassFinished(r, err)
	return nil
}

func TestEngine_ReportsPasses(t *testing.T) {
	metrics, journal := &passSpy{}, &passSpy{}
	e := New("app", []Condition{&AccumulatedFileCount{Keep: 1}},
		WithFS(newMemFS(candidates(3))), WithMetrics(metrics), WithJournal(journal))

	res, err := e.Prune(context.Background(), "/logs", candidates(3))
	require.NoError(t, err)

	require.Len(t, metrics.results, 1)
	require.Len(t, journal.results, 1)
	assert.Equal(t, res.ID, metrics.results[0].ID)
	assert.Len(t, journal.results[0].Deleted, 2)
	assert.NoError(t, journal.errs[0])
}

func TestEngine_RunOnDisk(t *testing.T) {
	dir := t.TempDir()
	for i := range 4 {
		p := filepath.Join(dir, fmt.Sprintf("app-%d.log.gz", i))
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
		mt := baseTime.Add(time.Duration(i) * time.Hour)
		require.NoError(t, os.Chtimes(p, mt, mt))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.log"), []byte("live"), 0o644))

	e := New("app", []Condition{
		&FileName{Glob: "app-*.log.gz"},
		&AccumulatedFileCount{Keep: 2},
	})
	res, err := e.Run(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, 5, res.Scanned)
	assert.Equal(t, []string{
		filepath.Join(dir, "app-1.log.gz"),
		filepath.Join(dir, "app-0.log.gz"),
	}, paths(res.Deleted))

	left, err := filepath.Glob(filepath.Join(dir, "*"))
	require.NoError(t, err)
	assert.Len(t, left, 3)
}

func TestEngine_RunMissingBase(t *testing.T) {
	journal := &passSpy{}
	_, err := New("app", nil, WithJournal(journal)).Run(context.Background(), filepath.Join(t.TempDir(), "gone"))
	assert.Error(t, err)
	require.Len(t, journal.errs, 1)
	assert.Error(t, journal.errs[0])
}

func TestBuiltinConditions(t *testing.T) {
	in := []fs.FileInfo{
		{Path: "/logs/app-1.log.gz", Size: 400, MTime: baseTime},
		{Path: "/logs/app-2.log.gz", Size: 300, MTime: baseTime.Add(-48 * time.Hour)},
		{Path: "/logs/other.txt", Size: 200, MTime: baseTime.Add(-72 * time.Hour)},
		{Path: "/logs/sub/app-3.log.gz", Size: 100, MTime: baseTime.Add(-96 * time.Hour)},
	}
	ctx := context.Background()

	got, err := (&FileName{Glob: "app-*.log.gz"}).Select(ctx, "/logs", in)
	require.NoError(t, err)
	assert.Equal(t, []string{"/logs/app-1.log.gz", "/logs/app-2.log.gz"}, paths(got))

	lm := &LastModified{Age: 60 * time.Hour, Now: func() time.Time { return baseTime }}
	got, err = lm.Select(ctx, "/logs", in)
	require.NoError(t, err)
	assert.Equal(t, []string{"/logs/other.txt", "/logs/sub/app-3.log.gz"}, paths(got))

	got, err = (&AccumulatedFileCount{Keep: 3}).Select(ctx, "/logs", in)
	require.NoError(t, err)
	assert.Equal(t, []string{"/logs/sub/app-3.log.gz"}, paths(got))

	got, err = (&AccumulatedFileCount{Keep: 10}).Select(ctx, "/logs", in)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = (&AccumulatedFileSize{Threshold: 700}).Select(ctx, "/logs", in)
	require.NoError(t, err)
	assert.Equal(t, []string{"/logs/other.txt", "/logs/sub/app-3.log.gz"}, paths(got))
}

func TestRegistry_BuildChain(t *testing.T) {
	cfg := starlarkConfig(t, map[string]string{"declared": "result = pathList"})
	cfg.props["pattern"] = "app-*.gz"

	specs := []config.ConditionConfig{
		{Type: config.ConditionFileName, Glob: "${pattern}"},
		{Type: config.ConditionLastModified, Age: config.Duration(24 * time.Hour)},
		{Type: config.ConditionAccumulatedFile, Count: 3},
		{Type: config.ConditionAccumulatedSize, Size: "1 MiB"},
		{Type: config.ConditionScript, Script: &config.ScriptConfig{Ref: "declared"}},
		{Type: config.ConditionScript, Script: &config.ScriptConfig{Name: "inline", Source: "result = []"}},
		{Type: config.ConditionScript},
		{Type: config.ConditionScript, Script: &config.ScriptConfig{Ref: "nope"}},
		{Type: config.ConditionAccumulatedSize, Size: "lots"},
		{Type: config.ConditionFileName},
		{Type: "ifAll"},
	}

	chain, errs := DefaultRegistry().BuildChain(specs, cfg)
	require.Len(t, chain, 6)
	require.Len(t, errs, 5)
	for _, err := range errs {
		assert.ErrorIs(t, err, ErrConfiguration)
	}

	assert.Equal(t, "app-*.gz", chain[0].(*FileName).Glob)
	assert.Equal(t, uint64(1<<20), chain[3].(*AccumulatedFileSize).Threshold)
	assert.Equal(t, "inline", chain[5].(*Scripted).ScriptName())

	_, ok := cfg.gw.Lookup("inline")
	assert.True(t, ok)
	assert.GreaterOrEqual(t, cfg.diag.count("ERROR"), 5)
}

func TestRegistry_Types(t *testing.T) {
	assert.Equal(t, []string{
		config.ConditionAccumulatedFile,
		config.ConditionAccumulatedSize,
		config.ConditionFileName,
		config.ConditionLastModified,
		config.ConditionScript,
	}, DefaultRegistry().Types())
}

func TestScripted_ConcurrentSelect(t *testing.T) {
	cfg := starlarkConfig(t, nil)
	c, err := NewScripted(script.NewInline("tail", "", "result = pathList[1:]"), cfg)
	require.NoError(t, err)

	in := candidates(4)
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := c.Select(context.Background(), "/logs", in)
			assert.NoError(t, err)
			assert.Equal(t, in[1:], got)
		}()
	}
	wg.Wait()
}
