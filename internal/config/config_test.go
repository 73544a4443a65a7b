package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raoulx24/logkeeper/internal/logging"
	"github.com/raoulx24/logkeeper/internal/script"
)

const sampleYAML = `
logging:
  level: debug
properties:
  keep: "5"
  dir: /var/log/app
scripts:
  - name: keepEven
    source: "result = pathList"
targets:
  - name: app
    basePath: $(LOGKEEPER_TEST_BASE)
    schedule: "*/5 * * * *"
    watch:
      mode: poll
      pollInterval: 10s
    conditions:
      - type: fileName
        glob: "app-*.log.gz"
      - type: lastModified
        age: 7d
      - type: script
        script:
          ref: keepEven
`

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_YAML(t *testing.T) {
	t.Setenv("LOGKEEPER_TEST_BASE", "/data/logs")

	cfg, err := Load(writeFile(t, "logkeeper.yaml", sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, "slog", cfg.Logging.Backend)
	assert.Equal(t, "5", cfg.Properties["keep"])

	tgt, ok := cfg.Target("app")
	require.True(t, ok)
	assert.Equal(t, "/data/logs", tgt.BasePath)
	assert.Equal(t, 1, tgt.MaxDepth)
	assert.Equal(t, WatchPoll, tgt.Watch.Mode)
	assert.Equal(t, 10*time.Second, tgt.Watch.PollInterval.Std())
	assert.Equal(t, DefaultDebounceWindow, tgt.Watch.DebounceWindow.Std())
	require.Len(t, tgt.Conditions, 3)
	assert.Equal(t, 7*24*time.Hour, tgt.Conditions[1].Age.Std())
	require.NotNil(t, tgt.Conditions[2].Script)
	assert.Equal(t, "keepEven", tgt.Conditions[2].Script.Ref)
}

func TestLoad_TOML(t *testing.T) {
	body := `
[logging]
backend = "zap"

[[targets]]
basePath = "/srv/logs"
maxDepth = 3

[[targets.conditions]]
type = "accumulatedFileSize"
size = "10 MiB"

[[targets.conditions]]
type = "lastModified"
age = "2w"
`
	cfg, err := Load(writeFile(t, "logkeeper.toml", body))
	require.NoError(t, err)

	assert.Equal(t, "zap", cfg.Logging.Backend)
	require.Len(t, cfg.Targets, 1)
	assert.Equal(t, "logs", cfg.Targets[0].Name)
	assert.Equal(t, 3, cfg.Targets[0].MaxDepth)
	assert.Equal(t, "10 MiB", cfg.Targets[0].Conditions[0].Size)
	assert.Equal(t, 14*24*time.Hour, cfg.Targets[0].Conditions[1].Age.Std())
}

func TestLoad_ResolvesScriptPaths(t *testing.T) {
	body := `
scripts:
  - name: fromFile
    path: select.star
`
	path := writeFile(t, "logkeeper.yaml", body)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(filepath.Dir(path), "select.star"), cfg.Scripts[0].Path)
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"no base path", "targets:\n  - name: a\n", "basePath is required"},
		{"bad schedule", "targets:\n  - basePath: /x\n    schedule: nope\n", "invalid schedule"},
		{"bad watch", "targets:\n  - basePath: /x\n    watch:\n      mode: inotify\n", "unknown watch mode"},
		{"duplicate script", "scripts:\n  - name: a\n    source: x\n  - name: a\n    source: y\n", "duplicate name"},
		{"top-level ref", "scripts:\n  - name: a\n    ref: b\n", "cannot be references"},
		{"untyped condition", "targets:\n  - basePath: /x\n    conditions:\n      - glob: '*'\n", "type is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.body), ".yaml")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParseDuration(t *testing.T) {
	tests := map[string]time.Duration{
		"":      0,
		"90s":   90 * time.Second,
		"1h30m": 90 * time.Minute,
		"3d":    72 * time.Hour,
		"1w":    168 * time.Hour,
	}
	for in, want := range tests {
		got, err := ParseDuration(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseDuration("xd")
	assert.Error(t, err)
	_, err = ParseDuration("soon")
	assert.Error(t, err)
}

func TestSubstitutor(t *testing.T) {
	s := NewSubstitutor(map[string]string{
		"dir":     "/var/log",
		"archive": "${dir}/archive",
	})
	s.lookup = func(k string) (string, bool) {
		if k == "HOME" {
			return "/home/ops", true
		}
		return "", false
	}

	assert.Equal(t, "/var/log/app", s.Replace("${dir}/app"))
	assert.Equal(t, "/var/log/archive/x", s.Replace("${archive}/x"))
	assert.Equal(t, "/home/ops/.logs", s.Replace("${env:HOME}/.logs"))
	assert.Equal(t, "fallback", s.Replace("${missing:-fallback}"))
	assert.Equal(t, "${missing}", s.Replace("${missing}"))
	assert.Equal(t, "plain", s.Replace("plain"))
}

func TestSubstitutor_BoundedRecursion(t *testing.T) {
	s := NewSubstitutor(map[string]string{"a": "${a}x"})
	got := s.Replace("${a}")
	assert.Contains(t, got, "${a}")
}

func TestNewRuntime(t *testing.T) {
	t.Setenv("LOGKEEPER_TEST_BASE", "/data/logs")

	cfg, err := Parse([]byte(sampleYAML), ".yaml")
	require.NoError(t, err)

	reg := script.NewRegistry()
	reg.RegisterEngine(script.LanguageStarlark, &script.StarlarkEngine{})

	rt, err := NewRuntime(cfg, reg, nil)
	require.NoError(t, err)

	_, ok := rt.Scripts().Lookup("keepEven")
	assert.True(t, ok)
	assert.Equal(t, "/var/log/app/old", rt.Substitute("${dir}/old"))
	assert.Equal(t, "5", rt.Properties()["keep"])
	assert.NotNil(t, rt.Diagnostics())

	diag := logging.NewDiscard()
	rt, err = NewRuntime(cfg, script.NewRegistry(), diag)
	require.Error(t, err, "starlark engine not registered")
	rt, err = NewRuntime(&Config{}, script.NewRegistry(), diag)
	require.NoError(t, err)
	assert.Same(t, diag, rt.Diagnostics())
}

func TestNewRuntime_UnknownLanguage(t *testing.T) {
	cfg, err := Parse([]byte("scripts:\n  - name: a\n    language: lua\n    source: x\n"), ".yaml")
	require.NoError(t, err)

	_, err = NewRuntime(cfg, script.NewRegistry(), nil)
	assert.ErrorIs(t, err, script.ErrUnknownLanguage)
}
