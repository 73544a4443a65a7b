package commands

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	dir    string
	base   string
	config string
}

func newFixture(t *testing.T, extraCondition string) fixture {
	t.Helper()
	dir := t.TempDir()
	base := filepath.Join(dir, "logs")
	require.NoError(t, os.Mkdir(base, 0o755))

	now := time.Now()
	for i := range 4 {
		path := filepath.Join(base, fmt.Sprintf("app-%d.log.gz", i))
		require.NoError(t, os.WriteFile(path, bytes.Repeat([]byte("x"), 1024), 0o644))
		mtime := now.Add(-time.Duration(i+1) * time.Hour)
		require.NoError(t, os.Chtimes(path, mtime, mtime))
	}

	body := fmt.Sprintf(`
journal:
  path: %s
lock:
  dir: %s
targets:
  - name: app
    basePath: %s
    watch:
      mode: off
    conditions:
      - type: fileName
        glob: "*.gz"
      - type: accumulatedFileCount
        count: 1
%s`, filepath.Join(dir, "journal.db"), filepath.Join(dir, "locks"), base, extraCondition)

	cfg := filepath.Join(dir, "logkeeper.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte(body), 0o644))
	return fixture{dir: dir, base: base, config: cfg}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func countFiles(t *testing.T, dir string) int {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	return len(entries)
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "--version")
	require.NoError(t, err)
	assert.Equal(t, "logkeeper version "+version+"\n", out)
}

func TestPrune_DryRunThenDelete(t *testing.T) {
	f := newFixture(t, "")

	out, err := execute(t, "prune", "-c", f.config, "--dry-run", "--files")
	require.NoError(t, err)
	assert.Contains(t, out, "dry-run")
	assert.Contains(t, out, "would delete")
	assert.Contains(t, out, "app-3.log.gz")
	assert.Equal(t, 4, countFiles(t, f.base))

	out, err = execute(t, "prune", "-c", f.config, "--target", "app")
	require.NoError(t, err)
	assert.Contains(t, out, "3.1 kB")
	assert.Equal(t, 1, countFiles(t, f.base))

	out, err = execute(t, "history", "-c", f.config)
	require.NoError(t, err)
	assert.Contains(t, out, "delete")
	assert.Contains(t, out, "dry-run")
}

func TestPrune_UnknownTarget(t *testing.T) {
	f := newFixture(t, "")
	_, err := execute(t, "prune", "-c", f.config, "-t", "nope")
	assert.Error(t, err)
}

func TestCheck(t *testing.T) {
	f := newFixture(t, "")
	out, err := execute(t, "check", "-c", f.config)
	require.NoError(t, err)
	assert.Contains(t, out, "app")
	assert.Contains(t, out, "configuration ok")
}

func TestCheck_ShowsNextRun(t *testing.T) {
	f := newFixture(t, "")
	body, err := os.ReadFile(f.config)
	require.NoError(t, err)
	body = bytes.Replace(body, []byte("    watch:"), []byte("    schedule: \"0 3 * * *\"\n    watch:"), 1)
	require.NoError(t, os.WriteFile(f.config, body, 0o644))

	out, err := execute(t, "check", "-c", f.config)
	require.NoError(t, err)
	assert.Contains(t, out, "Next run")
	assert.Contains(t, out, "0 3 * * *")
	assert.Contains(t, out, "from now")
}

func TestCheck_ReportsDroppedConditions(t *testing.T) {
	f := newFixture(t, `      - type: script
        script:
          ref: nowhere
`)
	out, err := execute(t, "check", "-c", f.config)
	require.ErrorIs(t, err, ErrDroppedConditions)
	assert.Contains(t, out, "Dropped conditions:")
	assert.Contains(t, out, "nowhere")
}

func TestEnvOverridesLogging(t *testing.T) {
	f := newFixture(t, "")
	t.Setenv("LOGKEEPER_LOG_BACKEND", "log4j")

	_, err := execute(t, "check", "-c", f.config)
	assert.Error(t, err)
}

func TestHistory_NoJournal(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "logkeeper.toml")
	require.NoError(t, os.WriteFile(cfg, []byte("[[targets]]\nbasePath = \"/tmp\"\n"), 0o644))

	_, err := execute(t, "history", "-c", cfg)
	assert.ErrorIs(t, err, ErrNoJournal)
}
