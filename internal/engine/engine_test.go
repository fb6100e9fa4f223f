package engine

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tidyops/organize/internal/action"
	"github.com/tidyops/organize/internal/config"
	"github.com/tidyops/organize/internal/filter"
	"github.com/tidyops/organize/internal/output"
	"github.com/tidyops/organize/internal/resource"
)

// recordingOutput captures the run lifecycle for assertions.
type recordingOutput struct {
	mu        sync.Mutex
	starts    int
	ends      int
	simulate  bool
	success   int
	errors    int
	messages  []string
	msgLevels []output.Level
}

func (r *recordingOutput) Start(simulate bool, configPath, workingDir string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.starts++
	r.simulate = simulate
}

func (r *recordingOutput) Msg(res *resource.Resource, msg string, level output.Level, sender string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, msg)
	r.msgLevels = append(r.msgLevels, level)
}

func (r *recordingOutput) End(successCount, errorCount int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ends++
	r.success = successCount
	r.errors = errorCount
}

func writeFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("content"), 0o644))
	}
}

func moveConfig(t *testing.T, src, dst string) *config.Config {
	t.Helper()
	cfg, err := config.FromString(fmt.Sprintf(`
rules:
  - name: move pdfs
    locations: [%q]
    filters:
      - extension: pdf
    actions:
      - move: %q
`, src, dst+string(os.PathSeparator)), "")
	require.NoError(t, err)
	return cfg
}

func TestExecuteMovesMatches(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	writeFiles(t, src, "a.pdf", "b.pdf", "notes.txt")

	out := &recordingOutput{}
	err := New(nil, nil).Execute(moveConfig(t, src, dst), RunOptions{Output: out})
	require.NoError(t, err)

	assert.Equal(t, 1, out.starts)
	assert.Equal(t, 1, out.ends)
	assert.Equal(t, 2, out.success)
	assert.Equal(t, 0, out.errors)

	assert.NoFileExists(t, filepath.Join(src, "a.pdf"))
	assert.FileExists(t, filepath.Join(dst, "a.pdf"))
	assert.FileExists(t, filepath.Join(dst, "b.pdf"))
	assert.FileExists(t, filepath.Join(src, "notes.txt"))
}

func TestExecuteSimulateLeavesFilesAlone(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	writeFiles(t, src, "a.pdf")

	out := &recordingOutput{}
	err := New(nil, nil).Execute(moveConfig(t, src, dst), RunOptions{Simulate: true, Output: out})
	require.NoError(t, err)

	assert.True(t, out.simulate)
	assert.Equal(t, 1, out.success)
	assert.FileExists(t, filepath.Join(src, "a.pdf"))
	assert.NoFileExists(t, filepath.Join(dst, "a.pdf"))
}

func TestExecuteSkipsDisabledAndDeselectedRules(t *testing.T) {
	src := t.TempDir()
	writeFiles(t, src, "a.pdf")

	cfg, err := config.FromString(fmt.Sprintf(`
rules:
  - name: disabled
    enabled: false
    locations: [%q]
    actions:
      - echo: "disabled"
  - name: tagged
    tags: [nightly]
    locations: [%q]
    actions:
      - echo: "tagged"
`, src, src), "")
	require.NoError(t, err)

	out := &recordingOutput{}
	// A tag-filtered run that matches neither rule executes nothing.
	require.NoError(t, New(nil, nil).Execute(cfg, RunOptions{Output: out, Tags: []string{"weekly"}}))
	assert.Equal(t, 0, out.success)
	assert.Empty(t, out.messages)
	assert.Equal(t, 1, out.ends)
}

func TestExecuteSubfoldersOff(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	writeFiles(t, src, "top.pdf", "sub/deep.pdf")

	out := &recordingOutput{}
	require.NoError(t, New(nil, nil).Execute(moveConfig(t, src, dst), RunOptions{Output: out}))

	assert.FileExists(t, filepath.Join(dst, "top.pdf"))
	assert.FileExists(t, filepath.Join(src, "sub", "deep.pdf"))
	assert.Equal(t, 1, out.success)
}

func TestExecuteSubfoldersOn(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	writeFiles(t, src, "top.pdf", "sub/deep.pdf")

	cfg, err := config.FromString(fmt.Sprintf(`
rules:
  - name: move all pdfs
    locations: [%q]
    subfolders: true
    filters:
      - extension: pdf
    actions:
      - move: %q
`, src, dst+string(os.PathSeparator)), "")
	require.NoError(t, err)

	out := &recordingOutput{}
	require.NoError(t, New(nil, nil).Execute(cfg, RunOptions{Output: out}))

	assert.Equal(t, 2, out.success)
	assert.FileExists(t, filepath.Join(dst, "top.pdf"))
	assert.FileExists(t, filepath.Join(dst, "deep.pdf"))
}

// failingAction matches the catalog contract and always errors.
type failingAction struct{}

func (failingAction) Name() string { return "boom" }

func (failingAction) Apply(res *resource.Resource, simulate bool, out output.Output) error {
	return errors.New("refused")
}

func TestExecuteCountsActionFailures(t *testing.T) {
	src := t.TempDir()
	writeFiles(t, src, "a.pdf", "b.pdf")

	cfg := &config.Config{Rules: []config.Rule{{
		Name:       "failing",
		Enabled:    true,
		Targets:    config.TargetFiles,
		Locations:  []config.Location{{Path: src}},
		FilterMode: filter.ModeAll,
		Actions:    []action.Action{failingAction{}},
	}}}

	out := &recordingOutput{}
	require.NoError(t, New(nil, nil).Execute(cfg, RunOptions{Output: out}))

	assert.Equal(t, 0, out.success)
	assert.Equal(t, 2, out.errors)
	assert.Len(t, out.messages, 2)
	for _, lvl := range out.msgLevels {
		assert.Equal(t, output.LevelError, lvl)
	}
	assert.Equal(t, 1, out.ends)
}

func TestExecuteParallelMatchesSequentialTotals(t *testing.T) {
	for _, workers := range []int{0, 1, 4} {
		src := t.TempDir()
		dst := t.TempDir()
		writeFiles(t, src, "a.pdf", "b.pdf", "c.pdf", "skip.txt")

		cfg, err := config.FromString(fmt.Sprintf(`
rules:
  - name: first
    locations: [%q]
    filters:
      - extension: pdf
    actions:
      - move: %q
  - name: second
    locations: [%q]
    filters:
      - extension: txt
    actions:
      - echo: "txt seen"
`, src, dst+string(os.PathSeparator), src), "")
		require.NoError(t, err)

		out := &recordingOutput{}
		require.NoError(t, New(nil, nil).ExecuteParallel(cfg, RunOptions{Output: out, MaxWorkers: workers}))

		assert.Equal(t, 4, out.success, "workers=%d", workers)
		assert.Equal(t, 0, out.errors, "workers=%d", workers)
		assert.Equal(t, 1, out.starts, "workers=%d", workers)
		assert.Equal(t, 1, out.ends, "workers=%d", workers)
	}
}

func TestExecuteForPath(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	writeFiles(t, src, "a.pdf")
	cfg := moveConfig(t, src, dst)

	out := &recordingOutput{}
	eng := New(nil, nil)
	require.NoError(t, eng.ExecuteForPath(cfg, filepath.Join(src, "a.pdf"), RunOptions{Output: out}))

	assert.Equal(t, 1, out.success)
	assert.FileExists(t, filepath.Join(dst, "a.pdf"))
}

func TestExecuteForPathOutsideLocations(t *testing.T) {
	src := t.TempDir()
	other := t.TempDir()
	writeFiles(t, other, "a.pdf")
	cfg := moveConfig(t, src, t.TempDir())

	out := &recordingOutput{}
	require.NoError(t, New(nil, nil).ExecuteForPath(cfg, filepath.Join(other, "a.pdf"), RunOptions{Output: out}))

	assert.Equal(t, 0, out.success)
	assert.Equal(t, 0, out.errors)
	assert.FileExists(t, filepath.Join(other, "a.pdf"))
}

func TestExecuteForPathRespectsTargetKind(t *testing.T) {
	src := t.TempDir()
	sub := filepath.Join(src, "sub")
	require.NoError(t, os.MkdirAll(sub, 0o755))

	// A files-targeting rule must ignore a directory event.
	cfg := moveConfig(t, src, t.TempDir())
	out := &recordingOutput{}
	require.NoError(t, New(nil, nil).ExecuteForPath(cfg, sub, RunOptions{Output: out}))
	assert.Equal(t, 0, out.success)
	assert.Equal(t, 0, out.errors)
}

func TestExecuteRelativeLocationUsesWorkingDir(t *testing.T) {
	base := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(base, "inbox"), 0o755))
	writeFiles(t, base, "inbox/a.pdf")

	cfg, err := config.FromString(`
rules:
  - name: relative
    locations: [inbox]
    filters:
      - extension: pdf
    actions:
      - echo: "found {name}"
`, "")
	require.NoError(t, err)

	out := &recordingOutput{}
	require.NoError(t, New(nil, nil).Execute(cfg, RunOptions{Output: out, WorkingDir: base}))
	assert.Equal(t, 1, out.success)
	require.NotEmpty(t, out.messages)
	assert.Contains(t, out.messages[0], "found a")
}

func TestExecuteRelativeDestinationUsesWorkingDir(t *testing.T) {
	base := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(base, "inbox"), 0o755))
	writeFiles(t, base, "inbox/a.pdf")

	// Both the relative location and the relative destination resolve
	// against the working directory, never the process cwd.
	cfg, err := config.FromString(`
rules:
  - name: archive
    locations: [inbox]
    filters:
      - extension: pdf
    actions:
      - move: archive/
`, "")
	require.NoError(t, err)

	out := &recordingOutput{}
	require.NoError(t, New(nil, nil).Execute(cfg, RunOptions{Output: out, WorkingDir: base}))

	assert.Equal(t, 1, out.success)
	assert.FileExists(t, filepath.Join(base, "archive", "a.pdf"))
	assert.NoFileExists(t, filepath.Join(base, "inbox", "a.pdf"))
}

func TestExecuteDirTargets(t *testing.T) {
	src := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(src, "empty-dir"), 0o755))
	writeFiles(t, src, "a.txt")

	cfg, err := config.FromString(fmt.Sprintf(`
rules:
  - name: report dirs
    targets: dirs
    locations: [%q]
    actions:
      - echo: "dir {name}"
`, src), "")
	require.NoError(t, err)

	out := &recordingOutput{}
	require.NoError(t, New(nil, nil).Execute(cfg, RunOptions{Output: out}))

	assert.Equal(t, 1, out.success)
	require.Len(t, out.messages, 1)
	assert.Contains(t, out.messages[0], "empty-dir")
}
