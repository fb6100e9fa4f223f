package action

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tidyops/organize/internal/output"
	"github.com/tidyops/organize/internal/resource"
)

// discard satisfies the output contract without rendering anything.
type discard struct {
	messages []string
}

func (d *discard) Start(bool, string, string) {}

func (d *discard) Msg(res *resource.Resource, msg string, level output.Level, sender string) {
	d.messages = append(d.messages, msg)
}

func (d *discard) End(int, int) {}

func newFileResource(t *testing.T, dir, name, content string) *resource.Resource {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return resource.New(path, dir, "test", 0)
}

func TestMoveIntoDirectory(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	res := newFileResource(t, src, "report.pdf", "data")

	err := NewMove(dst + string(os.PathSeparator)).Apply(res, false, &discard{})
	require.NoError(t, err)

	moved := filepath.Join(dst, "report.pdf")
	assert.FileExists(t, moved)
	assert.NoFileExists(t, filepath.Join(src, "report.pdf"))
	assert.Equal(t, moved, res.Path, "later actions must see the new location")
}

func TestMoveToExplicitName(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	res := newFileResource(t, src, "report.pdf", "data")

	target := filepath.Join(dst, "renamed.pdf")
	require.NoError(t, NewMove(target).Apply(res, false, &discard{}))
	assert.FileExists(t, target)
	assert.Equal(t, target, res.Path)
}

func TestMoveCreatesParents(t *testing.T) {
	src := t.TempDir()
	dst := filepath.Join(t.TempDir(), "deep", "nested")
	res := newFileResource(t, src, "a.txt", "x")

	require.NoError(t, NewMove(dst+string(os.PathSeparator)).Apply(res, false, &discard{}))
	assert.FileExists(t, filepath.Join(dst, "a.txt"))
}

func TestMoveConflictRename(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dst, "report.pdf"), []byte("old"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dst, "report 2.pdf"), []byte("older"), 0o644))
	res := newFileResource(t, src, "report.pdf", "new")

	require.NoError(t, NewMove(dst+string(os.PathSeparator)).Apply(res, false, &discard{}))

	assert.Equal(t, filepath.Join(dst, "report 3.pdf"), res.Path)
	assert.FileExists(t, res.Path)

	existing, err := os.ReadFile(filepath.Join(dst, "report.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "old", string(existing), "existing file must never be overwritten")
}

func TestMoveSimulate(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	res := newFileResource(t, src, "a.txt", "x")

	out := &discard{}
	require.NoError(t, NewMove(dst+string(os.PathSeparator)).Apply(res, true, out))

	assert.FileExists(t, filepath.Join(src, "a.txt"))
	assert.NoFileExists(t, filepath.Join(dst, "a.txt"))
	// The simulated location still flows to subsequent actions.
	assert.Equal(t, filepath.Join(dst, "a.txt"), res.Path)
	require.Len(t, out.messages, 1)
	assert.Contains(t, out.messages[0], "Would move")
}

func TestCopyKeepsSource(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	res := newFileResource(t, src, "a.txt", "payload")

	require.NoError(t, NewCopy(dst+string(os.PathSeparator)).Apply(res, false, &discard{}))

	assert.FileExists(t, filepath.Join(src, "a.txt"))
	copied, err := os.ReadFile(filepath.Join(dst, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "payload", string(copied))
	assert.Equal(t, filepath.Join(src, "a.txt"), res.Path, "copy must not relocate the resource")
}

func TestDelete(t *testing.T) {
	dir := t.TempDir()
	res := newFileResource(t, dir, "a.txt", "x")

	require.NoError(t, NewDelete().Apply(res, false, &discard{}))
	assert.NoFileExists(t, res.Path)
}

func TestDeleteDirectory(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "inner.txt"), []byte("x"), 0o644))

	res := resource.New(sub, dir, "test", 0)
	require.NoError(t, NewDelete().Apply(res, false, &discard{}))
	assert.NoDirExists(t, sub)
}

func TestDeleteSimulate(t *testing.T) {
	dir := t.TempDir()
	res := newFileResource(t, dir, "a.txt", "x")

	out := &discard{}
	require.NoError(t, NewDelete().Apply(res, true, out))
	assert.FileExists(t, res.Path)
	require.Len(t, out.messages, 1)
	assert.Contains(t, out.messages[0], "Would delete")
}

func TestEcho(t *testing.T) {
	dir := t.TempDir()
	res := newFileResource(t, dir, "report.pdf", "x")

	out := &discard{}
	require.NoError(t, NewEcho("saw {name} with extension {ext}").Apply(res, false, out))
	require.Len(t, out.messages, 1)
	assert.Equal(t, "saw report.pdf with extension pdf", out.messages[0])
}

func TestRelativeDestinationUsesWorkingDir(t *testing.T) {
	src := t.TempDir()
	work := t.TempDir()
	res := newFileResource(t, src, "report.pdf", "x")
	res.WorkingDir = work

	require.NoError(t, NewMove("archive/").Apply(res, false, &discard{}))
	assert.FileExists(t, filepath.Join(work, "archive", "report.pdf"))
	assert.Equal(t, filepath.Join(work, "archive", "report.pdf"), res.Path)
}

func TestAbsoluteDestinationIgnoresWorkingDir(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	res := newFileResource(t, src, "report.pdf", "x")
	res.WorkingDir = t.TempDir()

	require.NoError(t, NewMove(dst+string(os.PathSeparator)).Apply(res, false, &discard{}))
	assert.FileExists(t, filepath.Join(dst, "report.pdf"))
}

func TestDestinationTemplates(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	res := newFileResource(t, src, "report.pdf", "x")

	// The extension placeholder sorts files into per-type directories.
	require.NoError(t, NewMove(filepath.Join(dst, "{ext}")+string(os.PathSeparator)).Apply(res, false, &discard{}))
	assert.FileExists(t, filepath.Join(dst, "pdf", "report.pdf"))
}
