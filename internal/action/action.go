// Package action holds the closed set of effects a rule can apply to a
// matching resource. Every action honors simulate mode by reporting what
// it would do without touching the filesystem.
package action

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidyops/organize/internal/output"
	"github.com/tidyops/organize/internal/resource"
	"github.com/tidyops/organize/internal/template"
)

// Action consumes a resource and performs or simulates an effect. Actions
// that relocate the resource update res.Path so later actions in the same
// pass see the new location.
type Action interface {
	Name() string
	Apply(res *resource.Resource, simulate bool, out output.Output) error
}

// destinationFor resolves a destination template against a resource.
// Relative destinations are anchored at the resource's working directory,
// like relative rule locations. A destination ending in a path separator,
// or naming an existing directory, receives the resource's base name.
func destinationFor(dest string, res *resource.Resource) (string, error) {
	rendered, err := template.Render(template.Format(dest, template.FieldsForPath(res.Path)))
	if err != nil {
		return "", err
	}
	if !filepath.IsAbs(rendered) && res.WorkingDir != "" && res.WorkingDir != "." {
		rendered = filepath.Join(res.WorkingDir, rendered)
	}
	intoDir := strings.HasSuffix(dest, "/") || strings.HasSuffix(dest, string(os.PathSeparator))
	if !intoDir {
		if info, err := os.Stat(rendered); err == nil && info.IsDir() {
			intoDir = true
		}
	}
	if intoDir {
		rendered = filepath.Join(rendered, filepath.Base(res.Path))
	}
	return rendered, nil
}

// resolveConflict returns a non-existing variant of dst by appending a
// counter before the extension ("report.pdf" -> "report 2.pdf").
func resolveConflict(dst string) string {
	if _, err := os.Lstat(dst); err != nil {
		return dst
	}
	ext := filepath.Ext(dst)
	stem := strings.TrimSuffix(dst, ext)
	for counter := 2; ; counter++ {
		candidate := fmt.Sprintf("%s %d%s", stem, counter, ext)
		if _, err := os.Lstat(candidate); err != nil {
			return candidate
		}
	}
}

// MoveAction moves the resource to a rendered destination.
type MoveAction struct {
	Dest string
}

func NewMove(dest string) *MoveAction { return &MoveAction{Dest: dest} }

func (a *MoveAction) Name() string { return "move" }

func (a *MoveAction) Apply(res *resource.Resource, simulate bool, out output.Output) error {
	dst, err := destinationFor(a.Dest, res)
	if err != nil {
		return err
	}
	dst = resolveConflict(dst)
	if simulate {
		out.Msg(res, fmt.Sprintf("Would move to %q", dst), output.LevelInfo, a.Name())
		res.Path = dst
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	if err := os.Rename(res.Path, dst); err != nil {
		// Rename fails across filesystems; fall back to copy+remove.
		if err := copyFile(res.Path, dst); err != nil {
			return err
		}
		if err := os.Remove(res.Path); err != nil {
			return err
		}
	}
	out.Msg(res, fmt.Sprintf("Moved to %q", dst), output.LevelInfo, a.Name())
	res.Path = dst
	return nil
}

// CopyAction copies the resource to a rendered destination.
type CopyAction struct {
	Dest string
}

func NewCopy(dest string) *CopyAction { return &CopyAction{Dest: dest} }

func (a *CopyAction) Name() string { return "copy" }

func (a *CopyAction) Apply(res *resource.Resource, simulate bool, out output.Output) error {
	dst, err := destinationFor(a.Dest, res)
	if err != nil {
		return err
	}
	dst = resolveConflict(dst)
	if simulate {
		out.Msg(res, fmt.Sprintf("Would copy to %q", dst), output.LevelInfo, a.Name())
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	if err := copyFile(res.Path, dst); err != nil {
		return err
	}
	out.Msg(res, fmt.Sprintf("Copied to %q", dst), output.LevelInfo, a.Name())
	return nil
}

// DeleteAction removes the resource. Directories are removed with their
// contents.
type DeleteAction struct{}

func NewDelete() *DeleteAction { return &DeleteAction{} }

func (a *DeleteAction) Name() string { return "delete" }

func (a *DeleteAction) Apply(res *resource.Resource, simulate bool, out output.Output) error {
	if simulate {
		out.Msg(res, "Would delete", output.LevelInfo, a.Name())
		return nil
	}
	if err := os.RemoveAll(res.Path); err != nil {
		return err
	}
	out.Msg(res, "Deleted", output.LevelInfo, a.Name())
	return nil
}

// EchoAction reports a rendered message without any filesystem effect.
type EchoAction struct {
	Message string
}

func NewEcho(msg string) *EchoAction { return &EchoAction{Message: msg} }

func (a *EchoAction) Name() string { return "echo" }

func (a *EchoAction) Apply(res *resource.Resource, _ bool, out output.Output) error {
	out.Msg(res, template.Format(a.Message, template.FieldsForPath(res.Path)), output.LevelInfo, a.Name())
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	outF, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(outF, in); err != nil {
		outF.Close()
		return err
	}
	return outF.Close()
}
