// Package template resolves the templated strings that appear in rule
// locations, working directories and action destinations.
package template

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Render expands a location or destination path: a leading "~" becomes the
// user's home directory and $VAR / ${VAR} references are replaced from the
// environment. The result is cleaned but not required to exist.
func Render(path string) (string, error) {
	expanded := os.ExpandEnv(path)
	if expanded == "~" || strings.HasPrefix(expanded, "~"+string(os.PathSeparator)) || strings.HasPrefix(expanded, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("expanding %q: %w", path, err)
		}
		expanded = filepath.Join(home, expanded[1:])
	}
	return filepath.Clean(expanded), nil
}

// Fields holds the per-resource values available to message and
// destination templates.
type Fields struct {
	Path string
	Name string
	Dir  string
	Ext  string
}

// FieldsForPath derives the template fields from a concrete path.
func FieldsForPath(path string) Fields {
	return Fields{
		Path: path,
		Name: filepath.Base(path),
		Dir:  filepath.Dir(path),
		Ext:  strings.TrimPrefix(filepath.Ext(path), "."),
	}
}

// Format replaces placeholders in a template with values from the fields.
func Format(template string, f Fields) string {
	str := template

	str = strings.ReplaceAll(str, "{}", f.Path)
	str = strings.ReplaceAll(str, "{path}", f.Path)
	str = strings.ReplaceAll(str, "{name}", f.Name)
	str = strings.ReplaceAll(str, "{dir}", f.Dir)
	str = strings.ReplaceAll(str, "{ext}", f.Ext)

	// Quoted versions for templates that feed shell-ish consumers.
	str = strings.ReplaceAll(str, `{"path"}`, strconv.Quote(f.Path))
	str = strings.ReplaceAll(str, `{"name"}`, strconv.Quote(f.Name))
	str = strings.ReplaceAll(str, `{"dir"}`, strconv.Quote(f.Dir))

	return str
}
