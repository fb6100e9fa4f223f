// Package resource defines the unit of work passed between the execution
// engine, filters and actions.
package resource

import "os"

// Resource is one concrete filesystem path being evaluated against one
// rule. It is created per matched path per rule invocation and discarded
// after a single action pass.
type Resource struct {
	Path     string
	BaseDir  string
	RuleName string
	RuleNr   int

	// WorkingDir anchors relative action destinations, mirroring how
	// relative rule locations are resolved. Empty means the process cwd.
	WorkingDir string

	// Vars carries match data produced by filters for consumption by
	// actions within the same pass.
	Vars map[string]string
}

// New creates a resource for a discovered path.
func New(path, baseDir, ruleName string, ruleNr int) *Resource {
	return &Resource{
		Path:     path,
		BaseDir:  baseDir,
		RuleName: ruleName,
		RuleNr:   ruleNr,
		Vars:     make(map[string]string),
	}
}

// IsDir reports whether the resource currently points at a directory.
// A vanished path reports false for both IsDir and IsFile.
func (r *Resource) IsDir() bool {
	info, err := os.Stat(r.Path)
	return err == nil && info.IsDir()
}

// IsFile reports whether the resource currently points at a regular file.
func (r *Resource) IsFile() bool {
	info, err := os.Stat(r.Path)
	return err == nil && info.Mode().IsRegular()
}
