// Package filter holds the closed set of predicates a rule can evaluate
// against a resource.
package filter

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidyops/organize/internal/resource"
)

// Mode controls how the results of a rule's filters are combined.
type Mode string

const (
	ModeAll  Mode = "all"
	ModeAny  Mode = "any"
	ModeNone Mode = "none"
)

// Filter is a predicate evaluated against a single resource. Matches may
// record values in res.Vars for later consumption by actions.
type Filter interface {
	Name() string
	Matches(res *resource.Resource) (bool, error)
}

// Combine reduces the ordered filter list over one resource according to
// the combination mode. An error from any filter aborts the evaluation.
func Combine(filters []Filter, mode Mode, res *resource.Resource) (bool, error) {
	switch mode {
	case ModeAll, "":
		for _, f := range filters {
			ok, err := f.Matches(res)
			if err != nil {
				return false, fmt.Errorf("filter %s: %w", f.Name(), err)
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil
	case ModeAny:
		if len(filters) == 0 {
			return true, nil
		}
		for _, f := range filters {
			ok, err := f.Matches(res)
			if err != nil {
				return false, fmt.Errorf("filter %s: %w", f.Name(), err)
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	case ModeNone:
		for _, f := range filters {
			ok, err := f.Matches(res)
			if err != nil {
				return false, fmt.Errorf("filter %s: %w", f.Name(), err)
			}
			if ok {
				return false, nil
			}
		}
		return true, nil
	}
	return false, fmt.Errorf("unknown filter mode %q", mode)
}

// NameFilter matches the resource's base name against glob patterns.
type NameFilter struct {
	Patterns []string
}

func NewName(patterns ...string) *NameFilter {
	return &NameFilter{Patterns: patterns}
}

func (f *NameFilter) Name() string { return "name" }

func (f *NameFilter) Matches(res *resource.Resource) (bool, error) {
	base := filepath.Base(res.Path)
	for _, pat := range f.Patterns {
		matched, err := filepath.Match(pat, base)
		if err != nil {
			return false, fmt.Errorf("pattern %q: %w", pat, err)
		}
		if matched {
			res.Vars["name"] = base
			return true, nil
		}
	}
	return false, nil
}

// ExtensionFilter matches the resource's file extension against a set of
// extensions given without the leading dot.
type ExtensionFilter struct {
	Extensions []string
}

func NewExtension(exts ...string) *ExtensionFilter {
	return &ExtensionFilter{Extensions: exts}
}

func (f *ExtensionFilter) Name() string { return "extension" }

func (f *ExtensionFilter) Matches(res *resource.Resource) (bool, error) {
	ext := strings.TrimPrefix(filepath.Ext(res.Path), ".")
	for _, want := range f.Extensions {
		if strings.EqualFold(ext, strings.TrimPrefix(want, ".")) {
			res.Vars["extension"] = ext
			return true, nil
		}
	}
	return false, nil
}

// SizeFilter matches files by size in bytes. Zero bounds are unset.
type SizeFilter struct {
	Min int64
	Max int64
}

func NewSize(min, max int64) *SizeFilter {
	return &SizeFilter{Min: min, Max: max}
}

func (f *SizeFilter) Name() string { return "size" }

func (f *SizeFilter) Matches(res *resource.Resource) (bool, error) {
	info, err := os.Stat(res.Path)
	if err != nil {
		return false, err
	}
	size := info.Size()
	if f.Min > 0 && size < f.Min {
		return false, nil
	}
	if f.Max > 0 && size > f.Max {
		return false, nil
	}
	res.Vars["size"] = fmt.Sprintf("%d", size)
	return true, nil
}

// EmptyFilter matches zero-length files and directories without entries.
type EmptyFilter struct{}

func NewEmpty() *EmptyFilter { return &EmptyFilter{} }

func (f *EmptyFilter) Name() string { return "empty" }

func (f *EmptyFilter) Matches(res *resource.Resource) (bool, error) {
	info, err := os.Stat(res.Path)
	if err != nil {
		return false, err
	}
	if info.IsDir() {
		entries, err := os.ReadDir(res.Path)
		if err != nil {
			return false, err
		}
		return len(entries) == 0, nil
	}
	return info.Size() == 0, nil
}
