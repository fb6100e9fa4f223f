// Package walker provides configurable directory-tree traversal with
// depth windows, base-name pattern filters and an index-assisted mode.
package walker

import (
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/tidyops/organize/internal/logger"
)

// Method selects the traversal order.
type Method string

const (
	// MethodBreadth yields a directory's own entries before descending.
	MethodBreadth Method = "breadth"
	// MethodDepth descends into subdirectories before yielding entries.
	MethodDepth Method = "depth"
)

// PathIndex is the slice of the file index the walker consumes in
// index-assisted mode. Any error makes the walker fall back to direct
// filesystem scanning.
type PathIndex interface {
	PathsByKind(isDir bool) ([]string, error)
}

// Options configures a Walker. Depth accounting starts with the traversal
// root at depth 0 and increments per descent: an entry is yielded only if
// its depth is at least MinDepth, and a subdirectory is descended into
// only if its depth is below MaxDepth. A nil MaxDepth is unbounded.
type Options struct {
	MinDepth int
	MaxDepth *int
	Method   Method

	// FilterDirs / FilterFiles are allow-lists of base-name globs; nil
	// allows everything. ExcludeDirs / ExcludeFiles are deny-lists and
	// take precedence, also for the descend decision.
	FilterDirs   []string
	FilterFiles  []string
	ExcludeDirs  []string
	ExcludeFiles []string

	// UseIndex queries the index instead of scanning the filesystem.
	UseIndex bool
}

// Walker traverses directory trees lazily. Sequences are finite and not
// restartable; a fresh call to Files or Dirs starts a new traversal.
type Walker struct {
	opts   Options
	index  PathIndex
	logger *zap.Logger
}

// New creates a walker. The index may be nil, in which case UseIndex
// falls back to filesystem scanning.
func New(opts Options, index PathIndex, log *zap.Logger) *Walker {
	if opts.Method == "" {
		opts.Method = MethodBreadth
	}
	return &Walker{opts: opts, index: index, logger: logger.OrNop(log)}
}

// Files yields matching file paths under root. If root is itself a file,
// exactly that path is yielded.
func (w *Walker) Files(root string) iter.Seq[string] {
	return func(yield func(string) bool) {
		if info, err := os.Stat(root); err == nil && !info.IsDir() {
			yield(root)
			return
		}
		if w.opts.UseIndex {
			if done := w.walkIndexed(root, false, yield); done {
				return
			}
		}
		w.walk(root, 0, true, false, newCollator(), yield)
	}
}

// Dirs yields matching directory paths under root. A non-directory root
// yields nothing.
func (w *Walker) Dirs(root string) iter.Seq[string] {
	return func(yield func(string) bool) {
		if info, err := os.Stat(root); err != nil || !info.IsDir() {
			return
		}
		if w.opts.UseIndex {
			if done := w.walkIndexed(root, true, yield); done {
				return
			}
		}
		w.walk(root, 0, false, true, newCollator(), yield)
	}
}

// newCollator builds a numeric-aware collator so "file2" sorts before
// "file10". Collators are not safe for concurrent use; one per traversal.
func newCollator() *collate.Collator {
	return collate.New(language.Und, collate.Numeric, collate.Loose)
}

type scandirResult struct {
	dirs    []fs.DirEntry
	nondirs []fs.DirEntry
}

// scandir lists a directory, dropping symlinks unconditionally and
// sorting each class naturally. Unreadable directories scan as empty so
// traversal continues with siblings.
func (w *Walker) scandir(top string, collectFiles bool, c *collate.Collator) scandirResult {
	var result scandirResult
	entries, err := os.ReadDir(top)
	if err != nil {
		w.logger.Warn("skipping unreadable directory", zap.String("path", top), zap.Error(err))
		return result
	}
	for _, entry := range entries {
		if entry.Type()&fs.ModeSymlink != 0 {
			continue
		}
		if entry.IsDir() {
			result.dirs = append(result.dirs, entry)
		} else if collectFiles {
			result.nondirs = append(result.nondirs, entry)
		}
	}
	sortEntries(result.dirs, c)
	sortEntries(result.nondirs, c)
	return result
}

func sortEntries(entries []fs.DirEntry, c *collate.Collator) {
	sort.SliceStable(entries, func(i, j int) bool {
		return c.CompareString(entries[i].Name(), entries[j].Name()) < 0
	})
}

func patternMatch(name string, patterns []string) bool {
	for _, pat := range patterns {
		if matched, _ := filepath.Match(pat, name); matched {
			return true
		}
	}
	return false
}

func (w *Walker) shouldYieldFile(name string, depth int) bool {
	return depth >= w.opts.MinDepth &&
		!patternMatch(name, w.opts.ExcludeFiles) &&
		(w.opts.FilterFiles == nil || patternMatch(name, w.opts.FilterFiles))
}

type dirActions struct {
	toYield []fs.DirEntry
	toWalk  []fs.DirEntry
}

// dirActions decides, per subdirectory at the given depth, whether it is
// yielded and whether it is descended into. Exclusion wins over the
// allow-list for both decisions.
func (w *Walker) dirActions(entries []fs.DirEntry, depth int) dirActions {
	var result dirActions
	for _, entry := range entries {
		if patternMatch(entry.Name(), w.opts.ExcludeDirs) {
			continue
		}
		if w.opts.FilterDirs != nil && !patternMatch(entry.Name(), w.opts.FilterDirs) {
			continue
		}
		if w.opts.MaxDepth == nil || depth < *w.opts.MaxDepth {
			result.toWalk = append(result.toWalk, entry)
		}
		if depth >= w.opts.MinDepth {
			result.toYield = append(result.toYield, entry)
		}
	}
	return result
}

// walk recursively traverses top, whose own depth is lvl; its entries are
// at depth lvl+1. Returns false once the consumer stops.
func (w *Walker) walk(top string, lvl int, files, dirs bool, c *collate.Collator, yield func(string) bool) bool {
	entryDepth := lvl + 1
	result := w.scandir(top, files, c)

	yieldFiles := func() bool {
		if !files {
			return true
		}
		for _, entry := range result.nondirs {
			if w.shouldYieldFile(entry.Name(), entryDepth) {
				if !yield(filepath.Join(top, entry.Name())) {
					return false
				}
			}
		}
		return true
	}

	actions := w.dirActions(result.dirs, entryDepth)

	yieldDirs := func() bool {
		if !dirs {
			return true
		}
		for _, entry := range actions.toYield {
			if !yield(filepath.Join(top, entry.Name())) {
				return false
			}
		}
		return true
	}

	recurse := func() bool {
		for _, entry := range actions.toWalk {
			if !w.walk(filepath.Join(top, entry.Name()), entryDepth, files, dirs, c, yield) {
				return false
			}
		}
		return true
	}

	switch w.opts.Method {
	case MethodDepth:
		return recurse() && yieldFiles() && yieldDirs()
	default:
		return yieldFiles() && yieldDirs() && recurse()
	}
}

// walkIndexed serves a traversal from the index. It reports whether the
// index answered; false means the caller must fall back to scanning.
func (w *Walker) walkIndexed(root string, wantDirs bool, yield func(string) bool) bool {
	if w.index == nil {
		return false
	}
	paths, err := w.index.PathsByKind(wantDirs)
	if err != nil {
		w.logger.Debug("index unavailable, falling back to filesystem scan",
			zap.String("root", root), zap.Error(err))
		return false
	}
	for _, path := range paths {
		if !w.shouldYieldIndexed(path, root, wantDirs) {
			continue
		}
		if !yield(path) {
			return true
		}
	}
	return true
}

// shouldYieldIndexed applies the depth window and name filters to an
// indexed path, with depth computed relative to root by containment.
func (w *Walker) shouldYieldIndexed(path, root string, isDir bool) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) || rel == ".." {
		return false
	}
	depth := len(strings.Split(rel, string(os.PathSeparator)))
	if depth < w.opts.MinDepth {
		return false
	}
	if w.opts.MaxDepth != nil && depth > *w.opts.MaxDepth {
		return false
	}

	name := filepath.Base(path)
	if isDir {
		return !patternMatch(name, w.opts.ExcludeDirs) &&
			(w.opts.FilterDirs == nil || patternMatch(name, w.opts.FilterDirs))
	}
	return !patternMatch(name, w.opts.ExcludeFiles) &&
		(w.opts.FilterFiles == nil || patternMatch(name, w.opts.FilterFiles))
}
