// Package engine orchestrates rule execution: resource discovery through
// the walker, filter evaluation and action application, sequentially or
// on a worker pool, plus single-path execution for watch events.
package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/tidyops/organize/internal/config"
	"github.com/tidyops/organize/internal/filter"
	"github.com/tidyops/organize/internal/index"
	"github.com/tidyops/organize/internal/logger"
	"github.com/tidyops/organize/internal/output"
	"github.com/tidyops/organize/internal/parallel"
	"github.com/tidyops/organize/internal/resource"
	"github.com/tidyops/organize/internal/template"
	"github.com/tidyops/organize/internal/walker"
)

// Engine executes a config's rules. The index is optional; when present
// it backs the walker's index-assisted mode.
type Engine struct {
	index  *index.FileIndex
	logger *zap.Logger
}

// New creates an engine. Both arguments may be nil.
func New(ix *index.FileIndex, log *zap.Logger) *Engine {
	return &Engine{index: ix, logger: logger.OrNop(log)}
}

// RunOptions configures one execution call.
type RunOptions struct {
	Simulate   bool
	Output     output.Output
	Tags       []string
	SkipTags   []string
	WorkingDir string

	// MaxWorkers bounds ExecuteParallel's pool; < 1 means the number of
	// CPUs.
	MaxWorkers int

	// UseIndex makes rule walkers query the file index instead of
	// scanning, falling back to scanning when the index cannot answer.
	UseIndex bool
}

func (o *RunOptions) out() output.Output {
	if o.Output == nil {
		return &output.Default{}
	}
	return o.Output
}

// resolveWorkingDir renders the working directory template. Relative rule
// locations are resolved against it.
func resolveWorkingDir(dir string) (string, error) {
	if dir == "" {
		return ".", nil
	}
	rendered, err := template.Render(dir)
	if err != nil {
		return "", &config.Error{Err: fmt.Errorf("working dir: %w", err)}
	}
	return rendered, nil
}

// Execute runs every selected rule in declared order, accumulating the
// run summary. The summary is reported exactly once, also when a rule
// fails mid-run.
func (e *Engine) Execute(cfg *config.Config, opts RunOptions) error {
	workingDir, err := resolveWorkingDir(opts.WorkingDir)
	if err != nil {
		return err
	}

	out := opts.out()
	out.Start(opts.Simulate, cfg.Path, workingDir)

	var summary Summary
	defer func() {
		out.End(summary.Success, summary.Errors)
	}()

	for ruleNr := range cfg.Rules {
		rule := &cfg.Rules[ruleNr]
		if !rule.Enabled {
			continue
		}
		if !config.ShouldExecute(rule.Tags, opts.Tags, opts.SkipTags) {
			continue
		}
		summary.Add(e.executeRule(rule, ruleNr, workingDir, opts, out))
	}
	return nil
}

// ExecuteParallel runs the selected rules on a bounded worker pool. A
// failing rule is counted, never fatal; the pool drains to completion.
func (e *Engine) ExecuteParallel(cfg *config.Config, opts RunOptions) error {
	workingDir, err := resolveWorkingDir(opts.WorkingDir)
	if err != nil {
		return err
	}

	out := opts.out()
	out.Start(opts.Simulate, cfg.Path, workingDir)

	var summary Summary
	defer func() {
		out.End(summary.Success, summary.Errors)
	}()

	var selected []int
	for ruleNr := range cfg.Rules {
		rule := &cfg.Rules[ruleNr]
		if rule.Enabled && config.ShouldExecute(rule.Tags, opts.Tags, opts.SkipTags) {
			selected = append(selected, ruleNr)
		}
	}

	summaries := parallel.Map(selected, func(ruleNr int) (Summary, error) {
		return e.executeRule(&cfg.Rules[ruleNr], ruleNr, workingDir, opts, out), nil
	}, opts.MaxWorkers, e.logger)

	for _, s := range summaries {
		summary.Add(s)
	}
	return nil
}

// ExecuteForPath runs only the rules whose location scope contains the
// given path, against exactly that one resource. No directory walk is
// performed.
func (e *Engine) ExecuteForPath(cfg *config.Config, path string, opts RunOptions) error {
	workingDir, err := resolveWorkingDir(opts.WorkingDir)
	if err != nil {
		return err
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}

	out := opts.out()
	out.Start(opts.Simulate, cfg.Path, workingDir)

	var summary Summary
	defer func() {
		out.End(summary.Success, summary.Errors)
	}()

	for ruleNr := range cfg.Rules {
		rule := &cfg.Rules[ruleNr]
		if !rule.Enabled {
			continue
		}
		if !config.ShouldExecute(rule.Tags, opts.Tags, opts.SkipTags) {
			continue
		}

		res := resource.New(path, "", rule.Name, ruleNr)
		res.WorkingDir = workingDir
		if rule.Targets == config.TargetFiles && !res.IsFile() {
			continue
		}
		if rule.Targets == config.TargetDirs && !res.IsDir() {
			continue
		}

		baseDir, ok := e.locationContaining(rule, path)
		if !ok {
			continue
		}
		res.BaseDir = baseDir

		summary.Add(e.executeResource(rule, res, opts, out, "execute_for_path"))
	}
	return nil
}

// locationContaining reports the first resolved location root that
// strictly contains path. The root itself does not match.
func (e *Engine) locationContaining(rule *config.Rule, path string) (string, bool) {
	for _, loc := range rule.Locations {
		root, err := template.Render(loc.Path)
		if err != nil {
			e.logger.Warn("cannot resolve location", zap.String("location", loc.Path), zap.Error(err))
			continue
		}
		if abs, err := filepath.Abs(root); err == nil {
			root = abs
		}
		rel, err := filepath.Rel(root, path)
		if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
			continue
		}
		return root, true
	}
	return "", false
}

// executeRule discovers resources for one rule and applies its filters
// and actions. Failures stay scoped to a single resource.
func (e *Engine) executeRule(rule *config.Rule, ruleNr int, workingDir string, opts RunOptions, out output.Output) Summary {
	var summary Summary

	for _, loc := range rule.Locations {
		root, err := template.Render(loc.Path)
		if err != nil {
			out.Msg(nil, fmt.Sprintf("location %q: %v", loc.Path, err), output.LevelError, "walker")
			summary.Errors++
			continue
		}
		if !filepath.IsAbs(root) && workingDir != "." {
			root = filepath.Join(workingDir, root)
		}

		w := walker.New(e.walkerOptions(rule, loc, opts), e.index, e.logger)

		paths := w.Files(root)
		if rule.Targets == config.TargetDirs {
			paths = w.Dirs(root)
		}

		for path := range paths {
			res := resource.New(path, root, rule.Name, ruleNr)
			res.WorkingDir = workingDir
			summary.Add(e.executeResource(rule, res, opts, out, "engine"))
		}
	}
	return summary
}

// walkerOptions derives the walker configuration from a rule and one of
// its locations. A location without an explicit max_depth inherits the
// rule's subfolders setting: unbounded when set, immediate children only
// when not.
func (e *Engine) walkerOptions(rule *config.Rule, loc config.Location, opts RunOptions) walker.Options {
	maxDepth := loc.MaxDepth
	if maxDepth == nil && !rule.Subfolders {
		one := 1
		maxDepth = &one
	}
	return walker.Options{
		MinDepth: loc.MinDepth,
		MaxDepth: maxDepth,
		Method:   walker.MethodBreadth,
		UseIndex: opts.UseIndex,
	}
}

// executeResource evaluates a rule's filters against one resource and,
// on a match, applies the actions in order. An action error aborts the
// remaining actions for this resource only.
func (e *Engine) executeResource(rule *config.Rule, res *resource.Resource, opts RunOptions, out output.Output, sender string) Summary {
	var summary Summary

	matched, err := filter.Combine(rule.Filters, rule.FilterMode, res)
	if err != nil {
		out.Msg(res, err.Error(), output.LevelError, sender)
		summary.Errors++
		return summary
	}
	if !matched {
		return summary
	}

	for _, act := range rule.Actions {
		if err := act.Apply(res, opts.Simulate, out); err != nil {
			out.Msg(res, fmt.Sprintf("%s: %v", act.Name(), err), output.LevelError, sender)
			summary.Errors++
			return summary
		}
	}
	summary.Success++
	return summary
}
