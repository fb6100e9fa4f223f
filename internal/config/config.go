// Package config holds the rule data model, its YAML decoding and the
// tag-based rule selection predicate.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tidyops/organize/internal/action"
	"github.com/tidyops/organize/internal/filter"
)

// TargetKind selects whether a rule operates on files or directories.
type TargetKind string

const (
	TargetFiles TargetKind = "files"
	TargetDirs  TargetKind = "dirs"
)

// Location is one traversal root of a rule. MaxDepth nil means the depth
// bound is inherited from the owning rule's subfolders setting.
type Location struct {
	Path     string
	MinDepth int
	MaxDepth *int
}

// UnmarshalYAML accepts either a bare path string or a mapping with
// path / min_depth / max_depth keys.
func (l *Location) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		return node.Decode(&l.Path)
	}
	var raw struct {
		Path     string `yaml:"path"`
		MinDepth int    `yaml:"min_depth"`
		MaxDepth *int   `yaml:"max_depth"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	if raw.Path == "" {
		return fmt.Errorf("location needs a path")
	}
	l.Path = raw.Path
	l.MinDepth = raw.MinDepth
	l.MaxDepth = raw.MaxDepth
	return nil
}

// Rule combines locations, filters and actions into one executable unit.
// Rules are immutable for the duration of a run.
type Rule struct {
	Name       string
	Enabled    bool
	Targets    TargetKind
	Locations  []Location
	Subfolders bool
	Tags       []string
	FilterMode filter.Mode
	Filters    []filter.Filter
	Actions    []action.Action
}

// UnmarshalYAML decodes a rule, applying defaults (enabled, targets:
// files, filter_mode: all) and building the filter/action variants.
func (r *Rule) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		Name       string      `yaml:"name"`
		Enabled    *bool       `yaml:"enabled"`
		Targets    string      `yaml:"targets"`
		Locations  []Location  `yaml:"locations"`
		Subfolders bool        `yaml:"subfolders"`
		Tags       []string    `yaml:"tags"`
		FilterMode string      `yaml:"filter_mode"`
		Filters    []yaml.Node `yaml:"filters"`
		Actions    []yaml.Node `yaml:"actions"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}

	r.Name = raw.Name
	r.Enabled = raw.Enabled == nil || *raw.Enabled
	r.Locations = raw.Locations
	r.Subfolders = raw.Subfolders
	r.Tags = raw.Tags

	switch strings.ToLower(raw.Targets) {
	case "", string(TargetFiles):
		r.Targets = TargetFiles
	case string(TargetDirs):
		r.Targets = TargetDirs
	default:
		return fmt.Errorf("unknown targets %q (want files or dirs)", raw.Targets)
	}

	switch filter.Mode(strings.ToLower(raw.FilterMode)) {
	case "", filter.ModeAll:
		r.FilterMode = filter.ModeAll
	case filter.ModeAny:
		r.FilterMode = filter.ModeAny
	case filter.ModeNone:
		r.FilterMode = filter.ModeNone
	default:
		return fmt.Errorf("unknown filter_mode %q (want all, any or none)", raw.FilterMode)
	}

	for i := range raw.Filters {
		f, err := decodeFilter(&raw.Filters[i])
		if err != nil {
			return err
		}
		r.Filters = append(r.Filters, f)
	}
	for i := range raw.Actions {
		a, err := decodeAction(&raw.Actions[i])
		if err != nil {
			return err
		}
		r.Actions = append(r.Actions, a)
	}
	return nil
}

// kindAndValue splits a catalog entry node: either a bare kind name or a
// single-key mapping of kind to its arguments.
func kindAndValue(node *yaml.Node) (string, *yaml.Node, error) {
	if node.Kind == yaml.ScalarNode {
		var kind string
		if err := node.Decode(&kind); err != nil {
			return "", nil, err
		}
		return kind, nil, nil
	}
	if node.Kind == yaml.MappingNode && len(node.Content) == 2 {
		return node.Content[0].Value, node.Content[1], nil
	}
	return "", nil, fmt.Errorf("expected a name or a single-key mapping at line %d", node.Line)
}

func stringList(node *yaml.Node) ([]string, error) {
	if node.Kind == yaml.ScalarNode {
		var single string
		if err := node.Decode(&single); err != nil {
			return nil, err
		}
		return []string{single}, nil
	}
	var list []string
	if err := node.Decode(&list); err != nil {
		return nil, err
	}
	return list, nil
}

func decodeFilter(node *yaml.Node) (filter.Filter, error) {
	kind, value, err := kindAndValue(node)
	if err != nil {
		return nil, err
	}
	switch kind {
	case "name":
		if value == nil {
			return nil, fmt.Errorf("filter name needs a pattern")
		}
		patterns, err := stringList(value)
		if err != nil {
			return nil, err
		}
		return filter.NewName(patterns...), nil
	case "extension":
		if value == nil {
			return nil, fmt.Errorf("filter extension needs at least one extension")
		}
		exts, err := stringList(value)
		if err != nil {
			return nil, err
		}
		return filter.NewExtension(exts...), nil
	case "size":
		var raw struct {
			Min int64 `yaml:"min"`
			Max int64 `yaml:"max"`
		}
		if value != nil {
			if err := value.Decode(&raw); err != nil {
				return nil, err
			}
		}
		return filter.NewSize(raw.Min, raw.Max), nil
	case "empty":
		return filter.NewEmpty(), nil
	}
	return nil, fmt.Errorf("unknown filter %q", kind)
}

func decodeAction(node *yaml.Node) (action.Action, error) {
	kind, value, err := kindAndValue(node)
	if err != nil {
		return nil, err
	}

	dest := func() (string, error) {
		if value == nil {
			return "", fmt.Errorf("action %s needs a destination", kind)
		}
		if value.Kind == yaml.ScalarNode {
			var d string
			return d, value.Decode(&d)
		}
		var raw struct {
			Dest string `yaml:"dest"`
		}
		if err := value.Decode(&raw); err != nil {
			return "", err
		}
		if raw.Dest == "" {
			return "", fmt.Errorf("action %s needs a dest", kind)
		}
		return raw.Dest, nil
	}

	switch kind {
	case "move":
		d, err := dest()
		if err != nil {
			return nil, err
		}
		return action.NewMove(d), nil
	case "copy":
		d, err := dest()
		if err != nil {
			return nil, err
		}
		return action.NewCopy(d), nil
	case "delete":
		return action.NewDelete(), nil
	case "echo":
		if value == nil {
			return nil, fmt.Errorf("action echo needs a message")
		}
		var msg string
		if err := value.Decode(&msg); err != nil {
			return nil, err
		}
		return action.NewEcho(msg), nil
	}
	return nil, fmt.Errorf("unknown action %q", kind)
}

// Config is the validated in-memory rule set for one run.
type Config struct {
	Rules []Rule `yaml:"rules"`

	// Path is the source file, kept for diagnostics. Empty when the
	// config came from a string or stdin.
	Path string `yaml:"-"`
}

// FromString parses and validates a YAML config.
func FromString(text, path string) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal([]byte(text), &cfg); err != nil {
		return nil, &Error{Path: path, Err: err}
	}
	cfg.Path = path
	if err := cfg.validate(); err != nil {
		return nil, &Error{Path: path, Err: err}
	}
	return &cfg, nil
}

// FromFile reads, parses and validates a YAML config file.
func FromFile(path string) (*Config, error) {
	text, err := os.ReadFile(path)
	if err != nil {
		return nil, &Error{Path: path, Err: err}
	}
	return FromString(string(text), path)
}

func (c *Config) validate() error {
	if len(c.Rules) == 0 {
		return fmt.Errorf("no rules defined")
	}
	for i, rule := range c.Rules {
		if len(rule.Locations) == 0 {
			return fmt.Errorf("rule #%d (%s): no locations", i+1, ruleLabel(rule))
		}
		for _, loc := range rule.Locations {
			if loc.MinDepth < 0 {
				return fmt.Errorf("rule #%d (%s): negative min_depth", i+1, ruleLabel(rule))
			}
			if loc.MaxDepth != nil && *loc.MaxDepth < loc.MinDepth {
				return fmt.Errorf("rule #%d (%s): max_depth below min_depth", i+1, ruleLabel(rule))
			}
		}
		if len(rule.Actions) == 0 {
			return fmt.Errorf("rule #%d (%s): no actions", i+1, ruleLabel(rule))
		}
	}
	return nil
}

func ruleLabel(r Rule) string {
	if r.Name != "" {
		return r.Name
	}
	return "unnamed"
}
