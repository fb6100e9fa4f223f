package config

// ShouldExecute decides whether a rule with ruleTags runs, given the
// run's requested tags and skip tags. The "always" and "never" override
// tags are evaluated before the general rule; keep the order intact.
func ShouldExecute(ruleTags, tags, skipTags []string) bool {
	rule := toSet(ruleTags)
	requested := toSet(tags)
	skip := toSet(skipTags)

	if rule["always"] && !skip["always"] {
		return true
	}
	if rule["never"] && !requested["never"] {
		return false
	}
	if len(requested) == 0 && len(skip) == 0 {
		return true
	}
	if len(rule) == 0 && len(requested) > 0 {
		return false
	}

	shouldRun := len(requested) == 0 || len(rule) == 0 || intersects(rule, requested)
	shouldSkip := intersects(rule, skip)
	return shouldRun && !shouldSkip
}

func toSet(tags []string) map[string]bool {
	set := make(map[string]bool, len(tags))
	for _, t := range tags {
		if t != "" {
			set[t] = true
		}
	}
	return set
}

func intersects(a, b map[string]bool) bool {
	for t := range a {
		if b[t] {
			return true
		}
	}
	return false
}
