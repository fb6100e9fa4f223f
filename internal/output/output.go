// Package output defines the reporting contract of a run and the console
// renderers behind it.
package output

import "github.com/tidyops/organize/internal/resource"

// Level classifies a reported message.
type Level string

const (
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Output receives the lifecycle of one run: exactly one Start, zero or
// more Msg calls and exactly one End. Under parallel execution Msg calls
// may arrive out of order, so implementations must be safe for concurrent
// use.
type Output interface {
	Start(simulate bool, configPath, workingDir string)
	Msg(res *resource.Resource, msg string, level Level, sender string)
	End(successCount, errorCount int)
}
