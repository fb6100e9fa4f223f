package config

import "fmt"

// Error is a configuration-time failure. It is fatal to the run and is
// raised before any rule executes.
type Error struct {
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("config %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("config: %v", e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
