package output

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/fatih/color"

	"github.com/tidyops/organize/internal/resource"
)

var (
	headerColor = color.New(color.Bold)
	ruleColor   = color.New(color.FgCyan)
	pathColor   = color.New(color.FgHiBlack)
	warnColor   = color.New(color.FgYellow)
	errorColor  = color.New(color.FgRed)
	okColor     = color.New(color.FgGreen)
)

// Default renders run output as colored, human-readable text. With
// ErrorsOnly set, informational messages are suppressed and only
// warnings, errors and the final summary are printed.
type Default struct {
	Writer     io.Writer
	ErrorsOnly bool

	mu       sync.Mutex
	simulate bool
	lastRule string
}

func (d *Default) writer() io.Writer {
	if d.Writer == nil {
		return os.Stdout
	}
	return d.Writer
}

func (d *Default) Start(simulate bool, configPath, workingDir string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.simulate = simulate
	d.lastRule = ""

	w := d.writer()
	if simulate {
		headerColor.Fprintln(w, "SIMULATION")
	}
	if configPath != "" {
		pathColor.Fprintf(w, "config: %s\n", configPath)
	}
	if workingDir != "" && workingDir != "." {
		pathColor.Fprintf(w, "working dir: %s\n", workingDir)
	}
}

func (d *Default) Msg(res *resource.Resource, msg string, level Level, sender string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.ErrorsOnly && level == LevelInfo {
		return
	}

	w := d.writer()
	if res != nil && res.RuleName != d.lastRule {
		d.lastRule = res.RuleName
		name := res.RuleName
		if name == "" {
			name = fmt.Sprintf("rule #%d", res.RuleNr+1)
		}
		ruleColor.Fprintf(w, "\n%s\n", name)
	}
	if res != nil {
		pathColor.Fprintf(w, "  %s\n", res.Path)
	}

	prefix := ""
	switch level {
	case LevelWarn:
		prefix = warnColor.Sprint("warning: ")
	case LevelError:
		prefix = errorColor.Sprint("error: ")
	}
	fmt.Fprintf(w, "    - [%s] %s%s\n", sender, prefix, msg)
}

func (d *Default) End(successCount, errorCount int) {
	d.mu.Lock()
	defer d.mu.Unlock()

	w := d.writer()
	fmt.Fprintln(w)
	if errorCount > 0 {
		errorColor.Fprintf(w, "%d error(s), %d success\n", errorCount, successCount)
	} else {
		okColor.Fprintf(w, "success (%d)\n", successCount)
	}
	if d.simulate {
		headerColor.Fprintln(w, "SIMULATION")
	}
}
