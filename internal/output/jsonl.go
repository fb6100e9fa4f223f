package output

import (
	"encoding/json"
	"io"
	"os"
	"sync"
	"time"

	"github.com/tidyops/organize/internal/resource"
)

// JSONL renders every lifecycle event as one JSON object per line,
// suitable for piping into other tooling.
type JSONL struct {
	Writer io.Writer

	mu  sync.Mutex
	enc *json.Encoder
}

type jsonlRecord struct {
	Type       string `json:"type"`
	Time       string `json:"time"`
	Simulate   *bool  `json:"simulate,omitempty"`
	ConfigPath string `json:"config_path,omitempty"`
	WorkingDir string `json:"working_dir,omitempty"`
	Rule       string `json:"rule,omitempty"`
	RuleNr     *int   `json:"rule_nr,omitempty"`
	Path       string `json:"path,omitempty"`
	Level      string `json:"level,omitempty"`
	Sender     string `json:"sender,omitempty"`
	Msg        string `json:"msg,omitempty"`
	Success    *int   `json:"success,omitempty"`
	Errors     *int   `json:"errors,omitempty"`
}

func (j *JSONL) encode(rec jsonlRecord) {
	if j.enc == nil {
		w := j.Writer
		if w == nil {
			w = os.Stdout
		}
		j.enc = json.NewEncoder(w)
	}
	rec.Time = time.Now().Format(time.RFC3339)
	_ = j.enc.Encode(rec)
}

func (j *JSONL) Start(simulate bool, configPath, workingDir string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.encode(jsonlRecord{
		Type:       "start",
		Simulate:   &simulate,
		ConfigPath: configPath,
		WorkingDir: workingDir,
	})
}

func (j *JSONL) Msg(res *resource.Resource, msg string, level Level, sender string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	rec := jsonlRecord{
		Type:   "msg",
		Level:  string(level),
		Sender: sender,
		Msg:    msg,
	}
	if res != nil {
		rec.Rule = res.RuleName
		nr := res.RuleNr
		rec.RuleNr = &nr
		rec.Path = res.Path
	}
	j.encode(rec)
}

func (j *JSONL) End(successCount, errorCount int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.encode(jsonlRecord{
		Type:    "end",
		Success: &successCount,
		Errors:  &errorCount,
	})
}
