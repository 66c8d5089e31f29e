package importer

import "fmt"

type LogType string

const (
	LogSuccess LogType = "success"
	LogWarning LogType = "warning"
	LogError   LogType = "error"
)

type LogEntry struct {
	Type    LogType `json:"type"`
	Message string  `json:"message"`
}

// Report is the caller-facing outcome of one import run. Log entries keep
// input row order; NewRows counts rows actually written.
type Report struct {
	NewRows int        `json:"newRows"`
	Log     []LogEntry `json:"log"`
}

func newReport() *Report {
	return &Report{Log: []LogEntry{}}
}

func (r *Report) add(t LogType, format string, args ...interface{}) {
	r.Log = append(r.Log, LogEntry{Type: t, Message: fmt.Sprintf(format, args...)})
}
