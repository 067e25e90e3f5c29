package diagnostics

import (
	"time"

	"github.com/rs/zerolog"
)

type Severity string

const (
	Info Severity = "info"
	Warn Severity = "warning"
	Err  Severity = "error"
)

type Diagnostic struct {
	Severity       Severity       `json:"severity"`
	Code           string         `json:"code"`
	Summary        string         `json:"summary"`
	Detail         string         `json:"detail,omitempty"`
	LikelyCauses   []string       `json:"likely_causes,omitempty"`
	SuggestedFixes []string       `json:"suggested_fixes,omitempty"`
	Evidence       map[string]any `json:"evidence,omitempty"`
	Time           time.Time      `json:"time"`
}

// Reporter is a diagnostic channel. Implementations must be safe for
// concurrent use: best-effort senders report from their own goroutines.
type Reporter interface {
	Report(d Diagnostic)
}

type ReporterFunc func(d Diagnostic)

func (f ReporterFunc) Report(d Diagnostic) { f(d) }

// Fanout reports to every member in order.
type Fanout []Reporter

func (f Fanout) Report(d Diagnostic) {
	for _, r := range f {
		if r != nil {
			r.Report(d)
		}
	}
}

// LogReporter writes diagnostics as structured log lines.
type LogReporter struct{ Logger zerolog.Logger }

func (r LogReporter) Report(d Diagnostic) {
	var ev *zerolog.Event
	switch d.Severity {
	case Err:
		ev = r.Logger.Error()
	case Warn:
		ev = r.Logger.Warn()
	default:
		ev = r.Logger.Info()
	}
	ev = ev.Str("code", d.Code).Time("at", d.Time)
	if d.Detail != "" {
		ev = ev.Str("detail", d.Detail)
	}
	if len(d.Evidence) > 0 {
		ev = ev.Interface("evidence", d.Evidence)
	}
	ev.Msg(d.Summary)
}
