// SPDX-License-Identifier: MPL-2.0

package borg

import (
	"strings"

	"github.com/goccy/go-json"
)

// Log record types borg emits with --log-json.
const (
	RecordLogMessage      = "log_message"
	RecordFileStatus      = "file_status"
	RecordArchiveProgress = "archive_progress"
	RecordProgressPercent = "progress_percent"
	RecordProgressMessage = "progress_message"
)

const (
	loggerOutputPrefix = "borg.output."
	loggerList         = "borg.output.list"
	loggerStats        = "borg.output.stats"
	loggerRepository   = "borg.repository"
)

var levelRank = map[string]int{
	"DEBUG":    10,
	"INFO":     20,
	"WARNING":  30,
	"ERROR":    40,
	"CRITICAL": 50,
}

// LogRecord is one line of borg's --log-json stderr.
type LogRecord struct {
	Type      string  `json:"type"`
	Time      float64 `json:"time,omitempty"`
	Name      string  `json:"name,omitempty"`
	Levelname string  `json:"levelname,omitempty"`
	Message   string  `json:"message,omitempty"`
	Msgid     string  `json:"msgid,omitempty"`
	Status    string  `json:"status,omitempty"`
	Path      string  `json:"path,omitempty"`
	// Raw holds every field of the record as decoded.
	Raw map[string]any `json:"-"`
}

// parseLogRecord decodes line, reporting false unless it is a JSON object
// with a type field.
func parseLogRecord(line string) (LogRecord, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "{") {
		return LogRecord{}, false
	}
	var raw map[string]any
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return LogRecord{}, false
	}
	typ, ok := raw["type"].(string)
	if !ok {
		return LogRecord{}, false
	}

	rec := LogRecord{
		Type:      typ,
		Name:      stringField(raw, "name"),
		Levelname: stringField(raw, "levelname"),
		Message:   stringField(raw, "message"),
		Msgid:     stringField(raw, "msgid"),
		Status:    stringField(raw, "status"),
		Path:      stringField(raw, "path"),
		Raw:       raw,
	}
	if t, ok := raw["time"].(float64); ok {
		rec.Time = t
	}
	return rec, true
}

func stringField(raw map[string]any, key string) string {
	s, _ := raw[key].(string)
	return s
}

// parseLogRecords decodes every record line of stderr, skipping the rest.
func parseLogRecords(stderr string) []LogRecord {
	var out []LogRecord
	for line := range strings.Lines(stderr) {
		if rec, ok := parseLogRecord(line); ok {
			out = append(out, rec)
		}
	}
	return out
}

// IsProgress reports whether r is a progress record.
func (r LogRecord) IsProgress() bool {
	return strings.HasPrefix(r.Type, "progress_") || r.Type == RecordArchiveProgress
}

// IsOutput reports whether r carries command output rather than a diagnostic.
func (r LogRecord) IsOutput() bool {
	return r.Type == RecordFileStatus || r.IsProgress() || strings.HasPrefix(r.Name, loggerOutputPrefix)
}

// Level returns the numeric level of a log message, or 0 when unknown.
func (r LogRecord) Level() int {
	return levelRank[strings.ToUpper(r.Levelname)]
}

// selectRecords returns what sel picks out of records: raw record maps for
// list, repository and progress selectors, joined message text for stats.
func selectRecords(records []LogRecord, sel Selector) any {
	if sel == SelectStatsRecords {
		var msgs []string
		for _, r := range records {
			if r.Name == loggerStats {
				msgs = append(msgs, r.Message)
			}
		}
		return strings.Join(msgs, "\n")
	}

	var keep func(LogRecord) bool
	switch sel {
	case SelectListRecords:
		keep = func(r LogRecord) bool { return r.Type == RecordFileStatus || r.Name == loggerList }
	case SelectRepositoryRecords:
		keep = func(r LogRecord) bool { return r.Name == loggerRepository }
	case SelectProgressRecords:
		keep = LogRecord.IsProgress
	default:
		keep = func(LogRecord) bool { return true }
	}

	out := []any{}
	for _, r := range records {
		if keep(r) {
			out = append(out, r.Raw)
		}
	}
	return out
}

// diagnostics returns the log messages at or above minLevel that are not
// command output.
func diagnostics(records []LogRecord, minLevel int) []LogRecord {
	var out []LogRecord
	for _, r := range records {
		if r.Type == RecordLogMessage && !r.IsOutput() && r.Level() >= minLevel {
			out = append(out, r)
		}
	}
	return out
}

// logThreshold picks the diagnostic level from the common options, falling
// back to def.
func logThreshold(c *CommonOptions, def int) int {
	switch {
	case c.Critical:
		return levelRank["CRITICAL"]
	case c.Error:
		return levelRank["ERROR"]
	case c.Warning:
		return levelRank["WARNING"]
	case c.Info, c.Verbose:
		return levelRank["INFO"]
	case c.Debug:
		return levelRank["DEBUG"]
	default:
		return def
	}
}

// ParseLevel maps a level name such as "warning" to its rank.
func ParseLevel(name string) (int, bool) {
	if strings.EqualFold(name, "verbose") {
		name = "info"
	}
	rank, ok := levelRank[strings.ToUpper(name)]
	return rank, ok
}
