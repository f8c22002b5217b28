// SPDX-License-Identifier: MPL-2.0

package borg

import (
	"log/slog"
	"strings"

	"github.com/goccy/go-json"
)

const minStatsRuleLen = 10

// demuxer splits the captured streams of one process into output values.
type demuxer struct {
	stdout []byte
	stderr string
	logger *slog.Logger

	records []LogRecord
	parsed  bool
}

func newDemuxer(stdout, stderr []byte, logger *slog.Logger) *demuxer {
	return &demuxer{stdout: stdout, stderr: string(stderr), logger: logger}
}

// logRecords parses stderr as --log-json records on first use.
func (d *demuxer) logRecords() []LogRecord {
	if !d.parsed {
		d.records = parseLogRecords(d.stderr)
		d.parsed = true
	}
	return d.records
}

// value returns what out reads from the captured streams.
func (d *demuxer) value(out ActiveOutput) any {
	switch out.Channel {
	case StdoutJSON:
		return decodeJSON(string(d.stdout), d.logger)
	case StdoutRaw:
		return d.stdout
	case StdoutPlain:
		return plainText(string(d.stdout))
	case StderrLog:
		return selectRecords(d.logRecords(), out.Select)
	case StderrPlain:
		block, outside := splitStatsBlock(d.stderr)
		switch out.Select {
		case SelectStatsBlock:
			return plainText(block)
		case SelectOutsideStatsBlock:
			return plainText(outside)
		default:
			return plainText(d.stderr)
		}
	default:
		return nil
	}
}

// decodeJSON decodes text, trying the whole text, then one value per
// line, then concatenated objects. Text that none of these decode is
// returned as a string. Empty text decodes to an empty list.
func decodeJSON(text string, logger *slog.Logger) any {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return []any{}
	}

	var whole any
	err := json.Unmarshal([]byte(trimmed), &whole)
	if err == nil {
		return whole
	}

	if lines, ok := decodeJSONLines(trimmed); ok {
		return lines
	}

	var joined []any
	if json.Unmarshal([]byte("["+strings.ReplaceAll(trimmed, "}{", "},{")+"]"), &joined) == nil {
		return joined
	}

	if logger != nil {
		logger.Debug("stdout is not valid JSON, returning text", "error", err, "bytes", len(text))
	}
	return plainText(text)
}

func decodeJSONLines(text string) ([]any, bool) {
	out := []any{}
	for line := range strings.Lines(text) {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var v any
		if err := json.Unmarshal([]byte(line), &v); err != nil {
			return nil, false
		}
		out = append(out, v)
	}
	return out, true
}

// plainText removes a single trailing line terminator.
func plainText(s string) string {
	switch {
	case strings.HasSuffix(s, "\r\n"):
		return s[:len(s)-2]
	case strings.HasSuffix(s, "\n"), strings.HasSuffix(s, "\r"):
		return s[:len(s)-1]
	default:
		return s
	}
}

func isStatsRule(line string) bool {
	line = strings.TrimRight(line, "\r\n")
	return len(line) >= minStatsRuleLen && strings.Trim(line, "-") == ""
}

// splitStatsBlock separates the dashed statistics block borg prints for
// --stats from the rest of stderr. The block runs from the first to the
// last dashed rule. Without a rule both parts are the whole text.
func splitStatsBlock(text string) (block, outside string) {
	var lines []string
	for line := range strings.Lines(text) {
		lines = append(lines, line)
	}

	first, last := -1, -1
	for i, line := range lines {
		if isStatsRule(line) {
			if first < 0 {
				first = i
			}
			last = i
		}
	}
	if first < 0 {
		return text, text
	}

	block = strings.Join(lines[first:last+1], "")
	outside = strings.Join(lines[:first], "") + strings.Join(lines[last+1:], "")
	return block, outside
}
