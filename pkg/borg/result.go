// SPDX-License-Identifier: MPL-2.0

package borg

import (
	"time"

	"github.com/borgwrap/borgwrap/pkg/types"
)

// Output kinds.
const (
	KindList      OutputKind = "list"
	KindStats     OutputKind = "stats"
	KindProg      OutputKind = "prog"
	KindDiff      OutputKind = "diff"
	KindInfo      OutputKind = "info"
	KindCompact   OutputKind = "compact"
	KindExtract   OutputKind = "extract"
	KindTar       OutputKind = "tar"
	KindBenchmark OutputKind = "benchmark"
	KindChanges   OutputKind = "changes"
)

type (
	// OutputKind names one output a command can produce.
	OutputKind string

	// Outputs holds the values of two or more active kinds.
	Outputs map[OutputKind]any

	// Result is the outcome of one finished invocation.
	Result struct {
		Command string
		// Args is the full argument vector, launcher and binary included.
		Args []string
		// Kinds lists the active output kinds in profile order.
		Kinds []OutputKind
		// Output is nil, the bare value of the single active kind, or
		// Outputs when two or more kinds are active.
		Output   any
		ExitCode types.ExitCode
		Stdout   []byte
		Stderr   []byte
		// Incomplete is set when the process was cancelled.
		Incomplete bool
		Duration   time.Duration
		// Messages holds the diagnostics borg logged with --log-json.
		Messages []LogRecord
	}
)

// Err returns an ExitStatusError when borg exited nonzero, nil otherwise.
// Warnings (exit status 1 and 100-127) count as failures too; use
// ExitCode.IsWarning to tell them apart.
func (r *Result) Err() error {
	if r.ExitCode.IsSuccess() {
		return nil
	}
	e := &ExitStatusError{Command: r.Command, ExitCode: r.ExitCode}
	for i := len(r.Messages) - 1; i >= 0; i-- {
		if r.Messages[i].Level() >= levelRank["ERROR"] {
			e.Message = r.Messages[i].Message
			break
		}
	}
	return e
}

// Get returns the value of kind, whatever the shape of Output.
func (r *Result) Get(kind OutputKind) (any, bool) {
	if outs, ok := r.Output.(Outputs); ok {
		v, found := outs[kind]
		return v, found
	}
	if len(r.Kinds) == 1 && r.Kinds[0] == kind {
		return r.Output, true
	}
	return nil, false
}

// assemble shapes the values of the active kinds into a Result output.
func assemble(kinds []OutputKind, values map[OutputKind]any, wantJSON bool) any {
	switch len(kinds) {
	case 0:
		if wantJSON {
			return []any{}
		}
		return nil
	case 1:
		return values[kinds[0]]
	default:
		outs := make(Outputs, len(kinds))
		for _, k := range kinds {
			outs[k] = values[k]
		}
		return outs
	}
}
