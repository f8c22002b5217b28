// SPDX-License-Identifier: MPL-2.0

package borg

import (
	"slices"
	"strings"
)

// Condition operators.
const (
	OpAlways ConditionOp = iota
	OpAnyFlag
	OpPositionalEquals
	OpHasChanges
)

// Output channels.
const (
	StdoutPlain Channel = "stdout-plain"
	StdoutJSON  Channel = "stdout-json"
	StdoutRaw   Channel = "stdout-raw"
	StderrPlain Channel = "stderr-plain"
	StderrLog   Channel = "stderr-log"
)

// Selectors pick the part of a channel an output owns.
const (
	SelectWhole             Selector = "whole"
	SelectStatsBlock        Selector = "stats-block"
	SelectOutsideStatsBlock Selector = "outside-stats-block"
	SelectListRecords       Selector = "list-records"
	SelectStatsRecords      Selector = "stats-records"
	SelectRepositoryRecords Selector = "repository-records"
	SelectProgressRecords   Selector = "progress-records"
)

type (
	// ConditionOp is the test a Condition applies.
	ConditionOp int

	// Condition is a predicate over a request.
	Condition struct {
		Op    ConditionOp
		Flags []string
		Index int
		Value string
	}

	// Channel is one stream borg writes, in one encoding.
	Channel string

	// Selector picks a part of a channel.
	Selector string

	// Variant is one way an output can be produced.
	Variant struct {
		When    Condition
		Channel Channel
		Select  Selector
	}

	// OutputRule activates Kind when Trigger holds. The first variant whose
	// condition holds decides where the output is read from.
	OutputRule struct {
		Kind     OutputKind
		Trigger  Condition
		Variants []Variant
	}

	// OutputProfile is the ordered rule table of a command.
	OutputProfile struct {
		Rules []OutputRule
		// Conflicts lists flag pairs that cannot be set together.
		Conflicts [][2]string
	}

	// ProfileInput is what output resolution looks at.
	ProfileInput struct {
		// Flags holds every boolean option set to true.
		Flags       map[string]bool
		Positionals []string
		Changes     int
	}

	// ActiveOutput is an output kind resolved for one request.
	ActiveOutput struct {
		Kind    OutputKind
		Channel Channel
		Select  Selector
	}
)

// Always holds for every request.
func Always() Condition { return Condition{Op: OpAlways} }

// WhenAny holds when any of flags is set.
func WhenAny(flags ...string) Condition { return Condition{Op: OpAnyFlag, Flags: flags} }

// WhenPositional holds when positional index equals value.
func WhenPositional(index int, value string) Condition {
	return Condition{Op: OpPositionalEquals, Index: index, Value: value}
}

// WhenChanges holds when the request carries config changes.
func WhenChanges() Condition { return Condition{Op: OpHasChanges} }

// Holds evaluates c against in.
func (c Condition) Holds(in ProfileInput) bool {
	switch c.Op {
	case OpAlways:
		return true
	case OpAnyFlag:
		for _, f := range c.Flags {
			if in.Flags[f] {
				return true
			}
		}
		return false
	case OpPositionalEquals:
		return c.Index < len(in.Positionals) && in.Positionals[c.Index] == c.Value
	case OpHasChanges:
		return in.Changes > 0
	default:
		return false
	}
}

func (c Condition) String() string {
	switch c.Op {
	case OpAlways:
		return "always"
	case OpAnyFlag:
		return strings.Join(prefixFlags(c.Flags), " or ")
	case OpPositionalEquals:
		return "positional " + c.Value
	case OpHasChanges:
		return "changes given"
	default:
		return "never"
	}
}

// IsStdout reports whether the channel reads standard output.
func (c Channel) IsStdout() bool {
	return strings.HasPrefix(string(c), "stdout")
}

// Kinds returns the kinds the profile can produce, in rule order.
func (p OutputProfile) Kinds() []OutputKind {
	out := make([]OutputKind, 0, len(p.Rules))
	for _, r := range p.Rules {
		out = append(out, r.Kind)
	}
	return out
}

// Resolve returns the outputs active for in. It fails with a
// ProfileMismatchError when conflicting flags are set or when more than
// one active output would read stdout.
func (s *CommandSpec) Resolve(in ProfileInput) ([]ActiveOutput, error) {
	for _, pair := range s.Profile.Conflicts {
		if in.Flags[pair[0]] && in.Flags[pair[1]] {
			return nil, &ProfileMismatchError{Command: s.Name, Flags: []string{pair[0], pair[1]}}
		}
	}

	var (
		active      []ActiveOutput
		stdoutKinds []OutputKind
	)
	for _, rule := range s.Profile.Rules {
		if !rule.Trigger.Holds(in) {
			continue
		}
		for _, v := range rule.Variants {
			if !v.When.Holds(in) {
				continue
			}
			active = append(active, ActiveOutput{Kind: rule.Kind, Channel: v.Channel, Select: v.Select})
			if v.Channel.IsStdout() {
				stdoutKinds = append(stdoutKinds, rule.Kind)
			}
			break
		}
	}
	if len(stdoutKinds) > 1 {
		return nil, &ProfileMismatchError{Command: s.Name, Kinds: stdoutKinds}
	}
	return active, nil
}

// expectsJSON reports whether in selects a structured output format.
func expectsJSON(in ProfileInput) bool {
	return slices.ContainsFunc([]string{"json", "json-lines", "log-json"}, func(f string) bool {
		return in.Flags[f]
	})
}
