// SPDX-License-Identifier: MPL-2.0

package borg

import (
	"fmt"
	"sort"
)

const (
	// One is a required positional.
	One Cardinality = iota
	// Optional is a positional that may be left out.
	Optional
	// Many absorbs every remaining positional, possibly none.
	Many
)

// Option categories.
const (
	CategoryCommon          Category = "common"
	CategoryExclusion       Category = "exclusion"
	CategoryExclusionInput  Category = "exclusion-input"
	CategoryExclusionOutput Category = "exclusion-output"
	CategoryFilesystem      Category = "filesystem"
	CategoryArchiveInput    Category = "archive-input"
	CategoryArchivePattern  Category = "archive-pattern"
	CategoryArchiveOutput   Category = "archive-output"
)

type (
	// Cardinality says how many values a positional role takes.
	Cardinality int

	// Category names a group of options shared between commands.
	Category string

	// Positional is one positional role of a command.
	Positional struct {
		Name string
		Card Cardinality
	}

	// CommandSpec describes one borg subcommand. Specs are registered once
	// and never mutated.
	CommandSpec struct {
		Name        string
		Tokens      []string
		Positionals []Positional
		Categories  []Category
		Profile     OutputProfile
		Summary     string

		newOptions func() Options
	}
)

var catalog = map[string]*CommandSpec{}

func register(spec *CommandSpec) {
	if _, dup := catalog[spec.Name]; dup {
		panic(fmt.Sprintf("borg: command %q registered twice", spec.Name))
	}
	if spec.newOptions == nil {
		spec.newOptions = func() Options { return &CommonOptions{} }
	}
	catalog[spec.Name] = spec
}

// Lookup returns the spec registered under name.
func Lookup(name string) (*CommandSpec, error) {
	spec, ok := catalog[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, name)
	}
	return spec, nil
}

// Commands returns every registered spec sorted by name.
func Commands() []*CommandSpec {
	out := make([]*CommandSpec, 0, len(catalog))
	for _, spec := range catalog {
		out = append(out, spec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// NewOptions returns a zero options struct of the type the command accepts.
func (s *CommandSpec) NewOptions() Options {
	return s.newOptions()
}

// OptionNames returns the option names the command accepts.
func (s *CommandSpec) OptionNames() []string {
	return optionFields(s.NewOptions())
}

// Usage renders the positional roles, e.g. "ARCHIVE [PATH...]".
func (s *CommandSpec) Usage() string {
	var out string
	for i, p := range s.Positionals {
		if i > 0 {
			out += " "
		}
		switch p.Card {
		case One:
			out += p.Name
		case Optional:
			out += "[" + p.Name + "]"
		case Many:
			out += "[" + p.Name + "...]"
		}
	}
	return out
}

func (c Cardinality) String() string {
	switch c {
	case One:
		return "one"
	case Optional:
		return "optional"
	case Many:
		return "many"
	default:
		return "unknown"
	}
}
