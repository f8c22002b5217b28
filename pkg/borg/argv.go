// SPDX-License-Identifier: MPL-2.0

package borg

import (
	"fmt"
	"strings"
)

type (
	// OptionValue is one option ready for the argument vector. A Flag emits
	// the name alone; otherwise every element of Values emits the name
	// followed by that element.
	OptionValue struct {
		Name   string
		Values []string
		Flag   bool
	}

	// Change is one config key access: a query when it carries no value,
	// a mutation otherwise.
	Change struct {
		Name  string
		Value string
		set   bool
	}
)

// Flag returns a boolean option.
func Flag(name string) OptionValue {
	return OptionValue{Name: name, Flag: true}
}

// Scalar returns a single-valued option.
func Scalar(name, value string) OptionValue {
	return OptionValue{Name: name, Values: []string{value}}
}

// List returns a repeated option.
func List(name string, values ...string) OptionValue {
	return OptionValue{Name: name, Values: values}
}

// Query returns a Change that reads name.
func Query(name string) Change {
	return Change{Name: name}
}

// Set returns a Change that writes value to name.
func Set(name, value string) Change {
	return Change{Name: name, Value: value, set: true}
}

// IsMutation reports whether c writes a value.
func (c Change) IsMutation() bool { return c.set }

// Args returns the positionals config needs for c.
func (c Change) Args() []string {
	if c.set {
		return []string{c.Name, c.Value}
	}
	return []string{c.Name}
}

// ParseChange parses "name" as a query and "name=value" as a mutation.
func ParseChange(s string) Change {
	if name, value, ok := strings.Cut(s, "="); ok {
		return Set(name, value)
	}
	return Query(s)
}

// flagToken returns the command line spelling of an option name.
// Single letter names use the short form, e.g. "-o".
func flagToken(name string) string {
	if len(name) == 1 {
		return "-" + name
	}
	return "--" + name
}

// Tokens appends the command line tokens of o to dst.
func (o OptionValue) Tokens(dst []string) []string {
	flag := flagToken(o.Name)
	if o.Flag {
		return append(dst, flag)
	}
	for _, v := range o.Values {
		dst = append(dst, flag, v)
	}
	return dst
}

// BuildArgs assembles the argument vector: the command tokens, then opts in
// order, then positionals. Positionals are checked against the command's roles.
func BuildArgs(spec *CommandSpec, positionals []string, opts []OptionValue) ([]string, error) {
	if err := checkPositionals(spec, positionals); err != nil {
		return nil, err
	}

	args := make([]string, 0, len(spec.Tokens)+2*len(opts)+len(positionals))
	args = append(args, spec.Tokens...)
	for _, o := range opts {
		args = o.Tokens(args)
	}
	return append(args, positionals...), nil
}

func checkPositionals(spec *CommandSpec, positionals []string) error {
	var required, optional int
	many := false
	for _, p := range spec.Positionals {
		switch p.Card {
		case One:
			required++
		case Optional:
			optional++
		case Many:
			many = true
		}
	}

	if len(positionals) < required {
		missing := spec.Positionals[len(positionals)].Name
		return fmt.Errorf("borg %s: missing %s: %w", spec.Name, missing, ErrPositionals)
	}
	if !many && len(positionals) > required+optional {
		return fmt.Errorf("borg %s: %d unexpected positional argument(s): %w",
			spec.Name, len(positionals)-required-optional, ErrPositionals)
	}
	for i, p := range spec.Positionals {
		if p.Card == One && i < len(positionals) && positionals[i] == "" {
			return fmt.Errorf("borg %s: %s is empty: %w", spec.Name, p.Name, ErrPositionals)
		}
	}
	return nil
}
