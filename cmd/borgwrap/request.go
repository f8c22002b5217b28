// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/borgwrap/borgwrap/pkg/borg"

	"github.com/spf13/pflag"
)

// requestFlags are the flags every command that runs borg accepts.
type requestFlags struct {
	options []string
	changes []string
}

func (f *requestFlags) register(fs *pflag.FlagSet) {
	fs.StringArrayVarP(&f.options, "option", "o", nil, "borg option as name or name=value (repeat for lists)")
	fs.StringArrayVar(&f.changes, "change", nil, "config key to query (name) or set (name=value)")
}

// request builds a borg request from the positional CLI arguments. A
// two-word command such as "key export" may be given as two arguments.
func (f *requestFlags) request(args []string) (borg.Request, error) {
	name, positionals, err := splitCommand(args)
	if err != nil {
		return borg.Request{}, err
	}
	opts, err := parseOptions(f.options)
	if err != nil {
		return borg.Request{}, err
	}
	req := borg.Request{Command: name, Positionals: positionals}
	if len(opts) > 0 {
		req.Options = opts
	}
	for _, c := range f.changes {
		req.Changes = append(req.Changes, borg.ParseChange(c))
	}
	return req, nil
}

func splitCommand(args []string) (string, []string, error) {
	if len(args) == 0 {
		return "", nil, errors.New("missing borg command")
	}
	if len(args) > 1 {
		if spec, err := borg.Lookup(args[0] + " " + args[1]); err == nil {
			return spec.Name, args[2:], nil
		}
	}
	spec, err := borg.Lookup(args[0])
	if err != nil {
		return "", nil, err
	}
	return spec.Name, args[1:], nil
}

// parseOptions turns repeated name[=value] pairs into an option map. A bare
// name sets a switch; a repeated name collects its values into a list.
func parseOptions(pairs []string) (map[string]any, error) {
	out := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		name, value, hasValue := strings.Cut(pair, "=")
		name = strings.TrimLeft(strings.TrimSpace(name), "-")
		if name == "" {
			return nil, fmt.Errorf("option %q has no name", pair)
		}
		if !hasValue {
			out[name] = true
			continue
		}
		switch prev := out[name].(type) {
		case nil:
			out[name] = value
		case string:
			out[name] = []string{prev, value}
		case []string:
			out[name] = append(prev, value)
		default:
			return nil, fmt.Errorf("option %q given both as a switch and with a value", name)
		}
	}
	return out, nil
}
