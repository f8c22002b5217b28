// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"strings"

	"github.com/borgwrap/borgwrap/pkg/borg"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
)

func newCommandsCommand(app *App) *cobra.Command {
	var raw bool
	cmd := &cobra.Command{
		Use:   "commands [command]",
		Short: "Describe the borg commands borgwrap can run",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			specs := borg.Commands()
			if len(args) > 0 {
				name, _, err := splitCommand(args)
				if err != nil {
					return err
				}
				spec, _ := borg.Lookup(name)
				specs = []*borg.CommandSpec{spec}
			}

			md := catalogMarkdown(specs)
			if raw {
				_, err := fmt.Fprint(app.stdout, md)
				return err
			}
			style := "dark"
			if !isTerminal(app.stdout) {
				style = "notty"
			}
			r, err := glamour.NewTermRenderer(glamour.WithStandardStyle(style), glamour.WithWordWrap(100))
			if err != nil {
				return err
			}
			out, err := r.Render(md)
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(app.stdout, out)
			return err
		},
	}
	cmd.Flags().BoolVar(&raw, "markdown", false, "print the catalog as markdown")
	return cmd
}

// catalogMarkdown describes each command: usage, option groups, options and
// the outputs it can produce.
func catalogMarkdown(specs []*borg.CommandSpec) string {
	var b strings.Builder
	b.WriteString("# borg commands\n")
	for _, spec := range specs {
		fmt.Fprintf(&b, "\n## %s\n\n%s\n\n", spec.Name, spec.Summary)
		fmt.Fprintf(&b, "`borg %s %s`\n\n", strings.Join(spec.Tokens, " "), spec.Usage())

		if len(spec.Categories) > 0 {
			groups := make([]string, len(spec.Categories))
			for i, c := range spec.Categories {
				groups[i] = string(c)
			}
			fmt.Fprintf(&b, "- **groups**: %s\n", strings.Join(groups, ", "))
		}
		if names := spec.OptionNames(); len(names) > 0 {
			fmt.Fprintf(&b, "- **options**: %s\n", strings.Join(names, ", "))
		}
		for _, rule := range spec.Profile.Rules {
			variants := make([]string, len(rule.Variants))
			for i, v := range rule.Variants {
				variants[i] = fmt.Sprintf("%s (%s) when %s", v.Channel, v.Select, v.When)
			}
			fmt.Fprintf(&b, "- **%s** when %s: %s\n", rule.Kind, rule.Trigger, strings.Join(variants, ", else "))
		}
	}
	return b.String()
}
