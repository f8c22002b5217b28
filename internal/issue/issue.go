// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/slices"
)

type Id int

const (
	BorgNotFoundId Id = iota + 1
	LaunchFailedId
	ConfigLoadFailedId
	InvalidOptionsId
	ProfileMismatchId
	NonzeroExitId
	PassphraseRequiredId
	EnvFileNotFoundId
)

type MarkdownMsg string

type HttpLink string

type Renderer interface {
	Render(in string, stylePath string) (string, error)
}

type Issue struct {
	id       Id          // ID used to lookup the issue
	mdMsg    MarkdownMsg // Markdown text that will be rendered
	docLinks []HttpLink  // borg documentation pages relevant to the issue
	extLinks []HttpLink  // external links that might be useful for the user
}

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

func (i *Issue) ExtLinks() []HttpLink {
	return slices.Clone(i.extLinks)
}

func (i *Issue) Render(stylePath string) (string, error) {
	extraMd := ""
	if len(i.docLinks) > 0 || len(i.extLinks) > 0 {
		extraMd += "\n\n## See also:\n"
		for _, link := range i.docLinks {
			extraMd += "\n- " + string(link)
		}
		for _, link := range i.extLinks {
			extraMd += "\n- " + string(link)
		}
	}
	return render(string(i.mdMsg)+extraMd, stylePath)
}

var (
	render = glamour.Render

	borgNotFoundIssue = &Issue{
		id: BorgNotFoundId,
		mdMsg: `
# borg executable not found!

borgwrap runs the ` + "`borg`" + ` binary and could not find it.

## Things you can try:
- Install borg with your package manager:
~~~
$ sudo apt install borgbackup
~~~

- Point borgwrap at an explicit binary:
~~~
$ borgwrap --borg /opt/borg/bin/borg run info /srv/repo
~~~

- Or set it in your config file:
~~~toml
binary = "/opt/borg/bin/borg"
~~~`,
		docLinks: []HttpLink{"https://borgbackup.readthedocs.io/en/stable/installation.html"},
	}

	launchFailedIssue = &Issue{
		id: LaunchFailedId,
		mdMsg: `
# Failed to launch borg!

The process could not be started. This is different from borg running and
reporting an error: no exit code was produced.

## Things you can try:
- Check that the launcher prefix (e.g. ` + "`sudo -u backup`" + `) exists and is executable
- Check file permissions on the borg binary
- Run with ` + "`--verbose`" + ` to see the full argument vector`,
	}

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load configuration!

The borgwrap configuration file could not be read or did not validate.

## Things you can try:
- Print the path that is being read:
~~~
$ borgwrap config path
~~~

- Print the effective configuration:
~~~
$ borgwrap config show
~~~

- Recreate a default configuration:
~~~
$ borgwrap config init
~~~`,
	}

	invalidOptionsIssue = &Issue{
		id: InvalidOptionsId,
		mdMsg: `
# Invalid borg options!

One or more options are not valid for the command being run.

## Things you can try:
- List the options supported by each command:
~~~
$ borgwrap commands
~~~

- Option names accept both ` + "`dry_run`" + ` and ` + "`dry-run`" + ` spellings
- Umask values must be four octal digits, e.g. ` + "`0077`",
		docLinks: []HttpLink{"https://borgbackup.readthedocs.io/en/stable/usage/general.html"},
	}

	profileMismatchIssue = &Issue{
		id: ProfileMismatchId,
		mdMsg: `
# Conflicting output options!

The selected options would make borg write two different formats to the
same stream, so the output cannot be parsed.

## Things you can try:
- Use either ` + "`json`" + ` or ` + "`json_lines`" + ` on ` + "`list`" + `, not both
- Drop ` + "`progress`" + ` when requesting JSON output on stdout`,
	}

	nonzeroExitIssue = &Issue{
		id: NonzeroExitId,
		mdMsg: `
# borg reported an error!

borg exited with a non-zero exit code. With modern exit codes, 1 and
100-127 are warnings, 2 and 3-99 are errors, and codes above 128 mean
borg was killed by a signal.

## Things you can try:
- Read the messages borg printed on stderr
- Re-run with ` + "`--log-level debug`" + ``,
		docLinks: []HttpLink{"https://borgbackup.readthedocs.io/en/stable/usage/general.html#return-codes"},
	}

	passphraseRequiredIssue = &Issue{
		id: PassphraseRequiredId,
		mdMsg: `
# Repository passphrase required!

borgwrap never lets borg prompt for a passphrase. Provide it through the
environment instead.

## Things you can try:
- Put it in an env file:
~~~
BORG_PASSPHRASE=...
~~~

- Or use a passcommand:
~~~
$ export BORG_PASSCOMMAND="pass show backup/borg"
~~~`,
		docLinks: []HttpLink{"https://borgbackup.readthedocs.io/en/stable/usage/general.html#environment-variables"},
	}

	envFileNotFoundIssue = &Issue{
		id: EnvFileNotFoundId,
		mdMsg: `
# Environment file not found!

The env file passed with ` + "`--env-file`" + ` or the ` + "`env_file`" + ` config key
does not exist.

## Things you can try:
- Check the path for typos
- Omit the option to read ` + "`.env`" + ` from the working directory`,
	}

	issues = map[Id]*Issue{
		borgNotFoundIssue.Id():       borgNotFoundIssue,
		launchFailedIssue.Id():       launchFailedIssue,
		configLoadFailedIssue.Id():   configLoadFailedIssue,
		invalidOptionsIssue.Id():     invalidOptionsIssue,
		profileMismatchIssue.Id():    profileMismatchIssue,
		nonzeroExitIssue.Id():        nonzeroExitIssue,
		passphraseRequiredIssue.Id(): passphraseRequiredIssue,
		envFileNotFoundIssue.Id():    envFileNotFoundIssue,
	}
)

// Values returns every catalog entry ordered by id.
func Values() []*Issue {
	out := make([]*Issue, 0, len(issues))
	for _, i := range issues {
		out = append(out, i)
	}
	slices.SortFunc(out, func(a, b *Issue) int { return int(a.id) - int(b.id) })
	return out
}

func Get(id Id) *Issue {
	return issues[id]
}
