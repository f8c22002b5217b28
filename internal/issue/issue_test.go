// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"strings"
	"testing"
)

func TestId_Constants(t *testing.T) {
	ids := []Id{
		BorgNotFoundId,
		LaunchFailedId,
		ConfigLoadFailedId,
		InvalidOptionsId,
		ProfileMismatchId,
		NonzeroExitId,
		PassphraseRequiredId,
		EnvFileNotFoundId,
	}

	seen := make(map[Id]bool)
	for _, id := range ids {
		if seen[id] {
			t.Errorf("duplicate ID: %d", id)
		}
		seen[id] = true
		if Get(id) == nil {
			t.Errorf("Get(%d) returned nil", id)
		}
	}

	if BorgNotFoundId != 1 {
		t.Errorf("BorgNotFoundId = %d, want 1", BorgNotFoundId)
	}
}

func TestIssue_MarkdownMsg(t *testing.T) {
	issue := Get(BorgNotFoundId)
	if issue == nil {
		t.Fatal("Get(BorgNotFoundId) returned nil")
	}

	if issue.Id() != BorgNotFoundId {
		t.Errorf("issue.Id() = %d, want %d", issue.Id(), BorgNotFoundId)
	}
	if !strings.Contains(string(issue.MarkdownMsg()), "borg executable not found") {
		t.Error("MarkdownMsg() should contain 'borg executable not found'")
	}
}

func TestIssue_LinksAreCloned(t *testing.T) {
	issue := Get(NonzeroExitId)
	links := issue.DocLinks()
	if len(links) == 0 {
		t.Fatal("DocLinks() returned no links")
	}

	links[0] = "modified"
	if issue.DocLinks()[0] == "modified" {
		t.Error("DocLinks() should return a clone")
	}
	if issue.ExtLinks() != nil && len(issue.ExtLinks()) != 0 {
		t.Errorf("ExtLinks() = %v, want empty", issue.ExtLinks())
	}
}

func TestIssue_Render(t *testing.T) {
	orig := render
	defer func() { render = orig }()

	var got string
	render = func(in, _ string) (string, error) {
		got = in
		return in, nil
	}

	out, err := Get(InvalidOptionsId).Render("dark")
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if out != got {
		t.Errorf("Render() = %q, want renderer output", out)
	}
	if !strings.Contains(got, "## See also:") {
		t.Error("rendered markdown should list doc links")
	}

	render = func(in, _ string) (string, error) {
		got = in
		return in, nil
	}
	if _, err := Get(ProfileMismatchId).Render("dark"); err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if strings.Contains(got, "See also") {
		t.Error("issue without links should not render a See also section")
	}
}

func TestValues(t *testing.T) {
	values := Values()
	if len(values) != len(issues) {
		t.Fatalf("Values() returned %d issues, want %d", len(values), len(issues))
	}
	for i := 1; i < len(values); i++ {
		if values[i-1].Id() >= values[i].Id() {
			t.Errorf("Values() not ordered at %d", i)
		}
	}
}

func TestGet_Unknown(t *testing.T) {
	if Get(Id(9999)) != nil {
		t.Error("Get() should return nil for an unknown id")
	}
}
