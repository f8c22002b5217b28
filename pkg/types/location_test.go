// SPDX-License-Identifier: MPL-2.0

package types

import (
	"errors"
	"testing"
)

func TestRepositoryValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		value     Repository
		wantValid bool
	}{
		{"local path", "/srv/backup/repo", true},
		{"ssh url", "ssh://borg@host:2222/./repo", true},
		{"scp style", "borg@host:repo", true},
		{"empty", "", false},
		{"whitespace", "   ", false},
		{"archive suffix", "/srv/repo::daily", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.value.Validate()
			if (err == nil) != tt.wantValid {
				t.Fatalf("Repository(%q).Validate() = %v, wantValid %v", tt.value, err, tt.wantValid)
			}
			if !tt.wantValid && !errors.Is(err, ErrInvalidRepository) {
				t.Errorf("error does not wrap ErrInvalidRepository: %v", err)
			}
		})
	}
}

func TestArchiveNameValidate(t *testing.T) {
	t.Parallel()

	valid := []ArchiveName{"daily-2026-10-19", "{hostname}-{now}"}
	for _, name := range valid {
		if err := name.Validate(); err != nil {
			t.Errorf("ArchiveName(%q).Validate() = %v, want nil", name, err)
		}
	}

	invalid := []ArchiveName{"", " ", "a/b", "a::b"}
	for _, name := range invalid {
		err := name.Validate()
		if !errors.Is(err, ErrInvalidArchiveName) {
			t.Errorf("ArchiveName(%q).Validate() = %v, want ErrInvalidArchiveName", name, err)
		}
	}
}

func TestRepositoryArchiveRoundTrip(t *testing.T) {
	t.Parallel()

	repo := Repository("/srv/repo")
	loc := repo.Archive("daily")
	if loc != "/srv/repo::daily" {
		t.Fatalf("Archive() = %q, want %q", loc, "/srv/repo::daily")
	}

	gotRepo, gotArchive := SplitArchive(loc)
	if gotRepo != repo || gotArchive != "daily" {
		t.Errorf("SplitArchive(%q) = %q, %q", loc, gotRepo, gotArchive)
	}

	gotRepo, gotArchive = SplitArchive("/srv/repo")
	if gotRepo != repo || gotArchive != "" {
		t.Errorf("SplitArchive(repo only) = %q, %q", gotRepo, gotArchive)
	}
}
