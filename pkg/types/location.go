// SPDX-License-Identifier: MPL-2.0

package types

import (
	"errors"
	"fmt"
	"strings"
)

// archiveSeparator joins a repository location and an archive name.
const archiveSeparator = "::"

var (
	// ErrInvalidRepository is the sentinel error wrapped by InvalidRepositoryError.
	ErrInvalidRepository = errors.New("invalid repository location")

	// ErrInvalidArchiveName is the sentinel error wrapped by InvalidArchiveNameError.
	ErrInvalidArchiveName = errors.New("invalid archive name")
)

type (
	// Repository is a borg repository location: a local path,
	// user@host:path, or an ssh:// URL.
	// The zero value ("") is invalid; borg falls back to BORG_REPO in that
	// case, so callers that rely on it pass "::archive" style locations instead.
	Repository string

	// InvalidRepositoryError is returned when a Repository is whitespace-only
	// or already carries an archive suffix.
	InvalidRepositoryError struct {
		Value Repository
	}

	// ArchiveName is the name of one archive inside a repository.
	ArchiveName string

	// InvalidArchiveNameError is returned when an ArchiveName is empty or
	// contains a path separator or the "::" separator.
	InvalidArchiveNameError struct {
		Value ArchiveName
	}
)

// String returns the string representation of the Repository.
func (r Repository) String() string { return string(r) }

// Validate returns an error if the Repository is invalid.
func (r Repository) Validate() error {
	if strings.TrimSpace(string(r)) == "" || strings.Contains(string(r), archiveSeparator) {
		return &InvalidRepositoryError{Value: r}
	}
	return nil
}

// Archive returns the "repository::archive" location for name.
func (r Repository) Archive(name ArchiveName) string {
	return string(r) + archiveSeparator + string(name)
}

// Error implements the error interface for InvalidRepositoryError.
func (e *InvalidRepositoryError) Error() string {
	return fmt.Sprintf("invalid repository location %q: must be non-empty and must not contain %q", e.Value, archiveSeparator)
}

// Unwrap returns ErrInvalidRepository for errors.Is() compatibility.
func (e *InvalidRepositoryError) Unwrap() error { return ErrInvalidRepository }

// String returns the string representation of the ArchiveName.
func (n ArchiveName) String() string { return string(n) }

// Validate returns an error if the ArchiveName is invalid.
func (n ArchiveName) Validate() error {
	s := string(n)
	if strings.TrimSpace(s) == "" || strings.Contains(s, "/") || strings.Contains(s, archiveSeparator) {
		return &InvalidArchiveNameError{Value: n}
	}
	return nil
}

// Error implements the error interface for InvalidArchiveNameError.
func (e *InvalidArchiveNameError) Error() string {
	return fmt.Sprintf("invalid archive name %q: must be non-empty without '/' or %q", e.Value, archiveSeparator)
}

// Unwrap returns ErrInvalidArchiveName for errors.Is() compatibility.
func (e *InvalidArchiveNameError) Unwrap() error { return ErrInvalidArchiveName }

// SplitArchive splits a "repository::archive" location. The archive part is
// empty when the location names a repository only.
func SplitArchive(location string) (Repository, ArchiveName) {
	repo, archive, found := strings.Cut(location, archiveSeparator)
	if !found {
		return Repository(location), ""
	}
	return Repository(repo), ArchiveName(archive)
}
