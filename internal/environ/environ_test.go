// SPDX-License-Identifier: MPL-2.0

package environ

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/borgwrap/borgwrap/internal/testutil"
)

func fixedBase(kv ...string) Option {
	return WithBase(func() []string { return slices.Clone(kv) })
}

func TestManager_Defaults(t *testing.T) {
	m := New(fixedBase("PATH=/usr/bin", "BORG_EXIT_CODES=legacy"))

	env := m.Environ()
	if env[0] != "PATH=/usr/bin" || env[1] != "BORG_EXIT_CODES=legacy" {
		t.Errorf("base variables should come first in order, got %v", env[:2])
	}
	if v, _ := m.Lookup("BORG_EXIT_CODES"); v != "legacy" {
		t.Errorf("BORG_EXIT_CODES = %q, base value must win over the default", v)
	}

	for k, want := range Defaults() {
		if k == "BORG_EXIT_CODES" {
			continue
		}
		got, ok := m.Lookup(k)
		if !ok || got != want {
			t.Errorf("%s = %q (present %v), want %q", k, got, ok, want)
		}
	}
	if !slices.Contains(env, "BORG_PASSPHRASE=") {
		t.Error("empty BORG_PASSPHRASE default should be present")
	}
}

func TestManager_SetVars(t *testing.T) {
	m := New(fixedBase("BORG_REPO=/old"))

	if err := m.Set("", map[string]string{"BORG_REPO": "/new", "BORG_PASSPHRASE": "s3cret"}); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	if v, _ := m.Lookup("BORG_REPO"); v != "/new" {
		t.Errorf("BORG_REPO = %q, overrides must win over the base", v)
	}
	if v, _ := m.Lookup("BORG_PASSPHRASE"); v != "s3cret" {
		t.Errorf("BORG_PASSPHRASE = %q, overrides must win over defaults", v)
	}
	if got := m.Overrides(); len(got) != 2 {
		t.Errorf("Overrides() = %v", got)
	}
}

func TestManager_SetFile(t *testing.T) {
	dir := t.TempDir()
	path := testutil.MustWriteFile(t, filepath.Join(dir, "borg.env"),
		"BORG_REPO=ssh://backup@host/./repo\nexport BORG_PASSPHRASE='two words'\n")

	m := New(fixedBase())
	if err := m.Set(path, map[string]string{"BORG_REPO": "/from-vars"}); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if v, _ := m.Lookup("BORG_PASSPHRASE"); v != "two words" {
		t.Errorf("BORG_PASSPHRASE = %q", v)
	}
	if v, _ := m.Lookup("BORG_REPO"); v != "/from-vars" {
		t.Errorf("BORG_REPO = %q, vars must override the file", v)
	}
}

func TestManager_SetMissingFile(t *testing.T) {
	m := New(fixedBase())
	err := m.Set(filepath.Join(t.TempDir(), "missing.env"), nil)

	if !errors.Is(err, ErrEnvFile) || !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("Set() error = %v, want ErrEnvFile wrapping ErrNotExist", err)
	}
	var efe *EnvFileError
	if !errors.As(err, &efe) || efe.Path == "" {
		t.Errorf("error should be *EnvFileError with a path, got %T", err)
	}
}

func TestManager_SetDefaultEnvFile(t *testing.T) {
	dir := t.TempDir()
	defer testutil.MustChdir(t, dir)()

	m := New(fixedBase())
	if err := m.Set("", nil); err != nil {
		t.Fatalf("Set() without .env error = %v", err)
	}
	if len(m.Overrides()) != 0 {
		t.Error("no overrides expected without a .env file")
	}

	testutil.MustWriteFile(t, filepath.Join(dir, DefaultEnvFile), "BORG_RSH=ssh -i key\n")
	if err := m.Set("", nil); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if v, _ := m.Lookup("BORG_RSH"); v != "ssh -i key" {
		t.Errorf("BORG_RSH = %q", v)
	}
}

func TestManager_Unset(t *testing.T) {
	t.Run("named", func(t *testing.T) {
		m := New(fixedBase("HOME=/root", "BORG_REPO=/base"))
		m.Unset("BORG_REPO", "BORG_PASSPHRASE")

		if _, ok := m.Lookup("BORG_REPO"); ok {
			t.Error("base variable should be removed")
		}
		if _, ok := m.Lookup("BORG_PASSPHRASE"); ok {
			t.Error("default variable should be removed")
		}
		if _, ok := m.Lookup("HOME"); !ok {
			t.Error("unrelated variable should be kept")
		}
	})

	t.Run("last set", func(t *testing.T) {
		m := New(fixedBase())
		if err := m.Set("", map[string]string{"A": "1"}); err != nil {
			t.Fatal(err)
		}
		if err := m.Set("", map[string]string{"B": "2", "C": "3"}); err != nil {
			t.Fatal(err)
		}
		m.Unset()

		if _, ok := m.Lookup("A"); !ok {
			t.Error("A came from an earlier Set and should be kept")
		}
		for _, k := range []string{"B", "C"} {
			if _, ok := m.Lookup(k); ok {
				t.Errorf("%s should be removed", k)
			}
		}
	})

	t.Run("set after unset", func(t *testing.T) {
		m := New(fixedBase())
		m.Unset("BORG_REPO")
		if err := m.Set("", map[string]string{"BORG_REPO": "/again"}); err != nil {
			t.Fatal(err)
		}
		if v, _ := m.Lookup("BORG_REPO"); v != "/again" {
			t.Errorf("BORG_REPO = %q", v)
		}
	})
}

func TestManager_ProcessEnvUntouched(t *testing.T) {
	defer testutil.MustUnsetenv(t, "BORGWRAP_ENVIRON_PROBE")()

	m := New()
	if err := m.Set("", map[string]string{"BORGWRAP_ENVIRON_PROBE": "x"}); err != nil {
		t.Fatal(err)
	}
	if _, ok := os.LookupEnv("BORGWRAP_ENVIRON_PROBE"); ok {
		t.Error("Set() must not modify the process environment")
	}
	if v, ok := m.Lookup("BORGWRAP_ENVIRON_PROBE"); !ok || v != "x" {
		t.Errorf("Lookup() = %q, %v", v, ok)
	}
}

func TestManager_IndependentClients(t *testing.T) {
	a := New(fixedBase())
	b := New(fixedBase())
	if err := a.Set("", map[string]string{"BORG_REPO": "/a"}); err != nil {
		t.Fatal(err)
	}
	if _, ok := b.Lookup("BORG_REPO"); ok {
		t.Error("managers must not share overrides")
	}
}
