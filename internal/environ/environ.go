// SPDX-License-Identifier: MPL-2.0

package environ

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/subosito/gotenv"
)

// DefaultEnvFile is loaded by Set when neither a file nor variables are given.
const DefaultEnvFile = ".env"

// ErrEnvFile is the sentinel error wrapped by EnvFileError.
var ErrEnvFile = errors.New("cannot load env file")

type (
	// Option configures a Manager.
	Option func(*Manager)

	// Manager owns the environment of one client. It is safe for concurrent use.
	Manager struct {
		mu        sync.Mutex
		base      func() []string
		defaults  map[string]string
		overrides map[string]string
		unset     map[string]struct{}
		lastKeys  []string
	}

	// EnvFileError is returned when a dotenv file cannot be read or parsed.
	EnvFileError struct {
		Path  string
		Cause error
	}
)

// Defaults returns the safety defaults applied when a variable is absent
// from the base environment. Modern exit codes are selected and every
// interactive confirmation borg might ask for is answered "no".
func Defaults() map[string]string {
	return map[string]string{
		"BORG_EXIT_CODES":                            "modern",
		"BORG_PASSPHRASE":                            "",
		"BORG_UNKNOWN_UNENCRYPTED_REPO_ACCESS_IS_OK": "no",
		"BORG_RELOCATED_REPO_ACCESS_IS_OK":           "no",
		"BORG_CHECK_I_KNOW_WHAT_I_AM_DOING":          "NO",
		"BORG_DELETE_I_KNOW_WHAT_I_AM_DOING":         "NO",
	}
}

// Error implements the error interface.
func (e *EnvFileError) Error() string {
	return fmt.Sprintf("load env file %s: %v", e.Path, e.Cause)
}

// Unwrap returns both ErrEnvFile and the underlying cause.
func (e *EnvFileError) Unwrap() []error { return []error{ErrEnvFile, e.Cause} }

// WithBase replaces os.Environ as the base environment.
func WithBase(base func() []string) Option {
	return func(m *Manager) {
		m.base = base
	}
}

// WithDefaults replaces the safety defaults.
func WithDefaults(defaults map[string]string) Option {
	return func(m *Manager) {
		m.defaults = defaults
	}
}

// New creates a Manager with the safety defaults and no overrides.
func New(opts ...Option) *Manager {
	m := &Manager{
		base:      os.Environ,
		defaults:  Defaults(),
		overrides: make(map[string]string),
		unset:     make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Set loads overrides from a dotenv file and from vars, in that order, with
// later values replacing earlier ones. When both are empty it loads
// DefaultEnvFile if that file exists. The loaded keys are remembered for a
// later Unset without arguments.
func (m *Manager) Set(file string, vars map[string]string) error {
	loaded := make(map[string]string)

	switch {
	case file != "":
		env, err := gotenv.Read(file)
		if err != nil {
			return &EnvFileError{Path: file, Cause: err}
		}
		for k, v := range env {
			loaded[k] = v
		}
	case len(vars) == 0:
		env, err := gotenv.Read(DefaultEnvFile)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return &EnvFileError{Path: DefaultEnvFile, Cause: err}
		}
		for k, v := range env {
			loaded[k] = v
		}
	}
	for k, v := range vars {
		loaded[k] = v
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.lastKeys = m.lastKeys[:0]
	for k, v := range loaded {
		m.overrides[k] = v
		delete(m.unset, k)
		m.lastKeys = append(m.lastKeys, k)
	}
	sort.Strings(m.lastKeys)
	return nil
}

// Unset removes names from the environment, including values inherited from
// the base environment or the defaults. Without names it removes the keys
// loaded by the most recent Set.
func (m *Manager) Unset(names ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(names) == 0 {
		names = m.lastKeys
		m.lastKeys = nil
	}
	for _, name := range names {
		delete(m.overrides, name)
		m.unset[name] = struct{}{}
	}
}

// Lookup returns the value name would have in the child environment.
func (m *Manager) Lookup(name string) (string, bool) {
	prefix := name + "="
	for _, kv := range m.Environ() {
		if v, ok := strings.CutPrefix(kv, prefix); ok {
			return v, true
		}
	}
	return "", false
}

// Overrides returns a copy of the caller supplied variables.
func (m *Manager) Overrides() map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]string, len(m.overrides))
	for k, v := range m.overrides {
		out[k] = v
	}
	return out
}

// Environ returns the environment for a child process: the base environment,
// then defaults for absent keys, then overrides, minus unset keys. Base
// variables keep their order; added variables follow in key order.
func (m *Manager) Environ() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	values := make(map[string]string)
	var order []string
	put := func(k, v string) {
		if _, seen := values[k]; !seen {
			order = append(order, k)
		}
		values[k] = v
	}

	for _, kv := range m.base() {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		put(k, v)
	}
	baseLen := len(order)

	for _, k := range sortedKeys(m.defaults) {
		if _, present := values[k]; !present {
			put(k, m.defaults[k])
		}
	}
	for _, k := range sortedKeys(m.overrides) {
		put(k, m.overrides[k])
	}
	sort.Strings(order[baseLen:])

	env := make([]string, 0, len(order))
	for _, k := range order {
		if _, drop := m.unset[k]; drop {
			continue
		}
		env = append(env, k+"="+values[k])
	}
	return env
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
