// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"reflect"
	"testing"

	"github.com/borgwrap/borgwrap/pkg/borg"
)

func TestParseOptions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		pairs   []string
		want    map[string]any
		wantErr bool
	}{
		{"empty", nil, map[string]any{}, false},
		{"switch", []string{"stats"}, map[string]any{"stats": true}, false},
		{"leading dashes", []string{"--stats", "-n"}, map[string]any{"stats": true, "n": true}, false},
		{"value", []string{"compression=zstd,3"}, map[string]any{"compression": "zstd,3"}, false},
		{"empty value", []string{"comment="}, map[string]any{"comment": ""}, false},
		{"list", []string{"exclude=*.tmp", "exclude=*.o", "exclude=cache"}, map[string]any{"exclude": []string{"*.tmp", "*.o", "cache"}}, false},
		{"no name", []string{"=x"}, nil, true},
		{"switch then value", []string{"stats", "stats=1"}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := parseOptions(tt.pairs)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseOptions() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && !reflect.DeepEqual(got, tt.want) {
				t.Errorf("parseOptions() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestSplitCommand(t *testing.T) {
	t.Parallel()

	tests := []struct {
		args     []string
		wantName string
		wantPos  []string
		wantErr  error
	}{
		{[]string{"list", "/repo"}, "list", []string{"/repo"}, nil},
		{[]string{"key", "export", "/repo", "out"}, "key export", []string{"/repo", "out"}, nil},
		{[]string{"benchmark", "crud", "/repo", "/tmp"}, "benchmark crud", []string{"/repo", "/tmp"}, nil},
		{[]string{"export-tar", "/repo::a", "-"}, "export-tar", []string{"/repo::a", "-"}, nil},
		{[]string{"key"}, "", nil, borg.ErrUnknownCommand},
		{[]string{"frobnicate"}, "", nil, borg.ErrUnknownCommand},
	}

	for _, tt := range tests {
		name, pos, err := splitCommand(tt.args)
		if tt.wantErr != nil {
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("splitCommand(%v) error = %v, want %v", tt.args, err, tt.wantErr)
			}
			continue
		}
		if err != nil {
			t.Errorf("splitCommand(%v) error = %v", tt.args, err)
			continue
		}
		if name != tt.wantName || !reflect.DeepEqual(pos, tt.wantPos) {
			t.Errorf("splitCommand(%v) = %q %v, want %q %v", tt.args, name, pos, tt.wantName, tt.wantPos)
		}
	}

	if _, _, err := splitCommand(nil); err == nil {
		t.Error("splitCommand(nil) should fail")
	}
}

func TestRequestFlags(t *testing.T) {
	t.Parallel()

	rf := requestFlags{options: []string{"json"}, changes: []string{"id", "append_only=1"}}
	req, err := rf.request([]string{"config", "/repo"})
	if err != nil {
		t.Fatal(err)
	}
	if req.Command != "config" || len(req.Changes) != 2 || !req.Changes[1].IsMutation() {
		t.Errorf("request = %+v", req)
	}

	req, err = (&requestFlags{}).request([]string{"list", "/repo"})
	if err != nil {
		t.Fatal(err)
	}
	if req.Options != nil {
		t.Errorf("Options = %#v, want nil without -o", req.Options)
	}
}
