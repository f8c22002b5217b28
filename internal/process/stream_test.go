// SPDX-License-Identifier: MPL-2.0

package process

import (
	"slices"
	"strings"
	"testing"
	"testing/iotest"
)

func TestStreamBuffer_ReadFrom(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"empty", "", nil},
		{"newline terminated", "a\nb\n", []string{"a\n", "b\n"}},
		{"partial last line", "a\nb", []string{"a\n", "b"}},
		{"carriage return progress", "10%\r20%\r30%\n", []string{"10%\r", "20%\r", "30%\n"}},
		{"crlf", "a\r\nb\r\n", []string{"a\r\n", "b\r\n"}},
		{"trailing carriage return", "a\r", []string{"a\r"}},
		{"mixed", "a\nb\r\nc\rd", []string{"a\n", "b\r\n", "c\r", "d"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var b StreamBuffer
			n, err := b.ReadFrom(strings.NewReader(tt.input))
			if err != nil {
				t.Fatalf("ReadFrom() error = %v", err)
			}
			if n != int64(len(tt.input)) {
				t.Errorf("ReadFrom() = %d bytes, want %d", n, len(tt.input))
			}
			if got := b.Lines(); !slices.Equal(got, tt.want) {
				t.Errorf("Lines() = %q, want %q", got, tt.want)
			}

			var oneByte StreamBuffer
			if _, err := oneByte.ReadFrom(iotest.OneByteReader(strings.NewReader(tt.input))); err != nil {
				t.Fatalf("ReadFrom(one byte) error = %v", err)
			}
			if got := oneByte.Lines(); !slices.Equal(got, tt.want) {
				t.Errorf("one byte reads: Lines() = %q, want %q", got, tt.want)
			}
			if got := string(oneByte.Bytes()); got != tt.input {
				t.Errorf("Bytes() = %q, want %q", got, tt.input)
			}
			if oneByte.Len() != len(tt.input) {
				t.Errorf("Len() = %d, want %d", oneByte.Len(), len(tt.input))
			}
		})
	}
}

func TestStreamBuffer_Drain(t *testing.T) {
	var b StreamBuffer
	if got := b.Drain(); got != nil {
		t.Errorf("Drain() on empty buffer = %q, want nil", got)
	}

	b.append("one\n")
	b.append("two\n")
	if got := b.Drain(); !slices.Equal(got, []string{"one\n", "two\n"}) {
		t.Errorf("first Drain() = %q", got)
	}
	if got := b.Drain(); got != nil {
		t.Errorf("second Drain() = %q, want nil", got)
	}

	b.append("three\n")
	if got := b.Drain(); !slices.Equal(got, []string{"three\n"}) {
		t.Errorf("third Drain() = %q", got)
	}
	if got := b.Lines(); len(got) != 3 {
		t.Errorf("Lines() = %q, want all three lines", got)
	}
}

func TestStreamBuffer_ReadError(t *testing.T) {
	var b StreamBuffer
	r := iotest.TimeoutReader(strings.NewReader("partial"))
	_, err := b.ReadFrom(r)
	if err == nil {
		t.Fatal("ReadFrom() should return the reader error")
	}
	if got := b.Lines(); !slices.Equal(got, []string{"partial"}) {
		t.Errorf("Lines() = %q, want partial data kept", got)
	}
}

func TestStream_String(t *testing.T) {
	if Stdout.String() != "stdout" || Stderr.String() != "stderr" || Stream(9).String() != "unknown" {
		t.Error("unexpected Stream names")
	}
}
