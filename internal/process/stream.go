// SPDX-License-Identifier: MPL-2.0

package process

import (
	"errors"
	"io"
	"strings"
	"sync"
)

const readChunkSize = 32 * 1024

const (
	// Stdout selects the standard output stream.
	Stdout Stream = iota
	// Stderr selects the standard error stream.
	Stderr
)

type (
	// Stream identifies one of the two captured output streams.
	Stream int

	// StreamBuffer is an append-only line buffer filled by a single reader
	// goroutine and read by any number of consumers. Lines keep their
	// terminators ("\n", "\r" or "\r\n"), so joining every line reproduces the
	// stream byte for byte.
	StreamBuffer struct {
		mu     sync.Mutex
		lines  []string
		cursor int
		size   int
	}
)

func (s Stream) String() string {
	switch s {
	case Stdout:
		return "stdout"
	case Stderr:
		return "stderr"
	default:
		return "unknown"
	}
}

// Drain returns the lines appended since the previous Drain. It never blocks
// waiting for output.
func (b *StreamBuffer) Drain() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.cursor == len(b.lines) {
		return nil
	}
	out := make([]string, len(b.lines)-b.cursor)
	copy(out, b.lines[b.cursor:])
	b.cursor = len(b.lines)
	return out
}

// Lines returns every line received so far, independent of Drain.
func (b *StreamBuffer) Lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]string, len(b.lines))
	copy(out, b.lines)
	return out
}

// Bytes returns the concatenation of every line received so far.
func (b *StreamBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	var sb strings.Builder
	sb.Grow(b.size)
	for _, l := range b.lines {
		sb.WriteString(l)
	}
	return []byte(sb.String())
}

// Len returns the number of bytes received so far.
func (b *StreamBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

// ReadFrom consumes r until EOF, splitting it into lines. A trailing partial
// line is appended when r is exhausted.
func (b *StreamBuffer) ReadFrom(r io.Reader) (int64, error) {
	var (
		pending []byte
		total   int64
		chunk   = make([]byte, readChunkSize)
	)
	for {
		n, err := r.Read(chunk)
		total += int64(n)
		pending = append(pending, chunk[:n]...)
		pending = b.splitLines(pending, err != nil)

		if err != nil {
			if len(pending) > 0 {
				b.append(string(pending))
			}
			if errors.Is(err, io.EOF) {
				return total, nil
			}
			return total, err
		}
	}
}

// splitLines appends every terminated line in data and returns the rest.
// A lone "\r" at the end of data is held back unless atEOF, because the next
// read may complete it into "\r\n".
func (b *StreamBuffer) splitLines(data []byte, atEOF bool) []byte {
	start := 0
	for i := 0; i < len(data); i++ {
		switch data[i] {
		case '\n':
			b.append(string(data[start : i+1]))
			start = i + 1
		case '\r':
			if i+1 == len(data) && !atEOF {
				return data[start:]
			}
			if i+1 < len(data) && data[i+1] == '\n' {
				i++
			}
			b.append(string(data[start : i+1]))
			start = i + 1
		}
	}
	return data[start:]
}

func (b *StreamBuffer) append(line string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lines = append(b.lines, line)
	b.size += len(line)
}
