// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"io"
	"log/slog"
	"os"

	"github.com/borgwrap/borgwrap/internal/config"

	"github.com/charmbracelet/log"
	"golang.org/x/term"
	"gopkg.in/natefinch/lumberjack.v2"
)

// newLogger returns the slog logger handed to the borg client. Records go to
// stderr, or to a rotating file when one is configured. Output that is not a
// terminal is written as JSON.
func newLogger(stderr io.Writer, lc config.LogConfig, fileOverride string, verbose bool) (*slog.Logger, io.Closer) {
	level := log.WarnLevel
	if verbose {
		level = log.DebugLevel
	}

	var (
		w      = stderr
		closer io.Closer
	)
	file := lc.File
	if fileOverride != "" {
		file = fileOverride
	}
	if file != "" {
		lj := &lumberjack.Logger{
			Filename:   file,
			MaxSize:    lc.MaxSizeMB,
			MaxBackups: lc.MaxBackups,
			Compress:   lc.Compress,
		}
		w, closer = lj, lj
	}

	formatter := log.TextFormatter
	if !isTerminal(w) {
		formatter = log.JSONFormatter
	}

	handler := log.NewWithOptions(w, log.Options{
		Level:           level,
		Prefix:          "borgwrap",
		ReportTimestamp: true,
		Formatter:       formatter,
	})
	return slog.New(handler), closer
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
