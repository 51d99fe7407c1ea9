// Package logger builds the provisioner's slog logger. All log output goes
// to stderr: subcommands such as history print their results on stdout and
// must stay free of interleaved JSON records.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// New returns a JSON logger writing to stderr. The dev environment enables
// debug level.
func New(env string) *slog.Logger {
	return newLogger(os.Stderr, env)
}

func newLogger(w io.Writer, env string) *slog.Logger {
	level := slog.LevelInfo
	if strings.EqualFold(env, "dev") {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}
