// SPDX-FileCopyrightText: The fieldagent Authors
//
// SPDX-License-Identifier: MIT

// Package logger provides a thin wrapper around log/slog for the fieldagent service.
package logger

import (
	"io"
	"log/slog"
	"os"
)

// Logger is a type wrapper around the stdlib slog.Logger.
type Logger struct {
	*slog.Logger
}

// New returns a new Logger that writes to STDERR with the given log level.
func New(level slog.Level) *Logger {
	return NewLogger(level, os.Stderr)
}

// NewLogger returns a new Logger that writes to the given io.Writer with the given log level.
func NewLogger(level slog.Level, output io.Writer) *Logger {
	return &Logger{slog.New(slog.NewTextHandler(output, &slog.HandlerOptions{Level: level}))}
}

// Err returns a slog.Attr for the given error.
func Err(err error) slog.Attr {
	return slog.Any("error", err)
}
