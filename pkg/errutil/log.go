// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package errutil provides helpers for logging and asserting oops errors.
package errutil

import (
	"log/slog"

	"github.com/samber/oops"
)

// LogError logs err at error level. For oops errors the domain, code, and
// context are emitted as separate attributes. A nil logger uses slog.Default.
func LogError(logger *slog.Logger, msg string, err error) {
	logger = orDefault(logger)
	logger.Error(msg, Attrs(err)...)
}

// LogWarn logs err at warn level with the same attributes as LogError.
// Use it for failures the caller recovers from on its own.
func LogWarn(logger *slog.Logger, msg string, err error) {
	logger = orDefault(logger)
	logger.Warn(msg, Attrs(err)...)
}

// Attrs returns slog key/value pairs describing err.
func Attrs(err error) []any {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return []any{"error", err}
	}

	attrs := []any{"error", oopsErr.Error()}
	if domain := oopsErr.Domain(); domain != "" {
		attrs = append(attrs, "domain", domain)
	}
	if code := oopsErr.Code(); code != nil {
		attrs = append(attrs, "code", code)
	}
	if ctx := oopsErr.Context(); len(ctx) > 0 {
		attrs = append(attrs, "context", ctx)
	}
	return attrs
}

func orDefault(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}
