// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package audit provides the structured run log. Stage progress goes to an
// io.Writer for humans; decisions that need to survive for later review --
// oracle judgments with their rationale, records dropped by de-duplication,
// truncated crawl intervals -- go here as JSON lines.
package audit

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// Open appends to the audit log at path, creating parent directories as
// needed. The returned closer owns the underlying file.
func Open(path string) (zerolog.Logger, io.Closer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("creating audit log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("opening audit log %s: %w", path, err)
	}

	zerolog.TimeFieldFormat = time.RFC3339
	logger := zerolog.New(f).With().Timestamp().Logger()
	return logger, f, nil
}

// Nop returns a logger that discards everything, for runs and tests that do
// not keep an audit trail.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}
