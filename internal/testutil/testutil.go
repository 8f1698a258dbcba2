// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package testutil provides shared test helpers for oTask packages.
package testutil

import (
	"database/sql"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"

	"github.com/olegiv/otask-go/internal/store"
)

// tbWriter forwards log lines to the test log so they only show for
// failing or verbose runs.
type tbWriter struct{ tb testing.TB }

func (w tbWriter) Write(p []byte) (int, error) {
	w.tb.Helper()
	w.tb.Log(string(p))
	return len(p), nil
}

// TestLogger returns a logger that writes warnings and errors to t.Log.
func TestLogger(tb testing.TB) *slog.Logger {
	return slog.New(slog.NewTextHandler(tbWriter{tb}, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
}

// TestLoggerSilent returns a logger that discards everything.
func TestLoggerSilent() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestDB opens a fresh migrated SQLite database under t.TempDir. The
// database is closed when the test ends; the returned func closes it early
// and may be called any number of times.
func TestDB(tb testing.TB) (*sql.DB, func()) {
	tb.Helper()

	db, err := store.NewDB(filepath.Join(tb.TempDir(), "otask.db"))
	if err != nil {
		tb.Fatalf("open test db: %v", err)
	}

	var once sync.Once
	closeDB := func() { once.Do(func() { _ = db.Close() }) }
	tb.Cleanup(closeDB)

	if err := store.Migrate(db); err != nil {
		tb.Fatalf("migrate test db: %v", err)
	}
	return db, closeDB
}
