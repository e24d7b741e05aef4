// Package testutil provides fixtures shared by package tests.
package testutil

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/cuongbtq/job-dispatcher/shared/database"
)

// DiscardLogger returns a logger that drops everything.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// NewSQLiteDB opens a migrated sqlite database in a temp dir, closed on cleanup.
func NewSQLiteDB(t testing.TB) *sqlx.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "jobs.db")
	client, err := database.NewClient(&database.Config{
		Driver: database.DriverSQLite,
		Path:   path,
	}, DiscardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	_, err = database.Migrate(context.Background(), client.GetDB().DB, client.Driver())
	require.NoError(t, err)

	return client.GetDB()
}
