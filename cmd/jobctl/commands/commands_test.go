package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuongbtq/job-dispatcher/internal/jobs/domain"
	"github.com/cuongbtq/job-dispatcher/internal/jobs/storage"
	"github.com/cuongbtq/job-dispatcher/internal/testutil"
	"github.com/cuongbtq/job-dispatcher/shared/database"
)

func writeConfig(t *testing.T) (configPath, dbPath string) {
	t.Helper()

	dir := t.TempDir()
	dbPath = filepath.Join(dir, "jobs.db")
	configPath = filepath.Join(dir, "config.yaml")

	yaml := "database:\n  driver: sqlite3\n  path: " + dbPath + "\n"
	require.NoError(t, os.WriteFile(configPath, []byte(yaml), 0o600))
	return configPath, dbPath
}

func execute(t *testing.T, configPath string, args ...string) (string, error) {
	t.Helper()

	out := &bytes.Buffer{}
	root := NewRootCmd()
	root.SetOut(out)
	root.SetErr(out)
	root.SetArgs(append([]string{"--config", configPath}, args...))

	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func openStore(t *testing.T, dbPath string) *storage.Storage {
	t.Helper()

	client, err := database.NewClient(&database.Config{Driver: database.DriverSQLite, Path: dbPath}, testutil.DiscardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return storage.NewStorage(client.GetDB(), testutil.DiscardLogger())
}

func TestCommands_MigrateSeedStatsList(t *testing.T) {
	configPath, dbPath := writeConfig(t)

	out, err := execute(t, configPath, "migrate", "up")
	require.NoError(t, err)
	assert.Contains(t, out, "Applied")

	out, err = execute(t, configPath, "migrate", "up")
	require.NoError(t, err)
	assert.Contains(t, out, "up to date")

	out, err = execute(t, configPath, "migrate", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "00001_create_jobs.sql")
	assert.Contains(t, out, "applied")

	out, err = execute(t, configPath, "seed", "--count", "5", "--seed", "9")
	require.NoError(t, err)
	assert.Contains(t, out, "Seeded")

	counts, err := openStore(t, dbPath).CountByStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(5), counts[domain.StatusPending])

	out, err = execute(t, configPath, "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "pending")
	assert.Contains(t, out, "5")

	out, err = execute(t, configPath, "list", "--status", "pending", "--limit", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "page 1 of 3 (5 jobs)")

	out, err = execute(t, configPath, "list", "--status", "failed")
	require.NoError(t, err)
	assert.Contains(t, out, "No jobs found")
}

func TestCommands_Errors(t *testing.T) {
	configPath, _ := writeConfig(t)
	_, err := execute(t, configPath, "migrate", "up")
	require.NoError(t, err)

	tests := []struct {
		name      string
		args      []string
		errString string
	}{
		{name: "short search", args: []string{"list", "--query", "ab"}, errString: "invalid filter: Search query must be at least 3 characters"},
		{name: "bad status", args: []string{"list", "--status", "done"}, errString: "invalid filter: Invalid status"},
		{name: "zero count", args: []string{"seed", "--count", "0"}, errString: "--count must be at least 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, configPath, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errString)
		})
	}

	_, err = execute(t, filepath.Join(t.TempDir(), "missing.yaml"), "stats")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load config")
}
