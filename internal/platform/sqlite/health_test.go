package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"litequery/internal/shared"
)

func TestHealthCheck(t *testing.T) {
	ctx := context.Background()
	tdb := NewTestDatabase(t)
	tdb.MustSeedData(t,
		"CREATE TABLE items (id INTEGER PRIMARY KEY, name TEXT UNIQUE)",
		"INSERT INTO items (name) VALUES ('a'), ('b')",
	)
	require.NoError(t, tdb.SetVersion(ctx, 3))

	tests := []struct {
		name string
		opts HealthCheckOptions
	}{
		{"quick", HealthCheckOptions{}},
		{"full", HealthCheckOptions{Full: true}},
		{"limited", HealthCheckOptions{MaxErrors: 5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report, err := tdb.HealthCheck(ctx, tt.opts)
			require.NoError(t, err)
			assert.True(t, report.OK())
			assert.Equal(t, int32(3), report.Version)
		})
	}
}

func TestHealthCheck_OpenFailures(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	missing, err := NewDatabase(filepath.Join(dir, "absent.db"), DefaultDBOptions(), nil)
	require.NoError(t, err)
	_, err = missing.HealthCheck(ctx, HealthCheckOptions{})
	assert.True(t, shared.IsOpen(err))

	garbage := filepath.Join(dir, "garbage.db")
	require.NoError(t, os.WriteFile(garbage, []byte("definitely not a database file, just text padding it out"), 0644))
	broken, err := NewDatabase(garbage, DefaultDBOptions(), nil)
	require.NoError(t, err)
	_, err = broken.HealthCheck(ctx, HealthCheckOptions{})
	assert.True(t, shared.IsOpen(err))
}

func TestHealthReport_OK(t *testing.T) {
	assert.True(t, HealthReport{}.OK())
	assert.False(t, HealthReport{Problems: []string{"row 1 missing from index"}}.OK())
}
