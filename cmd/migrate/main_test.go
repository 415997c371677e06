package main

import (
	"path/filepath"
	"testing"

	"github.com/coliving/backend/internal/infrastructure/migration"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestIntArg(t *testing.T) {
	n, err := intArg([]string{"-2"}, "step count")
	require.NoError(t, err)
	assert.Equal(t, -2, n)

	_, err = intArg(nil, "version")
	assert.ErrorIs(t, err, errUsage)

	_, err = intArg([]string{"two"}, "version")
	assert.EqualError(t, err, `invalid version "two"`)
}

func TestRun_FileCommands(t *testing.T) {
	dir := t.TempDir()

	require.NoError(t, run(zap.NewNop(), dir, "create", []string{"add_room_capacity", "Maximum occupants per room"}))
	require.NoError(t, run(zap.NewNop(), dir, "create", []string{"late fee"}))

	names, err := migration.ListMigrations(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"000001_add_room_capacity", "000002_late_fee"}, names)
	assert.FileExists(t, filepath.Join(dir, "000002_late_fee.down.sql"))

	assert.NoError(t, run(zap.NewNop(), dir, "list", nil))
}

func TestRun_UsageErrors(t *testing.T) {
	assert.ErrorIs(t, run(zap.NewNop(), t.TempDir(), "create", nil), errUsage)
	assert.ErrorIs(t, run(zap.NewNop(), "", "rebase", nil), errUsage)
}

func TestSchemaCommandsTable(t *testing.T) {
	for _, name := range []string{"up", "down", "step", "goto", "force", "version", "drop"} {
		assert.Contains(t, schemaCommands, name)
	}
	err := schemaCommands["drop"](nil, zap.NewNop(), nil)
	assert.ErrorContains(t, err, "-confirm")
}
