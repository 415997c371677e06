package migration

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/coliving/backend/migrations"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	entries, err := fs.ReadDir(migrations.FS, ".")
	require.NoError(t, err)

	ups := map[string]bool{}
	downs := map[string]bool{}
	for _, e := range entries {
		name := e.Name()
		if base, ok := strings.CutSuffix(name, ".up.sql"); ok {
			ups[base] = true
		} else if base, ok := strings.CutSuffix(name, ".down.sql"); ok {
			downs[base] = true
		}
	}

	require.NotEmpty(t, ups)
	assert.Equal(t, ups, downs)
	assert.Equal(t, 1, nextVersion(nil))
	assert.Equal(t, len(ups)+1, nextVersion(keys(ups)))
}

func TestEmbeddedMigrationsCreateBillingTables(t *testing.T) {
	var schema strings.Builder
	err := fs.WalkDir(migrations.FS, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(path, ".up.sql") {
			return err
		}
		b, err := fs.ReadFile(migrations.FS, path)
		schema.Write(b)
		return err
	})
	require.NoError(t, err)

	for _, table := range []string{
		"locations", "resources", "fees", "location_fees",
		"bookings", "subscriptions", "bills", "bill_line_items", "payments",
	} {
		assert.Contains(t, schema.String(), "CREATE TABLE IF NOT EXISTS "+table+" (", table)
	}
}

func TestMigrateLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := &migrateLogger{logger: zap.New(core)}

	assert.True(t, l.Verbose())
	l.Printf("Start buffering %d/u %s\n", 3, "create_bills_and_payments")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "Start buffering 3/u create_bills_and_payments", logs.All()[0].Message)

	quietCore, _ := observer.New(zapcore.InfoLevel)
	quiet := &migrateLogger{logger: zap.New(quietCore)}
	assert.False(t, quiet.Verbose())
}

func keys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
