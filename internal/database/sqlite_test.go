package database

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestOpenAppliesMigrations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "daytrail.db")
	db, err := Open(Config{Path: path}, zap.NewNop())
	require.NoError(t, err)
	defer db.Close()

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM migrations").Scan(&count))
	assert.Equal(t, 2, count)

	for _, table := range []string{"smart_guesses", "time_slots"} {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		require.NoError(t, err, table)
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daytrail.db")
	db, err := Open(Config{Path: path}, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = Open(Config{Path: path}, zap.NewNop())
	require.NoError(t, err)
	defer db.Close()

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM migrations").Scan(&count))
	assert.Equal(t, 2, count)
}

func TestTransactionRollsBackOnError(t *testing.T) {
	db, err := Open(Config{InMemory: true}, zap.NewNop())
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	boom := errors.New("boom")
	err = Transaction(ctx, db, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`INSERT INTO time_slots (id, start_time) VALUES ('a', 1)`); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM time_slots").Scan(&count))
	assert.Zero(t, count)

	err = Transaction(ctx, db, func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO time_slots (id, start_time) VALUES ('b', 2)`)
		return err
	})
	require.NoError(t, err)
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM time_slots").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestParseMigrationsRejectsBadFiles(t *testing.T) {
	_, err := ParseMigrations(fstest.MapFS{"create_things.sql": {Data: []byte("SELECT 1")}})
	assert.Error(t, err)

	_, err = ParseMigrations(fstest.MapFS{
		"003_a.sql": {Data: []byte("SELECT 1")},
		"003_b.sql": {Data: []byte("SELECT 1")},
	})
	assert.Error(t, err)

	migrations, err := ParseMigrations(fstest.MapFS{
		"010_later.sql": {Data: []byte("SELECT 2")},
		"002_early.sql": {Data: []byte("SELECT 1")},
		"README.md":     {Data: []byte("ignored")},
	})
	require.NoError(t, err)
	require.Len(t, migrations, 2)
	assert.Equal(t, 2, migrations[0].Version)
	assert.Equal(t, "010_later", migrations[1].Name)
}

func TestMigrateAppliesOnlyPending(t *testing.T) {
	db, err := Open(Config{InMemory: true}, zap.NewNop())
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	migrations, err := SchemaMigrations()
	require.NoError(t, err)
	migrations = append(migrations, Migration{Version: 3, Name: "003_notes", SQL: "CREATE TABLE notes (id TEXT PRIMARY KEY)"})

	applied, err := Migrate(ctx, db, migrations, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, []int{3}, applied)

	applied, err = Migrate(ctx, db, migrations, zap.NewNop())
	require.NoError(t, err)
	assert.Empty(t, applied)
}

func TestMigrateRollsBackFailedMigration(t *testing.T) {
	db, err := Open(Config{InMemory: true}, zap.NewNop())
	require.NoError(t, err)
	defer db.Close()

	broken := Migration{Version: 3, Name: "003_broken", SQL: "CREATE TABLE nope (;"}
	_, err = Migrate(context.Background(), db, []Migration{broken}, zap.NewNop())
	require.Error(t, err)

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM migrations WHERE version = 3").Scan(&count))
	assert.Zero(t, count)
}
