package bootstrap

import (
	"errors"
	"io/fs"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreconfig "github.com/m3rciful/relaybot/core/config"
	coredatabase "github.com/m3rciful/relaybot/core/database"
)

func noLogger(*coreconfig.Config) error { return nil }

func TestRunAppliesMigrations(t *testing.T) {
	db := coredatabase.Config{Driver: coredatabase.DriverSQLite, Path: filepath.Join(t.TempDir(), "boot.db")}
	require.NoError(t, db.Normalize())

	src := fstest.MapFS{
		"sqlite/000001_init.up.sql":   {Data: []byte(`CREATE TABLE probe (id INTEGER PRIMARY KEY);`)},
		"sqlite/000001_init.down.sql": {Data: []byte(`DROP TABLE probe;`)},
	}
	res, err := Run(Options{
		Config:     &coreconfig.Config{},
		Database:   db,
		Migrations: src,
		LoggerInit: noLogger,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = res.DB.Close() })

	var n int
	require.NoError(t, res.DB.Get(&n, `SELECT COUNT(1) FROM probe`))
	assert.Zero(t, n)
}

func TestRunClosesDBOnMigrationError(t *testing.T) {
	db := coredatabase.Config{Driver: coredatabase.DriverSQLite, Path: filepath.Join(t.TempDir(), "boot.db")}
	require.NoError(t, db.Normalize())

	var opened *sqlx.DB
	_, err := Run(Options{
		Config:     &coreconfig.Config{},
		Database:   db,
		Migrations: fstest.MapFS{},
		LoggerInit: noLogger,
		Migrate:    func(coredatabase.Config, fs.FS) error { return errors.New("boom") },
		Connect: func(cfg coredatabase.Config) (*sqlx.DB, error) {
			var err error
			opened, err = coredatabase.Connect(cfg)
			return opened, err
		},
	})
	require.ErrorContains(t, err, "boom")
	require.NotNil(t, opened)
	assert.Error(t, opened.Ping(), "handle must be closed")
}

func TestRunRequiresConfig(t *testing.T) {
	_, err := Run(Options{})
	assert.Error(t, err)
}
