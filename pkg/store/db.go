package store

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/system/*.sql migrations/app/*.sql
var migrationFS embed.FS

// OpenSystem opens the system database (members, messages, diary entries)
// at path, creating it and applying pending migrations as needed.
func OpenSystem(path string) (*sqlx.DB, error) {
	return open(path, "migrations/system")
}

// OpenApp opens the app-level database (settings, API tokens) at path.
func OpenApp(path string) (*sqlx.DB, error) {
	return open(path, "migrations/app")
}

func open(path, migrationDir string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", path, err)
	}
	if err := migrateUp(db, migrationDir); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating %s: %w", path, err)
	}
	return db, nil
}

func migrateUp(db *sqlx.DB, dir string) error {
	sub, err := fs.Sub(migrationFS, dir)
	if err != nil {
		return err
	}
	src, err := iofs.New(sub, ".")
	if err != nil {
		return err
	}
	driver, err := sqlite3.WithInstance(db.DB, &sqlite3.Config{})
	if err != nil {
		return err
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}
