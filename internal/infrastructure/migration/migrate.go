// Package migration runs the SQL schema migrations with golang-migrate and
// scaffolds new migration files.
package migration

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/attendsync/backend/migrations"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// Migrator moves the schema between versions. Closing it also closes the
// connection it was built on.
type Migrator struct {
	m   *migrate.Migrate
	log *zap.Logger
}

// Open connects to dsn and builds a Migrator on the connection
func Open(dsn, dir string, log *zap.Logger) (*Migrator, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	m, err := New(db, dir, log)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return m, nil
}

// New builds a Migrator on db. An empty dir selects the migrations embedded
// in the binary; otherwise SQL files are read from dir.
func New(db *sql.DB, dir string, log *zap.Logger) (*Migrator, error) {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("postgres migrate driver: %w", err)
	}

	var m *migrate.Migrate
	if dir == "" {
		var src source.Driver
		if src, err = iofs.New(migrations.FS, "."); err != nil {
			return nil, fmt.Errorf("embedded migrations: %w", err)
		}
		m, err = migrate.NewWithInstance("iofs", src, "postgres", driver)
	} else {
		m, err = migrate.NewWithDatabaseInstance("file://"+dir, "postgres", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("init migrate: %w", err)
	}
	return &Migrator{m: m, log: log.Named("migrate")}, nil
}

// Apply brings the database at dsn up to the latest embedded migration
func Apply(dsn string, log *zap.Logger) error {
	m, err := Open(dsn, "", log)
	if err != nil {
		return err
	}
	defer func() {
		if err := m.Close(); err != nil {
			log.Warn("Failed to close migrator", zap.Error(err))
		}
	}()
	return m.Up()
}

// Up applies every pending migration
func (m *Migrator) Up() error {
	return m.run("up", m.m.Up)
}

// Down reverts every applied migration
func (m *Migrator) Down() error {
	return m.run("down", m.m.Down)
}

// Steps applies n migrations forward, or -n backward when n is negative
func (m *Migrator) Steps(n int) error {
	return m.run(fmt.Sprintf("steps(%d)", n), func() error { return m.m.Steps(n) })
}

func (m *Migrator) run(op string, fn func() error) error {
	m.log.Info("Migrating", zap.String("op", op))
	err := fn()
	switch {
	case errors.Is(err, migrate.ErrNoChange):
		m.log.Info("Schema already current", zap.String("op", op))
		return nil
	case err != nil:
		return fmt.Errorf("migrate %s: %w", op, err)
	}
	version, dirty, err := m.Version()
	if err != nil {
		return err
	}
	m.log.Info("Migrated", zap.String("op", op), zap.Uint("version", version), zap.Bool("dirty", dirty))
	return nil
}

// Version reports the applied version; 0 means nothing was applied
func (m *Migrator) Version() (uint, bool, error) {
	version, dirty, err := m.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read schema version: %w", err)
	}
	return version, dirty, nil
}

// Force records version as applied without running anything. It clears the
// dirty flag left by a failed migration.
func (m *Migrator) Force(version int) error {
	m.log.Warn("Forcing schema version", zap.Int("version", version))
	if err := m.m.Force(version); err != nil {
		return fmt.Errorf("force version %d: %w", version, err)
	}
	return nil
}

func (m *Migrator) Close() error {
	srcErr, dbErr := m.m.Close()
	return errors.Join(srcErr, dbErr)
}
