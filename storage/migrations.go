package storage

import (
	"database/sql"
	"embed"
	"fmt"
	"log"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

const migrationsDir = "migrations"

// MigrationManager applies the embedded cache schema to one database.
type MigrationManager struct {
	db   *sql.DB
	name string
}

func NewMigrationManager(db *sql.DB, name string) *MigrationManager {
	return &MigrationManager{db: db, name: name}
}

func (m *MigrationManager) Initialize() error {
	goose.SetBaseFS(embedMigrations)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	return nil
}

func (m *MigrationManager) Up() error {
	if err := goose.Up(m.db, migrationsDir); err != nil {
		return fmt.Errorf("failed to migrate %s: %w", m.name, err)
	}
	log.Printf("[storage] %s migrations are up to date", m.name)
	return nil
}

func (m *MigrationManager) Down() error {
	if err := goose.Down(m.db, migrationsDir); err != nil {
		return fmt.Errorf("failed to roll back %s: %w", m.name, err)
	}
	log.Printf("[storage] %s rolled back one migration", m.name)
	return nil
}

func (m *MigrationManager) Status() error {
	goose.SetLogger(log.Default())
	defer goose.SetLogger(goose.NopLogger())

	if err := goose.Status(m.db, migrationsDir); err != nil {
		return fmt.Errorf("failed to get %s migration status: %w", m.name, err)
	}
	return nil
}

func (m *MigrationManager) Version() (int64, error) {
	version, err := goose.GetDBVersion(m.db)
	if err != nil {
		return 0, fmt.Errorf("failed to get %s version: %w", m.name, err)
	}
	return version, nil
}

func (m *MigrationManager) Reset() error {
	if err := goose.Reset(m.db, migrationsDir); err != nil {
		return fmt.Errorf("failed to reset %s: %w", m.name, err)
	}
	log.Printf("[storage] %s reset", m.name)
	return nil
}
