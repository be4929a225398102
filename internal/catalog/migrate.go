package catalog

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*/*.sql
var migrationsFS embed.FS

// Migrate applies the embedded schema migrations for driver.
//
// It opens its own *sql.DB because closing a migrate instance also closes
// the database handle it was given.
func Migrate(driver, dsn string, logger *slog.Logger) error {
	sqldb, err := sql.Open(driver, dsn)
	if err != nil {
		return fmt.Errorf("sql.Open %s: %w", driver, err)
	}
	defer sqldb.Close()

	var dbDriver database.Driver
	switch driver {
	case DriverSQLite:
		dbDriver, err = migratesqlite.WithInstance(sqldb, &migratesqlite.Config{})
	case DriverPgx:
		dbDriver, err = migratepgx.WithInstance(sqldb, &migratepgx.Config{})
	default:
		return fmt.Errorf("migrate: unsupported driver %q", driver)
	}
	if err != nil {
		return fmt.Errorf("%s migrate driver: %w", driver, err)
	}

	src, err := iofs.New(migrationsFS, "migrations/"+driver)
	if err != nil {
		return fmt.Errorf("iofs source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, driver, dbDriver)
	if err != nil {
		return fmt.Errorf("migrate.New: %w", err)
	}
	defer m.Close()

	logger.Info("catalog: applying migrations", "driver", driver)
	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Info("catalog: schema up to date")
			return nil
		}
		return fmt.Errorf("apply migrations: %w", err)
	}
	logger.Info("catalog: migrations applied")
	return nil
}
