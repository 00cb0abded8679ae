package store

import (
	"context"
	"database/sql/driver"
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	"gitlab.com/dirk.krummacker/contacts-app/internal/config"
	"gitlab.com/dirk.krummacker/contacts-app/internal/store/migrations"
	"modernc.org/sqlite"
)

// unicodeLower is registered with SQLite, whose own LOWER only folds ASCII letters.
const unicodeLower = "unicode_lower"

func init() {
	sqlx.BindDriver(config.DriverSQLite, sqlx.QUESTION)
	if err := sqlite.RegisterDeterministicScalarFunction(unicodeLower, 1, foldLower); err != nil {
		panic(err)
	}
}

func foldLower(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	switch v := args[0].(type) {
	case nil:
		return nil, nil
	case string:
		return strings.ToLower(v), nil
	case []byte:
		return strings.ToLower(string(v)), nil
	}
	return nil, fmt.Errorf("%s: unsupported argument %T", unicodeLower, args[0])
}

// Open connects to the database described by the configuration and verifies the connection.
func Open(ctx context.Context, cfg config.Database) (*sqlx.DB, error) {
	db, err := sqlx.Open(cfg.Driver, cfg.DataSourceName())
	if err != nil {
		return nil, fmt.Errorf("could not open %s database: %w", cfg.Driver, err)
	}
	if cfg.Driver == config.DriverSQLite {
		// Every connection to an in-memory database sees its own database.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not reach %s database: %w", cfg.Driver, err)
	}
	return db, nil
}

// dialect maps a driver name to the goose dialect.
func dialect(driver string) (string, error) {
	switch driver {
	case config.DriverMySQL:
		return "mysql", nil
	case config.DriverPgx:
		return "postgres", nil
	case config.DriverSQLite:
		return "sqlite3", nil
	}
	return "", fmt.Errorf("no migration dialect for driver %q", driver)
}

// Migrate runs a goose command ("up", "down", "status", "version", "redo", ...) with the
// embedded migrations.
func Migrate(ctx context.Context, db *sqlx.DB, command string, args ...string) error {
	d, err := dialect(db.DriverName())
	if err != nil {
		return err
	}
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect(d); err != nil {
		return err
	}
	if err := goose.RunContext(ctx, command, db.DB, ".", args...); err != nil {
		return fmt.Errorf("migration %s failed: %w", command, err)
	}
	return nil
}
