// Package database owns the users and plans tables.
package database

import (
	"context"
	"embed"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

//go:embed schema/*.sql
var schemaFS embed.FS

func init() {
	// modernc registers itself as "sqlite", which sqlx does not know about.
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// Dialect maps a database/sql driver name to the schema dialect it speaks.
func Dialect(driver string) (string, error) {
	switch driver {
	case "sqlite", "sqlite3":
		return "sqlite", nil
	case "pgx", "postgres":
		return "postgres", nil
	default:
		return "", fmt.Errorf("unsupported driver %q", driver)
	}
}

// Open connects with the given driver and applies the schema for its dialect.
func Open(ctx context.Context, driver, dsn string) (*sqlx.DB, error) {
	dialect, err := Dialect(driver)
	if err != nil {
		return nil, err
	}
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dialect == "sqlite" {
		// A single connection serialises writers and keeps :memory: databases alive.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := executeInitSQL(ctx, db, "schema/"+dialect+".sql"); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func executeInitSQL(ctx context.Context, db *sqlx.DB, initSQLPath string) error {
	sqlBytes, err := schemaFS.ReadFile(initSQLPath)
	if err != nil {
		return fmt.Errorf("failed to read init SQL file: %w", err)
	}
	statements := strings.Split(string(sqlBytes), ";")
	for i, stmt := range statements {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute statement %d: %w\nStatement: %s", i+1, err, stmt)
		}
	}
	return nil
}
