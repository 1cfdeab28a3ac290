package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/bryanwahyu/testcompanion/internal/infra/db/migrations"
)

// DSN enables foreign keys and a busy timeout on every pooled connection.
func DSN(path string) string {
	return fmt.Sprintf("%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", path)
}

// Connect opens the database file at path. SQLite serialises writers, so the
// pool is kept to a single connection.
func Connect(ctx context.Context, path string) (*sqlx.DB, error) {
	db, err := sqlx.Open("sqlite", DSN(path))
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	ctx2, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx2); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func Migrate(path string) error {
	db, err := sql.Open("sqlite", DSN(path))
	if err != nil {
		return err
	}
	return migrations.Up(db, "sqlite")
}

// Open connects and migrates in one step. Used by local runs and tests.
func Open(ctx context.Context, path string) (*sqlx.DB, error) {
	if err := Migrate(path); err != nil {
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}
	return Connect(ctx, path)
}
