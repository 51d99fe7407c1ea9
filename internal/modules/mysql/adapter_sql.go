package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"

	// Registers the "mysql" driver for the admin connection.
	_ "github.com/go-sql-driver/mysql"
)

var identifierPattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// SQLAdapter talks to the local MySQL server through database/sql using an
// administrative DSN (typically root over the unix socket).
type SQLAdapter struct {
	db *sql.DB
}

// NewSQLAdapter opens an admin connection pool for the given DSN.
func NewSQLAdapter(dsn string) (*SQLAdapter, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mysql connection: %w", err)
	}
	return &SQLAdapter{db: db}, nil
}

// Close releases the connection pool.
func (a *SQLAdapter) Close() error {
	return a.db.Close()
}

// Ping verifies the server is reachable.
func (a *SQLAdapter) Ping(ctx context.Context) error {
	return a.db.PingContext(ctx)
}

// EnsureDatabase creates the database when missing with the given charset
// and collation.
func (a *SQLAdapter) EnsureDatabase(ctx context.Context, name, charset, collation string) error {
	name = strings.TrimSpace(name)
	if !identifierPattern.MatchString(name) {
		return fmt.Errorf("invalid database name")
	}
	if !identifierPattern.MatchString(charset) {
		return fmt.Errorf("invalid charset")
	}
	if !identifierPattern.MatchString(collation) {
		return fmt.Errorf("invalid collation")
	}
	stmt := fmt.Sprintf("CREATE DATABASE IF NOT EXISTS `%s` CHARACTER SET %s COLLATE %s", name, charset, collation)
	if _, err := a.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("create database %s: %w", name, err)
	}
	return nil
}

// TableCount returns the number of tables in the database; a database that
// does not exist counts as zero tables.
func (a *SQLAdapter) TableCount(ctx context.Context, name string) (int, error) {
	name = strings.TrimSpace(name)
	if !identifierPattern.MatchString(name) {
		return 0, fmt.Errorf("invalid database name")
	}
	var count int
	row := a.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = ?", name)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count tables in %s: %w", name, err)
	}
	return count, nil
}

// GrantRemoteRoot opens root access from any host and flushes privileges.
func (a *SQLAdapter) GrantRemoteRoot(ctx context.Context) error {
	if _, err := a.db.ExecContext(ctx, "GRANT ALL PRIVILEGES ON *.* TO 'root'@'%' WITH GRANT OPTION"); err != nil {
		return fmt.Errorf("grant remote root: %w", err)
	}
	if _, err := a.db.ExecContext(ctx, "FLUSH PRIVILEGES"); err != nil {
		return fmt.Errorf("flush privileges: %w", err)
	}
	return nil
}
