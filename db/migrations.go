// Package db embeds the SQL migrations for the Postgres storage backend.
package db

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"
)

//go:embed migrations/*.sql
var migrations embed.FS

// UpMigrations returns the names of the up migrations in apply order.
func UpMigrations() ([]string, error) {
	names, err := fs.Glob(migrations, "migrations/*.up.sql")
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

// Apply runs every up migration through exec in order. Migrations are
// written to be idempotent.
func Apply(ctx context.Context, exec func(ctx context.Context, sql string) error) error {
	names, err := UpMigrations()
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}
	for _, name := range names {
		payload, err := migrations.ReadFile(name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if err := exec(ctx, string(payload)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
	}
	return nil
}
