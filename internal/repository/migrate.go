package repository

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

// MigrateUp applies every *.up.sql file in migrationsDir in lexical order.
// Files may hold several statements separated by ";"; statements must not
// embed a literal semicolon in a string.
func MigrateUp(ctx context.Context, db *sql.DB, migrationsDir string, log zerolog.Logger) error {
	return applyMigrations(ctx, db, migrationsDir, "*.up.sql", log)
}

// MigrateDown applies every *.down.sql file in migrationsDir in reverse
// lexical order.
func MigrateDown(ctx context.Context, db *sql.DB, migrationsDir string, log zerolog.Logger) error {
	files, err := filepath.Glob(filepath.Join(migrationsDir, "*.down.sql"))
	if err != nil {
		return fmt.Errorf("read rollback files: %w", err)
	}
	for i, j := 0, len(files)-1; i < j; i, j = i+1, j-1 {
		files[i], files[j] = files[j], files[i]
	}
	return applyFiles(ctx, db, files, log)
}

func applyMigrations(ctx context.Context, db *sql.DB, dir, pattern string, log zerolog.Logger) error {
	files, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return fmt.Errorf("read migration files: %w", err)
	}
	return applyFiles(ctx, db, files, log)
}

func applyFiles(ctx context.Context, db *sql.DB, files []string, log zerolog.Logger) error {
	for _, file := range files {
		raw, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}
		for _, stmt := range strings.Split(string(raw), ";") {
			stmt = strings.TrimSpace(stmt)
			if stmt == "" {
				continue
			}
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("apply migration %s: %w", file, err)
			}
		}
		log.Info().Str("file", filepath.Base(file)).Msg("migration applied")
	}
	return nil
}
