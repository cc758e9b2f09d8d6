package migrate

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/pressly/goose/v3"
)

// DefaultDir is where new migrations are written during development.
const DefaultDir = "pkg/migrate/migrations"

//go:embed migrations/*.sql
var bundled embed.FS

// Source is a set of goose SQL migrations: a filesystem and the directory
// inside it.
type Source struct {
	FS  fs.FS
	Dir string
}

// Bundled returns the migrations compiled into the binary, so services and
// the migrate command do not depend on the working directory.
func Bundled() Source {
	return Source{FS: bundled, Dir: "migrations"}
}

// Disk reads migrations from dir on the local filesystem.
func Disk(dir string) Source {
	return Source{FS: os.DirFS(dir), Dir: "."}
}

// SourceFor maps the -dir flag of the migrate command: empty means bundled.
func SourceFor(dir string) Source {
	if strings.TrimSpace(dir) == "" {
		return Bundled()
	}
	return Disk(dir)
}

func (s Source) use() error {
	if s.FS == nil || s.Dir == "" {
		return fmt.Errorf("migration source is required")
	}
	goose.SetBaseFS(s.FS)
	// storefront runs on Postgres
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	return nil
}

// Run executes a goose command (up, down, redo, reset, status) against db.
func Run(ctx context.Context, db *sql.DB, src Source, command string, args ...string) error {
	if db == nil {
		return fmt.Errorf("db is required")
	}
	if err := src.use(); err != nil {
		return err
	}
	if err := goose.RunContext(ctx, command, db, src.Dir, args...); err != nil {
		return fmt.Errorf("goose %s: %w", command, err)
	}
	return nil
}

// MigrateToVersion moves the schema up or down until it sits at targetVersion.
func MigrateToVersion(ctx context.Context, db *sql.DB, src Source, targetVersion string) error {
	if db == nil {
		return fmt.Errorf("db is required")
	}
	target, err := strconv.ParseInt(strings.TrimSpace(targetVersion), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS): %w", targetVersion, err)
	}
	if err := src.use(); err != nil {
		return err
	}

	current, err := goose.GetDBVersionContext(ctx, db)
	if err != nil {
		return fmt.Errorf("get db version: %w", err)
	}

	switch {
	case current == target:
		return nil
	case current < target:
		if err := goose.UpToContext(ctx, db, src.Dir, target); err != nil {
			return fmt.Errorf("goose up-to %d: %w", target, err)
		}
	default:
		if err := goose.DownToContext(ctx, db, src.Dir, target); err != nil {
			return fmt.Errorf("goose down-to %d: %w", target, err)
		}
	}
	return nil
}
