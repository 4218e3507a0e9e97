package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/attendsync/backend/internal/infrastructure/config"
	"github.com/attendsync/backend/internal/infrastructure/logger"
	"github.com/attendsync/backend/internal/infrastructure/migration"
	"go.uber.org/zap"
)

const defaultMigrationsDir = "migrations"

var errUsage = errors.New("usage")

// schemaCommands need a database connection
var schemaCommands = map[string]func(m *migration.Migrator, args []string, log *zap.Logger) error{
	"up":   func(m *migration.Migrator, _ []string, _ *zap.Logger) error { return m.Up() },
	"down": func(m *migration.Migrator, _ []string, _ *zap.Logger) error { return m.Down() },
	"step": func(m *migration.Migrator, args []string, _ *zap.Logger) error {
		n, err := intArg(args, "step <n>")
		if err != nil {
			return err
		}
		return m.Steps(n)
	},
	"force": func(m *migration.Migrator, args []string, _ *zap.Logger) error {
		v, err := intArg(args, "force <version>")
		if err != nil {
			return err
		}
		return m.Force(v)
	},
	"version": func(m *migration.Migrator, _ []string, log *zap.Logger) error {
		version, dirty, err := m.Version()
		if err != nil {
			return err
		}
		if version == 0 {
			log.Info("No migrations applied")
			return nil
		}
		log.Info("Schema version", zap.Uint("version", version), zap.Bool("dirty", dirty))
		return nil
	},
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { printUsage(stderr) }
	dir := fs.String("path", "", "Migrations directory (default: embedded; create uses ./migrations)")
	logLevel := fs.String("log-level", "info", "Log level (debug, info, warn, error)")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if fs.NArg() == 0 {
		printUsage(stderr)
		return 1
	}
	command, rest := fs.Arg(0), fs.Args()[1:]

	log, err := logger.New(&logger.Config{
		Level:      *logLevel,
		Format:     "console",
		Output:     "stdout",
		TimeFormat: "2006-01-02 15:04:05",
	})
	if err != nil {
		fmt.Fprintf(stderr, "init logger: %v\n", err)
		return 1
	}
	defer logger.Sync(log)

	if *dir != "" {
		if *dir, err = filepath.Abs(*dir); err != nil {
			log.Error("Invalid migrations path", zap.Error(err))
			return 1
		}
	}

	switch command {
	case "create":
		err = create(*dir, rest, log)
	case "list":
		err = list(*dir, rest, stdout)
	default:
		schema, ok := schemaCommands[command]
		if !ok {
			fmt.Fprintf(stderr, "unknown command %q\n\n", command)
			printUsage(stderr)
			return 1
		}
		err = migrateSchema(*dir, rest, schema, log)
	}

	if errors.Is(err, errUsage) {
		fmt.Fprintln(stderr, err)
		return 1
	}
	if err != nil {
		log.Error("Migration command failed", zap.String("command", command), zap.Error(err))
		return 1
	}
	return 0
}

func migrateSchema(dir string, args []string, fn func(*migration.Migrator, []string, *zap.Logger) error, log *zap.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	source := dir
	if source == "" {
		source = "embedded"
	}
	log.Info("Connecting",
		zap.String("database", cfg.Database.DBName),
		zap.String("host", cfg.Database.Host),
		zap.String("source", source),
	)

	m, err := migration.Open(cfg.Database.DSN(), dir, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := m.Close(); err != nil {
			log.Warn("Failed to close migrator", zap.Error(err))
		}
	}()
	return fn(m, args, log)
}

func create(dir string, args []string, log *zap.Logger) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: migrate create <name> [description]", errUsage)
	}
	if dir == "" {
		dir = defaultMigrationsDir
	}
	var description string
	if len(args) > 1 {
		description = args[1]
	}
	mf, err := migration.CreateMigration(dir, args[0], description)
	if err != nil {
		return err
	}
	log.Info("Migration created",
		zap.Uint("version", mf.Version),
		zap.String("up", mf.UpPath),
		zap.String("down", mf.DownPath),
	)
	return nil
}

func list(dir string, _ []string, w io.Writer) error {
	var (
		names []string
		err   error
	)
	if dir == "" {
		names, err = migration.ListEmbedded()
	} else {
		names, err = migration.ListMigrations(dir)
	}
	if err != nil {
		return err
	}
	for _, name := range names {
		fmt.Fprintln(w, name)
	}
	return nil
}

func intArg(args []string, usage string) (int, error) {
	if len(args) == 0 {
		return 0, fmt.Errorf("%w: migrate %s", errUsage, usage)
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, fmt.Errorf("%w: migrate %s: %q is not a number", errUsage, usage, args[0])
	}
	return n, nil
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `Attendance sync schema migrations

Usage:
  migrate [flags] <command> [arguments]

Commands:
  up                    Apply all pending migrations
  down                  Roll back all migrations
  step <n>              Apply n migrations (negative rolls back)
  version               Show the applied schema version
  force <version>       Mark a version as applied and clear the dirty flag
  create <name> [desc]  Write a new numbered up/down pair
  list                  List migrations

Flags:
  -path string          Migrations directory (default: the embedded set;
                        create writes to ./migrations)
  -log-level string     debug, info, warn, error (default info)

The database comes from config.toml and ATTSYNC_DATABASE_* variables.

Examples:
  migrate up
  migrate step -1
  migrate -path ./migrations list
  migrate create add_department_index "Index attendance facts by department"
`)
}
