package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	_ "github.com/mattn/go-sqlite3"

	"labmonitor/shared/settings"
	"labmonitor/tools/migrate"
	"labmonitor/tools/settingsui"
)

const usage = `usage: %s <command>
  migrate [status]             apply pending schema migrations, or list them (SQLITE_PATH)
  settings show                print the settings file (SETTINGS_PATH)
  settings init                write default settings if the file is missing
  settings validate            check the settings file
  settings set key=value ...   update keys and save
  settings edit                interactive editor
`

func main() {
	os.Exit(run(os.Args, os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		fmt.Fprintf(stderr, usage, filepath.Base(args[0]))
		return 1
	}

	var err error
	switch args[1] {
	case "migrate":
		err = runMigrate(args[2:], stdout)
	case "settings":
		err = runSettings(args[2:], envOr("SETTINGS_PATH", "settings.toml"), stdout)
	default:
		fmt.Fprintf(stderr, "unknown command: %s\n", args[1])
		fmt.Fprintf(stderr, usage, filepath.Base(args[0]))
		return 1
	}
	if err != nil {
		fmt.Fprintf(stderr, "%s: %v\n", args[1], err)
		return 1
	}
	return 0
}

func runMigrate(args []string, stdout io.Writer) error {
	conn, err := Open(filepath.Clean(envOr("SQLITE_PATH", "../dev/sqlite/app.db")))
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := conn.Close(); closeErr != nil {
			slog.Error("db close", "err", closeErr)
		}
	}()

	ctx := context.Background()
	switch {
	case len(args) == 0:
		n, err := migrate.Run(ctx, conn, nil)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "applied %d migration(s)\n", n)
		return nil
	case args[0] == "status":
		all, err := migrate.Status(ctx, conn)
		if err != nil {
			return err
		}
		rows := make([][]string, 0, len(all))
		for _, m := range all {
			at := "pending"
			if m.Applied {
				at = m.AppliedAt
			}
			rows = append(rows, []string{m.Version, m.Name, at})
		}
		t := table.New().
			Border(lipgloss.NormalBorder()).
			Headers("VERSION", "NAME", "APPLIED").
			Rows(rows...)
		fmt.Fprintln(stdout, t.Render())
		return nil
	default:
		return fmt.Errorf("unknown migrate subcommand %q", args[0])
	}
}

func runSettings(args []string, path string, stdout io.Writer) error {
	if len(args) == 0 {
		return errors.New("missing subcommand (show, init, validate, set, edit)")
	}
	switch args[0] {
	case "show":
		st, err := settings.Load(path)
		if err != nil {
			return err
		}
		return st.Encode(stdout)
	case "init":
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists", path)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		if err := settings.Default().Save(path); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "wrote %s\n", path)
		return nil
	case "validate":
		st, err := settings.Load(path)
		if err != nil {
			return err
		}
		if err := st.Validate(); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "%s is valid\n", path)
		return nil
	case "set":
		if len(args) < 2 {
			return errors.New("set needs at least one key=value")
		}
		st, err := settings.Load(path)
		if errors.Is(err, fs.ErrNotExist) {
			st, err = settings.Default(), nil
		}
		if err != nil {
			return err
		}
		for _, kv := range args[1:] {
			key, value, ok := strings.Cut(kv, "=")
			if !ok {
				return fmt.Errorf("%q is not key=value", kv)
			}
			if err := st.Set(strings.TrimSpace(key), value); err != nil {
				return err
			}
		}
		if err := st.Validate(); err != nil {
			return err
		}
		if err := st.Save(path); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "updated %s\n", path)
		return nil
	case "edit":
		return settingsui.Run(path)
	default:
		return fmt.Errorf("unknown settings subcommand %q", args[0])
	}
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func Open(dbPath string) (*sql.DB, error) {
	dsn, err := buildDSN(dbPath)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}

	return db, nil
}

func buildDSN(dbPath string) (string, error) {
	params := []string{
		"_foreign_keys=on",
		"_busy_timeout=5000",
		"_journal_mode=WAL",
	}

	if strings.HasPrefix(dbPath, "file:") {
		sep := "?"
		if strings.Contains(dbPath, "?") {
			sep = "&"
		}
		return dbPath + sep + strings.Join(params, "&"), nil
	}

	return fmt.Sprintf("file:%s?%s", dbPath, strings.Join(params, "&")), nil
}
