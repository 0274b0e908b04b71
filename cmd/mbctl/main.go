// Command mbctl manages modelbase SQLite database files: creating and
// initializing them, inspecting the schema version, and running SQL files.
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/modelbase/modelbase"
	"github.com/modelbase/modelbase/internal/log"
)

const version = "0.1.0-dev"

// openModel constructs a model for the given path and waits for readiness.
func openModel(path string, cfg modelbase.Config) (*modelbase.Model, error) {
	cfg.Path = path
	m := modelbase.New(cfg)
	if err := m.Ready(); err != nil {
		return nil, err
	}
	return m, nil
}

func runCreate(c *cli.Context) error {
	path := c.String("db")

	m, err := openModel(path, modelbase.Config{
		InitSQL: c.StringSlice("init"),
	})
	if err != nil {
		return err
	}
	defer m.Close()

	if !m.IsNew() {
		log.Warn().Str("path", path).Msg("Database already initialized, init SQL skipped")
	}

	v, err := m.SchemaVersion()
	if err != nil {
		return err
	}
	log.Info().Str("path", path).Int("schema_version", v).Msg("Database ready")
	return nil
}

func runVersion(c *cli.Context) error {
	m, err := openModel(c.String("db"), modelbase.Config{
		Mode: modelbase.OpenReadOnly,
	})
	if err != nil {
		return err
	}
	defer m.Close()

	v, err := m.SchemaVersion()
	if err != nil {
		return err
	}
	fmt.Println(v)
	return nil
}

func runExec(c *cli.Context) error {
	m, err := openModel(c.String("db"), modelbase.Config{
		Mode: modelbase.OpenReadWrite,
	})
	if err != nil {
		return err
	}
	defer m.Close()

	sqlText, err := m.SQLFromFile(c.String("file"))
	if err != nil {
		return err
	}
	return m.ExecSQL(sqlText)
}

func runID(c *cli.Context) error {
	m, err := openModel(c.String("db"), modelbase.Config{
		Mode: modelbase.OpenReadWrite,
	})
	if err != nil {
		return err
	}
	defer m.Close()

	id, err := m.EnsureDatabaseID()
	if err != nil {
		return err
	}
	fmt.Println(id)
	return nil
}

func main() {
	dbFlag := &cli.StringFlag{
		Name:     "db",
		Aliases:  []string{"d"},
		Usage:    "Path to the database file",
		Required: true,
	}

	app := &cli.App{
		Name:    "mbctl",
		Usage:   "modelbase database utility",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: func(c *cli.Context) error {
			level, err := zerolog.ParseLevel(c.String("log-level"))
			if err != nil {
				return fmt.Errorf("invalid log level: %w", err)
			}
			log.SetLevel(level)
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:  "create",
				Usage: "Create and initialize a database",
				Flags: []cli.Flag{
					dbFlag,
					&cli.StringSliceFlag{
						Name:    "init",
						Aliases: []string{"i"},
						Usage:   "Init SQL unit (inline SQL or a .sql file path); repeatable, runs in order",
					},
				},
				Action: runCreate,
			},
			{
				Name:   "version",
				Usage:  "Print the schema version of a database",
				Flags:  []cli.Flag{dbFlag},
				Action: runVersion,
			},
			{
				Name:  "exec",
				Usage: "Execute a SQL file against a database",
				Flags: []cli.Flag{
					dbFlag,
					&cli.StringFlag{
						Name:     "file",
						Aliases:  []string{"f"},
						Usage:    "Path to the SQL file",
						Required: true,
					},
				},
				Action: runExec,
			},
			{
				Name:   "id",
				Usage:  "Print the database UUID, assigning one if needed",
				Flags:  []cli.Flag{dbFlag},
				Action: runID,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Error().Err(err).Msg("mbctl failed")
		os.Exit(1)
	}
}
