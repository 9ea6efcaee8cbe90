package main

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strconv"

	"github.com/opst/mlengine/pkg/domain/mlengine"
	kio "github.com/opst/mlengine/pkg/io"
	"github.com/opst/mlengine/pkg/utils/try"
	"github.com/youta-t/flarc"
)

type Flag struct {
	Host     string `flag:"host" help:"The host of the database."`
	Port     int    `flag:"port" help:"The port of the database."`
	User     string `flag:"user" help:"The user of the database."`
	Password string `flag:"pass" help:"The password of the database."`
	Database string `flag:"database" help:"The name of the database."`

	Schema string `flag:"schema" help:"The path to the schema repository directory."`
	DryRun bool   `flag:"dry-run" help:"Print the current schema version without upgrading."`
}

const ARG_SCHEMA_DEST = "ARG_SCHEMA_DEST"

func databaseURL(f Flag) string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(f.User, f.Password),
		Host:   fmt.Sprintf("%s:%d", f.Host, f.Port),
		Path:   "/" + f.Database,
	}
	return u.String()
}

func main() {
	logger := log.Default()
	ctx, cancel := signal.NotifyContext(
		context.Background(),
		os.Interrupt, os.Kill,
	)
	defer cancel()

	port := 5432
	if sp := os.Getenv("DB_PORT"); sp != "" {
		p, err := strconv.Atoi(sp)
		if err == nil {
			port = p
		}
	}

	cmd := try.To(flarc.NewCommand(
		"database schema upgrader",
		Flag{
			Host:     os.Getenv("DB_HOST"),
			Port:     port,
			User:     os.Getenv("DB_USER"),
			Password: os.Getenv("DB_PASSWORD"),
			Database: os.Getenv("DB_NAME"),

			Schema: os.Getenv("MLENGINE_SCHEMA"),
		},
		flarc.Args{
			{
				Name: ARG_SCHEMA_DEST, Help: "The schema files are copied to these directories.",
				Required: false, Repeatable: false,
			},
		},
		func(ctx context.Context, c flarc.Commandline[Flag], a []any) error {
			flags := c.Flags()
			if flags.Schema == "" {
				return fmt.Errorf("%w: --schema is required", flarc.ErrUsage)
			}

			dest := c.Args()[ARG_SCHEMA_DEST]
			if len(dest) != 0 {
				logger.Println("copying schema files...")
				if err := kio.DirCopy(flags.Schema, dest[0]); err != nil {
					return err
				}
			}

			ml, err := mlengine.New(
				ctx, databaseURL(flags),
				mlengine.WithSchemaRepository(flags.Schema),
			)
			if err != nil {
				return err
			}
			defer ml.Close()

			schema := ml.Schema().Database()
			before, err := schema.Version(ctx)
			if err != nil {
				return err
			}
			if flags.DryRun {
				fmt.Fprintf(c.Stdout(), "schema version: %d\n", before)
				return nil
			}

			if err := schema.Upgrade(ctx); err != nil {
				return err
			}
			after, err := schema.Version(ctx)
			if err != nil {
				return err
			}
			logger.Printf("schema version: %d -> %d", before, after)
			return nil
		},
	)).OrFatal(logger)

	os.Exit(flarc.Run(ctx, cmd))
}
