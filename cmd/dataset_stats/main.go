package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"

	"github.com/opst/mlengine/pkg/configs/server"
	"github.com/opst/mlengine/pkg/datasetstats"
	"github.com/opst/mlengine/pkg/domain/mlengine"
	"github.com/opst/mlengine/pkg/utils/try"
	"github.com/youta-t/flarc"
)

type Flag struct {
	Config   string `flag:"config" help:"The path to the config file. Its database.url is used unless --database-url is given."`
	Database string `flag:"database-url" help:"The URL of the database."`
	Yes      bool   `flag:"yes" help:"Update without confirmation."`
	DryRun   bool   `flag:"dry-run" help:"List datasets to be updated, and exit."`
}

var ErrSchema = errors.New("dataset table lacks required columns")

func databaseURL(f Flag) (string, error) {
	if f.Database != "" {
		return f.Database, nil
	}
	if f.Config == "" {
		return "", fmt.Errorf("%w: either --database-url or --config is required", flarc.ErrUsage)
	}
	conf, err := server.LoadConfig(f.Config)
	if err != nil {
		return "", err
	}
	return conf.Database().URL(), nil
}

// confirm reads an answer from stdin. Only "y" or "yes" is yes.
func confirm(stdin io.Reader, stdout io.Writer, n int) bool {
	fmt.Fprintf(stdout, "update %d datasets? [y/N]: ", n)
	answer, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil && answer == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	}
	return false
}

func run(ctx context.Context, logger *log.Logger, c flarc.Commandline[Flag], updater *datasetstats.Updater, missing []datasetstats.MissingColumn) error {
	flags := c.Flags()
	stdout := c.Stdout()

	if len(missing) != 0 {
		fmt.Fprintln(stdout, "required columns are missing in the dataset table. Try:")
		for _, m := range missing {
			fmt.Fprintf(stdout, "  %s\n", m.Suggestion)
		}
		return ErrSchema
	}

	if !flags.DryRun {
		fmt.Fprintln(stdout, "datasets before update:")
		if err := updater.Show(ctx, stdout); err != nil {
			return err
		}
	}

	targets, err := updater.Pending(ctx)
	if err != nil {
		return err
	}
	if len(targets) == 0 {
		fmt.Fprintln(stdout, "every dataset has its stats.")
		return nil
	}

	fmt.Fprintf(stdout, "%d datasets lack stats:\n", len(targets))
	for _, d := range targets {
		fmt.Fprintf(stdout, "  %s\t%s\t%s\n", d.Id, d.Name, d.FilePath)
	}
	if flags.DryRun {
		return nil
	}
	if !flags.Yes && !confirm(c.Stdin(), stdout, len(targets)) {
		fmt.Fprintln(stdout, "cancelled.")
		return nil
	}

	summary, err := updater.Update(ctx, targets)
	fmt.Fprintln(stdout, summary.String())
	for _, o := range summary.Outcomes {
		if o.Err != nil {
			logger.Printf("failed: %s (%s): %v", o.Dataset.Id, o.Dataset.Name, o.Err)
		}
	}
	if err != nil {
		return err
	}

	fmt.Fprintln(stdout, "datasets after update:")
	return updater.Show(ctx, stdout)
}

func main() {
	logger := log.Default()
	ctx, cancel := signal.NotifyContext(
		context.Background(),
		os.Interrupt, os.Kill,
	)
	defer cancel()

	cmd := try.To(flarc.NewCommand(
		"fill row and column counts of datasets missing them",
		Flag{
			Config:   os.Getenv("MLENGINE_CONFIG"),
			Database: os.Getenv("DATABASE_URL"),
		},
		flarc.Args{},
		func(ctx context.Context, c flarc.Commandline[Flag], a []any) error {
			url, err := databaseURL(c.Flags())
			if err != nil {
				return err
			}
			ml, err := mlengine.New(ctx, url)
			if err != nil {
				return err
			}
			defer ml.Close()

			datasets := ml.Dataset().Database()
			missing, err := datasetstats.VerifySchema(ctx, datasets)
			if err != nil {
				return err
			}
			updater := datasetstats.New(datasets, ml.Lock().Database(), datasetstats.WithLogger(logger))
			return run(ctx, logger, c, updater, missing)
		},
	)).OrFatal(logger)

	os.Exit(flarc.Run(ctx, cmd))
}
