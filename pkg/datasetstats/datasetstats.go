// Package datasetstats fills row and column counts of datasets missing them.
package datasetstats

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"slices"
	"strconv"

	"github.com/opst/mlengine/pkg/domain"
	kdataset "github.com/opst/mlengine/pkg/domain/dataset/db"
	klock "github.com/opst/mlengine/pkg/domain/lock/db"
	xe "github.com/opst/mlengine/pkg/errors"
	"github.com/opst/mlengine/pkg/frame"
)

// LockName is the name of the lock held while datasets are updated.
const LockName = "dataset_stats"

// RequiredColumns must be in the table of datasets.
var RequiredColumns = []string{
	"id", "name", "workspace_id", "file_path", "file_size",
	"row_count", "column_count", "status", "created_at", "updated_at",
}

var columnDefinitions = map[string]string{
	"id":           `varchar PRIMARY KEY`,
	"name":         `varchar NOT NULL DEFAULT ''`,
	"workspace_id": `varchar`,
	"file_path":    `varchar`,
	"file_size":    `bigint`,
	"row_count":    `bigint DEFAULT 0`,
	"column_count": `bigint DEFAULT 0`,
	"status":       `"dataset_status" NOT NULL DEFAULT 'ACTIVE'`,
	"created_at":   `timestamp with time zone NOT NULL DEFAULT now()`,
	"updated_at":   `timestamp with time zone NOT NULL DEFAULT now()`,
}

// MissingColumn is a required column not in the table.
type MissingColumn struct {
	Column string

	// Suggestion is a statement adding the column.
	Suggestion string
}

// VerifySchema finds required columns missing in the table of datasets.
//
// # Returns
//
// - []MissingColumn: empty when the table has every required column.
//
// - error
func VerifySchema(ctx context.Context, datasets kdataset.DatasetInterface) ([]MissingColumn, error) {
	cols, err := datasets.Columns(ctx)
	if err != nil {
		return nil, err
	}

	missing := []MissingColumn{}
	for _, c := range RequiredColumns {
		if slices.Contains(cols, c) {
			continue
		}
		missing = append(missing, MissingColumn{
			Column:     c,
			Suggestion: fmt.Sprintf(`ALTER TABLE "dataset" ADD COLUMN "%s" %s;`, c, columnDefinitions[c]),
		})
	}
	return missing, nil
}

var (
	ErrNoFilePath   = errors.New("no file path")
	ErrFileNotFound = errors.New("file not found")
	ErrEmptyFile    = errors.New("no rows or no columns")
)

// CountFile reads a CSV file and counts its rows and columns.
func CountFile(path string) (domain.DatasetStats, error) {
	if path == "" {
		return domain.DatasetStats{}, ErrNoFilePath
	}
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return domain.DatasetStats{}, xe.WrapWithNote(path, ErrFileNotFound)
	} else if err != nil {
		return domain.DatasetStats{}, xe.Wrap(err)
	}
	defer f.Close()

	return count(f)
}

func count(r io.Reader) (domain.DatasetStats, error) {
	fr, err := frame.ReadCSV(r, frame.CSVOptions{})
	if err != nil {
		return domain.DatasetStats{}, err
	}
	stats := domain.DatasetStats{RowCount: int64(fr.Len()), ColumnCount: int64(fr.Width())}
	if stats.RowCount <= 0 || stats.ColumnCount <= 0 {
		return stats, ErrEmptyFile
	}
	return stats, nil
}

// Outcome is what happened to a dataset.
type Outcome struct {
	Dataset domain.Dataset
	Stats   domain.DatasetStats

	// Err is nil when the dataset is updated.
	Err error
}

type Summary struct {
	Outcomes []Outcome
}

func (s Summary) Total() int {
	return len(s.Outcomes)
}

func (s Summary) Updated() int {
	n := 0
	for _, o := range s.Outcomes {
		if o.Err == nil {
			n++
		}
	}
	return n
}

func (s Summary) Failed() int {
	return s.Total() - s.Updated()
}

func (s Summary) String() string {
	return fmt.Sprintf("total: %d, updated: %d, failed: %d", s.Total(), s.Updated(), s.Failed())
}

type Updater struct {
	datasets kdataset.DatasetInterface
	lock     klock.LockInterface
	logger   *log.Logger

	count func(path string) (domain.DatasetStats, error)
}

type Option func(*Updater)

func WithLogger(logger *log.Logger) Option {
	return func(u *Updater) {
		u.logger = logger
	}
}

// WithCounter replaces how files are counted.
func WithCounter(count func(path string) (domain.DatasetStats, error)) Option {
	return func(u *Updater) {
		u.count = count
	}
}

func New(datasets kdataset.DatasetInterface, lock klock.LockInterface, options ...Option) *Updater {
	u := &Updater{
		datasets: datasets,
		lock:     lock,
		logger:   log.New(io.Discard, "", 0),
		count:    CountFile,
	}
	for _, o := range options {
		o(u)
	}
	return u
}

// Pending lists datasets whose row or column count is missing.
func (u *Updater) Pending(ctx context.Context) ([]domain.Dataset, error) {
	return u.datasets.FindMissingStats(ctx)
}

// Show writes every dataset with its row and column counts to w, oldest first.
//
// Counts not computed yet are shown as "-".
func (u *Updater) Show(ctx context.Context, w io.Writer) error {
	all, err := u.datasets.All(ctx)
	if err != nil {
		return err
	}
	return WriteListing(w, all)
}

func countOf(n *int64) string {
	if n == nil {
		return "-"
	}
	return strconv.FormatInt(*n, 10)
}

// WriteListing writes datasets as a table of id, name, status, rows and columns.
func WriteListing(w io.Writer, datasets []domain.Dataset) error {
	const row = "%-36s  %-30s  %-10s  %10s  %8s\n"
	if _, err := fmt.Fprintf(w, row, "ID", "NAME", "STATUS", "ROWS", "COLUMNS"); err != nil {
		return err
	}
	for _, d := range datasets {
		_, err := fmt.Fprintf(
			w, row, d.Id, d.Name, d.Status, countOf(d.RowCount), countOf(d.ColumnCount),
		)
		if err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "(%d datasets)\n", len(datasets))
	return err
}

// Update counts files of targets and records the counts.
//
// A dataset whose file is missing or empty is counted as failed, and the others go on.
// Errors from the database stop updating.
func (u *Updater) Update(ctx context.Context, targets []domain.Dataset) (Summary, error) {
	summary := Summary{Outcomes: []Outcome{}}
	err := u.lock.Lock(ctx, LockName, func(ctx context.Context) error {
		total := len(targets)
		for n, d := range targets {
			if err := ctx.Err(); err != nil {
				return err
			}
			u.logger.Printf("[%d/%d] %s (id: %s, path: %s)", n+1, total, d.Name, d.Id, d.FilePath)

			stats, err := u.count(d.FilePath)
			if err != nil {
				u.logger.Printf("  skipped: %v", err)
				summary.Outcomes = append(summary.Outcomes, Outcome{Dataset: d, Stats: stats, Err: err})
				continue
			}
			if err := u.datasets.SetStats(ctx, d.Id, stats); err != nil {
				return err
			}
			u.logger.Printf("  updated: %d rows, %d columns", stats.RowCount, stats.ColumnCount)
			summary.Outcomes = append(summary.Outcomes, Outcome{Dataset: d, Stats: stats})
		}
		return nil
	})
	return summary, err
}

// Run updates every pending dataset.
func (u *Updater) Run(ctx context.Context) (Summary, error) {
	targets, err := u.Pending(ctx)
	if err != nil {
		return Summary{}, err
	}
	return u.Update(ctx, targets)
}
