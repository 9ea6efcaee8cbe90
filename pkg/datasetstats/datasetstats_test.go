package datasetstats_test

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/opst/mlengine/pkg/datasetstats"
	"github.com/opst/mlengine/pkg/domain"
	dsmock "github.com/opst/mlengine/pkg/domain/dataset/db/mock"
	lockmock "github.com/opst/mlengine/pkg/domain/lock/db/mock"
)

func TestVerifySchema(t *testing.T) {
	for name, testcase := range map[string]struct {
		columns []string
		want    []string
	}{
		"When the table has every required column, nothing is missing": {
			columns: []string{
				"id", "name", "description", "workspace_id", "file_path", "file_size",
				"row_count", "column_count", "status", "quality_score", "created_at", "updated_at",
			},
			want: []string{},
		},
		"When some columns are missing, they are reported in the required order": {
			columns: []string{"id", "name", "workspace_id", "file_path", "file_size", "status", "created_at"},
			want:    []string{"row_count", "column_count", "updated_at"},
		},
	} {
		t.Run(name, func(t *testing.T) {
			ds := dsmock.NewDatasetInterface()
			ds.Impl.Columns = func(context.Context) ([]string, error) {
				return testcase.columns, nil
			}

			missing, err := datasetstats.VerifySchema(context.Background(), ds)
			if err != nil {
				t.Fatal(err)
			}
			got := []string{}
			for _, m := range missing {
				got = append(got, m.Column)
				if !strings.HasPrefix(m.Suggestion, `ALTER TABLE "dataset" ADD COLUMN "`+m.Column+`" `) {
					t.Errorf("suggestion for %s: %s", m.Column, m.Suggestion)
				}
			}
			if diff := cmp.Diff(testcase.want, got); diff != "" {
				t.Errorf("(-want +got):\n%s", diff)
			}
		})
	}

	t.Run("When columns cannot be listed, it returns the error", func(t *testing.T) {
		expected := errors.New("fake")
		ds := dsmock.NewDatasetInterface()
		ds.Impl.Columns = func(context.Context) ([]string, error) { return nil, expected }
		if _, err := datasetstats.VerifySchema(context.Background(), ds); !errors.Is(err, expected) {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

func TestCountFile(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) string {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
		return p
	}

	t.Run("It counts rows without the header, and columns", func(t *testing.T) {
		p := write("iris.csv", "a,b,c\n1,2,3\n4,5,6\n")
		got, err := datasetstats.CountFile(p)
		if err != nil {
			t.Fatal(err)
		}
		if want := (domain.DatasetStats{RowCount: 2, ColumnCount: 3}); got != want {
			t.Errorf("got %+v, want %+v", got, want)
		}
	})

	for name, testcase := range map[string]struct {
		path string
		want error
	}{
		"empty path":  {path: "", want: datasetstats.ErrNoFilePath},
		"no file":     {path: filepath.Join(dir, "missing.csv"), want: datasetstats.ErrFileNotFound},
		"header only": {path: write("header.csv", "a,b\n"), want: datasetstats.ErrEmptyFile},
		"empty file":  {path: write("empty.csv", ""), want: datasetstats.ErrEmptyFile},
	} {
		t.Run("When the file is "+name+", it fails", func(t *testing.T) {
			if _, err := datasetstats.CountFile(testcase.path); !errors.Is(err, testcase.want) {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestUpdater(t *testing.T) {
	t.Run("It updates datasets whose files are readable, and counts the others as failed", func(t *testing.T) {
		dir := t.TempDir()
		good := filepath.Join(dir, "good.csv")
		if err := os.WriteFile(good, []byte("x,y\n1,2\n3,4\n5,6\n"), 0o644); err != nil {
			t.Fatal(err)
		}

		targets := []domain.Dataset{
			{Id: "ds-1", Name: "good", FilePath: good},
			{Id: "ds-2", Name: "no path"},
			{Id: "ds-3", Name: "gone", FilePath: filepath.Join(dir, "gone.csv")},
		}

		ds := dsmock.NewDatasetInterface()
		ds.Impl.FindMissingStats = func(context.Context) ([]domain.Dataset, error) {
			return targets, nil
		}
		ds.Impl.SetStats = func(context.Context, string, domain.DatasetStats) error {
			return nil
		}
		lock := lockmock.NewLockInterface()

		summary, err := datasetstats.New(ds, lock).Run(context.Background())
		if err != nil {
			t.Fatal(err)
		}

		if summary.Total() != 3 || summary.Updated() != 1 || summary.Failed() != 2 {
			t.Errorf("summary: %s", summary)
		}
		if got := summary.String(); got != "total: 3, updated: 1, failed: 2" {
			t.Errorf("String: %s", got)
		}
		want := []dsmock.SetStatsArgs{
			{Id: "ds-1", Stats: domain.DatasetStats{RowCount: 3, ColumnCount: 2}},
		}
		if diff := cmp.Diff(want, []dsmock.SetStatsArgs(ds.Calls.SetStats)); diff != "" {
			t.Errorf("SetStats (-want +got):\n%s", diff)
		}
		if !errors.Is(summary.Outcomes[1].Err, datasetstats.ErrNoFilePath) {
			t.Errorf("ds-2: %v", summary.Outcomes[1].Err)
		}
		if !errors.Is(summary.Outcomes[2].Err, datasetstats.ErrFileNotFound) {
			t.Errorf("ds-3: %v", summary.Outcomes[2].Err)
		}
		if diff := cmp.Diff([]string{datasetstats.LockName}, []string(lock.Calls.Lock)); diff != "" {
			t.Errorf("Lock (-want +got):\n%s", diff)
		}
	})

	t.Run("When recording stats fails, it stops with the error", func(t *testing.T) {
		expected := errors.New("fake")
		ds := dsmock.NewDatasetInterface()
		ds.Impl.SetStats = func(context.Context, string, domain.DatasetStats) error {
			return expected
		}

		testee := datasetstats.New(
			ds, lockmock.NewLockInterface(),
			datasetstats.WithCounter(func(string) (domain.DatasetStats, error) {
				return domain.DatasetStats{RowCount: 1, ColumnCount: 1}, nil
			}),
		)
		_, err := testee.Update(context.Background(), []domain.Dataset{{Id: "ds-1"}, {Id: "ds-2"}})
		if !errors.Is(err, expected) {
			t.Errorf("unexpected error: %v", err)
		}
		if ds.Calls.SetStats.Times() != 1 {
			t.Errorf("SetStats is called %d times", ds.Calls.SetStats.Times())
		}
	})

	t.Run("When there are no pending datasets, nothing is updated", func(t *testing.T) {
		ds := dsmock.NewDatasetInterface()
		ds.Impl.FindMissingStats = func(context.Context) ([]domain.Dataset, error) {
			return []domain.Dataset{}, nil
		}
		summary, err := datasetstats.New(ds, lockmock.NewLockInterface()).Run(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if summary.Total() != 0 {
			t.Errorf("summary: %s", summary)
		}
	})
}

func TestUpdater_Show(t *testing.T) {
	t.Run("It lists datasets with their counts before and after an update", func(t *testing.T) {
		datasets := map[string]*domain.Dataset{
			"ds-1": {Id: "ds-1", Name: "loans", Status: domain.DatasetActive, FilePath: "/data/loans.csv"},
			"ds-2": {Id: "ds-2", Name: "orphan", Status: domain.DatasetError},
		}
		ds := dsmock.NewDatasetInterface()
		ds.Impl.All = func(context.Context) ([]domain.Dataset, error) {
			return []domain.Dataset{*datasets["ds-1"], *datasets["ds-2"]}, nil
		}
		ds.Impl.SetStats = func(_ context.Context, id string, stats domain.DatasetStats) error {
			datasets[id].RowCount = &stats.RowCount
			datasets[id].ColumnCount = &stats.ColumnCount
			return nil
		}

		testee := datasetstats.New(
			ds, lockmock.NewLockInterface(),
			datasetstats.WithCounter(func(path string) (domain.DatasetStats, error) {
				if path == "" {
					return domain.DatasetStats{}, datasetstats.ErrNoFilePath
				}
				return domain.DatasetStats{RowCount: 120, ColumnCount: 7}, nil
			}),
		)

		fields := func(listing string) [][]string {
			ret := [][]string{}
			for _, l := range strings.Split(strings.TrimSpace(listing), "\n") {
				ret = append(ret, strings.Fields(l))
			}
			return ret
		}

		before := new(strings.Builder)
		if err := testee.Show(context.Background(), before); err != nil {
			t.Fatal(err)
		}
		if _, err := testee.Update(context.Background(), []domain.Dataset{*datasets["ds-1"], *datasets["ds-2"]}); err != nil {
			t.Fatal(err)
		}
		after := new(strings.Builder)
		if err := testee.Show(context.Background(), after); err != nil {
			t.Fatal(err)
		}

		wantBefore := [][]string{
			{"ID", "NAME", "STATUS", "ROWS", "COLUMNS"},
			{"ds-1", "loans", "ACTIVE", "-", "-"},
			{"ds-2", "orphan", "ERROR", "-", "-"},
			{"(2", "datasets)"},
		}
		if diff := cmp.Diff(wantBefore, fields(before.String())); diff != "" {
			t.Errorf("before (-want +got):\n%s", diff)
		}
		wantAfter := [][]string{
			{"ID", "NAME", "STATUS", "ROWS", "COLUMNS"},
			{"ds-1", "loans", "ACTIVE", "120", "7"},
			{"ds-2", "orphan", "ERROR", "-", "-"},
			{"(2", "datasets)"},
		}
		if diff := cmp.Diff(wantAfter, fields(after.String())); diff != "" {
			t.Errorf("after (-want +got):\n%s", diff)
		}
	})

	t.Run("When datasets cannot be listed, it returns the error", func(t *testing.T) {
		expected := errors.New("fake")
		ds := dsmock.NewDatasetInterface()
		ds.Impl.All = func(context.Context) ([]domain.Dataset, error) { return nil, expected }
		if err := datasetstats.New(ds, lockmock.NewLockInterface()).Show(context.Background(), io.Discard); !errors.Is(err, expected) {
			t.Errorf("unexpected error: %v", err)
		}
	})
}
