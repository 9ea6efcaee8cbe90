package domain_test

import (
	"errors"
	"testing"

	"github.com/opst/mlengine/pkg/domain"
)

func TestAsLoopType(t *testing.T) {
	for in, want := range map[string]domain.LoopType{
		"automl":           domain.AutoML,
		"dataset_stats":    domain.DatasetStatsLoop,
		"datasource_probe": domain.DataSourceProbe,
	} {
		t.Run("it accepts "+in, func(t *testing.T) {
			got, err := domain.AsLoopType(in)
			if err != nil {
				t.Fatal(err)
			}
			if got != want || !got.IsKnown() || got.String() != in {
				t.Errorf("got %s, want %s", got, want)
			}
		})
	}

	t.Run("it rejects unknown loop types", func(t *testing.T) {
		if _, err := domain.AsLoopType("gc"); !errors.Is(err, domain.ErrUnknownLoopType) {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("the loop of dataset stats is distinct from counts of a dataset", func(t *testing.T) {
		stats := domain.DatasetStats{RowCount: 3, ColumnCount: 2}
		if stats.RowCount != 3 || domain.DatasetStatsLoop.String() != "dataset_stats" {
			t.Errorf("stats: %+v, loop: %s", stats, domain.DatasetStatsLoop)
		}
	})
}
