package quality_test

import (
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/opst/mlengine/pkg/frame"
	"github.com/opst/mlengine/pkg/quality"
)

func TestAssess(t *testing.T) {
	approx := cmpopts.EquateApprox(0, 1e-9)

	t.Run("it scores missing cells and duplicated rows", func(t *testing.T) {
		// 4 rows x 2 cols: 2 missing cells (25%), 1 duplicated row (25%).
		f, err := frame.ReadCSV(strings.NewReader("a,b\n1,x\n1,x\n2,\n,y\n"), frame.CSVOptions{})
		if err != nil {
			t.Fatal(err)
		}

		got := quality.Assess(f)
		want := quality.Report{
			QualityScore: 1 - 0.25 - 0.125,
			Completeness: 0.75,
			Uniqueness:   0.75,
			Consistency:  1 - 0.25 - 0.125,
			MissingPct:   25,
			DuplicatePct: 25,
			TotalRows:    4,
			TotalColumns: 2,
			Columns: []quality.Column{
				{Name: "a", Type: "int64", UniqueValues: 2, MissingPct: 25, Nullable: true},
				{Name: "b", Type: "object", UniqueValues: 2, MissingPct: 25, Nullable: true},
			},
		}
		if diff := cmp.Diff(want, got, approx); diff != "" {
			t.Errorf("report (-want +got):\n%s", diff)
		}
	})

	t.Run("score never goes below zero", func(t *testing.T) {
		f, err := frame.FromRows([]string{"a", "b"}, [][]any{{nil, nil}, {nil, nil}})
		if err != nil {
			t.Fatal(err)
		}
		got := quality.Assess(f)
		if got.QualityScore != 0 {
			t.Errorf("quality score = %v, want 0", got.QualityScore)
		}
		if math.Abs(got.Completeness) > 1e-9 {
			t.Errorf("completeness = %v, want 0", got.Completeness)
		}
	})

	t.Run("an empty frame scores 1", func(t *testing.T) {
		got := quality.Assess(frame.Empty())
		if got.QualityScore != 1 || got.MissingPct != 0 || got.DuplicatePct != 0 {
			t.Errorf("report = %+v", got)
		}
	})
}
