// Package quality scores how usable a tabular dataset is.
package quality

import (
	"math"

	"github.com/opst/mlengine/pkg/frame"
)

// Column describes quality of a column.
type Column struct {
	Name         string  `json:"name"`
	Type         string  `json:"type"`
	UniqueValues int     `json:"unique_values"`
	MissingPct   float64 `json:"missing_pct"`
	Nullable     bool    `json:"nullable"`
	HasOutliers  bool    `json:"has_outliers"`
	QualityIssue *string `json:"quality_issue"`
}

type Report struct {
	QualityScore float64  `json:"quality_score"`
	Completeness float64  `json:"completeness"`
	Uniqueness   float64  `json:"uniqueness"`
	Consistency  float64  `json:"consistency"`
	MissingPct   float64  `json:"missing_pct"`
	DuplicatePct float64  `json:"duplicate_pct"`
	TotalRows    int      `json:"total_rows"`
	TotalColumns int      `json:"total_columns"`
	Columns      []Column `json:"schema"`
}

// Assess builds a quality report of f.
//
//	missing_pct   = missing cells / all cells * 100
//	duplicate_pct = duplicated rows / rows * 100
//	quality_score = max(0, 1 - missing_pct/100 - duplicate_pct/200)
//
// A frame without rows or columns scores 1.
func Assess(f *frame.Frame) Report {
	rows, cols := f.Len(), f.Width()

	var missingPct, duplicatePct float64
	if rows > 0 && cols > 0 {
		missingPct = float64(f.MissingCells()) / float64(rows*cols) * 100
		duplicatePct = float64(f.DuplicateRows()) / float64(rows) * 100
	}
	score := math.Max(0, 1-missingPct/100-duplicatePct/200)

	columns := make([]Column, 0, cols)
	for _, name := range f.Columns() {
		s, _ := f.Series(name)
		nulls := s.Nulls()
		var pct float64
		if rows > 0 {
			pct = float64(nulls) / float64(rows) * 100
		}
		columns = append(columns, Column{
			Name:         name,
			Type:         s.DType.String(),
			UniqueValues: s.Unique(),
			MissingPct:   pct,
			Nullable:     nulls > 0,
		})
	}

	return Report{
		QualityScore: score,
		Completeness: 1 - missingPct/100,
		Uniqueness:   1 - duplicatePct/100,
		Consistency:  score,
		MissingPct:   missingPct,
		DuplicatePct: duplicatePct,
		TotalRows:    rows,
		TotalColumns: cols,
		Columns:      columns,
	}
}
