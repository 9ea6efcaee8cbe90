package datasets

import (
	"github.com/opst/mlengine/pkg/domain"
	"github.com/opst/mlengine/pkg/quality"
	"github.com/opst/mlengine/pkg/utils/rfctime"
)

// Detail is a dataset as the API shows.
type Detail struct {
	Id          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	FileName    string `json:"file_name"`
	FilePath    string `json:"file_path"`
	FileSize    int64  `json:"file_size"`
	RowCount    int64  `json:"row_count"`
	ColumnCount int64  `json:"column_count"`

	// QualityScore is null until the quality report is computed.
	QualityScore *float64 `json:"quality_score"`
	Status       string   `json:"status"`
	WorkspaceId  string   `json:"workspace_id"`

	// ProjectId is the same as WorkspaceId.
	ProjectId string `json:"project_id"`

	CreatedAt rfctime.RFC3339 `json:"created_at"`
	UpdatedAt rfctime.RFC3339 `json:"updated_at"`
}

func deref(v *int64) int64 {
	if v == nil {
		return 0
	}
	return *v
}

func Compose(d domain.Dataset) Detail {
	return Detail{
		Id:           d.Id,
		Name:         d.Name,
		Description:  d.Description,
		FileName:     d.FileName(),
		FilePath:     d.FilePath,
		FileSize:     d.FileSize,
		RowCount:     deref(d.RowCount),
		ColumnCount:  deref(d.ColumnCount),
		QualityScore: d.QualityScore,
		Status:       d.Status.String(),
		WorkspaceId:  d.WorkspaceId,
		ProjectId:    d.WorkspaceId,
		CreatedAt:    rfctime.RFC3339(d.CreatedAt),
		UpdatedAt:    rfctime.RFC3339(d.UpdatedAt),
	}
}

type Preview struct {
	Columns   []string         `json:"columns"`
	Data      []map[string]any `json:"data"`
	TotalRows int              `json:"total_rows"`
}

type Column struct {
	Name     string `json:"name"`
	DType    string `json:"dtype"`
	Nullable bool   `json:"nullable"`
	Unique   int    `json:"unique_values"`
	Missing  int    `json:"missing"`
}

type Update struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

// Quality is the quality report of a dataset, together with the dataset itself.
type Quality struct {
	Id           string           `json:"id"`
	Name         string           `json:"name"`
	FileName     string           `json:"file_name"`
	FileSize     int64            `json:"file_size"`
	RowCount     int              `json:"row_count"`
	ColumnCount  int              `json:"column_count"`
	QualityScore float64          `json:"quality_score"`
	OverallScore float64          `json:"overall_score"`
	Completeness float64          `json:"completeness_score"`
	Uniqueness   float64          `json:"uniqueness_score"`
	Consistency  float64          `json:"consistency_score"`
	MissingPct   float64          `json:"missing_pct"`
	DuplicatePct float64          `json:"duplicate_rows_pct"`
	Schema       []quality.Column `json:"schema"`
	Status       string           `json:"status"`
	UpdatedAt    rfctime.RFC3339  `json:"updated_at"`
}

func ComposeQuality(d domain.Dataset, r quality.Report) Quality {
	return Quality{
		Id:           d.Id,
		Name:         d.Name,
		FileName:     d.FileName(),
		FileSize:     d.FileSize,
		RowCount:     r.TotalRows,
		ColumnCount:  r.TotalColumns,
		QualityScore: r.QualityScore,
		OverallScore: r.QualityScore,
		Completeness: r.Completeness,
		Uniqueness:   r.Uniqueness,
		Consistency:  r.Consistency,
		MissingPct:   r.MissingPct,
		DuplicatePct: r.DuplicatePct,
		Schema:       r.Columns,
		Status:       d.Status.String(),
		UpdatedAt:    rfctime.RFC3339(d.UpdatedAt),
	}
}
