package datasources

import (
	"github.com/opst/mlengine/pkg/connectors"
	"github.com/opst/mlengine/pkg/domain"
	"github.com/opst/mlengine/pkg/utils/rfctime"
)

// Config is a data source configuration in requests.
//
// It is used for creating, updating, validating and testing data sources.
type Config struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	SourceType  string         `json:"source_type"`
	Params      map[string]any `json:"params"`
	QueryOrPath string         `json:"query_or_path"`
	SampleSize  int            `json:"sample_size"`
	WorkspaceId string         `json:"workspace_id"`
}

func (c Config) Spec() domain.DataSourceSpec {
	params := c.Params
	if params == nil {
		params = map[string]any{}
	}
	return domain.DataSourceSpec{
		Name:        c.Name,
		Description: c.Description,
		SourceType:  c.SourceType,
		Params:      params,
		QueryOrPath: c.QueryOrPath,
		SampleSize:  c.SampleSize,
		WorkspaceId: c.WorkspaceId,
	}
}

type Detail struct {
	Id string `json:"id"`
	Config

	Status       string           `json:"status"`
	LastTestedAt *rfctime.RFC3339 `json:"last_tested_at"`
	ErrorMessage string           `json:"error_message,omitempty"`

	CreatedAt rfctime.RFC3339 `json:"created_at"`
	UpdatedAt rfctime.RFC3339 `json:"updated_at"`
}

func Compose(ds domain.DataSource) Detail {
	var tested *rfctime.RFC3339
	if ds.LastTestedAt != nil {
		t := rfctime.RFC3339(*ds.LastTestedAt)
		tested = &t
	}
	return Detail{
		Id: ds.Id,
		Config: Config{
			Name:        ds.Name,
			Description: ds.Description,
			SourceType:  ds.SourceType,
			Params:      ds.Params,
			QueryOrPath: ds.QueryOrPath,
			SampleSize:  ds.SampleSize,
			WorkspaceId: ds.WorkspaceId,
		},
		Status:       ds.Status.String(),
		LastTestedAt: tested,
		ErrorMessage: ds.ErrorMessage,
		CreatedAt:    rfctime.RFC3339(ds.CreatedAt),
		UpdatedAt:    rfctime.RFC3339(ds.UpdatedAt),
	}
}

type Validation struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

type Preview struct {
	Columns []string         `json:"columns"`
	Data    []map[string]any `json:"data"`
	Rows    int              `json:"rows"`

	// Table is set when a table is previewed instead of the query.
	Table string `json:"table,omitempty"`
}

// Browse lists tables in a data source.
type Browse struct {
	SourceId    string             `json:"data_source_id"`
	SourceName  string             `json:"data_source_name"`
	SourceType  string             `json:"data_source_type"`
	Tables      []connectors.Table `json:"tables"`
	TotalTables int                `json:"total_tables"`
}

// Import is a request to import a data source as a dataset.
type Import struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	WorkspaceId string `json:"workspace_id"`
}
