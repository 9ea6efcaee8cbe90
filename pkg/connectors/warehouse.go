package connectors

import (
	"context"
	"strconv"
	"strings"
	"time"

	"google.golang.org/api/bigquery/v2"
	"google.golang.org/api/googleapi"

	xe "github.com/opst/mlengine/pkg/errors"
	"github.com/opst/mlengine/pkg/frame"
)

func registerWarehouses() {
	register(&Kind{
		ID: "bigquery", Name: "BigQuery", Description: "Google BigQuery",
		Category:    CategoryDataWarehouses,
		Required:    []string{"project_id"},
		Optional:    map[string]any{"credentials_path": nil, "location": nil},
		label:       "BigQuery",
		limitOnLoad: true,
		build:       newBigQuerySource,
	})
	registerSQLWarehouses()
}

const bigqueryPollInterval = time.Second

type bigquerySource struct {
	project  string
	location string
	query    string
	params   map[string]any

	svc *bigquery.Service
}

func newBigQuerySource(cfg Config) (source, error) {
	return &bigquerySource{
		project:  paramString(cfg.Params, "project_id", ""),
		location: paramString(cfg.Params, "location", ""),
		query:    cfg.QueryOrPath,
		params:   cfg.Params,
	}, nil
}

func (b *bigquerySource) open(ctx context.Context) error {
	opts, err := googleOptions(ctx, b.params, bigquery.BigqueryScope)
	if err != nil {
		return err
	}
	svc, err := bigquery.NewService(ctx, opts...)
	if err != nil {
		return xe.Wrap(err)
	}
	b.svc = svc
	return nil
}

func (b *bigquerySource) close() error {
	b.svc = nil
	return nil
}

func (b *bigquerySource) probe(ctx context.Context) (map[string]any, error) {
	if _, err := b.run(ctx, "SELECT 1 as test"); err != nil {
		return nil, err
	}
	return map[string]any{"project_id": b.project}, nil
}

func (b *bigquerySource) read(ctx context.Context, limit int) (*frame.Frame, error) {
	q := b.query
	if 0 < limit {
		q = limitOnlyClause(q, limit)
	}
	return b.run(ctx, q)
}

var _ browser = &bigquerySource{}

// tables lists tables of every dataset in the project.
func (b *bigquerySource) tables(ctx context.Context) ([]Table, error) {
	ts := []Table{}
	err := b.svc.Datasets.List(b.project).Pages(ctx, func(dl *bigquery.DatasetList) error {
		for _, d := range dl.Datasets {
			dataset := d.DatasetReference.DatasetId
			err := b.svc.Tables.List(b.project, dataset).Pages(ctx, func(tl *bigquery.TableList) error {
				for _, t := range tl.Tables {
					ts = append(ts, Table{Schema: dataset, Name: t.TableReference.TableId})
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, xe.Wrap(err)
	}
	return ts, nil
}

// readTable reads "dataset.table" of the project.
func (b *bigquerySource) readTable(ctx context.Context, table string, limit int) (*frame.Frame, error) {
	if !reTableName.MatchString(table) || !strings.Contains(table, ".") {
		return nil, xe.WrapWithNote(table+`: should be "dataset.table"`, ErrInvalidTableName)
	}
	q := "SELECT * FROM `" + b.project + "." + table + "`"
	if 0 < limit {
		q = limitOnlyClause(q, limit)
	}
	return b.run(ctx, q)
}

// run executes a standard SQL query and pages through all of its rows.
func (b *bigquerySource) run(ctx context.Context, query string) (*frame.Frame, error) {
	req := &bigquery.QueryRequest{
		Query:        query,
		UseLegacySql: googleapi.Bool(false),
		Location:     b.location,
	}
	resp, err := b.svc.Jobs.Query(b.project, req).Context(ctx).Do()
	if err != nil {
		return nil, xe.Wrap(err)
	}

	schema := resp.Schema
	rows := resp.Rows
	complete := resp.JobComplete
	pageToken := resp.PageToken
	jobRef := resp.JobReference

	for !complete || pageToken != "" {
		if !complete {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(bigqueryPollInterval):
			}
		}
		call := b.svc.Jobs.GetQueryResults(jobRef.ProjectId, jobRef.JobId).Context(ctx)
		if jobRef.Location != "" {
			call = call.Location(jobRef.Location)
		}
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		page, err := call.Do()
		if err != nil {
			return nil, xe.Wrap(err)
		}
		complete = page.JobComplete
		if !complete {
			continue
		}
		if schema == nil {
			schema = page.Schema
		}
		rows = append(rows, page.Rows...)
		pageToken = page.PageToken
	}

	if schema == nil {
		return frame.Empty(), nil
	}
	columns := make([]string, len(schema.Fields))
	for i, f := range schema.Fields {
		columns[i] = f.Name
	}
	data := make([][]any, len(rows))
	for r, row := range rows {
		vals := make([]any, len(columns))
		for c, cell := range row.F {
			if c < len(schema.Fields) {
				vals[c] = bigqueryValue(schema.Fields[c].Type, cell.V)
			}
		}
		data[r] = vals
	}
	return frame.FromRows(columns, data)
}

// bigqueryValue converts a cell, which comes as a string in the REST API, into a Go value.
func bigqueryValue(typ string, v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	switch strings.ToUpper(typ) {
	case "INTEGER", "INT64":
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n
		}
	case "FLOAT", "FLOAT64", "NUMERIC", "BIGNUMERIC":
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	case "BOOLEAN", "BOOL":
		if b, err := strconv.ParseBool(s); err == nil {
			return b
		}
	case "TIMESTAMP":
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			sec := int64(f)
			return time.Unix(sec, int64((f-float64(sec))*1e9)).UTC()
		}
	}
	return s
}
