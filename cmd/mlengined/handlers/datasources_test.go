package handlers_test

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/labstack/echo/v4"
	"github.com/opst/mlengine/cmd/mlengined/handlers"
	httptestutil "github.com/opst/mlengine/internal/testutils/http"
	apidatasets "github.com/opst/mlengine/pkg/api/types/datasets"
	apids "github.com/opst/mlengine/pkg/api/types/datasources"
	apierr "github.com/opst/mlengine/pkg/api/types/errors"
	"github.com/opst/mlengine/pkg/connectors"
	"github.com/opst/mlengine/pkg/domain"
	dsmock "github.com/opst/mlengine/pkg/domain/dataset/db/mock"
	srcmock "github.com/opst/mlengine/pkg/domain/datasource/db/mock"
	kerr "github.com/opst/mlengine/pkg/domain/errors"
)

func csvSource(path string) *domain.DataSource {
	return &domain.DataSource{
		Id: "src-1",
		DataSourceSpec: domain.DataSourceSpec{
			Name:        "loans",
			SourceType:  "csv",
			Params:      map[string]any{},
			QueryOrPath: path,
			WorkspaceId: "ws-1",
		},
		Status:    domain.DataSourceDisconnected,
		CreatedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		UpdatedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestSourceTypes(t *testing.T) {
	e := echo.New()
	c, resp := httptestutil.Get(e, "/api/datasources/types")
	if err := handlers.SourceTypesHandler()(c); err != nil {
		t.Fatal(err)
	}
	got := decodeResponse[map[string][]connectors.Kind](t, resp)
	for _, category := range []string{"files", "databases", "cloud_storage", "data_warehouses"} {
		if len(got[category]) == 0 {
			t.Errorf("no kinds in %s: %v", category, got)
		}
	}
}

func TestSourceParams(t *testing.T) {
	t.Run("known type", func(t *testing.T) {
		e := echo.New()
		c, resp := httptestutil.Get(e, "/api/datasources/types/postgres/params")
		c = httptestutil.WithParams(c, httptestutil.PathParam{Name: "type", Value: "postgres"})
		if err := handlers.SourceParamsHandler("type")(c); err != nil {
			t.Fatal(err)
		}
		got := decodeResponse[connectors.ParamsSchema](t, resp)
		if len(got.Required) == 0 {
			t.Errorf("postgres needs parameters: %+v", got)
		}
	})

	t.Run("unknown type", func(t *testing.T) {
		e := echo.New()
		c, _ := httptestutil.Get(e, "/api/datasources/types/nosuchdb/params")
		c = httptestutil.WithParams(c, httptestutil.PathParam{Name: "type", Value: "nosuchdb"})
		err := handlers.SourceParamsHandler("type")(c)
		if got := statusOf(err); got != http.StatusNotFound {
			t.Errorf("status: %d (%v)", got, err)
		}
	})
}

func TestValidateSource(t *testing.T) {
	for name, testcase := range map[string]struct {
		body string
		want apids.Validation
	}{
		"valid": {
			body: `{"name": "loans", "source_type": "csv", "query_or_path": "/data/loans.csv"}`,
			want: apids.Validation{Valid: true, Errors: []string{}},
		},
		"without path": {
			body: `{"name": "loans", "source_type": "csv"}`,
			want: apids.Validation{Valid: false, Errors: []string{"query_or_path is required"}},
		},
		"unknown type": {
			body: `{"name": "x", "source_type": "nosuchdb", "query_or_path": "q"}`,
			want: apids.Validation{Valid: false, Errors: []string{"Unsupported source type: nosuchdb"}},
		},
	} {
		t.Run(name, func(t *testing.T) {
			e := echo.New()
			c, resp := httptestutil.Post(
				e, "/api/datasources/validate", strings.NewReader(testcase.body),
				httptestutil.ContentType("application/json"),
			)
			if err := handlers.ValidateSourceHandler()(c); err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(testcase.want, decodeResponse[apids.Validation](t, resp)); diff != "" {
				t.Errorf("validation (-want +got):\n%s", diff)
			}
		})
	}
}

func TestTestSource(t *testing.T) {
	path := writeFile(t, "loans.csv", loansCSV)
	for name, testcase := range map[string]struct {
		body       string
		wantStatus string
	}{
		"reachable": {
			body:       `{"source_type": "csv", "query_or_path": "` + filepath.ToSlash(path) + `"}`,
			wantStatus: connectors.StatusSuccess,
		},
		"missing file": {
			body:       `{"source_type": "csv", "query_or_path": "/no/such/file.csv"}`,
			wantStatus: connectors.StatusError,
		},
		"unsupported": {
			body:       `{"source_type": "nosuchdb", "query_or_path": "q"}`,
			wantStatus: connectors.StatusError,
		},
	} {
		t.Run(name, func(t *testing.T) {
			e := echo.New()
			c, resp := httptestutil.Post(
				e, "/api/datasources/test", strings.NewReader(testcase.body),
				httptestutil.ContentType("application/json"),
			)
			if err := handlers.TestSourceHandler(connectors.New)(c); err != nil {
				t.Fatal(err)
			}
			got := decodeResponse[connectors.TestResult](t, resp)
			if got.Status != testcase.wantStatus {
				t.Errorf("status: want %s, got %+v", testcase.wantStatus, got)
			}
		})
	}
}

func TestCreateSource(t *testing.T) {
	t.Run("valid configuration is registered", func(t *testing.T) {
		mock := srcmock.NewDataSourceInterface()
		mock.Impl.Register = func(ctx context.Context, spec domain.DataSourceSpec) (*domain.DataSource, error) {
			ds := csvSource(spec.QueryOrPath)
			ds.DataSourceSpec = spec
			return ds, nil
		}

		e := echo.New()
		c, resp := httptestutil.Post(
			e, "/api/datasources/",
			strings.NewReader(`{"name": "loans", "source_type": "csv", "query_or_path": "/data/loans.csv", "workspace_id": "ws-1"}`),
			httptestutil.ContentType("application/json"),
		)
		if err := handlers.CreateSourceHandler(mock)(c); err != nil {
			t.Fatal(err)
		}

		if resp.Code != http.StatusCreated {
			t.Errorf("status: %d", resp.Code)
		}
		want := []domain.DataSourceSpec{{
			Name: "loans", SourceType: "csv", Params: map[string]any{},
			QueryOrPath: "/data/loans.csv", WorkspaceId: "ws-1",
		}}
		if diff := cmp.Diff(want, []domain.DataSourceSpec(mock.Calls.Register)); diff != "" {
			t.Errorf("Register (-want +got):\n%s", diff)
		}
		if got := decodeResponse[apids.Detail](t, resp); got.Id != "src-1" || got.Status != "DISCONNECTED" {
			t.Errorf("response: %+v", got)
		}
	})

	t.Run("invalid configuration is listed", func(t *testing.T) {
		mock := srcmock.NewDataSourceInterface()
		e := echo.New()
		c, _ := httptestutil.Post(
			e, "/api/datasources/",
			strings.NewReader(`{"source_type": "postgres", "query_or_path": "select 1"}`),
			httptestutil.ContentType("application/json"),
		)
		err := handlers.CreateSourceHandler(mock)(c)
		if got := statusOf(err); got != http.StatusBadRequest {
			t.Fatalf("status: %d (%v)", got, err)
		}
		var msg apierr.ErrorMessage
		if !errors.As(err, &msg) {
			t.Fatalf("no error message: %v", err)
		}
		for _, want := range []string{"Name is required", "Missing required parameter: host"} {
			if !slices.Contains(msg.Details, want) {
				t.Errorf("%q is not told: %v", want, msg.Details)
			}
		}
		if 0 < mock.Calls.Register.Times() {
			t.Error("registered")
		}
	})
}

func TestFindSources(t *testing.T) {
	mock := srcmock.NewDataSourceInterface()
	mock.Impl.Find = func(ctx context.Context, ws *string) ([]domain.DataSource, error) {
		return []domain.DataSource{*csvSource("/data/a.csv"), *csvSource("/data/b.csv")}, nil
	}

	e := echo.New()
	c, resp := httptestutil.Get(e, "/api/datasources/?workspace_id=ws-1")
	if err := handlers.FindSourcesHandler(mock)(c); err != nil {
		t.Fatal(err)
	}
	if ws := mock.Calls.Find[0]; ws == nil || *ws != "ws-1" {
		t.Errorf("workspace: %v", ws)
	}
	if got := decodeResponse[[]apids.Detail](t, resp); len(got) != 2 {
		t.Errorf("response: %+v", got)
	}
}

func TestGetUpdateDeleteSource(t *testing.T) {
	t.Run("get missing", func(t *testing.T) {
		mock := srcmock.NewDataSourceInterface()
		mock.Impl.Get = func(ctx context.Context, id string) (*domain.DataSource, error) {
			return nil, kerr.ErrMissing
		}
		e := echo.New()
		c, _ := httptestutil.Get(e, "/api/datasources/src-1")
		c = httptestutil.WithParams(c, httptestutil.PathParam{Name: "sourceId", Value: "src-1"})
		err := handlers.GetSourceHandler(mock, "sourceId")(c)
		if got := statusOf(err); got != http.StatusNotFound {
			t.Errorf("status: %d (%v)", got, err)
		}
	})

	t.Run("update", func(t *testing.T) {
		mock := srcmock.NewDataSourceInterface()
		mock.Impl.Update = func(ctx context.Context, id string, spec domain.DataSourceSpec) (*domain.DataSource, error) {
			ds := csvSource(spec.QueryOrPath)
			ds.DataSourceSpec = spec
			return ds, nil
		}
		e := echo.New()
		c, resp := httptestutil.Put(
			e, "/api/datasources/src-1",
			strings.NewReader(`{"name": "renamed", "source_type": "csv", "query_or_path": "/data/b.csv"}`),
			httptestutil.ContentType("application/json"),
		)
		c = httptestutil.WithParams(c, httptestutil.PathParam{Name: "sourceId", Value: "src-1"})
		if err := handlers.UpdateSourceHandler(mock, "sourceId")(c); err != nil {
			t.Fatal(err)
		}
		if got := mock.Calls.Update[0]; got.Id != "src-1" || got.Spec.Name != "renamed" {
			t.Errorf("Update: %+v", got)
		}
		if got := decodeResponse[apids.Detail](t, resp); got.QueryOrPath != "/data/b.csv" {
			t.Errorf("response: %+v", got)
		}
	})

	t.Run("delete missing", func(t *testing.T) {
		mock := srcmock.NewDataSourceInterface()
		mock.Impl.Delete = func(ctx context.Context, id string) error { return kerr.ErrMissing }
		e := echo.New()
		c, _ := httptestutil.Delete(e, "/api/datasources/src-1")
		c = httptestutil.WithParams(c, httptestutil.PathParam{Name: "sourceId", Value: "src-1"})
		err := handlers.DeleteSourceHandler(mock, "sourceId")(c)
		if got := statusOf(err); got != http.StatusNotFound {
			t.Errorf("status: %d (%v)", got, err)
		}
	})
}

func TestTestStoredSource(t *testing.T) {
	path := writeFile(t, "loans.csv", loansCSV)
	for name, testcase := range map[string]struct {
		path       string
		wantStatus domain.DataSourceStatus
		wantError  bool
	}{
		"reachable": {path: path, wantStatus: domain.DataSourceConnected},
		"missing":   {path: "/no/such/file.csv", wantStatus: domain.DataSourceError, wantError: true},
	} {
		t.Run(name, func(t *testing.T) {
			mock := srcmock.NewDataSourceInterface()
			mock.Impl.Get = func(ctx context.Context, id string) (*domain.DataSource, error) {
				return csvSource(testcase.path), nil
			}
			mock.Impl.SetTestResult = func(ctx context.Context, id string, result domain.ConnectionTest) error {
				return nil
			}

			e := echo.New()
			c, resp := httptestutil.Post(e, "/api/datasources/src-1/test", nil)
			c = httptestutil.WithParams(c, httptestutil.PathParam{Name: "sourceId", Value: "src-1"})
			before := time.Now()
			if err := handlers.TestStoredSourceHandler(mock, connectors.New, "sourceId")(c); err != nil {
				t.Fatal(err)
			}

			if mock.Calls.SetTestResult.Times() != 1 {
				t.Fatalf("SetTestResult: %+v", mock.Calls.SetTestResult)
			}
			got := mock.Calls.SetTestResult[0]
			if got.Id != "src-1" || got.Result.Status != testcase.wantStatus {
				t.Errorf("SetTestResult: %+v", got)
			}
			if (got.Result.ErrorMessage != "") != testcase.wantError {
				t.Errorf("error message: %q", got.Result.ErrorMessage)
			}
			if got.Result.TestedAt.Before(before) {
				t.Errorf("tested at %s, before %s", got.Result.TestedAt, before)
			}
			if res := decodeResponse[connectors.TestResult](t, resp); res.OK() != !testcase.wantError {
				t.Errorf("response: %+v", res)
			}
		})
	}
}

func TestSourceContents(t *testing.T) {
	path := writeFile(t, "loans.csv", loansCSV)
	newMock := func() *srcmock.DataSourceInterface {
		mock := srcmock.NewDataSourceInterface()
		mock.Impl.Get = func(ctx context.Context, id string) (*domain.DataSource, error) {
			return csvSource(path), nil
		}
		return mock
	}

	t.Run("preview", func(t *testing.T) {
		e := echo.New()
		c, resp := httptestutil.Get(e, "/api/datasources/src-1/preview?rows=1")
		c = httptestutil.WithParams(c, httptestutil.PathParam{Name: "sourceId", Value: "src-1"})
		if err := handlers.PreviewSourceHandler(newMock(), connectors.New, "sourceId")(c); err != nil {
			t.Fatal(err)
		}
		got := decodeResponse[apids.Preview](t, resp)
		if got.Rows != 1 || len(got.Data) != 1 || len(got.Columns) != 2 {
			t.Errorf("preview: %+v", got)
		}
	})

	t.Run("schema", func(t *testing.T) {
		e := echo.New()
		c, resp := httptestutil.Get(e, "/api/datasources/src-1/schema")
		c = httptestutil.WithParams(c, httptestutil.PathParam{Name: "sourceId", Value: "src-1"})
		if err := handlers.SourceSchemaHandler(newMock(), connectors.New, "sourceId")(c); err != nil {
			t.Fatal(err)
		}
		got := decodeResponse[connectors.Schema](t, resp)
		if diff := cmp.Diff([]string{"amount", "grade"}, got.Columns); diff != "" {
			t.Errorf("columns (-want +got):\n%s", diff)
		}
		if !got.Nullable["grade"] || got.Nullable["amount"] {
			t.Errorf("nullable: %v", got.Nullable)
		}
	})

	t.Run("statistics", func(t *testing.T) {
		e := echo.New()
		c, resp := httptestutil.Get(e, "/api/datasources/src-1/statistics")
		c = httptestutil.WithParams(c, httptestutil.PathParam{Name: "sourceId", Value: "src-1"})
		if err := handlers.SourceStatisticsHandler(newMock(), connectors.New, "sourceId")(c); err != nil {
			t.Fatal(err)
		}
		got := decodeResponse[connectors.Statistics](t, resp)
		if got.RowCount != 3 || got.ColumnCount != 2 || got.NullCounts["grade"] != 1 {
			t.Errorf("statistics: %+v", got)
		}
	})

	t.Run("unreadable source is 502", func(t *testing.T) {
		mock := srcmock.NewDataSourceInterface()
		mock.Impl.Get = func(ctx context.Context, id string) (*domain.DataSource, error) {
			return csvSource("/no/such/file.csv"), nil
		}
		e := echo.New()
		c, _ := httptestutil.Get(e, "/api/datasources/src-1/preview")
		c = httptestutil.WithParams(c, httptestutil.PathParam{Name: "sourceId", Value: "src-1"})
		err := handlers.PreviewSourceHandler(mock, connectors.New, "sourceId")(c)
		if got := statusOf(err); got != http.StatusBadGateway {
			t.Errorf("status: %d (%v)", got, err)
		}
	})
}

// sqliteSource is a stored sqlite source with tables "loans" and "grades".
func sqliteSource(t *testing.T) *srcmock.DataSourceInterface {
	t.Helper()
	path := filepath.Join(t.TempDir(), "loans.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	for _, stmt := range []string{
		`CREATE TABLE loans (amount INTEGER, grade TEXT)`,
		`INSERT INTO loans VALUES (100, 'A'), (250, 'B'), (75, 'A')`,
		`CREATE TABLE grades (grade TEXT, rate REAL)`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatal(err)
		}
	}

	mock := srcmock.NewDataSourceInterface()
	mock.Impl.Get = func(ctx context.Context, id string) (*domain.DataSource, error) {
		ds := csvSource("SELECT * FROM loans")
		ds.SourceType = "sqlite"
		ds.Params = map[string]any{"path": path}
		return ds, nil
	}
	return mock
}

func TestBrowseSource(t *testing.T) {
	t.Run("tables of a database are listed", func(t *testing.T) {
		e := echo.New()
		c, resp := httptestutil.Get(e, "/api/datasources/src-1/browse")
		c = httptestutil.WithParams(c, httptestutil.PathParam{Name: "sourceId", Value: "src-1"})
		if err := handlers.BrowseSourceHandler(sqliteSource(t), connectors.New, "sourceId")(c); err != nil {
			t.Fatal(err)
		}
		want := apids.Browse{
			SourceId: "src-1", SourceName: "loans", SourceType: "sqlite",
			Tables: []connectors.Table{
				{Schema: "main", Name: "grades"},
				{Schema: "main", Name: "loans"},
			},
			TotalTables: 2,
		}
		if diff := cmp.Diff(want, decodeResponse[apids.Browse](t, resp)); diff != "" {
			t.Errorf("browse (-want +got):\n%s", diff)
		}
	})

	t.Run("files have no tables", func(t *testing.T) {
		path := writeFile(t, "loans.csv", loansCSV)
		mock := srcmock.NewDataSourceInterface()
		mock.Impl.Get = func(ctx context.Context, id string) (*domain.DataSource, error) {
			return csvSource(path), nil
		}
		e := echo.New()
		c, _ := httptestutil.Get(e, "/api/datasources/src-1/browse")
		c = httptestutil.WithParams(c, httptestutil.PathParam{Name: "sourceId", Value: "src-1"})
		if got := statusOf(handlers.BrowseSourceHandler(mock, connectors.New, "sourceId")(c)); got != http.StatusBadRequest {
			t.Errorf("status: %d", got)
		}
	})
}

func TestPreviewTable(t *testing.T) {
	t.Run("a table is previewed", func(t *testing.T) {
		e := echo.New()
		c, resp := httptestutil.Get(e, "/api/datasources/src-1/tables/loans/preview?rows=2")
		c = httptestutil.WithParams(
			c,
			httptestutil.PathParam{Name: "sourceId", Value: "src-1"},
			httptestutil.PathParam{Name: "tableName", Value: "loans"},
		)
		if err := handlers.PreviewTableHandler(sqliteSource(t), connectors.New, "sourceId", "tableName")(c); err != nil {
			t.Fatal(err)
		}
		got := decodeResponse[apids.Preview](t, resp)
		if got.Table != "loans" || got.Rows != 2 || !cmp.Equal(got.Columns, []string{"amount", "grade"}) {
			t.Errorf("preview: %+v", got)
		}
	})

	for name, testcase := range map[string]struct {
		table string
		want  int
	}{
		"malformed name is 400": {table: "loans;drop", want: http.StatusBadRequest},
		"missing table is 502":  {table: "payments", want: http.StatusBadGateway},
	} {
		t.Run(name, func(t *testing.T) {
			e := echo.New()
			c, _ := httptestutil.Get(e, "/api/datasources/src-1/tables/x/preview")
			c = httptestutil.WithParams(
				c,
				httptestutil.PathParam{Name: "sourceId", Value: "src-1"},
				httptestutil.PathParam{Name: "tableName", Value: testcase.table},
			)
			err := handlers.PreviewTableHandler(sqliteSource(t), connectors.New, "sourceId", "tableName")(c)
			if got := statusOf(err); got != testcase.want {
				t.Errorf("status: %d (%v)", got, err)
			}
		})
	}
}

func TestImportSource(t *testing.T) {
	path := writeFile(t, "loans.csv", loansCSV)
	root := t.TempDir()

	sources := srcmock.NewDataSourceInterface()
	sources.Impl.Get = func(ctx context.Context, id string) (*domain.DataSource, error) {
		return csvSource(path), nil
	}
	var registered domain.DatasetSpec
	datasets := dsmock.NewDatasetInterface()
	datasets.Impl.Register = func(ctx context.Context, spec domain.DatasetSpec) (*domain.Dataset, error) {
		registered = spec
		return &domain.Dataset{
			Id: "ds-new", Name: spec.Name, Description: spec.Description,
			WorkspaceId: spec.WorkspaceId, FilePath: spec.FilePath,
			FileSize: spec.FileSize, Status: spec.Status,
		}, nil
	}
	datasets.Impl.SetStats = func(ctx context.Context, id string, stats domain.DatasetStats) error {
		return nil
	}

	e := echo.New()
	c, resp := httptestutil.Post(
		e, "/api/datasources/src-1/import", strings.NewReader(`{"name": "loan book"}`),
		httptestutil.ContentType("application/json"),
	)
	c = httptestutil.WithParams(c, httptestutil.PathParam{Name: "sourceId", Value: "src-1"})
	if err := handlers.ImportSourceHandler(sources, datasets, connectors.New, root, "sourceId")(c); err != nil {
		t.Fatal(err)
	}

	if resp.Code != http.StatusCreated {
		t.Errorf("status: %d", resp.Code)
	}
	if registered.Name != "loan book" || registered.WorkspaceId != "ws-1" ||
		registered.Status != domain.DatasetActive || registered.Description != "Imported from data source loans" {
		t.Errorf("registered: %+v", registered)
	}
	if dir := filepath.Dir(registered.FilePath); dir != filepath.Join(root, "ws-1") {
		t.Errorf("stored in %s", dir)
	}
	content, err := os.ReadFile(registered.FilePath)
	if err != nil {
		t.Fatal(err)
	}
	if lines := strings.Split(strings.TrimSpace(string(content)), "\n"); len(lines) != 4 || lines[0] != "amount,grade" {
		t.Errorf("written:\n%s", content)
	}
	if registered.FileSize != int64(len(content)) {
		t.Errorf("file size: %d, want %d", registered.FileSize, len(content))
	}
	if diff := cmp.Diff(
		[]dsmock.SetStatsArgs{{Id: "ds-new", Stats: domain.DatasetStats{RowCount: 3, ColumnCount: 2}}},
		[]dsmock.SetStatsArgs(datasets.Calls.SetStats),
	); diff != "" {
		t.Errorf("SetStats (-want +got):\n%s", diff)
	}
	got := decodeResponse[apidatasets.Detail](t, resp)
	if got.Id != "ds-new" || got.RowCount != 3 || got.ColumnCount != 2 || got.Status != "ACTIVE" {
		t.Errorf("response: %+v", got)
	}
}

func TestImportSource_UnsafeWorkspace(t *testing.T) {
	path := writeFile(t, "loans.csv", loansCSV)

	for name, testcase := range map[string]struct {
		body   string
		stored string
	}{
		"requested workspace_id of the parent directory": {body: `{"workspace_id": ".."}`, stored: "ws-1"},
		"requested workspace_id climbing up":             {body: `{"workspace_id": "../../tmp"}`, stored: "ws-1"},
		"stored workspace_id of the parent directory":    {body: `{}`, stored: ".."},
	} {
		t.Run(name+" is 400, and nothing is written", func(t *testing.T) {
			parent := t.TempDir()
			root := filepath.Join(parent, "data")

			sources := srcmock.NewDataSourceInterface()
			sources.Impl.Get = func(ctx context.Context, id string) (*domain.DataSource, error) {
				ds := csvSource(path)
				ds.WorkspaceId = testcase.stored
				return ds, nil
			}
			datasets := dsmock.NewDatasetInterface()

			e := echo.New()
			c, _ := httptestutil.Post(
				e, "/api/datasources/src-1/import", strings.NewReader(testcase.body),
				httptestutil.ContentType("application/json"),
			)
			c = httptestutil.WithParams(c, httptestutil.PathParam{Name: "sourceId", Value: "src-1"})
			err := handlers.ImportSourceHandler(sources, datasets, connectors.New, root, "sourceId")(c)

			if got := statusOf(err); got != http.StatusBadRequest {
				t.Errorf("status: %d (%v)", got, err)
			}
			if 0 < datasets.Calls.Register.Times() {
				t.Error("registered")
			}
			if entries, err := os.ReadDir(parent); err != nil || len(entries) != 0 {
				t.Errorf("written: %v (%v)", entries, err)
			}
		})
	}
}
