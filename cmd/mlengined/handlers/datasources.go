package handlers

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	apidatasets "github.com/opst/mlengine/pkg/api/types/datasets"
	apids "github.com/opst/mlengine/pkg/api/types/datasources"
	apierr "github.com/opst/mlengine/pkg/api/types/errors"
	"github.com/opst/mlengine/pkg/connectors"
	"github.com/opst/mlengine/pkg/domain"
	kdataset "github.com/opst/mlengine/pkg/domain/dataset/db"
	kdatasource "github.com/opst/mlengine/pkg/domain/datasource/db"
	kerr "github.com/opst/mlengine/pkg/domain/errors"
	kio "github.com/opst/mlengine/pkg/io"
	"github.com/opst/mlengine/pkg/utils"
)

// Connect builds a connector. connectors.New is the one for production.
type Connect func(connectors.Config) (connectors.Connector, error)

func errDataSourceNotFound() error {
	return apierr.NotFound("Data source not found")
}

func SourceTypesHandler() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, connectors.SupportedSources())
	}
}

func SourceParamsHandler(paramKey string) echo.HandlerFunc {
	return func(c echo.Context) error {
		k, err := connectors.Lookup(c.Param(paramKey))
		if err != nil {
			return apierr.NotFound("Unsupported source type", apierr.WithError(err))
		}
		return c.JSON(http.StatusOK, k.ParamsSchema())
	}
}

// readConfig reads a data source configuration from the request body.
func readConfig(c echo.Context) (apids.Config, error) {
	if err := requireJSON(c); err != nil {
		return apids.Config{}, err
	}
	conf := apids.Config{}
	if err := decodeJSON(c, &conf); err != nil {
		return apids.Config{}, err
	}
	return conf, nil
}

func ValidateSourceHandler() echo.HandlerFunc {
	return func(c echo.Context) error {
		conf, err := readConfig(c)
		if err != nil {
			return err
		}
		problems := connectors.Validate(conf.Spec().Config())
		if problems == nil {
			problems = []string{}
		}
		return c.JSON(http.StatusOK, apids.Validation{Valid: len(problems) == 0, Errors: problems})
	}
}

// testConnection connects with the configuration and reports the result.
//
// Failures are reported in the result.
func testConnection(ctx context.Context, connect Connect, conf connectors.Config) connectors.TestResult {
	conn, err := connect(conf)
	if err != nil {
		return connectors.TestResult{Status: connectors.StatusError, Message: err.Error()}
	}
	defer conn.Disconnect(ctx)
	return conn.TestConnection(ctx)
}

func TestSourceHandler(connect Connect) echo.HandlerFunc {
	return func(c echo.Context) error {
		conf, err := readConfig(c)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, testConnection(c.Request().Context(), connect, conf.Spec().Config()))
	}
}

// validSpec verifies the configuration to be stored.
func validSpec(conf apids.Config) (domain.DataSourceSpec, error) {
	spec := conf.Spec()
	problems := []string{}
	if strings.TrimSpace(spec.Name) == "" {
		problems = append(problems, "Name is required")
	}
	problems = append(problems, connectors.Validate(spec.Config())...)
	if 0 < len(problems) {
		return spec, apierr.BadRequest(
			"fix the data source configuration", nil,
			apierr.WithDetails(problems...),
		)
	}
	return spec, nil
}

func CreateSourceHandler(dbSource kdatasource.DataSourceInterface) echo.HandlerFunc {
	return func(c echo.Context) error {
		conf, err := readConfig(c)
		if err != nil {
			return err
		}
		spec, err := validSpec(conf)
		if err != nil {
			return err
		}
		ds, err := dbSource.Register(c.Request().Context(), spec)
		if err != nil {
			return apierr.InternalServerError(err)
		}
		return c.JSON(http.StatusCreated, apids.Compose(*ds))
	}
}

func FindSourcesHandler(dbSource kdatasource.DataSourceInterface) echo.HandlerFunc {
	return func(c echo.Context) error {
		var ws *string
		if w := c.QueryParam("workspace_id"); w != "" {
			ws = &w
		}
		sources, err := dbSource.Find(c.Request().Context(), ws)
		if err != nil {
			return apierr.InternalServerError(err)
		}
		return c.JSON(http.StatusOK, utils.Map(sources, apids.Compose))
	}
}

func getSource(ctx context.Context, dbSource kdatasource.DataSourceInterface, id string) (*domain.DataSource, error) {
	ds, err := dbSource.Get(ctx, id)
	if errors.Is(err, kerr.ErrMissing) {
		return nil, errDataSourceNotFound()
	} else if err != nil {
		return nil, apierr.InternalServerError(err)
	}
	return ds, nil
}

func GetSourceHandler(dbSource kdatasource.DataSourceInterface, paramKey string) echo.HandlerFunc {
	return func(c echo.Context) error {
		ds, err := getSource(c.Request().Context(), dbSource, c.Param(paramKey))
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, apids.Compose(*ds))
	}
}

func UpdateSourceHandler(dbSource kdatasource.DataSourceInterface, paramKey string) echo.HandlerFunc {
	return func(c echo.Context) error {
		conf, err := readConfig(c)
		if err != nil {
			return err
		}
		spec, err := validSpec(conf)
		if err != nil {
			return err
		}
		ds, err := dbSource.Update(c.Request().Context(), c.Param(paramKey), spec)
		if errors.Is(err, kerr.ErrMissing) {
			return errDataSourceNotFound()
		} else if err != nil {
			return apierr.InternalServerError(err)
		}
		return c.JSON(http.StatusOK, apids.Compose(*ds))
	}
}

func DeleteSourceHandler(dbSource kdatasource.DataSourceInterface, paramKey string) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := c.Param(paramKey)
		if err := dbSource.Delete(c.Request().Context(), id); errors.Is(err, kerr.ErrMissing) {
			return errDataSourceNotFound()
		} else if err != nil {
			return apierr.InternalServerError(err)
		}
		return c.JSON(http.StatusOK, map[string]string{"message": "Data source deleted successfully", "id": id})
	}
}

// TestStoredSourceHandler tests a stored data source and records the result.
func TestStoredSourceHandler(dbSource kdatasource.DataSourceInterface, connect Connect, paramKey string) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		ds, err := getSource(ctx, dbSource, c.Param(paramKey))
		if err != nil {
			return err
		}

		res := testConnection(ctx, connect, ds.Config())
		if err := dbSource.SetTestResult(
			ctx, ds.Id, domain.AsConnectionTest(res, time.Now()),
		); errors.Is(err, kerr.ErrMissing) {
			return errDataSourceNotFound()
		} else if err != nil {
			return apierr.InternalServerError(err)
		}
		return c.JSON(http.StatusOK, res)
	}
}

// withSource runs fn with a connector of the data source named by the path parameter.
func withSource(
	c echo.Context,
	dbSource kdatasource.DataSourceInterface,
	connect Connect,
	paramKey string,
	fn func(context.Context, *domain.DataSource, connectors.Connector) error,
) error {
	ctx := c.Request().Context()
	ds, err := getSource(ctx, dbSource, c.Param(paramKey))
	if err != nil {
		return err
	}
	conn, err := connect(ds.Config())
	if err != nil {
		return apierr.BadRequest("the data source is misconfigured", err)
	}
	defer conn.Disconnect(ctx)
	return fn(ctx, ds, conn)
}

func sourceError(err error) error {
	return apierr.BadGateway("the data source can not be read", err)
}

func PreviewSourceHandler(dbSource kdatasource.DataSourceInterface, connect Connect, paramKey string) echo.HandlerFunc {
	return func(c echo.Context) error {
		rows, err := positiveQuery(c, "rows", connectors.DefaultPreviewRows)
		if err != nil {
			return err
		}
		return withSource(c, dbSource, connect, paramKey, func(ctx context.Context, _ *domain.DataSource, conn connectors.Connector) error {
			f, err := conn.Preview(ctx, rows)
			if err != nil {
				return sourceError(err)
			}
			return c.JSON(http.StatusOK, apids.Preview{
				Columns: f.Columns(), Data: f.Records(), Rows: f.Len(),
			})
		})
	}
}

// browseError is 400 when the source has no tables or the table name is malformed.
func browseError(err error) error {
	if errors.Is(err, connectors.ErrBrowseUnsupported) {
		return apierr.BadRequest("only databases and data warehouses have tables to browse", err)
	}
	if errors.Is(err, connectors.ErrInvalidTableName) {
		return apierr.BadRequest(`table name should be "table" or "schema.table"`, err)
	}
	return sourceError(err)
}

// BrowseSourceHandler lists tables in a database or a data warehouse.
func BrowseSourceHandler(dbSource kdatasource.DataSourceInterface, connect Connect, paramKey string) echo.HandlerFunc {
	return func(c echo.Context) error {
		return withSource(c, dbSource, connect, paramKey, func(ctx context.Context, ds *domain.DataSource, conn connectors.Connector) error {
			tables, err := conn.Tables(ctx)
			if err != nil {
				return browseError(err)
			}
			return c.JSON(http.StatusOK, apids.Browse{
				SourceId:    ds.Id,
				SourceName:  ds.Name,
				SourceType:  ds.SourceType,
				Tables:      tables,
				TotalTables: len(tables),
			})
		})
	}
}

// PreviewTableHandler previews a table of a data source, named by tableKey.
func PreviewTableHandler(
	dbSource kdatasource.DataSourceInterface, connect Connect, paramKey string, tableKey string,
) echo.HandlerFunc {
	return func(c echo.Context) error {
		rows, err := positiveQuery(c, "rows", connectors.DefaultPreviewRows)
		if err != nil {
			return err
		}
		table := c.Param(tableKey)
		return withSource(c, dbSource, connect, paramKey, func(ctx context.Context, _ *domain.DataSource, conn connectors.Connector) error {
			f, err := conn.PreviewTable(ctx, table, rows)
			if err != nil {
				return browseError(err)
			}
			return c.JSON(http.StatusOK, apids.Preview{
				Columns: f.Columns(), Data: f.Records(), Rows: f.Len(), Table: table,
			})
		})
	}
}

func SourceSchemaHandler(dbSource kdatasource.DataSourceInterface, connect Connect, paramKey string) echo.HandlerFunc {
	return func(c echo.Context) error {
		return withSource(c, dbSource, connect, paramKey, func(ctx context.Context, _ *domain.DataSource, conn connectors.Connector) error {
			s, err := conn.Schema(ctx)
			if err != nil {
				return sourceError(err)
			}
			return c.JSON(http.StatusOK, s)
		})
	}
}

func SourceStatisticsHandler(dbSource kdatasource.DataSourceInterface, connect Connect, paramKey string) echo.HandlerFunc {
	return func(c echo.Context) error {
		return withSource(c, dbSource, connect, paramKey, func(ctx context.Context, _ *domain.DataSource, conn connectors.Connector) error {
			s, err := conn.Statistics(ctx)
			if err != nil {
				return sourceError(err)
			}
			return c.JSON(http.StatusOK, s)
		})
	}
}

// ImportSourceHandler loads a data source and registers it as a new ACTIVE dataset.
//
// The data is written as CSV, like uploaded datasets:
//
//	<dataRoot>/<workspace_id or "default">/<uuid>_<name>.csv
func ImportSourceHandler(
	dbSource kdatasource.DataSourceInterface,
	dbDataset kdataset.DatasetInterface,
	connect Connect,
	dataRoot string,
	paramKey string,
) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := apids.Import{}
		if c.Request().ContentLength != 0 {
			if err := requireJSON(c); err != nil {
				return err
			}
			if err := decodeJSON(c, &req); err != nil {
				return err
			}
		}

		return withSource(c, dbSource, connect, paramKey, func(ctx context.Context, ds *domain.DataSource, conn connectors.Connector) error {
			name := utils.Default(nonEmpty(req.Name), ds.Name)
			ws := utils.Default(nonEmpty(req.WorkspaceId), ds.WorkspaceId)
			dest, err := storePath(dataRoot, ws, name+".csv")
			if err != nil {
				return unsafePathError(err)
			}

			f, err := conn.Load(ctx)
			if err != nil {
				return sourceError(err)
			}

			size, err := func() (int64, error) {
				out, err := kio.CreateAll(dest, os.FileMode(0o644), os.FileMode(0o755))
				if err != nil {
					return 0, err
				}
				defer out.Close()
				if err := f.WriteCSV(out); err != nil {
					return 0, err
				}
				st, err := out.Stat()
				if err != nil {
					return 0, err
				}
				return st.Size(), nil
			}()
			if err != nil {
				os.Remove(dest)
				return apierr.InternalServerError(err)
			}

			description := req.Description
			if description == "" {
				description = "Imported from data source " + ds.Name
			}
			d, err := dbDataset.Register(ctx, domain.DatasetSpec{
				Name:        name,
				Description: description,
				WorkspaceId: ws,
				FilePath:    dest,
				FileSize:    size,
				Status:      domain.DatasetActive,
			})
			if err != nil {
				os.Remove(dest)
				return apierr.InternalServerError(err)
			}
			stats := domain.DatasetStats{RowCount: int64(f.Len()), ColumnCount: int64(f.Width())}
			if err := dbDataset.SetStats(ctx, d.Id, stats); err != nil {
				return apierr.InternalServerError(err)
			}
			d.RowCount = &stats.RowCount
			d.ColumnCount = &stats.ColumnCount
			return c.JSON(http.StatusCreated, apidatasets.Compose(*d))
		})
	}
}

func nonEmpty(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}
