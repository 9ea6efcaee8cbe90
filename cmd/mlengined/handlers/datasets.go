package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	apidatasets "github.com/opst/mlengine/pkg/api/types/datasets"
	apierr "github.com/opst/mlengine/pkg/api/types/errors"
	"github.com/opst/mlengine/pkg/connectors"
	"github.com/opst/mlengine/pkg/domain"
	kdataset "github.com/opst/mlengine/pkg/domain/dataset/db"
	kerr "github.com/opst/mlengine/pkg/domain/errors"
	xe "github.com/opst/mlengine/pkg/errors"
	"github.com/opst/mlengine/pkg/frame"
	kio "github.com/opst/mlengine/pkg/io"
	"github.com/opst/mlengine/pkg/quality"
	"github.com/opst/mlengine/pkg/utils"
)

const (
	DefaultDatasetPreviewRows = 100
	defaultWorkspace          = "default"
)

func errDatasetNotFound() error {
	return apierr.NotFound("Dataset not found")
}

func FindDatasetsHandler(dbDataset kdataset.DatasetInterface) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		var ws *string
		if w := c.QueryParam("workspace_id"); w != "" {
			ws = &w
		}

		ds, err := dbDataset.Find(ctx, ws)
		if err != nil {
			return apierr.InternalServerError(err)
		}
		return c.JSON(http.StatusOK, utils.Map(ds, apidatasets.Compose))
	}
}

// getDataset reads a dataset named by the path parameter.
func getDataset(ctx context.Context, dbDataset kdataset.DatasetInterface, id string) (*domain.Dataset, error) {
	d, err := dbDataset.Get(ctx, id)
	if errors.Is(err, kerr.ErrMissing) {
		return nil, errDatasetNotFound()
	} else if err != nil {
		return nil, apierr.InternalServerError(err)
	}
	return d, nil
}

func GetDatasetHandler(dbDataset kdataset.DatasetInterface, paramKey string) echo.HandlerFunc {
	return func(c echo.Context) error {
		d, err := getDataset(c.Request().Context(), dbDataset, c.Param(paramKey))
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, apidatasets.Compose(*d))
	}
}

// openDataset builds a connector reading the file of d.
//
// It answers 404 when the file is gone.
func openDataset(d domain.Dataset) (connectors.Connector, error) {
	if _, err := os.Stat(d.FilePath); errors.Is(err, os.ErrNotExist) {
		return nil, apierr.NotFound("Dataset file not found")
	} else if err != nil {
		return nil, apierr.InternalServerError(err)
	}
	conn, err := connectors.New(connectors.NewConfig("local_file", d.FilePath, nil))
	if err != nil {
		return nil, apierr.InternalServerError(err)
	}
	return conn, nil
}

func readError(err error) error {
	return apierr.NewErrorMessage(
		http.StatusInternalServerError,
		"Error reading dataset: "+err.Error(),
		apierr.WithError(err),
	)
}

func PreviewDatasetHandler(dbDataset kdataset.DatasetInterface, paramKey string) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		rows, err := positiveQuery(c, "rows", DefaultDatasetPreviewRows)
		if err != nil {
			return err
		}

		d, err := getDataset(ctx, dbDataset, c.Param(paramKey))
		if err != nil {
			return err
		}
		conn, err := openDataset(*d)
		if err != nil {
			return err
		}
		defer conn.Disconnect(ctx)

		f, err := conn.Preview(ctx, rows)
		if err != nil {
			return readError(err)
		}

		total := f.Len()
		if d.RowCount != nil {
			total = int(*d.RowCount)
		}
		return c.JSON(http.StatusOK, apidatasets.Preview{
			Columns:   f.Columns(),
			Data:      f.Records(),
			TotalRows: total,
		})
	}
}

// loadDataset reads the whole file of d.
func loadDataset(ctx context.Context, d domain.Dataset) (*frame.Frame, error) {
	conn, err := openDataset(d)
	if err != nil {
		return nil, err
	}
	defer conn.Disconnect(ctx)

	f, err := conn.Load(ctx)
	if err != nil {
		return nil, readError(err)
	}
	return f, nil
}

func DatasetColumnsHandler(dbDataset kdataset.DatasetInterface, paramKey string) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		d, err := getDataset(ctx, dbDataset, c.Param(paramKey))
		if err != nil {
			return err
		}
		f, err := loadDataset(ctx, *d)
		if err != nil {
			return err
		}

		dtypes := f.DTypes()
		cols := make([]apidatasets.Column, 0, f.Width())
		for _, name := range f.Columns() {
			s, _ := f.Series(name)
			missing := s.Nulls()
			cols = append(cols, apidatasets.Column{
				Name:     name,
				DType:    dtypes[name].String(),
				Nullable: 0 < missing,
				Unique:   s.Unique(),
				Missing:  missing,
			})
		}
		return c.JSON(http.StatusOK, cols)
	}
}

func DatasetQualityHandler(dbDataset kdataset.DatasetInterface, paramKey string) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		d, err := getDataset(ctx, dbDataset, c.Param(paramKey))
		if err != nil {
			return err
		}
		f, err := loadDataset(ctx, *d)
		if err != nil {
			return err
		}

		report := quality.Assess(f)
		if err := dbDataset.SetQualityScore(ctx, d.Id, report.QualityScore); errors.Is(err, kerr.ErrMissing) {
			return errDatasetNotFound()
		} else if err != nil {
			return apierr.InternalServerError(err)
		}
		score := report.QualityScore
		d.QualityScore = &score

		return c.JSON(http.StatusOK, apidatasets.ComposeQuality(*d, report))
	}
}

// UploadDatasetHandler registers a dataset from a multipart upload.
//
// The form has "file" (required), "name", "description" and "workspace_id".
// The file is stored as
//
//	<dataRoot>/<workspace_id or "default">/<uuid>_<file name>
func UploadDatasetHandler(dbDataset kdataset.DatasetInterface, dataRoot string) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		fh, err := c.FormFile("file")
		if err != nil {
			return apierr.BadRequest(`multipart form with "file" is required`, err)
		}
		filename := filepath.Base(fh.Filename)
		if filename == "." || filename == string(filepath.Separator) {
			return apierr.BadRequest("file name is empty", nil)
		}

		name := strings.TrimSpace(c.FormValue("name"))
		if name == "" {
			name = filename
		}
		ws := c.FormValue("workspace_id")
		dest, err := storePath(dataRoot, ws, filename)
		if err != nil {
			return unsafePathError(err)
		}

		size, err := func() (int64, error) {
			src, err := fh.Open()
			if err != nil {
				return 0, err
			}
			defer src.Close()

			out, err := kio.CreateAll(dest, os.FileMode(0o644), os.FileMode(0o755))
			if err != nil {
				return 0, err
			}
			defer out.Close()
			return io.Copy(out, src)
		}()
		if err != nil {
			os.Remove(dest)
			return apierr.InternalServerError(err)
		}

		d, err := dbDataset.Register(ctx, domain.DatasetSpec{
			Name:        name,
			Description: c.FormValue("description"),
			WorkspaceId: ws,
			FilePath:    dest,
			FileSize:    size,
			Status:      domain.DatasetProcessing,
		})
		if err != nil {
			os.Remove(dest)
			return apierr.InternalServerError(err)
		}

		f, rerr := loadDataset(ctx, *d)
		if rerr != nil {
			if err := dbDataset.SetStatus(ctx, d.Id, domain.DatasetError); err != nil {
				return apierr.InternalServerError(err)
			}
			return apierr.BadRequest(
				"the uploaded file can not be read as a dataset", rerr,
				apierr.WithSee(d.Id),
			)
		}

		if err := dbDataset.SetStats(ctx, d.Id, domain.DatasetStats{
			RowCount: int64(f.Len()), ColumnCount: int64(f.Width()),
		}); err != nil {
			return apierr.InternalServerError(err)
		}
		if err := dbDataset.SetStatus(ctx, d.Id, domain.DatasetActive); err != nil {
			return apierr.InternalServerError(err)
		}

		registered, err := dbDataset.Get(ctx, d.Id)
		if err != nil {
			return apierr.InternalServerError(err)
		}
		return c.JSON(http.StatusCreated, apidatasets.Compose(*registered))
	}
}

var errUnsafePath = errors.New("path escapes the data root")

// storePath is where a dataset file is stored:
//
//	<dataRoot>/<workspace or "default">/<uuid>_<filename>
//
// workspace must be a single local path element, and the result stays under dataRoot.
func storePath(dataRoot string, workspace string, filename string) (string, error) {
	if workspace == "" {
		workspace = defaultWorkspace
	}
	if !filepath.IsLocal(workspace) || workspace == "." || strings.ContainsAny(workspace, `/\`) {
		return "", xe.WrapWithNote("workspace_id: "+workspace, errUnsafePath)
	}
	filename = filepath.Base(filename)
	if !filepath.IsLocal(filename) || filename == "." {
		return "", xe.WrapWithNote("file name: "+filename, errUnsafePath)
	}

	dest := filepath.Join(dataRoot, workspace, uuid.NewString()+"_"+filename)
	rel, err := filepath.Rel(dataRoot, dest)
	if err != nil || !filepath.IsLocal(rel) {
		return "", xe.WrapWithNote(dest, errUnsafePath)
	}
	return dest, nil
}

func unsafePathError(err error) error {
	return apierr.BadRequest(
		`"workspace_id" and the file name should be plain names, not paths, "." or ".."`, err,
	)
}

func UpdateDatasetHandler(dbDataset kdataset.DatasetInterface, paramKey string) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		if err := requireJSON(c); err != nil {
			return err
		}

		req := new(apidatasets.Update)
		if err := decodeJSON(c, req); err != nil {
			return err
		}

		d, err := getDataset(ctx, dbDataset, c.Param(paramKey))
		if err != nil {
			return err
		}
		name := utils.Default(req.Name, d.Name)
		if strings.TrimSpace(name) == "" {
			return apierr.BadRequest(`"name" should not be empty`, nil)
		}

		updated, err := dbDataset.Update(ctx, d.Id, name, utils.Default(req.Description, d.Description))
		if errors.Is(err, kerr.ErrMissing) {
			return errDatasetNotFound()
		} else if err != nil {
			return apierr.InternalServerError(err)
		}
		return c.JSON(http.StatusOK, apidatasets.Compose(*updated))
	}
}

func DeleteDatasetHandler(dbDataset kdataset.DatasetInterface, paramKey string) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := c.Param(paramKey)
		if err := dbDataset.Delete(c.Request().Context(), id); errors.Is(err, kerr.ErrMissing) {
			return errDatasetNotFound()
		} else if err != nil {
			return apierr.InternalServerError(err)
		}
		return c.JSON(http.StatusOK, map[string]string{"message": "Dataset deleted successfully", "id": id})
	}
}
