package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/opst/mlengine/cmd/mlengined/handlers"
	"github.com/opst/mlengine/pkg/configs/server"
	"github.com/opst/mlengine/pkg/connectors"
	"github.com/opst/mlengine/pkg/domain/mlengine"
	"github.com/opst/mlengine/pkg/echoutil"
	"github.com/opst/mlengine/pkg/engine"
	"github.com/opst/mlengine/pkg/utils/filewatch"
	kstrings "github.com/opst/mlengine/pkg/utils/strings"
	"github.com/opst/mlengine/pkg/utils/try"
)

func main() {
	logger := log.Default()

	pconfig := flag.String(
		"config", os.Getenv("MLENGINE_CONFIG"), "path to config file",
	)
	pSchemaRepo := flag.String(
		"schema-repo", os.Getenv("MLENGINE_SCHEMA"), "schema repository path",
	)
	ploglevel := flag.String(
		"loglevel", "", "log level. debug|info|warn|error|off. When omitted, the level in config file is used.",
	)
	flag.Parse()

	ctx, cancel := signal.NotifyContext(
		context.Background(), os.Interrupt, syscall.SIGTERM,
	)
	defer cancel()

	conf := try.To(server.LoadConfig(*pconfig)).OrFatal(logger)

	ml := try.To(mlengine.New(
		ctx, conf.Database().URL(), mlengine.WithSchemaRepository(*pSchemaRepo),
	)).OrFatal(logger)
	defer ml.Close()

	eng := try.To(engine.FromConfig(
		conf.Engine(), engine.WithPollInterval(conf.AutoML().PollInterval()),
	)).OrFatal(logger)

	e := echo.New()
	e.HideBanner = true
	e.Pre(middleware.AddTrailingSlash())

	// set log
	loglevel := conf.Server().LogLevel()
	if *ploglevel != "" {
		loglevel = *ploglevel
	}
	echoutil.SetLevel(e, loglevel)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		e.DefaultHTTPErrorHandler(err, c)
		e.Logger.Error(err)
	}
	e.Use(middleware.RequestID())
	e.Use(echoutil.LogHandlerFunc)

	api := func(p string) string { return kstrings.SuppySuffix("/api/"+p, "/") }
	dataRoot := conf.Storage().DataRoot()
	connect := handlers.Connect(connectors.New)

	e.GET(api("health"), handlers.HealthHandler(ml, eng))

	{
		dbDataset := ml.Dataset().Database()
		e.GET(api("datasets"), handlers.FindDatasetsHandler(dbDataset))
		e.POST(api("datasets"), handlers.UploadDatasetHandler(dbDataset, dataRoot))
		e.GET(api("datasets/:datasetId/"), handlers.GetDatasetHandler(dbDataset, "datasetId"))
		e.GET(api("datasets/:datasetId/details"), handlers.GetDatasetHandler(dbDataset, "datasetId"))
		e.GET(api("datasets/:datasetId/preview"), handlers.PreviewDatasetHandler(dbDataset, "datasetId"))
		e.GET(api("datasets/:datasetId/columns"), handlers.DatasetColumnsHandler(dbDataset, "datasetId"))
		e.GET(api("datasets/:datasetId/quality"), handlers.DatasetQualityHandler(dbDataset, "datasetId"))
		e.PUT(api("datasets/:datasetId/"), handlers.UpdateDatasetHandler(dbDataset, "datasetId"))
		e.DELETE(api("datasets/:datasetId/"), handlers.DeleteDatasetHandler(dbDataset, "datasetId"))
	}

	{
		dbSource := ml.DataSource().Database()
		e.GET(api("datasources/types"), handlers.SourceTypesHandler())
		e.GET(api("datasources/types/:sourceType/params"), handlers.SourceParamsHandler("sourceType"))
		e.POST(api("datasources/validate"), handlers.ValidateSourceHandler())
		e.POST(api("datasources/test"), handlers.TestSourceHandler(connect))

		e.GET(api("datasources"), handlers.FindSourcesHandler(dbSource))
		e.POST(api("datasources"), handlers.CreateSourceHandler(dbSource))
		e.GET(api("datasources/:sourceId/"), handlers.GetSourceHandler(dbSource, "sourceId"))
		e.PUT(api("datasources/:sourceId/"), handlers.UpdateSourceHandler(dbSource, "sourceId"))
		e.DELETE(api("datasources/:sourceId/"), handlers.DeleteSourceHandler(dbSource, "sourceId"))

		e.POST(api("datasources/:sourceId/test"), handlers.TestStoredSourceHandler(dbSource, connect, "sourceId"))
		e.GET(api("datasources/:sourceId/preview"), handlers.PreviewSourceHandler(dbSource, connect, "sourceId"))
		e.GET(api("datasources/:sourceId/schema"), handlers.SourceSchemaHandler(dbSource, connect, "sourceId"))
		e.GET(api("datasources/:sourceId/statistics"), handlers.SourceStatisticsHandler(dbSource, connect, "sourceId"))
		e.GET(api("datasources/:sourceId/browse"), handlers.BrowseSourceHandler(dbSource, connect, "sourceId"))
		e.GET(
			api("datasources/:sourceId/tables/:table/preview"),
			handlers.PreviewTableHandler(dbSource, connect, "sourceId", "table"),
		)
		e.POST(
			api("datasources/:sourceId/import"),
			handlers.ImportSourceHandler(dbSource, ml.Dataset().Database(), connect, dataRoot, "sourceId"),
		)
	}

	{
		dbAutoML := ml.AutoML().Database()
		e.GET(api("automl/algorithms"), handlers.AlgorithmsHandler())
		e.GET(api("automl/jobs"), handlers.FindJobsHandler(dbAutoML))
		e.POST(api("automl/jobs"), handlers.CreateJobHandler(dbAutoML, ml.Dataset().Database(), time.Now))
		e.GET(api("automl/jobs/:jobId/"), handlers.GetJobHandler(dbAutoML, "jobId"))
		e.GET(api("automl/jobs/:jobId/results"), handlers.JobResultsHandler(dbAutoML, "jobId"))
		e.GET(api("automl/jobs/:jobId/leaderboard"), handlers.JobLeaderboardHandler(dbAutoML, "jobId"))
		e.GET(api("automl/jobs/:jobId/feature-importance"), handlers.JobFeatureImportanceHandler(dbAutoML, "jobId"))
		e.POST(api("automl/jobs/:jobId/stop"), handlers.StopJobHandler(dbAutoML, "jobId"))
		e.DELETE(api("automl/jobs/:jobId/"), handlers.DeleteJobHandler(dbAutoML, "jobId"))
	}

	{
		dbAutoML, dbDataset := ml.AutoML().Database(), ml.Dataset().Database()
		e.GET(api("models"), handlers.FindModelsHandler(dbAutoML))
		e.GET(api("models/:modelId/"), handlers.GetModelHandler(dbAutoML, "modelId"))
		e.GET(api("models/:modelId/metrics"), handlers.ModelMetricsHandler(dbAutoML, "modelId"))
		e.GET(
			api("models/:modelId/explain/global"),
			handlers.GlobalExplanationHandler(eng, dbAutoML, dbDataset, "modelId"),
		)
		e.GET(
			api("models/:modelId/explain/summary"),
			handlers.ExplanationSummaryHandler(eng, dbAutoML, dbDataset, "modelId"),
		)
		e.POST(
			api("models/:modelId/explain/local"),
			handlers.LocalExplanationHandler(eng, dbAutoML, dbDataset, "modelId"),
		)
		e.POST(api("models/:modelId/predict"), handlers.PredictHandler(eng, "modelId"))
	}

	logger.Println("registred routes:")
	for _, r := range e.Routes() {
		logger.Println(r.Method, r.Path)
	}

	{
		// changes of config or database schema need restart.
		sctx, scancel := ml.Schema().Database().Context(ctx)
		defer scancel()
		wctx, wcancel, err := filewatch.UntilModifyContext(sctx, *pconfig)
		if err != nil {
			logger.Fatalf("can not watch configration: %s", err)
		}
		defer wcancel()
		context.AfterFunc(wctx, func() {
			logger.Println("server is going to stop:", context.Cause(wctx))
			graceful, gcancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer gcancel()
			if err := e.Shutdown(graceful); err != nil {
				logger.Printf("error on shutdown: %s", err)
			}
		})
	}

	addr := fmt.Sprintf(":%d", conf.Server().Port())
	if tls := conf.Server().TLS(); tls != nil {
		e.Logger.Fatal(e.StartTLS(addr, tls.Cert(), tls.Key()))
	} else {
		e.Logger.Fatal(e.Start(addr))
	}
}
