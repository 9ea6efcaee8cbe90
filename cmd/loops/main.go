package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/opst/mlengine/cmd/loops/hook"
	"github.com/opst/mlengine/cmd/loops/recurring"
	apiautoml "github.com/opst/mlengine/pkg/api/types/automl"
	cfg_hook "github.com/opst/mlengine/pkg/configs/hook"
	"github.com/opst/mlengine/pkg/configs/server"
	"github.com/opst/mlengine/pkg/domain"
	"github.com/opst/mlengine/pkg/domain/mlengine"
	"github.com/opst/mlengine/pkg/engine"
	"github.com/opst/mlengine/pkg/utils/args"
	"github.com/opst/mlengine/pkg/utils/filewatch"
	"github.com/opst/mlengine/pkg/utils/try"
)

// policyOf is the policy configured for the loop type.
func policyOf(conf *server.Config, lt domain.LoopType) string {
	switch lt {
	case domain.AutoML:
		return conf.Loops().AutoML()
	case domain.DatasetStatsLoop:
		return conf.Loops().DatasetStats()
	case domain.DataSourceProbe:
		return conf.Loops().DatasourceProbe()
	}
	return ""
}

func main() {
	logger := log.Default()
	ctx, cancel := signal.NotifyContext(
		context.Background(), os.Interrupt, os.Kill, syscall.SIGTERM,
	)
	defer cancel()

	pconfig := flag.String(
		"config", os.Getenv("MLENGINE_CONFIG"), "path to config file",
	)
	pSchemaRepo := flag.String(
		"schema-repo", os.Getenv("MLENGINE_SCHEMA"), "schema repository path",
	)
	phooks := flag.String(
		"hooks", os.Getenv("MLENGINE_HOOK_CONFIG"), "path to hook config file",
	)
	//-- which loop type to run
	loopType := args.Parser(domain.AsLoopType)
	flag.Var(loopType, "type", `one of loop type ("automl", "dataset_stats" or "datasource_probe")`)
	//-- loop policy
	policy := args.Parser(recurring.ParsePolicy)
	flag.Var(
		policy, "policy",
		`loop policy (syntax: forever[:COOLDOWN]|backlog|cron:SPEC).`+
			` "forever[:COOLDOWN]" = run forever until error. When backlog is over, `+
			`wait COOLDOWN (optional duration. default: 0) as inteval.`+
			` "backlog" = run until error or backlog is over.`+
			` "cron:SPEC" = when backlog is over, wait until the next time of the cron SPEC.`+
			` When omitted, the policy in config file is used.`,
	)
	flag.Parse()

	if !loopType.IsSet() {
		logger.Fatal("-type is required")
	}

	{
		// watch config & hooks
		watched := []string{*pconfig}
		if *phooks != "" {
			watched = append(watched, *phooks)
		}
		wctx, cancel, err := filewatch.UntilModifyContext(ctx, watched...)
		if err != nil {
			logger.Fatal(err)
		}
		defer cancel()
		ctx = wctx
	}

	conf := try.To(server.LoadConfig(*pconfig)).OrFatal(logger)

	p := policy.Value()
	if !policy.IsSet() {
		p = try.To(recurring.ParsePolicy(policyOf(conf, loopType.Value()))).OrFatal(logger)
	}

	ml := try.To(mlengine.New(
		ctx, conf.Database().URL(), mlengine.WithSchemaRepository(*pSchemaRepo),
	)).OrFatal(logger)
	defer ml.Close()

	{
		ctx_, ccan := ml.Schema().Database().Context(ctx)
		defer ccan()
		ctx = ctx_
	}

	eng := try.To(engine.FromConfig(
		conf.Engine(), engine.WithPollInterval(conf.AutoML().PollInterval()),
	)).OrFatal(logger)

	hooks := cfg_hook.Config{}
	if hookPath := *phooks; hookPath != "" {
		hooks = try.To(cfg_hook.Load(hookPath)).OrFatal(logger)
	}

	logger.Printf(
		`start loop "%s" /w policy "%s"`,
		loopType.Value().String(), p.String(),
	)

	err := StartLoop(
		ctx, logger, ml, eng, conf,
		LoopManifest{
			Type:   loopType.Value(),
			Policy: recurring.UntilError(p),
			Hooks:  hook.Build[apiautoml.Job](hooks.AutoML),
		},
	)

	if err == nil {
		return
	} else if errors.Is(err, context.Canceled) {
		logger.Fatal(err, "(loop context is cancelled by:", context.Cause(ctx), ")")
	}

	logger.Fatal(err)
}
