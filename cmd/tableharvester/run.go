package main

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/LouYuanbo1/tableharvester/internal/config"
	"github.com/LouYuanbo1/tableharvester/internal/domain/entity"
	"github.com/LouYuanbo1/tableharvester/internal/infra/browser"
	"github.com/LouYuanbo1/tableharvester/internal/infra/logging"
	"github.com/LouYuanbo1/tableharvester/internal/infra/persistence/es"
	"github.com/LouYuanbo1/tableharvester/internal/infra/persistence/session"
	"github.com/LouYuanbo1/tableharvester/internal/service/exporter"
	"github.com/LouYuanbo1/tableharvester/internal/service/runner"
)

func runHarvest(ctx context.Context, cfg *config.Config, stderr io.Writer) error {
	logger, err := logging.InitStdoutLogger(cfg.Logger)
	if err != nil {
		return entity.NewRunError(entity.KindConfig, "init logger", err)
	}
	defer logger.Sync()

	r, err := buildRunner(cfg, browser.NewFactory(cfg, logger), logger)
	if err != nil {
		logger.Error("run failed", zap.String("kind", string(entity.KindOf(err))), zap.Error(err))
		return err
	}
	res, err := r.Run(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(stderr, "harvested %d records into %s\n", res.Records, cfg.Output.Path)
	return nil
}

// buildRunner wires the stores and sinks selected by cfg.
func buildRunner(cfg *config.Config, factory browser.Factory, logger *zap.Logger) (runner.Runner, error) {
	store := session.InitFileStore(cfg.Session.Path, logger)

	sinks := []exporter.Sink{exporter.NewFileSink(cfg.Output.Path, logger)}
	if cfg.Elasticsearch.Enabled {
		idx, err := es.InitRecordIndex(cfg.Elasticsearch, logger)
		if err != nil {
			return nil, entity.NewRunError(entity.KindConfig, "init elasticsearch", err)
		}
		sinks = append(sinks, exporter.NewIndexSink(idx, logger))
	}

	return runner.InitRunner(cfg, factory, store, exporter.InitExporter(logger, sinks...), logger), nil
}
