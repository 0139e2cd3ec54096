// Package exporter writes a harvested RecordSet to its sinks.
package exporter

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/LouYuanbo1/tableharvester/internal/domain/entity"
	"github.com/LouYuanbo1/tableharvester/internal/domain/model"
)

type Exporter interface {
	// Export hands rs to every sink concurrently. Any sink failure fails the
	// export; sinks that already finished are not rolled back.
	Export(ctx context.Context, rs *model.RecordSet) error
}

type exporter struct {
	sinks  []Sink
	logger *zap.Logger
}

func InitExporter(logger *zap.Logger, sinks ...Sink) Exporter {
	return &exporter{sinks: sinks, logger: logger.Named("exporter")}
}

func (e *exporter) Export(ctx context.Context, rs *model.RecordSet) error {
	if rs == nil {
		rs = model.NewRecordSet(nil)
	}
	e.logger.Info("Exporting harvested data", zap.Int("records", rs.Len()), zap.Int("sinks", len(e.sinks)))

	g, gctx := errgroup.WithContext(ctx)
	for _, sink := range e.sinks {
		g.Go(func() error {
			if err := sink.Write(gctx, rs); err != nil {
				return fmt.Errorf("%s sink: %w", sink.Name(), err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return entity.NewRunError(entity.KindStorage, "export", err)
	}
	return nil
}
