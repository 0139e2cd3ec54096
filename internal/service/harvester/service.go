// Package harvester reads a paginated HTML table into a RecordSet.
package harvester

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/LouYuanbo1/tableharvester/internal/config"
	"github.com/LouYuanbo1/tableharvester/internal/domain/entity"
	"github.com/LouYuanbo1/tableharvester/internal/domain/model"
	"github.com/LouYuanbo1/tableharvester/internal/infra/browser"
	"github.com/LouYuanbo1/tableharvester/param"
)

type Harvester interface {
	// Harvest infers the schema from the header row, then reads every page
	// until no enabled next control remains or no rows show up.
	Harvest(ctx context.Context, page browser.Page) (*model.RecordSet, model.Termination, error)
}

type Options struct {
	Table param.Table
	// RowTimeout bounds the wait for at least one data row on each page.
	RowTimeout        time.Duration
	ProbeTimeout      time.Duration
	QuiescenceTimeout time.Duration
}

func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Table:             cfg.Table,
		RowTimeout:        cfg.Timeouts.Rows,
		ProbeTimeout:      cfg.Timeouts.Probe,
		QuiescenceTimeout: cfg.Timeouts.Quiescence,
	}
}

type harvester struct {
	opts   Options
	logger *zap.Logger
}

func InitHarvester(opts Options, logger *zap.Logger) Harvester {
	return &harvester{opts: opts, logger: logger.Named("harvester")}
}

func (h *harvester) Harvest(ctx context.Context, page browser.Page) (*model.RecordSet, model.Termination, error) {
	schema, err := h.readSchema(ctx, page)
	if err != nil {
		return nil, "", err
	}
	records := model.NewRecordSet(schema)
	rows := param.CSS(h.opts.Table.Rows)

	for {
		if err := page.WaitFor(ctx, rows, h.opts.RowTimeout); err != nil {
			if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
				h.logger.Info("No more rows to load or table is empty", zap.Int("total", records.Len()))
				return records, model.TerminationNoRows, nil
			}
			return nil, "", entity.NewRunError(entity.KindNavigation, "wait for rows", err)
		}

		seen, err := h.readPage(ctx, page, records)
		if err != nil {
			return nil, "", err
		}
		h.logger.Info("Captured rows from the current page",
			zap.Int("rows", seen),
			zap.Int("total", records.Len()),
		)

		next := h.opts.Table.Next
		presence, err := page.Probe(ctx, next, h.opts.ProbeTimeout)
		switch presence {
		case browser.PresenceAbsent:
			h.logger.Info("No more pages to navigate, pagination complete", zap.Int("total", records.Len()))
			return records, model.TerminationExhausted, nil
		case browser.PresencePresent:
			h.logger.Info("Navigating to the next page")
			if err := page.Click(ctx, next); err != nil {
				return nil, "", entity.NewRunError(entity.KindNavigation, "next page", err)
			}
			if err := page.WaitForNetworkIdle(ctx, h.opts.QuiescenceTimeout); err != nil {
				return nil, "", entity.NewRunError(entity.KindNavigation, "next page", err)
			}
		default:
			if err == nil {
				err = errors.New("probe returned no answer")
			}
			return nil, "", entity.NewRunError(entity.KindNavigation, "probe next page", err)
		}
	}
}

// readSchema reads the header row once; later pages reuse it.
func (h *harvester) readSchema(ctx context.Context, page browser.Page) (model.TableSchema, error) {
	headers, err := page.InnerTexts(ctx, h.opts.Table.Headers)
	if err != nil {
		return nil, entity.NewRunError(entity.KindNavigation, "read table header", err)
	}
	schema := model.NewTableSchema(headers)
	if schema.Len() == 0 {
		h.logger.Warn("No header cells found, every row will be dropped", zap.String("selector", h.opts.Table.Headers))
	}
	h.logger.Info("Detected table headers", zap.Strings("headers", headers))
	return schema, nil
}

// readPage appends every well-formed row of the current page and returns the
// number of rows seen, accepted or not. Cell values are the rendered innerText
// of each cell, unmodified.
func (h *harvester) readPage(ctx context.Context, page browser.Page, records *model.RecordSet) (int, error) {
	rows, err := page.RowTexts(ctx, h.opts.Table.Rows, h.opts.Table.Cells)
	if err != nil {
		return 0, entity.NewRunError(entity.KindNavigation, "read table rows", err)
	}
	for i, cells := range rows {
		rec, ok := model.NewRecord(records.Schema(), cells)
		if !ok {
			h.logger.Debug("Dropping row with mismatched cell count",
				zap.Int("row", i),
				zap.Int("cells", len(cells)),
				zap.Int("columns", records.Schema().Len()),
			)
			continue
		}
		records.Append(rec)
	}
	return len(rows), nil
}
