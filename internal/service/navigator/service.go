// Package navigator drives the UI from the landing page to the data table.
package navigator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/LouYuanbo1/tableharvester/internal/config"
	"github.com/LouYuanbo1/tableharvester/internal/domain/entity"
	"github.com/LouYuanbo1/tableharvester/internal/infra/browser"
	"github.com/LouYuanbo1/tableharvester/param"
)

type Navigator interface {
	// Navigate returns once the table container is visible.
	Navigate(ctx context.Context, page browser.Page) error
}

type Options struct {
	Route             param.Navigation
	ProbeTimeout      time.Duration
	QuiescenceTimeout time.Duration
	// TableTimeout is the extended deadline for the table container.
	TableTimeout time.Duration
}

func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Route:             cfg.Navigation,
		ProbeTimeout:      cfg.Timeouts.Probe,
		QuiescenceTimeout: cfg.Timeouts.Quiescence,
		TableTimeout:      cfg.Timeouts.Table,
	}
}

type navigator struct {
	opts   Options
	logger *zap.Logger
}

func InitNavigator(opts Options, logger *zap.Logger) Navigator {
	return &navigator{opts: opts, logger: logger.Named("navigator")}
}

func (n *navigator) Navigate(ctx context.Context, page browser.Page) error {
	if err := n.launch(ctx, page); err != nil {
		return err
	}

	n.logger.Info("Navigating to the data table", zap.Int("steps", len(n.opts.Route.Steps)))
	for i, step := range n.opts.Route.Steps {
		op := fmt.Sprintf("navigation step %d (%s)", i+1, step)
		n.logger.Info("Activating control", zap.Int("step", i+1), zap.Stringer("locator", step))
		if err := page.Click(ctx, step); err != nil {
			return entity.NewRunError(entity.KindNavigation, op, err)
		}
		if err := page.WaitForNetworkIdle(ctx, n.opts.QuiescenceTimeout); err != nil {
			return entity.NewRunError(entity.KindNavigation, op, err)
		}
	}

	table := n.opts.Route.Table
	if err := page.WaitFor(ctx, table, n.opts.TableTimeout); err != nil {
		return entity.NewRunError(entity.KindNavigation, "wait for table",
			fmt.Errorf("%s not reachable within %s: %w", table, n.opts.TableTimeout, err))
	}
	n.logger.Info("Successfully reached the data table", zap.Stringer("table", table))
	return nil
}

// launch activates the optional launch control when it is shown.
func (n *navigator) launch(ctx context.Context, page browser.Page) error {
	loc := n.opts.Route.Launch
	if loc.IsZero() {
		return nil
	}
	n.logger.Info("Checking for launch control", zap.Stringer("locator", loc))
	presence, err := page.Probe(ctx, loc, n.opts.ProbeTimeout)
	switch presence {
	case browser.PresenceAbsent:
		n.logger.Info("No launch control shown, continuing")
		return nil
	case browser.PresencePresent:
		n.logger.Info("Clicking launch control to proceed")
		if err := page.Click(ctx, loc); err != nil {
			return entity.NewRunError(entity.KindNavigation, "launch", err)
		}
		if err := page.WaitForNetworkIdle(ctx, n.opts.QuiescenceTimeout); err != nil {
			return entity.NewRunError(entity.KindNavigation, "launch", err)
		}
		return nil
	default:
		if err == nil {
			err = errors.New("probe returned no answer")
		}
		return entity.NewRunError(entity.KindNavigation, "probe launch control", err)
	}
}
