package browser

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/LouYuanbo1/tableharvester/internal/config"
)

// Factory starts a browser; the run controller calls it once per run.
type Factory func(ctx context.Context) (Browser, error)

// InitBrowser launches the driver selected by cfg.Browser.Driver.
func InitBrowser(ctx context.Context, cfg *config.Config, logger *zap.Logger) (Browser, error) {
	opts := OptionsFromConfig(cfg.Timeouts)
	launch := LaunchOptionsFromConfig(cfg.Browser)
	switch cfg.Browser.Driver {
	case config.DriverChromedp:
		return InitChromedpBrowser(ctx, opts, logger, launch...)
	case config.DriverRod:
		return InitRodBrowser(ctx, opts, logger, launch...)
	default:
		return nil, fmt.Errorf("unknown browser driver %q", cfg.Browser.Driver)
	}
}

// NewFactory binds InitBrowser to cfg and logger.
func NewFactory(cfg *config.Config, logger *zap.Logger) Factory {
	return func(ctx context.Context) (Browser, error) {
		return InitBrowser(ctx, cfg, logger)
	}
}
