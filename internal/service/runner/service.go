// Package runner 一次完整采集流程的编排:会话 → 登录 → 导航 → 抓取 → 导出
package runner

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/LouYuanbo1/tableharvester/internal/config"
	"github.com/LouYuanbo1/tableharvester/internal/domain/entity"
	"github.com/LouYuanbo1/tableharvester/internal/domain/model"
	"github.com/LouYuanbo1/tableharvester/internal/infra/browser"
	"github.com/LouYuanbo1/tableharvester/internal/infra/persistence/session"
	"github.com/LouYuanbo1/tableharvester/internal/service/auth"
	"github.com/LouYuanbo1/tableharvester/internal/service/exporter"
	"github.com/LouYuanbo1/tableharvester/internal/service/harvester"
	"github.com/LouYuanbo1/tableharvester/internal/service/navigator"
)

// Result summarises a successful run.
type Result struct {
	RunID       string
	LoggedIn    bool
	Records     int
	Termination model.Termination
}

type Runner interface {
	// Run executes the pipeline once. Every failure is returned as a
	// *entity.RunError after the browser has been torn down.
	Run(ctx context.Context) (*Result, error)
}

type runner struct {
	cfg        *config.Config
	newBrowser browser.Factory
	store      session.Store
	exporter   exporter.Exporter
	logger     *zap.Logger
}

func InitRunner(cfg *config.Config, newBrowser browser.Factory, store session.Store, exp exporter.Exporter, logger *zap.Logger) Runner {
	return &runner{
		cfg:        cfg,
		newBrowser: newBrowser,
		store:      store,
		exporter:   exp,
		logger:     logger,
	}
}

func (r *runner) Run(ctx context.Context) (*Result, error) {
	runID := uuid.NewString()
	logger := r.logger.With(zap.String("run_id", runID))
	logger.Info("Starting table harvest",
		zap.String("url", r.cfg.App.URL),
		zap.String("driver", string(r.cfg.Browser.Driver)),
		zap.Bool("headless", r.cfg.Browser.Headless),
	)

	res, err := r.run(ctx, logger)
	if err != nil {
		logger.Error("run failed",
			zap.String("kind", string(entity.KindOf(err))),
			zap.String("op", entity.OpOf(err)),
			zap.Error(err),
		)
		return nil, err
	}
	res.RunID = runID
	logger.Info("Run finished",
		zap.Int("records", res.Records),
		zap.String("termination", string(res.Termination)),
		zap.Bool("logged_in", res.LoggedIn),
	)
	return res, nil
}

func (r *runner) run(ctx context.Context, logger *zap.Logger) (*Result, error) {
	state, err := r.loadSession(ctx, logger)
	if err != nil {
		return nil, err
	}

	b, err := r.newBrowser(ctx)
	if err != nil {
		return nil, entity.NewRunError(entity.KindNavigation, "launch browser", err)
	}
	defer func() {
		if err := b.Close(); err != nil {
			logger.Warn("Failed to close browser", zap.Error(err))
		}
	}()

	sess, err := auth.InitAuthenticator(b, r.store, auth.OptionsFromConfig(r.cfg), logger).Authenticate(ctx, state)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := sess.Close(); err != nil {
			logger.Warn("Failed to close browser context", zap.Error(err))
		}
	}()

	if err := navigator.InitNavigator(navigator.OptionsFromConfig(r.cfg), logger).Navigate(ctx, sess.Page); err != nil {
		return nil, err
	}

	rs, term, err := harvester.InitHarvester(harvester.OptionsFromConfig(r.cfg), logger).Harvest(ctx, sess.Page)
	if err != nil {
		return nil, err
	}
	logger.Info("Data extraction complete",
		zap.Int("total", rs.Len()),
		zap.String("termination", string(term)),
		zap.String("reason", term.Reason()),
	)

	if err := r.exporter.Export(ctx, rs); err != nil {
		return nil, err
	}
	return &Result{LoggedIn: sess.LoggedIn, Records: rs.Len(), Termination: term}, nil
}

// loadSession returns the saved state, or nil when there is nothing worth
// restoring and a fresh context should be used.
func (r *runner) loadSession(ctx context.Context, logger *zap.Logger) (*entity.SessionState, error) {
	path := zap.String("path", r.store.Path())
	logger.Info("Checking for existing session state", path)
	if !r.store.Exists() {
		logger.Info("No session state found, a new session will be created")
		return nil, nil
	}
	state, err := r.store.Load(ctx)
	if err != nil {
		return nil, entity.NewRunError(entity.KindStorage, "load session state", err)
	}
	switch {
	case state == nil:
		logger.Info("No session state found, a new session will be created")
		return nil, nil
	case state.IsEmpty():
		logger.Info("Session state is empty, a new session will be created", path)
		return nil, nil
	}
	logger.Info("Session state found, loading session", path,
		zap.Int("cookies", len(state.Cookies)),
		zap.Int("origins", len(state.Origins)),
	)
	return state, nil
}

// ExitCode maps a run error to the process exit status.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	if errors.Is(err, context.Canceled) {
		return 130
	}
	return 1
}
