// Package auth 建立已认证的浏览器会话:复用保存的状态或执行登录
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/LouYuanbo1/tableharvester/internal/config"
	"github.com/LouYuanbo1/tableharvester/internal/domain/entity"
	"github.com/LouYuanbo1/tableharvester/internal/infra/browser"
	"github.com/LouYuanbo1/tableharvester/internal/infra/logging"
	"github.com/LouYuanbo1/tableharvester/internal/infra/persistence/session"
	"github.com/LouYuanbo1/tableharvester/param"
)

// Session is an authenticated page together with the context that owns it.
// The caller closes both.
type Session struct {
	Context browser.Context
	Page    browser.Page
	// LoggedIn is true when the login form was filled during this run.
	LoggedIn bool
}

func (s *Session) Close() error {
	if s == nil {
		return nil
	}
	var errs []error
	if s.Page != nil {
		errs = append(errs, s.Page.Close())
	}
	if s.Context != nil {
		errs = append(errs, s.Context.Close())
	}
	return errors.Join(errs...)
}

type Authenticator interface {
	// Authenticate opens a context from state (nil for a fresh one), loads the
	// application and signs in when the login form is shown.
	Authenticate(ctx context.Context, state *entity.SessionState) (*Session, error)
}

// Options 认证流程参数
type Options struct {
	URL         string
	Credentials config.Credentials
	Login       param.Login
	// ProbeTimeout bounds the login-form and submit-control probes.
	ProbeTimeout      time.Duration
	QuiescenceTimeout time.Duration
}

func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		URL:               cfg.App.URL,
		Credentials:       cfg.Credentials(),
		Login:             cfg.Login,
		ProbeTimeout:      cfg.Timeouts.Probe,
		QuiescenceTimeout: cfg.Timeouts.Quiescence,
	}
}

type authenticator struct {
	browser browser.Browser
	store   session.Store
	opts    Options
	logger  *zap.Logger
}

func InitAuthenticator(b browser.Browser, store session.Store, opts Options, logger *zap.Logger) Authenticator {
	return &authenticator{
		browser: b,
		store:   store,
		opts:    opts,
		logger:  logger.Named("auth"),
	}
}

func (a *authenticator) Authenticate(ctx context.Context, state *entity.SessionState) (_ *Session, err error) {
	if state != nil {
		a.logger.Info("Restoring browser context from saved session",
			zap.Int("cookies", len(state.Cookies)),
			zap.Int("origins", len(state.Origins)),
		)
	} else {
		a.logger.Info("Creating a new browser session")
	}

	bctx, err := a.browser.NewContext(ctx, state)
	if err != nil {
		return nil, entity.NewRunError(entity.KindNavigation, "create browser context", err)
	}
	sess := &Session{Context: bctx}
	defer func() {
		if err != nil {
			if cerr := sess.Close(); cerr != nil {
				a.logger.Warn("Failed to close browser context", zap.Error(cerr))
			}
		}
	}()

	sess.Page, err = bctx.NewPage(ctx)
	if err != nil {
		return nil, entity.NewRunError(entity.KindNavigation, "open page", err)
	}

	a.logger.Info("Navigating to login page", zap.String("url", a.opts.URL))
	if err := sess.Page.Goto(ctx, a.opts.URL); err != nil {
		return nil, entity.NewRunError(entity.KindNavigation, "open application", err)
	}

	presence, err := sess.Page.Probe(ctx, a.opts.Login.Indicator, a.opts.ProbeTimeout)
	switch presence {
	case browser.PresenceAbsent:
		a.logger.Info("Already logged in, skipping login")
		return sess, nil
	case browser.PresencePresent:
		a.logger.Info("Not logged in, performing login")
		if err := a.login(ctx, sess); err != nil {
			return nil, err
		}
		sess.LoggedIn = true
		return sess, nil
	default:
		if err == nil {
			err = errors.New("probe returned no answer")
		}
		return nil, entity.NewRunError(entity.KindAuthentication, "probe login form",
			fmt.Errorf("cannot tell whether %s is shown: %w", a.opts.Login.Indicator, err))
	}
}

func (a *authenticator) login(ctx context.Context, sess *Session) error {
	creds := a.opts.Credentials
	if err := creds.Validate(); err != nil {
		return entity.NewRunError(entity.KindAuthentication, "login", err)
	}
	page := sess.Page

	if err := page.Fill(ctx, a.opts.Login.Identifier, creds.Identifier); err != nil {
		return entity.NewRunError(entity.KindAuthentication, "fill identifier", err)
	}
	if err := page.Fill(ctx, a.opts.Login.Secret, creds.Secret); err != nil {
		return entity.NewRunError(entity.KindAuthentication, "fill secret", err)
	}
	a.logger.Debug("Credentials entered",
		zap.String("identifier", creds.Identifier),
		logging.Redact("secret", creds.Secret),
	)

	submit, err := a.findSubmit(ctx, page)
	if err != nil {
		return entity.NewRunError(entity.KindAuthentication, "find submit control", err)
	}
	if err := page.Click(ctx, submit); err != nil {
		return entity.NewRunError(entity.KindAuthentication, "submit login", err)
	}
	if err := page.WaitForNetworkIdle(ctx, a.opts.QuiescenceTimeout); err != nil {
		return entity.NewRunError(entity.KindNavigation, "wait for login to settle", err)
	}
	a.logger.Info("Login successful")

	state, err := sess.Context.StorageState(ctx)
	if err != nil {
		return entity.NewRunError(entity.KindStorage, "capture session state", err)
	}
	if err := a.store.Save(ctx, state); err != nil {
		return entity.NewRunError(entity.KindStorage, "save session state", err)
	}
	a.logger.Info("Session state saved", zap.String("path", a.store.Path()))
	return nil
}

// findSubmit returns the first submit candidate that is shown.
func (a *authenticator) findSubmit(ctx context.Context, page browser.Page) (param.Locator, error) {
	var lastErr error
	for _, cand := range a.opts.Login.Submit {
		presence, err := page.Probe(ctx, cand, a.opts.ProbeTimeout)
		switch presence {
		case browser.PresencePresent:
			return cand, nil
		case browser.PresenceIndeterminate:
			if err == nil {
				err = errors.New("probe returned no answer")
			}
			lastErr = fmt.Errorf("%s: %w", cand, err)
			if ctx.Err() != nil {
				return param.Locator{}, lastErr
			}
		}
	}
	if lastErr != nil {
		return param.Locator{}, fmt.Errorf("no submit control found: %w", lastErr)
	}
	return param.Locator{}, fmt.Errorf("none of %d submit candidates is visible", len(a.opts.Login.Submit))
}
