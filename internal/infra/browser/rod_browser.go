package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"go.uber.org/zap"

	"github.com/LouYuanbo1/tableharvester/internal/domain/entity"
	"github.com/LouYuanbo1/tableharvester/param"
)

var (
	_ Browser = (*rodBrowser)(nil)
	_ Context = (*rodContext)(nil)
	_ Page    = (*rodPage)(nil)
)

type rodBrowser struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	opts     Options
	logger   *zap.Logger
}

// InitRodBrowser launches Chrome with rod's launcher and connects to it.
func InitRodBrowser(ctx context.Context, opts Options, logger *zap.Logger, launch ...LaunchOption) (Browser, error) {
	s := newLaunchSettings(launch...)
	l := launcher.New().
		Context(ctx).
		Headless(s.headless).
		NoSandbox(s.noSandbox).
		Leakless(s.leakless)
	if s.bin != "" {
		l = l.Bin(s.bin)
	}
	if s.userDataDir != "" {
		l = l.UserDataDir(s.userDataDir)
	}
	if s.disableBlinkFeatures != "" {
		l = l.Set("disable-blink-features", s.disableBlinkFeatures)
	}
	if s.disableDevShmUsage {
		l = l.Set("disable-dev-shm-usage")
	}
	if s.userAgent != "" {
		l = l.Set("user-agent", s.userAgent)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}
	logger = logger.Named("rod")
	logger.Debug("browser launched", zap.String("control_url", controlURL))

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("failed to connect browser: %w", err)
	}
	return &rodBrowser{launcher: l, browser: b, opts: opts.withDefaults(), logger: logger}, nil
}

func (b *rodBrowser) NewContext(ctx context.Context, state *entity.SessionState) (Context, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	// 上下文对象不绑定调用方的 ctx,否则调用结束后无法继续使用
	inc, err := b.browser.Incognito()
	if err != nil {
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}
	c := &rodContext{browser: inc, opts: b.opts, logger: b.logger.With(zap.String("browser_context", string(inc.BrowserContextID)))}

	if state != nil && len(state.Cookies) > 0 {
		if err := inc.SetCookies(rodCookieParams(state.Cookies)); err != nil {
			_ = inc.Close()
			return nil, fmt.Errorf("restore cookies: %w", err)
		}
		c.logger.Debug("cookies restored", zap.Int("count", len(state.Cookies)))
	}
	if state != nil {
		script, err := restoreScript(state.Origins)
		if err != nil {
			_ = inc.Close()
			return nil, err
		}
		c.initScript = script
	}
	return c, nil
}

// Close shuts the browser down. The launcher is killed rather than cleaned
// up so a configured user data dir survives the run.
func (b *rodBrowser) Close() error {
	err := b.browser.Close()
	b.launcher.Kill()
	if err != nil {
		return fmt.Errorf("close browser: %w", err)
	}
	return nil
}

type rodContext struct {
	browser    *rod.Browser
	initScript string
	opts       Options
	logger     *zap.Logger

	mu     sync.Mutex
	pages  []*rodPage
	closed bool
}

func (c *rodContext) NewPage(ctx context.Context) (Page, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, errors.New("browser context closed")
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pg, err := stealth.Page(c.browser)
	if err != nil {
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	if c.initScript != "" {
		if _, err := pg.EvalOnNewDocument(c.initScript); err != nil {
			_ = pg.Close()
			return nil, fmt.Errorf("inject localStorage seed: %w", err)
		}
	}
	p := &rodPage{page: pg, tracker: newRequestTracker(), opts: c.opts, logger: c.logger}
	// Subscribe before any navigation so requests started by a click are
	// counted even when the idle wait begins after the click returns.
	evCtx, stop := context.WithCancel(context.Background())
	p.stopEvents = stop
	wait := pg.Context(evCtx).EachEvent(p.requestEvents()...)
	go wait()

	c.pages = append(c.pages, p)
	return p, nil
}

func (c *rodContext) StorageState(ctx context.Context) (*entity.SessionState, error) {
	cookies, err := c.browser.Context(ctx).GetCookies()
	if err != nil {
		return nil, fmt.Errorf("read cookies: %w", err)
	}
	state := &entity.SessionState{
		Cookies: fromRodCookies(cookies),
		Origins: []entity.OriginState{},
	}

	c.mu.Lock()
	pages := append([]*rodPage(nil), c.pages...)
	c.mu.Unlock()
	for _, p := range pages {
		if p.isClosed() {
			continue
		}
		res, err := p.page.Context(ctx).Eval(jsFunc(localStorageExpr))
		if err != nil {
			return nil, fmt.Errorf("read localStorage: %w", err)
		}
		origin, err := decodeOrigin(res.Value.Str())
		if err != nil {
			return nil, err
		}
		state.Origins = mergeOrigin(state.Origins, origin)
	}
	return state, nil
}

func (c *rodContext) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	pages := c.pages
	c.mu.Unlock()

	var errs []error
	for _, p := range pages {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := c.browser.Close(); err != nil {
		errs = append(errs, fmt.Errorf("dispose browser context: %w", err))
	}
	return errors.Join(errs...)
}

type rodPage struct {
	page       *rod.Page
	tracker    *requestTracker
	stopEvents context.CancelFunc
	opts       Options
	logger     *zap.Logger

	mu     sync.Mutex
	closed bool
}

// requestEvents feeds the request tracker from the page's network events.
func (p *rodPage) requestEvents() []any {
	return []any{
		func(e *proto.NetworkRequestWillBeSent) { p.tracker.started(string(e.RequestID)) },
		func(e *proto.NetworkLoadingFinished) { p.tracker.finished(string(e.RequestID)) },
		func(e *proto.NetworkLoadingFailed) { p.tracker.finished(string(e.RequestID)) },
	}
}

func (p *rodPage) Goto(ctx context.Context, url string) error {
	navCtx, cancel := context.WithTimeout(ctx, p.opts.Navigation)
	defer cancel()
	pg := p.page.Context(navCtx)
	p.tracker.reset()

	wait := pg.WaitNavigation(proto.PageLifecycleEventNameDOMContentLoaded)
	if err := pg.Navigate(url); err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	wait()
	if err := navCtx.Err(); err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	return nil
}

func (p *rodPage) IsVisible(ctx context.Context, loc param.Locator) (bool, error) {
	res, err := p.page.Context(ctx).Eval(jsFunc(visibleExpr(loc)))
	if err != nil {
		return false, err
	}
	return res.Value.Bool(), nil
}

func (p *rodPage) Probe(ctx context.Context, loc param.Locator, window time.Duration) (Presence, error) {
	return PollProbe(ctx, window, p.opts.PollInterval, func(ctx context.Context) (bool, error) {
		return p.IsVisible(ctx, loc)
	})
}

func (p *rodPage) WaitFor(ctx context.Context, loc param.Locator, timeout time.Duration) error {
	err := PollVisible(ctx, timeout, p.opts.PollInterval, func(ctx context.Context) (bool, error) {
		return p.IsVisible(ctx, loc)
	})
	if err != nil {
		return fmt.Errorf("wait for %s: %w", loc, err)
	}
	return nil
}

// element resolves loc, retrying until it exists or ctx ends.
func (p *rodPage) element(ctx context.Context, loc param.Locator) (*rod.Element, error) {
	if err := p.WaitFor(ctx, loc, p.opts.Action); err != nil {
		return nil, err
	}
	el, err := p.page.Context(ctx).ElementByJS(rod.Eval(jsFunc(elementExpr(loc))))
	if err != nil {
		return nil, fmt.Errorf("locate %s: %w", loc, err)
	}
	return el, nil
}

func (p *rodPage) Fill(ctx context.Context, loc param.Locator, value string) error {
	actCtx, cancel := context.WithTimeout(ctx, p.opts.Action)
	defer cancel()
	el, err := p.element(actCtx, loc)
	if err != nil {
		return fmt.Errorf("fill %s: %w", loc, err)
	}
	if err := el.SelectAllText(); err != nil {
		return fmt.Errorf("fill %s: %w", loc, err)
	}
	if err := el.Input(value); err != nil {
		return fmt.Errorf("fill %s: %w", loc, err)
	}
	return nil
}

func (p *rodPage) Click(ctx context.Context, loc param.Locator) error {
	actCtx, cancel := context.WithTimeout(ctx, p.opts.Action)
	defer cancel()
	el, err := p.element(actCtx, loc)
	if err != nil {
		return fmt.Errorf("click %s: %w", loc, err)
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("click %s: %w", loc, err)
	}
	return nil
}

func (p *rodPage) WaitForNetworkIdle(ctx context.Context, timeout time.Duration) error {
	return p.tracker.waitIdle(ctx, p.opts.IdleWindow, timeout, p.opts.PollInterval/2)
}

func (p *rodPage) InnerTexts(ctx context.Context, selector string) ([]string, error) {
	res, err := p.page.Context(ctx).Eval(jsFunc(innerTextsExpr(selector)))
	if err != nil {
		return nil, fmt.Errorf("read text of %s: %w", selector, err)
	}
	return decodeTexts[[]string](res.Value.Str())
}

func (p *rodPage) RowTexts(ctx context.Context, rowSelector, cellSelector string) ([][]string, error) {
	res, err := p.page.Context(ctx).Eval(jsFunc(rowTextsExpr(rowSelector, cellSelector)))
	if err != nil {
		return nil, fmt.Errorf("read rows %s: %w", rowSelector, err)
	}
	return decodeTexts[[][]string](res.Value.Str())
}

func (p *rodPage) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *rodPage) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()
	p.stopEvents()
	if err := p.page.Close(); err != nil {
		return fmt.Errorf("close page: %w", err)
	}
	return nil
}

// jsFunc wraps an expression in the function form rod's Eval expects.
func jsFunc(expr string) string {
	return "() => " + expr
}
