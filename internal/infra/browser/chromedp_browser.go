package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/LouYuanbo1/tableharvester/internal/domain/entity"
	"github.com/LouYuanbo1/tableharvester/param"
)

var (
	_ Browser = (*chromedpBrowser)(nil)
	_ Context = (*chromedpContext)(nil)
	_ Page    = (*chromedpPage)(nil)
)

type chromedpBrowser struct {
	allocCtx      context.Context
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	opts          Options
	logger        *zap.Logger
}

// InitChromedpBrowser starts a Chrome process through chromedp's exec allocator.
func InitChromedpBrowser(ctx context.Context, opts Options, logger *zap.Logger, launch ...LaunchOption) (Browser, error) {
	s := newLaunchSettings(launch...)
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", s.headless),
		chromedp.Flag("disable-dev-shm-usage", s.disableDevShmUsage),
		chromedp.Flag("no-sandbox", s.noSandbox),
	)
	if s.disableBlinkFeatures != "" {
		allocOpts = append(allocOpts, chromedp.Flag("disable-blink-features", s.disableBlinkFeatures))
	}
	if s.bin != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(s.bin))
	}
	if s.userDataDir != "" {
		allocOpts = append(allocOpts, chromedp.UserDataDir(s.userDataDir))
	}
	if s.userAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(s.userAgent))
	}

	logger = logger.Named("chromedp")
	sugar := logger.Sugar()
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(sugar.Debugf),
		chromedp.WithErrorf(sugar.Debugf),
	)
	// 第一次 Run 启动浏览器进程,不能使用带超时的 ctx
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}
	logger.Debug("browser started", zap.Bool("headless", s.headless))

	return &chromedpBrowser{
		allocCtx:      allocCtx,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		opts:          opts.withDefaults(),
		logger:        logger,
	}, nil
}

// executor binds browser level CDP commands to ctx.
func (b *chromedpBrowser) executor(ctx context.Context) context.Context {
	return cdp.WithExecutor(ctx, chromedp.FromContext(b.browserCtx).Browser)
}

func (b *chromedpBrowser) NewContext(ctx context.Context, state *entity.SessionState) (Context, error) {
	if err := b.browserCtx.Err(); err != nil {
		return nil, fmt.Errorf("browser closed: %w", err)
	}
	id, err := target.CreateBrowserContext().Do(b.executor(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}
	c := &chromedpContext{browser: b, id: id, logger: b.logger.With(zap.String("browser_context", string(id)))}

	if state != nil && len(state.Cookies) > 0 {
		if err := storage.SetCookies(cdpCookieParams(state.Cookies)).WithBrowserContextID(id).Do(b.executor(ctx)); err != nil {
			c.dispose()
			return nil, fmt.Errorf("restore cookies: %w", err)
		}
		c.logger.Debug("cookies restored", zap.Int("count", len(state.Cookies)))
	}
	if state != nil {
		script, err := restoreScript(state.Origins)
		if err != nil {
			c.dispose()
			return nil, err
		}
		c.initScript = script
	}
	return c, nil
}

func (b *chromedpBrowser) Close() error {
	err := chromedp.Cancel(b.browserCtx)
	b.browserCancel()
	b.allocCancel()
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("close browser: %w", err)
	}
	return nil
}

type chromedpContext struct {
	browser    *chromedpBrowser
	id         cdp.BrowserContextID
	initScript string
	logger     *zap.Logger

	mu     sync.Mutex
	pages  []*chromedpPage
	closed bool
}

func (c *chromedpContext) NewPage(ctx context.Context) (Page, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, errors.New("browser context closed")
	}

	targetID, err := target.CreateTarget("about:blank").WithBrowserContextID(c.id).Do(c.browser.executor(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to create target: %w", err)
	}
	pageCtx, cancel := chromedp.NewContext(c.browser.browserCtx, chromedp.WithTargetID(targetID))

	p := &chromedpPage{
		ctx:     pageCtx,
		cancel:  cancel,
		tracker: newRequestTracker(),
		opts:    c.browser.opts,
		logger:  c.logger,
	}
	chromedp.ListenTarget(pageCtx, p.onEvent)

	tasks := chromedp.Tasks{network.Enable()}
	if c.initScript != "" {
		script := c.initScript
		tasks = append(tasks, chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(script).Do(ctx)
			return err
		}))
	}
	// 第一次 Run 负责附加到目标页,使用页面自身的 ctx
	if err := chromedp.Run(pageCtx, tasks); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to attach page: %w", err)
	}
	c.pages = append(c.pages, p)
	return p, nil
}

func (c *chromedpContext) StorageState(ctx context.Context) (*entity.SessionState, error) {
	cookies, err := storage.GetCookies().WithBrowserContextID(c.id).Do(c.browser.executor(ctx))
	if err != nil {
		return nil, fmt.Errorf("read cookies: %w", err)
	}
	state := &entity.SessionState{
		Cookies: fromCDPCookies(cookies),
		Origins: []entity.OriginState{},
	}

	c.mu.Lock()
	pages := append([]*chromedpPage(nil), c.pages...)
	c.mu.Unlock()
	for _, p := range pages {
		if p.isClosed() {
			continue
		}
		var raw string
		if err := p.run(ctx, chromedp.Evaluate(localStorageExpr, &raw)); err != nil {
			return nil, fmt.Errorf("read localStorage: %w", err)
		}
		origin, err := decodeOrigin(raw)
		if err != nil {
			return nil, err
		}
		state.Origins = mergeOrigin(state.Origins, origin)
	}
	return state, nil
}

func (c *chromedpContext) Close() error {
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
	if err := c.dispose(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (c *chromedpContext) dispose() error {
	if c.browser.browserCtx.Err() != nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := target.DisposeBrowserContext(c.id).Do(c.browser.executor(ctx)); err != nil {
		return fmt.Errorf("dispose browser context: %w", err)
	}
	return nil
}

type chromedpPage struct {
	ctx     context.Context
	cancel  context.CancelFunc
	tracker *requestTracker
	opts    Options
	logger  *zap.Logger

	// domContent is fired by the main frame's DOMContentLoaded event.
	domContent loadSignal

	mu     sync.Mutex
	closed bool
}

func (p *chromedpPage) onEvent(ev any) {
	switch e := ev.(type) {
	case *page.EventDomContentEventFired:
		p.domContent.fire()
	case *network.EventRequestWillBeSent:
		p.tracker.started(string(e.RequestID))
	case *network.EventLoadingFinished:
		p.tracker.finished(string(e.RequestID))
	case *network.EventLoadingFailed:
		p.tracker.finished(string(e.RequestID))
	}
}

// run executes actions on the page target while honouring ctx.
func (p *chromedpPage) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(p.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%w (%v)", ctxErr, err)
		}
		return err
	}
	return nil
}

// Goto issues Page.navigate and returns once DOMContentLoaded fires for the
// new document. Subresources such as images may still be loading.
func (p *chromedpPage) Goto(ctx context.Context, url string) error {
	navCtx, cancel := context.WithTimeout(ctx, p.opts.Navigation)
	defer cancel()
	p.tracker.reset()

	parsed := p.domContent.arm()
	var loaderID cdp.LoaderID
	err := p.run(navCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		_, id, errorText, _, err := page.Navigate(url).Do(ctx)
		if err != nil {
			return err
		}
		if errorText != "" {
			return errors.New(errorText)
		}
		loaderID = id
		return nil
	}))
	if err != nil {
		p.domContent.disarm()
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	// Same-document navigations have no loader and fire no DOMContentLoaded.
	if loaderID == "" {
		p.domContent.disarm()
		return nil
	}
	select {
	case <-parsed:
		return nil
	case <-navCtx.Done():
		p.domContent.disarm()
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("navigate to %s: %w", url, err)
		}
		return fmt.Errorf("navigate to %s: document not parsed within %s: %w", url, p.opts.Navigation, navCtx.Err())
	}
}

func (p *chromedpPage) IsVisible(ctx context.Context, loc param.Locator) (bool, error) {
	var visible bool
	if err := p.run(ctx, chromedp.Evaluate(visibleExpr(loc), &visible)); err != nil {
		return false, err
	}
	return visible, nil
}

func (p *chromedpPage) Probe(ctx context.Context, loc param.Locator, window time.Duration) (Presence, error) {
	return PollProbe(ctx, window, p.opts.PollInterval, func(ctx context.Context) (bool, error) {
		return p.IsVisible(ctx, loc)
	})
}

func (p *chromedpPage) WaitFor(ctx context.Context, loc param.Locator, timeout time.Duration) error {
	err := PollVisible(ctx, timeout, p.opts.PollInterval, func(ctx context.Context) (bool, error) {
		return p.IsVisible(ctx, loc)
	})
	if err != nil {
		return fmt.Errorf("wait for %s: %w", loc, err)
	}
	return nil
}

func (p *chromedpPage) Fill(ctx context.Context, loc param.Locator, value string) error {
	actCtx, cancel := context.WithTimeout(ctx, p.opts.Action)
	defer cancel()
	expr := elementExpr(loc)
	if err := p.run(actCtx,
		chromedp.SetValue(expr, "", chromedp.ByJSPath),
		chromedp.SendKeys(expr, value, chromedp.ByJSPath),
	); err != nil {
		return fmt.Errorf("fill %s: %w", loc, err)
	}
	return nil
}

func (p *chromedpPage) Click(ctx context.Context, loc param.Locator) error {
	actCtx, cancel := context.WithTimeout(ctx, p.opts.Action)
	defer cancel()
	if err := p.run(actCtx, chromedp.Click(elementExpr(loc), chromedp.ByJSPath)); err != nil {
		return fmt.Errorf("click %s: %w", loc, err)
	}
	return nil
}

func (p *chromedpPage) WaitForNetworkIdle(ctx context.Context, timeout time.Duration) error {
	return p.tracker.waitIdle(ctx, p.opts.IdleWindow, timeout, p.opts.PollInterval/2)
}

func (p *chromedpPage) InnerTexts(ctx context.Context, selector string) ([]string, error) {
	var raw string
	if err := p.run(ctx, chromedp.Evaluate(innerTextsExpr(selector), &raw)); err != nil {
		return nil, fmt.Errorf("read text of %s: %w", selector, err)
	}
	return decodeTexts[[]string](raw)
}

func (p *chromedpPage) RowTexts(ctx context.Context, rowSelector, cellSelector string) ([][]string, error) {
	var raw string
	if err := p.run(ctx, chromedp.Evaluate(rowTextsExpr(rowSelector, cellSelector), &raw)); err != nil {
		return nil, fmt.Errorf("read rows %s: %w", rowSelector, err)
	}
	return decodeTexts[[][]string](raw)
}

func (p *chromedpPage) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *chromedpPage) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	err := chromedp.Cancel(p.ctx)
	p.cancel()
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("close page: %w", err)
	}
	return nil
}
