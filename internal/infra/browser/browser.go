package browser

import (
	"context"
	"time"

	"github.com/LouYuanbo1/tableharvester/internal/config"
	"github.com/LouYuanbo1/tableharvester/internal/domain/entity"
	"github.com/LouYuanbo1/tableharvester/param"
)

// Presence 探测结果:存在、不存在或无法判定
type Presence int

const (
	// PresenceIndeterminate means the probe itself failed; callers must not
	// read it as absent.
	PresenceIndeterminate Presence = iota
	PresenceAbsent
	PresencePresent
)

func (p Presence) String() string {
	switch p {
	case PresencePresent:
		return "present"
	case PresenceAbsent:
		return "absent"
	default:
		return "indeterminate"
	}
}

// Browser 浏览器实例,可创建相互隔离的上下文
type Browser interface {
	// NewContext opens an isolated context. A non-empty state has its cookies
	// installed and its localStorage injected before any page script runs.
	NewContext(ctx context.Context, state *entity.SessionState) (Context, error)
	Close() error
}

// Context 隔离的浏览器上下文,拥有独立的 cookie 与存储
type Context interface {
	NewPage(ctx context.Context) (Page, error)
	// StorageState captures the cookies of the context and the localStorage of
	// the origins its pages have visited.
	StorageState(ctx context.Context) (*entity.SessionState, error)
	Close() error
}

// Page 单个标签页上的操作
type Page interface {
	// Goto navigates and returns once the document has been parsed.
	Goto(ctx context.Context, url string) error
	// IsVisible performs a single visibility check without waiting.
	IsVisible(ctx context.Context, loc param.Locator) (bool, error)
	// Probe polls loc for at most window.
	Probe(ctx context.Context, loc param.Locator, window time.Duration) (Presence, error)
	// WaitFor blocks until loc is visible. The returned error wraps
	// context.DeadlineExceeded when timeout elapses first.
	WaitFor(ctx context.Context, loc param.Locator, timeout time.Duration) error
	Fill(ctx context.Context, loc param.Locator, value string) error
	Click(ctx context.Context, loc param.Locator) error
	// WaitForNetworkIdle waits until no request has been in flight for the
	// configured idle window, bounded by timeout.
	WaitForNetworkIdle(ctx context.Context, timeout time.Duration) error
	// InnerTexts returns the rendered text (innerText) of every element
	// matching selector, in document order.
	InnerTexts(ctx context.Context, selector string) ([]string, error)
	// RowTexts returns, per element matching rowSelector, the innerText of
	// its descendants matching cellSelector.
	RowTexts(ctx context.Context, rowSelector, cellSelector string) ([][]string, error)
	Close() error
}

// Options bounds the waits a driver performs on its own.
type Options struct {
	Navigation   time.Duration
	Action       time.Duration
	IdleWindow   time.Duration
	PollInterval time.Duration
}

const defaultPollInterval = 100 * time.Millisecond

func OptionsFromConfig(t config.TimeoutConfig) Options {
	return Options{
		Navigation:   t.Navigation,
		Action:       t.Action,
		IdleWindow:   t.IdleWindow,
		PollInterval: defaultPollInterval,
	}
}

func (o Options) withDefaults() Options {
	if o.Navigation <= 0 {
		o.Navigation = 30 * time.Second
	}
	if o.Action <= 0 {
		o.Action = 30 * time.Second
	}
	if o.IdleWindow <= 0 {
		o.IdleWindow = 500 * time.Millisecond
	}
	if o.PollInterval <= 0 {
		o.PollInterval = defaultPollInterval
	}
	return o
}
