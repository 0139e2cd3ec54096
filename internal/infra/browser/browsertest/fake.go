// Package browsertest provides a scripted in-memory browser for pipeline tests.
package browsertest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/LouYuanbo1/tableharvester/internal/domain/entity"
	"github.com/LouYuanbo1/tableharvester/internal/infra/browser"
	"github.com/LouYuanbo1/tableharvester/param"
)

var (
	_ browser.Browser = (*Browser)(nil)
	_ browser.Context = (*Context)(nil)
	_ browser.Page    = (*Page)(nil)
)

// Fill records one Fill call.
type Fill struct {
	Locator param.Locator
	Value   string
}

// Page is a fake browser.Page.
//
// CSS locators are resolved against the current document with goquery; every
// other locator kind is looked up in Visible. Clicking Advance moves to the
// next document, and OnClick lets a test mutate visibility when a control is
// activated (for example hiding the login form after submit).
type Page struct {
	mu sync.Mutex

	Documents []string
	current   int
	Visible   map[string]bool
	Advance   param.Locator
	OnClick   func(p *Page, loc param.Locator)
	// Errors injects failures keyed by "<op>" or "<op>:<locator>", where op is
	// one of goto, probe, waitfor, fill, click, idle, texts, rows.
	Errors map[string]error

	Gotos  []string
	Clicks []param.Locator
	Fills  []Fill
	Waits  []param.Locator
	Idles  int
	closed bool
}

func NewPage(documents ...string) *Page {
	return &Page{
		Documents: documents,
		Visible:   map[string]bool{},
		Errors:    map[string]error{},
	}
}

// SetVisible toggles a non-CSS locator.
func (p *Page) SetVisible(loc param.Locator, visible bool) {
	p.Visible[loc.String()] = visible
}

func (p *Page) errFor(op string, loc *param.Locator) error {
	if loc != nil {
		if err, ok := p.Errors[op+":"+loc.String()]; ok {
			return err
		}
	}
	return p.Errors[op]
}

func (p *Page) document() string {
	if len(p.Documents) == 0 {
		return "<html><body></body></html>"
	}
	return p.Documents[p.current]
}

func (p *Page) parse() (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(strings.NewReader(p.document()))
}

func (p *Page) visibleLocked(loc param.Locator) (bool, error) {
	if loc.Kind != param.LocatorCSS {
		return p.Visible[loc.String()], nil
	}
	doc, err := p.parse()
	if err != nil {
		return false, err
	}
	return doc.Find(loc.Selector).Length() > 0, nil
}

func (p *Page) Goto(ctx context.Context, url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.errFor("goto", nil); err != nil {
		return err
	}
	p.Gotos = append(p.Gotos, url)
	return ctx.Err()
}

func (p *Page) IsVisible(ctx context.Context, loc param.Locator) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.visibleLocked(loc)
}

// Probe answers immediately instead of polling for window.
func (p *Page) Probe(ctx context.Context, loc param.Locator, window time.Duration) (browser.Presence, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.errFor("probe", &loc); err != nil {
		return browser.PresenceIndeterminate, err
	}
	visible, err := p.visibleLocked(loc)
	if err != nil {
		return browser.PresenceIndeterminate, err
	}
	if visible {
		return browser.PresencePresent, nil
	}
	return browser.PresenceAbsent, nil
}

// WaitFor fails at once with a deadline error when loc is not visible.
func (p *Page) WaitFor(ctx context.Context, loc param.Locator, timeout time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Waits = append(p.Waits, loc)
	if err := p.errFor("waitfor", &loc); err != nil {
		return err
	}
	visible, err := p.visibleLocked(loc)
	if err != nil {
		return err
	}
	if !visible {
		return fmt.Errorf("wait for %s: not visible within %s: %w", loc, timeout, context.DeadlineExceeded)
	}
	return nil
}

func (p *Page) Fill(ctx context.Context, loc param.Locator, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.errFor("fill", &loc); err != nil {
		return err
	}
	p.Fills = append(p.Fills, Fill{Locator: loc, Value: value})
	return nil
}

func (p *Page) Click(ctx context.Context, loc param.Locator) error {
	p.mu.Lock()
	if err := p.errFor("click", &loc); err != nil {
		p.mu.Unlock()
		return err
	}
	visible, err := p.visibleLocked(loc)
	if err != nil {
		p.mu.Unlock()
		return err
	}
	if !visible {
		p.mu.Unlock()
		return fmt.Errorf("click %s: element not visible: %w", loc, context.DeadlineExceeded)
	}
	p.Clicks = append(p.Clicks, loc)
	if !p.Advance.IsZero() && loc == p.Advance && p.current < len(p.Documents)-1 {
		p.current++
	}
	hook := p.OnClick
	p.mu.Unlock()

	if hook != nil {
		hook(p, loc)
	}
	return nil
}

func (p *Page) WaitForNetworkIdle(ctx context.Context, timeout time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.errFor("idle", nil); err != nil {
		return err
	}
	p.Idles++
	return nil
}

func (p *Page) InnerTexts(ctx context.Context, selector string) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.errFor("texts", nil); err != nil {
		return nil, err
	}
	doc, err := p.parse()
	if err != nil {
		return nil, err
	}
	sel := doc.Find(selector)
	out := make([]string, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		out = append(out, InnerText(s))
	})
	return out, nil
}

func (p *Page) RowTexts(ctx context.Context, rowSelector, cellSelector string) ([][]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.errFor("rows", nil); err != nil {
		return nil, err
	}
	doc, err := p.parse()
	if err != nil {
		return nil, err
	}
	rows := doc.Find(rowSelector)
	out := make([][]string, 0, rows.Length())
	rows.Each(func(_ int, row *goquery.Selection) {
		cells := row.Find(cellSelector)
		texts := make([]string, 0, cells.Length())
		cells.Each(func(_ int, c *goquery.Selection) {
			texts = append(texts, InnerText(c))
		})
		out = append(out, texts)
	})
	return out, nil
}

func (p *Page) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *Page) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// CurrentDocument reports the index of the document being shown.
func (p *Page) CurrentDocument() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// Context is a fake browser.Context that hands out a single Page.
type Context struct {
	mu sync.Mutex

	Page       *Page
	State      *entity.SessionState
	StateErr   error
	NewPageErr error
	closed     bool
}

func (c *Context) NewPage(ctx context.Context) (browser.Page, error) {
	if c.NewPageErr != nil {
		return nil, c.NewPageErr
	}
	if c.Page == nil {
		return nil, errors.New("no page scripted")
	}
	return c.Page, nil
}

func (c *Context) StorageState(ctx context.Context) (*entity.SessionState, error) {
	if c.StateErr != nil {
		return nil, c.StateErr
	}
	return c.State, nil
}

func (c *Context) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *Context) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Browser is a fake browser.Browser returning Ctx from NewContext.
type Browser struct {
	mu sync.Mutex

	Ctx           *Context
	NewContextErr error
	// States records the state passed to each NewContext call.
	States []*entity.SessionState
	closed bool
}

func (b *Browser) NewContext(ctx context.Context, state *entity.SessionState) (browser.Context, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.States = append(b.States, state)
	if b.NewContextErr != nil {
		return nil, b.NewContextErr
	}
	return b.Ctx, nil
}

func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

func (b *Browser) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// TableDocument renders a product-table page. When hasNext is false the next
// button is rendered disabled.
func TableDocument(headers []string, rows [][]string, hasNext bool) string {
	var sb strings.Builder
	sb.WriteString(`<html><body><table class="product-table"><thead><tr>`)
	for _, h := range headers {
		fmt.Fprintf(&sb, "<th>%s</th>", h)
	}
	sb.WriteString("</tr></thead><tbody>")
	for _, row := range rows {
		sb.WriteString("<tr>")
		for _, cell := range row {
			fmt.Fprintf(&sb, "<td>%s</td>", cell)
		}
		sb.WriteString("</tr>")
	}
	sb.WriteString("</tbody></table>")
	if hasNext {
		sb.WriteString(`<button class="next-page">Next</button>`)
	} else {
		sb.WriteString(`<button class="next-page" disabled>Next</button>`)
	}
	sb.WriteString("</body></html>")
	return sb.String()
}
