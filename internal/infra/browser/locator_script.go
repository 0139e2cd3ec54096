package browser

import (
	"encoding/json"
	"fmt"

	"github.com/LouYuanbo1/tableharvester/param"
)

// roleSelectors maps ARIA roles to the native elements that carry them implicitly.
var roleSelectors = map[string]string{
	"button":   `button, [role="button"], input[type="button"], input[type="submit"], input[type="reset"]`,
	"tab":      `[role="tab"]`,
	"link":     `a[href], [role="link"]`,
	"textbox":  `input:not([type]), input[type="text"], input[type="email"], input[type="password"], input[type="search"], input[type="tel"], input[type="url"], textarea, [role="textbox"]`,
	"checkbox": `input[type="checkbox"], [role="checkbox"]`,
	"menuitem": `[role="menuitem"]`,
	"table":    `table, [role="table"], [role="grid"]`,
}

func roleSelector(role string) string {
	if sel, ok := roleSelectors[role]; ok {
		return sel
	}
	return fmt.Sprintf(`[role=%q]`, role)
}

// locatorHelpers is shared by every generated expression.
// pick keeps exact name matches when there are any and falls back to a
// case-insensitive substring match, then prefers the first visible element.
const locatorHelpers = `
  const norm = (s) => (s || '').replace(/\s+/g, ' ').trim();
  const visible = (el) => {
    if (!el || !el.isConnected) return false;
    const st = window.getComputedStyle(el);
    if (st.visibility === 'hidden' || st.display === 'none') return false;
    const r = el.getBoundingClientRect();
    return r.width > 0 && r.height > 0;
  };
  const accName = (el) => {
    const aria = el.getAttribute('aria-label');
    if (aria) return aria;
    const by = el.getAttribute('aria-labelledby');
    if (by) return by.split(/\s+/).map((id) => { const t = document.getElementById(id); return t ? t.textContent : ''; }).join(' ');
    if (el.tagName === 'INPUT') return el.value || el.getAttribute('title') || '';
    return el.textContent || el.getAttribute('title') || '';
  };
  const pick = (pairs, name) => {
    let list = pairs;
    if (name !== null) {
      const want = norm(name);
      const exact = list.filter((p) => norm(p[1]) === want);
      list = exact.length ? exact : list.filter((p) => norm(p[1]).toLowerCase().includes(want.toLowerCase()));
    }
    const els = list.map((p) => p[0]);
    return els.find(visible) || els[0] || null;
  };
`

func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func jsName(s string) string {
	if s == "" {
		return "null"
	}
	return jsString(s)
}

// findBody returns JS statements that assign the located element (or null) to el.
func findBody(loc param.Locator) string {
	switch loc.Kind {
	case param.LocatorRole:
		return fmt.Sprintf(`
  const el = pick(Array.from(document.querySelectorAll(%s)).map((e) => [e, accName(e)]), %s);`,
			jsString(roleSelector(loc.Role)), jsName(loc.Name))
	case param.LocatorLabel:
		return fmt.Sprintf(`
  const pairs = [];
  for (const l of document.querySelectorAll('label')) {
    const c = l.control || (l.htmlFor ? document.getElementById(l.htmlFor) : null) || l.querySelector('input, textarea, select');
    if (c) pairs.push([c, l.textContent]);
  }
  for (const c of document.querySelectorAll('input[aria-label], textarea[aria-label], select[aria-label]')) {
    pairs.push([c, c.getAttribute('aria-label')]);
  }
  const el = pick(pairs, %s);`, jsName(loc.Name))
	case param.LocatorPlaceholder:
		return fmt.Sprintf(`
  const el = pick(Array.from(document.querySelectorAll('[placeholder]')).map((e) => [e, e.getAttribute('placeholder')]), %s);`,
			jsName(loc.Name))
	default:
		return fmt.Sprintf(`
  const el = pick(Array.from(document.querySelectorAll(%s)).map((e) => [e, '']), null);`,
			jsString(loc.Selector))
	}
}

// elementExpr evaluates to the element loc designates, or null.
func elementExpr(loc param.Locator) string {
	return "(() => {" + locatorHelpers + findBody(loc) + "\n  return el;\n})()"
}

// visibleExpr evaluates to true when loc designates a rendered element.
func visibleExpr(loc param.Locator) string {
	return "(() => {" + locatorHelpers + findBody(loc) + "\n  return visible(el);\n})()"
}
