package browsertest

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var blockElements = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true,
	"div": true, "dl": true, "dt": true, "dd": true, "fieldset": true,
	"footer": true, "form": true, "h1": true, "h2": true, "h3": true,
	"h4": true, "h5": true, "h6": true, "header": true, "hr": true,
	"li": true, "main": true, "nav": true, "ol": true, "p": true,
	"pre": true, "section": true, "table": true, "tr": true, "ul": true,
}

var skippedElements = map[string]bool{
	"script": true, "style": true, "template": true, "head": true,
}

func hidden(s *goquery.Selection) bool {
	if _, ok := s.Attr("hidden"); ok {
		return true
	}
	style, _ := s.Attr("style")
	style = strings.ToLower(strings.Join(strings.Fields(style), ""))
	return strings.Contains(style, "display:none")
}

// InnerText approximates HTMLElement.innerText for static markup: whitespace
// runs collapse to one space, <br> and block boundaries start a new line,
// and elements hidden with display:none or the hidden attribute contribute
// nothing.
func InnerText(s *goquery.Selection) string {
	var (
		lines []string
		cur   strings.Builder
	)
	flush := func() {
		if line := strings.Join(strings.Fields(cur.String()), " "); line != "" {
			lines = append(lines, line)
		}
		cur.Reset()
	}

	var walk func(*goquery.Selection)
	walk = func(sel *goquery.Selection) {
		sel.Contents().Each(func(_ int, c *goquery.Selection) {
			name := goquery.NodeName(c)
			switch {
			case name == "#text":
				cur.WriteString(c.Text())
			case strings.HasPrefix(name, "#"), skippedElements[name], hidden(c):
			case name == "br":
				flush()
			case blockElements[name]:
				flush()
				walk(c)
				flush()
			default:
				if name == "td" || name == "th" {
					cur.WriteByte(' ')
				}
				walk(c)
			}
		})
	}
	walk(s)
	flush()
	return strings.Join(lines, "\n")
}
