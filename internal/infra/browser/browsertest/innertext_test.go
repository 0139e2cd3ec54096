package browsertest

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInnerText(t *testing.T) {
	tests := []struct {
		name string
		html string
		want string
	}{
		{"Plain", `9.99`, "9.99"},
		{"CollapsesWhitespace", "  Unit\n   Price ", "Unit Price"},
		{"InlineElements", `Caf&eacute;  <b>Deluxe</b>`, "Café Deluxe"},
		{"LineBreak", `Line1<br>Line2`, "Line1\nLine2"},
		{"BlockChildren", `<div>Top</div><p>Bottom</p>`, "Top\nBottom"},
		{"DisplayNone", `9.99<span style="display: none">internal-sku-123</span>`, "9.99"},
		{"HiddenAttribute", `ok<span hidden>secret</span>`, "ok"},
		{"ScriptIgnored", `a<script>var x = 1;</script>b`, "ab"},
		{"Empty", ``, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := goquery.NewDocumentFromReader(strings.NewReader(
				`<table><tbody><tr><td id="c">` + tt.html + `</td></tr></tbody></table>`))
			require.NoError(t, err)
			assert.Equal(t, tt.want, InnerText(doc.Find("#c")))
		})
	}
}
