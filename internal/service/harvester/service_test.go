package harvester

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/LouYuanbo1/tableharvester/internal/domain/entity"
	"github.com/LouYuanbo1/tableharvester/internal/domain/model"
	"github.com/LouYuanbo1/tableharvester/internal/infra/browser/browsertest"
	"github.com/LouYuanbo1/tableharvester/param"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var next = param.CSS("button.next-page:not([disabled])")

func testOptions() Options {
	return Options{
		Table: param.Table{
			Headers: "table.product-table thead th",
			Rows:    "table.product-table tbody tr",
			Cells:   "td",
			Next:    next,
		},
		RowTimeout:        time.Minute,
		ProbeTimeout:      time.Second,
		QuiescenceTimeout: time.Second,
	}
}

func pagedTable(docs ...string) *browsertest.Page {
	page := browsertest.NewPage(docs...)
	page.Advance = next
	return page
}

func harvest(t *testing.T, page *browsertest.Page) (*model.RecordSet, model.Termination, error) {
	t.Helper()
	return InitHarvester(testOptions(), zaptest.NewLogger(t)).Harvest(t.Context(), page)
}

func values(rs *model.RecordSet) [][]string {
	var out [][]string
	for _, rec := range rs.Records() {
		out = append(out, rec.Values())
	}
	return out
}

func TestHarvestAcrossPages(t *testing.T) {
	headers := []string{"ID", "Name", "Price"}
	page := pagedTable(
		browsertest.TableDocument(headers, [][]string{{"1", "Widget", "9.99"}, {"2", "Gadget", "19.50"}}, true),
		browsertest.TableDocument(headers, [][]string{{"3", "Gizmo", "4.00"}}, false),
	)

	rs, term, err := harvest(t, page)
	require.NoError(t, err)
	assert.Equal(t, model.TerminationExhausted, term)
	assert.Equal(t, model.TableSchema(headers), rs.Schema())
	assert.Equal(t, [][]string{
		{"1", "Widget", "9.99"},
		{"2", "Gadget", "19.50"},
		{"3", "Gizmo", "4.00"},
	}, values(rs))
	assert.Equal(t, []param.Locator{next}, page.Clicks)
	assert.Equal(t, 1, page.Idles)

	data, err := rs.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `[
		{"ID":"1","Name":"Widget","Price":"9.99"},
		{"ID":"2","Name":"Gadget","Price":"19.50"},
		{"ID":"3","Name":"Gizmo","Price":"4.00"}
	]`, string(data))
}

func TestHarvestDropsMismatchedRows(t *testing.T) {
	headers := []string{"ID", "Name", "Price"}
	page := pagedTable(browsertest.TableDocument(headers, [][]string{
		{"1", "Widget", "9.99"},
		{"2", "Gadget"},
		{"3", "Gizmo", "4.00", "extra"},
		{"4", "Doohickey", "1.00"},
	}, false))

	rs, term, err := harvest(t, page)
	require.NoError(t, err)
	assert.Equal(t, model.TerminationExhausted, term)
	assert.Equal(t, [][]string{{"1", "Widget", "9.99"}, {"4", "Doohickey", "1.00"}}, values(rs))
}

func TestHarvestStopsWhenRowsNeverAppear(t *testing.T) {
	headers := []string{"ID", "Name"}
	page := pagedTable(
		browsertest.TableDocument(headers, [][]string{{"1", "Widget"}, {"2", "Gadget"}}, true),
		browsertest.TableDocument(headers, nil, true),
	)

	rs, term, err := harvest(t, page)
	require.NoError(t, err)
	assert.Equal(t, model.TerminationNoRows, term)
	assert.Equal(t, 2, rs.Len(), "rows from earlier pages are kept")
}

func TestHarvestEmptyTable(t *testing.T) {
	page := pagedTable(browsertest.TableDocument([]string{"ID"}, nil, false))
	rs, term, err := harvest(t, page)
	require.NoError(t, err)
	assert.Equal(t, model.TerminationNoRows, term)
	assert.Zero(t, rs.Len())

	data, err := rs.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))
}

func TestHarvestHeaderText(t *testing.T) {
	doc := `<html><body><table class="product-table">
<thead><tr><th>  Unit
   Price </th><th>Name</th><th>Name</th></tr></thead>
<tbody><tr><td> 1.00 </td><td>Caf&eacute;  <b>Deluxe</b></td><td>Ünïcode</td></tr></tbody>
</table></body></html>`

	rs, _, err := harvest(t, pagedTable(doc))
	require.NoError(t, err)
	assert.Equal(t, model.TableSchema{"Unit Price", "Name", "Name_2"}, rs.Schema())
	require.Equal(t, 1, rs.Len())
	rec := rs.Records()[0]
	name, _ := rec.Get("Name")
	assert.Equal(t, "Café Deluxe", name)
	other, _ := rec.Get("Name_2")
	assert.Equal(t, "Ünïcode", other)
}

func TestHarvestKeepsRenderedCellText(t *testing.T) {
	doc := `<html><body><table class="product-table">
<thead><tr><th>Description</th><th>Price</th></tr></thead>
<tbody><tr><td>Line1<br>Line2</td><td>9.99<span style="display:none">internal-sku-123</span></td></tr></tbody>
</table></body></html>`

	rs, _, err := harvest(t, pagedTable(doc))
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"Line1\nLine2", "9.99"}}, values(rs))

	data, err := rs.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `[{"Description":"Line1\nLine2","Price":"9.99"}]`, string(data))
}

func TestHarvestWithoutHeaderDropsEveryRow(t *testing.T) {
	doc := `<html><body><table class="product-table">
<thead><tr></tr></thead>
<tbody><tr></tr><tr><td>1</td></tr></tbody>
</table></body></html>`

	rs, term, err := harvest(t, pagedTable(doc))
	require.NoError(t, err)
	assert.Equal(t, model.TerminationExhausted, term)
	assert.Zero(t, rs.Schema().Len())
	assert.Zero(t, rs.Len(), "an empty row is not accepted against an empty header")
}

func TestHarvestSchemaIsReadOnce(t *testing.T) {
	page := pagedTable(
		browsertest.TableDocument([]string{"A", "B"}, [][]string{{"1", "2"}}, true),
		browsertest.TableDocument([]string{"X", "Y", "Z"}, [][]string{{"3", "4"}, {"5", "6", "7"}}, false),
	)
	rs, _, err := harvest(t, page)
	require.NoError(t, err)
	assert.Equal(t, model.TableSchema{"A", "B"}, rs.Schema())
	assert.Equal(t, [][]string{{"1", "2"}, {"3", "4"}}, values(rs))
}

func TestHarvestFailures(t *testing.T) {
	doc := browsertest.TableDocument([]string{"ID"}, [][]string{{"1"}}, true)

	t.Run("HeaderReadFails", func(t *testing.T) {
		page := pagedTable(doc)
		page.Errors["texts"] = errors.New("target closed")
		rs, _, err := harvest(t, page)
		assert.Nil(t, rs)
		assert.Equal(t, entity.KindNavigation, entity.KindOf(err))
		assert.Equal(t, "read table header", entity.OpOf(err))
	})

	t.Run("RowReadFails", func(t *testing.T) {
		page := pagedTable(doc)
		page.Errors["rows"] = errors.New("execution context was destroyed")
		rs, _, err := harvest(t, page)
		assert.Nil(t, rs)
		assert.Equal(t, "read table rows", entity.OpOf(err))
	})

	t.Run("NextProbeIndeterminate", func(t *testing.T) {
		page := pagedTable(doc)
		page.Errors["probe:"+next.String()] = errors.New("execution context was destroyed")
		rs, _, err := harvest(t, page)
		assert.Nil(t, rs, "no partial result on failure")
		assert.Equal(t, "probe next page", entity.OpOf(err))
	})

	t.Run("ClickFails", func(t *testing.T) {
		page := pagedTable(doc, doc)
		page.Errors["click"] = errors.New("node detached")
		_, _, err := harvest(t, page)
		assert.Equal(t, "next page", entity.OpOf(err))
	})

	t.Run("QuiescenceTimeout", func(t *testing.T) {
		page := pagedTable(doc, doc)
		page.Errors["idle"] = context.DeadlineExceeded
		_, _, err := harvest(t, page)
		assert.Equal(t, entity.KindTimeout, entity.KindOf(err))
	})

	t.Run("CancelledIsNotNoRows", func(t *testing.T) {
		page := pagedTable(browsertest.TableDocument([]string{"ID"}, nil, false))
		ctx, cancel := context.WithCancel(t.Context())
		cancel()
		rs, _, err := InitHarvester(testOptions(), zaptest.NewLogger(t)).Harvest(ctx, page)
		require.Error(t, err)
		assert.Nil(t, rs)
		assert.Equal(t, "wait for rows", entity.OpOf(err))
	})
}
