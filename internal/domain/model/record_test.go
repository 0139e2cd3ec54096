package model

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTableSchema(t *testing.T) {
	tests := []struct {
		name    string
		headers []string
		want    TableSchema
	}{
		{"Distinct", []string{"ID", "Name", "Price"}, TableSchema{"ID", "Name", "Price"}},
		{"Duplicate", []string{"ID", "Note", "Note"}, TableSchema{"ID", "Note", "Note_2"}},
		{"DuplicateCollidesWithExisting", []string{"A", "A", "A_2"}, TableSchema{"A", "A_3", "A_2"}},
		{"Empty", nil, TableSchema{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewTableSchema(tt.headers))
		})
	}
}

func TestNewRecord(t *testing.T) {
	schema := NewTableSchema([]string{"ID", "Name", "Price"})

	rec, ok := NewRecord(schema, []string{"1", "Widget", "9.99"})
	require.True(t, ok)
	assert.Equal(t, 3, rec.Len())
	assert.Equal(t, []string{"ID", "Name", "Price"}, rec.Keys())
	assert.Equal(t, []string{"1", "Widget", "9.99"}, rec.Values())
	v, found := rec.Get("Name")
	assert.True(t, found)
	assert.Equal(t, "Widget", v)

	_, ok = NewRecord(schema, []string{"1", "Widget"})
	assert.False(t, ok, "short row must be rejected")
	_, ok = NewRecord(schema, []string{"1", "Widget", "9.99", "extra"})
	assert.False(t, ok, "long row must be rejected")
}

func TestNewRecordEmptySchema(t *testing.T) {
	schema := NewTableSchema(nil)
	_, ok := NewRecord(schema, []string{})
	assert.False(t, ok, "a row with no cells is not a record when the header is empty")
	_, ok = NewRecord(schema, nil)
	assert.False(t, ok)

	set := NewRecordSet(schema)
	assert.False(t, set.Append(Record{}))
	assert.Zero(t, set.Len())
}

func TestRecordMarshalJSONKeepsOrderAndText(t *testing.T) {
	schema := NewTableSchema([]string{"Zeta", "Alpha", "名称"})
	rec, ok := NewRecord(schema, []string{"<b>&", "", "产品 \"A\""})
	require.True(t, ok)

	out, err := rec.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `{"Zeta":"<b>&","Alpha":"","名称":"产品 \"A\""}`, string(out))

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	require.NoError(t, enc.Encode([]Record{rec}))
	assert.Equal(t, `[{"Zeta":"<b>&","Alpha":"","名称":"产品 \"A\""}]`+"\n", buf.String())
}

func TestRecordSet(t *testing.T) {
	schema := NewTableSchema([]string{"ID", "Name"})
	set := NewRecordSet(schema)

	out, err := json.Marshal(set)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(out))

	r1, _ := NewRecord(schema, []string{"1", "a"})
	r2, _ := NewRecord(schema, []string{"2", "b"})
	assert.True(t, set.Append(r1))
	assert.True(t, set.Append(r2))

	other, _ := NewRecord(NewTableSchema([]string{"X"}), []string{"x"})
	assert.False(t, set.Append(other))
	assert.Equal(t, 2, set.Len())

	out, err = json.Marshal(set)
	require.NoError(t, err)
	assert.Equal(t, `[{"ID":"1","Name":"a"},{"ID":"2","Name":"b"}]`, string(out))

	// Records returns a copy.
	recs := set.Records()
	recs[0] = r2
	first, _ := set.Records()[0].Get("ID")
	assert.Equal(t, "1", first)
}
