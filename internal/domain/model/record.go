package model

import (
	"bytes"
	"encoding/json"
	"strconv"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// TableSchema 表头推断出的列名,顺序即表头顺序
type TableSchema []string

// NewTableSchema builds a schema from raw header texts. Repeated names get a
// "_<n>" suffix so every column stays addressable and a record always holds
// exactly len(schema) keys.
func NewTableSchema(headers []string) TableSchema {
	schema := make(TableSchema, 0, len(headers))
	seen := make(map[string]int, len(headers))
	taken := make(map[string]bool, len(headers))
	for _, h := range headers {
		taken[h] = true
	}
	for _, h := range headers {
		seen[h]++
		name := h
		if seen[h] > 1 {
			n := seen[h]
			for {
				name = h + "_" + strconv.Itoa(n)
				if !taken[name] {
					break
				}
				n++
			}
			taken[name] = true
		}
		schema = append(schema, name)
	}
	return schema
}

func (s TableSchema) Len() int {
	return len(s)
}

// Record maps column name to raw cell text in schema order.
// It has no mutators; a Record is fixed once NewRecord returns.
type Record struct {
	fields *orderedmap.OrderedMap[string, string]
}

// NewRecord pairs cells with schema columns. ok is false when the arity
// differs or the schema has no columns.
func NewRecord(schema TableSchema, cells []string) (rec Record, ok bool) {
	if len(schema) == 0 || len(cells) != len(schema) {
		return Record{}, false
	}
	fields := orderedmap.New[string, string]()
	for i, col := range schema {
		fields.Set(col, cells[i])
	}
	return Record{fields: fields}, true
}

func (r Record) Len() int {
	if r.fields == nil {
		return 0
	}
	return r.fields.Len()
}

func (r Record) Get(column string) (string, bool) {
	if r.fields == nil {
		return "", false
	}
	return r.fields.Get(column)
}

// Keys returns the column names in schema order.
func (r Record) Keys() []string {
	keys := make([]string, 0, r.Len())
	if r.fields == nil {
		return keys
	}
	for pair := r.fields.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}

// Values returns the cell texts in schema order.
func (r Record) Values() []string {
	values := make([]string, 0, r.Len())
	if r.fields == nil {
		return values
	}
	for pair := r.fields.Oldest(); pair != nil; pair = pair.Next() {
		values = append(values, pair.Value)
	}
	return values
}

// MarshalJSON writes the record as an object with keys in schema order.
// HTML characters and non-ASCII text are written verbatim.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	if r.fields != nil {
		first := true
		for pair := r.fields.Oldest(); pair != nil; pair = pair.Next() {
			if !first {
				buf.WriteByte(',')
			}
			first = false
			if err := writeString(&buf, pair.Key); err != nil {
				return nil, err
			}
			buf.WriteByte(':')
			if err := writeString(&buf, pair.Value); err != nil {
				return nil, err
			}
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeString(buf *bytes.Buffer, s string) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return err
	}
	buf.Write(bytes.TrimRight(tmp.Bytes(), "\n"))
	return nil
}
