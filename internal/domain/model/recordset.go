package model

import (
	"bytes"
	"encoding/json"
)

// RecordSet 跨页累积的记录集合,只追加
type RecordSet struct {
	schema  TableSchema
	records []Record
}

func NewRecordSet(schema TableSchema) *RecordSet {
	return &RecordSet{schema: schema, records: make([]Record, 0)}
}

// Append adds rec; records whose length disagrees with the schema, and any
// record against an empty schema, are refused.
func (rs *RecordSet) Append(rec Record) bool {
	if len(rs.schema) == 0 || rec.Len() != len(rs.schema) {
		return false
	}
	rs.records = append(rs.records, rec)
	return true
}

func (rs *RecordSet) Len() int {
	if rs == nil {
		return 0
	}
	return len(rs.records)
}

func (rs *RecordSet) Schema() TableSchema {
	return rs.schema
}

// Records returns a copy of the accumulated records.
func (rs *RecordSet) Records() []Record {
	if rs == nil {
		return nil
	}
	out := make([]Record, len(rs.records))
	copy(out, rs.records)
	return out
}

// MarshalJSON encodes the set as a JSON array; an empty set is "[]".
func (rs *RecordSet) MarshalJSON() ([]byte, error) {
	if rs == nil || rs.records == nil {
		return []byte("[]"), nil
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(rs.records); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Termination 翻页循环结束的原因
type Termination string

const (
	// TerminationExhausted: no enabled next-page control after a read.
	TerminationExhausted Termination = "exhausted"
	// TerminationNoRows: the row wait expired before any data row appeared.
	TerminationNoRows Termination = "no_rows"
)

// Reason is the human-readable form used in logs.
func (t Termination) Reason() string {
	switch t {
	case TerminationExhausted:
		return "no more pages to navigate"
	case TerminationNoRows:
		return "no rows appeared within the row timeout"
	default:
		return string(t)
	}
}
