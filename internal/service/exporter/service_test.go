package exporter

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/LouYuanbo1/tableharvester/internal/domain/entity"
	"github.com/LouYuanbo1/tableharvester/internal/domain/model"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func recordSet(t *testing.T, headers []string, rows ...[]string) *model.RecordSet {
	t.Helper()
	rs := model.NewRecordSet(model.NewTableSchema(headers))
	for _, cells := range rows {
		rec, ok := model.NewRecord(rs.Schema(), cells)
		require.True(t, ok)
		require.True(t, rs.Append(rec))
	}
	return rs
}

func TestEncodeRecords(t *testing.T) {
	rs := recordSet(t, []string{"ID", "Name", "Price"},
		[]string{"1", "Widget", "9.99"},
		[]string{"2", "Gadget <b>&</b>", "¥1,000"},
	)
	data, err := EncodeRecords(rs)
	require.NoError(t, err)
	want := `[
    {
        "ID": "1",
        "Name": "Widget",
        "Price": "9.99"
    },
    {
        "ID": "2",
        "Name": "Gadget <b>&</b>",
        "Price": "¥1,000"
    }
]`
	assert.Equal(t, want, string(data))
}

func TestEncodeRecordsEmpty(t *testing.T) {
	data, err := EncodeRecords(model.NewRecordSet(model.NewTableSchema([]string{"ID"})))
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))
}

func TestExportFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "product_data.json")
	logger := zaptest.NewLogger(t)
	exp := InitExporter(logger, NewFileSink(path, logger))
	rs := recordSet(t, []string{"ID", "Name"}, []string{"1", "Widget"}, []string{"2", "Gadget"})

	require.NoError(t, exp.Export(t.Context(), rs))
	first, err := os.ReadFile(path)
	require.NoError(t, err)

	require.NoError(t, exp.Export(t.Context(), rs))
	second, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, first, second, "export is byte-stable")
	assert.JSONEq(t, `[{"ID":"1","Name":"Widget"},{"ID":"2","Name":"Gadget"}]`, string(first))
}

func TestExportNilRecordSet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	logger := zaptest.NewLogger(t)
	require.NoError(t, InitExporter(logger, NewFileSink(path, logger)).Export(t.Context(), nil))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))
}

type stubIndex struct {
	mu       sync.Mutex
	ensured  int
	indexed  []model.Record
	indexErr error
}

func (s *stubIndex) Index() string                         { return "records" }

func (s *stubIndex) EnsureIndex(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensured++
	return nil
}

func (s *stubIndex) BulkIndexRecords(ctx context.Context, records []model.Record) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.indexErr != nil {
		return 0, s.indexErr
	}
	s.indexed = append(s.indexed, records...)
	return len(records), nil
}

func (s *stubIndex) CountDocs(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.indexed)), nil
}

func TestExportToIndex(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	logger := zaptest.NewLogger(t)
	idx := &stubIndex{}
	exp := InitExporter(logger, NewFileSink(path, logger), NewIndexSink(idx, logger))
	rs := recordSet(t, []string{"ID"}, []string{"1"}, []string{"2"})

	require.NoError(t, exp.Export(t.Context(), rs))
	assert.Equal(t, 1, idx.ensured)
	assert.Len(t, idx.indexed, 2)
	assert.FileExists(t, path)
}

func TestExportFailures(t *testing.T) {
	t.Run("IndexFails", func(t *testing.T) {
		logger := zaptest.NewLogger(t)
		idx := &stubIndex{indexErr: errors.New("cluster unavailable")}
		exp := InitExporter(logger, NewFileSink(filepath.Join(t.TempDir(), "out.json"), logger), NewIndexSink(idx, logger))

		err := exp.Export(t.Context(), recordSet(t, []string{"ID"}, []string{"1"}))
		require.Error(t, err)
		assert.Equal(t, entity.KindStorage, entity.KindOf(err))
		assert.ErrorContains(t, err, "elasticsearch sink")
	})

	t.Run("UnwritablePath", func(t *testing.T) {
		dir := t.TempDir()
		// A directory with children cannot be replaced by a file.
		target := filepath.Join(dir, "out.json")
		require.NoError(t, os.MkdirAll(filepath.Join(target, "child"), 0o755))
		logger := zaptest.NewLogger(t)

		err := InitExporter(logger, NewFileSink(target, logger)).Export(t.Context(), recordSet(t, []string{"ID"}))
		require.Error(t, err)
		assert.Equal(t, entity.KindStorage, entity.KindOf(err))
		assert.Equal(t, "export", entity.OpOf(err))
	})
}
