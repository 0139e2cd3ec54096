package es

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/LouYuanbo1/tableharvester/internal/config"
	"github.com/LouYuanbo1/tableharvester/internal/domain/model"
)

// fakeCluster answers the handful of endpoints the record index uses.
type fakeCluster struct {
	mu          sync.Mutex
	indexExists bool
	created     int
	ids         []string
	docs        []map[string]string
	rejectID    string
}

func (f *fakeCluster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")
	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case strings.HasSuffix(r.URL.Path, "/_bulk"):
		f.bulk(w, r)
	case strings.HasSuffix(r.URL.Path, "/_count"):
		fmt.Fprintf(w, `{"count":%d,"_shards":{"total":1,"successful":1,"skipped":0,"failed":0}}`, len(f.docs))
	case r.Method == http.MethodHead:
		if f.indexExists {
			w.WriteHeader(http.StatusOK)
		} else {
			w.WriteHeader(http.StatusNotFound)
		}
	case r.Method == http.MethodPut:
		f.indexExists = true
		f.created++
		fmt.Fprint(w, `{"acknowledged":true,"shards_acknowledged":true,"index":"records"}`)
	default:
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{}`)
	}
}

func (f *fakeCluster) snapshot() (created int, ids []string, docs []map[string]string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.created, append([]string(nil), f.ids...), append([]map[string]string(nil), f.docs...)
}

func (f *fakeCluster) bulk(w http.ResponseWriter, r *http.Request) {
	var (
		items  []string
		failed bool
	)
	scanner := bufio.NewScanner(r.Body)
	for scanner.Scan() {
		var action map[string]struct {
			ID string `json:"_id"`
		}
		if err := json.Unmarshal(scanner.Bytes(), &action); err != nil {
			continue
		}
		if !scanner.Scan() {
			break
		}
		var doc map[string]string
		_ = json.Unmarshal(scanner.Bytes(), &doc)

		id := action["index"].ID
		if id != "" && id == f.rejectID {
			failed = true
			items = append(items, `{"index":{"_index":"records","status":400,"error":{"type":"mapper_parsing_exception","reason":"bad doc"}}}`)
			continue
		}
		if id == "" {
			id = fmt.Sprintf("auto-%d", len(f.docs))
		}
		f.ids = append(f.ids, id)
		f.docs = append(f.docs, doc)
		items = append(items, fmt.Sprintf(`{"index":{"_index":"records","_id":%q,"status":201,"result":"created"}}`, id))
	}
	fmt.Fprintf(w, `{"took":1,"errors":%t,"items":[%s]}`, failed, strings.Join(items, ","))
}

func newTestIndex(t *testing.T, cluster *fakeCluster, idColumn string) RecordIndex {
	t.Helper()
	srv := httptest.NewServer(cluster)
	t.Cleanup(srv.Close)
	idx, err := InitRecordIndex(config.ElasticsearchConfig{
		Enabled:   true,
		Addresses: []string{srv.URL},
		Index:     "records",
		IDColumn:  idColumn,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	return idx
}

func testRecords(t *testing.T) []model.Record {
	t.Helper()
	schema := model.NewTableSchema([]string{"ID", "Name"})
	var records []model.Record
	for _, cells := range [][]string{{"1", "Widget"}, {"2", "Gadget <b>"}} {
		rec, ok := model.NewRecord(schema, cells)
		require.True(t, ok)
		records = append(records, rec)
	}
	return records
}

func TestEnsureIndex(t *testing.T) {
	cluster := &fakeCluster{}
	idx := newTestIndex(t, cluster, "")
	assert.Equal(t, "records", idx.Index())

	require.NoError(t, idx.EnsureIndex(t.Context()))
	require.NoError(t, idx.EnsureIndex(t.Context()))
	created, _, _ := cluster.snapshot()
	assert.Equal(t, 1, created, "existing index is left alone")
}

func TestBulkIndexRecords(t *testing.T) {
	t.Run("WithIDColumn", func(t *testing.T) {
		cluster := &fakeCluster{indexExists: true}
		idx := newTestIndex(t, cluster, "ID")

		n, err := idx.BulkIndexRecords(t.Context(), testRecords(t))
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		_, ids, docs := cluster.snapshot()
		assert.ElementsMatch(t, []string{"1", "2"}, ids)
		assert.Contains(t, docs, map[string]string{"ID": "2", "Name": "Gadget <b>"})

		count, err := idx.CountDocs(t.Context())
		require.NoError(t, err)
		assert.EqualValues(t, 2, count)
	})

	t.Run("GeneratedIDs", func(t *testing.T) {
		cluster := &fakeCluster{indexExists: true}
		idx := newTestIndex(t, cluster, "")
		n, err := idx.BulkIndexRecords(t.Context(), testRecords(t))
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		_, ids, _ := cluster.snapshot()
		for _, id := range ids {
			assert.True(t, strings.HasPrefix(id, "auto-"))
		}
	})

	t.Run("Empty", func(t *testing.T) {
		idx := newTestIndex(t, &fakeCluster{}, "")
		n, err := idx.BulkIndexRecords(t.Context(), nil)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("RejectedItemFails", func(t *testing.T) {
		cluster := &fakeCluster{indexExists: true, rejectID: "2"}
		idx := newTestIndex(t, cluster, "ID")
		n, err := idx.BulkIndexRecords(t.Context(), testRecords(t))
		require.Error(t, err)
		assert.Equal(t, 1, n)
		assert.ErrorContains(t, err, "bad doc")
	})
}
