package es

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/elastic/go-elasticsearch/v9/esutil"
	"go.uber.org/zap"

	"github.com/LouYuanbo1/tableharvester/internal/config"
	"github.com/LouYuanbo1/tableharvester/internal/domain/model"
)

type typedRecordIndex struct {
	client   *elasticsearch.TypedClient
	index    string
	idColumn string
	logger   *zap.Logger
}

func InitRecordIndex(cfg config.ElasticsearchConfig, logger *zap.Logger) (RecordIndex, error) {
	typedClient, err := elasticsearch.NewTypedClient(elasticsearch.Config{
		Username:  cfg.Username,
		Password:  cfg.Password,
		Addresses: cfg.Addresses,
		Transport: &http.Transport{
			MaxIdleConnsPerHost:   10,
			ResponseHeaderTimeout: 30 * time.Second,
			IdleConnTimeout:       90 * time.Second,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Elasticsearch client: %w", err)
	}
	return &typedRecordIndex{
		client:   typedClient,
		index:    cfg.Index,
		idColumn: cfg.IDColumn,
		logger:   logger.Named("es"),
	}, nil
}

func (ri *typedRecordIndex) Index() string {
	return ri.index
}

func (ri *typedRecordIndex) EnsureIndex(ctx context.Context) error {
	// 检查索引是否已存在
	exists, err := ri.client.Indices.Exists(ri.index).Do(ctx)
	if err != nil {
		return fmt.Errorf("failed to check index existence in es: %w", err)
	}
	if exists {
		ri.logger.Debug("Index already exists, skip create", zap.String("index", ri.index))
		return nil
	}
	// Cell values are raw strings; dynamic mapping gives them text + keyword.
	if _, err := ri.client.Indices.Create(ri.index).Do(ctx); err != nil {
		return fmt.Errorf("failed to create index in es: %w", err)
	}
	ri.logger.Info("Index created", zap.String("index", ri.index))
	return nil
}

func (ri *typedRecordIndex) BulkIndexRecords(ctx context.Context, records []model.Record) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	var (
		mu       sync.Mutex
		failures []error
	)
	fail := func(err error) {
		mu.Lock()
		failures = append(failures, err)
		mu.Unlock()
	}

	bi, err := esutil.NewBulkIndexer(esutil.BulkIndexerConfig{
		Index:         ri.index,  // 目标索引名称
		Client:        ri.client, // Elasticsearch 客户端
		NumWorkers:    2,
		FlushBytes:    5 * 1024 * 1024,
		FlushInterval: 30 * time.Second,
		// Count after the export must see every document.
		Refresh: "wait_for",
		OnError: func(ctx context.Context, err error) {
			fail(fmt.Errorf("bulk indexer: %w", err))
		},
	})
	if err != nil {
		return 0, fmt.Errorf("error creating bulk indexer: %w", err)
	}

	for i, rec := range records {
		data, err := rec.MarshalJSON()
		if err != nil {
			bi.Close(ctx)
			return 0, fmt.Errorf("marshal record %d: %w", i, err)
		}
		item := esutil.BulkIndexerItem{
			Action: "index",
			Body:   bytes.NewReader(data),
			OnFailure: func(ctx context.Context, item esutil.BulkIndexerItem, res esutil.BulkIndexerResponseItem, err error) {
				if err == nil {
					err = fmt.Errorf("%s: %s", res.Error.Type, res.Error.Reason)
				}
				fail(fmt.Errorf("record %d: %w", i, err))
			},
		}
		if ri.idColumn != "" {
			if id, ok := rec.Get(ri.idColumn); ok && id != "" {
				item.DocumentID = id
			}
		}
		if err := bi.Add(ctx, item); err != nil {
			bi.Close(ctx)
			return 0, fmt.Errorf("queue record %d: %w", i, err)
		}
	}

	// 刷新并关闭批量索引器,确保所有文档都被处理
	if err := bi.Close(ctx); err != nil {
		return 0, fmt.Errorf("error closing bulk indexer: %w", err)
	}

	stats := bi.Stats()
	ri.logger.Info("Bulk indexing completed",
		zap.String("index", ri.index),
		zap.Uint64("indexed", stats.NumIndexed),
		zap.Uint64("failed", stats.NumFailed),
	)
	if len(failures) > 0 {
		return int(stats.NumIndexed), fmt.Errorf("%d of %d records were not indexed: %w", len(failures), len(records), errors.Join(failures...))
	}
	return int(stats.NumIndexed), nil
}

func (ri *typedRecordIndex) CountDocs(ctx context.Context) (int64, error) {
	resp, err := ri.client.Count().Index(ri.index).Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count docs in es: %w", err)
	}
	return resp.Count, nil
}
