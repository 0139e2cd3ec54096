package es

import (
	"context"

	"github.com/LouYuanbo1/tableharvester/internal/domain/model"
)

// RecordIndex 把采集到的记录写入 Elasticsearch 索引
type RecordIndex interface {
	Index() string
	// EnsureIndex creates the index when it does not exist yet.
	EnsureIndex(ctx context.Context) error
	// BulkIndexRecords indexes every record and returns how many were
	// accepted. Any rejected item fails the call.
	BulkIndexRecords(ctx context.Context, records []model.Record) (int, error)
	CountDocs(ctx context.Context) (int64, error)
}
