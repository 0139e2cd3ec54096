package exporter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/LouYuanbo1/tableharvester/internal/domain/model"
	"github.com/LouYuanbo1/tableharvester/internal/infra/persistence/es"
	"github.com/LouYuanbo1/tableharvester/internal/infra/persistence/fileutil"
)

// Sink 记录集的一个输出目标
type Sink interface {
	Name() string
	Write(ctx context.Context, rs *model.RecordSet) error
}

// EncodeRecords renders rs as a JSON array indented with four spaces. HTML
// characters and non-ASCII text are written as-is. There is no trailing
// newline, so identical input always yields identical bytes.
func EncodeRecords(rs *model.RecordSet) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(rs); err != nil {
		return nil, fmt.Errorf("encode records: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

type fileSink struct {
	path   string
	logger *zap.Logger
}

// NewFileSink writes the JSON document to path, replacing it atomically.
func NewFileSink(path string, logger *zap.Logger) Sink {
	return &fileSink{path: path, logger: logger}
}

func (s *fileSink) Name() string {
	return "file"
}

func (s *fileSink) Write(ctx context.Context, rs *model.RecordSet) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := EncodeRecords(rs)
	if err != nil {
		return err
	}
	if err := fileutil.WriteFileAtomic(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", s.path, err)
	}
	s.logger.Info("Data successfully saved", zap.String("path", s.path), zap.Int("records", rs.Len()))
	return nil
}

type indexSink struct {
	index  es.RecordIndex
	logger *zap.Logger
}

// NewIndexSink bulk-indexes every record into an Elasticsearch index.
func NewIndexSink(index es.RecordIndex, logger *zap.Logger) Sink {
	return &indexSink{index: index, logger: logger}
}

func (s *indexSink) Name() string {
	return "elasticsearch"
}

func (s *indexSink) Write(ctx context.Context, rs *model.RecordSet) error {
	if err := s.index.EnsureIndex(ctx); err != nil {
		return err
	}
	n, err := s.index.BulkIndexRecords(ctx, rs.Records())
	if err != nil {
		return err
	}
	total, err := s.index.CountDocs(ctx)
	if err != nil {
		return err
	}
	s.logger.Info("Records indexed",
		zap.String("index", s.index.Index()),
		zap.Int("indexed", n),
		zap.Int64("documents", total),
	)
	return nil
}
