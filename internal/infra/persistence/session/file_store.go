// Package session persists the authenticated browser state between runs.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"go.uber.org/zap"

	"github.com/LouYuanbo1/tableharvester/internal/domain/entity"
	"github.com/LouYuanbo1/tableharvester/internal/infra/persistence/fileutil"
)

// Store loads and saves a SessionState document.
type Store interface {
	// Load returns nil, nil when no state has been saved yet.
	Load(ctx context.Context) (*entity.SessionState, error)
	Save(ctx context.Context, state *entity.SessionState) error
	Exists() bool
	Path() string
}

type fileStore struct {
	path   string
	logger *zap.Logger
}

func InitFileStore(path string, logger *zap.Logger) Store {
	return &fileStore{path: path, logger: logger.Named("session")}
}

func (s *fileStore) Path() string {
	return s.path
}

func (s *fileStore) Exists() bool {
	info, err := os.Stat(s.path)
	return err == nil && !info.IsDir()
}

func (s *fileStore) Load(ctx context.Context) (*entity.SessionState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.logger.Debug("No saved session found", zap.String("path", s.path))
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session state %s: %w", s.path, err)
	}

	var state entity.SessionState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("decode session state %s: %w", s.path, err)
	}
	s.logger.Debug("Found saved session",
		zap.String("path", s.path),
		zap.Int("cookies", len(state.Cookies)),
		zap.Int("origins", len(state.Origins)),
	)
	return &state, nil
}

func (s *fileStore) Save(ctx context.Context, state *entity.SessionState) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if state == nil {
		return errors.New("refusing to save a nil session state")
	}
	doc := *state
	if doc.Cookies == nil {
		doc.Cookies = []entity.Cookie{}
	}
	if doc.Origins == nil {
		doc.Origins = []entity.OriginState{}
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session state: %w", err)
	}
	// Cookies are credentials; keep the file private.
	if err := fileutil.WriteFileAtomic(s.path, data, 0o600); err != nil {
		return fmt.Errorf("write session state: %w", err)
	}
	s.logger.Debug("Session state written", zap.String("path", s.path), zap.Int("cookies", len(state.Cookies)))
	return nil
}
