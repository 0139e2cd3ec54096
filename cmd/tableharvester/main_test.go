package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/LouYuanbo1/tableharvester/internal/config"
	"github.com/LouYuanbo1/tableharvester/internal/domain/entity"
	"github.com/LouYuanbo1/tableharvester/internal/infra/browser"
	"github.com/LouYuanbo1/tableharvester/internal/infra/browser/browsertest"
)

func TestExecuteRejectsInvalidConfig(t *testing.T) {
	t.Chdir(t.TempDir())
	var stdout, stderr bytes.Buffer

	code := execute(t.Context(), []string{"run", "--driver", "firefox"}, &stdout, &stderr)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "browser.driver")
	assert.NoFileExists(t, "product_data.json")
}

func TestExecuteMissingConfigFile(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := execute(t.Context(), []string{"run", "--config", filepath.Join(t.TempDir(), "nope.yaml")}, &stdout, &stderr)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "error reading config file")
}

func TestExecuteUnknownCommand(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.Equal(t, 1, execute(t.Context(), []string{"scrape"}, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "unknown command")
}

func TestLoadConfigFlags(t *testing.T) {
	t.Chdir(t.TempDir())
	root := newRootCmd()
	run, _, err := root.Find([]string{"run"})
	require.NoError(t, err)
	require.NoError(t, run.Flags().Parse([]string{"--output", "out/records.json", "--headless", "--driver", "rod"}))

	cfg, err := loadConfig(config.NewViper(), run.Flags(), "")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(cfg.Output.Path))
	assert.Equal(t, "records.json", filepath.Base(cfg.Output.Path))
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, config.DriverRod, cfg.Browser.Driver)
	assert.Equal(t, "session_state.json", filepath.Base(cfg.Session.Path), "unset flags keep defaults")
}

func TestLoadConfigFileAndFlags(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("app:\n  url: \"http://file.example/\"\nbrowser:\n  driver: rod\n"), 0o600))

	run, _, err := newRootCmd().Find([]string{"run"})
	require.NoError(t, err)
	require.NoError(t, run.Flags().Parse([]string{"--url", "http://flag.example/"}))

	cfg, err := loadConfig(config.NewViper(), run.Flags(), path)
	require.NoError(t, err)
	assert.Equal(t, "http://flag.example/", cfg.App.URL, "flags win over the file")
	assert.Equal(t, config.DriverRod, cfg.Browser.Driver)
}

func TestBuildRunner(t *testing.T) {
	dir := t.TempDir()
	v := config.NewViper()
	v.Set("session.path", filepath.Join(dir, "session_state.json"))
	v.Set("output.path", filepath.Join(dir, "product_data.json"))
	cfg, err := config.NewConfigFromViper(v)
	require.NoError(t, err)

	page := browsertest.NewPage(browsertest.TableDocument([]string{"ID", "Name"}, [][]string{{"1", "Widget"}}, false))
	page.Advance = cfg.Table.Next
	for _, step := range cfg.Navigation.Steps {
		page.SetVisible(step, true)
	}
	fake := &browsertest.Browser{Ctx: &browsertest.Context{Page: page, State: &entity.SessionState{}}}
	factory := func(ctx context.Context) (browser.Browser, error) { return fake, nil }

	r, err := buildRunner(cfg, factory, zaptest.NewLogger(t))
	require.NoError(t, err)
	res, err := r.Run(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Records)

	data, err := os.ReadFile(cfg.Output.Path)
	require.NoError(t, err)
	assert.Equal(t, "[\n    {\n        \"ID\": \"1\",\n        \"Name\": \"Widget\"\n    }\n]", string(data))

	t.Run("WithElasticsearch", func(t *testing.T) {
		v.Set("elasticsearch.enabled", true)
		cfg, err := config.NewConfigFromViper(v)
		require.NoError(t, err)
		_, err = buildRunner(cfg, factory, zaptest.NewLogger(t))
		assert.NoError(t, err, "the client connects lazily")
	})
}
