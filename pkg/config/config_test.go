package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ow97/archi/pkg/logging"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	p, err := cfg.MigrationPolicy()
	require.NoError(t, err)
	assert.Equal(t, "champion", p.Select.Name())
	assert.Equal(t, "append", p.Merge.Name())
	assert.Equal(t, logging.INFO, cfg.Severity())
}

func TestLoadReader(t *testing.T) {
	doc := `
concurrency:
  batch_goroutines: 8
migration:
  select: topk
  k: 3
  merge: replace_worst
logging:
  level: DEBUG
storage:
  trace_path: /tmp/trace.db
`
	cfg, err := LoadReader(strings.NewReader(doc))
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.Concurrency.BatchGoroutines)
	assert.Equal(t, logging.DEBUG, cfg.Severity())
	assert.Equal(t, "/tmp/trace.db", cfg.Storage.TracePath)

	p, err := cfg.MigrationPolicy()
	require.NoError(t, err)
	assert.Equal(t, "top_k", p.Select.Name())
	assert.Equal(t, "replace_worst", p.Merge.Name())
}

func TestLoadReaderEmptyUsesDefaults(t *testing.T) {
	cfg, err := LoadReader(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadReaderRejectsUnknownKeys(t *testing.T) {
	_, err := LoadReader(strings.NewReader("bogus: 1\n"))
	require.Error(t, err)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := Default()
	cfg.Migration.Select = "roulette"
	require.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Concurrency.BatchGoroutines = -1
	require.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Logging.Level = "LOUD"
	require.Error(t, cfg.Validate())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/archi.yaml")
	require.Error(t, err)
}
