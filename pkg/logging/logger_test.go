package logging

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureOutput struct {
	mu      sync.Mutex
	entries []LogEntry
}

func (c *captureOutput) Write(e LogEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, e)
	return nil
}

func (c *captureOutput) Sync() error  { return nil }
func (c *captureOutput) Close() error { return nil }

func (c *captureOutput) snapshot() []LogEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]LogEntry(nil), c.entries...)
}

func TestLoggerSeverityFiltering(t *testing.T) {
	out := &captureOutput{}
	l := NewLogger(Config{Severity: WARN, Outputs: []Output{out}})

	ctx := context.Background()
	l.Debug(ctx, "dropped")
	l.Info(ctx, "dropped")
	l.Warn(ctx, "kept %d", 1)
	l.Error(ctx, "kept %d", 2)

	entries := out.snapshot()
	require.Len(t, entries, 2)
	assert.Equal(t, "kept 1", entries[0].Message)
	assert.Equal(t, WARN, entries[0].Severity)
	assert.Equal(t, "kept 2", entries[1].Message)
	assert.Equal(t, ERROR, entries[1].Severity)
}

func TestLoggerDefaultFields(t *testing.T) {
	out := &captureOutput{}
	l := NewLogger(Config{
		Severity:      DEBUG,
		Outputs:       []Output{out},
		DefaultFields: map[string]interface{}{"component": "archipelago"},
	})

	l.Info(context.Background(), "hello")

	entries := out.snapshot()
	require.Len(t, entries, 1)
	assert.Equal(t, "archipelago", entries[0].Fields["component"])
	assert.NotEmpty(t, entries[0].File)
	assert.NotZero(t, entries[0].Line)
}

func TestParseSeverity(t *testing.T) {
	assert.Equal(t, DEBUG, ParseSeverity("DEBUG"))
	assert.Equal(t, ERROR, ParseSeverity("ERROR"))
	assert.Equal(t, INFO, ParseSeverity("bogus"))
}

func TestGlobalLogger(t *testing.T) {
	orig := GetLogger()
	defer SetLogger(orig)

	out := &captureOutput{}
	custom := NewLogger(Config{Severity: DEBUG, Outputs: []Output{out}})
	SetLogger(custom)
	assert.Same(t, custom, GetLogger())
}
