package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNewLogger tests the creation of a new JSON logger
func TestNewLogger(t *testing.T) {
	tests := []struct {
		name     string
		logLevel string
	}{
		{
			name:     "default log level (info)",
			logLevel: "",
		},
		{
			name:     "debug log level",
			logLevel: "debug",
		},
		{
			name:     "invalid log level defaults to info",
			logLevel: "invalid",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.logLevel != "" {
				os.Setenv("LOG_LEVEL", tt.logLevel)
				defer os.Unsetenv("LOG_LEVEL")
			}

			logger := NewLogger()

			assert.NotNil(t, logger, "logger should not be nil")
		})
	}
}

// TestNewTextLogger tests the creation of a new text logger
func TestNewTextLogger(t *testing.T) {
	logger := NewTextLogger()
	assert.NotNil(t, logger, "logger should not be nil")
}

// TestWithFields verifies that structured fields appear in the output
func TestWithFields(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))

	logger := WithFields(base, map[string]interface{}{
		"provider": "crawl4ai",
		"tool":     "extract_content",
	})
	logger.Info("tool invoked")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "crawl4ai", entry["provider"])
	assert.Equal(t, "extract_content", entry["tool"])
	assert.Equal(t, "tool invoked", entry["msg"])
}

// TestLoggerContext verifies logger propagation through context
func TestLoggerContext(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	ctx := WithLogger(context.Background(), logger)
	got := FromContext(ctx)
	require.Same(t, logger, got)

	// Without a logger in the context the default is returned
	assert.NotNil(t, FromContext(context.Background()))
}
