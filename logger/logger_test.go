package logger

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRedactSensitiveData(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "openai key",
			input:    "key=sk-abcdefghijklmnopqrstuvwxyz0123456789ABCD",
			expected: "key=sk-a...[REDACTED]",
		},
		{
			name:     "bearer token",
			input:    "Authorization: Bearer secret-token-value",
			expected: "Authorization: Bearer [REDACTED]",
		},
		{
			name:     "no sensitive data",
			input:    "plain log line",
			expected: "plain log line",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, RedactSensitiveData(tt.input))
		})
	}
}

func TestSetVerbose(t *testing.T) {
	orig := DefaultLogger
	defer func() { DefaultLogger = orig }()

	SetVerbose(true)
	assert.True(t, DefaultLogger.Enabled(context.Background(), slog.LevelDebug))

	SetVerbose(false)
	assert.False(t, DefaultLogger.Enabled(context.Background(), slog.LevelDebug))
}
