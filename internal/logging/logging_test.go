package logging

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_Verbose_DebugLevel(t *testing.T) {
	logger := NewLogger(true)
	require.NotNil(t, logger)

	assert.True(t, logger.Handler().Enabled(context.Background(), slog.LevelDebug))
}

func TestNewLogger_Quiet_WarnLevel(t *testing.T) {
	logger := NewLogger(false)
	require.NotNil(t, logger)

	assert.True(t, logger.Handler().Enabled(context.Background(), slog.LevelWarn))
	assert.False(t, logger.Handler().Enabled(context.Background(), slog.LevelInfo))
}
