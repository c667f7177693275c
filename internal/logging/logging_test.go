package logging

import "testing"

import "github.com/stretchr/testify/assert"
import "github.com/stretchr/testify/require"

func TestNew_DefaultsToInfoLevelWhenUnspecified(t *testing.T) {
	t.Parallel()
	logger, err := New(Config{OutputPaths: []string{"stdout"}})
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(0)) // InfoLevel == 0

	sugared := logger.Sugar()
	assert.NotNil(t, sugared)
}

func TestParseLevel_RecognizesEachNamedLevel(t *testing.T) {
	t.Parallel()
	assert.Equal(t, int8(-1), int8(parseLevel(LevelDebug)))
	assert.Equal(t, int8(0), int8(parseLevel(LevelInfo)))
	assert.Equal(t, int8(1), int8(parseLevel(LevelWarn)))
	assert.Equal(t, int8(2), int8(parseLevel(LevelError)))
	assert.Equal(t, int8(0), int8(parseLevel("unrecognized")))
}

func TestNewNop_NeverLogs(t *testing.T) {
	t.Parallel()
	logger := NewNop()
	assert.NotNil(t, logger)
}
