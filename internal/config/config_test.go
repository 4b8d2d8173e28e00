package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_ServerTimeouts(t *testing.T) {
	t.Setenv("ENV", "development")
	t.Setenv("SERVER_READ_TIMEOUT", "45s")
	t.Setenv("SERVER_WRITE_TIMEOUT", "3m")
	t.Setenv("AI_TIMEOUT", "90s")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 45*time.Second, cfg.ReadTimeout)
	assert.Equal(t, 3*time.Minute, cfg.WriteTimeout)
}

func TestLoad_DefaultWriteTimeoutOutlastsAI(t *testing.T) {
	t.Setenv("ENV", "development")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Greater(t, cfg.WriteTimeout, cfg.AI.Timeout)
	assert.Positive(t, cfg.ReadTimeout)
}

func TestLoad_WriteTimeoutMustExceedAITimeout(t *testing.T) {
	t.Setenv("ENV", "development")
	t.Setenv("AI_TIMEOUT", "2m")

	t.Setenv("SERVER_WRITE_TIMEOUT", "2m")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SERVER_WRITE_TIMEOUT")

	// Zero disables the write timeout entirely.
	t.Setenv("SERVER_WRITE_TIMEOUT", "0s")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Zero(t, cfg.WriteTimeout)
}
