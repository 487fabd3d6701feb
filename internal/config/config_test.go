package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 750, cfg.VisionThreshold)
	assert.Equal(t, 3*time.Second, cfg.PollInterval)
	assert.Equal(t, []string{"en", "hi"}, cfg.CaptionLanguages)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("GEMINI_API_KEY", "k")
	t.Setenv("VISION_THRESHOLD", "100")
	t.Setenv("ASSET_POLL_INTERVAL", "500ms")
	t.Setenv("CAPTION_LANGUAGES", "de, en ,")
	t.Setenv("PREREQUISITE_CHECK", "STRICT")
	t.Setenv("CONCURRENT_EXTRACTION", "false")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, "k", cfg.GeminiAPIKey)
	assert.Equal(t, 100, cfg.VisionThreshold)
	assert.Equal(t, 500*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, []string{"de", "en"}, cfg.CaptionLanguages)
	assert.Equal(t, CheckStrict, cfg.PrerequisiteCheck)
	assert.False(t, cfg.ConcurrentExtraction)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxPollAttempts = 0
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.PrerequisiteCheck = "sometimes"
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.VisionThreshold = -1
	assert.Error(t, cfg.Validate())
}
