package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv_Defaults(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "key")
	t.Setenv("REDIS_HOST", "")

	cfg := FromEnv()
	require.NoError(t, cfg.validate())

	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, DefaultImageModelStd, cfg.ImageModelStandard)
	assert.Equal(t, DefaultImageModelPro, cfg.ImageModelPro)
	assert.Equal(t, DefaultVideoModel, cfg.VideoModel)
	assert.Equal(t, 5*time.Second, cfg.VideoPollInterval)
	assert.Equal(t, DefaultVideoMaxPolls, cfg.VideoMaxPolls)
	assert.Equal(t, time.Duration(0), cfg.FrameRateLimit)
	assert.False(t, cfg.RedisEnabled)
	assert.False(t, cfg.SupabaseEnabled())
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "key")
	t.Setenv("VIDEO_POLL_INTERVAL", "2")
	t.Setenv("VIDEO_MAX_POLLS", "7")
	t.Setenv("BOARD_TTL", "30m")
	t.Setenv("REDIS_HOST", "cache.internal")
	t.Setenv("REDIS_PORT", "6380")
	t.Setenv("SUPABASE_URL", "https://proj.supabase.co/")
	t.Setenv("SUPABASE_SERVICE_KEY", "svc")

	cfg := FromEnv()
	require.NoError(t, cfg.validate())

	assert.Equal(t, 2*time.Second, cfg.VideoPollInterval)
	assert.Equal(t, 7, cfg.VideoMaxPolls)
	assert.Equal(t, 30*time.Minute, cfg.BoardTTL)
	assert.True(t, cfg.RedisEnabled)
	assert.Equal(t, "cache.internal:6380", cfg.GetRedisAddr())
	assert.Equal(t, "https://proj.supabase.co", cfg.SupabaseURL)
	assert.True(t, cfg.SupabaseEnabled())
}

func TestFromEnv_InvalidFallsBack(t *testing.T) {
	t.Setenv("VIDEO_MAX_POLLS", "many")
	t.Setenv("USE_VERTEXAI", "maybe")

	cfg := FromEnv()
	assert.Equal(t, DefaultVideoMaxPolls, cfg.VideoMaxPolls)
	assert.False(t, cfg.UseVertexAI)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{GeminiAPIKey: "k", VideoPollInterval: time.Second, VideoMaxPolls: 1, LeaseTTL: time.Hour}
	}

	c := base()
	c.GeminiAPIKey = ""
	assert.Error(t, c.validate())

	c = base()
	c.GeminiAPIKey = ""
	c.UseVertexAI = true
	assert.Error(t, c.validate())
	c.VertexProject = "proj"
	assert.NoError(t, c.validate())

	c = base()
	c.VideoMaxPolls = 0
	assert.Error(t, c.validate())

	c = base()
	c.SupabaseURL = "https://x"
	assert.Error(t, c.validate())
}

func TestValidate_LeaseOutlivesVideoJob(t *testing.T) {
	c := &Config{
		GeminiAPIKey:      "k",
		VideoPollInterval: 5 * time.Second,
		VideoMaxPolls:     120,
		LeaseTTL:          10 * time.Minute,
	}
	// 폴링만으로 10분, 전송 여유 포함 12분
	assert.Error(t, c.validate())

	c.LeaseTTL = 10*time.Minute + VideoTransferMargin
	assert.Error(t, c.validate())

	c.LeaseTTL = DefaultLeaseTTL
	assert.NoError(t, c.validate())
}

func TestFromEnv_ShortLeaseRejected(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "key")
	t.Setenv("LEASE_TTL", "5m")

	cfg := FromEnv()
	assert.ErrorContains(t, cfg.validate(), "LEASE_TTL")
}
