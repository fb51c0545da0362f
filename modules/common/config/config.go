package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// 기본값
const (
	DefaultPort              = "8080"
	DefaultAnalysisModel     = "gemini-2.5-flash"
	DefaultTextModel         = "gemini-2.5-flash"
	DefaultImageModelStd     = "gemini-2.5-flash-image"
	DefaultImageModelPro     = "gemini-3-pro-image-preview"
	DefaultVideoModel        = "veo-3.1-generate-preview"
	DefaultVideoPollInterval = 5 * time.Second
	DefaultVideoMaxPolls     = 120
	DefaultFrameCount        = 10
	DefaultBoardTTL          = 2 * time.Hour
	DefaultLeaseTTL          = 15 * time.Minute
	DefaultMediaDir          = "media"
	DefaultSupabaseBucket    = "attachments"
	DefaultVertexLocation    = "us-central1"

	// 폴링이 끝난 뒤 다운로드 + 업로드에 쓰는 여유 시간
	VideoTransferMargin = 2 * time.Minute
)

// Config 구조체 - 모든 환경변수를 담음
type Config struct {
	// Server
	Port          string
	PublicBaseURL string
	MediaDir      string

	// Gemini API
	GeminiAPIKey       string
	AnalysisModel      string
	TextModel          string
	ImageModelStandard string
	ImageModelPro      string
	VideoModel         string

	// Vertex AI
	UseVertexAI           bool
	VertexProject         string
	VertexLocation        string
	VertexCredentialsJSON string
	VertexCredentialsPath string

	// Pipeline
	VideoPollInterval time.Duration
	VideoMaxPolls     int
	FrameRateLimit    time.Duration
	BoardTTL          time.Duration
	LeaseTTL          time.Duration

	// Redis
	RedisEnabled  bool
	RedisHost     string
	RedisPort     string
	RedisUsername string
	RedisPassword string
	RedisUseTLS   bool

	// Supabase
	SupabaseURL            string
	SupabaseServiceKey     string
	SupabaseStorageBaseURL string
	SupabaseBucket         string
}

// LoadConfig - 환경변수 로드
func LoadConfig() (*Config, error) {
	// .env 파일 로드 (있으면)
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  .env file not found, using environment variables")
	}

	cfg := FromEnv()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	log.Println("✅ Configuration loaded successfully")
	log.Printf("   Models: analysis=%s, image=%s/%s, video=%s",
		cfg.AnalysisModel, cfg.ImageModelStandard, cfg.ImageModelPro, cfg.VideoModel)
	log.Printf("   Video polling: every %s, max %d polls", cfg.VideoPollInterval, cfg.VideoMaxPolls)
	if cfg.RedisEnabled {
		log.Printf("   Redis: %s (TLS: %v)", cfg.GetRedisAddr(), cfg.RedisUseTLS)
	} else {
		log.Printf("   Redis: disabled (in-memory leases)")
	}
	if cfg.SupabaseEnabled() {
		log.Printf("   Supabase: %s (bucket: %s)", cfg.SupabaseURL, cfg.SupabaseBucket)
	} else {
		log.Printf("   Media: local directory %s", cfg.MediaDir)
	}

	return cfg, nil
}

// FromEnv - 환경변수만으로 Config 구성 (.env 로드 / 검증 없음)
func FromEnv() *Config {
	return &Config{
		Port:          getEnv("PORT", DefaultPort),
		PublicBaseURL: strings.TrimSuffix(getEnv("PUBLIC_BASE_URL", ""), "/"),
		MediaDir:      getEnv("MEDIA_DIR", DefaultMediaDir),

		GeminiAPIKey:       getEnv("GEMINI_API_KEY", ""),
		AnalysisModel:      getEnv("ANALYSIS_MODEL", DefaultAnalysisModel),
		TextModel:          getEnv("TEXT_MODEL", DefaultTextModel),
		ImageModelStandard: getEnv("IMAGE_MODEL_STANDARD", DefaultImageModelStd),
		ImageModelPro:      getEnv("IMAGE_MODEL_PRO", DefaultImageModelPro),
		VideoModel:         getEnv("VIDEO_MODEL", DefaultVideoModel),

		UseVertexAI:           getBool("USE_VERTEXAI", false),
		VertexProject:         getEnv("GOOGLE_CLOUD_PROJECT", ""),
		VertexLocation:        getEnv("GOOGLE_CLOUD_LOCATION", DefaultVertexLocation),
		VertexCredentialsJSON: getEnv("VERTEXAI_CREDENTIALS_JSON", ""),
		VertexCredentialsPath: getEnv("VERTEXAI_CREDENTIALS_PATH", ""),

		VideoPollInterval: getDuration("VIDEO_POLL_INTERVAL", DefaultVideoPollInterval),
		VideoMaxPolls:     getInt("VIDEO_MAX_POLLS", DefaultVideoMaxPolls),
		FrameRateLimit:    getDuration("FRAME_RATE_LIMIT", 0),
		BoardTTL:          getDuration("BOARD_TTL", DefaultBoardTTL),
		LeaseTTL:          getDuration("LEASE_TTL", DefaultLeaseTTL),

		RedisEnabled:  getBool("REDIS_ENABLED", os.Getenv("REDIS_HOST") != ""),
		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisUsername: getEnv("REDIS_USERNAME", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisUseTLS:   getBool("REDIS_USE_TLS", false),

		SupabaseURL:            strings.TrimSuffix(getEnv("SUPABASE_URL", ""), "/"),
		SupabaseServiceKey:     getEnv("SUPABASE_SERVICE_KEY", ""),
		SupabaseStorageBaseURL: getEnv("SUPABASE_STORAGE_BASE_URL", ""),
		SupabaseBucket:         getEnv("SUPABASE_BUCKET", DefaultSupabaseBucket),
	}
}

// validate - 필수 환경변수 검증
func (c *Config) validate() error {
	if c.UseVertexAI {
		if c.VertexProject == "" {
			return fmt.Errorf("GOOGLE_CLOUD_PROJECT is required when USE_VERTEXAI is set")
		}
	} else if c.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required")
	}
	if c.VideoPollInterval <= 0 {
		return fmt.Errorf("VIDEO_POLL_INTERVAL must be positive")
	}
	if c.VideoMaxPolls <= 0 {
		return fmt.Errorf("VIDEO_MAX_POLLS must be positive")
	}
	// 영상 작업 도중 lease 가 풀리면 같은 씬에 두 번째 작업이 시작될 수 있음
	if budget := c.VideoPollInterval*time.Duration(c.VideoMaxPolls) + VideoTransferMargin; c.LeaseTTL <= budget {
		return fmt.Errorf("LEASE_TTL (%s) must be longer than VIDEO_POLL_INTERVAL x VIDEO_MAX_POLLS plus %s (%s)",
			c.LeaseTTL, VideoTransferMargin, budget)
	}
	if c.SupabaseURL != "" && c.SupabaseServiceKey == "" {
		return fmt.Errorf("SUPABASE_SERVICE_KEY is required when SUPABASE_URL is set")
	}
	return nil
}

// SupabaseEnabled - Supabase Storage 로 영상을 올릴지 여부
func (c *Config) SupabaseEnabled() bool {
	return c.SupabaseURL != "" && c.SupabaseServiceKey != ""
}

// GetRedisAddr - Redis 연결 문자열 생성
func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", c.RedisHost, c.RedisPort)
}

// getEnv - 환경변수 가져오기 (기본값 지원)
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	if s := os.Getenv(key); s != "" {
		if parsed, err := strconv.ParseBool(s); err == nil {
			return parsed
		}
		log.Printf("⚠️  Invalid bool for %s: %q, using %v", key, s, defaultValue)
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if s := os.Getenv(key); s != "" {
		if parsed, err := strconv.Atoi(s); err == nil {
			return parsed
		}
		log.Printf("⚠️  Invalid int for %s: %q, using %d", key, s, defaultValue)
	}
	return defaultValue
}

// getDuration - "5s" 같은 duration 문자열, 숫자만 있으면 초 단위
func getDuration(key string, defaultValue time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(s); err == nil {
		return time.Duration(secs) * time.Second
	}
	log.Printf("⚠️  Invalid duration for %s: %q, using %s", key, s, defaultValue)
	return defaultValue
}
