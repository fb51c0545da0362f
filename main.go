package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"google.golang.org/genai"

	"storyboard-server/modules/analysis"
	"storyboard-server/modules/common/cancel"
	"storyboard-server/modules/common/config"
	"storyboard-server/modules/common/database"
	"storyboard-server/modules/common/gemini"
	"storyboard-server/modules/common/lease"
	redisutil "storyboard-server/modules/common/redis"
	"storyboard-server/modules/common/storage"
	"storyboard-server/modules/common/vertexai"
	"storyboard-server/modules/credential"
	"storyboard-server/modules/frames"
	"storyboard-server/modules/gateway"
	"storyboard-server/modules/realtime"
	"storyboard-server/modules/storyboard"
	"storyboard-server/modules/video"
)

type server struct {
	hub     *realtime.Hub
	store   *storyboard.Store
	cancels *cancel.Registry
	started time.Time
}

// CORS 헤더 추가
func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// 헬스 체크 엔드포인트
func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "healthy",
		"service": "storyboard-server",
	})
}

// 서버 메트릭 조회 엔드포인트
func (s *server) getMetrics(w http.ResponseWriter, r *http.Request) {
	metrics := s.hub.Snapshot()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"server": map[string]interface{}{
			"uptime":           time.Since(s.started).String(),
			"startTime":        s.started,
			"totalSessions":    metrics.TotalSessions,
			"activeSessions":   metrics.ActiveSessions,
			"totalConnections": metrics.TotalConnections,
			"eventsSent":       metrics.EventsSent,
		},
		"boards":    s.store.Count(),
		"videoJobs": s.cancels.Running(),
	})
}

// newGenAIClient - Vertex AI 또는 서버 API 키로 기본 클라이언트 생성
func newGenAIClient(ctx context.Context, cfg *config.Config) (*genai.Client, error) {
	if cfg.UseVertexAI {
		return vertexai.NewVertexAIClient(ctx, cfg)
	}
	return gemini.NewClient(ctx, cfg.GeminiAPIKey)
}

// newSink - Supabase 설정이 있으면 Storage 업로드, 아니면 로컬 디스크
// 영상 레코드 조회용 AssetLister 도 같이 반환 (없으면 nil)
func newSink(cfg *config.Config) (video.Sink, storyboard.AssetLister, error) {
	if cfg.SupabaseEnabled() {
		db, err := database.NewClient(cfg)
		if err != nil {
			log.Printf("⚠️  Supabase database unavailable, assets will not be recorded: %v", err)
			return video.NewSupabaseSink(storage.NewClient(cfg), nil), nil, nil
		}
		log.Printf("☁️  Videos will be uploaded to Supabase bucket %s", cfg.SupabaseBucket)
		return video.NewSupabaseSink(storage.NewClient(cfg), db), db, nil
	}

	baseURL := cfg.PublicBaseURL
	if baseURL == "" {
		baseURL = "http://localhost:" + cfg.Port
	}
	log.Printf("💾 Videos will be stored in %s", cfg.MediaDir)
	sink, err := video.NewLocalSink(cfg.MediaDir, baseURL)
	return sink, nil, err
}

func main() {
	// 환경변수 로드
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("❌ Failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := newGenAIClient(ctx, cfg)
	if err != nil {
		log.Fatalf("❌ Failed to create GenAI client: %v", err)
	}
	gw := gateway.NewGenAI(client, gemini.NewClient, cfg.BoardTTL)

	// Redis 가 있으면 lease / 취소 플래그 공유
	var leases lease.Locker = lease.NewMemory()
	cancels := cancel.NewRegistry(nil)
	if cfg.RedisEnabled {
		if rdb := redisutil.Connect(cfg); rdb != nil {
			defer rdb.Close()
			leases = redisutil.NewLease(rdb)
			cancels = cancel.NewRegistry(redisutil.NewCancelFlags(rdb, cfg.LeaseTTL))
			log.Printf("🔒 Scene leases and cancel flags backed by Redis (%s)", cfg.GetRedisAddr())
		} else {
			log.Printf("⚠️  Redis unavailable, falling back to in-memory leases")
		}
	}

	sink, assets, err := newSink(cfg)
	if err != nil {
		log.Fatalf("❌ Failed to prepare video storage: %v", err)
	}

	hub := realtime.NewHub()
	hub.StartCleanupRoutine(ctx)

	store := storyboard.NewStore(cfg.BoardTTL)
	creds := credential.NewStore(cfg.BoardTTL, hub)

	service := storyboard.NewService(storyboard.Deps{
		Store:    store,
		Analysis: analysis.NewService(gw, cfg.AnalysisModel, cfg.TextModel),
		Frames: frames.NewService(gw, frames.Models{
			Standard: cfg.ImageModelStandard,
			Pro:      cfg.ImageModelPro,
		}, cfg.FrameRateLimit),
		Video: video.NewService(gw, cfg.VideoModel,
			video.NewPoller(gw, cfg.VideoPollInterval, cfg.VideoMaxPolls, cancels), sink),
		Credentials: creds,
		Leases:      leases,
		Cancels:     cancels,
		Notifier:    hub,
		Assets:      assets,
		LeaseTTL:    cfg.LeaseTTL,
	})

	srv := &server{hub: hub, store: store, cancels: cancels, started: time.Now()}

	// 라우터 설정
	r := mux.NewRouter()
	r.Use(enableCORS)

	r.HandleFunc("/", healthCheck).Methods("GET")
	r.HandleFunc("/health", healthCheck).Methods("GET")
	r.HandleFunc("/metrics", srv.getMetrics).Methods("GET")
	r.HandleFunc("/ws", hub.ServeWS)
	r.PathPrefix("/media/").Handler(http.StripPrefix("/media/", http.FileServer(http.Dir(cfg.MediaDir))))
	storyboard.NewHandler(service).RegisterRoutes(r)

	httpServer := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		<-ctx.Done()
		log.Printf("🛑 Shutting down...")
		shutdownCtx, cancelFn := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancelFn()
		httpServer.Shutdown(shutdownCtx)
	}()

	log.Printf("🚀 Storyboard Server starting on port %s", cfg.Port)
	log.Printf("📡 WebSocket endpoint: ws://localhost:%s/ws?board=..&user=..", cfg.Port)
	log.Printf("❤️  Health check: http://localhost:%s/health", cfg.Port)
	log.Printf("📊 Metrics: http://localhost:%s/metrics", cfg.Port)

	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Server failed to start: %v", err)
	}
}
