package video

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"storyboard-server/modules/common/model"
	"storyboard-server/modules/common/utils"
)

// Sink - 다운로드한 영상을 재생 가능한 URL 로 만듦
type Sink interface {
	Store(ctx context.Context, boardID, sceneID string, data []byte, mimeType string) (string, error)
}

func fileName(sceneID, mimeType string) string {
	return fmt.Sprintf("%s_%d%s", sceneID, time.Now().UnixNano()/int64(time.Millisecond), utils.ExtensionFor(mimeType))
}

// LocalSink - MEDIA_DIR 에 저장, /media/{file} 로 제공
type LocalSink struct {
	dir     string
	baseURL string
}

func NewLocalSink(dir, baseURL string) (*LocalSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create media dir: %w", err)
	}
	return &LocalSink{dir: dir, baseURL: baseURL}, nil
}

func (s *LocalSink) Store(_ context.Context, boardID, sceneID string, data []byte, mimeType string) (string, error) {
	name := boardID + "_" + fileName(sceneID, mimeType)
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write video file: %w", err)
	}

	log.Printf("💾 [Video] Stored %d bytes at %s", len(data), name)
	return s.baseURL + "/media/" + name, nil
}

// Uploader - Supabase Storage 업로드
type Uploader interface {
	Upload(ctx context.Context, filePath string, data []byte, contentType string) (string, error)
}

// AssetRecorder - 업로드 결과 레코드 저장
type AssetRecorder interface {
	CreateAssetRecord(ctx context.Context, asset model.Asset) (int64, error)
}

// SupabaseSink - Storage 업로드 후 storyboard_assets 레코드 생성
type SupabaseSink struct {
	uploader Uploader
	recorder AssetRecorder
}

// NewSupabaseSink - recorder 는 nil 가능
func NewSupabaseSink(uploader Uploader, recorder AssetRecorder) *SupabaseSink {
	return &SupabaseSink{uploader: uploader, recorder: recorder}
}

func (s *SupabaseSink) Store(ctx context.Context, boardID, sceneID string, data []byte, mimeType string) (string, error) {
	filePath := fmt.Sprintf("storyboards/%s/%s", boardID, fileName(sceneID, mimeType))

	publicURL, err := s.uploader.Upload(ctx, filePath, data, mimeType)
	if err != nil {
		return "", err
	}

	if s.recorder != nil {
		// 레코드 실패는 재생에 영향 없음
		if _, err := s.recorder.CreateAssetRecord(ctx, model.Asset{
			BoardID:   boardID,
			SceneID:   sceneID,
			FilePath:  filePath,
			FileSize:  int64(len(data)),
			FileType:  mimeType,
			PublicURL: publicURL,
		}); err != nil {
			log.Printf("⚠️  [Video] Failed to record asset for %s: %v", filePath, err)
		}
	}
	return publicURL, nil
}
