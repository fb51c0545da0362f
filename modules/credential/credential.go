package credential

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"storyboard-server/modules/common/gemini"
)

var (
	// ErrCredentialRequired - 영상 생성 전에 API 키 선택 필요
	ErrCredentialRequired = errors.New("an API key must be selected before generating video")
	// ErrInvalidKey - 빈 키
	ErrInvalidKey = errors.New("API key is empty")
)

// Provider - 보드별 영상 생성용 자격 증명
type Provider interface {
	HasCredential(boardID string) bool
	// RequestCredential asks the user to pick a key; it does not block for the answer.
	RequestCredential(ctx context.Context, boardID string) error
	Select(boardID, apiKey string) error
	APIKey(boardID string) (string, bool)
}

// Requester - 키 선택 요청을 클라이언트로 전달
type Requester interface {
	CredentialRequested(boardID string)
}

// Store - go-cache 기반 Provider (보드 TTL 과 같이 만료)
type Store struct {
	keys      *cache.Cache
	requester Requester
}

var _ Provider = (*Store)(nil)

func NewStore(ttl time.Duration, requester Requester) *Store {
	return &Store{
		keys:      cache.New(ttl, 10*time.Minute),
		requester: requester,
	}
}

func (s *Store) HasCredential(boardID string) bool {
	_, ok := s.APIKey(boardID)
	return ok
}

func (s *Store) RequestCredential(ctx context.Context, boardID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	log.Printf("🔑 [Credential] Board %s needs an API key for video", boardID)
	if s.requester != nil {
		s.requester.CredentialRequested(boardID)
	}
	return nil
}

func (s *Store) Select(boardID, apiKey string) error {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return ErrInvalidKey
	}
	s.keys.SetDefault(boardID, apiKey)
	log.Printf("✅ [Credential] Board %s selected key %s", boardID, gemini.MaskKey(apiKey))
	return nil
}

func (s *Store) APIKey(boardID string) (string, bool) {
	v, ok := s.keys.Get(boardID)
	if !ok {
		return "", false
	}
	key, ok := v.(string)
	return key, ok && key != ""
}
