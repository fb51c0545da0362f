package storyboard

import (
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"storyboard-server/modules/common/model"
)

// entry - 보드 하나와 그 뮤텍스
type entry struct {
	mu    sync.Mutex
	board model.Board
}

// Store - 메모리 보드 저장소, 마지막 접근 후 ttl 지나면 만료
type Store struct {
	boards *cache.Cache
}

func NewStore(ttl time.Duration) *Store {
	return &Store{
		boards: cache.New(ttl, 10*time.Minute),
	}
}

func (s *Store) put(e *entry) {
	s.boards.SetDefault(e.board.ID, e)
}

// get - 조회하면서 만료 시간 갱신
func (s *Store) get(id string) (*entry, error) {
	v, ok := s.boards.Get(id)
	if !ok {
		return nil, ErrBoardNotFound
	}
	e := v.(*entry)
	s.boards.SetDefault(id, e)
	return e, nil
}

// Count - 살아 있는 보드 수
func (s *Store) Count() int {
	return s.boards.ItemCount()
}

// snapshot - 씬 슬라이스를 복사한 보드 (e.mu 보유 상태에서 호출)
func (e *entry) snapshot() model.Board {
	b := e.board
	b.Scenes = append([]model.Scene(nil), e.board.Scenes...)
	if e.board.Context != nil {
		pc := *e.board.Context
		b.Context = &pc
	}
	return b
}

func (e *entry) sceneIndex(sceneID string) int {
	for i := range e.board.Scenes {
		if e.board.Scenes[i].ID == sceneID {
			return i
		}
	}
	return -1
}
