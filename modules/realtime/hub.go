package realtime

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"storyboard-server/modules/common/model"
)

// 이벤트 타입
const (
	EventBoardUpdated       = "board_updated"
	EventCredentialRequired = "credential_required"
	EventUserJoined         = "user_joined"
	EventUserLeft           = "user_left"
	EventPong               = "pong"
)

const (
	sendBuffer        = 256
	expiredThreshold  = 24 * time.Hour
	inactiveThreshold = 2 * time.Hour
)

// Event - 클라이언트로 push 되는 메시지
type Event struct {
	Type    string       `json:"type"`
	BoardID string       `json:"boardId"`
	UserID  string       `json:"userId,omitempty"`
	Board   *model.Board `json:"board,omitempty"`
}

// 연결된 클라이언트 정보
type Client struct {
	conn    *websocket.Conn
	boardID string
	userID  string
	send    chan []byte
	once    sync.Once
}

func (c *Client) close() {
	c.once.Do(func() { close(c.send) })
}

// Session - 보드 하나를 보고 있는 클라이언트들
type Session struct {
	id           string
	clients      map[string]*Client
	mutex        sync.RWMutex
	createdAt    time.Time
	lastActivity time.Time
}

// Metrics - 서버 메트릭
type Metrics struct {
	TotalSessions    int       `json:"totalSessions"`
	ActiveSessions   int       `json:"activeSessions"`
	TotalConnections int       `json:"totalConnections"`
	EventsSent       int       `json:"eventsSent"`
	StartTime        time.Time `json:"startTime"`
}

// Hub - 보드별 세션 매니저, storyboard.Notifier 와 credential.Requester 구현
type Hub struct {
	sessions map[string]*Session
	mutex    sync.RWMutex

	metrics      Metrics
	metricsMutex sync.Mutex

	upgrader websocket.Upgrader
}

func NewHub() *Hub {
	return &Hub{
		sessions: make(map[string]*Session),
		metrics:  Metrics{StartTime: time.Now()},
		upgrader: websocket.Upgrader{
			// 개발용 - 모든 origin 허용
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// BoardUpdated - 보드 스냅샷 push
func (h *Hub) BoardUpdated(board model.Board) {
	h.publish(board.ID, Event{Type: EventBoardUpdated, BoardID: board.ID, Board: &board})
}

// CredentialRequested - 키 선택 요청 push
func (h *Hub) CredentialRequested(boardID string) {
	h.publish(boardID, Event{Type: EventCredentialRequired, BoardID: boardID})
}

func (h *Hub) publish(boardID string, event Event) {
	h.mutex.RLock()
	session, ok := h.sessions[boardID]
	h.mutex.RUnlock()
	if !ok {
		return
	}
	sent := session.broadcast(event, "")

	h.metricsMutex.Lock()
	h.metrics.EventsSent += sent
	h.metricsMutex.Unlock()
}

// 세션 가져오기 또는 생성
func (h *Hub) getOrCreateSession(boardID string) *Session {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	session, exists := h.sessions[boardID]
	if !exists {
		now := time.Now()
		session = &Session{
			id:           boardID,
			clients:      make(map[string]*Client),
			createdAt:    now,
			lastActivity: now,
		}
		h.sessions[boardID] = session

		h.metricsMutex.Lock()
		h.metrics.TotalSessions++
		h.metrics.ActiveSessions++
		h.metricsMutex.Unlock()

		log.Printf("✅ [Realtime] Created session for board %s", boardID)
	}

	session.mutex.Lock()
	session.lastActivity = time.Now()
	session.mutex.Unlock()
	return session
}

// ServeWS - /ws?board=..&user=..
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	boardID := r.URL.Query().Get("board")
	userID := r.URL.Query().Get("user")
	if boardID == "" || userID == "" {
		http.Error(w, "missing board or user parameter", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("❌ [Realtime] WebSocket upgrade failed: %v", err)
		return
	}

	client := &Client{
		conn:    conn,
		boardID: boardID,
		userID:  userID,
		send:    make(chan []byte, sendBuffer),
	}
	log.Printf("🔍 [Realtime] New connection - Board: %s, User: %s", boardID, userID)

	session := h.getOrCreateSession(boardID)
	session.addClient(client)

	h.metricsMutex.Lock()
	h.metrics.TotalConnections++
	h.metricsMutex.Unlock()

	go client.writePump()
	go client.readPump(session)
}

// 클라이언트를 세션에 추가 (같은 user 재접속 시 이전 연결 교체)
func (s *Session) addClient(client *Client) {
	s.mutex.Lock()
	if old, exists := s.clients[client.userID]; exists {
		old.close()
	}
	s.clients[client.userID] = client
	s.lastActivity = time.Now()
	count := len(s.clients)
	s.mutex.Unlock()

	log.Printf("👤 [Realtime] User %s joined board %s (Clients: %d)", client.userID, s.id, count)
	s.broadcast(Event{Type: EventUserJoined, BoardID: s.id, UserID: client.userID}, "")
}

// 클라이언트를 세션에서 제거
func (s *Session) removeClient(client *Client) {
	s.mutex.Lock()
	current, exists := s.clients[client.userID]
	if !exists || current != client {
		s.mutex.Unlock()
		return
	}
	delete(s.clients, client.userID)
	s.lastActivity = time.Now()
	remaining := len(s.clients)
	s.mutex.Unlock()

	client.close()
	log.Printf("👋 [Realtime] User %s left board %s (Remaining: %d)", client.userID, s.id, remaining)
	s.broadcast(Event{Type: EventUserLeft, BoardID: s.id, UserID: client.userID}, client.userID)
}

// broadcast - skipUser 를 제외한 모든 클라이언트에게 전송, 버퍼가 찬 클라이언트는 끊음
func (s *Session) broadcast(event Event, skipUser string) int {
	messageBytes, err := json.Marshal(event)
	if err != nil {
		log.Printf("❌ [Realtime] Error marshaling event: %v", err)
		return 0
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	sent := 0
	for userID, client := range s.clients {
		if userID == skipUser {
			continue
		}
		select {
		case client.send <- messageBytes:
			sent++
		default:
			log.Printf("⚠️  [Realtime] Dropping slow client %s on board %s", userID, s.id)
			client.close()
			delete(s.clients, userID)
		}
	}
	return sent
}

func (s *Session) clientCount() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.clients)
}

// 클라이언트로부터 메시지 읽기 (ping 만 처리, 나머지는 무시)
func (c *Client) readPump(session *Session) {
	defer func() {
		session.removeClient(c)
		c.conn.Close()
	}()

	for {
		var message Event
		if err := c.conn.ReadJSON(&message); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("⚠️  [Realtime] WebSocket error: %v", err)
			}
			return
		}

		if message.Type == "ping" {
			pong, _ := json.Marshal(Event{Type: EventPong, BoardID: c.boardID})
			session.mutex.RLock()
			if session.clients[c.userID] == c {
				select {
				case c.send <- pong:
				default:
				}
			}
			session.mutex.RUnlock()
		}
	}
}

// 클라이언트로 메시지 쓰기
func (c *Client) writePump() {
	defer c.conn.Close()

	for message := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			log.Printf("⚠️  [Realtime] WebSocket write error: %v", err)
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// CleanupEmptySessions - 빈 세션 정리
func (h *Hub) CleanupEmptySessions() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	cleaned := 0
	for boardID, session := range h.sessions {
		if session.clientCount() == 0 {
			delete(h.sessions, boardID)
			cleaned++
		}
	}
	h.sessionsRemoved(cleaned)
	if cleaned > 0 {
		log.Printf("🧹 [Realtime] Cleaned up %d empty sessions", cleaned)
	}
	return cleaned
}

// CleanupExpiredSessions - 오래된 세션 정리 (24시간 경과, 또는 2시간 비활성 + 빈 세션)
func (h *Hub) CleanupExpiredSessions() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	now := time.Now()
	cleaned := 0
	for boardID, session := range h.sessions {
		session.mutex.Lock()
		isExpired := now.Sub(session.createdAt) > expiredThreshold
		isInactive := now.Sub(session.lastActivity) > inactiveThreshold && len(session.clients) == 0
		if isExpired || isInactive {
			for userID, client := range session.clients {
				client.close()
				delete(session.clients, userID)
			}
		}
		session.mutex.Unlock()

		if isExpired || isInactive {
			delete(h.sessions, boardID)
			cleaned++
			log.Printf("⏰ [Realtime] Cleaned up session %s (Age: %v)", boardID, now.Sub(session.createdAt))
		}
	}
	h.sessionsRemoved(cleaned)
	return cleaned
}

func (h *Hub) sessionsRemoved(n int) {
	if n == 0 {
		return
	}
	h.metricsMutex.Lock()
	h.metrics.ActiveSessions -= n
	h.metricsMutex.Unlock()
}

// StartCleanupRoutine - 5분마다 빈 세션, 30분마다 만료 세션 정리
func (h *Hub) StartCleanupRoutine(ctx context.Context) {
	go func() {
		empty := time.NewTicker(5 * time.Minute)
		expired := time.NewTicker(30 * time.Minute)
		defer empty.Stop()
		defer expired.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-empty.C:
				h.CleanupEmptySessions()
			case <-expired.C:
				h.CleanupExpiredSessions()
			}
		}
	}()
	log.Printf("🔄 [Realtime] Started session cleanup routines (Empty: 5min, Expired: 30min)")
}

// Snapshot - 현재 메트릭
func (h *Hub) Snapshot() Metrics {
	h.metricsMutex.Lock()
	defer h.metricsMutex.Unlock()
	return h.metrics
}

// ClientCount - 보드를 보고 있는 클라이언트 수
func (h *Hub) ClientCount(boardID string) int {
	h.mutex.RLock()
	session, ok := h.sessions[boardID]
	h.mutex.RUnlock()
	if !ok {
		return 0
	}
	return session.clientCount()
}
