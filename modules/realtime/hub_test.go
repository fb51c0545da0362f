package realtime

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storyboard-server/modules/common/model"
)

func dial(t *testing.T, srv *httptest.Server, board, user string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?board=" + board + "&user=" + user
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUntil - 원하는 타입의 이벤트가 올 때까지 읽음
func readUntil(t *testing.T, conn *websocket.Conn, eventType string) Event {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		var ev Event
		require.NoError(t, conn.ReadJSON(&ev))
		if ev.Type == eventType {
			return ev
		}
	}
}

func newServer(t *testing.T) (*Hub, *httptest.Server) {
	hub := NewHub()
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.ServeWS)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return hub, srv
}

func TestHub_BoardUpdated(t *testing.T) {
	hub, srv := newServer(t)
	conn := dial(t, srv, "board-1", "alice")
	readUntil(t, conn, EventUserJoined)

	hub.BoardUpdated(model.Board{
		ID:   "board-1",
		Step: model.StepSequencing,
		Scenes: []model.Scene{{
			ID:         "s1",
			StartImage: model.Image{ID: "a", MIMEType: "image/png", Data: []byte("secret-bytes")},
		}},
	})

	ev := readUntil(t, conn, EventBoardUpdated)
	assert.Equal(t, "board-1", ev.BoardID)
	require.NotNil(t, ev.Board)
	assert.Equal(t, model.StepSequencing, ev.Board.Step)
	require.Len(t, ev.Board.Scenes, 1)
	assert.Equal(t, "a", ev.Board.Scenes[0].StartImage.ID)
	assert.Empty(t, ev.Board.Scenes[0].StartImage.Data)
}

func TestHub_CredentialRequested(t *testing.T) {
	hub, srv := newServer(t)
	conn := dial(t, srv, "board-1", "alice")
	readUntil(t, conn, EventUserJoined)

	hub.CredentialRequested("board-1")

	ev := readUntil(t, conn, EventCredentialRequired)
	assert.Equal(t, "board-1", ev.BoardID)
}

func TestHub_EventsScopedToBoard(t *testing.T) {
	hub, srv := newServer(t)
	other := dial(t, srv, "board-2", "bob")
	readUntil(t, other, EventUserJoined)

	hub.BoardUpdated(model.Board{ID: "board-1"})
	hub.CredentialRequested("board-2")

	// board-1 이벤트 없이 바로 credential 이벤트
	other.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev Event
	require.NoError(t, other.ReadJSON(&ev))
	assert.Equal(t, EventCredentialRequired, ev.Type)
}

func TestHub_Ping(t *testing.T) {
	_, srv := newServer(t)
	conn := dial(t, srv, "board-1", "alice")
	readUntil(t, conn, EventUserJoined)

	require.NoError(t, conn.WriteJSON(Event{Type: "ping"}))
	ev := readUntil(t, conn, EventPong)
	assert.Equal(t, "board-1", ev.BoardID)
}

func TestHub_MissingParams(t *testing.T) {
	_, srv := newServer(t)
	resp, err := http.Get(srv.URL + "/ws?board=b")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHub_CleanupEmptySessions(t *testing.T) {
	hub, srv := newServer(t)
	conn := dial(t, srv, "board-1", "alice")
	readUntil(t, conn, EventUserJoined)
	assert.Equal(t, 1, hub.ClientCount("board-1"))

	conn.Close()
	require.Eventually(t, func() bool { return hub.ClientCount("board-1") == 0 }, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, 1, hub.CleanupEmptySessions())
	m := hub.Snapshot()
	assert.Equal(t, 1, m.TotalSessions)
	assert.Equal(t, 0, m.ActiveSessions)
	assert.Equal(t, 1, m.TotalConnections)
}

func TestHub_ReconnectReplacesClient(t *testing.T) {
	hub, srv := newServer(t)
	first := dial(t, srv, "board-1", "alice")
	readUntil(t, first, EventUserJoined)

	second := dial(t, srv, "board-1", "alice")
	readUntil(t, second, EventUserJoined)
	assert.Equal(t, 1, hub.ClientCount("board-1"))

	hub.CredentialRequested("board-1")
	readUntil(t, second, EventCredentialRequired)
}
