package credential

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingRequester struct{ boards []string }

func (r *recordingRequester) CredentialRequested(boardID string) {
	r.boards = append(r.boards, boardID)
}

func TestStore_SelectAndLookup(t *testing.T) {
	s := NewStore(time.Hour, nil)
	assert.False(t, s.HasCredential("b1"))

	require.NoError(t, s.Select("b1", "  AIzaKEY123456  "))
	assert.True(t, s.HasCredential("b1"))

	key, ok := s.APIKey("b1")
	assert.True(t, ok)
	assert.Equal(t, "AIzaKEY123456", key)

	assert.False(t, s.HasCredential("b2"))
}

func TestStore_SelectEmpty(t *testing.T) {
	s := NewStore(time.Hour, nil)
	assert.ErrorIs(t, s.Select("b1", "   "), ErrInvalidKey)
	assert.False(t, s.HasCredential("b1"))
}

func TestStore_Expires(t *testing.T) {
	s := NewStore(20*time.Millisecond, nil)
	require.NoError(t, s.Select("b1", "key"))
	time.Sleep(40 * time.Millisecond)
	assert.False(t, s.HasCredential("b1"))
}

func TestStore_RequestCredential(t *testing.T) {
	req := &recordingRequester{}
	s := NewStore(time.Hour, req)

	require.NoError(t, s.RequestCredential(context.Background(), "b1"))
	assert.Equal(t, []string{"b1"}, req.boards)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, s.RequestCredential(ctx, "b2"))
	assert.Len(t, req.boards, 1)
}
