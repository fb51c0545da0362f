package storyboard

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storyboard-server/modules/common/model"
	"storyboard-server/modules/gateway"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0, 0}

func newRouter(h *harness) *mux.Router {
	r := mux.NewRouter()
	NewHandler(h.svc).RegisterRoutes(r)
	return r
}

func do(t *testing.T, r http.Handler, method, path string, body any) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	var resp Response
	if rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec, resp
}

func dataURL(data []byte) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(data)
}

func TestHandler_CreateBoardRunsPipeline(t *testing.T) {
	h := newHarness(t, 5)
	r := newRouter(h)

	rec, resp := do(t, r, http.MethodPost, "/api/boards", CreateBoardRequest{
		UserID:         "user-1",
		ReferenceImage: dataURL(pngHeader),
		FaceImage:      base64.StdEncoding.EncodeToString(pngHeader),
		FrameCount:     4,
		Model:          "pro",
	})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	require.True(t, resp.Success)
	require.NotNil(t, resp.Board)
	assert.Equal(t, model.StepGeneratingFrames, resp.Board.Step)
	assert.Equal(t, model.VariantPro, resp.Board.Config.Model)

	h.svc.Wait()
	rec, resp = do(t, r, http.MethodGet, "/api/boards/"+resp.Board.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.StepSequencing, resp.Board.Step)
	assert.Len(t, resp.Board.Scenes, 3)
	assert.NotContains(t, rec.Body.String(), base64.StdEncoding.EncodeToString(pngHeader))
}

func TestHandler_CreateBoardBadImage(t *testing.T) {
	h := newHarness(t, 5)
	rec, resp := do(t, newRouter(h), http.MethodPost, "/api/boards", CreateBoardRequest{
		ReferenceImage: "",
		FaceImage:      dataURL(pngHeader),
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, resp.Success)
	assert.Equal(t, CodeInvalidRequest, resp.ErrorCode)
}

func TestHandler_NotFound(t *testing.T) {
	h := newHarness(t, 5)
	rec, resp := do(t, newRouter(h), http.MethodGet, "/api/boards/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, CodeNotFound, resp.ErrorCode)
}

func TestHandler_GetImage(t *testing.T) {
	h := newHarness(t, 5)
	board := h.sequencedBoard(t, 3)

	rec, _ := do(t, newRouter(h), http.MethodGet, "/api/boards/"+board.ID+"/images/ref", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, []byte("reference"), rec.Body.Bytes())
}

func TestHandler_UpdateScene(t *testing.T) {
	h := newHarness(t, 5)
	board := h.sequencedBoard(t, 3)
	r := newRouter(h)
	path := "/api/boards/" + board.ID + "/scenes/" + board.Scenes[0].ID

	rec, resp := do(t, r, http.MethodPatch, path, map[string]any{
		"expression":       "wide grin",
		"targetResolution": "4k",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "wide grin", resp.Scene.Expression)
	assert.Equal(t, model.Resolution4K, resp.Scene.TargetResolution)

	rec, resp = do(t, r, http.MethodPatch, path, map[string]any{"targetResolution": "720p"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, CodeInvalidRequest, resp.ErrorCode)
}

func TestHandler_SceneBusy(t *testing.T) {
	h := newHarness(t, 5)
	board := h.sequencedBoard(t, 3)
	sceneID := board.Scenes[0].ID
	_, err := h.leases.Acquire(context.Background(), leaseKey(board.ID, sceneID), time.Minute)
	require.NoError(t, err)

	rec, resp := do(t, newRouter(h), http.MethodPatch, "/api/boards/"+board.ID+"/scenes/"+sceneID, map[string]any{"script": "hi"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, CodeSceneBusy, resp.ErrorCode)
}

func TestHandler_Duration(t *testing.T) {
	h := newHarness(t, 5)
	board := h.sequencedBoard(t, 3)
	r := newRouter(h)
	path := "/api/boards/" + board.ID + "/scenes/" + board.Scenes[0].ID

	do(t, r, http.MethodPatch, path, map[string]any{"script": "Hello there"})
	rec, resp := do(t, r, http.MethodPost, path+"/duration", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "6", resp.Scene.RecommendedDuration)
}

func TestHandler_RegenerateFailure(t *testing.T) {
	h := newHarness(t, 5)
	board := h.sequencedBoard(t, 3)
	h.gw.ImageFn = func(ctx context.Context, req gateway.ImageRequest) (*model.Image, error) {
		return nil, errors.New("429 RESOURCE_EXHAUSTED")
	}

	rec, resp := do(t, newRouter(h), http.MethodPost,
		"/api/boards/"+board.ID+"/scenes/"+board.Scenes[0].ID+"/regenerate", RegenerateRequest{Action: "jumps"})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, CodeGenerationFailed, resp.ErrorCode)
	assert.NotEmpty(t, resp.ErrorMessage)
}

func TestHandler_VideoNeedsCredential(t *testing.T) {
	h := newHarness(t, 5)
	board := h.sequencedBoard(t, 3)
	r := newRouter(h)
	videoPath := "/api/boards/" + board.ID + "/scenes/" + board.Scenes[0].ID + "/video"

	rec, resp := do(t, r, http.MethodPost, videoPath, nil)
	assert.Equal(t, http.StatusPreconditionRequired, rec.Code)
	assert.Equal(t, CodeCredentialRequired, resp.ErrorCode)

	rec, resp = do(t, r, http.MethodGet, "/api/boards/"+board.ID+"/credential", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, resp.HasCredential)
	assert.False(t, *resp.HasCredential)

	rec, resp = do(t, r, http.MethodPost, "/api/boards/"+board.ID+"/credential", CredentialRequest{APIKey: " "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, resp = do(t, r, http.MethodPost, "/api/boards/"+board.ID+"/credential", CredentialRequest{APIKey: "user-key"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, *resp.HasCredential)

	rec, resp = do(t, r, http.MethodPost, videoPath, nil)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	assert.Equal(t, model.StatusGeneratingVideo, resp.Scene.Status)

	h.svc.Wait()
	scene, err := h.svc.Scene(board.ID, board.Scenes[0].ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusComplete, scene.Status)
	assert.NotEmpty(t, scene.GeneratedVideoURL)
}

func TestHandler_CancelVideoIdle(t *testing.T) {
	h := newHarness(t, 5)
	board := h.sequencedBoard(t, 3)

	rec, resp := do(t, newRouter(h), http.MethodPost,
		"/api/boards/"+board.ID+"/scenes/"+board.Scenes[0].ID+"/video/cancel", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, resp.Cancelled)
	assert.False(t, *resp.Cancelled)
}

func TestHandler_GenerateWrongStep(t *testing.T) {
	h := newHarness(t, 5)
	board := h.sequencedBoard(t, 3)

	rec, resp := do(t, newRouter(h), http.MethodPost, "/api/boards/"+board.ID+"/generate", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, CodeInvalidStep, resp.ErrorCode)
}

func TestHandler_RegenerateWithStoredAction(t *testing.T) {
	h := newHarness(t, 5)
	board := h.sequencedBoard(t, 3)
	r := newRouter(h)
	path := "/api/boards/" + board.ID + "/scenes/" + board.Scenes[0].ID

	rec, _ := do(t, r, http.MethodPatch, path, map[string]any{"actionPrompt": "turns to the window"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	before := len(h.gw.ImageRequests())

	rec, resp := do(t, r, http.MethodPost, path+"/regenerate", map[string]any{})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NotNil(t, resp.Scene)
	assert.NotEqual(t, board.Scenes[0].EndImage.ID, resp.Scene.EndImage.ID)
	assert.Len(t, h.gw.ImageRequests(), before+1)
}

func TestHandler_Assets(t *testing.T) {
	h := newHarness(t, 5)
	board := h.sequencedBoard(t, 3)
	r := newRouter(h)

	rec, resp := do(t, r, http.MethodGet, "/api/boards/"+board.ID+"/assets", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)
	assert.Empty(t, resp.Assets)

	h.svc.assets = &fakeAssets{assets: []model.Asset{{AssetID: 3, BoardID: board.ID, PublicURL: "https://cdn/a.mp4"}}}
	rec, resp = do(t, r, http.MethodGet, "/api/boards/"+board.ID+"/assets", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, resp.Assets, 1)
	assert.Equal(t, "https://cdn/a.mp4", resp.Assets[0].PublicURL)

	rec, resp = do(t, r, http.MethodGet, "/api/boards/missing/assets", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, CodeNotFound, resp.ErrorCode)
}

func TestHandler_RegenerateEmptyBody(t *testing.T) {
	h := newHarness(t, 5)
	board := h.sequencedBoard(t, 3)
	r := newRouter(h)
	path := "/api/boards/" + board.ID + "/scenes/" + board.Scenes[1].ID
	do(t, r, http.MethodPatch, path, map[string]any{"actionPrompt": "waves"})

	rec, resp := do(t, r, http.MethodPost, path+"/regenerate", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "waves", resp.Scene.ActionPrompt)
	assert.NotEqual(t, board.Scenes[1].EndImage.ID, resp.Scene.EndImage.ID)
}
