package storyboard

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"storyboard-server/modules/common/model"
	"storyboard-server/modules/common/utils"
)

// Error codes
const (
	CodeInvalidRequest     = "INVALID_REQUEST"
	CodeNotFound           = "NOT_FOUND"
	CodeSceneBusy          = "SCENE_BUSY"
	CodeInvalidStep        = "INVALID_STEP"
	CodeCredentialRequired = "CREDENTIAL_REQUIRED"
	CodeGenerationFailed   = "GENERATION_FAILED"
	CodeInternal           = "INTERNAL_ERROR"
)

// CreateBoardRequest - 보드 생성 요청 (이미지는 data URL 또는 base64)
type CreateBoardRequest struct {
	UserID         string `json:"userId"`
	ReferenceImage string `json:"referenceImage"`
	FaceImage      string `json:"faceImage"`
	FrameCount     int    `json:"frameCount"`
	Model          string `json:"model"`
	PoseConstraint string `json:"poseConstraint"`
}

// UpdateSceneRequest - 디렉터 컨트롤 (없는 필드는 유지)
type UpdateSceneRequest struct {
	Movement         *string `json:"movement"`
	Expression       *string `json:"expression"`
	Script           *string `json:"script"`
	ActionPrompt     *string `json:"actionPrompt"`
	TargetResolution *string `json:"targetResolution"`
}

// RegenerateRequest - action 이 비어 있으면 씬의 actionPrompt 사용
type RegenerateRequest struct {
	Action string `json:"action"`
}

type CredentialRequest struct {
	APIKey string `json:"apiKey"`
}

// Response - 공통 응답
type Response struct {
	Success       bool          `json:"success"`
	ErrorMessage  string        `json:"errorMessage,omitempty"`
	ErrorCode     string        `json:"errorCode,omitempty"`
	Board         *model.Board  `json:"board,omitempty"`
	Scene         *model.Scene  `json:"scene,omitempty"`
	HasCredential *bool         `json:"hasCredential,omitempty"`
	Cancelled     *bool         `json:"cancelled,omitempty"`
	Assets        []model.Asset `json:"assets,omitempty"`
}

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes - 라우터에 Storyboard 엔드포인트 등록
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/boards", h.CreateBoard).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/boards/{boardId}", h.GetBoard).Methods("GET", "OPTIONS")
	r.HandleFunc("/api/boards/{boardId}/generate", h.Generate).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/boards/{boardId}/assets", h.GetAssets).Methods("GET", "OPTIONS")
	r.HandleFunc("/api/boards/{boardId}/error", h.DismissError).Methods("DELETE", "OPTIONS")
	r.HandleFunc("/api/boards/{boardId}/images/{imageId}", h.GetImage).Methods("GET", "OPTIONS")
	r.HandleFunc("/api/boards/{boardId}/scenes/{sceneId}", h.UpdateScene).Methods("PATCH", "OPTIONS")
	r.HandleFunc("/api/boards/{boardId}/scenes/{sceneId}/duration", h.AnalyzeDuration).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/boards/{boardId}/scenes/{sceneId}/regenerate", h.Regenerate).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/boards/{boardId}/scenes/{sceneId}/video", h.GenerateVideo).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/boards/{boardId}/scenes/{sceneId}/video/cancel", h.CancelVideo).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/boards/{boardId}/credential", h.GetCredential).Methods("GET", "OPTIONS")
	r.HandleFunc("/api/boards/{boardId}/credential", h.SelectCredential).Methods("POST")
	log.Println("✅ Storyboard routes registered: /api/boards/...")
}

// CreateBoard - 보드 생성 후 바로 프레임 생성 시작
func (h *Handler) CreateBoard(w http.ResponseWriter, r *http.Request) {
	if preflight(w, r) {
		return
	}

	var req CreateBoardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("❌ [Storyboard] Failed to parse request: %v", err)
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, "Invalid request format")
		return
	}

	reference, err := utils.DecodeImage(req.ReferenceImage)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, "referenceImage: "+err.Error())
		return
	}
	face, err := utils.DecodeImage(req.FaceImage)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, "faceImage: "+err.Error())
		return
	}

	board, err := h.service.CreateBoard(req.UserID, model.GenerationConfig{
		ReferenceImage: reference,
		FaceImage:      face,
		FrameCount:     req.FrameCount,
		Model:          model.Variant(req.Model),
		PoseConstraint: req.PoseConstraint,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	board, err = h.service.StartGenerate(board.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, Response{Success: true, Board: &board})
}

func (h *Handler) GetBoard(w http.ResponseWriter, r *http.Request) {
	if preflight(w, r) {
		return
	}
	board, err := h.service.Board(mux.Vars(r)["boardId"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Board: &board})
}

// GetAssets - 보드의 업로드된 영상 목록
func (h *Handler) GetAssets(w http.ResponseWriter, r *http.Request) {
	if preflight(w, r) {
		return
	}
	assets, err := h.service.Assets(mux.Vars(r)["boardId"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Assets: assets})
}

// Generate - upload 단계 보드 재생성
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	if preflight(w, r) {
		return
	}
	board, err := h.service.StartGenerate(mux.Vars(r)["boardId"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, Response{Success: true, Board: &board})
}

func (h *Handler) DismissError(w http.ResponseWriter, r *http.Request) {
	if preflight(w, r) {
		return
	}
	boardID := mux.Vars(r)["boardId"]
	if err := h.service.ClearError(boardID); err != nil {
		writeServiceError(w, err)
		return
	}
	board, err := h.service.Board(boardID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Board: &board})
}

// GetImage - keyframe 원본 바이트
func (h *Handler) GetImage(w http.ResponseWriter, r *http.Request) {
	if preflight(w, r) {
		return
	}
	vars := mux.Vars(r)
	img, err := h.service.Image(vars["boardId"], vars["imageId"])
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", img.MIMEType)
	w.Header().Set("Content-Length", strconv.Itoa(len(img.Data)))
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.WriteHeader(http.StatusOK)
	w.Write(img.Data)
}

func (h *Handler) UpdateScene(w http.ResponseWriter, r *http.Request) {
	if preflight(w, r) {
		return
	}

	var req UpdateSceneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, "Invalid request format")
		return
	}

	patch := ScenePatch{
		Movement:     req.Movement,
		Expression:   req.Expression,
		Script:       req.Script,
		ActionPrompt: req.ActionPrompt,
	}
	if req.TargetResolution != nil {
		res := model.Resolution(*req.TargetResolution)
		patch.TargetResolution = &res
	}

	vars := mux.Vars(r)
	scene, err := h.service.UpdateScene(r.Context(), vars["boardId"], vars["sceneId"], patch)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Scene: &scene})
}

func (h *Handler) AnalyzeDuration(w http.ResponseWriter, r *http.Request) {
	if preflight(w, r) {
		return
	}
	vars := mux.Vars(r)
	scene, err := h.service.AnalyzeDuration(r.Context(), vars["boardId"], vars["sceneId"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Scene: &scene})
}

func (h *Handler) Regenerate(w http.ResponseWriter, r *http.Request) {
	if preflight(w, r) {
		return
	}

	var req RegenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, "Invalid request format")
		return
	}

	vars := mux.Vars(r)
	scene, err := h.service.RegenerateEndFrame(r.Context(), vars["boardId"], vars["sceneId"], req.Action)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Scene: &scene})
}

// GenerateVideo - 영상 생성 시작 (결과는 board_updated 이벤트로 전달)
func (h *Handler) GenerateVideo(w http.ResponseWriter, r *http.Request) {
	if preflight(w, r) {
		return
	}
	vars := mux.Vars(r)
	scene, err := h.service.StartVideo(vars["boardId"], vars["sceneId"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, Response{Success: true, Scene: &scene})
}

func (h *Handler) CancelVideo(w http.ResponseWriter, r *http.Request) {
	if preflight(w, r) {
		return
	}
	vars := mux.Vars(r)
	cancelled, err := h.service.CancelVideo(r.Context(), vars["boardId"], vars["sceneId"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Cancelled: &cancelled})
}

func (h *Handler) GetCredential(w http.ResponseWriter, r *http.Request) {
	if preflight(w, r) {
		return
	}
	ok, err := h.service.HasCredential(mux.Vars(r)["boardId"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Response{Success: true, HasCredential: &ok})
}

func (h *Handler) SelectCredential(w http.ResponseWriter, r *http.Request) {
	var req CredentialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, "Invalid request format")
		return
	}

	if err := h.service.SelectCredential(mux.Vars(r)["boardId"], req.APIKey); err != nil {
		writeServiceError(w, err)
		return
	}
	ok := true
	writeJSON(w, http.StatusOK, Response{Success: true, HasCredential: &ok})
}

// preflight - OPTIONS 요청 처리 (CORS preflight)
func preflight(w http.ResponseWriter, r *http.Request) bool {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return true
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Printf("❌ [Storyboard] Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Response{Success: false, ErrorCode: code, ErrorMessage: message})
}

// writeServiceError - sentinel 에러를 HTTP 상태 코드로 변환
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrBoardNotFound), errors.Is(err, ErrSceneNotFound), errors.Is(err, ErrImageNotFound):
		writeError(w, http.StatusNotFound, CodeNotFound, err.Error())
	case errors.Is(err, ErrSceneBusy):
		writeError(w, http.StatusConflict, CodeSceneBusy, err.Error())
	case errors.Is(err, ErrInvalidStep):
		writeError(w, http.StatusConflict, CodeInvalidStep, err.Error())
	case errors.Is(err, ErrInvalidInput):
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, err.Error())
	case errors.Is(err, ErrCredentialRequired):
		writeError(w, http.StatusPreconditionRequired, CodeCredentialRequired, err.Error())
	case errors.Is(err, ErrGenerationFailed):
		writeError(w, http.StatusBadGateway, CodeGenerationFailed, alertFor(err))
	default:
		log.Printf("❌ [Storyboard] Unexpected error: %v", err)
		writeError(w, http.StatusInternalServerError, CodeInternal, "Internal server error")
	}
}
