package storyboard

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"storyboard-server/modules/analysis"
	"storyboard-server/modules/chain"
	"storyboard-server/modules/common/cancel"
	"storyboard-server/modules/common/fallback"
	"storyboard-server/modules/common/gemini"
	"storyboard-server/modules/common/lease"
	"storyboard-server/modules/common/model"
	"storyboard-server/modules/credential"
	"storyboard-server/modules/frames"
	"storyboard-server/modules/video"
)

const (
	insufficientFramesAlert = "Not enough keyframes could be generated. Please try again."
	cancelledVideoMessage   = "Video generation was cancelled."
	defaultLeaseTTL         = 15 * time.Minute
)

// Notifier - 보드 변경 push
type Notifier interface {
	BoardUpdated(board model.Board)
}

type nopNotifier struct{}

func (nopNotifier) BoardUpdated(model.Board) {}

// AssetLister - 업로드된 영상 레코드 조회 (Supabase)
type AssetLister interface {
	FetchBoardAssets(boardID string) ([]model.Asset, error)
}

// Deps - Service 구성 요소
type Deps struct {
	Store       *Store
	Analysis    *analysis.Service
	Frames      *frames.Service
	Video       *video.Service
	Credentials credential.Provider
	Leases      lease.Locker
	Cancels     *cancel.Registry
	Notifier    Notifier
	Assets      AssetLister
	LeaseTTL    time.Duration
}

// ScenePatch - 디렉터 컨트롤 수정 (nil 필드는 유지)
type ScenePatch struct {
	Movement         *string
	Expression       *string
	Script           *string
	ActionPrompt     *string
	TargetResolution *model.Resolution
}

type Service struct {
	store       *Store
	analysis    *analysis.Service
	frames      *frames.Service
	video       *video.Service
	credentials credential.Provider
	leases      lease.Locker
	cancels     *cancel.Registry
	notifier    Notifier
	assets      AssetLister
	leaseTTL    time.Duration

	newID func() string
	now   func() time.Time

	background sync.WaitGroup
}

func NewService(d Deps) *Service {
	s := &Service{
		store:       d.Store,
		analysis:    d.Analysis,
		frames:      d.Frames,
		video:       d.Video,
		credentials: d.Credentials,
		leases:      d.Leases,
		cancels:     d.Cancels,
		notifier:    d.Notifier,
		assets:      d.Assets,
		leaseTTL:    d.LeaseTTL,
		newID:       uuid.NewString,
		now:         time.Now,
	}
	if s.store == nil {
		s.store = NewStore(2 * time.Hour)
	}
	if s.leases == nil {
		s.leases = lease.NewMemory()
	}
	if s.cancels == nil {
		s.cancels = cancel.NewRegistry(nil)
	}
	if s.notifier == nil {
		s.notifier = nopNotifier{}
	}
	if s.leaseTTL <= 0 {
		s.leaseTTL = defaultLeaseTTL
	}
	return s
}

// Wait - 백그라운드 작업(프레임 생성, 영상 생성) 종료 대기
func (s *Service) Wait() {
	s.background.Wait()
}

func (s *Service) goBackground(fn func()) {
	s.background.Add(1)
	go func() {
		defer s.background.Done()
		fn()
	}()
}

// ---------------------------------------------------------------------------
// Board lifecycle
// ---------------------------------------------------------------------------

// CreateBoard - 업로드 단계의 새 보드 생성
func (s *Service) CreateBoard(userID string, cfg model.GenerationConfig) (model.Board, error) {
	if len(cfg.ReferenceImage.Data) == 0 {
		return model.Board{}, fmt.Errorf("%w: reference image is required", ErrInvalidInput)
	}
	if len(cfg.FaceImage.Data) == 0 {
		return model.Board{}, fmt.Errorf("%w: face image is required", ErrInvalidInput)
	}
	if cfg.Model == "" {
		cfg.Model = model.VariantStandard
	}
	if !cfg.Model.Valid() {
		return model.Board{}, fmt.Errorf("%w: unknown model %q", ErrInvalidInput, cfg.Model)
	}
	if cfg.ReferenceImage.ID == "" {
		cfg.ReferenceImage.ID = s.newID()
	}
	if cfg.FaceImage.ID == "" {
		cfg.FaceImage.ID = s.newID()
	}
	cfg.FrameCount = fallback.SafeFrameCount(cfg.FrameCount, model.DefaultFrameCount, model.MinFrameCount, model.MaxFrameCount)
	cfg.PoseConstraint = strings.TrimSpace(cfg.PoseConstraint)

	now := s.now()
	e := &entry{board: model.Board{
		ID:        s.newID(),
		UserID:    userID,
		Step:      model.StepUpload,
		Config:    cfg,
		Scenes:    []model.Scene{},
		CreatedAt: now,
		UpdatedAt: now,
	}}
	s.store.put(e)

	log.Printf("📋 [Storyboard] Board %s created (frames: %d, model: %s)", e.board.ID, cfg.FrameCount, cfg.Model)
	return e.snapshot(), nil
}

// Board - 현재 보드 스냅샷
func (s *Service) Board(boardID string) (model.Board, error) {
	e, err := s.store.get(boardID)
	if err != nil {
		return model.Board{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshot(), nil
}

// Scene - 씬 하나 스냅샷
func (s *Service) Scene(boardID, sceneID string) (model.Scene, error) {
	e, err := s.store.get(boardID)
	if err != nil {
		return model.Scene{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	i := e.sceneIndex(sceneID)
	if i < 0 {
		return model.Scene{}, ErrSceneNotFound
	}
	return e.board.Scenes[i], nil
}

// Image - 보드에 속한 이미지 (참조, 얼굴, keyframe)
func (s *Service) Image(boardID, imageID string) (model.Image, error) {
	e, err := s.store.get(boardID)
	if err != nil {
		return model.Image{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.board.Config.ReferenceImage.ID == imageID {
		return e.board.Config.ReferenceImage, nil
	}
	if e.board.Config.FaceImage.ID == imageID {
		return e.board.Config.FaceImage, nil
	}
	for _, frame := range chain.Frames(e.board.Scenes) {
		if frame.ID == imageID {
			return frame, nil
		}
	}
	return model.Image{}, ErrImageNotFound
}

// Assets - 보드에서 업로드된 영상 레코드, 기록소가 없으면 빈 목록
func (s *Service) Assets(boardID string) ([]model.Asset, error) {
	if _, err := s.store.get(boardID); err != nil {
		return nil, err
	}
	if s.assets == nil {
		return []model.Asset{}, nil
	}
	assets, err := s.assets.FetchBoardAssets(boardID)
	if err != nil {
		log.Printf("❌ [Storyboard] Board %s asset lookup failed: %v", boardID, err)
		return nil, err
	}
	return assets, nil
}

// ---------------------------------------------------------------------------
// Pipeline: analysis → frame synthesis → chain
// ---------------------------------------------------------------------------

// Generate - 파이프라인을 끝까지 실행 (블로킹)
func (s *Service) Generate(ctx context.Context, boardID string) error {
	e, cfg, err := s.beginGeneration(boardID)
	if err != nil {
		return err
	}
	return s.runPipeline(ctx, e, cfg)
}

// StartGenerate - 단계 전환만 동기로 하고 파이프라인은 백그라운드 실행
func (s *Service) StartGenerate(boardID string) (model.Board, error) {
	e, cfg, err := s.beginGeneration(boardID)
	if err != nil {
		return model.Board{}, err
	}

	e.mu.Lock()
	snap := e.snapshot()
	e.mu.Unlock()

	s.goBackground(func() {
		if err := s.runPipeline(context.Background(), e, cfg); err != nil {
			log.Printf("❌ [Storyboard] Board %s generation failed: %v", boardID, err)
		}
	})
	return snap, nil
}

func (s *Service) beginGeneration(boardID string) (*entry, model.GenerationConfig, error) {
	e, err := s.store.get(boardID)
	if err != nil {
		return nil, model.GenerationConfig{}, err
	}

	e.mu.Lock()
	if e.board.Step != model.StepUpload {
		e.mu.Unlock()
		return nil, model.GenerationConfig{}, ErrInvalidStep
	}
	e.board.Step = model.StepGeneratingFrames
	e.board.Error = ""
	e.board.Context = nil
	e.board.Scenes = []model.Scene{}
	e.board.UpdatedAt = s.now()
	cfg := e.board.Config
	snap := e.snapshot()
	e.mu.Unlock()

	s.notifier.BoardUpdated(snap)
	return e, cfg, nil
}

func (s *Service) runPipeline(ctx context.Context, e *entry, cfg model.GenerationConfig) error {
	boardID := e.board.ID
	log.Printf("🚀 [Storyboard] Board %s: generating %d keyframes", boardID, cfg.FrameCount)

	faceDesc, err := s.analysis.AnalyzeFace(ctx, cfg.FaceImage)
	if err != nil {
		return s.failGeneration(e, err)
	}
	sceneDesc, err := s.analysis.AnalyzeScene(ctx, cfg.ReferenceImage)
	if err != nil {
		return s.failGeneration(e, err)
	}

	pc := &model.PipelineContext{
		SceneImage:       cfg.ReferenceImage,
		FaceImage:        cfg.FaceImage,
		SceneDescription: sceneDesc,
		FaceDescription:  faceDesc,
		PoseConstraint:   cfg.PoseConstraint,
		Model:            cfg.Model,
	}

	generated := s.frames.Synthesize(ctx, pc, cfg.FrameCount-1)
	keyframes := append([]model.Image{cfg.ReferenceImage}, generated...)

	scenes, err := chain.Build(keyframes, s.newID)
	if err != nil {
		return s.failGeneration(e, err)
	}
	if err := chain.Validate(scenes); err != nil {
		return s.failGeneration(e, err)
	}

	e.mu.Lock()
	e.board.Context = pc
	e.board.Scenes = scenes
	e.board.Step = model.StepSequencing
	e.board.Error = ""
	e.board.UpdatedAt = s.now()
	snap := e.snapshot()
	e.mu.Unlock()

	s.notifier.BoardUpdated(snap)
	log.Printf("✅ [Storyboard] Board %s: %d scenes ready", boardID, len(scenes))
	return nil
}

// failGeneration - 업로드 단계로 되돌리고 컨텍스트 폐기, 알림 설정
func (s *Service) failGeneration(e *entry, cause error) error {
	alert := alertFor(cause)

	e.mu.Lock()
	e.board.Step = model.StepUpload
	e.board.Context = nil
	e.board.Scenes = []model.Scene{}
	e.board.Error = alert
	e.board.UpdatedAt = s.now()
	snap := e.snapshot()
	e.mu.Unlock()

	s.notifier.BoardUpdated(snap)
	log.Printf("❌ [Storyboard] Board %s back to upload: %v", snap.ID, cause)
	return fmt.Errorf("%w: %w", ErrGenerationFailed, cause)
}

func alertFor(err error) string {
	if errors.Is(err, chain.ErrInsufficientFrames) {
		return insufficientFramesAlert
	}
	return gemini.UserMessage(gemini.Classify(err))
}

// ---------------------------------------------------------------------------
// Scene operations
// ---------------------------------------------------------------------------

// UpdateScene - 디렉터 컨트롤 수정
func (s *Service) UpdateScene(ctx context.Context, boardID, sceneID string, patch ScenePatch) (model.Scene, error) {
	if patch.TargetResolution != nil && !patch.TargetResolution.Valid() {
		return model.Scene{}, fmt.Errorf("%w: unsupported resolution %q", ErrInvalidInput, *patch.TargetResolution)
	}

	e, _, err := s.sceneEntry(boardID, sceneID)
	if err != nil {
		return model.Scene{}, err
	}
	release, err := s.lockScenes(ctx, boardID, sceneID)
	if err != nil {
		return model.Scene{}, err
	}
	defer release()

	return s.mutateScene(e, sceneID, func(scenes []model.Scene, i int) {
		sc := &scenes[i]
		if patch.Movement != nil {
			sc.Movement = *patch.Movement
		}
		if patch.Expression != nil {
			sc.Expression = *patch.Expression
		}
		if patch.Script != nil {
			sc.Script = *patch.Script
		}
		if patch.ActionPrompt != nil {
			sc.ActionPrompt = *patch.ActionPrompt
		}
		if patch.TargetResolution != nil {
			sc.TargetResolution = *patch.TargetResolution
		}
	})
}

// AnalyzeDuration - 대사 길이로 추천 영상 길이 설정, 빈 대사는 무시
func (s *Service) AnalyzeDuration(ctx context.Context, boardID, sceneID string) (model.Scene, error) {
	e, scene, err := s.sceneEntry(boardID, sceneID)
	if err != nil {
		return model.Scene{}, err
	}
	if strings.TrimSpace(scene.Script) == "" {
		return scene, nil
	}

	release, err := s.lockScenes(ctx, boardID, sceneID)
	if err != nil {
		return model.Scene{}, err
	}
	defer release()

	scene, err = s.mutateScene(e, sceneID, func(scenes []model.Scene, i int) {
		scenes[i].IsProcessing = true
	})
	if err != nil {
		return model.Scene{}, err
	}

	duration := s.analysis.EstimateDuration(ctx, scene.Script)

	return s.mutateScene(e, sceneID, func(scenes []model.Scene, i int) {
		scenes[i].RecommendedDuration = duration
		scenes[i].IsProcessing = false
	})
}

// RegenerateEndFrame - 씬 끝 프레임 재생성, 다음 씬 시작 프레임도 같이 교체
// action 이 비어 있으면 씬에 저장된 ActionPrompt 사용
func (s *Service) RegenerateEndFrame(ctx context.Context, boardID, sceneID, action string) (model.Scene, error) {
	e, scene, err := s.sceneEntry(boardID, sceneID)
	if err != nil {
		return model.Scene{}, err
	}
	action = strings.TrimSpace(action)
	if action == "" {
		action = strings.TrimSpace(scene.ActionPrompt)
	}
	if action == "" {
		return scene, nil
	}

	e.mu.Lock()
	if e.board.Step != model.StepSequencing || e.board.Context == nil {
		e.mu.Unlock()
		return model.Scene{}, ErrInvalidStep
	}
	pc := *e.board.Context
	idx := e.sceneIndex(sceneID)
	keys := []string{sceneID}
	if idx+1 < len(e.board.Scenes) {
		keys = append(keys, e.board.Scenes[idx+1].ID)
	}
	e.mu.Unlock()

	release, err := s.lockScenes(ctx, boardID, keys...)
	if err != nil {
		return model.Scene{}, err
	}
	defer release()

	if _, err := s.mutateScene(e, sceneID, func(scenes []model.Scene, i int) {
		scenes[i].IsRegeneratingImage = true
		scenes[i].ActionPrompt = action
	}); err != nil {
		return model.Scene{}, err
	}

	img, err := s.frames.Regenerate(ctx, &pc, action)
	if err != nil {
		if _, mErr := s.mutateScene(e, sceneID, func(scenes []model.Scene, i int) {
			scenes[i].IsRegeneratingImage = false
		}); mErr != nil {
			log.Printf("⚠️  [Storyboard] Board %s scene %s could not clear regenerating flag: %v", boardID, sceneID, mErr)
		}
		s.setBoardError(e, "Failed to regenerate the frame. "+alertFor(err))
		log.Printf("❌ [Storyboard] Board %s scene %s regeneration failed: %v", boardID, sceneID, err)
		return model.Scene{}, fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}

	log.Printf("✅ [Storyboard] Board %s scene %s end frame replaced", boardID, sceneID)
	return s.mutateScene(e, sceneID, func(scenes []model.Scene, i int) {
		resetImages(&scenes[i])
		scenes[i].EndImage = *img
		scenes[i].IsRegeneratingImage = false
		if i+1 < len(scenes) {
			resetImages(&scenes[i+1])
			scenes[i+1].StartImage = *img
		}
	})
}

// resetImages - 이미지가 바뀐 씬은 영상과 상태 초기화
func resetImages(sc *model.Scene) {
	sc.GeneratedVideoURL = ""
	sc.Status = model.StatusIdle
	sc.Error = ""
}

// GenerateVideo - 영상 생성 (블로킹)
func (s *Service) GenerateVideo(ctx context.Context, boardID, sceneID string) (model.Scene, error) {
	e, req, release, err := s.prepareVideo(ctx, boardID, sceneID)
	if err != nil {
		return model.Scene{}, err
	}
	defer release()

	jobCtx, done := s.cancels.Start(ctx, req.JobKey)
	defer done()

	return s.runVideo(jobCtx, e, req)
}

// StartVideo - lease 와 상태 전환은 동기, 영상 생성은 백그라운드
func (s *Service) StartVideo(boardID, sceneID string) (model.Scene, error) {
	ctx := context.Background()
	e, req, release, err := s.prepareVideo(ctx, boardID, sceneID)
	if err != nil {
		return model.Scene{}, err
	}

	jobCtx, done := s.cancels.Start(ctx, req.JobKey)
	s.goBackground(func() {
		defer release()
		defer done()
		if _, err := s.runVideo(jobCtx, e, req); err != nil {
			log.Printf("❌ [Storyboard] Board %s scene %s video failed: %v", boardID, sceneID, err)
		}
	})
	return req.Scene, nil
}

// CancelVideo - 진행 중인 영상 폴링 중단
func (s *Service) CancelVideo(ctx context.Context, boardID, sceneID string) (bool, error) {
	if _, _, err := s.sceneEntry(boardID, sceneID); err != nil {
		return false, err
	}
	return s.cancels.Cancel(ctx, leaseKey(boardID, sceneID)), nil
}

func (s *Service) prepareVideo(ctx context.Context, boardID, sceneID string) (*entry, video.Request, func(), error) {
	e, _, err := s.sceneEntry(boardID, sceneID)
	if err != nil {
		return nil, video.Request{}, nil, err
	}

	e.mu.Lock()
	if e.board.Step != model.StepSequencing || e.board.Context == nil {
		e.mu.Unlock()
		return nil, video.Request{}, nil, ErrInvalidStep
	}
	pc := *e.board.Context
	e.mu.Unlock()

	if !s.credentials.HasCredential(boardID) {
		if err := s.credentials.RequestCredential(ctx, boardID); err != nil {
			log.Printf("⚠️  [Storyboard] Credential request for %s failed: %v", boardID, err)
		}
		return nil, video.Request{}, nil, ErrCredentialRequired
	}
	apiKey, _ := s.credentials.APIKey(boardID)

	release, err := s.lockScenes(ctx, boardID, sceneID)
	if err != nil {
		return nil, video.Request{}, nil, err
	}

	scene, err := s.mutateScene(e, sceneID, func(scenes []model.Scene, i int) {
		scenes[i].Status = model.StatusGeneratingVideo
		scenes[i].Error = ""
	})
	if err != nil {
		release()
		return nil, video.Request{}, nil, err
	}

	return e, video.Request{
		BoardID: boardID,
		Scene:   scene,
		Context: &pc,
		APIKey:  apiKey,
		JobKey:  leaseKey(boardID, sceneID),
	}, release, nil
}

func (s *Service) runVideo(ctx context.Context, e *entry, req video.Request) (model.Scene, error) {
	url, err := s.video.Generate(ctx, req)
	if err != nil {
		message := video.FailureMessage
		if errors.Is(err, video.ErrCancelled) {
			message = cancelledVideoMessage
		}
		scene, _ := s.mutateScene(e, req.Scene.ID, func(scenes []model.Scene, i int) {
			scenes[i].Status = model.StatusError
			scenes[i].Error = message
		})
		return scene, fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}

	return s.mutateScene(e, req.Scene.ID, func(scenes []model.Scene, i int) {
		scenes[i].Status = model.StatusComplete
		scenes[i].GeneratedVideoURL = url
		scenes[i].Error = ""
	})
}

// ---------------------------------------------------------------------------
// Credentials
// ---------------------------------------------------------------------------

// SelectCredential - 보드에 영상 생성용 API 키 지정
func (s *Service) SelectCredential(boardID, apiKey string) error {
	if _, err := s.store.get(boardID); err != nil {
		return err
	}
	if err := s.credentials.Select(boardID, apiKey); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return nil
}

// HasCredential - 보드에 키가 선택돼 있는지
func (s *Service) HasCredential(boardID string) (bool, error) {
	if _, err := s.store.get(boardID); err != nil {
		return false, err
	}
	return s.credentials.HasCredential(boardID), nil
}

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

func leaseKey(boardID, sceneID string) string {
	return boardID + ":" + sceneID
}

// lockScenes - 씬 lease 를 순서대로 획득, 이미 잡혀 있으면 ErrSceneBusy
func (s *Service) lockScenes(ctx context.Context, boardID string, sceneIDs ...string) (func(), error) {
	keys := make([]string, len(sceneIDs))
	for i, id := range sceneIDs {
		keys[i] = leaseKey(boardID, id)
	}

	release, err := lease.AcquireAll(ctx, s.leases, keys, s.leaseTTL)
	if errors.Is(err, lease.ErrHeld) {
		return nil, ErrSceneBusy
	}
	if err != nil {
		return nil, err
	}
	return release, nil
}

func (s *Service) sceneEntry(boardID, sceneID string) (*entry, model.Scene, error) {
	e, err := s.store.get(boardID)
	if err != nil {
		return nil, model.Scene{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	i := e.sceneIndex(sceneID)
	if i < 0 {
		return nil, model.Scene{}, ErrSceneNotFound
	}
	return e, e.board.Scenes[i], nil
}

// mutateScene - 씬 슬라이스를 복사해 수정 후 교체 (copy-on-write), 변경 push
func (s *Service) mutateScene(e *entry, sceneID string, fn func(scenes []model.Scene, i int)) (model.Scene, error) {
	e.mu.Lock()
	i := e.sceneIndex(sceneID)
	if i < 0 {
		e.mu.Unlock()
		return model.Scene{}, ErrSceneNotFound
	}
	scenes := append([]model.Scene(nil), e.board.Scenes...)
	fn(scenes, i)
	e.board.Scenes = scenes
	e.board.UpdatedAt = s.now()
	snap := e.snapshot()
	e.mu.Unlock()

	s.notifier.BoardUpdated(snap)
	return snap.Scenes[i], nil
}

func (s *Service) setBoardError(e *entry, message string) {
	e.mu.Lock()
	e.board.Error = message
	e.board.UpdatedAt = s.now()
	snap := e.snapshot()
	e.mu.Unlock()

	s.notifier.BoardUpdated(snap)
}

// ClearError - 사용자가 알림을 닫음
func (s *Service) ClearError(boardID string) error {
	e, err := s.store.get(boardID)
	if err != nil {
		return err
	}
	s.setBoardError(e, "")
	return nil
}
