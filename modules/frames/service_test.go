package frames

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storyboard-server/modules/common/model"
	"storyboard-server/modules/common/utils"
	"storyboard-server/modules/gateway"
	"storyboard-server/modules/gateway/gatewaytest"
)

var models = Models{Standard: "std-image", Pro: "pro-image"}

func testContext(v model.Variant, pose string) *model.PipelineContext {
	return &model.PipelineContext{
		SceneImage:       model.Image{ID: "scene", MIMEType: "image/jpeg", Data: []byte("scene")},
		FaceImage:        model.Image{ID: "face", MIMEType: "image/jpeg", Data: []byte("face")},
		SceneDescription: "a rooftop at dusk",
		FaceDescription:  "curly red hair",
		PoseConstraint:   pose,
		Model:            v,
	}
}

// keyframe 번호를 바이트에 담아 순서 확인
func frameNumber(req gateway.ImageRequest) string {
	i := strings.Index(req.Instruction, "keyframe ")
	rest := req.Instruction[i+len("keyframe "):]
	return rest[:strings.Index(rest, " ")]
}

func TestSynthesize_AllSucceed(t *testing.T) {
	gw := gatewaytest.New()
	gw.ImageFn = func(ctx context.Context, req gateway.ImageRequest) (*model.Image, error) {
		img := utils.NewImage([]byte(frameNumber(req)), "image/png")
		return &img, nil
	}
	svc := NewService(gw, models, 0)

	out := svc.Synthesize(context.Background(), testContext(model.VariantStandard, ""), 5)
	require.Len(t, out, 5)
	for i, img := range out {
		assert.Equal(t, []byte{byte('1' + i)}, img.Data)
	}

	reqs := gw.ImageRequests()
	require.Len(t, reqs, 5)
	for _, req := range reqs {
		assert.Equal(t, "std-image", req.Model)
		assert.Empty(t, req.ImageSize)
		assert.Equal(t, "9:16", req.AspectRatio)
		require.Len(t, req.Images, 2)
		assert.Equal(t, "scene", req.Images[0].ID)
		assert.Equal(t, "face", req.Images[1].ID)
		assert.Contains(t, req.Instruction, "mirror the reference pose")
		assert.Contains(t, req.Instruction, "a rooftop at dusk")
		assert.Contains(t, req.Instruction, "curly red hair")
	}
}

func TestSynthesize_ProSendsImageSize(t *testing.T) {
	gw := gatewaytest.New()
	svc := NewService(gw, models, 0)

	svc.Synthesize(context.Background(), testContext(model.VariantPro, "arms crossed"), 2)

	for _, req := range gw.ImageRequests() {
		assert.Equal(t, "pro-image", req.Model)
		assert.Equal(t, "2K", req.ImageSize)
		assert.Contains(t, req.Instruction, "arms crossed")
		assert.NotContains(t, req.Instruction, "mirror the reference pose")
	}
}

func TestSynthesize_FiltersFailuresKeepsOrder(t *testing.T) {
	gw := gatewaytest.New()
	gw.ImageFn = func(ctx context.Context, req gateway.ImageRequest) (*model.Image, error) {
		n := frameNumber(req)
		switch n {
		case "2":
			return nil, errors.New("quota")
		case "4":
			return nil, nil
		}
		img := utils.NewImage([]byte(n), "image/png")
		return &img, nil
	}
	svc := NewService(gw, models, 0)

	out := svc.Synthesize(context.Background(), testContext(model.VariantStandard, ""), 5)
	require.Len(t, out, 3)
	assert.Equal(t, []byte("1"), out[0].Data)
	assert.Equal(t, []byte("3"), out[1].Data)
	assert.Equal(t, []byte("5"), out[2].Data)
}

func TestSynthesize_AllFail(t *testing.T) {
	gw := gatewaytest.New()
	gw.ImageFn = func(ctx context.Context, req gateway.ImageRequest) (*model.Image, error) {
		return nil, errors.New("down")
	}
	svc := NewService(gw, models, 0)

	out := svc.Synthesize(context.Background(), testContext(model.VariantStandard, ""), 4)
	assert.Empty(t, out)
	assert.Len(t, gw.ImageRequests(), 4)
}

func TestSynthesize_RunsConcurrently(t *testing.T) {
	var inFlight, peak int32
	release := make(chan struct{})

	gw := gatewaytest.New()
	gw.ImageFn = func(ctx context.Context, req gateway.ImageRequest) (*model.Image, error) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		<-release
		atomic.AddInt32(&inFlight, -1)
		img := utils.NewImage([]byte("x"), "image/png")
		return &img, nil
	}
	svc := NewService(gw, models, 0)

	done := make(chan []model.Image)
	go func() { done <- svc.Synthesize(context.Background(), testContext(model.VariantStandard, ""), 3) }()

	require.Eventually(t, func() bool { return atomic.LoadInt32(&peak) == 3 }, time.Second, 5*time.Millisecond)
	close(release)
	assert.Len(t, <-done, 3)
}

func TestSynthesize_ZeroCount(t *testing.T) {
	gw := gatewaytest.New()
	svc := NewService(gw, models, 0)
	assert.Empty(t, svc.Synthesize(context.Background(), testContext(model.VariantStandard, ""), 0))
	assert.Empty(t, gw.ImageRequests())
}

func TestRegenerate(t *testing.T) {
	gw := gatewaytest.New()
	svc := NewService(gw, models, 0)

	img, err := svc.Regenerate(context.Background(), testContext(model.VariantPro, "hands on hips"), "  waves at the camera ")
	require.NoError(t, err)
	require.NotNil(t, img)

	req := gw.ImageRequests()[0]
	assert.Equal(t, "pro-image", req.Model)
	assert.Equal(t, "2K", req.ImageSize)
	assert.Contains(t, req.Instruction, "waves at the camera")
	assert.Contains(t, req.Instruction, "hands on hips")
	assert.Len(t, req.Images, 2)
}

func TestRegenerate_NoImage(t *testing.T) {
	gw := gatewaytest.New()
	gw.ImageFn = func(ctx context.Context, req gateway.ImageRequest) (*model.Image, error) {
		return nil, nil
	}
	svc := NewService(gw, models, 0)

	_, err := svc.Regenerate(context.Background(), testContext(model.VariantStandard, ""), "jump")
	assert.Error(t, err)
}
