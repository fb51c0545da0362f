package analysis

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storyboard-server/modules/common/fallback"
	"storyboard-server/modules/common/model"
	"storyboard-server/modules/gateway"
	"storyboard-server/modules/gateway/gatewaytest"
)

var photo = model.Image{ID: "face", MIMEType: "image/jpeg", Data: []byte("jpeg")}

func TestAnalyzeFace(t *testing.T) {
	gw := gatewaytest.New()
	gw.AnalyzeFn = func(ctx context.Context, req gateway.AnalyzeRequest) (string, error) {
		return "  short dark hair, brown eyes \n", nil
	}
	svc := NewService(gw, "gemini-2.5-flash", "text")

	desc, err := svc.AnalyzeFace(context.Background(), photo)
	require.NoError(t, err)
	assert.Equal(t, "short dark hair, brown eyes", desc)

	reqs := gw.AnalyzeRequests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "gemini-2.5-flash", reqs[0].Model)
	assert.Equal(t, photo.ID, reqs[0].Image.ID)
	assert.Equal(t, faceInstruction, reqs[0].Instruction)
}

func TestAnalyzeScene_EmptyUsesFallback(t *testing.T) {
	gw := gatewaytest.New()
	gw.AnalyzeFn = func(ctx context.Context, req gateway.AnalyzeRequest) (string, error) {
		return "   ", nil
	}
	svc := NewService(gw, "m", "text")

	desc, err := svc.AnalyzeScene(context.Background(), photo)
	require.NoError(t, err)
	assert.Equal(t, fallback.SceneDescription, desc)
	assert.Equal(t, sceneInstruction, gw.AnalyzeRequests()[0].Instruction)
}

func TestAnalyze_ErrorPropagates(t *testing.T) {
	boom := errors.New("vendor down")
	gw := gatewaytest.New()
	gw.AnalyzeFn = func(ctx context.Context, req gateway.AnalyzeRequest) (string, error) {
		return "", boom
	}
	svc := NewService(gw, "m", "text")

	_, err := svc.AnalyzeFace(context.Background(), photo)
	assert.ErrorIs(t, err, boom)
	// no retry
	assert.Len(t, gw.AnalyzeRequests(), 1)
}

func TestEstimateDuration(t *testing.T) {
	gw := gatewaytest.New()
	gw.TextFn = func(ctx context.Context, modelName, prompt string) (string, error) {
		assert.Equal(t, "text-model", modelName)
		assert.Contains(t, prompt, "Hello there")
		return "approx. 4.5 seconds", nil
	}
	svc := NewService(gw, "m", "text-model")

	assert.Equal(t, "4.5", svc.EstimateDuration(context.Background(), "  Hello there  "))
}

func TestEstimateDuration_Fallbacks(t *testing.T) {
	gw := gatewaytest.New()
	gw.TextFn = func(ctx context.Context, modelName, prompt string) (string, error) {
		return "", errors.New("down")
	}
	svc := NewService(gw, "m", "t")
	assert.Equal(t, "8", svc.EstimateDuration(context.Background(), "hi"))

	gw.TextFn = func(ctx context.Context, modelName, prompt string) (string, error) {
		return "not sure", nil
	}
	assert.Equal(t, "8", svc.EstimateDuration(context.Background(), "hi"))
}
