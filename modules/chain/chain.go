package chain

import (
	"errors"
	"fmt"

	"storyboard-server/modules/common/model"
)

var (
	// ErrInsufficientFrames - 체인을 만들려면 keyframe 이 2장 이상 필요
	ErrInsufficientFrames = errors.New("at least two frames are required to build a scene chain")
	// ErrBrokenChain - 인접 씬의 경계 프레임이 다름
	ErrBrokenChain = errors.New("scene chain is broken")
)

// Build - N 장의 keyframe 을 N-1 개의 씬으로 연결
// scenes[i] 는 frames[i] 에서 frames[i+1] 로 이어짐
func Build(frames []model.Image, newID func() string) ([]model.Scene, error) {
	if len(frames) < 2 {
		return nil, ErrInsufficientFrames
	}

	scenes := make([]model.Scene, 0, len(frames)-1)
	for i := 0; i < len(frames)-1; i++ {
		scenes = append(scenes, model.Scene{
			ID:               newID(),
			Index:            i,
			StartImage:       frames[i],
			EndImage:         frames[i+1],
			TargetResolution: model.Resolution1080p,
			Status:           model.StatusIdle,
		})
	}
	return scenes, nil
}

// Validate - 모든 씬에 이미지가 있고 경계 프레임이 공유되는지 확인
func Validate(scenes []model.Scene) error {
	for i, scene := range scenes {
		if scene.StartImage.ID == "" || scene.EndImage.ID == "" {
			return fmt.Errorf("%w: scene %d is missing an image", ErrBrokenChain, i)
		}
		if scene.Index != i {
			return fmt.Errorf("%w: scene %d has index %d", ErrBrokenChain, i, scene.Index)
		}
		if i > 0 && scenes[i-1].EndImage.ID != scene.StartImage.ID {
			return fmt.Errorf("%w: scene %d does not start where scene %d ends", ErrBrokenChain, i, i-1)
		}
	}
	return nil
}

// Frames - 체인을 다시 keyframe 목록으로 펼침
func Frames(scenes []model.Scene) []model.Image {
	if len(scenes) == 0 {
		return nil
	}
	frames := make([]model.Image, 0, len(scenes)+1)
	frames = append(frames, scenes[0].StartImage)
	for _, scene := range scenes {
		frames = append(frames, scene.EndImage)
	}
	return frames
}
