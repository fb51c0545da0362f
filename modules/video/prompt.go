package video

import (
	"fmt"
	"strings"

	"storyboard-server/modules/common/model"
)

// BuildPrompt - 디렉터 컨트롤 + 전역 씬 설명 + 목표 해상도로 영상 프롬프트 구성
func BuildPrompt(scene model.Scene, pc *model.PipelineContext) string {
	var b strings.Builder

	b.WriteString("Animate a smooth, continuous vertical (9:16) shot from the first frame to the last frame.\n")
	if m := strings.TrimSpace(scene.Movement); m != "" {
		b.WriteString("Camera and body movement: " + m + "\n")
	}
	if e := strings.TrimSpace(scene.Expression); e != "" {
		b.WriteString("Facial expression: " + e + "\n")
	}
	if s := strings.TrimSpace(scene.Script); s != "" {
		b.WriteString(fmt.Sprintf("The person says: \"%s\"\n", s))
	} else {
		b.WriteString("No dialogue.\n")
	}
	if g := strings.TrimSpace(pc.GlobalDescription()); g != "" {
		b.WriteString("Scene context: " + g + "\n")
	}

	resolution := scene.TargetResolution
	if !resolution.Valid() {
		resolution = model.Resolution1080p
	}
	b.WriteString(fmt.Sprintf("Target quality: %s, photorealistic, keep the face identical in every frame.", resolution))
	return b.String()
}
