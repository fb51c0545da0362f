package frames

import (
	"fmt"
	"strings"

	"storyboard-server/modules/common/model"
)

const defaultPose = "mirror the reference pose"

// poseOrDefault - 비어 있으면 참조 포즈 유지
func poseOrDefault(pose string) string {
	if p := strings.TrimSpace(pose); p != "" {
		return p
	}
	return defaultPose
}

// buildFrameInstruction - keyframe 생성 지시문 (배경/조명/카메라, 얼굴, 포즈 고정)
func buildFrameInstruction(pc *model.PipelineContext, index, total int) string {
	var b strings.Builder

	b.WriteString("[STORYBOARD KEYFRAME]\n")
	b.WriteString(fmt.Sprintf("Create keyframe %d of %d for one continuous vertical (9:16) shot.\n", index+1, total))
	b.WriteString("Image 1 is the SCENE reference. Image 2 is the FACE reference.\n\n")

	b.WriteString("[LOCK 1 - SET]\n")
	b.WriteString("Same background, same lighting, same camera position and lens as the scene reference.\n")
	b.WriteString("Scene: " + pc.SceneDescription + "\n\n")

	b.WriteString("[LOCK 2 - IDENTITY]\n")
	b.WriteString("The person must have EXACTLY the face of the face reference. No changes allowed.\n")
	b.WriteString("Face: " + pc.FaceDescription + "\n\n")

	b.WriteString("[LOCK 3 - POSE]\n")
	b.WriteString("Pose: " + poseOrDefault(pc.PoseConstraint) + "\n")
	b.WriteString("Allow only a small natural change of expression or gesture compared to the previous moment.\n\n")

	b.WriteString("Photorealistic. Natural human proportions. No text, no borders.")
	return b.String()
}

// buildRegenerateInstruction - 씬 끝 프레임 재생성 지시문
func buildRegenerateInstruction(pc *model.PipelineContext, action string) string {
	var b strings.Builder

	b.WriteString("[STORYBOARD KEYFRAME - DIRECTED ACTION]\n")
	b.WriteString("Image 1 is the SCENE reference. Image 2 is the FACE reference.\n")
	b.WriteString("Show the person at the END of this action: " + strings.TrimSpace(action) + "\n\n")

	b.WriteString("[LOCKS]\n")
	b.WriteString("- Same background, lighting, camera position and lens as the scene reference.\n")
	b.WriteString("- EXACTLY the face of the face reference.\n")
	b.WriteString("- Pose constraint: " + poseOrDefault(pc.PoseConstraint) + "\n\n")

	b.WriteString("Scene: " + pc.SceneDescription + "\n")
	b.WriteString("Face: " + pc.FaceDescription + "\n\n")
	b.WriteString("Vertical 9:16. Photorealistic. No text, no borders.")
	return b.String()
}
