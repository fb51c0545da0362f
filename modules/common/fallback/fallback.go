package fallback

import (
	"regexp"
	"strings"
)

var durationPattern = regexp.MustCompile(`\d+(?:\.\d+)?`)

// 분석 응답이 비어 있을 때 쓰는 기본 설명
const (
	FaceDescription  = "A person with natural, consistent facial features matching the face reference photo."
	SceneDescription = "A consistent real-world setting with natural lighting, matching the reference photo."
	Duration         = "8"
)

// SafeString returns a trimmed string or the provided fallback.
func SafeString(value interface{}, fallback string) string {
	if s, ok := value.(string); ok {
		s = strings.TrimSpace(s)
		if s != "" {
			return s
		}
	}
	return fallback
}

// SafeDuration returns the first number in a model reply ("approx. 4.5 seconds" -> "4.5"), or the default duration.
func SafeDuration(raw string) string {
	return SafeString(durationPattern.FindString(raw), Duration)
}

// SafeFrameCount clamps the requested keyframe total into [min, max], zero means default.
func SafeFrameCount(n, def, min, max int) int {
	if n <= 0 {
		return def
	}
	if n < min {
		return min
	}
	if n > max {
		return max
	}
	return n
}
