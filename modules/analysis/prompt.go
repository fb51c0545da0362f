package analysis

// 얼굴 참조 사진 분석 지시문
const faceInstruction = `You are a casting director preparing a continuity sheet.
Describe the person in this photo so another artist can draw the SAME face again.

[INCLUDE]
- Apparent age range and gender presentation
- Face shape, skin tone, eye shape and color, eyebrows, nose, lips
- Hair color, length, texture and style
- Distinguishing marks (freckles, moles, glasses, facial hair)

[RULES]
- One dense paragraph, no lists, no preamble
- Describe only what is visible. Do not guess names or identities.`

// 장면 참조 사진 분석 지시문
const sceneInstruction = `You are a cinematographer writing a set description for a shot list.
Describe the environment of this photo so every following shot stays in the SAME place.

[INCLUDE]
- Location type and key background elements
- Lighting direction, quality and color temperature
- Camera height, lens feel and framing
- What the subject is wearing and how they are posed

[RULES]
- One dense paragraph, no lists, no preamble
- Describe only what is visible.`

// 대사 길이 추정 지시문
const durationInstruction = `Estimate how many seconds a person needs to say the following line naturally,
including short pauses. Answer with a single number of seconds and nothing else.

Line: `
