package storyboard

import (
	"errors"

	"storyboard-server/modules/chain"
	"storyboard-server/modules/credential"
)

var (
	ErrBoardNotFound      = errors.New("board not found")
	ErrSceneNotFound      = errors.New("scene not found")
	ErrImageNotFound      = errors.New("image not found")
	ErrSceneBusy          = errors.New("scene is busy with another request")
	ErrInvalidStep        = errors.New("board is not in a state that allows this operation")
	ErrInvalidInput       = errors.New("invalid input")
	ErrGenerationFailed   = errors.New("generation failed")
	ErrInsufficientFrames = chain.ErrInsufficientFrames
	ErrCredentialRequired = credential.ErrCredentialRequired
)
