package core

import (
	"errors"
)

var (
	ErrSwapchainBooting       = errors.New("swapchain resized or recreated, booting")
	ErrCreationFailed         = errors.New("gpu object creation failed")
	ErrShaderCompile          = errors.New("shader compilation failed")
	ErrAssetNotFound          = errors.New("asset not found")
	ErrAssetLoad              = errors.New("asset could not be loaded")
	ErrPipelineNotInitialized = errors.New("render pipeline is not initialized")
	ErrInvalidHandle          = errors.New("invalid or released handle")
	ErrInvalidMode            = errors.New("invalid pipeline mode")
	ErrFrameSkipped           = errors.New("frame skipped")
	ErrUnknown                = errors.New("unknown")
)
