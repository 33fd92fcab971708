package core

import (
	"errors"
)

var (
	// ErrDeviceLost is fatal: every outstanding device object is undefined after it.
	ErrDeviceLost          = errors.New("device lost")
	ErrOutOfHostMemory     = errors.New("out of host memory")
	ErrOutOfDeviceMemory   = errors.New("out of device memory")
	ErrTooManyAttachments  = errors.New("too many color attachments")
	ErrNoCommandBuffers    = errors.New("allocator returned no command buffers")
	ErrSchedulerClosed     = errors.New("scheduler closed")
	ErrInvalidConfig       = errors.New("invalid configuration")
	ErrWatcherAlreadyClose = errors.New("config watcher already closed")
	ErrUnknown             = errors.New("unknown")
)
