// Copyright (c) 2025 the batproxy contributors
// released under the MIT license

package proxy

import "errors"

// Runtime Errors
var (
	errServerShuttingDown = errors.New("Server is shutting down")
)

// Config Errors
var (
	ErrConfigEmpty            = errors.New("Config file is empty or contains no settings")
	ErrLoggerExcludeEmpty     = errors.New("Encountered logging type '-' with no type to exclude")
	ErrLoggerFilenameMissing  = errors.New("Logging configuration specifies 'file' method but 'filename' is empty")
	ErrLoggerHasNoTypes       = errors.New("Logger has no types to log")
	ErrNoListenersDefined     = errors.New("Proxy listening addresses missing")
	ErrReadBufferZero         = errors.New("Upstream read-buffer size must not be zero")
	ErrUpstreamAddressMissing = errors.New("Upstream game server address missing")
)
