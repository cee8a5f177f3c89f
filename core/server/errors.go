package server

import "errors"

var (
	ErrMissingAddress       = errors.New("server address is required")
	ErrFailedLoadCert       = errors.New("failed to load certificate")
	ErrServerAlreadyRunning = errors.New("server is already running")
	ErrServerNotRunning     = errors.New("server is not running")
	ErrListen               = errors.New("failed to listen")
	ErrShutdown             = errors.New("server shutdown error")
	ErrHealthcheckFailed    = errors.New("healthcheck failed")
)
