package gateway

import "errors"

var (
	ErrUnknownBackend    = errors.New("unknown backend")
	ErrAlreadyRunning    = errors.New("gateway is already running")
	ErrHealthcheckFailed = errors.New("gateway healthcheck failed")
	ErrEmptyIdentity     = errors.New("identity is required")
)
