package liveness

import "errors"

var (
	ErrRegistryNil       = errors.New("registry cannot be nil")
	ErrBroadcasterNil    = errors.New("broadcaster cannot be nil")
	ErrAlreadyStarted    = errors.New("liveness monitor already started")
	ErrNotStarted        = errors.New("liveness monitor not started")
	ErrHealthcheckFailed = errors.New("liveness monitor healthcheck failed")
	ErrMonitorNotRunning = errors.New("liveness monitor is not running")
)
