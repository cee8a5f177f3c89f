package postmark

import "errors"

var (
	ErrInvalidConfig     = errors.New("invalid postmark alert configuration")
	ErrFailedToSendAlert = errors.New("failed to send alert email")
)
