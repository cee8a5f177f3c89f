package metrics

import "errors"

var (
	ErrEmptyName    = errors.New("metric name is required")
	ErrInvalidKind  = errors.New("metric kind must be counter or gauge")
	ErrInvalidValue = errors.New("metric value must be a finite number")
	ErrKindMismatch = errors.New("metric bucket already holds a different kind")
	ErrInvalidRange = errors.New("query range end is before its start")
)
