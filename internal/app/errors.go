package service

import "errors"

// Sentinel kinds for service errors.
var (
	ErrNotStarted = errors.New("service not started")
	ErrNotReady   = errors.New("run has not finished")
	ErrUnknownDay = errors.New("day not analysed in run")
)
