package scheduler

import "errors"

var (
	// ErrInvalidConfig indicates the worker configuration failed validation.
	ErrInvalidConfig = errors.New("scheduler: invalid configuration")

	// ErrNotRunning indicates an operation on a stopped worker.
	ErrNotRunning = errors.New("scheduler: not running")
)
