package domain

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrValidation         = errors.New("validation failed")
	ErrAdapterNotFound    = errors.New("exchange adapter not registered")
	ErrNotImplemented     = errors.New("operation not implemented by adapter")
	ErrLockAcquireTimeout = errors.New("lock not acquired within retry budget")
	ErrLockNotHeld        = errors.New("lock not held by this owner")
	ErrRateLimited        = errors.New("rate limited")
	ErrFeedDisconnect     = errors.New("price feed disconnected")
)
