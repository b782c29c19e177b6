package storage

import "errors"

var (
	ErrNotFound    = errors.New("storage: not found")
	ErrInvalidCID  = errors.New("storage: invalid cid")
	ErrCIDMismatch = errors.New("storage: cid mismatch")
	ErrImmutable   = errors.New("storage: immutable object mismatch")
	ErrEmpty       = errors.New("storage: empty object")
	ErrTooLarge    = errors.New("storage: object too large")
	ErrNoBackend   = errors.New("storage: no backend configured")
)

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
