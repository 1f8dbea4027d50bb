package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound      = errors.New("record not found")
	ErrAlreadyExists = errors.New("record already exists")
	ErrInUse         = errors.New("record is referenced by assignments")
	ErrInvalidLimit  = errors.New("invalid limit")
	ErrClosed        = errors.New("store is closed")
)
