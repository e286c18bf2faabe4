package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound      = errors.New("record not found")
	ErrInvalidInput  = errors.New("invalid record")
	ErrAlreadyExists = errors.New("record already exists")
)
