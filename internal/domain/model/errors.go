package model

import "errors"

// Sentinel kinds for validation at the ingestion boundary.
var (
	ErrUnknownGender  = errors.New("unknown gender")
	ErrUnknownType    = errors.New("unknown intervention type")
	ErrUnknownMode    = errors.New("unknown attendance mode")
	ErrUnknownRole    = errors.New("unknown role")
	ErrMissingField   = errors.New("missing required field")
	ErrRoleNotPresent = errors.New("role holder is not a present attendee")
)
