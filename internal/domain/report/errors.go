package report

import "errors"

// Sentinel kinds for report errors.
var (
	ErrUnknownKind = errors.New("unknown export kind")
	ErrFieldCount  = errors.New("record field count does not match header")
)
