package importer

import "errors"

// Sentinel kinds for import errors.
var (
	ErrEmptyFile     = errors.New("import file is empty")
	ErrMissingColumn = errors.New("required column missing")
	ErrInvalidRow    = errors.New("invalid row")
)
