package apperr

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrOutputUnwritable  = errors.New("output path is not writable")
	ErrConversionRunning = errors.New("a conversion is already running")
)
