package filehost

import "errors"

// Errors returned by the service. Callers classify them with errors.Is.
var (
	ErrInvalidPath        = errors.New("invalid path")
	ErrAccessDenied       = errors.New("access denied")
	ErrNotFound           = errors.New("not found")
	ErrPayloadTooLarge    = errors.New("file too large")
	ErrTooManyFiles       = errors.New("too many files")
	ErrUnsupportedType    = errors.New("unsupported file type")
	ErrDuplicateDirectory = errors.New("directory already exists")
	ErrNoFiles            = errors.New("no files uploaded")
	ErrMissingField       = errors.New("missing required field")
	ErrPasswordTooLong    = errors.New("password too long")
	ErrDuplicateID        = errors.New("duplicate file id")
	ErrDuplicatePath      = errors.New("duplicate file path")
)
