package weights

import "errors"

// Common errors.
var (
	ErrChecksumMismatch = errors.New("checksum mismatch: file may be corrupted")
	ErrBadStatus        = errors.New("unexpected HTTP status")
	ErrInvalidHeader    = errors.New("invalid checkpoint header")
	ErrUnsupportedDType = errors.New("unsupported tensor dtype")
	ErrOutOfBounds      = errors.New("tensor extends beyond data section")
)
