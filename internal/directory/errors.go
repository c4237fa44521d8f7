package directory

import "errors"

// The failure taxonomy for directory calls. All three are fatal for the
// delivery being processed; retry policy belongs to the caller.
var (
	ErrNotFound     = errors.New("directory: not found")
	ErrUnauthorized = errors.New("directory: unauthorized")
	ErrUnavailable  = errors.New("directory: unavailable")
)

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}
