package blocktable

import "errors"

var (
	// ErrInvalidConfig is returned when a table is built from an empty
	// capacity list or one containing a non-positive capacity.
	ErrInvalidConfig = errors.New("blocktable: invalid configuration")

	// ErrNoFit is returned when no free block is large enough for a request.
	ErrNoFit = errors.New("blocktable: no free block fits request")

	// ErrNotFound is returned when deallocating an owner that holds no block.
	ErrNotFound = errors.New("blocktable: owner not found")

	// ErrAlreadyAllocated is returned under PolicyStrict when the owner
	// already holds a block.
	ErrAlreadyAllocated = errors.New("blocktable: owner already holds a block")

	// ErrInvalidRequest is returned for an empty owner or a non-positive size.
	ErrInvalidRequest = errors.New("blocktable: invalid request")
)

// ErrorKind maps a table error to a short stable name used for stats and
// telemetry attributes. Unknown errors map to "unknown".
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNoFit):
		return "no_fit"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrAlreadyAllocated):
		return "already_allocated"
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	case errors.Is(err, ErrInvalidConfig):
		return "invalid_config"
	default:
		return "unknown"
	}
}
