package recall

import "errors"

var (
	// ErrIndexOutOfRange is returned when a cycle, presentation, or choice
	// names a unit outside [0, N). State is left untouched.
	ErrIndexOutOfRange = errors.New("unit index out of range")

	// ErrAlreadyRecalled is returned when a forced choice names a unit that
	// was already recalled in the current episode.
	ErrAlreadyRecalled = errors.New("unit already recalled in this episode")

	// ErrInvalidConfig wraps every construction-time parameter rejection.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrZeroContextInput is returned when a contextual input has zero length
	// and cannot be normalized.
	ErrZeroContextInput = errors.New("contextual input has zero norm")

	// ErrShapeMismatch is returned for non-square connectivity or vectors of
	// the wrong length.
	ErrShapeMismatch = errors.New("shape mismatch")
)
