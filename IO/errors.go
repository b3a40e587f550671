package IO

import "errors"

var (
	// ErrConfiguration marks split misuse, e.g. asking a test split to build its own vocabulary.
	ErrConfiguration = errors.New("dataset configuration error")
	// ErrIndexOutOfRange is returned when an example index is outside [0, Len()).
	ErrIndexOutOfRange = errors.New("example index out of range")
	// ErrMalformedRow is returned by ParseRow for rows that do not follow the corpus format.
	ErrMalformedRow = errors.New("malformed corpus row")
)
