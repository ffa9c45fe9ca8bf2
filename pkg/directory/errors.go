package directory

import "errors"

var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("directory: not found")

	// ErrAlreadyExists indicates a uniqueness constraint was violated.
	ErrAlreadyExists = errors.New("directory: already exists")

	// ErrInvalidInput indicates the request is structurally invalid, for
	// example a circular OU hierarchy.
	ErrInvalidInput = errors.New("directory: invalid input")

	// ErrSerialization indicates an entity could not be encoded or decoded.
	ErrSerialization = errors.New("directory: serialization error")
)
