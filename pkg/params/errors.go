package params

import "errors"

var (
	// ErrRegistryFull indicates MaxFields items are registered.
	ErrRegistryFull = errors.New("parameter registry full")
	// ErrUnknownField indicates no item has the requested id.
	ErrUnknownField = errors.New("unknown parameter field")
	// ErrChunkRange indicates a chunk index past the last chunk.
	ErrChunkRange = errors.New("chunk index out of range")
)
