package object

import "errors"

// Sentinel errors for the store. Callers branch on these with errors.Is;
// every returned error wraps one of them or an underlying I/O error.
var (
	// ErrNotFound marks a read of a hash absent from both the loose store
	// and every known pack.
	ErrNotFound = errors.New("object not found")

	// ErrCorruptObject marks bytes under a hash that do not decode as any
	// of the four object kinds, or whose envelope is inconsistent.
	ErrCorruptObject = errors.New("corrupt object")

	// ErrCorruptPack marks a pack whose trailing checksum or structure
	// fails validation on ingest.
	ErrCorruptPack = errors.New("corrupt pack")

	// ErrInvalidCompressionLevel marks a compression level outside 0-9.
	ErrInvalidCompressionLevel = errors.New("compression level must be between 0 and 9")
)
