package rag

import (
	"errors"
	"fmt"
)

// ErrUnknownCollection is returned by Registry.Lookup when the requested
// collection does not exist even after a refresh. It is a caller input error
// and must be surfaced to the user distinctly, never absorbed into a generic
// failure message.
var ErrUnknownCollection = errors.New("rag: unknown collection")

// ErrCollectionExists is returned when a collection creation names a
// collection that already exists in the store.
var ErrCollectionExists = errors.New("rag: collection already exists")

// ErrCreationInProgress is returned by Registry.RegisterNew when another
// creation for the same collection name has not yet completed.
var ErrCreationInProgress = errors.New("rag: collection creation already in progress")

// PartialCreationError reports a collection creation that failed mid-way.
// The store guarantees the half-built collection was rolled back before this
// error is returned, so the name remains free for a retry.
type PartialCreationError struct {
	// Collection is the name of the collection that failed to build.
	Collection string
	// Err is the underlying failure.
	Err error
}

func (e *PartialCreationError) Error() string {
	return fmt.Sprintf("rag: creation of collection %q failed and was rolled back: %v", e.Collection, e.Err)
}

func (e *PartialCreationError) Unwrap() error { return e.Err }
