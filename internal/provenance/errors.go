package provenance

import (
	"errors"
	"fmt"
)

var (
	// ErrNoFileIO is returned when a run read nothing, wrote nothing and
	// declared no manual inputs.
	ErrNoFileIO = errors.New("no file I/O detected")
	// ErrStoreWrite wraps a failed metadata append. The crate and the
	// entity index are unchanged when it is returned.
	ErrStoreWrite = errors.New("failed to append provenance to crate")
	// ErrInvariant marks an internal consistency failure.
	ErrInvariant = errors.New("provenance invariant violated")
)

// Warning is a per-file issue that did not stop tracking.
type Warning struct {
	Path    string
	Message string
}

func (w Warning) String() string {
	if w.Path == "" {
		return w.Message
	}
	return fmt.Sprintf("%s: %s", w.Message, w.Path)
}
