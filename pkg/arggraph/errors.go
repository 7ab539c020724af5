package arggraph

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownNodeType     = errors.New("unknown node type")
	ErrUnknownRelationType = errors.New("unknown relation type")
	ErrUnresolvedEndpoint  = errors.New("unresolved edge endpoint")

	ErrMalformedText   = errors.New("text cannot be embedded as character data")
	ErrInvalidSnapshot = errors.New("invalid graph snapshot")
)

// MappingError reports a graph value that has no counterpart in the arggraph
// vocabulary. It is scoped to one export: batch exports skip the offending
// target and keep going, single exports hand it to the caller.
type MappingError struct {
	// Key is the node key or "source->target#conn" edge reference.
	Key string
	// Value is the raw value that could not be mapped.
	Value string
	Err   error
}

func (e *MappingError) Error() string {
	return fmt.Sprintf("%v: %q (at %s)", e.Err, e.Value, e.Key)
}

func (e *MappingError) Unwrap() error {
	return e.Err
}

// IsMappingError reports whether err carries a *MappingError.
func IsMappingError(err error) bool {
	var mErr *MappingError
	return errors.As(err, &mErr)
}
