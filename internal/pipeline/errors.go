package pipeline

import "fmt"

type Kind string

const (
	KindInvalidURL Kind = "invalid_url"
	KindTimeout    Kind = "upstream_timeout"
	KindUpstream   Kind = "upstream_error"
)

// Error is a pipeline-level failure carrying the offending URL. All
// failures are scoped to the request that triggered them.
type Error struct {
	Kind Kind
	URL  string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.URL, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
