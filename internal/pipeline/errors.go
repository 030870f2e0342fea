package pipeline

import "errors"

// Error variables for the sync pipeline.
var (
	ErrAborted          = errors.New("sync aborted")
	ErrResolution       = errors.New("tracker lookup failed")
	ErrCreation         = errors.New("issue creation failed")
	ErrInvalidSelection = errors.New("invalid selection")
)

// ResolutionError is an epic or duplicate lookup failure. The operator
// decides whether the entry continues.
type ResolutionError struct {
	Op  string
	Err error
}

func (e *ResolutionError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *ResolutionError) Unwrap() []error {
	return []error{ErrResolution, e.Err}
}
