package viewer

import "errors"

var (
	// ErrLoad means the selected layer has no entry or its data could not be read.
	ErrLoad = errors.New("viewer: load failed")
	// ErrOrder means a step ran before the steps it depends on completed.
	ErrOrder = errors.New("viewer: step out of order")
	// ErrStale means the activation was superseded before it could commit.
	ErrStale = errors.New("viewer: activation superseded")
	// ErrParams means a parameter update was rejected.
	ErrParams = errors.New("viewer: invalid parameters")
)
