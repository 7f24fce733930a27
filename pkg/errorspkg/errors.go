// Package errorspkg provides common app errors.
package errorspkg

import "errors"

var (
	// ErrInternal indicates internal server error.
	ErrInternal = errors.New("internal")
	// ErrMalformedBody indicates a request body that is not a JSON object.
	ErrMalformedBody = errors.New("request body must be a JSON object")
)
