package common

import (
	"fmt"
	"net/http"
)

// StatusError is a non-OK daemon response. The status code carries the
// error kind across the wire; Interrupted maps to 503 and is the only kind
// worth retrying.
type StatusError struct {
	code int
	body string
}

func NewStatusError(code int, body string) StatusError {
	return StatusError{code: code, body: body}
}

func (e StatusError) Error() string {
	if len(e.body) == 0 {
		return fmt.Sprintf("status %d", e.code)
	}
	return fmt.Sprintf("status %d: %s", e.code, e.body)
}

func (e StatusError) Code() int    { return e.code }
func (e StatusError) Body() string { return e.body }

func (e StatusError) IsInterrupted() bool {
	return e.code == http.StatusServiceUnavailable
}
