package backend

import (
	"errors"
	"fmt"
)

// ErrRequestFailed is the single failure kind returned by Client: transport
// errors, non-2xx responses and undecodable bodies all match it.
var ErrRequestFailed = errors.New("backend: request failed")

// RequestError carries the detail of a failed call. errors.Is(err,
// ErrRequestFailed) holds for every RequestError.
type RequestError struct {
	Op         string // client operation, e.g. "list tickets"
	Method     string
	Path       string
	StatusCode int    // 0 when no response was received
	Body       string // response body, truncated
	Err        error  // underlying transport or decode error, if any
}

func (e *RequestError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Err != nil:
		return fmt.Sprintf("backend: %s: %s %s: status %d: %v", e.Op, e.Method, e.Path, e.StatusCode, e.Err)
	case e.StatusCode != 0 && e.Body != "":
		return fmt.Sprintf("backend: %s: %s %s: status %d: %s", e.Op, e.Method, e.Path, e.StatusCode, e.Body)
	case e.StatusCode != 0:
		return fmt.Sprintf("backend: %s: %s %s: status %d", e.Op, e.Method, e.Path, e.StatusCode)
	default:
		return fmt.Sprintf("backend: %s: %s %s: %v", e.Op, e.Method, e.Path, e.Err)
	}
}

func (e *RequestError) Is(target error) bool { return target == ErrRequestFailed }

func (e *RequestError) Unwrap() error { return e.Err }

// StatusCode returns the HTTP status of a failed call, or 0 when err carries
// none (transport failure or not a backend error).
func StatusCode(err error) int {
	var re *RequestError
	if errors.As(err, &re) {
		return re.StatusCode
	}
	return 0
}
