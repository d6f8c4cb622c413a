package transfer

import (
	"fmt"
	"net/http"
)

// TransportError is a network level failure: the request never produced a status code.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ServerRejectedError is any answer other than 200 or 302.
type ServerRejectedError struct {
	StatusCode int
	Status     string
}

func (e *ServerRejectedError) Error() string {
	if e.Status == "" {
		return fmt.Sprintf("upload rejected: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("upload rejected: %s", e.Status)
}

// IsSuccessStatus reports whether the upload endpoint accepted the file.
// The file-manager answers a completed form post with 200 or a 302 redirect.
func IsSuccessStatus(code int) bool {
	return code == http.StatusOK || code == http.StatusFound
}
