package apimda

import (
	"errors"
	"fmt"
	"net/http"
)

// StatusCoder is implemented by errors or results that carry an HTTP status code.
type StatusCoder interface {
	StatusCode() int
}

// HTTPError is the error a handler raises to produce an error response.
// The build step records every constant Status a route can raise as one of
// its documented error responses.
type HTTPError struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

// Error returns the error message, or the standard status text when the
// message is empty.
func (e *HTTPError) Error() string {
	if e.Message == "" {
		return http.StatusText(e.Status)
	}
	return e.Message
}

// StatusCode returns the HTTP status code.
func (e *HTTPError) StatusCode() int { return e.Status }

// Error returns an error with the given HTTP status code. The message
// defaults to the standard status text.
func Error(status int, message ...string) error {
	e := &HTTPError{Status: status}
	if len(message) > 0 {
		e.Message = message[0]
	}
	return e
}

// Errorf returns a formatted error with the given HTTP status code.
func Errorf(status int, format string, args ...any) error {
	return &HTTPError{Status: status, Message: fmt.Sprintf(format, args...)}
}

// AsHTTPError reports whether err wraps an *HTTPError and returns it.
func AsHTTPError(err error) (*HTTPError, bool) {
	var he *HTTPError
	if errors.As(err, &he) {
		return he, true
	}
	return nil, false
}

// ErrorStatus extracts the HTTP status code from an error. Returns
// http.StatusInternalServerError if the error does not implement StatusCoder.
func ErrorStatus(err error) int {
	var sc StatusCoder
	if errors.As(err, &sc) {
		return sc.StatusCode()
	}
	return http.StatusInternalServerError
}
