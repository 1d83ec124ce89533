package httperrors

import (
	"net/http"

	"github.com/bjaus/apimda"
)

type errorRaiser interface {
	raise() error
}

type moreErrors struct{}

func methodNotAllowed() error {
	return apimda.Error(http.StatusMethodNotAllowed)
}

func (moreErrors) proxyAuthRequired() error {
	return &apimda.HTTPError{http.StatusProxyAuthRequired, "proxy"}
}

// The status is only known at run time, so it is not documented.
func newHTTPError(code int) error {
	return apimda.Error(code)
}

func (moreErrors) requestTimeout() error {
	return newHTTPError(http.StatusRequestTimeout)
}

func (moreErrors) conflict() error {
	return newHTTPError(http.StatusConflict)
}

// Reached only through errorRaiser.
func (moreErrors) raise() error {
	return apimda.Error(http.StatusGone)
}
