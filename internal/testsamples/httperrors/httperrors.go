// Package httperrors declares a controller whose route raises HTTP errors
// through a variety of call paths.
package httperrors

import (
	"context"
	"errors"
	"net/http"

	"github.com/bjaus/apimda"
)

// HTTPErrorController raises errors directly, through helpers and through
// calls the build step cannot follow.
//
//apimda:controller /httpError
type HTTPErrorController struct {
	more   moreErrors
	raiser errorRaiser
}

// NewHTTPErrorController returns a controller wired to its helpers.
func NewHTTPErrorController() *HTTPErrorController {
	m := moreErrors{}
	return &HTTPErrorController{more: m, raiser: m}
}

func missing() error {
	return apimda.Error(http.StatusNotFound)
}

func missingAfter(n int) error {
	if n > 0 {
		return missingAfter(n - 1)
	}
	return missing()
}

func notAcceptable() func() error {
	return func() error {
		return apimda.Errorf(http.StatusNotAcceptable, "cannot produce %s", "xml")
	}
}

func (HTTPErrorController) forbidden() error {
	return apimda.Error(http.StatusForbidden, "forbidden")
}

func (c *HTTPErrorController) unauthorized() error {
	return apimda.Error(401)
}

// FindAllTheErrors raises a different error for each value of str.
//
//apimda:get
//apimda:query str
func (c *HTTPErrorController) FindAllTheErrors(_ context.Context, str string) error {
	switch str {
	case "unauthorized":
		return c.unauthorized()
	case "payment":
		return &apimda.HTTPError{Status: http.StatusPaymentRequired}
	case "forbidden":
		return HTTPErrorController.forbidden(*c)
	case "missing":
		return missing()
	case "retry":
		return missingAfter(3)
	case "method":
		return methodNotAllowed()
	case "acceptable":
		return notAcceptable()()
	case "proxy":
		return c.more.proxyAuthRequired()
	case "timeout":
		return c.more.requestTimeout()
	case "conflict":
		return c.more.conflict()
	case "gone":
		return c.raiser.raise()
	}
	return errors.New("unexpected")
}
