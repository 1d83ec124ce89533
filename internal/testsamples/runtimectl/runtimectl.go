// Package runtimectl declares a controller used to exercise request
// dispatch end to end.
package runtimectl

import (
	"context"
	"net/http"

	"github.com/bjaus/apimda"
)

// OptionalEmail carries an email address that may be omitted.
type OptionalEmail struct {
	//apimda:format email
	Email *string `json:"email,omitempty"`
}

// GenericResult pairs a value with a count.
type GenericResult[T any] struct {
	Value T   `json:"value"`
	Count int `json:"count"`
}

// EmailResult is a concrete GenericResult.
type EmailResult GenericResult[OptionalEmail]

// UUID is a textual universally unique identifier.
//
//apimda:format uuid
type UUID string

// Values returned by the routes, exposed for assertions.
var (
	ResultEmail   = "result@example.com"
	ResultHeaders = map[string]string{"X-Result": "custom"}
	ResultCookies = map[string]string{"session": "abc123"}
	ResultBuffer  = []byte{0x00, 0x01, 0xfe, 0xff}
)

// RuntimeTestController exposes routes covering initialization, input
// conversion, validation and result shaping.
//
//apimda:controller
type RuntimeTestController struct {
	initialized bool
}

// Init marks the controller initialized.
//
//apimda:init
func (c *RuntimeTestController) Init(context.Context) error {
	c.initialized = true
	return nil
}

//apimda:get /testInitMethod
func (c *RuntimeTestController) TestInitMethod(context.Context) (bool, error) {
	return c.initialized, nil
}

//apimda:get /testOptionalQuery
//apimda:query id
func (c *RuntimeTestController) TestOptionalQuery(_ context.Context, id *UUID) (string, error) {
	if id == nil {
		return "", nil
	}
	return string(*id), nil
}

//apimda:post /testBodyValidation
//apimda:body body
func (c *RuntimeTestController) TestBodyValidation(_ context.Context, body OptionalEmail) (OptionalEmail, error) {
	return body, nil
}

//apimda:post /testBinaryHandling
//apimda:body data application/octet-stream
//apimda:produces application/octet-stream
func (c *RuntimeTestController) TestBinaryHandling(_ context.Context, data []byte) ([]byte, error) {
	return data, nil
}

//apimda:get /items/{id}
//apimda:path id
func (c *RuntimeTestController) Item(_ context.Context, id int) (int, error) {
	if id == 0 {
		return 0, apimda.Error(http.StatusNotFound, "no item 0")
	}
	return id * 2, nil
}

//apimda:get /files/{name}
//apimda:path name
//apimda:produces text/plain
func (c *RuntimeTestController) File(_ context.Context, name string) (string, error) {
	return "file " + name, nil
}

//apimda:get /echo
//apimda:header lang Accept-Language
//apimda:cookie session session
//apimda:produces text/plain
func (c *RuntimeTestController) Echo(_ context.Context, lang, session string) (string, error) {
	return lang + "/" + session, nil
}

//apimda:get /apimdaResult
func (c *RuntimeTestController) ApimdaResult(context.Context) (apimda.Result[OptionalEmail], error) {
	return apimda.Result[OptionalEmail]{
		Status:  http.StatusCreated,
		Headers: ResultHeaders,
		Cookies: ResultCookies,
		Body:    OptionalEmail{Email: &ResultEmail},
	}, nil
}

//apimda:get /apimdaResultWithBuffer
//apimda:produces application/octet-stream
func (c *RuntimeTestController) ApimdaResultWithBuffer(context.Context) (apimda.Result[[]byte], error) {
	return apimda.Result[[]byte]{Body: ResultBuffer}, nil
}

//apimda:get /genericResult
func (c *RuntimeTestController) GenericResult(context.Context) (EmailResult, error) {
	return EmailResult{Value: OptionalEmail{Email: &ResultEmail}, Count: 1}, nil
}
