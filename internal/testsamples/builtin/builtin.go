// Package builtin declares a controller using built-in input and output
// types.
package builtin

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"
)

// BuiltinController illustrates use of built-in types.
//
//apimda:controller /builtin
type BuiltinController struct{}

// Raw is a handler working with the native net/http request and response.
//
//apimda:get /raw
//apimda:request r
func (c *BuiltinController) Raw(_ context.Context, r *http.Request) (*http.Response, error) {
	return &http.Response{
		StatusCode: http.StatusAccepted,
		Header:     http.Header{"X-Raw-Path": {r.URL.Path}},
		Body:       io.NopCloser(strings.NewReader("raw")),
	}, nil
}

// StringPrimitive echoes a string.
//
//apimda:get /stringPrimitive
//apimda:query param
func (c *BuiltinController) StringPrimitive(_ context.Context, param string) (string, error) {
	return param, nil
}

// NumberPrimitive echoes a number.
//
//apimda:get /numberPrimitive
//apimda:query param
func (c *BuiltinController) NumberPrimitive(_ context.Context, param float64) (float64, error) {
	return param, nil
}

// IntegerPrimitive echoes an integer.
//
//apimda:get /integerPrimitive
//apimda:query param
func (c *BuiltinController) IntegerPrimitive(_ context.Context, param int) (int64, error) {
	return int64(param), nil
}

// BooleanPrimitive echoes a boolean.
//
//apimda:get /booleanPrimitive
//apimda:query param
func (c *BuiltinController) BooleanPrimitive(_ context.Context, param bool) (bool, error) {
	return param, nil
}

// OptionalAndVoid takes an optional parameter and returns nothing.
//
//apimda:get /optionalAndVoid
//apimda:query param
func (c *BuiltinController) OptionalAndVoid(_ context.Context, param *string) error {
	return nil
}

// Binary echoes a binary body.
//
//apimda:post /binary
//apimda:produces image/png
//apimda:body data image/png
func (c *BuiltinController) Binary(_ context.Context, data []byte) ([]byte, error) {
	return data, nil
}

// Dates takes and returns a timestamp.
//
//apimda:get /dates
//apimda:query param
func (c *BuiltinController) Dates(_ context.Context, param time.Time) (time.Time, error) {
	return param.UTC(), nil
}

// Arrays returns a list. Lists are not supported as inputs.
//
//apimda:get /arrays
func (c *BuiltinController) Arrays(context.Context) ([]string, error) {
	return []string{"one", "two"}, nil
}
