// Package apitest provides typed helpers for testing served controllers
// end to end.
package apitest

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"net/http/httptest"
	"testing"
)

// Client sends requests to a handler running behind an httptest.Server.
type Client struct {
	Server *httptest.Server
	// Header is added to every request.
	Header http.Header
}

// NewClient starts a test server for h. The server is closed when the test
// ends.
func NewClient(t testing.TB, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return &Client{Server: srv, Header: http.Header{}}
}

// Response holds a decoded response. Body is set for JSON responses and
// Text for everything else, including error messages.
type Response[T any] struct {
	Status  int
	Headers http.Header
	Cookies []*http.Cookie
	Body    *T
	Text    string
}

// Get sends a GET request.
func Get[Resp any](t testing.TB, c *Client, path string) *Response[Resp] {
	t.Helper()
	return do[Resp](t, c, http.MethodGet, path, nil)
}

// Post sends a POST request with a JSON body.
func Post[Req, Resp any](t testing.TB, c *Client, path string, body *Req) *Response[Resp] {
	t.Helper()
	return do[Resp](t, c, http.MethodPost, path, body)
}

// Put sends a PUT request with a JSON body.
func Put[Req, Resp any](t testing.TB, c *Client, path string, body *Req) *Response[Resp] {
	t.Helper()
	return do[Resp](t, c, http.MethodPut, path, body)
}

// Patch sends a PATCH request with a JSON body.
func Patch[Req, Resp any](t testing.TB, c *Client, path string, body *Req) *Response[Resp] {
	t.Helper()
	return do[Resp](t, c, http.MethodPatch, path, body)
}

// Delete sends a DELETE request.
func Delete[Resp any](t testing.TB, c *Client, path string) *Response[Resp] {
	t.Helper()
	return do[Resp](t, c, http.MethodDelete, path, nil)
}

// Send sends a request with a raw body and content type.
func Send[Resp any](t testing.TB, c *Client, method, path, contentType string, body []byte) *Response[Resp] {
	t.Helper()
	req := newRequest(t, c, method, path, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return send[Resp](t, req)
}

func do[Resp any](t testing.TB, c *Client, method, path string, body any) *Response[Resp] {
	t.Helper()

	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("apitest: marshal request body: %v", err)
		}
		reqBody = bytes.NewReader(b)
	}

	req := newRequest(t, c, method, path, reqBody)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return send[Resp](t, req)
}

func newRequest(t testing.TB, c *Client, method, path string, body io.Reader) *http.Request {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), method, c.Server.URL+path, body)
	if err != nil {
		t.Fatalf("apitest: create request: %v", err)
	}
	for k, v := range c.Header {
		req.Header[k] = v
	}
	return req
}

func send[Resp any](t testing.TB, req *http.Request) *Response[Resp] {
	t.Helper()

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("apitest: execute request: %v", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			t.Errorf("apitest: close body: %v", closeErr)
		}
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("apitest: read body: %v", err)
	}

	result := &Response[Resp]{
		Status:  resp.StatusCode,
		Headers: resp.Header,
		Cookies: resp.Cookies(),
	}

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if mediaType != "application/json" || len(data) == 0 {
		result.Text = string(data)
		return result
	}

	var decoded Resp
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("apitest: decode body: %v", err)
	}
	result.Body = &decoded
	return result
}
