package nethttp_test

import (
	"bytes"
	"compress/zlib"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bjaus/apimda/runtime/nethttp"
)

func TestRequestID(t *testing.T) {
	t.Parallel()

	var seen string
	h := nethttp.RequestID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = nethttp.GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(nethttp.RequestIDHeader, "client-id")
	rec := serve(h, req)
	assert.Equal(t, "client-id", seen)
	assert.Equal(t, "client-id", rec.Header().Get(nethttp.RequestIDHeader))

	rec = serve(h, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Len(t, seen, 36)
	assert.Equal(t, seen, rec.Header().Get(nethttp.RequestIDHeader))
}

func TestLogger(t *testing.T) {
	t.Parallel()

	log, hook := test.NewNullLogger()
	h := nethttp.RequestID(nethttp.Logger(log)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short"))
	})))

	req := httptest.NewRequest(http.MethodGet, "/brew", nil)
	req.Header.Set(nethttp.RequestIDHeader, "abc")
	serve(h, req)

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.InfoLevel, entry.Level)
	assert.Equal(t, "Request", entry.Message)
	assert.Equal(t, http.StatusTeapot, entry.Data["status"])
	assert.Equal(t, 5, entry.Data["size"])
	assert.Equal(t, "/brew", entry.Data["path"])
	assert.Equal(t, "abc", entry.Data["request_id"])
}

func TestRecovery(t *testing.T) {
	t.Parallel()

	log, hook := test.NewNullLogger()
	h := nethttp.Recovery(log)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("kaboom")
	}))

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.ErrorLevel, entry.Level)
	assert.Equal(t, "kaboom", entry.Data["panic"])
}

func TestDecompress(t *testing.T) {
	t.Parallel()

	var got string
	h := nethttp.Decompress(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		b, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		got = string(b)
		assert.Empty(t, r.Header.Get("Content-Encoding"))
	}))

	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	_, err := zw.Write([]byte("deflated"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	req := httptest.NewRequest(http.MethodPost, "/", &buf)
	req.Header.Set("Content-Encoding", "Deflate")
	rec := serve(h, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "deflated", got)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader("plain"))
	req.Header.Set("Content-Encoding", "identity")
	serve(h, req)
	assert.Equal(t, "plain", got)
}

func TestRateLimit_keyFunc(t *testing.T) {
	t.Parallel()

	h := nethttp.RateLimit(nethttp.RateLimitConfig{
		Rate:    1,
		Burst:   1,
		KeyFunc: func(r *http.Request) string { return r.Header.Get("X-Client") },
	})(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	request := func(client string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Client", client)
		return serve(h, req).Code
	}

	assert.Equal(t, http.StatusNoContent, request("a"))
	assert.Equal(t, http.StatusTooManyRequests, request("a"))
	assert.Equal(t, http.StatusNoContent, request("b"))
}
