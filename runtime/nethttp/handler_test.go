package nethttp_test

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bjaus/apimda/internal/testsamples/runtimectl"
	"github.com/bjaus/apimda/runtime"
	"github.com/bjaus/apimda/runtime/nethttp"
	"github.com/bjaus/apimda/scan"
)

var runtimeApp = sync.OnceValues(func() (*runtime.App, error) {
	app, err := scan.Extract(context.Background(), scan.Config{},
		"github.com/bjaus/apimda/internal/testsamples/runtimectl")
	if err != nil {
		return nil, err
	}
	return app.Runtime(), nil
})

func newHandler(t *testing.T, opts ...nethttp.Option) *nethttp.Handler {
	t.Helper()
	app, err := runtimeApp()
	require.NoError(t, err)

	h, err := nethttp.New(app, nethttp.Factories{
		"RuntimeTestController": runtime.Static(&runtimectl.RuntimeTestController{}),
	}, opts...)
	require.NoError(t, err)
	return h
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandler_runtimeController(t *testing.T) {
	t.Parallel()
	h := newHandler(t)

	tests := map[string]struct {
		method      string
		target      string
		body        string
		header      http.Header
		status      int
		respBody    string
		contentType string
	}{
		"init method ran": {
			method: http.MethodGet, target: "/testInitMethod",
			status: http.StatusOK, respBody: "true", contentType: "application/json",
		},
		"optional query absent": {
			method: http.MethodGet, target: "/testOptionalQuery",
			status: http.StatusOK, respBody: "", contentType: "application/json",
		},
		"optional query present": {
			method: http.MethodGet, target: "/testOptionalQuery?id=7d444840-9dc0-11d1-b245-5ffdce74fad2",
			status: http.StatusOK, respBody: "7d444840-9dc0-11d1-b245-5ffdce74fad2",
		},
		"query format violation": {
			method: http.MethodGet, target: "/testOptionalQuery?id=nope",
			status: http.StatusBadRequest, contentType: "text/plain; charset=utf-8",
		},
		"multi value query": {
			method: http.MethodGet, target: "/testOptionalQuery?id=a&id=b",
			status: http.StatusBadRequest, respBody: "Multi value query params 'id' not supported",
		},
		"valid body": {
			method: http.MethodPost, target: "/testBodyValidation", body: `{"email":"a@example.com"}`,
			status: http.StatusOK, respBody: `{"email":"a@example.com"}`,
		},
		"empty object body": {
			method: http.MethodPost, target: "/testBodyValidation", body: `{}`,
			status: http.StatusOK, respBody: `{}`,
		},
		"invalid email in body": {
			method: http.MethodPost, target: "/testBodyValidation", body: `{"email":"not an email"}`,
			status: http.StatusBadRequest,
		},
		"missing body": {
			method: http.MethodPost, target: "/testBodyValidation",
			status: http.StatusBadRequest, respBody: "Required input body not provided",
		},
		"malformed body": {
			method: http.MethodPost, target: "/testBodyValidation", body: `{`,
			status: http.StatusBadRequest,
		},
		"binary round trip": {
			method: http.MethodPost, target: "/testBinaryHandling", body: "\x00\x01\xff",
			status: http.StatusOK, respBody: "\x00\x01\xff", contentType: "application/octet-stream",
		},
		"path parameter": {
			method: http.MethodGet, target: "/items/21",
			status: http.StatusOK, respBody: "42",
		},
		"path parameter not a number": {
			method: http.MethodGet, target: "/items/abc",
			status: http.StatusBadRequest, respBody: "Error parsing id as number from 'abc'",
		},
		"encoded slash in path variable": {
			method: http.MethodGet, target: "/files/a%2Fb",
			status: http.StatusOK, respBody: "file a/b", contentType: "text/plain",
		},
		"encoded space in path variable": {
			method: http.MethodGet, target: "/files/read%20me",
			status: http.StatusOK, respBody: "file read me", contentType: "text/plain",
		},
		"encoded slash in numeric variable": {
			method: http.MethodGet, target: "/items/4%2F2",
			status: http.StatusBadRequest, respBody: "Error parsing id as number from '4/2'",
		},
		"handler error": {
			method: http.MethodGet, target: "/items/0",
			status: http.StatusNotFound, respBody: "no item 0", contentType: "text/plain; charset=utf-8",
		},
		"header and cookie": {
			method: http.MethodGet, target: "/echo",
			header: http.Header{"Accept-Language": {"en"}, "Cookie": {"other=x; session=s1"}},
			status: http.StatusOK, respBody: "en/s1", contentType: "text/plain",
		},
		"multi value header": {
			method: http.MethodGet, target: "/echo",
			header: http.Header{"Accept-Language": {"en", "fr"}, "Cookie": {"session=s1"}},
			status: http.StatusBadRequest, respBody: "Multi value header 'Accept-Language' not supported",
		},
		"generic result": {
			method: http.MethodGet, target: "/genericResult",
			status: http.StatusOK, respBody: `{"value":{"email":"result@example.com"},"count":1}`,
		},
		"binary custom result": {
			method: http.MethodGet, target: "/apimdaResultWithBuffer",
			status: http.StatusOK, respBody: string(runtimectl.ResultBuffer), contentType: "application/octet-stream",
		},
		"no route": {
			method: http.MethodGet, target: "/nowhere",
			status: http.StatusNotFound, respBody: "Not Found", contentType: "text/plain; charset=utf-8",
		},
		"wrong method": {
			method: http.MethodDelete, target: "/testInitMethod",
			status: http.StatusNotFound, respBody: "Not Found",
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			var body io.Reader
			if tc.body != "" {
				body = strings.NewReader(tc.body)
			}
			req := httptest.NewRequest(tc.method, tc.target, body)
			for k, vs := range tc.header {
				for _, v := range vs {
					req.Header.Add(k, v)
				}
			}

			rec := serve(h, req)
			assert.Equal(t, tc.status, rec.Code)
			if tc.respBody != "" || tc.status == http.StatusOK {
				assert.Equal(t, tc.respBody, rec.Body.String())
			}
			if tc.contentType != "" {
				assert.Equal(t, tc.contentType, rec.Header().Get("Content-Type"))
			}
			assert.NotEmpty(t, rec.Header().Get(nethttp.RequestIDHeader))
		})
	}
}

func TestHandler_customResult(t *testing.T) {
	t.Parallel()
	h := newHandler(t)

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/apimdaResult", nil))
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"email":"result@example.com"}`, rec.Body.String())
	assert.Equal(t, "custom", rec.Header().Get("X-Result"))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "session", cookies[0].Name)
	assert.Equal(t, "abc123", cookies[0].Value)
}

func TestHandler_compressedBody(t *testing.T) {
	t.Parallel()
	h := newHandler(t)

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(`{"email":"z@example.com"}`))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	req := httptest.NewRequest(http.MethodPost, "/testBodyValidation", &buf)
	req.Header.Set("Content-Encoding", "gzip")
	rec := serve(h, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `{"email":"z@example.com"}`, rec.Body.String())

	bad := httptest.NewRequest(http.MethodPost, "/testBodyValidation", strings.NewReader("not gzip"))
	bad.Header.Set("Content-Encoding", "gzip")
	rec = serve(h, bad)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	unsupported := httptest.NewRequest(http.MethodPost, "/testBodyValidation", strings.NewReader("{}"))
	unsupported.Header.Set("Content-Encoding", "br")
	rec = serve(h, unsupported)
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestHandler_bodyLimit(t *testing.T) {
	t.Parallel()
	h := newHandler(t, nethttp.WithBodyLimit(8))

	rec := serve(h, httptest.NewRequest(http.MethodPost, "/testBinaryHandling", strings.NewReader("123456789")))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	rec = serve(h, httptest.NewRequest(http.MethodPost, "/testBinaryHandling", strings.NewReader("12345678")))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandler_metrics(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	h := newHandler(t, nethttp.WithRegisterer(reg))

	serve(h, httptest.NewRequest(http.MethodGet, "/items/1", nil))
	serve(h, httptest.NewRequest(http.MethodGet, "/items/2", nil))
	serve(h, httptest.NewRequest(http.MethodGet, "/missing", nil))

	families, err := reg.Gather()
	require.NoError(t, err)

	counts := map[string]float64{}
	for _, f := range families {
		if f.GetName() != "apimda_http_requests_total" {
			continue
		}
		for _, m := range f.GetMetric() {
			labels := map[string]string{}
			for _, l := range m.GetLabel() {
				labels[l.GetName()] = l.GetValue()
			}
			counts[labels["path"]+" "+labels["status"]] = m.GetCounter().GetValue()
		}
	}
	assert.Equal(t, map[string]float64{
		"/items/{id} 200": 2,
		"unmatched 404":   1,
	}, counts)
}

func TestHandler_rateLimit(t *testing.T) {
	t.Parallel()
	h := newHandler(t, nethttp.WithRateLimit(nethttp.RateLimitConfig{Rate: 0.001, Burst: 2}))

	for range 2 {
		rec := serve(h, httptest.NewRequest(http.MethodGet, "/items/1", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
	rec := serve(h, httptest.NewRequest(http.MethodGet, "/items/1", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1000", rec.Header().Get("Retry-After"))
}

type failing struct{}

func (failing) Init(context.Context) error { return errors.New("no database") }

func TestHandler_controllerFailure(t *testing.T) {
	t.Parallel()

	app := &runtime.App{Controllers: []*runtime.Controller{{
		Name:       "Failing",
		InitMethod: "Init",
		Routes: []*runtime.Route{{
			Method: "get", Path: "/fail", Handler: "Get",
			SuccessOutput: &runtime.Output{StatusCode: http.StatusOK},
		}},
	}}}
	h, err := nethttp.New(app, nethttp.Factories{"Failing": runtime.Static(failing{})})
	require.NoError(t, err)

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/fail", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Internal Server Error", rec.Body.String())
}

func TestNew_missingFactory(t *testing.T) {
	t.Parallel()
	app, err := runtimeApp()
	require.NoError(t, err)

	_, err = nethttp.New(app, nethttp.Factories{})
	require.ErrorIs(t, err, nethttp.ErrNoFactory)
}

func TestHandler_env(t *testing.T) {
	t.Parallel()

	app := &runtime.App{Controllers: []*runtime.Controller{{
		Name:         "Configured",
		CtorEnvNames: []string{"GREETING"},
		Routes: []*runtime.Route{{
			Method: "get", Path: "/greet", Handler: "Greet",
			SuccessOutput: &runtime.Output{StatusCode: http.StatusOK, MIMEType: "text/plain", TypeName: "string", Kind: runtime.KindString},
		}},
	}}}
	factory := func(config []string) (any, error) { return &greeter{greeting: config[0]}, nil }

	h, err := nethttp.New(app, nethttp.Factories{"Configured": factory},
		nethttp.WithEnv(runtime.MapEnv{"GREETING": "hello"}))
	require.NoError(t, err)

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/greet", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hello", rec.Body.String())
}

type greeter struct{ greeting string }

func (g *greeter) Greet(context.Context) (string, error) { return g.greeting, nil }

func TestUnescapeParams(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		params  map[string]string
		want    map[string]string
		wantErr string
	}{
		"encoded slash": {
			params: map[string]string{"name": "a%2Fb", "id": "7"},
			want:   map[string]string{"name": "a/b", "id": "7"},
		},
		"plus is literal": {
			params: map[string]string{"name": "a+b"},
			want:   map[string]string{"name": "a+b"},
		},
		"bad escape": {
			params:  map[string]string{"name": "%zz"},
			wantErr: "Malformed path variable name",
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got, err := nethttp.UnescapeParams(tc.params)
			if tc.wantErr != "" {
				require.NotNil(t, err)
				assert.Equal(t, http.StatusBadRequest, err.Status)
				assert.Contains(t, err.Message, tc.wantErr)
				return
			}
			require.Nil(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}
