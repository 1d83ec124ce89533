// Package nethttp serves a runtime App over net/http.
package nethttp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/bjaus/apimda"
	"github.com/bjaus/apimda/runtime"
)

// ErrNoFactory is returned by New when a controller has no factory.
var ErrNoFactory = errors.New("no factory for controller")

// DefaultBodyLimit is the largest request body read when no limit is set.
const DefaultBodyLimit int64 = 10 << 20

// Factories maps controller names to the factory that builds them.
type Factories map[string]runtime.Factory

// Option configures a Handler.
type Option func(*options)

type options struct {
	logger     logrus.FieldLogger
	env        runtime.Env
	bodyLimit  int64
	rateLimit  *RateLimitConfig
	registerer prometheus.Registerer
}

// WithLogger sets the logger for request and error logs.
func WithLogger(log logrus.FieldLogger) Option {
	return func(o *options) { o.logger = log }
}

// WithEnv sets where controller constructor values are read from. The
// default is the process environment.
func WithEnv(env runtime.Env) Option {
	return func(o *options) { o.env = env }
}

// WithBodyLimit caps the size of request bodies, after decompression.
func WithBodyLimit(n int64) Option {
	return func(o *options) { o.bodyLimit = n }
}

// WithRateLimit enables per-client rate limiting.
func WithRateLimit(cfg RateLimitConfig) Option {
	return func(o *options) { o.rateLimit = &cfg }
}

// WithRegisterer registers request metrics with reg. Without it no metrics
// are recorded.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

type endpoint struct {
	controller string
	route      *runtime.Route
	manager    *runtime.Manager
}

// Handler is an http.Handler dispatching requests to controller methods.
type Handler struct {
	mux       chi.Router
	routes    *runtime.Router[*endpoint]
	validator *runtime.Validator
	log       logrus.FieldLogger
	metrics   *metrics
	bodyLimit int64
}

// New returns a Handler serving every route of app. factories must hold a
// factory for each controller. Controllers are constructed on their first
// request.
func New(app *runtime.App, factories Factories, opts ...Option) (*Handler, error) {
	o := options{bodyLimit: DefaultBodyLimit}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		o.logger = discard
	}

	validator, err := runtime.NewValidator(app.Schemas)
	if err != nil {
		return nil, fmt.Errorf("building validator: %w", err)
	}

	h := &Handler{
		routes:    runtime.NewRouter[*endpoint](),
		validator: validator,
		log:       o.logger.WithField("component", "nethttp"),
		bodyLimit: o.bodyLimit,
	}
	if o.registerer != nil {
		h.metrics = newMetrics(o.registerer)
	}

	for _, c := range app.Controllers {
		factory, ok := factories[c.Name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNoFactory, c.Name)
		}
		manager := runtime.NewManager(c, factory, o.env)
		for _, r := range c.Routes {
			h.routes.Add(r.Method, r.Path, &endpoint{controller: c.Name, route: r, manager: manager})
		}
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(RequestID)
	r.Use(Logger(h.log))
	r.Use(Recovery(h.log))
	if o.rateLimit != nil {
		r.Use(RateLimit(*o.rateLimit))
	}
	r.Use(Decompress)
	r.HandleFunc("/*", h.serve)
	h.mux = r

	h.log.WithField("routes", h.routes.Len()).Debug("Handler ready")
	return h, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

const unmatched = "unmatched"

func (h *Handler) serve(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	m, ok := h.routes.Match(r.Method, r.URL.EscapedPath())
	if !ok {
		status := writeResponse(w, runtime.ErrorResponse(&apimda.HTTPError{Status: http.StatusNotFound}))
		h.metrics.observe(r.Method, unmatched, status, start)
		return
	}

	var resp *runtime.Response
	if params, err := unescapeParams(m.Params); err != nil {
		resp = runtime.ErrorResponse(err)
	} else {
		resp = h.dispatch(r, m.Value, params)
	}
	status := writeResponse(w, resp)
	h.metrics.observe(r.Method, m.Template, status, start)
}

// unescapeParams decodes path variables captured from the escaped path, so
// an encoded slash stays inside its variable.
func unescapeParams(params map[string]string) (map[string]string, *apimda.HTTPError) {
	out := make(map[string]string, len(params))
	for name, v := range params {
		decoded, err := url.PathUnescape(v)
		if err != nil {
			return nil, &apimda.HTTPError{
				Status:  http.StatusBadRequest,
				Message: fmt.Sprintf("Malformed path variable %s: %v", name, err),
			}
		}
		out[name] = decoded
	}
	return out, nil
}

func (h *Handler) dispatch(r *http.Request, ep *endpoint, params map[string]string) *runtime.Response {
	log := h.log.WithFields(logrus.Fields{
		"controller": ep.controller,
		"handler":    ep.route.Handler,
		"request_id": GetRequestID(r.Context()),
	})

	instance, err := ep.manager.Instance(context.WithoutCancel(r.Context()))
	if err != nil {
		log.WithError(err).Error("Controller unavailable")
		return serverError()
	}

	ex := newExtractor(r, params, h.bodyLimit)
	resp, err := runtime.Dispatch(r.Context(), ex, ep.route, instance, h.validator)
	if err != nil {
		log.WithError(err).Error("Dispatch failed")
		return serverError()
	}
	return resp
}

func serverError() *runtime.Response {
	return runtime.ErrorResponse(&apimda.HTTPError{Status: http.StatusInternalServerError})
}

// writeResponse writes resp and returns the status sent. Successful
// responses default to JSON and error responses to plain text.
func writeResponse(w http.ResponseWriter, resp *runtime.Response) int {
	hdr := w.Header()
	for k, v := range resp.Headers {
		hdr.Set(k, v)
	}
	if hdr.Get("Content-Type") == "" {
		if resp.StatusCode >= http.StatusBadRequest {
			hdr.Set("Content-Type", "text/plain; charset=utf-8")
		} else {
			hdr.Set("Content-Type", "application/json")
		}
	}
	for name, value := range resp.Cookies {
		http.SetCookie(w, &http.Cookie{Name: name, Value: value, Path: "/"})
	}

	w.WriteHeader(resp.StatusCode)
	if len(resp.Body) > 0 {
		//nolint:errcheck,gosec // the client is gone if this fails
		w.Write(resp.Body)
	}
	return resp.StatusCode
}
