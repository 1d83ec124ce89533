package nethttp

import (
	"compress/gzip"
	"compress/zlib"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

type requestIDKey struct{}

// RequestID assigns each request an id, taken from the X-Request-ID
// header when the client sent one. The id is stored in the request context
// and echoed on the response.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}

		ctx := context.WithValue(r.Context(), requestIDKey{}, id)
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID returns the request id stored in ctx.
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}

// responseRecorder captures the status code and size of a response.
type responseRecorder struct {
	http.ResponseWriter
	status int
	size   int
}

func (r *responseRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	n, err := r.ResponseWriter.Write(b)
	r.size += n
	return n, err
}

// Unwrap returns the underlying ResponseWriter (supports http.ResponseController).
func (r *responseRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// Logger logs one line per request.
func Logger(log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			fields := logrus.Fields{
				"method":  r.Method,
				"path":    r.URL.Path,
				"status":  rec.status,
				"latency": time.Since(start),
				"size":    rec.size,
				"remote":  r.RemoteAddr,
			}
			if id := GetRequestID(r.Context()); id != "" {
				fields["request_id"] = id
			}
			log.WithFields(fields).Info("Request")
		})
	}
}

// Recovery turns a panic into a 500 response.
func Recovery(log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				//nolint:errorlint // http.ErrAbortHandler is compared by identity
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				log.WithFields(logrus.Fields{
					"panic":      rec,
					"stack":      string(debug.Stack()),
					"method":     r.Method,
					"path":       r.URL.Path,
					"request_id": GetRequestID(r.Context()),
				}).Error("Panic recovered")
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			}()
			next.ServeHTTP(w, r)
		})
	}
}

var errBadEncoding = errors.New("bad content encoding")

// Decompress decodes gzip and deflate request bodies according to
// Content-Encoding and removes the header once the body is plain. Other
// encodings are rejected with 415.
func Decompress(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		encoding := strings.ToLower(strings.TrimSpace(r.Header.Get("Content-Encoding")))
		switch encoding {
		case "":
			next.ServeHTTP(w, r)
			return
		case "identity":
			r.Header.Del("Content-Encoding")
			next.ServeHTTP(w, r)
			return
		case "gzip", "deflate":
		default:
			http.Error(w, http.StatusText(http.StatusUnsupportedMediaType), http.StatusUnsupportedMediaType)
			return
		}

		if r.Body != nil && r.Body != http.NoBody {
			r.Body = &decodingBody{src: r.Body, encoding: encoding}
		}
		r.Header.Del("Content-Encoding")
		r.Header.Del("Content-Length")
		r.ContentLength = -1
		next.ServeHTTP(w, r)
	})
}

// decodingBody opens its decoder on first read, so a malformed stream is
// reported to the reader of the body.
type decodingBody struct {
	src      io.ReadCloser
	encoding string
	dec      io.ReadCloser
}

func (b *decodingBody) Read(p []byte) (int, error) {
	if b.dec == nil {
		var err error
		if b.encoding == "gzip" {
			b.dec, err = gzip.NewReader(b.src)
		} else {
			b.dec, err = zlib.NewReader(b.src)
		}
		if err != nil {
			b.dec = nil
			return 0, fmt.Errorf("%w: %w", errBadEncoding, err)
		}
	}
	n, err := b.dec.Read(p)
	if err != nil && !errors.Is(err, io.EOF) {
		return n, fmt.Errorf("%w: %w", errBadEncoding, err)
	}
	return n, err
}

func (b *decodingBody) Close() error {
	if b.dec != nil {
		//nolint:errcheck // the source close error is the one that matters
		b.dec.Close()
	}
	return b.src.Close()
}
