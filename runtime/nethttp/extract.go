package nethttp

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/bjaus/apimda"
	"github.com/bjaus/apimda/runtime"
)

// extractor reads route inputs from an *http.Request.
type extractor struct {
	req       *http.Request
	params    map[string]string
	bodyLimit int64
}

func newExtractor(r *http.Request, params map[string]string, bodyLimit int64) *extractor {
	return &extractor{req: r, params: params, bodyLimit: bodyLimit}
}

// Extract implements runtime.Extractor.
func (e *extractor) Extract(in *runtime.Input) (runtime.Value, error) {
	switch in.Location {
	case runtime.LocationRequest:
		return runtime.StructuredValue(e.req), nil

	case runtime.LocationQuery:
		values := e.req.URL.Query()[in.Name]
		switch len(values) {
		case 0:
			return runtime.AbsentValue(), nil
		case 1:
			return runtime.TextValue(values[0]), nil
		}
		return runtime.Value{}, apimda.Errorf(http.StatusBadRequest, "Multi value query params '%s' not supported", in.Name)

	case runtime.LocationPath:
		v, ok := e.params[in.Name]
		if !ok {
			return runtime.AbsentValue(), nil
		}
		return runtime.TextValue(v), nil

	case runtime.LocationHeader:
		values := e.req.Header.Values(in.Name)
		switch len(values) {
		case 0:
			return runtime.AbsentValue(), nil
		case 1:
			return runtime.TextValue(values[0]), nil
		}
		return runtime.Value{}, apimda.Errorf(http.StatusBadRequest, "Multi value header '%s' not supported", in.Name)

	case runtime.LocationCookie:
		c, err := e.req.Cookie(in.Name)
		if err != nil {
			return runtime.AbsentValue(), nil
		}
		return runtime.TextValue(c.Value), nil

	case runtime.LocationBody:
		return e.body(in)
	}
	return runtime.Value{}, fmt.Errorf("unsupported input location %q", in.Location)
}

func (e *extractor) body(in *runtime.Input) (runtime.Value, error) {
	if e.req.Body == nil || e.req.Body == http.NoBody {
		return runtime.AbsentValue(), nil
	}

	r := io.Reader(e.req.Body)
	if e.bodyLimit > 0 {
		r = io.LimitReader(r, e.bodyLimit+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return runtime.Value{}, apimda.Error(http.StatusRequestEntityTooLarge)
		}
		if errors.Is(err, errBadEncoding) {
			return runtime.Value{}, apimda.Errorf(http.StatusBadRequest, "Error decoding %s: %v", in.Name, err)
		}
		return runtime.Value{}, fmt.Errorf("reading body: %w", err)
	}
	if e.bodyLimit > 0 && int64(len(data)) > e.bodyLimit {
		return runtime.Value{}, apimda.Error(http.StatusRequestEntityTooLarge)
	}
	if len(data) == 0 {
		return runtime.AbsentValue(), nil
	}

	if in.Kind == runtime.KindBinary {
		return runtime.BinaryValue(data), nil
	}
	return runtime.TextValue(string(data)), nil
}
