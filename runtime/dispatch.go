package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"reflect"

	"github.com/bjaus/apimda"
)

// Stage is a step of request dispatch.
type Stage string

// Dispatch stages, in order.
const (
	StageExtracting Stage = "extracting"
	StageValidating Stage = "validating"
	StageInvoking   Stage = "invoking"
	StageShaping    Stage = "shaping"
)

// ErrHandlerMismatch is returned when the handler method does not fit the
// route it is registered for.
var ErrHandlerMismatch = errors.New("handler does not match route")

// DispatchError is a non-HTTP failure during dispatch. It is returned to
// the transport, which turns it into a server error.
type DispatchError struct {
	Route string
	Stage Stage
	Err   error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Route, e.Stage, e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }

// Response is a transport independent response.
type Response struct {
	StatusCode int
	Headers    map[string]string
	Cookies    map[string]string
	Body       []byte
	// Binary is set when Body holds raw bytes rather than text.
	Binary bool
}

var (
	contextType = reflect.TypeFor[context.Context]()
	errorType   = reflect.TypeFor[error]()
)

// Dispatch serves one request: it extracts and validates every input of
// route, invokes the handler method on instance and shapes the result.
//
// An *apimda.HTTPError raised at any stage becomes an error Response with
// the error's status and message. Any other failure is returned as a
// *DispatchError.
func Dispatch(ctx context.Context, ex Extractor, route *Route, instance any, v *Validator) (*Response, error) {
	d := dispatcher{route: route, name: routeName(route)}

	args := make([]any, len(route.Inputs))
	for i, in := range route.Inputs {
		d.stage = StageExtracting
		val, err := ex.Extract(in)
		if err != nil {
			return d.fail(err)
		}

		d.stage = StageValidating
		args[i], err = v.Validate(in, val)
		if err != nil {
			return d.fail(err)
		}
	}

	d.stage = StageInvoking
	result, err := d.invoke(ctx, instance, args)
	if err != nil {
		return d.fail(err)
	}

	d.stage = StageShaping
	resp, err := shape(route.SuccessOutput, result)
	if err != nil {
		return d.fail(err)
	}
	return resp, nil
}

type dispatcher struct {
	route *Route
	name  string
	stage Stage
}

func routeName(r *Route) string {
	return fmt.Sprintf("%s %s (%s)", r.Method, r.Path, r.Handler)
}

func (d *dispatcher) fail(err error) (*Response, error) {
	if he, ok := apimda.AsHTTPError(err); ok {
		return ErrorResponse(he), nil
	}
	return nil, &DispatchError{Route: d.name, Stage: d.stage, Err: err}
}

// ErrorResponse renders an HTTP error as a plain text response.
func ErrorResponse(he *apimda.HTTPError) *Response {
	return &Response{
		StatusCode: he.Status,
		Headers:    map[string]string{},
		Cookies:    map[string]string{},
		Body:       []byte(he.Error()),
	}
}

func (d *dispatcher) invoke(ctx context.Context, instance any, args []any) (any, error) {
	method := reflect.ValueOf(instance).MethodByName(d.route.Handler)
	if !method.IsValid() {
		return nil, fmt.Errorf("%w: %T has no method %s", ErrHandlerMismatch, instance, d.route.Handler)
	}

	mt := method.Type()
	if mt.NumIn() != len(args)+1 || !contextType.AssignableTo(mt.In(0)) {
		return nil, fmt.Errorf("%w: %s takes %d arguments, route declares a context and %d inputs",
			ErrHandlerMismatch, d.route.Handler, mt.NumIn(), len(args))
	}
	if n := mt.NumOut(); n < 1 || n > 2 || mt.Out(n-1) != errorType {
		return nil, fmt.Errorf("%w: %s must return error last", ErrHandlerMismatch, d.route.Handler)
	}

	in := make([]reflect.Value, 0, len(args)+1)
	in = append(in, reflect.ValueOf(ctx))
	for i, arg := range args {
		rv, err := convert(arg, mt.In(i+1))
		if err != nil {
			return nil, apimda.Errorf(http.StatusBadRequest, "Error converting %s: %v", d.route.Inputs[i].Name, err)
		}
		in = append(in, rv)
	}

	out := method.Call(in)
	if errv := out[len(out)-1]; !errv.IsNil() {
		return nil, errv.Interface().(error)
	}
	if len(out) == 1 {
		return nil, nil
	}
	return out[0].Interface(), nil
}

// convert turns a coerced input value into a value of the handler's
// parameter type. A nil value yields the zero value, so optional pointer
// parameters receive nil.
func convert(value any, t reflect.Type) (reflect.Value, error) {
	if value == nil {
		return reflect.Zero(t), nil
	}

	rv := reflect.ValueOf(value)
	if rv.Type().AssignableTo(t) {
		return rv, nil
	}
	if rv.Kind() == reflect.Pointer && !rv.IsNil() && rv.Elem().Type().AssignableTo(t) {
		return rv.Elem(), nil
	}

	if t.Kind() == reflect.Pointer {
		elem, err := convert(value, t.Elem())
		if err != nil {
			return reflect.Value{}, err
		}
		p := reflect.New(t.Elem())
		p.Elem().Set(elem)
		return p, nil
	}

	if f, ok := value.(float64); ok {
		return convertNumber(f, t)
	}

	switch t.Kind() {
	case reflect.String, reflect.Bool:
		if rv.Kind() == t.Kind() {
			return rv.Convert(t), nil
		}
	case reflect.Slice:
		if b, ok := value.([]byte); ok && t.Elem().Kind() == reflect.Uint8 {
			return reflect.ValueOf(b).Convert(t), nil
		}
	}

	data, err := json.Marshal(value)
	if err != nil {
		return reflect.Value{}, err
	}
	p := reflect.New(t)
	if err := json.Unmarshal(data, p.Interface()); err != nil {
		return reflect.Value{}, err
	}
	return p.Elem(), nil
}

func convertNumber(f float64, t reflect.Type) (reflect.Value, error) {
	v := reflect.New(t).Elem()
	switch t.Kind() {
	case reflect.Float32, reflect.Float64:
		if v.OverflowFloat(f) {
			return reflect.Value{}, fmt.Errorf("%v overflows %s", f, t)
		}
		v.SetFloat(f)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if f != math.Trunc(f) {
			return reflect.Value{}, fmt.Errorf("%v is not an integer", f)
		}
		if f < math.MinInt64 || f >= math.MaxInt64 || v.OverflowInt(int64(f)) {
			return reflect.Value{}, fmt.Errorf("%v overflows %s", f, t)
		}
		v.SetInt(int64(f))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		if f != math.Trunc(f) {
			return reflect.Value{}, fmt.Errorf("%v is not an integer", f)
		}
		if f < 0 || f >= math.MaxUint64 || v.OverflowUint(uint64(f)) {
			return reflect.Value{}, fmt.Errorf("%v overflows %s", f, t)
		}
		v.SetUint(uint64(f))
	default:
		return reflect.Value{}, fmt.Errorf("cannot use number as %s", t)
	}
	return v, nil
}

// shape builds the success response for a handler result.
func shape(out *Output, result any) (*Response, error) {
	resp := &Response{
		StatusCode: out.StatusCode,
		Headers:    map[string]string{},
		Cookies:    map[string]string{},
	}
	if out.MIMEType != "" {
		resp.Headers["Content-Type"] = out.MIMEType
	}

	payload := result
	if c, ok := result.(apimda.Customizer); ok && out.CustomResult {
		if status := c.StatusCode(); status != 0 {
			resp.StatusCode = status
		}
		for k, v := range c.ResponseHeaders() {
			resp.Headers[k] = v
		}
		for k, v := range c.ResponseCookies() {
			resp.Cookies[k] = v
		}
		payload = c.Payload()
	}

	if res, ok := payload.(*http.Response); ok && out.Kind == KindRaw && res != nil {
		return passthrough(resp, res)
	}

	value := deref(payload)
	if value == nil || out.Kind == "" || out.Kind == KindUndefined || out.Kind == KindRaw {
		return resp, nil
	}

	switch out.Kind {
	case KindBinary:
		b, ok := value.([]byte)
		if !ok {
			return nil, fmt.Errorf("binary output: got %T", value)
		}
		resp.Body = b
		resp.Binary = true
	case KindString:
		s, ok := stringOf(value)
		if !ok {
			return nil, fmt.Errorf("string output: got %T", value)
		}
		resp.Body = []byte(s)
	default:
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encoding %s output: %w", out.TypeName, err)
		}
		resp.Body = b
	}
	return resp, nil
}

// passthrough copies a response built by the handler itself.
func passthrough(resp *Response, res *http.Response) (*Response, error) {
	if res.StatusCode != 0 {
		resp.StatusCode = res.StatusCode
	}
	for k, vs := range res.Header {
		if len(vs) > 0 {
			resp.Headers[k] = vs[0]
		}
	}
	if res.Body == nil {
		return resp, nil
	}
	defer res.Body.Close()
	b, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("reading raw response: %w", err)
	}
	resp.Body = b
	resp.Binary = true
	return resp, nil
}

func deref(v any) any {
	rv := reflect.ValueOf(v)
	for rv.IsValid() && rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if !rv.IsValid() {
		return nil
	}
	return rv.Interface()
}

func stringOf(v any) (string, bool) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.String {
		return "", false
	}
	return rv.String(), true
}
