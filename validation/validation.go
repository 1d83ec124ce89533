// Package validation checks a route model for declarations that cannot
// be documented or served.
package validation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bjaus/apimda/metadata"
	"github.com/bjaus/apimda/runtime"
)

// Code identifies a kind of violation.
type Code string

// Violation codes.
const (
	AppDuplicateRoutes       Code = "APP_DUPLICATE_ROUTES"
	ClrInvalidBasePath       Code = "CLR_INVALID_BASE_PATH"
	RtInvalidLocalPath       Code = "RT_INVALID_LOCAL_PATH"
	RtOnlyOneBodyAllowed     Code = "RT_ONLY_ONE_BODY_ALLOWED"
	RtMissingPathVar         Code = "RT_MISSING_PATH_VAR"
	RtDuplicatePathVar       Code = "RT_DUPLICATE_PATH_VAR"
	InBufferNotSupported     Code = "IN_BUFFER_NOT_SUPPORTED"
	InMIMENotSupported       Code = "IN_MIME_NOT_SUPPORTED"
	InGenericNotSupported    Code = "IN_GENERIC_NOT_SUPPORTED"
	InUnionNotSupported      Code = "IN_UNION_NOT_SUPPORTED"
	InOptionalNotSupported   Code = "IN_OPTIONAL_NOT_SUPPORTED"
	OutBufferNoMIME          Code = "OUT_BUFFER_NO_MIME"
	OutMIMENotSupported      Code = "OUT_MIME_NOT_SUPPORTED"
	OutUndefinedNotSupported Code = "OUT_UNDEFINED_NOT_SUPPORTED"
	OutGenericNotSupported   Code = "OUT_GENERIC_NOT_SUPPORTED"
	OutUnionNotSupported     Code = "OUT_UNION_NOT_SUPPORTED"
)

// ErrInvalid is matched by every error returned from Result.Err.
var ErrInvalid = errors.New("invalid route model")

// Violation is one broken rule. Sources are the model nodes at fault:
// *metadata.Controller, *metadata.Route, *metadata.Input or
// *metadata.Output.
type Violation struct {
	Message string
	Code    Code
	Sources []any
}

func (v *Violation) Error() string { return v.Message }

// Is reports whether target is ErrInvalid.
func (v *Violation) Is(target error) bool { return target == ErrInvalid }

// Result holds every violation found, in discovery order.
type Result struct {
	Violations []*Violation
}

// Valid reports whether no violation was found.
func (r *Result) Valid() bool { return len(r.Violations) == 0 }

// Err returns nil for a valid result, otherwise an error whose message
// lists every violation, one per line.
func (r *Result) Err() error {
	if r.Valid() {
		return nil
	}
	errs := make([]error, len(r.Violations))
	for i, v := range r.Violations {
		errs[i] = v
	}
	return errors.Join(errs...)
}

// For returns the violations that name subject as a source.
func (r *Result) For(subject any) []*Violation {
	var out []*Violation
	for _, v := range r.Violations {
		for _, s := range v.Sources {
			if s == subject {
				out = append(out, v)
				break
			}
		}
	}
	return out
}

// Validate checks every controller, route, input and output of app.
func Validate(app *metadata.App) *Result {
	res := &Result{}

	var keys []string
	byKey := map[string][]*metadata.Route{}
	for _, r := range app.Routes() {
		key := strings.ToUpper(string(r.Method)) + " " + r.PathInfo().Normalized
		if _, ok := byKey[key]; !ok {
			keys = append(keys, key)
		}
		byKey[key] = append(byKey[key], r)
	}
	for _, key := range keys {
		routes := byKey[key]
		if len(routes) < 2 {
			continue
		}
		names := make([]string, len(routes))
		sources := make([]any, len(routes))
		for i, r := range routes {
			names[i] = r.QualifiedName()
			sources[i] = r
		}
		res.add(AppDuplicateRoutes, sources,
			"Duplicate HTTP method/path: %s for routes: %s", key, strings.Join(names, ", "))
	}

	for _, c := range app.Controllers {
		res.controller(c)
	}
	return res
}

func (r *Result) add(code Code, sources []any, format string, args ...any) {
	r.Violations = append(r.Violations, &Violation{
		Message: fmt.Sprintf(format, args...),
		Code:    code,
		Sources: sources,
	})
}

func invalidPath(p string) bool {
	return p != "" && (!strings.HasPrefix(p, "/") || strings.HasSuffix(p, "/"))
}

func (r *Result) controller(c *metadata.Controller) {
	if invalidPath(c.BasePath) {
		r.add(ClrInvalidBasePath, []any{c},
			"Error in controller: %s: Illegal base path '%s': value must start and not end with '/'", c.Name, c.BasePath)
	}
	for _, rt := range c.Routes {
		r.route(rt)
	}
}

func (r *Result) route(rt *metadata.Route) {
	fail := func(code Code, format string, args ...any) {
		r.add(code, []any{rt}, "Error in method: %s: %s", rt.QualifiedName(), fmt.Sprintf(format, args...))
	}

	if invalidPath(rt.LocalPath) {
		fail(RtInvalidLocalPath, "Illegal route path '%s': value must start and not end with '/'", rt.LocalPath)
	}

	bodies := 0
	for _, in := range rt.Inputs {
		if in.Location == runtime.LocationBody {
			bodies++
		}
	}
	if bodies > 1 {
		fail(RtOnlyOneBodyAllowed, "Only one body parameter allowed per method; found %d", bodies)
	}

	vars := rt.PathInfo().Vars
	seen := map[string]bool{}
	duplicate := false
	for _, v := range vars {
		if seen[v] {
			duplicate = true
		}
		seen[v] = true
		if !hasInputNamed(rt, v) {
			fail(RtMissingPathVar, "Could not find path variable for %s", v)
		}
	}
	if duplicate {
		fail(RtDuplicatePathVar, "Duplicate path variable found in route path: %s", rt.Path())
	}

	for _, in := range rt.Inputs {
		r.input(in)
	}
	for _, o := range rt.Outputs() {
		r.output(o)
	}
}

func hasInputNamed(rt *metadata.Route, name string) bool {
	for _, in := range rt.Inputs {
		if in.Name == name {
			return true
		}
	}
	return false
}

func (r *Result) input(in *metadata.Input) {
	fail := func(code Code, format string, args ...any) {
		r.add(code, []any{in}, "Error in parameter: %s in method: %s: %s",
			in.ArgName, in.Route().QualifiedName(), fmt.Sprintf(format, args...))
	}

	if in.Type.Is(runtime.KindBinary) && in.Location != runtime.LocationBody {
		fail(InBufferNotSupported, "'[]byte' is only supported in body parameters")
	}
	if in.Location == runtime.LocationBody && in.MIMEType != "" && !in.Type.Is(runtime.KindBinary, runtime.KindString) {
		fail(InMIMENotSupported, "body parameter with custom MIME type can only be declared a 'string' or '[]byte'")
	}
	if in.Type.Is(runtime.KindArray, runtime.KindContainer) {
		fail(InGenericNotSupported, "Generic parameter type: '%s' is not allowed", in.Type)
	}
	if in.Type.Is(runtime.KindUnion) {
		fail(InUnionNotSupported, "Union parameter type: '%s' is not allowed", in.Type)
	}
	if !in.Required && in.Location != runtime.LocationQuery && in.Location != runtime.LocationHeader {
		fail(InOptionalNotSupported, "Optional parameters are only allowed with query and header")
	}
}

func (r *Result) output(o *metadata.Output) {
	fail := func(code Code, format string, args ...any) {
		r.add(code, []any{o}, "Error in return type for method: %s: %s",
			o.Route().QualifiedName(), fmt.Sprintf(format, args...))
	}

	if o.Type.Is(runtime.KindBinary) && o.MIMEType == "" {
		fail(OutBufferNoMIME, "'[]byte' is only supported as a return type if you specify a custom MIME type with produces")
	}
	if o.MIMEType != "" && !o.Type.Is(runtime.KindBinary, runtime.KindString, runtime.KindRaw) {
		fail(OutMIMENotSupported, "produces can only be used if method returns 'string' or '[]byte', found: %s", o.Type)
	}
	if o.Type.Is(runtime.KindUndefined) {
		fail(OutUndefinedNotSupported, "Undefined return type is not allowed")
	}
	if o.Type.Is(runtime.KindContainer) {
		fail(OutGenericNotSupported, "Generic type: '%s' not allowed", o.Type)
	}
	if o.Type.Is(runtime.KindUnion) {
		fail(OutUnionNotSupported, "Union type: '%s' not allowed", o.Type)
	}
}
