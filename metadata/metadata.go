// Package metadata is the route model built from annotated controllers:
// App owns Controllers, a Controller owns Routes, and a Route owns its
// Inputs and Outputs. The model is built once and read-only afterwards.
package metadata

import (
	"fmt"

	"github.com/bjaus/apimda/runtime"
	"github.com/bjaus/apimda/schema"
)

// Method is an HTTP method, lower case.
type Method string

// Supported route methods.
const (
	MethodGet    Method = "get"
	MethodPut    Method = "put"
	MethodPost   Method = "post"
	MethodPatch  Method = "patch"
	MethodDelete Method = "delete"
)

// Methods lists every supported method.
var Methods = []Method{MethodGet, MethodPut, MethodPost, MethodPatch, MethodDelete}

// Location is where an input is read from.
type Location = runtime.Location

// Kind classifies a declared type.
type Kind = runtime.Kind

// TypeRef is a declared Go type: its display name and classification.
type TypeRef struct {
	Name string `json:"name"`
	Kind Kind   `json:"kind"`
}

// String returns the type name.
func (t *TypeRef) String() string {
	if t == nil {
		return "void"
	}
	return t.Name
}

// Is reports whether t has one of the given kinds. A nil TypeRef has none.
func (t *TypeRef) Is(kinds ...Kind) bool {
	if t == nil {
		return false
	}
	for _, k := range kinds {
		if t.Kind == k {
			return true
		}
	}
	return false
}

// App is the whole route model.
type App struct {
	Controllers []*Controller
	Schemas     *schema.Repository
}

// NewApp returns an empty App.
func NewApp() *App {
	return &App{Schemas: schema.NewRepository(nil)}
}

// AddController appends c and makes a the owner of c.
func (a *App) AddController(c *Controller) {
	c.app = a
	a.Controllers = append(a.Controllers, c)
}

// Routes returns every route of every controller, in declaration order.
func (a *App) Routes() []*Route {
	var routes []*Route
	for _, c := range a.Controllers {
		routes = append(routes, c.Routes...)
	}
	return routes
}

// UniqueTags returns every controller and route tag once, in order of first
// appearance.
func (a *App) UniqueTags() []string {
	seen := map[string]bool{}
	var tags []string
	add := func(list []string) {
		for _, t := range list {
			if !seen[t] {
				seen[t] = true
				tags = append(tags, t)
			}
		}
	}
	for _, c := range a.Controllers {
		add(c.Tags)
		for _, r := range c.Routes {
			add(r.Tags)
		}
	}
	return tags
}

// FindController returns the controller with the given type name.
func (a *App) FindController(name string) *Controller {
	for _, c := range a.Controllers {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// FindRoute returns the route served by controller.handler.
func (a *App) FindRoute(controller, handler string) *Route {
	if c := a.FindController(controller); c != nil {
		return c.FindRoute(handler)
	}
	return nil
}

// FindRouteByPath returns the first route whose full path is path.
func (a *App) FindRouteByPath(path string) *Route {
	for _, r := range a.Routes() {
		if r.Path() == path {
			return r
		}
	}
	return nil
}

// FindSuccessOutput returns the success output of controller.handler.
func (a *App) FindSuccessOutput(controller, handler string) *Output {
	if r := a.FindRoute(controller, handler); r != nil {
		return r.SuccessOutput
	}
	return nil
}

// FindInput returns the input bound to argument arg of controller.handler.
func (a *App) FindInput(controller, handler, arg string) *Input {
	if r := a.FindRoute(controller, handler); r != nil {
		return r.FindInput(arg)
	}
	return nil
}

// Runtime projects the whole app into its runtime form.
func (a *App) Runtime() *runtime.App {
	out := &runtime.App{Schemas: a.schemaCopy(nil)}
	for _, c := range a.Controllers {
		out.Controllers = append(out.Controllers, c.Runtime())
	}
	return out
}

// Packages returns the import paths declaring controllers, in controller
// order.
func (a *App) Packages() []string {
	var pkgs []string
	seen := map[string]bool{}
	for _, c := range a.Controllers {
		if !seen[c.Package] {
			seen[c.Package] = true
			pkgs = append(pkgs, c.Package)
		}
	}
	return pkgs
}

// PackageRuntime projects the controllers of one package, and the schemas
// they need, into runtime form.
func (a *App) PackageRuntime(pkg string) *runtime.App {
	out := &runtime.App{}
	keys := []string{}
	for _, c := range a.Controllers {
		if c.Package != pkg {
			continue
		}
		out.Controllers = append(out.Controllers, c.Runtime())
		keys = append(keys, c.SchemaKeys()...)
	}
	out.Schemas = a.schemaCopy(keys)
	return out
}

func (a *App) schemaCopy(keys []string) map[string]any {
	out := map[string]any{}
	if a == nil || a.Schemas == nil {
		return out
	}
	for k, s := range a.Schemas.Copy(nil, keys, false) {
		out[k] = s
	}
	return out
}

// Controller is an annotated handler type.
type Controller struct {
	app *App

	// Name is the Go type name.
	Name string
	// Package is the import path of the declaring package.
	Package string
	// PackageName is the declaring package's name.
	PackageName string
	// SourceFile is the file holding the type declaration.
	SourceFile  string
	BasePath    string
	Tags        []string
	Description string

	// CtorName is the constructor function, empty when the zero value is
	// used.
	CtorName string
	// CtorPointer is set when the constructor returns *T.
	CtorPointer bool
	// CtorReturnsError is set when the constructor returns (T, error).
	CtorReturnsError bool
	// CtorEnvNames are the configuration names bound, in order, to the
	// constructor's parameters.
	CtorEnvNames []string
	// InitMethod is the optional initializer, run once before the first
	// request.
	InitMethod string

	Routes []*Route
}

// App returns the owning app.
func (c *Controller) App() *App { return c.app }

// AddRoute appends r and makes c the owner of r.
func (c *Controller) AddRoute(r *Route) {
	r.controller = c
	c.Routes = append(c.Routes, r)
}

// FindRoute returns the route served by the named handler method.
func (c *Controller) FindRoute(handler string) *Route {
	for _, r := range c.Routes {
		if r.Handler == handler {
			return r
		}
	}
	return nil
}

// SchemaKeys returns the schema keys of every route.
func (c *Controller) SchemaKeys() []string {
	keys := []string{}
	for _, r := range c.Routes {
		keys = append(keys, r.SchemaKeys()...)
	}
	return keys
}

// Schemas returns the schemas this controller needs, closed over $ref.
func (c *Controller) Schemas() map[string]any {
	return c.app.schemaCopy(c.SchemaKeys())
}

// Runtime projects the controller into its runtime form.
func (c *Controller) Runtime() *runtime.Controller {
	out := &runtime.Controller{
		Package:      c.Package,
		Name:         c.Name,
		CtorEnvNames: append([]string(nil), c.CtorEnvNames...),
		InitMethod:   c.InitMethod,
	}
	for _, r := range c.Routes {
		out.Routes = append(out.Routes, r.Runtime())
	}
	return out
}

// RuntimeApp returns a runtime app holding only this controller and its
// schemas.
func (c *Controller) RuntimeApp() *runtime.App {
	return &runtime.App{
		Controllers: []*runtime.Controller{c.Runtime()},
		Schemas:     c.Schemas(),
	}
}

// Route is one handler method bound to an HTTP method and path.
type Route struct {
	controller *Controller

	// Handler is the Go method name.
	Handler     string
	Method      Method
	LocalPath   string
	Tags        []string
	Summary     string
	Description string

	Inputs        []*Input
	SuccessOutput *Output
	ErrorOutputs  []*Output
}

// Controller returns the owning controller.
func (r *Route) Controller() *Controller { return r.controller }

// AddInput appends in and makes r the owner of in.
func (r *Route) AddInput(in *Input) {
	in.route = r
	r.Inputs = append(r.Inputs, in)
}

// SetSuccessOutput sets the success output and makes r its owner.
func (r *Route) SetSuccessOutput(o *Output) {
	o.route = r
	r.SuccessOutput = o
}

// AddErrorOutput appends an error output and makes r its owner.
func (r *Route) AddErrorOutput(o *Output) {
	o.route = r
	r.ErrorOutputs = append(r.ErrorOutputs, o)
}

// QualifiedName returns Controller.Handler.
func (r *Route) QualifiedName() string {
	return r.controller.Name + "." + r.Handler
}

// Path returns the base path joined with the local path. An empty result
// is "/".
func (r *Route) Path() string {
	p := r.controller.BasePath + r.LocalPath
	if p == "" {
		return "/"
	}
	return p
}

// PathInfo parses Path.
func (r *Route) PathInfo() runtime.PathInfo {
	return runtime.ParsePath(r.Path())
}

// Outputs returns the error outputs followed by the success output.
func (r *Route) Outputs() []*Output {
	out := append([]*Output(nil), r.ErrorOutputs...)
	if r.SuccessOutput != nil {
		out = append(out, r.SuccessOutput)
	}
	return out
}

// FindInput returns the input bound to the named Go argument.
func (r *Route) FindInput(arg string) *Input {
	for _, in := range r.Inputs {
		if in.ArgName == arg {
			return in
		}
	}
	return nil
}

// Body returns the route's body input, if any.
func (r *Route) Body() *Input {
	for _, in := range r.Inputs {
		if in.Location == runtime.LocationBody {
			return in
		}
	}
	return nil
}

// SchemaKeys returns the schema keys of every input and output that has
// a schema.
func (r *Route) SchemaKeys() []string {
	keys := []string{}
	for _, in := range r.Inputs {
		if k := in.SchemaKey(); k != "" {
			keys = append(keys, k)
		}
	}
	for _, o := range r.Outputs() {
		if k := o.SchemaKey(); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

// Schemas returns the schemas this route needs, closed over $ref.
func (r *Route) Schemas() map[string]any {
	return r.controller.app.schemaCopy(r.SchemaKeys())
}

// Runtime projects the route into its runtime form.
func (r *Route) Runtime() *runtime.Route {
	out := &runtime.Route{
		Method:  string(r.Method),
		Path:    r.Path(),
		Inputs:  make([]*runtime.Input, 0, len(r.Inputs)),
		Handler: r.Handler,
	}
	for _, in := range r.Inputs {
		out.Inputs = append(out.Inputs, in.Runtime())
	}
	if r.SuccessOutput != nil {
		out.SuccessOutput = r.SuccessOutput.Runtime()
	}
	return out
}

// RuntimeApp returns a runtime app holding this route's controller and the
// schemas the route needs.
func (r *Route) RuntimeApp() *runtime.App {
	return &runtime.App{
		Controllers: []*runtime.Controller{r.controller.Runtime()},
		Schemas:     r.Schemas(),
	}
}

// Input is one handler argument bound to a request value.
type Input struct {
	route *Route

	// Name is the request-side name: the query parameter, header, cookie
	// or path variable.
	Name string
	// ArgName is the Go parameter name.
	ArgName     string
	Location    Location
	Required    bool
	MIMEType    string
	Type        *TypeRef
	Description string
}

// Route returns the owning route.
func (in *Input) Route() *Route { return in.route }

// HasSchema reports whether the input is validated against a schema. Raw
// request and binary inputs are not.
func (in *Input) HasSchema() bool {
	return in.Location != runtime.LocationRequest && !in.Type.Is(runtime.KindBinary)
}

// SchemaKey returns <Controller>_<Handler>_<arg>, or "" without a schema.
func (in *Input) SchemaKey() string {
	if !in.HasSchema() || in.route == nil {
		return ""
	}
	return fmt.Sprintf("%s_%s_%s", in.route.controller.Name, in.route.Handler, in.ArgName)
}

// Runtime projects the input into its runtime form.
func (in *Input) Runtime() *runtime.Input {
	out := &runtime.Input{
		Name:      in.Name,
		Location:  in.Location,
		Required:  in.Required,
		SchemaKey: in.SchemaKey(),
	}
	if in.Type != nil {
		out.TypeName = in.Type.Name
		out.Kind = in.Type.Kind
	}
	return out
}

// Output is a possible response of a route.
type Output struct {
	route *Route

	StatusCode int
	MIMEType   string
	// Type is nil when the handler declares no payload.
	Type        *TypeRef
	Description string
	// CustomResult marks a handler returning apimda.Result, whose status,
	// headers and cookies override the defaults at dispatch time.
	CustomResult bool
}

// Route returns the owning route.
func (o *Output) Route() *Route { return o.route }

// HasSchema reports whether the output has a declared type that is
// neither binary nor a raw response.
func (o *Output) HasSchema() bool {
	return o.Type != nil && !o.Type.Is(runtime.KindBinary, runtime.KindRaw)
}

// SchemaKey returns <Controller>_<Handler>_return, or "" without a schema.
func (o *Output) SchemaKey() string {
	if !o.HasSchema() || o.route == nil {
		return ""
	}
	return fmt.Sprintf("%s_%s_return", o.route.controller.Name, o.route.Handler)
}

// Runtime projects the output into its runtime form.
func (o *Output) Runtime() *runtime.Output {
	out := &runtime.Output{
		StatusCode:   o.StatusCode,
		CustomResult: o.CustomResult,
		MIMEType:     o.MIMEType,
	}
	if o.Type != nil {
		out.TypeName = o.Type.Name
		out.Kind = o.Type.Kind
	}
	return out
}
