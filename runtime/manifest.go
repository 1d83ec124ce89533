package runtime

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Location is where an input value is read from.
type Location string

// Input locations.
const (
	LocationRequest Location = "request"
	LocationBody    Location = "body"
	LocationQuery   Location = "query"
	LocationPath    Location = "path"
	LocationHeader  Location = "header"
	LocationCookie  Location = "cookie"
)

// Kind classifies a declared Go type for coercion, validation and
// documentation.
type Kind string

// Declared type kinds.
const (
	KindString    Kind = "string"
	KindNumber    Kind = "number"
	KindBoolean   Kind = "boolean"
	KindDate      Kind = "date"
	KindBinary    Kind = "binary"
	KindObject    Kind = "object"
	KindArray     Kind = "array"
	KindContainer Kind = "container"
	KindUnion     Kind = "union"
	KindRaw       Kind = "raw"
	KindUndefined Kind = "undefined"
)

// App is the compact runtime form of an application: every controller and
// the schemas their inputs are validated against.
type App struct {
	Controllers []*Controller  `json:"controllers"`
	Schemas     map[string]any `json:"schemas"`
}

// Controller describes how to construct and initialize a handler instance
// and the routes it serves.
type Controller struct {
	Package      string   `json:"package"`
	Name         string   `json:"name"`
	CtorEnvNames []string `json:"ctorEnvNames,omitempty"`
	InitMethod   string   `json:"initMethod,omitempty"`
	Routes       []*Route `json:"routes"`
}

// Route is a single method and path served by a handler method.
type Route struct {
	Method        string   `json:"method"`
	Path          string   `json:"path"`
	Inputs        []*Input `json:"inputs"`
	SuccessOutput *Output  `json:"successOutput"`
	Handler       string   `json:"handler"`
}

// Input is one handler argument.
type Input struct {
	Name      string   `json:"name"`
	Location  Location `json:"location"`
	Required  bool     `json:"required,omitempty"`
	SchemaKey string   `json:"schemaKey,omitempty"`
	TypeName  string   `json:"typeName"`
	Kind      Kind     `json:"kind"`
}

// Output is the success response shape of a route. An empty Kind means
// the handler returns no payload.
type Output struct {
	StatusCode   int    `json:"statusCode"`
	CustomResult bool   `json:"customResult,omitempty"`
	MIMEType     string `json:"mimeType,omitempty"`
	TypeName     string `json:"typeName,omitempty"`
	Kind         Kind   `json:"kind,omitempty"`
}

// ErrInvalidManifest is returned by Load for manifests that cannot be served.
var ErrInvalidManifest = errors.New("invalid manifest")

// Load decodes a JSON manifest.
func Load(data []byte) (*App, error) {
	var app App
	if err := json.Unmarshal(data, &app); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidManifest, err)
	}
	for _, c := range app.Controllers {
		for _, r := range c.Routes {
			if r.SuccessOutput == nil {
				return nil, fmt.Errorf("%w: route %s.%s has no success output", ErrInvalidManifest, c.Name, r.Handler)
			}
		}
	}
	if app.Schemas == nil {
		app.Schemas = map[string]any{}
	}
	return &app, nil
}

// Controller returns the controller with the given name.
func (a *App) Controller(name string) (*Controller, bool) {
	for _, c := range a.Controllers {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

// Body returns the route's body input, if any.
func (r *Route) Body() (*Input, bool) {
	for _, in := range r.Inputs {
		if in.Location == LocationBody {
			return in, true
		}
	}
	return nil, false
}
