// Package openapi renders a route model as an OpenAPI 3.1 document.
package openapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"gopkg.in/yaml.v3"

	"github.com/bjaus/apimda/metadata"
	"github.com/bjaus/apimda/runtime"
)

// Version is the OpenAPI version of generated documents.
const Version = "3.1.0"

const (
	componentPrefix = "#/components/schemas/"
	mimeJSON        = "application/json"
	mimeText        = "text/plain"
)

// Options are the parts of the document that do not come from the route
// model.
type Options struct {
	// Info defaults to title "API Title", version "0.1.0".
	Info            *openapi3.Info
	Servers         openapi3.Servers
	Security        openapi3.SecurityRequirements
	SecuritySchemes openapi3.SecuritySchemes
	// PathSecurity sets operation security by route path and lower case
	// method.
	PathSecurity map[string]map[string]openapi3.SecurityRequirements
}

// DefaultInfo returns the info used when Options.Info is nil.
func DefaultInfo() *openapi3.Info {
	return &openapi3.Info{Title: "API Title", Version: "0.1.0"}
}

// Generate builds the document for app. Schemas keyed by an input or
// output are inlined where they are used; every other schema becomes a
// component.
func Generate(app *metadata.App, opts Options) (*openapi3.T, error) {
	g := &generator{
		app:        app,
		opts:       opts,
		components: openapi3.Schemas{},
		inline:     map[string]*openapi3.SchemaRef{},
	}
	if err := g.splitSchemas(); err != nil {
		return nil, err
	}

	info := opts.Info
	if info == nil {
		info = DefaultInfo()
	}
	doc := &openapi3.T{
		OpenAPI:  Version,
		Info:     info,
		Paths:    g.paths(),
		Servers:  opts.Servers,
		Security: opts.Security,
		Components: &openapi3.Components{
			Schemas:         g.components,
			SecuritySchemes: opts.SecuritySchemes,
		},
	}
	for _, tag := range app.UniqueTags() {
		doc.Tags = append(doc.Tags, &openapi3.Tag{Name: tag})
	}
	return doc, nil
}

type generator struct {
	app        *metadata.App
	opts       Options
	components openapi3.Schemas
	inline     map[string]*openapi3.SchemaRef
}

func (g *generator) splitSchemas() error {
	routeKeys := map[string]bool{}
	for _, r := range g.app.Routes() {
		for _, k := range r.SchemaKeys() {
			routeKeys[k] = true
		}
	}

	all := g.app.Schemas.Copy(func(ref string) string { return componentPrefix + ref }, nil, false)
	for key, s := range all {
		ref, err := schemaRef(s)
		if err != nil {
			return fmt.Errorf("schema %s: %w", key, err)
		}
		if routeKeys[key] {
			g.inline[key] = ref
		} else {
			g.components[key] = ref
		}
	}
	return nil
}

func schemaRef(s map[string]any) (*openapi3.SchemaRef, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	var ref openapi3.SchemaRef
	if err := json.Unmarshal(data, &ref); err != nil {
		return nil, err
	}
	return &ref, nil
}

func binarySchema() *openapi3.SchemaRef {
	return openapi3.NewSchemaRef("", &openapi3.Schema{
		Type:   &openapi3.Types{openapi3.TypeString},
		Format: "binary",
	})
}

func (g *generator) schema(t *metadata.TypeRef, key string) *openapi3.SchemaRef {
	if t.Is(runtime.KindBinary) {
		return binarySchema()
	}
	return g.inline[key]
}

func content(mime string, t *metadata.TypeRef, s *openapi3.SchemaRef) openapi3.Content {
	switch {
	case mime != "":
	case t.Is(runtime.KindString):
		mime = mimeText
	default:
		mime = mimeJSON
	}
	return openapi3.Content{mime: &openapi3.MediaType{Schema: s}}
}

func (g *generator) paths() *openapi3.Paths {
	paths := openapi3.NewPaths()
	for _, r := range g.app.Routes() {
		path := r.Path()
		item := paths.Value(path)
		if item == nil {
			item = &openapi3.PathItem{}
			paths.Set(path, item)
		}
		item.SetOperation(strings.ToUpper(string(r.Method)), g.operation(r))
	}
	return paths
}

func (g *generator) operation(r *metadata.Route) *openapi3.Operation {
	c := r.Controller()
	op := &openapi3.Operation{
		OperationID: c.Name + "_" + r.Handler,
		Summary:     r.Summary,
		Description: r.Description,
	}
	if op.Summary == "" {
		op.Summary = r.Description
	}
	op.Tags = append(append(op.Tags, c.Tags...), r.Tags...)

	for _, in := range r.Inputs {
		switch in.Location {
		case runtime.LocationQuery, runtime.LocationPath, runtime.LocationHeader, runtime.LocationCookie:
			op.Parameters = append(op.Parameters, &openapi3.ParameterRef{Value: &openapi3.Parameter{
				Name:        in.Name,
				In:          string(in.Location),
				Required:    in.Required,
				Description: in.Description,
				Schema:      g.schema(in.Type, in.SchemaKey()),
			}})
		case runtime.LocationBody:
			op.RequestBody = &openapi3.RequestBodyRef{Value: &openapi3.RequestBody{
				Description: in.Description,
				Required:    in.Required,
				Content:     content(in.MIMEType, in.Type, g.schema(in.Type, in.SchemaKey())),
			}}
		}
	}

	var responses []openapi3.NewResponsesOption
	for _, o := range r.Outputs() {
		desc := o.Description
		if desc == "" {
			desc = http.StatusText(o.StatusCode)
		}
		resp := &openapi3.Response{Description: &desc}
		if o.Type != nil && !o.Type.Is(runtime.KindRaw) {
			resp.Content = content(o.MIMEType, o.Type, g.schema(o.Type, o.SchemaKey()))
		}
		responses = append(responses, openapi3.WithStatus(o.StatusCode, &openapi3.ResponseRef{Value: resp}))
	}
	op.Responses = openapi3.NewResponses(responses...)

	if bySecurity, ok := g.opts.PathSecurity[r.Path()]; ok {
		if sec, ok := bySecurity[string(r.Method)]; ok {
			op.Security = &sec
		}
	}
	return op
}

// WriteJSON writes doc as indented JSON.
func WriteJSON(w io.Writer, doc *openapi3.T) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding document: %w", err)
	}
	_, err = w.Write(append(data, '\n'))
	return err
}

// WriteYAML writes doc as block-style YAML, keeping the key order of the
// JSON encoding.
func WriteYAML(w io.Writer, doc *openapi3.T) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding document: %w", err)
	}
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return fmt.Errorf("converting document: %w", err)
	}
	blockStyle(&node)

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&node); err != nil {
		return fmt.Errorf("encoding document: %w", err)
	}
	return enc.Close()
}

func blockStyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		blockStyle(c)
	}
}
