package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"go/constant"
	"go/types"
	"net/url"
	"reflect"
	"sort"
	"strings"
)

// ErrUnsupportedType is returned for Go types that have no JSON
// representation, such as channels, functions and non-empty interfaces.
var ErrUnsupportedType = errors.New("unsupported type")

// ErrConflict is returned when a key is added twice with different schemas.
var ErrConflict = errors.New("conflicting schema")

// Annotation is documentation attached to a type or struct field
// declaration.
type Annotation struct {
	Description string
	Format      string
}

// AnnotationFunc looks up the documentation of a declaration.
type AnnotationFunc func(obj types.Object) Annotation

// Creator generates schemas from Go types. A Creator caches every named
// type it has generated and is scoped to a single extraction run.
type Creator struct {
	schemas  map[string]Schema
	owners   map[string]types.Type
	annotate AnnotationFunc
}

// CreatorOption configures a Creator.
type CreatorOption func(*Creator)

// WithAnnotations sets the documentation lookup used for descriptions and
// formats.
func WithAnnotations(fn AnnotationFunc) CreatorOption {
	return func(c *Creator) { c.annotate = fn }
}

// NewCreator returns an empty Creator.
func NewCreator(opts ...CreatorOption) *Creator {
	c := &Creator{
		schemas:  make(map[string]Schema),
		owners:   make(map[string]types.Type),
		annotate: func(types.Object) Annotation { return Annotation{} },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Add generates the schema for t and stores it under key. Named types
// referenced along the way are stored under their own names.
func (c *Creator) Add(key string, t types.Type) error {
	s, err := c.generate(t)
	if err != nil {
		return fmt.Errorf("schema %s: %w", key, err)
	}
	return c.AddSchema(key, s)
}

// AddSchema stores s under key. Adding an equal schema twice is a no-op;
// adding a different one is an ErrConflict.
func (c *Creator) AddSchema(key string, s Schema) error {
	s = Clone(s)
	if existing, ok := c.schemas[key]; ok {
		if !reflect.DeepEqual(existing, s) {
			return fmt.Errorf("%w: key %s", ErrConflict, key)
		}
		return nil
	}
	c.schemas[key] = s
	return nil
}

// Result returns a repository of every stored schema.
func (c *Creator) Result() *Repository {
	return NewRepository(c.schemas)
}

func (c *Creator) generate(t types.Type) (Schema, error) {
	t = types.Unalias(t)

	if isTime(t) {
		return Schema{"type": "string", "format": "date-time"}, nil
	}

	switch tt := t.(type) {
	case *types.Pointer:
		return c.generate(tt.Elem())
	case *types.Named:
		return c.named(tt)
	case *types.Basic:
		return basic(tt)
	case *types.Slice:
		return c.list(tt.Elem())
	case *types.Array:
		return c.list(tt.Elem())
	case *types.Map:
		elem, err := c.generate(tt.Elem())
		if err != nil {
			return nil, err
		}
		return Schema{"type": "object", "additionalProperties": elem}, nil
	case *types.Struct:
		return c.object(tt)
	case *types.Interface:
		if tt.NumMethods() == 0 {
			return Schema{}, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, t)
}

func (c *Creator) list(elem types.Type) (Schema, error) {
	if isByte(elem) {
		return Schema{"type": "string", "format": "byte"}, nil
	}
	items, err := c.generate(elem)
	if err != nil {
		return nil, err
	}
	return Schema{"type": "array", "items": items}, nil
}

// named generates a definition for a named type and returns a reference to
// it. Named slices, maps and plain scalars are inlined.
func (c *Creator) named(t *types.Named) (Schema, error) {
	obj := t.Obj()
	ann := c.annotate(obj)
	enum := enumValues(t)

	switch u := t.Underlying().(type) {
	case *types.Struct:
	case *types.Basic:
		if len(enum) == 0 && ann.Format == "" {
			return basic(u)
		}
	case *types.Interface:
		if u.NumMethods() > 0 {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, t)
		}
		return Schema{}, nil
	default:
		return c.generate(u)
	}

	name := url.PathEscape(types.TypeString(t, func(*types.Package) string { return "" }))
	if owner, ok := c.owners[name]; ok {
		if !types.Identical(owner, t) {
			return nil, fmt.Errorf("%w: name %s is used by %s and %s", ErrConflict, name, owner, t)
		}
		return Schema{"$ref": name}, nil
	}
	// Registered before generating so self references resolve to the ref.
	c.owners[name] = t

	def, err := c.generate(t.Underlying())
	if err != nil {
		return nil, err
	}
	if len(enum) > 0 {
		def["enum"] = enum
	}
	if ann.Format != "" {
		def["format"] = ann.Format
	}
	if ann.Description != "" {
		def["description"] = ann.Description
	}
	if err := c.AddSchema(name, def); err != nil {
		return nil, err
	}
	return Schema{"$ref": name}, nil
}

func (c *Creator) object(st *types.Struct) (Schema, error) {
	props := map[string]any{}
	var required []any
	if err := c.fields(st, props, &required, map[*types.Struct]bool{}); err != nil {
		return nil, err
	}

	s := Schema{"type": "object"}
	if len(props) > 0 {
		s["properties"] = props
	}
	if len(required) > 0 {
		sort.Slice(required, func(i, j int) bool { return required[i].(string) < required[j].(string) })
		s["required"] = required
	}
	return s, nil
}

// fields adds the JSON-visible fields of st following encoding/json rules.
// Untagged embedded structs are promoted.
func (c *Creator) fields(st *types.Struct, props map[string]any, required *[]any, seen map[*types.Struct]bool) error {
	if seen[st] {
		return nil
	}
	seen[st] = true

	for i := range st.NumFields() {
		f := st.Field(i)
		tag := reflect.StructTag(st.Tag(i))
		name, opts, tagged := jsonName(tag)
		if name == "-" && opts == "" {
			continue
		}

		if f.Embedded() && !tagged {
			if inner, ok := embeddedStruct(f.Type()); ok {
				if err := c.fields(inner, props, required, seen); err != nil {
					return err
				}
				continue
			}
		}
		if !f.Exported() {
			continue
		}
		if name == "" {
			name = f.Name()
		}
		if _, dup := props[name]; dup {
			continue
		}

		fs, err := c.generate(f.Type())
		if err != nil {
			return fmt.Errorf("field %s: %w", f.Name(), err)
		}
		if strings.Contains(opts, "string") {
			fs = Schema{"type": "string"}
		}
		if _, isRef := fs["$ref"]; !isRef {
			ann := c.annotate(f)
			if ann.Description != "" {
				fs["description"] = ann.Description
			}
			if format := tag.Get("format"); format != "" {
				fs["format"] = format
			} else if ann.Format != "" {
				fs["format"] = ann.Format
			}
			if ex, ok := tag.Lookup("example"); ok {
				fs["example"] = exampleValue(ex)
			}
		}
		props[name] = fs

		_, isPtr := types.Unalias(f.Type()).(*types.Pointer)
		optional := isPtr || strings.Contains(opts, "omitempty") || strings.Contains(opts, "omitzero")
		if !optional {
			*required = append(*required, name)
		}
	}
	return nil
}

func jsonName(tag reflect.StructTag) (name, opts string, tagged bool) {
	v, ok := tag.Lookup("json")
	if !ok {
		return "", "", false
	}
	name, opts, _ = strings.Cut(v, ",")
	return name, opts, name != ""
}

func embeddedStruct(t types.Type) (*types.Struct, bool) {
	t = types.Unalias(t)
	if p, ok := t.(*types.Pointer); ok {
		t = p.Elem()
	}
	st, ok := t.Underlying().(*types.Struct)
	return st, ok
}

func exampleValue(s string) any {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err == nil {
		if _, isString := v.(string); !isString {
			return v
		}
	}
	return s
}

func basic(b *types.Basic) (Schema, error) {
	info := b.Info()
	switch {
	case info&types.IsString != 0:
		return Schema{"type": "string"}, nil
	case info&types.IsBoolean != 0:
		return Schema{"type": "boolean"}, nil
	case info&types.IsInteger != 0:
		return Schema{"type": "integer"}, nil
	case info&types.IsFloat != 0:
		return Schema{"type": "number"}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, b)
}

// enumValues returns the package-level constants declared with type t, in
// declaration order.
func enumValues(t *types.Named) []any {
	obj := t.Obj()
	if obj.Pkg() == nil {
		return nil
	}
	if _, ok := t.Underlying().(*types.Basic); !ok {
		return nil
	}

	scope := obj.Pkg().Scope()
	var consts []*types.Const
	for _, name := range scope.Names() {
		if k, ok := scope.Lookup(name).(*types.Const); ok && types.Identical(k.Type(), t) {
			consts = append(consts, k)
		}
	}
	sort.Slice(consts, func(i, j int) bool { return consts[i].Pos() < consts[j].Pos() })

	values := make([]any, 0, len(consts))
	for _, k := range consts {
		v := k.Val()
		switch v.Kind() {
		case constant.String:
			values = append(values, constant.StringVal(v))
		case constant.Bool:
			values = append(values, constant.BoolVal(v))
		case constant.Int, constant.Float:
			f, _ := constant.Float64Val(v)
			values = append(values, f)
		}
	}
	return values
}

func isTime(t types.Type) bool {
	n, ok := t.(*types.Named)
	if !ok || n.Obj().Pkg() == nil {
		return false
	}
	return n.Obj().Pkg().Path() == "time" && n.Obj().Name() == "Time"
}

func isByte(t types.Type) bool {
	b, ok := types.Unalias(t).(*types.Basic)
	return ok && b.Kind() == types.Byte
}
