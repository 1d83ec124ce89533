package runtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/getkin/kin-openapi/openapi3"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/bjaus/apimda"
	"github.com/bjaus/apimda/schema"
)

const componentPrefix = "#/components/schemas/"

var defineFormats sync.Once

// ruleFormat validates a string format with an ozzo-validation rule.
type ruleFormat struct {
	rule validation.Rule
}

func (f ruleFormat) Validate(value string) error {
	return f.rule.Validate(value)
}

func registerFormats() {
	defineFormats.Do(func() {
		openapi3.DefineStringFormatValidator("email", ruleFormat{rule: is.EmailFormat})
		openapi3.DefineStringFormatValidator("uuid", ruleFormat{rule: is.UUID})
		openapi3.DefineStringFormatValidator("uri", ruleFormat{rule: is.URL})
		openapi3.DefineStringFormatValidator("ipv4", ruleFormat{rule: is.IPv4})
		openapi3.DefineStringFormatValidator("ipv6", ruleFormat{rule: is.IPv6})
	})
}

// Validator checks and coerces raw input values. It is immutable after
// construction and safe for concurrent use.
type Validator struct {
	schemas map[string]*openapi3.SchemaRef
}

// NewValidator compiles the given schemas. References between schemas are
// bare schema names.
func NewValidator(schemas map[string]any) (*Validator, error) {
	registerFormats()

	components := make(openapi3.Schemas, len(schemas))
	for key, raw := range schemas {
		m, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("schema %s: expected object, got %T", key, raw)
		}
		m = schema.Clone(m)
		schema.Visit(m, func(s map[string]any) {
			if ref, ok := s["$ref"].(string); ok && !strings.HasPrefix(ref, "#") {
				s["$ref"] = componentPrefix + ref
			}
		})

		data, err := json.Marshal(m)
		if err != nil {
			return nil, fmt.Errorf("schema %s: %w", key, err)
		}
		var ref openapi3.SchemaRef
		if err := json.Unmarshal(data, &ref); err != nil {
			return nil, fmt.Errorf("schema %s: %w", key, err)
		}
		components[key] = &ref
	}

	doc := &openapi3.T{
		OpenAPI:    "3.0.3",
		Info:       &openapi3.Info{Title: "apimda", Version: "0"},
		Paths:      openapi3.NewPaths(),
		Components: &openapi3.Components{Schemas: components},
	}
	if err := openapi3.NewLoader().ResolveRefsIn(doc, nil); err != nil {
		return nil, fmt.Errorf("resolving schema references: %w", err)
	}

	return &Validator{schemas: components}, nil
}

// Validate checks val against in and returns the coerced value: nil for an
// absent optional input, a string, []byte, float64, bool, or the decoded
// structured value. Invalid values produce a 400 *apimda.HTTPError.
func (v *Validator) Validate(in *Input, val Value) (any, error) {
	if val.IsAbsent() {
		if in.Required {
			return nil, apimda.Errorf(http.StatusBadRequest, "Required input %s not provided", in.Name)
		}
		return nil, nil
	}

	if in.Location == LocationRequest {
		return val.Object(), nil
	}

	switch in.Kind {
	case KindBinary:
		switch val.Kind() {
		case Binary:
			return val.Bytes(), nil
		case Text:
			return []byte(val.Text()), nil
		}
		return nil, apimda.Errorf(http.StatusBadRequest, "Expected binary input for %s", in.Name)

	case KindString:
		s, ok := textOf(val)
		if !ok {
			return nil, apimda.Errorf(http.StatusBadRequest, "Error parsing %s as string", in.Name)
		}
		if in.SchemaKey != "" {
			if err := v.validateSchema(in, s); err != nil {
				return nil, err
			}
		}
		return s, nil

	case KindNumber:
		if n, ok := val.Object().(float64); ok && val.Kind() == Structured {
			return n, nil
		}
		s, _ := textOf(val)
		n, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
			return nil, apimda.Errorf(http.StatusBadRequest, "Error parsing %s as number from '%s'", in.Name, s)
		}
		return n, nil

	case KindBoolean:
		if b, ok := val.Object().(bool); ok && val.Kind() == Structured {
			return b, nil
		}
		s, _ := textOf(val)
		switch s {
		case "true":
			return true, nil
		case "false":
			return false, nil
		}
		return nil, apimda.Errorf(http.StatusBadRequest, "Error parsing %s as boolean from '%s'", in.Name, s)
	}

	decoded, err := v.decode(in, val)
	if err != nil {
		return nil, err
	}
	if err := v.validateSchema(in, decoded); err != nil {
		return nil, err
	}
	return decoded, nil
}

func (v *Validator) lookup(in *Input) (*openapi3.SchemaRef, error) {
	if in.SchemaKey == "" {
		return nil, fmt.Errorf("no schema found for input: %s", in.Name)
	}
	ref, ok := v.schemas[in.SchemaKey]
	if !ok || ref.Value == nil {
		return nil, fmt.Errorf("can't find schema for key: %s", in.SchemaKey)
	}
	return ref, nil
}

// decode turns a raw value into a JSON data model value. Body text is
// always parsed as JSON. Other text is used verbatim when its schema is a
// string and parsed as JSON otherwise.
func (v *Validator) decode(in *Input, val Value) (any, error) {
	if val.Kind() == Structured {
		return val.Object(), nil
	}

	s, _ := textOf(val)
	if in.Location != LocationBody {
		ref, err := v.lookup(in)
		if err != nil {
			return nil, err
		}
		if ref.Value.Type.Is(openapi3.TypeString) {
			return s, nil
		}
	}

	var decoded any
	if err := json.Unmarshal([]byte(s), &decoded); err != nil {
		if in.Location != LocationBody {
			return s, nil
		}
		return nil, apimda.Errorf(http.StatusBadRequest, "Error parsing %s as JSON: %v", in.Name, err)
	}
	return decoded, nil
}

func (v *Validator) validateSchema(in *Input, value any) error {
	ref, err := v.lookup(in)
	if err != nil {
		return err
	}
	if err := ref.Value.VisitJSON(value, openapi3.MultiErrors()); err != nil {
		msg := violationMessage(in, err)
		if msg == "" {
			msg = "Validation Error"
		}
		return apimda.Error(http.StatusBadRequest, msg)
	}
	return nil
}

// violationMessage lists every schema violation, one per line.
func violationMessage(in *Input, err error) string {
	var lines []string
	var walk func(error)
	walk = func(err error) {
		var me openapi3.MultiError
		if errors.As(err, &me) {
			for _, e := range me {
				walk(e)
			}
			return
		}
		var se *openapi3.SchemaError
		if errors.As(err, &se) {
			lines = append(lines, fmt.Sprintf("Error validating parameter %s at /%s: %s",
				in.Name, strings.Join(se.JSONPointer(), "/"), se.Reason))
			return
		}
		lines = append(lines, fmt.Sprintf("Error validating parameter %s: %s", in.Name, err))
	}
	walk(err)
	return strings.Join(lines, "\n")
}

func textOf(val Value) (string, bool) {
	switch val.Kind() {
	case Text:
		return val.Text(), true
	case Binary:
		return string(val.Bytes()), true
	case Structured:
		s, ok := val.Object().(string)
		return s, ok
	}
	return "", false
}
