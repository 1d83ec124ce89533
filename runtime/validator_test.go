package runtime_test

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bjaus/apimda"
	"github.com/bjaus/apimda/runtime"
)

func validatorSchemas() map[string]any {
	return map[string]any{
		"Ctl_create_user": map[string]any{"$ref": "User"},
		"Ctl_find_tags":   map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		"Ctl_find_status": map[string]any{"$ref": "Status"},
		"Ctl_find_email":  map[string]any{"type": "string", "format": "email"},
		"User": map[string]any{
			"type":     "object",
			"required": []any{"name"},
			"properties": map[string]any{
				"name": map[string]any{"type": "string"},
				"age":  map[string]any{"type": "integer", "minimum": float64(0)},
			},
		},
		"Status": map[string]any{"type": "string", "enum": []any{"active", "retired"}},
	}
}

func newValidator(t *testing.T) *runtime.Validator {
	t.Helper()
	v, err := runtime.NewValidator(validatorSchemas())
	require.NoError(t, err)
	return v
}

func TestValidator_Validate(t *testing.T) {
	t.Parallel()

	v := newValidator(t)
	req, err := http.NewRequest(http.MethodGet, "/", nil)
	require.NoError(t, err)

	tests := map[string]struct {
		input  runtime.Input
		value  runtime.Value
		expect any
	}{
		"absent optional": {
			input:  runtime.Input{Name: "q", Location: runtime.LocationQuery, Kind: runtime.KindString},
			value:  runtime.AbsentValue(),
			expect: nil,
		},
		"string": {
			input:  runtime.Input{Name: "q", Location: runtime.LocationQuery, Kind: runtime.KindString},
			value:  runtime.TextValue("hello"),
			expect: "hello",
		},
		"number": {
			input:  runtime.Input{Name: "n", Location: runtime.LocationQuery, Kind: runtime.KindNumber},
			value:  runtime.TextValue("12.5"),
			expect: 12.5,
		},
		"boolean true": {
			input:  runtime.Input{Name: "b", Location: runtime.LocationHeader, Kind: runtime.KindBoolean},
			value:  runtime.TextValue("true"),
			expect: true,
		},
		"boolean false": {
			input:  runtime.Input{Name: "b", Location: runtime.LocationHeader, Kind: runtime.KindBoolean},
			value:  runtime.TextValue("false"),
			expect: false,
		},
		"binary": {
			input:  runtime.Input{Name: "data", Location: runtime.LocationBody, Kind: runtime.KindBinary},
			value:  runtime.BinaryValue([]byte{1, 2}),
			expect: []byte{1, 2},
		},
		"request passes through": {
			input:  runtime.Input{Name: "req", Location: runtime.LocationRequest, Kind: runtime.KindRaw},
			value:  runtime.StructuredValue(req),
			expect: req,
		},
		"object body": {
			input:  runtime.Input{Name: "user", Location: runtime.LocationBody, Kind: runtime.KindObject, SchemaKey: "Ctl_create_user", Required: true},
			value:  runtime.TextValue(`{"name":"Ann","age":3}`),
			expect: map[string]any{"name": "Ann", "age": float64(3)},
		},
		"array query parsed as json": {
			input:  runtime.Input{Name: "tags", Location: runtime.LocationQuery, Kind: runtime.KindArray, SchemaKey: "Ctl_find_tags"},
			value:  runtime.TextValue(`["a","b"]`),
			expect: []any{"a", "b"},
		},
		"enum string": {
			input:  runtime.Input{Name: "status", Location: runtime.LocationQuery, Kind: runtime.KindString, SchemaKey: "Ctl_find_status"},
			value:  runtime.TextValue("active"),
			expect: "active",
		},
		"email format": {
			input:  runtime.Input{Name: "email", Location: runtime.LocationQuery, Kind: runtime.KindString, SchemaKey: "Ctl_find_email"},
			value:  runtime.TextValue("ann@example.com"),
			expect: "ann@example.com",
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			in := tc.input
			got, err := v.Validate(&in, tc.value)
			require.NoError(t, err)
			assert.Equal(t, tc.expect, got)
		})
	}
}

func TestValidator_Validate_errors(t *testing.T) {
	t.Parallel()

	v := newValidator(t)

	tests := map[string]struct {
		input   runtime.Input
		value   runtime.Value
		message string
	}{
		"required absent": {
			input:   runtime.Input{Name: "id", Location: runtime.LocationPath, Kind: runtime.KindString, Required: true},
			value:   runtime.AbsentValue(),
			message: "Required input id not provided",
		},
		"not a number": {
			input:   runtime.Input{Name: "n", Location: runtime.LocationQuery, Kind: runtime.KindNumber},
			value:   runtime.TextValue("abc"),
			message: "Error parsing n as number from 'abc'",
		},
		"infinite number": {
			input:   runtime.Input{Name: "n", Location: runtime.LocationQuery, Kind: runtime.KindNumber},
			value:   runtime.TextValue("Inf"),
			message: "Error parsing n as number from 'Inf'",
		},
		"padded number": {
			input:   runtime.Input{Name: "n", Location: runtime.LocationQuery, Kind: runtime.KindNumber},
			value:   runtime.TextValue(" 42"),
			message: "Error parsing n as number from ' 42'",
		},
		"empty number": {
			input:   runtime.Input{Name: "n", Location: runtime.LocationQuery, Kind: runtime.KindNumber},
			value:   runtime.TextValue(""),
			message: "Error parsing n as number from ''",
		},
		"not a boolean": {
			input:   runtime.Input{Name: "b", Location: runtime.LocationQuery, Kind: runtime.KindBoolean},
			value:   runtime.TextValue("yes"),
			message: "Error parsing b as boolean from 'yes'",
		},
		"malformed body": {
			input:   runtime.Input{Name: "user", Location: runtime.LocationBody, Kind: runtime.KindObject, SchemaKey: "Ctl_create_user"},
			value:   runtime.TextValue(`{"name":`),
			message: "Error parsing user as JSON",
		},
		"schema violation": {
			input:   runtime.Input{Name: "user", Location: runtime.LocationBody, Kind: runtime.KindObject, SchemaKey: "Ctl_create_user"},
			value:   runtime.TextValue(`{"age":3}`),
			message: "Error validating parameter user",
		},
		"enum violation": {
			input:   runtime.Input{Name: "status", Location: runtime.LocationQuery, Kind: runtime.KindString, SchemaKey: "Ctl_find_status"},
			value:   runtime.TextValue("gone"),
			message: "Error validating parameter status",
		},
		"format violation": {
			input:   runtime.Input{Name: "email", Location: runtime.LocationQuery, Kind: runtime.KindString, SchemaKey: "Ctl_find_email"},
			value:   runtime.TextValue("not-an-email"),
			message: "Error validating parameter email",
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			in := tc.input
			_, err := v.Validate(&in, tc.value)
			he, ok := apimda.AsHTTPError(err)
			require.True(t, ok, "expected HTTPError, got %v", err)
			assert.Equal(t, http.StatusBadRequest, he.Status)
			assert.Contains(t, he.Message, tc.message)
		})
	}
}

func TestValidator_Validate_reportsEveryViolation(t *testing.T) {
	t.Parallel()

	v := newValidator(t)
	in := runtime.Input{Name: "user", Location: runtime.LocationBody, Kind: runtime.KindObject, SchemaKey: "Ctl_create_user"}

	_, err := v.Validate(&in, runtime.TextValue(`{"age":-1}`))
	he, ok := apimda.AsHTTPError(err)
	require.True(t, ok)
	lines := strings.Split(he.Message, "\n")
	assert.GreaterOrEqual(t, len(lines), 2)
	assert.Contains(t, he.Message, `"name"`)
}

func TestValidator_Validate_missingSchema(t *testing.T) {
	t.Parallel()

	v := newValidator(t)
	in := runtime.Input{Name: "x", Location: runtime.LocationBody, Kind: runtime.KindObject, SchemaKey: "Nope"}

	_, err := v.Validate(&in, runtime.TextValue(`{}`))
	require.Error(t, err)
	_, isHTTP := apimda.AsHTTPError(err)
	assert.False(t, isHTTP)
}

func TestNewValidator_rejectsNonObjectSchema(t *testing.T) {
	t.Parallel()

	_, err := runtime.NewValidator(map[string]any{"bad": "string"})
	require.Error(t, err)
}
