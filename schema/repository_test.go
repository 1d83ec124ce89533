package schema_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bjaus/apimda/schema"
)

func sampleSchemas() map[string]schema.Schema {
	return map[string]schema.Schema{
		"Ctl_create_body": {"$ref": "User"},
		"Ctl_create_return": {
			"type":  "array",
			"items": map[string]any{"$ref": "User"},
		},
		"Ctl_list_return": {"type": "string", "description": "plain"},
		"User": {
			"type": "object",
			"properties": map[string]any{
				"address": map[string]any{"$ref": "Address"},
				"name":    map[string]any{"type": "string", "description": "full name", "example": "Joe"},
			},
		},
		"Address": {
			"type": "object",
			"properties": map[string]any{
				"owner": map[string]any{"$ref": "User"},
			},
		},
		"Unused": {"type": "object"},
	}
}

func TestRepository_Copy_closure(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		keys   []string
		expect []string
	}{
		"all schemas when keys is nil": {
			keys:   nil,
			expect: []string{"Address", "Ctl_create_body", "Ctl_create_return", "Ctl_list_return", "Unused", "User"},
		},
		"empty key set": {
			keys:   []string{},
			expect: []string{},
		},
		"closure follows nested refs and cycles": {
			keys:   []string{"Ctl_create_body"},
			expect: []string{"Address", "Ctl_create_body", "User"},
		},
		"closure through array items": {
			keys:   []string{"Ctl_create_return"},
			expect: []string{"Address", "Ctl_create_return", "User"},
		},
		"no refs": {
			keys:   []string{"Ctl_list_return"},
			expect: []string{"Ctl_list_return"},
		},
		"unknown key ignored": {
			keys:   []string{"Missing", "Unused"},
			expect: []string{"Unused"},
		},
	}

	repo := schema.NewRepository(sampleSchemas())

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got := repo.Copy(nil, tc.keys, false)
			keys := make([]string, 0, len(got))
			for k := range got {
				keys = append(keys, k)
			}
			assert.ElementsMatch(t, tc.expect, keys)
		})
	}
}

func TestRepository_Copy_rewritesAfterClosure(t *testing.T) {
	t.Parallel()

	repo := schema.NewRepository(sampleSchemas())
	got := repo.Copy(func(ref string) string { return "#/components/schemas/" + ref }, []string{"Ctl_create_body"}, false)

	require.Len(t, got, 3)
	assert.Equal(t, "#/components/schemas/User", got["Ctl_create_body"]["$ref"])

	props := got["User"]["properties"].(map[string]any)
	assert.Equal(t, "#/components/schemas/Address", props["address"].(map[string]any)["$ref"])
}

func TestRepository_Copy_stripDocs(t *testing.T) {
	t.Parallel()

	repo := schema.NewRepository(sampleSchemas())
	got := repo.Copy(nil, nil, true)

	assert.NotContains(t, got["Ctl_list_return"], "description")
	name := got["User"]["properties"].(map[string]any)["name"].(map[string]any)
	assert.Equal(t, map[string]any{"type": "string"}, name)

	orig, ok := repo.Get("User")
	require.True(t, ok)
	name = orig["properties"].(map[string]any)["name"].(map[string]any)
	assert.Equal(t, "full name", name["description"])
}

func TestRepository_Copy_independent(t *testing.T) {
	t.Parallel()

	repo := schema.NewRepository(sampleSchemas())

	first := repo.Copy(nil, nil, false)
	first["User"]["type"] = "mutated"
	delete(first, "Address")

	second := repo.Copy(nil, nil, false)
	assert.Equal(t, "object", second["User"]["type"])
	assert.Contains(t, second, "Address")
	assert.Equal(t, second, repo.Copy(nil, nil, false))
}

func TestRepository_Copy_encodesKeys(t *testing.T) {
	t.Parallel()

	repo := schema.NewRepository(map[string]schema.Schema{
		"Page[User]":      {"type": "object"},
		"Page%5BItem%5D": {"type": "object"},
	})

	got := repo.Copy(nil, nil, false)
	assert.Contains(t, got, "Page%5BUser%5D")
	assert.Contains(t, got, "Page%5BItem%5D")
	assert.Len(t, got, 2)
}

func TestVisit(t *testing.T) {
	t.Parallel()

	s := schema.Schema{
		"anyOf": []any{map[string]any{"$ref": "A"}, map[string]any{"$ref": "B"}},
		"allOf": []any{map[string]any{"$ref": "C"}},
		"oneOf": []any{map[string]any{"$ref": "D"}},
		"properties": map[string]any{
			"e": map[string]any{"$ref": "E"},
		},
		"items":                map[string]any{"$ref": "F"},
		"additionalProperties": map[string]any{"$ref": "G"},
	}

	assert.ElementsMatch(t, []string{"A", "B", "C", "D", "E", "F", "G"}, schema.Refs(s))
}

func TestClosure_cycle(t *testing.T) {
	t.Parallel()

	schemas := map[string]schema.Schema{
		"A": {"$ref": "B"},
		"B": {"items": map[string]any{"$ref": "A"}},
	}

	got := schema.Closure(schemas, []string{"A"})
	assert.Len(t, got, 2)
}
