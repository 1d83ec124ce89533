package runtime_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bjaus/apimda/runtime"
)

const manifestJSON = `{
  "controllers": [{
    "package": "example.com/users",
    "name": "Users",
    "ctorEnvNames": ["TABLE"],
    "initMethod": "Init",
    "routes": [{
      "method": "post",
      "path": "/users",
      "handler": "Create",
      "inputs": [{"name": "user", "location": "body", "required": true, "schemaKey": "Users_Create_user", "typeName": "User", "kind": "object"}],
      "successOutput": {"statusCode": 200, "typeName": "User", "kind": "object"}
    }]
  }],
  "schemas": {"Users_Create_user": {"$ref": "User"}, "User": {"type": "object"}}
}`

func TestLoad(t *testing.T) {
	t.Parallel()

	app, err := runtime.Load([]byte(manifestJSON))
	require.NoError(t, err)

	c, ok := app.Controller("Users")
	require.True(t, ok)
	assert.Equal(t, []string{"TABLE"}, c.CtorEnvNames)
	assert.Equal(t, "Init", c.InitMethod)
	require.Len(t, c.Routes, 1)

	body, ok := c.Routes[0].Body()
	require.True(t, ok)
	assert.Equal(t, runtime.LocationBody, body.Location)
	assert.Equal(t, runtime.KindObject, body.Kind)
	assert.Equal(t, 200, c.Routes[0].SuccessOutput.StatusCode)
	assert.Len(t, app.Schemas, 2)

	_, ok = app.Controller("Cars")
	assert.False(t, ok)
}

func TestLoad_invalid(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"malformed json":    `{"controllers": [`,
		"no success output": `{"controllers": [{"name": "A", "routes": [{"method": "get", "path": "/", "handler": "Get"}]}]}`,
	}

	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			_, err := runtime.Load([]byte(data))
			require.ErrorIs(t, err, runtime.ErrInvalidManifest)
		})
	}
}

func TestLoad_defaultsSchemas(t *testing.T) {
	t.Parallel()

	app, err := runtime.Load([]byte(`{"controllers": []}`))
	require.NoError(t, err)
	assert.NotNil(t, app.Schemas)
}
