package openapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/bjaus/apimda/metadata"
	"github.com/bjaus/apimda/openapi"
	"github.com/bjaus/apimda/scan"
)

const samples = "github.com/bjaus/apimda/internal/testsamples/"

var userApp = sync.OnceValues(func() (*metadata.App, error) {
	return scan.Extract(context.Background(), scan.Config{}, samples+"userapi")
})

func options() openapi.Options {
	return openapi.Options{
		Info: &openapi3.Info{
			Title:          "Sample Users App",
			Description:    "This is a sample server for a user store.",
			TermsOfService: "https://example.com/terms/",
			Contact: &openapi3.Contact{
				Name:  "API Support",
				URL:   "https://www.example.com/support",
				Email: "support@example.com",
			},
			Version: "1.0.1",
		},
		Servers: openapi3.Servers{
			{URL: "https://development.gigantic-server.com/v1", Description: "Development server"},
			{URL: "https://staging.gigantic-server.com/v1", Description: "Staging server"},
		},
		Security: openapi3.SecurityRequirements{
			{"user_auth": {"write:users", "read:users"}},
		},
		SecuritySchemes: openapi3.SecuritySchemes{
			"userSecurityScheme": &openapi3.SecuritySchemeRef{Value: &openapi3.SecurityScheme{
				Type: "oauth2",
				Flows: &openapi3.OAuthFlows{Implicit: &openapi3.OAuthFlow{
					AuthorizationURL: "https://example.org/api/oauth/dialog",
					Scopes:           map[string]string{"write:users": "modify users in your account", "read:users": "read your users"},
				}},
			}},
		},
		PathSecurity: map[string]map[string]openapi3.SecurityRequirements{
			"/users": {
				"get":  {{"userSecurityScheme": {"read:users"}}},
				"post": {{"userSecurityScheme": {"write:users"}}},
			},
		},
	}
}

func generate(t *testing.T, opts openapi.Options) *openapi3.T {
	t.Helper()
	app, err := userApp()
	require.NoError(t, err)
	doc, err := openapi.Generate(app, opts)
	require.NoError(t, err)
	return doc
}

func TestGenerate_versionAndOptions(t *testing.T) {
	t.Parallel()
	opts := options()
	doc := generate(t, opts)

	assert.Equal(t, "3.1.0", doc.OpenAPI)
	assert.Equal(t, opts.Info, doc.Info)
	assert.Equal(t, opts.Servers, doc.Servers)
	assert.Equal(t, opts.Security, doc.Security)
	assert.Equal(t, opts.SecuritySchemes["userSecurityScheme"], doc.Components.SecuritySchemes["userSecurityScheme"])
}

func TestGenerate_defaultInfo(t *testing.T) {
	t.Parallel()
	doc := generate(t, openapi.Options{})

	assert.Equal(t, openapi.DefaultInfo(), doc.Info)
	assert.Empty(t, doc.Servers)
	assert.Nil(t, doc.Paths.Value("/users").Get.Security)
}

func TestGenerate_paths(t *testing.T) {
	t.Parallel()
	doc := generate(t, options())

	assert.Equal(t, 2, doc.Paths.Len())

	users := doc.Paths.Value("/users")
	require.NotNil(t, users)
	assert.Len(t, users.Operations(), 2)

	get := users.Get
	require.NotNil(t, get)
	assert.Equal(t, []string{"users"}, get.Tags)
	assert.Equal(t, "Get all users", get.Summary)
	assert.Equal(t, "Get all users in the system, with optional filter by user type.", get.Description)
	assert.Equal(t, "UserController_GetUsers", get.OperationID)

	require.Len(t, get.Parameters, 1)
	param := get.Parameters[0].Value
	assert.Equal(t, "userType", param.Name)
	assert.Equal(t, "query", param.In)
	assert.False(t, param.Required)
	assert.Equal(t, "optional type of user to return", param.Description)
	assert.Equal(t, "#/components/schemas/UserType", param.Schema.Ref)

	require.Equal(t, 2, get.Responses.Len())
	ok := get.Responses.Status(200).Value
	assert.Equal(t, "array of all users, filtered by user type if specified", *ok.Description)
	items := ok.Content["application/json"].Schema.Value
	require.NotNil(t, items)
	assert.True(t, items.Type.Is(openapi3.TypeArray))
	assert.Equal(t, "#/components/schemas/User", items.Items.Ref)
	bad := get.Responses.Status(400).Value
	assert.Equal(t, "Bad Request", *bad.Description)
	assert.Nil(t, bad.Content)
	assert.Equal(t, &openapi3.SecurityRequirements{{"userSecurityScheme": {"read:users"}}}, get.Security)

	post := users.Post
	require.NotNil(t, post)
	body := post.RequestBody.Value
	assert.Equal(t, "user to create", body.Description)
	assert.True(t, body.Required)
	assert.Equal(t, "#/components/schemas/UserPost", body.Content["application/json"].Schema.Ref)
	assert.Equal(t, &openapi3.SecurityRequirements{{"userSecurityScheme": {"write:users"}}}, post.Security)
	assert.Equal(t, 2, post.Responses.Len())

	byID := doc.Paths.Value("/users/{userId}")
	require.NotNil(t, byID)
	assert.Len(t, byID.Operations(), 4)

	tests := map[string]struct {
		op      *openapi3.Operation
		hasBody bool
	}{
		"get":    {op: byID.Get},
		"put":    {op: byID.Put, hasBody: true},
		"patch":  {op: byID.Patch, hasBody: true},
		"delete": {op: byID.Delete},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			require.NotNil(t, tc.op)
			assert.Equal(t, []string{"users"}, tc.op.Tags)
			assert.NotEmpty(t, tc.op.Summary)
			assert.NotEmpty(t, tc.op.Description)
			assert.NotEmpty(t, tc.op.OperationID)
			require.Len(t, tc.op.Parameters, 1)
			assert.Equal(t, "userId", tc.op.Parameters[0].Value.Name)
			assert.Equal(t, "path", tc.op.Parameters[0].Value.In)
			assert.Equal(t, tc.hasBody, tc.op.RequestBody != nil)
			assert.Equal(t, 3, tc.op.Responses.Len())
			for _, code := range []int{200, 400, 404} {
				assert.NotNil(t, tc.op.Responses.Status(code), "status %d", code)
			}
			assert.Nil(t, tc.op.Security)
		})
	}

	deleted := byID.Delete.Responses.Status(200).Value
	assert.Equal(t, "OK", *deleted.Description)
	assert.Nil(t, deleted.Content)
}

func TestGenerate_components(t *testing.T) {
	t.Parallel()
	doc := generate(t, options())

	schemas := doc.Components.Schemas
	assert.Len(t, schemas, 6)
	for _, name := range []string{"UserType", "User", "UUID", "UserPost", "UserPut", "UserPatch"} {
		assert.Contains(t, schemas, name)
	}

	user := schemas["User"].Value
	require.NotNil(t, user)
	assert.Equal(t, "#/components/schemas/UUID", user.Properties["id"].Ref)
	assert.Equal(t, "email", user.Properties["email"].Value.Format)
	assert.Equal(t, []any{"ADMIN", "USER"}, schemas["UserType"].Value.Enum)

	require.Len(t, doc.Tags, 1)
	assert.Equal(t, "users", doc.Tags[0].Name)
}

func TestGenerate_mediaTypes(t *testing.T) {
	t.Parallel()

	app, err := scan.Extract(context.Background(), scan.Config{}, samples+"builtin", samples+"decorator")
	require.NoError(t, err)
	doc, err := openapi.Generate(app, openapi.Options{})
	require.NoError(t, err)

	binary := doc.Paths.Value("/builtin/binary").Post
	require.NotNil(t, binary)
	assert.Equal(t, "binary", binary.RequestBody.Value.Content["image/png"].Schema.Value.Format)
	assert.Equal(t, "binary", binary.Responses.Status(200).Value.Content["image/png"].Schema.Value.Format)

	str := doc.Paths.Value("/builtin/stringPrimitive").Get
	assert.Contains(t, str.Responses.Status(200).Value.Content, "text/plain")
	assert.Equal(t, "string", str.Parameters[0].Value.Schema.Value.Type.Slice()[0])

	plainBody := doc.Paths.Value("/decorator/bodyNoParam").Post
	assert.Contains(t, plainBody.RequestBody.Value.Content, "text/plain")
	customBody := doc.Paths.Value("/decorator/bodyWithParam").Post
	assert.Contains(t, customBody.RequestBody.Value.Content, "text/plain")

	produces := doc.Paths.Value("/decorator/produces").Get
	assert.Contains(t, produces.Responses.Status(200).Value.Content, "text/html; charset=utf-8")

	header := doc.Paths.Value("/decorator/header").Get
	assert.Equal(t, "Accept-Language", header.Parameters[0].Value.Name)
	assert.Equal(t, "header", header.Parameters[0].Value.In)

	raw := doc.Paths.Value("/builtin/raw").Get
	assert.Empty(t, raw.Parameters)
	assert.Nil(t, raw.RequestBody)
	assert.Nil(t, raw.Responses.Status(200).Value.Content)

	decorator := doc.Paths.Value("/decorator")
	assert.Len(t, decorator.Operations(), 5)
	assert.Equal(t, []string{"decorator", "controller"}, decorator.Get.Tags)
	assert.Equal(t, []string{"decorator", "controller", "things"}, doc.Paths.Value("/decorator/documented/{id}").Get.Tags)
}

func TestWriteJSON(t *testing.T) {
	t.Parallel()
	doc := generate(t, options())

	var buf bytes.Buffer
	require.NoError(t, openapi.WriteJSON(&buf, doc))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "3.1.0", decoded["openapi"])
	assert.Contains(t, decoded["paths"], "/users/{userId}")

	loaded, err := openapi3.NewLoader().LoadFromData(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, doc.Paths.Len(), loaded.Paths.Len())
}

func TestWriteYAML(t *testing.T) {
	t.Parallel()
	doc := generate(t, options())

	var buf bytes.Buffer
	require.NoError(t, openapi.WriteYAML(&buf, doc))
	out := buf.String()
	assert.Contains(t, out, "openapi: 3.1.0\n")
	assert.Contains(t, out, "\"200\":")
	assert.NotContains(t, out, "{\"")

	var decoded map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "3.1.0", decoded["openapi"])
	paths, ok := decoded["paths"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, paths, "/users")
}
