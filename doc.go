// Package apimda turns annotated Go handler types into a validated route
// model, JSON-schema documentation, an OpenAPI 3.1 document and a runtime
// dispatcher.
//
// A controller is a struct type annotated with directive comments. Each
// route is an exported method that takes a context.Context first and
// returns an error last:
//
//	// Users manages user accounts.
//	//
//	//apimda:controller /users
//	//apimda:tags users
//	type Users struct{ table string }
//
//	//apimda:env TABLE_NAME
//	func NewUsers(table string) *Users { return &Users{table: table} }
//
//	// Get returns a single user.
//	//
//	//apimda:get /{id}
//	//apimda:path id
//	func (u *Users) Get(ctx context.Context, id string) (User, error) {
//		return User{}, apimda.Error(http.StatusNotFound)
//	}
//
// Route directives are get, put, post, patch and delete, each with an
// optional local path. Parameters after the context are bound with one of
// request, body, path, query, header or cookie. Pointer parameters are
// optional. Handlers raise *HTTPError (via Error or Errorf) to produce an
// error response; the build step discovers every constant status code a
// route can raise and documents it.
//
// Handlers may return Result[T] to override the status code, headers and
// cookies of a success response.
//
// The scan package extracts the model, validation checks it, openapi
// projects it into a document and runtime dispatches requests against it.
// runtime/nethttp serves a manifest over net/http.
package apimda
