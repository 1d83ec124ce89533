// Package decorator declares a controller exercising every directive.
package decorator

import (
	"context"
	"fmt"
)

// DecoratorController illustrates most variations of the available
// directives. For the native request, see BuiltinController.
//
//apimda:controller /decorator
//apimda:tags decorator controller
type DecoratorController struct {
	tableName   string
	bucketName  string
	initialized bool
}

// NewDecoratorController binds the controller to its table and bucket.
//
//apimda:env TABLE_NAME BUCKET_NAME
func NewDecoratorController(tableName, bucketName string, _ ...string) *DecoratorController {
	return &DecoratorController{tableName: tableName, bucketName: bucketName}
}

// AsyncInitializer runs once before the first request.
//
//apimda:init
func (c *DecoratorController) AsyncInitializer(context.Context) error {
	c.initialized = true
	return nil
}

// GetNoParam is a GET method with no path.
//
//apimda:get
func (c *DecoratorController) GetNoParam(context.Context) error { return nil }

// GetWithParam is a GET method with a path.
//
//apimda:get /path
func (c *DecoratorController) GetWithParam(context.Context) error { return nil }

// PostNoParam is a POST method with no path.
//
//apimda:post
func (c *DecoratorController) PostNoParam(context.Context) error { return nil }

// PostWithParam is a POST method with a path.
//
//apimda:post /path
func (c *DecoratorController) PostWithParam(context.Context) error { return nil }

// PutNoParam is a PUT method with no path.
//
//apimda:put
func (c *DecoratorController) PutNoParam(context.Context) error { return nil }

// PutWithParam is a PUT method with a path.
//
//apimda:put /path
func (c *DecoratorController) PutWithParam(context.Context) error { return nil }

// PatchNoParam is a PATCH method with no path.
//
//apimda:patch
func (c *DecoratorController) PatchNoParam(context.Context) error { return nil }

// PatchWithParam is a PATCH method with a path.
//
//apimda:patch /path
func (c *DecoratorController) PatchWithParam(context.Context) error { return nil }

// DeleteNoParam is a DELETE method with no path.
//
//apimda:delete
func (c *DecoratorController) DeleteNoParam(context.Context) error { return nil }

// DeleteWithParam is a DELETE method with a path.
//
//apimda:delete /path
func (c *DecoratorController) DeleteWithParam(context.Context) error { return nil }

// BodyNoParam injects the request body, assumed to be JSON.
//
//apimda:post /bodyNoParam
//apimda:body body
func (c *DecoratorController) BodyNoParam(_ context.Context, body string) error { return nil }

// BodyWithParam injects the request body with a custom MIME type.
//
//apimda:post /bodyWithParam
//apimda:body body text/plain
func (c *DecoratorController) BodyWithParam(_ context.Context, body string) error { return nil }

// PathNoParam injects a path variable named after the parameter.
//
//apimda:get /pathNoParam/{name}
//apimda:path name
func (c *DecoratorController) PathNoParam(_ context.Context, name string) error { return nil }

// PathWithParam injects a path variable with a custom name.
//
//apimda:get /pathWithParam/{customName}
//apimda:path name customName
func (c *DecoratorController) PathWithParam(_ context.Context, name string) error { return nil }

// QueryNoParam injects a query parameter named after the parameter.
//
//apimda:get /queryNoParam
//apimda:query name
func (c *DecoratorController) QueryNoParam(_ context.Context, name string) error { return nil }

// QueryWithParam injects a query parameter with a custom name.
//
//apimda:get /queryWithParam
//apimda:query name customName
func (c *DecoratorController) QueryWithParam(_ context.Context, name string) error { return nil }

// Header injects a request header.
//
//apimda:get /header
//apimda:header language Accept-Language
func (c *DecoratorController) Header(_ context.Context, language string) error { return nil }

// Cookie injects a cookie value.
//
//apimda:get /cookie
//apimda:cookie session cookieName
func (c *DecoratorController) Cookie(_ context.Context, session string) error { return nil }

// Produces sets the Content-Type response header.
//
//apimda:get /produces
//apimda:produces text/html; charset=utf-8
func (c *DecoratorController) Produces(context.Context) (string, error) {
	return "hello ", nil
}

// Documented shows documentation directives.
//
//apimda:get /documented/{id}
//apimda:summary Find a thing
//apimda:tags things
//apimda:path id
//apimda:param id Identifier of the thing.
//apimda:returns The thing's label.
func (c *DecoratorController) Documented(_ context.Context, id string) (string, error) {
	return fmt.Sprintf("%s/%s/%s", c.tableName, c.bucketName, id), nil
}
