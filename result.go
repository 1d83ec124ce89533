package apimda

// Customizer is implemented by handler results that override the default
// status code, headers and cookies of a route's success response.
type Customizer interface {
	StatusCoder
	ResponseHeaders() map[string]string
	ResponseCookies() map[string]string
	Payload() any
}

// Result wraps a handler payload with response overrides. A zero Status
// keeps the route's default status code.
//
//	func (c *Users) Create(ctx context.Context, u User) (apimda.Result[User], error) {
//		return apimda.Result[User]{Status: http.StatusCreated, Body: u}, nil
//	}
type Result[T any] struct {
	Status  int
	Headers map[string]string
	Cookies map[string]string
	Body    T
}

// StatusCode returns the overriding status, or zero.
func (r Result[T]) StatusCode() int { return r.Status }

// ResponseHeaders returns the custom response headers.
func (r Result[T]) ResponseHeaders() map[string]string { return r.Headers }

// ResponseCookies returns the custom response cookies.
func (r Result[T]) ResponseCookies() map[string]string { return r.Cookies }

// Payload returns the wrapped body.
func (r Result[T]) Payload() any { return r.Body }
