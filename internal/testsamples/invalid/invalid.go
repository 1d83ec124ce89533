// Package invalid declares a controller that scans cleanly but breaks every
// validation rule at least once.
package invalid

import "context"

//apimda:controller /invalid/
type InvalidController struct{}

//apimda:get /appDupRoute
func (c *InvalidController) AppDupRouteOne(context.Context) error { return nil }

//apimda:get /appDupRoute
func (c *InvalidController) AppDupRouteTwo(context.Context) error { return nil }

//apimda:get /appDupRoute
func (c *InvalidController) AppDupRouteThree(context.Context) error { return nil }

//apimda:get rtInvalidNoStartSlash
func (c *InvalidController) RtInvalidNoStartSlash(context.Context) error { return nil }

//apimda:get rtInvalidHasEndSlash/
func (c *InvalidController) RtInvalidHasEndSlash(context.Context) error { return nil }

//apimda:get /rtOnlyOneBodyAllowed
//apimda:body b1
//apimda:body b2
func (c *InvalidController) RtOnlyOneBodyAllowed(_ context.Context, b1 string, b2 float64) error {
	return nil
}

//apimda:get /rtMissingPathVarOne/{param}
func (c *InvalidController) RtMissingPathVarOne(context.Context) error { return nil }

//apimda:get /rtMissingPathVar/{okayParam}/{missingParam}
//apimda:path okayParam
func (c *InvalidController) RtMissingPathVarTwo(_ context.Context, okayParam string) error {
	return nil
}

//apimda:get /rtDuplicatePathVar/{okayParam}/{okayParam}
//apimda:path okayParam
func (c *InvalidController) RtDuplicatePathVar(_ context.Context, okayParam string) error {
	return nil
}

//apimda:get /outBufferNoMime/{optional}
//apimda:query buffer
//apimda:body mime text/html
//apimda:query array
//apimda:query generic
//apimda:query union
//apimda:path optional
func (c *InvalidController) Inputs(
	_ context.Context,
	buffer []byte,
	mime float64,
	array []string,
	generic map[string]bool,
	union any,
	optional *string,
) error {
	return nil
}

//apimda:get /outBufferNoMime
func (c *InvalidController) OutBufferNoMime(context.Context) ([]byte, error) {
	return nil, nil
}

//apimda:get /outMimeNotSupported
//apimda:produces text/html
func (c *InvalidController) OutMimeNotSupported(context.Context) (float64, error) {
	return 0, nil
}

//apimda:get /outUndefinedNotSupported
func (c *InvalidController) OutUndefinedNotSupported(context.Context) (struct{}, error) {
	return struct{}{}, nil
}

//apimda:get /outGenericNotSupported
func (c *InvalidController) OutGenericNotSupported(context.Context) (map[string]string, error) {
	return nil, nil
}

//apimda:get /outUnionNotSupported
func (c *InvalidController) OutUnionNotSupported(context.Context) (any, error) {
	return nil, nil
}
