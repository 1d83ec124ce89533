// Package fatal declares controllers that cannot be scanned. Each one
// triggers exactly one declaration error.
package fatal

import (
	"context"
	"io"
)

//apimda:controller /undecorated
type UndecoratedController struct{}

//apimda:get
func (c *UndecoratedController) Get(_ context.Context, x string) error { return nil }

//apimda:controller /unknownParam
type UnknownParamController struct{}

//apimda:get
//apimda:query nope
func (c *UnknownParamController) Get(context.Context) error { return nil }

//apimda:controller /behaviourInput
type BehaviourInputController struct{}

//apimda:get
//apimda:query cb
func (c *BehaviourInputController) Get(_ context.Context, cb func()) error { return nil }

//apimda:controller /behaviourOutput
type BehaviourOutputController struct{}

//apimda:get
func (c *BehaviourOutputController) Get(context.Context) (io.Reader, error) { return nil, nil }

//apimda:controller /noContext
type NoContextController struct{}

//apimda:get
func (c *NoContextController) Get() error { return nil }

//apimda:controller /requiredCtor
type RequiredCtorController struct{}

func NewRequiredCtorController(n int) *RequiredCtorController {
	return &RequiredCtorController{}
}

//apimda:controller /twoEnvCtors
type TwoEnvCtorsController struct{}

//apimda:env FIRST
func NewTwoEnvCtorsController(first string) *TwoEnvCtorsController {
	return &TwoEnvCtorsController{}
}

//apimda:env SECOND
func NewTwoEnvCtorsControllerSecond(second string) (*TwoEnvCtorsController, error) {
	return &TwoEnvCtorsController{}, nil
}

//apimda:controller /ambiguousCtors
type AmbiguousCtorsController struct{}

func NewAmbiguousCtorsController() AmbiguousCtorsController {
	return AmbiguousCtorsController{}
}

func NewAmbiguousCtorsControllerDefault() *AmbiguousCtorsController {
	return &AmbiguousCtorsController{}
}

//apimda:controller /twoInits
type TwoInitsController struct{}

//apimda:init
func (c *TwoInitsController) InitOne(context.Context) error { return nil }

//apimda:init
func (c *TwoInitsController) InitTwo(context.Context) error { return nil }

//apimda:controller /initParams
type InitParamsController struct{}

//apimda:init
func (c *InitParamsController) Init(_ context.Context, region string) error { return nil }

//apimda:controller /unknownDirective
//apimda:tag misspelled
type UnknownDirectiveController struct{}
