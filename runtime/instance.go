package runtime

import (
	"context"
	"errors"
	"fmt"
	"os"
	"reflect"
	"sync"
)

// ErrMissingConfig is returned when a constructor configuration value is
// not set.
var ErrMissingConfig = errors.New("missing configuration value")

// Factory constructs a controller instance from its configuration values,
// given in the order of the controller's CtorEnvNames.
type Factory func(config []string) (any, error)

// Static returns a Factory that always yields instance.
func Static(instance any) Factory {
	return func([]string) (any, error) { return instance, nil }
}

// Env resolves named configuration values.
type Env interface {
	Lookup(name string) (string, bool)
}

// EnvFunc adapts a function to the Env interface.
type EnvFunc func(name string) (string, bool)

// Lookup calls f(name).
func (f EnvFunc) Lookup(name string) (string, bool) { return f(name) }

// OSEnv reads configuration from the process environment.
var OSEnv Env = EnvFunc(os.LookupEnv)

// MapEnv is an Env backed by a map.
type MapEnv map[string]string

// Lookup returns m[name].
func (m MapEnv) Lookup(name string) (string, bool) {
	v, ok := m[name]
	return v, ok
}

// Manager constructs and initializes a controller instance at most once.
// The first call to Instance does the work; later and concurrent calls
// share its outcome, including a failure.
type Manager struct {
	controller *Controller
	factory    Factory
	env        Env

	once     sync.Once
	instance any
	err      error
}

// NewManager returns a Manager for controller. A nil env reads the process
// environment.
func NewManager(controller *Controller, factory Factory, env Env) *Manager {
	if env == nil {
		env = OSEnv
	}
	return &Manager{controller: controller, factory: factory, env: env}
}

// Instance returns the initialized controller instance.
func (m *Manager) Instance(ctx context.Context) (any, error) {
	m.once.Do(func() {
		m.instance, m.err = m.create(ctx)
	})
	return m.instance, m.err
}

func (m *Manager) create(ctx context.Context) (any, error) {
	config := make([]string, len(m.controller.CtorEnvNames))
	for i, name := range m.controller.CtorEnvNames {
		v, ok := m.env.Lookup(name)
		if !ok {
			return nil, fmt.Errorf("controller %s: %w: %s", m.controller.Name, ErrMissingConfig, name)
		}
		config[i] = v
	}

	instance, err := m.factory(config)
	if err != nil {
		return nil, fmt.Errorf("controller %s: constructing: %w", m.controller.Name, err)
	}
	if instance == nil {
		return nil, fmt.Errorf("controller %s: factory returned nil", m.controller.Name)
	}

	if m.controller.InitMethod != "" {
		if err := initialize(ctx, instance, m.controller.InitMethod); err != nil {
			return nil, fmt.Errorf("controller %s: %s: %w", m.controller.Name, m.controller.InitMethod, err)
		}
	}
	return instance, nil
}

func initialize(ctx context.Context, instance any, name string) error {
	method := reflect.ValueOf(instance).MethodByName(name)
	if !method.IsValid() {
		return fmt.Errorf("%w: %T has no method %s", ErrHandlerMismatch, instance, name)
	}
	mt := method.Type()
	if mt.NumIn() < 1 || !contextType.AssignableTo(mt.In(0)) || mt.NumOut() != 1 || mt.Out(0) != errorType {
		return fmt.Errorf("%w: %s must be func(context.Context, ...) error", ErrHandlerMismatch, name)
	}

	args := []reflect.Value{reflect.ValueOf(ctx)}
	if mt.IsVariadic() {
		if mt.NumIn() != 2 {
			return fmt.Errorf("%w: %s has required arguments", ErrHandlerMismatch, name)
		}
	} else if mt.NumIn() != 1 {
		return fmt.Errorf("%w: %s has required arguments", ErrHandlerMismatch, name)
	}

	out := method.Call(args)
	if err, _ := out[0].Interface().(error); err != nil {
		return err
	}
	return nil
}
