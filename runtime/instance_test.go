package runtime_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bjaus/apimda/runtime"
)

type store struct {
	table  string
	region string
	inits  atomic.Int32
	fail   error
}

func (s *store) Init(context.Context, ...string) error {
	s.inits.Add(1)
	return s.fail
}

type needsArgs struct{}

func (needsArgs) Init(context.Context, string) error { return nil }

func TestManager_Instance(t *testing.T) {
	t.Parallel()

	var built atomic.Int32
	c := &runtime.Controller{Name: "Store", CtorEnvNames: []string{"TABLE", "REGION"}, InitMethod: "Init"}
	m := runtime.NewManager(c, func(config []string) (any, error) {
		built.Add(1)
		return &store{table: config[0], region: config[1]}, nil
	}, runtime.MapEnv{"TABLE": "users", "REGION": "eu"})

	var wg sync.WaitGroup
	instances := make([]any, 10)
	for i := range instances {
		wg.Add(1)
		go func() {
			defer wg.Done()
			inst, err := m.Instance(context.Background())
			assert.NoError(t, err)
			instances[i] = inst
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), built.Load())
	s, ok := instances[0].(*store)
	require.True(t, ok)
	assert.Equal(t, "users", s.table)
	assert.Equal(t, "eu", s.region)
	assert.Equal(t, int32(1), s.inits.Load())
	for _, inst := range instances {
		assert.Same(t, s, inst)
	}
}

func TestManager_Instance_errors(t *testing.T) {
	t.Parallel()

	initErr := errors.New("table not found")
	ctorErr := errors.New("bad config")

	tests := map[string]struct {
		controller *runtime.Controller
		factory    runtime.Factory
		env        runtime.Env
		is         error
	}{
		"missing configuration": {
			controller: &runtime.Controller{Name: "Store", CtorEnvNames: []string{"TABLE"}},
			factory:    runtime.Static(&store{}),
			env:        runtime.MapEnv{},
			is:         runtime.ErrMissingConfig,
		},
		"constructor failure": {
			controller: &runtime.Controller{Name: "Store"},
			factory:    func([]string) (any, error) { return nil, ctorErr },
			env:        runtime.MapEnv{},
			is:         ctorErr,
		},
		"initializer failure": {
			controller: &runtime.Controller{Name: "Store", InitMethod: "Init"},
			factory:    runtime.Static(&store{fail: initErr}),
			env:        runtime.MapEnv{},
			is:         initErr,
		},
		"initializer with required arguments": {
			controller: &runtime.Controller{Name: "Store", InitMethod: "Init"},
			factory:    runtime.Static(needsArgs{}),
			env:        runtime.MapEnv{},
			is:         runtime.ErrHandlerMismatch,
		},
		"initializer not found": {
			controller: &runtime.Controller{Name: "Store", InitMethod: "Setup"},
			factory:    runtime.Static(&store{}),
			env:        runtime.MapEnv{},
			is:         runtime.ErrHandlerMismatch,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			m := runtime.NewManager(tc.controller, tc.factory, tc.env)
			_, err := m.Instance(context.Background())
			require.ErrorIs(t, err, tc.is)

			_, again := m.Instance(context.Background())
			assert.Equal(t, err, again)
		})
	}
}

func TestEnvFunc(t *testing.T) {
	t.Parallel()

	env := runtime.EnvFunc(func(name string) (string, bool) { return name + "!", true })
	v, ok := env.Lookup("x")
	assert.True(t, ok)
	assert.Equal(t, "x!", v)
}
