package scan

import (
	"errors"
	"fmt"
	"go/types"
	"reflect"

	"github.com/bjaus/apimda"
	"github.com/bjaus/apimda/metadata"
	"github.com/bjaus/apimda/runtime"
)

var apimdaPath = reflect.TypeFor[apimda.HTTPError]().PkgPath()

const rawPackage = "net/http"

// qualifier prints types of pkg unqualified and every other type with its
// package name.
func qualifier(pkg *types.Package) types.Qualifier {
	return func(p *types.Package) string {
		if p == pkg {
			return ""
		}
		return p.Name()
	}
}

func isNamed(t types.Type, path, name string) bool {
	n, ok := types.Unalias(t).(*types.Named)
	if !ok {
		return false
	}
	obj := n.Origin().Obj()
	return obj.Pkg() != nil && obj.Pkg().Path() == path && obj.Name() == name
}

func isContext(t types.Type) bool { return isNamed(t, "context", "Context") }

func isError(t types.Type) bool {
	return types.Identical(t, types.Universe.Lookup("error").Type())
}

// fromPackage reports whether t, or the type t points to, is declared in
// the package with the given path.
func fromPackage(t types.Type, path string) bool {
	t = types.Unalias(t)
	if p, ok := t.(*types.Pointer); ok {
		t = types.Unalias(p.Elem())
	}
	n, ok := t.(*types.Named)
	return ok && n.Obj().Pkg() != nil && n.Obj().Pkg().Path() == path
}

// unwrapResult returns T for apimda.Result[T].
func unwrapResult(t types.Type) (types.Type, bool) {
	if !isNamed(t, apimdaPath, "Result") {
		return t, false
	}
	n := types.Unalias(t).(*types.Named)
	if n.TypeArgs().Len() != 1 {
		return t, false
	}
	return n.TypeArgs().At(0), true
}

func deref(t types.Type) (types.Type, bool) {
	if p, ok := types.Unalias(t).(*types.Pointer); ok {
		return p.Elem(), true
	}
	return t, false
}

// errNotSerializable is returned by classify for types whose values have
// behaviour but no data representation: functions, channels and
// interfaces with methods.
var errNotSerializable = errors.New("type is not serializable")

// classify returns the kind of a declared type.
func classify(t types.Type) (metadata.Kind, error) {
	t = types.Unalias(t)
	for {
		p, ok := t.(*types.Pointer)
		if !ok {
			break
		}
		t = types.Unalias(p.Elem())
	}

	if fromPackage(t, rawPackage) {
		return runtime.KindRaw, nil
	}
	if isNamed(t, "time", "Time") {
		return runtime.KindDate, nil
	}
	if n, ok := t.(*types.Named); ok && n.TypeArgs().Len() > 0 {
		return runtime.KindContainer, nil
	}

	switch u := t.Underlying().(type) {
	case *types.Basic:
		info := u.Info()
		switch {
		case info&types.IsString != 0:
			return runtime.KindString, nil
		case info&types.IsBoolean != 0:
			return runtime.KindBoolean, nil
		case info&(types.IsInteger|types.IsFloat) != 0:
			return runtime.KindNumber, nil
		}
	case *types.Slice:
		if b, ok := types.Unalias(u.Elem()).(*types.Basic); ok && b.Kind() == types.Byte {
			return runtime.KindBinary, nil
		}
		return runtime.KindArray, nil
	case *types.Array:
		return runtime.KindArray, nil
	case *types.Map:
		return runtime.KindContainer, nil
	case *types.Struct:
		if u.NumFields() == 0 {
			return runtime.KindUndefined, nil
		}
		return runtime.KindObject, nil
	case *types.Interface:
		if u.Empty() {
			return runtime.KindUnion, nil
		}
		return "", fmt.Errorf("%w: %s", errNotSerializable, t)
	case *types.Signature, *types.Chan:
		return "", fmt.Errorf("%w: %s", errNotSerializable, t)
	}
	return "", fmt.Errorf("%w: %s", errNotSerializable, t)
}

func typeRef(t types.Type, pkg *types.Package) (*metadata.TypeRef, error) {
	kind, err := classify(t)
	if err != nil {
		return nil, err
	}
	return &metadata.TypeRef{Name: types.TypeString(t, qualifier(pkg)), Kind: kind}, nil
}
