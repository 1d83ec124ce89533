package scan

import (
	"go/ast"
	"go/constant"
	"go/types"
	"sort"

	"golang.org/x/tools/go/packages"
	"golang.org/x/tools/go/types/typeutil"
)

// funcBody is a function declaration with the type information of its
// package.
type funcBody struct {
	body *ast.BlockStmt
	info *types.Info
}

// effects finds the HTTP error codes a function can raise. Calls are
// followed when their target is statically known and declared in a loaded
// package. Interface calls, function values and codes held in variables
// are not resolved.
type effects struct {
	bodies map[*types.Func]funcBody
}

func newEffects(pkgs []*packages.Package) *effects {
	e := &effects{bodies: map[*types.Func]funcBody{}}
	for _, pkg := range pkgs {
		for _, file := range pkg.Syntax {
			for _, decl := range file.Decls {
				fd, ok := decl.(*ast.FuncDecl)
				if !ok || fd.Body == nil {
					continue
				}
				if fn, ok := pkg.TypesInfo.Defs[fd.Name].(*types.Func); ok {
					e.bodies[fn] = funcBody{body: fd.Body, info: pkg.TypesInfo}
				}
			}
		}
	}
	return e
}

// codes returns the distinct status codes reachable from fn, ascending.
func (e *effects) codes(fn *types.Func) []int {
	found := map[int]bool{}
	visited := map[*types.Func]bool{}
	queue := []*types.Func{fn.Origin()}

	for len(queue) > 0 {
		cur := queue[len(queue)-1]
		queue = queue[:len(queue)-1]
		if visited[cur] {
			continue
		}
		visited[cur] = true

		fb, ok := e.bodies[cur]
		if !ok {
			continue
		}
		ast.Inspect(fb.body, func(n ast.Node) bool {
			switch n := n.(type) {
			case *ast.CallExpr:
				if code, ok := errorCall(fb.info, n); ok {
					found[code] = true
				}
				if callee := typeutil.StaticCallee(fb.info, n); callee != nil {
					queue = append(queue, callee.Origin())
				}
			case *ast.CompositeLit:
				if code, ok := errorLiteral(fb.info, n); ok {
					found[code] = true
				}
			}
			return true
		})
	}

	codes := make([]int, 0, len(found))
	for c := range found {
		codes = append(codes, c)
	}
	sort.Ints(codes)
	return codes
}

// errorCall matches apimda.Error(code, ...) and apimda.Errorf(code, ...)
// with a constant code.
func errorCall(info *types.Info, call *ast.CallExpr) (int, bool) {
	fn, ok := typeutil.Callee(info, call).(*types.Func)
	if !ok || fn.Pkg() == nil || fn.Pkg().Path() != apimdaPath {
		return 0, false
	}
	if fn.Name() != "Error" && fn.Name() != "Errorf" {
		return 0, false
	}
	if len(call.Args) == 0 {
		return 0, false
	}
	return constantInt(info, call.Args[0])
}

// errorLiteral matches apimda.HTTPError{Status: code} with a constant code.
func errorLiteral(info *types.Info, lit *ast.CompositeLit) (int, bool) {
	t := info.TypeOf(lit)
	if t == nil || !isNamed(t, apimdaPath, "HTTPError") {
		return 0, false
	}
	for i, elt := range lit.Elts {
		if kv, ok := elt.(*ast.KeyValueExpr); ok {
			if key, ok := kv.Key.(*ast.Ident); ok && key.Name == "Status" {
				return constantInt(info, kv.Value)
			}
			continue
		}
		if i == 0 {
			return constantInt(info, elt)
		}
	}
	return 0, false
}

func constantInt(info *types.Info, expr ast.Expr) (int, bool) {
	tv, ok := info.Types[expr]
	if !ok || tv.Value == nil || tv.Value.Kind() != constant.Int {
		return 0, false
	}
	v, exact := constant.Int64Val(tv.Value)
	if !exact {
		return 0, false
	}
	return int(v), true
}
