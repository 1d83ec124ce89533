package scan

import (
	"go/ast"
	"go/types"
	"net/http"
	"strings"

	"golang.org/x/tools/go/packages"

	"github.com/bjaus/apimda/metadata"
	"github.com/bjaus/apimda/runtime"
)

var locationDirectives = map[string]metadata.Location{
	dirRequest: runtime.LocationRequest,
	dirBody:    runtime.LocationBody,
	dirQuery:   runtime.LocationQuery,
	dirPath:    runtime.LocationPath,
	dirHeader:  runtime.LocationHeader,
	dirCookie:  runtime.LocationCookie,
}

// binding is an input directive: apimda:<location> <param> [name|mime].
type binding struct {
	location metadata.Location
	name     string
	mime     string
}

func routeMethod(dirs directives) (metadata.Method, directive, bool) {
	for _, d := range dirs {
		for _, m := range metadata.Methods {
			if d.name == string(m) {
				return m, d, true
			}
		}
	}
	return "", directive{}, false
}

// route adds the route declared by fd to c, if fd carries a method
// directive.
func (s *scanner) route(pkg *packages.Package, fd *ast.FuncDecl, c *metadata.Controller) {
	dirs := parseDirectives(fd.Doc)
	method, md, ok := routeMethod(dirs)
	if !ok {
		return
	}
	s.checkUnknown(dirs)

	fn, ok := pkg.TypesInfo.Defs[fd.Name].(*types.Func)
	if !ok {
		return
	}
	qualified := c.Name + "." + fn.Name()
	if !fn.Exported() {
		s.fail(fd.Pos(), "Route method %s must be exported", qualified)
		return
	}
	sig := fn.Type().(*types.Signature)
	if !asyncCompatible(sig) {
		s.fail(fd.Pos(), "Route method %s must take a context.Context first and return error last", qualified)
		return
	}
	if sig.Variadic() {
		s.fail(fd.Pos(), "Route method %s must not be variadic", qualified)
		return
	}

	r := &metadata.Route{
		Handler:     fn.Name(),
		Method:      method,
		LocalPath:   md.rest,
		Tags:        dirs.words(dirTags),
		Description: description(fd.Doc),
	}
	if d, ok := dirs.first(dirSummary); ok {
		r.Summary = d.rest
	}
	c.AddRoute(r)

	bindings, descs := s.bindings(dirs, sig, qualified)
	for i := 1; i < sig.Params().Len(); i++ {
		s.input(pkg, fd, r, sig.Params().At(i), bindings, descs)
	}
	s.successOutput(pkg, fd, r, sig, dirs)

	codes := s.effects.codes(fn)
	if len(r.Inputs) > 0 {
		codes = withCode(codes, http.StatusBadRequest)
	}
	for _, code := range codes {
		r.AddErrorOutput(&metadata.Output{StatusCode: code})
	}
}

func withCode(codes []int, code int) []int {
	for i, c := range codes {
		if c == code {
			return codes
		}
		if c > code {
			return append(codes[:i], append([]int{code}, codes[i:]...)...)
		}
	}
	return append(codes, code)
}

func (s *scanner) bindings(dirs directives, sig *types.Signature, qualified string) (map[string]binding, map[string]string) {
	params := map[string]bool{}
	for i := range sig.Params().Len() {
		params[sig.Params().At(i).Name()] = true
	}

	bindings := map[string]binding{}
	descs := map[string]string{}
	for _, d := range dirs {
		loc, isInput := locationDirectives[d.name]
		if !isInput && d.name != dirParam {
			continue
		}
		if len(d.args) == 0 {
			s.fail(d.pos, "Directive apimda:%s in %s needs a parameter name", d.name, qualified)
			continue
		}
		param := d.args[0]
		if !params[param] {
			s.fail(d.pos, "Directive apimda:%s in %s names unknown parameter %s", d.name, qualified, param)
			continue
		}
		rest := strings.TrimSpace(strings.TrimPrefix(d.rest, param))

		if d.name == dirParam {
			descs[param] = rest
			continue
		}
		if _, dup := bindings[param]; dup {
			s.fail(d.pos, "Parameter %s in %s is bound more than once", param, qualified)
			continue
		}
		b := binding{location: loc, name: param}
		switch d.name {
		case dirBody:
			b.mime = rest
		case dirRequest:
		case dirHeader, dirCookie:
			if rest == "" {
				s.fail(d.pos, "Directive apimda:%s in %s needs a %s name for %s", d.name, qualified, d.name, param)
				continue
			}
			b.name = rest
		default:
			if rest != "" {
				b.name = rest
			}
		}
		bindings[param] = b
	}
	return bindings, descs
}

func (s *scanner) input(pkg *packages.Package, fd *ast.FuncDecl, r *metadata.Route, param *types.Var, bindings map[string]binding, descs map[string]string) {
	qualified := r.QualifiedName()
	b, ok := bindings[param.Name()]
	if !ok || param.Name() == "" || param.Name() == "_" {
		s.fail(fd.Pos(), "Undecorated parameter %s in route method %s not allowed", param.Name(), qualified)
		return
	}

	t := param.Type()
	required := true
	if b.location != runtime.LocationRequest {
		if elem, isPtr := deref(t); isPtr {
			t, required = elem, false
		}
	}

	ref, err := typeRef(t, pkg.Types)
	if err != nil {
		s.fail(fd.Pos(), "Input param %s in %s cannot be used: %v", b.name, qualified, err)
		return
	}

	in := &metadata.Input{
		Name:        b.name,
		ArgName:     param.Name(),
		Location:    b.location,
		Required:    required,
		MIMEType:    b.mime,
		Type:        ref,
		Description: descs[param.Name()],
	}
	r.AddInput(in)

	if key := in.SchemaKey(); key != "" {
		if err := s.creator.Add(key, t); err != nil {
			s.fail(fd.Pos(), "Input param %s in %s: %v", b.name, qualified, err)
		}
	}
}

func (s *scanner) successOutput(pkg *packages.Package, fd *ast.FuncDecl, r *metadata.Route, sig *types.Signature, dirs directives) {
	out := &metadata.Output{StatusCode: http.StatusOK}
	if d, ok := dirs.first(dirProduces); ok {
		out.MIMEType = d.rest
	}
	if d, ok := dirs.first(dirReturns); ok {
		out.Description = d.rest
	}
	r.SetSuccessOutput(out)

	if sig.Results().Len() == 1 {
		return
	}

	t, custom := unwrapResult(sig.Results().At(0).Type())
	out.CustomResult = custom
	if fromPackage(t, rawPackage) {
		out.Type = &metadata.TypeRef{Name: types.TypeString(t, qualifier(pkg.Types)), Kind: runtime.KindRaw}
		return
	}
	t, _ = deref(t)

	ref, err := typeRef(t, pkg.Types)
	if err != nil {
		s.fail(fd.Pos(), "Return type for %s cannot be used: %v", r.QualifiedName(), err)
		return
	}
	out.Type = ref

	if key := out.SchemaKey(); key != "" {
		if err := s.creator.Add(key, t); err != nil {
			s.fail(fd.Pos(), "Return type for %s: %v", r.QualifiedName(), err)
		}
	}
}
