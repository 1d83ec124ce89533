// Package scan builds the route model from Go packages whose types carry
// //apimda: directives. Packages are loaded with full type information and
// analysed statically; nothing is executed.
package scan

import (
	"context"
	"errors"
	"fmt"
	"go/ast"
	"go/token"
	"go/types"
	"io"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/tools/go/packages"

	"github.com/bjaus/apimda/metadata"
	"github.com/bjaus/apimda/schema"
)

// ErrLoad is returned when the packages cannot be loaded or type checked.
var ErrLoad = errors.New("loading packages")

// ErrDeclaration wraps every fatal declaration error.
var ErrDeclaration = errors.New("invalid declaration")

// Config controls package loading.
type Config struct {
	// Dir is the directory patterns are resolved in. Empty means the
	// current directory.
	Dir string
	// Logger receives progress output. Nil discards it.
	Logger logrus.FieldLogger
}

const loadMode = packages.NeedName | packages.NeedFiles | packages.NeedSyntax |
	packages.NeedTypes | packages.NeedTypesInfo | packages.NeedImports

// Extract loads the packages matching patterns and returns the route model
// of every controller they declare, with a schema for every input and
// output that has one. Every fatal declaration error found is returned,
// joined.
func Extract(ctx context.Context, cfg Config, patterns ...string) (*metadata.App, error) {
	log := cfg.Logger
	if log == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		log = discard
	}
	log = log.WithField("component", "scan")

	if len(patterns) == 0 {
		patterns = []string{"."}
	}

	fset := token.NewFileSet()
	pkgs, err := packages.Load(&packages.Config{
		Context: ctx,
		Mode:    loadMode,
		Dir:     cfg.Dir,
		Fset:    fset,
	}, patterns...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoad, err)
	}

	var loadErrs []error
	packages.Visit(pkgs, nil, func(p *packages.Package) {
		for _, e := range p.Errors {
			loadErrs = append(loadErrs, e)
		}
	})
	if len(loadErrs) > 0 {
		return nil, fmt.Errorf("%w: %w", ErrLoad, errors.Join(loadErrs...))
	}
	sort.Slice(pkgs, func(i, j int) bool { return pkgs[i].ID < pkgs[j].ID })

	docs := newDocIndex(pkgs)
	s := &scanner{
		fset:    fset,
		log:     log,
		effects: newEffects(pkgs),
		creator: schema.NewCreator(schema.WithAnnotations(docs.lookup)),
		app:     metadata.NewApp(),
		owners:  map[string]string{},
	}
	for _, pkg := range pkgs {
		s.scanPackage(pkg)
	}
	if len(s.errs) > 0 {
		return nil, errors.Join(s.errs...)
	}

	s.app.Schemas = s.creator.Result()
	log.WithFields(logrus.Fields{
		"controllers": len(s.app.Controllers),
		"routes":      len(s.app.Routes()),
		"schemas":     s.app.Schemas.Len(),
	}).Info("Extracted route model")
	return s.app, nil
}

type scanner struct {
	fset    *token.FileSet
	log     logrus.FieldLogger
	effects *effects
	creator *schema.Creator
	app     *metadata.App
	// owners maps controller names to their package, to reject duplicates.
	owners map[string]string
	errs   []error
}

func (s *scanner) fail(pos token.Pos, format string, args ...any) {
	s.errs = append(s.errs, fmt.Errorf("%s: %w: %s", s.fset.Position(pos), ErrDeclaration, fmt.Sprintf(format, args...)))
}

// decls gathers a package's declarations in file order.
type decls struct {
	types   []typeDecl
	funcs   []*ast.FuncDecl
	methods map[string][]*ast.FuncDecl
}

type typeDecl struct {
	spec *ast.TypeSpec
	doc  *ast.CommentGroup
	file string
}

func collect(pkg *packages.Package) decls {
	d := decls{methods: map[string][]*ast.FuncDecl{}}
	for _, file := range pkg.Syntax {
		name := pkg.Fset.Position(file.Package).Filename
		for _, decl := range file.Decls {
			switch decl := decl.(type) {
			case *ast.GenDecl:
				if decl.Tok != token.TYPE {
					continue
				}
				for _, spec := range decl.Specs {
					ts := spec.(*ast.TypeSpec)
					doc := ts.Doc
					if doc == nil && len(decl.Specs) == 1 {
						doc = decl.Doc
					}
					d.types = append(d.types, typeDecl{spec: ts, doc: doc, file: name})
				}
			case *ast.FuncDecl:
				if decl.Recv == nil {
					d.funcs = append(d.funcs, decl)
					continue
				}
				if recv := receiverName(decl); recv != "" {
					d.methods[recv] = append(d.methods[recv], decl)
				}
			}
		}
	}
	return d
}

func receiverName(fd *ast.FuncDecl) string {
	if len(fd.Recv.List) == 0 {
		return ""
	}
	t := fd.Recv.List[0].Type
	if star, ok := t.(*ast.StarExpr); ok {
		t = star.X
	}
	switch t := t.(type) {
	case *ast.Ident:
		return t.Name
	case *ast.IndexExpr:
		if id, ok := t.X.(*ast.Ident); ok {
			return id.Name
		}
	case *ast.IndexListExpr:
		if id, ok := t.X.(*ast.Ident); ok {
			return id.Name
		}
	}
	return ""
}

func (s *scanner) scanPackage(pkg *packages.Package) {
	d := collect(pkg)
	for _, td := range d.types {
		dirs := parseDirectives(td.doc)
		dir, ok := dirs.first(dirController)
		if !ok {
			continue
		}
		s.checkUnknown(dirs)

		if prev, dup := s.owners[td.spec.Name.Name]; dup {
			s.fail(td.spec.Pos(), "Duplicate controller name %s in %s and %s", td.spec.Name.Name, prev, pkg.PkgPath)
			continue
		}
		s.owners[td.spec.Name.Name] = pkg.PkgPath

		c := s.controller(pkg, d, td, dirs, dir)
		if c == nil {
			continue
		}
		s.app.AddController(c)
		s.log.WithFields(logrus.Fields{
			"controller": c.Name,
			"package":    c.Package,
			"routes":     len(c.Routes),
		}).Debug("Found controller")
	}
}

func (s *scanner) checkUnknown(dirs directives) {
	for _, d := range dirs.unknown() {
		s.fail(d.pos, "Unknown directive apimda:%s", d.name)
	}
}

func (s *scanner) controller(pkg *packages.Package, d decls, td typeDecl, dirs directives, dir directive) *metadata.Controller {
	name := td.spec.Name.Name
	obj, ok := pkg.TypesInfo.Defs[td.spec.Name].(*types.TypeName)
	if !ok {
		return nil
	}
	named, ok := obj.Type().(*types.Named)
	if !ok || td.spec.TypeParams != nil {
		s.fail(td.spec.Pos(), "Controller %s must be a non-generic defined type", name)
		return nil
	}
	if _, ok := named.Underlying().(*types.Struct); !ok {
		s.fail(td.spec.Pos(), "Controller %s must be a struct type", name)
		return nil
	}
	if !obj.Exported() {
		s.fail(td.spec.Pos(), "Controller %s must be exported", name)
		return nil
	}

	c := &metadata.Controller{
		Name:        name,
		Package:     pkg.PkgPath,
		PackageName: pkg.Name,
		SourceFile:  td.file,
		BasePath:    dir.rest,
		Tags:        dirs.words(dirTags),
		Description: description(td.doc),
	}

	s.constructor(pkg, d, named, c, td.spec.Pos())
	s.initializer(pkg, d.methods[name], c, td.spec.Pos())

	for _, fd := range d.methods[name] {
		s.route(pkg, fd, c)
	}
	return c
}

// constructor finds the package-level New* function that builds the
// controller.
func (s *scanner) constructor(pkg *packages.Package, d decls, named *types.Named, c *metadata.Controller, pos token.Pos) {
	type candidate struct {
		fn      *types.Func
		ptr     bool
		withErr bool
		env     []string
		usable  bool
	}

	var cands []candidate
	for _, fd := range d.funcs {
		if !strings.HasPrefix(fd.Name.Name, "New") {
			continue
		}
		fn, ok := pkg.TypesInfo.Defs[fd.Name].(*types.Func)
		if !ok {
			continue
		}
		sig := fn.Type().(*types.Signature)
		res := sig.Results()
		if res.Len() == 0 || res.Len() > 2 || (res.Len() == 2 && !isError(res.At(1).Type())) {
			continue
		}
		first, ptr := deref(res.At(0).Type())
		if !types.Identical(first, named) {
			continue
		}

		dirs := parseDirectives(fd.Doc)
		s.checkUnknown(dirs)
		cand := candidate{fn: fn, ptr: ptr, withErr: res.Len() == 2, env: dirs.words(dirEnv)}

		params := sig.Params().Len()
		if sig.Variadic() {
			params--
		}
		cand.usable = params == len(cand.env)
		for i := range params {
			if !types.Identical(sig.Params().At(i).Type(), types.Typ[types.String]) {
				cand.usable = false
			}
		}
		cands = append(cands, cand)
	}
	if len(cands) == 0 {
		return
	}

	var withEnv, usable []candidate
	for _, cand := range cands {
		if len(cand.env) > 0 {
			withEnv = append(withEnv, cand)
		}
		if cand.usable {
			usable = append(usable, cand)
		}
	}
	if len(withEnv) > 1 {
		s.fail(pos, "Only one constructor with apimda:env is allowed per controller, found %d in %s", len(withEnv), c.Name)
		return
	}
	switch len(usable) {
	case 0:
		s.fail(pos, "Constructor for controller %s has required arguments", c.Name)
		return
	case 1:
	default:
		names := make([]string, len(usable))
		for i, u := range usable {
			names[i] = u.fn.Name()
		}
		s.fail(pos, "Controller %s has more than one usable constructor: %s", c.Name, strings.Join(names, ", "))
		return
	}

	ctor := usable[0]
	c.CtorName = ctor.fn.Name()
	c.CtorPointer = ctor.ptr
	c.CtorReturnsError = ctor.withErr
	c.CtorEnvNames = ctor.env
}

// initializer finds the single method marked apimda:init.
func (s *scanner) initializer(pkg *packages.Package, methods []*ast.FuncDecl, c *metadata.Controller, pos token.Pos) {
	var inits []*ast.FuncDecl
	for _, fd := range methods {
		if _, ok := parseDirectives(fd.Doc).first(dirInit); ok {
			inits = append(inits, fd)
		}
	}
	if len(inits) == 0 {
		return
	}
	if len(inits) > 1 {
		s.fail(pos, "Only one init method is allowed per controller, found %d in %s", len(inits), c.Name)
		return
	}

	fd := inits[0]
	fn, ok := pkg.TypesInfo.Defs[fd.Name].(*types.Func)
	if !ok {
		return
	}
	sig := fn.Type().(*types.Signature)
	if !fn.Exported() {
		s.fail(fd.Pos(), "Init method %s in %s must be exported", fn.Name(), c.Name)
		return
	}
	if !asyncCompatible(sig) || sig.Results().Len() != 1 {
		s.fail(fd.Pos(), "Init method %s in %s must take a context.Context and return only error", fn.Name(), c.Name)
		return
	}
	required := sig.Params().Len() - 1
	if sig.Variadic() {
		required--
	}
	if required > 0 {
		s.fail(fd.Pos(), "Init method %s in %s has required params", fn.Name(), c.Name)
		return
	}
	c.InitMethod = fn.Name()
}

// asyncCompatible reports whether sig takes a context first and returns
// error last.
func asyncCompatible(sig *types.Signature) bool {
	params, results := sig.Params(), sig.Results()
	if params.Len() == 0 || !isContext(params.At(0).Type()) {
		return false
	}
	if results.Len() == 0 || results.Len() > 2 || !isError(results.At(results.Len()-1).Type()) {
		return false
	}
	return true
}
