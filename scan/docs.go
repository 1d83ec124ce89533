package scan

import (
	"go/ast"
	"go/token"
	"go/types"

	"golang.org/x/tools/go/packages"

	"github.com/bjaus/apimda/schema"
)

// docIndex holds the documentation of type and struct field declarations,
// keyed by the position of their name.
type docIndex map[token.Pos]schema.Annotation

func newDocIndex(pkgs []*packages.Package) docIndex {
	idx := docIndex{}
	for _, pkg := range pkgs {
		for _, file := range pkg.Syntax {
			ast.Inspect(file, func(n ast.Node) bool {
				switch n := n.(type) {
				case *ast.GenDecl:
					if n.Tok != token.TYPE {
						return true
					}
					for _, spec := range n.Specs {
						ts := spec.(*ast.TypeSpec)
						doc := ts.Doc
						if doc == nil && len(n.Specs) == 1 {
							doc = n.Doc
						}
						idx.add(ts.Name, doc)
					}
				case *ast.Field:
					doc := n.Doc
					if doc == nil {
						doc = n.Comment
					}
					for _, name := range n.Names {
						idx.add(name, doc)
					}
				}
				return true
			})
		}
	}
	return idx
}

func (idx docIndex) add(name *ast.Ident, doc *ast.CommentGroup) {
	if doc == nil {
		return
	}
	ann := schema.Annotation{Description: description(doc)}
	if d, ok := parseDirectives(doc).first(dirFormat); ok {
		ann.Format = d.rest
	}
	if ann != (schema.Annotation{}) {
		idx[name.Pos()] = ann
	}
}

func (idx docIndex) lookup(obj types.Object) schema.Annotation {
	return idx[obj.Pos()]
}
