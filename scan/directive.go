package scan

import (
	"go/ast"
	"go/token"
	"strings"
)

const directivePrefix = "//apimda:"

// Directive names.
const (
	dirController = "controller"
	dirTags       = "tags"
	dirEnv        = "env"
	dirInit       = "init"
	dirSummary    = "summary"
	dirProduces   = "produces"
	dirReturns    = "returns"
	dirParam      = "param"
	dirFormat     = "format"
	dirRequest    = "request"
	dirBody       = "body"
	dirQuery      = "query"
	dirPath       = "path"
	dirHeader     = "header"
	dirCookie     = "cookie"
)

var knownDirectives = map[string]bool{
	dirController: true, dirTags: true, dirEnv: true, dirInit: true,
	dirSummary: true, dirProduces: true, dirReturns: true, dirParam: true, dirFormat: true,
	dirRequest: true, dirBody: true, dirQuery: true, dirPath: true, dirHeader: true, dirCookie: true,
	"get": true, "put": true, "post": true, "patch": true, "delete": true,
}

// directive is one //apimda:name line.
type directive struct {
	name string
	// rest is the text after the name, trimmed.
	rest string
	args []string
	pos  token.Pos
}

type directives []directive

// parseDirectives returns the //apimda: lines of doc in order.
func parseDirectives(doc *ast.CommentGroup) directives {
	if doc == nil {
		return nil
	}
	var out directives
	for _, c := range doc.List {
		text, ok := strings.CutPrefix(c.Text, directivePrefix)
		if !ok {
			continue
		}
		name, rest, _ := strings.Cut(text, " ")
		rest = strings.TrimSpace(rest)
		out = append(out, directive{
			name: strings.TrimSpace(name),
			rest: rest,
			args: strings.Fields(rest),
			pos:  c.Slash,
		})
	}
	return out
}

// first returns the first directive with the given name.
func (ds directives) first(name string) (directive, bool) {
	for _, d := range ds {
		if d.name == name {
			return d, true
		}
	}
	return directive{}, false
}

// all returns every directive with the given name.
func (ds directives) all(name string) directives {
	var out directives
	for _, d := range ds {
		if d.name == name {
			out = append(out, d)
		}
	}
	return out
}

// words returns the arguments of every directive with the given name.
func (ds directives) words(name string) []string {
	var out []string
	for _, d := range ds.all(name) {
		out = append(out, d.args...)
	}
	return out
}

// unknown returns the directives with unrecognized names.
func (ds directives) unknown() directives {
	var out directives
	for _, d := range ds {
		if !knownDirectives[d.name] {
			out = append(out, d)
		}
	}
	return out
}

// description returns the doc text without directive lines.
func description(doc *ast.CommentGroup) string {
	if doc == nil {
		return ""
	}
	var lines []string
	for _, line := range strings.Split(doc.Text(), "\n") {
		if strings.HasPrefix(line, "apimda:") {
			continue
		}
		lines = append(lines, line)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
