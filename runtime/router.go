package runtime

import (
	"sort"
	"strings"
)

// Router matches a method and request path against registered templates.
// Templates are tried in ascending order of their normalized form, so a
// literal segment is attempted before a variable segment at the same
// position.
type Router[T any] struct {
	entries []routerEntry[T]
}

type routerEntry[T any] struct {
	method string
	info   PathInfo
	value  T
}

// Match is the result of a successful route lookup.
type Match[T any] struct {
	Template string
	Params   map[string]string
	Value    T
}

// NewRouter returns an empty router.
func NewRouter[T any]() *Router[T] {
	return &Router[T]{}
}

// Add registers value under method and template.
func (r *Router[T]) Add(method, template string, value T) {
	r.entries = append(r.entries, routerEntry[T]{
		method: strings.ToLower(method),
		info:   ParsePath(template),
		value:  value,
	})
	sort.SliceStable(r.entries, func(i, j int) bool {
		a, b := r.entries[i], r.entries[j]
		if a.method != b.method {
			return a.method < b.method
		}
		return a.info.Normalized < b.info.Normalized
	})
}

// Len returns the number of registered templates.
func (r *Router[T]) Len() int { return len(r.entries) }

// Match returns the first template registered for method that matches
// requestPath.
func (r *Router[T]) Match(method, requestPath string) (Match[T], bool) {
	method = strings.ToLower(method)
	for _, e := range r.entries {
		if e.method != method {
			continue
		}
		if params, ok := e.info.Match(requestPath); ok {
			return Match[T]{Template: e.info.Path, Params: params, Value: e.value}, true
		}
	}
	return Match[T]{}, false
}
