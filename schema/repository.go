// Package schema generates, stores and copies the JSON-schema fragments
// that document and validate route inputs and outputs.
package schema

import (
	"net/url"
	"sort"
)

// Schema is a JSON-schema fragment in the JSON data model: nested
// map[string]any, []any, string, float64 and bool values. References to
// other fragments are {"$ref": name} where name is the bare schema key.
type Schema = map[string]any

// RefRewriter maps a bare $ref value to its final form, for example
// "User" to "#/components/schemas/User".
type RefRewriter func(ref string) string

// docFields are removed by Copy when documentation is stripped.
var docFields = []string{"description", "example", "examples"}

// Repository is a read-only store of named schemas. Every accessor returns
// an independent deep copy, so a Repository is safe for concurrent use.
type Repository struct {
	schemas map[string]Schema
}

// NewRepository returns a repository holding a deep copy of schemas.
func NewRepository(schemas map[string]Schema) *Repository {
	r := &Repository{schemas: make(map[string]Schema, len(schemas))}
	for k, s := range schemas {
		r.schemas[k] = Clone(s)
	}
	return r
}

// Len returns the number of stored schemas.
func (r *Repository) Len() int { return len(r.schemas) }

// Keys returns the stored schema keys in sorted order.
func (r *Repository) Keys() []string {
	keys := make([]string, 0, len(r.schemas))
	for k := range r.schemas {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Get returns a copy of the schema stored under key.
func (r *Repository) Get(key string) (Schema, bool) {
	s, ok := r.schemas[key]
	if !ok {
		return nil, false
	}
	return Clone(s), true
}

// Copy returns a deep copy of the stored schemas.
//
// When keys is non-nil the result is restricted to the reference closure of
// those keys: the keys themselves plus every schema reachable from them by
// following $ref. The closure is computed on bare names, before rewrite is
// applied. When rewrite is non-nil every $ref value is passed through it.
// When stripDocs is set, description and example fields are removed.
func (r *Repository) Copy(rewrite RefRewriter, keys []string, stripDocs bool) map[string]Schema {
	result := make(map[string]Schema, len(r.schemas))
	for k, s := range r.schemas {
		result[normalizeKey(k)] = Clone(s)
	}

	if keys != nil {
		required := Closure(result, keys)
		for k := range result {
			if _, ok := required[k]; !ok {
				delete(result, k)
			}
		}
	}

	for _, s := range result {
		Visit(s, func(node map[string]any) {
			if rewrite != nil {
				if ref, ok := node["$ref"].(string); ok {
					node["$ref"] = rewrite(ref)
				}
			}
			if stripDocs {
				for _, f := range docFields {
					delete(node, f)
				}
			}
		})
	}
	return result
}

// Closure returns the set of keys reachable from keys via $ref, including
// the keys themselves. Cycles are visited once; references to unknown keys
// are ignored.
func Closure(schemas map[string]Schema, keys []string) map[string]struct{} {
	queue := append([]string(nil), keys...)
	seen := make(map[string]struct{}, len(keys))
	for len(queue) > 0 {
		key := queue[len(queue)-1]
		queue = queue[:len(queue)-1]
		if _, ok := seen[key]; ok {
			continue
		}
		s, ok := schemas[key]
		if !ok {
			continue
		}
		seen[key] = struct{}{}
		queue = append(queue, Refs(s)...)
	}
	return seen
}

// Refs returns every $ref value found in s.
func Refs(s Schema) []string {
	var refs []string
	Visit(s, func(node map[string]any) {
		if ref, ok := node["$ref"].(string); ok {
			refs = append(refs, ref)
		}
	})
	return refs
}

// Visit calls fn for s and every nested schema reachable through anyOf,
// allOf, oneOf, properties, items and additionalProperties.
func Visit(s Schema, fn func(map[string]any)) {
	if s == nil {
		return
	}
	fn(s)

	for _, kw := range []string{"anyOf", "allOf", "oneOf"} {
		if list, ok := s[kw].([]any); ok {
			for _, sub := range list {
				visitAny(sub, fn)
			}
		}
	}
	if props, ok := s["properties"].(map[string]any); ok {
		for _, sub := range props {
			visitAny(sub, fn)
		}
	}
	switch items := s["items"].(type) {
	case map[string]any:
		Visit(items, fn)
	case []any:
		for _, sub := range items {
			visitAny(sub, fn)
		}
	}
	visitAny(s["additionalProperties"], fn)
}

func visitAny(v any, fn func(map[string]any)) {
	if m, ok := v.(map[string]any); ok {
		Visit(m, fn)
	}
}

// Clone returns a deep copy of s.
func Clone(s Schema) Schema {
	if s == nil {
		return nil
	}
	c, _ := cloneValue(s).(map[string]any)
	return c
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, e := range t {
			m[k] = cloneValue(e)
		}
		return m
	case []any:
		l := make([]any, len(t))
		for i, e := range t {
			l[i] = cloneValue(e)
		}
		return l
	case []string:
		l := make([]any, len(t))
		for i, e := range t {
			l[i] = e
		}
		return l
	default:
		return v
	}
}

// normalizeKey percent-encodes a schema key consistently, whether or not
// it was encoded before.
func normalizeKey(key string) string {
	raw, err := url.PathUnescape(key)
	if err != nil {
		raw = key
	}
	return url.PathEscape(raw)
}
