package runtime

import "strings"

// Placeholder replaces every {name} segment in a normalized path.
const Placeholder = "{}"

// PathInfo is a parsed path template such as /users/{id}/cars/{carId}.
type PathInfo struct {
	// Path is the original template.
	Path string
	// Normalized is Path with each variable segment replaced by {}.
	Normalized string
	// Vars holds the variable names in left-to-right order.
	Vars []string

	segments []string
}

// ParsePath parses a slash-delimited path template. A segment is a variable
// when it starts with { and ends with }.
func ParsePath(template string) PathInfo {
	parts := strings.Split(template, "/")
	segments := make([]string, len(parts))
	var vars []string
	for i, part := range parts {
		if len(part) >= 2 && strings.HasPrefix(part, "{") && strings.HasSuffix(part, "}") {
			vars = append(vars, part[1:len(part)-1])
			segments[i] = Placeholder
			continue
		}
		segments[i] = part
	}
	return PathInfo{
		Path:       template,
		Normalized: strings.Join(segments, "/"),
		Vars:       vars,
		segments:   segments,
	}
}

// Match binds the template's variables against requestPath. It succeeds
// only when both have the same number of segments and every literal
// segment is identical. Bound values are taken verbatim.
func (p PathInfo) Match(requestPath string) (map[string]string, bool) {
	parts := strings.Split(requestPath, "/")
	if len(parts) != len(p.segments) {
		return nil, false
	}

	vars := make(map[string]string, len(p.Vars))
	next := 0
	for i, seg := range p.segments {
		if seg == Placeholder {
			vars[p.Vars[next]] = parts[i]
			next++
			continue
		}
		if seg != parts[i] {
			return nil, false
		}
	}
	return vars, true
}
