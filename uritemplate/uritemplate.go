// Package uritemplate binds `{name}` path templates against an ordered set
// of parameters, producing an absolute path with an optional query string.
//
// Binding rules:
//
//   - Each `{name}` placeholder is replaced by the path-escaped value of the
//     parameter with the same (case-sensitive) name.
//   - Parameters with an empty value are dropped. A path placeholder whose
//     parameter is dropped or missing fails with ErrUnresolvedPlaceholder.
//   - A query pair such as `page={page}` is bound the same way, but when
//     its parameter is empty or missing the whole pair is dropped.
//   - Parameters not consumed by a placeholder are appended as a query
//     string in insertion order.
//   - The result always starts with "/".
//
// Example:
//
//	path, err := uritemplate.Build("users/{id}/orders", uritemplate.Of(
//	    "id", "42",
//	    "status", "open",
//	    "cursor", "",
//	))
//	// path == "/users/42/orders?status=open"
package uritemplate

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// ErrUnresolvedPlaceholder is returned when a template placeholder has no
// non-empty parameter to bind to.
var ErrUnresolvedPlaceholder = errors.New("uritemplate: unresolved placeholder")

var placeholderPattern = regexp.MustCompile(`\{([^{}/?&=]+)\}`)

// Param is a single named template parameter.
type Param struct {
	Name  string
	Value string
}

// Params is an ordered parameter set. Order is preserved in the generated
// query string.
type Params []Param

// Of builds Params from alternating name/value pairs. A trailing name
// without a value is bound to the empty string and therefore dropped.
func Of(pairs ...string) Params {
	params := make(Params, 0, (len(pairs)+1)/2)
	for i := 0; i < len(pairs); i += 2 {
		p := Param{Name: pairs[i]}
		if i+1 < len(pairs) {
			p.Value = pairs[i+1]
		}
		params = append(params, p)
	}
	return params
}

// Add returns a copy of p with the given parameter appended.
func (p Params) Add(name, value string) Params {
	out := make(Params, len(p), len(p)+1)
	copy(out, p)
	return append(out, Param{Name: name, Value: value})
}

// Get returns the first non-empty value bound to name.
func (p Params) Get(name string) (string, bool) {
	for _, param := range p {
		if param.Name == name && param.Value != "" {
			return param.Value, true
		}
	}
	return "", false
}

// Has reports whether any parameter, empty or not, is named name.
func (p Params) Has(name string) bool {
	for _, param := range p {
		if param.Name == name {
			return true
		}
	}
	return false
}

// Build resolves template against params.
//
// Build is pure: the same template and ordered params always produce the
// same output.
func Build(template string, params Params) (string, error) {
	path, query, hasQuery := strings.Cut(strings.TrimLeft(template, "/"), "?")

	consumed := make(map[string]struct{})
	var bindErr error
	path = placeholderPattern.ReplaceAllStringFunc(path, func(match string) string {
		name := match[1 : len(match)-1]
		value, ok := params.Get(name)
		if !ok {
			if bindErr == nil {
				bindErr = fmt.Errorf("%w: {%s}", ErrUnresolvedPlaceholder, name)
			}
			return match
		}
		consumed[name] = struct{}{}
		return url.PathEscape(value)
	})
	if bindErr != nil {
		return "", bindErr
	}

	if hasQuery {
		query = bindQuery(query, params, consumed)
	}

	var sb strings.Builder
	sb.WriteByte('/')
	sb.WriteString(path)

	sep := byte('?')
	if query != "" {
		sb.WriteByte('?')
		sb.WriteString(query)
		sep = '&'
	}

	for _, param := range params {
		if param.Value == "" {
			continue
		}
		if _, ok := consumed[param.Name]; ok {
			continue
		}
		sb.WriteByte(sep)
		sep = '&'
		sb.WriteString(url.QueryEscape(param.Name))
		sb.WriteByte('=')
		sb.WriteString(url.QueryEscape(param.Value))
	}

	return sb.String(), nil
}

// bindQuery resolves placeholders in the template's query pairs. A pair
// with a placeholder that has no non-empty value is dropped whole.
func bindQuery(query string, params Params, consumed map[string]struct{}) string {
	pairs := strings.Split(query, "&")
	bound := pairs[:0]
	for _, pair := range pairs {
		if pair == "" {
			continue
		}
		dropped := false
		pair = placeholderPattern.ReplaceAllStringFunc(pair, func(match string) string {
			name := match[1 : len(match)-1]
			consumed[name] = struct{}{}
			value, ok := params.Get(name)
			if !ok {
				dropped = true
				return match
			}
			return url.QueryEscape(value)
		})
		if !dropped {
			bound = append(bound, pair)
		}
	}
	return strings.Join(bound, "&")
}

// MergeDefaults binds defaults onto an already-resolved uri.
//
// Defaults whose name already appears in the uri's query string are
// skipped, so explicit values always win and precede the defaults.
func MergeDefaults(uri string, defaults Params) (string, error) {
	if len(defaults) == 0 {
		return Build(uri, nil)
	}

	existing := make(map[string]struct{})
	if _, rawQuery, ok := strings.Cut(uri, "?"); ok {
		if values, err := url.ParseQuery(rawQuery); err == nil {
			for name := range values {
				existing[name] = struct{}{}
			}
		}
	}

	missing := make(Params, 0, len(defaults))
	for _, param := range defaults {
		if _, ok := existing[param.Name]; ok {
			continue
		}
		missing = append(missing, param)
	}

	// The uri is already bound, so escape any literal braces before rebinding.
	escaped := strings.NewReplacer("{", "%7B", "}", "%7D").Replace(uri)
	return Build(escaped, missing)
}
