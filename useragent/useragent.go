// Package useragent composes User-Agent header values from ordered product
// parts.
package useragent

import "strings"

// ProductPart is one product token of a User-Agent value.
type ProductPart struct {
	Product string
	Version string
	Comment string
}

// String formats the part as `Product[/Version][ (Comment)]`.
func (p ProductPart) String() string {
	var sb strings.Builder
	sb.WriteString(p.Product)
	if p.Version != "" {
		sb.WriteByte('/')
		sb.WriteString(p.Version)
	}
	if comment := normalizeComment(p.Comment); comment != "" {
		sb.WriteByte(' ')
		sb.WriteString(comment)
	}
	return sb.String()
}

// UserAgent is an immutable, ordered list of product parts.
//
//	ua := useragent.New("App", "1.0.0").
//	    AddComment("Go-http", "1.24", "linux")
//	ua.String() // "App/1.0.0 Go-http/1.24 (linux)"
type UserAgent struct {
	parts []ProductPart
}

// New returns a UserAgent with a single product part.
func New(product, version string) UserAgent {
	return UserAgent{}.Add(product, version)
}

// Add returns a copy of ua with a product part appended. Parts with an
// empty product are ignored.
func (ua UserAgent) Add(product, version string) UserAgent {
	return ua.AddComment(product, version, "")
}

// AddComment returns a copy of ua with a product part and comment appended.
func (ua UserAgent) AddComment(product, version, comment string) UserAgent {
	product = strings.TrimSpace(product)
	if product == "" {
		return ua
	}

	parts := make([]ProductPart, len(ua.parts), len(ua.parts)+1)
	copy(parts, ua.parts)
	parts = append(parts, ProductPart{
		Product: product,
		Version: strings.TrimSpace(version),
		Comment: comment,
	})
	return UserAgent{parts: parts}
}

// Parts returns a copy of the configured parts.
func (ua UserAgent) Parts() []ProductPart {
	return append([]ProductPart(nil), ua.parts...)
}

// IsZero reports whether no parts were added.
func (ua UserAgent) IsZero() bool {
	return len(ua.parts) == 0
}

// String joins all parts with a single space.
func (ua UserAgent) String() string {
	tokens := make([]string, len(ua.parts))
	for i, part := range ua.parts {
		tokens[i] = part.String()
	}
	return strings.Join(tokens, " ")
}

// normalizeComment wraps comment in exactly one pair of parentheses.
func normalizeComment(comment string) string {
	comment = strings.TrimSpace(comment)
	comment = strings.TrimPrefix(comment, "(")
	comment = strings.TrimSuffix(comment, ")")
	if comment == "" {
		return ""
	}
	return "(" + comment + ")"
}
