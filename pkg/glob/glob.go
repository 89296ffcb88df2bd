// Package glob matches dotted state names against glob patterns.
//
// A pattern is split on '.' into segments. A '*' segment matches exactly one
// name segment and a '**' segment matches zero or more segments:
//
//	"foo.*"      matches "foo.bar" but not "foo" or "foo.bar.baz"
//	"foo.**"     matches "foo", "foo.bar" and "foo.bar.baz"
//	"**.baz"     matches "baz" and "foo.bar.baz"
package glob

import (
	"regexp"
	"strings"
)

// Glob is a compiled state-name pattern.
type Glob struct {
	text string
	re   *regexp.Regexp
}

// IsGlob reports whether text contains glob syntax.
func IsGlob(text string) bool {
	return strings.ContainsAny(text, "*!,")
}

// Compile builds a Glob from text. It never fails: segments other than '*'
// and '**' are matched literally.
func Compile(text string) *Glob {
	var sb strings.Builder
	sb.WriteString("^")
	for _, seg := range strings.Split(text, ".") {
		switch seg {
		case "**":
			sb.WriteString(`(?:|(?:\.[^.]*)*)`)
		case "*":
			sb.WriteString(`\.[^.]*`)
		default:
			sb.WriteString(`\.`)
			sb.WriteString(regexp.QuoteMeta(seg))
		}
	}
	sb.WriteString("$")
	return &Glob{text: text, re: regexp.MustCompile(sb.String())}
}

// String returns the source pattern.
func (g *Glob) String() string {
	return g.text
}

// Matches reports whether name matches the pattern.
func (g *Glob) Matches(name string) bool {
	return g.re.MatchString("." + name)
}

// Match reports whether name matches any of the patterns. Patterns without
// glob syntax must equal name exactly.
func Match(name string, patterns ...string) bool {
	for _, pattern := range patterns {
		// fast path for exact match
		if pattern == name {
			return true
		}
		if !IsGlob(pattern) {
			continue
		}
		if Compile(pattern).Matches(name) {
			return true
		}
	}
	return false
}
