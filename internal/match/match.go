// Package match implements the text matchers used by hear rules and
// conversation answer rules.
package match

import (
	"fmt"
	"regexp"
	"strings"
)

// Matcher tests a text. The set of implementations is closed: Keyword and Pattern.
type Matcher interface {
	Match(text string) (Result, bool)
	String() string
	kind() string
}

// Result describes a successful match.
type Result struct {
	Matcher Matcher
	// Keyword is the registered keyword for keyword matches.
	Keyword string
	// Groups holds the full match followed by captured groups for pattern matches.
	Groups []string
}

// IsPattern reports whether the result came from a Pattern matcher.
func (r Result) IsPattern() bool {
	_, ok := r.Matcher.(Pattern)
	return ok
}

// Kind returns "keyword" or "pattern".
func (r Result) Kind() string {
	if r.Matcher == nil {
		return ""
	}
	return r.Matcher.kind()
}

// Keyword matches a text equal to the keyword, ignoring case.
type Keyword string

func (k Keyword) Match(text string) (Result, bool) {
	if !strings.EqualFold(string(k), text) {
		return Result{}, false
	}
	return Result{Matcher: k, Keyword: string(k)}, true
}

func (k Keyword) String() string { return string(k) }

func (Keyword) kind() string { return "keyword" }

// Pattern matches a text against a regular expression.
type Pattern struct {
	re *regexp.Regexp
}

// NewPattern wraps a compiled expression.
func NewPattern(re *regexp.Regexp) Pattern {
	return Pattern{re: re}
}

// Compile parses expr into a Pattern.
func Compile(expr string) (Pattern, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return Pattern{}, fmt.Errorf("compile pattern %q: %w", expr, err)
	}
	return Pattern{re: re}, nil
}

// MustPattern is like Compile but panics on an invalid expression.
// Use it for package-level rule tables.
func MustPattern(expr string) Pattern {
	p, err := Compile(expr)
	if err != nil {
		panic(err)
	}
	return p
}

func (p Pattern) Match(text string) (Result, bool) {
	if p.re == nil {
		return Result{}, false
	}
	groups := p.re.FindStringSubmatch(text)
	if groups == nil {
		return Result{}, false
	}
	return Result{Matcher: p, Groups: groups}, true
}

func (p Pattern) String() string {
	if p.re == nil {
		return ""
	}
	return p.re.String()
}

func (Pattern) kind() string { return "pattern" }

// Regexp returns the underlying expression.
func (p Pattern) Regexp() *regexp.Regexp { return p.re }

// Valid reports whether m can ever match: a non-empty Keyword or a Pattern
// holding a compiled expression.
func Valid(m Matcher) bool {
	switch m := m.(type) {
	case Keyword:
		return m != ""
	case Pattern:
		return m.re != nil
	default:
		return false
	}
}

// Keywords builds one Keyword matcher per word.
func Keywords(words ...string) []Matcher {
	out := make([]Matcher, 0, len(words))
	for _, w := range words {
		out = append(out, Keyword(w))
	}
	return out
}

// First returns the result of the first matcher that accepts text.
func First(text string, matchers ...Matcher) (Result, bool) {
	for _, m := range matchers {
		if m == nil {
			continue
		}
		if r, ok := m.Match(text); ok {
			return r, true
		}
	}
	return Result{}, false
}
