package match

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyword(t *testing.T) {
	t.Parallel()
	tests := []struct {
		keyword string
		text    string
		want    bool
	}{
		{"hello", "hello", true},
		{"hello", "HeLLo", true},
		{"hello", "hello there", false},
		{"hello", " hello", false},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.keyword+"/"+tt.text, func(t *testing.T) {
			r, ok := Keyword(tt.keyword).Match(tt.text)
			assert.Equal(t, tt.want, ok)
			if ok {
				assert.Equal(t, tt.keyword, r.Keyword)
				assert.Nil(t, r.Groups)
				assert.Equal(t, "keyword", r.Kind())
				assert.False(t, r.IsPattern())
			}
		})
	}
}

func TestPattern(t *testing.T) {
	t.Parallel()
	p := MustPattern(`(?i)^my name is (\w+)$`)

	r, ok := p.Match("My name is Ann")
	require.True(t, ok)
	assert.Equal(t, []string{"My name is Ann", "Ann"}, r.Groups)
	assert.Empty(t, r.Keyword)
	assert.True(t, r.IsPattern())
	assert.Equal(t, "pattern", r.Kind())
	assert.Equal(t, `(?i)^my name is (\w+)$`, r.Matcher.String())

	_, ok = p.Match("name: Ann")
	assert.False(t, ok)

	_, ok = Pattern{}.Match("anything")
	assert.False(t, ok, "zero Pattern never matches")
}

func TestCompile(t *testing.T) {
	t.Parallel()
	_, err := Compile(`(unclosed`)
	assert.Error(t, err)

	assert.Panics(t, func() { MustPattern(`[`) })

	p := NewPattern(regexp.MustCompile(`\d+`))
	r, ok := p.Match("order 42")
	require.True(t, ok)
	assert.Equal(t, []string{"42"}, r.Groups)
	assert.Same(t, p.Regexp(), r.Matcher.(Pattern).Regexp())
}

func TestValid(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		m    Matcher
		want bool
	}{
		{name: "keyword", m: Keyword("hi"), want: true},
		{name: "empty keyword", m: Keyword(""), want: false},
		{name: "pattern", m: MustPattern(`^hi`), want: true},
		{name: "zero pattern", m: Pattern{}, want: false},
		{name: "nil", m: nil, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Valid(tt.m))
		})
	}
}

func TestFirst_ListOrderWins(t *testing.T) {
	t.Parallel()
	matchers := []Matcher{MustPattern(`^hi`), Keyword("hi"), nil}

	r, ok := First("hi", matchers...)
	require.True(t, ok)
	assert.True(t, r.IsPattern(), "first matcher in list order wins")

	r, ok = First("HI", Keywords("hey", "hi")...)
	require.True(t, ok)
	assert.Equal(t, "hi", r.Keyword)

	_, ok = First("bye", matchers...)
	assert.False(t, ok)
}
