package ident_test

import (
	"testing"

	"github.com/leapstack-labs/leapsql/pkg/ident"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpanRoundTrip(t *testing.T) {
	s := ident.Span{Start: 3, End: 14, SourceID: 2}
	assert.Equal(t, "2:3-14", s.String())

	parsed, err := ident.ParseSpan("2:3-14")
	require.NoError(t, err)
	assert.Equal(t, s, parsed)

	_, err = ident.ParseSpan("garbage")
	assert.Error(t, err)
}

func TestIdentFromPath(t *testing.T) {
	id := ident.FromPath([]string{"foo", "bar", "baz"})
	assert.Equal(t, []string{"foo", "bar"}, id.Path)
	assert.Equal(t, "baz", id.Name)
	assert.Equal(t, []string{"foo", "bar", "baz"}, id.Parts())
	assert.Equal(t, "foo.bar.baz", id.String())
}

func TestIdentPop(t *testing.T) {
	id := ident.FromPath([]string{"a", "b", "c"})
	parent, ok := id.Pop()
	require.True(t, ok)
	assert.Equal(t, "a.b", parent.String())

	_, ok = ident.FromName("a").Pop()
	assert.False(t, ok)
}

func TestIdentPopFront(t *testing.T) {
	id := ident.FromPath([]string{"a", "b", "c"})
	first, rest := id.PopFront()
	assert.Equal(t, "a", first)
	require.NotNil(t, rest)
	assert.Equal(t, "b.c", rest.String())

	first, rest = ident.FromName("solo").PopFront()
	assert.Equal(t, "solo", first)
	assert.Nil(t, rest)
}

func TestIdentStartsWith(t *testing.T) {
	id := ident.FromPath([]string{"a", "b", "c"})
	assert.True(t, id.StartsWith(ident.FromPath([]string{"a", "b"})))
	assert.False(t, id.StartsWith(ident.FromPath([]string{"a", "x"})))
}

func TestIdentEscaping(t *testing.T) {
	assert.Equal(t, "foo.bar", ident.FromPath([]string{"foo", "bar"}).String())
	assert.Equal(t, "`Foo`.bar", ident.FromPath([]string{"Foo", "bar"}).String())
	assert.Equal(t, "`1abc`", ident.FromName("1abc").String())
	assert.Equal(t, "`a-b`", ident.FromName("a-b").String())
	assert.Equal(t, "_underscored", ident.FromName("_underscored").String())
	assert.Equal(t, "a", ident.FromName("a").String())
}

func TestLiteralEqual(t *testing.T) {
	assert.True(t, ident.Integer(5).Equal(ident.Integer(5)))
	assert.False(t, ident.Integer(5).Equal(ident.Integer(6)))
	assert.False(t, ident.Integer(5).Equal(ident.Float(5)))
	assert.True(t, ident.Null.Equal(ident.Literal{}))
}
