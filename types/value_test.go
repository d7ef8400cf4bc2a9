package types

import (
	"strings"
	"testing"

	"github.com/govm-net/sandbox/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEqualAcrossNumbers(t *testing.T) {
	assert.True(t, Equal(NewInt(1), Bool(true)))
	assert.True(t, Equal(NewInt(2), MustDecimal("2.0")))
	assert.False(t, Equal(NewInt(2), Str("2")))
	assert.True(t, Equal(Tuple{NewInt(1), Str("a")}, Tuple{NewInt(1), Str("a")}))
	assert.False(t, Equal(NewList(NewInt(1)), Tuple{NewInt(1)}))
	assert.True(t, Equal(None, None))
}

func TestCompare(t *testing.T) {
	c, err := Compare("<", NewInt(1), MustDecimal("1.5"))
	require.NoError(t, err)
	assert.Equal(t, -1, c)

	c, err = Compare("<", Tuple{NewInt(1), NewInt(2)}, Tuple{NewInt(1)})
	require.NoError(t, err)
	assert.Equal(t, 1, c)

	_, err = Compare("<", Str("a"), NewInt(1))
	assert.True(t, core.IsKind(err, core.KindType))
}

func TestDictOrderAndKeys(t *testing.T) {
	d := NewDict()
	require.NoError(t, d.Set(Str("b"), NewInt(1)))
	require.NoError(t, d.Set(Str("a"), NewInt(2)))
	require.NoError(t, d.Set(NewInt(1), Str("one")))
	require.NoError(t, d.Set(MustDecimal("1.0"), Str("uno")))
	assert.Equal(t, 3, d.Len())

	v, ok, err := d.Get(Bool(true))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, Str("uno"), v)

	_, _, err = d.Delete(Str("b"))
	require.NoError(t, err)
	assert.Equal(t, []Value{Str("a"), NewInt(1)}, d.Keys())

	err = d.Set(NewList(), NewInt(1))
	assert.True(t, core.IsKind(err, core.KindType))
}

func TestRepr(t *testing.T) {
	d := NewDict()
	_ = d.Set(Str("k"), Tuple{NewInt(1)})
	assert.Equal(t, "{'k': (1,)}", Repr(d))
	assert.Equal(t, `"it's"`, Repr(Str("it's")))
	assert.Equal(t, "[None, True, 1.5]", Repr(NewList(None, Bool(true), MustDecimal("1.5"))))
	assert.Equal(t, "plain", ToStr(Str("plain")))
	assert.Equal(t, "range(0, 10, 2)", Repr(Range{Start: 0, Stop: 10, Step: 2}))
}

func TestCopyIsDeep(t *testing.T) {
	inner := NewList(NewInt(1))
	outer := NewList(inner)
	dup := Copy(outer).(*List)
	dup.Items[0].(*List).Items[0] = NewInt(2)
	assert.Equal(t, NewInt(1), inner.Items[0])
}

func TestBinaryOp(t *testing.T) {
	v, err := BinaryOp("//", NewInt(-7), NewInt(2), 4096)
	require.NoError(t, err)
	assert.Equal(t, "-4", Repr(v))

	v, err = BinaryOp("%", NewInt(7), NewInt(-2), 4096)
	require.NoError(t, err)
	assert.Equal(t, "-1", Repr(v))

	v, err = BinaryOp("/", NewInt(1), NewInt(4), 4096)
	require.NoError(t, err)
	assert.Equal(t, "0.25", Repr(v))

	v, err = BinaryOp("+", NewInt(1), MustDecimal("0.5"), 4096)
	require.NoError(t, err)
	assert.Equal(t, "1.5", Repr(v))

	v, err = BinaryOp("*", Str("ab"), NewInt(2), 4096)
	require.NoError(t, err)
	assert.Equal(t, Str("abab"), v)

	_, err = BinaryOp("**", NewInt(2), NewInt(10000), 4096)
	assert.True(t, core.IsKind(err, core.KindResourceLimit))

	_, err = BinaryOp("-", Str("a"), NewInt(1), 4096)
	assert.True(t, core.IsKind(err, core.KindType))

	_, err = BinaryOp("%", NewInt(1), NewInt(0), 4096)
	assert.True(t, core.IsKind(err, core.KindArithmetic))
}

func TestContains(t *testing.T) {
	ok, err := Contains(Str("hello"), Str("ell"))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = Contains(Range{Start: 0, Stop: 10, Step: 3}, NewInt(6))
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = Contains(NewInt(3), NewInt(3))
	assert.True(t, core.IsKind(err, core.KindType))
}

func TestConcatenationLimit(t *testing.T) {
	half := Str(strings.Repeat("a", MaxSequenceLength/2))
	v, err := BinaryOp("+", half, half, 4096)
	require.NoError(t, err)
	assert.Len(t, string(v.(Str)), MaxSequenceLength)

	_, err = BinaryOp("+", v, Str("b"), 4096)
	assert.True(t, core.IsKind(err, core.KindResourceLimit))

	items := make([]Value, MaxSequenceLength)
	for i := range items {
		items[i] = None
	}
	_, err = BinaryOp("+", NewList(items...), NewList(None), 4096)
	assert.True(t, core.IsKind(err, core.KindResourceLimit))
	_, err = BinaryOp("+", Tuple(items), Tuple{None}, 4096)
	assert.True(t, core.IsKind(err, core.KindResourceLimit))
}
