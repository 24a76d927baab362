package variable

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"laughprop/obj"
)

func newCtx() Context {
	return Context{Global: obj.NewOrderedMap()}
}

func TestExpandFullReferencePreservesType(t *testing.T) {
	ctx := newCtx()
	ctx.Global.Set("a", obj.NewNumber(42))

	out := Expand(obj.NewString("@a"), ctx)
	require.Equal(t, obj.KindNumber, out.Kind)
	assert.Equal(t, float64(42), out.Num)
}

func TestExpandMissingFullReferenceReturnsLiteral(t *testing.T) {
	ctx := newCtx()
	out := Expand(obj.NewString("@missing"), ctx)
	assert.Equal(t, "@missing", out.Str)
}

func TestExpandInlineSubstitution(t *testing.T) {
	ctx := newCtx()
	ctx.Global.Set("a", obj.NewString("Foo"))
	out := Expand(obj.NewString("@a and @a"), ctx)
	assert.Equal(t, "Foo and Foo", out.Str)
}

func TestExpandInlineMissingLeftLiteral(t *testing.T) {
	ctx := newCtx()
	out := Expand(obj.NewString("Hi {@nope}!"), ctx)
	assert.Equal(t, "Hi {@nope}!", out.Str)
}

func TestExpandNestedMapWithInlineReference(t *testing.T) {
	// @a = "Foo", @b = { x: "Hi {@a}" }; expanding "@b" yields the map
	// { x: "Hi Foo" }.
	ctx := newCtx()
	ctx.Global.Set("a", obj.NewString("Foo"))
	inner := obj.NewOrderedMap()
	inner.Set("x", obj.NewString("Hi {@a}"))
	ctx.Global.Set("b", obj.NewMap(inner))

	out := Expand(obj.NewString("@b"), ctx)
	require.Equal(t, obj.KindMap, out.Kind)
	x, ok := out.Map.Get("x")
	require.True(t, ok)
	assert.Equal(t, "Hi Foo", x.Str)
}

func TestExpandIsIdempotentOnceResolved(t *testing.T) {
	ctx := newCtx()
	ctx.Global.Set("a", obj.NewString("Foo"))
	v := obj.NewString("@a and @a")
	once := Expand(v, ctx)
	twice := Expand(once, ctx)
	assert.Equal(t, once, twice)
}

func TestExpandSetCollapsesDuplicates(t *testing.T) {
	ctx := newCtx()
	in := obj.NewList([]obj.Value{obj.NewString("x"), obj.NewString("x"), obj.NewString("y")})
	set := obj.NewSet(in.List)
	out := Expand(set, ctx)
	require.Equal(t, obj.KindSet, out.Kind)
	assert.Len(t, out.Set, 2)
}

func TestWriteMalformedKeyErrors(t *testing.T) {
	ctx := newCtx()
	err := Write(ctx, "nosentinel", obj.NewBool(true))
	assert.Error(t, err)
}

func TestWriteLocalWithoutScopeErrors(t *testing.T) {
	ctx := newCtx()
	err := Write(ctx, "@@x", obj.NewBool(true))
	assert.Error(t, err)
}

func TestDeleteMissingKeySucceeds(t *testing.T) {
	ctx := newCtx()
	err := Delete(ctx, "@nope")
	assert.NoError(t, err)
}

func TestLocalAndGlobalAreSeparateTiers(t *testing.T) {
	ctx := Context{Global: obj.NewOrderedMap(), Local: obj.NewOrderedMap()}
	require.NoError(t, Write(ctx, "@n", obj.NewNumber(1)))
	require.NoError(t, Write(ctx, "@@n", obj.NewNumber(2)))

	g, _, _ := Read(ctx, "@n")
	l, _, _ := Read(ctx, "@@n")
	assert.Equal(t, float64(1), g.Num)
	assert.Equal(t, float64(2), l.Num)
}
