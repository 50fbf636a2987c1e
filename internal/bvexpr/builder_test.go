package bvexpr

import (
	"testing"

	"github.com/stretchr/testify/require"

	"bvrewrite/internal/dag"
	"bvrewrite/internal/rewrite"
)

func newBuilder(t *testing.T) *Builder {
	t.Helper()
	ctx := rewrite.NewContext(dag.NewStore(), rewrite.DefaultConfig())
	return NewBuilder(ctx)
}

func runScript(t *testing.T, src string) []dag.Ref {
	t.Helper()
	script, err := ParseString(t.Name(), src)
	require.NoError(t, err)
	b := newBuilder(t)
	results, err := b.Run(script)
	require.NoError(t, err)
	return results
}

func TestParseAtomsAndLists(t *testing.T) {
	script, err := ParseString("t", "(bvand x y)")
	require.NoError(t, err)
	require.Len(t, script.Forms, 1)
	form := script.Forms[0]
	require.Empty(t, form.Atom)
	require.Len(t, form.List, 3)
	require.Equal(t, "bvand", form.List[0].Atom)
}

func TestDeclareAndUseVariable(t *testing.T) {
	results := runScript(t, `
		(declare-bv x 8)
		(declare-bv y 8)
		(bvand x y)
	`)
	require.Len(t, results, 1)
	require.Equal(t, uint32(8), dag.RealAddress(results[0]).Width())
}

func TestAndWithNegationIsContradiction(t *testing.T) {
	results := runScript(t, `
		(declare-bv x 8)
		(bvand x (bvnot x))
	`)
	require.Len(t, results, 1)
	n := dag.RealAddress(results[0])
	require.Equal(t, dag.BVConst, n.Kind())
	require.Equal(t, "00000000", n.Bits())
}

func TestEqualityWithSelfFoldsToTrue(t *testing.T) {
	results := runScript(t, `
		(declare-bv x 8)
		(= x x)
	`)
	require.Len(t, results, 1)
	n := dag.RealAddress(results[0])
	require.Equal(t, dag.BVConst, n.Kind())
	require.Equal(t, "1", n.Bits())
}

func TestAddNonzeroConstEqualsVarFoldsToFalse(t *testing.T) {
	results := runScript(t, `
		(declare-bv x 4)
		(= (bvadd x #b0100) x)
	`)
	require.Len(t, results, 1)
	n := dag.RealAddress(results[0])
	require.Equal(t, dag.BVConst, n.Kind())
	require.Equal(t, "0", n.Bits())
}

func TestAddIdentityEqualityFoldsThroughZero(t *testing.T) {
	results := runScript(t, `
		(declare-bv x 4)
		(declare-bv y 4)
		(= (bvadd x y) x)
	`)
	require.Len(t, results, 1)
	n := dag.RealAddress(results[0])
	require.Equal(t, dag.Beq, n.Kind())
	c0, c1 := dag.RealAddress(n.Child(0)), dag.RealAddress(n.Child(1))
	var varChild, constChild *dag.Node
	if c0.Kind() == dag.BVConst {
		constChild, varChild = c0, c1
	} else {
		constChild, varChild = c1, c0
	}
	require.Equal(t, dag.BVVar, varChild.Kind())
	require.Equal(t, "0000", constChild.Bits())
}

func TestBinaryLiteralParsing(t *testing.T) {
	results := runScript(t, "#b1010")
	require.Len(t, results, 1)
	require.Equal(t, "1010", dag.RealAddress(results[0]).Bits())
}

func TestHexLiteralParsing(t *testing.T) {
	results := runScript(t, "#xff")
	require.Len(t, results, 1)
	require.Equal(t, "11111111", dag.RealAddress(results[0]).Bits())
}

func TestBvLiteralFromDecimal(t *testing.T) {
	results := runScript(t, "(bv 13 8)")
	require.Len(t, results, 1)
	require.Equal(t, "00001101", dag.RealAddress(results[0]).Bits())
}

func TestConstantFoldingThroughAdd(t *testing.T) {
	results := runScript(t, "(bvadd (bv 2 8) (bv 3 8))")
	require.Len(t, results, 1)
	require.Equal(t, "00000101", dag.RealAddress(results[0]).Bits())
}

func TestExtractOperator(t *testing.T) {
	results := runScript(t, `
		(declare-bv x 8)
		((_ extract 3 0) x)
	`)
	require.Len(t, results, 1)
	require.Equal(t, uint32(4), dag.RealAddress(results[0]).Width())
}

func TestStoreSelectRoundTrip(t *testing.T) {
	results := runScript(t, `
		(declare-array a 4 8)
		(declare-bv i 4)
		(declare-bv v 8)
		(select (store a i v) i)
	`)
	require.Len(t, results, 1)
	require.Equal(t, dag.BVVar, dag.RealAddress(results[0]).Kind())
}

func TestIteConstantCondition(t *testing.T) {
	results := runScript(t, `
		(declare-bv x 8)
		(declare-bv y 8)
		(ite #b1 x y)
	`)
	require.Len(t, results, 1)
	require.Equal(t, dag.BVVar, dag.RealAddress(results[0]).Kind())
}

func TestUndeclaredIdentifierErrors(t *testing.T) {
	script, err := ParseString("t", "(bvand x y)")
	require.NoError(t, err)
	b := newBuilder(t)
	_, err = b.Run(script)
	require.Error(t, err)
}

func TestSprintRoundTripsBinaryLiteral(t *testing.T) {
	results := runScript(t, "#b110")
	require.Len(t, results, 1)
	require.Equal(t, "(bv 6 3)", Sprint(results[0]))
}

func TestSprintNotWrapsInvertedVar(t *testing.T) {
	results := runScript(t, `
		(declare-bv x 4)
		(bvnot x)
	`)
	require.Len(t, results, 1)
	out := Sprint(results[0])
	require.Contains(t, out, "bvnot")
}
