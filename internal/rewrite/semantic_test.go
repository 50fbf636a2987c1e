package rewrite

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"bvrewrite/internal/bvconst"
	"bvrewrite/internal/dag"
)

// evalExpr evaluates e against env (a map from variable node to its
// assigned bit string), used by the property tests below to check that
// a rewritten expression still denotes the same function as the
// unsimplified primitive it replaced.
func evalExpr(e dag.Ref, env map[*dag.Node]string) string {
	n := dag.RealAddress(e)
	var bits string
	switch n.Kind() {
	case dag.BVConst:
		bits = n.Bits()
	case dag.BVVar:
		v, ok := env[n]
		if !ok {
			panic("evalExpr: unbound variable")
		}
		bits = v
	case dag.Slice:
		lower, upper := n.SliceBounds()
		bits = bvconst.Slice(evalExpr(n.Child(0), env), lower, upper)
	case dag.And:
		bits = bvconst.And(evalExpr(n.Child(0), env), evalExpr(n.Child(1), env))
	case dag.Beq:
		if evalExpr(n.Child(0), env) == evalExpr(n.Child(1), env) {
			bits = "1"
		} else {
			bits = "0"
		}
	case dag.Add:
		bits = bvconst.Add(evalExpr(n.Child(0), env), evalExpr(n.Child(1), env))
	case dag.Mul:
		bits = bvconst.Mul(evalExpr(n.Child(0), env), evalExpr(n.Child(1), env))
	case dag.Ult:
		if bvconst.Ult(evalExpr(n.Child(0), env), evalExpr(n.Child(1), env)) {
			bits = "1"
		} else {
			bits = "0"
		}
	case dag.Sll:
		bits = bvconst.Sll(evalExpr(n.Child(0), env), evalExpr(n.Child(1), env))
	case dag.Srl:
		bits = bvconst.Srl(evalExpr(n.Child(0), env), evalExpr(n.Child(1), env))
	case dag.Udiv:
		bits = bvconst.Udiv(evalExpr(n.Child(0), env), evalExpr(n.Child(1), env))
	case dag.Urem:
		bits = bvconst.Urem(evalExpr(n.Child(0), env), evalExpr(n.Child(1), env))
	case dag.Concat:
		bits = bvconst.Concat(evalExpr(n.Child(0), env), evalExpr(n.Child(1), env))
	case dag.Bcond:
		if evalExpr(n.Child(0), env) == "1" {
			bits = evalExpr(n.Child(1), env)
		} else {
			bits = evalExpr(n.Child(2), env)
		}
	default:
		panic(fmt.Sprintf("evalExpr: unsupported kind %v", n.Kind()))
	}
	if dag.IsInverted(e) {
		bits = bvconst.Invert(bits)
	}
	return bits
}

func allBitStrings(width int) []string {
	total := 1 << uint(width)
	out := make([]string, total)
	for i := 0; i < total; i++ {
		b := make([]byte, width)
		for j := 0; j < width; j++ {
			if i&(1<<uint(width-1-j)) != 0 {
				b[j] = '1'
			} else {
				b[j] = '0'
			}
		}
		out[i] = string(b)
	}
	return out
}

func TestBinaryOpsAgreeWithPrimitiveAcrossSmallWidths(t *testing.T) {
	cases := []struct {
		name string
		kind dag.Kind
		op   func(c *Context) func(a, b dag.Ref) dag.Ref
	}{
		{"And", dag.And, func(c *Context) func(a, b dag.Ref) dag.Ref { return c.And }},
		{"Add", dag.Add, func(c *Context) func(a, b dag.Ref) dag.Ref { return c.Add }},
		{"Mul", dag.Mul, func(c *Context) func(a, b dag.Ref) dag.Ref { return c.Mul }},
		{"Ult", dag.Ult, func(c *Context) func(a, b dag.Ref) dag.Ref { return c.Ult }},
		{"Udiv", dag.Udiv, func(c *Context) func(a, b dag.Ref) dag.Ref { return c.Udiv }},
		{"Urem", dag.Urem, func(c *Context) func(a, b dag.Ref) dag.Ref { return c.Urem }},
		{"Beq", dag.Beq, func(c *Context) func(a, b dag.Ref) dag.Ref { return c.Beq }},
		{"Concat", dag.Concat, func(c *Context) func(a, b dag.Ref) dag.Ref { return c.Concat }},
	}
	for _, tc := range cases {
		for _, width := range []int{1, 2, 3} {
			width := width
			tc := tc
			t.Run(fmt.Sprintf("%s/width=%d", tc.name, width), func(t *testing.T) {
				store := dag.NewStore()
				ctx := NewContext(store, DefaultConfig())
				checkEquivalentToPrimitiveWithCtx(t, store, width, tc.kind, tc.op(ctx))
			})
		}
	}
}

func checkEquivalentToPrimitiveWithCtx(t *testing.T, store *dag.Store, width int, kind dag.Kind, op func(a, b dag.Ref) dag.Ref) {
	t.Helper()
	e0 := store.NewBVVar(uint32(width))
	e1 := store.NewBVVar(uint32(width))
	primitive := store.Acquire(store.BuildBinary(kind, e0, e1))
	rewritten := op(e0, e1)

	n0, n1 := dag.RealAddress(e0), dag.RealAddress(e1)
	for _, b0 := range allBitStrings(width) {
		for _, b1 := range allBitStrings(width) {
			env := map[*dag.Node]string{n0: b0, n1: b1}
			want := evalExpr(primitive, env)
			got := evalExpr(rewritten, env)
			require.Equalf(t, want, got, "kind=%v width=%d e0=%s e1=%s", kind, width, b0, b1)
		}
	}
}

func TestSameTermIdentities(t *testing.T) {
	store := dag.NewStore()
	ctx := NewContext(store, DefaultConfig())
	x := store.NewBVVar(4)

	require.Same(t, dag.RealAddress(ctx.trueRef()), dag.RealAddress(ctx.Beq(x, x)))
	require.Same(t, dag.RealAddress(ctx.falseRef()), dag.RealAddress(ctx.Beq(x, dag.Invert(x))))
	require.Same(t, dag.RealAddress(ctx.falseRef()), dag.RealAddress(ctx.Ult(x, x)))
}

func TestAndContradiction(t *testing.T) {
	store := dag.NewStore()
	ctx := NewContext(store, DefaultConfig())
	a := store.NewBVVar(1)
	b := store.NewBVVar(1)

	chain := ctx.And(a, b)
	contradiction := ctx.And(chain, dag.Invert(a))
	require.Same(t, dag.RealAddress(ctx.zeroRef(1)), dag.RealAddress(contradiction))
}

func TestXorRecognitionRoundTrips(t *testing.T) {
	store := dag.NewStore()
	ctx := NewContext(store, DefaultConfig())
	a := store.NewBVVar(1)
	b := store.NewBVVar(1)

	xor := ctx.buildXor(a, b)
	ra, rb, xnor, ok := matchXor(xor)
	require.True(t, ok)
	require.False(t, xnor)
	require.ElementsMatch(t, []*dag.Node{dag.RealAddress(a), dag.RealAddress(b)}, []*dag.Node{dag.RealAddress(ra), dag.RealAddress(rb)})
	for _, av := range []string{"0", "1"} {
		for _, bv := range []string{"0", "1"} {
			env := map[*dag.Node]string{dag.RealAddress(a): av, dag.RealAddress(b): bv}
			want := "0"
			if av != bv {
				want = "1"
			}
			require.Equal(t, want, evalExpr(xor, env))
		}
	}
}

func TestReadOverWriteSameIndex(t *testing.T) {
	store := dag.NewStore()
	ctx := NewContext(store, DefaultConfig())
	arr := store.NewArrayVar(4, 8)
	idx := store.NewBVVar(4)
	val := store.NewBVVar(8)

	written := ctx.Write(arr, idx, val)
	read := ctx.Read(written, idx)
	require.Same(t, dag.RealAddress(val), dag.RealAddress(read))
}

func TestReadPropagatesPastAlwaysUnequalWrite(t *testing.T) {
	store := dag.NewStore()
	ctx := NewContext(store, DefaultConfig())
	arr := store.NewArrayVar(4, 8)
	idx := store.NewBVVar(4)
	one := store.NewConst(bvconst.One(4))

	shiftedIdx := ctx.Add(idx, one) // idx+1, always-unequal to idx
	val := store.NewBVVar(8)
	written := ctx.Write(arr, shiftedIdx, val)

	read := ctx.Read(written, idx)
	baseline := store.Acquire(store.BuildRead(arr, idx))
	require.Same(t, dag.RealAddress(baseline), dag.RealAddress(read))
}

func TestWriteChainCollapsesRedundantWrite(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RewriteLevel = Level3
	store := dag.NewStore()
	ctx := NewContext(store, cfg)

	arr := store.NewArrayVar(4, 8)
	idx := store.NewBVVar(4)
	v1 := store.NewBVVar(8)
	v2 := store.NewBVVar(8)

	first := ctx.Write(arr, idx, v1)
	second := ctx.Write(first, idx, v2)
	direct := ctx.Write(arr, idx, v2)
	require.Same(t, dag.RealAddress(direct), dag.RealAddress(second))
}

func TestCondConstantCondition(t *testing.T) {
	store := dag.NewStore()
	ctx := NewContext(store, DefaultConfig())
	x := store.NewBVVar(4)
	y := store.NewBVVar(4)

	require.Same(t, dag.RealAddress(x), dag.RealAddress(ctx.Cond(ctx.trueRef(), x, y)))
	require.Same(t, dag.RealAddress(y), dag.RealAddress(ctx.Cond(ctx.falseRef(), x, y)))
}

func TestCondSameArms(t *testing.T) {
	store := dag.NewStore()
	ctx := NewContext(store, DefaultConfig())
	c := store.NewBVVar(1)
	x := store.NewBVVar(4)
	require.Same(t, dag.RealAddress(x), dag.RealAddress(ctx.Cond(c, x, x)))
}

func TestCondArmSwapOnInvertedCondition(t *testing.T) {
	store := dag.NewStore()
	ctx := NewContext(store, DefaultConfig())
	c := store.NewBVVar(1)
	x := store.NewBVVar(4)
	y := store.NewBVVar(4)

	viaPlain := ctx.Cond(c, y, x)
	viaInverted := ctx.Cond(dag.Invert(c), x, y)
	require.Same(t, dag.RealAddress(viaPlain), dag.RealAddress(viaInverted))
	require.Equal(t, dag.IsInverted(viaPlain), dag.IsInverted(viaInverted))
}

func TestEqAddIdentityAgreesWithPrimitive(t *testing.T) {
	for _, width := range []int{1, 2, 3} {
		width := width
		t.Run(fmt.Sprintf("width=%d", width), func(t *testing.T) {
			store := dag.NewStore()
			ctx := NewContext(store, DefaultConfig())
			a := store.NewBVVar(uint32(width))
			b := store.NewBVVar(uint32(width))
			sum := store.Acquire(store.BuildBinary(dag.Add, a, b))
			primitive := store.Acquire(store.BuildBinary(dag.Beq, sum, a))
			rewritten := ctx.Beq(sum, a)

			na, nb := dag.RealAddress(a), dag.RealAddress(b)
			for _, av := range allBitStrings(width) {
				for _, bv := range allBitStrings(width) {
					env := map[*dag.Node]string{na: av, nb: bv}
					require.Equalf(t, evalExpr(primitive, env), evalExpr(rewritten, env), "a=%s b=%s", av, bv)
				}
			}
		})
	}
}

func TestAddNonzeroConstEqualsVarIsAlwaysUnequal(t *testing.T) {
	store := dag.NewStore()
	ctx := NewContext(store, DefaultConfig())
	x := store.NewBVVar(4)
	one := store.NewConst(bvconst.One(4))

	sum := ctx.Add(x, one)
	require.Same(t, dag.RealAddress(ctx.falseRef()), dag.RealAddress(ctx.Beq(sum, x)))
}

func TestEqAndComplementAgreesWithPrimitive(t *testing.T) {
	width := 3
	store := dag.NewStore()
	ctx := NewContext(store, DefaultConfig())
	a := store.NewBVVar(uint32(width))
	b := store.NewBVVar(uint32(width))

	lhs := store.Acquire(store.BuildBinary(dag.And, a, b))
	rhs := store.Acquire(store.BuildBinary(dag.And, dag.Invert(a), dag.Invert(b)))
	primitive := store.Acquire(store.BuildBinary(dag.Beq, lhs, rhs))
	rewritten := ctx.Beq(lhs, rhs)

	na, nb := dag.RealAddress(a), dag.RealAddress(b)
	for _, av := range allBitStrings(width) {
		for _, bv := range allBitStrings(width) {
			env := map[*dag.Node]string{na: av, nb: bv}
			require.Equalf(t, evalExpr(primitive, env), evalExpr(rewritten, env), "a=%s b=%s", av, bv)
		}
	}
}

func TestEqCondArmLeafFoldsToOr(t *testing.T) {
	store := dag.NewStore()
	ctx := NewContext(store, DefaultConfig())
	cond := store.NewBVVar(1)
	thenV := store.NewBVVar(4)
	elseV := store.NewBVVar(4)

	ite := ctx.Cond(cond, thenV, elseV)
	result := ctx.Beq(ite, thenV)

	nc, nt, ne := dag.RealAddress(cond), dag.RealAddress(thenV), dag.RealAddress(elseV)
	for _, cv := range []string{"0", "1"} {
		for _, tv := range allBitStrings(4) {
			for _, ev := range allBitStrings(4) {
				env := map[*dag.Node]string{nc: cv, nt: tv, ne: ev}
				want := "0"
				if cv == "1" || tv == ev {
					want = "1"
				}
				require.Equalf(t, want, evalExpr(result, env), "cond=%s then=%s else=%s", cv, tv, ev)
			}
		}
	}
}

func TestUltOppositeTagsAgreesWithPrimitive(t *testing.T) {
	for _, width := range []int{1, 2, 3} {
		width := width
		t.Run(fmt.Sprintf("width=%d", width), func(t *testing.T) {
			store := dag.NewStore()
			ctx := NewContext(store, DefaultConfig())
			x := store.NewBVVar(uint32(width))
			notX := dag.Invert(x)
			primitive := store.Acquire(store.BuildBinary(dag.Ult, x, notX))
			rewritten := ctx.Ult(x, notX)

			nx := dag.RealAddress(x)
			for _, xv := range allBitStrings(width) {
				env := map[*dag.Node]string{nx: xv}
				require.Equalf(t, evalExpr(primitive, env), evalExpr(rewritten, env), "x=%s", xv)
			}
		})
	}
}

func TestAddVsNotDoesNotFlagAlwaysUnequalWhenTheyCoincide(t *testing.T) {
	for _, width := range []int{1, 2, 3, 4} {
		width := width
		t.Run(fmt.Sprintf("width=%d", width), func(t *testing.T) {
			store := dag.NewStore()
			ctx := NewContext(store, DefaultConfig())
			x := store.NewBVVar(uint32(width))
			one := store.NewConst(bvconst.One(width))
			sum := store.Acquire(store.BuildBinary(dag.Add, x, one))
			notX := dag.Invert(x)
			primitive := store.Acquire(store.BuildBinary(dag.Beq, sum, notX))
			rewritten := ctx.Beq(sum, notX)

			nx := dag.RealAddress(x)
			for _, xv := range allBitStrings(width) {
				env := map[*dag.Node]string{nx: xv}
				require.Equalf(t, evalExpr(primitive, env), evalExpr(rewritten, env), "x=%s", xv)
			}
		})
	}
}

func TestAddTwosComplementZeroRequiresUninvertedSummand(t *testing.T) {
	for _, width := range []int{1, 2, 3} {
		width := width
		t.Run(fmt.Sprintf("width=%d", width), func(t *testing.T) {
			store := dag.NewStore()
			ctx := NewContext(store, DefaultConfig())
			y := store.NewBVVar(uint32(width))
			notY := dag.Invert(y)
			one := store.NewConst(bvconst.One(width))
			negated := ctx.Add(notY, one) // -y, written as NOT(y)+1
			primitive := store.Acquire(store.BuildBinary(dag.Add, notY, negated))
			rewritten := ctx.Add(notY, negated)

			ny := dag.RealAddress(y)
			for _, yv := range allBitStrings(width) {
				env := map[*dag.Node]string{ny: yv}
				require.Equalf(t, evalExpr(primitive, env), evalExpr(rewritten, env), "y=%s", yv)
			}
		})
	}
}

func TestConcatConstantFolding(t *testing.T) {
	store := dag.NewStore()
	ctx := NewContext(store, DefaultConfig())
	a := store.NewConst("1010")
	b := store.NewConst("0101")
	got := ctx.Concat(a, b)
	require.Equal(t, "10100101", dag.RealAddress(got).Bits())
}
