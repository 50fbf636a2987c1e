package rewrite

import (
	"bvrewrite/internal/bvconst"
	"bvrewrite/internal/dag"
)

// rewriteBinary is the generic binary rewriter of spec §4.2: it is
// invoked by most binary operator entries, dispatches on (kind,
// class(e0), class(e1)), and applies the constant-folding and
// special-constant rule matrix. It returns (result, true) when a rule
// fired; the caller falls back to building a primitive node otherwise.
func (c *Context) rewriteBinary(kind dag.Kind, e0, e1 dag.Ref) (dag.Ref, bool) {
	e0, e1 = c.chase(e0), c.chase(e1)

	if isConst(e0) && isConst(e1) {
		return c.foldConstConst(kind, e0, e1), true
	}

	if isConst(e0) {
		if r, ok := c.ruleConstNonConst(kind, e0, e1, true); ok {
			return r, true
		}
	}
	if isConst(e1) {
		if r, ok := c.ruleConstNonConst(kind, e1, e0, false); ok {
			return r, true
		}
	}

	if sameReal(e0, e1) {
		if r, ok := c.sameTermIdentity(kind, e0, e1); ok {
			return r, true
		}
	}

	if r, ok := c.conditionalLift(kind, e0, e1); ok {
		return r, true
	}

	return dag.Ref{}, false
}

// foldConstConst evaluates kind over two constants in the constant
// kernel (spec §4.2.1). The two operands may address the same
// underlying node under different inversion tags; bitsOf materializes
// an independent string per operand, so no aliasing is possible here
// (see the immutable-constant design note in internal/bvconst).
func (c *Context) foldConstConst(kind dag.Kind, e0, e1 dag.Ref) dag.Ref {
	b0, b1 := bitsOf(e0), bitsOf(e1)
	switch kind {
	case dag.And:
		return c.constRef(bvconst.And(b0, b1))
	case dag.Beq:
		return c.boolConst(bvconst.Eq(b0, b1))
	case dag.Add:
		return c.constRef(bvconst.Add(b0, b1))
	case dag.Mul:
		return c.constRef(bvconst.Mul(b0, b1))
	case dag.Ult:
		return c.boolConst(bvconst.Ult(b0, b1))
	case dag.Udiv:
		return c.constRef(bvconst.Udiv(b0, b1))
	case dag.Urem:
		return c.constRef(bvconst.Urem(b0, b1))
	case dag.Sll:
		return c.constRef(bvconst.Sll(b0, b1))
	case dag.Srl:
		return c.constRef(bvconst.Srl(b0, b1))
	case dag.Concat:
		return c.constRef(bvconst.Concat(b0, b1))
	default:
		panic("rewrite: foldConstConst called with unsupported kind")
	}
}

func (c *Context) boolConst(v bool) dag.Ref {
	if v {
		return c.trueRef()
	}
	return c.falseRef()
}

// ruleConstNonConst applies spec §4.2.2's special-constant rule matrix.
// constE is the constant operand, other the non-constant one; constIsE0
// records which side the constant was on so the caller's original
// operand order can be reconstructed for asymmetric operators (Ult,
// Udiv, Urem, Sll, Srl).
func (c *Context) ruleConstNonConst(kind dag.Kind, constE, other dag.Ref, constIsE0 bool) (dag.Ref, bool) {
	width := dag.RealAddress(other).Width()
	special := classOf(constE)

	switch kind {
	case dag.Beq:
		if special == bvconst.Zero && width == 1 {
			return c.not(other), true
		}
		if special == bvconst.OneOnes && width == 1 {
			return c.acquireSame(other), true
		}
		if special == bvconst.Zero {
			if a, b, xnor, ok := matchXor(other); ok {
				if !xnor {
					return c.Beq(a, b), true
				}
			}
			if on, oinv := dag.RealAddress(other), dag.IsInverted(other); on.Kind() == dag.And && oinv {
				a, b := c.not(on.Child(0)), c.not(on.Child(1))
				left := c.Beq(a, c.zeroRef(dag.RealAddress(a).Width()))
				right := c.Beq(b, c.zeroRef(dag.RealAddress(b).Width()))
				return c.And(left, right), true
			}
		}
		if special == bvconst.None {
			if r, ok := c.ruleConstEqAnd(constE, other); ok {
				return r, true
			}
		}
	case dag.Ult:
		if constIsE0 {
			if special == bvconst.Zero {
				return c.not(c.Beq(other, c.zeroRef(width))), true
			}
			if special == bvconst.Ones {
				return c.falseRef(), true
			}
		} else {
			if special == bvconst.One {
				return c.Beq(other, c.zeroRef(width)), true
			}
		}
	case dag.Add:
		if special == bvconst.Zero {
			return c.acquireSame(other), true
		}
	case dag.Mul:
		if special == bvconst.Zero {
			return c.zeroRef(width), true
		}
		if special == bvconst.One {
			return c.acquireSame(other), true
		}
	case dag.Sll:
		if constIsE0 && special == bvconst.Zero {
			return c.zeroRef(width), true
		}
	case dag.Srl:
		if constIsE0 && special == bvconst.Zero {
			return c.zeroRef(width), true
		}
	case dag.Urem:
		if constIsE0 && special == bvconst.Zero {
			return c.zeroRef(width), true
		}
		if !constIsE0 && special == bvconst.One {
			return c.zeroRef(width), true
		}
	case dag.Udiv:
		if constIsE0 && special == bvconst.Zero {
			isZero := c.Beq(other, c.zeroRef(width))
			return c.Cond(isZero, c.onesRef(width), c.zeroRef(width)), true
		}
		if !constIsE0 && special == bvconst.One {
			return c.acquireSame(other), true
		}
	case dag.And:
		if special == bvconst.Zero {
			return c.zeroRef(width), true
		}
		if special == bvconst.Ones {
			return c.acquireSame(other), true
		}
	}
	return dag.Ref{}, false
}

// ruleConstEqAnd implements the `c == (a & b)` decomposition of spec
// §4.2.2: c is split into maximal runs of identical bits; both a and b
// are sliced to each run's range and the run is reduced to an equality
// of the sliced AND against the corresponding run of c. Partial results
// combine by left-associative AND. Only fires while the recursion
// budget allows.
func (c *Context) ruleConstEqAnd(constE, other dag.Ref) (dag.Ref, bool) {
	n := dag.RealAddress(other)
	if n.Kind() != dag.And || dag.IsInverted(other) {
		return dag.Ref{}, false
	}
	ok, leave := c.enterRecursive()
	if !ok {
		return dag.Ref{}, false
	}
	defer leave()

	bits := bitsOf(constE)
	a, b := n.Child(0), n.Child(1)

	var acc dag.Ref
	have := false
	i := 0
	for i < len(bits) {
		j := i + 1
		for j < len(bits) && bits[j] == bits[i] {
			j++
		}
		width := uint32(len(bits))
		lower, upper := width-uint32(j), width-1-uint32(i)
		sliceA := c.Slice(a, upper, lower)
		sliceB := c.Slice(b, upper, lower)
		runConst := c.constRef(bits[i:j])
		eq := c.Beq(c.And(sliceA, sliceB), runConst)
		if !have {
			acc, have = eq, true
		} else {
			next := c.And(acc, eq)
			c.Store.Release(acc)
			acc = next
		}
		i = j
	}
	if !have {
		return dag.Ref{}, false
	}
	return acc, true
}

// sameTermIdentity implements spec §4.2.3.
func (c *Context) sameTermIdentity(kind dag.Kind, e0, e1 dag.Ref) (dag.Ref, bool) {
	width := dag.RealAddress(e0).Width()
	switch kind {
	case dag.And:
		if dag.SameTag(e0, e1) {
			return c.acquireSame(e0), true
		}
		return c.zeroRef(width), true
	case dag.Beq:
		if dag.SameTag(e0, e1) {
			return c.trueRef(), true
		}
		return c.falseRef(), true
	case dag.Add:
		if !dag.SameTag(e0, e1) {
			return c.onesRef(width), true
		}
		if width >= 2 {
			two := c.constRef(bvconst.Add(bvconst.One(int(width)), bvconst.One(int(width))))
			return c.Mul(e0, two), true
		}
	case dag.Ult:
		if dag.SameTag(e0, e1) {
			return c.falseRef(), true
		}
	case dag.Udiv:
		if dag.SameTag(e0, e1) {
			isZero := c.Beq(e0, c.zeroRef(width))
			return c.Cond(isZero, c.onesRef(width), c.oneRef(width)), true
		}
	case dag.Urem:
		if dag.SameTag(e0, e1) {
			return c.zeroRef(width), true
		}
	}
	return dag.Ref{}, false
}

// conditionalLift implements spec §4.2.4: lifting op(ite(c,x,y),
// ite(c,x,z)) to ite(c, op(x,x), op(y,z)) when both operands are
// conds with the same tag and condition and either both then- or both
// else-branches match.
func (c *Context) conditionalLift(kind dag.Kind, e0, e1 dag.Ref) (dag.Ref, bool) {
	switch kind {
	case dag.Ult, dag.Beq, dag.Aeq, dag.Add, dag.Udiv:
	default:
		return dag.Ref{}, false
	}
	n0, n1 := dag.RealAddress(e0), dag.RealAddress(e1)
	if n0.Kind() != dag.Bcond && n0.Kind() != dag.Acond {
		return dag.Ref{}, false
	}
	if n0.Kind() != n1.Kind() || !dag.SameTag(e0, e1) {
		return dag.Ref{}, false
	}
	cond0, x0, y0 := n0.Child(0), n0.Child(1), n0.Child(2)
	cond1, x1, y1 := n1.Child(0), n1.Child(1), n1.Child(2)
	if dag.RealAddress(cond0) != dag.RealAddress(cond1) || !dag.SameTag(cond0, cond1) {
		return dag.Ref{}, false
	}
	if dag.IsInverted(e0) {
		x0, y0, x1, y1 = dag.Invert(x0), dag.Invert(y0), dag.Invert(x1), dag.Invert(y1)
	}

	combine := func(a, b dag.Ref) dag.Ref {
		switch kind {
		case dag.Ult:
			return c.Ult(a, b)
		case dag.Beq:
			return c.Beq(a, b)
		case dag.Aeq:
			return c.Eq(a, b)
		case dag.Add:
			return c.Add(a, b)
		case dag.Udiv:
			return c.Udiv(a, b)
		}
		panic("unreachable")
	}

	if sameReal(x0, x1) && dag.SameTag(x0, x1) {
		thenV := combine(x0, x0)
		elseV := combine(y0, y1)
		return c.Cond(cond0, thenV, elseV), true
	}
	if sameReal(y0, y1) && dag.SameTag(y0, y1) {
		thenV := combine(x0, x1)
		elseV := combine(y0, y0)
		return c.Cond(cond0, thenV, elseV), true
	}
	return dag.Ref{}, false
}
