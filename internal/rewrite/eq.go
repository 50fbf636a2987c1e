package rewrite

import "bvrewrite/internal/dag"

// Eq dispatches to Beq or Aeq by operand kind (spec §4.9).
func (c *Context) Eq(e0, e1 dag.Ref) dag.Ref {
	e0, e1 = c.chase(e0), c.chase(e1)
	if dag.RealAddress(e0).Kind().IsArrayKind() {
		return c.Aeq(e0, e1)
	}
	return c.Beq(e0, e1)
}

// Beq is the bit-vector equality entry (spec §4.9).
func (c *Context) Beq(e0, e1 dag.Ref) dag.Ref {
	e0, e1 = c.chase(e0), c.chase(e1)

	if r, ok := c.rewriteBinary(dag.Beq, e0, e1); ok {
		return r
	}
	if c.isAlwaysUnequal(e0, e1) {
		return c.falseRef()
	}
	if c.level() > 2 {
		if r, ok := c.eqAddIdentity(e0, e1); ok {
			return r
		}
		if r, ok := c.eqCondArmAlwaysUnequal(e0, e1); ok {
			return r
		}
		if r, ok := c.eqAddCancel(e0, e1); ok {
			return r
		}
		if r, ok := c.eqAndComplementPattern(e0, e1); ok {
			return r
		}
		if r, ok := c.eqCondArmLeaf(e0, e1); ok {
			return r
		}
		if r, ok := c.eqAndIdentity(e0, e1); ok {
			return r
		}
		if r, ok := c.caRetry(c.Beq, e0, e1); ok {
			return r
		}
		if r, ok := c.eqAddMulDistrib(e0, e1); ok {
			return r
		}
		if r, ok := c.eqThroughConcat(e0, e1); ok {
			return r
		}
	}
	return c.Store.Acquire(c.Store.BuildBinary(dag.Beq, e0, e1))
}

// Aeq is the array equality entry (spec §4.9). Arrays are never
// inverted, so identical tagged references are always equal.
func (c *Context) Aeq(e0, e1 dag.Ref) dag.Ref {
	e0, e1 = c.chase(e0), c.chase(e1)
	if sameReal(e0, e1) {
		return c.trueRef()
	}
	if r, ok := c.aeqWriteDowngrade(e0, e1); ok {
		return r
	}
	if r, ok := c.conditionalLift(dag.Aeq, e0, e1); ok {
		return r
	}
	return c.Store.Acquire(c.Store.BuildBinary(dag.Aeq, e0, e1))
}

// eqAddCancel implements a+b==a+c -> b==c (and the three other child
// pairings) by matching shared top-level ADD operands directly, without
// invoking full CA normalization.
func (c *Context) eqAddCancel(e0, e1 dag.Ref) (dag.Ref, bool) {
	n0, n1 := dag.RealAddress(e0), dag.RealAddress(e1)
	if n0.Kind() != dag.Add || n1.Kind() != dag.Add || dag.IsInverted(e0) || dag.IsInverted(e1) {
		return dag.Ref{}, false
	}
	a0, a1 := n0.Child(0), n0.Child(1)
	b0, b1 := n1.Child(0), n1.Child(1)
	match := func(x, y dag.Ref) bool { return sameReal(x, y) && dag.SameTag(x, y) }
	switch {
	case match(a0, b0):
		return c.Beq(a1, b1), true
	case match(a0, b1):
		return c.Beq(a1, b0), true
	case match(a1, b0):
		return c.Beq(a0, b1), true
	case match(a1, b1):
		return c.Beq(a0, b0), true
	}
	return dag.Ref{}, false
}

// or synthesizes a | b in the NAND-only encoding: ~(~a & ~b).
func (c *Context) or(a, b dag.Ref) dag.Ref {
	notA, notB := c.not(a), c.not(b)
	anded := c.And(notA, notB)
	c.Store.Release(notA)
	c.Store.Release(notB)
	result := c.not(anded)
	c.Store.Release(anded)
	return result
}

// eqAddIdentity implements a+b==a -> b==0, trying both operand orders
// and both children of the ADD (spec §4.9's four symmetric variants).
// Unlike eqAddCancel it needs only one side to be an ADD.
func (c *Context) eqAddIdentity(e0, e1 dag.Ref) (dag.Ref, bool) {
	check := func(sum, other dag.Ref) (dag.Ref, bool) {
		sn := dag.RealAddress(sum)
		if sn.Kind() != dag.Add || dag.IsInverted(sum) {
			return dag.Ref{}, false
		}
		a, b := sn.Child(0), sn.Child(1)
		match := func(x dag.Ref) bool { return sameReal(x, other) && dag.SameTag(x, other) }
		var rest dag.Ref
		switch {
		case match(a):
			rest = b
		case match(b):
			rest = a
		default:
			return dag.Ref{}, false
		}
		ok, leave := c.enterRecursive()
		if !ok {
			return dag.Ref{}, false
		}
		defer leave()
		return c.Beq(rest, c.zeroRef(sn.Width())), true
	}
	if r, ok := check(e0, e1); ok {
		return r, true
	}
	return check(e1, e0)
}

// eqCondArmAlwaysUnequal implements (c?a:t)==d where is_always_unequal
// proves one arm can never equal d, collapsing to the other arm's
// equality gated by the (negated) condition (spec §4.9, §4.7).
func (c *Context) eqCondArmAlwaysUnequal(e0, e1 dag.Ref) (dag.Ref, bool) {
	check := func(condE, d dag.Ref) (dag.Ref, bool) {
		n := dag.RealAddress(condE)
		if n.Kind() != dag.Bcond || dag.IsInverted(condE) {
			return dag.Ref{}, false
		}
		cond, thenV, elseV := n.Child(0), n.Child(1), n.Child(2)

		if c.isAlwaysUnequal(thenV, d) {
			ok, leave := c.enterRecursive()
			if !ok {
				return dag.Ref{}, false
			}
			defer leave()
			notCond := c.not(cond)
			eq := c.Beq(elseV, d)
			result := c.And(notCond, eq)
			c.Store.Release(notCond)
			c.Store.Release(eq)
			return result, true
		}
		if c.isAlwaysUnequal(elseV, d) {
			ok, leave := c.enterRecursive()
			if !ok {
				return dag.Ref{}, false
			}
			defer leave()
			eq := c.Beq(thenV, d)
			result := c.And(cond, eq)
			c.Store.Release(eq)
			return result, true
		}
		return dag.Ref{}, false
	}
	if r, ok := check(e0, e1); ok {
		return r, true
	}
	return check(e1, e0)
}

// eqCondArmLeaf implements the cond==leaf rule: when one side is a
// bit-vector if-then-else whose then- or else-arm tagged-matches the
// other side outright, fold to an OR/AND gated by the condition (or its
// negation), per the inversion tag carried by the cond reference (spec
// §4.9's four cases).
func (c *Context) eqCondArmLeaf(e0, e1 dag.Ref) (dag.Ref, bool) {
	check := func(condRef, leaf dag.Ref) (dag.Ref, bool) {
		n := dag.RealAddress(condRef)
		if n.Kind() != dag.Bcond {
			return dag.Ref{}, false
		}
		cond, thenV, elseV := n.Child(0), n.Child(1), n.Child(2)
		inv := dag.IsInverted(condRef)

		ok, leave := c.enterRecursive()
		if !ok {
			return dag.Ref{}, false
		}
		defer leave()

		switch {
		case sameReal(thenV, leaf) && dag.SameTag(thenV, leaf):
			if inv {
				notElse := c.not(elseV)
				eq := c.Beq(notElse, leaf)
				c.Store.Release(notElse)
				notCond := c.not(cond)
				result := c.And(notCond, eq)
				c.Store.Release(notCond)
				c.Store.Release(eq)
				return result, true
			}
			eq := c.Beq(elseV, leaf)
			result := c.or(cond, eq)
			c.Store.Release(eq)
			return result, true
		case sameReal(elseV, leaf) && dag.SameTag(elseV, leaf):
			if inv {
				notThen := c.not(thenV)
				eq := c.Beq(notThen, leaf)
				c.Store.Release(notThen)
				result := c.And(cond, eq)
				c.Store.Release(eq)
				return result, true
			}
			notCond := c.not(cond)
			eq := c.Beq(thenV, leaf)
			result := c.or(notCond, eq)
			c.Store.Release(notCond)
			c.Store.Release(eq)
			return result, true
		}
		return dag.Ref{}, false
	}
	if r, ok := check(e0, e1); ok {
		return r, true
	}
	return check(e1, e0)
}

// eqAndComplementPattern implements spec §4.9's AND/AND comparison
// rules: both sides must be uninverted AND nodes whose children pair up
// (position-for-position, which hash-consing's canonical child order
// guarantees) to the same two real nodes.
func (c *Context) eqAndComplementPattern(e0, e1 dag.Ref) (dag.Ref, bool) {
	n0, n1 := dag.RealAddress(e0), dag.RealAddress(e1)
	if n0.Kind() != dag.And || n1.Kind() != dag.And || dag.IsInverted(e0) || dag.IsInverted(e1) {
		return dag.Ref{}, false
	}
	a0, b0 := n0.Child(0), n0.Child(1)
	a1, b1 := n1.Child(0), n1.Child(1)

	sameTagMatch := func(x, y dag.Ref) bool { return sameReal(x, y) && dag.SameTag(x, y) }
	oppositeTagMatch := func(x, y dag.Ref) bool { return sameReal(x, y) && !dag.SameTag(x, y) }

	ok, leave := c.enterRecursive()
	if !ok {
		return dag.Ref{}, false
	}
	defer leave()

	// a & b == ~a & ~b  -->  a == ~b (same-sign children) or a == b (mixed-sign)
	if oppositeTagMatch(a0, a1) && oppositeTagMatch(b0, b1) {
		if dag.IsInverted(a0) == dag.IsInverted(b0) {
			notB0 := c.not(b0)
			result := c.Beq(a0, notB0)
			c.Store.Release(notB0)
			return result, true
		}
		plainA0 := dag.CondInvert(dag.Ref{}, dag.RealAddress(a0))
		plainB0 := dag.CondInvert(dag.Ref{}, dag.RealAddress(b0))
		return c.Beq(plainA0, plainB0), true
	}
	// a & b == a & ~b  -->  a == 0
	if sameTagMatch(a0, a1) && oppositeTagMatch(b0, b1) {
		return c.Beq(a0, c.zeroRef(dag.RealAddress(a0).Width())), true
	}
	// a & b == ~a & b  -->  b == 0
	if sameTagMatch(b0, b1) && oppositeTagMatch(a0, a1) {
		return c.Beq(b0, c.zeroRef(dag.RealAddress(b0).Width())), true
	}
	return dag.Ref{}, false
}

// eqAddMulDistrib implements spec §4.9's distributivity probe: when one
// side is c*x and the other a+b, try rewriting a+b as c*(...) via
// tryRewriteAddMulDistrib and compare against c*x.
func (c *Context) eqAddMulDistrib(e0, e1 dag.Ref) (dag.Ref, bool) {
	check := func(mulE, addE dag.Ref) (dag.Ref, bool) {
		mn, an := dag.RealAddress(mulE), dag.RealAddress(addE)
		if mn.Kind() != dag.Mul || an.Kind() != dag.Add || dag.IsInverted(mulE) || dag.IsInverted(addE) {
			return dag.Ref{}, false
		}
		a, b := an.Child(0), an.Child(1)
		candidate, ok := c.tryRewriteAddMulDistrib(a, b)
		if !ok {
			return dag.Ref{}, false
		}
		defer c.Store.Release(candidate)
		if sameReal(candidate, mulE) && dag.SameTag(candidate, mulE) {
			return c.trueRef(), true
		}
		return dag.Ref{}, false
	}
	if r, ok := check(e0, e1); ok {
		return r, true
	}
	return check(e1, e0)
}

// tryRewriteAddMulDistrib rewrites a+b as mul(shared, rest) when a and b
// are themselves uninverted MUL nodes sharing one operand.
func (c *Context) tryRewriteAddMulDistrib(a, b dag.Ref) (dag.Ref, bool) {
	an, bn := dag.RealAddress(a), dag.RealAddress(b)
	if an.Kind() != dag.Mul || bn.Kind() != dag.Mul || dag.IsInverted(a) || dag.IsInverted(b) {
		return dag.Ref{}, false
	}
	a0, a1 := an.Child(0), an.Child(1)
	b0, b1 := bn.Child(0), bn.Child(1)
	match := func(x, y dag.Ref) bool { return sameReal(x, y) && dag.SameTag(x, y) }

	var shared, restA, restB dag.Ref
	switch {
	case match(a0, b0):
		shared, restA, restB = a0, a1, b1
	case match(a0, b1):
		shared, restA, restB = a0, a1, b0
	case match(a1, b0):
		shared, restA, restB = a1, a0, b1
	case match(a1, b1):
		shared, restA, restB = a1, a0, b0
	default:
		return dag.Ref{}, false
	}

	ok, leave := c.enterRecursive()
	if !ok {
		return dag.Ref{}, false
	}
	defer leave()
	sum := c.Add(restA, restB)
	result := c.Mul(shared, sum)
	c.Store.Release(sum)
	return result, true
}

// eqAndIdentity implements (a&b)==a -> (a & ~b)==0, trying both operand
// orders and both children of the AND.
func (c *Context) eqAndIdentity(e0, e1 dag.Ref) (dag.Ref, bool) {
	check := func(andE, leaf dag.Ref) (dag.Ref, bool) {
		n := dag.RealAddress(andE)
		if n.Kind() != dag.And || dag.IsInverted(andE) {
			return dag.Ref{}, false
		}
		a, b := n.Child(0), n.Child(1)
		var other dag.Ref
		switch {
		case sameReal(a, leaf) && dag.SameTag(a, leaf):
			other = b
		case sameReal(b, leaf) && dag.SameTag(b, leaf):
			other = a
		default:
			return dag.Ref{}, false
		}
		ok, leave := c.enterRecursive()
		if !ok {
			return dag.Ref{}, false
		}
		defer leave()
		notOther := c.not(other)
		masked := c.And(leaf, notOther)
		c.Store.Release(notOther)
		result := c.Beq(masked, c.zeroRef(dag.RealAddress(masked).Width()))
		c.Store.Release(masked)
		return result, true
	}
	if r, ok := check(e0, e1); ok {
		return r, true
	}
	return check(e1, e0)
}

// eqThroughConcat implements concat(a,b)==concat(c,d) -> a==c && b==d
// when the low halves agree in width, so the split is well-defined.
func (c *Context) eqThroughConcat(e0, e1 dag.Ref) (dag.Ref, bool) {
	n0, n1 := dag.RealAddress(e0), dag.RealAddress(e1)
	if n0.Kind() != dag.Concat || n1.Kind() != dag.Concat {
		return dag.Ref{}, false
	}
	if dag.IsInverted(e0) || dag.IsInverted(e1) {
		return dag.Ref{}, false
	}
	hi0, lo0 := n0.Child(0), n0.Child(1)
	hi1, lo1 := n1.Child(0), n1.Child(1)
	if dag.RealAddress(lo0).Width() != dag.RealAddress(lo1).Width() {
		return dag.Ref{}, false
	}
	ok, leave := c.enterRecursive()
	if !ok {
		return dag.Ref{}, false
	}
	defer leave()
	left := c.Beq(hi0, hi1)
	right := c.Beq(lo0, lo1)
	result := c.And(left, right)
	c.Store.Release(left)
	c.Store.Release(right)
	return result, true
}

// aeqWriteDowngrade implements write(a,i,x)==write(a,i,y) -> x==y.
func (c *Context) aeqWriteDowngrade(e0, e1 dag.Ref) (dag.Ref, bool) {
	n0, n1 := dag.RealAddress(e0), dag.RealAddress(e1)
	if n0.Kind() != dag.Write || n1.Kind() != dag.Write {
		return dag.Ref{}, false
	}
	a0, i0, x0 := n0.Child(0), n0.Child(1), n0.Child(2)
	a1, i1, x1 := n1.Child(0), n1.Child(1), n1.Child(2)
	if !sameReal(a0, a1) {
		return dag.Ref{}, false
	}
	if !sameReal(i0, i1) || !dag.SameTag(i0, i1) {
		return dag.Ref{}, false
	}
	return c.Beq(x0, x1), true
}
