package rewrite

import (
	"bvrewrite/internal/bvconst"
	"bvrewrite/internal/dag"
)

// Add is the ADD operator entry (spec §4.10).
func (c *Context) Add(e0, e1 dag.Ref) dag.Ref {
	e0, e1 = c.chase(e0), c.chase(e1)
	width := dag.RealAddress(e0).Width()

	if r, ok := c.rewriteBinary(dag.Add, e0, e1); ok {
		return r
	}
	if width == 1 {
		return c.buildXor(e0, e1)
	}
	if r, ok := c.arithConstReassoc(dag.Add, e0, e1); ok {
		return r
	}
	if r, ok := c.addTwosComplementZero(e0, e1); ok {
		return r
	}
	if c.level() > 2 {
		if r, ok := c.caRetry(c.Add, e0, e1); ok {
			return r
		}
	}
	return c.Store.Acquire(c.Store.BuildBinary(dag.Add, e0, e1))
}

// Mul is the MUL operator entry (spec §4.10).
func (c *Context) Mul(e0, e1 dag.Ref) dag.Ref {
	e0, e1 = c.chase(e0), c.chase(e1)
	width := dag.RealAddress(e0).Width()

	if r, ok := c.rewriteBinary(dag.Mul, e0, e1); ok {
		return r
	}
	if width == 1 {
		return c.And(e0, e1)
	}
	if r, ok := c.arithConstReassoc(dag.Mul, e0, e1); ok {
		return r
	}
	if r, ok := c.mulDistribute(e0, e1); ok {
		return r
	}
	if c.level() > 2 {
		if r, ok := c.caRetry(c.Mul, e0, e1); ok {
			return r
		}
	}
	return c.Store.Acquire(c.Store.BuildBinary(dag.Mul, e0, e1))
}

// Ult is the ULT operator entry (spec §4.10).
func (c *Context) Ult(e0, e1 dag.Ref) dag.Ref {
	e0, e1 = c.chase(e0), c.chase(e1)
	width := dag.RealAddress(e0).Width()

	if r, ok := c.rewriteBinary(dag.Ult, e0, e1); ok {
		return r
	}
	if width == 1 {
		return c.And(c.not(e0), e1)
	}
	if dag.IsInverted(e0) && dag.IsInverted(e1) {
		plainA := dag.CondInvert(dag.Ref{}, dag.RealAddress(e0))
		plainB := dag.CondInvert(dag.Ref{}, dag.RealAddress(e1))
		return c.Ult(plainB, plainA)
	}
	if r, ok := c.ultConcatShared(e0, e1); ok {
		return r
	}
	if c.level() > 2 {
		if r, ok := c.caRetry(c.Ult, e0, e1); ok {
			return r
		}
	}
	return c.Store.Acquire(c.Store.BuildBinary(dag.Ult, e0, e1))
}

// ultConcatShared implements: concat-vs-concat with a shared high or low
// side reduces to a smaller < on the remaining side.
func (c *Context) ultConcatShared(e0, e1 dag.Ref) (dag.Ref, bool) {
	n0, n1 := dag.RealAddress(e0), dag.RealAddress(e1)
	if n0.Kind() != dag.Concat || n1.Kind() != dag.Concat {
		return dag.Ref{}, false
	}
	if dag.IsInverted(e0) || dag.IsInverted(e1) {
		return dag.Ref{}, false
	}
	hi0, lo0 := n0.Child(0), n0.Child(1)
	hi1, lo1 := n1.Child(0), n1.Child(1)
	if sameReal(hi0, hi1) && dag.SameTag(hi0, hi1) &&
		dag.RealAddress(lo0).Width() == dag.RealAddress(lo1).Width() {
		return c.Ult(lo0, lo1), true
	}
	if sameReal(lo0, lo1) && dag.SameTag(lo0, lo1) &&
		dag.RealAddress(hi0).Width() == dag.RealAddress(hi1).Width() {
		return c.Ult(hi0, hi1), true
	}
	return dag.Ref{}, false
}

// Udiv is the UDIV operator entry (spec §4.10).
func (c *Context) Udiv(e0, e1 dag.Ref) dag.Ref {
	e0, e1 = c.chase(e0), c.chase(e1)
	width := dag.RealAddress(e0).Width()

	if r, ok := c.rewriteBinary(dag.Udiv, e0, e1); ok {
		return r
	}
	if width == 1 {
		return c.not(c.And(c.not(e0), e1))
	}
	if c.level() > 2 {
		if r, ok := c.caRetry(c.Udiv, e0, e1); ok {
			return r
		}
	}
	return c.Store.Acquire(c.Store.BuildBinary(dag.Udiv, e0, e1))
}

// Urem is the UREM operator entry (spec §4.10).
func (c *Context) Urem(e0, e1 dag.Ref) dag.Ref {
	e0, e1 = c.chase(e0), c.chase(e1)
	width := dag.RealAddress(e0).Width()

	if r, ok := c.rewriteBinary(dag.Urem, e0, e1); ok {
		return r
	}
	if width == 1 {
		return c.And(e0, c.not(e1))
	}
	if c.level() > 2 {
		if r, ok := c.caRetry(c.Urem, e0, e1); ok {
			return r
		}
	}
	return c.Store.Acquire(c.Store.BuildBinary(dag.Urem, e0, e1))
}

// Sll is the SLL operator entry. rewrite_level > 0 is asserted here
// (spec.md's open-questions note flags that the original omits this
// assertion for SRL while asserting it for SLL; this port asserts it
// uniformly for both, since nothing in spec.md justifies the asymmetry).
func (c *Context) Sll(e0, e1 dag.Ref) dag.Ref {
	if c.level() < 1 {
		panic("rewrite: Sll requires rewrite_level > 0")
	}
	e0, e1 = c.chase(e0), c.chase(e1)
	if r, ok := c.rewriteBinary(dag.Sll, e0, e1); ok {
		return r
	}
	return c.Store.Acquire(c.Store.BuildBinary(dag.Sll, e0, e1))
}

// Srl is the SRL operator entry.
func (c *Context) Srl(e0, e1 dag.Ref) dag.Ref {
	if c.level() < 1 {
		panic("rewrite: Srl requires rewrite_level > 0")
	}
	e0, e1 = c.chase(e0), c.chase(e1)
	if r, ok := c.rewriteBinary(dag.Srl, e0, e1); ok {
		return r
	}
	return c.Store.Acquire(c.Store.BuildBinary(dag.Srl, e0, e1))
}

// buildXor constructs the NAND-only encoding of XOR(a,b) described in
// spec §4.6, routed back through And/not so the result is itself fully
// simplified and hash-consed.
func (c *Context) buildXor(a, b dag.Ref) dag.Ref {
	notA, notB := c.not(a), c.not(b)
	left := c.not(c.And(notA, notB))
	right := c.not(c.And(a, b))
	c.Store.Release(notA)
	c.Store.Release(notB)
	result := c.And(left, right)
	c.Store.Release(left)
	c.Store.Release(right)
	return result
}

// arithConstReassoc implements: if one operand is a constant and the
// other is an ADD (resp. MUL) one of whose children is also a constant,
// re-associate to pull both constants together so the constant kernel
// folds them.
func (c *Context) arithConstReassoc(kind dag.Kind, e0, e1 dag.Ref) (dag.Ref, bool) {
	var constE, treeE dag.Ref
	switch {
	case isConst(e0) && !isConst(e1):
		constE, treeE = e0, e1
	case isConst(e1) && !isConst(e0):
		constE, treeE = e1, e0
	default:
		return dag.Ref{}, false
	}
	tn := dag.RealAddress(treeE)
	if tn.Kind() != kind || dag.IsInverted(treeE) {
		return dag.Ref{}, false
	}
	c0, c1 := tn.Child(0), tn.Child(1)
	for _, pair := range [][2]dag.Ref{{c0, c1}, {c1, c0}} {
		inner, rest := pair[0], pair[1]
		if !isConst(inner) {
			continue
		}
		ok, leave := c.enterRecursive()
		if !ok {
			return dag.Ref{}, false
		}
		merged := c.recurseOp(kind, constE, inner)
		leave()
		if kind == dag.Add {
			result := c.Add(merged, rest)
			c.Store.Release(merged)
			return result, true
		}
		result := c.Mul(merged, rest)
		c.Store.Release(merged)
		return result, true
	}
	return dag.Ref{}, false
}

func (c *Context) recurseOp(kind dag.Kind, a, b dag.Ref) dag.Ref {
	switch kind {
	case dag.Add:
		return c.Add(a, b)
	case dag.Mul:
		return c.Mul(a, b)
	default:
		panic("unreachable")
	}
}

// mulDistribute implements: c * (a + b) -> c*a + c*b whenever one child
// of the ADD is a constant.
func (c *Context) mulDistribute(e0, e1 dag.Ref) (dag.Ref, bool) {
	var constE, addE dag.Ref
	switch {
	case isConst(e0) && dag.RealAddress(e1).Kind() == dag.Add && !dag.IsInverted(e1):
		constE, addE = e0, e1
	case isConst(e1) && dag.RealAddress(e0).Kind() == dag.Add && !dag.IsInverted(e0):
		constE, addE = e1, e0
	default:
		return dag.Ref{}, false
	}
	an := dag.RealAddress(addE)
	a, b := an.Child(0), an.Child(1)
	if !isConst(a) && !isConst(b) {
		return dag.Ref{}, false
	}
	ok, leave := c.enterRecursive()
	if !ok {
		return dag.Ref{}, false
	}
	defer leave()
	ca := c.Mul(constE, a)
	cb := c.Mul(constE, b)
	result := c.Add(ca, cb)
	c.Store.Release(ca)
	c.Store.Release(cb)
	return result, true
}

// addTwosComplementZero detects `a - a == 0` written as a + (NOT b + 1)
// where a and b are the same term (two's-complement negation).
func (c *Context) addTwosComplementZero(e0, e1 dag.Ref) (dag.Ref, bool) {
	check := func(x, sum dag.Ref) (dag.Ref, bool) {
		sn := dag.RealAddress(sum)
		if sn.Kind() != dag.Add || dag.IsInverted(sum) {
			return dag.Ref{}, false
		}
		c0, c1 := sn.Child(0), sn.Child(1)
		for _, pair := range [][2]dag.Ref{{c0, c1}, {c1, c0}} {
			negated, one := pair[0], pair[1]
			if !dag.IsInverted(negated) {
				continue
			}
			on := dag.RealAddress(one)
			if on.Kind() != dag.BVConst || dag.IsInverted(one) {
				continue
			}
			if bvconst.Classify(on.Bits()) != bvconst.One {
				continue
			}
			if !dag.IsInverted(x) && sameReal(negated, x) {
				return c.zeroRef(sn.Width()), true
			}
		}
		return dag.Ref{}, false
	}
	if r, ok := check(e0, e1); ok {
		return r, true
	}
	return check(e1, e0)
}
