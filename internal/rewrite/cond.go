package rewrite

import (
	"bvrewrite/internal/bvconst"
	"bvrewrite/internal/dag"
)

// Cond is the BCOND/ACOND operator entry (spec §4.14). cond must be
// width 1; x and y must agree in kind (both bit-vector of equal width,
// or both array of equal index/element width).
func (c *Context) Cond(cond, x, y dag.Ref) dag.Ref {
	cond, x, y = c.chase(cond), c.chase(x), c.chase(y)

	if dag.IsInverted(cond) {
		plain := dag.CondInvert(dag.Ref{}, dag.RealAddress(cond))
		return c.Cond(plain, y, x)
	}
	if sameReal(x, y) && dag.SameTag(x, y) {
		return c.acquireSame(x)
	}
	if isConst(cond) {
		if classOf(cond) == bvconst.OneOnes {
			return c.acquireSame(x)
		}
		return c.acquireSame(y)
	}

	xn, yn := dag.RealAddress(x), dag.RealAddress(y)

	if !xn.Kind().IsArrayKind() && xn.Width() == 1 {
		if r, ok := c.condAsFormula(cond, x, y); ok {
			return r
		}
	}

	if (xn.Kind() == dag.Bcond || xn.Kind() == dag.Acond) && !dag.IsInverted(x) {
		if r, ok := c.condNestedThen(cond, xn, y); ok {
			return r
		}
	}
	if (yn.Kind() == dag.Bcond || yn.Kind() == dag.Acond) && !dag.IsInverted(y) {
		if r, ok := c.condNestedElse(cond, x, yn); ok {
			return r
		}
	}

	if !xn.Kind().IsArrayKind() {
		if r, ok := c.condPlusOneEither(cond, x, y); ok {
			return r
		}
		if r, ok := c.condFactorOperand(cond, x, y); ok {
			return r
		}
	}

	return c.Store.Acquire(c.Store.BuildCond(cond, x, y))
}

// condAsFormula rewrites a width-1 mux as a boolean formula:
// c?x:y == (c&x) | (~c&y), with OR synthesized in the NAND-only
// encoding as ~(~a & ~b).
func (c *Context) condAsFormula(cond, x, y dag.Ref) (dag.Ref, bool) {
	ok, leave := c.enterRecursive()
	if !ok {
		return dag.Ref{}, false
	}
	defer leave()

	notCond := c.not(cond)
	left := c.And(cond, x)
	right := c.And(notCond, y)
	c.Store.Release(notCond)

	notLeft, notRight := c.not(left), c.not(right)
	c.Store.Release(left)
	c.Store.Release(right)
	combined := c.And(notLeft, notRight)
	c.Store.Release(notLeft)
	c.Store.Release(notRight)
	result := c.not(combined)
	c.Store.Release(combined)
	return result, true
}

// condNestedThen collapses cond(c, cond(c, x2, y2), y) to cond(c, x2, y)
// when the nested condition is literally the same tagged reference.
func (c *Context) condNestedThen(cond dag.Ref, xn *dag.Node, y dag.Ref) (dag.Ref, bool) {
	c2, x2 := xn.Child(0), xn.Child(1)
	if !sameReal(c2, cond) || !dag.SameTag(c2, cond) {
		return dag.Ref{}, false
	}
	ok, leave := c.enterRecursive()
	if !ok {
		return dag.Ref{}, false
	}
	defer leave()
	return c.Cond(cond, x2, y), true
}

// condNestedElse collapses cond(c, x, cond(c, x2, y2)) to cond(c, x, y2):
// reaching the outer else branch already proves c is false, so the
// nested cond (guarded by the same c) must also take its else branch.
func (c *Context) condNestedElse(cond, x dag.Ref, yn *dag.Node) (dag.Ref, bool) {
	c2, _, y2 := yn.Child(0), yn.Child(1), yn.Child(2)
	if !sameReal(c2, cond) || !dag.SameTag(c2, cond) {
		return dag.Ref{}, false
	}
	ok, leave := c.enterRecursive()
	if !ok {
		return dag.Ref{}, false
	}
	defer leave()
	return c.Cond(cond, x, y2), true
}

// isAddOne reports whether sum is base + 1 (either child order).
func isAddOne(sum, base dag.Ref) bool {
	sn := dag.RealAddress(sum)
	if sn.Kind() != dag.Add || dag.IsInverted(sum) {
		return false
	}
	c0, c1 := sn.Child(0), sn.Child(1)
	for _, pair := range [][2]dag.Ref{{c0, c1}, {c1, c0}} {
		constC, rest := pair[0], pair[1]
		cn := dag.RealAddress(constC)
		if cn.Kind() != dag.BVConst || dag.IsInverted(constC) {
			continue
		}
		if bvconst.Classify(cn.Bits()) != bvconst.One {
			continue
		}
		if sameReal(rest, base) && dag.SameTag(rest, base) {
			return true
		}
	}
	return false
}

// zext zero-extends a width-1 bit bit to width by concatenating zero
// padding on top.
func (c *Context) zext(bit dag.Ref, width uint32) dag.Ref {
	if width == 1 {
		return c.acquireSame(bit)
	}
	pad := c.zeroRef(width - 1)
	result := c.Concat(pad, bit)
	c.Store.Release(pad)
	return result
}

// condPlusOneEither implements c?(x+1):x -> x + zext(c) and its mirror
// c?x:(x+1) -> x + zext(~c) (spec.md flags the original as missing this
// mirror case; this port implements both directions symmetrically).
func (c *Context) condPlusOneEither(cond, x, y dag.Ref) (dag.Ref, bool) {
	ok, leave := c.enterRecursive()
	if !ok {
		return dag.Ref{}, false
	}
	defer leave()

	if isAddOne(x, y) {
		width := dag.RealAddress(y).Width()
		z := c.zext(cond, width)
		result := c.Add(y, z)
		c.Store.Release(z)
		return result, true
	}
	if isAddOne(y, x) {
		width := dag.RealAddress(x).Width()
		notCond := c.not(cond)
		z := c.zext(notCond, width)
		c.Store.Release(notCond)
		result := c.Add(x, z)
		c.Store.Release(z)
		return result, true
	}
	return dag.Ref{}, false
}

// condFactorOperand implements shared-operand factoring: cond(c,
// op(a,b1), op(a,b2)) -> op(a, cond(c, b1, b2)) for ADD, AND, MUL, UDIV
// and UREM arms.
func (c *Context) condFactorOperand(cond, x, y dag.Ref) (dag.Ref, bool) {
	xn, yn := dag.RealAddress(x), dag.RealAddress(y)
	if xn.Kind() != yn.Kind() || dag.IsInverted(x) || dag.IsInverted(y) {
		return dag.Ref{}, false
	}
	switch xn.Kind() {
	case dag.Add, dag.And, dag.Mul, dag.Udiv, dag.Urem:
	default:
		return dag.Ref{}, false
	}
	commutative := xn.Kind() == dag.Add || xn.Kind() == dag.And || xn.Kind() == dag.Mul

	ok, leave := c.enterRecursive()
	if !ok {
		return dag.Ref{}, false
	}
	defer leave()

	combine := func(a, b dag.Ref) dag.Ref {
		switch xn.Kind() {
		case dag.Add:
			return c.Add(a, b)
		case dag.And:
			return c.And(a, b)
		case dag.Mul:
			return c.Mul(a, b)
		case dag.Udiv:
			return c.Udiv(a, b)
		case dag.Urem:
			return c.Urem(a, b)
		}
		panic("unreachable")
	}

	xa, xb := xn.Child(0), xn.Child(1)
	ya, yb := yn.Child(0), yn.Child(1)
	match := func(p, q dag.Ref) bool { return sameReal(p, q) && dag.SameTag(p, q) }

	switch {
	case match(xa, ya):
		inner := c.Cond(cond, xb, yb)
		result := combine(xa, inner)
		c.Store.Release(inner)
		return result, true
	case match(xb, yb):
		inner := c.Cond(cond, xa, ya)
		result := combine(inner, xb)
		c.Store.Release(inner)
		return result, true
	case commutative && match(xa, yb):
		inner := c.Cond(cond, xb, ya)
		result := combine(xa, inner)
		c.Store.Release(inner)
		return result, true
	case commutative && match(xb, ya):
		inner := c.Cond(cond, xa, yb)
		result := combine(xb, inner)
		c.Store.Release(inner)
		return result, true
	}
	return dag.Ref{}, false
}
