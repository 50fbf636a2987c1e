package rewrite

import (
	"bvrewrite/internal/bvconst"
	"bvrewrite/internal/dag"
)

// isAlwaysUnequal is the conservative always-unequal oracle of spec
// §4.7: true only when e0 and e1 provably cannot take the same value
// under any assignment. False is always a safe (if imprecise) answer.
func (c *Context) isAlwaysUnequal(e0, e1 dag.Ref) bool {
	e0, e1 = c.chase(e0), c.chase(e1)

	if dag.RealAddress(e0) == dag.RealAddress(e1) && !dag.SameTag(e0, e1) {
		return true
	}

	n0, n1 := dag.RealAddress(e0), dag.RealAddress(e1)
	if n0.Kind() == dag.BVConst && n1.Kind() == dag.BVConst {
		b0, b1 := bitsOf(e0), bitsOf(e1)
		if !bvconst.Eq(b0, b1) {
			return true
		}
		return false
	}

	if addVsVar(e0, e1) || addVsVar(e1, e0) {
		return true
	}
	return false
}

// addVsVar checks the "x + c == x" shape of spec §4.7: sum is x+c with c
// a non-zero constant, and other is x under either inversion convention
// (x+c against x, and NOT(x+c) against NOT x).
func addVsVar(sum, other dag.Ref) bool {
	sn := dag.RealAddress(sum)
	if sn.Kind() != dag.Add {
		return false
	}
	c0, c1 := sn.Child(0), sn.Child(1)
	for _, pair := range [][2]dag.Ref{{c0, c1}, {c1, c0}} {
		constChild, x := pair[0], pair[1]
		cn := dag.RealAddress(constChild)
		if cn.Kind() != dag.BVConst || dag.IsInverted(constChild) {
			continue
		}
		if bvconst.Classify(cn.Bits()) == bvconst.Zero {
			continue
		}
		if dag.IsInverted(sum) {
			x = dag.Invert(x)
		}
		if dag.RealAddress(x) == dag.RealAddress(other) && dag.SameTag(x, other) {
			return true
		}
	}
	return false
}

// bitsOf returns e's constant bit string with its inversion tag applied.
func bitsOf(e dag.Ref) string {
	n := dag.RealAddress(e)
	if dag.IsInverted(e) {
		return bvconst.Invert(n.Bits())
	}
	return n.Bits()
}
