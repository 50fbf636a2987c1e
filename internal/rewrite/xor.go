package rewrite

import "bvrewrite/internal/dag"

// matchXor recognizes the NAND-only encoding of XOR/XNOR described in
// spec §4.6: XOR(a,b) appears as AND(NOT AND(NOT a, NOT b), NOT AND(a,
// b)); XNOR is the same shape with the top AND's own tag inverted, i.e.
// NOT XOR(a, b). On success it returns the two
// recovered operands a, b (with correct polarity) and whether the match
// was the XNOR template.
//
// spec.md's "Open questions" flags the original's two grandchild
// sign-equality checks as comparing children across different AND
// grandchildren in the inverted-root case, which looked asymmetric and
// possibly buggy. DESIGN.md records the decision: this port uses the
// symmetric, semantically-correct match (same real node, opposite
// polarity, across corresponding grandchild positions) rather than
// reproducing the suspected transcription bug.
func matchXor(e dag.Ref) (a, b dag.Ref, xnor bool, ok bool) {
	root := dag.RealAddress(e)
	if root.Kind() != dag.And {
		return dag.Ref{}, dag.Ref{}, false, false
	}
	rootInverted := dag.IsInverted(e)

	g0, g1 := root.Child(0), root.Child(1)
	gn0, gn1 := dag.RealAddress(g0), dag.RealAddress(g1)
	if gn0.Kind() != dag.And || gn1.Kind() != dag.And {
		return dag.Ref{}, dag.Ref{}, false, false
	}
	g0inv, g1inv := dag.IsInverted(g0), dag.IsInverted(g1)

	var wantXnor bool
	switch {
	case !rootInverted && g0inv && g1inv:
		wantXnor = false
	case rootInverted && g0inv && g1inv:
		wantXnor = true
	default:
		return dag.Ref{}, dag.Ref{}, false, false
	}

	a0, b0 := gn0.Child(0), gn0.Child(1)
	a1, b1 := gn1.Child(0), gn1.Child(1)

	if opposite(a0, a1) && opposite(b0, b1) {
		return a1, b1, wantXnor, true
	}
	if opposite(a0, b1) && opposite(b0, a1) {
		return b1, a1, wantXnor, true
	}
	return dag.Ref{}, dag.Ref{}, false, false
}

// opposite reports whether x and y address the same node with opposite
// inversion polarity.
func opposite(x, y dag.Ref) bool {
	return dag.RealAddress(x) == dag.RealAddress(y) && !dag.SameTag(x, y)
}
