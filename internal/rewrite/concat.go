package rewrite

import "bvrewrite/internal/dag"

// Concat is the CONCAT operator entry (spec §4.11). e0 occupies the
// high bits, e1 the low bits.
func (c *Context) Concat(e0, e1 dag.Ref) dag.Ref {
	e0, e1 = c.chase(e0), c.chase(e1)

	if r, ok := c.rewriteBinary(dag.Concat, e0, e1); ok {
		return r
	}
	if r, ok := c.concatConstReassoc(e0, e1); ok {
		return r
	}
	if c.level() > 2 {
		if r, ok := c.concatFlattenLeft(e0, e1); ok {
			return r
		}
	}
	return c.Store.Acquire(c.Store.BuildBinary(dag.Concat, e0, e1))
}

// concatConstReassoc implements: if e1 is constant and e0 is a concat
// whose low child is constant, re-associate so the two constants merge
// and the constant kernel folds them.
func (c *Context) concatConstReassoc(e0, e1 dag.Ref) (dag.Ref, bool) {
	if !isConst(e1) {
		return dag.Ref{}, false
	}
	n0 := dag.RealAddress(e0)
	if n0.Kind() != dag.Concat || dag.IsInverted(e0) {
		return dag.Ref{}, false
	}
	hi0, lo0 := n0.Child(0), n0.Child(1)
	if !isConst(lo0) {
		return dag.Ref{}, false
	}
	ok, leave := c.enterRecursive()
	if !ok {
		return dag.Ref{}, false
	}
	defer leave()
	mergedLow := c.constRef(bitsOf(lo0) + bitsOf(e1))
	result := c.Concat(hi0, mergedLow)
	c.Store.Release(mergedLow)
	return result, true
}

// flattenConcat flattens e into an ordered (high-to-low) list of
// non-concat leaves, propagating e's own inversion tag onto each
// recovered leaf when e itself is an inverted concat (valid because
// bitwise NOT distributes over concatenation).
func flattenConcat(e dag.Ref, out *[]dag.Ref) {
	n := dag.RealAddress(e)
	if n.Kind() != dag.Concat {
		*out = append(*out, e)
		return
	}
	hi, lo := n.Child(0), n.Child(1)
	if dag.IsInverted(e) {
		hi, lo = dag.Invert(hi), dag.Invert(lo)
	}
	flattenConcat(hi, out)
	flattenConcat(lo, out)
}

// concatFlattenLeft implements the rewrite_level > 2 right-associative
// normalization of spec §4.11: flatten any right-skewed concat chain
// into a left-associative chain by popping leaves onto a list and
// re-folding left.
func (c *Context) concatFlattenLeft(e0, e1 dag.Ref) (dag.Ref, bool) {
	if dag.RealAddress(e1).Kind() != dag.Concat {
		return dag.Ref{}, false
	}
	var leaves []dag.Ref
	flattenConcat(e0, &leaves)
	flattenConcat(e1, &leaves)
	if len(leaves) <= 2 {
		return dag.Ref{}, false
	}
	ok, leave := c.enterRecursive()
	if !ok {
		return dag.Ref{}, false
	}
	defer leave()

	acc := leaves[0]
	owned := false
	for _, item := range leaves[1:] {
		next := c.Concat(acc, item)
		if owned {
			c.Store.Release(acc)
		}
		acc, owned = next, true
	}
	return acc, true
}
