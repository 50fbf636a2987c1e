package rewrite

import (
	"bvrewrite/internal/bvconst"
	"bvrewrite/internal/dag"
)

// Slice is the slice operator entry (spec §4.8). Preconditions: 0 <=
// lower <= upper < e.width.
func (c *Context) Slice(e dag.Ref, upper, lower uint32) dag.Ref {
	e = c.chase(e)
	n := dag.RealAddress(e)
	if lower > upper || upper >= n.Width() {
		panic("rewrite: Slice precondition violated: 0 <= lower <= upper < width")
	}

	if lower == 0 && upper == n.Width()-1 {
		return c.acquireSame(e)
	}

	if n.Kind() == dag.BVConst {
		bits := bvconst.Slice(bitsOf(e), lower, upper)
		return c.constRef(bits)
	}

	if n.Kind() == dag.Slice {
		childLower, _ := n.SliceBounds()
		fused := c.Slice(n.Child(0), upper+childLower, lower+childLower)
		if dag.IsInverted(e) {
			flipped := c.not(fused)
			c.Store.Release(fused)
			return flipped
		}
		return fused
	}

	if n.Kind() == dag.Concat {
		if r, ok := c.sliceOfConcat(e, n, upper, lower); ok {
			return r
		}
	}

	return c.Store.Acquire(c.Store.BuildSlice(e, upper, lower))
}

// sliceOfConcat implements spec §4.8 rule 4: a slice over a concat that
// lands entirely in the low half (or, below rewrite_level 3, entirely in
// the high half) is rewritten as a slice of the corresponding child; at
// rewrite_level >= 3 it descends into whichever side the slice falls in
// and splits+reconcatenates when it straddles both.
func (c *Context) sliceOfConcat(e dag.Ref, n *dag.Node, upper, lower uint32) (dag.Ref, bool) {
	hi, lo := n.Child(0), n.Child(1)
	loWidth := dag.RealAddress(lo).Width()
	inverted := dag.IsInverted(e)

	wrap := func(r dag.Ref) dag.Ref {
		if inverted {
			flipped := c.not(r)
			c.Store.Release(r)
			return flipped
		}
		return r
	}

	if upper < loWidth {
		return wrap(c.Slice(lo, upper, lower)), true
	}
	if c.level() < 3 {
		if lower >= loWidth {
			return wrap(c.Slice(hi, upper-loWidth, lower-loWidth)), true
		}
		return dag.Ref{}, false
	}

	ok, leave := c.enterRecursive()
	if !ok {
		return dag.Ref{}, false
	}
	defer leave()

	if lower >= loWidth {
		return wrap(c.Slice(hi, upper-loWidth, lower-loWidth)), true
	}
	// Straddles both halves: split and re-concat.
	loPart := c.Slice(lo, loWidth-1, lower)
	hiPart := c.Slice(hi, upper-loWidth, 0)
	result := c.Concat(hiPart, loPart)
	c.Store.Release(loPart)
	c.Store.Release(hiPart)
	return wrap(result), true
}
