package rewrite

import (
	"bvrewrite/internal/bvconst"
	"bvrewrite/internal/dag"
)

// constRef builds (or reuses) a constant node and returns an owned
// reference to it.
func (c *Context) constRef(bits string) dag.Ref {
	return c.Store.NewConst(bits)
}

func (c *Context) zeroRef(width uint32) dag.Ref { return c.constRef(bvconst.Zeros(int(width))) }
func (c *Context) onesRef(width uint32) dag.Ref { return c.constRef(bvconst.Ones(int(width))) }
func (c *Context) oneRef(width uint32) dag.Ref  { return c.constRef(bvconst.One(int(width))) }
func (c *Context) trueRef() dag.Ref             { return c.constRef("1") }
func (c *Context) falseRef() dag.Ref            { return c.constRef("0") }

// not returns an owned, tag-flipped reference to e (no new node is
// allocated — inversion only ever flips a tag bit, never array-typed).
func (c *Context) not(e dag.Ref) dag.Ref {
	return c.Store.Acquire(dag.Invert(e))
}

// acquireSame returns an additional owned reference to the same node e
// already addresses, preserving its tag.
func (c *Context) acquireSame(e dag.Ref) dag.Ref {
	return c.Store.Acquire(e)
}

func isConst(e dag.Ref) bool { return dag.RealAddress(e).Kind() == dag.BVConst }

func classOf(e dag.Ref) bvconst.Special {
	if !isConst(e) {
		return bvconst.None
	}
	return bvconst.Classify(bitsOf(e))
}

func sameReal(a, b dag.Ref) bool { return dag.RealAddress(a) == dag.RealAddress(b) }
