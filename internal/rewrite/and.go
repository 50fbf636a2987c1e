package rewrite

import "bvrewrite/internal/dag"

// And is the AND operator entry (spec §4.3): in addition to the
// generic binary rules of §4.2, it applies a dense peephole rule set
// to pairs of AND operands, retries with commutative-associative
// normalization at rewrite_level > 2, and finally runs the
// AND-contradiction search before falling back to a primitive node.
//
// The original source re-enters the whole rule set whenever a rule
// reduces one operand to a sub-operand ("the re-entry convention",
// spec §4.3). The rules implemented below never produce a partial
// reduction that still needs further rule matching — each either fully
// resolves the pair or declines — so there is no loop to bound here;
// the first matching rule is final.
func (c *Context) And(e0, e1 dag.Ref) dag.Ref {
	e0, e1 = c.chase(e0), c.chase(e1)

	if r, ok := c.rewriteBinary(dag.And, e0, e1); ok {
		return r
	}
	if r, ok := c.andPeephole(e0, e1); ok {
		return r
	}

	if c.level() > 2 {
		if r, ok := c.caRetry(c.And, e0, e1); ok {
			return r
		}
	}

	if c.andContradiction(e0, e1) {
		return c.zeroRef(dag.RealAddress(e0).Width())
	}

	return c.Store.Acquire(c.Store.BuildBinary(dag.And, e0, e1))
}

// andPeephole implements the dense rule table of spec §4.3 beyond plain
// same-term identities (those live in sameTermIdentity, reached via
// rewriteBinary before this is tried).
func (c *Context) andPeephole(e0, e1 dag.Ref) (dag.Ref, bool) {
	if r, ok := c.andUltPair(e0, e1); ok {
		return r, true
	}
	if r, ok := c.andChainAbsorb(e0, e1); ok {
		return r, true
	}
	if r, ok := c.andChainAbsorb(e1, e0); ok {
		return r, true
	}
	return dag.Ref{}, false
}

// andUltPair: (a<b)&(b<a) -> false; NOT(a<b)&NOT(b<a) -> a==b.
func (c *Context) andUltPair(e0, e1 dag.Ref) (dag.Ref, bool) {
	n0, n1 := dag.RealAddress(e0), dag.RealAddress(e1)
	if n0.Kind() != dag.Ult || n1.Kind() != dag.Ult {
		return dag.Ref{}, false
	}
	if n0.Child(0) != n1.Child(1) || n0.Child(1) != n1.Child(0) {
		return dag.Ref{}, false
	}
	if !dag.IsInverted(e0) && !dag.IsInverted(e1) {
		return c.falseRef(), true
	}
	if dag.IsInverted(e0) && dag.IsInverted(e1) {
		return c.Beq(n0.Child(0), n0.Child(1)), true
	}
	return dag.Ref{}, false
}

// andChainAbsorb: (a&b) & x collapses to (a&b) when x aliases one of a,
// b, and collapses to 0 when x aliases NOT a or NOT b.
func (c *Context) andChainAbsorb(chain, x dag.Ref) (dag.Ref, bool) {
	n := dag.RealAddress(chain)
	if n.Kind() != dag.And || dag.IsInverted(chain) {
		return dag.Ref{}, false
	}
	a, b := n.Child(0), n.Child(1)
	for _, leaf := range []dag.Ref{a, b} {
		if sameReal(leaf, x) {
			if dag.SameTag(leaf, x) {
				return c.acquireSame(chain), true
			}
			return c.zeroRef(n.Width()), true
		}
	}
	return dag.Ref{}, false
}
