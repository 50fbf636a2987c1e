package rewrite

import "bvrewrite/internal/dag"

// andContradiction implements the AND-contradiction search of spec §4.5:
// does the AND-subtree rooted at e0 (or e1) contain a literal equal to
// NOT e0 or NOT e1? The search only descends through uninverted AND
// nodes (an inverted AND is an OR and stops the search) and is bounded
// by FindAndNodeContradictionLimit, returning "not found" (false) when
// the limit is reached — a safe under-approximation, never a false
// positive.
func (c *Context) andContradiction(e0, e1 dag.Ref) bool {
	depth := 0
	if c.searchContradiction(e0, e0, e1, &depth) {
		return true
	}
	depth = 0
	return c.searchContradiction(e1, e0, e1, &depth)
}

func (c *Context) searchContradiction(exp, e0, e1 dag.Ref, depth *int) bool {
	if *depth >= c.Config.FindAndNodeContradictionLimit {
		return false
	}
	*depth++

	n := dag.RealAddress(exp)
	if n.Kind() == dag.And && !dag.IsInverted(exp) {
		return c.searchContradiction(n.Child(0), e0, e1, depth) ||
			c.searchContradiction(n.Child(1), e0, e1, depth)
	}
	return opposite(exp, e0) || opposite(exp, e1)
}
